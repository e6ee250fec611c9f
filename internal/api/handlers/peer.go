package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/Harshitk-cp/swarm/internal/api/middleware"
	"github.com/Harshitk-cp/swarm/internal/service"
)

type PeerHandler struct {
	svc *service.CoordinatorService
}

func NewPeerHandler(svc *service.CoordinatorService) *PeerHandler {
	return &PeerHandler{svc: svc}
}

type registerPeerRequest struct {
	NodeKey string `json:"node_key"`
}

type registerPeerResponse struct {
	ID      string `json:"id"`
	NodeKey string `json:"node_key"`
	APIKey  string `json:"api_key"`
}

// Register issues an API key for a node key. The key is returned once and
// only its hash is stored.
func (h *PeerHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerPeerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	apiKey, err := generateAPIKey()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to generate API key")
		return
	}

	peer, err := h.svc.Register(r.Context(), req.NodeKey, middleware.HashAPIKey(apiKey))
	if err != nil {
		writeServiceError(w, err, "failed to register peer")
		return
	}

	writeJSON(w, http.StatusCreated, registerPeerResponse{
		ID:      peer.ID.String(),
		NodeKey: peer.NodeKey,
		APIKey:  apiKey,
	})
}

func generateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return "mk_" + hex.EncodeToString(b), nil
}
