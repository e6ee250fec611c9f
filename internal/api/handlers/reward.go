package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/swarm/internal/api/middleware"
	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/service"
)

type RewardHandler struct {
	svc *service.CoordinatorService
}

func NewRewardHandler(svc *service.CoordinatorService) *RewardHandler {
	return &RewardHandler{svc: svc}
}

type submitRewardRequest struct {
	Round   int    `json:"round"`
	Stage   int    `json:"stage"`
	Reward  int    `json:"reward"`
	NodeKey string `json:"node_key"`
}

func (h *RewardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	peer := middleware.PeerFromContext(r.Context())
	if peer == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitRewardRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sub := &domain.RewardSubmission{
		Round:   req.Round,
		Stage:   domain.Stage(req.Stage),
		Reward:  req.Reward,
		NodeKey: req.NodeKey,
	}
	if err := h.svc.SubmitReward(r.Context(), peer, sub); err != nil {
		writeServiceError(w, err, "failed to submit reward")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}
