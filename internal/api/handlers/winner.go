package handlers

import (
	"net/http"
	"strconv"

	"github.com/Harshitk-cp/swarm/internal/api/middleware"
	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/Harshitk-cp/swarm/internal/service"
	"github.com/go-chi/chi/v5"
)

type WinnerHandler struct {
	svc *service.CoordinatorService
}

func NewWinnerHandler(svc *service.CoordinatorService) *WinnerHandler {
	return &WinnerHandler{svc: svc}
}

type submitWinnersRequest struct {
	Round   int      `json:"round"`
	Winners []string `json:"winners"`
	NodeKey string   `json:"node_key"`
}

type winnersResponse struct {
	Round   int                  `json:"round"`
	Winners []domain.WinnerTally `json:"winners"`
}

func (h *WinnerHandler) Submit(w http.ResponseWriter, r *http.Request) {
	peer := middleware.PeerFromContext(r.Context())
	if peer == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req submitWinnersRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.svc.SubmitWinners(r.Context(), peer, req.Round, req.Winners, req.NodeKey); err != nil {
		writeServiceError(w, err, "failed to submit winners")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WinnerHandler) List(w http.ResponseWriter, r *http.Request) {
	round, err := strconv.Atoi(chi.URLParam(r, "round"))
	if err != nil || round < 0 {
		writeError(w, http.StatusBadRequest, "invalid round")
		return
	}

	tally, err := h.svc.Winners(r.Context(), round)
	if err != nil {
		writeServiceError(w, err, "failed to list winners")
		return
	}
	if tally == nil {
		tally = []domain.WinnerTally{}
	}
	writeJSON(w, http.StatusOK, winnersResponse{Round: round, Winners: tally})
}
