package handlers

import (
	"net/http"

	"github.com/Harshitk-cp/swarm/internal/service"
)

type RoundHandler struct {
	svc *service.CoordinatorService
}

func NewRoundHandler(svc *service.CoordinatorService) *RoundHandler {
	return &RoundHandler{svc: svc}
}

func (h *RoundHandler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Current(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to get round state")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Advance moves the swarm one stage forward regardless of the stage clock.
func (h *RoundHandler) Advance(w http.ResponseWriter, r *http.Request) {
	st, err := h.svc.Advance(r.Context())
	if err != nil {
		writeServiceError(w, err, "failed to advance stage")
		return
	}
	writeJSON(w, http.StatusOK, st)
}
