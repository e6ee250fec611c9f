package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Harshitk-cp/swarm/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// writeServiceError maps coordinator sentinels to status codes. Unknown
// errors become a 500 with fallback as the message.
func writeServiceError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrNodeKeyMissing),
		errors.Is(err, service.ErrInvalidStage),
		errors.Is(err, service.ErrInvalidReward),
		errors.Is(err, service.ErrNoWinners):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrNodeKeyMismatch):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrPeerConflict),
		errors.Is(err, service.ErrStaleRound),
		errors.Is(err, service.ErrDuplicateReward),
		errors.Is(err, service.ErrDuplicateWinners),
		errors.Is(err, service.ErrAdvanceConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRoundStateMissing):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}
