package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/api/respond"
	"github.com/Basbat-net/Study-Enforcer/internal/timerstore"
)

// TimerHandler provides HTTP transport for timer state documents.
type TimerHandler struct {
	timers *timerstore.Store
	log    zerolog.Logger
}

func NewTimerHandler(timers *timerstore.Store, log zerolog.Logger) *TimerHandler {
	return &TimerHandler{timers: timers, log: log}
}

// GetTimerState GET /api/timer-state/{username}
// Never fails: a corrupt or missing document comes back as the default
// state, normalized the same way writes are.
func (h *TimerHandler) GetTimerState(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	respond.WriteJSON(w, http.StatusOK, h.timers.Get(username))
}

// SaveTimerState POST /api/timer-state/{username}
func (h *TimerHandler) SaveTimerState(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var raw map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	state, err := h.timers.Set(username, raw)
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to save timer state")
		respond.WriteInternalError(w, "Error saving timer state")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true, "state": state})
}

// ClearTimerState DELETE /api/timer-state/{username}
func (h *TimerHandler) ClearTimerState(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.timers.Clear(username); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to clear timer state")
		respond.WriteInternalError(w, "Error clearing timer state")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
