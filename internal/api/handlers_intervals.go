package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/api/respond"
	"github.com/Basbat-net/Study-Enforcer/internal/intervalstore"
)

// IntervalHandler provides HTTP transport for the pending-inactive-interval
// table.
type IntervalHandler struct {
	intervals *intervalstore.Store
	log       zerolog.Logger
}

func NewIntervalHandler(intervals *intervalstore.Store, log zerolog.Logger) *IntervalHandler {
	return &IntervalHandler{intervals: intervals, log: log}
}

// StartInterval POST /api/inactive-interval/start/{username}
func (h *IntervalHandler) StartInterval(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req struct {
		Timestamp int64 `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.intervals.Start(username, req.Timestamp); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to start inactive interval")
		respond.WriteInternalError(w, "Error starting inactive interval")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// EndInterval POST /api/inactive-interval/end/{username}
func (h *IntervalHandler) EndInterval(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var req struct {
		CurrentTime int64 `json:"currentTime"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	entry, hadPending, err := h.intervals.End(username, req.CurrentTime)
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to end inactive interval")
		respond.WriteInternalError(w, "Error ending inactive interval")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"inactiveLog":        entry,
		"hadPendingInterval": hadPending,
	})
}
