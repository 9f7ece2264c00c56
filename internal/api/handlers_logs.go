package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/api/respond"
	"github.com/Basbat-net/Study-Enforcer/internal/config"
	"github.com/Basbat-net/Study-Enforcer/internal/logstore"
	"github.com/Basbat-net/Study-Enforcer/internal/model"
)

// LogsHandler provides HTTP transport for the append-log store.
type LogsHandler struct {
	logs *logstore.Store
	cfg  *config.Config
	log  zerolog.Logger
}

func NewLogsHandler(logs *logstore.Store, cfg *config.Config, log zerolog.Logger) *LogsHandler {
	return &LogsHandler{logs: logs, cfg: cfg, log: log}
}

// GetLogs GET /api/logs/{username}
func (h *LogsHandler) GetLogs(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	entries, err := h.logs.ReadAll(h.cfg.LogsPath(username))
	if err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to read logs")
		respond.WriteInternalError(w, "Error reading logs")
		return
	}
	respond.WriteJSON(w, http.StatusOK, entries)
}

// SaveLogs POST /api/logs/{username}
// Replaces the user's whole log. Bulk-correction path; the steady-state
// flow appends one entry at a time via AddLog.
func (h *LogsHandler) SaveLogs(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var entries []model.LogEntry
	if err := json.NewDecoder(r.Body).Decode(&entries); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.logs.Overwrite(h.cfg.LogsPath(username), entries); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to overwrite logs")
		respond.WriteInternalError(w, "Error saving logs")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// AddLog POST /api/logs/{username}/add
func (h *LogsHandler) AddLog(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	var entry model.LogEntry
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	if err := h.logs.Append(h.cfg.LogsPath(username), entry); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to append log")
		respond.WriteInternalError(w, "Error appending log")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ClearLogs DELETE /api/logs/{username}
func (h *LogsHandler) ClearLogs(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.logs.Clear(h.cfg.LogsPath(username)); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to clear logs")
		respond.WriteInternalError(w, "Error clearing logs")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}
