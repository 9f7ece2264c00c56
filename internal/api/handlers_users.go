package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/Basbat-net/Study-Enforcer/internal/api/respond"
	"github.com/Basbat-net/Study-Enforcer/internal/userstore"
)

// UsersHandler provides HTTP transport for the user registry.
type UsersHandler struct {
	users *userstore.Store
	log   zerolog.Logger
}

func NewUsersHandler(users *userstore.Store, log zerolog.Logger) *UsersHandler {
	return &UsersHandler{users: users, log: log}
}

// ListUsers GET /api/users
func (h *UsersHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List()
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list users")
		respond.WriteInternalError(w, "Error getting users")
		return
	}
	respond.WriteJSON(w, http.StatusOK, users)
}

// Ping GET /api/ping
func (h *UsersHandler) Ping(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UnixMilli(),
	})
}

// InitUser POST /api/init-user/{username}
func (h *UsersHandler) InitUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.users.Init(username); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to initialize user")
		respond.WriteInternalError(w, "Error initializing user files")
		return
	}
	h.log.Info().Str("username", username).Msg("initialized user files")
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("User %s initialized successfully", username),
	})
}

// RemoveUser DELETE /api/user/{username}
func (h *UsersHandler) RemoveUser(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]

	if err := h.users.Remove(username); err != nil {
		h.log.Error().Err(err).Str("username", username).Msg("failed to remove user")
		respond.WriteInternalError(w, "Error removing user")
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": fmt.Sprintf("User %s completely removed", username),
	})
}
