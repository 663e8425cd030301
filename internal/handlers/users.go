package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/types"
)

type UserHandler struct {
	users *services.UserService
}

// UsersRouter registers the member directory, visible to any signed-in user.
func UsersRouter(r chi.Router, users *services.UserService, authMiddleware func(http.Handler) http.Handler) {
	handler := &UserHandler{users: users}

	r.Use(authMiddleware)
	r.Get("/", handler.List)
}

type UsersResponse struct {
	Users []types.User `json:"users"`
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	if users == nil {
		users = []types.User{}
	}
	writeJSON(w, http.StatusOK, UsersResponse{Users: users})
}
