package handlers

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/projectsentinel/apiserver/internal/services"
	"github.com/projectsentinel/apiserver/internal/store"
	"github.com/projectsentinel/apiserver/types"
)

const minPasswordLength = 8

// AuthHandler registers employees and issues session tokens.
type AuthHandler struct {
	users    *services.UserService
	sessions sessions
}

func NewAuthHandler(users *services.UserService, jwtSecret string) *AuthHandler {
	return &AuthHandler{users: users, sessions: newSessions(jwtSecret)}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, users *services.UserService, jwtSecret string) {
	handler := NewAuthHandler(users, jwtSecret)

	r.Post("/register", handler.Register)
	r.Post("/login", handler.Login)
	r.With(handler.sessions.middleware).Get("/me", handler.Me)
}

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Password   string `json:"password"`
	Region     string `json:"region"`
	IsSentinel bool   `json:"is_sentinel"`
}

// normalize trims the profile fields and reports the first invalid one.
func (req *RegisterRequest) normalize() error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	req.Region = strings.TrimSpace(req.Region)

	switch {
	case req.Username == "" || req.Email == "" || req.Name == "":
		return errors.New("username, email and name are required")
	case strings.ContainsAny(req.Username, " \t\n"):
		return errors.New("username must not contain whitespace")
	case len(req.Password) < minPasswordLength:
		return errors.New("password must be at least 8 characters")
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return errors.New("invalid email")
	}
	return nil
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse carries a session token and the account it belongs to.
type AuthResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
	User      types.User `json:"user"`
}

// Register creates an employee account with its leaderboard entry.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := req.normalize(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	user, err := h.users.Register(r.Context(), types.User{
		Username:     req.Username,
		Email:        req.Email,
		Name:         req.Name,
		Region:       req.Region,
		Role:         types.RoleUser,
		IsSentinel:   req.IsSentinel,
		PasswordHash: string(hashed),
	})
	switch {
	case errors.Is(err, services.ErrConflict):
		writeError(w, http.StatusConflict, "username already exists")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to create user")
		return
	}

	h.respondWithSession(w, http.StatusCreated, user)
}

// Login exchanges credentials for a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "missing credentials")
		return
	}

	user, err := h.users.GetByUsername(r.Context(), req.Username)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to authenticate")
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.respondWithSession(w, http.StatusOK, user)
}

// Me returns the caller's account.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	user, err := h.users.GetByID(r.Context(), userID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to load user")
	default:
		writeJSON(w, http.StatusOK, user)
	}
}

func (h *AuthHandler) respondWithSession(w http.ResponseWriter, status int, user types.User) {
	token, expires, err := h.sessions.issue(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create token")
		return
	}
	writeJSON(w, status, AuthResponse{Token: token, ExpiresAt: expires, User: user})
}
