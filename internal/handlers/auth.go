package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/internal/session"
	"go.uber.org/zap"
)

// AuthHandler provides sign-up, login and logout.
type AuthHandler struct {
	users    *services.UserService
	sessions *session.Manager
	validate *validator.Validate
	logger   *zap.Logger
}

func NewAuthHandler(users *services.UserService, sessions *session.Manager, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		sessions: sessions,
		validate: newValidator(),
		logger:   logger,
	}
}

// AuthRouter registers account routes on the given router.
func AuthRouter(r chi.Router, users *services.UserService, sessions *session.Manager, logger *zap.Logger) {
	handler := NewAuthHandler(users, sessions, logger)

	r.Post("/api/register", handler.Register)
	r.Post("/api/login", handler.Login)
	r.Get("/logout", handler.Logout)
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=30"`
	Password string `json:"password" validate:"required,min=6"`
	Name     string `json:"name" validate:"required,max=30"`
	Email    string `json:"email" validate:"omitempty,email"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Success  bool   `json:"success"`
	UserName string `json:"user_name"`
}

// Register creates an account. The user logs in separately afterwards.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if message, ok := decodeAndValidate(r, h.validate, &req); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	user, err := h.users.Register(r.Context(), services.Registration{
		Username: req.Username,
		Password: req.Password,
		Name:     req.Name,
		Email:    req.Email,
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "user not found", "failed to create user")
		return
	}

	h.logger.Info("user registered", zap.String("user_id", user.ID.Hex()))
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "user": user})
}

// Login verifies credentials and starts a session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if message, ok := decodeAndValidate(r, h.validate, &req); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "invalid credentials", "failed to authenticate")
		return
	}

	if _, err := h.sessions.Issue(w, user.ID.Hex(), user.Name); err != nil {
		h.logger.Error("failed to issue session", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{Success: true, UserName: user.Name})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
