package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/internal/session"
	"go.uber.org/zap"
)

// MyPageHandler serves the dashboard lists.
type MyPageHandler struct {
	dashboard *services.DashboardService
	logger    *zap.Logger
}

func NewMyPageHandler(dashboard *services.DashboardService, logger *zap.Logger) *MyPageHandler {
	return &MyPageHandler{dashboard: dashboard, logger: logger}
}

// MyPageRouter registers dashboard API routes on the given router.
func MyPageRouter(r chi.Router, dashboard *services.DashboardService, sessions *session.Manager, logger *zap.Logger) {
	handler := NewMyPageHandler(dashboard, logger)

	r.Group(func(r chi.Router) {
		r.Use(RequireAPISession(sessions))
		r.Get("/api/my-recipes", handler.ListAuthored)
		r.Get("/api/liked-recipes", handler.ListLiked)
	})
}

type RecipesResponse struct {
	Success bool `json:"success"`
	Recipes any  `json:"recipes"`
}

func (h *MyPageHandler) ListAuthored(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.dashboard.ListAuthored(r.Context(), viewerFromContext(r.Context()).ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "not found", "failed to load recipes")
		return
	}
	writeJSON(w, http.StatusOK, RecipesResponse{Success: true, Recipes: recipes})
}

func (h *MyPageHandler) ListLiked(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.dashboard.ListLiked(r.Context(), viewerFromContext(r.Context()).ID)
	if err != nil {
		writeServiceError(w, h.logger, err, "not found", "failed to load recipes")
		return
	}
	writeJSON(w, http.StatusOK, RecipesResponse{Success: true, Recipes: recipes})
}
