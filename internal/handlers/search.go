package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/types"
	"go.uber.org/zap"
)

// SearchHandler serves recipe search and the likes ranking.
type SearchHandler struct {
	posts  *services.PostService
	logger *zap.Logger
}

func NewSearchHandler(posts *services.PostService, logger *zap.Logger) *SearchHandler {
	return &SearchHandler{posts: posts, logger: logger}
}

// SearchRouter registers search routes on the given router.
func SearchRouter(r chi.Router, posts *services.PostService, logger *zap.Logger) {
	handler := NewSearchHandler(posts, logger)

	r.Get("/api/search", handler.Search)
	r.Get("/api/top10", handler.Top)
}

type SearchResponse struct {
	Success bool                `json:"success"`
	Query   string              `json:"query"`
	Count   int                 `json:"count"`
	Results []types.PostSummary `json:"results"`
}

type TopResponse struct {
	Success bool               `json:"success"`
	Results []types.RankedPost `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	results, err := h.posts.Search(r.Context(), query, r.URL.Query().Get("sort"))
	if err != nil {
		writeServiceError(w, h.logger, err, "not found", "failed to search recipes")
		return
	}

	writeJSON(w, http.StatusOK, SearchResponse{
		Success: true,
		Query:   query,
		Count:   len(results),
		Results: results,
	})
}

func (h *SearchHandler) Top(w http.ResponseWriter, r *http.Request) {
	results, err := h.posts.Top(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err, "not found", "failed to load ranking")
		return
	}
	writeJSON(w, http.StatusOK, TopResponse{Success: true, Results: results})
}
