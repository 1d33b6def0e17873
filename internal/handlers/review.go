package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/internal/session"
	"github.com/o2a/bapsim/internal/store"
	"github.com/o2a/bapsim/types"
	"go.uber.org/zap"
)

// ReviewHandler serves recipe reviews.
type ReviewHandler struct {
	reviews  *services.ReviewService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewReviewHandler(reviews *services.ReviewService, logger *zap.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, validate: newValidator(), logger: logger}
}

// ReviewRouter registers review routes on the given router. Listing is
// public, everything else needs a session.
func ReviewRouter(r chi.Router, reviews *services.ReviewService, sessions *session.Manager, logger *zap.Logger) {
	handler := NewReviewHandler(reviews, logger)

	r.Get("/api/review/{postID}", handler.ListReviews)
	r.Group(func(r chi.Router) {
		r.Use(RequireAPISession(sessions))
		r.Get("/api/my-review/{postID}", handler.MyReview)
		r.Post("/api/review", handler.SaveReview)
		r.Delete("/api/review/{reviewID}", handler.DeleteReview)
	})
}

type ReviewRequest struct {
	PostID  string `json:"post_id" validate:"required"`
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment" validate:"max=500"`
}

type ReviewsResponse struct {
	Success bool              `json:"success"`
	Reviews []types.Review    `json:"reviews"`
	Stats   types.ReviewStats `json:"stats"`
}

type MyReviewResponse struct {
	Success  bool          `json:"success"`
	MyReview *types.Review `json:"my_review"`
}

type ReviewResponse struct {
	Success bool         `json:"success"`
	Review  types.Review `json:"review"`
}

func (h *ReviewHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, stats, err := h.reviews.List(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "recipe not found", "failed to load reviews")
		return
	}
	writeJSON(w, http.StatusOK, ReviewsResponse{Success: true, Reviews: reviews, Stats: stats})
}

// MyReview answers with a null review when the user has not reviewed the post.
func (h *ReviewHandler) MyReview(w http.ResponseWriter, r *http.Request) {
	review, err := h.reviews.Mine(r.Context(), viewerFromContext(r.Context()).ID, chi.URLParam(r, "postID"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, MyReviewResponse{Success: true})
		return
	}
	if err != nil {
		writeServiceError(w, h.logger, err, "review not found", "failed to load review")
		return
	}
	writeJSON(w, http.StatusOK, MyReviewResponse{Success: true, MyReview: &review})
}

func (h *ReviewHandler) SaveReview(w http.ResponseWriter, r *http.Request) {
	var req ReviewRequest
	if message, ok := decodeAndValidate(r, h.validate, &req); !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	v := viewerFromContext(r.Context())
	review, err := h.reviews.Save(r.Context(), v.ID, v.Name, req.PostID, req.Rating, req.Comment)
	if err != nil {
		writeServiceError(w, h.logger, err, "recipe not found", "failed to save review")
		return
	}
	writeJSON(w, http.StatusOK, ReviewResponse{Success: true, Review: review})
}

func (h *ReviewHandler) DeleteReview(w http.ResponseWriter, r *http.Request) {
	v := viewerFromContext(r.Context())
	if err := h.reviews.Delete(r.Context(), v.ID, chi.URLParam(r, "reviewID")); err != nil {
		writeServiceError(w, h.logger, err, "review not found or not yours", "failed to delete review")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "review deleted"})
}
