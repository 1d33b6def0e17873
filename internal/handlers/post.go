package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/internal/session"
	"github.com/o2a/bapsim/types"
	"go.uber.org/zap"
)

const (
	maxMultipartMemory = 8 << 20
	formOverhead       = 1 << 20
	formFieldImage     = "image"
	recipeNotFound     = "recipe not found or not yours"
)

// PostHandler serves recipe creation, detail, likes and deletion.
type PostHandler struct {
	posts         *services.PostService
	logger        *zap.Logger
	maxUploadSize int64
}

func NewPostHandler(posts *services.PostService, logger *zap.Logger, maxUploadSize int64) *PostHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = services.MaxImageSize
	}
	return &PostHandler{posts: posts, logger: logger, maxUploadSize: maxUploadSize}
}

// PostRouter registers recipe routes on the given router. Every route needs a
// session.
func PostRouter(r chi.Router, posts *services.PostService, sessions *session.Manager, logger *zap.Logger, maxUploadSize int64) {
	handler := NewPostHandler(posts, logger, maxUploadSize)

	r.Group(func(r chi.Router) {
		r.Use(RequireAPISession(sessions))
		r.Post("/api/post", handler.CreatePost)
		r.Get("/api/post/{postID}", handler.GetPost)
		r.Post("/api/post/{postID}/like", handler.ToggleLike)
		r.Delete("/api/delete-recipe/{postID}", handler.DeletePost)
		r.Post("/api/unlike-recipe/{postID}", handler.UnlikePost)
	})
}

type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type LikeResponse struct {
	Success bool `json:"success"`
	services.LikeResult
}

// CreatePost accepts a multipart form with an optional image.
func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+formOverhead)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload is too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	input, message, ok := parsePostForm(r)
	if !ok {
		writeError(w, http.StatusBadRequest, message)
		return
	}

	var image *services.ImageUpload
	file, header, err := r.FormFile(formFieldImage)
	switch {
	case err == nil:
		defer file.Close()
		image = &services.ImageUpload{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Size:        header.Size,
			Body:        file,
		}
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeError(w, http.StatusBadRequest, "invalid image")
		return
	}

	v := viewerFromContext(r.Context())
	post, err := h.posts.Create(r.Context(), v.ID, v.Name, input, image)
	if err != nil {
		writeServiceError(w, h.logger, err, recipeNotFound, "failed to create recipe")
		return
	}

	h.logger.Info("recipe created", zap.String("post_id", post.ID.Hex()), zap.String("author_id", v.ID.Hex()))
	writeJSON(w, http.StatusCreated, post)
}

func parsePostForm(r *http.Request) (services.PostInput, string, bool) {
	input := services.PostInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("desc"),
		Category:    r.FormValue("category"),
		Level:       r.FormValue("level"),
		Status:      strings.TrimSpace(r.FormValue("status")),
		Visibility:  strings.TrimSpace(r.FormValue("visibility")),
		Tags: strings.FieldsFunc(r.FormValue("tags"), func(c rune) bool {
			return c == ',' || c == '\n'
		}),
		Ingredients: strings.Split(r.FormValue("ingredients"), "\n"),
	}

	var err error
	if input.Servings, err = optionalInt(r.FormValue("servings")); err != nil {
		return services.PostInput{}, "servings must be a number", false
	}
	if input.TimeMinutes, err = optionalInt(r.FormValue("time")); err != nil {
		return services.PostInput{}, "time must be a number", false
	}
	if raw := strings.TrimSpace(r.FormValue("steps")); raw != "" {
		var steps []types.Step
		if err := json.Unmarshal([]byte(raw), &steps); err != nil {
			return services.PostInput{}, "steps must be a JSON list", false
		}
		input.Steps = steps
	}
	return input, "", true
}

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	v := viewerFromContext(r.Context())
	detail, err := h.posts.Get(r.Context(), v.ID, chi.URLParam(r, "postID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "recipe not found", "failed to load recipe")
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	v := viewerFromContext(r.Context())
	result, err := h.posts.ToggleLike(r.Context(), v.ID, chi.URLParam(r, "postID"))
	if err != nil {
		writeServiceError(w, h.logger, err, "recipe not found", "failed to update like")
		return
	}
	writeJSON(w, http.StatusOK, LikeResponse{Success: true, LikeResult: result})
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	v := viewerFromContext(r.Context())
	if err := h.posts.Delete(r.Context(), v.ID, chi.URLParam(r, "postID")); err != nil {
		writeServiceError(w, h.logger, err, recipeNotFound, "failed to delete recipe")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "recipe deleted"})
}

func (h *PostHandler) UnlikePost(w http.ResponseWriter, r *http.Request) {
	v := viewerFromContext(r.Context())
	if err := h.posts.Unlike(r.Context(), v.ID, chi.URLParam(r, "postID")); err != nil {
		writeServiceError(w, h.logger, err, "recipe not found or not liked", "failed to unlike recipe")
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Success: true, Message: "like removed"})
}
