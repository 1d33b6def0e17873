package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/internal/session"
	"github.com/o2a/bapsim/internal/web"
	"github.com/o2a/bapsim/types"
	"go.uber.org/zap"
)

// PageData is passed to every template. The layout reads UserName and Query.
type PageData struct {
	UserName string
	Query    string
	Error    string

	Top     []types.RankedPost
	Results []types.PostSummary

	User          types.User
	AuthoredCount int64
	LikedCount    int64
	Authored      []types.AuthoredPost
	Liked         []types.LikedPost
}

// PageHandler renders the HTML pages.
type PageHandler struct {
	renderer  *web.Renderer
	sessions  *session.Manager
	posts     *services.PostService
	dashboard *services.DashboardService
	logger    *zap.Logger
}

func NewPageHandler(renderer *web.Renderer, sessions *session.Manager, posts *services.PostService, dashboard *services.DashboardService, logger *zap.Logger) *PageHandler {
	return &PageHandler{
		renderer:  renderer,
		sessions:  sessions,
		posts:     posts,
		dashboard: dashboard,
		logger:    logger,
	}
}

// PageRouter registers page routes on the given router.
func PageRouter(r chi.Router, handler *PageHandler) {
	r.Get("/", handler.Main)
	r.Get("/login", handler.static("login"))
	r.Get("/sign", handler.static("sign"))
	r.Get("/sign_success", handler.static("sign_success"))
	r.Get("/search_result", handler.SearchResult)

	r.Group(func(r chi.Router) {
		r.Use(RequirePageSession(handler.sessions))
		r.Get("/post", handler.static("post"))
		r.Get("/mypage", handler.MyPage)
	})
}

func (h *PageHandler) Main(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r)
	top, err := h.posts.Top(r.Context())
	if err != nil {
		h.logger.Error("failed to load ranking", zap.Error(err))
	}
	data.Top = top
	h.render(w, http.StatusOK, "main", data)
}

func (h *PageHandler) SearchResult(w http.ResponseWriter, r *http.Request) {
	data := h.pageData(r)
	data.Query = r.URL.Query().Get("q")

	results, err := h.posts.Search(r.Context(), data.Query, r.URL.Query().Get("sort"))
	var validationErr *services.ValidationError
	switch {
	case err == nil:
		data.Results = results
	case errors.As(err, &validationErr):
		data.Error = "검색어를 입력해주세요."
	default:
		h.logger.Error("failed to search recipes", zap.Error(err))
		data.Error = "검색 중 오류가 발생했습니다."
	}
	h.render(w, http.StatusOK, "search_result", data)
}

// MyPage shows the dashboard. A session whose user no longer exists is
// cleared and sent back to the login page.
func (h *PageHandler) MyPage(w http.ResponseWriter, r *http.Request) {
	v := viewerFromContext(r.Context())
	summary, err := h.dashboard.Summary(r.Context(), v.ID)
	if err != nil {
		if errors.Is(err, services.ErrSessionInvalid) {
			h.sessions.Clear(w)
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		h.logger.Error("failed to load my page", zap.Error(err))
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	data := PageData{
		UserName:      v.Name,
		User:          summary.User,
		AuthoredCount: summary.AuthoredCount,
		LikedCount:    summary.LikedCount,
	}
	if data.Authored, err = h.dashboard.ListAuthored(r.Context(), v.ID); err != nil {
		h.logger.Error("failed to list authored recipes", zap.Error(err))
	}
	if data.Liked, err = h.dashboard.ListLiked(r.Context(), v.ID); err != nil {
		h.logger.Error("failed to list liked recipes", zap.Error(err))
	}
	h.render(w, http.StatusOK, "mypage", data)
}

func (h *PageHandler) static(page string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h.render(w, http.StatusOK, page, h.pageData(r))
	}
}

// pageData fills in the optional logged-in user.
func (h *PageHandler) pageData(r *http.Request) PageData {
	var data PageData
	if v, ok := loadViewer(h.sessions, r); ok {
		data.UserName = v.Name
	}
	return data
}

func (h *PageHandler) render(w http.ResponseWriter, status int, page string, data PageData) {
	if err := h.renderer.Render(w, status, page, data); err != nil {
		h.logger.Error("failed to render page", zap.String("page", page), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
