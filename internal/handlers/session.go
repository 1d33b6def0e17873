package handlers

import (
	"context"
	"net/http"

	"github.com/o2a/bapsim/internal/session"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type contextKey string

const contextViewerKey contextKey = "viewer"

// viewer is the logged-in user of a request.
type viewer struct {
	ID   primitive.ObjectID
	Name string
}

// RequireAPISession rejects requests without a valid session with 401 JSON.
func RequireAPISession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, ok := loadViewer(sessions, r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "login required")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextViewerKey, v)))
		})
	}
}

// RequirePageSession redirects requests without a valid session to /login.
func RequirePageSession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v, ok := loadViewer(sessions, r)
			if !ok {
				http.Redirect(w, r, "/login", http.StatusFound)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), contextViewerKey, v)))
		})
	}
}

func loadViewer(sessions *session.Manager, r *http.Request) (viewer, bool) {
	s, err := sessions.Load(r)
	if err != nil {
		return viewer{}, false
	}
	id, err := primitive.ObjectIDFromHex(s.UserID)
	if err != nil {
		return viewer{}, false
	}
	return viewer{ID: id, Name: s.UserName}, true
}

func viewerFromContext(ctx context.Context) viewer {
	v, _ := ctx.Value(contextViewerKey).(viewer)
	return v
}
