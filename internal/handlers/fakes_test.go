package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/o2a/bapsim/config"
	"github.com/o2a/bapsim/internal/services"
	"github.com/o2a/bapsim/internal/session"
	"github.com/o2a/bapsim/internal/store"
	"github.com/o2a/bapsim/internal/web"
	"github.com/o2a/bapsim/types"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// memPosts is an in-memory PostRepository with the same predicates as the
// MongoDB one.
type memPosts struct {
	mu    sync.Mutex
	posts map[primitive.ObjectID]types.Post
}

func newMemPosts() *memPosts {
	return &memPosts{posts: map[primitive.ObjectID]types.Post{}}
}

func (m *memPosts) add(post types.Post) types.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	if post.ID.IsZero() {
		post.ID = primitive.NewObjectID()
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = types.NewTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	}
	if post.Status == "" {
		post.Status = types.StatusPublished
	}
	if post.Visibility == "" {
		post.Visibility = types.VisibilityPublic
	}
	post.Likes = len(post.LikedBy)
	m.posts[post.ID] = post
	return post
}

func (m *memPosts) get(id primitive.ObjectID) types.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.posts[id]
}

func toDoc(post types.Post) bson.M {
	data, err := bson.Marshal(post)
	if err != nil {
		panic(err)
	}
	var doc bson.M
	if err := bson.Unmarshal(data, &doc); err != nil {
		panic(err)
	}
	return doc
}

func (m *memPosts) filter(limit int64, keep func(types.Post) bool) []bson.M {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := []bson.M{}
	for _, post := range m.posts {
		if keep(post) && int64(len(docs)) < limit {
			docs = append(docs, toDoc(post))
		}
	}
	return docs
}

func visible(post types.Post) bool {
	return post.Status == types.StatusPublished && post.Visibility == types.VisibilityPublic
}

func (m *memPosts) Search(_ context.Context, query string, _ store.SortKey, limit int64) ([]bson.M, error) {
	return m.filter(limit, func(p types.Post) bool {
		return visible(p) && strings.Contains(strings.ToLower(p.Title), strings.ToLower(query))
	}), nil
}

func (m *memPosts) Top(_ context.Context, limit int64) ([]bson.M, error) {
	return m.filter(limit, visible), nil
}

func (m *memPosts) CountByAuthor(_ context.Context, authorID primitive.ObjectID) (int64, error) {
	return int64(len(m.filter(1000, func(p types.Post) bool { return p.AuthorID == authorID }))), nil
}

func (m *memPosts) CountLikedBy(_ context.Context, userID primitive.ObjectID) (int64, error) {
	return int64(len(m.filter(1000, func(p types.Post) bool { return likedBy(p, userID) }))), nil
}

func (m *memPosts) ListByAuthor(_ context.Context, authorID primitive.ObjectID, limit int64) ([]bson.M, error) {
	return m.filter(limit, func(p types.Post) bool { return p.AuthorID == authorID }), nil
}

func (m *memPosts) ListLikedBy(_ context.Context, userID primitive.ObjectID, limit int64) ([]bson.M, error) {
	return m.filter(limit, func(p types.Post) bool { return likedBy(p, userID) }), nil
}

func (m *memPosts) Get(_ context.Context, id primitive.ObjectID) (types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (m *memPosts) Create(_ context.Context, post types.Post) (types.Post, error) {
	post.LikedBy = []primitive.ObjectID{}
	post.CreatedAt = types.NewTime(time.Now())
	return m.add(post), nil
}

func (m *memPosts) DeleteOwned(_ context.Context, id, authorID primitive.ObjectID) (types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok || post.AuthorID != authorID {
		return types.Post{}, store.ErrNotFound
	}
	delete(m.posts, id)
	return post, nil
}

func (m *memPosts) Like(_ context.Context, id, userID primitive.ObjectID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok || likedBy(post, userID) {
		return 0, store.ErrNotFound
	}
	post.LikedBy = append(post.LikedBy, userID)
	post.Likes++
	m.posts[id] = post
	return post.Likes, nil
}

func (m *memPosts) Unlike(_ context.Context, id, userID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	post, ok := m.posts[id]
	if !ok || !likedBy(post, userID) {
		return store.ErrNotFound
	}
	remaining := make([]primitive.ObjectID, 0, len(post.LikedBy))
	for _, liker := range post.LikedBy {
		if liker != userID {
			remaining = append(remaining, liker)
		}
	}
	post.LikedBy = remaining
	post.Likes--
	m.posts[id] = post
	return nil
}

func likedBy(post types.Post, userID primitive.ObjectID) bool {
	for _, liker := range post.LikedBy {
		if liker == userID {
			return true
		}
	}
	return false
}

type memUsers struct {
	mu    sync.Mutex
	users map[primitive.ObjectID]types.User
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[primitive.ObjectID]types.User{}}
}

func (m *memUsers) GetByID(_ context.Context, id primitive.ObjectID) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (m *memUsers) GetByUsername(_ context.Context, username string) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (m *memUsers) Create(_ context.Context, user types.User) (types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == user.Username {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now().UTC()
	m.users[user.ID] = user
	return user, nil
}

type memReviews struct {
	mu      sync.Mutex
	reviews []types.Review
}

func (m *memReviews) ListByPost(_ context.Context, postID primitive.ObjectID, _ int64) ([]types.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []types.Review{}
	for _, review := range m.reviews {
		if review.PostID == postID {
			out = append(out, review)
		}
	}
	return out, nil
}

func (m *memReviews) Stats(ctx context.Context, postID primitive.ObjectID) (types.ReviewStats, error) {
	reviews, _ := m.ListByPost(ctx, postID, 0)
	if len(reviews) == 0 {
		return types.ReviewStats{}, nil
	}
	sum := 0
	for _, review := range reviews {
		sum += review.Rating
	}
	return types.ReviewStats{TotalReviews: len(reviews), AvgRating: float64(sum) / float64(len(reviews))}, nil
}

func (m *memReviews) GetByPostAndUser(_ context.Context, postID, userID primitive.ObjectID) (types.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, review := range m.reviews {
		if review.PostID == postID && review.UserID == userID {
			return review, nil
		}
	}
	return types.Review{}, store.ErrNotFound
}

func (m *memReviews) Upsert(_ context.Context, review types.Review) (types.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.reviews {
		if existing.PostID == review.PostID && existing.UserID == review.UserID {
			review.ID = existing.ID
			m.reviews[i] = review
			return review, nil
		}
	}
	review.ID = primitive.NewObjectID()
	m.reviews = append(m.reviews, review)
	return review, nil
}

func (m *memReviews) DeleteOwned(_ context.Context, id, userID primitive.ObjectID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, review := range m.reviews {
		if review.ID == id && review.UserID == userID {
			m.reviews = append(m.reviews[:i], m.reviews[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memReviews) DeleteByPost(_ context.Context, postID primitive.ObjectID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.reviews[:0]
	var removed int64
	for _, review := range m.reviews {
		if review.PostID == postID {
			removed++
			continue
		}
		kept = append(kept, review)
	}
	m.reviews = kept
	return removed, nil
}

type stubReplier struct {
	calls int
	reply string
	err   error
}

func (s *stubReplier) Reply(context.Context, string) (string, error) {
	s.calls++
	return s.reply, s.err
}

type testApp struct {
	router   chi.Router
	posts    *memPosts
	users    *memUsers
	reviews  *memReviews
	sessions *session.Manager
	replier  *stubReplier
}

func newTestApp(t *testing.T, withChat bool) *testApp {
	t.Helper()
	logger := zap.NewNop()

	sessions, err := session.NewManager(config.SessionConfig{Secret: "test-secret", TTL: time.Hour})
	require.NoError(t, err)
	renderer, err := web.NewRenderer()
	require.NoError(t, err)

	app := &testApp{
		posts:    newMemPosts(),
		users:    newMemUsers(),
		reviews:  &memReviews{},
		sessions: sessions,
		replier:  &stubReplier{reply: "김치찌개 어때요?"},
	}

	var replier services.Replier
	if withChat {
		replier = app.replier
	}

	userService := services.NewUserService(app.users)
	postService := services.NewPostService(app.posts, app.reviews, nil, nil, logger)
	dashboard := services.NewDashboardService(app.users, app.posts, logger)
	chatService := services.NewChatService(replier, nil, logger)
	reviewService := services.NewReviewService(app.reviews, app.posts)

	router := chi.NewRouter()
	AuthRouter(router, userService, sessions, logger)
	SearchRouter(router, postService, logger)
	PostRouter(router, postService, sessions, logger, 0)
	MyPageRouter(router, dashboard, sessions, logger)
	ChatbotRouter(router, chatService, logger)
	ReviewRouter(router, reviewService, sessions, logger)
	PageRouter(router, NewPageHandler(renderer, sessions, postService, dashboard, logger))
	app.router = router
	return app
}

// login creates a user and returns its session cookie.
func (a *testApp) login(t *testing.T, name string) (types.User, *http.Cookie) {
	t.Helper()
	user, err := a.users.Create(context.Background(), types.User{Username: name, Name: name})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	_, err = a.sessions.Issue(rec, user.ID.Hex(), user.Name)
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return user, cookies[0]
}

func (a *testApp) do(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func likeResult(likes int, liked bool) services.LikeResult {
	return services.LikeResult{Likes: likes, UserLiked: liked}
}
