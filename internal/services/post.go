package services

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/o2a/bapsim/internal/store"
	"github.com/o2a/bapsim/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	searchLimit    = 50
	topLimit       = 10
	maxTitleLength = 100
	// MaxImageSize bounds uploaded recipe photos.
	MaxImageSize = 10 << 20
)

// PostRepository defines persistence operations for recipe posts.
type PostRepository interface {
	Search(ctx context.Context, query string, sort store.SortKey, limit int64) ([]bson.M, error)
	Top(ctx context.Context, limit int64) ([]bson.M, error)
	CountByAuthor(ctx context.Context, authorID primitive.ObjectID) (int64, error)
	CountLikedBy(ctx context.Context, userID primitive.ObjectID) (int64, error)
	ListByAuthor(ctx context.Context, authorID primitive.ObjectID, limit int64) ([]bson.M, error)
	ListLikedBy(ctx context.Context, userID primitive.ObjectID, limit int64) ([]bson.M, error)
	Get(ctx context.Context, id primitive.ObjectID) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	DeleteOwned(ctx context.Context, id, authorID primitive.ObjectID) (types.Post, error)
	Like(ctx context.Context, id, userID primitive.ObjectID) (int, error)
	Unlike(ctx context.Context, id, userID primitive.ObjectID) error
}

// ImageStore keeps recipe photos.
type ImageStore interface {
	PutImage(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, string, error)
	Delete(ctx context.Context, key string) error
}

// ReviewCleaner removes the reviews of deleted posts.
type ReviewCleaner interface {
	DeleteByPost(ctx context.Context, postID primitive.ObjectID) (int64, error)
}

// ImageEvents announces images that are no longer referenced.
type ImageEvents interface {
	PublishImageDeleted(ctx context.Context, key string) error
}

// PostService encapsulates recipe search, creation and mutation use-cases.
type PostService struct {
	repo    PostRepository
	reviews ReviewCleaner
	images  ImageStore
	events  ImageEvents
	logger  *zap.Logger
}

// NewPostService builds the service. reviews, images and events may be nil:
// without reviews nothing is cascaded on delete, without images uploads are
// refused, without events orphaned images are removed inline.
func NewPostService(repo PostRepository, reviews ReviewCleaner, images ImageStore, events ImageEvents, logger *zap.Logger) *PostService {
	return &PostService{repo: repo, reviews: reviews, images: images, events: events, logger: logger}
}

// Search returns published, public recipes whose title contains query.
// Documents that cannot be formatted are logged and left out.
func (s *PostService) Search(ctx context.Context, query, sort string) ([]types.PostSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, invalid("search query is required")
	}

	docs, err := s.repo.Search(ctx, query, store.ParseSortKey(sort), searchLimit)
	if err != nil {
		return nil, err
	}

	results := make([]types.PostSummary, 0, len(docs))
	for _, doc := range docs {
		summary, err := summarize(doc)
		if err != nil {
			s.logger.Warn("skipping malformed post", zap.Any("id", doc["_id"]), zap.Error(err))
			continue
		}
		results = append(results, summary)
	}
	return results, nil
}

func (s *PostService) Top(ctx context.Context) ([]types.RankedPost, error) {
	docs, err := s.repo.Top(ctx, topLimit)
	if err != nil {
		return nil, err
	}

	results := make([]types.RankedPost, 0, len(docs))
	for _, doc := range docs {
		post, err := ranked(doc)
		if err != nil {
			s.logger.Warn("skipping malformed post", zap.Any("id", doc["_id"]), zap.Error(err))
			continue
		}
		results = append(results, post)
	}
	return results, nil
}

// PostDetail is a post as seen by a particular user.
type PostDetail struct {
	types.Post
	UserLiked bool `json:"user_liked"`
}

// Get returns a post. Drafts and private posts are only visible to their
// author; anyone else gets store.ErrNotFound.
func (s *PostService) Get(ctx context.Context, viewerID primitive.ObjectID, rawID string) (PostDetail, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return PostDetail{}, err
	}
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return PostDetail{}, err
	}
	if !visibleTo(post, viewerID) {
		return PostDetail{}, store.ErrNotFound
	}
	return PostDetail{Post: post, UserLiked: slices.Contains(post.LikedBy, viewerID)}, nil
}

// visibleTo reports whether viewerID may see post. Drafts and private posts
// are visible to their author only.
func visibleTo(post types.Post, viewerID primitive.ObjectID) bool {
	if post.Status == types.StatusPublished && post.Visibility == types.VisibilityPublic {
		return true
	}
	return post.AuthorID == viewerID
}

// PostInput is the author-supplied content of a new recipe.
type PostInput struct {
	Title       string
	Description string
	Category    string
	Level       string
	Servings    int
	TimeMinutes int
	Tags        []string
	Ingredients []string
	Steps       []types.Step
	Status      string
	Visibility  string
}

// ImageUpload is a photo attached to a new recipe.
type ImageUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Create validates input, stores the optional image and inserts the post.
func (s *PostService) Create(ctx context.Context, authorID primitive.ObjectID, authorName string, input PostInput, image *ImageUpload) (types.Post, error) {
	post, err := newPost(input)
	if err != nil {
		return types.Post{}, err
	}
	post.AuthorID = authorID
	post.AuthorName = strings.TrimSpace(authorName)
	if post.AuthorName == "" {
		post.AuthorName = defaultAuthor
	}

	if image != nil {
		if s.images == nil {
			return types.Post{}, ErrStorageDisabled
		}
		if !strings.HasPrefix(image.ContentType, "image/") {
			return types.Post{}, invalid("image must be an image file")
		}
		if image.Size > MaxImageSize {
			return types.Post{}, invalid("image must be at most %d MiB", MaxImageSize>>20)
		}
		post.ImageKey, post.ImageURL, err = s.images.PutImage(ctx, image.Filename, image.Body, image.Size, image.ContentType)
		if err != nil {
			return types.Post{}, err
		}
	}

	created, err := s.repo.Create(ctx, post)
	if err != nil {
		if post.ImageKey != "" {
			s.removeImage(ctx, post.ImageKey)
		}
		return types.Post{}, err
	}
	return created, nil
}

func newPost(input PostInput) (types.Post, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return types.Post{}, invalid("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return types.Post{}, invalid("title must be at most %d characters", maxTitleLength)
	}
	if input.TimeMinutes < 0 {
		return types.Post{}, invalid("time must not be negative")
	}

	status := input.Status
	switch status {
	case "":
		status = types.StatusPublished
	case types.StatusPublished, types.StatusDraft:
	default:
		return types.Post{}, invalid("unknown status %q", status)
	}
	visibility := input.Visibility
	switch visibility {
	case "":
		visibility = types.VisibilityPublic
	case types.VisibilityPublic, types.VisibilityPrivate:
	default:
		return types.Post{}, invalid("unknown visibility %q", visibility)
	}

	servings := input.Servings
	if servings <= 0 {
		servings = defaultServings
	}

	steps := make([]types.Step, 0, len(input.Steps))
	for _, step := range input.Steps {
		step.Text = strings.TrimSpace(step.Text)
		if step.Text == "" {
			continue
		}
		steps = append(steps, step)
	}

	return types.Post{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Category:    strings.TrimSpace(input.Category),
		Level:       strings.TrimSpace(input.Level),
		Servings:    servings,
		TimeMinutes: input.TimeMinutes,
		Tags:        compact(input.Tags),
		Ingredients: compact(input.Ingredients),
		Steps:       steps,
		Status:      status,
		Visibility:  visibility,
	}, nil
}

// LikeResult is the like state of a post after a toggle.
type LikeResult struct {
	Likes     int  `json:"likes"`
	UserLiked bool `json:"user_liked"`
}

// ToggleLike likes the post, or unlikes it when the user already liked it.
func (s *PostService) ToggleLike(ctx context.Context, userID primitive.ObjectID, rawID string) (LikeResult, error) {
	id, err := ParseID(rawID)
	if err != nil {
		return LikeResult{}, err
	}

	likes, err := s.repo.Like(ctx, id, userID)
	if err == nil {
		return LikeResult{Likes: likes, UserLiked: true}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return LikeResult{}, err
	}

	if err := s.repo.Unlike(ctx, id, userID); err != nil {
		return LikeResult{}, err
	}
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return LikeResult{}, err
	}
	return LikeResult{Likes: post.Likes, UserLiked: false}, nil
}

// Unlike removes the user's like. It fails with store.ErrNotFound when the post
// is missing or the user had not liked it, so the counter never drifts below
// the liker set.
func (s *PostService) Unlike(ctx context.Context, userID primitive.ObjectID, rawID string) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	return s.repo.Unlike(ctx, id, userID)
}

// Delete removes a post written by userID. Missing and foreign posts both
// yield store.ErrNotFound.
func (s *PostService) Delete(ctx context.Context, userID primitive.ObjectID, rawID string) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	post, err := s.repo.DeleteOwned(ctx, id, userID)
	if err != nil {
		return err
	}
	s.removeReviews(ctx, id)
	if post.ImageKey != "" {
		s.releaseImage(ctx, post.ImageKey)
	}
	return nil
}

// removeReviews drops the reviews of a deleted post. The post is already gone,
// so failures are only logged.
func (s *PostService) removeReviews(ctx context.Context, postID primitive.ObjectID) {
	if s.reviews == nil {
		return
	}
	if _, err := s.reviews.DeleteByPost(ctx, postID); err != nil {
		s.logger.Warn("failed to delete reviews of removed post", zap.String("post_id", postID.Hex()), zap.Error(err))
	}
}

// releaseImage hands the key to the cleanup worker, falling back to an inline
// delete when no broker is configured or publishing fails.
func (s *PostService) releaseImage(ctx context.Context, key string) {
	if s.events != nil {
		err := s.events.PublishImageDeleted(ctx, key)
		if err == nil {
			return
		}
		s.logger.Warn("failed to publish image cleanup", zap.String("key", key), zap.Error(err))
	}
	s.removeImage(ctx, key)
}

func (s *PostService) removeImage(ctx context.Context, key string) {
	if s.images == nil {
		s.logger.Warn("image left behind, storage not configured", zap.String("key", key))
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("failed to delete image", zap.String("key", key), zap.Error(err))
	}
}

func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
