package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/o2a/bapsim/internal/store"
	"github.com/o2a/bapsim/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	reviewLimit            = 50
	maxReviewCommentLength = 500
)

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	ListByPost(ctx context.Context, postID primitive.ObjectID, limit int64) ([]types.Review, error)
	Stats(ctx context.Context, postID primitive.ObjectID) (types.ReviewStats, error)
	GetByPostAndUser(ctx context.Context, postID, userID primitive.ObjectID) (types.Review, error)
	Upsert(ctx context.Context, review types.Review) (types.Review, error)
	DeleteOwned(ctx context.Context, id, userID primitive.ObjectID) error
}

// ReviewService encapsulates recipe review use-cases.
type ReviewService struct {
	repo  ReviewRepository
	posts PostRepository
}

func NewReviewService(repo ReviewRepository, posts PostRepository) *ReviewService {
	return &ReviewService{repo: repo, posts: posts}
}

// List returns the newest reviews of a post with its rating stats.
func (s *ReviewService) List(ctx context.Context, rawPostID string) ([]types.Review, types.ReviewStats, error) {
	postID, err := ParseID(rawPostID)
	if err != nil {
		return nil, types.ReviewStats{}, err
	}
	reviews, err := s.repo.ListByPost(ctx, postID, reviewLimit)
	if err != nil {
		return nil, types.ReviewStats{}, err
	}
	stats, err := s.repo.Stats(ctx, postID)
	if err != nil {
		return nil, types.ReviewStats{}, err
	}
	return reviews, stats, nil
}

// Mine returns the caller's review of a post, or store.ErrNotFound.
func (s *ReviewService) Mine(ctx context.Context, userID primitive.ObjectID, rawPostID string) (types.Review, error) {
	postID, err := ParseID(rawPostID)
	if err != nil {
		return types.Review{}, err
	}
	return s.repo.GetByPostAndUser(ctx, postID, userID)
}

// Save creates or replaces the caller's review of a post the caller can see.
func (s *ReviewService) Save(ctx context.Context, userID primitive.ObjectID, userName, rawPostID string, rating int, comment string) (types.Review, error) {
	postID, err := ParseID(rawPostID)
	if err != nil {
		return types.Review{}, err
	}
	if rating < 1 || rating > 5 {
		return types.Review{}, invalid("rating must be between 1 and 5")
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxReviewCommentLength {
		return types.Review{}, invalid("comment must be at most %d characters", maxReviewCommentLength)
	}
	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return types.Review{}, err
	}
	if !visibleTo(post, userID) {
		return types.Review{}, store.ErrNotFound
	}

	return s.repo.Upsert(ctx, types.Review{
		PostID:   postID,
		UserID:   userID,
		UserName: userName,
		Rating:   rating,
		Comment:  comment,
	})
}

// Delete removes the caller's review. Foreign and missing reviews both yield
// store.ErrNotFound.
func (s *ReviewService) Delete(ctx context.Context, userID primitive.ObjectID, rawID string) error {
	id, err := ParseID(rawID)
	if err != nil {
		return err
	}
	return s.repo.DeleteOwned(ctx, id, userID)
}
