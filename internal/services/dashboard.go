package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/o2a/bapsim/internal/store"
	"github.com/o2a/bapsim/types"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const dashboardLimit = 20

// Summary is the header of a user's my page.
type Summary struct {
	User          types.User
	AuthoredCount int64
	LikedCount    int64
}

// DashboardService aggregates a user's own and liked recipes.
type DashboardService struct {
	users  UserRepository
	posts  PostRepository
	logger *zap.Logger
}

func NewDashboardService(users UserRepository, posts PostRepository, logger *zap.Logger) *DashboardService {
	return &DashboardService{users: users, posts: posts, logger: logger}
}

// Summary counts the user's recipes independently of the list caps. A user
// that no longer exists yields ErrSessionInvalid.
func (s *DashboardService) Summary(ctx context.Context, userID primitive.ObjectID) (Summary, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Summary{}, ErrSessionInvalid
		}
		return Summary{}, err
	}

	authoredCount, err := s.posts.CountByAuthor(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("count authored posts: %w", err)
	}
	likedCount, err := s.posts.CountLikedBy(ctx, userID)
	if err != nil {
		return Summary{}, fmt.Errorf("count liked posts: %w", err)
	}

	return Summary{User: user, AuthoredCount: authoredCount, LikedCount: likedCount}, nil
}

func (s *DashboardService) ListAuthored(ctx context.Context, userID primitive.ObjectID) ([]types.AuthoredPost, error) {
	docs, err := s.posts.ListByAuthor(ctx, userID, dashboardLimit)
	if err != nil {
		return nil, err
	}

	posts := make([]types.AuthoredPost, 0, len(docs))
	for _, doc := range docs {
		post, err := authored(doc)
		if err != nil {
			s.logger.Warn("skipping malformed post", zap.Any("id", doc["_id"]), zap.Error(err))
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func (s *DashboardService) ListLiked(ctx context.Context, userID primitive.ObjectID) ([]types.LikedPost, error) {
	docs, err := s.posts.ListLikedBy(ctx, userID, dashboardLimit)
	if err != nil {
		return nil, err
	}

	posts := make([]types.LikedPost, 0, len(docs))
	for _, doc := range docs {
		post, err := liked(doc)
		if err != nil {
			s.logger.Warn("skipping malformed post", zap.Any("id", doc["_id"]), zap.Error(err))
			continue
		}
		posts = append(posts, post)
	}
	return posts, nil
}
