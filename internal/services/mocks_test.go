package services

import (
	"context"
	"io"

	"github.com/o2a/bapsim/internal/store"
	"github.com/o2a/bapsim/types"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type mockPostRepo struct {
	mock.Mock
}

func (m *mockPostRepo) Search(ctx context.Context, query string, sort store.SortKey, limit int64) ([]bson.M, error) {
	args := m.Called(ctx, query, sort, limit)
	docs, _ := args.Get(0).([]bson.M)
	return docs, args.Error(1)
}

func (m *mockPostRepo) Top(ctx context.Context, limit int64) ([]bson.M, error) {
	args := m.Called(ctx, limit)
	docs, _ := args.Get(0).([]bson.M)
	return docs, args.Error(1)
}

func (m *mockPostRepo) CountByAuthor(ctx context.Context, authorID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, authorID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPostRepo) CountLikedBy(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockPostRepo) ListByAuthor(ctx context.Context, authorID primitive.ObjectID, limit int64) ([]bson.M, error) {
	args := m.Called(ctx, authorID, limit)
	docs, _ := args.Get(0).([]bson.M)
	return docs, args.Error(1)
}

func (m *mockPostRepo) ListLikedBy(ctx context.Context, userID primitive.ObjectID, limit int64) ([]bson.M, error) {
	args := m.Called(ctx, userID, limit)
	docs, _ := args.Get(0).([]bson.M)
	return docs, args.Error(1)
}

func (m *mockPostRepo) Get(ctx context.Context, id primitive.ObjectID) (types.Post, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.Post), args.Error(1)
}

func (m *mockPostRepo) Create(ctx context.Context, post types.Post) (types.Post, error) {
	args := m.Called(ctx, post)
	return args.Get(0).(types.Post), args.Error(1)
}

func (m *mockPostRepo) DeleteOwned(ctx context.Context, id, authorID primitive.ObjectID) (types.Post, error) {
	args := m.Called(ctx, id, authorID)
	return args.Get(0).(types.Post), args.Error(1)
}

func (m *mockPostRepo) Like(ctx context.Context, id, userID primitive.ObjectID) (int, error) {
	args := m.Called(ctx, id, userID)
	return args.Int(0), args.Error(1)
}

func (m *mockPostRepo) Unlike(ctx context.Context, id, userID primitive.ObjectID) error {
	return m.Called(ctx, id, userID).Error(0)
}

type mockUserRepo struct {
	mock.Mock
}

func (m *mockUserRepo) GetByID(ctx context.Context, id primitive.ObjectID) (types.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	args := m.Called(ctx, username)
	return args.Get(0).(types.User), args.Error(1)
}

func (m *mockUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	args := m.Called(ctx, user)
	return args.Get(0).(types.User), args.Error(1)
}

type mockReviewRepo struct {
	mock.Mock
}

func (m *mockReviewRepo) ListByPost(ctx context.Context, postID primitive.ObjectID, limit int64) ([]types.Review, error) {
	args := m.Called(ctx, postID, limit)
	reviews, _ := args.Get(0).([]types.Review)
	return reviews, args.Error(1)
}

func (m *mockReviewRepo) Stats(ctx context.Context, postID primitive.ObjectID) (types.ReviewStats, error) {
	args := m.Called(ctx, postID)
	return args.Get(0).(types.ReviewStats), args.Error(1)
}

func (m *mockReviewRepo) GetByPostAndUser(ctx context.Context, postID, userID primitive.ObjectID) (types.Review, error) {
	args := m.Called(ctx, postID, userID)
	return args.Get(0).(types.Review), args.Error(1)
}

func (m *mockReviewRepo) Upsert(ctx context.Context, review types.Review) (types.Review, error) {
	args := m.Called(ctx, review)
	return args.Get(0).(types.Review), args.Error(1)
}

func (m *mockReviewRepo) DeleteOwned(ctx context.Context, id, userID primitive.ObjectID) error {
	return m.Called(ctx, id, userID).Error(0)
}

type fakeReviews struct {
	removed []primitive.ObjectID
	err     error
}

func (f *fakeReviews) DeleteByPost(_ context.Context, postID primitive.ObjectID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.removed = append(f.removed, postID)
	return 1, nil
}

type fakeImages struct {
	putKey  string
	putErr  error
	deleted []string
}

func (f *fakeImages) PutImage(_ context.Context, _ string, r io.Reader, _ int64, _ string) (string, string, error) {
	if f.putErr != nil {
		return "", "", f.putErr
	}
	_, _ = io.Copy(io.Discard, r)
	return f.putKey, "http://images/" + f.putKey, nil
}

func (f *fakeImages) Delete(_ context.Context, key string) error {
	f.deleted = append(f.deleted, key)
	return nil
}

type fakeEvents struct {
	published []string
	err       error
}

func (f *fakeEvents) PublishImageDeleted(_ context.Context, key string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, key)
	return nil
}
