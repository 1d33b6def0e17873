package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

const postsNS = "test.posts"

func TestParseSortKey(t *testing.T) {
	assert.Equal(t, SortByLikes, ParseSortKey("likes"))
	assert.Equal(t, SortByRecent, ParseSortKey("recent"))
	assert.Equal(t, SortByTime, ParseSortKey("time"))
	assert.Equal(t, SortByLikes, ParseSortKey(""))
	assert.Equal(t, SortByLikes, ParseSortKey("views"))
}

func TestSearchSort(t *testing.T) {
	assert.Equal(t, bson.D{{Key: "likes", Value: -1}, {Key: "created_at", Value: -1}}, searchSort(SortByLikes))
	assert.Equal(t, bson.D{{Key: "created_at", Value: -1}}, searchSort(SortByRecent))
	assert.Equal(t, bson.D{{Key: "time_minutes", Value: 1}, {Key: "created_at", Value: -1}}, searchSort(SortByTime))
}

func TestSearchFilter(t *testing.T) {
	filter := searchFilter("Kimchi (spicy)")

	require.Len(t, filter, 3)
	assert.Equal(t, "title", filter[0].Key)
	regex, ok := filter[0].Value.(primitive.Regex)
	require.True(t, ok)
	assert.Equal(t, `Kimchi \(spicy\)`, regex.Pattern)
	assert.Equal(t, "i", regex.Options)
	assert.Equal(t, bson.E{Key: "status", Value: "published"}, filter[1])
	assert.Equal(t, bson.E{Key: "visibility", Value: "public"}, filter[2])
}

func TestMutationFiltersCarryPredicate(t *testing.T) {
	postID := primitive.NewObjectID()
	userID := primitive.NewObjectID()

	assert.Equal(t, bson.D{{Key: "_id", Value: postID}, {Key: "author_id", Value: userID}}, ownedFilter(postID, userID))
	assert.Equal(t, bson.D{{Key: "_id", Value: postID}, {Key: "liked_by", Value: userID}}, likedFilter(postID, userID))
	assert.Equal(t, bson.D{
		{Key: "_id", Value: postID},
		{Key: "liked_by", Value: bson.D{{Key: "$ne", Value: userID}}},
	}, notLikedFilter(postID, userID))
}

func TestPostRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("search returns raw documents", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch,
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "title", Value: "Kimchi stew"}, {Key: "likes", Value: 10}, {Key: "created_at", Value: created}},
			bson.D{{Key: "_id", Value: primitive.NewObjectID()}, {Key: "title", Value: "Kimchi rice"}, {Key: "likes", Value: 5}, {Key: "created_at", Value: "2024-04-01T09:00:00"}},
		))

		docs, err := repo.Search(context.Background(), "kimchi", SortByLikes, 50)
		require.NoError(mt, err)
		require.Len(mt, docs, 2)
		assert.Equal(mt, "Kimchi stew", docs[0]["title"])
		assert.Equal(mt, "2024-04-01T09:00:00", docs[1]["created_at"])
	})

	mt.Run("count by author", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch, bson.D{{Key: "n", Value: int32(3)}}))

		count, err := repo.CountByAuthor(context.Background(), primitive.NewObjectID())
		require.NoError(mt, err)
		assert.Equal(mt, int64(3), count)
	})

	mt.Run("delete owned returns removed post", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		postID := primitive.NewObjectID()
		authorID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: postID},
			{Key: "author_id", Value: authorID},
			{Key: "title", Value: "Bibimbap"},
			{Key: "image_key", Value: "posts/a.jpg"},
		}}))

		post, err := repo.DeleteOwned(context.Background(), postID, authorID)
		require.NoError(mt, err)
		assert.Equal(mt, postID, post.ID)
		assert.Equal(mt, "posts/a.jpg", post.ImageKey)
	})

	mt.Run("delete of foreign post is not found", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.DeleteOwned(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("unlike modifies liked post", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := repo.Unlike(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
		assert.NoError(mt, err)
	})

	mt.Run("unlike without membership is not found", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.Unlike(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("like returns updated counter", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		postID := primitive.NewObjectID()
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: bson.D{
			{Key: "_id", Value: postID},
			{Key: "likes", Value: 4},
		}}))

		likes, err := repo.Like(context.Background(), postID, primitive.NewObjectID())
		require.NoError(mt, err)
		assert.Equal(mt, 4, likes)
	})

	mt.Run("like of already liked post is not found", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: nil}))

		_, err := repo.Like(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	legacyID := primitive.NewObjectID()
	legacyAuthor := primitive.NewObjectID()
	legacy := bson.D{
		{Key: "_id", Value: legacyID},
		{Key: "author_id", Value: legacyAuthor},
		{Key: "title", Value: "Japchae"},
		{Key: "likes", Value: 2},
		{Key: "image_key", Value: "posts/j.jpg"},
		{Key: "created_at", Value: "2024-05-01T10:00:00"},
	}

	mt.Run("get with legacy string created_at", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch, legacy))

		post, err := repo.Get(context.Background(), legacyID)
		require.NoError(mt, err)
		assert.Equal(mt, "Japchae", post.Title)
		assert.Equal(mt, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), post.CreatedAt.Time)
	})

	mt.Run("delete owned with legacy string created_at", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: legacy}))

		post, err := repo.DeleteOwned(context.Background(), legacyID, legacyAuthor)
		require.NoError(mt, err)
		assert.Equal(mt, legacyID, post.ID)
		assert.Equal(mt, "posts/j.jpg", post.ImageKey)
	})

	mt.Run("like with legacy string created_at", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "value", Value: legacy}))

		likes, err := repo.Like(context.Background(), legacyID, primitive.NewObjectID())
		require.NoError(mt, err)
		assert.Equal(mt, 2, likes)
	})

	mt.Run("get missing post", func(mt *mtest.T) {
		repo := NewPostRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, postsNS, mtest.FirstBatch))

		_, err := repo.Get(context.Background(), primitive.NewObjectID())
		assert.ErrorIs(mt, err, ErrNotFound)
	})
}
