package store

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/o2a/bapsim/internal/db"
	"github.com/o2a/bapsim/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ReviewRepository handles persistence for post reviews.
type ReviewRepository struct {
	coll *mongo.Collection
}

func NewReviewRepository(database *mongo.Database) *ReviewRepository {
	return &ReviewRepository{coll: database.Collection(db.ReviewsCollection)}
}

func (r *ReviewRepository) ListByPost(ctx context.Context, postID primitive.ObjectID, limit int64) ([]types.Review, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit)
	cursor, err := r.coll.Find(ctx, bson.D{{Key: "post_id", Value: postID}}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reviews := make([]types.Review, 0)
	if err := cursor.All(ctx, &reviews); err != nil {
		return nil, err
	}
	return reviews, nil
}

// Stats counts the reviews of a post and averages their rating, rounded to
// one decimal.
func (r *ReviewRepository) Stats(ctx context.Context, postID primitive.ObjectID) (types.ReviewStats, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "post_id", Value: postID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: 1}}},
			{Key: "avg", Value: bson.D{{Key: "$avg", Value: "$rating"}}},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return types.ReviewStats{}, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		Total int     `bson:"total"`
		Avg   float64 `bson:"avg"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return types.ReviewStats{}, err
	}
	if len(rows) == 0 {
		return types.ReviewStats{}, nil
	}
	return types.ReviewStats{
		TotalReviews: rows[0].Total,
		AvgRating:    math.Round(rows[0].Avg*10) / 10,
	}, nil
}

func (r *ReviewRepository) GetByPostAndUser(ctx context.Context, postID, userID primitive.ObjectID) (types.Review, error) {
	var review types.Review
	filter := bson.D{{Key: "post_id", Value: postID}, {Key: "user_id", Value: userID}}
	if err := r.coll.FindOne(ctx, filter).Decode(&review); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, err
	}
	return review, nil
}

// Upsert creates or replaces the caller's review of a post.
func (r *ReviewRepository) Upsert(ctx context.Context, review types.Review) (types.Review, error) {
	now := time.Now().UTC()
	filter := bson.D{{Key: "post_id", Value: review.PostID}, {Key: "user_id", Value: review.UserID}}
	update := bson.D{
		{Key: "$set", Value: bson.D{
			{Key: "user_name", Value: review.UserName},
			{Key: "rating", Value: review.Rating},
			{Key: "comment", Value: review.Comment},
			{Key: "updated_at", Value: now},
		}},
		{Key: "$setOnInsert", Value: bson.D{{Key: "created_at", Value: now}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var saved types.Review
	if err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&saved); err != nil {
		return types.Review{}, err
	}
	return saved, nil
}

// DeleteOwned removes a review written by userID.
func (r *ReviewRepository) DeleteOwned(ctx context.Context, id, userID primitive.ObjectID) error {
	result, err := r.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}, {Key: "user_id", Value: userID}})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByPost removes every review of a post and reports how many were removed.
func (r *ReviewRepository) DeleteByPost(ctx context.Context, postID primitive.ObjectID) (int64, error) {
	result, err := r.coll.DeleteMany(ctx, bson.D{{Key: "post_id", Value: postID}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
