package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Review is a rating with an optional comment left by a user on a post.
// A user has at most one review per post.
type Review struct {
	ID        primitive.ObjectID `json:"_id" bson:"_id,omitempty"`
	PostID    primitive.ObjectID `json:"post_id" bson:"post_id"`
	UserID    primitive.ObjectID `json:"user_id" bson:"user_id"`
	UserName  string             `json:"user_name" bson:"user_name"`
	Rating    int                `json:"rating" bson:"rating"`
	Comment   string             `json:"comment" bson:"comment"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// ReviewStats aggregates the reviews of a post.
type ReviewStats struct {
	TotalReviews int     `json:"total_reviews"`
	AvgRating    float64 `json:"avg_rating"`
}
