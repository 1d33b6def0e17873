package types

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User represents an account in the system.
type User struct {
	// ID is the unique identifier of the user.
	ID primitive.ObjectID `json:"id" bson:"_id,omitempty"`

	// Username is the unique login name chosen by the user.
	Username string `json:"username" bson:"username"`

	// Name is the display name shown next to the user's recipes and reviews.
	Name string `json:"name" bson:"name"`

	// Email is the user's email address. It may be empty.
	Email string `json:"email,omitempty" bson:"email,omitempty"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" bson:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}
