package types

import "go.mongodb.org/mongo-driver/bson/primitive"

const (
	StatusPublished = "published"
	StatusDraft     = "draft"

	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Post represents a recipe shared by a user.
//
// Likes is a denormalized counter of LikedBy. Both are only ever changed
// together in a single update.
type Post struct {
	// ID is the unique identifier of the post.
	ID primitive.ObjectID `json:"_id" bson:"_id,omitempty"`

	// Title is the recipe name.
	Title string `json:"title" bson:"title"`

	// AuthorID references the user who wrote the recipe.
	AuthorID primitive.ObjectID `json:"author_id" bson:"author_id"`

	// AuthorName is the author's display name at the time of writing.
	AuthorName string `json:"author_name" bson:"author_name"`

	// Description is the free-form introduction of the recipe.
	Description string `json:"desc" bson:"desc"`

	// Tags are free-form labels used for browsing.
	Tags []string `json:"tags" bson:"tags"`

	// Ingredients lists one ingredient per entry, quantity included.
	Ingredients []string `json:"ingredients" bson:"ingredients"`

	// Steps are the cooking instructions in order.
	Steps []Step `json:"steps" bson:"steps"`

	// Category is the dish category (e.g. "한식", "디저트").
	Category string `json:"category" bson:"category"`

	// Level is the difficulty label chosen by the author.
	Level string `json:"level" bson:"level"`

	// Likes is the number of users in LikedBy.
	Likes int `json:"likes" bson:"likes"`

	// TimeMinutes is the total cooking time in minutes.
	TimeMinutes int `json:"time_minutes" bson:"time_minutes"`

	// Servings is the number of portions the recipe makes.
	Servings int `json:"servings" bson:"servings"`

	// Status is either StatusPublished or StatusDraft.
	Status string `json:"status" bson:"status"`

	// Visibility is either VisibilityPublic or VisibilityPrivate.
	Visibility string `json:"visibility" bson:"visibility"`

	// CreatedAt is the timestamp at which the post was created.
	CreatedAt Time `json:"created_at" bson:"created_at"`

	// LikedBy is the set of users who liked the post.
	LikedBy []primitive.ObjectID `json:"-" bson:"liked_by"`

	// ImageURL is the public URL of the recipe photo, if any.
	ImageURL string `json:"image_url" bson:"image_url"`

	// ImageKey is the object storage key behind ImageURL.
	ImageKey string `json:"-" bson:"image_key,omitempty"`
}

// Step is a single cooking instruction.
type Step struct {
	Text    string `json:"text" bson:"text"`
	Minutes int    `json:"minutes" bson:"minutes"`
}

// PostSummary is the search result shape of a post. Every field is always
// present, defaults are filled in for missing document fields.
type PostSummary struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	AuthorName  string   `json:"author_name"`
	CreatedAt   string   `json:"created_at"`
	Likes       int      `json:"likes"`
	TimeMinutes int      `json:"time_minutes"`
	Level       string   `json:"level"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Description string   `json:"desc"`
	Servings    int      `json:"servings"`
}

// RankedPost is an entry of the most-liked ranking.
type RankedPost struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Likes int    `json:"likes"`
}

// AuthoredPost is a dashboard entry for a post written by the user.
type AuthoredPost struct {
	ID        string `json:"_id"`
	Title     string `json:"title"`
	Likes     int    `json:"likes"`
	CreatedAt string `json:"created_at,omitempty"`
	Category  string `json:"category"`
	ImageURL  string `json:"image_url,omitempty"`
}

// LikedPost is a dashboard entry for a post the user liked.
type LikedPost struct {
	ID         string `json:"_id"`
	Title      string `json:"title"`
	Likes      int    `json:"likes"`
	AuthorName string `json:"author_name"`
	Category   string `json:"category"`
	ImageURL   string `json:"image_url,omitempty"`
}
