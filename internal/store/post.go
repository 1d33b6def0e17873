package store

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/o2a/bapsim/internal/db"
	"github.com/o2a/bapsim/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SortKey selects the ordering of search results.
type SortKey string

const (
	SortByLikes  SortKey = "likes"
	SortByRecent SortKey = "recent"
	SortByTime   SortKey = "time"
)

// ParseSortKey maps a query parameter to a SortKey. Unknown values fall back
// to SortByLikes.
func ParseSortKey(raw string) SortKey {
	switch SortKey(raw) {
	case SortByRecent:
		return SortByRecent
	case SortByTime:
		return SortByTime
	default:
		return SortByLikes
	}
}

var (
	authoredProjection = bson.D{
		{Key: "title", Value: 1},
		{Key: "likes", Value: 1},
		{Key: "created_at", Value: 1},
		{Key: "category", Value: 1},
		{Key: "image_url", Value: 1},
	}
	likedProjection = bson.D{
		{Key: "title", Value: 1},
		{Key: "likes", Value: 1},
		{Key: "author_name", Value: 1},
		{Key: "category", Value: 1},
		{Key: "image_url", Value: 1},
	}
	rankingProjection = bson.D{
		{Key: "title", Value: 1},
		{Key: "likes", Value: 1},
	}
	imageKeyProjection = bson.D{{Key: "image_key", Value: 1}}
	likesProjection    = bson.D{{Key: "likes", Value: 1}}
	popularSort        = bson.D{{Key: "likes", Value: -1}, {Key: "created_at", Value: -1}}
)

// PostRepository handles persistence for recipe posts.
type PostRepository struct {
	coll *mongo.Collection
}

func NewPostRepository(database *mongo.Database) *PostRepository {
	return &PostRepository{coll: database.Collection(db.PostsCollection)}
}

// Search returns raw published, public documents whose title contains query.
// Documents are returned undecoded because legacy records do not share a
// single shape.
func (r *PostRepository) Search(ctx context.Context, query string, sort SortKey, limit int64) ([]bson.M, error) {
	opts := options.Find().SetSort(searchSort(sort)).SetLimit(limit)
	return r.findRaw(ctx, searchFilter(query), opts)
}

// Top returns the most liked published, public documents.
func (r *PostRepository) Top(ctx context.Context, limit int64) ([]bson.M, error) {
	opts := options.Find().
		SetSort(popularSort).
		SetLimit(limit).
		SetProjection(rankingProjection)
	return r.findRaw(ctx, publishedFilter(), opts)
}

func (r *PostRepository) CountByAuthor(ctx context.Context, authorID primitive.ObjectID) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.D{{Key: "author_id", Value: authorID}})
}

func (r *PostRepository) CountLikedBy(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.D{{Key: "liked_by", Value: userID}})
}

// ListByAuthor returns the newest posts written by authorID.
func (r *PostRepository) ListByAuthor(ctx context.Context, authorID primitive.ObjectID, limit int64) ([]bson.M, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetLimit(limit).
		SetProjection(authoredProjection)
	return r.findRaw(ctx, bson.D{{Key: "author_id", Value: authorID}}, opts)
}

// ListLikedBy returns the most liked posts that userID liked.
func (r *PostRepository) ListLikedBy(ctx context.Context, userID primitive.ObjectID, limit int64) ([]bson.M, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "likes", Value: -1}}).
		SetLimit(limit).
		SetProjection(likedProjection)
	return r.findRaw(ctx, bson.D{{Key: "liked_by", Value: userID}}, opts)
}

func (r *PostRepository) Get(ctx context.Context, id primitive.ObjectID) (types.Post, error) {
	var post types.Post
	err := r.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = types.NewTime(time.Now())
	post.Likes = 0
	post.LikedBy = []primitive.ObjectID{}

	if _, err := r.coll.InsertOne(ctx, post); err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// DeleteOwned removes the post only when authorID wrote it. The returned post
// carries only its ID and ImageKey. A missing post and a foreign post both
// yield ErrNotFound.
func (r *PostRepository) DeleteOwned(ctx context.Context, id, authorID primitive.ObjectID) (types.Post, error) {
	opts := options.FindOneAndDelete().SetProjection(imageKeyProjection)

	var post types.Post
	err := r.coll.FindOneAndDelete(ctx, ownedFilter(id, authorID), opts).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

// Like adds userID to the liker set and increments the counter in one update,
// returning the new counter. It returns ErrNotFound when the post does not
// exist or userID already liked it.
func (r *PostRepository) Like(ctx context.Context, id, userID primitive.ObjectID) (int, error) {
	update := bson.D{
		{Key: "$addToSet", Value: bson.D{{Key: "liked_by", Value: userID}}},
		{Key: "$inc", Value: bson.D{{Key: "likes", Value: 1}}},
	}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(likesProjection)

	var counter struct {
		Likes int `bson:"likes"`
	}
	err := r.coll.FindOneAndUpdate(ctx, notLikedFilter(id, userID), update, opts).Decode(&counter)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return counter.Likes, nil
}

// Unlike removes userID from the liker set and decrements the counter in one
// update. The filter requires membership, so the counter never moves without
// the pull. ErrNotFound is returned when nothing was modified.
func (r *PostRepository) Unlike(ctx context.Context, id, userID primitive.ObjectID) error {
	update := bson.D{
		{Key: "$pull", Value: bson.D{{Key: "liked_by", Value: userID}}},
		{Key: "$inc", Value: bson.D{{Key: "likes", Value: -1}}},
	}
	result, err := r.coll.UpdateOne(ctx, likedFilter(id, userID), update)
	if err != nil {
		return err
	}
	if result.ModifiedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostRepository) findRaw(ctx context.Context, filter bson.D, opts *options.FindOptions) ([]bson.M, error) {
	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	docs := make([]bson.M, 0)
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func publishedFilter() bson.D {
	return bson.D{
		{Key: "status", Value: types.StatusPublished},
		{Key: "visibility", Value: types.VisibilityPublic},
	}
}

// searchFilter matches the query as a literal, case-insensitive substring of
// the title.
func searchFilter(query string) bson.D {
	return append(bson.D{
		{Key: "title", Value: primitive.Regex{Pattern: regexp.QuoteMeta(query), Options: "i"}},
	}, publishedFilter()...)
}

func searchSort(key SortKey) bson.D {
	switch key {
	case SortByRecent:
		return bson.D{{Key: "created_at", Value: -1}}
	case SortByTime:
		return bson.D{{Key: "time_minutes", Value: 1}, {Key: "created_at", Value: -1}}
	default:
		return popularSort
	}
}

func ownedFilter(id, authorID primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "author_id", Value: authorID}}
}

func likedFilter(id, userID primitive.ObjectID) bson.D {
	return bson.D{{Key: "_id", Value: id}, {Key: "liked_by", Value: userID}}
}

func notLikedFilter(id, userID primitive.ObjectID) bson.D {
	return bson.D{
		{Key: "_id", Value: id},
		{Key: "liked_by", Value: bson.D{{Key: "$ne", Value: userID}}},
	}
}
