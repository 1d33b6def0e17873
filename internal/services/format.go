package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/o2a/bapsim/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	dateLayout      = "2006-01-02"
	defaultTitle    = "제목 없음"
	defaultAuthor   = "익명"
	defaultServings = 1
)

var errMissingDate = errors.New("created_at is missing")

// formatDate normalizes a stored creation time to YYYY-MM-DD. Legacy
// documents store it as an ISO string, newer ones as a BSON datetime.
func formatDate(value any) (string, error) {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time().UTC().Format(dateLayout), nil
	case time.Time:
		return v.UTC().Format(dateLayout), nil
	case string:
		if len(v) > len(dateLayout) {
			return v[:len(dateLayout)], nil
		}
		return v, nil
	case nil:
		return "", errMissingDate
	default:
		return "", fmt.Errorf("unsupported created_at type %T", value)
	}
}

func summarize(doc bson.M) (types.PostSummary, error) {
	var (
		summary types.PostSummary
		err     error
	)
	if summary.ID, err = idField(doc); err != nil {
		return types.PostSummary{}, err
	}
	if summary.CreatedAt, err = formatDate(doc["created_at"]); err != nil {
		return types.PostSummary{}, err
	}

	f := fields{doc: doc}
	summary.Title = f.text("title", defaultTitle)
	summary.AuthorName = f.text("author_name", defaultAuthor)
	summary.Likes = f.number("likes", 0)
	summary.TimeMinutes = f.number("time_minutes", 0)
	summary.Level = f.text("level", "")
	summary.Category = f.text("category", "")
	summary.Tags = f.list("tags")
	summary.Description = f.text("desc", "")
	summary.Servings = f.number("servings", defaultServings)
	return summary, f.err
}

func ranked(doc bson.M) (types.RankedPost, error) {
	id, err := idField(doc)
	if err != nil {
		return types.RankedPost{}, err
	}
	f := fields{doc: doc}
	post := types.RankedPost{
		ID:    id,
		Title: f.text("title", defaultTitle),
		Likes: f.number("likes", 0),
	}
	return post, f.err
}

func authored(doc bson.M) (types.AuthoredPost, error) {
	id, err := idField(doc)
	if err != nil {
		return types.AuthoredPost{}, err
	}
	var created string
	if value, ok := doc["created_at"]; ok && value != nil {
		if created, err = formatDate(value); err != nil {
			return types.AuthoredPost{}, err
		}
	}
	f := fields{doc: doc}
	post := types.AuthoredPost{
		ID:        id,
		Title:     f.text("title", defaultTitle),
		Likes:     f.number("likes", 0),
		CreatedAt: created,
		Category:  f.text("category", ""),
		ImageURL:  f.text("image_url", ""),
	}
	return post, f.err
}

func liked(doc bson.M) (types.LikedPost, error) {
	id, err := idField(doc)
	if err != nil {
		return types.LikedPost{}, err
	}
	f := fields{doc: doc}
	post := types.LikedPost{
		ID:         id,
		Title:      f.text("title", defaultTitle),
		Likes:      f.number("likes", 0),
		AuthorName: f.text("author_name", defaultAuthor),
		Category:   f.text("category", ""),
		ImageURL:   f.text("image_url", ""),
	}
	return post, f.err
}

func idField(doc bson.M) (string, error) {
	switch id := doc["_id"].(type) {
	case primitive.ObjectID:
		return id.Hex(), nil
	case string:
		return id, nil
	default:
		return "", fmt.Errorf("unsupported _id type %T", doc["_id"])
	}
}

// fields reads optional document fields with defaults. The first type
// mismatch is kept in err.
type fields struct {
	doc bson.M
	err error
}

func (f *fields) text(key, def string) string {
	switch v := f.doc[key].(type) {
	case nil:
		return def
	case string:
		return v
	default:
		f.fail(key, v)
		return def
	}
}

func (f *fields) number(key string, def int) int {
	switch v := f.doc[key].(type) {
	case nil:
		return def
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		f.fail(key, v)
		return def
	}
}

func (f *fields) list(key string) []string {
	out := []string{}
	var items []any
	switch v := f.doc[key].(type) {
	case nil:
		return out
	case primitive.A:
		items = v
	case []any:
		items = v
	case []string:
		return append(out, v...)
	default:
		f.fail(key, v)
		return out
	}
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			f.fail(key, item)
			return []string{}
		}
		out = append(out, s)
	}
	return out
}

func (f *fields) fail(key string, value any) {
	if f.err == nil {
		f.err = fmt.Errorf("field %s has unsupported type %T", key, value)
	}
}
