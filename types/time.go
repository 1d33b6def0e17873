package types

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Time is a creation timestamp stored as a BSON datetime. Older documents hold
// an ISO-8601 string instead, which is accepted on decode. Strings that match
// no known layout decode to the zero time.
type Time struct {
	time.Time
}

// NewTime returns t truncated to the millisecond precision of a BSON datetime.
func NewTime(t time.Time) Time {
	return Time{Time: t.UTC().Truncate(time.Millisecond)}
}

func (t Time) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(t.Time)
}

func (t *Time) UnmarshalBSONValue(typ bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: typ, Value: data}
	switch typ {
	case bson.TypeDateTime:
		t.Time = raw.Time().UTC()
	case bson.TypeString:
		t.Time = parseLegacyTime(raw.StringValue())
	case bson.TypeNull, bson.TypeUndefined:
		t.Time = time.Time{}
	default:
		return fmt.Errorf("cannot decode %s into a timestamp", typ)
	}
	return nil
}

func parseLegacyTime(value string) time.Time {
	for _, layout := range legacyTimeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.UTC()
		}
	}
	if len(value) > len("2006-01-02") {
		if parsed, err := time.Parse("2006-01-02", value[:len("2006-01-02")]); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
