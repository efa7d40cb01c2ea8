// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*
Package coerce normalizes string-typed request values into the native types a
field's shape declares.

Clients submit plain JSON, so identifiers arrive as 24-hex strings and dates as
string literals, in filters as well as in create/update bodies and raw
aggregation stages. Document rewrites those into primitive.ObjectID and
time.Time values according to the table shape. Coercion never fails: strings
that do not parse are passed through unchanged and left to the store's own
validation.
*/
package coerce

import (
	"time"

	"github.com/bakelog-tech/bakelog/core/schema"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// operators whose array values are rewritten on identifier-array fields
var identifierOperators = []string{"$in", "$all", "$nin", "$or", "$and"}

// operators whose string values are rewritten on date fields
var dateOperators = []string{"$gte", "$lte", "$gt", "$lt", "$eq", "$ne"}

// Document walks value and rewrites every field according to its declared kind.
// Nested objects and arrays not matched by a kind rule are recursed into with
// the same shape, which covers nested predicate objects such as $or branches.
// The value is modified in place and returned.
func Document(value interface{}, shape schema.Shape) interface{} {
	switch doc := value.(type) {
	case map[string]interface{}:
		for key, v := range doc {
			doc[key] = field(key, v, shape)
		}
		return doc
	case bson.M:
		for key, v := range doc {
			doc[key] = field(key, v, shape)
		}
		return doc
	case bson.D:
		for i := range doc {
			doc[i].Value = field(doc[i].Key, doc[i].Value, shape)
		}
		return doc
	case []interface{}:
		for i, v := range doc {
			doc[i] = Document(v, shape)
		}
		return doc
	case bson.A:
		for i, v := range doc {
			doc[i] = Document(v, shape)
		}
		return doc
	}
	return value
}

// Stage rewrites the values of one raw aggregation stage, keys untouched.
func Stage(stage bson.D, shape schema.Shape) bson.D {
	for i := range stage {
		stage[i].Value = Document(stage[i].Value, shape)
	}
	return stage
}

func field(key string, value interface{}, shape schema.Shape) interface{} {
	kind, ok := shape.KindOf(key)
	if !ok {
		return Document(value, shape)
	}
	switch kind {
	case schema.KindIdentifier:
		return identifier(value)
	case schema.KindIdentifierArray:
		return identifierArray(value)
	case schema.KindDate:
		return date(value)
	}
	return Document(value, shape)
}

func identifier(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if oid, err := primitive.ObjectIDFromHex(v); err == nil {
			return oid
		}
	case []interface{}:
		for i, e := range v {
			v[i] = identifier(e)
		}
	case bson.A:
		for i, e := range v {
			v[i] = identifier(e)
		}
	}
	return value
}

func identifierArray(value interface{}) interface{} {
	rewrite := func(v interface{}) interface{} {
		switch array := v.(type) {
		case []interface{}:
			for i, e := range array {
				array[i] = identifier(e)
			}
		case bson.A:
			for i, e := range array {
				array[i] = identifier(e)
			}
		}
		return v
	}
	switch doc := value.(type) {
	case map[string]interface{}:
		for _, op := range identifierOperators {
			if v, ok := doc[op]; ok {
				doc[op] = rewrite(v)
			}
		}
	case bson.M:
		for _, op := range identifierOperators {
			if v, ok := doc[op]; ok {
				doc[op] = rewrite(v)
			}
		}
	case bson.D:
		for i := range doc {
			for _, op := range identifierOperators {
				if doc[i].Key == op {
					doc[i].Value = rewrite(doc[i].Value)
				}
			}
		}
	}
	return value
}

func date(value interface{}) interface{} {
	switch v := value.(type) {
	case string:
		if t, ok := ParseTime(v); ok {
			return t
		}
	case map[string]interface{}:
		for _, op := range dateOperators {
			if s, ok := v[op].(string); ok {
				if t, ok := ParseTime(s); ok {
					v[op] = t
				}
			}
		}
	case bson.M:
		for _, op := range dateOperators {
			if s, ok := v[op].(string); ok {
				if t, ok := ParseTime(s); ok {
					v[op] = t
				}
			}
		}
	case bson.D:
		for i := range v {
			for _, op := range dateOperators {
				if v[i].Key != op {
					continue
				}
				if s, ok := v[i].Value.(string); ok {
					if t, ok := ParseTime(s); ok {
						v[i].Value = t
					}
				}
			}
		}
	}
	return value
}

// accepted date literal layouts, RFC 3339 plus the date-only and
// space-separated forms clients actually send
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime parses a date literal. The second return value reports success.
func ParseTime(s string) (time.Time, bool) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
