// internal/app/system/search/search.go
//
// Package search builds the case-insensitive substring predicates used by
// list endpoints. User input is always regex-escaped before it reaches a
// Mongo $regex, so "a+b@x.com" matches literally instead of exploding the
// query.
package search

import (
	"regexp"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Substring returns a case-insensitive substring match for one field.
func Substring(field, term string) bson.M {
	return bson.M{field: primitive.Regex{Pattern: regexp.QuoteMeta(strings.TrimSpace(term)), Options: "i"}}
}

// AnyField returns an $or predicate matching term as a case-insensitive
// substring of any of the given fields. Returns nil for a blank term.
func AnyField(term string, fields ...string) bson.M {
	term = strings.TrimSpace(term)
	if term == "" || len(fields) == 0 {
		return nil
	}
	pat := primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
	or := make([]bson.M, 0, len(fields))
	for _, f := range fields {
		or = append(or, bson.M{f: pat})
	}
	return bson.M{"$or": or}
}
