// Package mongorepos implements the domain repositories on MongoDB.
package mongorepos

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/trezcool/jifunze/core"
)

// objectID parses a hex id. ok is false for ids that cannot exist in the database.
func objectID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(id)
	return oid, err == nil
}

// sortSpec turns orderings into a mongo sort document. _id breaks ties.
func sortSpec(ordering []core.DBOrdering) bson.D {
	sort := make(bson.D, 0, len(ordering)+1)
	for _, ord := range ordering {
		dir := -1
		if ord.Ascending {
			dir = 1
		}
		sort = append(sort, bson.E{Key: ord.Field, Value: dir})
	}
	return append(sort, bson.E{Key: "_id", Value: 1})
}
