package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type collectionIndexes struct {
	collection string
	models     []mongodrv.IndexModel
}

func ascending(unique bool, keys ...string) mongodrv.IndexModel {
	d := make(bson.D, 0, len(keys))
	for _, k := range keys {
		d = append(d, bson.E{Key: k, Value: 1})
	}
	m := mongodrv.IndexModel{Keys: d}
	if unique {
		m.Options = options.Index().SetUnique(true)
	}
	return m
}

var indexes = []collectionIndexes{
	{UsersCollection, []mongodrv.IndexModel{
		ascending(true, "normalizedEmailAddress"),
		ascending(true, "normalizedUsername"),
	}},
	{RolesCollection, []mongodrv.IndexModel{
		ascending(true, "normalizedName"),
	}},
	{PersistedGrantsCollection, []mongodrv.IndexModel{
		ascending(false, "key"),
		ascending(false, "subjectId", "clientId", "type"),
	}},
	{ClientsCollection, []mongodrv.IndexModel{
		ascending(false, "clientId"),
	}},
}

// EnsureIndexes creates the indexes the stores rely on. Creating an index
// that already exists with the same keys and options is a no-op on the
// server, so this runs on every start.
func EnsureIndexes(ctx context.Context, db *mongodrv.Database) error {
	for _, ci := range indexes {
		if _, err := db.Collection(ci.collection).Indexes().CreateMany(ctx, ci.models); err != nil {
			return fmt.Errorf("mongo: create indexes on %s: %w", ci.collection, err)
		}
	}
	return nil
}
