package mongo

import (
	"context"
	"time"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// PersistedGrantStore keeps authorization codes, refresh and reference tokens
// and consents. Keys are not unique: every Store inserts a new document and
// lookups resolve to the newest one by _id.
type PersistedGrantStore struct {
	coll *mongodrv.Collection
}

var _ store.PersistedGrants = (*PersistedGrantStore)(nil)

func NewPersistedGrantStore(coll *mongodrv.Collection) *PersistedGrantStore {
	return &PersistedGrantStore{coll: coll}
}

func (s *PersistedGrantStore) Store(ctx context.Context, g *domain.PersistedGrant) (err error) {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if g == nil {
		return store.InvalidArgument("grant")
	}
	if g.Key == "" {
		return store.InvalidArgument("grant key")
	}
	defer observe(PersistedGrantsCollection, "store", time.Now(), &err)

	var expiration *time.Time
	if g.Expiration != nil {
		e := g.Expiration.UTC()
		expiration = &e
	}

	id := bson.NewObjectID()
	_, err = s.coll.InsertOne(ctx, persistedGrantDocument{
		ID:         id,
		Key:        g.Key,
		Type:       g.Type,
		SubjectID:  g.SubjectID,
		ClientID:   g.ClientID,
		Data:       g.Data,
		Expiration: expiration,
	})
	if err != nil {
		return mapWriteError(err)
	}
	g.CreationTime = id.Timestamp().UTC()
	return nil
}

func (s *PersistedGrantStore) Get(ctx context.Context, key string) (g *domain.PersistedGrant, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, store.InvalidArgument("grant key")
	}
	defer observe(PersistedGrantsCollection, "get", time.Now(), &err)

	var doc persistedGrantDocument
	err = s.coll.FindOne(ctx,
		bson.D{{Key: "key", Value: key}},
		options.FindOne().SetSort(bson.D{{Key: "_id", Value: -1}}),
	).Decode(&doc)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return mapPersistedGrant(doc), nil
}

func (s *PersistedGrantStore) GetAll(ctx context.Context, subjectID string) (grants []*domain.PersistedGrant, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if subjectID == "" {
		return nil, store.InvalidArgument("subject id")
	}
	defer observe(PersistedGrantsCollection, "get_all", time.Now(), &err)

	cur, err := s.coll.Find(ctx, bson.D{{Key: "subjectId", Value: subjectID}})
	if err != nil {
		return nil, err
	}
	var docs []persistedGrantDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return mapSlice(docs, mapPersistedGrant), nil
}

func (s *PersistedGrantStore) RemoveAll(ctx context.Context, subjectID, clientID string) (n int64, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return 0, err
	}
	if subjectID == "" {
		return 0, store.InvalidArgument("subject id")
	}
	if clientID == "" {
		return 0, store.InvalidArgument("client id")
	}
	defer observe(PersistedGrantsCollection, "remove_all", time.Now(), &err)

	return s.deleteMany(ctx, bson.D{
		{Key: "subjectId", Value: subjectID},
		{Key: "clientId", Value: clientID},
	})
}

func (s *PersistedGrantStore) RemoveAllOfType(ctx context.Context, subjectID, clientID, grantType string) (n int64, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return 0, err
	}
	if subjectID == "" {
		return 0, store.InvalidArgument("subject id")
	}
	if clientID == "" {
		return 0, store.InvalidArgument("client id")
	}
	if grantType == "" {
		return 0, store.InvalidArgument("grant type")
	}
	defer observe(PersistedGrantsCollection, "remove_all_of_type", time.Now(), &err)

	return s.deleteMany(ctx, bson.D{
		{Key: "subjectId", Value: subjectID},
		{Key: "clientId", Value: clientID},
		{Key: "type", Value: grantType},
	})
}

func (s *PersistedGrantStore) Remove(ctx context.Context, key string) (n int64, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return 0, err
	}
	if key == "" {
		return 0, store.InvalidArgument("grant key")
	}
	defer observe(PersistedGrantsCollection, "remove", time.Now(), &err)

	return s.deleteMany(ctx, bson.D{{Key: "key", Value: key}})
}

// RemoveExpired deletes grants whose expiration is at or before now, the same
// rule as PersistedGrant.IsExpired. Grants without an expiration never match.
func (s *PersistedGrantStore) RemoveExpired(ctx context.Context, now time.Time) (n int64, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return 0, err
	}
	defer observe(PersistedGrantsCollection, "remove_expired", time.Now(), &err)

	return s.deleteMany(ctx, bson.D{{Key: "expiration", Value: bson.D{{Key: "$lte", Value: now.UTC()}}}})
}

func (s *PersistedGrantStore) deleteMany(ctx context.Context, filter bson.D) (int64, error) {
	res, err := s.coll.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
