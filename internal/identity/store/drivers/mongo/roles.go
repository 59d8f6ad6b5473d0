package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

type RoleStore struct {
	store.RoleAccessors
	coll *mongodrv.Collection
}

var _ store.Roles = (*RoleStore)(nil)

func NewRoleStore(coll *mongodrv.Collection) *RoleStore {
	return &RoleStore{coll: coll}
}

func newRoleDocument(r *domain.Role, id bson.ObjectID) roleDocument {
	return roleDocument{ID: id, Name: r.Name, NormalizedName: r.NormalizedName}
}

func (s *RoleStore) Create(ctx context.Context, r *domain.Role) (err error) {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return store.InvalidArgument("role")
	}
	defer observe(RolesCollection, "create", time.Now(), &err)

	id := bson.NewObjectID()
	if r.ID != "" {
		if id, err = bson.ObjectIDFromHex(r.ID); err != nil {
			return fmt.Errorf("%w: role id %q is not an object id", store.ErrInvalidArgument, r.ID)
		}
	}

	if _, err = s.coll.InsertOne(ctx, newRoleDocument(r, id)); err != nil {
		return mapWriteError(err)
	}
	r.ID = id.Hex()
	return nil
}

func (s *RoleStore) Update(ctx context.Context, r *domain.Role) (err error) {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return store.InvalidArgument("role")
	}
	defer observe(RolesCollection, "update", time.Now(), &err)

	id, err := bson.ObjectIDFromHex(r.ID)
	if err != nil {
		return store.ErrConcurrencyFailure
	}

	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, newRoleDocument(r, id))
	if err != nil {
		return mapWriteError(err)
	}
	if res.MatchedCount == 0 {
		return store.ErrConcurrencyFailure
	}
	return nil
}

// Delete removes the role document only. Users keep referencing the name.
func (s *RoleStore) Delete(ctx context.Context, r *domain.Role) (err error) {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return store.InvalidArgument("role")
	}
	defer observe(RolesCollection, "delete", time.Now(), &err)

	id, err := bson.ObjectIDFromHex(r.ID)
	if err != nil {
		return store.ErrConcurrencyFailure
	}

	res, err := s.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: id}})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return store.ErrConcurrencyFailure
	}
	return nil
}

func (s *RoleStore) FindByID(ctx context.Context, id string) (r *domain.Role, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.InvalidArgument("role id")
	}
	defer observe(RolesCollection, "find_by_id", time.Now(), &err)

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *RoleStore) FindByName(ctx context.Context, normalizedName string) (r *domain.Role, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if normalizedName == "" {
		return nil, store.InvalidArgument("normalized role name")
	}
	defer observe(RolesCollection, "find_by_name", time.Now(), &err)

	return s.findOne(ctx, bson.D{{Key: "normalizedName", Value: normalizedName}})
}

func (s *RoleStore) List(ctx context.Context) (roles []*domain.Role, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	defer observe(RolesCollection, "list", time.Now(), &err)

	cur, err := s.coll.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "normalizedName", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []roleDocument
	if err = cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return mapSlice(docs, mapRole), nil
}

func (s *RoleStore) findOne(ctx context.Context, filter bson.D) (*domain.Role, error) {
	var doc roleDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapNotFound(err)
	}
	return mapRole(doc), nil
}
