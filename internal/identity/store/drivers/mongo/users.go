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

// UserStore persists user aggregates, one document per user with claims,
// logins, tokens and role names embedded.
type UserStore struct {
	store.UserAccessors
	coll *mongodrv.Collection
}

var _ store.Users = (*UserStore)(nil)

func NewUserStore(coll *mongodrv.Collection) *UserStore {
	return &UserStore{coll: coll}
}

func (s *UserStore) Create(ctx context.Context, u *domain.User) (err error) {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if u == nil {
		return store.InvalidArgument("user")
	}
	defer observe(UsersCollection, "create", time.Now(), &err)

	id := bson.NewObjectID()
	if u.ID != "" {
		if id, err = bson.ObjectIDFromHex(u.ID); err != nil {
			return fmt.Errorf("%w: user id %q is not an object id", store.ErrInvalidArgument, u.ID)
		}
	}

	if _, err = s.coll.InsertOne(ctx, newUserDocument(u, id)); err != nil {
		return mapWriteError(err)
	}
	u.ID = id.Hex()
	return nil
}

func (s *UserStore) Update(ctx context.Context, u *domain.User) (err error) {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if u == nil {
		return store.InvalidArgument("user")
	}
	defer observe(UsersCollection, "update", time.Now(), &err)

	id, err := bson.ObjectIDFromHex(u.ID)
	if err != nil {
		return store.ErrConcurrencyFailure
	}

	res, err := s.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: id}}, newUserDocument(u, id))
	if err != nil {
		return mapWriteError(err)
	}
	// MatchedCount, not ModifiedCount: saving an unchanged aggregate is fine.
	if res.MatchedCount == 0 {
		return store.ErrConcurrencyFailure
	}
	return nil
}

func (s *UserStore) Delete(ctx context.Context, u *domain.User) (err error) {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if u == nil {
		return store.InvalidArgument("user")
	}
	defer observe(UsersCollection, "delete", time.Now(), &err)

	id, err := bson.ObjectIDFromHex(u.ID)
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

func (s *UserStore) FindByID(ctx context.Context, id string) (u *domain.User, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, store.InvalidArgument("user id")
	}
	defer observe(UsersCollection, "find_by_id", time.Now(), &err)

	oid, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, store.ErrNotFound
	}
	return s.findOne(ctx, bson.D{{Key: "_id", Value: oid}})
}

func (s *UserStore) FindByName(ctx context.Context, normalizedUsername string) (u *domain.User, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if normalizedUsername == "" {
		return nil, store.InvalidArgument("normalized username")
	}
	defer observe(UsersCollection, "find_by_name", time.Now(), &err)

	return s.findOne(ctx, bson.D{{Key: "normalizedUsername", Value: normalizedUsername}})
}

func (s *UserStore) FindByEmail(ctx context.Context, normalizedEmail string) (u *domain.User, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if normalizedEmail == "" {
		return nil, store.InvalidArgument("normalized email")
	}
	defer observe(UsersCollection, "find_by_email", time.Now(), &err)

	return s.findOne(ctx, bson.D{{Key: "normalizedEmailAddress", Value: normalizedEmail}})
}

func (s *UserStore) FindByLogin(ctx context.Context, provider, providerKey string) (u *domain.User, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if provider == "" {
		return nil, store.InvalidArgument("login provider")
	}
	if providerKey == "" {
		return nil, store.InvalidArgument("provider key")
	}
	defer observe(UsersCollection, "find_by_login", time.Now(), &err)

	return s.findOne(ctx, bson.D{{Key: "logins", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
		{Key: "loginProvider", Value: provider},
		{Key: "providerKey", Value: providerKey},
	}}}}})
}

func (s *UserStore) GetUsersForClaim(ctx context.Context, claim domain.Claim) (users []*domain.User, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if claim.Type == "" {
		return nil, store.InvalidArgument("claim type")
	}
	defer observe(UsersCollection, "users_for_claim", time.Now(), &err)

	return s.find(ctx, bson.D{{Key: "claims", Value: bson.D{{Key: "$elemMatch", Value: bson.D{
		{Key: "type", Value: claim.Type},
		{Key: "value", Value: claim.Value},
	}}}}})
}

func (s *UserStore) GetUsersInRole(ctx context.Context, roleName string) (users []*domain.User, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if roleName == "" {
		return nil, store.InvalidArgument("role name")
	}
	defer observe(UsersCollection, "users_in_role", time.Now(), &err)

	return s.find(ctx, bson.D{{Key: "roles", Value: roleName}})
}

func (s *UserStore) List(ctx context.Context) (users []*domain.User, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	defer observe(UsersCollection, "list", time.Now(), &err)

	return s.find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "normalizedUsername", Value: 1}}))
}

func (s *UserStore) findOne(ctx context.Context, filter bson.D) (*domain.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		return nil, mapNotFound(err)
	}
	return mapUser(doc), nil
}

func (s *UserStore) find(ctx context.Context, filter bson.D, opts ...options.Lister[options.FindOptions]) ([]*domain.User, error) {
	cur, err := s.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	var docs []userDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return mapSlice(docs, mapUser), nil
}
