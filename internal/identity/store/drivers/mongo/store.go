package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stubbl/identity/internal/identity/metrics"
	"github.com/stubbl/identity/internal/identity/store"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

// Collection names.
const (
	UsersCollection           = "users"
	RolesCollection           = "roles"
	PersistedGrantsCollection = "persistedGrants"
	ClientsCollection         = "clients"
)

var ErrNoDatabase = errors.New("mongo: connection string does not name a database")

type Store struct {
	client *mongodrv.Client
	db     *mongodrv.Database

	users   *UserStore
	roles   *RoleStore
	grants  *PersistedGrantStore
	clients *ClientStore
}

var _ store.Store = (*Store)(nil)

// ParseDatabase returns the database name from a mongodb:// connection string.
func ParseDatabase(uri string) (string, error) {
	cs, err := connstring.ParseAndValidate(uri)
	if err != nil {
		return "", fmt.Errorf("mongo: parse connection string: %w", err)
	}
	if cs.Database == "" {
		return "", ErrNoDatabase
	}
	return cs.Database, nil
}

// Connect dials uri with the package registry and pings the primary. The URI
// must carry a database name.
func Connect(ctx context.Context, uri string) (*Store, error) {
	name, err := ParseDatabase(uri)
	if err != nil {
		return nil, err
	}

	client, err := mongodrv.Connect(options.Client().ApplyURI(uri).SetRegistry(Configure()))
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	return New(client, name), nil
}

// New binds a Store to database on an already connected client.
func New(client *mongodrv.Client, database string) *Store {
	db := client.Database(database, options.Database().SetRegistry(Configure()))
	return &Store{
		client:  client,
		db:      db,
		users:   NewUserStore(db.Collection(UsersCollection)),
		roles:   NewRoleStore(db.Collection(RolesCollection)),
		grants:  NewPersistedGrantStore(db.Collection(PersistedGrantsCollection)),
		clients: NewClientStore(db.Collection(ClientsCollection)),
	}
}

func (s *Store) Users() store.Users                     { return s.users }
func (s *Store) Roles() store.Roles                     { return s.roles }
func (s *Store) PersistedGrants() store.PersistedGrants { return s.grants }
func (s *Store) Clients() store.Clients                 { return s.clients }

// ClientImporter writes client documents. Only seeding uses it.
func (s *Store) ClientImporter() *ClientImporter {
	return NewClientImporter(s.db.Collection(ClientsCollection))
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	return EnsureIndexes(ctx, s.db)
}

// Ping verifies the database connection is still alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// observe is deferred by every operation: the start time is captured when the
// defer is registered and err is read when it fires.
func observe(collection, operation string, start time.Time, err *error) {
	metrics.ObserveStoreOperation(collection, operation, start, *err)
}
