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

// ClientStore is the read-only view of client configuration.
type ClientStore struct {
	coll *mongodrv.Collection
}

var _ store.Clients = (*ClientStore)(nil)

func NewClientStore(coll *mongodrv.Collection) *ClientStore {
	return &ClientStore{coll: coll}
}

func (s *ClientStore) FindClientByID(ctx context.Context, clientID string) (c domain.Client, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return domain.Client{}, err
	}
	if clientID == "" {
		return domain.Client{}, store.InvalidArgument("client id")
	}
	defer observe(ClientsCollection, "find_by_id", time.Now(), &err)

	// Decoding over the defaults leaves a sparse document's missing settings
	// at their default values.
	doc := newClientDocument()
	if err = s.coll.FindOne(ctx, bson.D{{Key: "clientId", Value: clientID}}).Decode(&doc); err != nil {
		return domain.Client{}, mapNotFound(err)
	}
	return mapClient(doc), nil
}

// ClientImporter writes whole client documents keyed by clientId. It backs
// the seed command; the identity runtime never mutates clients.
type ClientImporter struct {
	coll *mongodrv.Collection
}

func NewClientImporter(coll *mongodrv.Collection) *ClientImporter {
	return &ClientImporter{coll: coll}
}

// Upsert replaces the document with c.ClientID or inserts it. It reports
// whether a new document was created.
func (i *ClientImporter) Upsert(ctx context.Context, c domain.Client) (created bool, err error) {
	if err := store.CheckContext(ctx); err != nil {
		return false, err
	}
	if c.ClientID == "" {
		return false, store.InvalidArgument("client id")
	}
	defer observe(ClientsCollection, "upsert", time.Now(), &err)

	res, err := i.coll.ReplaceOne(ctx,
		bson.D{{Key: "clientId", Value: c.ClientID}},
		newClientDocumentFrom(c),
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return false, mapWriteError(err)
	}
	return res.UpsertedCount > 0, nil
}
