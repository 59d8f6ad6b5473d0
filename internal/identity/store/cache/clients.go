package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
)

// ClientStore caches client lookups of another store.Clients. Only hits are
// cached; a client that is not found is looked up again next time, so a newly
// seeded client shows up without waiting for the TTL. Changes to a client that
// is already cached, such as a re-run of seed-clients, show up once its entry
// expires.
//
// Cached clients share their slices and maps between callers and must be
// treated as read-only.
type ClientStore struct {
	next store.Clients
	c    *gocache.Cache
}

var _ store.Clients = (*ClientStore)(nil)

func NewClientStore(next store.Clients, ttl time.Duration) *ClientStore {
	return &ClientStore{
		next: next,
		c:    gocache.New(ttl, time.Minute),
	}
}

func (s *ClientStore) FindClientByID(ctx context.Context, clientID string) (domain.Client, error) {
	if err := store.CheckContext(ctx); err != nil {
		return domain.Client{}, err
	}
	if v, ok := s.c.Get(clientID); ok {
		return v.(domain.Client), nil
	}

	client, err := s.next.FindClientByID(ctx, clientID)
	if err != nil {
		return domain.Client{}, err
	}
	s.c.SetDefault(clientID, client)
	return client, nil
}

