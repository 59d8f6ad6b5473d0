// Package storetest provides in-memory implementations of the store
// interfaces for tests of code that sits above the stores.
package storetest

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
)

// Store bundles the in-memory stores behind store.Store.
type Store struct {
	UserStore   *Users
	RoleStore   *Roles
	GrantStore  *PersistedGrants
	ClientStore *Clients

	// PingErr is returned by Ping when set.
	PingErr error
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		UserStore:   NewUsers(),
		RoleStore:   NewRoles(),
		GrantStore:  NewPersistedGrants(),
		ClientStore: NewClients(),
	}
}

func (s *Store) Users() store.Users                     { return s.UserStore }
func (s *Store) Roles() store.Roles                     { return s.RoleStore }
func (s *Store) PersistedGrants() store.PersistedGrants { return s.GrantStore }
func (s *Store) Clients() store.Clients                 { return s.ClientStore }

func (s *Store) EnsureIndexes(ctx context.Context) error { return ctx.Err() }
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.PingErr
}
func (s *Store) Close(context.Context) error { return nil }

type sequence struct {
	mu sync.Mutex
	n  int
}

func (q *sequence) next() string {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.n++
	return fmt.Sprintf("%024x", q.n)
}

func copyUser(u *domain.User) *domain.User {
	c := *u
	if u.LockoutEnd != nil {
		end := *u.LockoutEnd
		c.LockoutEnd = &end
	}
	c.RestoreCollections(u.Claims(), u.Logins(), u.Tokens(), u.Roles())
	return &c
}

// Users keeps user aggregates in a map keyed by id and enforces the unique
// normalized username and email like the mongo indexes do.
type Users struct {
	store.UserAccessors

	mu    sync.Mutex
	ids   sequence
	users map[string]*domain.User

	// UpdateErr, when set, is returned by every Update call.
	UpdateErr error
}

var _ store.Users = (*Users)(nil)

func NewUsers() *Users {
	return &Users{users: make(map[string]*domain.User)}
}

func (s *Users) conflicts(u *domain.User) bool {
	for id, other := range s.users {
		if id == u.ID {
			continue
		}
		if u.NormalizedUsername != "" && other.NormalizedUsername == u.NormalizedUsername {
			return true
		}
		if u.NormalizedEmailAddress != "" && other.NormalizedEmailAddress == u.NormalizedEmailAddress {
			return true
		}
	}
	return false
}

func (s *Users) Create(ctx context.Context, u *domain.User) error {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if u == nil {
		return store.InvalidArgument("user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyUser(u)
	if c.ID == "" {
		c.ID = s.ids.next()
	}
	if _, ok := s.users[c.ID]; ok || s.conflicts(c) {
		return store.ErrAlreadyExists
	}
	s.users[c.ID] = c
	u.ID = c.ID
	return nil
}

func (s *Users) Update(ctx context.Context, u *domain.User) error {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if u == nil {
		return store.InvalidArgument("user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.UpdateErr != nil {
		return s.UpdateErr
	}
	if _, ok := s.users[u.ID]; !ok {
		return store.ErrConcurrencyFailure
	}
	if s.conflicts(u) {
		return store.ErrAlreadyExists
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

func (s *Users) Delete(ctx context.Context, u *domain.User) error {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if u == nil {
		return store.InvalidArgument("user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; !ok {
		return store.ErrConcurrencyFailure
	}
	delete(s.users, u.ID)
	return nil
}

func (s *Users) findOne(ctx context.Context, match func(*domain.User) bool) (*domain.User, error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if match(u) {
			return copyUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Users) find(ctx context.Context, match func(*domain.User) bool) ([]*domain.User, error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*domain.User{}
	for _, u := range s.users {
		if match(u) {
			out = append(out, copyUser(u))
		}
	}
	slices.SortFunc(out, func(a, b *domain.User) int {
		return cmp.Compare(a.NormalizedUsername, b.NormalizedUsername)
	})
	return out, nil
}

func (s *Users) FindByID(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, store.InvalidArgument("user id")
	}
	return s.findOne(ctx, func(u *domain.User) bool { return u.ID == id })
}

func (s *Users) FindByName(ctx context.Context, normalizedUsername string) (*domain.User, error) {
	if normalizedUsername == "" {
		return nil, store.InvalidArgument("normalized username")
	}
	return s.findOne(ctx, func(u *domain.User) bool { return u.NormalizedUsername == normalizedUsername })
}

func (s *Users) FindByEmail(ctx context.Context, normalizedEmail string) (*domain.User, error) {
	if normalizedEmail == "" {
		return nil, store.InvalidArgument("normalized email")
	}
	return s.findOne(ctx, func(u *domain.User) bool { return u.NormalizedEmailAddress == normalizedEmail })
}

func (s *Users) FindByLogin(ctx context.Context, provider, providerKey string) (*domain.User, error) {
	if provider == "" || providerKey == "" {
		return nil, store.InvalidArgument("login provider and key")
	}
	return s.findOne(ctx, func(u *domain.User) bool { return u.HasLogin(provider, providerKey) })
}

func (s *Users) List(ctx context.Context) ([]*domain.User, error) {
	return s.find(ctx, func(*domain.User) bool { return true })
}

func (s *Users) GetUsersForClaim(ctx context.Context, claim domain.Claim) ([]*domain.User, error) {
	if claim.Type == "" {
		return nil, store.InvalidArgument("claim type")
	}
	return s.find(ctx, func(u *domain.User) bool { return slices.Contains(u.Claims(), claim) })
}

func (s *Users) GetUsersInRole(ctx context.Context, roleName string) ([]*domain.User, error) {
	if roleName == "" {
		return nil, store.InvalidArgument("role name")
	}
	return s.find(ctx, func(u *domain.User) bool { return u.IsInRole(roleName) })
}

// Roles keeps roles in a map keyed by id.
type Roles struct {
	store.RoleAccessors

	mu    sync.Mutex
	ids   sequence
	roles map[string]domain.Role
}

var _ store.Roles = (*Roles)(nil)

func NewRoles() *Roles {
	return &Roles{roles: make(map[string]domain.Role)}
}

func (s *Roles) Create(ctx context.Context, r *domain.Role) error {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return store.InvalidArgument("role")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, other := range s.roles {
		if other.NormalizedName == r.NormalizedName {
			return store.ErrAlreadyExists
		}
	}
	if r.ID == "" {
		r.ID = s.ids.next()
	}
	s.roles[r.ID] = *r
	return nil
}

func (s *Roles) Update(ctx context.Context, r *domain.Role) error {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return store.InvalidArgument("role")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[r.ID]; !ok {
		return store.ErrConcurrencyFailure
	}
	s.roles[r.ID] = *r
	return nil
}

func (s *Roles) Delete(ctx context.Context, r *domain.Role) error {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if r == nil {
		return store.InvalidArgument("role")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.roles[r.ID]; !ok {
		return store.ErrConcurrencyFailure
	}
	delete(s.roles, r.ID)
	return nil
}

func (s *Roles) findOne(ctx context.Context, match func(domain.Role) bool) (*domain.Role, error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roles {
		if match(r) {
			return &r, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Roles) FindByID(ctx context.Context, id string) (*domain.Role, error) {
	if id == "" {
		return nil, store.InvalidArgument("role id")
	}
	return s.findOne(ctx, func(r domain.Role) bool { return r.ID == id })
}

func (s *Roles) FindByName(ctx context.Context, normalizedName string) (*domain.Role, error) {
	if normalizedName == "" {
		return nil, store.InvalidArgument("normalized role name")
	}
	return s.findOne(ctx, func(r domain.Role) bool { return r.NormalizedName == normalizedName })
}

func (s *Roles) List(ctx context.Context) ([]*domain.Role, error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.Role, 0, len(s.roles))
	for _, r := range s.roles {
		out = append(out, &r)
	}
	slices.SortFunc(out, func(a, b *domain.Role) int {
		return cmp.Compare(a.NormalizedName, b.NormalizedName)
	})
	return out, nil
}

// PersistedGrants keeps grants in insertion order, which stands in for the
// ObjectID ordering of the mongo driver.
type PersistedGrants struct {
	mu     sync.Mutex
	grants []domain.PersistedGrant

	// Now stamps CreationTime on Store. Defaults to time.Now.
	Now func() time.Time
}

var _ store.PersistedGrants = (*PersistedGrants)(nil)

func NewPersistedGrants() *PersistedGrants {
	return &PersistedGrants{Now: time.Now}
}

func (s *PersistedGrants) Store(ctx context.Context, g *domain.PersistedGrant) error {
	if err := store.CheckContext(ctx); err != nil {
		return err
	}
	if g == nil {
		return store.InvalidArgument("grant")
	}
	if g.Key == "" {
		return store.InvalidArgument("grant key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	g.CreationTime = s.Now().UTC()
	s.grants = append(s.grants, *g)
	return nil
}

func (s *PersistedGrants) Get(ctx context.Context, key string) (*domain.PersistedGrant, error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, store.InvalidArgument("grant key")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.grants) - 1; i >= 0; i-- {
		if s.grants[i].Key == key {
			g := s.grants[i]
			return &g, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *PersistedGrants) GetAll(ctx context.Context, subjectID string) ([]*domain.PersistedGrant, error) {
	if err := store.CheckContext(ctx); err != nil {
		return nil, err
	}
	if subjectID == "" {
		return nil, store.InvalidArgument("subject id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []*domain.PersistedGrant{}
	for _, g := range s.grants {
		if g.SubjectID == subjectID {
			out = append(out, &g)
		}
	}
	return out, nil
}

func (s *PersistedGrants) remove(ctx context.Context, match func(domain.PersistedGrant) bool) (int64, error) {
	if err := store.CheckContext(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	before := len(s.grants)
	s.grants = slices.DeleteFunc(s.grants, match)
	return int64(before - len(s.grants)), nil
}

func (s *PersistedGrants) RemoveAll(ctx context.Context, subjectID, clientID string) (int64, error) {
	if subjectID == "" || clientID == "" {
		return 0, store.InvalidArgument("subject id and client id")
	}
	return s.remove(ctx, func(g domain.PersistedGrant) bool {
		return g.SubjectID == subjectID && g.ClientID == clientID
	})
}

func (s *PersistedGrants) RemoveAllOfType(ctx context.Context, subjectID, clientID, grantType string) (int64, error) {
	if subjectID == "" || clientID == "" || grantType == "" {
		return 0, store.InvalidArgument("subject id, client id and type")
	}
	return s.remove(ctx, func(g domain.PersistedGrant) bool {
		return g.SubjectID == subjectID && g.ClientID == clientID && g.Type == grantType
	})
}

func (s *PersistedGrants) Remove(ctx context.Context, key string) (int64, error) {
	if key == "" {
		return 0, store.InvalidArgument("grant key")
	}
	return s.remove(ctx, func(g domain.PersistedGrant) bool { return g.Key == key })
}

func (s *PersistedGrants) RemoveExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.remove(ctx, func(g domain.PersistedGrant) bool { return g.IsExpired(now) })
}

// Clients serves a fixed set of clients and doubles as a client importer.
type Clients struct {
	mu      sync.Mutex
	clients map[string]domain.Client
}

var _ store.Clients = (*Clients)(nil)

func NewClients(clients ...domain.Client) *Clients {
	s := &Clients{clients: make(map[string]domain.Client, len(clients))}
	for _, c := range clients {
		s.clients[c.ClientID] = c
	}
	return s
}

func (s *Clients) FindClientByID(ctx context.Context, clientID string) (domain.Client, error) {
	if err := store.CheckContext(ctx); err != nil {
		return domain.Client{}, err
	}
	if clientID == "" {
		return domain.Client{}, store.InvalidArgument("client id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.clients[clientID]
	if !ok {
		return domain.Client{}, store.ErrNotFound
	}
	return c, nil
}

func (s *Clients) Upsert(ctx context.Context, c domain.Client) (bool, error) {
	if err := store.CheckContext(ctx); err != nil {
		return false, err
	}
	if c.ClientID == "" {
		return false, store.InvalidArgument("client id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.clients[c.ClientID]
	s.clients[c.ClientID] = c
	return !existed, nil
}
