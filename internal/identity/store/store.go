package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stubbl/identity/internal/identity/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrConcurrencyFailure means an update or delete matched no document:
	// another writer deleted it or the identifier no longer matches.
	ErrConcurrencyFailure = errors.New("store: optimistic concurrency failure, object has been modified")

	// ErrInvalidArgument is returned before any I/O when a required argument is missing.
	ErrInvalidArgument = errors.New("store: invalid argument")
)

// InvalidArgument names the missing argument in an ErrInvalidArgument.
func InvalidArgument(name string) error {
	return fmt.Errorf("%w: %s is required", ErrInvalidArgument, name)
}

// CheckContext returns the context error if the caller already gave up.
// Every store operation calls it before touching the aggregate or the database.
func CheckContext(ctx context.Context) error {
	return ctx.Err()
}

// Store is the root data access interface. The mongo driver implements it;
// each sub-store is bound to one collection.
type Store interface {
	Users() Users
	Roles() Roles
	PersistedGrants() PersistedGrants
	Clients() Clients

	// EnsureIndexes creates the unique indexes the stores rely on. Safe to
	// call on every start.
	EnsureIndexes(ctx context.Context) error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error

	// Close releases the underlying client.
	Close(ctx context.Context) error
}

// UserStore is the base user contract: lifecycle plus the name accessors.
type UserStore interface {
	// Create inserts u, assigning u.ID when empty. Duplicate normalized
	// usernames or emails fail with ErrAlreadyExists.
	Create(ctx context.Context, u *domain.User) error

	// Update replaces the whole document. ErrConcurrencyFailure when no
	// document with u.ID exists any more.
	Update(ctx context.Context, u *domain.User) error

	// Delete removes the document. ErrConcurrencyFailure when it was already gone.
	Delete(ctx context.Context, u *domain.User) error

	// FindByID returns ErrNotFound for both unknown and malformed identifiers.
	FindByID(ctx context.Context, id string) (*domain.User, error)
	FindByName(ctx context.Context, normalizedUsername string) (*domain.User, error)

	GetUserID(ctx context.Context, u *domain.User) (string, error)
	GetUserName(ctx context.Context, u *domain.User) (string, error)
	SetUserName(ctx context.Context, u *domain.User, username string) error
	GetNormalizedUserName(ctx context.Context, u *domain.User) (string, error)
	SetNormalizedUserName(ctx context.Context, u *domain.User, normalized string) error
}

// QueryableUsers exposes every user for administrative listing.
type QueryableUsers interface {
	List(ctx context.Context) ([]*domain.User, error)
}

type UserClaims interface {
	AddClaims(ctx context.Context, u *domain.User, claims []domain.Claim) error
	GetClaims(ctx context.Context, u *domain.User) ([]domain.Claim, error)
	RemoveClaims(ctx context.Context, u *domain.User, claims []domain.Claim) error
	ReplaceClaim(ctx context.Context, u *domain.User, claim, newClaim domain.Claim) error
	GetUsersForClaim(ctx context.Context, claim domain.Claim) ([]*domain.User, error)
}

type UserLogins interface {
	AddLogin(ctx context.Context, u *domain.User, login domain.UserLogin) error
	GetLogins(ctx context.Context, u *domain.User) ([]domain.UserLogin, error)
	RemoveLogin(ctx context.Context, u *domain.User, provider, providerKey string) error
	FindByLogin(ctx context.Context, provider, providerKey string) (*domain.User, error)
}

type UserPasswords interface {
	GetPasswordHash(ctx context.Context, u *domain.User) (string, error)
	SetPasswordHash(ctx context.Context, u *domain.User, hash string) error
	HasPassword(ctx context.Context, u *domain.User) (bool, error)
}

type UserLockout interface {
	GetAccessFailedCount(ctx context.Context, u *domain.User) (int, error)
	IncrementAccessFailedCount(ctx context.Context, u *domain.User) (int, error)
	ResetAccessFailedCount(ctx context.Context, u *domain.User) error
	GetLockoutEnabled(ctx context.Context, u *domain.User) (bool, error)
	SetLockoutEnabled(ctx context.Context, u *domain.User, enabled bool) error
	GetLockoutEndDate(ctx context.Context, u *domain.User) (*time.Time, error)
	SetLockoutEndDate(ctx context.Context, u *domain.User, end *time.Time) error
}

type UserRoles interface {
	AddToRole(ctx context.Context, u *domain.User, roleName string) error
	RemoveFromRole(ctx context.Context, u *domain.User, roleName string) error
	GetRoles(ctx context.Context, u *domain.User) ([]string, error)
	IsInRole(ctx context.Context, u *domain.User, roleName string) (bool, error)
	GetUsersInRole(ctx context.Context, roleName string) ([]*domain.User, error)
}

type UserSecurityStamps interface {
	GetSecurityStamp(ctx context.Context, u *domain.User) (string, error)
	SetSecurityStamp(ctx context.Context, u *domain.User, stamp string) error
}

type UserTokens interface {
	// SetToken updates the provider/name pair in place or appends it.
	SetToken(ctx context.Context, u *domain.User, provider, name, value string) error
	// GetToken reports found=false, not an error, when the pair is absent.
	GetToken(ctx context.Context, u *domain.User, provider, name string) (value string, found bool, err error)
	RemoveToken(ctx context.Context, u *domain.User, provider, name string) error
}

type UserTwoFactor interface {
	GetTwoFactorEnabled(ctx context.Context, u *domain.User) (bool, error)
	SetTwoFactorEnabled(ctx context.Context, u *domain.User, enabled bool) error
}

type UserEmails interface {
	FindByEmail(ctx context.Context, normalizedEmail string) (*domain.User, error)
	GetEmail(ctx context.Context, u *domain.User) (string, error)
	SetEmail(ctx context.Context, u *domain.User, email string) error
	GetEmailConfirmed(ctx context.Context, u *domain.User) (bool, error)
	SetEmailConfirmed(ctx context.Context, u *domain.User, confirmed bool) error
	GetNormalizedEmail(ctx context.Context, u *domain.User) (string, error)
	SetNormalizedEmail(ctx context.Context, u *domain.User, normalized string) error
}

type UserPhoneNumbers interface {
	GetPhoneNumber(ctx context.Context, u *domain.User) (string, error)
	SetPhoneNumber(ctx context.Context, u *domain.User, phone string) error
	GetPhoneNumberConfirmed(ctx context.Context, u *domain.User) (bool, error)
	SetPhoneNumberConfirmed(ctx context.Context, u *domain.User, confirmed bool) error
}

// Users is everything the identity runtime needs from a user store.
type Users interface {
	UserStore
	QueryableUsers
	UserClaims
	UserLogins
	UserPasswords
	UserLockout
	UserRoles
	UserSecurityStamps
	UserTokens
	UserTwoFactor
	UserEmails
	UserPhoneNumbers
}

type Roles interface {
	Create(ctx context.Context, r *domain.Role) error
	// Update and Delete return ErrConcurrencyFailure when no document matched.
	Update(ctx context.Context, r *domain.Role) error
	Delete(ctx context.Context, r *domain.Role) error
	FindByID(ctx context.Context, id string) (*domain.Role, error)
	FindByName(ctx context.Context, normalizedName string) (*domain.Role, error)
	List(ctx context.Context) ([]*domain.Role, error)

	GetRoleID(ctx context.Context, r *domain.Role) (string, error)
	GetRoleName(ctx context.Context, r *domain.Role) (string, error)
	SetRoleName(ctx context.Context, r *domain.Role, name string) error
	GetNormalizedRoleName(ctx context.Context, r *domain.Role) (string, error)
	SetNormalizedRoleName(ctx context.Context, r *domain.Role, normalized string) error
}

type PersistedGrants interface {
	// Store inserts a new grant document. Keys are not unique.
	Store(ctx context.Context, g *domain.PersistedGrant) error

	// Get returns the most recently created grant for key.
	Get(ctx context.Context, key string) (*domain.PersistedGrant, error)

	// GetAll lists every grant of a subject regardless of client or type.
	GetAll(ctx context.Context, subjectID string) ([]*domain.PersistedGrant, error)

	// RemoveAll revokes every grant a subject holds for a client.
	RemoveAll(ctx context.Context, subjectID, clientID string) (int64, error)

	// RemoveAllOfType narrows RemoveAll to one grant type.
	RemoveAllOfType(ctx context.Context, subjectID, clientID, grantType string) (int64, error)

	// Remove deletes every document sharing key, cleaning up duplicates.
	Remove(ctx context.Context, key string) (int64, error)

	// RemoveExpired is housekeeping: drops grants that expired at or before now.
	RemoveExpired(ctx context.Context, now time.Time) (int64, error)
}

type Clients interface {
	// FindClientByID returns the read-only client configuration.
	FindClientByID(ctx context.Context, clientID string) (domain.Client, error)
}
