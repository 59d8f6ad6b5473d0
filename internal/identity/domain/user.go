package domain

import (
	"slices"
	"time"
)

// Claim is a type/value pair attached to a user or injected into a client's tokens.
type Claim struct {
	Type  string
	Value string
}

// UserLogin links a local account to an external identity provider.
type UserLogin struct {
	LoginProvider       string
	ProviderKey         string
	ProviderDisplayName string
}

// UserToken is a named value stored on behalf of a login provider (for
// example the authenticator key or recovery codes).
type UserToken struct {
	LoginProvider string
	Name          string
	Value         string
}

// User is the account aggregate. The embedded claims, logins, tokens and role
// names belong to the user document and are only changed through the methods
// below; none of them persist anything, callers save the aggregate with
// store.Users.Update afterwards.
type User struct {
	ID                     string // hex ObjectID, assigned on create
	Username               string
	NormalizedUsername     string
	EmailAddress           string
	NormalizedEmailAddress string
	EmailAddressConfirmed  bool
	PasswordHash           string // argon2id PHC string, empty for external-only accounts
	SecurityStamp          string
	PhoneNumber            string
	PhoneNumberConfirmed   bool
	TwoFactorEnabled       bool
	LockoutEnabled         bool
	LockoutEnd             *time.Time
	AccessFailedCount      int

	GivenName  string
	FamilyName string

	claims []Claim
	logins []UserLogin
	tokens []UserToken
	roles  []string
}

// NewUser returns an empty aggregate with lockout enabled, which is what a
// freshly registered account gets.
func NewUser(username, email string) *User {
	return &User{
		Username:       username,
		EmailAddress:   email,
		LockoutEnabled: true,
	}
}

// RestoreCollections replaces the embedded collections wholesale. It exists
// for store drivers rebuilding an aggregate from a document.
func (u *User) RestoreCollections(claims []Claim, logins []UserLogin, tokens []UserToken, roles []string) {
	u.claims = slices.Clone(claims)
	u.logins = slices.Clone(logins)
	u.tokens = slices.Clone(tokens)
	u.roles = slices.Clone(roles)
}

// Claims returns a copy of the user's claims.
func (u *User) Claims() []Claim { return slices.Clone(u.claims) }

// Logins returns a copy of the user's external logins.
func (u *User) Logins() []UserLogin { return slices.Clone(u.logins) }

// Tokens returns a copy of the user's stored tokens.
func (u *User) Tokens() []UserToken { return slices.Clone(u.tokens) }

// Roles returns a copy of the role names the user belongs to.
func (u *User) Roles() []string { return slices.Clone(u.roles) }

func (u *User) hasClaim(c Claim) bool {
	return slices.Contains(u.claims, c)
}

// AddClaims appends the claims that are not already present (matched on
// type and value). Duplicates inside claims are collapsed too.
func (u *User) AddClaims(claims ...Claim) {
	for _, c := range claims {
		if u.hasClaim(c) {
			continue
		}
		u.claims = append(u.claims, c)
	}
}

// RemoveClaims removes every claim matching one of the given type/value pairs.
func (u *User) RemoveClaims(claims ...Claim) {
	u.claims = slices.DeleteFunc(u.claims, func(existing Claim) bool {
		return slices.Contains(claims, existing)
	})
}

// ReplaceClaim swaps old for replacement. If old is not present the user is
// left untouched; this is not an upsert.
func (u *User) ReplaceClaim(old, replacement Claim) {
	if !u.hasClaim(old) {
		return
	}
	u.RemoveClaims(old)
	u.AddClaims(replacement)
}

// SetClaim stores c, dropping any existing claims of the same type first.
func (u *User) SetClaim(c Claim) {
	u.claims = slices.DeleteFunc(u.claims, func(existing Claim) bool {
		return existing.Type == c.Type
	})
	u.claims = append(u.claims, c)
}

// AddLogin links an external login. Adding an identical triple twice is a no-op.
func (u *User) AddLogin(login UserLogin) {
	if slices.Contains(u.logins, login) {
		return
	}
	u.logins = append(u.logins, login)
}

// RemoveLogin drops every login for provider/providerKey regardless of display name.
func (u *User) RemoveLogin(provider, providerKey string) {
	u.logins = slices.DeleteFunc(u.logins, func(l UserLogin) bool {
		return l.LoginProvider == provider && l.ProviderKey == providerKey
	})
}

// FindLogin returns the first login linked for provider/providerKey.
func (u *User) FindLogin(provider, providerKey string) (UserLogin, bool) {
	i := slices.IndexFunc(u.logins, func(l UserLogin) bool {
		return l.LoginProvider == provider && l.ProviderKey == providerKey
	})
	if i < 0 {
		return UserLogin{}, false
	}
	return u.logins[i], true
}

// HasLogin reports whether a login for provider/providerKey is linked.
func (u *User) HasLogin(provider, providerKey string) bool {
	_, ok := u.FindLogin(provider, providerKey)
	return ok
}

// SetToken updates the value of an existing provider/name token in place or
// appends a new one.
func (u *User) SetToken(provider, name, value string) {
	for i := range u.tokens {
		if u.tokens[i].LoginProvider == provider && u.tokens[i].Name == name {
			u.tokens[i].Value = value
			return
		}
	}
	u.tokens = append(u.tokens, UserToken{LoginProvider: provider, Name: name, Value: value})
}

// Token returns the value stored for provider/name.
func (u *User) Token(provider, name string) (string, bool) {
	for _, t := range u.tokens {
		if t.LoginProvider == provider && t.Name == name {
			return t.Value, true
		}
	}
	return "", false
}

// RemoveToken removes every token stored under provider/name.
func (u *User) RemoveToken(provider, name string) {
	u.tokens = slices.DeleteFunc(u.tokens, func(t UserToken) bool {
		return t.LoginProvider == provider && t.Name == name
	})
}

// AddToRole adds roleName to the user. Role names are weak references; nothing
// checks that the role exists.
func (u *User) AddToRole(roleName string) {
	if slices.Contains(u.roles, roleName) {
		return
	}
	u.roles = append(u.roles, roleName)
}

// IsInRole reports whether the user references roleName.
func (u *User) IsInRole(roleName string) bool {
	return slices.Contains(u.roles, roleName)
}

// RemoveFromRole drops roleName from the user.
func (u *User) RemoveFromRole(roleName string) {
	u.roles = slices.DeleteFunc(u.roles, func(r string) bool { return r == roleName })
}

// IncrementAccessFailedCount bumps the failed sign-in counter and returns the new value.
func (u *User) IncrementAccessFailedCount() int {
	u.AccessFailedCount++
	return u.AccessFailedCount
}

// ResetAccessFailedCount zeroes the failed sign-in counter.
func (u *User) ResetAccessFailedCount() {
	u.AccessFailedCount = 0
}

// IsLockedOut reports whether lockout is enabled and the lockout end is in the future.
func (u *User) IsLockedOut(now time.Time) bool {
	return u.LockoutEnabled && u.LockoutEnd != nil && u.LockoutEnd.After(now)
}
