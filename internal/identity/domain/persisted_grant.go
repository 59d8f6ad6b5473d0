package domain

import "time"

// Persisted grant types written by the OAuth runtime.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeReferenceToken    = "reference_token"
	GrantTypeUserConsent       = "user_consent"
)

// PersistedGrant is an opaque server-side OAuth artifact. Key is assigned by
// the runtime and is not guaranteed unique; readers resolve duplicates by
// CreationTime.
type PersistedGrant struct {
	Key          string
	Type         string
	SubjectID    string
	ClientID     string
	Data         string // serialized payload, never inspected here
	Expiration   *time.Time
	CreationTime time.Time // derived from the document identifier on read
}

// IsExpired reports whether the grant has an expiration at or before now.
func (g *PersistedGrant) IsExpired(now time.Time) bool {
	return g.Expiration != nil && !g.Expiration.After(now)
}
