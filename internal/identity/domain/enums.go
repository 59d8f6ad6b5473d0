package domain

import (
	"fmt"
	"strings"
)

// AccessTokenType selects between self-contained and reference access tokens.
type AccessTokenType int

const (
	AccessTokenTypeJwt AccessTokenType = iota
	AccessTokenTypeReference
)

// TokenExpiration controls whether refresh token lifetimes slide on use.
type TokenExpiration int

const (
	TokenExpirationSliding TokenExpiration = iota
	TokenExpirationAbsolute
)

// TokenUsage controls whether refresh tokens are rotated on every use.
type TokenUsage int

const (
	TokenUsageReUse TokenUsage = iota
	TokenUsageOneTimeOnly
)

var (
	accessTokenTypeNames = []string{"Jwt", "Reference"}
	tokenExpirationNames = []string{"Sliding", "Absolute"}
	tokenUsageNames      = []string{"ReUse", "OneTimeOnly"}
)

func enumName(names []string, v int) string {
	if v < 0 || v >= len(names) {
		return fmt.Sprintf("%d", v)
	}
	return names[v]
}

func parseEnum(kind string, names []string, s string) (int, error) {
	for i, n := range names {
		if strings.EqualFold(n, s) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("domain: unknown %s %q", kind, s)
}

func (t AccessTokenType) String() string { return enumName(accessTokenTypeNames, int(t)) }
func (t TokenExpiration) String() string { return enumName(tokenExpirationNames, int(t)) }
func (t TokenUsage) String() string      { return enumName(tokenUsageNames, int(t)) }

// ParseAccessTokenType parses the case-insensitive name of an AccessTokenType.
func ParseAccessTokenType(s string) (AccessTokenType, error) {
	v, err := parseEnum("access token type", accessTokenTypeNames, s)
	return AccessTokenType(v), err
}

// ParseTokenExpiration parses the case-insensitive name of a TokenExpiration.
func ParseTokenExpiration(s string) (TokenExpiration, error) {
	v, err := parseEnum("token expiration", tokenExpirationNames, s)
	return TokenExpiration(v), err
}

// ParseTokenUsage parses the case-insensitive name of a TokenUsage.
func ParseTokenUsage(s string) (TokenUsage, error) {
	v, err := parseEnum("token usage", tokenUsageNames, s)
	return TokenUsage(v), err
}

func (t AccessTokenType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (t TokenExpiration) MarshalText() ([]byte, error) { return []byte(t.String()), nil }
func (t TokenUsage) MarshalText() ([]byte, error)      { return []byte(t.String()), nil }

func (t *AccessTokenType) UnmarshalText(b []byte) error {
	v, err := ParseAccessTokenType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t *TokenExpiration) UnmarshalText(b []byte) error {
	v, err := ParseTokenExpiration(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func (t *TokenUsage) UnmarshalText(b []byte) error {
	v, err := ParseTokenUsage(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}
