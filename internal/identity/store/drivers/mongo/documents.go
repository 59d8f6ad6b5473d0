package mongo

import (
	"errors"
	"fmt"
	"time"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
	"go.mongodb.org/mongo-driver/v2/bson"
	mongodrv "go.mongodb.org/mongo-driver/v2/mongo"
)

type claimDocument struct {
	Type  string `bson:"type"`
	Value string `bson:"value"`
}

type loginDocument struct {
	LoginProvider       string `bson:"loginProvider"`
	ProviderKey         string `bson:"providerKey"`
	ProviderDisplayName string `bson:"providerDisplayName"`
}

type tokenDocument struct {
	LoginProvider string `bson:"loginProvider"`
	Name          string `bson:"name"`
	Value         string `bson:"value"`
}

type userDocument struct {
	ID                     bson.ObjectID `bson:"_id"`
	Username               string        `bson:"username"`
	NormalizedUsername     string        `bson:"normalizedUsername"`
	EmailAddress           string        `bson:"emailAddress"`
	NormalizedEmailAddress string        `bson:"normalizedEmailAddress"`
	EmailAddressConfirmed  bool          `bson:"emailAddressConfirmed"`
	PasswordHash           string        `bson:"passwordHash,omitempty"`
	SecurityStamp          string        `bson:"securityStamp"`
	PhoneNumber            string        `bson:"phoneNumber,omitempty"`
	PhoneNumberConfirmed   bool          `bson:"phoneNumberConfirmed"`
	TwoFactorEnabled       bool          `bson:"twoFactorEnabled"`
	LockoutEnabled         bool          `bson:"lockoutEnabled"`
	LockoutEnd             *time.Time    `bson:"lockoutEnd,omitempty"`
	AccessFailedCount      int           `bson:"accessFailedCount"`
	GivenName              string        `bson:"givenName,omitempty"`
	FamilyName             string        `bson:"familyName,omitempty"`

	Claims []claimDocument `bson:"claims"`
	Logins []loginDocument `bson:"logins"`
	Tokens []tokenDocument `bson:"tokens"`
	Roles  []string        `bson:"roles"`
}

type roleDocument struct {
	ID             bson.ObjectID `bson:"_id"`
	Name           string        `bson:"name"`
	NormalizedName string        `bson:"normalizedName"`
}

type persistedGrantDocument struct {
	ID         bson.ObjectID `bson:"_id"`
	Key        string        `bson:"key"`
	Type       string        `bson:"type"`
	SubjectID  string        `bson:"subjectId"`
	ClientID   string        `bson:"clientId"`
	Data       string        `bson:"data"`
	Expiration *time.Time    `bson:"expiration,omitempty"`
}

type clientSecretDocument struct {
	Type        string     `bson:"type"`
	Value       string     `bson:"value"`
	Description string     `bson:"description,omitempty"`
	Expiration  *time.Time `bson:"expiration,omitempty"`
}

type propertyDocument struct {
	Key   string `bson:"key"`
	Value string `bson:"value"`
}

// clientDocument has no _id field: client documents are addressed by clientId
// and whatever identifier the collection carries is skipped on decode.
type clientDocument struct {
	AbsoluteRefreshTokenLifetime      int                    `bson:"absoluteRefreshTokenLifetime"`
	AccessTokenLifetime               int                    `bson:"accessTokenLifetime"`
	AccessTokenType                   domain.AccessTokenType `bson:"accessTokenType"`
	AllowAccessTokensViaBrowser       bool                   `bson:"allowAccessTokensViaBrowser"`
	AllowedCorsOrigins                []string               `bson:"allowedCorsOrigins"`
	AllowedGrantTypes                 []string               `bson:"allowedGrantTypes"`
	AllowedScopes                     []string               `bson:"allowedScopes"`
	AllowOfflineAccess                bool                   `bson:"allowOfflineAccess"`
	AllowPlainTextPkce                bool                   `bson:"allowPlainTextPkce"`
	AllowRememberConsent              bool                   `bson:"allowRememberConsent"`
	AlwaysIncludeUserClaimsInIDToken  bool                   `bson:"alwaysIncludeUserClaimsInIdToken"`
	AlwaysSendClientClaims            bool                   `bson:"alwaysSendClientClaims"`
	AuthorizationCodeLifetime         int                    `bson:"authorizationCodeLifetime"`
	BackChannelLogoutSessionRequired  bool                   `bson:"backChannelLogoutSessionRequired"`
	BackChannelLogoutURI              string                 `bson:"backChannelLogoutUri,omitempty"`
	Claims                            []claimDocument        `bson:"claims"`
	ClientClaimsPrefix                string                 `bson:"clientClaimsPrefix"`
	ClientID                          string                 `bson:"clientId"`
	ClientName                        string                 `bson:"clientName"`
	ClientSecrets                     []clientSecretDocument `bson:"clientSecrets"`
	ClientURI                         string                 `bson:"clientUri,omitempty"`
	ConsentLifetime                   *int                   `bson:"consentLifetime"`
	Enabled                           bool                   `bson:"enabled"`
	EnableLocalLogin                  bool                   `bson:"enableLocalLogin"`
	FrontChannelLogoutSessionRequired bool                   `bson:"frontChannelLogoutSessionRequired"`
	FrontChannelLogoutURI             string                 `bson:"frontChannelLogoutUri,omitempty"`
	IdentityProviderRestrictions      []string               `bson:"identityProviderRestrictions"`
	IdentityTokenLifetime             int                    `bson:"identityTokenLifetime"`
	IncludeJwtID                      bool                   `bson:"includeJwtId"`
	LogoURI                           string                 `bson:"logoUri,omitempty"`
	PairWiseSubjectSalt               string                 `bson:"pairWiseSubjectSalt,omitempty"`
	PostLogoutRedirectURIs            []string               `bson:"postLogoutRedirectUris"`
	Properties                        []propertyDocument     `bson:"properties"`
	ProtocolType                      string                 `bson:"protocolType"`
	RedirectURIs                      []string               `bson:"redirectUris"`
	RefreshTokenExpiration            domain.TokenExpiration `bson:"refreshTokenExpiration"`
	RefreshTokenUsage                 domain.TokenUsage      `bson:"refreshTokenUsage"`
	RequireClientSecret               bool                   `bson:"requireClientSecret"`
	RequireConsent                    bool                   `bson:"requireConsent"`
	RequirePkce                       bool                   `bson:"requirePkce"`
	SlidingRefreshTokenLifetime       int                    `bson:"slidingRefreshTokenLifetime"`
	UpdateAccessTokenClaimsOnRefresh  bool                   `bson:"updateAccessTokenClaimsOnRefresh"`
}

func mapNotFound(err error) error {
	if errors.Is(err, mongodrv.ErrNoDocuments) {
		return store.ErrNotFound
	}
	return err
}

// mapWriteError keeps the driver's write exception in the chain next to the
// sentinel so callers can inspect either.
func mapWriteError(err error) error {
	if mongodrv.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", store.ErrAlreadyExists, err)
	}
	return err
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func mapSlice[From, To any](in []From, f func(From) To) []To {
	out := make([]To, 0, len(in))
	for _, v := range in {
		out = append(out, f(v))
	}
	return out
}

func claimToDocument(c domain.Claim) claimDocument {
	return claimDocument{Type: c.Type, Value: c.Value}
}

func mapClaim(d claimDocument) domain.Claim {
	return domain.Claim{Type: d.Type, Value: d.Value}
}

func newUserDocument(u *domain.User, id bson.ObjectID) userDocument {
	var lockoutEnd *time.Time
	if u.LockoutEnd != nil {
		end := u.LockoutEnd.UTC()
		lockoutEnd = &end
	}
	return userDocument{
		ID:                     id,
		Username:               u.Username,
		NormalizedUsername:     u.NormalizedUsername,
		EmailAddress:           u.EmailAddress,
		NormalizedEmailAddress: u.NormalizedEmailAddress,
		EmailAddressConfirmed:  u.EmailAddressConfirmed,
		PasswordHash:           u.PasswordHash,
		SecurityStamp:          u.SecurityStamp,
		PhoneNumber:            u.PhoneNumber,
		PhoneNumberConfirmed:   u.PhoneNumberConfirmed,
		TwoFactorEnabled:       u.TwoFactorEnabled,
		LockoutEnabled:         u.LockoutEnabled,
		LockoutEnd:             lockoutEnd,
		AccessFailedCount:      u.AccessFailedCount,
		GivenName:              u.GivenName,
		FamilyName:             u.FamilyName,
		Claims:                 mapSlice(u.Claims(), claimToDocument),
		Logins: mapSlice(u.Logins(), func(l domain.UserLogin) loginDocument {
			return loginDocument{
				LoginProvider:       l.LoginProvider,
				ProviderKey:         l.ProviderKey,
				ProviderDisplayName: l.ProviderDisplayName,
			}
		}),
		Tokens: mapSlice(u.Tokens(), func(t domain.UserToken) tokenDocument {
			return tokenDocument{LoginProvider: t.LoginProvider, Name: t.Name, Value: t.Value}
		}),
		Roles: emptyIfNil(u.Roles()),
	}
}

func mapUser(d userDocument) *domain.User {
	u := &domain.User{
		ID:                     d.ID.Hex(),
		Username:               d.Username,
		NormalizedUsername:     d.NormalizedUsername,
		EmailAddress:           d.EmailAddress,
		NormalizedEmailAddress: d.NormalizedEmailAddress,
		EmailAddressConfirmed:  d.EmailAddressConfirmed,
		PasswordHash:           d.PasswordHash,
		SecurityStamp:          d.SecurityStamp,
		PhoneNumber:            d.PhoneNumber,
		PhoneNumberConfirmed:   d.PhoneNumberConfirmed,
		TwoFactorEnabled:       d.TwoFactorEnabled,
		LockoutEnabled:         d.LockoutEnabled,
		LockoutEnd:             d.LockoutEnd,
		AccessFailedCount:      d.AccessFailedCount,
		GivenName:              d.GivenName,
		FamilyName:             d.FamilyName,
	}
	u.RestoreCollections(
		mapSlice(d.Claims, mapClaim),
		mapSlice(d.Logins, func(l loginDocument) domain.UserLogin {
			return domain.UserLogin{
				LoginProvider:       l.LoginProvider,
				ProviderKey:         l.ProviderKey,
				ProviderDisplayName: l.ProviderDisplayName,
			}
		}),
		mapSlice(d.Tokens, func(t tokenDocument) domain.UserToken {
			return domain.UserToken{LoginProvider: t.LoginProvider, Name: t.Name, Value: t.Value}
		}),
		d.Roles,
	)
	return u
}

func mapRole(d roleDocument) *domain.Role {
	return &domain.Role{
		ID:             d.ID.Hex(),
		Name:           d.Name,
		NormalizedName: d.NormalizedName,
	}
}

func mapPersistedGrant(d persistedGrantDocument) *domain.PersistedGrant {
	return &domain.PersistedGrant{
		Key:          d.Key,
		Type:         d.Type,
		SubjectID:    d.SubjectID,
		ClientID:     d.ClientID,
		Data:         d.Data,
		Expiration:   d.Expiration,
		CreationTime: d.ID.Timestamp().UTC(),
	}
}

// newClientDocument carries the client defaults so fields missing from a
// stored document decode to the default rather than the zero value.
func newClientDocument() clientDocument {
	return newClientDocumentFrom(domain.NewClient())
}

func newClientDocumentFrom(c domain.Client) clientDocument {
	return clientDocument{
		AbsoluteRefreshTokenLifetime:     c.AbsoluteRefreshTokenLifetime,
		AccessTokenLifetime:              c.AccessTokenLifetime,
		AccessTokenType:                  c.AccessTokenType,
		AllowAccessTokensViaBrowser:      c.AllowAccessTokensViaBrowser,
		AllowedCorsOrigins:               emptyIfNil(c.AllowedCorsOrigins),
		AllowedGrantTypes:                emptyIfNil(c.AllowedGrantTypes),
		AllowedScopes:                    emptyIfNil(c.AllowedScopes),
		AllowOfflineAccess:               c.AllowOfflineAccess,
		AllowPlainTextPkce:               c.AllowPlainTextPkce,
		AllowRememberConsent:             c.AllowRememberConsent,
		AlwaysIncludeUserClaimsInIDToken: c.AlwaysIncludeUserClaimsInIDToken,
		AlwaysSendClientClaims:           c.AlwaysSendClientClaims,
		AuthorizationCodeLifetime:        c.AuthorizationCodeLifetime,
		BackChannelLogoutSessionRequired: c.BackChannelLogoutSessionRequired,
		BackChannelLogoutURI:             c.BackChannelLogoutURI,
		Claims:                           mapSlice(c.Claims, claimToDocument),
		ClientClaimsPrefix:               c.ClientClaimsPrefix,
		ClientID:                         c.ClientID,
		ClientName:                       c.ClientName,
		ClientSecrets: mapSlice(c.ClientSecrets, func(s domain.ClientSecret) clientSecretDocument {
			return clientSecretDocument{
				Type:        s.Type,
				Value:       s.Value,
				Description: s.Description,
				Expiration:  s.Expiration,
			}
		}),
		ClientURI:                         c.ClientURI,
		ConsentLifetime:                   c.ConsentLifetime,
		Enabled:                           c.Enabled,
		EnableLocalLogin:                  c.EnableLocalLogin,
		FrontChannelLogoutSessionRequired: c.FrontChannelLogoutSessionRequired,
		FrontChannelLogoutURI:             c.FrontChannelLogoutURI,
		IdentityProviderRestrictions:      emptyIfNil(c.IdentityProviderRestrictions),
		IdentityTokenLifetime:             c.IdentityTokenLifetime,
		IncludeJwtID:                      c.IncludeJwtID,
		LogoURI:                           c.LogoURI,
		PairWiseSubjectSalt:               c.PairWiseSubjectSalt,
		PostLogoutRedirectURIs:            emptyIfNil(c.PostLogoutRedirectURIs),
		Properties:                        mapProperties(c.Properties),
		ProtocolType:                      c.ProtocolType,
		RedirectURIs:                      emptyIfNil(c.RedirectURIs),
		RefreshTokenExpiration:            c.RefreshTokenExpiration,
		RefreshTokenUsage:                 c.RefreshTokenUsage,
		RequireClientSecret:               c.RequireClientSecret,
		RequireConsent:                    c.RequireConsent,
		RequirePkce:                       c.RequirePkce,
		SlidingRefreshTokenLifetime:       c.SlidingRefreshTokenLifetime,
		UpdateAccessTokenClaimsOnRefresh:  c.UpdateAccessTokenClaimsOnRefresh,
	}
}

// mapProperties stores the properties map as key/value pairs, the layout
// existing client documents use.
func mapProperties(props map[string]string) []propertyDocument {
	out := make([]propertyDocument, 0, len(props))
	for k, v := range props {
		out = append(out, propertyDocument{Key: k, Value: v})
	}
	return out
}

func mapClient(d clientDocument) domain.Client {
	props := make(map[string]string, len(d.Properties))
	for _, p := range d.Properties {
		props[p.Key] = p.Value
	}
	return domain.Client{
		ClientID:     d.ClientID,
		ClientName:   d.ClientName,
		ClientURI:    d.ClientURI,
		LogoURI:      d.LogoURI,
		Enabled:      d.Enabled,
		ProtocolType: d.ProtocolType,
		ClientSecrets: mapSlice(d.ClientSecrets, func(s clientSecretDocument) domain.ClientSecret {
			return domain.ClientSecret{
				Type:        s.Type,
				Value:       s.Value,
				Description: s.Description,
				Expiration:  s.Expiration,
			}
		}),
		RequireClientSecret:               d.RequireClientSecret,
		AllowedGrantTypes:                 emptyIfNil(d.AllowedGrantTypes),
		AllowedScopes:                     emptyIfNil(d.AllowedScopes),
		RedirectURIs:                      emptyIfNil(d.RedirectURIs),
		PostLogoutRedirectURIs:            emptyIfNil(d.PostLogoutRedirectURIs),
		AllowedCorsOrigins:                emptyIfNil(d.AllowedCorsOrigins),
		IdentityProviderRestrictions:      emptyIfNil(d.IdentityProviderRestrictions),
		RequireConsent:                    d.RequireConsent,
		AllowRememberConsent:              d.AllowRememberConsent,
		ConsentLifetime:                   d.ConsentLifetime,
		RequirePkce:                       d.RequirePkce,
		AllowPlainTextPkce:                d.AllowPlainTextPkce,
		AllowAccessTokensViaBrowser:       d.AllowAccessTokensViaBrowser,
		AllowOfflineAccess:                d.AllowOfflineAccess,
		EnableLocalLogin:                  d.EnableLocalLogin,
		FrontChannelLogoutURI:             d.FrontChannelLogoutURI,
		FrontChannelLogoutSessionRequired: d.FrontChannelLogoutSessionRequired,
		BackChannelLogoutURI:              d.BackChannelLogoutURI,
		BackChannelLogoutSessionRequired:  d.BackChannelLogoutSessionRequired,
		AlwaysIncludeUserClaimsInIDToken:  d.AlwaysIncludeUserClaimsInIDToken,
		IncludeJwtID:                      d.IncludeJwtID,
		Claims:                            mapSlice(d.Claims, mapClaim),
		AlwaysSendClientClaims:            d.AlwaysSendClientClaims,
		ClientClaimsPrefix:                d.ClientClaimsPrefix,
		PairWiseSubjectSalt:               d.PairWiseSubjectSalt,
		AccessTokenType:                   d.AccessTokenType,
		AccessTokenLifetime:               d.AccessTokenLifetime,
		IdentityTokenLifetime:             d.IdentityTokenLifetime,
		AuthorizationCodeLifetime:         d.AuthorizationCodeLifetime,
		AbsoluteRefreshTokenLifetime:      d.AbsoluteRefreshTokenLifetime,
		SlidingRefreshTokenLifetime:       d.SlidingRefreshTokenLifetime,
		RefreshTokenExpiration:            d.RefreshTokenExpiration,
		RefreshTokenUsage:                 d.RefreshTokenUsage,
		UpdateAccessTokenClaimsOnRefresh:  d.UpdateAccessTokenClaimsOnRefresh,
		Properties:                        props,
	}
}
