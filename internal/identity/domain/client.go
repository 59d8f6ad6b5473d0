package domain

import (
	"slices"
	"time"
)

// Defaults applied to clients whose documents omit a setting.
const (
	DefaultAbsoluteRefreshTokenLifetime = 2592000 // 30 days, seconds
	DefaultAccessTokenLifetime          = 3600
	DefaultAuthorizationCodeLifetime    = 300
	DefaultIdentityTokenLifetime        = 300
	DefaultSlidingRefreshTokenLifetime  = 1296000 // 15 days
	DefaultClientClaimsPrefix           = "client_"
	DefaultProtocolType                 = "oidc"
	DefaultSecretType                   = "SharedSecret"
)

// ClientSecret is a credential a confidential client authenticates with.
// Value holds whatever representation the runtime expects (usually a hash).
type ClientSecret struct {
	Type        string     `yaml:"type"`
	Value       string     `yaml:"value"`
	Description string     `yaml:"description"`
	Expiration  *time.Time `yaml:"expiration"`
}

// Client is the OAuth/OIDC client configuration handed to the runtime.
// Lifetimes are in seconds.
type Client struct {
	ClientID     string `yaml:"clientId"`
	ClientName   string `yaml:"clientName"`
	ClientURI    string `yaml:"clientUri"`
	LogoURI      string `yaml:"logoUri"`
	Enabled      bool   `yaml:"enabled"`
	ProtocolType string `yaml:"protocolType"`

	ClientSecrets       []ClientSecret `yaml:"clientSecrets"`
	RequireClientSecret bool           `yaml:"requireClientSecret"`

	AllowedGrantTypes            []string `yaml:"allowedGrantTypes"`
	AllowedScopes                []string `yaml:"allowedScopes"`
	RedirectURIs                 []string `yaml:"redirectUris"`
	PostLogoutRedirectURIs       []string `yaml:"postLogoutRedirectUris"`
	AllowedCorsOrigins           []string `yaml:"allowedCorsOrigins"`
	IdentityProviderRestrictions []string `yaml:"identityProviderRestrictions"`

	RequireConsent       bool `yaml:"requireConsent"`
	AllowRememberConsent bool `yaml:"allowRememberConsent"`
	ConsentLifetime      *int `yaml:"consentLifetime"`

	RequirePkce                 bool `yaml:"requirePkce"`
	AllowPlainTextPkce          bool `yaml:"allowPlainTextPkce"`
	AllowAccessTokensViaBrowser bool `yaml:"allowAccessTokensViaBrowser"`
	AllowOfflineAccess          bool `yaml:"allowOfflineAccess"`
	EnableLocalLogin            bool `yaml:"enableLocalLogin"`

	FrontChannelLogoutURI             string `yaml:"frontChannelLogoutUri"`
	FrontChannelLogoutSessionRequired bool   `yaml:"frontChannelLogoutSessionRequired"`
	BackChannelLogoutURI              string `yaml:"backChannelLogoutUri"`
	BackChannelLogoutSessionRequired  bool   `yaml:"backChannelLogoutSessionRequired"`

	AlwaysIncludeUserClaimsInIDToken bool    `yaml:"alwaysIncludeUserClaimsInIdToken"`
	IncludeJwtID                     bool    `yaml:"includeJwtId"`
	Claims                           []Claim `yaml:"claims"`
	AlwaysSendClientClaims           bool    `yaml:"alwaysSendClientClaims"`
	ClientClaimsPrefix               string  `yaml:"clientClaimsPrefix"`
	PairWiseSubjectSalt              string  `yaml:"pairWiseSubjectSalt"`

	AccessTokenType                  AccessTokenType `yaml:"accessTokenType"`
	AccessTokenLifetime              int             `yaml:"accessTokenLifetime"`
	IdentityTokenLifetime            int             `yaml:"identityTokenLifetime"`
	AuthorizationCodeLifetime        int             `yaml:"authorizationCodeLifetime"`
	AbsoluteRefreshTokenLifetime     int             `yaml:"absoluteRefreshTokenLifetime"`
	SlidingRefreshTokenLifetime      int             `yaml:"slidingRefreshTokenLifetime"`
	RefreshTokenExpiration           TokenExpiration `yaml:"refreshTokenExpiration"`
	RefreshTokenUsage                TokenUsage      `yaml:"refreshTokenUsage"`
	UpdateAccessTokenClaimsOnRefresh bool            `yaml:"updateAccessTokenClaimsOnRefresh"`

	Properties map[string]string `yaml:"properties"`
}

// NewClient returns a client carrying the runtime defaults.
func NewClient() Client {
	return Client{
		Enabled:                           true,
		ProtocolType:                      DefaultProtocolType,
		RequireClientSecret:               true,
		RequireConsent:                    true,
		AllowRememberConsent:              true,
		EnableLocalLogin:                  true,
		FrontChannelLogoutSessionRequired: true,
		BackChannelLogoutSessionRequired:  true,
		ClientClaimsPrefix:                DefaultClientClaimsPrefix,
		AccessTokenType:                   AccessTokenTypeJwt,
		AccessTokenLifetime:               DefaultAccessTokenLifetime,
		IdentityTokenLifetime:             DefaultIdentityTokenLifetime,
		AuthorizationCodeLifetime:         DefaultAuthorizationCodeLifetime,
		AbsoluteRefreshTokenLifetime:      DefaultAbsoluteRefreshTokenLifetime,
		SlidingRefreshTokenLifetime:       DefaultSlidingRefreshTokenLifetime,
		RefreshTokenExpiration:            TokenExpirationAbsolute,
		RefreshTokenUsage:                 TokenUsageOneTimeOnly,
	}
}

// AllowsGrantType reports whether grantType is in AllowedGrantTypes.
func (c *Client) AllowsGrantType(grantType string) bool {
	return slices.Contains(c.AllowedGrantTypes, grantType)
}
