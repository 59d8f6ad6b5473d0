package http

import (
	"net/http"
	"time"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/pkg/httpx"
)

// SecretResponse describes a client secret without its value.
type SecretResponse struct {
	Type        string     `json:"type"`
	Description string     `json:"description,omitempty"`
	Expiration  *time.Time `json:"expiration,omitempty"`
}

type ClaimResponse struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type ClientResponse struct {
	ClientID     string `json:"client_id"`
	ClientName   string `json:"client_name,omitempty"`
	Enabled      bool   `json:"enabled"`
	ProtocolType string `json:"protocol_type"`

	RequireClientSecret bool             `json:"require_client_secret"`
	Secrets             []SecretResponse `json:"secrets"`

	AllowedGrantTypes      []string `json:"allowed_grant_types"`
	AllowedScopes          []string `json:"allowed_scopes"`
	RedirectURIs           []string `json:"redirect_uris"`
	PostLogoutRedirectURIs []string `json:"post_logout_redirect_uris"`
	AllowedCorsOrigins     []string `json:"allowed_cors_origins"`

	RequireConsent     bool `json:"require_consent"`
	RequirePkce        bool `json:"require_pkce"`
	AllowOfflineAccess bool `json:"allow_offline_access"`

	AccessTokenType              domain.AccessTokenType `json:"access_token_type"`
	AccessTokenLifetime          int                    `json:"access_token_lifetime"`
	IdentityTokenLifetime        int                    `json:"identity_token_lifetime"`
	AuthorizationCodeLifetime    int                    `json:"authorization_code_lifetime"`
	AbsoluteRefreshTokenLifetime int                    `json:"absolute_refresh_token_lifetime"`
	SlidingRefreshTokenLifetime  int                    `json:"sliding_refresh_token_lifetime"`
	RefreshTokenExpiration       domain.TokenExpiration `json:"refresh_token_expiration"`
	RefreshTokenUsage            domain.TokenUsage      `json:"refresh_token_usage"`

	Claims     []ClaimResponse   `json:"claims"`
	Properties map[string]string `json:"properties,omitempty"`
}

type ClientsHandler struct {
	Clients store.Clients
}

// HandleGet handles GET /v1/clients/{id}.
//
//	@Summary		Get a client
//	@Description	Returns the client registration. Secret values are never included.
//	@Tags			Clients
//	@Produce		json
//	@Param			id	path		string	true	"Client ID"
//	@Success		200	{object}	ClientResponse
//	@Failure		401	{object}	httpx.ErrorResponse	"Unauthorized"
//	@Failure		404	{object}	httpx.ErrorResponse	"Not Found"
//	@Failure		429	{object}	httpx.ErrorResponse	"Too Many Requests"
//	@Failure		500	{object}	httpx.ErrorResponse	"Internal Server Error"
//	@Security		AdminAPIKey
//	@Router			/v1/clients/{id} [get]
func (h *ClientsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	c, err := h.Clients.FindClientByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, r, err, "client")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, newClientResponse(c))
}

func newClientResponse(c domain.Client) ClientResponse {
	secrets := make([]SecretResponse, len(c.ClientSecrets))
	for i, s := range c.ClientSecrets {
		secrets[i] = SecretResponse{Type: s.Type, Description: s.Description, Expiration: s.Expiration}
	}

	return ClientResponse{
		ClientID:                     c.ClientID,
		ClientName:                   c.ClientName,
		Enabled:                      c.Enabled,
		ProtocolType:                 c.ProtocolType,
		RequireClientSecret:          c.RequireClientSecret,
		Secrets:                      secrets,
		AllowedGrantTypes:            nonNil(c.AllowedGrantTypes),
		AllowedScopes:                nonNil(c.AllowedScopes),
		RedirectURIs:                 nonNil(c.RedirectURIs),
		PostLogoutRedirectURIs:       nonNil(c.PostLogoutRedirectURIs),
		AllowedCorsOrigins:           nonNil(c.AllowedCorsOrigins),
		RequireConsent:               c.RequireConsent,
		RequirePkce:                  c.RequirePkce,
		AllowOfflineAccess:           c.AllowOfflineAccess,
		AccessTokenType:              c.AccessTokenType,
		AccessTokenLifetime:          c.AccessTokenLifetime,
		IdentityTokenLifetime:        c.IdentityTokenLifetime,
		AuthorizationCodeLifetime:    c.AuthorizationCodeLifetime,
		AbsoluteRefreshTokenLifetime: c.AbsoluteRefreshTokenLifetime,
		SlidingRefreshTokenLifetime:  c.SlidingRefreshTokenLifetime,
		RefreshTokenExpiration:       c.RefreshTokenExpiration,
		RefreshTokenUsage:            c.RefreshTokenUsage,
		Claims:                       claimResponses(c.Claims),
		Properties:                   c.Properties,
	}
}

func claimResponses(claims []domain.Claim) []ClaimResponse {
	out := make([]ClaimResponse, len(claims))
	for i, c := range claims {
		out[i] = ClaimResponse{Type: c.Type, Value: c.Value}
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
