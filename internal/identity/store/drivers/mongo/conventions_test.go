package mongo

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stubbl/identity/internal/identity/domain"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func encode(t *testing.T, v any) bson.Raw {
	t.Helper()
	var buf bytes.Buffer
	enc := bson.NewEncoder(bson.NewDocumentWriter(&buf))
	enc.SetRegistry(Configure())
	require.NoError(t, enc.Encode(v))
	return buf.Bytes()
}

func decode(t *testing.T, raw []byte, v any) {
	t.Helper()
	dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(raw)))
	dec.SetRegistry(Configure())
	require.NoError(t, dec.Decode(v))
}

func TestConfigureReturnsSameRegistry(t *testing.T) {
	t.Parallel()
	require.Same(t, Configure(), Configure())
}

func TestEnumsEncodeAsStrings(t *testing.T) {
	t.Parallel()

	doc := newClientDocument()
	doc.ClientID = "web"
	doc.AccessTokenType = domain.AccessTokenTypeReference
	raw := encode(t, doc)

	require.Equal(t, "Reference", raw.Lookup("accessTokenType").StringValue())
	require.Equal(t, "Absolute", raw.Lookup("refreshTokenExpiration").StringValue())
	require.Equal(t, "OneTimeOnly", raw.Lookup("refreshTokenUsage").StringValue())

	// camelCase element names
	require.Equal(t, "web", raw.Lookup("clientId").StringValue())
	require.Equal(t, int32(3600), raw.Lookup("accessTokenLifetime").Int32())
}

func TestEnumsDecodeFromNamesAndNumbers(t *testing.T) {
	t.Parallel()

	raw, err := bson.Marshal(bson.D{
		{Key: "accessTokenType", Value: "reference"},
		{Key: "refreshTokenExpiration", Value: int32(0)},
		{Key: "refreshTokenUsage", Value: int64(0)},
	})
	require.NoError(t, err)

	var doc clientDocument
	decode(t, raw, &doc)
	require.Equal(t, domain.AccessTokenTypeReference, doc.AccessTokenType)
	require.Equal(t, domain.TokenExpirationSliding, doc.RefreshTokenExpiration)
	require.Equal(t, domain.TokenUsageReUse, doc.RefreshTokenUsage)

	bad, err := bson.Marshal(bson.D{{Key: "refreshTokenUsage", Value: "Sometimes"}})
	require.NoError(t, err)
	dec := bson.NewDecoder(bson.NewDocumentReader(bytes.NewReader(bad)))
	dec.SetRegistry(Configure())
	require.Error(t, dec.Decode(&doc))
}

func TestSparseClientDocumentKeepsDefaults(t *testing.T) {
	t.Parallel()

	raw, err := bson.Marshal(bson.D{
		{Key: "_id", Value: int32(7)},
		{Key: "clientId", Value: "legacy"},
		{Key: "accessTokenLifetime", Value: int32(60)},
		{Key: "someRetiredSetting", Value: true},
	})
	require.NoError(t, err)

	doc := newClientDocument()
	decode(t, raw, &doc)
	c := mapClient(doc)

	require.Equal(t, "legacy", c.ClientID)
	require.Equal(t, 60, c.AccessTokenLifetime)
	require.Equal(t, domain.DefaultIdentityTokenLifetime, c.IdentityTokenLifetime)
	require.Equal(t, domain.DefaultSlidingRefreshTokenLifetime, c.SlidingRefreshTokenLifetime)
	require.True(t, c.Enabled)
	require.True(t, c.RequireConsent)
	require.Equal(t, "oidc", c.ProtocolType)
	require.Equal(t, domain.TokenUsageOneTimeOnly, c.RefreshTokenUsage)
	require.NotNil(t, c.AllowedScopes)
	require.Empty(t, c.Properties)
}

func TestClientDocumentMapping(t *testing.T) {
	t.Parallel()

	in := domain.NewClient()
	in.ClientID = "spa"
	in.AllowedGrantTypes = []string{"authorization_code"}
	in.Claims = []domain.Claim{{Type: "tenant", Value: "stubbl"}}
	in.ClientSecrets = []domain.ClientSecret{{Type: domain.DefaultSecretType, Value: "hash", Description: "primary"}}
	in.Properties = map[string]string{"theme": "dark"}

	var out clientDocument
	decode(t, encode(t, newClientDocumentFrom(in)), &out)
	got := mapClient(out)

	require.Equal(t, in.AllowedGrantTypes, got.AllowedGrantTypes)
	require.Equal(t, in.Claims, got.Claims)
	require.Equal(t, in.ClientSecrets, got.ClientSecrets)
	require.Equal(t, in.Properties, got.Properties)
	require.True(t, got.AllowsGrantType("authorization_code"))
}
