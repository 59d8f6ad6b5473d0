package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stubbl/identity/internal/identity/domain"
	identityhttp "github.com/stubbl/identity/internal/identity/http"
	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/internal/identity/store/storetest"
	"github.com/stubbl/identity/pkg/slogx"
)

const adminKey = "test-admin-key"

func newTestRouter(t *testing.T) (*identityhttp.Router, *storetest.Store) {
	t.Helper()
	st := storetest.New()
	r := identityhttp.NewRouter(st, adminKey, "test", slogx.Discard())
	r.ApplyRoutes()
	return r, st
}

func do(t *testing.T, h http.Handler, method, target string, body io.Reader, authed bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if authed {
		req.Header.Set(identityhttp.AdminKeyHeader, adminKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	r, st := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/livez", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[identityhttp.HealthResponse](t, rec).Status)

	rec = do(t, r, http.MethodGet, "/readyz", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", decode[identityhttp.HealthResponse](t, rec).Checks.Database)

	st.PingErr = errors.New("no reachable servers")
	rec = do(t, r, http.MethodGet, "/readyz", nil, false)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	resp := decode[identityhttp.HealthResponse](t, rec)
	require.Equal(t, "degraded", resp.Status)
	require.Contains(t, resp.Checks.Database, "no reachable servers")
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/metrics", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSwaggerEndpoints(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/swagger/index.html", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "swagger-ui")

	rec = do(t, r, http.MethodGet, "/swagger/doc.json", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode[map[string]any](t, rec)
	require.Equal(t, "2.0", doc["swagger"])
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	for _, p := range []string{"/v1/roles", "/v1/clients/{id}", "/v1/subjects/{subject}/grants", "/v1/grants/{key}", "/v1/users/{id}"} {
		require.Contains(t, paths, p)
	}
}

func TestAdminRoutesRequireKey(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodGet, "/v1/roles", nil, false)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	disabled := identityhttp.NewRouter(storetest.New(), "", "test", slogx.Discard())
	disabled.ApplyRoutes()
	rec = do(t, disabled, http.MethodGet, "/v1/roles", nil, true)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGrantRoutes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	r, st := newTestRouter(t)

	exp := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, g := range []domain.PersistedGrant{
		{Key: "a", Type: domain.GrantTypeRefreshToken, SubjectID: "alice", ClientID: "web", Data: "secret", Expiration: &exp},
		{Key: "b", Type: domain.GrantTypeUserConsent, SubjectID: "alice", ClientID: "web"},
		{Key: "c", Type: domain.GrantTypeRefreshToken, SubjectID: "alice", ClientID: "cli"},
		{Key: "d", Type: domain.GrantTypeRefreshToken, SubjectID: "bob", ClientID: "web"},
	} {
		require.NoError(t, st.GrantStore.Store(ctx, &g))
	}

	rec := do(t, r, http.MethodGet, "/v1/subjects/alice/grants", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), `"secret"`, "payload is not exposed")
	list := decode[identityhttp.ListGrantsResponse](t, rec)
	require.Len(t, list.Grants, 3)

	rec = do(t, r, http.MethodDelete, "/v1/subjects/alice/grants", nil, true)
	require.Equal(t, http.StatusBadRequest, rec.Code, "client_id is required")

	rec = do(t, r, http.MethodDelete, "/v1/subjects/alice/grants?client_id=web&type=user_consent", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode[identityhttp.RemovedResponse](t, rec).Removed)

	rec = do(t, r, http.MethodDelete, "/v1/subjects/alice/grants?client_id=web", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode[identityhttp.RemovedResponse](t, rec).Removed)

	rec = do(t, r, http.MethodDelete, "/v1/grants/d", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.EqualValues(t, 1, decode[identityhttp.RemovedResponse](t, rec).Removed)

	rec = do(t, r, http.MethodDelete, "/v1/grants/d", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, decode[identityhttp.RemovedResponse](t, rec).Removed)

	left, err := st.GrantStore.GetAll(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, left, 1)
	require.Equal(t, "c", left[0].Key)
}

func TestClientRoute(t *testing.T) {
	t.Parallel()
	r, st := newTestRouter(t)

	web := domain.NewClient()
	web.ClientID = "web"
	web.ClientSecrets = []domain.ClientSecret{{Type: domain.DefaultSecretType, Value: "hashed"}}
	_, err := st.ClientStore.Upsert(context.Background(), web)
	require.NoError(t, err)

	rec := do(t, r, http.MethodGet, "/v1/clients/web", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), "hashed")
	resp := decode[identityhttp.ClientResponse](t, rec)
	require.Equal(t, "web", resp.ClientID)
	require.Equal(t, domain.AccessTokenTypeJwt, resp.AccessTokenType)
	require.Contains(t, rec.Body.String(), `"access_token_type":"Jwt"`)
	require.Len(t, resp.Secrets, 1)

	rec = do(t, r, http.MethodGet, "/v1/clients/missing", nil, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRoleRoutes(t *testing.T) {
	t.Parallel()
	r, _ := newTestRouter(t)

	rec := do(t, r, http.MethodPost, "/v1/roles", strings.NewReader(`{"name":"Admin"}`), true)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[identityhttp.RoleResponse](t, rec)
	require.NotEmpty(t, created.ID)

	rec = do(t, r, http.MethodPost, "/v1/roles", strings.NewReader(`{"name":"admin"}`), true)
	require.Equal(t, http.StatusConflict, rec.Code, "normalized names are unique")

	rec = do(t, r, http.MethodPost, "/v1/roles", strings.NewReader(`{"name":"  "}`), true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodPost, "/v1/roles", strings.NewReader(`not json`), true)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, r, http.MethodGet, "/v1/roles", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []identityhttp.RoleResponse{created}, decode[identityhttp.ListRolesResponse](t, rec).Roles)
}

func TestUserRoute(t *testing.T) {
	t.Parallel()
	r, st := newTestRouter(t)

	u := domain.NewUser("alice", "alice@example.com")
	u.NormalizedUsername = "ALICE"
	u.AddToRole("admin")
	require.NoError(t, st.UserStore.Create(context.Background(), u))

	rec := do(t, r, http.MethodGet, "/v1/users/"+u.ID, nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[identityhttp.ProfileResponse](t, rec)
	require.Equal(t, u.ID, resp.Subject)
	require.Contains(t, resp.Claims, identityhttp.ClaimResponse{Type: "role", Value: "admin"})

	rec = do(t, r, http.MethodGet, "/v1/users/ffffffffffffffffffffffff", nil, true)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

type failingRoles struct {
	store.Roles
}

func (failingRoles) List(context.Context) ([]*domain.Role, error) {
	return nil, errors.New("connection reset")
}

func TestStoreErrorsAreNotLeaked(t *testing.T) {
	t.Parallel()

	h := &identityhttp.RolesHandler{Roles: failingRoles{}}
	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/v1/roles", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.NotContains(t, rec.Body.String(), "connection reset")
}
