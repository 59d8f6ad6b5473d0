package httpx_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stubbl/identity/pkg/httpx"
)

func TestChainOrder(t *testing.T) {
	var order []string
	tag := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), tag("outer"), tag("inner"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, []string{"outer", "inner", "handler"}, order)
}

func TestRequireAPIKey(t *testing.T) {
	const header = "X-Admin-API-Key"

	tests := map[string]struct {
		key    string
		sent   string
		status int
	}{
		"disabled":  {key: "", sent: "anything", status: http.StatusForbidden},
		"missing":   {key: "s3cret", sent: "", status: http.StatusUnauthorized},
		"wrong":     {key: "s3cret", sent: "guess", status: http.StatusUnauthorized},
		"accepted":  {key: "s3cret", sent: "s3cret", status: http.StatusOK},
		"truncated": {key: "s3cret", sent: "s3cre", status: http.StatusUnauthorized},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			h := httpx.RequireAPIKey(header, tt.key)(okHandler())

			req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
			if tt.sent != "" {
				req.Header.Set(header, tt.sent)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusOK {
				var body httpx.ErrorResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				require.NotEmpty(t, body.Error)
			}
		})
	}
}

func TestWriteJSONDisablesCaching(t *testing.T) {
	rec := httptest.NewRecorder()
	httpx.WriteJSON(rec, http.StatusCreated, map[string]string{"id": "1"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.JSONEq(t, `{"id":"1"}`, rec.Body.String())
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("decodes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"alice"}`))
		var p payload
		require.NoError(t, httpx.DecodeJSON(httptest.NewRecorder(), req, 1<<10, &p))
		require.Equal(t, "alice", p.Name)
	})

	t.Run("rejects unknown fields", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"alice","admin":true}`))
		var p payload
		require.Error(t, httpx.DecodeJSON(httptest.NewRecorder(), req, 1<<10, &p))
	})

	t.Run("rejects oversized bodies", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("a", 64)+`"}`))
		var p payload
		require.Error(t, httpx.DecodeJSON(httptest.NewRecorder(), req, 16, &p))
	})
}
