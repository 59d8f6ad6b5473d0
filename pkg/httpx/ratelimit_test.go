package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stubbl/identity/pkg/httpx"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func serveFrom(h http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = remoteAddr
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestIPKeyExtractor(t *testing.T) {
	t.Run("remote address", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("remote address without port", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1"
		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("first X-Forwarded-For hop", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 198.51.100.1")
		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("X-Real-IP", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", " 203.0.113.2 ")
		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})
}

func TestParseRateLimitFromEnv(t *testing.T) {
	def := httpx.RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 5}

	t.Run("unset keeps defaults", func(t *testing.T) {
		require.Equal(t, def, httpx.ParseRateLimitFromEnv("ADMIN", def))
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("RATELIMIT_ADMIN_REQUESTS", "100")
		t.Setenv("RATELIMIT_ADMIN_WINDOW_SEC", "30")
		t.Setenv("RATELIMIT_ADMIN_BURST", "7")

		got := httpx.ParseRateLimitFromEnv("ADMIN", def)
		require.Equal(t, httpx.RateLimitConfig{RequestsPerWindow: 100, Window: 30 * time.Second, Burst: 7}, got)
	})

	t.Run("invalid values are ignored", func(t *testing.T) {
		t.Setenv("RATELIMIT_PROBE_REQUESTS", "lots")
		t.Setenv("RATELIMIT_PROBE_BURST", "-1")

		require.Equal(t, def, httpx.ParseRateLimitFromEnv("PROBE", def))
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Run("blocks requests over limit", func(t *testing.T) {
		config := httpx.RateLimitConfig{RequestsPerWindow: 3, Window: time.Minute, Burst: 3}
		h := httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(okHandler())

		for i := range 3 {
			require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1:12345").Code, "request %d should succeed", i+1)
		}

		rec := serveFrom(h, "192.168.1.1:12345")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		require.Equal(t, "1m0s", rec.Header().Get("X-RateLimit-Window"))
		require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		config := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
		h := httpx.RateLimitByIP(config)(okHandler())

		require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1:12345").Code)
		require.Equal(t, http.StatusTooManyRequests, serveFrom(h, "192.168.1.1:12345").Code)
		require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.2:12345").Code)
	})

	t.Run("allows request when key extractor returns empty", func(t *testing.T) {
		config := httpx.RateLimitConfig{RequestsPerWindow: 1, Window: time.Minute, Burst: 1}
		h := httpx.RateLimitMiddleware(config, func(*http.Request) string { return "" })(okHandler())

		for range 3 {
			require.Equal(t, http.StatusOK, serveFrom(h, "192.168.1.1:12345").Code)
		}
	})
}

func TestRateLimitProfiles(t *testing.T) {
	for name, config := range map[string]httpx.RateLimitConfig{
		"admin": httpx.AdminLimit,
		"probe": httpx.ProbeLimit,
	} {
		t.Run(name, func(t *testing.T) {
			require.Positive(t, config.RequestsPerWindow)
			require.Positive(t, config.Window)
			require.Positive(t, config.Burst)
		})
	}
	require.Less(t, httpx.AdminLimit.RequestsPerWindow, httpx.ProbeLimit.RequestsPerWindow)
}

func BenchmarkRateLimitMiddleware(b *testing.B) {
	config := httpx.RateLimitConfig{RequestsPerWindow: 1000000, Window: time.Minute, Burst: 1000}
	h := httpx.RateLimitByIP(config)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:12345"
	for b.Loop() {
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
}
