package httpx

import (
	"crypto/subtle"
	"net/http"

	"github.com/stubbl/identity/pkg/slogx"
)

type Middleware func(http.Handler) http.Handler

// Chain wraps h so that the first middleware is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// RequireAPIKey rejects requests whose header does not carry key. An empty
// key disables the guarded routes entirely.
func RequireAPIKey(header, key string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				WriteError(w, http.StatusForbidden, "access_denied", "administration is disabled")
				return
			}

			got := r.Header.Get(header)
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				slogx.FromContext(r.Context()).Warn("admin api key rejected", "present", got != "")
				WriteError(w, http.StatusUnauthorized, "invalid_client", "missing or invalid "+header)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
