package http

import (
	"errors"
	"net/http"

	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/pkg/httpx"
	"github.com/stubbl/identity/pkg/slogx"
)

// writeStoreError maps the store sentinels onto HTTP statuses. Anything else
// is logged and reported as a server error without details.
func writeStoreError(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpx.WriteError(w, http.StatusNotFound, "not_found", what+" not found")
	case errors.Is(err, store.ErrInvalidArgument):
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		httpx.WriteError(w, http.StatusConflict, "already_exists", what+" already exists")
	case errors.Is(err, store.ErrConcurrencyFailure):
		httpx.WriteError(w, http.StatusConflict, "conflict", what+" was modified concurrently")
	default:
		slogx.FromContext(r.Context()).Error("store operation failed", "resource", what, "error", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}
