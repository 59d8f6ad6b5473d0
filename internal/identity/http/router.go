//go:generate swag init --dir ../../../ --generalInfo internal/identity/http/router.go --output ../../../api/identity --outputTypes go

package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/stubbl/identity/api/identity"
	"github.com/stubbl/identity/internal/identity/service"
	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/pkg/httpx"
	"github.com/stubbl/identity/pkg/slogx"
)

// AdminKeyHeader carries the shared secret that guards the /v1 routes.
const AdminKeyHeader = "X-Admin-API-Key"

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	adminKey     string
	logger       *slog.Logger

	store store.Store

	// Clients overrides store.Clients(), typically with the cached store.
	Clients        store.Clients
	ProfileService *service.ProfileService
	Metrics        http.Handler

	AdminLimit httpx.RateLimitConfig
	ProbeLimit httpx.RateLimitConfig
}

func NewRouter(st store.Store, adminKey, buildVersion string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		adminKey:     adminKey,
		logger:       logger,
		store:        st,
		Clients:      st.Clients(),
		Metrics:      promhttp.Handler(),
		AdminLimit:   httpx.AdminLimit,
		ProbeLimit:   httpx.ProbeLimit,
	}
	r.ProfileService = &service.ProfileService{Users: st.Users()}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerSystem()
	r.registerGrants()
	r.registerClients()
	r.registerRoles()
	r.registerUsers()
}

// ServeHTTP applies the global middleware chain.
//
//	@title			Stubbl Identity Admin API
//	@version		0.1.0
//	@description	Administrative surface over the identity store: persisted grants, clients, roles and user profiles.
//
//	@BasePath		/
//
//	@schemes		http https
//
//	@securityDefinitions.apikey	AdminAPIKey
//	@in							header
//	@name						X-Admin-API-Key
//	@description				Shared admin secret configured with IDENTITY_ADMIN_API_KEY.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// admin rate limits before checking the key so that guessing is throttled too.
func (r *Router) admin(h http.HandlerFunc) http.Handler {
	return httpx.Chain(h,
		httpx.RateLimitByIP(r.AdminLimit),
		httpx.RequireAPIKey(AdminKeyHeader, r.adminKey),
	)
}

func (r *Router) registerSystem() {
	probe := httpx.RateLimitByIP(r.ProbeLimit)
	r.Mux.Handle("GET /livez", httpx.Chain(LivezHandler(r.startTime, r.buildVersion), probe))
	r.Mux.Handle("GET /readyz", httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store), probe))
	r.Mux.Handle("GET /metrics", httpx.Chain(r.Metrics, probe))

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

func (r *Router) registerGrants() {
	h := &GrantsHandler{Grants: r.store.PersistedGrants()}

	r.Mux.Handle("GET /v1/subjects/{subject}/grants", r.admin(h.HandleList))
	r.Mux.Handle("DELETE /v1/subjects/{subject}/grants", r.admin(h.HandleRevoke))
	r.Mux.Handle("DELETE /v1/grants/{key}", r.admin(h.HandleRemove))
}

func (r *Router) registerClients() {
	h := &ClientsHandler{Clients: r.Clients}

	r.Mux.Handle("GET /v1/clients/{id}", r.admin(h.HandleGet))
}

func (r *Router) registerRoles() {
	h := &RolesHandler{Roles: r.store.Roles()}

	r.Mux.Handle("GET /v1/roles", r.admin(h.HandleList))
	r.Mux.Handle("POST /v1/roles", r.admin(h.HandleCreate))
}

func (r *Router) registerUsers() {
	h := &UsersHandler{ProfileService: r.ProfileService}

	r.Mux.Handle("GET /v1/users/{id}", r.admin(h.HandleGet))
}
