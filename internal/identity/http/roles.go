package http

import (
	"net/http"
	"strings"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/service"
	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/pkg/httpx"
	"github.com/stubbl/identity/pkg/slogx"
)

type RoleResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ListRolesResponse struct {
	Roles []RoleResponse `json:"roles"`
}

type CreateRoleRequest struct {
	Name string `json:"name"`
}

type RolesHandler struct {
	Roles store.Roles
}

// HandleList handles GET /v1/roles.
//
//	@Summary		List roles
//	@Tags			Roles
//	@Produce		json
//	@Success		200	{object}	ListRolesResponse
//	@Failure		401	{object}	httpx.ErrorResponse	"Unauthorized"
//	@Failure		429	{object}	httpx.ErrorResponse	"Too Many Requests"
//	@Failure		500	{object}	httpx.ErrorResponse	"Internal Server Error"
//	@Security		AdminAPIKey
//	@Router			/v1/roles [get]
func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.Roles.List(r.Context())
	if err != nil {
		writeStoreError(w, r, err, "role")
		return
	}

	resp := ListRolesResponse{Roles: make([]RoleResponse, len(roles))}
	for i, role := range roles {
		resp.Roles[i] = RoleResponse{ID: role.ID, Name: role.Name}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleCreate handles POST /v1/roles.
//
//	@Summary		Create a role
//	@Description	Creates a role. Names are unique after normalization.
//	@Tags			Roles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRoleRequest	true	"Role to create"
//	@Success		201		{object}	RoleResponse
//	@Failure		400		{object}	httpx.ErrorResponse	"Bad Request"
//	@Failure		401		{object}	httpx.ErrorResponse	"Unauthorized"
//	@Failure		409		{object}	httpx.ErrorResponse	"Conflict - role already exists"
//	@Failure		429		{object}	httpx.ErrorResponse	"Too Many Requests"
//	@Failure		500		{object}	httpx.ErrorResponse	"Internal Server Error"
//	@Security		AdminAPIKey
//	@Router			/v1/roles [post]
func (h *RolesHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateRoleRequest
	if err := httpx.DecodeJSON(w, r, 1<<16, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON in request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "Role name is required")
		return
	}

	role := &domain.Role{Name: name, NormalizedName: service.Normalize(name)}
	if err := h.Roles.Create(r.Context(), role); err != nil {
		writeStoreError(w, r, err, "role")
		return
	}

	slogx.FromContext(r.Context()).Info("role created", "role_id", role.ID, "name", role.Name)
	httpx.WriteJSON(w, http.StatusCreated, RoleResponse{ID: role.ID, Name: role.Name})
}
