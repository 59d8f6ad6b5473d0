package http

import (
	"net/http"
	"time"

	"github.com/stubbl/identity/internal/identity/domain"
	"github.com/stubbl/identity/internal/identity/store"
	"github.com/stubbl/identity/pkg/httpx"
	"github.com/stubbl/identity/pkg/slogx"
)

// GrantResponse describes a persisted grant. The serialized payload is not
// exposed.
type GrantResponse struct {
	Key          string     `json:"key"`
	Type         string     `json:"type"`
	SubjectID    string     `json:"subject_id"`
	ClientID     string     `json:"client_id"`
	CreationTime time.Time  `json:"creation_time"`
	Expiration   *time.Time `json:"expiration,omitempty"`
}

type ListGrantsResponse struct {
	Grants []GrantResponse `json:"grants"`
}

type RemovedResponse struct {
	Removed int64 `json:"removed"`
}

type GrantsHandler struct {
	Grants store.PersistedGrants
}

// HandleList handles GET /v1/subjects/{subject}/grants.
//
//	@Summary		List grants of a subject
//	@Description	Returns every persisted grant issued to the subject. The serialized payload is not exposed.
//	@Tags			Grants
//	@Produce		json
//	@Param			subject	path		string	true	"Subject ID"
//	@Success		200		{object}	ListGrantsResponse
//	@Failure		400		{object}	httpx.ErrorResponse	"Bad Request"
//	@Failure		401		{object}	httpx.ErrorResponse	"Unauthorized"
//	@Failure		429		{object}	httpx.ErrorResponse	"Too Many Requests"
//	@Failure		500		{object}	httpx.ErrorResponse	"Internal Server Error"
//	@Security		AdminAPIKey
//	@Router			/v1/subjects/{subject}/grants [get]
func (h *GrantsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	grants, err := h.Grants.GetAll(r.Context(), r.PathValue("subject"))
	if err != nil {
		writeStoreError(w, r, err, "grant")
		return
	}

	resp := ListGrantsResponse{Grants: make([]GrantResponse, len(grants))}
	for i, g := range grants {
		resp.Grants[i] = newGrantResponse(g)
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

// HandleRevoke handles DELETE /v1/subjects/{subject}/grants?client_id=&type=.
// client_id is required; type narrows the revocation to one grant type.
//
//	@Summary		Revoke grants of a subject
//	@Description	Removes the subject's grants for one client, optionally narrowed to a single grant type.
//	@Tags			Grants
//	@Produce		json
//	@Param			subject		path		string	true	"Subject ID"
//	@Param			client_id	query		string	true	"Client ID"
//	@Param			type		query		string	false	"Grant type, e.g. refresh_token"
//	@Success		200			{object}	RemovedResponse
//	@Failure		400			{object}	httpx.ErrorResponse	"Bad Request"
//	@Failure		401			{object}	httpx.ErrorResponse	"Unauthorized"
//	@Failure		429			{object}	httpx.ErrorResponse	"Too Many Requests"
//	@Failure		500			{object}	httpx.ErrorResponse	"Internal Server Error"
//	@Security		AdminAPIKey
//	@Router			/v1/subjects/{subject}/grants [delete]
func (h *GrantsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subject := r.PathValue("subject")
	clientID := r.URL.Query().Get("client_id")
	grantType := r.URL.Query().Get("type")

	var (
		removed int64
		err     error
	)
	if grantType == "" {
		removed, err = h.Grants.RemoveAll(ctx, subject, clientID)
	} else {
		removed, err = h.Grants.RemoveAllOfType(ctx, subject, clientID, grantType)
	}
	if err != nil {
		writeStoreError(w, r, err, "grant")
		return
	}

	slogx.FromContext(ctx).Info("grants revoked",
		"subject_id", subject,
		"client_id", clientID,
		"type", grantType,
		"removed", removed,
	)
	httpx.WriteJSON(w, http.StatusOK, RemovedResponse{Removed: removed})
}

// HandleRemove handles DELETE /v1/grants/{key}. Removing an unknown key is
// not an error; the response reports zero.
//
//	@Summary		Remove a grant
//	@Description	Removes the grant stored under key. Unknown keys report zero removed.
//	@Tags			Grants
//	@Produce		json
//	@Param			key	path		string	true	"Grant key"
//	@Success		200	{object}	RemovedResponse
//	@Failure		401	{object}	httpx.ErrorResponse	"Unauthorized"
//	@Failure		429	{object}	httpx.ErrorResponse	"Too Many Requests"
//	@Failure		500	{object}	httpx.ErrorResponse	"Internal Server Error"
//	@Security		AdminAPIKey
//	@Router			/v1/grants/{key} [delete]
func (h *GrantsHandler) HandleRemove(w http.ResponseWriter, r *http.Request) {
	removed, err := h.Grants.Remove(r.Context(), r.PathValue("key"))
	if err != nil {
		writeStoreError(w, r, err, "grant")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, RemovedResponse{Removed: removed})
}

func newGrantResponse(g *domain.PersistedGrant) GrantResponse {
	return GrantResponse{
		Key:          g.Key,
		Type:         g.Type,
		SubjectID:    g.SubjectID,
		ClientID:     g.ClientID,
		CreationTime: g.CreationTime,
		Expiration:   g.Expiration,
	}
}
