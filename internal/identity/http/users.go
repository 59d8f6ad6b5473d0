package http

import (
	"net/http"

	"github.com/stubbl/identity/internal/identity/service"
	"github.com/stubbl/identity/pkg/httpx"
)

type ProfileResponse struct {
	Subject string          `json:"sub"`
	Claims  []ClaimResponse `json:"claims"`
}

type UsersHandler struct {
	ProfileService *service.ProfileService
}

// HandleGet handles GET /v1/users/{id} and returns the profile claims the
// identity runtime would issue for the user.
//
//	@Summary		Get a user profile
//	@Description	Returns the profile claims issued for the user, including one role claim per role.
//	@Tags			Users
//	@Produce		json
//	@Param			id	path		string	true	"User ID"
//	@Success		200	{object}	ProfileResponse
//	@Failure		400	{object}	httpx.ErrorResponse	"Bad Request"
//	@Failure		401	{object}	httpx.ErrorResponse	"Unauthorized"
//	@Failure		404	{object}	httpx.ErrorResponse	"Not Found"
//	@Failure		429	{object}	httpx.ErrorResponse	"Too Many Requests"
//	@Failure		500	{object}	httpx.ErrorResponse	"Internal Server Error"
//	@Security		AdminAPIKey
//	@Router			/v1/users/{id} [get]
func (h *UsersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	claims, err := h.ProfileService.ProfileData(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err, "user")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, ProfileResponse{Subject: id, Claims: claimResponses(claims)})
}
