package handler

import (
	"errors"
	"net/http"

	"backend/internal/apperr"
	"backend/internal/authz"
	"backend/internal/service"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps the service error taxonomy to HTTP status codes. Services
// never see HTTP; this is the only translation point.
func statusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrAuthorization), errors.Is(err, apperr.ErrAccountDeactivated):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, apperr.ErrInvalidState):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	c.JSON(status, response.Error(status, err.Error()))
}

// currentActor resolves the authenticated profile set by RequireAuth into
// an actor with current role and active status. Returns false after writing
// the error response.
func currentActor(c *gin.Context, auth service.AuthService) (*authz.Actor, bool) {
	profileID := c.GetString("profileID")
	if profileID == "" {
		respondError(c, apperr.ErrUnauthenticated)
		return nil, false
	}

	actor, err := auth.ResolveActor(c.Request.Context(), profileID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return actor, true
}
