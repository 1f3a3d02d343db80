package handler

// common.go holds small helpers shared by the HTTP handlers: path-parameter
// parsing, identity extraction and the mapping from service errors to HTTP
// status codes.

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/service"
)

// idParam parses the named path parameter as an unsigned integer. A zero or
// malformed value yields an error so handlers can answer 400 uniformly.
func idParam(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// authUserID returns the authenticated user's ID injected by JWTAuth.
func authUserID(c echo.Context) uint64 {
	if v, ok := c.Get("user_id").(uint64); ok {
		return v
	}
	return 0
}

// authRole returns the authenticated user's role injected by JWTAuth.
func authRole(c echo.Context) string {
	if v, ok := c.Get("role").(string); ok {
		return v
	}
	return ""
}

// isStaff reports whether the authenticated caller is a librarian or admin.
func isStaff(c echo.Context) bool {
	r := authRole(c)
	return r == model.RoleLibrarian || r == model.RoleAdmin
}

// serviceError maps the sentinel errors coming out of the service and
// repository layers onto the HTTP error contract. Anything unrecognized is
// reported as a 500 without leaking internals.
func serviceError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "message": err.Error()})
	default:
		c.Logger().Errorf("internal error: %v", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal error"})
	}
}
