package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/tlemaire/biblio-backend/internal/repository"
	"github.com/tlemaire/biblio-backend/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context. The
// provided secret must match the one used when issuing tokens. Tokens that
// were revoked at logout are rejected through the blacklist lookup; a nil
// blacklist skips that check. Handlers behind this middleware read the
// authenticated identity via `c.Get("user_id")` (uint64) and `c.Get("role")`
// (string).
func JWTAuth(secret string, blacklist *repository.TokenBlacklist) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			// A token that parses fine may still have been revoked at
			// logout. A lookup failure falls back to accepting the token
			// so a Redis outage does not lock everyone out.
			if blacklist != nil {
				revoked, err := blacklist.IsRevoked(c.Request().Context(), raw)
				if err == nil && revoked {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token revoked"})
				}
			}

			c.Set("user_id", claims.UserID)
			c.Set("role", claims.Role)
			c.Set("token", raw)
			c.Set("token_exp", claims.Exp)
			return next(c)
		}
	}
}
