package middleware

// identity.go defines helpers shared across middleware files. The rate
// limiter and cache key builders need a stable user identifier even for
// unauthenticated requests, so currentUserID falls back to "anon".

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// currentUserID returns the authenticated user's ID as a string, or "anon"
// when the request carries no valid identity.
func currentUserID(c echo.Context) string {
	if v := c.Get("user_id"); v != nil {
		if id, ok := v.(uint64); ok && id != 0 {
			return strconv.FormatUint(id, 10)
		}
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "anon"
}
