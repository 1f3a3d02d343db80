package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // Echo web framework handles the routing

	"github.com/tlemaire/biblio-backend/internal/handler"
	"github.com/tlemaire/biblio-backend/internal/middleware"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// RegisterRoutes registers routes that require no authentication. At the
// moment that is only the health check used by load balancers.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints. Unauthenticated
// operations live under /v1/auth; /v1/me is the canonical protected
// probe. Logout parses its own bearer token so it works even when the
// access token is already blacklisted on one node and not another.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, blacklist *repository.TokenBlacklist) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret, blacklist))
	auth.GET("/me", a.Me)
}
