package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/handler"
	"github.com/tlemaire/biblio-backend/internal/middleware"
	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// RegisterUserAdmin registers the member and librarian administration
// surfaces. Member rows are managed by librarians and admins; librarian
// rows only by admins.
func RegisterUserAdmin(e *echo.Echo, members, librarians *handler.UserAdminHandler, jwtSecret string, blacklist *repository.TokenBlacklist) {
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret, blacklist))

	m := auth.Group("/members", middleware.RequireRole(model.RoleLibrarian, model.RoleAdmin))
	m.GET("", members.List)
	m.GET("/:id", members.Get)
	m.PUT("/:id", members.Update)
	m.DELETE("/:id", members.Delete)

	l := auth.Group("/librarians", middleware.RequireRole(model.RoleAdmin))
	l.GET("", librarians.List)
	l.GET("/:id", librarians.Get)
	l.PUT("/:id", librarians.Update)
	l.DELETE("/:id", librarians.Delete)
}
