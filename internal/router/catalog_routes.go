package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/handler"
	"github.com/tlemaire/biblio-backend/internal/middleware"
	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// RegisterCatalog registers the catalog surfaces. Browsing titles and
// their copies is open to any authenticated user. Catalog edits and the
// sample views are librarian/admin only. The optional cacheMW wraps the
// read-only book routes with the Redis response cache.
func RegisterCatalog(e *echo.Echo, books *handler.BookHandler, samples *handler.SampleHandler, jwtSecret string, blacklist *repository.TokenBlacklist, cacheMW echo.MiddlewareFunc) {
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret, blacklist))

	browse := auth.Group("")
	if cacheMW != nil {
		browse.Use(cacheMW)
	}
	browse.GET("/books", books.List)
	browse.GET("/books/:id", books.Get)
	browse.GET("/books/:id/samples", books.ListSamples)

	staff := auth.Group("", middleware.RequireRole(model.RoleLibrarian, model.RoleAdmin))
	staff.POST("/books", books.Create)
	staff.PUT("/books/:id", books.Update)
	staff.GET("/samples", samples.List)
	staff.POST("/samples", samples.Create)
	staff.GET("/samples/:id/borrows", samples.ListBorrows)
}
