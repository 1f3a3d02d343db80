package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/handler"
	"github.com/tlemaire/biblio-backend/internal/middleware"
	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// RegisterBorrows registers the borrow lifecycle endpoints. Any
// authenticated user may request, list and cancel (handlers narrow
// members to their own borrows); approval, rejection and the generic
// patch are staff decisions.
func RegisterBorrows(e *echo.Echo, h *handler.BorrowHandler, jwtSecret string, blacklist *repository.TokenBlacklist) {
	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret, blacklist))

	auth.POST("/borrows", h.Create)
	auth.GET("/borrows", h.List)
	auth.GET("/borrows/:id", h.Get)
	auth.DELETE("/borrows/:id", h.Cancel)

	staff := auth.Group("", middleware.RequireRole(model.RoleLibrarian, model.RoleAdmin))
	staff.PATCH("/borrows/:id/approve", h.Approve)
	staff.PATCH("/borrows/:id/reject", h.Reject)
	staff.PUT("/borrows/:id", h.Update)
}
