package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/handler"
	"github.com/tlemaire/biblio-backend/internal/middleware"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// RegisterNotifications registers the notification feed. Recipients read
// and acknowledge their own feed; the handlers allow staff to read any
// user's feed.
func RegisterNotifications(e *echo.Echo, h *handler.NotificationHandler, jwtSecret string, blacklist *repository.TokenBlacklist) {
	auth := e.Group("/v1/notifications", middleware.JWTAuth(jwtSecret, blacklist))

	auth.GET("/:user_id", h.List)
	auth.POST("/:id/mark-read", h.MarkRead)
	auth.GET("/stream/:user_id", h.Stream)
}
