package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// streamPollInterval is how often the SSE stream re-queries the store.
const streamPollInterval = 3 * time.Second

// NotificationHandler serves the per-user notification feed: the unviewed
// list, the viewed flip and a server-sent-events stream backed by short
// polls, so no database transaction stays open across the connection.
type NotificationHandler struct {
	Notifs *repository.NotificationRepo
}

func NewNotificationHandler(n *repository.NotificationRepo) *NotificationHandler {
	return &NotificationHandler{Notifs: n}
}

type notificationResp struct {
	ID        uint64    `json:"id"`
	UserID    uint64    `json:"user_id"`
	BorrowID  *uint64   `json:"borrow_id"`
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	Viewed    bool      `json:"viewed"`
}

func toNotificationResp(n model.Notification) notificationResp {
	return notificationResp{
		ID:        n.ID,
		UserID:    n.UserID,
		BorrowID:  n.BorrowID,
		Type:      n.Type,
		Message:   n.Message,
		CreatedAt: n.CreatedAt,
		Viewed:    n.Viewed,
	}
}

// canReadFeed allows a user to read their own feed and staff to read any.
func canReadFeed(c echo.Context, userID uint64) bool {
	return authUserID(c) == userID || isStaff(c)
}

// List returns a user's unviewed notifications, newest first.
func (h *NotificationHandler) List(c echo.Context) error {
	userID, err := idParam(c, "user_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	if !canReadFeed(c, userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "forbidden"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	notifs, err := h.Notifs.ListUnviewed(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	out := make([]notificationResp, 0, len(notifs))
	for _, n := range notifs {
		out = append(out, toNotificationResp(n))
	}
	return c.JSON(http.StatusOK, out)
}

// MarkRead flips the viewed flag. Only the recipient may flip it; a
// notification addressed to someone else answers 404. Re-marking an
// already viewed notification succeeds.
func (h *NotificationHandler) MarkRead(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	n, err := h.Notifs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotificationNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "notification not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	if n.UserID != authUserID(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "notification not found"})
	}
	if err := h.Notifs.MarkViewed(ctx, id, n.UserID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

// Stream pushes a user's fresh unviewed notifications as server-sent
// events. The store is polled every few seconds; each poll only picks up
// rows above the previous poll's highest id, so a notification is
// emitted once per connection even when several rows share a creation
// second. The handler returns when the client disconnects.
func (h *NotificationHandler) Stream(c echo.Context) error {
	userID, err := idParam(c, "user_id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	if !canReadFeed(c, userID) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "forbidden"})
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	ctx := c.Request().Context()
	var sinceID uint64 // first poll delivers the whole unviewed backlog
	ticker := time.NewTicker(streamPollInterval)
	defer ticker.Stop()

	for {
		pollCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		notifs, err := h.Notifs.ListUnviewedSince(pollCtx, userID, sinceID)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.Logger().Warnf("notification stream: poll for user %d failed: %v", userID, err)
		}
		for _, n := range notifs {
			payload, err := json.Marshal(toNotificationResp(n))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(res, "event: notification\nid: %d\ndata: %s\n\n", n.ID, payload); err != nil {
				return nil
			}
			if n.ID > sinceID {
				sinceID = n.ID
			}
		}
		res.Flush()

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
