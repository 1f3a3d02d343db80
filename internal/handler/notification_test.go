package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/model"
)

func (f *apiFixture) seedNotification(t *testing.T, userID uint64, typ, msg string) uint64 {
	t.Helper()
	n := &model.Notification{UserID: userID, Type: typ, Message: msg, CreatedAt: time.Now().UTC()}
	if err := f.notifs.Create(t.Context(), n); err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return n.ID
}

func TestNotificationFeedAccess(t *testing.T) {
	f := newAPIFixture(t)
	f.seedNotification(t, f.member, model.NotifUpcomingDue, "book due soon")
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/notifications/%d", f.member), member, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("own feed: %d %s", rec.Code, rec.Body.String())
	}
	var list []notificationResp
	decode(t, rec, &list)
	if len(list) != 1 || list[0].Message != "book due soon" {
		t.Fatalf("feed %+v", list)
	}

	// Staff may read any feed, other members may not.
	if rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/notifications/%d", f.member), librarian, ""); rec.Code != http.StatusOK {
		t.Fatalf("staff feed: %d", rec.Code)
	}
	other, err := f.users.Create(t.Context(), "Durand", "Eve", "eve@lib.test", "pw", model.RoleMember, 4)
	if err != nil {
		t.Fatalf("seed other: %v", err)
	}
	otherTok := f.token(t, other, model.RoleMember)
	if rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/notifications/%d", f.member), otherTok, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("foreign feed: %d", rec.Code)
	}
}

func TestNotificationMarkRead(t *testing.T) {
	f := newAPIFixture(t)
	id := f.seedNotification(t, f.member, model.NotifOverdue, "book overdue")
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/notifications/%d/mark-read", id), member, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("mark read: %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodGet, fmt.Sprintf("/v1/notifications/%d", f.member), member, "")
	var list []notificationResp
	decode(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("feed after mark-read: %d rows", len(list))
	}

	// Re-marking is a no-op success; foreign ids look absent.
	if rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/notifications/%d/mark-read", id), member, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("re-mark: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, fmt.Sprintf("/v1/notifications/%d/mark-read", id), librarian, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign mark: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/notifications/9999/mark-read", member, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("unknown mark: %d", rec.Code)
	}
}

func TestNotificationStreamDeliversBacklog(t *testing.T) {
	f := newAPIFixture(t)
	f.seedNotification(t, f.member, model.NotifNewReservation, "reservation confirmed")
	tok := f.token(t, f.member, model.RoleMember)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(150 * time.Millisecond)
		cancel()
	}()

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/notifications/stream/%d", f.member), nil).WithContext(ctx)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+tok)
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("stream: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content type %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: notification") {
		t.Fatalf("no event frame in %q", body)
	}
	if !strings.Contains(body, "reservation confirmed") {
		t.Fatalf("missing payload in %q", body)
	}
	// The backlog row must appear exactly once.
	if strings.Count(body, "event: notification") != 1 {
		t.Fatalf("duplicate frames in %q", body)
	}
}

func TestNotificationStreamForbidden(t *testing.T) {
	f := newAPIFixture(t)
	other, err := f.users.Create(t.Context(), "Noel", "Fred", "fred@lib.test", "pw", model.RoleMember, 4)
	if err != nil {
		t.Fatalf("seed other: %v", err)
	}
	tok := f.token(t, other, model.RoleMember)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/notifications/stream/%d", f.member), tok, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign stream: %d", rec.Code)
	}
}
