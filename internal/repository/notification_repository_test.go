package repository

import (
	"context"
	"testing"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/testutil"
)

func TestNotificationFeed(t *testing.T) {
	db := testutil.OpenDB(t)
	users := NewUserRepo(db)
	repo := NewNotificationRepo(db)
	ctx := context.Background()
	uid := seedUser(t, users, "alice@lib.test")

	base := time.Now().UTC().Truncate(time.Second)
	older := model.Notification{UserID: uid, Type: model.NotifUpcomingDue, Message: "first", CreatedAt: base.Add(-time.Hour)}
	newer := model.Notification{UserID: uid, Type: model.NotifOverdue, Message: "second", CreatedAt: base}
	for _, n := range []*model.Notification{&older, &newer} {
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	feed, err := repo.ListUnviewed(ctx, uid)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(feed) != 2 {
		t.Fatalf("got %d rows, want 2", len(feed))
	}
	if feed[0].Message != "second" {
		t.Fatalf("feed not newest first: %+v", feed)
	}

	// The id watermark filters out already-delivered rows.
	fresh, err := repo.ListUnviewedSince(ctx, uid, older.ID)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(fresh) != 1 || fresh[0].Message != "second" {
		t.Fatalf("since returned %+v", fresh)
	}
}

func TestListUnviewedSinceSplitsSameSecondRows(t *testing.T) {
	db := testutil.OpenDB(t)
	users := NewUserRepo(db)
	repo := NewNotificationRepo(db)
	ctx := context.Background()
	uid := seedUser(t, users, "alice@lib.test")

	// Two rows sharing one creation second: only the id tells them apart,
	// so a time watermark would never deliver the later one.
	at := time.Now().UTC().Truncate(time.Second)
	first := model.Notification{UserID: uid, Type: model.NotifUpcomingDue, Message: "first", CreatedAt: at}
	second := model.Notification{UserID: uid, Type: model.NotifOverdue, Message: "second", CreatedAt: at}
	for _, n := range []*model.Notification{&first, &second} {
		if err := repo.Create(ctx, n); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	fresh, err := repo.ListUnviewedSince(ctx, uid, first.ID)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(fresh) != 1 || fresh[0].ID != second.ID {
		t.Fatalf("watermark past first row returned %+v", fresh)
	}
	if rest, _ := repo.ListUnviewedSince(ctx, uid, second.ID); len(rest) != 0 {
		t.Fatalf("watermark past last row returned %+v", rest)
	}
}

func TestMarkViewedIsOwnerScopedAndIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	users := NewUserRepo(db)
	repo := NewNotificationRepo(db)
	ctx := context.Background()
	uid := seedUser(t, users, "alice@lib.test")
	other := seedUser(t, users, "bob@lib.test")

	n := model.Notification{UserID: uid, Type: model.NotifUpcomingDue, Message: "due soon"}
	if err := repo.Create(ctx, &n); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Someone else's flip is a silent no-op; the row stays unviewed.
	if err := repo.MarkViewed(ctx, n.ID, other); err != nil {
		t.Fatalf("foreign mark: %v", err)
	}
	feed, _ := repo.ListUnviewed(ctx, uid)
	if len(feed) != 1 {
		t.Fatalf("foreign mark flipped the flag")
	}

	if err := repo.MarkViewed(ctx, n.ID, uid); err != nil {
		t.Fatalf("mark: %v", err)
	}
	feed, _ = repo.ListUnviewed(ctx, uid)
	if len(feed) != 0 {
		t.Fatalf("row still unviewed")
	}
	// Re-marking stays successful.
	if err := repo.MarkViewed(ctx, n.ID, uid); err != nil {
		t.Fatalf("re-mark: %v", err)
	}
}

func TestHasUnviewedForBorrow(t *testing.T) {
	db := testutil.OpenDB(t)
	users := NewUserRepo(db)
	repo := NewNotificationRepo(db)
	ctx := context.Background()
	uid := seedUser(t, users, "alice@lib.test")

	borrowID := uint64(42)
	ok, err := repo.HasUnviewedForBorrow(ctx, uid, borrowID, model.NotifUpcomingDue)
	if err != nil {
		t.Fatalf("check empty: %v", err)
	}
	if ok {
		t.Fatalf("empty store reported a reminder")
	}

	n := model.Notification{UserID: uid, BorrowID: &borrowID, Type: model.NotifUpcomingDue, Message: "due"}
	if err := repo.Create(ctx, &n); err != nil {
		t.Fatalf("create: %v", err)
	}
	ok, _ = repo.HasUnviewedForBorrow(ctx, uid, borrowID, model.NotifUpcomingDue)
	if !ok {
		t.Fatalf("reminder not found by borrow id")
	}
	// A different type or borrow does not match.
	if ok, _ = repo.HasUnviewedForBorrow(ctx, uid, borrowID, model.NotifOverdue); ok {
		t.Fatalf("matched wrong type")
	}
	if ok, _ = repo.HasUnviewedForBorrow(ctx, uid, borrowID+1, model.NotifUpcomingDue); ok {
		t.Fatalf("matched wrong borrow")
	}

	// Viewed reminders stop deduplicating.
	if err := repo.MarkViewed(ctx, n.ID, uid); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if ok, _ = repo.HasUnviewedForBorrow(ctx, uid, borrowID, model.NotifUpcomingDue); ok {
		t.Fatalf("viewed reminder still deduplicates")
	}
}
