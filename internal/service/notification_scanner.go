package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// upcomingWindow is how far ahead of the due date reminders fire.
const upcomingWindow = 3 * 24 * time.Hour

// NotificationScanner periodically scans borrow state and derives
// notifications. It runs on its own timer, decoupled from request
// handling, and shares nothing with it but the database. A failure on
// one borrow is logged and the scan moves on: the job is unattended
// and has no caller to report to.
type NotificationScanner struct {
	borrows   *repository.BorrowRepo
	notifs    *repository.NotificationRepo
	lifecycle *BorrowLifecycle

	// now is swappable in tests.
	now func() time.Time
}

func NewNotificationScanner(borrows *repository.BorrowRepo, notifs *repository.NotificationRepo, lifecycle *BorrowLifecycle) *NotificationScanner {
	return &NotificationScanner{
		borrows:   borrows,
		notifs:    notifs,
		lifecycle: lifecycle,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes a scan immediately and then on every tick until the
// context is cancelled. Intended to be started as a goroutine from
// main with the configured interval (12h by default).
func (s *NotificationScanner) Run(ctx context.Context, interval time.Duration) {
	log.Printf("scanner: starting, interval=%s", interval)
	s.Scan(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("scanner: stopping: %v", ctx.Err())
			return
		case <-t.C:
			s.Scan(ctx)
		}
	}
}

// Scan runs both passes. Overdue first so a borrow that is both past
// due and inside the reminder window gets the overdue alert, not a
// reminder for a date already missed.
func (s *NotificationScanner) Scan(ctx context.Context) {
	if err := s.ScanOverdue(ctx); err != nil {
		log.Printf("scanner: overdue pass failed: %v", err)
	}
	if err := s.ScanUpcoming(ctx); err != nil {
		log.Printf("scanner: upcoming pass failed: %v", err)
	}
}

// ScanUpcoming creates an UPCOMING_DUE notification for every ONGOING
// borrow due within the next three days, unless an unviewed reminder
// for that borrow already exists. The dedup key is the borrow id
// column on the notification row.
func (s *NotificationScanner) ScanUpcoming(ctx context.Context) error {
	now := s.now()
	due, err := s.borrows.ListDueBetween(ctx, now, now.Add(upcomingWindow))
	if err != nil {
		return err
	}
	for _, b := range due {
		exists, err := s.notifs.HasUnviewedForBorrow(ctx, b.UserID, b.ID, model.NotifUpcomingDue)
		if err != nil {
			log.Printf("scanner: dedup check for borrow %d failed: %v", b.ID, err)
			continue
		}
		if exists {
			continue
		}
		days := int(b.EndDate.Sub(now).Hours() / 24)
		borrowID := b.ID
		n := model.Notification{
			UserID:   b.UserID,
			BorrowID: &borrowID,
			Type:     model.NotifUpcomingDue,
			Message:  fmt.Sprintf("The borrowed book is due back in %d day(s). Borrow #%d.", days, b.ID),
		}
		if err := s.notifs.Create(ctx, &n); err != nil {
			log.Printf("scanner: create reminder for borrow %d failed: %v", b.ID, err)
		}
	}
	return nil
}

// ScanOverdue transitions every ONGOING borrow past its end date to
// LATE through the lifecycle manager and emits one OVERDUE
// notification per observed transition. The ONGOING->LATE edge fires
// once, so a borrow already marked late in a previous cycle is not in
// the candidate set and gets no second alert.
func (s *NotificationScanner) ScanOverdue(ctx context.Context) error {
	overdue, err := s.borrows.ListOverdue(ctx, s.now())
	if err != nil {
		return err
	}
	for _, b := range overdue {
		if err := s.lifecycle.MarkLate(ctx, b.ID); err != nil {
			// A concurrent return or cancel can beat the scan to the
			// row; losing that race is not an error worth alerting on.
			log.Printf("scanner: mark borrow %d late failed: %v", b.ID, err)
			continue
		}
		borrowID := b.ID
		n := model.Notification{
			UserID:   b.UserID,
			BorrowID: &borrowID,
			Type:     model.NotifOverdue,
			Message:  fmt.Sprintf("The borrowed book is overdue, please return it as soon as possible. Borrow #%d.", b.ID),
		}
		if err := s.notifs.Create(ctx, &n); err != nil {
			log.Printf("scanner: create overdue alert for borrow %d failed: %v", b.ID, err)
		}
	}
	return nil
}
