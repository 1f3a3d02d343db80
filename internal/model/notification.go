package model

import "time"

// Notification types.
const (
	NotifUpcomingDue    = "UPCOMING_DUE"
	NotifOverdue        = "OVERDUE"
	NotifNewReservation = "NEW_RESERVATION"
)

// Notification is a message produced for a user, either by the
// periodic scanner (due-date reminders, overdue alerts) or directly by
// borrow lifecycle events.  Rows are never mutated after creation
// except for the viewed flag, flipped by the recipient.
//
// BorrowID links a notification to the borrow it concerns so the
// scanner can deduplicate reminders without parsing message text.
type Notification struct {
	ID        uint64    // notifications.id
	UserID    uint64    // notifications.user_id
	BorrowID  *uint64   // notifications.borrow_id (nullable)
	Type      string    // notifications.type
	Message   string    // notifications.message
	CreatedAt time.Time // notifications.created_at
	Viewed    bool      // notifications.viewed
}
