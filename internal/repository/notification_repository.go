package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
)

// ErrNotificationNotFound is returned when a notification lookup
// matches no row.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationRepo provides data access to the `notifications` table.
// Rows are written by the scanner and by lifecycle events; the only
// mutation afterwards is the viewed flag.
type NotificationRepo struct {
	db *sql.DB
}

func NewNotificationRepo(db *sql.DB) *NotificationRepo { return &NotificationRepo{db: db} }

const notifCols = "id, user_id, borrow_id, type, message, created_at, viewed"

func scanNotification(sc interface {
	Scan(dest ...interface{}) error
}) (model.Notification, error) {
	var n model.Notification
	var borrowID sql.NullInt64
	err := sc.Scan(&n.ID, &n.UserID, &borrowID, &n.Type, &n.Message, &n.CreatedAt, &n.Viewed)
	if err != nil {
		return n, err
	}
	if borrowID.Valid {
		v := uint64(borrowID.Int64)
		n.BorrowID = &v
	}
	return n, nil
}

// Create inserts a notification and populates its generated ID and
// creation time.
func (r *NotificationRepo) Create(ctx context.Context, n *model.Notification) error {
	var borrowID interface{}
	if n.BorrowID != nil {
		borrowID = *n.BorrowID
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO notifications (user_id, borrow_id, type, message, created_at, viewed) VALUES (?,?,?,?,?,?)",
		n.UserID, borrowID, n.Type, n.Message, n.CreatedAt, n.Viewed)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)
	return nil
}

// ListUnviewed returns a user's unviewed notifications, newest first.
func (r *NotificationRepo) ListUnviewed(ctx context.Context, userID uint64) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+notifCols+" FROM notifications WHERE user_id=? AND viewed=? ORDER BY created_at DESC",
		userID, false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	notifs := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// ListUnviewedSince returns a user's unviewed notifications with an id
// strictly greater than sinceID, oldest first. The SSE feed polls with
// this, advancing its watermark to the highest id seen. Ids order rows
// where created_at cannot: the column has second precision, so two rows
// written in the same second would tie on it.
func (r *NotificationRepo) ListUnviewedSince(ctx context.Context, userID uint64, sinceID uint64) ([]model.Notification, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+notifCols+" FROM notifications WHERE user_id=? AND viewed=? AND id > ? ORDER BY id",
		userID, false, sinceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	notifs := make([]model.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		notifs = append(notifs, n)
	}
	return notifs, rows.Err()
}

// HasUnviewedForBorrow reports whether an unviewed notification of the
// given type already references a borrow. This is the reminder dedup
// key: the borrow id is a real column, not a substring of the message.
func (r *NotificationRepo) HasUnviewedForBorrow(ctx context.Context, userID, borrowID uint64, typ string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM notifications WHERE user_id=? AND borrow_id=? AND type=? AND viewed=?",
		userID, borrowID, typ, false).Scan(&n)
	return n > 0, err
}

// GetByID fetches one notification; ErrNotificationNotFound when absent.
func (r *NotificationRepo) GetByID(ctx context.Context, id uint64) (model.Notification, error) {
	n, err := scanNotification(r.db.QueryRowContext(ctx,
		"SELECT "+notifCols+" FROM notifications WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return n, ErrNotificationNotFound
	}
	return n, err
}

// MarkViewed flips the viewed flag. The user id is part of the
// predicate so only the recipient's own rows can be touched; marking
// an already-viewed notification is a no-op, not an error.
func (r *NotificationRepo) MarkViewed(ctx context.Context, id, userID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE notifications SET viewed=? WHERE id=? AND user_id=?", true, id, userID)
	return err
}
