package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// BorrowDetail joins a borrow with its borrower, sample and book so
// handlers can return the full object the frontend renders without a
// second round of lookups. The JSON shape mirrors the borrow endpoints'
// response contract.
type BorrowDetail struct {
	ID         uint64     `json:"id"`
	Status     string     `json:"status"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	BeginDate  time.Time  `json:"begin_date"`
	EndDate    time.Time  `json:"end_date"`
	ReturnDate *time.Time `json:"return_date"`
	ApprovedBy *uint64    `json:"approved_by"`
	User       struct {
		ID        uint64 `json:"id"`
		Lastname  string `json:"lastname"`
		Firstname string `json:"firstname"`
	} `json:"user"`
	Sample struct {
		ID           uint64 `json:"id"`
		UniqueCode   string `json:"unique_code"`
		Status       string `json:"status"`
		Localization string `json:"localization"`
		Book         struct {
			ID     uint64 `json:"id"`
			Title  string `json:"title"`
			Author string `json:"author"`
		} `json:"book"`
	} `json:"sample"`
}

const borrowDetailQuery = `SELECT b.id, b.status, b.borrowed_at, b.begin_date, b.end_date, b.returned_at, b.approved_by,
       u.id, u.lastname, u.firstname,
       s.id, s.unique_code, s.status, s.localization,
       k.id, k.title, k.author
FROM borrows b
JOIN users u ON u.id = b.user_id
JOIN samples s ON s.id = b.sample_id
JOIN books k ON k.id = s.book_id`

func scanBorrowDetail(sc interface {
	Scan(dest ...interface{}) error
}) (BorrowDetail, error) {
	var d BorrowDetail
	var returned sql.NullTime
	var approved sql.NullInt64
	err := sc.Scan(&d.ID, &d.Status, &d.BorrowedAt, &d.BeginDate, &d.EndDate, &returned, &approved,
		&d.User.ID, &d.User.Lastname, &d.User.Firstname,
		&d.Sample.ID, &d.Sample.UniqueCode, &d.Sample.Status, &d.Sample.Localization,
		&d.Sample.Book.ID, &d.Sample.Book.Title, &d.Sample.Book.Author)
	if err != nil {
		return d, err
	}
	if returned.Valid {
		t := returned.Time
		d.ReturnDate = &t
	}
	if approved.Valid {
		v := uint64(approved.Int64)
		d.ApprovedBy = &v
	}
	return d, nil
}

// GetDetailByID returns one fully joined borrow; ErrBorrowNotFound
// when absent.
func (r *BorrowRepo) GetDetailByID(ctx context.Context, id uint64) (BorrowDetail, error) {
	d, err := scanBorrowDetail(r.db.QueryRowContext(ctx, borrowDetailQuery+" WHERE b.id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return d, ErrBorrowNotFound
	}
	return d, err
}

// ListDetails returns all borrows fully joined, newest begin date
// first. A non-zero userID narrows the list to one borrower.
func (r *BorrowRepo) ListDetails(ctx context.Context, userID uint64) ([]BorrowDetail, error) {
	q := borrowDetailQuery
	args := []interface{}{}
	if userID != 0 {
		q += " WHERE b.user_id = ?"
		args = append(args, userID)
	}
	q += " ORDER BY b.begin_date DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]BorrowDetail, 0)
	for rows.Next() {
		d, err := scanBorrowDetail(rows)
		if err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}
