package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
)

// ErrBorrowNotFound is returned when a borrow lookup matches no row.
var ErrBorrowNotFound = errors.New("borrow not found")

// BorrowRepo provides data access to the `borrows` table. Guarded
// mutations take the expected current state into the WHERE clause and
// report ErrConflict when zero rows match, which is how the lifecycle
// service resolves races between concurrent requests without holding
// row locks across round trips.
type BorrowRepo struct {
	db *sql.DB
}

func NewBorrowRepo(db *sql.DB) *BorrowRepo { return &BorrowRepo{db: db} }

const borrowCols = "id, user_id, sample_id, approved_by, borrowed_at, begin_date, end_date, returned_at, status"

func scanBorrow(sc interface {
	Scan(dest ...interface{}) error
}) (model.Borrow, error) {
	var b model.Borrow
	var approvedBy sql.NullInt64
	var returnedAt sql.NullTime
	err := sc.Scan(&b.ID, &b.UserID, &b.SampleID, &approvedBy,
		&b.BorrowedAt, &b.BeginDate, &b.EndDate, &returnedAt, &b.Status)
	if err != nil {
		return b, err
	}
	if approvedBy.Valid {
		v := uint64(approvedBy.Int64)
		b.ApprovedBy = &v
	}
	if returnedAt.Valid {
		t := returnedAt.Time
		b.ReturnedAt = &t
	}
	return b, nil
}

// CreateTx inserts a borrow within an existing transaction and
// populates the generated ID. The caller commits or rolls back.
func (r *BorrowRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.Borrow) error {
	var approvedBy interface{}
	if b.ApprovedBy != nil {
		approvedBy = *b.ApprovedBy
	}
	res, err := tx.ExecContext(ctx,
		"INSERT INTO borrows (user_id, sample_id, approved_by, borrowed_at, begin_date, end_date, status) VALUES (?,?,?,?,?,?,?)",
		b.UserID, b.SampleID, approvedBy, b.BorrowedAt, b.BeginDate, b.EndDate, b.Status)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// GetByID fetches one borrow; ErrBorrowNotFound when absent.
func (r *BorrowRepo) GetByID(ctx context.Context, id uint64) (model.Borrow, error) {
	b, err := scanBorrow(r.db.QueryRowContext(ctx,
		"SELECT "+borrowCols+" FROM borrows WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBorrowNotFound
	}
	return b, err
}

// GetByIDTx is GetByID inside an existing transaction.
func (r *BorrowRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Borrow, error) {
	b, err := scanBorrow(tx.QueryRowContext(ctx,
		"SELECT "+borrowCols+" FROM borrows WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBorrowNotFound
	}
	return b, err
}

// CountActiveForSampleTx counts borrows in {PENDING, ONGOING, LATE}
// referencing a sample. Run inside the request-creation transaction it
// enforces the single-active-borrow invariant.
func (r *BorrowRepo) CountActiveForSampleTx(ctx context.Context, tx *sql.Tx, sampleID uint64) (int, error) {
	var n int
	err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM borrows WHERE sample_id=? AND status IN (?,?,?)",
		sampleID, model.BorrowPending, model.BorrowOngoing, model.BorrowLate).Scan(&n)
	return n, err
}

// List returns all borrows ordered by begin date descending.
func (r *BorrowRepo) List(ctx context.Context) ([]model.Borrow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+borrowCols+" FROM borrows ORDER BY begin_date DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBorrows(rows)
}

// ListBySample returns the borrow history of one physical copy.
func (r *BorrowRepo) ListBySample(ctx context.Context, sampleID uint64) ([]model.Borrow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+borrowCols+" FROM borrows WHERE sample_id=? ORDER BY begin_date DESC", sampleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBorrows(rows)
}

func collectBorrows(rows *sql.Rows) ([]model.Borrow, error) {
	borrows := make([]model.Borrow, 0)
	for rows.Next() {
		b, err := scanBorrow(rows)
		if err != nil {
			return nil, err
		}
		borrows = append(borrows, b)
	}
	return borrows, rows.Err()
}

// ApproveTx processes an approval: status becomes ONGOING and the
// approver is recorded, but only when the request has not been
// processed yet (approved_by IS NULL is the idempotency guard) and is
// still PENDING. Returns ErrConflict when the guard matches no row.
func (r *BorrowRepo) ApproveTx(ctx context.Context, tx *sql.Tx, id, approverID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE borrows SET status=?, approved_by=? WHERE id=? AND approved_by IS NULL AND status=?",
		model.BorrowOngoing, approverID, id, model.BorrowPending)
	if err != nil {
		return err
	}
	return oneRowOrConflict(res)
}

// RejectTx processes a rejection: status becomes CANCELLED with the
// same not-yet-processed guard as ApproveTx.
func (r *BorrowRepo) RejectTx(ctx context.Context, tx *sql.Tx, id, approverID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE borrows SET status=?, approved_by=? WHERE id=? AND approved_by IS NULL AND status=?",
		model.BorrowCancelled, approverID, id, model.BorrowPending)
	if err != nil {
		return err
	}
	return oneRowOrConflict(res)
}

// CompleteTx marks a borrow returned: status COMPLETED plus the
// returned_at timestamp, guarded on the current ONGOING/LATE state.
func (r *BorrowRepo) CompleteTx(ctx context.Context, tx *sql.Tx, id uint64, returnedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE borrows SET status=?, returned_at=? WHERE id=? AND status IN (?,?)",
		model.BorrowCompleted, returnedAt, id, model.BorrowOngoing, model.BorrowLate)
	if err != nil {
		return err
	}
	return oneRowOrConflict(res)
}

// CancelTx cancels a borrow in any non-terminal state.
func (r *BorrowRepo) CancelTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE borrows SET status=? WHERE id=? AND status IN (?,?,?)",
		model.BorrowCancelled, id, model.BorrowPending, model.BorrowOngoing, model.BorrowLate)
	if err != nil {
		return err
	}
	return oneRowOrConflict(res)
}

// MarkLateTx flips a single borrow from ONGOING to LATE. The guard on
// the previous status makes the transition fire exactly once, which is
// what the overdue scan relies on to avoid duplicate notifications.
func (r *BorrowRepo) MarkLateTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE borrows SET status=? WHERE id=? AND status=?",
		model.BorrowLate, id, model.BorrowOngoing)
	if err != nil {
		return err
	}
	return oneRowOrConflict(res)
}

// UpdateDatesTx patches begin/end dates on a borrow. Nil arguments
// leave the column untouched.
func (r *BorrowRepo) UpdateDatesTx(ctx context.Context, tx *sql.Tx, id uint64, begin, end *time.Time) error {
	if begin == nil && end == nil {
		return nil
	}
	q := "UPDATE borrows SET "
	args := make([]interface{}, 0, 3)
	if begin != nil {
		q += "begin_date=?"
		args = append(args, *begin)
	}
	if end != nil {
		if begin != nil {
			q += ", "
		}
		q += "end_date=?"
		args = append(args, *end)
	}
	q += " WHERE id=?"
	args = append(args, id)
	_, err := tx.ExecContext(ctx, q, args...)
	return err
}

// ListDueBetween returns ONGOING borrows whose end date falls in
// (from, to]. Used by the upcoming-due scan.
func (r *BorrowRepo) ListDueBetween(ctx context.Context, from, to time.Time) ([]model.Borrow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+borrowCols+" FROM borrows WHERE status=? AND end_date > ? AND end_date <= ?",
		model.BorrowOngoing, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBorrows(rows)
}

// ListOverdue returns ONGOING borrows whose end date has passed.
func (r *BorrowRepo) ListOverdue(ctx context.Context, now time.Time) ([]model.Borrow, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+borrowCols+" FROM borrows WHERE status=? AND end_date < ?",
		model.BorrowOngoing, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBorrows(rows)
}

func oneRowOrConflict(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
