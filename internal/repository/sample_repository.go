package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/tlemaire/biblio-backend/internal/model"
)

// ErrSampleNotFound is returned when a sample lookup matches no row.
var ErrSampleNotFound = errors.New("sample not found")

// SampleRepo provides data access to the `samples` table. Sample
// status transitions that pair with a borrow transition go through the
// *Tx variants so the lifecycle service can keep both rows consistent
// inside one transaction.
type SampleRepo struct {
	db *sql.DB
}

func NewSampleRepo(db *sql.DB) *SampleRepo { return &SampleRepo{db: db} }

const sampleCols = "id, book_id, unique_code, status, procurement_date, localization"

func scanSample(sc interface {
	Scan(dest ...interface{}) error
}) (model.Sample, error) {
	var s model.Sample
	var proc sql.NullTime
	err := sc.Scan(&s.ID, &s.BookID, &s.UniqueCode, &s.Status, &proc, &s.Localization)
	if err != nil {
		return s, err
	}
	if proc.Valid {
		t := proc.Time
		s.ProcurementDate = &t
	}
	return s, nil
}

// List returns every sample, ordered by book then code.
func (r *SampleRepo) List(ctx context.Context) ([]model.Sample, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sampleCols+" FROM samples ORDER BY book_id, unique_code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSamples(rows)
}

// ListByBook returns all physical copies of one book.
func (r *SampleRepo) ListByBook(ctx context.Context, bookID uint64) ([]model.Sample, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sampleCols+" FROM samples WHERE book_id=? ORDER BY unique_code", bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSamples(rows)
}

func collectSamples(rows *sql.Rows) ([]model.Sample, error) {
	samples := make([]model.Sample, 0)
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// GetByID fetches one sample; ErrSampleNotFound when absent.
func (r *SampleRepo) GetByID(ctx context.Context, id uint64) (model.Sample, error) {
	s, err := scanSample(r.db.QueryRowContext(ctx,
		"SELECT "+sampleCols+" FROM samples WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrSampleNotFound
	}
	return s, err
}

// GetByIDTx is GetByID inside an existing transaction; the lifecycle
// service uses it to re-read sample state after acquiring the tx.
func (r *SampleRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (model.Sample, error) {
	s, err := scanSample(tx.QueryRowContext(ctx,
		"SELECT "+sampleCols+" FROM samples WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrSampleNotFound
	}
	return s, err
}

// Create inserts a sample and populates its generated ID. A duplicate
// unique_code maps to ErrConflict.
func (r *SampleRepo) Create(ctx context.Context, s *model.Sample) error {
	var proc interface{}
	if s.ProcurementDate != nil {
		proc = *s.ProcurementDate
	}
	if s.Status == "" {
		s.Status = model.SampleAvailable
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO samples (book_id, unique_code, status, procurement_date, localization) VALUES (?,?,?,?,?)",
		s.BookID, s.UniqueCode, s.Status, proc, s.Localization)
	if err != nil {
		low := strings.ToLower(err.Error())
		if strings.Contains(low, "1062") || strings.Contains(low, "unique") {
			return ErrConflict
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// UpdateStatusTx unconditionally sets a sample's status within the
// provided transaction.
func (r *SampleRepo) UpdateStatusTx(ctx context.Context, tx *sql.Tx, id uint64, status string) error {
	_, err := tx.ExecContext(ctx, "UPDATE samples SET status=? WHERE id=?", status, id)
	return err
}

// UpdateStatusGuardedTx sets a sample's status only when the row is
// still in the expected state, re-checking inside the transaction so
// two concurrent approvals cannot both claim the copy. It returns
// ErrConflict when the guard matches zero rows.
func (r *SampleRepo) UpdateStatusGuardedTx(ctx context.Context, tx *sql.Tx, id uint64, from, to string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE samples SET status=? WHERE id=? AND status=?", to, id, from)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}
