package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// BorrowLifecycle mediates all state changes touching a borrow and its
// sample so the single-active-borrow invariant never breaks, even under
// concurrent requests. Every mutating operation runs as one transaction
// spanning the borrows row and (when applicable) the samples row, with
// rollback on any failure; a borrow marked ONGOING with its sample left
// AVAILABLE is exactly the bug class this type exists to prevent.
//
// Races are resolved optimistically: state is re-read inside the
// transaction for precondition errors, then every write re-checks the
// expected previous state in its WHERE clause. A write that matches
// zero rows lost the race and surfaces as ErrConflict.
type BorrowLifecycle struct {
	db      *sql.DB
	borrows *repository.BorrowRepo
	samples *repository.SampleRepo
	users   *repository.UserRepo
	notifs  *repository.NotificationRepo

	// autoApprove makes RequestBorrow skip the PENDING stage and claim
	// the sample immediately. Deployment configuration, not a second
	// code path: approvals simply never see a PENDING row.
	autoApprove bool
}

func NewBorrowLifecycle(db *sql.DB, borrows *repository.BorrowRepo, samples *repository.SampleRepo, users *repository.UserRepo, notifs *repository.NotificationRepo, autoApprove bool) *BorrowLifecycle {
	return &BorrowLifecycle{
		db:          db,
		borrows:     borrows,
		samples:     samples,
		users:       users,
		notifs:      notifs,
		autoApprove: autoApprove,
	}
}

// begin opens a transaction and returns it with a finish func that
// rolls back unless commit succeeded. Mirrors the committed-flag
// pattern used by every mutating operation.
func (l *BorrowLifecycle) begin(ctx context.Context) (*sql.Tx, error) {
	return l.db.BeginTx(ctx, nil)
}

// activeUser loads a user and checks it may take part in a borrow.
func (l *BorrowLifecycle) activeUser(ctx context.Context, id uint64) (model.User, error) {
	u, err := l.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return u, fmt.Errorf("%w: user %d", ErrNotFound, id)
		}
		return u, err
	}
	if u.Status != model.UserActive {
		return u, fmt.Errorf("%w: user %d is not active", ErrValidation, id)
	}
	return u, nil
}

// RequestBorrow creates a borrow request for a sample. The new borrow
// is PENDING and the sample moves to RESERVED (or ONGOING/BORROWED
// when auto-approval is configured), in the same transaction. The
// guarded status transition is also what serializes concurrent
// requests: a plain count of active borrows runs on a snapshot and
// cannot see a competing uncommitted insert, but both writers cannot
// move the sample out of AVAILABLE, so exactly one request wins and
// the other gets ErrConflict. Fails with ErrValidation on malformed
// dates and ErrNotFound when the sample or user is missing.
func (l *BorrowLifecycle) RequestBorrow(ctx context.Context, userID, sampleID uint64, begin, end time.Time) (model.Borrow, error) {
	var b model.Borrow
	if begin.IsZero() || end.IsZero() || !begin.Before(end) {
		return b, fmt.Errorf("%w: begin date must precede end date", ErrValidation)
	}
	if _, err := l.activeUser(ctx, userID); err != nil {
		return b, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return b, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	sample, err := l.samples.GetByIDTx(ctx, tx, sampleID)
	if err != nil {
		if errors.Is(err, repository.ErrSampleNotFound) {
			return b, fmt.Errorf("%w: sample %d", ErrNotFound, sampleID)
		}
		return b, err
	}
	if sample.Status != model.SampleAvailable {
		return b, fmt.Errorf("%w: sample %d is %s", ErrConflict, sampleID, sample.Status)
	}

	// Claim the sample before writing the borrow. The guarded write
	// locks the row, so the count below runs race-free.
	claimed := model.SampleReserved
	if l.autoApprove {
		claimed = model.SampleBorrowed
	}
	if err := l.samples.UpdateStatusGuardedTx(ctx, tx, sampleID, model.SampleAvailable, claimed); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return b, fmt.Errorf("%w: sample %d no longer available", ErrConflict, sampleID)
		}
		return b, err
	}
	active, err := l.borrows.CountActiveForSampleTx(ctx, tx, sampleID)
	if err != nil {
		return b, err
	}
	if active > 0 {
		return b, fmt.Errorf("%w: sample %d already has an active borrow", ErrConflict, sampleID)
	}

	b = model.Borrow{
		UserID:     userID,
		SampleID:   sampleID,
		BorrowedAt: time.Now().UTC(),
		BeginDate:  begin.UTC(),
		EndDate:    end.UTC(),
		Status:     model.BorrowPending,
	}
	if l.autoApprove {
		b.Status = model.BorrowOngoing
	}
	if err := l.borrows.CreateTx(ctx, tx, &b); err != nil {
		return b, err
	}
	if err := tx.Commit(); err != nil {
		return b, err
	}
	committed = true

	// Request confirmation for the borrower. Best effort: the borrow is
	// already committed, so a notification failure only gets logged.
	l.notify(ctx, model.Notification{
		UserID:   userID,
		BorrowID: &b.ID,
		Type:     model.NotifNewReservation,
		Message:  fmt.Sprintf("Borrow request #%d registered for sample %d.", b.ID, sampleID),
	})
	return b, nil
}

// ApproveBorrow turns a PENDING request into an ONGOING borrow and
// moves its sample from RESERVED to BORROWED, atomically. The
// approved_by null check is the idempotency guard: a request already
// approved or rejected fails with ErrConflict, as does a sample no
// longer holding the request's reservation.
func (l *BorrowLifecycle) ApproveBorrow(ctx context.Context, borrowID, approverID uint64) (model.Borrow, error) {
	var b model.Borrow
	if _, err := l.activeUser(ctx, approverID); err != nil {
		return b, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return b, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err = l.borrows.GetByIDTx(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, repository.ErrBorrowNotFound) {
			return b, fmt.Errorf("%w: borrow %d", ErrNotFound, borrowID)
		}
		return b, err
	}
	if b.ApprovedBy != nil {
		return b, fmt.Errorf("%w: borrow %d has already been processed", ErrConflict, borrowID)
	}
	if b.Status != model.BorrowPending {
		return b, fmt.Errorf("%w: borrow %d is %s", ErrConflict, borrowID, b.Status)
	}
	if err := l.samples.UpdateStatusGuardedTx(ctx, tx, b.SampleID, model.SampleReserved, model.SampleBorrowed); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return b, fmt.Errorf("%w: sample %d is no longer reserved", ErrConflict, b.SampleID)
		}
		return b, err
	}
	if err := l.borrows.ApproveTx(ctx, tx, borrowID, approverID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return b, fmt.Errorf("%w: borrow %d has already been processed", ErrConflict, borrowID)
		}
		return b, err
	}
	if err := tx.Commit(); err != nil {
		return b, err
	}
	committed = true

	b.Status = model.BorrowOngoing
	b.ApprovedBy = &approverID
	return b, nil
}

// RejectBorrow cancels a PENDING request and releases the sample's
// reservation. Same idempotency guard as ApproveBorrow.
func (l *BorrowLifecycle) RejectBorrow(ctx context.Context, borrowID, approverID uint64) (model.Borrow, error) {
	var b model.Borrow
	if _, err := l.activeUser(ctx, approverID); err != nil {
		return b, err
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return b, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err = l.borrows.GetByIDTx(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, repository.ErrBorrowNotFound) {
			return b, fmt.Errorf("%w: borrow %d", ErrNotFound, borrowID)
		}
		return b, err
	}
	if b.ApprovedBy != nil {
		return b, fmt.Errorf("%w: borrow %d has already been processed", ErrConflict, borrowID)
	}
	if err := l.borrows.RejectTx(ctx, tx, borrowID, approverID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return b, fmt.Errorf("%w: borrow %d has already been processed", ErrConflict, borrowID)
		}
		return b, err
	}
	if err := l.samples.UpdateStatusTx(ctx, tx, b.SampleID, model.SampleAvailable); err != nil {
		return b, err
	}
	if err := tx.Commit(); err != nil {
		return b, err
	}
	committed = true

	b.Status = model.BorrowCancelled
	b.ApprovedBy = &approverID
	return b, nil
}

// ReturnBorrow completes an ONGOING or LATE borrow and frees the
// sample, atomically. A borrow in any other state fails with
// ErrValidation (out-of-whitelist transition).
func (l *BorrowLifecycle) ReturnBorrow(ctx context.Context, borrowID uint64, returnedAt time.Time) (model.Borrow, error) {
	var b model.Borrow
	if returnedAt.IsZero() {
		returnedAt = time.Now().UTC()
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return b, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err = l.borrows.GetByIDTx(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, repository.ErrBorrowNotFound) {
			return b, fmt.Errorf("%w: borrow %d", ErrNotFound, borrowID)
		}
		return b, err
	}
	if b.Status != model.BorrowOngoing && b.Status != model.BorrowLate {
		return b, fmt.Errorf("%w: cannot return a %s borrow", ErrValidation, b.Status)
	}
	if err := l.borrows.CompleteTx(ctx, tx, borrowID, returnedAt.UTC()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return b, fmt.Errorf("%w: borrow %d changed state", ErrConflict, borrowID)
		}
		return b, err
	}
	if err := l.samples.UpdateStatusTx(ctx, tx, b.SampleID, model.SampleAvailable); err != nil {
		return b, err
	}
	if err := tx.Commit(); err != nil {
		return b, err
	}
	committed = true

	b.Status = model.BorrowCompleted
	ret := returnedAt.UTC()
	b.ReturnedAt = &ret
	return b, nil
}

// CancelBorrow cancels a borrow in any non-terminal state and frees
// its sample in the same transaction. Every non-terminal borrow holds
// the sample, PENDING via the reservation and ONGOING/LATE outright.
func (l *BorrowLifecycle) CancelBorrow(ctx context.Context, borrowID uint64) (model.Borrow, error) {
	var b model.Borrow

	tx, err := l.begin(ctx)
	if err != nil {
		return b, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err = l.borrows.GetByIDTx(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, repository.ErrBorrowNotFound) {
			return b, fmt.Errorf("%w: borrow %d", ErrNotFound, borrowID)
		}
		return b, err
	}
	if b.Status == model.BorrowCompleted || b.Status == model.BorrowCancelled {
		return b, fmt.Errorf("%w: cannot cancel a %s borrow", ErrValidation, b.Status)
	}
	if err := l.borrows.CancelTx(ctx, tx, borrowID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return b, fmt.Errorf("%w: borrow %d changed state", ErrConflict, borrowID)
		}
		return b, err
	}
	if err := l.samples.UpdateStatusTx(ctx, tx, b.SampleID, model.SampleAvailable); err != nil {
		return b, err
	}
	if err := tx.Commit(); err != nil {
		return b, err
	}
	committed = true

	b.Status = model.BorrowCancelled
	return b, nil
}

// MarkLate flips one borrow from ONGOING to LATE. System-driven only:
// the scanner calls it on the overdue edge; it is not reachable from
// the HTTP surface. The guarded update makes the edge fire exactly
// once, so callers can treat success as "I observed the transition".
func (l *BorrowLifecycle) MarkLate(ctx context.Context, borrowID uint64) error {
	tx, err := l.begin(ctx)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := l.borrows.MarkLateTx(ctx, tx, borrowID); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("%w: borrow %d is not ongoing", ErrConflict, borrowID)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// UpdateBorrowParams is the whitelisted field patch accepted by
// UpdateBorrow. Nil fields are left untouched.
type UpdateBorrowParams struct {
	BeginDate  *time.Time
	EndDate    *time.Time
	ReturnDate *time.Time
	Status     *string
}

// UpdateBorrow applies a generic patch restricted to the transition
// whitelist: a return date (or status COMPLETED) runs the return flow,
// status CANCELLED runs the cancel flow, and any other direct status
// write fails with ErrValidation. Date-only patches keep begin < end.
func (l *BorrowLifecycle) UpdateBorrow(ctx context.Context, borrowID uint64, p UpdateBorrowParams) (model.Borrow, error) {
	var zero model.Borrow
	if p.Status != nil {
		switch *p.Status {
		case model.BorrowCancelled:
			return l.CancelBorrow(ctx, borrowID)
		case model.BorrowCompleted:
			ret := time.Now().UTC()
			if p.ReturnDate != nil {
				ret = *p.ReturnDate
			}
			return l.ReturnBorrow(ctx, borrowID, ret)
		default:
			return zero, fmt.Errorf("%w: status %q cannot be set directly", ErrValidation, *p.Status)
		}
	}
	if p.ReturnDate != nil {
		return l.ReturnBorrow(ctx, borrowID, *p.ReturnDate)
	}
	if p.BeginDate == nil && p.EndDate == nil {
		return zero, fmt.Errorf("%w: empty update", ErrValidation)
	}

	tx, err := l.begin(ctx)
	if err != nil {
		return zero, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	b, err := l.borrows.GetByIDTx(ctx, tx, borrowID)
	if err != nil {
		if errors.Is(err, repository.ErrBorrowNotFound) {
			return zero, fmt.Errorf("%w: borrow %d", ErrNotFound, borrowID)
		}
		return zero, err
	}
	begin, end := b.BeginDate, b.EndDate
	if p.BeginDate != nil {
		begin = p.BeginDate.UTC()
	}
	if p.EndDate != nil {
		end = p.EndDate.UTC()
	}
	if !begin.Before(end) {
		return zero, fmt.Errorf("%w: begin date must precede end date", ErrValidation)
	}
	if err := l.borrows.UpdateDatesTx(ctx, tx, borrowID, p.BeginDate, p.EndDate); err != nil {
		return zero, err
	}
	if err := tx.Commit(); err != nil {
		return zero, err
	}
	committed = true

	b.BeginDate = begin
	b.EndDate = end
	return b, nil
}

// notify writes a lifecycle notification, logging instead of failing:
// notifications never abort an already-committed state change.
func (l *BorrowLifecycle) notify(ctx context.Context, n model.Notification) {
	if l.notifs == nil {
		return
	}
	if err := l.notifs.Create(ctx, &n); err != nil {
		log.Printf("lifecycle: create %s notification for user %d failed: %v", n.Type, n.UserID, err)
	}
}
