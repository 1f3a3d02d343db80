package model

import "time"

// Borrow status values.  The lifecycle is:
//
//	PENDING  -> ONGOING | CANCELLED
//	ONGOING  -> LATE | COMPLETED | CANCELLED
//	LATE     -> COMPLETED | CANCELLED
//
// COMPLETED and CANCELLED are terminal; no transition re-enters PENDING.
const (
	BorrowPending   = "PENDING"
	BorrowOngoing   = "ONGOING"
	BorrowCompleted = "COMPLETED"
	BorrowLate      = "LATE"
	BorrowCancelled = "CANCELLED"
)

// Borrow records one sample lent to one user for a date range, as
// stored in the `borrows` table.  Exactly one borrow per sample may be
// in {PENDING, ONGOING, LATE} at any time; the lifecycle service
// enforces this together with samples.status inside one transaction.
//
// Fields:
//  ID         – primary key identifier.
//  UserID     – borrower.
//  SampleID   – physical copy being borrowed.
//  ApprovedBy – librarian who approved or rejected the request
//               (null until the request is processed; the null check
//               is the idempotency guard for approve/reject).
//  BorrowedAt – when the request was created.
//  BeginDate  – start of the lending period.
//  EndDate    – due date.
//  ReturnedAt – when the sample came back (null while out).
//  Status     – PENDING, ONGOING, COMPLETED, LATE or CANCELLED.
type Borrow struct {
	ID         uint64     // borrows.id
	UserID     uint64     // borrows.user_id
	SampleID   uint64     // borrows.sample_id
	ApprovedBy *uint64    // borrows.approved_by (nullable)
	BorrowedAt time.Time  // borrows.borrowed_at
	BeginDate  time.Time  // borrows.begin_date
	EndDate    time.Time  // borrows.end_date
	ReturnedAt *time.Time // borrows.returned_at (nullable)
	Status     string     // borrows.status
}

// ActiveBorrowStatuses lists the states in which a borrow still claims
// its sample.  Used by the single-active-borrow invariant checks.
var ActiveBorrowStatuses = []string{BorrowPending, BorrowOngoing, BorrowLate}
