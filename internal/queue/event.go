// Package queue defines message payloads exchanged over the message broker.
package queue

// BorrowApprovedEvent is published when a borrow request is approved
// and the sample is handed out. It contains enough information for
// downstream consumers to log, notify, or feed analytics without
// querying the primary database.
type BorrowApprovedEvent struct {
	BorrowID   uint64 `json:"borrow_id"`
	UserID     uint64 `json:"user_id"`
	ApproverID uint64 `json:"approver_id"`
	SampleID   uint64 `json:"sample_id"`
	SampleCode string `json:"sample_code"`
	BookTitle  string `json:"book_title"`
	BeginDate  string `json:"begin_date"`
	EndDate    string `json:"end_date"`
	ApprovedAt string `json:"approved_at"`
}
