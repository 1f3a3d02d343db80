package model

import "time"

// Sample status values.  Status is the concurrency-sensitive field: at
// most one active borrow may reference a sample at a time, and the
// lifecycle manager is the sole writer.
const (
	SampleAvailable   = "AVAILABLE"
	SampleBorrowed    = "BORROWED"
	SampleReserved    = "RESERVED"
	SampleUnavailable = "UNAVAILABLE"
)

// Sample represents one physical, individually tracked copy of a book
// as stored in the `samples` table.
//
// Fields:
//  ID              – primary key identifier.
//  BookID          – owning book.
//  UniqueCode      – unique physical-copy code printed on the item.
//  Status          – AVAILABLE, BORROWED, RESERVED or UNAVAILABLE.
//  ProcurementDate – when the copy was acquired (nullable).
//  Localization    – shelf/room location inside the library.
type Sample struct {
	ID              uint64     // samples.id
	BookID          uint64     // samples.book_id
	UniqueCode      string     // samples.unique_code
	Status          string     // samples.status
	ProcurementDate *time.Time // samples.procurement_date (nullable)
	Localization    string     // samples.localization
}
