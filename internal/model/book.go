package model

import "time"

// Book represents a catalog title as stored in the `books` table.
// A book is metadata only; physical copies are tracked separately as
// samples.  Rows are immutable except through the librarian edit
// endpoints.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – book title.
//  Author      – author name.
//  Genre       – literary genre (free text).
//  Category    – shelving category (free text).
//  Description – long description.
//  ReleaseDate – original publication date (nullable).
//  CoverImage  – reference to the cover image (URL or object key).
//  CreatedAt   – when the book was added to the catalog.
type Book struct {
	ID          uint64     // books.id
	Title       string     // books.title
	Author      string     // books.author
	Genre       string     // books.genre
	Category    string     // books.category
	Description string     // books.description
	ReleaseDate *time.Time // books.release_date (nullable)
	CoverImage  string     // books.cover_image
	CreatedAt   time.Time  // books.created_at
}
