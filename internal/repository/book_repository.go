package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
)

// ErrBookNotFound is returned when a book lookup matches no row.
var ErrBookNotFound = errors.New("book not found")

// BookRepo provides read and edit access to the `books` table. The
// catalog is read-mostly; the only mutations are the explicit
// librarian create/edit operations.
type BookRepo struct {
	db *sql.DB
}

func NewBookRepo(db *sql.DB) *BookRepo { return &BookRepo{db: db} }

const bookCols = "id, title, author, genre, category, description, release_date, cover_image, created_at"

func scanBook(sc interface {
	Scan(dest ...interface{}) error
}) (model.Book, error) {
	var b model.Book
	var release sql.NullTime
	err := sc.Scan(&b.ID, &b.Title, &b.Author, &b.Genre, &b.Category,
		&b.Description, &release, &b.CoverImage, &b.CreatedAt)
	if err != nil {
		return b, err
	}
	if release.Valid {
		t := release.Time
		b.ReleaseDate = &t
	}
	return b, nil
}

// List returns the full catalog ordered by title.
func (r *BookRepo) List(ctx context.Context) ([]model.Book, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+bookCols+" FROM books ORDER BY title")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	books := make([]model.Book, 0)
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// GetByID fetches one book; ErrBookNotFound when absent.
func (r *BookRepo) GetByID(ctx context.Context, id uint64) (model.Book, error) {
	b, err := scanBook(r.db.QueryRowContext(ctx,
		"SELECT "+bookCols+" FROM books WHERE id=? LIMIT 1", id))
	if errors.Is(err, sql.ErrNoRows) {
		return b, ErrBookNotFound
	}
	return b, err
}

// Create inserts a book and populates its generated ID.
func (r *BookRepo) Create(ctx context.Context, b *model.Book) error {
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO books (title, author, genre, category, description, release_date, cover_image, created_at) VALUES (?,?,?,?,?,?,?,?)",
		b.Title, b.Author, b.Genre, b.Category, b.Description, nullTime(b.ReleaseDate), b.CoverImage, time.Now().UTC())
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

// Update applies the non-empty fields of the patch to a book row.
// release_date and cover_image are only written when set on the patch.
func (r *BookRepo) Update(ctx context.Context, id uint64, patch model.Book) error {
	sets := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	add := func(col, v string) {
		if v != "" {
			sets = append(sets, col+"=?")
			args = append(args, v)
		}
	}
	add("title", patch.Title)
	add("author", patch.Author)
	add("genre", patch.Genre)
	add("category", patch.Category)
	add("description", patch.Description)
	add("cover_image", patch.CoverImage)
	if patch.ReleaseDate != nil {
		sets = append(sets, "release_date=?")
		args = append(args, *patch.ReleaseDate)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)
	// Existence is checked by the caller; a zero rows-affected count is
	// not meaningful here since MySQL reports 0 for identical values.
	_, err := r.db.ExecContext(ctx,
		"UPDATE books SET "+strings.Join(sets, ", ")+" WHERE id=?", args...)
	return err
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
