package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
)

// BookHandler exposes the catalog title endpoints. Browsing is open to any
// authenticated user; create and edit are gated to librarians and admins by
// the router.
type BookHandler struct {
	Books   *repository.BookRepo
	Samples *repository.SampleRepo
}

func NewBookHandler(b *repository.BookRepo, s *repository.SampleRepo) *BookHandler {
	return &BookHandler{Books: b, Samples: s}
}

type bookReq struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Genre       string `json:"genre"`
	Category    string `json:"category"`
	Description string `json:"description"`
	ReleaseDate string `json:"release_date"` // YYYY-MM-DD or RFC3339
	CoverImage  string `json:"cover_image"`
}

type bookResp struct {
	ID          uint64     `json:"id"`
	Title       string     `json:"title"`
	Author      string     `json:"author"`
	Genre       string     `json:"genre"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	ReleaseDate *time.Time `json:"release_date"`
	CoverImage  string     `json:"cover_image"`
	CreatedAt   time.Time  `json:"created_at"`
}

func toBookResp(b model.Book) bookResp {
	return bookResp{
		ID:          b.ID,
		Title:       b.Title,
		Author:      b.Author,
		Genre:       b.Genre,
		Category:    b.Category,
		Description: b.Description,
		ReleaseDate: b.ReleaseDate,
		CoverImage:  b.CoverImage,
		CreatedAt:   b.CreatedAt,
	}
}

// parseDate accepts a bare date or a full RFC3339 timestamp.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, errors.New("invalid date: " + s)
	}
	t = t.UTC()
	return &t, nil
}

// List returns all catalog titles.
func (h *BookHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	books, err := h.Books.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	out := make([]bookResp, 0, len(books))
	for _, b := range books {
		out = append(out, toBookResp(b))
	}
	return c.JSON(http.StatusOK, out)
}

// Get returns a single title by ID.
func (h *BookHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	return c.JSON(http.StatusOK, toBookResp(b))
}

// ListSamples returns the physical copies of one title.
func (h *BookHandler) ListSamples(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Books.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	samples, err := h.Samples.ListByBook(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	out := make([]sampleResp, 0, len(samples))
	for _, s := range samples {
		out = append(out, toSampleResp(s))
	}
	return c.JSON(http.StatusOK, out)
}

// Create adds a new title to the catalog.
func (h *BookHandler) Create(c echo.Context) error {
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid body"})
	}
	req.Title = strings.TrimSpace(req.Title)
	req.Author = strings.TrimSpace(req.Author)
	if req.Title == "" || req.Author == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "title/author required"})
	}
	release, err := parseDate(req.ReleaseDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b := model.Book{
		Title:       req.Title,
		Author:      req.Author,
		Genre:       req.Genre,
		Category:    req.Category,
		Description: req.Description,
		ReleaseDate: release,
		CoverImage:  req.CoverImage,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.Books.Create(ctx, &b); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "create book failed"})
	}
	return c.JSON(http.StatusCreated, toBookResp(b))
}

// Update edits a title. Missing fields keep their current value; the row
// is read first so a wrong ID answers 404 instead of silently writing
// nothing.
func (h *BookHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid body"})
	}
	release, err := parseDate(req.ReleaseDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	cur, err := h.Books.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}

	patch := cur
	if s := strings.TrimSpace(req.Title); s != "" {
		patch.Title = s
	}
	if s := strings.TrimSpace(req.Author); s != "" {
		patch.Author = s
	}
	if req.Genre != "" {
		patch.Genre = req.Genre
	}
	if req.Category != "" {
		patch.Category = req.Category
	}
	if req.Description != "" {
		patch.Description = req.Description
	}
	if release != nil {
		patch.ReleaseDate = release
	}
	if req.CoverImage != "" {
		patch.CoverImage = req.CoverImage
	}
	if err := h.Books.Update(ctx, id, patch); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "update book failed"})
	}
	return c.JSON(http.StatusOK, toBookResp(patch))
}
