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

// SampleHandler exposes the physical-copy endpoints. These are librarian
// surfaces: members see samples only through the per-book listing.
type SampleHandler struct {
	Samples *repository.SampleRepo
	Books   *repository.BookRepo
	Borrows *repository.BorrowRepo
}

func NewSampleHandler(s *repository.SampleRepo, bk *repository.BookRepo, br *repository.BorrowRepo) *SampleHandler {
	return &SampleHandler{Samples: s, Books: bk, Borrows: br}
}

type sampleReq struct {
	BookID          uint64 `json:"book_id"`
	UniqueCode      string `json:"unique_code"`
	ProcurementDate string `json:"procurement_date"` // YYYY-MM-DD or RFC3339
	Localization    string `json:"localization"`
}

type sampleResp struct {
	ID              uint64     `json:"id"`
	BookID          uint64     `json:"book_id"`
	UniqueCode      string     `json:"unique_code"`
	Status          string     `json:"status"`
	ProcurementDate *time.Time `json:"procurement_date"`
	Localization    string     `json:"localization"`
}

func toSampleResp(s model.Sample) sampleResp {
	return sampleResp{
		ID:              s.ID,
		BookID:          s.BookID,
		UniqueCode:      s.UniqueCode,
		Status:          s.Status,
		ProcurementDate: s.ProcurementDate,
		Localization:    s.Localization,
	}
}

// List returns every sample in the library.
func (h *SampleHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	samples, err := h.Samples.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	out := make([]sampleResp, 0, len(samples))
	for _, s := range samples {
		out = append(out, toSampleResp(s))
	}
	return c.JSON(http.StatusOK, out)
}

// Create registers a new physical copy. The copy starts AVAILABLE; a
// duplicate unique code answers 409.
func (h *SampleHandler) Create(c echo.Context) error {
	var req sampleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid body"})
	}
	req.UniqueCode = strings.TrimSpace(req.UniqueCode)
	if req.BookID == 0 || req.UniqueCode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "book_id/unique_code required"})
	}
	procured, err := parseDate(req.ProcurementDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Books.GetByID(ctx, req.BookID); err != nil {
		if errors.Is(err, repository.ErrBookNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "book not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}

	s := model.Sample{
		BookID:          req.BookID,
		UniqueCode:      req.UniqueCode,
		Status:          model.SampleAvailable,
		ProcurementDate: procured,
		Localization:    req.Localization,
	}
	if err := h.Samples.Create(ctx, &s); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "conflict", "message": "unique code already in use"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "create sample failed"})
	}
	return c.JSON(http.StatusCreated, toSampleResp(s))
}

// ListBorrows returns a sample's full borrow history, newest first.
func (h *SampleHandler) ListBorrows(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Samples.GetByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrSampleNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "sample not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	borrows, err := h.Borrows.ListBySample(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	out := make([]borrowResp, 0, len(borrows))
	for _, b := range borrows {
		out = append(out, toBorrowResp(b))
	}
	return c.JSON(http.StatusOK, out)
}
