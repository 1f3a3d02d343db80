package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/queue"
	"github.com/tlemaire/biblio-backend/internal/repository"
	"github.com/tlemaire/biblio-backend/internal/service"
)

// BorrowHandler exposes the borrow lifecycle over HTTP. All state changes
// go through the lifecycle manager; the handler only parses, authorizes
// and maps errors. Members operate on their own borrows, librarians and
// admins on anyone's.
type BorrowHandler struct {
	Lifecycle *service.BorrowLifecycle
	Borrows   *repository.BorrowRepo
}

func NewBorrowHandler(l *service.BorrowLifecycle, b *repository.BorrowRepo) *BorrowHandler {
	return &BorrowHandler{Lifecycle: l, Borrows: b}
}

type borrowCreateReq struct {
	UserID    uint64 `json:"user_id"` // staff only; members borrow for themselves
	SampleID  uint64 `json:"sample_id"`
	BeginDate string `json:"begin_date"`
	EndDate   string `json:"end_date"`
}

type borrowUpdateReq struct {
	BeginDate  *string `json:"begin_date"`
	EndDate    *string `json:"end_date"`
	ReturnDate *string `json:"return_date"`
	Status     *string `json:"status"`
}

type borrowResp struct {
	ID         uint64     `json:"id"`
	UserID     uint64     `json:"user_id"`
	SampleID   uint64     `json:"sample_id"`
	ApprovedBy *uint64    `json:"approved_by"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	BeginDate  time.Time  `json:"begin_date"`
	EndDate    time.Time  `json:"end_date"`
	ReturnedAt *time.Time `json:"returned_at"`
	Status     string     `json:"status"`
}

func toBorrowResp(b model.Borrow) borrowResp {
	return borrowResp{
		ID:         b.ID,
		UserID:     b.UserID,
		SampleID:   b.SampleID,
		ApprovedBy: b.ApprovedBy,
		BorrowedAt: b.BorrowedAt,
		BeginDate:  b.BeginDate,
		EndDate:    b.EndDate,
		ReturnedAt: b.ReturnedAt,
		Status:     b.Status,
	}
}

// Create registers a borrow request. Members always borrow for
// themselves; a librarian or admin may pass user_id to request on a
// member's behalf (walk-in desk flow).
func (h *BorrowHandler) Create(c echo.Context) error {
	var req borrowCreateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid body"})
	}
	if req.SampleID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "sample_id required"})
	}
	begin, err := parseDate(req.BeginDate)
	if err != nil || begin == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "begin_date required"})
	}
	end, err := parseDate(req.EndDate)
	if err != nil || end == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "end_date required"})
	}

	userID := authUserID(c)
	if req.UserID != 0 && req.UserID != userID {
		if !isStaff(c) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": "members borrow for themselves"})
		}
		userID = req.UserID
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Lifecycle.RequestBorrow(ctx, userID, req.SampleID, *begin, *end)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusCreated, toBorrowResp(b))
}

// List returns borrows with user, sample and book context. Staff see
// every borrow; members only their own.
func (h *BorrowHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	var filter uint64
	if !isStaff(c) {
		filter = authUserID(c)
	}
	details, err := h.Borrows.ListDetails(ctx, filter)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	return c.JSON(http.StatusOK, details)
}

// Get returns one borrow with full context. Members may only read their
// own; a foreign ID answers 404 so borrow IDs are not probeable.
func (h *BorrowHandler) Get(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	detail, err := h.Borrows.GetDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrBorrowNotFound) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "borrow not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
	}
	if !isStaff(c) && detail.User.ID != authUserID(c) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "borrow not found"})
	}
	return c.JSON(http.StatusOK, detail)
}

// Approve turns a pending request into an ongoing borrow. The approver is
// the authenticated librarian or admin. On success a borrow.approved
// event goes to the message queue, best effort.
func (h *BorrowHandler) Approve(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	approver := authUserID(c)
	b, err := h.Lifecycle.ApproveBorrow(ctx, id, approver)
	if err != nil {
		return serviceError(c, err)
	}
	h.publishApproved(b, approver)
	return c.JSON(http.StatusOK, toBorrowResp(b))
}

// Reject cancels a pending request without touching the sample.
func (h *BorrowHandler) Reject(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Lifecycle.RejectBorrow(ctx, id, authUserID(c))
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toBorrowResp(b))
}

// Update applies a whitelisted patch: dates, a return date or a terminal
// status. Everything else is rejected by the lifecycle manager.
func (h *BorrowHandler) Update(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	var req borrowUpdateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid body"})
	}

	var p service.UpdateBorrowParams
	if req.BeginDate != nil {
		t, err := parseDate(*req.BeginDate)
		if err != nil || t == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid begin_date"})
		}
		p.BeginDate = t
	}
	if req.EndDate != nil {
		t, err := parseDate(*req.EndDate)
		if err != nil || t == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid end_date"})
		}
		p.EndDate = t
	}
	if req.ReturnDate != nil {
		t, err := parseDate(*req.ReturnDate)
		if err != nil || t == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": "invalid return_date"})
		}
		p.ReturnDate = t
	}
	p.Status = req.Status

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Lifecycle.UpdateBorrow(ctx, id, p)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toBorrowResp(b))
}

// Cancel aborts a non-terminal borrow. Members can only cancel their own.
func (h *BorrowHandler) Cancel(c echo.Context) error {
	id, err := idParam(c, "id")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation", "message": err.Error()})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if !isStaff(c) {
		b, err := h.Borrows.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, repository.ErrBorrowNotFound) {
				return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "borrow not found"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "query failed"})
		}
		if b.UserID != authUserID(c) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "borrow not found"})
		}
	}

	b, err := h.Lifecycle.CancelBorrow(ctx, id)
	if err != nil {
		return serviceError(c, err)
	}
	return c.JSON(http.StatusOK, toBorrowResp(b))
}

// publishApproved enriches the approval with sample and book context and
// hands it to the queue. The borrow is already committed; publish errors
// only get logged.
func (h *BorrowHandler) publishApproved(b model.Borrow, approverID uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ev := queue.BorrowApprovedEvent{
		BorrowID:   b.ID,
		UserID:     b.UserID,
		ApproverID: approverID,
		SampleID:   b.SampleID,
		BeginDate:  b.BeginDate.Format("2006-01-02"),
		EndDate:    b.EndDate.Format("2006-01-02"),
		ApprovedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if detail, err := h.Borrows.GetDetailByID(ctx, b.ID); err == nil {
		ev.SampleCode = detail.Sample.UniqueCode
		ev.BookTitle = detail.Sample.Book.Title
	}
	if err := service.PublishBorrowApproved(ctx, ev); err != nil {
		// Queue may be down; the approval itself already succeeded.
		log.Printf("borrow: publish borrow.approved %d failed: %v", b.ID, err)
	}
}
