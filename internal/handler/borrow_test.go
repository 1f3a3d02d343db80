package handler

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
)

func borrowBody(sampleID uint64) string {
	begin := time.Now().UTC().Format("2006-01-02")
	end := time.Now().UTC().Add(14 * 24 * time.Hour).Format("2006-01-02")
	return fmt.Sprintf(`{"sample_id":%d,"begin_date":%q,"end_date":%q}`, sampleID, begin, end)
}

func TestBorrowRequestApproveFlow(t *testing.T) {
	f := newAPIFixture(t)
	_, sampleID := f.seedCatalog(t)
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	rec := f.do(t, http.MethodPost, "/v1/borrows", member, borrowBody(sampleID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var b borrowResp
	decode(t, rec, &b)
	if b.Status != model.BorrowPending || b.UserID != f.member {
		t.Fatalf("created %+v", b)
	}

	// Members cannot approve.
	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/v1/borrows/%d/approve", b.ID), member, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member approve: %d", rec.Code)
	}

	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/v1/borrows/%d/approve", b.ID), librarian, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("approve: %d %s", rec.Code, rec.Body.String())
	}
	var approved borrowResp
	decode(t, rec, &approved)
	if approved.Status != model.BorrowOngoing {
		t.Fatalf("status = %s, want ONGOING", approved.Status)
	}
	if approved.ApprovedBy == nil || *approved.ApprovedBy != f.librarian {
		t.Fatalf("approved_by = %v", approved.ApprovedBy)
	}

	// Approving again conflicts on the approved_by guard.
	rec = f.do(t, http.MethodPatch, fmt.Sprintf("/v1/borrows/%d/approve", b.ID), librarian, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("double approve: %d", rec.Code)
	}

	// A second request for the claimed sample conflicts too.
	rec = f.do(t, http.MethodPost, "/v1/borrows", member, borrowBody(sampleID))
	if rec.Code != http.StatusConflict {
		t.Fatalf("second request: %d", rec.Code)
	}
}

func TestBorrowValidationAndNotFound(t *testing.T) {
	f := newAPIFixture(t)
	_, sampleID := f.seedCatalog(t)
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	// begin after end
	body := fmt.Sprintf(`{"sample_id":%d,"begin_date":"2026-09-20","end_date":"2026-09-10"}`, sampleID)
	rec := f.do(t, http.MethodPost, "/v1/borrows", member, body)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("inverted dates: %d %s", rec.Code, rec.Body.String())
	}

	// unknown sample
	rec = f.do(t, http.MethodPost, "/v1/borrows", member, borrowBody(9999))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown sample: %d", rec.Code)
	}

	// unknown borrow id on approve
	rec = f.do(t, http.MethodPatch, "/v1/borrows/9999/approve", librarian, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown borrow: %d", rec.Code)
	}
}

func TestBorrowVisibilityScoping(t *testing.T) {
	f := newAPIFixture(t)
	_, sampleID := f.seedCatalog(t)
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	rec := f.do(t, http.MethodPost, "/v1/borrows", member, borrowBody(sampleID))
	var b borrowResp
	decode(t, rec, &b)

	// The owner and staff see the borrow; another member does not.
	other, err := f.users.Create(t.Context(), "Petit", "Dan", "dan@lib.test", "pw", model.RoleMember, 4)
	if err != nil {
		t.Fatalf("seed other: %v", err)
	}
	otherTok := f.token(t, other, model.RoleMember)

	if rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/borrows/%d", b.ID), member, ""); rec.Code != http.StatusOK {
		t.Fatalf("owner get: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/borrows/%d", b.ID), librarian, ""); rec.Code != http.StatusOK {
		t.Fatalf("staff get: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/borrows/%d", b.ID), otherTok, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("foreign get: %d", rec.Code)
	}

	// List scoping: member sees 1, stranger sees 0.
	var list []struct {
		ID uint64 `json:"id"`
	}
	rec = f.do(t, http.MethodGet, "/v1/borrows", member, "")
	decode(t, rec, &list)
	if len(list) != 1 {
		t.Fatalf("owner list: %d rows", len(list))
	}
	rec = f.do(t, http.MethodGet, "/v1/borrows", otherTok, "")
	decode(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("foreign list: %d rows", len(list))
	}
}

func TestBorrowCancelAndReturn(t *testing.T) {
	f := newAPIFixture(t)
	_, sampleID := f.seedCatalog(t)
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	rec := f.do(t, http.MethodPost, "/v1/borrows", member, borrowBody(sampleID))
	var b borrowResp
	decode(t, rec, &b)
	f.do(t, http.MethodPatch, fmt.Sprintf("/v1/borrows/%d/approve", b.ID), librarian, "")

	// Return through the whitelisted status patch.
	rec = f.do(t, http.MethodPut, fmt.Sprintf("/v1/borrows/%d", b.ID), librarian, `{"status":"COMPLETED"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("return: %d %s", rec.Code, rec.Body.String())
	}
	var done borrowResp
	decode(t, rec, &done)
	if done.Status != model.BorrowCompleted || done.ReturnedAt == nil {
		t.Fatalf("returned %+v", done)
	}

	// Direct status writes outside the whitelist are refused.
	rec = f.do(t, http.MethodPut, fmt.Sprintf("/v1/borrows/%d", b.ID), librarian, `{"status":"LATE"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("set LATE: %d", rec.Code)
	}

	// The freed sample can be borrowed and cancelled by its owner.
	rec = f.do(t, http.MethodPost, "/v1/borrows", member, borrowBody(sampleID))
	if rec.Code != http.StatusCreated {
		t.Fatalf("re-borrow: %d %s", rec.Code, rec.Body.String())
	}
	var b2 borrowResp
	decode(t, rec, &b2)
	rec = f.do(t, http.MethodDelete, fmt.Sprintf("/v1/borrows/%d", b2.ID), member, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	var cancelled borrowResp
	decode(t, rec, &cancelled)
	if cancelled.Status != model.BorrowCancelled {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}
}

func TestStaffBorrowsForMember(t *testing.T) {
	f := newAPIFixture(t)
	_, sampleID := f.seedCatalog(t)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	begin := time.Now().UTC().Format("2006-01-02")
	end := time.Now().UTC().Add(7 * 24 * time.Hour).Format("2006-01-02")
	body := fmt.Sprintf(`{"user_id":%d,"sample_id":%d,"begin_date":%q,"end_date":%q}`, f.member, sampleID, begin, end)
	rec := f.do(t, http.MethodPost, "/v1/borrows", librarian, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("desk borrow: %d %s", rec.Code, rec.Body.String())
	}
	var b borrowResp
	decode(t, rec, &b)
	if b.UserID != f.member {
		t.Fatalf("borrow went to %d, want %d", b.UserID, f.member)
	}

	// A member cannot borrow on someone else's behalf.
	member := f.token(t, f.member, model.RoleMember)
	body = fmt.Sprintf(`{"user_id":%d,"sample_id":%d,"begin_date":%q,"end_date":%q}`, f.librarian, sampleID, begin, end)
	rec = f.do(t, http.MethodPost, "/v1/borrows", member, body)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member proxy borrow: %d", rec.Code)
	}
}
