package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/tlemaire/biblio-backend/internal/model"
)

func TestBookEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	// Members browse but do not write.
	rec := f.do(t, http.MethodPost, "/v1/books", member, `{"title":"Nana","author":"Zola"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member create: %d", rec.Code)
	}

	body := `{"title":"Nana","author":"Zola","genre":"novel","release_date":"1880-02-15"}`
	rec = f.do(t, http.MethodPost, "/v1/books", librarian, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	var b bookResp
	decode(t, rec, &b)
	if b.Title != "Nana" || b.ReleaseDate == nil {
		t.Fatalf("created %+v", b)
	}

	rec = f.do(t, http.MethodPost, "/v1/books", librarian, `{"title":"Nana"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing author: %d", rec.Code)
	}

	// Partial update keeps untouched fields.
	rec = f.do(t, http.MethodPut, fmt.Sprintf("/v1/books/%d", b.ID), librarian, `{"genre":"naturalist"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: %d %s", rec.Code, rec.Body.String())
	}
	var patched bookResp
	decode(t, rec, &patched)
	if patched.Title != "Nana" || patched.Genre != "naturalist" {
		t.Fatalf("patched %+v", patched)
	}

	if rec := f.do(t, http.MethodPut, "/v1/books/9999", librarian, `{"genre":"x"}`); rec.Code != http.StatusNotFound {
		t.Fatalf("update unknown: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/v1/books/9999", member, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get unknown: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/books/%d", b.ID), "", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: %d", rec.Code)
	}
}

func TestSampleEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	bookID, sampleID := f.seedCatalog(t)
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/v1/books/%d/samples", bookID), member, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list samples: %d %s", rec.Code, rec.Body.String())
	}
	var samples []sampleResp
	decode(t, rec, &samples)
	if len(samples) != 1 || samples[0].ID != sampleID {
		t.Fatalf("samples %+v", samples)
	}

	body := fmt.Sprintf(`{"book_id":%d,"unique_code":"GZ-002"}`, bookID)
	rec = f.do(t, http.MethodPost, "/v1/samples", librarian, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create sample: %d %s", rec.Code, rec.Body.String())
	}
	var s sampleResp
	decode(t, rec, &s)
	if s.Status != model.SampleAvailable {
		t.Fatalf("new sample status %q", s.Status)
	}

	// Codes are unique across the library.
	if rec := f.do(t, http.MethodPost, "/v1/samples", librarian, body); rec.Code != http.StatusConflict {
		t.Fatalf("dup code: %d", rec.Code)
	}
	// The copy must hang off an existing title.
	bad := `{"book_id":9999,"unique_code":"GZ-003"}`
	if rec := f.do(t, http.MethodPost, "/v1/samples", librarian, bad); rec.Code != http.StatusNotFound {
		t.Fatalf("orphan sample: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/v1/samples", member, body); rec.Code != http.StatusForbidden {
		t.Fatalf("member create sample: %d", rec.Code)
	}
}

func TestMemberAdminEndpoints(t *testing.T) {
	f := newAPIFixture(t)
	member := f.token(t, f.member, model.RoleMember)
	librarian := f.token(t, f.librarian, model.RoleLibrarian)

	if rec := f.do(t, http.MethodGet, "/v1/members", member, ""); rec.Code != http.StatusForbidden {
		t.Fatalf("member lists members: %d", rec.Code)
	}

	rec := f.do(t, http.MethodGet, "/v1/members", librarian, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list members: %d %s", rec.Code, rec.Body.String())
	}
	var list []userAdminResp
	decode(t, rec, &list)
	if len(list) != 1 || list[0].ID != f.member {
		t.Fatalf("members %+v", list)
	}

	// Status writes go through the whitelist.
	path := fmt.Sprintf("/v1/members/%d", f.member)
	if rec := f.do(t, http.MethodPut, path, librarian, `{"status":"BANNED"}`); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad status: %d", rec.Code)
	}
	rec = f.do(t, http.MethodPut, path, librarian, `{"status":"suspended"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("suspend: %d %s", rec.Code, rec.Body.String())
	}
	var u userAdminResp
	decode(t, rec, &u)
	if u.Status != model.UserSuspended {
		t.Fatalf("status %q", u.Status)
	}

	// Librarian IDs are invisible through the member surface.
	foreign := fmt.Sprintf("/v1/members/%d", f.librarian)
	if rec := f.do(t, http.MethodGet, foreign, librarian, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("cross-role get: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, foreign, librarian, ""); rec.Code != http.StatusNotFound {
		t.Fatalf("cross-role delete: %d", rec.Code)
	}
	if rec := f.do(t, http.MethodDelete, path, librarian, ""); rec.Code != http.StatusNoContent {
		t.Fatalf("delete member: %d", rec.Code)
	}
}
