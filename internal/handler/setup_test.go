package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tlemaire/biblio-backend/internal/config"
	"github.com/tlemaire/biblio-backend/internal/middleware"
	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/repository"
	"github.com/tlemaire/biblio-backend/internal/service"
	"github.com/tlemaire/biblio-backend/internal/testutil"
	"github.com/tlemaire/biblio-backend/internal/utils"
)

const testSecret = "test-secret"

// apiFixture wires the full HTTP surface against an in-memory database,
// without Redis or the message queue.
type apiFixture struct {
	db      *sql.DB
	e       *echo.Echo
	cfg     config.Config
	users   *repository.UserRepo
	tokens  *repository.TokenRepo
	books   *repository.BookRepo
	samples *repository.SampleRepo
	borrows *repository.BorrowRepo
	notifs  *repository.NotificationRepo

	member    uint64
	librarian uint64
	admin     uint64
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.OpenDB(t)
	f := &apiFixture{
		db: db,
		cfg: config.Config{
			Env:            "test",
			JWTSecret:      testSecret,
			AccessTTLMin:   15,
			RefreshTTLDays: 7,
			BcryptCost:     4,
		},
		users:   repository.NewUserRepo(db),
		tokens:  repository.NewTokenRepo(db),
		books:   repository.NewBookRepo(db),
		samples: repository.NewSampleRepo(db),
		borrows: repository.NewBorrowRepo(db),
		notifs:  repository.NewNotificationRepo(db),
	}

	ctx := context.Background()
	var err error
	f.member, err = f.users.Create(ctx, "Martin", "Alice", "alice@lib.test", "secret", model.RoleMember, 4)
	if err != nil {
		t.Fatalf("seed member: %v", err)
	}
	f.librarian, err = f.users.Create(ctx, "Dupont", "Bob", "bob@lib.test", "secret", model.RoleLibrarian, 4)
	if err != nil {
		t.Fatalf("seed librarian: %v", err)
	}
	f.admin, err = f.users.Create(ctx, "Roy", "Carol", "carol@lib.test", "secret", model.RoleAdmin, 4)
	if err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	lifecycle := service.NewBorrowLifecycle(db, f.borrows, f.samples, f.users, f.notifs, false)

	e := echo.New()
	jwtMW := middleware.JWTAuth(testSecret, nil)
	staffMW := middleware.RequireRole(model.RoleLibrarian, model.RoleAdmin)

	authH := NewAuthHandler(f.cfg, f.users, f.tokens, nil)
	bookH := NewBookHandler(f.books, f.samples)
	sampleH := NewSampleHandler(f.samples, f.books, f.borrows)
	borrowH := NewBorrowHandler(lifecycle, f.borrows)
	notifH := NewNotificationHandler(f.notifs)
	memberH := NewUserAdminHandler(f.users, model.RoleMember)

	e.POST("/v1/auth/register", authH.Register)
	e.POST("/v1/auth/login", authH.Login)
	e.POST("/v1/auth/refresh", authH.Refresh)
	e.POST("/v1/auth/logout", authH.Logout)

	auth := e.Group("/v1", jwtMW)
	auth.GET("/me", authH.Me)
	auth.GET("/books", bookH.List)
	auth.GET("/books/:id", bookH.Get)
	auth.GET("/books/:id/samples", bookH.ListSamples)
	auth.POST("/borrows", borrowH.Create)
	auth.GET("/borrows", borrowH.List)
	auth.GET("/borrows/:id", borrowH.Get)
	auth.DELETE("/borrows/:id", borrowH.Cancel)
	auth.GET("/notifications/:user_id", notifH.List)
	auth.POST("/notifications/:id/mark-read", notifH.MarkRead)
	auth.GET("/notifications/stream/:user_id", notifH.Stream)

	staff := auth.Group("", staffMW)
	staff.POST("/books", bookH.Create)
	staff.PUT("/books/:id", bookH.Update)
	staff.GET("/samples", sampleH.List)
	staff.POST("/samples", sampleH.Create)
	staff.GET("/samples/:id/borrows", sampleH.ListBorrows)
	staff.PATCH("/borrows/:id/approve", borrowH.Approve)
	staff.PATCH("/borrows/:id/reject", borrowH.Reject)
	staff.PUT("/borrows/:id", borrowH.Update)

	members := auth.Group("/members", staffMW)
	members.GET("", memberH.List)
	members.GET("/:id", memberH.Get)
	members.PUT("/:id", memberH.Update)
	members.DELETE("/:id", memberH.Delete)

	f.e = e
	return f
}

// token mints an access token for the given seeded user.
func (f *apiFixture) token(t *testing.T, userID uint64, role string) string {
	t.Helper()
	at, err := utils.NewAccessToken(testSecret, userID, role, 15)
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return at.Token
}

// do performs a request against the wired Echo instance.
func (f *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a JSON response body into dst.
func decode(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

// seedCatalog inserts one book with one available sample and returns
// their IDs.
func (f *apiFixture) seedCatalog(t *testing.T) (bookID, sampleID uint64) {
	t.Helper()
	ctx := context.Background()
	b := model.Book{Title: "Germinal", Author: "Zola", CreatedAt: time.Now().UTC()}
	if err := f.books.Create(ctx, &b); err != nil {
		t.Fatalf("seed book: %v", err)
	}
	s := model.Sample{BookID: b.ID, UniqueCode: "GZ-001", Status: model.SampleAvailable}
	if err := f.samples.Create(ctx, &s); err != nil {
		t.Fatalf("seed sample: %v", err)
	}
	return b.ID, s.ID
}
