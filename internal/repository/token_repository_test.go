package repository

import (
	"context"
	"testing"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/testutil"
	"github.com/tlemaire/biblio-backend/internal/utils"
)

func seedUser(t *testing.T, users *UserRepo, email string) uint64 {
	t.Helper()
	id, err := users.Create(context.Background(), "Test", "User", email, "pw", model.RoleMember, 4)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func TestRefreshTokenLifetime(t *testing.T) {
	db := testutil.OpenDB(t)
	users := NewUserRepo(db)
	tokens := NewTokenRepo(db)
	ctx := context.Background()
	uid := seedUser(t, users, "alice@lib.test")

	ref, err := utils.NewRefreshToken(7)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	hash := utils.HashRefreshRaw(ref.Raw)
	if err := tokens.StoreRefresh(ctx, uid, hash, ref.Exp); err != nil {
		t.Fatalf("store: %v", err)
	}

	got, err := tokens.ValidateRefresh(ctx, hash)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got != uid {
		t.Fatalf("user = %d, want %d", got, uid)
	}
	// The raw token never validates; only its hash is stored.
	if _, err := tokens.ValidateRefresh(ctx, ref.Raw); err == nil {
		t.Fatalf("raw token validated")
	}

	if err := tokens.RevokeByHash(ctx, hash); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := tokens.ValidateRefresh(ctx, hash); err == nil {
		t.Fatalf("revoked token validated")
	}
}

func TestExpiredRefreshRejected(t *testing.T) {
	db := testutil.OpenDB(t)
	users := NewUserRepo(db)
	tokens := NewTokenRepo(db)
	ctx := context.Background()
	uid := seedUser(t, users, "alice@lib.test")

	hash := utils.HashRefreshRaw("expired-token")
	if err := tokens.StoreRefresh(ctx, uid, hash, time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("store: %v", err)
	}
	if _, err := tokens.ValidateRefresh(ctx, hash); err == nil {
		t.Fatalf("expired token validated")
	}
}

func TestRevokeAllForUser(t *testing.T) {
	db := testutil.OpenDB(t)
	users := NewUserRepo(db)
	tokens := NewTokenRepo(db)
	ctx := context.Background()
	uid := seedUser(t, users, "alice@lib.test")
	other := seedUser(t, users, "bob@lib.test")

	exp := time.Now().UTC().Add(24 * time.Hour)
	for _, h := range []string{"h1", "h2"} {
		if err := tokens.StoreRefresh(ctx, uid, h, exp); err != nil {
			t.Fatalf("store %s: %v", h, err)
		}
	}
	if err := tokens.StoreRefresh(ctx, other, "h3", exp); err != nil {
		t.Fatalf("store h3: %v", err)
	}

	if err := tokens.RevokeAllForUser(ctx, uid); err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	for _, h := range []string{"h1", "h2"} {
		if _, err := tokens.ValidateRefresh(ctx, h); err == nil {
			t.Fatalf("%s still valid after revoke all", h)
		}
	}
	// Another user's session survives.
	if _, err := tokens.ValidateRefresh(ctx, "h3"); err != nil {
		t.Fatalf("unrelated session revoked: %v", err)
	}
}
