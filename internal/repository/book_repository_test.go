package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tlemaire/biblio-backend/internal/model"
	"github.com/tlemaire/biblio-backend/internal/testutil"
)

func TestBookCreateGetUpdate(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewBookRepo(db)
	ctx := context.Background()

	release := time.Date(1885, 3, 1, 0, 0, 0, 0, time.UTC)
	b := model.Book{
		Title:       "Germinal",
		Author:      "Émile Zola",
		Genre:       "Novel",
		Category:    "Classics",
		ReleaseDate: &release,
		CreatedAt:   time.Now().UTC(),
	}
	if err := repo.Create(ctx, &b); err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.ID == 0 {
		t.Fatalf("create did not backfill the id")
	}

	got, err := repo.GetByID(ctx, b.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Germinal" || got.ReleaseDate == nil || !got.ReleaseDate.Equal(release) {
		t.Fatalf("got %+v", got)
	}

	got.Description = "A mining strike in northern France."
	if err := repo.Update(ctx, b.ID, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := repo.GetByID(ctx, b.ID)
	if again.Description != got.Description {
		t.Fatalf("update lost the description")
	}

	if _, err := repo.GetByID(ctx, 9999); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("missing book: err = %v, want ErrBookNotFound", err)
	}

	list, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("got %d books, want 1", len(list))
	}
}

func TestSampleUniqueCodeConflict(t *testing.T) {
	db := testutil.OpenDB(t)
	books := NewBookRepo(db)
	samples := NewSampleRepo(db)
	ctx := context.Background()

	b := model.Book{Title: "Germinal", Author: "Zola", CreatedAt: time.Now().UTC()}
	if err := books.Create(ctx, &b); err != nil {
		t.Fatalf("book: %v", err)
	}
	s1 := model.Sample{BookID: b.ID, UniqueCode: "GZ-001", Status: model.SampleAvailable}
	if err := samples.Create(ctx, &s1); err != nil {
		t.Fatalf("first sample: %v", err)
	}
	s2 := model.Sample{BookID: b.ID, UniqueCode: "GZ-001", Status: model.SampleAvailable}
	if err := samples.Create(ctx, &s2); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate code: err = %v, want ErrConflict", err)
	}
}
