package repository

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"todo-sync/internal/apperrors"
	"todo-sync/internal/models"
	"todo-sync/internal/store"
)

func newTestCategoryRepo(t *testing.T) *CategoryRepository {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "repo.db"), "test-", 0, zerolog.Nop())
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return NewCategoryRepository(s, zerolog.Nop())
}

func TestCategoryRepository_Create(t *testing.T) {
	repo := newTestCategoryRepo(t)

	category, err := repo.Create(context.Background(), models.CategoryInput{Name: " Work ", Color: "#3b82f6"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if category.Name != "Work" {
		t.Errorf("Expected trimmed name 'Work', got %q", category.Name)
	}
	if category.Color != "#3b82f6" {
		t.Errorf("Expected color preserved, got %q", category.Color)
	}
	if category.ID == "" {
		t.Error("Expected a generated id")
	}
}

func TestCategoryRepository_DuplicateNameCaseInsensitive(t *testing.T) {
	repo := newTestCategoryRepo(t)
	ctx := context.Background()

	if _, err := repo.Create(ctx, models.CategoryInput{Name: "Work", Color: "#fff"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for _, name := range []string{"Work", "work", "WORK", "  work  "} {
		_, err := repo.Create(ctx, models.CategoryInput{Name: name, Color: "#fff"})
		if err == nil {
			t.Fatalf("Expected duplicate rejection for %q", name)
		}
		if !apperrors.IsValidation(err) {
			t.Errorf("Expected validation error kind, got %v", err)
		}
		if !strings.Contains(err.Error(), "already exists") {
			t.Errorf("Expected 'already exists' in error, got %q", err.Error())
		}
	}
}

func TestCategoryRepository_ColorValidation(t *testing.T) {
	repo := newTestCategoryRepo(t)
	ctx := context.Background()

	tests := []struct {
		color string
		valid bool
	}{
		{"#abc", true},
		{"#3b82f6", true},
		{"#ABCDEF", true},
		{"3b82f6", false},
		{"#12", false},
		{"#12345", false},
		{"#gggggg", false},
		{"blue", false},
		{"", false},
	}

	for i, tt := range tests {
		name := "c" + strings.Repeat("x", i) // unique names, one per case
		_, err := repo.Create(ctx, models.CategoryInput{Name: name, Color: tt.color})
		if tt.valid && err != nil {
			t.Errorf("Expected %q to be accepted, got %v", tt.color, err)
		}
		if !tt.valid && !apperrors.IsValidation(err) {
			t.Errorf("Expected %q to be rejected with a validation error, got %v", tt.color, err)
		}
	}
}

func TestCategoryRepository_UpdateKeepsOwnName(t *testing.T) {
	repo := newTestCategoryRepo(t)
	ctx := context.Background()

	category, _ := repo.Create(ctx, models.CategoryInput{Name: "Work", Color: "#fff"})
	repo.Create(ctx, models.CategoryInput{Name: "Home", Color: "#fff"})

	// renaming to its own name (different case) is not a duplicate
	name := "WORK"
	updated, err := repo.Update(ctx, category.ID, models.CategoryUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Expected self-rename to pass, got %v", err)
	}
	if updated.Name != "WORK" {
		t.Errorf("Expected renamed category, got %q", updated.Name)
	}

	// renaming onto another category's name is
	taken := "home"
	if _, err := repo.Update(ctx, category.ID, models.CategoryUpdate{Name: &taken}); !apperrors.IsValidation(err) {
		t.Errorf("Expected duplicate rejection, got %v", err)
	}
}

func TestCategoryRepository_Delete(t *testing.T) {
	repo := newTestCategoryRepo(t)
	ctx := context.Background()

	category, _ := repo.Create(ctx, models.CategoryInput{Name: "Temp", Color: "#fff"})
	if err := repo.Delete(ctx, category.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, found := repo.Get(category.ID); found {
		t.Error("Expected category gone after delete")
	}

	if err := repo.Delete(ctx, category.ID); !apperrors.IsNotFound(err) {
		t.Errorf("Expected not-found on double delete, got %v", err)
	}
}

func TestCategoryRepository_Get(t *testing.T) {
	repo := newTestCategoryRepo(t)

	created, _ := repo.Create(context.Background(), models.CategoryInput{Name: "Work", Color: "#fff"})

	got, found := repo.Get(created.ID)
	if !found {
		t.Fatal("Expected lookup to succeed")
	}
	if got.Name != "Work" {
		t.Errorf("Expected name 'Work', got %q", got.Name)
	}

	if _, found := repo.Get("missing"); found {
		t.Error("Expected miss for unknown id")
	}
}
