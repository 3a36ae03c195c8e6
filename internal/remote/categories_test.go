package remote

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/uuid"

	"todo-sync/internal/apperrors"
	"todo-sync/internal/models"
)

func TestCategoryAdapter_CreateAndList(t *testing.T) {
	_, cats, _, _, _ := newTestAdapters(t)
	ctx := context.Background()

	first, err := cats.Create(ctx, models.CategoryInput{Name: "Work", Color: "#3b82f6"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := uuid.FromString(first.ID); err != nil {
		t.Errorf("Expected a UUID id, got %q", first.ID)
	}
	if first.Order != 0 {
		t.Errorf("Expected first category at order 0, got %d", first.Order)
	}

	second, _ := cats.Create(ctx, models.CategoryInput{Name: "Home", Color: "#10b981"})
	if second.Order != 1 {
		t.Errorf("Expected appended order 1, got %d", second.Order)
	}

	listed, err := cats.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "Work" || listed[1].Name != "Home" {
		t.Errorf("Expected order-sorted listing, got %+v", listed)
	}
}

func TestCategoryAdapter_DuplicateName(t *testing.T) {
	_, cats, _, _, _ := newTestAdapters(t)
	ctx := context.Background()

	cats.Create(ctx, models.CategoryInput{Name: "Work", Color: "#fff"})

	_, err := cats.Create(ctx, models.CategoryInput{Name: "WORK", Color: "#000"})
	if !apperrors.IsValidation(err) {
		t.Fatalf("Expected validation error for duplicate, got %v", err)
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' message, got %q", err.Error())
	}
	// a business rejection must not look like a service failure
	if apperrors.IsRemote(err) {
		t.Error("Duplicate rejection must not be a remote error")
	}
}

func TestCategoryAdapter_UpdateRules(t *testing.T) {
	_, cats, _, _, _ := newTestAdapters(t)
	ctx := context.Background()

	work, _ := cats.Create(ctx, models.CategoryInput{Name: "Work", Color: "#fff"})
	cats.Create(ctx, models.CategoryInput{Name: "Home", Color: "#fff"})

	// self-rename with different casing passes
	name := "WORK"
	updated, err := cats.Update(ctx, work.ID, models.CategoryUpdate{Name: &name})
	if err != nil {
		t.Fatalf("Self-rename failed: %v", err)
	}
	if updated.Name != "WORK" {
		t.Errorf("Expected renamed category, got %q", updated.Name)
	}

	// renaming onto a sibling fails
	taken := "home"
	if _, err := cats.Update(ctx, work.ID, models.CategoryUpdate{Name: &taken}); !apperrors.IsValidation(err) {
		t.Errorf("Expected duplicate rejection, got %v", err)
	}

	badColor := "not-a-color"
	if _, err := cats.Update(ctx, work.ID, models.CategoryUpdate{Color: &badColor}); !apperrors.IsValidation(err) {
		t.Errorf("Expected color rejection, got %v", err)
	}
}

func TestCategoryAdapter_Delete(t *testing.T) {
	_, cats, _, _, _ := newTestAdapters(t)
	ctx := context.Background()

	category, _ := cats.Create(ctx, models.CategoryInput{Name: "Temp", Color: "#fff"})
	if err := cats.Delete(ctx, category.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := cats.Delete(ctx, category.ID); !apperrors.IsNotFound(err) {
		t.Errorf("Expected not-found on double delete, got %v", err)
	}
}

func TestCategoryAdapter_PushPreservesLocalFields(t *testing.T) {
	_, cats, _, _, _ := newTestAdapters(t)
	ctx := context.Background()

	created := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	local := models.Category{
		ID:        "1700000000000-abc123",
		Name:      "Errands",
		Color:     "#f59e0b",
		CreatedAt: created,
	}

	pushed, err := cats.Push(ctx, local)
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	if pushed.ID == local.ID {
		t.Error("Expected a fresh remote id, not the local one")
	}
	if _, err := uuid.FromString(pushed.ID); err != nil {
		t.Errorf("Expected a UUID id, got %q", pushed.ID)
	}
	if pushed.Name != "Errands" || pushed.Color != "#f59e0b" || !pushed.CreatedAt.Equal(created) {
		t.Errorf("Expected local fields preserved, got %+v", pushed)
	}

	// pushing a category whose name already exists remotely is rejected
	if _, err := cats.Push(ctx, local); !apperrors.IsValidation(err) {
		t.Errorf("Expected duplicate rejection on second push, got %v", err)
	}
}
