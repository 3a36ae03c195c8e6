package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"todo-sync/internal/apperrors"
	"todo-sync/internal/models"
	"todo-sync/internal/store"
)

type CategoryRepository struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewCategoryRepository(s *store.Store, logger zerolog.Logger) *CategoryRepository {
	return &CategoryRepository{store: s, logger: logger}
}

func (r *CategoryRepository) load() []models.Category {
	categories := []models.Category{}
	r.store.Get(store.KeyCategories, &categories)
	return categories
}

func (r *CategoryRepository) save(categories []models.Category) error {
	if !r.store.Set(store.KeyCategories, categories) {
		return apperrors.Storagef("failed to write categories")
	}
	return nil
}

func (r *CategoryRepository) Create(ctx context.Context, input models.CategoryInput) (*models.Category, error) {
	name, err := models.ValidateCategoryName(input.Name)
	if err != nil {
		return nil, err
	}
	color, err := models.ValidateColor(input.Color)
	if err != nil {
		return nil, err
	}

	categories := r.load()
	for _, c := range categories {
		if models.EqualNames(c.Name, name) {
			return nil, apperrors.Validationf("category %q already exists", c.Name)
		}
	}

	category := models.Category{
		ID:        NewLocalID(),
		Name:      name,
		Color:     color,
		CreatedAt: time.Now(),
	}
	if input.Order != nil {
		category.Order = *input.Order
	}

	if err := r.save(append(categories, category)); err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *CategoryRepository) Update(ctx context.Context, id string, upd models.CategoryUpdate) (*models.Category, error) {
	categories := r.load()
	idx := -1
	for i := range categories {
		if categories[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperrors.NotFoundf("category %s not found", id)
	}

	category := categories[idx]
	if upd.Name != nil {
		name, err := models.ValidateCategoryName(*upd.Name)
		if err != nil {
			return nil, err
		}
		for i, c := range categories {
			if i != idx && models.EqualNames(c.Name, name) {
				return nil, apperrors.Validationf("category %q already exists", c.Name)
			}
		}
		category.Name = name
	}
	if upd.Color != nil {
		color, err := models.ValidateColor(*upd.Color)
		if err != nil {
			return nil, err
		}
		category.Color = color
	}
	if upd.Order != nil {
		category.Order = *upd.Order
	}

	categories[idx] = category
	if err := r.save(categories); err != nil {
		return nil, err
	}
	return &category, nil
}

// Delete removes the category only. Tasks referencing it keep their
// categoryId; the coordinating layer nulls those out.
func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	categories := r.load()
	kept := categories[:0]
	found := false
	for _, c := range categories {
		if c.ID == id {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	if !found {
		return apperrors.NotFoundf("category %s not found", id)
	}
	return r.save(kept)
}

func (r *CategoryRepository) List(ctx context.Context) ([]models.Category, error) {
	return r.load(), nil
}

// Get looks a category up by id without going through the list contract.
// The remote adapter uses it to resolve locally-issued category references.
func (r *CategoryRepository) Get(id string) (*models.Category, bool) {
	for _, c := range r.load() {
		if c.ID == id {
			return &c, true
		}
	}
	return nil, false
}
