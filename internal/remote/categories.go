package remote

import (
	"context"
	"strings"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"todo-sync/internal/apperrors"
	"todo-sync/internal/models"
)

// CategoryAdapter implements the category CRUD contract against the remote
// categories table.
type CategoryAdapter struct {
	client *Client
}

func NewCategoryAdapter(client *Client) *CategoryAdapter {
	return &CategoryAdapter{client: client}
}

func (a *CategoryAdapter) Create(ctx context.Context, input models.CategoryInput) (*models.Category, error) {
	name, err := models.ValidateCategoryName(input.Name)
	if err != nil {
		return nil, err
	}
	color, err := models.ValidateColor(input.Color)
	if err != nil {
		return nil, err
	}

	var category models.Category
	err = a.client.run(ctx, "create category", func(db *gorm.DB) error {
		userID := a.client.UserID()
		if err := categoryNameTaken(db, userID, name, ""); err != nil {
			return err
		}
		category = models.Category{
			ID:        uuid.Must(uuid.NewV4()).String(),
			UserID:    userID,
			Name:      name,
			Color:     color,
			CreatedAt: nowUTC(),
		}
		if input.Order != nil {
			category.Order = *input.Order
		} else {
			category.Order = nextCategoryOrder(db, userID)
		}
		return db.Create(&category).Error
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (a *CategoryAdapter) Update(ctx context.Context, id string, upd models.CategoryUpdate) (*models.Category, error) {
	var name, color string
	if upd.Name != nil {
		validated, err := models.ValidateCategoryName(*upd.Name)
		if err != nil {
			return nil, err
		}
		name = validated
	}
	if upd.Color != nil {
		validated, err := models.ValidateColor(*upd.Color)
		if err != nil {
			return nil, err
		}
		color = validated
	}

	var category models.Category
	err := a.client.run(ctx, "update category", func(db *gorm.DB) error {
		userID := a.client.UserID()
		if err := db.Where("id = ? AND user_id = ?", id, userID).First(&category).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFoundf("category %s not found", id)
			}
			return err
		}

		if upd.Name != nil {
			if err := categoryNameTaken(db, userID, name, id); err != nil {
				return err
			}
			category.Name = name
		}
		if upd.Color != nil {
			category.Color = color
		}
		if upd.Order != nil {
			category.Order = *upd.Order
		}

		return db.Model(&models.Category{}).
			Where("id = ? AND user_id = ?", id, userID).
			Select("name", "color", "category_order").
			Updates(map[string]interface{}{
				"name":           category.Name,
				"color":          category.Color,
				"category_order": category.Order,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (a *CategoryAdapter) Delete(ctx context.Context, id string) error {
	return a.client.run(ctx, "delete category", func(db *gorm.DB) error {
		res := db.Where("id = ? AND user_id = ?", id, a.client.UserID()).
			Delete(&models.Category{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFoundf("category %s not found", id)
		}
		return nil
	})
}

func (a *CategoryAdapter) List(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := a.client.run(ctx, "list categories", func(db *gorm.DB) error {
		return db.Where("user_id = ?", a.client.UserID()).
			Order("category_order ASC, name ASC").
			Find(&categories).Error
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

// Push mirrors a locally-created category into the remote table during a
// sync pass, preserving its name, color and creation time. Returns the
// remote record, which carries a freshly issued remote id.
func (a *CategoryAdapter) Push(ctx context.Context, local models.Category) (*models.Category, error) {
	var category models.Category
	err := a.client.run(ctx, "push category", func(db *gorm.DB) error {
		userID := a.client.UserID()
		if err := categoryNameTaken(db, userID, local.Name, ""); err != nil {
			return err
		}
		category = models.Category{
			ID:        uuid.Must(uuid.NewV4()).String(),
			UserID:    userID,
			Name:      local.Name,
			Color:     local.Color,
			CreatedAt: local.CreatedAt,
			Order:     nextCategoryOrder(db, userID),
		}
		return db.Create(&category).Error
	})
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// categoryNameTaken enforces case-insensitive name uniqueness within the
// remote table. excludeID skips the record being updated.
func categoryNameTaken(db *gorm.DB, userID, name, excludeID string) error {
	q := db.Model(&models.Category{}).
		Where("user_id = ? AND LOWER(name) = ?", userID, strings.ToLower(name))
	if excludeID != "" {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperrors.Validationf("category %q already exists", name)
	}
	return nil
}
