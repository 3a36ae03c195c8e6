package remote

import (
	"context"
	"time"

	"github.com/gofrs/uuid"
	"gorm.io/gorm"

	"todo-sync/internal/apperrors"
	"todo-sync/internal/models"
	"todo-sync/internal/repository"
)

// TaskAdapter implements the task CRUD contract against the remote tasks
// table.
type TaskAdapter struct {
	client   *Client
	resolver *CategoryResolver
}

func NewTaskAdapter(client *Client, resolver *CategoryResolver) *TaskAdapter {
	return &TaskAdapter{client: client, resolver: resolver}
}

func (a *TaskAdapter) Create(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	title, err := models.ValidateTitle(input.Title)
	if err != nil {
		return nil, err
	}

	var task models.Task
	err = a.client.run(ctx, "create task", func(db *gorm.DB) error {
		userID := a.client.UserID()
		categoryID, err := a.resolver.resolve(db, userID, input.CategoryID)
		if err != nil {
			return err
		}
		task = models.Task{
			ID:         uuid.Must(uuid.NewV4()).String(),
			UserID:     userID,
			Title:      title,
			Completed:  false,
			CreatedAt:  nowUTC(),
			Order:      nextTaskOrder(db, userID),
			CategoryID: categoryID,
			DueDate:    input.DueDate,
		}
		return db.Create(&task).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (a *TaskAdapter) Update(ctx context.Context, id string, upd models.TaskUpdate) (*models.Task, error) {
	var title string
	if upd.Title != nil {
		validated, err := models.ValidateTitle(*upd.Title)
		if err != nil {
			return nil, err
		}
		title = validated
	}

	var task models.Task
	err := a.client.run(ctx, "update task", func(db *gorm.DB) error {
		userID := a.client.UserID()
		if err := db.Where("id = ? AND user_id = ?", id, userID).First(&task).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperrors.NotFoundf("task %s not found", id)
			}
			return err
		}

		if upd.Title != nil {
			task.Title = title
		}
		if upd.Completed != nil {
			task.Completed = *upd.Completed
		}
		if upd.SetCompletedAt {
			task.CompletedAt = upd.CompletedAt
		}
		if upd.ClearCategory {
			task.CategoryID = nil
		} else if upd.CategoryID != nil {
			categoryID, err := a.resolver.resolve(db, userID, upd.CategoryID)
			if err != nil {
				return err
			}
			task.CategoryID = categoryID
		}
		if upd.ClearDueDate {
			task.DueDate = nil
		} else if upd.DueDate != nil {
			task.DueDate = upd.DueDate
		}
		if upd.Order != nil {
			task.Order = *upd.Order
		}

		// Save with Select so cleared nullable columns are written too.
		return db.Model(&models.Task{}).
			Where("id = ? AND user_id = ?", id, userID).
			Select("title", "completed", "completed_at", "category_id", "due_date", "task_order").
			Updates(map[string]interface{}{
				"title":        task.Title,
				"completed":    task.Completed,
				"completed_at": task.CompletedAt,
				"category_id":  task.CategoryID,
				"due_date":     task.DueDate,
				"task_order":   task.Order,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (a *TaskAdapter) Toggle(ctx context.Context, id string) (*models.Task, error) {
	var current models.Task
	err := a.client.run(ctx, "toggle task", func(db *gorm.DB) error {
		err := db.Where("id = ? AND user_id = ?", id, a.client.UserID()).First(&current).Error
		if err == gorm.ErrRecordNotFound {
			return apperrors.NotFoundf("task %s not found", id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	completed := !current.Completed
	upd := models.TaskUpdate{Completed: &completed, SetCompletedAt: true}
	if completed {
		now := nowUTC()
		upd.CompletedAt = &now
	}
	return a.Update(ctx, id, upd)
}

func (a *TaskAdapter) Delete(ctx context.Context, id string) error {
	return a.client.run(ctx, "delete task", func(db *gorm.DB) error {
		res := db.Where("id = ? AND user_id = ?", id, a.client.UserID()).Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperrors.NotFoundf("task %s not found", id)
		}
		return nil
	})
}

func (a *TaskAdapter) ClearCompleted(ctx context.Context) (int, error) {
	var removed int
	err := a.client.run(ctx, "clear completed", func(db *gorm.DB) error {
		res := db.Where("user_id = ? AND completed = ?", a.client.UserID(), true).
			Delete(&models.Task{})
		if res.Error != nil {
			return res.Error
		}
		removed = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

func (a *TaskAdapter) List(ctx context.Context, opts models.TaskListOptions) ([]models.Task, error) {
	var tasks []models.Task
	err := a.client.run(ctx, "list tasks", func(db *gorm.DB) error {
		q := db.Where("user_id = ?", a.client.UserID())
		if opts.HasCategoryFilter {
			if opts.FilterCategory == nil {
				q = q.Where("category_id IS NULL")
			} else {
				q = q.Where("category_id = ?", *opts.FilterCategory)
			}
		}
		return q.Find(&tasks).Error
	})
	if err != nil {
		return nil, err
	}
	// Null-last ordering is easier to keep consistent with the local
	// backend in one place than in portable SQL.
	repository.SortTasks(tasks, opts.SortBy, opts.SortDirection)
	return tasks, nil
}

func (a *TaskAdapter) Stats(ctx context.Context) (models.TaskStats, error) {
	var tasks []models.Task
	err := a.client.run(ctx, "task stats", func(db *gorm.DB) error {
		return db.Where("user_id = ?", a.client.UserID()).Find(&tasks).Error
	})
	if err != nil {
		return models.TaskStats{}, err
	}
	return repository.ComputeStats(tasks, time.Now()), nil
}
