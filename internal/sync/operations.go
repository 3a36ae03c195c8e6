package sync

import (
	"context"
	"encoding/json"

	"todo-sync/internal/models"
	"todo-sync/internal/store"
)

// Task operations. Each routes to the remote adapter when the tasks
// collection is Remote-Authoritative and silently retries on the local
// repository when the remote path fails.

func (c *Coordinator) CreateTask(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	if c.useRemote(CollectionTasks) {
		task, err := c.remoteTasks.Create(ctx, input)
		if err == nil {
			c.invalidateTasks()
			return task, nil
		}
		if !c.fallthroughToLocal("create task", err) {
			return nil, err
		}
	}
	task, err := c.localTasks.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	c.invalidateTasks()
	return task, nil
}

func (c *Coordinator) UpdateTask(ctx context.Context, id string, upd models.TaskUpdate) (*models.Task, error) {
	if c.useRemote(CollectionTasks) {
		task, err := c.remoteTasks.Update(ctx, id, upd)
		if err == nil {
			c.invalidateTasks()
			return task, nil
		}
		if !c.fallthroughToLocal("update task", err) {
			return nil, err
		}
	}
	task, err := c.localTasks.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	c.invalidateTasks()
	return task, nil
}

func (c *Coordinator) ToggleTask(ctx context.Context, id string) (*models.Task, error) {
	if c.useRemote(CollectionTasks) {
		task, err := c.remoteTasks.Toggle(ctx, id)
		if err == nil {
			c.invalidateTasks()
			return task, nil
		}
		if !c.fallthroughToLocal("toggle task", err) {
			return nil, err
		}
	}
	task, err := c.localTasks.Toggle(ctx, id)
	if err != nil {
		return nil, err
	}
	c.invalidateTasks()
	return task, nil
}

func (c *Coordinator) DeleteTask(ctx context.Context, id string) error {
	if c.useRemote(CollectionTasks) {
		err := c.remoteTasks.Delete(ctx, id)
		if err == nil {
			c.invalidateTasks()
			return nil
		}
		if !c.fallthroughToLocal("delete task", err) {
			return err
		}
	}
	if err := c.localTasks.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidateTasks()
	return nil
}

func (c *Coordinator) ClearCompleted(ctx context.Context) (int, error) {
	if c.useRemote(CollectionTasks) {
		count, err := c.remoteTasks.ClearCompleted(ctx)
		if err == nil {
			c.invalidateTasks()
			return count, nil
		}
		if !c.fallthroughToLocal("clear completed", err) {
			return 0, err
		}
	}
	count, err := c.localTasks.ClearCompleted(ctx)
	if err != nil {
		return 0, err
	}
	c.invalidateTasks()
	return count, nil
}

func (c *Coordinator) ListTasks(ctx context.Context, opts models.TaskListOptions) ([]models.Task, error) {
	key := taskListKey(opts)
	var cached []models.Task
	if err := c.cache.Get(key, &cached); err == nil {
		return cached, nil
	}

	var tasks []models.Task
	var err error
	if c.useRemote(CollectionTasks) {
		tasks, err = c.remoteTasks.List(ctx, opts)
		if err != nil && c.fallthroughToLocal("list tasks", err) {
			tasks, err = c.localTasks.List(ctx, opts)
		}
	} else {
		tasks, err = c.localTasks.List(ctx, opts)
	}
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, tasks, listCacheTTL)
	return tasks, nil
}

func (c *Coordinator) TaskStats(ctx context.Context) (models.TaskStats, error) {
	const key = "tasks:stats"
	var cached models.TaskStats
	if err := c.cache.Get(key, &cached); err == nil {
		return cached, nil
	}

	var stats models.TaskStats
	var err error
	if c.useRemote(CollectionTasks) {
		stats, err = c.remoteTasks.Stats(ctx)
		if err != nil && c.fallthroughToLocal("task stats", err) {
			stats, err = c.localTasks.Stats(ctx)
		}
	} else {
		stats, err = c.localTasks.Stats(ctx)
	}
	if err != nil {
		return models.TaskStats{}, err
	}
	c.cache.Set(key, stats, statsCacheTTL)
	return stats, nil
}

// Category operations.

func (c *Coordinator) CreateCategory(ctx context.Context, input models.CategoryInput) (*models.Category, error) {
	if c.useRemote(CollectionCategories) {
		category, err := c.remoteCats.Create(ctx, input)
		if err == nil {
			c.invalidateCategories()
			return category, nil
		}
		if !c.fallthroughToLocal("create category", err) {
			return nil, err
		}
	}
	category, err := c.localCats.Create(ctx, input)
	if err != nil {
		return nil, err
	}
	c.invalidateCategories()
	return category, nil
}

func (c *Coordinator) UpdateCategory(ctx context.Context, id string, upd models.CategoryUpdate) (*models.Category, error) {
	if c.useRemote(CollectionCategories) {
		category, err := c.remoteCats.Update(ctx, id, upd)
		if err == nil {
			c.invalidateCategories()
			return category, nil
		}
		if !c.fallthroughToLocal("update category", err) {
			return nil, err
		}
	}
	category, err := c.localCats.Update(ctx, id, upd)
	if err != nil {
		return nil, err
	}
	c.invalidateCategories()
	return category, nil
}

// DeleteCategory removes the category and then nulls out the categoryId of
// every task that referenced it, so no dangling references survive.
func (c *Coordinator) DeleteCategory(ctx context.Context, id string) error {
	if c.useRemote(CollectionCategories) {
		err := c.remoteCats.Delete(ctx, id)
		if err == nil {
			c.invalidateCategories()
			c.detachTasks(ctx, id)
			return nil
		}
		if !c.fallthroughToLocal("delete category", err) {
			return err
		}
	}
	if err := c.localCats.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidateCategories()
	c.detachTasks(ctx, id)
	return nil
}

// detachTasks is best-effort: a task that fails to detach keeps a dangling
// soft reference, which the list path already tolerates.
func (c *Coordinator) detachTasks(ctx context.Context, categoryID string) {
	tasks, err := c.ListTasks(ctx, models.TaskListOptions{
		HasCategoryFilter: true,
		FilterCategory:    &categoryID,
	})
	if err != nil {
		c.logger.Warn().Err(err).Str("categoryId", categoryID).Msg("orphan scan failed")
		return
	}
	for _, t := range tasks {
		if _, err := c.UpdateTask(ctx, t.ID, models.TaskUpdate{ClearCategory: true}); err != nil {
			c.logger.Warn().Err(err).Str("taskId", t.ID).Msg("failed to detach task from deleted category")
		}
	}
}

func (c *Coordinator) ListCategories(ctx context.Context) ([]models.Category, error) {
	var cached []models.Category
	if err := c.cache.Get(categoryListKey, &cached); err == nil {
		return cached, nil
	}

	var categories []models.Category
	var err error
	if c.useRemote(CollectionCategories) {
		categories, err = c.remoteCats.List(ctx)
		if err != nil && c.fallthroughToLocal("list categories", err) {
			categories, err = c.localCats.List(ctx)
		}
	} else {
		categories, err = c.localCats.List(ctx)
	}
	if err != nil {
		return nil, err
	}
	c.cache.Set(categoryListKey, categories, listCacheTTL)
	return categories, nil
}

// Export dumps the local store namespace; Import loads one and drops every
// cached listing since anything may have changed.
func (c *Coordinator) Export() (map[string]json.RawMessage, error) {
	return c.store.Export()
}

func (c *Coordinator) Import(data map[string]json.RawMessage, merge bool) error {
	if err := c.store.Import(data, merge); err != nil {
		return err
	}
	c.invalidateTasks()
	c.invalidateCategories()
	return nil
}

var defaultCategories = []models.CategoryInput{
	{Name: "Work", Color: "#3b82f6"},
	{Name: "Personal", Color: "#10b981"},
	{Name: "Shopping", Color: "#f59e0b"},
}

// Bootstrap seeds first-run data, guarded by the initialized flags so it
// happens exactly once per store.
func (c *Coordinator) Bootstrap(ctx context.Context) {
	var flag bool
	if !c.store.Get(store.KeyCategoriesInit, &flag) || !flag {
		for _, input := range defaultCategories {
			if _, err := c.localCats.Create(ctx, input); err != nil {
				c.logger.Warn().Err(err).Str("name", input.Name).Msg("seed category failed")
			}
		}
		c.store.Set(store.KeyCategoriesInit, true)
	}
	if !c.store.Get(store.KeyInitialized, &flag) || !flag {
		c.store.Set(store.KeyInitialized, true)
		c.store.Set(store.KeyUserPreferences, map[string]interface{}{
			"sortBy":        models.SortByOrder,
			"sortDirection": models.SortAsc,
		})
	}
	c.invalidateCategories()
}
