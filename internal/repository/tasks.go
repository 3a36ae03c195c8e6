// Package repository implements the local task and category repositories
// on top of the record store. Records live as JSON arrays under the
// "tasks" and "categories" keys; every mutation rewrites the full array,
// so a failed write never commits partial state.
package repository

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"todo-sync/internal/apperrors"
	"todo-sync/internal/models"
	"todo-sync/internal/store"
)

const localIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewLocalID builds a locally-scoped identifier: creation time in unix
// millis plus a short random suffix. Remote identifiers are UUIDs, so the
// two id spaces never collide.
func NewLocalID() string {
	suffix := make([]byte, 6)
	for i := range suffix {
		suffix[i] = localIDAlphabet[rand.Intn(len(localIDAlphabet))]
	}
	return fmt.Sprintf("%d-%s", time.Now().UnixMilli(), suffix)
}

type TaskRepository struct {
	store  *store.Store
	logger zerolog.Logger
}

func NewTaskRepository(s *store.Store, logger zerolog.Logger) *TaskRepository {
	return &TaskRepository{store: s, logger: logger}
}

func (r *TaskRepository) load() []models.Task {
	tasks := []models.Task{}
	r.store.Get(store.KeyTasks, &tasks)
	return tasks
}

func (r *TaskRepository) save(tasks []models.Task) error {
	if !r.store.Set(store.KeyTasks, tasks) {
		return apperrors.Storagef("failed to write tasks")
	}
	return nil
}

func (r *TaskRepository) Create(ctx context.Context, input models.TaskInput) (*models.Task, error) {
	title, err := models.ValidateTitle(input.Title)
	if err != nil {
		return nil, err
	}

	tasks := r.load()
	order := 0
	for _, t := range tasks {
		if t.Order >= order {
			order = t.Order + 1
		}
	}

	task := models.Task{
		ID:         NewLocalID(),
		Title:      title,
		Completed:  false,
		CreatedAt:  time.Now(),
		Order:      order,
		CategoryID: input.CategoryID,
		DueDate:    input.DueDate,
	}

	if err := r.save(append(tasks, task)); err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) Update(ctx context.Context, id string, upd models.TaskUpdate) (*models.Task, error) {
	tasks := r.load()
	idx := -1
	for i := range tasks {
		if tasks[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, apperrors.NotFoundf("task %s not found", id)
	}

	task := tasks[idx]
	if upd.Title != nil {
		title, err := models.ValidateTitle(*upd.Title)
		if err != nil {
			return nil, err
		}
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
		task.CategoryID = upd.CategoryID
	}
	if upd.ClearDueDate {
		task.DueDate = nil
	} else if upd.DueDate != nil {
		task.DueDate = upd.DueDate
	}
	if upd.Order != nil {
		task.Order = *upd.Order
	}

	tasks[idx] = task
	if err := r.save(tasks); err != nil {
		return nil, err
	}
	return &task, nil
}

// Toggle flips completion and derives completedAt: set on the transition
// to completed, cleared on the way back.
func (r *TaskRepository) Toggle(ctx context.Context, id string) (*models.Task, error) {
	tasks := r.load()
	for i := range tasks {
		if tasks[i].ID != id {
			continue
		}
		completed := !tasks[i].Completed
		upd := models.TaskUpdate{Completed: &completed, SetCompletedAt: true}
		if completed {
			now := time.Now()
			upd.CompletedAt = &now
		}
		return r.Update(ctx, id, upd)
	}
	return nil, apperrors.NotFoundf("task %s not found", id)
}

func (r *TaskRepository) Delete(ctx context.Context, id string) error {
	tasks := r.load()
	kept := tasks[:0]
	found := false
	for _, t := range tasks {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return apperrors.NotFoundf("task %s not found", id)
	}
	return r.save(kept)
}

// ClearCompleted removes every completed task and returns how many were
// dropped.
func (r *TaskRepository) ClearCompleted(ctx context.Context) (int, error) {
	tasks := r.load()
	kept := make([]models.Task, 0, len(tasks))
	removed := 0
	for _, t := range tasks {
		if t.Completed {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := r.save(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (r *TaskRepository) List(ctx context.Context, opts models.TaskListOptions) ([]models.Task, error) {
	tasks := r.load()
	if opts.HasCategoryFilter {
		filtered := make([]models.Task, 0, len(tasks))
		for _, t := range tasks {
			if sameCategory(t.CategoryID, opts.FilterCategory) {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}
	SortTasks(tasks, opts.SortBy, opts.SortDirection)
	return tasks, nil
}

func (r *TaskRepository) Stats(ctx context.Context) (models.TaskStats, error) {
	tasks := r.load()
	return ComputeStats(tasks, time.Now()), nil
}

func sameCategory(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ComputeStats derives the total/active/completed/overdue counters.
// Overdue means not completed with a due date strictly before now.
func ComputeStats(tasks []models.Task, now time.Time) models.TaskStats {
	stats := models.TaskStats{Total: len(tasks)}
	for _, t := range tasks {
		if t.Completed {
			stats.Completed++
			continue
		}
		stats.Active++
		if t.DueDate != nil && t.DueDate.Before(now) {
			stats.Overdue++
		}
	}
	return stats
}
