package repository

import (
	"sort"
	"strings"

	"todo-sync/internal/models"
)

// SortTasks orders tasks in place. Tasks missing the sort key are always
// placed after tasks that have one, whichever direction is requested.
// Unknown sort keys fall back to the creation order field.
func SortTasks(tasks []models.Task, sortBy, direction string) {
	desc := direction == models.SortDesc
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]

		var cmp int
		switch sortBy {
		case models.SortByDueDate:
			aNil, bNil := a.DueDate == nil, b.DueDate == nil
			if aNil || bNil {
				return !aNil && bNil // nulls sort last regardless of direction
			}
			cmp = a.DueDate.Compare(*b.DueDate)
		case models.SortByCompletedAt:
			aNil, bNil := a.CompletedAt == nil, b.CompletedAt == nil
			if aNil || bNil {
				return !aNil && bNil
			}
			cmp = a.CompletedAt.Compare(*b.CompletedAt)
		case models.SortByTitle:
			cmp = strings.Compare(strings.ToLower(a.Title), strings.ToLower(b.Title))
		case models.SortByCreatedAt:
			cmp = a.CreatedAt.Compare(b.CreatedAt)
		default:
			cmp = a.Order - b.Order
		}

		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}
