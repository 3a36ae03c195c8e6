package models

import "time"

// Task is the app-side record shape. JSON tags carry the camelCase model
// the UI consumes; gorm tags map onto the snake_case columns of the remote
// table service, so the same struct serves both backends.
type Task struct {
	ID          string     `json:"id" gorm:"primaryKey;column:id"`
	UserID      string     `json:"-" gorm:"column:user_id;index"`
	Title       string     `json:"title" gorm:"column:title;not null"`
	Completed   bool       `json:"completed" gorm:"column:completed"`
	CompletedAt *time.Time `json:"completedAt" gorm:"column:completed_at"`
	CreatedAt   time.Time  `json:"createdAt" gorm:"column:created_at"`
	Order       int        `json:"order" gorm:"column:task_order"`
	CategoryID  *string    `json:"categoryId" gorm:"column:category_id"`
	DueDate     *time.Time `json:"dueDate" gorm:"column:due_date"`
}

func (Task) TableName() string { return "tasks" }

// TaskInput carries the caller-supplied fields for task creation.
type TaskInput struct {
	Title      string     `json:"title"`
	CategoryID *string    `json:"categoryId"`
	DueDate    *time.Time `json:"dueDate"`
}

// TaskUpdate is a partial update. Nil pointers mean "leave unchanged".
// ClearCategory and ClearDueDate reset the respective field to null.
type TaskUpdate struct {
	Title         *string    `json:"title"`
	Completed     *bool      `json:"completed"`
	CategoryID    *string    `json:"categoryId"`
	ClearCategory bool       `json:"clearCategory"`
	DueDate       *time.Time `json:"dueDate"`
	ClearDueDate  bool       `json:"clearDueDate"`
	Order         *int       `json:"order"`

	// Derived completion timestamp, set by the repositories on toggle.
	CompletedAt    *time.Time `json:"-"`
	SetCompletedAt bool       `json:"-"`
}

// Sort keys accepted by the list operations.
const (
	SortByOrder       = "order"
	SortByDueDate     = "dueDate"
	SortByTitle       = "title"
	SortByCreatedAt   = "createdAt"
	SortByCompletedAt = "completedAt"
)

const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// TaskListOptions filters and orders a task listing. FilterCategory is only
// consulted when HasCategoryFilter is true; a nil FilterCategory then means
// "uncategorized only".
type TaskListOptions struct {
	HasCategoryFilter bool
	FilterCategory    *string
	SortBy            string
	SortDirection     string
}

// TaskStats summarizes a task collection. Overdue counts tasks that are not
// completed and whose due date lies strictly in the past.
type TaskStats struct {
	Total     int `json:"total"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Overdue   int `json:"overdue"`
}
