package models

import "time"

// Category groups tasks. Name uniqueness is case-insensitive within one
// backend; Task.CategoryID references it as a soft foreign key.
type Category struct {
	ID        string    `json:"id" gorm:"primaryKey;column:id"`
	UserID    string    `json:"-" gorm:"column:user_id;index"`
	Name      string    `json:"name" gorm:"column:name;not null"`
	Color     string    `json:"color" gorm:"column:color;not null"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at"`
	Order     int       `json:"order,omitempty" gorm:"column:category_order"`
}

func (Category) TableName() string { return "categories" }

type CategoryInput struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Order *int   `json:"order"`
}

// CategoryUpdate is a partial update; nil pointers leave fields unchanged.
type CategoryUpdate struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
	Order *int    `json:"order"`
}
