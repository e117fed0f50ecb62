package models

import "time"

// Marker values identifying categories created by imports rather than by hand.
const (
	ImportCategoryIcon      = "bookmark"
	ImportCategoryIconColor = "#ffffff"
)

// Category is a user collection
type Category struct {
	ID           int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID       string    `json:"user_id" gorm:"type:uuid;not null;index"`
	CategoryName string    `json:"category_name" gorm:"type:text;not null"`
	CategorySlug string    `json:"category_slug" gorm:"type:text"`
	Icon         string    `json:"icon" gorm:"type:text"`
	IconColor    string    `json:"icon_color" gorm:"type:text"`
	IsPublic     bool      `json:"is_public" gorm:"default:false"`
	OrderIndex   int       `json:"order_index" gorm:"default:0"`
	CreatedAt    time.Time `json:"created_at"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "categories"
}

// BookmarkCategory links a bookmark to a category
type BookmarkCategory struct {
	ID         int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	BookmarkID int64     `json:"bookmark_id" gorm:"not null;uniqueIndex:idx_bookmark_category"`
	CategoryID int64     `json:"category_id" gorm:"not null;uniqueIndex:idx_bookmark_category"`
	UserID     string    `json:"user_id" gorm:"type:uuid;not null"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName specifies the table name for BookmarkCategory
func (BookmarkCategory) TableName() string {
	return "bookmark_categories"
}
