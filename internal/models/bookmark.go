package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Bookmark is a saved item. The table is owned by the web application; the
// pipeline only inserts through RPCs and updates enrichment columns.
type Bookmark struct {
	ID          int64          `json:"id" gorm:"primaryKey;autoIncrement"`
	UserID      string         `json:"user_id" gorm:"type:uuid;not null;index:idx_bookmark_user_url"`
	URL         string         `json:"url" gorm:"type:text;not null;index:idx_bookmark_user_url"`
	Title       string         `json:"title" gorm:"type:text"`
	Description string         `json:"description" gorm:"type:text"`
	OgImage     string         `json:"ogImage" gorm:"column:ogImage;type:text"`
	MetaData    datatypes.JSON `json:"meta_data" gorm:"column:meta_data"`
	CategoryID  int64          `json:"category_id" gorm:"default:0"`
	Trash       *time.Time     `json:"trash"`
	Type        string         `json:"type" gorm:"type:text"`
	SortIndex   string         `json:"sort_index" gorm:"type:text"`
	InsertedAt  time.Time      `json:"inserted_at" gorm:"autoCreateTime"`
}

// TableName specifies the table name for Bookmark
func (Bookmark) TableName() string {
	return "everything"
}

// Meta decodes meta_data into a map. Invalid or empty JSON yields an empty map.
func (b *Bookmark) Meta() map[string]any {
	meta := map[string]any{}
	if len(b.MetaData) == 0 {
		return meta
	}
	if err := json.Unmarshal(b.MetaData, &meta); err != nil || meta == nil {
		return map[string]any{}
	}
	return meta
}

// Profile carries the public user name used in shareable URLs.
type Profile struct {
	ID       string `json:"id" gorm:"primaryKey;type:uuid"`
	UserName string `json:"user_name" gorm:"column:user_name;type:text"`
}

// TableName specifies the table name for Profile
func (Profile) TableName() string {
	return "profiles"
}
