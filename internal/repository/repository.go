package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"recollect-worker/internal/models"
)

// ErrNotFound is returned when a bookmark or profile does not exist
var ErrNotFound = errors.New("record not found")

type Repository struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindBookmark loads a bookmark owned by userID
func (r *Repository) FindBookmark(ctx context.Context, id int64, userID string) (*models.Bookmark, error) {
	var b models.Bookmark
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&b)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to find bookmark %d: %w", id, result.Error)
	}
	return &b, nil
}

// ExistingURLs returns which of urls already exist as live bookmarks of userID
func (r *Repository) ExistingURLs(ctx context.Context, userID string, urls []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(urls) == 0 {
		return existing, nil
	}

	var found []string
	result := r.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("user_id = ? AND url IN ? AND trash IS NULL", userID, urls).
		Pluck("url", &found)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to check existing urls: %w", result.Error)
	}
	for _, u := range found {
		existing[u] = struct{}{}
	}
	return existing, nil
}

// UpdateEnrichment writes the enrichment columns. An empty ogImage leaves the
// column untouched.
func (r *Repository) UpdateEnrichment(ctx context.Context, id int64, userID, ogImage string, meta map[string]any) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal meta_data: %w", err)
	}

	updates := map[string]interface{}{"meta_data": datatypes.JSON(raw)}
	if ogImage != "" {
		updates["ogImage"] = ogImage
	}

	result := r.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("id = ? AND user_id = ?", id, userID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update bookmark %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UserName returns the public user name of userID
func (r *Repository) UserName(ctx context.Context, userID string) (string, error) {
	var p models.Profile
	result := r.db.WithContext(ctx).Select("user_name").Where("id = ?", userID).First(&p)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get profile: %w", result.Error)
	}
	return p.UserName, nil
}
