package revalidate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"recollect-worker/internal/models"
	"recollect-worker/internal/tasks"
)

// UserNamer resolves the public user name of a user id
type UserNamer interface {
	UserName(ctx context.Context, userID string) (string, error)
}

// Submitter runs tasks in the background
type Submitter interface {
	Submit(t tasks.Task) bool
}

// PublicCategoryHook returns a callback that schedules revalidation of every
// given public category page on pool. A full pool drops the revalidation.
func PublicCategoryHook(pool Submitter, names UserNamer, r *Revalidator, reason string) func([]models.Category) {
	return func(cats []models.Category) {
		for _, cat := range cats {
			cat := cat
			if cat.CategorySlug == "" {
				continue
			}
			task := tasks.Task{
				Name: fmt.Sprintf("revalidate:%d", cat.ID),
				Run: func(ctx context.Context) error {
					userName, err := names.UserName(ctx, cat.UserID)
					if err != nil {
						return fmt.Errorf("failed to resolve user name for category %d: %w", cat.ID, err)
					}
					r.RevalidatePublicCategoryPage(ctx, userName, cat.CategorySlug, reason)
					return nil
				},
			}
			if !pool.Submit(task) {
				logrus.Warnf("Task pool full, dropping revalidation of category %d", cat.ID)
			}
		}
	}
}
