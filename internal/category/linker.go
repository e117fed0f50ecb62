package category

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"recollect-worker/internal/config"
	"recollect-worker/internal/models"
)

// Failure reasons reported per bookmark by LinkBatch
const (
	ReasonNoMatches    = "No matching categories found"
	ReasonMissingPairs = "Some category pairs were not inserted"
	ReasonVerifyFailed = "Verification query failed"
)

// LinkRequest asks for a bookmark to be added to the named import categories
type LinkRequest struct {
	BookmarkID int64
	UserID     string
	Names      []string
}

// FailedLink is a bookmark that could not be fully linked
type FailedLink struct {
	BookmarkID int64
	Reason     string
}

// BatchResult is the per-bookmark outcome of LinkBatch
type BatchResult struct {
	Successful []int64
	Failed     []FailedLink
	// Public categories that gained a successfully linked bookmark
	PublicCategories []models.Category
}

// Linker resolves import category names and links bookmarks to them
type Linker struct {
	db            *gorm.DB
	assumeSuccess bool
}

// NewLinker creates a Linker. onVerifyFailure is config.VerifyAssumeSuccess or
// config.VerifyAssumeFailure and decides the batch outcome when the
// verification read fails.
func NewLinker(db *gorm.DB, onVerifyFailure string) *Linker {
	return &Linker{db: db, assumeSuccess: onVerifyFailure != config.VerifyAssumeFailure}
}

// NormalizeNames trims names and drops blanks and duplicates, keeping order
func NormalizeNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// LinkBookmark links one bookmark to the named import categories of userID
// and returns how many categories were resolved. No matching categories is
// not an error.
func (l *Linker) LinkBookmark(ctx context.Context, bookmarkID int64, userID string, names []string) (int, error) {
	names = NormalizeNames(names)
	if len(names) == 0 {
		return 0, nil
	}

	var cats []models.Category
	if err := l.importCategories(ctx, []string{userID}, names).Find(&cats).Error; err != nil {
		return 0, fmt.Errorf("failed to resolve categories: %w", err)
	}
	if len(cats) == 0 {
		logrus.Infof("No import categories matched for bookmark %d (%v)", bookmarkID, names)
		return 0, nil
	}

	rows := make([]models.BookmarkCategory, 0, len(cats))
	for _, c := range cats {
		rows = append(rows, models.BookmarkCategory{BookmarkID: bookmarkID, CategoryID: c.ID, UserID: userID})
	}
	if err := l.insertIgnoringDuplicates(ctx, rows); err != nil {
		return 0, err
	}
	return len(cats), nil
}

// LinkBatch links many bookmarks with three queries in total: resolve every
// candidate category, insert every pair, then read back which pairs exist.
func (l *Linker) LinkBatch(ctx context.Context, reqs []LinkRequest) (*BatchResult, error) {
	result := &BatchResult{}
	if len(reqs) == 0 {
		return result, nil
	}

	userSet := map[string]struct{}{}
	nameSet := map[string]struct{}{}
	normalized := make([][]string, len(reqs))
	for i, req := range reqs {
		normalized[i] = NormalizeNames(req.Names)
		userSet[req.UserID] = struct{}{}
		for _, n := range normalized[i] {
			nameSet[n] = struct{}{}
		}
	}

	var cats []models.Category
	if len(nameSet) > 0 {
		if err := l.importCategories(ctx, keys(userSet), keys(nameSet)).Find(&cats).Error; err != nil {
			return nil, fmt.Errorf("failed to resolve categories: %w", err)
		}
	}

	byOwnerName := make(map[string]models.Category, len(cats))
	for _, c := range cats {
		byOwnerName[c.UserID+"\x00"+c.CategoryName] = c
	}

	type pending struct {
		bookmarkID int64
		cats       []models.Category
	}
	var (
		waiting []pending
		rows    []models.BookmarkCategory
	)
	for i, req := range reqs {
		var resolved []models.Category
		for _, n := range normalized[i] {
			if c, ok := byOwnerName[req.UserID+"\x00"+n]; ok {
				resolved = append(resolved, c)
			}
		}
		if len(resolved) == 0 {
			result.Failed = append(result.Failed, FailedLink{BookmarkID: req.BookmarkID, Reason: ReasonNoMatches})
			continue
		}
		waiting = append(waiting, pending{bookmarkID: req.BookmarkID, cats: resolved})
		for _, c := range resolved {
			rows = append(rows, models.BookmarkCategory{BookmarkID: req.BookmarkID, CategoryID: c.ID, UserID: req.UserID})
		}
	}

	if len(rows) == 0 {
		return result, nil
	}

	if err := l.insertIgnoringDuplicates(ctx, rows); err != nil {
		return nil, err
	}

	bookmarkIDs := make([]int64, 0, len(waiting))
	categoryIDs := map[int64]struct{}{}
	for _, p := range waiting {
		bookmarkIDs = append(bookmarkIDs, p.bookmarkID)
		for _, c := range p.cats {
			categoryIDs[c.ID] = struct{}{}
		}
	}

	var present []models.BookmarkCategory
	err := l.db.WithContext(ctx).
		Select("bookmark_id", "category_id").
		Where("bookmark_id IN ? AND category_id IN ?", bookmarkIDs, keys(categoryIDs)).
		Find(&present).Error

	publicSeen := map[int64]struct{}{}
	succeed := func(p pending) {
		result.Successful = append(result.Successful, p.bookmarkID)
		for _, c := range p.cats {
			if _, ok := publicSeen[c.ID]; c.IsPublic && !ok {
				publicSeen[c.ID] = struct{}{}
				result.PublicCategories = append(result.PublicCategories, c)
			}
		}
	}

	if err != nil {
		logrus.Warnf("Failed to verify category links (assume success: %t): %v", l.assumeSuccess, err)
		for _, p := range waiting {
			if l.assumeSuccess {
				succeed(p)
			} else {
				result.Failed = append(result.Failed, FailedLink{BookmarkID: p.bookmarkID, Reason: ReasonVerifyFailed})
			}
		}
		return result, nil
	}

	type pair struct{ bookmarkID, categoryID int64 }
	exists := make(map[pair]struct{}, len(present))
	for _, bc := range present {
		exists[pair{bc.BookmarkID, bc.CategoryID}] = struct{}{}
	}

	for _, p := range waiting {
		complete := true
		for _, c := range p.cats {
			if _, ok := exists[pair{p.bookmarkID, c.ID}]; !ok {
				complete = false
				break
			}
		}
		if complete {
			succeed(p)
		} else {
			result.Failed = append(result.Failed, FailedLink{BookmarkID: p.bookmarkID, Reason: ReasonMissingPairs})
		}
	}
	return result, nil
}

func (l *Linker) importCategories(ctx context.Context, userIDs, names []string) *gorm.DB {
	return l.db.WithContext(ctx).
		Where("user_id IN ? AND icon = ? AND icon_color = ? AND category_name IN ?",
			userIDs, models.ImportCategoryIcon, models.ImportCategoryIconColor, names)
}

func (l *Linker) insertIgnoringDuplicates(ctx context.Context, rows []models.BookmarkCategory) error {
	err := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "bookmark_id"}, {Name: "category_id"}},
			DoNothing: true,
		}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to link categories: %w", err)
	}
	return nil
}

func keys[K comparable](m map[K]struct{}) []K {
	out := make([]K, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
