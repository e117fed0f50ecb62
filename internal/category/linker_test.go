package category

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"recollect-worker/internal/config"
	"recollect-worker/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Category{}, &models.BookmarkCategory{}))
	return db
}

func importCategory(t *testing.T, db *gorm.DB, userID, name string, public bool) models.Category {
	t.Helper()
	c := models.Category{
		UserID:       userID,
		CategoryName: name,
		CategorySlug: name + "-slug",
		Icon:         models.ImportCategoryIcon,
		IconColor:    models.ImportCategoryIconColor,
		IsPublic:     public,
	}
	require.NoError(t, db.Create(&c).Error)
	return c
}

func linkCount(t *testing.T, db *gorm.DB, bookmarkID int64) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.BookmarkCategory{}).Where("bookmark_id = ?", bookmarkID).Count(&n).Error)
	return n
}

func TestNormalizeNames(t *testing.T) {
	assert.Equal(t, []string{"Tech", "Food"}, NormalizeNames([]string{" Tech ", "", "Food", "Tech", "   "}))
	assert.Empty(t, NormalizeNames(nil))
}

func TestLinkBookmark(t *testing.T) {
	db := newTestDB(t)
	tech := importCategory(t, db, "u1", "Tech", false)
	// Same name but created by hand: must not be picked up.
	require.NoError(t, db.Create(&models.Category{UserID: "u1", CategoryName: "Food", Icon: "star", IconColor: "#000000"}).Error)

	l := NewLinker(db, config.VerifyAssumeSuccess)
	ctx := context.Background()

	n, err := l.LinkBookmark(ctx, 10, "u1", []string{"Tech ", "Food", "Tech"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Linking again is a no-op thanks to the unique pair.
	n, err = l.LinkBookmark(ctx, 10, "u1", []string{"Tech"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1), linkCount(t, db, 10))

	var link models.BookmarkCategory
	require.NoError(t, db.Where("bookmark_id = ?", 10).First(&link).Error)
	assert.Equal(t, tech.ID, link.CategoryID)
	assert.Equal(t, "u1", link.UserID)

	n, err = l.LinkBookmark(ctx, 11, "u1", []string{"Nothing"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestLinkBatch(t *testing.T) {
	db := newTestDB(t)
	tech := importCategory(t, db, "u1", "Tech", true)
	importCategory(t, db, "u1", "Food", false)
	otherTech := importCategory(t, db, "u2", "Tech", false)

	l := NewLinker(db, config.VerifyAssumeSuccess)
	res, err := l.LinkBatch(context.Background(), []LinkRequest{
		{BookmarkID: 1, UserID: "u1", Names: []string{"Tech", "Food"}},
		{BookmarkID: 2, UserID: "u2", Names: []string{"Tech"}},
		{BookmarkID: 3, UserID: "u2", Names: []string{"Food"}},
		{BookmarkID: 4, UserID: "u1", Names: []string{"Tech", "Unknown"}},
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{1, 2, 4}, res.Successful)
	assert.Equal(t, []FailedLink{{BookmarkID: 3, Reason: ReasonNoMatches}}, res.Failed)
	require.Len(t, res.PublicCategories, 1)
	assert.Equal(t, tech.ID, res.PublicCategories[0].ID)

	assert.Equal(t, int64(2), linkCount(t, db, 1))
	assert.Equal(t, int64(1), linkCount(t, db, 2))
	assert.Equal(t, int64(0), linkCount(t, db, 3))
	assert.Equal(t, int64(1), linkCount(t, db, 4))

	var pairs []models.BookmarkCategory
	require.NoError(t, db.Where("bookmark_id = ?", 2).Find(&pairs).Error)
	assert.Equal(t, otherTech.ID, pairs[0].CategoryID)
}

func TestLinkBatchRetryAfterCategoryCreated(t *testing.T) {
	db := newTestDB(t)
	l := NewLinker(db, config.VerifyAssumeSuccess)
	req := []LinkRequest{{BookmarkID: 7, UserID: "u1", Names: []string{"Tech"}}}

	res, err := l.LinkBatch(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, res.Successful)
	assert.Equal(t, []FailedLink{{BookmarkID: 7, Reason: ReasonNoMatches}}, res.Failed)

	importCategory(t, db, "u1", "Tech", false)

	res, err = l.LinkBatch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []int64{7}, res.Successful)
	assert.Empty(t, res.Failed)
}

func failVerification(t *testing.T, db *gorm.DB) {
	t.Helper()
	err := db.Callback().Query().Before("gorm:query").Register("test:fail_verify", func(tx *gorm.DB) {
		if tx.Statement.Table == "bookmark_categories" {
			tx.AddError(errors.New("verification unavailable"))
		}
	})
	require.NoError(t, err)
}

func TestLinkBatchVerifyFailurePolicy(t *testing.T) {
	for _, tc := range []struct {
		policy     string
		successful []int64
		failed     []FailedLink
	}{
		{config.VerifyAssumeSuccess, []int64{1}, nil},
		{config.VerifyAssumeFailure, nil, []FailedLink{{BookmarkID: 1, Reason: ReasonVerifyFailed}}},
	} {
		t.Run(tc.policy, func(t *testing.T) {
			db := newTestDB(t)
			importCategory(t, db, "u1", "Tech", false)
			failVerification(t, db)

			res, err := NewLinker(db, tc.policy).LinkBatch(context.Background(), []LinkRequest{
				{BookmarkID: 1, UserID: "u1", Names: []string{"Tech"}},
			})
			require.NoError(t, err)
			assert.Equal(t, tc.successful, res.Successful)
			assert.Equal(t, tc.failed, res.Failed)
		})
	}
}

func TestLinkBatchEmpty(t *testing.T) {
	db := newTestDB(t)
	res, err := NewLinker(db, config.VerifyAssumeSuccess).LinkBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res.Successful)
	assert.Empty(t, res.Failed)
}
