package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recollect-worker/internal/models"
	"recollect-worker/internal/queue"
)

type fakeChecker struct {
	urls  map[string]struct{}
	err   error
	asked []string
}

func (f *fakeChecker) ExistingURLs(ctx context.Context, userID string, urls []string) (map[string]struct{}, error) {
	f.asked = append(f.asked, urls...)
	if f.err != nil {
		return nil, f.err
	}
	out := map[string]struct{}{}
	for _, u := range urls {
		if _, ok := f.urls[u]; ok {
			out[u] = struct{}{}
		}
	}
	return out, nil
}

func TestSyncTwitterDedup(t *testing.T) {
	q := queue.NewMemory()
	checker := &fakeChecker{urls: map[string]struct{}{"https://x.com/a/status/2": {}}}
	svc := NewService(q, checker)

	res, err := svc.SyncTwitter(context.Background(), TwitterSyncRequest{
		UserID: "u1",
		Bookmarks: []TwitterBookmark{
			{URL: "https://x.com/a/status/1", Title: "first"},
			{URL: " https://x.com/a/status/1 "},
			{URL: "https://x.com/a/status/2"},
			{URL: "https://example.com/not-a-tweet"},
		},
		Categories: []TwitterCategoryLink{
			{URL: "https://x.com/a/status/1", CategoryName: "Reading"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 1, res.Invalid)
	assert.Equal(t, 1, res.Linked)
	assert.Equal(t, []string{"https://x.com/a/status/1", "https://x.com/a/status/2"}, checker.asked)

	pending := q.Pending(models.QueueTwitterImports)
	require.Len(t, pending, 2)

	var create models.TwitterCreatePayload
	require.NoError(t, json.Unmarshal(pending[0].Message, &create))
	assert.Equal(t, models.TwitterCreateBookmark, create.Type)
	assert.Equal(t, "first", create.Title)
	assert.Equal(t, "u1", create.UserID)

	var link models.TwitterLinkPayload
	require.NoError(t, json.Unmarshal(pending[1].Message, &link))
	assert.Equal(t, models.TwitterLinkCategory, link.Type)
	assert.Equal(t, "Reading", link.CategoryName)
}

func TestSyncTwitterEmpty(t *testing.T) {
	_, err := NewService(queue.NewMemory(), &fakeChecker{}).SyncTwitter(context.Background(), TwitterSyncRequest{UserID: "u1"})
	assert.ErrorIs(t, err, ErrNoBookmarks)
}

func TestSyncInstagramCarriesCollections(t *testing.T) {
	q := queue.NewMemory()
	svc := NewService(q, &fakeChecker{})

	res, err := svc.SyncInstagram(context.Background(), InstagramSyncRequest{
		UserID: "u1",
		Bookmarks: []InstagramBookmark{
			{URL: "https://www.instagram.com/p/abc/", SavedCollectionNames: []string{"Food", "Travel"}, MetaData: map[string]any{"author": "chef"}},
			{URL: "https://x.com/a/status/1"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Invalid)

	pending := q.Pending(models.QueueInstagramImports)
	require.Len(t, pending, 1)
	var p models.InstagramPayload
	require.NoError(t, json.Unmarshal(pending[0].Message, &p))
	assert.Equal(t, []string{"Food", "Travel"}, p.CollectionNames())
	assert.Equal(t, "chef", p.MetaData["author"])
}

func TestImportRaindrop(t *testing.T) {
	q := queue.NewMemory()
	svc := NewService(q, &fakeChecker{})

	res, err := svc.ImportRaindrop(context.Background(), RaindropImportRequest{
		UserID: "u1",
		Bookmarks: []RaindropBookmark{
			{URL: "https://blog.test/post", CategoryName: "Dev"},
			{URL: "javascript:alert(1)"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Invalid)
	assert.Len(t, res.MsgIDs, 1)
}

func TestExistingLookupFailure(t *testing.T) {
	q := queue.NewMemory()
	svc := NewService(q, &fakeChecker{err: errors.New("db down")})

	_, err := svc.ImportRaindrop(context.Background(), RaindropImportRequest{
		UserID:    "u1",
		Bookmarks: []RaindropBookmark{{URL: "https://blog.test/post"}},
	})
	assert.Error(t, err)
	assert.Empty(t, q.Pending(models.QueueRaindropImports))
}
