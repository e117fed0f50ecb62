package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"recollect-worker/internal/models"
	"recollect-worker/internal/queue"
	"recollect-worker/internal/validate"
)

// ErrNoBookmarks is returned when a request carries nothing to enqueue
var ErrNoBookmarks = errors.New("no bookmarks provided")

// URLChecker finds bookmarks a user already has
type URLChecker interface {
	ExistingURLs(ctx context.Context, userID string, urls []string) (map[string]struct{}, error)
}

// Result counts what a sync request enqueued. Skipped covers duplicates within
// the request and URLs the user already saved. Invalid covers URLs the
// destination worker would archive.
type Result struct {
	Inserted int     `json:"inserted"`
	Skipped  int     `json:"skipped"`
	Invalid  int     `json:"invalid,omitempty"`
	Linked   int     `json:"linked,omitempty"`
	MsgIDs   []int64 `json:"msg_ids,omitempty"`
}

// TwitterBookmark is one tweet in a sync request
type TwitterBookmark struct {
	URL         string         `json:"url" binding:"required"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	OgImage     string         `json:"ogImage"`
	MetaData    map[string]any `json:"meta_data"`
	SortIndex   string         `json:"sort_index"`
	InsertedAt  string         `json:"inserted_at"`
}

// TwitterCategoryLink assigns a synced tweet to one of the user's collections
type TwitterCategoryLink struct {
	URL          string `json:"url" binding:"required"`
	CategoryName string `json:"category_name" binding:"required"`
}

// TwitterSyncRequest is the body of POST /api/v1/twitter/sync
type TwitterSyncRequest struct {
	UserID     string                `json:"user_id" binding:"required"`
	Bookmarks  []TwitterBookmark     `json:"bookmarks" binding:"max=1000,dive"`
	Categories []TwitterCategoryLink `json:"categories" binding:"max=1000,dive"`
}

// InstagramBookmark is one saved post in a sync request
type InstagramBookmark struct {
	URL                  string         `json:"url" binding:"required"`
	Type                 string         `json:"type"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	OgImage              string         `json:"ogImage"`
	MetaData             map[string]any `json:"meta_data"`
	SavedAt              string         `json:"saved_at"`
	SavedCollectionNames []string       `json:"saved_collection_names"`
}

// InstagramSyncRequest is the body of POST /api/v1/instagram/sync
type InstagramSyncRequest struct {
	UserID    string              `json:"user_id" binding:"required"`
	Bookmarks []InstagramBookmark `json:"bookmarks" binding:"required,min=1,max=1000,dive"`
}

// RaindropBookmark is one row of a Raindrop export
type RaindropBookmark struct {
	URL          string         `json:"url" binding:"required"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	OgImage      string         `json:"ogImage"`
	CategoryName string         `json:"category_name"`
	MetaData     map[string]any `json:"meta_data"`
}

// RaindropImportRequest is the body of POST /api/v1/raindrop/import
type RaindropImportRequest struct {
	UserID    string             `json:"user_id" binding:"required"`
	Bookmarks []RaindropBookmark `json:"bookmarks" binding:"required,min=1,max=5000,dive"`
}

// Service turns sync requests into queue messages
type Service struct {
	queue    queue.Client
	existing URLChecker
}

// NewService creates an ingest Service
func NewService(q queue.Client, existing URLChecker) *Service {
	return &Service{queue: q, existing: existing}
}

// SyncTwitter enqueues create_bookmark messages for new tweets and a
// link_bookmark_category message for every category assignment.
func (s *Service) SyncTwitter(ctx context.Context, req TwitterSyncRequest) (*Result, error) {
	if len(req.Bookmarks) == 0 && len(req.Categories) == 0 {
		return nil, ErrNoBookmarks
	}

	urls := make([]string, len(req.Bookmarks))
	for i, b := range req.Bookmarks {
		urls[i] = b.URL
	}
	res, err := s.enqueue(ctx, models.QueueTwitterImports, req.UserID, urls, validate.IsTwitterURL, func(i int) any {
		b := req.Bookmarks[i]
		return models.TwitterCreatePayload{
			Type:        models.TwitterCreateBookmark,
			URL:         strings.TrimSpace(b.URL),
			Title:       b.Title,
			Description: b.Description,
			OgImage:     b.OgImage,
			MetaData:    b.MetaData,
			SortIndex:   b.SortIndex,
			UserID:      req.UserID,
			InsertedAt:  b.InsertedAt,
		}
	})
	if err != nil {
		return nil, err
	}

	if len(req.Categories) == 0 {
		return res, nil
	}
	links := make([]any, 0, len(req.Categories))
	for _, c := range req.Categories {
		if !validate.IsTwitterURL(c.URL) || strings.TrimSpace(c.CategoryName) == "" {
			res.Invalid++
			continue
		}
		links = append(links, models.TwitterLinkPayload{
			Type:         models.TwitterLinkCategory,
			URL:          strings.TrimSpace(c.URL),
			UserID:       req.UserID,
			CategoryName: strings.TrimSpace(c.CategoryName),
		})
	}
	if len(links) > 0 {
		ids, err := s.queue.SendBatch(ctx, models.QueueTwitterImports, links, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue category links: %w", err)
		}
		res.Linked = len(ids)
		res.MsgIDs = append(res.MsgIDs, ids...)
	}
	return res, nil
}

// SyncInstagram enqueues saved Instagram posts the user does not have yet
func (s *Service) SyncInstagram(ctx context.Context, req InstagramSyncRequest) (*Result, error) {
	urls := make([]string, len(req.Bookmarks))
	for i, b := range req.Bookmarks {
		urls[i] = b.URL
	}
	return s.enqueue(ctx, models.QueueInstagramImports, req.UserID, urls, validate.IsInstagramURL, func(i int) any {
		b := req.Bookmarks[i]
		meta := make(map[string]any, len(b.MetaData)+1)
		for k, v := range b.MetaData {
			meta[k] = v
		}
		if len(b.SavedCollectionNames) > 0 {
			meta["saved_collection_names"] = b.SavedCollectionNames
		}
		return models.InstagramPayload{
			URL:         strings.TrimSpace(b.URL),
			Type:        b.Type,
			Title:       b.Title,
			Description: b.Description,
			OgImage:     b.OgImage,
			MetaData:    meta,
			UserID:      req.UserID,
			SavedAt:     b.SavedAt,
		}
	})
}

// ImportRaindrop enqueues Raindrop export rows the user does not have yet
func (s *Service) ImportRaindrop(ctx context.Context, req RaindropImportRequest) (*Result, error) {
	urls := make([]string, len(req.Bookmarks))
	for i, b := range req.Bookmarks {
		urls[i] = b.URL
	}
	return s.enqueue(ctx, models.QueueRaindropImports, req.UserID, urls, validate.IsHTTPURL, func(i int) any {
		b := req.Bookmarks[i]
		return models.RaindropPayload{
			URL:          strings.TrimSpace(b.URL),
			Title:        b.Title,
			Description:  b.Description,
			OgImage:      b.OgImage,
			CategoryName: b.CategoryName,
			MetaData:     b.MetaData,
			UserID:       req.UserID,
		}
	})
}

// enqueue drops invalid URLs, duplicates within urls and URLs the user
// already has, then sends one message per remaining index built by build.
func (s *Service) enqueue(ctx context.Context, queueName, userID string, urls []string, allowed func(string) bool, build func(i int) any) (*Result, error) {
	res := &Result{}
	if len(urls) == 0 {
		return res, nil
	}

	seen := make(map[string]struct{}, len(urls))
	var candidates []int
	var candidateURLs []string
	for i, raw := range urls {
		u := strings.TrimSpace(raw)
		if !allowed(u) {
			res.Invalid++
			continue
		}
		if _, dup := seen[u]; dup {
			res.Skipped++
			continue
		}
		seen[u] = struct{}{}
		candidates = append(candidates, i)
		candidateURLs = append(candidateURLs, u)
	}

	existing, err := s.existing.ExistingURLs(ctx, userID, candidateURLs)
	if err != nil {
		return nil, err
	}

	msgs := make([]any, 0, len(candidates))
	for n, i := range candidates {
		if _, ok := existing[candidateURLs[n]]; ok {
			res.Skipped++
			continue
		}
		msgs = append(msgs, build(i))
	}

	if len(msgs) > 0 {
		ids, err := s.queue.SendBatch(ctx, queueName, msgs, 0)
		if err != nil {
			return nil, fmt.Errorf("failed to enqueue %d messages on %s: %w", len(msgs), queueName, err)
		}
		res.Inserted = len(ids)
		res.MsgIDs = ids
	}

	logrus.Infof("Queued %d bookmarks on %s for user %s (skipped=%d invalid=%d)",
		res.Inserted, queueName, userID, res.Skipped, res.Invalid)
	return res, nil
}
