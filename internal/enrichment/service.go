package enrichment

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"recollect-worker/internal/ai"
	"recollect-worker/internal/capture"
	"recollect-worker/internal/media"
	"recollect-worker/internal/metrics"
	"recollect-worker/internal/models"
	"recollect-worker/internal/queue"
	"recollect-worker/internal/telemetry"
)

// Enrichment stages. A failed stage keeps the queue message for another attempt.
const (
	StageMirror     = "mirror"
	StageImage      = "image"
	StageCaption    = "caption"
	StageOCR        = "ocr"
	StageBlurHash   = "blurhash"
	StageVideo      = "video"
	StageScreenshot = "screenshot"
)

// BookmarkStore reads and writes enrichment results
type BookmarkStore interface {
	FindBookmark(ctx context.Context, id int64, userID string) (*models.Bookmark, error)
	UpdateEnrichment(ctx context.Context, id int64, userID, ogImage string, meta map[string]any) error
}

// MediaStore moves images and videos into object storage
type MediaStore interface {
	UploadVideo(ctx context.Context, rawURL, userID, source string) string
	UploadImage(ctx context.Context, data []byte, contentType, userID, prefix string) (string, error)
	MirrorImage(ctx context.Context, rawURL, userID string) (string, *media.Asset, error)
	FetchImage(ctx context.Context, rawURL string) (*media.Asset, error)
}

// Renderer produces an image of a page or a PDF
type Renderer interface {
	Screenshot(ctx context.Context, pageURL string) (*capture.Image, error)
	PDFThumbnail(ctx context.Context, pdfURL string) (*capture.Image, error)
}

// AIEnrichmentRequest asks for enrichment of a bookmark whose og:image is reachable
type AIEnrichmentRequest struct {
	BookmarkID         int64  `json:"id" binding:"required,gt=0"`
	URL                string `json:"url" binding:"required,url"`
	UserID             string `json:"user_id" binding:"required"`
	OgImage            string `json:"ogImage" binding:"required,url"`
	IsRaindropBookmark bool   `json:"isRaindropBookmark"`
	QueueName          string `json:"queue_name"`
	MessageID          int64  `json:"message_id"`
}

// ScreenshotRequest asks for a page capture followed by enrichment
type ScreenshotRequest struct {
	BookmarkID int64  `json:"id" binding:"required,gt=0"`
	URL        string `json:"url" binding:"required,url"`
	UserID     string `json:"user_id" binding:"required"`
	MediaType  string `json:"mediaType"`
	VideoURL   string `json:"video_url" binding:"omitempty,url"`
	Source     string `json:"source" binding:"omitempty,oneof=instagram twitter raindrop"`
	QueueName  string `json:"queue_name"`
	MessageID  int64  `json:"message_id"`
}

// Result describes what an enrichment run wrote
type Result struct {
	BookmarkID     int64          `json:"id"`
	OgImage        string         `json:"ogImage"`
	MetaData       map[string]any `json:"meta_data"`
	FailedStages   []string       `json:"failed_stages,omitempty"`
	MessageDeleted bool           `json:"message_deleted"`
}

// Service runs the enrichment pipelines
type Service struct {
	store    BookmarkStore
	media    MediaStore
	renderer Renderer
	vision   ai.Vision
	queue    queue.Client
	metrics  *metrics.Metrics
}

// NewService wires the enrichment collaborators. q may be nil when requests
// never carry a queue reference.
func NewService(store BookmarkStore, mediaStore MediaStore, renderer Renderer, vision ai.Vision, q queue.Client, m *metrics.Metrics) *Service {
	return &Service{store: store, media: mediaStore, renderer: renderer, vision: vision, queue: q, metrics: m}
}

// run collects updates and stage failures across concurrent stages
type run struct {
	mu      sync.Mutex
	updates map[string]any
	failed  []string
}

func newRun() *run {
	return &run{updates: map[string]any{}}
}

func (r *run) set(key string, value any) {
	r.mu.Lock()
	r.updates[key] = value
	r.mu.Unlock()
}

func (r *run) fail(stage string) {
	r.mu.Lock()
	r.failed = append(r.failed, stage)
	r.mu.Unlock()
}

// Enrich captions, OCRs and blurhashes a bookmark's og:image. Raindrop images
// are first mirrored into storage so the bookmark no longer depends on the
// original host.
func (s *Service) Enrich(ctx context.Context, req AIEnrichmentRequest) (*Result, error) {
	bookmark, err := s.store.FindBookmark(ctx, req.BookmarkID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmark %d: %w", req.BookmarkID, err)
	}

	r := newRun()
	ogImage := req.OgImage
	var asset *media.Asset

	if req.IsRaindropBookmark {
		mirrored, a, err := s.media.MirrorImage(ctx, req.OgImage, req.UserID)
		if err != nil {
			logrus.Warnf("Failed to mirror og:image for bookmark %d: %v", req.BookmarkID, err)
			r.fail(StageMirror)
		} else {
			ogImage, asset = mirrored, a
		}
	}

	if asset == nil {
		asset, err = s.media.FetchImage(ctx, req.OgImage)
		if err != nil {
			logrus.Warnf("Failed to download og:image for bookmark %d: %v", req.BookmarkID, err)
			r.fail(StageImage)
		}
	}

	if asset != nil {
		s.caption(ctx, r, asset)
		s.ocr(ctx, r, asset)
		s.blurhash(r, asset)
	}

	newImage := ""
	if ogImage != req.OgImage {
		newImage = ogImage
	}
	return s.finish(ctx, bookmark, newImage, req.QueueName, req.MessageID, r)
}

// Screenshot captures the page (or the PDF's first page), stores it as the
// bookmark image and enriches it. Video mirroring runs alongside the image
// stages and never blocks them.
func (s *Service) Screenshot(ctx context.Context, req ScreenshotRequest) (*Result, error) {
	bookmark, err := s.store.FindBookmark(ctx, req.BookmarkID, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookmark %d: %w", req.BookmarkID, err)
	}

	isPDF := capture.IsPDF(req.MediaType, req.URL)
	var img *capture.Image
	if isPDF {
		img, err = s.renderer.PDFThumbnail(ctx, req.URL)
	} else {
		img, err = s.renderer.Screenshot(ctx, req.URL)
	}
	if err != nil {
		s.metrics.StageFailed(StageScreenshot)
		telemetry.Capture(err, map[string]string{"stage": StageScreenshot})
		return nil, fmt.Errorf("failed to capture %s: %w", req.URL, err)
	}

	ogImage, err := s.media.UploadImage(ctx, img.Data, img.ContentType, req.UserID, "screenshots")
	if err != nil {
		s.metrics.StageFailed(StageScreenshot)
		return nil, fmt.Errorf("failed to upload screenshot: %w", err)
	}

	r := newRun()
	r.set(models.MetaIsPageScreenshot, !isPDF)
	r.set(models.MetaMediaType, req.MediaType)

	asset := &media.Asset{Data: img.Data, ContentType: img.ContentType}
	var g errgroup.Group
	if req.VideoURL != "" {
		g.Go(func() error {
			if stored := s.media.UploadVideo(ctx, req.VideoURL, req.UserID, req.Source); stored != "" {
				r.set(models.MetaVideoURL, stored)
			}
			return nil
		})
	}
	g.Go(func() error { s.caption(ctx, r, asset); return nil })
	g.Go(func() error { s.ocr(ctx, r, asset); return nil })
	g.Go(func() error { s.blurhash(r, asset); return nil })
	_ = g.Wait()

	return s.finish(ctx, bookmark, ogImage, req.QueueName, req.MessageID, r)
}

func (s *Service) caption(ctx context.Context, r *run, asset *media.Asset) {
	text, err := s.vision.Caption(ctx, asset.Data, asset.ContentType)
	if err != nil {
		logrus.Warnf("Caption failed: %v", err)
		r.fail(StageCaption)
		return
	}
	r.set(models.MetaImgCaption, text)
}

func (s *Service) ocr(ctx context.Context, r *run, asset *media.Asset) {
	text, status, err := s.vision.ExtractText(ctx, asset.Data, asset.ContentType)
	if err != nil {
		logrus.Warnf("OCR failed: %v", err)
		r.fail(StageOCR)
		return
	}
	r.set(models.MetaOCR, text)
	r.set(models.MetaOCRStatus, status)
}

func (s *Service) blurhash(r *run, asset *media.Asset) {
	blur, err := media.BlurHash(asset.Data)
	if err != nil {
		logrus.Warnf("Blurhash failed: %v", err)
		r.fail(StageBlurHash)
		return
	}
	r.set(models.MetaBlurHash, blur.Hash)
	r.set(models.MetaWidth, blur.Width)
	r.set(models.MetaHeight, blur.Height)
}

// finish merges the collected updates into the stored metadata, writes the
// bookmark and deletes the queue message when every stage succeeded.
func (s *Service) finish(ctx context.Context, bookmark *models.Bookmark, ogImage, queueName string, msgID int64, r *run) (*Result, error) {
	merged := models.MergeMetadata(bookmark.Meta(), r.updates)
	if err := s.store.UpdateEnrichment(ctx, bookmark.ID, bookmark.UserID, ogImage, merged); err != nil {
		return nil, fmt.Errorf("failed to save enrichment for bookmark %d: %w", bookmark.ID, err)
	}

	for _, stage := range r.failed {
		s.metrics.StageFailed(stage)
	}

	res := &Result{BookmarkID: bookmark.ID, OgImage: ogImage, MetaData: merged, FailedStages: r.failed}
	if res.OgImage == "" {
		res.OgImage = bookmark.OgImage
	}

	if len(r.failed) > 0 {
		logrus.Warnf("Enrichment of bookmark %d incomplete, failed stages: %v", bookmark.ID, r.failed)
		telemetry.Capture(errors.New("enrichment incomplete"), map[string]string{"bookmark_id": fmt.Sprint(bookmark.ID)})
		return res, nil
	}

	if queueName != "" && msgID > 0 && s.queue != nil {
		if err := s.queue.Delete(ctx, queueName, msgID); err != nil {
			logrus.Errorf("Failed to delete message %d on %s: %v", msgID, queueName, err)
		} else {
			res.MessageDeleted = true
		}
	}
	logrus.Infof("Enriched bookmark %d", bookmark.ID)
	return res, nil
}
