package media

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"recollect-worker/internal/config"
	"recollect-worker/internal/storage"
	"recollect-worker/internal/telemetry"
	"recollect-worker/internal/validate"
)

// Uploader copies external media into the object store
type Uploader struct {
	store           storage.ObjectStore
	client          *http.Client
	maxVideoBytes   int64
	maxImageBytes   int64
	downloadTimeout time.Duration
	mirrorTimeout   time.Duration
	videoAllowed    func(rawURL, source string) bool
}

// NewUploader creates an Uploader
func NewUploader(store storage.ObjectStore, client *http.Client, cfg config.StorageConfig) *Uploader {
	if client == nil {
		client = &http.Client{}
	}
	return &Uploader{
		store:           store,
		client:          client,
		maxVideoBytes:   cfg.MaxVideoBytes,
		maxImageBytes:   cfg.MaxImageBytes,
		downloadTimeout: cfg.DownloadTimeout,
		mirrorTimeout:   cfg.MirrorTimeout,
		videoAllowed:    validate.IsMediaURL,
	}
}

// UploadVideo copies a tweet or Instagram video into storage and returns its
// public URL, or "" when anything goes wrong. Failures are logged and
// reported, never returned.
func (u *Uploader) UploadVideo(ctx context.Context, rawURL, userID, source string) string {
	tags := map[string]string{"operation": "upload_video", "source": source}

	if !u.videoAllowed(rawURL, source) {
		logrus.Warnf("Rejected video url for %s: %q", source, rawURL)
		telemetry.Capture(fmt.Errorf("video url not allowed for %s", source), tags)
		return ""
	}

	asset, err := Fetch(ctx, u.videoClient(source), rawURL, u.maxVideoBytes, u.downloadTimeout)
	if err != nil {
		logrus.Errorf("Failed to download video: %v", err)
		telemetry.Capture(err, tags)
		return ""
	}

	contentType := asset.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = "video/mp4"
	}
	key := fmt.Sprintf("%s/videos/%s/%s.%s", source, userID, uuid.New().String(), extension(contentType, "mp4"))
	if err := u.store.Put(ctx, key, asset.Data, contentType); err != nil {
		logrus.Errorf("Failed to upload video: %v", err)
		telemetry.Capture(err, tags)
		return ""
	}
	return u.store.PublicURL(key)
}

// videoClient applies the source allow-list to every redirect hop
func (u *Uploader) videoClient(source string) *http.Client {
	c := *u.client
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return errors.New("too many redirects")
		}
		if !u.videoAllowed(req.URL.String(), source) {
			return fmt.Errorf("redirect to %s not allowed for %s", req.URL.Redacted(), source)
		}
		return nil
	}
	return &c
}

const maxRedirects = 10

// UploadImage stores image bytes under prefix and returns the public URL
func (u *Uploader) UploadImage(ctx context.Context, data []byte, contentType, userID, prefix string) (string, error) {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	key := fmt.Sprintf("%s/%s/%s.%s", prefix, userID, uuid.New().String(), extension(contentType, "jpg"))
	if err := u.store.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return u.store.PublicURL(key), nil
}

// MirrorImage downloads a remote image and stores a copy we own
func (u *Uploader) MirrorImage(ctx context.Context, rawURL, userID string) (string, *Asset, error) {
	asset, err := Fetch(ctx, u.client, rawURL, u.maxImageBytes, u.mirrorTimeout)
	if err != nil {
		return "", nil, err
	}
	publicURL, err := u.UploadImage(ctx, asset.Data, asset.ContentType, userID, "bookmarks/og")
	if err != nil {
		return "", nil, err
	}
	return publicURL, asset, nil
}

// FetchImage downloads an image within the image ceiling
func (u *Uploader) FetchImage(ctx context.Context, rawURL string) (*Asset, error) {
	return Fetch(ctx, u.client, rawURL, u.maxImageBytes, u.downloadTimeout)
}

func extension(contentType, fallback string) string {
	switch contentType {
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	case "video/mp4":
		return "mp4"
	case "video/quicktime":
		return "mov"
	case "video/webm":
		return "webm"
	}
	return fallback
}
