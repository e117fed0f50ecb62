package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"recollect-worker/internal/ingest"
	"recollect-worker/internal/telemetry"
)

// SyncTwitter enqueues a batch of tweets
func (h *Handlers) SyncTwitter(c *gin.Context) {
	var req ingest.TwitterSyncRequest
	bindAndSync(c, &req, "twitter", func(ctx context.Context) (*ingest.Result, error) {
		return h.opts.Ingest.SyncTwitter(ctx, req)
	})
}

// SyncInstagram enqueues a batch of saved Instagram posts
func (h *Handlers) SyncInstagram(c *gin.Context) {
	var req ingest.InstagramSyncRequest
	bindAndSync(c, &req, "instagram", func(ctx context.Context) (*ingest.Result, error) {
		return h.opts.Ingest.SyncInstagram(ctx, req)
	})
}

// ImportRaindrop enqueues a Raindrop export
func (h *Handlers) ImportRaindrop(c *gin.Context) {
	var req ingest.RaindropImportRequest
	bindAndSync(c, &req, "raindrop", func(ctx context.Context) (*ingest.Result, error) {
		return h.opts.Ingest.ImportRaindrop(ctx, req)
	})
}

func bindAndSync(c *gin.Context, req interface{}, source string, sync func(ctx context.Context) (*ingest.Result, error)) {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, errorData(err.Error()))
		return
	}

	result, err := sync(c.Request.Context())
	if errors.Is(err, ingest.ErrNoBookmarks) {
		c.JSON(http.StatusBadRequest, errorData(err.Error()))
		return
	}
	if err != nil {
		logrus.Errorf("Failed to sync %s bookmarks: %v", source, err)
		telemetry.Capture(err, map[string]string{"operation": "sync", "source": source})
		c.JSON(http.StatusInternalServerError, errorData("Internal server error"))
		return
	}
	c.JSON(http.StatusOK, DataResponse{Data: result})
}
