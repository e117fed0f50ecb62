package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"recollect-worker/internal/enrichment"
)

// AIEnrichment runs the og:image enrichment pipeline for one bookmark
func (h *Handlers) AIEnrichment(c *gin.Context) {
	var req enrichment.AIEnrichmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	result, err := h.opts.Enrichment.Enrich(c.Request.Context(), req)
	if err != nil {
		logrus.Errorf("AI enrichment of bookmark %d failed: %v", req.BookmarkID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "AI enrichment failed", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Screenshot runs the screenshot pipeline for one bookmark
func (h *Handlers) Screenshot(c *gin.Context) {
	var req enrichment.ScreenshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	result, err := h.opts.Enrichment.Screenshot(c.Request.Context(), req)
	if err != nil {
		logrus.Errorf("Screenshot of bookmark %d failed: %v", req.BookmarkID, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Screenshot failed", Details: err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}
