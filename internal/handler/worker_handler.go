package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"recollect-worker/internal/telemetry"
	"recollect-worker/internal/worker"
)

// WorkerHealth answers GET on a worker endpoint
func (h *Handlers) WorkerHealth(queue string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, WorkerHealthResponse{Status: "ok", Queue: queue})
	}
}

// ProcessQueue drains one batch of d
func (h *Handlers) ProcessQueue(d worker.Drainer) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := d.ProcessBatch(c.Request.Context())
		if err != nil {
			logrus.Errorf("Failed to process %s: %v", d.Queue(), err)
			telemetry.Capture(err, map[string]string{"queue": d.Queue()})
			c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
			return
		}

		if result.Empty {
			c.JSON(http.StatusOK, gin.H{
				"processed": 0,
				"archived":  0,
				"message":   result.Message,
			})
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
