package scheduler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	schedulerSvc "recollect-worker/internal/scheduler"
)

// Start begins periodic queue drains
func Start(s Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := s.Start()
		switch {
		case errors.Is(err, schedulerSvc.ErrAlreadyRunning):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "scheduler_running",
				Message: "Scheduler is already running",
				Code:    http.StatusConflict,
			})
			return
		case err != nil:
			logrus.Errorf("Failed to start scheduler: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "scheduler_error",
				Message: "Failed to start scheduler",
				Code:    http.StatusInternalServerError,
			})
			return
		}
		c.JSON(http.StatusOK, StateResponse{Message: "Scheduler started", Status: state(true)})
	}
}

// Stop halts periodic drains and waits for batches in progress
func Stop(s Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.Stop(); err != nil {
			logrus.Errorf("Failed to stop scheduler: %v", err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "scheduler_error",
				Message: "Failed to stop scheduler",
				Code:    http.StatusInternalServerError,
			})
			return
		}
		c.JSON(http.StatusOK, StateResponse{Message: "Scheduler stopped", Status: state(false)})
	}
}

// Status reports next and last runs overall and per queue
func Status(s Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, StatusResponse{
			Status:  state(s.IsRunning()),
			NextRun: s.GetNextRun(),
			LastRun: s.GetLastRun(),
			Queues:  s.Status(),
		})
	}
}

// RunOnce drains one batch of the queue named in the path
func RunOnce(s Controller) gin.HandlerFunc {
	return func(c *gin.Context) {
		queue := c.Param("queue")
		result, err := s.RunOnce(c.Request.Context(), queue)
		switch {
		case errors.Is(err, schedulerSvc.ErrUnknownQueue):
			c.JSON(http.StatusNotFound, ErrorResponse{
				Error:   "unknown_queue",
				Message: "No worker for queue " + queue,
				Code:    http.StatusNotFound,
			})
			return
		case errors.Is(err, schedulerSvc.ErrBusy):
			c.JSON(http.StatusConflict, ErrorResponse{
				Error:   "queue_busy",
				Message: "A batch of " + queue + " is already running",
				Code:    http.StatusConflict,
			})
			return
		case err != nil:
			logrus.Errorf("Manual drain of %s failed: %v", queue, err)
			c.JSON(http.StatusInternalServerError, ErrorResponse{
				Error:   "scheduler_error",
				Message: "Failed to process " + queue,
				Code:    http.StatusInternalServerError,
			})
			return
		}
		c.JSON(http.StatusOK, RunResponse{Queue: queue, Result: result})
	}
}
