package scheduler

import (
	"context"
	"time"

	schedulerSvc "recollect-worker/internal/scheduler"
	"recollect-worker/internal/worker"
)

// Controller is the part of the drain scheduler exposed over HTTP
type Controller interface {
	Start() error
	Stop() error
	IsRunning() bool
	RunOnce(ctx context.Context, queue string) (*worker.BatchResult, error)
	Status() []schedulerSvc.QueueStatus
	GetNextRun() time.Time
	GetLastRun() time.Time
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// StateResponse is returned by start and stop
type StateResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

// StatusResponse describes the scheduler and each queue it drains
type StatusResponse struct {
	Status  string                     `json:"status"`
	NextRun time.Time                  `json:"next_run"`
	LastRun time.Time                  `json:"last_run"`
	Queues  []schedulerSvc.QueueStatus `json:"queues"`
}

// RunResponse carries the totals of a manually triggered batch
type RunResponse struct {
	Queue  string              `json:"queue"`
	Result *worker.BatchResult `json:"result"`
}

func state(running bool) string {
	if running {
		return "running"
	}
	return "stopped"
}
