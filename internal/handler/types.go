package handler

import "time"

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Scheduler string            `json:"scheduler,omitempty"`
	Queues    map[string]string `json:"queues,omitempty"`
}

// WorkerHealthResponse is returned by GET on a worker endpoint
type WorkerHealthResponse struct {
	Status string `json:"status"`
	Queue  string `json:"queue"`
}

// ErrorResponse is the error body of worker endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// DataResponse is the body of the sync endpoints
type DataResponse struct {
	Data  interface{} `json:"data"`
	Error *string     `json:"error"`
}

func errorData(msg string) DataResponse {
	return DataResponse{Error: &msg}
}
