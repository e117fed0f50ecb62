package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	schedulerSvc "recollect-worker/internal/scheduler"
	"recollect-worker/internal/worker"
)

type fakeController struct {
	running  bool
	startErr error
	runErr   error
	ran      []string
}

func (f *fakeController) Start() error {
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	return nil
}

func (f *fakeController) Stop() error {
	f.running = false
	return nil
}

func (f *fakeController) IsRunning() bool { return f.running }

func (f *fakeController) RunOnce(ctx context.Context, queue string) (*worker.BatchResult, error) {
	f.ran = append(f.ran, queue)
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &worker.BatchResult{Processed: 2, Retry: 1}, nil
}

func (f *fakeController) Status() []schedulerSvc.QueueStatus {
	return []schedulerSvc.QueueStatus{{Queue: "imports", Schedule: "@every 30s"}}
}

func (f *fakeController) GetNextRun() time.Time { return time.Time{} }
func (f *fakeController) GetLastRun() time.Time { return time.Time{} }

func newRouter(s Controller) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/start", Start(s))
	r.POST("/stop", Stop(s))
	r.POST("/run/:queue", RunOnce(s))
	r.GET("/status", Status(s))
	return r
}

func do(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestStartStop(t *testing.T) {
	s := &fakeController{}
	r := newRouter(s)

	w := do(r, http.MethodPost, "/start")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, s.running)

	w = do(r, http.MethodGet, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "running", status.Status)
	require.Len(t, status.Queues, 1)
	assert.Equal(t, "imports", status.Queues[0].Queue)

	w = do(r, http.MethodPost, "/stop")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, s.running)
}

func TestStartErrors(t *testing.T) {
	w := do(newRouter(&fakeController{startErr: schedulerSvc.ErrAlreadyRunning}), http.MethodPost, "/start")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(newRouter(&fakeController{startErr: errors.New(`bad spec "@every nope"`)}), http.MethodPost, "/start")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Failed to start scheduler", resp.Message)
	assert.NotContains(t, w.Body.String(), "@every nope")
}

func TestRunOnce(t *testing.T) {
	s := &fakeController{}
	w := do(newRouter(s), http.MethodPost, "/run/imports")
	require.Equal(t, http.StatusOK, w.Code)

	var resp RunResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "imports", resp.Queue)
	assert.Equal(t, 2, resp.Result.Processed)
	assert.Equal(t, []string{"imports"}, s.ran)
}

func TestRunOnceErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"unknown queue", schedulerSvc.ErrUnknownQueue, http.StatusNotFound},
		{"busy", schedulerSvc.ErrBusy, http.StatusConflict},
		{"read failure", errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(newRouter(&fakeController{runErr: tt.err}), http.MethodPost, "/run/imports")
			assert.Equal(t, tt.code, w.Code)
			assert.NotContains(t, w.Body.String(), "db down")
		})
	}
}
