package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"recollect-worker/internal/config"
	"recollect-worker/internal/enrichment"
	schedulerHandler "recollect-worker/internal/handler/scheduler"
	"recollect-worker/internal/ingest"
	"recollect-worker/internal/models"
	"recollect-worker/internal/scheduler"
	"recollect-worker/internal/tasks"
	"recollect-worker/internal/worker"
)

// Pinger checks database connectivity
type Pinger interface {
	Ping(ctx context.Context) error
}

// TaskStats reports background pool activity
type TaskStats interface {
	Stats() tasks.Stats
}

// Options are the collaborators of Handlers. Nil members disable the routes
// that need them.
type Options struct {
	Auth       config.AuthConfig
	DB         Pinger
	Drainers   []worker.Drainer
	Enrichment enrichment.Pipeline
	Ingest     *ingest.Service
	Scheduler  *scheduler.Scheduler
	Tasks      TaskStats
	Gatherer   prometheus.Gatherer
}

// Handlers contains all HTTP handlers
type Handlers struct {
	opts     Options
	drainers map[string]worker.Drainer
}

// workerRoutes maps the worker endpoints to their queues
var workerRoutes = map[string]string{
	"/process-instagram-imports": models.QueueInstagramImports,
	"/process-raindrop-imports":  models.QueueRaindropImports,
	"/process-twitter-imports":   models.QueueTwitterImports,
	"/process-imports":           models.QueueImports,
	"/process-ai-embeddings":     models.QueueAIEmbeddings,
}

// NewHandlers creates new HTTP handlers
func NewHandlers(opts Options) *Handlers {
	drainers := make(map[string]worker.Drainer, len(opts.Drainers))
	for _, d := range opts.Drainers {
		drainers[d.Queue()] = d
	}
	return &Handlers{opts: opts, drainers: drainers}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	if h.opts.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.opts.Gatherer, promhttp.HandlerOpts{})))
	} else {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	serviceRole := bearerAuth(h.opts.Auth.ServiceRoleKey)
	for path, queue := range workerRoutes {
		d, ok := h.drainers[queue]
		if !ok {
			continue
		}
		router.GET(path, h.WorkerHealth(queue))
		router.POST(path, serviceRole, h.ProcessQueue(d))
	}

	api := router.Group("/api/v1", bearerAuth(h.opts.Auth.InternalAPIKey))
	{
		if h.opts.Enrichment != nil {
			api.POST("/ai-enrichment", h.AIEnrichment)
			api.POST("/screenshot", h.Screenshot)
		}

		if h.opts.Ingest != nil {
			api.POST("/twitter/sync", h.SyncTwitter)
			api.POST("/instagram/sync", h.SyncInstagram)
			api.POST("/raindrop/import", h.ImportRaindrop)
		}

		if s := h.opts.Scheduler; s != nil {
			api.POST("/scheduler/start", schedulerHandler.Start(s))
			api.POST("/scheduler/stop", schedulerHandler.Stop(s))
			api.POST("/scheduler/run/:queue", schedulerHandler.RunOnce(s))
			api.GET("/scheduler/status", schedulerHandler.Status(s))
		}

		if h.opts.Tasks != nil {
			api.GET("/tasks/status", h.TaskStatus)
		}
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "ok",
		Queues:    make(map[string]string),
	}

	if h.opts.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.opts.DB.Ping(ctx); err != nil {
			response.Status = "error"
			response.Database = "error"
			logrus.Errorf("Database health check failed: %v", err)
		}
	}

	if s := h.opts.Scheduler; s != nil {
		response.Scheduler = "stopped"
		if s.IsRunning() {
			response.Scheduler = "running"
		}
		for _, st := range s.Status() {
			response.Queues[st.Queue] = st.Schedule
		}
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}
	c.JSON(statusCode, response)
}

// TaskStatus reports the background task pool
func (h *Handlers) TaskStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.opts.Tasks.Stats())
}
