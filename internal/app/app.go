package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"recollect-worker/internal/ai"
	"recollect-worker/internal/capture"
	"recollect-worker/internal/category"
	"recollect-worker/internal/config"
	"recollect-worker/internal/db"
	"recollect-worker/internal/enrichment"
	"recollect-worker/internal/handler"
	"recollect-worker/internal/ingest"
	"recollect-worker/internal/logging"
	"recollect-worker/internal/media"
	"recollect-worker/internal/metrics"
	"recollect-worker/internal/queue"
	"recollect-worker/internal/repository"
	"recollect-worker/internal/revalidate"
	"recollect-worker/internal/rpc"
	"recollect-worker/internal/scheduler"
	"recollect-worker/internal/server"
	"recollect-worker/internal/storage"
	"recollect-worker/internal/tasks"
	"recollect-worker/internal/telemetry"
	"recollect-worker/internal/worker"
)

// App holds the wired pipeline
type App struct {
	cfg       *config.Config
	conn      *db.Conn
	redis     *redis.Client
	registry  *prometheus.Registry
	metrics   *metrics.Metrics
	pool      *tasks.Pool
	drainers  []worker.Drainer
	scheduler *scheduler.Scheduler
	handlers  *handler.Handlers
}

// New connects to the database and object storage and builds every worker
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	conn, err := db.Init(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	a := &App{cfg: cfg, conn: conn, registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = metrics.NewMetrics(a.registry)

	store, err := storage.NewR2(ctx, cfg.Storage)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize object storage: %w", err)
	}

	var locker revalidate.Locker
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		locker = revalidate.NewRedisLocker(a.redis)
		logrus.Infof("Using redis at %s for revalidation locks", cfg.Redis.Addr)
	}

	q := queue.NewPGMQ(conn.Pool)
	bookmarks := rpc.NewPostgres(conn.Pool)
	repo := repository.New(conn.Gorm)

	a.pool = tasks.NewPool(cfg.Tasks.Workers, cfg.Tasks.QueueSize, cfg.Tasks.Timeout, a.metrics)

	deps := worker.Deps{
		Queue:       q,
		RPC:         bookmarks,
		Metrics:     a.metrics,
		MaxRetries:  cfg.Queue.MaxRetries,
		Visibility:  cfg.Queue.VisibilityTimeout,
		Concurrency: cfg.Queue.Concurrency,
	}

	revalidator := revalidate.New(cfg.Revalidate, &singleflight.Group{}, locker, a.metrics)
	imports := worker.NewImportsWorker(deps, category.NewLinker(conn.Gorm, cfg.Category.OnVerifyFailure), cfg.Queue.ImportsBatchSize)
	imports.OnPublicCategories = revalidate.PublicCategoryHook(a.pool, repo, revalidator, "imports")

	pipeline := enrichment.NewService(
		repo,
		media.NewUploader(store, &http.Client{}, cfg.Storage),
		capture.NewClient(cfg.Capture, &http.Client{Timeout: cfg.Capture.Timeout}),
		ai.NewGemini(cfg.AI),
		q,
		a.metrics,
	)
	enrichDeps := deps
	enrichDeps.Visibility = cfg.Queue.EnrichmentVisibilityTimeout
	checker := enrichment.NewChecker(&http.Client{}, cfg.Capture.ProbeTimeout)

	a.drainers = []worker.Drainer{
		worker.NewInstagramWorker(deps, cfg.Queue.InstagramBatchSize),
		worker.NewRaindropWorker(deps, cfg.Queue.RaindropBatchSize),
		worker.NewTwitterWorker(deps, cfg.Queue.TwitterBatchSize),
		imports,
		enrichment.NewOrchestrator(enrichDeps, pipeline, checker, a.pool, cfg.Queue.EnrichmentBatchSize),
	}
	a.scheduler = scheduler.NewScheduler(&cfg.Scheduler, a.drainers, a.metrics)

	a.handlers = handler.NewHandlers(handler.Options{
		Auth:       cfg.Auth,
		DB:         conn.Pool,
		Drainers:   a.drainers,
		Enrichment: pipeline,
		Ingest:     ingest.NewService(q, repo),
		Scheduler:  a.scheduler,
		Tasks:      a.pool,
		Gatherer:   a.registry,
	})
	return a, nil
}

// Drain processes batches of one queue until it is empty or a batch makes no
// progress, then waits for background tasks the batches started.
func (a *App) Drain(ctx context.Context, queueName string) (*worker.BatchResult, error) {
	var d worker.Drainer
	for _, candidate := range a.drainers {
		if candidate.Queue() == queueName {
			d = candidate
		}
	}
	if d == nil {
		return nil, fmt.Errorf("%w: %s", scheduler.ErrUnknownQueue, queueName)
	}

	a.pool.Start()
	total := &worker.BatchResult{}
	for {
		res, err := d.ProcessBatch(ctx)
		if err != nil {
			return total, err
		}
		if res.Empty {
			break
		}
		total.Processed += res.Processed
		total.Archived += res.Archived
		total.Skipped += res.Skipped
		total.Retry += res.Retry
		if res.Processed+res.Archived+res.Skipped == 0 {
			break
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Tasks.Timeout)
	defer cancel()
	if err := a.pool.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Background tasks did not finish: %v", err)
	}
	return total, nil
}

// Close releases connections
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			logrus.Warnf("Failed to close redis: %v", err)
		}
	}
	a.conn.Close()
}

// Setup configures logging and error tracking
func Setup(cfg *config.Config) {
	logging.Setup(cfg.Log)
	if err := telemetry.Init(cfg.Sentry); err != nil {
		logrus.Warnf("Sentry disabled: %v", err)
	}
}

// Run initializes and starts the application
func Run(cfg *config.Config) error {
	Setup(cfg)
	defer telemetry.Flush(2 * time.Second)

	logrus.Info("Starting Recollect worker")

	a, err := New(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.pool.Start()

	router := server.SetupRouter(a.handlers)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if cfg.Scheduler.Enabled {
		if err := a.scheduler.Start(); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := a.scheduler.Stop(); err != nil {
		logrus.Errorf("Failed to stop scheduler: %v", err)
	}
	a.scheduler.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	if err := a.pool.Shutdown(ctx); err != nil {
		logrus.Errorf("Background tasks did not finish: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}
