package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"recollect-worker/internal/config"
	"recollect-worker/internal/metrics"
	"recollect-worker/internal/worker"
)

var (
	// ErrUnknownQueue is returned by RunOnce for a queue without a drainer
	ErrUnknownQueue = errors.New("unknown queue")
	// ErrBusy is returned by RunOnce while a batch of the queue is in progress
	ErrBusy = errors.New("queue batch already in progress")
	// ErrAlreadyRunning is returned by Start on a running scheduler
	ErrAlreadyRunning = errors.New("scheduler is already running")
)

// QueueStatus describes one scheduled queue
type QueueStatus struct {
	Queue      string              `json:"queue"`
	Schedule   string              `json:"schedule"`
	NextRun    time.Time           `json:"next_run"`
	LastRun    time.Time           `json:"last_run"`
	Busy       bool                `json:"busy"`
	LastResult *worker.BatchResult `json:"last_result,omitempty"`
	LastError  string              `json:"last_error,omitempty"`
}

type job struct {
	drainer    worker.Drainer
	schedule   string
	entryID    cron.EntryID
	busy       bool
	lastRun    time.Time
	lastResult *worker.BatchResult
	lastError  string
}

// Scheduler drains every queue on its own cron schedule
type Scheduler struct {
	cron      *cron.Cron
	config    *config.SchedulerConfig
	jobs      map[string]*job
	metrics   *metrics.Metrics
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	isRunning bool
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler. Drainers whose queue has no schedule
// can still be run manually with RunOnce.
func NewScheduler(cfg *config.SchedulerConfig, drainers []worker.Drainer, m *metrics.Metrics) *Scheduler {
	jobs := make(map[string]*job, len(drainers))
	for _, d := range drainers {
		jobs[d.Queue()] = &job{drainer: d, schedule: cfg.Schedules[d.Queue()]}
	}
	return &Scheduler{
		config:  cfg,
		jobs:    jobs,
		metrics: m,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrAlreadyRunning
	}

	// fresh cron and context so a stopped scheduler can be restarted
	c := cron.New(cron.WithSeconds())
	ctx, cancel := context.WithCancel(context.Background())

	for name, j := range s.jobs {
		if j.schedule == "" {
			continue
		}
		name := name
		entryID, err := c.AddFunc(j.schedule, func() { s.drain(ctx, name) })
		if err != nil {
			cancel()
			return fmt.Errorf("failed to schedule %s (%q): %w", name, j.schedule, err)
		}
		j.entryID = entryID
	}

	s.cron, s.ctx, s.cancel = c, ctx, cancel
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with %d queues", len(s.cron.Entries()))
	return nil
}

// Stop stops the scheduler and waits for running batches
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	stopped := s.cron.Stop()
	s.mu.Unlock()

	select {
	case <-stopped.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

func (s *Scheduler) drain(ctx context.Context, name string) {
	if !s.IsRunning() {
		logrus.Debugf("Scheduler not running, skipping %s", name)
		return
	}
	s.metrics.ScheduledDrain(name)
	if _, err := s.run(ctx, name); err != nil && !errors.Is(err, ErrBusy) {
		logrus.Errorf("Scheduled drain of %s failed: %v", name, err)
	}
}

// RunOnce processes one batch of queue immediately
func (s *Scheduler) RunOnce(ctx context.Context, queue string) (*worker.BatchResult, error) {
	logrus.Infof("Running %s once", queue)
	return s.run(ctx, queue)
}

func (s *Scheduler) run(ctx context.Context, name string) (*worker.BatchResult, error) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrUnknownQueue, name)
	}
	if j.busy {
		s.mu.Unlock()
		logrus.Debugf("Batch of %s still running, skipping", name)
		return nil, ErrBusy
	}
	j.busy = true
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	result, err := j.drainer.ProcessBatch(ctx)

	s.mu.Lock()
	j.busy = false
	j.lastRun = time.Now()
	j.lastResult = result
	j.lastError = ""
	if err != nil {
		j.lastError = err.Error()
	}
	s.mu.Unlock()

	return result, err
}

// Status reports every queue known to the scheduler, sorted by name
func (s *Scheduler) Status() []QueueStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]QueueStatus, 0, len(s.jobs))
	for name, j := range s.jobs {
		st := QueueStatus{
			Queue:      name,
			Schedule:   j.schedule,
			LastRun:    j.lastRun,
			Busy:       j.busy,
			LastResult: j.lastResult,
			LastError:  j.lastError,
		}
		if s.isRunning && j.entryID != 0 {
			st.NextRun = s.cron.Entry(j.entryID).Next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Queue < out[b].Queue })
	return out
}

// GetNextRun returns the earliest upcoming run across all queues
func (s *Scheduler) GetNextRun() time.Time {
	var next time.Time
	for _, st := range s.Status() {
		if st.NextRun.IsZero() {
			continue
		}
		if next.IsZero() || st.NextRun.Before(next) {
			next = st.NextRun
		}
	}
	return next
}

// GetLastRun returns the most recent run across all queues
func (s *Scheduler) GetLastRun() time.Time {
	var last time.Time
	for _, st := range s.Status() {
		if st.LastRun.After(last) {
			last = st.LastRun
		}
	}
	return last
}

// Wait waits for in-progress batches to finish
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
