package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"recollect-worker/internal/metrics"
	"recollect-worker/internal/telemetry"
)

// ErrPoolClosed is returned by Shutdown when called twice
var ErrPoolClosed = errors.New("task pool already closed")

// Task is a unit of background work
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// Stats is a snapshot of pool activity
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int   `json:"queued"`
	InFlight  int64 `json:"in_flight"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}

// Pool runs submitted tasks on a fixed number of workers. Submissions beyond
// the queue capacity are rejected rather than blocking the caller.
type Pool struct {
	tasks   chan Task
	workers int
	timeout time.Duration
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool

	inFlight  atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
}

// NewPool creates a pool. timeout bounds each task; zero means no bound.
func NewPool(workers, queueSize int, timeout time.Duration, m *metrics.Metrics) *Pool {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		tasks:   make(chan Task, queueSize),
		workers: workers,
		timeout: timeout,
		metrics: m,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start launches the workers
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.work()
	}
	logrus.Infof("Task pool started with %d workers", p.workers)
}

// Submit queues t and reports whether it was accepted
func (p *Pool) Submit(t Task) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.rejected.Add(1)
		return false
	}
	select {
	case p.tasks <- t:
		return true
	default:
		p.rejected.Add(1)
		logrus.Warnf("Task pool full, rejected %s", t.Name)
		return false
	}
}

// Shutdown stops accepting tasks and waits for queued and running ones. When
// ctx expires first, running tasks are cancelled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrPoolClosed
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		logrus.Info("Task pool drained")
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("task pool shutdown: %w", ctx.Err())
	}
}

// Stats returns current counters
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    len(p.tasks),
		InFlight:  p.inFlight.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

func (p *Pool) work() {
	defer p.wg.Done()
	for t := range p.tasks {
		p.run(t)
	}
}

func (p *Pool) run(t Task) {
	ctx := p.ctx
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.inFlight.Add(1)
	p.metrics.TaskStarted()

	var err error
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, rec)
		}
		p.inFlight.Add(-1)
		p.metrics.TaskFinished(err != nil)
		if err != nil {
			p.failed.Add(1)
			logrus.Errorf("Task %s failed: %v", t.Name, err)
			telemetry.Capture(err, map[string]string{"task": t.Name})
			return
		}
		p.completed.Add(1)
	}()

	err = t.Run(ctx)
}
