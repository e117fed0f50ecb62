package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"recollect-worker/internal/metrics"
	"recollect-worker/internal/models"
	"recollect-worker/internal/telemetry"
)

// BatchResult summarises one batch
type BatchResult struct {
	Processed int    `json:"processed"`
	Archived  int    `json:"archived"`
	Skipped   int    `json:"skipped"`
	Retry     int    `json:"retry"`
	Message   string `json:"message,omitempty"`
	Empty     bool   `json:"-"`
}

func (r *BatchResult) add(o Outcome) {
	switch o {
	case Processed:
		r.Processed++
	case Archived:
		r.Archived++
	case Skipped:
		r.Skipped++
	default:
		r.Retry++
	}
}

// Drainer processes one batch of a queue
type Drainer interface {
	Queue() string
	ProcessBatch(ctx context.Context) (*BatchResult, error)
}

// Source describes how to consume one queue
type Source[P Payload] struct {
	Queue      string
	BatchSize  int
	Visibility time.Duration
	Decode     func(json.RawMessage) (P, error)
	Handle     func(context.Context, models.QueueMessage, P) Outcome
}

// Runner drains batches of a Source, processing valid messages in parallel
type Runner[P Payload] struct {
	source      Source[P]
	env         *Envelope
	metrics     *metrics.Metrics
	concurrency int
}

// NewRunner creates a Runner. concurrency <= 0 processes a whole batch at once.
func NewRunner[P Payload](source Source[P], env *Envelope, m *metrics.Metrics, concurrency int) *Runner[P] {
	return &Runner[P]{source: source, env: env, metrics: m, concurrency: concurrency}
}

func (r *Runner[P]) Queue() string {
	return r.source.Queue
}

// ProcessBatch reads up to BatchSize messages and handles them. The error is
// only non-nil when the queue could not be read.
func (r *Runner[P]) ProcessBatch(ctx context.Context) (*BatchResult, error) {
	started := time.Now()
	defer r.metrics.ObserveBatch(r.source.Queue, started)

	msgs, err := r.env.Client.Read(ctx, r.source.Queue, r.source.Visibility, r.source.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", r.source.Queue, err)
	}
	if len(msgs) == 0 {
		return &BatchResult{Message: "Queue empty", Empty: true}, nil
	}

	result := &BatchResult{}

	type item struct {
		msg     models.QueueMessage
		payload P
	}
	valid := make([]item, 0, len(msgs))
	for _, msg := range msgs {
		p, err := r.source.Decode(msg.Message)
		if err != nil {
			logrus.Warnf("Archiving message %d on %s: %v", msg.MsgID, r.source.Queue, err)
			if r.env.Archive(ctx, msg, models.ReasonInvalidPayload) {
				result.Archived++
			}
			continue
		}
		valid = append(valid, item{msg: msg, payload: p})
	}

	outcomes := make([]Outcome, len(valid))
	g, gctx := errgroup.WithContext(ctx)
	if r.concurrency > 0 {
		g.SetLimit(r.concurrency)
	}
	for i, it := range valid {
		i, it := i, it
		g.Go(func() error {
			outcomes[i] = r.handle(gctx, it.msg, it.payload)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		result.add(o)
	}

	r.metrics.ObserveOutcome(r.source.Queue, string(Processed), result.Processed)
	r.metrics.ObserveOutcome(r.source.Queue, string(Archived), result.Archived)
	r.metrics.ObserveOutcome(r.source.Queue, string(Skipped), result.Skipped)
	r.metrics.ObserveOutcome(r.source.Queue, string(Retry), result.Retry)

	logrus.Infof("Processed batch on %s: processed=%d archived=%d skipped=%d retry=%d",
		r.source.Queue, result.Processed, result.Archived, result.Skipped, result.Retry)
	return result, nil
}

func (r *Runner[P]) handle(ctx context.Context, msg models.QueueMessage, p P) (outcome Outcome) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic handling message %d: %v", msg.MsgID, rec)
			logrus.Error(err)
			telemetry.Capture(err, map[string]string{"queue": r.source.Queue})
			outcome = Retry
		}
	}()
	return r.source.Handle(ctx, msg, p)
}
