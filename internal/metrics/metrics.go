package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	QueueMessages   *prometheus.CounterVec
	BatchDuration   *prometheus.HistogramVec
	StageFailures   *prometheus.CounterVec
	Revalidations   *prometheus.CounterVec
	TasksInFlight   prometheus.Gauge
	TasksCompleted  *prometheus.CounterVec
	ScheduledDrains *prometheus.CounterVec
}

// NewMetrics creates new Prometheus metrics registered on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		QueueMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recollect_queue_messages_total",
			Help: "Queue messages handled, by queue and outcome",
		}, []string{"queue", "outcome"}),
		BatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "recollect_batch_duration_seconds",
			Help:    "Time spent processing one queue batch",
			Buckets: prometheus.DefBuckets,
		}, []string{"queue"}),
		StageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recollect_enrichment_stage_failures_total",
			Help: "Enrichment stage failures, by stage",
		}, []string{"stage"}),
		Revalidations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recollect_revalidations_total",
			Help: "Public page revalidations, by result",
		}, []string{"result"}),
		TasksInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "recollect_tasks_in_flight",
			Help: "Background tasks currently running",
		}),
		TasksCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recollect_tasks_completed_total",
			Help: "Background tasks finished, by result",
		}, []string{"result"}),
		ScheduledDrains: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "recollect_scheduled_drains_total",
			Help: "Scheduler-triggered queue drains, by queue",
		}, []string{"queue"}),
	}
}

// ObserveOutcome counts a single message outcome. Safe on a nil receiver.
func (m *Metrics) ObserveOutcome(queue, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.QueueMessages.WithLabelValues(queue, outcome).Add(float64(n))
}

// ObserveBatch records how long a batch took. Safe on a nil receiver.
func (m *Metrics) ObserveBatch(queue string, started time.Time) {
	if m == nil {
		return
	}
	m.BatchDuration.WithLabelValues(queue).Observe(time.Since(started).Seconds())
}

// StageFailed counts a failed enrichment stage. Safe on a nil receiver.
func (m *Metrics) StageFailed(stage string) {
	if m == nil {
		return
	}
	m.StageFailures.WithLabelValues(stage).Inc()
}

// Revalidated counts a revalidation result. Safe on a nil receiver.
func (m *Metrics) Revalidated(result string) {
	if m == nil {
		return
	}
	m.Revalidations.WithLabelValues(result).Inc()
}

// TaskStarted and TaskFinished track the background pool. Safe on a nil receiver.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.TasksInFlight.Inc()
}

func (m *Metrics) TaskFinished(failed bool) {
	if m == nil {
		return
	}
	m.TasksInFlight.Dec()
	result := "success"
	if failed {
		result = "failure"
	}
	m.TasksCompleted.WithLabelValues(result).Inc()
}

// ScheduledDrain counts a scheduler run. Safe on a nil receiver.
func (m *Metrics) ScheduledDrain(queue string) {
	if m == nil {
		return
	}
	m.ScheduledDrains.WithLabelValues(queue).Inc()
}
