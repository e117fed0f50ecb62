package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveOutcome("twitter_imports", "processed", 3)
	m.ObserveOutcome("twitter_imports", "archived", 0)
	m.ObserveBatch("twitter_imports", time.Now())

	assert.Equal(t, 3.0, testutil.ToFloat64(m.QueueMessages.WithLabelValues("twitter_imports", "processed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.QueueMessages.WithLabelValues("twitter_imports", "archived")))
}

func TestTaskGauge(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.TaskStarted()
	m.TaskStarted()
	m.TaskFinished(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TasksCompleted.WithLabelValues("success")))
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOutcome("q", "processed", 1)
		m.ObserveBatch("q", time.Now())
		m.StageFailed("caption")
		m.Revalidated("success")
		m.TaskStarted()
		m.TaskFinished(true)
		m.ScheduledDrain("q")
	})
}
