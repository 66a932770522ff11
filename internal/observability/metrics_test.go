package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_RecordCycle(t *testing.T) {
	m := NewMetrics()

	m.RecordCycle("ok", time.Unix(1_700_000_000, 0), 2*time.Second)
	m.RecordCycle("partial", time.Unix(1_700_000_300, 0), time.Second)
	m.RecordCycleSkipped()
	m.RecordMutations(3, 1)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cycles.WithLabelValues("skipped")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.mutations.WithLabelValues("applied")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("failed")))
	assert.Equal(t, 1_700_000_300.0, testutil.ToFloat64(m.lastCycleStart))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRequest("/health/live", "GET", 200, time.Millisecond)
		m.RecordError("/api", "GET", "NOT_FOUND")
		m.RecordCycle("ok", time.Now(), time.Second)
		m.RecordCycleSkipped()
		m.RecordMutations(1, 0)
	})
}
