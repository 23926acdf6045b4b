package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordTransition("ticket_closed")
		m.RecordSweep("orphans", 1, 0, time.Second)
		m.RecordCacheReload(false)
		m.SetScheduledActions(3)
	})
}

func TestMetrics_Counts(t *testing.T) {
	m := NewMetrics()
	m.RecordTransition("ticket_closed")
	m.RecordTransition("ticket_closed")
	m.RecordSweep("inactivity", 2, 1, time.Second)
	m.RecordCacheReload(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("ticket_closed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.sweepItems.WithLabelValues("inactivity", "acted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sweepItems.WithLabelValues("inactivity", "failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheReloads.WithLabelValues("success")))
}
