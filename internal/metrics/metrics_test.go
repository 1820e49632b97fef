package metrics

import (
	"testing"
	"time"

	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSyncMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SyncStarted(domain.TriggerManual)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inProgress))

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.SyncFinished(&domain.SyncResult{
		Trigger:    domain.TriggerManual,
		StartedAt:  start,
		FinishedAt: start.Add(2 * time.Second),
		Pushed:     3,
		Pulled:     1,
		Failed:     2,
		PullError:  "fetch notes: network error",
	})
	m.PendingChanged("u1", 4)

	assert.Equal(t, float64(0), testutil.ToFloat64(m.inProgress))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.passes.WithLabelValues("manual")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.records.WithLabelValues("pushed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.records.WithLabelValues("failed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.aborted.WithLabelValues("pull")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.aborted.WithLabelValues("push")))
	assert.Equal(t, float64(4), testutil.ToFloat64(m.pending.WithLabelValues("u1")))
	assert.Equal(t, float64(start.Add(2*time.Second).Unix()), testutil.ToFloat64(m.lastSync))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))
}
