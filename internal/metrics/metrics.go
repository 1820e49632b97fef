// Package metrics exports sync engine metrics to prometheus.
// Package metrics 同步引擎的 prometheus 指标
package metrics

import (
	"github.com/haierkeys/fast-note-offline/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "fast_note_offline"

// SyncMetrics 同步指标，实现 service.SyncObserver
type SyncMetrics struct {
	passes     *prometheus.CounterVec
	records    *prometheus.CounterVec
	aborted    *prometheus.CounterVec
	duration   prometheus.Histogram
	inProgress prometheus.Gauge
	pending    *prometheus.GaugeVec
	lastSync   prometheus.Gauge
}

// New 创建并注册同步指标，reg 为 nil 时使用默认注册器
func New(reg prometheus.Registerer) *SyncMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &SyncMetrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Completed sync passes by trigger.",
		}, []string{"trigger"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "records_total",
			Help:      "Records handled by sync passes, by outcome.",
		}, []string{"outcome"}),
		aborted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "aborted_phases_total",
			Help:      "Sync phases aborted by a storage or fetch error.",
		}, []string{"phase"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "duration_seconds",
			Help:      "Duration of full sync passes.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		inProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "in_progress",
			Help:      "1 while a sync pass is running.",
		}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "pending_records",
			Help:      "Local records waiting to be pushed.",
		}, []string{"uid"}),
		lastSync: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "last_finished_timestamp_seconds",
			Help:      "Unix time the last sync pass finished.",
		}),
	}
	reg.MustRegister(m.passes, m.records, m.aborted, m.duration, m.inProgress, m.pending, m.lastSync)
	return m
}

// SyncStarted 同步开始
func (m *SyncMetrics) SyncStarted(domain.SyncTrigger) {
	m.inProgress.Set(1)
}

// SyncFinished 同步结束
func (m *SyncMetrics) SyncFinished(res *domain.SyncResult) {
	m.inProgress.Set(0)
	if res == nil {
		return
	}
	m.passes.WithLabelValues(string(res.Trigger)).Inc()
	m.records.WithLabelValues("pushed").Add(float64(res.Pushed))
	m.records.WithLabelValues("pulled").Add(float64(res.Pulled))
	m.records.WithLabelValues("conflicted").Add(float64(res.Conflicted))
	m.records.WithLabelValues("failed").Add(float64(res.Failed))
	m.records.WithLabelValues("skipped").Add(float64(res.Skipped))
	if res.PushError != "" {
		m.aborted.WithLabelValues("push").Inc()
	}
	if res.PullError != "" {
		m.aborted.WithLabelValues("pull").Inc()
	}
	m.duration.Observe(res.Duration().Seconds())
	m.lastSync.Set(float64(res.FinishedAt.Unix()))
}

// PendingChanged 待推送数量变化
func (m *SyncMetrics) PendingChanged(uid string, pending int64) {
	m.pending.WithLabelValues(uid).Set(float64(pending))
}
