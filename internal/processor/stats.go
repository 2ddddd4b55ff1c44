package processor

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats counts requests served by a worker.
type Stats struct {
	total     atomic.Int64
	failed    atomic.Int64
	active    atomic.Int64
	watermark atomic.Int64
	forensics atomic.Int64
	verify    atomic.Int64
}

type StatsSnapshot struct {
	TotalRequests  int64            `json:"totalRequests"`
	FailedRequests int64            `json:"failedRequests"`
	ActiveRequests int64            `json:"activeRequests"`
	Processed      map[string]int64 `json:"processed"`
}

func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TotalRequests:  s.total.Load(),
		FailedRequests: s.failed.Load(),
		ActiveRequests: s.active.Load(),
		Processed: map[string]int64{
			AlgorithmWatermark: s.watermark.Load(),
			AlgorithmForensics: s.forensics.Load(),
			"verify":           s.verify.Load(),
		},
	}
}

func (s *Stats) counter(name string) *atomic.Int64 {
	switch name {
	case AlgorithmWatermark:
		return &s.watermark
	case AlgorithmForensics:
		return &s.forensics
	case "verify":
		return &s.verify
	default:
		return nil
	}
}

type metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	active   prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sentinel",
			Subsystem: "worker",
			Name:      "requests_total",
			Help:      "Processing requests by algorithm and outcome.",
		}, []string{"algorithm", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sentinel",
			Subsystem: "worker",
			Name:      "duration_seconds",
			Help:      "Time spent processing a request.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"algorithm"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "sentinel",
			Subsystem: "worker",
			Name:      "active_requests",
			Help:      "Requests currently being processed.",
		}),
	}
	reg.MustRegister(m.requests, m.duration, m.active)
	return m
}
