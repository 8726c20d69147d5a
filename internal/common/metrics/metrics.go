// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TurnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_turns_total",
			Help: "Total number of inbound messages handled, by outcome",
		},
		[]string{"outcome"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "lookup_turn_duration_seconds",
			Help:    "Duration of one conversation turn in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"outcome"},
	)

	SourceFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_source_fetches_total",
			Help: "Tabular source fetches by source kind and result",
		},
		[]string{"source", "result"},
	)

	DirectoryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lookup_directory_cache_hits_total",
			Help: "Permission directory loads served from the TTL cache",
		},
	)

	SkippedPermissionRows = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "lookup_permission_rows_skipped_total",
			Help: "Permission rows dropped during parsing",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "lookup_sessions_active",
			Help: "Number of operators with a session entry",
		},
	)

	KeepAlivePings = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_keepalive_pings_total",
			Help: "Keep-alive probes by result",
		},
		[]string{"result"},
	)
)

const (
	ResultOK    = "ok"
	ResultError = "error"
)
