// Package telemetry holds the process-wide prometheus collectors.
package telemetry

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesAppended = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_messages_appended_total",
			Help: "Messages persisted, by namespace.",
		},
		[]string{"namespace"},
	)

	ReceiptsMarked = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatdb_receipts_marked_total",
		Help: "Private messages flipped from unread to read.",
	})

	ActivityTouches = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatdb_activity_touches_total",
		Help: "Activity ledger upserts.",
	})

	GatewayErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_gateway_errors_total",
			Help: "Gateway operation failures, by operation and error kind.",
		},
		[]string{"op", "kind"},
	)

	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chatdb_http_request_duration_seconds",
			Help:    "HTTP request latency, by route pattern and status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "status"},
	)

	AggregateDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chatdb_conversation_aggregate_seconds",
		Help:    "Time spent building a conversation list.",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
	})

	SnapshotsTaken = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chatdb_snapshots_total",
			Help: "Checkpoint attempts, by result.",
		},
		[]string{"result"},
	)
)

// MetricsSource is the store view the pebble gauges read from.
type MetricsSource interface {
	Metrics() *pebble.Metrics
}

var source atomic.Pointer[MetricsSource]

// SetStore points the pebble gauges at src. Passing nil detaches them.
func SetStore(src MetricsSource) {
	if src == nil {
		source.Store(nil)
		return
	}
	source.Store(&src)
}

func pebbleGauge(name, help string, fn func(*pebble.Metrics) float64) prometheus.GaugeFunc {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, func() float64 {
		p := source.Load()
		if p == nil {
			return 0
		}
		m := (*p).Metrics()
		if m == nil {
			return 0
		}
		return fn(m)
	})
}

var (
	diskUsage = pebbleGauge("chatdb_pebble_disk_usage_bytes", "Total disk space used by pebble.",
		func(m *pebble.Metrics) float64 { return float64(m.DiskSpaceUsage()) })
	l0Files = pebbleGauge("chatdb_pebble_l0_files", "Number of files in L0.",
		func(m *pebble.Metrics) float64 { return float64(m.Levels[0].NumFiles) })
	compactionDebt = pebbleGauge("chatdb_pebble_compaction_debt_bytes", "Estimated bytes to compact to reach a stable LSM.",
		func(m *pebble.Metrics) float64 { return float64(m.Compact.EstimatedDebt) })

	heapAlloc = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "chatdb_go_heap_alloc_bytes",
			Help: "Current heap allocation in bytes.",
		},
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		},
	)
)

func init() {
	prometheus.MustRegister(
		MessagesAppended,
		ReceiptsMarked,
		ActivityTouches,
		GatewayErrors,
		HTTPDuration,
		AggregateDuration,
		SnapshotsTaken,
		diskUsage,
		l0Files,
		compactionDebt,
		heapAlloc,
	)
}

// ObserveSince records the elapsed time since start on h.
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
