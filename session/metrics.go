package session

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	bytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialscope",
			Subsystem: "session",
			Name:      "bytes_total",
			Help:      "Bytes moved over the serial link.",
		},
		[]string{"port", "direction"},
	)
	batchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialscope",
			Subsystem: "session",
			Name:      "batches_emitted_total",
			Help:      "Throttled receive batches emitted to subscribers.",
		},
		[]string{"port"},
	)
	readErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "serialscope",
			Subsystem: "session",
			Name:      "read_errors_total",
			Help:      "Reads that failed with something other than a timeout.",
		},
		[]string{"port"},
	)
	openSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "serialscope",
			Subsystem: "session",
			Name:      "open",
			Help:      "Number of open serial sessions.",
		},
	)
)

// RegisterMetrics registers the session collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(bytesTotal, batchesTotal, readErrorsTotal, openSessions)
	})
}
