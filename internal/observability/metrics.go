package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	payloadOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "scopewire",
			Subsystem: "payload",
			Name:      "operations_total",
			Help:      "Total serialize and deserialize calls.",
		},
		[]string{"op", "outcome"},
	)
	payloadBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scopewire",
			Subsystem: "payload",
			Name:      "body_bytes",
			Help:      "Encoded body size per successful call.",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"op"},
	)
	payloadDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "scopewire",
			Subsystem: "payload",
			Name:      "operation_duration_seconds",
			Help:      "Serialize and deserialize duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"op", "outcome"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(payloadOps, payloadBytes, payloadDuration)
	})
}

func RecordSerialize(ok bool, bodyBytes int, duration time.Duration) {
	record("serialize", ok, bodyBytes, duration)
}

func RecordDeserialize(ok bool, bodyBytes int, duration time.Duration) {
	record("deserialize", ok, bodyBytes, duration)
}

func record(op string, ok bool, bodyBytes int, duration time.Duration) {
	RegisterMetrics()
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	payloadOps.WithLabelValues(op, outcome).Inc()
	payloadDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
	if ok {
		payloadBytes.WithLabelValues(op).Observe(float64(bodyBytes))
	}
}
