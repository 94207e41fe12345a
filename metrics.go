package qweave

import (
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// engineEvents counts engine events by kind: operation, measurement,
	// materialize, merge, factor, resize.
	engineEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qweave",
		Subsystem: "engine",
		Name:      "events_total",
		Help:      "Engine events by kind",
	}, []string{"event"})

	// engineWarnings counts tolerated numerical anomalies by kind: drift,
	// kraus_completeness, truncation.
	engineWarnings = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "qweave",
		Subsystem: "engine",
		Name:      "warnings_total",
		Help:      "Tolerated numerical anomalies by kind",
	}, []string{"warning"})

	// engineRejections counts operations refused by the resource governor.
	engineRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "qweave",
		Subsystem: "engine",
		Name:      "resource_rejections_total",
		Help:      "Tensor allocations refused by the memory ceiling",
	})

	// operationLatency measures time spent applying an operation.
	operationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "qweave",
		Subsystem: "engine",
		Name:      "operation_latency_seconds",
		Help:      "Operation application latency in seconds",
		Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
	})

	// tensorBytes tracks the size of combined tensors as they are built.
	tensorBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "qweave",
		Subsystem: "engine",
		Name:      "tensor_bytes",
		Help:      "Size of materialized product-space tensors in bytes",
		Buckets:   prometheus.ExponentialBuckets(64, 8, 10),
	})
)

type timeWindow struct {
	duration time.Duration
	count    int
}

/*
Metrics accumulates engine counters. Each Config owns one Metrics, shared by
every container and composite envelope built from it; the same events are
mirrored into the process-wide Prometheus collectors.
*/
type Metrics struct {
	mu sync.RWMutex

	Operations      int64
	Measurements    int64
	Materializes    int64
	Merges          int64
	Factorizations  int64
	Resizes         int64
	DriftWarnings   int64
	KrausWarnings   int64
	TruncWarnings   int64
	Rejections      int64
	PeakTensorBytes int64

	AverageOperationLatency time.Duration
	P95OperationLatency     time.Duration
	P99OperationLatency     time.Duration

	latencyWindows []timeWindow
	windowSize     int
}

func newMetrics() *Metrics {
	return &Metrics{
		latencyWindows: make([]timeWindow, 0, 1000),
		windowSize:     1000,
	}
}

func (m *Metrics) recordOperation(startTime time.Time) {
	duration := time.Since(startTime)
	operationLatency.Observe(duration.Seconds())
	engineEvents.WithLabelValues("operation").Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Operations++
	m.updateLatencyPercentiles(duration)
}

func (m *Metrics) recordEvent(event string) {
	engineEvents.WithLabelValues(event).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch event {
	case "measurement":
		m.Measurements++
	case "materialize":
		m.Materializes++
	case "merge":
		m.Merges++
	case "factor":
		m.Factorizations++
	case "resize":
		m.Resizes++
	}
}

func (m *Metrics) recordWarning(warning string) {
	engineWarnings.WithLabelValues(warning).Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	switch warning {
	case "drift":
		m.DriftWarnings++
	case "kraus_completeness":
		m.KrausWarnings++
	case "truncation":
		m.TruncWarnings++
	}
}

func (m *Metrics) recordTensor(bytes int64) {
	tensorBytes.Observe(float64(bytes))

	m.mu.Lock()
	defer m.mu.Unlock()

	if bytes > m.PeakTensorBytes {
		m.PeakTensorBytes = bytes
	}
}

func (m *Metrics) recordRejection() {
	engineRejections.Inc()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Rejections++
}

func (m *Metrics) updateLatencyPercentiles(duration time.Duration) {
	m.AverageOperationLatency = (m.AverageOperationLatency*time.Duration(m.Operations-1) + duration) / time.Duration(m.Operations)

	m.latencyWindows = append(m.latencyWindows, timeWindow{
		duration: duration,
		count:    1,
	})

	if len(m.latencyWindows) > m.windowSize {
		m.latencyWindows = m.latencyWindows[1:]
	}

	sorted := make([]time.Duration, 0, len(m.latencyWindows))
	for _, w := range m.latencyWindows {
		for i := 0; i < w.count; i++ {
			sorted = append(sorted, w.duration)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	if len(sorted) > 0 {
		p95Index := min(int(float64(len(sorted))*0.95), len(sorted)-1)
		p99Index := min(int(float64(len(sorted))*0.99), len(sorted)-1)

		m.P95OperationLatency = sorted[p95Index]
		m.P99OperationLatency = sorted[p99Index]
	}
}

// ExportMetrics returns a snapshot of the counters keyed by name.
func (m *Metrics) ExportMetrics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"operations":        m.Operations,
		"measurements":      m.Measurements,
		"materializes":      m.Materializes,
		"merges":            m.Merges,
		"factorizations":    m.Factorizations,
		"resizes":           m.Resizes,
		"drift_warnings":    m.DriftWarnings,
		"kraus_warnings":    m.KrausWarnings,
		"trunc_warnings":    m.TruncWarnings,
		"rejections":        m.Rejections,
		"peak_tensor_bytes": m.PeakTensorBytes,
		"avg_latency_us":    m.AverageOperationLatency.Microseconds(),
		"p95_latency_us":    m.P95OperationLatency.Microseconds(),
		"p99_latency_us":    m.P99OperationLatency.Microseconds(),
	}
}
