package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MirrorMetrics tracks mutation application and resynchronisation of report
// mirrors.
type MirrorMetrics struct {
	mutations    *prometheus.CounterVec
	applyErrors  *prometheus.CounterVec
	resyncs      *prometheus.CounterVec
	unknown      *prometheus.CounterVec
	latency      prometheus.Histogram
	friends      prometheus.Gauge
	indexServers prometheus.Gauge
}

var (
	mirrorMetricsOnce sync.Once
	mirrorRegistry    *MirrorMetrics
)

// Mirror returns the lazily-initialised mirror metrics registry.
func Mirror() *MirrorMetrics {
	mirrorMetricsOnce.Do(func() {
		mirrorRegistry = &MirrorMetrics{
			mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nodemirror",
				Subsystem: "mirror",
				Name:      "mutations_total",
				Help:      "Count of applied report mutations segmented by variant and outcome.",
			}, []string{"variant", "outcome"}),
			applyErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nodemirror",
				Subsystem: "mirror",
				Name:      "apply_errors_total",
				Help:      "Count of rejected mutations segmented by error kind.",
			}, []string{"kind"}),
			resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nodemirror",
				Subsystem: "mirror",
				Name:      "resyncs_total",
				Help:      "Count of mirror invalidations that required a fresh full report.",
			}, []string{"reason"}),
			unknown: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nodemirror",
				Subsystem: "mirror",
				Name:      "unknown_variants_total",
				Help:      "Count of ignored mutation variants this build does not recognize.",
			}, []string{"level"}),
			latency: prometheus.NewHistogram(prometheus.HistogramOpts{
				Namespace: "nodemirror",
				Subsystem: "mirror",
				Name:      "apply_duration_seconds",
				Help:      "Latency distribution for applying one mutation batch.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
			}),
			friends: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nodemirror",
				Subsystem: "mirror",
				Name:      "friends",
				Help:      "Number of friends in the current mirrored report.",
			}),
			indexServers: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nodemirror",
				Subsystem: "mirror",
				Name:      "index_servers",
				Help:      "Number of index servers in the current mirrored report.",
			}),
		}
		prometheus.MustRegister(
			mirrorRegistry.mutations,
			mirrorRegistry.applyErrors,
			mirrorRegistry.resyncs,
			mirrorRegistry.unknown,
			mirrorRegistry.latency,
			mirrorRegistry.friends,
			mirrorRegistry.indexServers,
		)
	})
	return mirrorRegistry
}

// ObserveMutation records the outcome of a single mutation.
func (m *MirrorMetrics) ObserveMutation(variant string, err error) {
	if m == nil {
		return
	}
	outcome := "applied"
	if err != nil {
		outcome = "rejected"
	}
	m.mutations.WithLabelValues(normalizeLabel(variant), outcome).Inc()
}

// RecordApplyError counts a rejected mutation by error kind.
func (m *MirrorMetrics) RecordApplyError(kind string) {
	if m == nil {
		return
	}
	m.applyErrors.WithLabelValues(normalizeLabel(kind)).Inc()
}

// RecordResync counts a mirror invalidation.
func (m *MirrorMetrics) RecordResync(reason string) {
	if m == nil {
		return
	}
	m.resyncs.WithLabelValues(normalizeLabel(reason)).Inc()
}

// RecordUnknown counts an ignored mutation variant.
func (m *MirrorMetrics) RecordUnknown(level string) {
	if m == nil {
		return
	}
	m.unknown.WithLabelValues(normalizeLabel(level)).Inc()
}

// ObserveBatch records the latency of a batch apply.
func (m *MirrorMetrics) ObserveBatch(duration time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(duration.Seconds())
}

// SetSize publishes the collection sizes of the current report.
func (m *MirrorMetrics) SetSize(friends, indexServers int) {
	if m == nil {
		return
	}
	m.friends.Set(float64(friends))
	m.indexServers.Set(float64(indexServers))
}

func normalizeLabel(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}
