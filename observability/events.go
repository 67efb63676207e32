package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FeedMetrics tracks envelopes read from a mirror stream.
type FeedMetrics struct {
	envelopes *prometheus.CounterVec
	dropped   prometheus.Counter
	journal   prometheus.Counter
	seq       prometheus.Gauge
}

var (
	feedMetricsOnce sync.Once
	feedRegistry    *FeedMetrics
)

// Feed returns the metrics registry tracking the envelope stream.
func Feed() *FeedMetrics {
	feedMetricsOnce.Do(func() {
		feedRegistry = &FeedMetrics{
			envelopes: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "nodemirror",
				Subsystem: "feed",
				Name:      "envelopes_total",
				Help:      "Count of stream envelopes segmented by body kind and outcome.",
			}, []string{"kind", "outcome"}),
			dropped: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nodemirror",
				Subsystem: "feed",
				Name:      "dropped_batches_total",
				Help:      "Count of mutation batches discarded while waiting for a full report.",
			}),
			journal: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "nodemirror",
				Subsystem: "feed",
				Name:      "journal_errors_total",
				Help:      "Count of envelopes that could not be written to the journal.",
			}),
			seq: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "nodemirror",
				Subsystem: "feed",
				Name:      "last_seq",
				Help:      "Sequence number of the last applied envelope.",
			}),
		}
		prometheus.MustRegister(feedRegistry.envelopes, feedRegistry.dropped, feedRegistry.journal, feedRegistry.seq)
	})
	return feedRegistry
}

// RecordEnvelope counts an envelope. kind is "report" or "batch".
func (m *FeedMetrics) RecordEnvelope(kind string, err error) {
	if m == nil {
		return
	}
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
	}
	m.envelopes.WithLabelValues(normalizeLabel(kind), outcome).Inc()
}

// RecordDropped counts a batch discarded while unsynced.
func (m *FeedMetrics) RecordDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

// RecordJournalError counts a failed journal append.
func (m *FeedMetrics) RecordJournalError() {
	if m == nil {
		return
	}
	m.journal.Inc()
}

// SetSeq publishes the last applied sequence number.
func (m *FeedMetrics) SetSeq(seq uint64) {
	if m == nil {
		return
	}
	m.seq.Set(float64(seq))
}
