package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreNoOps(t *testing.T) {
	var mirror *MirrorMetrics
	mirror.ObserveMutation("funder.addFriend", nil)
	mirror.RecordApplyError("unknown_key")
	mirror.RecordResync("gap")
	mirror.RecordUnknown("funder")
	mirror.ObserveBatch(time.Millisecond)
	mirror.SetSize(1, 2)

	var feed *FeedMetrics
	feed.RecordEnvelope("batch", nil)
	feed.RecordDropped()
	feed.RecordJournalError()
	feed.SetSeq(3)

	var http *HTTPMetrics
	http.Observe("/report", 200, time.Millisecond)
}

func TestMirrorMetrics(t *testing.T) {
	m := Mirror()
	require.Same(t, m, Mirror())

	before := testutil.ToFloat64(m.mutations.WithLabelValues("funder.addFriend", "rejected"))
	m.ObserveMutation("funder.addFriend", errors.New("duplicate"))
	require.Equal(t, before+1, testutil.ToFloat64(m.mutations.WithLabelValues("funder.addFriend", "rejected")))

	m.RecordResync("  ")
	require.GreaterOrEqual(t, testutil.ToFloat64(m.resyncs.WithLabelValues("unknown")), 1.0)

	m.SetSize(4, 2)
	require.Equal(t, 4.0, testutil.ToFloat64(m.friends))
	require.Equal(t, 2.0, testutil.ToFloat64(m.indexServers))
}

func TestFeedMetrics(t *testing.T) {
	m := Feed()
	before := testutil.ToFloat64(m.dropped)
	m.RecordDropped()
	require.Equal(t, before+1, testutil.ToFloat64(m.dropped))

	m.SetSeq(42)
	require.Equal(t, 42.0, testutil.ToFloat64(m.seq))

	rejected := testutil.ToFloat64(m.envelopes.WithLabelValues("batch", "rejected"))
	m.RecordEnvelope("batch", errors.New("gap"))
	require.Equal(t, rejected+1, testutil.ToFloat64(m.envelopes.WithLabelValues("batch", "rejected")))
}

func TestHTTPMetrics(t *testing.T) {
	m := HTTP()
	before := testutil.ToFloat64(m.requests.WithLabelValues("/healthz", "200"))
	m.Observe("/healthz", 200, time.Millisecond)
	require.Equal(t, before+1, testutil.ToFloat64(m.requests.WithLabelValues("/healthz", "200")))
}
