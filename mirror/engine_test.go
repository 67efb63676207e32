package mirror

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"nodemirror/mutation"
	"nodemirror/report"
)

func testEngine(buf *bytes.Buffer, interval time.Duration) *Engine {
	logger := slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return NewEngine(WithLogger(logger), WithUnknownLogInterval(interval), WithMetrics(nil))
}

func TestEngineLogsUnknownVariants(t *testing.T) {
	var buf bytes.Buffer
	e := testEngine(&buf, 0)

	r := baseReport()
	next, err := e.Apply(r, mutation.Funder(mutation.UnknownFunder{Tag: 99}))
	require.NoError(t, err)
	require.True(t, next.Equal(r))
	require.Contains(t, buf.String(), "ignoring unrecognized mutation variant")
	require.Contains(t, buf.String(), `"tag":99`)
	require.Contains(t, buf.String(), `"level":"funder"`)
}

func TestEngineThrottlesUnknownWarnings(t *testing.T) {
	var buf bytes.Buffer
	e := testEngine(&buf, time.Hour)

	r := baseReport()
	for i := 0; i < 5; i++ {
		_, err := e.Apply(r, mutation.UnknownNode{Tag: uint64(i)})
		require.NoError(t, err)
	}
	require.Equal(t, 1, strings.Count(buf.String(), "ignoring unrecognized mutation variant"))
}

func TestEngineApplyAllSetsIndex(t *testing.T) {
	var buf bytes.Buffer
	e := testEngine(&buf, 0)

	r, err := e.ApplyAll(baseReport(), []mutation.NodeReportMutation{
		mutation.Funder(mutation.SetNumReadyReceipts{Value: 1}),
		mutation.IndexClient(mutation.RemoveIndexServer{PublicKey: pk(9)}),
	})
	applyErr := requireKind(t, err, ErrUnknownKey)
	require.Equal(t, 1, applyErr.Index)
	require.Equal(t, uint64(1), r.Funder.NumReadyReceipts)
}

func TestEngineMatchesPureApply(t *testing.T) {
	var buf bytes.Buffer
	e := testEngine(&buf, 0)

	ms := []mutation.NodeReportMutation{
		mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report.NewFriendReport("a")}),
		mutation.Friend(pk(1), mutation.SetLastSentRelays{Relays: relays(1)}),
		mutation.Friend(pk(1), mutation.SetFriendStatus{Status: report.FriendEnabled}),
	}
	want, err := ApplyAll(baseReport(), ms)
	require.NoError(t, err)
	got, err := e.ApplyAll(baseReport(), ms)
	require.NoError(t, err)
	require.True(t, got.Equal(want))
	require.NotContains(t, buf.String(), "ignoring unrecognized mutation variant")
}

func TestEngineMasksFriendNames(t *testing.T) {
	var buf bytes.Buffer
	e := testEngine(&buf, 0)

	_, err := e.Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report.NewFriendReport("alice")}))
	require.NoError(t, err)
	require.Contains(t, buf.String(), "friend added")
	require.Contains(t, buf.String(), pk(1).String())
	require.NotContains(t, buf.String(), "alice")
}

func TestEngineMutationLabelsIgnoreTags(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	e := NewEngine(WithLogger(logger))
	const family = "nodemirror_mirror_mutations_total"

	r := baseReport()
	_, err := e.Apply(r, mutation.UnknownNode{Tag: 1})
	require.NoError(t, err)
	_, err = e.Apply(r, mutation.Funder(mutation.UnknownFunder{Tag: 1}))
	require.NoError(t, err)
	before, err := testutil.GatherAndCount(prometheus.DefaultGatherer, family)
	require.NoError(t, err)

	for tag := uint64(100); tag < 2100; tag++ {
		_, err := e.Apply(r, mutation.UnknownNode{Tag: tag})
		require.NoError(t, err)
		_, err = e.Apply(r, mutation.Funder(mutation.UnknownFunder{Tag: tag}))
		require.NoError(t, err)
	}
	after, err := testutil.GatherAndCount(prometheus.DefaultGatherer, family)
	require.NoError(t, err)
	require.Equal(t, before, after)
}
