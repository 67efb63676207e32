package feed

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"nodemirror/mirror"
	"nodemirror/mirror/mirrortest"
	"nodemirror/mutation"
	"nodemirror/report"
	"nodemirror/storage"
	"nodemirror/wire"
)

type resyncRecorder struct {
	reasons []error
}

func (r *resyncRecorder) RequestResync(_ context.Context, reason error) error {
	r.reasons = append(r.reasons, reason)
	return nil
}

func newTestConsumer(opts ...Option) (*Consumer, *mirror.Mirror, *resyncRecorder) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := mirror.New(mirror.NewEngine(mirror.WithLogger(logger), mirror.WithMetrics(nil)), logger)
	rec := &resyncRecorder{}
	opts = append([]Option{WithLogger(logger), WithResyncer(rec)}, opts...)
	return NewConsumer(m, opts...), m, rec
}

func batch(seq uint64, ms ...mutation.NodeReportMutation) wire.Envelope {
	return wire.Envelope{Seq: seq, Mutations: ms}
}

func TestConsumerAppliesStream(t *testing.T) {
	c, m, rec := newTestConsumer()
	ctx := context.Background()

	auth := mirrortest.NewAuthority(3)
	initial := auth.Report()
	require.NoError(t, c.Handle(ctx, wire.Envelope{Seq: 10, FullReport: &initial}))
	for seq := uint64(11); seq < 60; seq++ {
		require.NoError(t, c.Handle(ctx, batch(seq, auth.Step()...)))
	}

	r, _, err := m.Snapshot()
	require.NoError(t, err)
	require.True(t, r.Equal(auth.Report()))
	require.Empty(t, rec.reasons)
	require.True(t, c.Synced())
}

func TestConsumerGapInvalidates(t *testing.T) {
	c, m, rec := newTestConsumer()
	ctx := context.Background()

	r := report.NewNodeReport(mirrortest.Key(0xAA))
	require.NoError(t, c.Handle(ctx, wire.Envelope{Seq: 0, FullReport: &r}))
	require.NoError(t, c.Handle(ctx, batch(1, mutation.Funder(mutation.SetNumReadyReceipts{Value: 1}))))

	err := c.Handle(ctx, batch(3, mutation.Funder(mutation.SetNumReadyReceipts{Value: 2})))
	require.ErrorIs(t, err, ErrGap)
	require.False(t, c.Synced())
	require.Len(t, rec.reasons, 1)
	require.ErrorIs(t, rec.reasons[0], ErrGap)

	_, _, err = m.Snapshot()
	require.ErrorIs(t, err, mirror.ErrInvalidated)

	// batches are dropped until a new full report arrives
	require.NoError(t, c.Handle(ctx, batch(4)))
	require.Equal(t, uint64(1), c.Dropped())

	require.NoError(t, c.Handle(ctx, wire.Envelope{Seq: 4, FullReport: &r}))
	require.NoError(t, c.Handle(ctx, batch(5, mutation.Funder(mutation.SetNumReadyReceipts{Value: 5}))))
	got, _, err := m.Snapshot()
	require.NoError(t, err)
	require.Equal(t, uint64(5), got.Funder.NumReadyReceipts)
}

func TestConsumerApplyFailureRequestsResync(t *testing.T) {
	c, m, rec := newTestConsumer()
	ctx := context.Background()

	r := report.NewNodeReport(mirrortest.Key(0xAA))
	require.NoError(t, c.Handle(ctx, wire.Envelope{Seq: 0, FullReport: &r}))
	err := c.Handle(ctx, batch(1, mutation.Funder(mutation.RemoveFriend{FriendPublicKey: mirrortest.Key(1)})))
	require.ErrorIs(t, err, mirror.ErrUnknownKey)
	require.Len(t, rec.reasons, 1)
	require.False(t, m.Live())
}

func TestConsumerRefusesInvalidBaseline(t *testing.T) {
	c, m, rec := newTestConsumer()
	bad := report.NewNodeReport(mirrortest.Key(0xAA))
	bad.IndexClient.ConnectedServer = report.ConnectedServer{PublicKey: mirrortest.Key(2)}

	err := c.Handle(context.Background(), wire.Envelope{FullReport: &bad})
	require.Error(t, err)
	require.Len(t, rec.reasons, 1)
	require.False(t, m.Live())
	require.False(t, c.Synced())
}

func TestConsumerUnknownVariantsKeepSync(t *testing.T) {
	c, m, rec := newTestConsumer()
	ctx := context.Background()
	r := report.NewNodeReport(mirrortest.Key(0xAA))
	require.NoError(t, c.Handle(ctx, wire.Envelope{FullReport: &r}))
	require.NoError(t, c.Handle(ctx, batch(1, mutation.UnknownNode{Tag: 55}, mutation.Funder(mutation.UnknownFunder{Tag: 9}))))
	require.True(t, m.Live())
	require.Empty(t, rec.reasons)
}

func TestRunJournalsAndStopsAtEOF(t *testing.T) {
	journal := storage.NewJournal(storage.NewMemDB())
	c, m, _ := newTestConsumer(WithJournal(journal))

	auth := mirrortest.NewAuthority(8)
	initial := auth.Report()
	var buf bytes.Buffer
	w := wire.NewFrameWriter(&buf)
	require.NoError(t, w.Write(wire.Envelope{FullReport: &initial}))
	for seq := uint64(1); seq <= 20; seq++ {
		require.NoError(t, w.Write(batch(seq, auth.Step()...)))
	}

	require.NoError(t, c.Run(context.Background(), wire.NewFrameReader(&buf, 0)))
	r, session, err := m.Snapshot()
	require.NoError(t, err)
	require.True(t, r.Equal(auth.Report()))

	var entries int
	require.NoError(t, journal.Replay(session, func(wire.Envelope) error {
		entries++
		return nil
	}))
	require.Equal(t, 21, entries)
}

func TestRunResyncsOnBadPayload(t *testing.T) {
	c, m, rec := newTestConsumer()
	r := report.NewNodeReport(mirrortest.Key(0xAA))

	var buf bytes.Buffer
	w := wire.NewFrameWriter(&buf)
	require.NoError(t, w.Write(wire.Envelope{FullReport: &r}))
	// a frame whose payload is not an envelope
	buf.Write([]byte{2, 0xff, 0xff})
	require.NoError(t, w.Write(wire.Envelope{Seq: 7, FullReport: &r}))
	require.NoError(t, w.Write(batch(8, mutation.Funder(mutation.SetNumReadyReceipts{Value: 8}))))

	require.NoError(t, c.Run(context.Background(), wire.NewFrameReader(&buf, 0)))
	require.Len(t, rec.reasons, 1)
	got, _, err := m.Snapshot()
	require.NoError(t, err)
	require.Equal(t, uint64(8), got.Funder.NumReadyReceipts)
}

func TestRunStopsOnBrokenFrame(t *testing.T) {
	c, m, _ := newTestConsumer()
	r := report.NewNodeReport(mirrortest.Key(0xAA))

	var buf bytes.Buffer
	require.NoError(t, wire.NewFrameWriter(&buf).Write(wire.Envelope{FullReport: &r}))
	buf.Write([]byte{40, 1, 2})

	err := c.Run(context.Background(), wire.NewFrameReader(&buf, 0))
	require.ErrorIs(t, err, wire.ErrFrame)
	require.False(t, m.Live())
}

func TestRunHonoursCancellation(t *testing.T) {
	c, _, _ := newTestConsumer()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.Run(ctx, wire.NewFrameReader(bytes.NewReader(nil), 0))
	require.True(t, errors.Is(err, context.Canceled))
}
