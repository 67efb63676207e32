// Package feed drives a mirror from a stream of envelopes.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"

	"nodemirror/mirror"
	"nodemirror/observability"
	"nodemirror/storage"
	"nodemirror/wire"
)

// ErrGap means a mutation batch did not directly follow the previous one.
var ErrGap = errors.New("feed: gap in mutation stream")

// Source yields envelopes in stream order. *wire.FrameReader implements it.
type Source interface {
	Read() (wire.Envelope, error)
}

// Resyncer asks the producer for a fresh full report.
type Resyncer interface {
	RequestResync(ctx context.Context, reason error) error
}

// ResyncFunc adapts a function to Resyncer.
type ResyncFunc func(ctx context.Context, reason error) error

func (f ResyncFunc) RequestResync(ctx context.Context, reason error) error { return f(ctx, reason) }

// Option customises a Consumer.
type Option func(*Consumer)

// WithJournal records every accepted envelope.
func WithJournal(j *storage.Journal) Option {
	return func(c *Consumer) { c.journal = j }
}

// WithResyncer sets who is asked for a full report after a failure.
func WithResyncer(r Resyncer) Option {
	return func(c *Consumer) { c.resync = r }
}

// WithLogger sets the consumer logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Consumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the feed metrics. A nil registry disables them.
func WithMetrics(metrics *observability.FeedMetrics) Option {
	return func(c *Consumer) { c.metrics = metrics }
}

// Consumer applies envelopes to a mirror. A full report (re)seeds the mirror;
// mutation batches must follow each other without gaps. Any failure discards
// the mirror and asks for a resync; batches are dropped until the next full
// report arrives.
type Consumer struct {
	mirror  *mirror.Mirror
	journal *storage.Journal
	resync  Resyncer
	logger  *slog.Logger
	metrics *observability.FeedMetrics

	session uuid.UUID
	lastSeq uint64
	synced  bool
	dropped uint64
}

// NewConsumer returns a consumer feeding m.
func NewConsumer(m *mirror.Mirror, opts ...Option) *Consumer {
	c := &Consumer{mirror: m, logger: slog.Default(), metrics: observability.Feed()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Synced reports whether the consumer is applying batches.
func (c *Consumer) Synced() bool { return c.synced }

// Dropped returns how many batches were discarded while waiting for a full
// report.
func (c *Consumer) Dropped() uint64 { return c.dropped }

// Handle processes one envelope. A returned error has already invalidated the
// mirror and triggered a resync request; the consumer can keep reading.
func (c *Consumer) Handle(ctx context.Context, e wire.Envelope) error {
	if e.IsFullReport() {
		session, err := c.mirror.Reset(*e.FullReport)
		c.metrics.RecordEnvelope("report", err)
		if err != nil {
			c.synced = false
			c.requestResync(ctx, err)
			return err
		}
		c.session, c.lastSeq, c.synced = session, e.Seq, true
		c.metrics.SetSeq(e.Seq)
		c.logger.Info("mirror attached",
			slog.String("session", session.String()),
			slog.Uint64("seq", e.Seq),
			slog.Int("friends", e.FullReport.Funder.Friends.Len()))
		c.record(e)
		return nil
	}

	if !c.synced {
		c.dropped++
		c.metrics.RecordDropped()
		c.logger.Debug("dropping batch while unsynced", slog.Uint64("seq", e.Seq))
		return nil
	}
	if e.Seq != c.lastSeq+1 {
		err := fmt.Errorf("%w: expected seq %d, got %d", ErrGap, c.lastSeq+1, e.Seq)
		c.metrics.RecordEnvelope("batch", err)
		c.fail(ctx, err)
		c.mirror.Invalidate(err)
		return err
	}
	err := c.mirror.Apply(ctx, e.Mutations...)
	c.metrics.RecordEnvelope("batch", err)
	if err != nil {
		c.fail(ctx, err)
		return err
	}
	c.lastSeq = e.Seq
	c.metrics.SetSeq(e.Seq)
	c.record(e)
	return nil
}

func (c *Consumer) fail(ctx context.Context, err error) {
	c.synced = false
	c.logger.Warn("mirror lost sync",
		slog.String("session", c.session.String()),
		slog.Uint64("last_seq", c.lastSeq),
		slog.Any("error", err))
	c.requestResync(ctx, err)
}

func (c *Consumer) requestResync(ctx context.Context, reason error) {
	if c.resync == nil {
		return
	}
	if err := c.resync.RequestResync(ctx, reason); err != nil {
		c.logger.Error("resync request failed", slog.Any("error", err))
	}
}

func (c *Consumer) record(e wire.Envelope) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Append(c.session, e); err != nil {
		c.metrics.RecordJournalError()
		c.logger.Error("journal append failed",
			slog.String("session", c.session.String()),
			slog.Uint64("seq", e.Seq),
			slog.Any("error", err))
	}
}

// Run reads src until it is exhausted or ctx is done. Envelopes that fail to
// decode or apply only cost a resync; a broken byte stream ends the run.
// Run does not interrupt a blocked Read; close the underlying reader to stop
// it early.
func (c *Consumer) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		e, err := src.Read()
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, wire.ErrFrame), errors.Is(err, wire.ErrFrameTooLarge):
			c.mirror.Invalidate(err)
			c.synced = false
			return fmt.Errorf("feed: stream broken: %w", err)
		case err != nil:
			c.mirror.Invalidate(err)
			c.fail(ctx, err)
			continue
		}
		_ = c.Handle(ctx, e)
	}
}
