package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"nodemirror/mutation"
	telemetry "nodemirror/observability/otel"
	"nodemirror/report"
)

var (
	// ErrDetached is returned by Snapshot before the first full report.
	ErrDetached = errors.New("mirror: no report attached")
	// ErrInvalidated is returned by Snapshot and Apply after a failure
	// discarded the report. A fresh full report is required.
	ErrInvalidated = errors.New("mirror: invalidated, resync required")
)

// snapshot is what readers see. It is never modified after publication.
type snapshot struct {
	session uuid.UUID
	report  report.NodeReport
	applied uint64
	cause   error
}

// Mirror owns one mirrored report. Writers are serialized; readers take the
// published snapshot and only ever observe states between mutations.
type Mirror struct {
	mu      sync.Mutex
	engine  *Engine
	current atomic.Pointer[snapshot]
	tracer  trace.Tracer
	applied metric.Int64Counter
	logger  *slog.Logger
}

// New returns a detached mirror.
func New(engine *Engine, logger *slog.Logger) *Mirror {
	if engine == nil {
		engine = NewEngine()
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Mirror{engine: engine, logger: logger}
	m.instrument(otel.GetTracerProvider(), otel.GetMeterProvider())
	return m
}

func (m *Mirror) instrument(tp trace.TracerProvider, mp metric.MeterProvider) {
	m.tracer = tp.Tracer(telemetry.Scope)
	counter, err := mp.Meter(telemetry.Scope).Int64Counter(telemetry.MetricAppliedMutations,
		metric.WithDescription("Mutations applied to live mirrors."))
	if err != nil {
		m.logger.Warn("mirror counter unavailable", slog.Any("error", err))
		counter = noop.Int64Counter{}
	}
	m.applied = counter
}

// Reset seeds the mirror from a full report and starts a new session. A
// report that fails validation is refused and leaves the mirror detached.
func (m *Mirror) Reset(r report.NodeReport) (uuid.UUID, error) {
	if err := report.Validate(r); err != nil {
		m.mu.Lock()
		m.current.Store(nil)
		m.mu.Unlock()
		return uuid.Nil, fmt.Errorf("mirror: refusing invalid baseline: %w", err)
	}
	session := uuid.New()
	m.mu.Lock()
	m.current.Store(&snapshot{session: session, report: r})
	m.mu.Unlock()
	m.engine.metrics.SetSize(r.Funder.Friends.Len(), r.IndexClient.IndexServers.Len())
	m.logger.Info("mirror attached",
		slog.String("session", session.String()),
		slog.String("local_public_key", r.Funder.LocalPublicKey.String()),
		slog.Int("friends", r.Funder.Friends.Len()))
	return session, nil
}

// Apply applies a batch of mutations. Readers see either the state before the
// batch or after it. On failure the report is discarded and every later call
// returns ErrInvalidated until Reset.
func (m *Mirror) Apply(ctx context.Context, ms ...mutation.NodeReportMutation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur := m.current.Load()
	if cur == nil {
		return ErrDetached
	}
	if cur.cause != nil {
		return ErrInvalidated
	}

	ctx, span := m.tracer.Start(ctx, telemetry.SpanApply, trace.WithAttributes(
		attribute.String("session", cur.session.String()),
		attribute.Int("mutations", len(ms)),
	))
	defer span.End()

	start := time.Now()
	next, err := m.engine.ApplyAll(cur.report, ms)
	m.engine.metrics.ObserveBatch(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "apply failed")
		m.invalidateLocked(cur, err)
		return err
	}
	m.current.Store(&snapshot{session: cur.session, report: next, applied: cur.applied + uint64(len(ms))})
	m.applied.Add(ctx, int64(len(ms)))
	m.engine.metrics.SetSize(next.Funder.Friends.Len(), next.IndexClient.IndexServers.Len())
	return nil
}

// Invalidate discards the current report, for example after a gap in the
// mutation stream.
func (m *Mirror) Invalidate(cause error) {
	if cause == nil {
		cause = ErrInvalidated
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cur := m.current.Load()
	if cur == nil || cur.cause != nil {
		return
	}
	m.invalidateLocked(cur, cause)
}

func (m *Mirror) invalidateLocked(cur *snapshot, cause error) {
	m.current.Store(&snapshot{session: cur.session, applied: cur.applied, cause: cause})
	m.engine.metrics.RecordResync(KindName(cause))
	m.logger.Warn("mirror invalidated",
		slog.String("session", cur.session.String()),
		slog.Uint64("applied", cur.applied),
		slog.Any("error", cause))
}

// Snapshot returns the current report and its session.
func (m *Mirror) Snapshot() (report.NodeReport, uuid.UUID, error) {
	cur := m.current.Load()
	if cur == nil {
		return report.NodeReport{}, uuid.Nil, ErrDetached
	}
	if cur.cause != nil {
		return report.NodeReport{}, cur.session, fmt.Errorf("%w: %v", ErrInvalidated, cur.cause)
	}
	return cur.report, cur.session, nil
}

// View is one consistent read of a mirror.
type View struct {
	Session uuid.UUID
	Report  report.NodeReport
	// Applied counts the mutations applied since the session's full report.
	Applied uint64
}

// View returns the current report together with its session and position.
func (m *Mirror) View() (View, error) {
	cur := m.current.Load()
	if cur == nil {
		return View{}, ErrDetached
	}
	v := View{Session: cur.session, Report: cur.report, Applied: cur.applied}
	if cur.cause != nil {
		return View{Session: cur.session}, fmt.Errorf("%w: %v", ErrInvalidated, cur.cause)
	}
	return v, nil
}

// Live reports whether the mirror currently holds a usable report.
func (m *Mirror) Live() bool {
	cur := m.current.Load()
	return cur != nil && cur.cause == nil
}

// Applied returns how many mutations were applied in the current session.
func (m *Mirror) Applied() uint64 {
	cur := m.current.Load()
	if cur == nil {
		return 0
	}
	return cur.applied
}
