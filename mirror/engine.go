package mirror

import (
	"errors"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"nodemirror/mutation"
	"nodemirror/observability"
	"nodemirror/observability/logging"
	"nodemirror/report"
)

const defaultUnknownLogInterval = 10 * time.Second

// Engine wraps Apply with logging of unrecognized variants and metrics. It
// holds no report state and may be shared between mirrors.
type Engine struct {
	logger  *slog.Logger
	warn    *rate.Limiter
	metrics *observability.MirrorMetrics
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for unknown-variant warnings.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithUnknownLogInterval throttles unknown-variant warnings to one per
// interval. Zero or negative logs every occurrence.
func WithUnknownLogInterval(interval time.Duration) EngineOption {
	return func(e *Engine) {
		if interval <= 0 {
			e.warn = rate.NewLimiter(rate.Inf, 1)
			return
		}
		e.warn = rate.NewLimiter(rate.Every(interval), 1)
	}
}

// WithMetrics overrides the metrics registry. Passing nil disables metrics.
func WithMetrics(metrics *observability.MirrorMetrics) EngineOption {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

// NewEngine builds an Engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		logger:  slog.Default(),
		warn:    rate.NewLimiter(rate.Every(defaultUnknownLogInterval), 1),
		metrics: observability.Mirror(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply applies m to r, see the package level Apply.
func (e *Engine) Apply(r report.NodeReport, m mutation.NodeReportMutation) (report.NodeReport, error) {
	if level, tag, ok := mutation.Unrecognized(m); ok {
		e.metrics.RecordUnknown(level)
		if e.warn.Allow() {
			e.logger.Warn("ignoring unrecognized mutation variant",
				slog.String("level", level),
				slog.Uint64("tag", tag),
				slog.String("variant", mutation.Describe(m)))
		}
	}
	next, err := Apply(r, m)
	e.metrics.ObserveMutation(mutation.Variant(m), err)
	if err != nil {
		e.metrics.RecordApplyError(KindName(err))
		return next, err
	}
	e.logMembership(m)
	return next, nil
}

func (e *Engine) logMembership(m mutation.NodeReportMutation) {
	fm, ok := m.(mutation.FunderMutation)
	if !ok {
		return
	}
	switch x := fm.Mutation.(type) {
	case mutation.AddFriend:
		e.logger.Debug("friend added",
			slog.String("friend", x.FriendPublicKey.String()),
			logging.MaskField("friend_name", x.Report.Name))
	case mutation.RemoveFriend:
		e.logger.Debug("friend removed", slog.String("friend", x.FriendPublicKey.String()))
	}
}

// ApplyAll folds Engine.Apply over ms, see the package level ApplyAll.
func (e *Engine) ApplyAll(r report.NodeReport, ms []mutation.NodeReportMutation) (report.NodeReport, error) {
	for i, m := range ms {
		next, err := e.Apply(r, m)
		if err != nil {
			var applyErr *ApplyError
			if errors.As(err, &applyErr) {
				applyErr.Index = i
			}
			return r, err
		}
		r = next
	}
	return r, nil
}
