package mirror

import (
	"errors"
	"fmt"

	"nodemirror/report"
)

var (
	// ErrUnknownKey means a mutation addressed a friend, relay or index
	// server that is not present.
	ErrUnknownKey = errors.New("mirror: unknown key")
	// ErrDuplicateKey means an add mutation addressed a key that is already
	// present.
	ErrDuplicateKey = errors.New("mirror: duplicate key")
	// ErrInvariantViolated means the mutation applied structurally but the
	// resulting report breaks an invariant.
	ErrInvariantViolated = errors.New("mirror: invariant violated")
	// ErrChannelInconsistent means a token channel mutation addressed a
	// friend whose channel is not consistent.
	ErrChannelInconsistent = errors.New("mirror: channel not consistent")
	// ErrMalformedUnion is returned for a nil mutation or nil union payload.
	ErrMalformedUnion = report.ErrMalformedUnion
)

// ApplyError describes why a mutation was rejected. The report it was
// applied to is left unchanged.
type ApplyError struct {
	// Index of the failing mutation within an ApplyAll batch.
	Index int
	// Op is the dotted mutation name, see mutation.Describe.
	Op string
	// Key is the hex form of the addressed key, if any.
	Key        string
	Kind       error
	Violations report.Violations
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("apply %s", e.Op)
	if e.Key != "" {
		msg += " [" + e.Key + "]"
	}
	msg += ": " + e.Kind.Error()
	if len(e.Violations) > 0 {
		msg += ": " + e.Violations.Error()
	}
	return msg
}

func (e *ApplyError) Unwrap() error { return e.Kind }

// KindName returns a short label for the error kind, used in metrics.
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrUnknownKey):
		return "unknown_key"
	case errors.Is(err, ErrDuplicateKey):
		return "duplicate_key"
	case errors.Is(err, ErrInvariantViolated):
		return "invariant_violated"
	case errors.Is(err, ErrChannelInconsistent):
		return "channel_inconsistent"
	case errors.Is(err, ErrMalformedUnion):
		return "malformed_union"
	default:
		return "other"
	}
}
