// Package mirror folds an ordered stream of mutations over a node report.
//
// Apply is pure: it never logs, blocks or touches shared state. On any
// failure the input report is returned unchanged together with an
// *ApplyError. Engine adds throttled logging and metrics on top, and Mirror
// publishes the result to concurrent readers.
package mirror

import (
	"errors"
	"slices"

	"nodemirror/mutation"
	"nodemirror/report"
)

// Apply applies one mutation to r. The mutation must come from the same
// ordered stream that produced r; mutations do not commute.
//
// Unknown variants leave r unchanged and return nil. A result that breaks a
// report invariant is rejected with ErrInvariantViolated.
func Apply(r report.NodeReport, m mutation.NodeReportMutation) (report.NodeReport, error) {
	next, err := applyNode(r, m)
	if err != nil {
		return r, newApplyError(m, err)
	}
	if err := report.Validate(next); err != nil {
		applyErr := newApplyError(m, ErrInvariantViolated)
		var vs report.Violations
		if errors.As(err, &vs) {
			applyErr.Violations = vs
		}
		return r, applyErr
	}
	return next, nil
}

// ApplyAll folds Apply over ms from left to right. It stops at the first
// failure and returns the last successfully applied report with the error;
// the error's Index is the position of the failing mutation.
func ApplyAll(r report.NodeReport, ms []mutation.NodeReportMutation) (report.NodeReport, error) {
	for i, m := range ms {
		next, err := Apply(r, m)
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

func newApplyError(m mutation.NodeReportMutation, kind error) *ApplyError {
	e := &ApplyError{Op: mutation.Describe(m), Kind: kind}
	if pk, ok := addressedKey(m); ok {
		e.Key = pk.String()
	}
	return e
}

func applyNode(r report.NodeReport, m mutation.NodeReportMutation) (report.NodeReport, error) {
	switch x := m.(type) {
	case mutation.FunderMutation:
		funder, err := applyFunder(r.Funder, x.Mutation)
		if err != nil {
			return r, err
		}
		r.Funder = funder
		return r, nil
	case mutation.IndexClientMutation:
		ic, err := applyIndexClient(r.IndexClient, x.Mutation)
		if err != nil {
			return r, err
		}
		r.IndexClient = ic
		return r, nil
	case mutation.UnknownNode:
		return r, nil
	default:
		return r, ErrMalformedUnion
	}
}

func applyFunder(f report.FunderReport, m mutation.FunderReportMutation) (report.FunderReport, error) {
	switch x := m.(type) {
	case mutation.AddRelay:
		if relayIndex(f.Relays, x.Relay.PublicKey) >= 0 {
			return f, ErrDuplicateKey
		}
		f.Relays = append(slices.Clone(f.Relays), x.Relay)
	case mutation.RemoveRelay:
		i := relayIndex(f.Relays, x.PublicKey)
		if i < 0 {
			return f, ErrUnknownKey
		}
		f.Relays = slices.Delete(slices.Clone(f.Relays), i, i+1)
	case mutation.AddFriend:
		if f.Friends.Has(x.FriendPublicKey) {
			return f, ErrDuplicateKey
		}
		f.Friends = f.Friends.With(x.FriendPublicKey, cloneFriend(x.Report))
	case mutation.RemoveFriend:
		if !f.Friends.Has(x.FriendPublicKey) {
			return f, ErrUnknownKey
		}
		f.Friends = f.Friends.Without(x.FriendPublicKey)
	case mutation.PkFriendReportMutation:
		friend, ok := f.Friends.Get(x.FriendPublicKey)
		if !ok {
			return f, ErrUnknownKey
		}
		next, err := applyFriend(friend, x.Mutation)
		if err != nil {
			return f, err
		}
		f.Friends = f.Friends.With(x.FriendPublicKey, next)
	case mutation.SetNumReadyReceipts:
		f.NumReadyReceipts = x.Value
	case mutation.UnknownFunder:
	default:
		return f, ErrMalformedUnion
	}
	return f, nil
}

func applyFriend(f report.FriendReport, m mutation.FriendReportMutation) (report.FriendReport, error) {
	switch x := m.(type) {
	case mutation.SetName:
		f.Name = x.Name
	case mutation.SetRemoteRelays:
		f.RemoteRelays = slices.Clone(x.Relays)
	case mutation.SetLastSentRelays:
		f.SentLocalRelays = AdvanceSentRelays(f.SentLocalRelays, x.Relays)
	case mutation.SetSentLocalRelays:
		if x.Report == nil {
			return f, ErrMalformedUnion
		}
		f.SentLocalRelays = cloneSentRelays(x.Report)
	case mutation.SetOptLastIncomingMoveToken:
		if x.Value == nil {
			return f, ErrMalformedUnion
		}
		f.OptLastIncomingMoveToken = x.Value
	case mutation.SetLiveness:
		f.Liveness = x.Liveness
	case mutation.SetChannelStatus:
		if x.Status == nil {
			return f, ErrMalformedUnion
		}
		f.ChannelStatus = x.Status
	case mutation.TcMutation:
		if _, unknown := x.Mutation.(mutation.UnknownTc); unknown {
			return f, nil
		}
		consistent, ok := f.ChannelStatus.(report.ChannelConsistent)
		if !ok {
			return f, ErrChannelInconsistent
		}
		tc, err := applyTc(consistent.Tc, x.Mutation)
		if err != nil {
			return f, err
		}
		f.ChannelStatus = report.ChannelConsistent{Tc: tc}
	case mutation.SetWantedRemoteMaxDebt:
		f.WantedRemoteMaxDebt = x.Value
	case mutation.SetWantedLocalRequestsStatus:
		f.WantedLocalRequestsStatus = x.Status
	case mutation.SetNumPendingRequests:
		f.NumPendingRequests = x.Value
	case mutation.SetNumPendingResponses:
		f.NumPendingResponses = x.Value
	case mutation.SetFriendStatus:
		f.Status = x.Status
	case mutation.SetNumPendingUserRequests:
		f.NumPendingUserRequests = x.Value
	case mutation.UnknownFriend:
	default:
		return f, ErrMalformedUnion
	}
	return f, nil
}

func applyTc(tc report.TcReport, m mutation.TcReportMutation) (report.TcReport, error) {
	switch x := m.(type) {
	case mutation.SetDirection:
		tc.Direction = x.Direction
	case mutation.SetBalance:
		tc.Balance.Balance = x.Balance
	case mutation.SetLocalMaxDebt:
		tc.Balance.LocalMaxDebt = x.Value
	case mutation.SetRemoteMaxDebt:
		tc.Balance.RemoteMaxDebt = x.Value
	case mutation.SetLocalPendingDebt:
		tc.Balance.LocalPendingDebt = x.Value
	case mutation.SetRemotePendingDebt:
		tc.Balance.RemotePendingDebt = x.Value
	case mutation.SetLocalRequestsStatus:
		tc.RequestsStatus.Local = x.Status
	case mutation.SetRemoteRequestsStatus:
		tc.RequestsStatus.Remote = x.Status
	case mutation.SetNumLocalPendingRequests:
		tc.NumLocalPendingRequests = x.Value
	case mutation.SetNumRemotePendingRequests:
		tc.NumRemotePendingRequests = x.Value
	case mutation.UnknownTc:
	default:
		return tc, ErrMalformedUnion
	}
	return tc, nil
}

func relayIndex(relays []report.NamedRelayAddress, pk report.PublicKey) int {
	return slices.IndexFunc(relays, func(r report.NamedRelayAddress) bool { return r.PublicKey == pk })
}

// cloneFriend detaches the slices of an incoming friend report from the
// mutation payload.
func cloneFriend(f report.FriendReport) report.FriendReport {
	f.RemoteRelays = slices.Clone(f.RemoteRelays)
	f.SentLocalRelays = cloneSentRelays(f.SentLocalRelays)
	return f
}

func cloneSentRelays(s report.SentLocalRelaysReport) report.SentLocalRelaysReport {
	switch x := s.(type) {
	case report.LastSent:
		return report.LastSent{Relays: slices.Clone(x.Relays)}
	case report.Transition:
		return report.Transition{LastSent: slices.Clone(x.LastSent), BeforeLastSent: slices.Clone(x.BeforeLastSent)}
	default:
		return s
	}
}

// addressedKey returns the key a mutation routes on, if it has one.
func addressedKey(m mutation.NodeReportMutation) (report.PublicKey, bool) {
	switch x := m.(type) {
	case mutation.FunderMutation:
		switch f := x.Mutation.(type) {
		case mutation.AddRelay:
			return f.Relay.PublicKey, true
		case mutation.RemoveRelay:
			return f.PublicKey, true
		case mutation.AddFriend:
			return f.FriendPublicKey, true
		case mutation.RemoveFriend:
			return f.FriendPublicKey, true
		case mutation.PkFriendReportMutation:
			return f.FriendPublicKey, true
		}
	case mutation.IndexClientMutation:
		switch ic := x.Mutation.(type) {
		case mutation.AddIndexServer:
			return ic.Server.PublicKey, true
		case mutation.RemoveIndexServer:
			return ic.PublicKey, true
		case mutation.SetConnectedServer:
			if c, ok := ic.Server.(report.ConnectedServer); ok {
				return c.PublicKey, true
			}
		}
	}
	return report.PublicKey{}, false
}
