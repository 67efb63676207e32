package report

import "slices"

// Equal reports whether two node reports are structurally identical. Nil and
// empty relay lists compare equal; friend and index server order matters.
func (r NodeReport) Equal(o NodeReport) bool {
	return r.Funder.Equal(o.Funder) && r.IndexClient.Equal(o.IndexClient)
}

// Equal reports whether two funder reports are structurally identical.
func (f FunderReport) Equal(o FunderReport) bool {
	return f.LocalPublicKey == o.LocalPublicKey &&
		slices.Equal(f.Relays, o.Relays) &&
		f.NumReadyReceipts == o.NumReadyReceipts &&
		f.Friends.EqualFunc(o.Friends, FriendReport.Equal)
}

// Equal reports whether two friend reports are structurally identical.
func (f FriendReport) Equal(o FriendReport) bool {
	return f.Name == o.Name &&
		slices.Equal(f.RemoteRelays, o.RemoteRelays) &&
		EqualSentLocalRelays(f.SentLocalRelays, o.SentLocalRelays) &&
		f.OptLastIncomingMoveToken == o.OptLastIncomingMoveToken &&
		f.Liveness == o.Liveness &&
		f.ChannelStatus == o.ChannelStatus &&
		f.WantedRemoteMaxDebt == o.WantedRemoteMaxDebt &&
		f.WantedLocalRequestsStatus == o.WantedLocalRequestsStatus &&
		f.NumPendingRequests == o.NumPendingRequests &&
		f.NumPendingResponses == o.NumPendingResponses &&
		f.Status == o.Status &&
		f.NumPendingUserRequests == o.NumPendingUserRequests
}

// Equal reports whether two index client reports are structurally identical.
func (c IndexClientReport) Equal(o IndexClientReport) bool {
	return c.ConnectedServer == o.ConnectedServer &&
		c.IndexServers.EqualFunc(o.IndexServers, func(a, b NamedIndexServerAddress) bool { return a == b })
}

// EqualSentLocalRelays compares two relay advertisement states.
func EqualSentLocalRelays(a, b SentLocalRelaysReport) bool {
	switch x := a.(type) {
	case NeverSent:
		_, ok := b.(NeverSent)
		return ok
	case LastSent:
		y, ok := b.(LastSent)
		return ok && slices.Equal(x.Relays, y.Relays)
	case Transition:
		y, ok := b.(Transition)
		return ok && slices.Equal(x.LastSent, y.LastSent) && slices.Equal(x.BeforeLastSent, y.BeforeLastSent)
	default:
		return a == nil && b == nil
	}
}
