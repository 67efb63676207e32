// Package mirrortest provides a reference producer of node reports and
// mutations for exercising mirrors.
package mirrortest

import (
	"math/rand/v2"
	"slices"

	"nodemirror/credit"
	"nodemirror/mutation"
	"nodemirror/report"
)

const keySpace = 12

// Authority owns a node report and changes it the way a running node would,
// emitting one mutation per change. Its report is the reference a mirror is
// compared against.
type Authority struct {
	rng *rand.Rand
	r   report.NodeReport
}

// NewAuthority returns an authority with an empty report. The same seed
// always yields the same sequence of changes.
func NewAuthority(seed uint64) *Authority {
	return &Authority{
		rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		r:   report.NewNodeReport(Key(0xAA)),
	}
}

// Key returns a public key whose first byte is b.
func Key(b byte) report.PublicKey {
	var pk report.PublicKey
	pk[0] = b
	return pk
}

// Report returns the authority's current report.
func (a *Authority) Report() report.NodeReport { return a.r }

// Run performs n steps and returns every mutation emitted.
func (a *Authority) Run(n int) []mutation.NodeReportMutation {
	var out []mutation.NodeReportMutation
	for i := 0; i < n; i++ {
		out = append(out, a.Step()...)
	}
	return out
}

// Step performs one random state change. Most changes emit one mutation;
// some, like dropping the connected index server, emit two.
func (a *Authority) Step() []mutation.NodeReportMutation {
	for {
		var ms []mutation.NodeReportMutation
		switch a.rng.IntN(10) {
		case 0:
			ms = a.addFriend()
		case 1:
			ms = a.removeFriend()
		case 2, 3:
			ms = a.changeFriend()
		case 4, 5:
			ms = a.changeChannel()
		case 6:
			ms = a.changeRelays()
		case 7:
			ms = a.changeIndexClient()
		case 8:
			ms = a.advertise()
		default:
			a.r.Funder.NumReadyReceipts = a.rng.Uint64N(1000)
			ms = []mutation.NodeReportMutation{mutation.Funder(mutation.SetNumReadyReceipts{Value: a.r.Funder.NumReadyReceipts})}
		}
		if len(ms) > 0 {
			return ms
		}
	}
}

func (a *Authority) randomKey() report.PublicKey {
	return Key(byte(1 + a.rng.IntN(keySpace)))
}

func (a *Authority) randomRelays() []report.RelayAddress {
	n := a.rng.IntN(3)
	out := make([]report.RelayAddress, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, report.RelayAddress{PublicKey: Key(byte(0x40 + a.rng.IntN(8))), Address: "relay.example:1337"})
	}
	return out
}

func (a *Authority) pickFriend() (report.PublicKey, report.FriendReport, bool) {
	keys := a.r.Funder.Friends.Keys()
	if len(keys) == 0 {
		return report.PublicKey{}, report.FriendReport{}, false
	}
	pk := keys[a.rng.IntN(len(keys))]
	f, _ := a.r.Funder.Friends.Get(pk)
	return pk, f, true
}

func (a *Authority) addFriend() []mutation.NodeReportMutation {
	pk := a.randomKey()
	if a.r.Funder.Friends.Has(pk) {
		return nil
	}
	f := report.NewFriendReport("friend-" + pk.Short())
	f.RemoteRelays = a.randomRelays()
	a.r.Funder.Friends = a.r.Funder.Friends.With(pk, f)
	return []mutation.NodeReportMutation{mutation.Funder(mutation.AddFriend{FriendPublicKey: pk, Report: f})}
}

func (a *Authority) removeFriend() []mutation.NodeReportMutation {
	pk, _, ok := a.pickFriend()
	if !ok {
		return nil
	}
	a.r.Funder.Friends = a.r.Funder.Friends.Without(pk)
	return []mutation.NodeReportMutation{mutation.Funder(mutation.RemoveFriend{FriendPublicKey: pk})}
}

func (a *Authority) changeFriend() []mutation.NodeReportMutation {
	pk, f, ok := a.pickFriend()
	if !ok {
		return nil
	}
	var m mutation.FriendReportMutation
	switch a.rng.IntN(10) {
	case 0:
		f.Name = "renamed-" + pk.Short()
		m = mutation.SetName{Name: f.Name}
	case 1:
		f.RemoteRelays = a.randomRelays()
		m = mutation.SetRemoteRelays{Relays: f.RemoteRelays}
	case 2:
		f.Liveness = report.Liveness(a.rng.IntN(2))
		m = mutation.SetLiveness{Liveness: f.Liveness}
	case 3:
		f.Status = report.FriendStatus(a.rng.IntN(2))
		m = mutation.SetFriendStatus{Status: f.Status}
	case 4:
		f.WantedRemoteMaxDebt = credit.NewU128(a.rng.Uint64())
		m = mutation.SetWantedRemoteMaxDebt{Value: f.WantedRemoteMaxDebt}
	case 5:
		f.WantedLocalRequestsStatus = report.RequestsStatus(a.rng.IntN(2))
		m = mutation.SetWantedLocalRequestsStatus{Status: f.WantedLocalRequestsStatus}
	case 6:
		f.NumPendingRequests = a.rng.Uint64N(50)
		m = mutation.SetNumPendingRequests{Value: f.NumPendingRequests}
	case 7:
		f.NumPendingResponses = a.rng.Uint64N(50)
		m = mutation.SetNumPendingResponses{Value: f.NumPendingResponses}
	case 8:
		f.NumPendingUserRequests = a.rng.Uint64N(50)
		m = mutation.SetNumPendingUserRequests{Value: f.NumPendingUserRequests}
	default:
		token := report.MoveTokenHashedReport{
			LocalPublicKey:   a.r.Funder.LocalPublicKey,
			RemotePublicKey:  pk,
			MoveTokenCounter: credit.NewU128(a.rng.Uint64()),
			Balance:          credit.NewI128(a.rng.Int64N(1000) - 500),
		}
		token.PrefixHash[0] = byte(a.rng.IntN(256))
		f.OptLastIncomingMoveToken = report.LastIncomingMoveToken{Token: token}
		m = mutation.SetOptLastIncomingMoveToken{Value: f.OptLastIncomingMoveToken}
	}
	a.r.Funder.Friends = a.r.Funder.Friends.With(pk, f)
	return []mutation.NodeReportMutation{mutation.Friend(pk, m)}
}

// advertise sends a new local relay set to a friend, or acknowledges the
// newest one and collapses a pending transition.
func (a *Authority) advertise() []mutation.NodeReportMutation {
	pk, f, ok := a.pickFriend()
	if !ok {
		return nil
	}
	if t, isTransition := f.SentLocalRelays.(report.Transition); isTransition && a.rng.IntN(3) == 0 {
		f.SentLocalRelays = report.LastSent{Relays: t.LastSent}
		a.r.Funder.Friends = a.r.Funder.Friends.With(pk, f)
		return []mutation.NodeReportMutation{mutation.Friend(pk, mutation.SetSentLocalRelays{Report: f.SentLocalRelays})}
	}

	sent := make([]report.RelayAddress, 0, len(a.r.Funder.Relays))
	for _, relay := range a.r.Funder.Relays {
		sent = append(sent, report.RelayAddress{PublicKey: relay.PublicKey, Address: relay.Address})
	}
	switch prev := f.SentLocalRelays.(type) {
	case report.LastSent:
		f.SentLocalRelays = report.Transition{LastSent: sent, BeforeLastSent: prev.Relays}
	case report.Transition:
		f.SentLocalRelays = report.Transition{LastSent: sent, BeforeLastSent: prev.LastSent}
	default:
		f.SentLocalRelays = report.LastSent{Relays: sent}
	}
	a.r.Funder.Friends = a.r.Funder.Friends.With(pk, f)
	return []mutation.NodeReportMutation{mutation.Friend(pk, mutation.SetLastSentRelays{Relays: slices.Clone(sent)})}
}

func (a *Authority) changeChannel() []mutation.NodeReportMutation {
	pk, f, ok := a.pickFriend()
	if !ok {
		return nil
	}
	consistent, isConsistent := f.ChannelStatus.(report.ChannelConsistent)
	if !isConsistent || a.rng.IntN(12) == 0 {
		return a.flipChannel(pk, f, isConsistent)
	}

	tc := consistent.Tc
	var m mutation.TcReportMutation
	switch a.rng.IntN(9) {
	case 0:
		tc.Direction = report.Direction(a.rng.IntN(2))
		m = mutation.SetDirection{Direction: tc.Direction}
	case 1:
		tc.Balance.Balance = credit.NewI128(a.rng.Int64N(2000) - 1000)
		m = mutation.SetBalance{Balance: tc.Balance.Balance}
	case 2:
		tc.Balance.LocalMaxDebt = credit.NewU128(tc.Balance.LocalPendingDebt.Lo + a.rng.Uint64N(500))
		m = mutation.SetLocalMaxDebt{Value: tc.Balance.LocalMaxDebt}
	case 3:
		tc.Balance.RemoteMaxDebt = credit.NewU128(tc.Balance.RemotePendingDebt.Lo + a.rng.Uint64N(500))
		m = mutation.SetRemoteMaxDebt{Value: tc.Balance.RemoteMaxDebt}
	case 4:
		tc.Balance.LocalPendingDebt = credit.NewU128(a.rng.Uint64N(tc.Balance.LocalMaxDebt.Lo + 1))
		m = mutation.SetLocalPendingDebt{Value: tc.Balance.LocalPendingDebt}
	case 5:
		tc.Balance.RemotePendingDebt = credit.NewU128(a.rng.Uint64N(tc.Balance.RemoteMaxDebt.Lo + 1))
		m = mutation.SetRemotePendingDebt{Value: tc.Balance.RemotePendingDebt}
	case 6:
		tc.RequestsStatus.Local = report.RequestsStatus(a.rng.IntN(2))
		m = mutation.SetLocalRequestsStatus{Status: tc.RequestsStatus.Local}
	case 7:
		tc.RequestsStatus.Remote = report.RequestsStatus(a.rng.IntN(2))
		m = mutation.SetRemoteRequestsStatus{Status: tc.RequestsStatus.Remote}
	default:
		tc.NumLocalPendingRequests = a.rng.Uint64N(20)
		tc.NumRemotePendingRequests = a.rng.Uint64N(20)
		f.ChannelStatus = report.ChannelConsistent{Tc: tc}
		a.r.Funder.Friends = a.r.Funder.Friends.With(pk, f)
		return []mutation.NodeReportMutation{
			mutation.Tc(pk, mutation.SetNumLocalPendingRequests{Value: tc.NumLocalPendingRequests}),
			mutation.Tc(pk, mutation.SetNumRemotePendingRequests{Value: tc.NumRemotePendingRequests}),
		}
	}
	f.ChannelStatus = report.ChannelConsistent{Tc: tc}
	a.r.Funder.Friends = a.r.Funder.Friends.With(pk, f)
	return []mutation.NodeReportMutation{mutation.Tc(pk, m)}
}

// flipChannel moves a channel between the consistent and inconsistent
// states, the way a reset does.
func (a *Authority) flipChannel(pk report.PublicKey, f report.FriendReport, consistent bool) []mutation.NodeReportMutation {
	if consistent {
		inc := report.ChannelInconsistentReport{
			LocalResetTermsBalance: credit.NewI128(a.rng.Int64N(200) - 100),
			OptRemoteResetTerms:    report.NoResetTerms{},
		}
		if a.rng.IntN(2) == 0 {
			terms := report.ResetTermsReport{BalanceForReset: credit.NewI128(a.rng.Int64N(200) - 100)}
			terms.ResetToken[0] = byte(a.rng.IntN(256))
			inc.OptRemoteResetTerms = report.RemoteResetTerms{Terms: terms}
		}
		f.ChannelStatus = report.ChannelInconsistent{Report: inc}
	} else {
		f.ChannelStatus = report.ChannelConsistent{Tc: report.TcReport{
			Direction: report.Direction(a.rng.IntN(2)),
			Balance: report.McBalanceReport{
				LocalMaxDebt:  credit.NewU128(a.rng.Uint64N(1000)),
				RemoteMaxDebt: credit.NewU128(a.rng.Uint64N(1000)),
			},
		}}
	}
	a.r.Funder.Friends = a.r.Funder.Friends.With(pk, f)
	return []mutation.NodeReportMutation{mutation.Friend(pk, mutation.SetChannelStatus{Status: f.ChannelStatus})}
}

func (a *Authority) changeRelays() []mutation.NodeReportMutation {
	relayKey := Key(byte(0x40 + a.rng.IntN(8)))
	i := slices.IndexFunc(a.r.Funder.Relays, func(r report.NamedRelayAddress) bool { return r.PublicKey == relayKey })
	if i >= 0 {
		a.r.Funder.Relays = slices.Delete(slices.Clone(a.r.Funder.Relays), i, i+1)
		return []mutation.NodeReportMutation{mutation.Funder(mutation.RemoveRelay{PublicKey: relayKey})}
	}
	relay := report.NamedRelayAddress{PublicKey: relayKey, Address: "relay.example:1337", Name: "relay-" + relayKey.Short()}
	a.r.Funder.Relays = append(slices.Clone(a.r.Funder.Relays), relay)
	return []mutation.NodeReportMutation{mutation.Funder(mutation.AddRelay{Relay: relay})}
}

func (a *Authority) changeIndexClient() []mutation.NodeReportMutation {
	ic := &a.r.IndexClient
	serverKey := Key(byte(0x60 + a.rng.IntN(4)))
	connected, isConnected := ic.ConnectedServer.(report.ConnectedServer)

	switch {
	case !ic.IndexServers.Has(serverKey):
		server := report.NamedIndexServerAddress{PublicKey: serverKey, Address: "index.example:9000", Name: "index-" + serverKey.Short()}
		ic.IndexServers = ic.IndexServers.With(serverKey, server)
		return []mutation.NodeReportMutation{mutation.IndexClient(mutation.AddIndexServer{Server: server})}
	case a.rng.IntN(2) == 0:
		var ms []mutation.NodeReportMutation
		if isConnected && connected.PublicKey == serverKey {
			ic.ConnectedServer = report.NotConnected{}
			ms = append(ms, mutation.IndexClient(mutation.SetConnectedServer{Server: report.NotConnected{}}))
		}
		ic.IndexServers = ic.IndexServers.Without(serverKey)
		return append(ms, mutation.IndexClient(mutation.RemoveIndexServer{PublicKey: serverKey}))
	default:
		ic.ConnectedServer = report.ConnectedServer{PublicKey: serverKey}
		return []mutation.NodeReportMutation{mutation.IndexClient(mutation.SetConnectedServer{Server: ic.ConnectedServer})}
	}
}
