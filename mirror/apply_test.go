package mirror

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"nodemirror/credit"
	"nodemirror/mutation"
	"nodemirror/report"
)

func pk(b byte) report.PublicKey {
	var k report.PublicKey
	k[0] = b
	return k
}

func relays(keys ...byte) []report.RelayAddress {
	out := make([]report.RelayAddress, 0, len(keys))
	for _, k := range keys {
		out = append(out, report.RelayAddress{PublicKey: pk(k), Address: "relay:1337"})
	}
	return out
}

func server(b byte) report.NamedIndexServerAddress {
	return report.NamedIndexServerAddress{PublicKey: pk(b), Address: "index:9000", Name: "idx"}
}

func baseReport() report.NodeReport {
	return report.NewNodeReport(pk(0xAA))
}

func requireKind(t *testing.T, err error, kind error) *ApplyError {
	t.Helper()
	require.Error(t, err)
	require.ErrorIs(t, err, kind)
	var applyErr *ApplyError
	require.True(t, errors.As(err, &applyErr))
	return applyErr
}

func TestDuplicateFriendLeavesReportUnchanged(t *testing.T) {
	r := baseReport()
	report0 := report.NewFriendReport("first")
	report1 := report.NewFriendReport("second")
	report1.Status = report.FriendEnabled

	r, err := Apply(r, mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report0}))
	require.NoError(t, err)
	require.Equal(t, []report.PublicKey{pk(1)}, r.Funder.Friends.Keys())

	next, err := Apply(r, mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report1}))
	applyErr := requireKind(t, err, ErrDuplicateKey)
	require.Equal(t, pk(1).String(), applyErr.Key)
	require.True(t, next.Equal(r))
	friend, ok := next.Funder.Friends.Get(pk(1))
	require.True(t, ok)
	require.True(t, friend.Equal(report0))
}

func TestFriendMutationOnMissingFriend(t *testing.T) {
	r := baseReport()
	next, err := Apply(r, mutation.Friend(pk(2), mutation.SetFriendStatus{Status: report.FriendEnabled}))
	applyErr := requireKind(t, err, ErrUnknownKey)
	require.Equal(t, "funder.friend.setFriendStatus", applyErr.Op)
	require.True(t, next.Equal(r))
}

func TestIndexClientConnectedServer(t *testing.T) {
	r := baseReport()
	r, err := Apply(r, mutation.IndexClient(mutation.AddIndexServer{Server: server(0x30)}))
	require.NoError(t, err)
	require.Equal(t, []report.PublicKey{pk(0x30)}, r.IndexClient.IndexServers.Keys())

	next, err := Apply(r, mutation.IndexClient(mutation.SetConnectedServer{Server: report.ConnectedServer{PublicKey: pk(0x31)}}))
	requireKind(t, err, ErrUnknownKey)
	require.True(t, next.Equal(r))

	r, err = Apply(r, mutation.IndexClient(mutation.SetConnectedServer{Server: report.ConnectedServer{PublicKey: pk(0x30)}}))
	require.NoError(t, err)
	require.Equal(t, report.ConnectedServer{PublicKey: pk(0x30)}, r.IndexClient.ConnectedServer)

	r, err = Apply(r, mutation.IndexClient(mutation.SetConnectedServer{Server: report.NotConnected{}}))
	require.NoError(t, err)
	require.Equal(t, report.NotConnected{}, r.IndexClient.ConnectedServer)
}

func TestIndexServerUniqueness(t *testing.T) {
	r := baseReport()
	r, err := Apply(r, mutation.IndexClient(mutation.AddIndexServer{Server: server(0x30)}))
	require.NoError(t, err)

	dup := server(0x30)
	dup.Name = "other"
	_, err = Apply(r, mutation.IndexClient(mutation.AddIndexServer{Server: dup}))
	requireKind(t, err, ErrDuplicateKey)

	_, err = Apply(r, mutation.IndexClient(mutation.RemoveIndexServer{PublicKey: pk(0x31)}))
	requireKind(t, err, ErrUnknownKey)

	r, err = Apply(r, mutation.IndexClient(mutation.RemoveIndexServer{PublicKey: pk(0x30)}))
	require.NoError(t, err)
	require.Zero(t, r.IndexClient.IndexServers.Len())
}

func TestRemovingConnectedServerViolatesInvariant(t *testing.T) {
	r := baseReport()
	r, err := ApplyAll(r, []mutation.NodeReportMutation{
		mutation.IndexClient(mutation.AddIndexServer{Server: server(0x30)}),
		mutation.IndexClient(mutation.SetConnectedServer{Server: report.ConnectedServer{PublicKey: pk(0x30)}}),
	})
	require.NoError(t, err)

	next, err := Apply(r, mutation.IndexClient(mutation.RemoveIndexServer{PublicKey: pk(0x30)}))
	applyErr := requireKind(t, err, ErrInvariantViolated)
	require.NotEmpty(t, applyErr.Violations)
	require.True(t, next.Equal(r))
}

func TestPendingDebtAboveMaxDebtIsRejected(t *testing.T) {
	r := baseReport()
	friend := report.NewFriendReport("alice")
	friend.ChannelStatus = report.ChannelConsistent{Tc: report.TcReport{
		Balance: report.McBalanceReport{
			LocalMaxDebt:     credit.NewU128(100),
			LocalPendingDebt: credit.NewU128(100),
		},
	}}
	r, err := Apply(r, mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: friend}))
	require.NoError(t, err)

	next, err := Apply(r, mutation.Tc(pk(1), mutation.SetLocalPendingDebt{Value: credit.NewU128(101)}))
	applyErr := requireKind(t, err, ErrInvariantViolated)
	require.Len(t, applyErr.Violations, 1)
	require.Contains(t, applyErr.Violations[0].Path, "localPendingDebt")

	kept, ok := next.Funder.Friends.Get(pk(1))
	require.True(t, ok)
	tc := kept.ChannelStatus.(report.ChannelConsistent).Tc
	require.Equal(t, credit.NewU128(100), tc.Balance.LocalPendingDebt)
	require.Equal(t, credit.NewU128(100), tc.Balance.LocalMaxDebt)
}

func TestRemoveFriendOnEmptySet(t *testing.T) {
	r := baseReport()
	next, err := Apply(r, mutation.Funder(mutation.RemoveFriend{FriendPublicKey: pk(1)}))
	requireKind(t, err, ErrUnknownKey)
	require.True(t, next.Equal(r))
}

func TestAddThenRemoveIsOrderSensitive(t *testing.T) {
	add := mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report.NewFriendReport("a")})
	remove := mutation.Funder(mutation.RemoveFriend{FriendPublicKey: pk(1)})

	r, err := ApplyAll(baseReport(), []mutation.NodeReportMutation{add, remove})
	require.NoError(t, err)
	require.Zero(t, r.Funder.Friends.Len())

	_, err = ApplyAll(baseReport(), []mutation.NodeReportMutation{remove, add})
	applyErr := requireKind(t, err, ErrUnknownKey)
	require.Equal(t, 0, applyErr.Index)
}

func TestApplyAllReturnsLastGoodReport(t *testing.T) {
	ms := []mutation.NodeReportMutation{
		mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report.NewFriendReport("a")}),
		mutation.Friend(pk(1), mutation.SetLiveness{Liveness: report.LivenessOnline}),
		mutation.Friend(pk(2), mutation.SetLiveness{Liveness: report.LivenessOnline}),
		mutation.Funder(mutation.SetNumReadyReceipts{Value: 9}),
	}
	r, err := ApplyAll(baseReport(), ms)
	applyErr := requireKind(t, err, ErrUnknownKey)
	require.Equal(t, 2, applyErr.Index)
	require.Equal(t, pk(2).String(), applyErr.Key)

	friend, ok := r.Funder.Friends.Get(pk(1))
	require.True(t, ok)
	require.Equal(t, report.LivenessOnline, friend.Liveness)
	require.Zero(t, r.Funder.NumReadyReceipts)
}

func TestReaddingAnyPayloadIsDuplicate(t *testing.T) {
	r, err := Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report.NewFriendReport("a")}))
	require.NoError(t, err)

	payloads := []report.FriendReport{
		report.NewFriendReport("a"),
		report.NewFriendReport(""),
		{Name: "broken"},
	}
	for _, p := range payloads {
		_, err := Apply(r, mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: p}))
		requireKind(t, err, ErrDuplicateKey)
	}

	r, err = Apply(r, mutation.Funder(mutation.AddRelay{Relay: report.NamedRelayAddress{PublicKey: pk(0x10)}}))
	require.NoError(t, err)
	_, err = Apply(r, mutation.Funder(mutation.AddRelay{Relay: report.NamedRelayAddress{PublicKey: pk(0x10), Name: "again"}}))
	requireKind(t, err, ErrDuplicateKey)
}

func TestEveryFriendMutationNeedsTheFriend(t *testing.T) {
	fms := []mutation.FriendReportMutation{
		mutation.SetName{Name: "x"},
		mutation.SetRemoteRelays{Relays: relays(1)},
		mutation.SetLastSentRelays{Relays: relays(1)},
		mutation.SetSentLocalRelays{Report: report.NeverSent{}},
		mutation.SetOptLastIncomingMoveToken{Value: report.NoMoveToken{}},
		mutation.SetLiveness{Liveness: report.LivenessOnline},
		mutation.SetChannelStatus{Status: report.ChannelConsistent{}},
		mutation.TcMutation{Mutation: mutation.SetDirection{Direction: report.DirectionOutgoing}},
		mutation.SetWantedRemoteMaxDebt{Value: credit.NewU128(1)},
		mutation.SetWantedLocalRequestsStatus{Status: report.RequestsOpen},
		mutation.SetNumPendingRequests{Value: 1},
		mutation.SetNumPendingResponses{Value: 1},
		mutation.SetFriendStatus{Status: report.FriendEnabled},
		mutation.SetNumPendingUserRequests{Value: 1},
	}
	for _, fm := range fms {
		_, err := Apply(baseReport(), mutation.Friend(pk(7), fm))
		requireKind(t, err, ErrUnknownKey)
	}
	_, err := Apply(baseReport(), mutation.Funder(mutation.RemoveRelay{PublicKey: pk(7)}))
	requireKind(t, err, ErrUnknownKey)
}

func TestSentLocalRelaysKeepsTwoGenerations(t *testing.T) {
	r, err := Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report.NewFriendReport("a")}))
	require.NoError(t, err)

	sent := func(r report.NodeReport) report.SentLocalRelaysReport {
		f, ok := r.Funder.Friends.Get(pk(1))
		require.True(t, ok)
		return f.SentLocalRelays
	}
	r1, r2, r3 := relays(1), relays(2), relays(3)

	r, err = Apply(r, mutation.Friend(pk(1), mutation.SetLastSentRelays{Relays: r1}))
	require.NoError(t, err)
	require.Equal(t, report.LastSent{Relays: r1}, sent(r))

	r, err = Apply(r, mutation.Friend(pk(1), mutation.SetLastSentRelays{Relays: r2}))
	require.NoError(t, err)
	require.Equal(t, report.Transition{LastSent: r2, BeforeLastSent: r1}, sent(r))

	r, err = Apply(r, mutation.Friend(pk(1), mutation.SetLastSentRelays{Relays: r3}))
	require.NoError(t, err)
	require.Equal(t, report.Transition{LastSent: r3, BeforeLastSent: r2}, sent(r))
}

func TestTcMutationOnInconsistentChannel(t *testing.T) {
	friend := report.NewFriendReport("a")
	friend.ChannelStatus = report.ChannelInconsistent{Report: report.ChannelInconsistentReport{
		OptRemoteResetTerms: report.NoResetTerms{},
	}}
	r, err := Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: friend}))
	require.NoError(t, err)

	_, err = Apply(r, mutation.Tc(pk(1), mutation.SetBalance{Balance: credit.NewI128(5)}))
	requireKind(t, err, ErrChannelInconsistent)
}

func TestUnknownTcOnInconsistentChannelIsIgnored(t *testing.T) {
	friend := report.NewFriendReport("a")
	friend.ChannelStatus = report.ChannelInconsistent{Report: report.ChannelInconsistentReport{
		OptRemoteResetTerms: report.NoResetTerms{},
	}}
	r, err := Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: friend}))
	require.NoError(t, err)

	next, err := Apply(r, mutation.Tc(pk(1), mutation.UnknownTc{Tag: 99}))
	require.NoError(t, err)
	require.True(t, next.Equal(r))

	_, err = Apply(r, mutation.Tc(pk(2), mutation.UnknownTc{Tag: 99}))
	requireKind(t, err, ErrUnknownKey)
}

func TestSiblingFieldsAreUntouched(t *testing.T) {
	friend := report.NewFriendReport("a")
	friend.RemoteRelays = relays(4, 5)
	friend.NumPendingRequests = 3
	r, err := Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: friend}))
	require.NoError(t, err)

	r, err = Apply(r, mutation.Friend(pk(1), mutation.SetName{Name: "renamed"}))
	require.NoError(t, err)

	got, _ := r.Funder.Friends.Get(pk(1))
	want := friend
	want.Name = "renamed"
	require.True(t, got.Equal(want))
}

func TestApplyDoesNotAliasInput(t *testing.T) {
	r, err := Apply(baseReport(), mutation.Funder(mutation.AddRelay{Relay: report.NamedRelayAddress{PublicKey: pk(0x10)}}))
	require.NoError(t, err)

	next, err := Apply(r, mutation.Funder(mutation.AddRelay{Relay: report.NamedRelayAddress{PublicKey: pk(0x11)}}))
	require.NoError(t, err)
	require.Len(t, r.Funder.Relays, 1)
	require.Len(t, next.Funder.Relays, 2)

	next, err = Apply(next, mutation.Funder(mutation.RemoveRelay{PublicKey: pk(0x10)}))
	require.NoError(t, err)
	require.Equal(t, pk(0x10), r.Funder.Relays[0].PublicKey)
	require.Equal(t, pk(0x11), next.Funder.Relays[0].PublicKey)
}

func TestUnknownVariantsAreNoOps(t *testing.T) {
	r, err := Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report.NewFriendReport("a")}))
	require.NoError(t, err)

	for _, m := range []mutation.NodeReportMutation{
		mutation.UnknownNode{Tag: 40},
		mutation.Funder(mutation.UnknownFunder{Tag: 41}),
		mutation.Friend(pk(1), mutation.UnknownFriend{Tag: 42}),
		mutation.Tc(pk(1), mutation.UnknownTc{Tag: 43}),
		mutation.IndexClient(mutation.UnknownIndexClient{Tag: 44}),
	} {
		next, err := Apply(r, m)
		require.NoError(t, err, mutation.Describe(m))
		require.True(t, next.Equal(r))
	}
}

func TestMalformedMutations(t *testing.T) {
	for _, m := range []mutation.NodeReportMutation{
		nil,
		mutation.Funder(nil),
		mutation.IndexClient(nil),
		mutation.Friend(pk(1), nil),
		mutation.Tc(pk(1), nil),
		mutation.Friend(pk(1), mutation.SetChannelStatus{}),
		mutation.Friend(pk(1), mutation.SetSentLocalRelays{}),
		mutation.Friend(pk(1), mutation.SetOptLastIncomingMoveToken{}),
		mutation.IndexClient(mutation.SetConnectedServer{}),
	} {
		r, err := Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(1), Report: report.NewFriendReport("a")}))
		require.NoError(t, err)
		_, err = Apply(r, m)
		requireKind(t, err, ErrMalformedUnion)
	}
}

func TestAddFriendWithLocalKeyViolatesInvariant(t *testing.T) {
	_, err := Apply(baseReport(), mutation.Funder(mutation.AddFriend{FriendPublicKey: pk(0xAA), Report: report.NewFriendReport("me")}))
	requireKind(t, err, ErrInvariantViolated)
}

func TestKindName(t *testing.T) {
	require.Equal(t, "unknown_key", KindName(&ApplyError{Kind: ErrUnknownKey}))
	require.Equal(t, "duplicate_key", KindName(ErrDuplicateKey))
	require.Equal(t, "invariant_violated", KindName(ErrInvariantViolated))
	require.Equal(t, "channel_inconsistent", KindName(ErrChannelInconsistent))
	require.Equal(t, "malformed_union", KindName(ErrMalformedUnion))
	require.Equal(t, "other", KindName(errors.New("boom")))
}
