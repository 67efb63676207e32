// Package mutation holds the incremental deltas applied to a node report.
//
// There is one variant family per nesting level. Each variant names the field
// it changes and carries only the new value. Every family has an Unknown
// variant, produced by decoders for discriminants introduced after this code
// was built; the apply engine treats those as no-ops.
package mutation

import (
	"nodemirror/credit"
	"nodemirror/report"
)

// NodeReportMutation changes a NodeReport.
type NodeReportMutation interface {
	nodeMutation()
}

// FunderMutation routes a change to the funder report.
type FunderMutation struct {
	Mutation FunderReportMutation
}

// IndexClientMutation routes a change to the index client report.
type IndexClientMutation struct {
	Mutation IndexClientReportMutation
}

// UnknownNode is a node-level variant this build does not recognize.
type UnknownNode struct {
	Tag uint64
}

func (FunderMutation) nodeMutation()      {}
func (IndexClientMutation) nodeMutation() {}
func (UnknownNode) nodeMutation()         {}

// FunderReportMutation changes a FunderReport.
type FunderReportMutation interface {
	funderMutation()
}

type AddRelay struct {
	Relay report.NamedRelayAddress
}

type RemoveRelay struct {
	PublicKey report.PublicKey
}

// AddFriend inserts a new friend with its initial report.
type AddFriend struct {
	FriendPublicKey report.PublicKey
	Report          report.FriendReport
}

type RemoveFriend struct {
	FriendPublicKey report.PublicKey
}

// PkFriendReportMutation addresses a change to one existing friend.
type PkFriendReportMutation struct {
	FriendPublicKey report.PublicKey
	Mutation        FriendReportMutation
}

type SetNumReadyReceipts struct {
	Value uint64
}

// UnknownFunder is a funder-level variant this build does not recognize.
type UnknownFunder struct {
	Tag uint64
}

func (AddRelay) funderMutation()               {}
func (RemoveRelay) funderMutation()            {}
func (AddFriend) funderMutation()              {}
func (RemoveFriend) funderMutation()           {}
func (PkFriendReportMutation) funderMutation() {}
func (SetNumReadyReceipts) funderMutation()    {}
func (UnknownFunder) funderMutation()          {}

// FriendReportMutation changes a FriendReport.
type FriendReportMutation interface {
	friendMutation()
}

type SetName struct {
	Name string
}

type SetRemoteRelays struct {
	Relays []report.RelayAddress
}

// SetLastSentRelays records that a new local relay set was advertised. The
// previous set moves into the before-last slot.
type SetLastSentRelays struct {
	Relays []report.RelayAddress
}

// SetSentLocalRelays replaces the whole advertisement state, for example when
// the friend acknowledged the newest set and the transition collapses.
type SetSentLocalRelays struct {
	Report report.SentLocalRelaysReport
}

type SetOptLastIncomingMoveToken struct {
	Value report.OptLastIncomingMoveToken
}

type SetLiveness struct {
	Liveness report.Liveness
}

type SetChannelStatus struct {
	Status report.ChannelStatusReport
}

// TcMutation changes a field of a consistent token channel.
type TcMutation struct {
	Mutation TcReportMutation
}

type SetWantedRemoteMaxDebt struct {
	Value credit.U128
}

type SetWantedLocalRequestsStatus struct {
	Status report.RequestsStatus
}

type SetNumPendingRequests struct {
	Value uint64
}

type SetNumPendingResponses struct {
	Value uint64
}

type SetFriendStatus struct {
	Status report.FriendStatus
}

type SetNumPendingUserRequests struct {
	Value uint64
}

// UnknownFriend is a friend-level variant this build does not recognize.
type UnknownFriend struct {
	Tag uint64
}

func (SetName) friendMutation()                      {}
func (SetRemoteRelays) friendMutation()              {}
func (SetLastSentRelays) friendMutation()            {}
func (SetSentLocalRelays) friendMutation()           {}
func (SetOptLastIncomingMoveToken) friendMutation()  {}
func (SetLiveness) friendMutation()                  {}
func (SetChannelStatus) friendMutation()             {}
func (TcMutation) friendMutation()                   {}
func (SetWantedRemoteMaxDebt) friendMutation()       {}
func (SetWantedLocalRequestsStatus) friendMutation() {}
func (SetNumPendingRequests) friendMutation()        {}
func (SetNumPendingResponses) friendMutation()       {}
func (SetFriendStatus) friendMutation()              {}
func (SetNumPendingUserRequests) friendMutation()    {}
func (UnknownFriend) friendMutation()                {}

// TcReportMutation changes a TcReport.
type TcReportMutation interface {
	tcMutation()
}

type SetDirection struct {
	Direction report.Direction
}

type SetBalance struct {
	Balance credit.I128
}

type SetLocalMaxDebt struct {
	Value credit.U128
}

type SetRemoteMaxDebt struct {
	Value credit.U128
}

type SetLocalPendingDebt struct {
	Value credit.U128
}

type SetRemotePendingDebt struct {
	Value credit.U128
}

type SetLocalRequestsStatus struct {
	Status report.RequestsStatus
}

type SetRemoteRequestsStatus struct {
	Status report.RequestsStatus
}

type SetNumLocalPendingRequests struct {
	Value uint64
}

type SetNumRemotePendingRequests struct {
	Value uint64
}

// UnknownTc is a channel-level variant this build does not recognize.
type UnknownTc struct {
	Tag uint64
}

func (SetDirection) tcMutation()                {}
func (SetBalance) tcMutation()                  {}
func (SetLocalMaxDebt) tcMutation()             {}
func (SetRemoteMaxDebt) tcMutation()            {}
func (SetLocalPendingDebt) tcMutation()         {}
func (SetRemotePendingDebt) tcMutation()        {}
func (SetLocalRequestsStatus) tcMutation()      {}
func (SetRemoteRequestsStatus) tcMutation()     {}
func (SetNumLocalPendingRequests) tcMutation()  {}
func (SetNumRemotePendingRequests) tcMutation() {}
func (UnknownTc) tcMutation()                   {}

// IndexClientReportMutation changes an IndexClientReport.
type IndexClientReportMutation interface {
	indexClientMutation()
}

type AddIndexServer struct {
	Server report.NamedIndexServerAddress
}

type RemoveIndexServer struct {
	PublicKey report.PublicKey
}

type SetConnectedServer struct {
	Server report.OptConnectedServer
}

// UnknownIndexClient is an index-client-level variant this build does not
// recognize.
type UnknownIndexClient struct {
	Tag uint64
}

func (AddIndexServer) indexClientMutation()     {}
func (RemoveIndexServer) indexClientMutation()  {}
func (SetConnectedServer) indexClientMutation() {}
func (UnknownIndexClient) indexClientMutation() {}

// Friend wraps a friend-level change into a node-level mutation.
func Friend(pk report.PublicKey, m FriendReportMutation) NodeReportMutation {
	return FunderMutation{Mutation: PkFriendReportMutation{FriendPublicKey: pk, Mutation: m}}
}

// Tc wraps a channel-level change into a node-level mutation.
func Tc(pk report.PublicKey, m TcReportMutation) NodeReportMutation {
	return Friend(pk, TcMutation{Mutation: m})
}

// Funder wraps a funder-level change into a node-level mutation.
func Funder(m FunderReportMutation) NodeReportMutation {
	return FunderMutation{Mutation: m}
}

// IndexClient wraps an index-client-level change into a node-level mutation.
func IndexClient(m IndexClientReportMutation) NodeReportMutation {
	return IndexClientMutation{Mutation: m}
}
