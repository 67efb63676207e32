// Package report holds the full-snapshot model of a node's observable state.
//
// Reports are values. They are seeded once from a full snapshot and from then
// on only replaced by the mirror's apply engine; nothing outside that engine
// assigns to a published report.
package report

import (
	"nodemirror/credit"
)

// Direction of the token channel: who holds the token.
type Direction uint8

const (
	DirectionIncoming Direction = iota
	DirectionOutgoing
)

func (d Direction) String() string {
	switch d {
	case DirectionIncoming:
		return "incoming"
	case DirectionOutgoing:
		return "outgoing"
	default:
		return "unknown"
	}
}

// Valid reports whether d is a named value.
func (d Direction) Valid() bool { return d <= DirectionOutgoing }

// Liveness of a friend connection.
type Liveness uint8

const (
	LivenessOffline Liveness = iota
	LivenessOnline
)

func (l Liveness) String() string {
	switch l {
	case LivenessOffline:
		return "offline"
	case LivenessOnline:
		return "online"
	default:
		return "unknown"
	}
}

func (l Liveness) Valid() bool { return l <= LivenessOnline }

// RequestsStatus tells whether a side accepts incoming requests.
type RequestsStatus uint8

const (
	RequestsClosed RequestsStatus = iota
	RequestsOpen
)

func (s RequestsStatus) String() string {
	switch s {
	case RequestsClosed:
		return "closed"
	case RequestsOpen:
		return "open"
	default:
		return "unknown"
	}
}

func (s RequestsStatus) Valid() bool { return s <= RequestsOpen }

// FriendStatus is the local enable switch of a friend.
type FriendStatus uint8

const (
	FriendDisabled FriendStatus = iota
	FriendEnabled
)

func (s FriendStatus) String() string {
	switch s {
	case FriendDisabled:
		return "disabled"
	case FriendEnabled:
		return "enabled"
	default:
		return "unknown"
	}
}

func (s FriendStatus) Valid() bool { return s <= FriendEnabled }

// SentLocalRelaysReport records which local relay set was last advertised to
// a friend. Arms: NeverSent, LastSent, Transition.
type SentLocalRelaysReport interface {
	sentLocalRelays()
}

// NeverSent means no relay set was advertised yet.
type NeverSent struct{}

// LastSent holds the single advertised set that the friend acknowledged or
// that has no predecessor.
type LastSent struct {
	Relays []RelayAddress
}

// Transition holds the newest advertised set together with the one before it.
type Transition struct {
	LastSent       []RelayAddress
	BeforeLastSent []RelayAddress
}

func (NeverSent) sentLocalRelays()  {}
func (LastSent) sentLocalRelays()   {}
func (Transition) sentLocalRelays() {}

// MoveTokenHashedReport summarizes the last incoming move token. The hashes,
// nonce and signature are opaque.
type MoveTokenHashedReport struct {
	PrefixHash           HashResult
	LocalPublicKey       PublicKey
	RemotePublicKey      PublicKey
	InconsistencyCounter uint64
	MoveTokenCounter     credit.U128
	Balance              credit.I128
	LocalPendingDebt     credit.U128
	RemotePendingDebt    credit.U128
	RandNonce            RandValue
	NewToken             Signature
}

// OptLastIncomingMoveToken is either NoMoveToken or LastIncomingMoveToken.
type OptLastIncomingMoveToken interface {
	optMoveToken()
}

type NoMoveToken struct{}

type LastIncomingMoveToken struct {
	Token MoveTokenHashedReport
}

func (NoMoveToken) optMoveToken()           {}
func (LastIncomingMoveToken) optMoveToken() {}

// McBalanceReport is the mutual credit balance of a consistent channel.
type McBalanceReport struct {
	// Credits this side holds against the remote side.
	Balance           credit.I128
	LocalMaxDebt      credit.U128
	RemoteMaxDebt     credit.U128
	LocalPendingDebt  credit.U128
	RemotePendingDebt credit.U128
}

// TcRequestsStatus holds the request acceptance status of both sides.
type TcRequestsStatus struct {
	Local  RequestsStatus
	Remote RequestsStatus
}

// TcReport is the state of a consistent token channel.
type TcReport struct {
	Direction                Direction
	Balance                  McBalanceReport
	RequestsStatus           TcRequestsStatus
	NumLocalPendingRequests  uint64
	NumRemotePendingRequests uint64
}

// ResetTermsReport are the reset terms proposed by the remote side.
type ResetTermsReport struct {
	ResetToken      Signature
	BalanceForReset credit.I128
}

// OptRemoteResetTerms is either NoResetTerms or RemoteResetTerms.
type OptRemoteResetTerms interface {
	optResetTerms()
}

type NoResetTerms struct{}

type RemoteResetTerms struct {
	Terms ResetTermsReport
}

func (NoResetTerms) optResetTerms()     {}
func (RemoteResetTerms) optResetTerms() {}

// ChannelInconsistentReport describes a channel waiting for a reset.
type ChannelInconsistentReport struct {
	LocalResetTermsBalance credit.I128
	OptRemoteResetTerms    OptRemoteResetTerms
}

// ChannelStatusReport is either ChannelConsistent or ChannelInconsistent.
type ChannelStatusReport interface {
	channelStatus()
}

type ChannelConsistent struct {
	Tc TcReport
}

type ChannelInconsistent struct {
	Report ChannelInconsistentReport
}

func (ChannelConsistent) channelStatus()   {}
func (ChannelInconsistent) channelStatus() {}

// FriendReport is everything an observer can see about one friend.
type FriendReport struct {
	Name                      string
	RemoteRelays              []RelayAddress
	SentLocalRelays           SentLocalRelaysReport
	OptLastIncomingMoveToken  OptLastIncomingMoveToken
	Liveness                  Liveness
	ChannelStatus             ChannelStatusReport
	WantedRemoteMaxDebt       credit.U128
	WantedLocalRequestsStatus RequestsStatus
	NumPendingRequests        uint64
	NumPendingResponses       uint64
	Status                    FriendStatus
	NumPendingUserRequests    uint64
}

// FunderReport is the credit-channel half of a node report.
type FunderReport struct {
	LocalPublicKey   PublicKey
	Relays           []NamedRelayAddress
	Friends          Keyed[PublicKey, FriendReport]
	NumReadyReceipts uint64
}

// OptConnectedServer is either NotConnected or ConnectedServer.
type OptConnectedServer interface {
	optConnected()
}

type NotConnected struct{}

type ConnectedServer struct {
	PublicKey PublicKey
}

func (NotConnected) optConnected()    {}
func (ConnectedServer) optConnected() {}

// IndexClientReport is the index-server half of a node report.
type IndexClientReport struct {
	IndexServers    Keyed[PublicKey, NamedIndexServerAddress]
	ConnectedServer OptConnectedServer
}

// NodeReport is the full snapshot of a mirrored node session.
type NodeReport struct {
	Funder      FunderReport
	IndexClient IndexClientReport
}

// NewNodeReport returns an empty report for the given node identity.
func NewNodeReport(local PublicKey) NodeReport {
	return NodeReport{
		Funder: FunderReport{LocalPublicKey: local},
		IndexClient: IndexClientReport{
			ConnectedServer: NotConnected{},
		},
	}
}

// NewFriendReport returns the report of a freshly added friend: nothing sent,
// offline, disabled, with a zeroed consistent channel.
func NewFriendReport(name string) FriendReport {
	return FriendReport{
		Name:                     name,
		SentLocalRelays:          NeverSent{},
		OptLastIncomingMoveToken: NoMoveToken{},
		Liveness:                 LivenessOffline,
		ChannelStatus:            ChannelConsistent{},
		Status:                   FriendDisabled,
	}
}
