package wire

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers. They are part of the wire contract: never renumber, only
// append.

const (
	amountHi protowire.Number = 1
	amountLo protowire.Number = 2
)

const (
	relayPublicKey protowire.Number = 1
	relayAddress   protowire.Number = 2
	relayName      protowire.Number = 3
)

// relay list message, also used by setRemoteRelays and setLastSentRelays
const relayListItem protowire.Number = 1

const (
	sentNeverSent  protowire.Number = 1
	sentLastSent   protowire.Number = 2
	sentTransition protowire.Number = 3

	transitionLastSent       protowire.Number = 1
	transitionBeforeLastSent protowire.Number = 2
)

const (
	tokenPrefixHash           protowire.Number = 1
	tokenLocalPublicKey       protowire.Number = 2
	tokenRemotePublicKey      protowire.Number = 3
	tokenInconsistencyCounter protowire.Number = 4
	tokenMoveTokenCounter     protowire.Number = 5
	tokenBalance              protowire.Number = 6
	tokenLocalPendingDebt     protowire.Number = 7
	tokenRemotePendingDebt    protowire.Number = 8
	tokenRandNonce            protowire.Number = 9
	tokenNewToken             protowire.Number = 10

	optTokenNone protowire.Number = 1
	optTokenSome protowire.Number = 2
)

const (
	balanceBalance           protowire.Number = 1
	balanceLocalMaxDebt      protowire.Number = 2
	balanceRemoteMaxDebt     protowire.Number = 3
	balanceLocalPendingDebt  protowire.Number = 4
	balanceRemotePendingDebt protowire.Number = 5

	requestsLocal  protowire.Number = 1
	requestsRemote protowire.Number = 2

	tcDirection                protowire.Number = 1
	tcBalance                  protowire.Number = 2
	tcRequestsStatus           protowire.Number = 3
	tcNumLocalPendingRequests  protowire.Number = 4
	tcNumRemotePendingRequests protowire.Number = 5
)

const (
	resetToken           protowire.Number = 1
	resetBalanceForReset protowire.Number = 2

	optResetNone protowire.Number = 1
	optResetSome protowire.Number = 2

	inconsistentLocalResetTermsBalance protowire.Number = 1
	inconsistentOptRemoteResetTerms    protowire.Number = 2

	channelConsistent   protowire.Number = 1
	channelInconsistent protowire.Number = 2
)

const (
	friendName                      protowire.Number = 1
	friendRemoteRelays              protowire.Number = 2
	friendSentLocalRelays           protowire.Number = 3
	friendOptLastIncomingMoveToken  protowire.Number = 4
	friendLiveness                  protowire.Number = 5
	friendChannelStatus             protowire.Number = 6
	friendWantedRemoteMaxDebt       protowire.Number = 7
	friendWantedLocalRequestsStatus protowire.Number = 8
	friendNumPendingRequests        protowire.Number = 9
	friendNumPendingResponses       protowire.Number = 10
	friendStatus                    protowire.Number = 11
	friendNumPendingUserRequests    protowire.Number = 12

	// keyed friend entry, also the body of addFriend
	entryPublicKey protowire.Number = 1
	entryValue     protowire.Number = 2
)

const (
	funderLocalPublicKey   protowire.Number = 1
	funderRelays           protowire.Number = 2
	funderFriends          protowire.Number = 3
	funderNumReadyReceipts protowire.Number = 4

	connectedNone protowire.Number = 1
	connectedSome protowire.Number = 2

	indexClientServers   protowire.Number = 1
	indexClientConnected protowire.Number = 2

	nodeFunder      protowire.Number = 1
	nodeIndexClient protowire.Number = 2
)

// Mutation discriminants.

const (
	mutFunder      protowire.Number = 1
	mutIndexClient protowire.Number = 2
)

const (
	mutAddRelay            protowire.Number = 1
	mutRemoveRelay         protowire.Number = 2
	mutAddFriend           protowire.Number = 3
	mutRemoveFriend        protowire.Number = 4
	mutPkFriend            protowire.Number = 5
	mutSetNumReadyReceipts protowire.Number = 6
)

const (
	mutSetName                      protowire.Number = 1
	mutSetRemoteRelays              protowire.Number = 2
	mutSetLastSentRelays            protowire.Number = 3
	mutSetSentLocalRelays           protowire.Number = 4
	mutSetOptLastIncomingMoveToken  protowire.Number = 5
	mutSetLiveness                  protowire.Number = 6
	mutSetChannelStatus             protowire.Number = 7
	mutTc                           protowire.Number = 8
	mutSetWantedRemoteMaxDebt       protowire.Number = 9
	mutSetWantedLocalRequestsStatus protowire.Number = 10
	mutSetNumPendingRequests        protowire.Number = 11
	mutSetNumPendingResponses       protowire.Number = 12
	mutSetFriendStatus              protowire.Number = 13
	mutSetNumPendingUserRequests    protowire.Number = 14
)

const (
	mutSetDirection                protowire.Number = 1
	mutSetBalance                  protowire.Number = 2
	mutSetLocalMaxDebt             protowire.Number = 3
	mutSetRemoteMaxDebt            protowire.Number = 4
	mutSetLocalPendingDebt         protowire.Number = 5
	mutSetRemotePendingDebt        protowire.Number = 6
	mutSetLocalRequestsStatus      protowire.Number = 7
	mutSetRemoteRequestsStatus     protowire.Number = 8
	mutSetNumLocalPendingRequests  protowire.Number = 9
	mutSetNumRemotePendingRequests protowire.Number = 10
)

const (
	mutAddIndexServer     protowire.Number = 1
	mutRemoveIndexServer  protowire.Number = 2
	mutSetConnectedServer protowire.Number = 3
)

const (
	envelopeSeq        protowire.Number = 1
	envelopeFullReport protowire.Number = 2
	envelopeMutations  protowire.Number = 3

	mutationListItem protowire.Number = 1
)
