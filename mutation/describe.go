package mutation

import "fmt"

// Describe returns a dotted name for the innermost variant of m, such as
// "funder.friend.tc.setLocalPendingDebt". Unrecognized variants carry their
// tag, as in "funder.unknown(12)".
func Describe(m NodeReportMutation) string { return describe(m, true) }

// Variant is Describe without tags. Its result belongs to a fixed set and is
// safe to use as a metric label.
func Variant(m NodeReportMutation) string { return describe(m, false) }

func unknownName(tag uint64, withTag bool) string {
	if !withTag {
		return "unknown"
	}
	return fmt.Sprintf("unknown(%d)", tag)
}

func describe(m NodeReportMutation, withTag bool) string {
	switch x := m.(type) {
	case FunderMutation:
		return "funder." + describeFunder(x.Mutation, withTag)
	case IndexClientMutation:
		return "indexClient." + describeIndexClient(x.Mutation, withTag)
	case UnknownNode:
		return unknownName(x.Tag, withTag)
	default:
		return "malformed"
	}
}

func describeFunder(m FunderReportMutation, withTag bool) string {
	switch x := m.(type) {
	case AddRelay:
		return "addRelay"
	case RemoveRelay:
		return "removeRelay"
	case AddFriend:
		return "addFriend"
	case RemoveFriend:
		return "removeFriend"
	case PkFriendReportMutation:
		return "friend." + describeFriend(x.Mutation, withTag)
	case SetNumReadyReceipts:
		return "setNumReadyReceipts"
	case UnknownFunder:
		return unknownName(x.Tag, withTag)
	default:
		return "malformed"
	}
}

func describeFriend(m FriendReportMutation, withTag bool) string {
	switch x := m.(type) {
	case SetName:
		return "setName"
	case SetRemoteRelays:
		return "setRemoteRelays"
	case SetLastSentRelays:
		return "setLastSentRelays"
	case SetSentLocalRelays:
		return "setSentLocalRelays"
	case SetOptLastIncomingMoveToken:
		return "setOptLastIncomingMoveToken"
	case SetLiveness:
		return "setLiveness"
	case SetChannelStatus:
		return "setChannelStatus"
	case TcMutation:
		return "tc." + describeTc(x.Mutation, withTag)
	case SetWantedRemoteMaxDebt:
		return "setWantedRemoteMaxDebt"
	case SetWantedLocalRequestsStatus:
		return "setWantedLocalRequestsStatus"
	case SetNumPendingRequests:
		return "setNumPendingRequests"
	case SetNumPendingResponses:
		return "setNumPendingResponses"
	case SetFriendStatus:
		return "setFriendStatus"
	case SetNumPendingUserRequests:
		return "setNumPendingUserRequests"
	case UnknownFriend:
		return unknownName(x.Tag, withTag)
	default:
		return "malformed"
	}
}

func describeTc(m TcReportMutation, withTag bool) string {
	switch x := m.(type) {
	case SetDirection:
		return "setDirection"
	case SetBalance:
		return "setBalance"
	case SetLocalMaxDebt:
		return "setLocalMaxDebt"
	case SetRemoteMaxDebt:
		return "setRemoteMaxDebt"
	case SetLocalPendingDebt:
		return "setLocalPendingDebt"
	case SetRemotePendingDebt:
		return "setRemotePendingDebt"
	case SetLocalRequestsStatus:
		return "setLocalRequestsStatus"
	case SetRemoteRequestsStatus:
		return "setRemoteRequestsStatus"
	case SetNumLocalPendingRequests:
		return "setNumLocalPendingRequests"
	case SetNumRemotePendingRequests:
		return "setNumRemotePendingRequests"
	case UnknownTc:
		return unknownName(x.Tag, withTag)
	default:
		return "malformed"
	}
}

func describeIndexClient(m IndexClientReportMutation, withTag bool) string {
	switch x := m.(type) {
	case AddIndexServer:
		return "addIndexServer"
	case RemoveIndexServer:
		return "removeIndexServer"
	case SetConnectedServer:
		return "setConnectedServer"
	case UnknownIndexClient:
		return unknownName(x.Tag, withTag)
	default:
		return "malformed"
	}
}

// Unrecognized reports whether m, at any nesting level, ends in an Unknown
// variant. The returned level names where it was found.
func Unrecognized(m NodeReportMutation) (level string, tag uint64, ok bool) {
	switch x := m.(type) {
	case UnknownNode:
		return "node", x.Tag, true
	case IndexClientMutation:
		if u, isUnknown := x.Mutation.(UnknownIndexClient); isUnknown {
			return "indexClient", u.Tag, true
		}
	case FunderMutation:
		switch f := x.Mutation.(type) {
		case UnknownFunder:
			return "funder", f.Tag, true
		case PkFriendReportMutation:
			switch fm := f.Mutation.(type) {
			case UnknownFriend:
				return "friend", fm.Tag, true
			case TcMutation:
				if u, isUnknown := fm.Mutation.(UnknownTc); isUnknown {
					return "tc", u.Tag, true
				}
			}
		}
	}
	return "", 0, false
}
