package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"nodemirror/mutation"
	"nodemirror/report"
)

// EncodeMutation returns the wire form of m. Unknown variants are written
// back with their tag and an empty body; a tag that is not a valid field
// number is ErrInvalidTag.
func EncodeMutation(m mutation.NodeReportMutation) ([]byte, error) {
	if tag, ok := unknownTag(m); ok && !validTag(tag) {
		return nil, fmt.Errorf("encode %s: %w: %d", mutation.Describe(m), ErrInvalidTag, tag)
	}
	return appendNodeMutation(nil, m), nil
}

func validTag(tag uint64) bool {
	return tag >= uint64(protowire.MinValidNumber) && tag <= uint64(protowire.MaxValidNumber)
}

// unknownTag returns the tag of the Unknown variant m ends in, if any.
func unknownTag(m mutation.NodeReportMutation) (uint64, bool) {
	switch x := m.(type) {
	case mutation.UnknownNode:
		return x.Tag, true
	case mutation.IndexClientMutation:
		if u, ok := x.Mutation.(mutation.UnknownIndexClient); ok {
			return u.Tag, true
		}
	case mutation.FunderMutation:
		switch f := x.Mutation.(type) {
		case mutation.UnknownFunder:
			return f.Tag, true
		case mutation.PkFriendReportMutation:
			switch fr := f.Mutation.(type) {
			case mutation.UnknownFriend:
				return fr.Tag, true
			case mutation.TcMutation:
				if u, ok := fr.Mutation.(mutation.UnknownTc); ok {
					return u.Tag, true
				}
			}
		}
	}
	return 0, false
}

// DecodeMutation parses a single mutation. Unrecognized discriminants decode
// to the Unknown variant of their level; a malformed payload is an error.
func DecodeMutation(b []byte) (mutation.NodeReportMutation, error) {
	m, err := decodeNodeMutation(b)
	if err != nil {
		return nil, fmt.Errorf("decode mutation: %w", err)
	}
	return m, nil
}

func appendNodeMutation(b []byte, m mutation.NodeReportMutation) []byte {
	switch x := m.(type) {
	case mutation.FunderMutation:
		return appendBytes(b, mutFunder, appendFunderMutation(nil, x.Mutation))
	case mutation.IndexClientMutation:
		return appendBytes(b, mutIndexClient, appendIndexClientMutation(nil, x.Mutation))
	case mutation.UnknownNode:
		return appendBytes(b, protowire.Number(x.Tag), nil)
	default:
		return b
	}
}

func decodeNodeMutation(b []byte) (mutation.NodeReportMutation, error) {
	arm, err := oneField(b)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case mutFunder:
		body, err := arm.bytes()
		if err != nil {
			return nil, err
		}
		fm, err := decodeFunderMutation(body)
		if err != nil {
			return nil, err
		}
		return mutation.FunderMutation{Mutation: fm}, nil
	case mutIndexClient:
		body, err := arm.bytes()
		if err != nil {
			return nil, err
		}
		im, err := decodeIndexClientMutation(body)
		if err != nil {
			return nil, err
		}
		return mutation.IndexClientMutation{Mutation: im}, nil
	default:
		return mutation.UnknownNode{Tag: uint64(arm.num)}, nil
	}
}

func appendFunderMutation(b []byte, m mutation.FunderReportMutation) []byte {
	switch x := m.(type) {
	case mutation.AddRelay:
		return appendNamedAddress(b, mutAddRelay, x.Relay.PublicKey, x.Relay.Address, x.Relay.Name)
	case mutation.RemoveRelay:
		return appendBytes(b, mutRemoveRelay, x.PublicKey[:])
	case mutation.AddFriend:
		return appendFriendEntry(b, mutAddFriend, x.FriendPublicKey, x.Report)
	case mutation.RemoveFriend:
		return appendBytes(b, mutRemoveFriend, x.FriendPublicKey[:])
	case mutation.PkFriendReportMutation:
		body := appendBytes(nil, entryPublicKey, x.FriendPublicKey[:])
		body = appendBytes(body, entryValue, appendFriendMutation(nil, x.Mutation))
		return appendBytes(b, mutPkFriend, body)
	case mutation.SetNumReadyReceipts:
		return appendArmVarint(b, mutSetNumReadyReceipts, x.Value)
	case mutation.UnknownFunder:
		return appendBytes(b, protowire.Number(x.Tag), nil)
	default:
		return b
	}
}

func decodeFunderMutation(b []byte) (mutation.FunderReportMutation, error) {
	arm, err := oneField(b)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case mutAddRelay:
		pk, address, name, err := decodeAddress(arm)
		if err != nil {
			return nil, err
		}
		return mutation.AddRelay{Relay: report.NamedRelayAddress{PublicKey: pk, Address: address, Name: name}}, nil
	case mutRemoveRelay:
		pk, err := arm.publicKey()
		return mutation.RemoveRelay{PublicKey: pk}, err
	case mutAddFriend:
		pk, fr, err := decodeFriendEntry(arm)
		return mutation.AddFriend{FriendPublicKey: pk, Report: fr}, err
	case mutRemoveFriend:
		pk, err := arm.publicKey()
		return mutation.RemoveFriend{FriendPublicKey: pk}, err
	case mutPkFriend:
		return decodePkFriendMutation(arm)
	case mutSetNumReadyReceipts:
		v, err := arm.varint()
		return mutation.SetNumReadyReceipts{Value: v}, err
	default:
		return mutation.UnknownFunder{Tag: uint64(arm.num)}, nil
	}
}

func decodePkFriendMutation(f field) (mutation.FunderReportMutation, error) {
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	var out mutation.PkFriendReportMutation
	for _, pf := range fields {
		switch pf.num {
		case entryPublicKey:
			out.FriendPublicKey, err = pf.publicKey()
		case entryValue:
			var mb []byte
			if mb, err = pf.bytes(); err == nil {
				out.Mutation, err = decodeFriendMutation(mb)
			}
		}
		if err != nil {
			return nil, err
		}
	}
	if out.Mutation == nil {
		return nil, fmt.Errorf("%w: friend mutation missing", ErrMalformedUnion)
	}
	return out, nil
}

func appendFriendMutation(b []byte, m mutation.FriendReportMutation) []byte {
	switch x := m.(type) {
	case mutation.SetName:
		b = protowire.AppendTag(b, mutSetName, protowire.BytesType)
		return protowire.AppendString(b, x.Name)
	case mutation.SetRemoteRelays:
		return appendRelayList(b, mutSetRemoteRelays, x.Relays)
	case mutation.SetLastSentRelays:
		return appendRelayList(b, mutSetLastSentRelays, x.Relays)
	case mutation.SetSentLocalRelays:
		return appendSentLocalRelays(b, mutSetSentLocalRelays, x.Report)
	case mutation.SetOptLastIncomingMoveToken:
		return appendMoveToken(b, mutSetOptLastIncomingMoveToken, x.Value)
	case mutation.SetLiveness:
		return appendArmVarint(b, mutSetLiveness, uint64(x.Liveness))
	case mutation.SetChannelStatus:
		return appendChannelStatus(b, mutSetChannelStatus, x.Status)
	case mutation.TcMutation:
		return appendBytes(b, mutTc, appendTcMutation(nil, x.Mutation))
	case mutation.SetWantedRemoteMaxDebt:
		return appendU128(b, mutSetWantedRemoteMaxDebt, x.Value)
	case mutation.SetWantedLocalRequestsStatus:
		return appendArmVarint(b, mutSetWantedLocalRequestsStatus, uint64(x.Status))
	case mutation.SetNumPendingRequests:
		return appendArmVarint(b, mutSetNumPendingRequests, x.Value)
	case mutation.SetNumPendingResponses:
		return appendArmVarint(b, mutSetNumPendingResponses, x.Value)
	case mutation.SetFriendStatus:
		return appendArmVarint(b, mutSetFriendStatus, uint64(x.Status))
	case mutation.SetNumPendingUserRequests:
		return appendArmVarint(b, mutSetNumPendingUserRequests, x.Value)
	case mutation.UnknownFriend:
		return appendBytes(b, protowire.Number(x.Tag), nil)
	default:
		return b
	}
}

func decodeFriendMutation(b []byte) (mutation.FriendReportMutation, error) {
	arm, err := oneField(b)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case mutSetName:
		v, err := arm.bytes()
		return mutation.SetName{Name: string(v)}, err
	case mutSetRemoteRelays:
		relays, err := decodeRelayList(arm)
		return mutation.SetRemoteRelays{Relays: relays}, err
	case mutSetLastSentRelays:
		relays, err := decodeRelayList(arm)
		return mutation.SetLastSentRelays{Relays: relays}, err
	case mutSetSentLocalRelays:
		s, err := decodeSentLocalRelays(arm)
		return mutation.SetSentLocalRelays{Report: s}, err
	case mutSetOptLastIncomingMoveToken:
		v, err := decodeMoveToken(arm)
		return mutation.SetOptLastIncomingMoveToken{Value: v}, err
	case mutSetLiveness:
		v, err := decodeEnum[report.Liveness](arm)
		return mutation.SetLiveness{Liveness: v}, err
	case mutSetChannelStatus:
		s, err := decodeChannelStatus(arm)
		return mutation.SetChannelStatus{Status: s}, err
	case mutTc:
		body, err := arm.bytes()
		if err != nil {
			return nil, err
		}
		tm, err := decodeTcMutation(body)
		if err != nil {
			return nil, err
		}
		return mutation.TcMutation{Mutation: tm}, nil
	case mutSetWantedRemoteMaxDebt:
		v, err := decodeU128(arm)
		return mutation.SetWantedRemoteMaxDebt{Value: v}, err
	case mutSetWantedLocalRequestsStatus:
		v, err := decodeEnum[report.RequestsStatus](arm)
		return mutation.SetWantedLocalRequestsStatus{Status: v}, err
	case mutSetNumPendingRequests:
		v, err := arm.varint()
		return mutation.SetNumPendingRequests{Value: v}, err
	case mutSetNumPendingResponses:
		v, err := arm.varint()
		return mutation.SetNumPendingResponses{Value: v}, err
	case mutSetFriendStatus:
		v, err := decodeEnum[report.FriendStatus](arm)
		return mutation.SetFriendStatus{Status: v}, err
	case mutSetNumPendingUserRequests:
		v, err := arm.varint()
		return mutation.SetNumPendingUserRequests{Value: v}, err
	default:
		return mutation.UnknownFriend{Tag: uint64(arm.num)}, nil
	}
}

func appendTcMutation(b []byte, m mutation.TcReportMutation) []byte {
	switch x := m.(type) {
	case mutation.SetDirection:
		return appendArmVarint(b, mutSetDirection, uint64(x.Direction))
	case mutation.SetBalance:
		return appendI128(b, mutSetBalance, x.Balance)
	case mutation.SetLocalMaxDebt:
		return appendU128(b, mutSetLocalMaxDebt, x.Value)
	case mutation.SetRemoteMaxDebt:
		return appendU128(b, mutSetRemoteMaxDebt, x.Value)
	case mutation.SetLocalPendingDebt:
		return appendU128(b, mutSetLocalPendingDebt, x.Value)
	case mutation.SetRemotePendingDebt:
		return appendU128(b, mutSetRemotePendingDebt, x.Value)
	case mutation.SetLocalRequestsStatus:
		return appendArmVarint(b, mutSetLocalRequestsStatus, uint64(x.Status))
	case mutation.SetRemoteRequestsStatus:
		return appendArmVarint(b, mutSetRemoteRequestsStatus, uint64(x.Status))
	case mutation.SetNumLocalPendingRequests:
		return appendArmVarint(b, mutSetNumLocalPendingRequests, x.Value)
	case mutation.SetNumRemotePendingRequests:
		return appendArmVarint(b, mutSetNumRemotePendingRequests, x.Value)
	case mutation.UnknownTc:
		return appendBytes(b, protowire.Number(x.Tag), nil)
	default:
		return b
	}
}

func decodeTcMutation(b []byte) (mutation.TcReportMutation, error) {
	arm, err := oneField(b)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case mutSetDirection:
		v, err := decodeEnum[report.Direction](arm)
		return mutation.SetDirection{Direction: v}, err
	case mutSetBalance:
		v, err := decodeI128(arm)
		return mutation.SetBalance{Balance: v}, err
	case mutSetLocalMaxDebt:
		v, err := decodeU128(arm)
		return mutation.SetLocalMaxDebt{Value: v}, err
	case mutSetRemoteMaxDebt:
		v, err := decodeU128(arm)
		return mutation.SetRemoteMaxDebt{Value: v}, err
	case mutSetLocalPendingDebt:
		v, err := decodeU128(arm)
		return mutation.SetLocalPendingDebt{Value: v}, err
	case mutSetRemotePendingDebt:
		v, err := decodeU128(arm)
		return mutation.SetRemotePendingDebt{Value: v}, err
	case mutSetLocalRequestsStatus:
		v, err := decodeEnum[report.RequestsStatus](arm)
		return mutation.SetLocalRequestsStatus{Status: v}, err
	case mutSetRemoteRequestsStatus:
		v, err := decodeEnum[report.RequestsStatus](arm)
		return mutation.SetRemoteRequestsStatus{Status: v}, err
	case mutSetNumLocalPendingRequests:
		v, err := arm.varint()
		return mutation.SetNumLocalPendingRequests{Value: v}, err
	case mutSetNumRemotePendingRequests:
		v, err := arm.varint()
		return mutation.SetNumRemotePendingRequests{Value: v}, err
	default:
		return mutation.UnknownTc{Tag: uint64(arm.num)}, nil
	}
}

func appendIndexClientMutation(b []byte, m mutation.IndexClientReportMutation) []byte {
	switch x := m.(type) {
	case mutation.AddIndexServer:
		return appendNamedAddress(b, mutAddIndexServer, x.Server.PublicKey, x.Server.Address, x.Server.Name)
	case mutation.RemoveIndexServer:
		return appendBytes(b, mutRemoveIndexServer, x.PublicKey[:])
	case mutation.SetConnectedServer:
		return appendOptConnected(b, mutSetConnectedServer, x.Server)
	case mutation.UnknownIndexClient:
		return appendBytes(b, protowire.Number(x.Tag), nil)
	default:
		return b
	}
}

func decodeIndexClientMutation(b []byte) (mutation.IndexClientReportMutation, error) {
	arm, err := oneField(b)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case mutAddIndexServer:
		pk, address, name, err := decodeAddress(arm)
		if err != nil {
			return nil, err
		}
		return mutation.AddIndexServer{Server: report.NamedIndexServerAddress{PublicKey: pk, Address: address, Name: name}}, nil
	case mutRemoveIndexServer:
		pk, err := arm.publicKey()
		return mutation.RemoveIndexServer{PublicKey: pk}, err
	case mutSetConnectedServer:
		s, err := decodeOptConnected(arm)
		return mutation.SetConnectedServer{Server: s}, err
	default:
		return mutation.UnknownIndexClient{Tag: uint64(arm.num)}, nil
	}
}
