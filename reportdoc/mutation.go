package reportdoc

import (
	"fmt"
	"strconv"
	"strings"

	"nodemirror/credit"
	"nodemirror/mutation"
	"nodemirror/report"
)

// Mutation is the document form of a mutation. Op is the dotted variant
// name as printed by mutation.Describe, with unknown variants written as
// "<level>.unknown" and their tag in Tag. Key addresses the friend, relay or
// index server; Value carries scalar payloads.
type Mutation struct {
	Op              string        `yaml:"op" json:"op"`
	Key             string        `yaml:"key,omitempty" json:"key,omitempty"`
	Value           string        `yaml:"value,omitempty" json:"value,omitempty"`
	Address         *NamedAddress `yaml:"address,omitempty" json:"address,omitempty"`
	Relays          []Address     `yaml:"relays,omitempty" json:"relays,omitempty"`
	Friend          *Friend       `yaml:"friend,omitempty" json:"friend,omitempty"`
	SentLocalRelays *SentRelays   `yaml:"sentLocalRelays,omitempty" json:"sentLocalRelays,omitempty"`
	MoveToken       *MoveToken    `yaml:"moveToken,omitempty" json:"moveToken,omitempty"`
	Channel         *Channel      `yaml:"channel,omitempty" json:"channel,omitempty"`
	Tag             uint64        `yaml:"tag,omitempty" json:"tag,omitempty"`
}

// FromMutation converts m to its document form.
func FromMutation(m mutation.NodeReportMutation) (Mutation, error) {
	switch x := m.(type) {
	case mutation.FunderMutation:
		return fromFunder(x.Mutation)
	case mutation.IndexClientMutation:
		return fromIndexClient(x.Mutation)
	case mutation.UnknownNode:
		return Mutation{Op: "unknown", Tag: x.Tag}, nil
	default:
		return Mutation{}, fmt.Errorf("malformed mutation %T", m)
	}
}

func fromFunder(m mutation.FunderReportMutation) (Mutation, error) {
	switch x := m.(type) {
	case mutation.AddRelay:
		return Mutation{Op: "funder.addRelay", Address: &NamedAddress{PublicKey: FormatKey(x.Relay.PublicKey), Address: x.Relay.Address, Name: x.Relay.Name}}, nil
	case mutation.RemoveRelay:
		return Mutation{Op: "funder.removeRelay", Key: FormatKey(x.PublicKey)}, nil
	case mutation.AddFriend:
		f := FromFriend(x.FriendPublicKey, x.Report)
		f.PublicKey = ""
		return Mutation{Op: "funder.addFriend", Key: FormatKey(x.FriendPublicKey), Friend: &f}, nil
	case mutation.RemoveFriend:
		return Mutation{Op: "funder.removeFriend", Key: FormatKey(x.FriendPublicKey)}, nil
	case mutation.PkFriendReportMutation:
		d, err := fromFriendMutation(x.Mutation)
		d.Key = FormatKey(x.FriendPublicKey)
		return d, err
	case mutation.SetNumReadyReceipts:
		return Mutation{Op: "funder.setNumReadyReceipts", Value: strconv.FormatUint(x.Value, 10)}, nil
	case mutation.UnknownFunder:
		return Mutation{Op: "funder.unknown", Tag: x.Tag}, nil
	default:
		return Mutation{}, fmt.Errorf("malformed funder mutation %T", m)
	}
}

func fromFriendMutation(m mutation.FriendReportMutation) (Mutation, error) {
	const p = "funder.friend."
	u := func(v uint64) string { return strconv.FormatUint(v, 10) }
	switch x := m.(type) {
	case mutation.SetName:
		return Mutation{Op: p + "setName", Value: x.Name}, nil
	case mutation.SetRemoteRelays:
		return Mutation{Op: p + "setRemoteRelays", Relays: FromAddresses(x.Relays)}, nil
	case mutation.SetLastSentRelays:
		return Mutation{Op: p + "setLastSentRelays", Relays: FromAddresses(x.Relays)}, nil
	case mutation.SetSentLocalRelays:
		s := FromSentRelays(x.Report)
		return Mutation{Op: p + "setSentLocalRelays", SentLocalRelays: &s}, nil
	case mutation.SetOptLastIncomingMoveToken:
		return Mutation{Op: p + "setOptLastIncomingMoveToken", MoveToken: fromMoveToken(x.Value)}, nil
	case mutation.SetLiveness:
		return Mutation{Op: p + "setLiveness", Value: x.Liveness.String()}, nil
	case mutation.SetChannelStatus:
		c := FromChannel(x.Status)
		return Mutation{Op: p + "setChannelStatus", Channel: &c}, nil
	case mutation.TcMutation:
		return fromTcMutation(x.Mutation)
	case mutation.SetWantedRemoteMaxDebt:
		return Mutation{Op: p + "setWantedRemoteMaxDebt", Value: x.Value.String()}, nil
	case mutation.SetWantedLocalRequestsStatus:
		return Mutation{Op: p + "setWantedLocalRequestsStatus", Value: x.Status.String()}, nil
	case mutation.SetNumPendingRequests:
		return Mutation{Op: p + "setNumPendingRequests", Value: u(x.Value)}, nil
	case mutation.SetNumPendingResponses:
		return Mutation{Op: p + "setNumPendingResponses", Value: u(x.Value)}, nil
	case mutation.SetFriendStatus:
		return Mutation{Op: p + "setFriendStatus", Value: x.Status.String()}, nil
	case mutation.SetNumPendingUserRequests:
		return Mutation{Op: p + "setNumPendingUserRequests", Value: u(x.Value)}, nil
	case mutation.UnknownFriend:
		return Mutation{Op: p + "unknown", Tag: x.Tag}, nil
	default:
		return Mutation{}, fmt.Errorf("malformed friend mutation %T", m)
	}
}

func fromTcMutation(m mutation.TcReportMutation) (Mutation, error) {
	const p = "funder.friend.tc."
	switch x := m.(type) {
	case mutation.SetDirection:
		return Mutation{Op: p + "setDirection", Value: x.Direction.String()}, nil
	case mutation.SetBalance:
		return Mutation{Op: p + "setBalance", Value: x.Balance.String()}, nil
	case mutation.SetLocalMaxDebt:
		return Mutation{Op: p + "setLocalMaxDebt", Value: x.Value.String()}, nil
	case mutation.SetRemoteMaxDebt:
		return Mutation{Op: p + "setRemoteMaxDebt", Value: x.Value.String()}, nil
	case mutation.SetLocalPendingDebt:
		return Mutation{Op: p + "setLocalPendingDebt", Value: x.Value.String()}, nil
	case mutation.SetRemotePendingDebt:
		return Mutation{Op: p + "setRemotePendingDebt", Value: x.Value.String()}, nil
	case mutation.SetLocalRequestsStatus:
		return Mutation{Op: p + "setLocalRequestsStatus", Value: x.Status.String()}, nil
	case mutation.SetRemoteRequestsStatus:
		return Mutation{Op: p + "setRemoteRequestsStatus", Value: x.Status.String()}, nil
	case mutation.SetNumLocalPendingRequests:
		return Mutation{Op: p + "setNumLocalPendingRequests", Value: strconv.FormatUint(x.Value, 10)}, nil
	case mutation.SetNumRemotePendingRequests:
		return Mutation{Op: p + "setNumRemotePendingRequests", Value: strconv.FormatUint(x.Value, 10)}, nil
	case mutation.UnknownTc:
		return Mutation{Op: p + "unknown", Tag: x.Tag}, nil
	default:
		return Mutation{}, fmt.Errorf("malformed token channel mutation %T", m)
	}
}

func fromIndexClient(m mutation.IndexClientReportMutation) (Mutation, error) {
	switch x := m.(type) {
	case mutation.AddIndexServer:
		return Mutation{Op: "indexClient.addIndexServer", Address: &NamedAddress{PublicKey: FormatKey(x.Server.PublicKey), Address: x.Server.Address, Name: x.Server.Name}}, nil
	case mutation.RemoveIndexServer:
		return Mutation{Op: "indexClient.removeIndexServer", Key: FormatKey(x.PublicKey)}, nil
	case mutation.SetConnectedServer:
		d := Mutation{Op: "indexClient.setConnectedServer"}
		if c, ok := x.Server.(report.ConnectedServer); ok {
			d.Key = FormatKey(c.PublicKey)
		}
		return d, nil
	case mutation.UnknownIndexClient:
		return Mutation{Op: "indexClient.unknown", Tag: x.Tag}, nil
	default:
		return Mutation{}, fmt.Errorf("malformed index client mutation %T", m)
	}
}

// ToMutation converts a document mutation.
func (d Mutation) ToMutation() (mutation.NodeReportMutation, error) {
	m, err := d.toMutation()
	if err != nil {
		return nil, fmt.Errorf("mutation %s: %w", d.Op, err)
	}
	return m, nil
}

func (d Mutation) key() (report.PublicKey, error) {
	if d.Key == "" {
		return report.PublicKey{}, fmt.Errorf("key missing")
	}
	return ParseKey(d.Key)
}

func (d Mutation) address() (report.PublicKey, NamedAddress, error) {
	if d.Address == nil {
		return report.PublicKey{}, NamedAddress{}, fmt.Errorf("address missing")
	}
	pk, err := ParseKey(d.Address.PublicKey)
	return pk, *d.Address, err
}

func (d Mutation) uint() (uint64, error) { return strconv.ParseUint(d.Value, 10, 64) }

func (d Mutation) toMutation() (mutation.NodeReportMutation, error) {
	switch d.Op {
	case "unknown":
		return mutation.UnknownNode{Tag: d.Tag}, nil
	case "funder.unknown":
		return mutation.Funder(mutation.UnknownFunder{Tag: d.Tag}), nil
	case "funder.addRelay":
		pk, a, err := d.address()
		return mutation.Funder(mutation.AddRelay{Relay: report.NamedRelayAddress{PublicKey: pk, Address: a.Address, Name: a.Name}}), err
	case "funder.removeRelay":
		pk, err := d.key()
		return mutation.Funder(mutation.RemoveRelay{PublicKey: pk}), err
	case "funder.addFriend":
		pk, err := d.key()
		if err != nil {
			return nil, err
		}
		var f report.FriendReport
		if d.Friend == nil {
			f = report.NewFriendReport("")
		} else if f, err = d.Friend.ToFriend(); err != nil {
			return nil, err
		}
		return mutation.Funder(mutation.AddFriend{FriendPublicKey: pk, Report: f}), nil
	case "funder.removeFriend":
		pk, err := d.key()
		return mutation.Funder(mutation.RemoveFriend{FriendPublicKey: pk}), err
	case "funder.setNumReadyReceipts":
		v, err := d.uint()
		return mutation.Funder(mutation.SetNumReadyReceipts{Value: v}), err
	case "indexClient.unknown":
		return mutation.IndexClient(mutation.UnknownIndexClient{Tag: d.Tag}), nil
	case "indexClient.addIndexServer":
		pk, a, err := d.address()
		return mutation.IndexClient(mutation.AddIndexServer{Server: report.NamedIndexServerAddress{PublicKey: pk, Address: a.Address, Name: a.Name}}), err
	case "indexClient.removeIndexServer":
		pk, err := d.key()
		return mutation.IndexClient(mutation.RemoveIndexServer{PublicKey: pk}), err
	case "indexClient.setConnectedServer":
		if d.Key == "" {
			return mutation.IndexClient(mutation.SetConnectedServer{Server: report.NotConnected{}}), nil
		}
		pk, err := d.key()
		return mutation.IndexClient(mutation.SetConnectedServer{Server: report.ConnectedServer{PublicKey: pk}}), err
	}
	if !strings.HasPrefix(d.Op, "funder.friend.") {
		return nil, fmt.Errorf("unknown op")
	}

	pk, err := d.key()
	if err != nil {
		return nil, err
	}
	fm, err := d.friendMutation()
	if err != nil {
		return nil, err
	}
	return mutation.Friend(pk, fm), nil
}

func (d Mutation) friendMutation() (mutation.FriendReportMutation, error) {
	switch d.Op {
	case "funder.friend.unknown":
		return mutation.UnknownFriend{Tag: d.Tag}, nil
	case "funder.friend.setName":
		return mutation.SetName{Name: d.Value}, nil
	case "funder.friend.setRemoteRelays":
		relays, err := ToAddresses(d.Relays)
		return mutation.SetRemoteRelays{Relays: relays}, err
	case "funder.friend.setLastSentRelays":
		relays, err := ToAddresses(d.Relays)
		return mutation.SetLastSentRelays{Relays: relays}, err
	case "funder.friend.setSentLocalRelays":
		var s SentRelays
		if d.SentLocalRelays != nil {
			s = *d.SentLocalRelays
		}
		r, err := s.toReport()
		return mutation.SetSentLocalRelays{Report: r}, err
	case "funder.friend.setOptLastIncomingMoveToken":
		v, err := d.MoveToken.toReport()
		return mutation.SetOptLastIncomingMoveToken{Value: v}, err
	case "funder.friend.setLiveness":
		v, err := parseEnum[report.Liveness]("liveness", d.Value)
		return mutation.SetLiveness{Liveness: v}, err
	case "funder.friend.setChannelStatus":
		var c Channel
		if d.Channel != nil {
			c = *d.Channel
		}
		s, err := c.toReport()
		return mutation.SetChannelStatus{Status: s}, err
	case "funder.friend.setWantedRemoteMaxDebt":
		v, err := credit.ParseU128(d.Value)
		return mutation.SetWantedRemoteMaxDebt{Value: v}, err
	case "funder.friend.setWantedLocalRequestsStatus":
		v, err := parseEnum[report.RequestsStatus]("requests status", d.Value)
		return mutation.SetWantedLocalRequestsStatus{Status: v}, err
	case "funder.friend.setNumPendingRequests":
		v, err := d.uint()
		return mutation.SetNumPendingRequests{Value: v}, err
	case "funder.friend.setNumPendingResponses":
		v, err := d.uint()
		return mutation.SetNumPendingResponses{Value: v}, err
	case "funder.friend.setFriendStatus":
		v, err := parseEnum[report.FriendStatus]("friend status", d.Value)
		return mutation.SetFriendStatus{Status: v}, err
	case "funder.friend.setNumPendingUserRequests":
		v, err := d.uint()
		return mutation.SetNumPendingUserRequests{Value: v}, err
	}
	tm, err := d.tcMutation()
	if err != nil {
		return nil, err
	}
	return mutation.TcMutation{Mutation: tm}, nil
}

func (d Mutation) tcMutation() (mutation.TcReportMutation, error) {
	switch d.Op {
	case "funder.friend.tc.unknown":
		return mutation.UnknownTc{Tag: d.Tag}, nil
	case "funder.friend.tc.setDirection":
		v, err := parseEnum[report.Direction]("direction", d.Value)
		return mutation.SetDirection{Direction: v}, err
	case "funder.friend.tc.setBalance":
		v, err := credit.ParseI128(d.Value)
		return mutation.SetBalance{Balance: v}, err
	case "funder.friend.tc.setLocalMaxDebt":
		v, err := credit.ParseU128(d.Value)
		return mutation.SetLocalMaxDebt{Value: v}, err
	case "funder.friend.tc.setRemoteMaxDebt":
		v, err := credit.ParseU128(d.Value)
		return mutation.SetRemoteMaxDebt{Value: v}, err
	case "funder.friend.tc.setLocalPendingDebt":
		v, err := credit.ParseU128(d.Value)
		return mutation.SetLocalPendingDebt{Value: v}, err
	case "funder.friend.tc.setRemotePendingDebt":
		v, err := credit.ParseU128(d.Value)
		return mutation.SetRemotePendingDebt{Value: v}, err
	case "funder.friend.tc.setLocalRequestsStatus":
		v, err := parseEnum[report.RequestsStatus]("requests status", d.Value)
		return mutation.SetLocalRequestsStatus{Status: v}, err
	case "funder.friend.tc.setRemoteRequestsStatus":
		v, err := parseEnum[report.RequestsStatus]("requests status", d.Value)
		return mutation.SetRemoteRequestsStatus{Status: v}, err
	case "funder.friend.tc.setNumLocalPendingRequests":
		v, err := d.uint()
		return mutation.SetNumLocalPendingRequests{Value: v}, err
	case "funder.friend.tc.setNumRemotePendingRequests":
		v, err := d.uint()
		return mutation.SetNumRemotePendingRequests{Value: v}, err
	default:
		return nil, fmt.Errorf("unknown op")
	}
}
