// Package reportdoc converts reports and mutations to and from a plain
// document form used by YAML fixtures and the JSON inspect API.
//
// Keys are hex strings. Shorter strings are padded with zero bytes on the
// right, so "0a" names the key whose first byte is 0x0a. Amounts are decimal
// strings and enums use their lower-case names.
package reportdoc

import (
	"encoding/hex"
	"fmt"
	"strings"

	"nodemirror/credit"
	"nodemirror/report"
)

type Address struct {
	PublicKey string `yaml:"publicKey" json:"publicKey"`
	Address   string `yaml:"address" json:"address"`
}

type NamedAddress struct {
	PublicKey string `yaml:"publicKey" json:"publicKey"`
	Address   string `yaml:"address" json:"address"`
	Name      string `yaml:"name,omitempty" json:"name"`
}

// SentRelays is the relay advertisement state. State is one of never, last,
// transition.
type SentRelays struct {
	State          string    `yaml:"state" json:"state"`
	LastSent       []Address `yaml:"lastSent,omitempty" json:"lastSent,omitempty"`
	BeforeLastSent []Address `yaml:"beforeLastSent,omitempty" json:"beforeLastSent,omitempty"`
}

type MoveToken struct {
	PrefixHash           string      `yaml:"prefixHash" json:"prefixHash"`
	LocalPublicKey       string      `yaml:"localPublicKey" json:"localPublicKey"`
	RemotePublicKey      string      `yaml:"remotePublicKey" json:"remotePublicKey"`
	InconsistencyCounter uint64      `yaml:"inconsistencyCounter" json:"inconsistencyCounter"`
	MoveTokenCounter     credit.U128 `yaml:"moveTokenCounter" json:"moveTokenCounter"`
	Balance              credit.I128 `yaml:"balance" json:"balance"`
	LocalPendingDebt     credit.U128 `yaml:"localPendingDebt" json:"localPendingDebt"`
	RemotePendingDebt    credit.U128 `yaml:"remotePendingDebt" json:"remotePendingDebt"`
	RandNonce            string      `yaml:"randNonce" json:"randNonce"`
	NewToken             string      `yaml:"newToken" json:"newToken"`
}

type TokenChannel struct {
	Direction                string      `yaml:"direction" json:"direction"`
	Balance                  credit.I128 `yaml:"balance" json:"balance"`
	LocalMaxDebt             credit.U128 `yaml:"localMaxDebt" json:"localMaxDebt"`
	RemoteMaxDebt            credit.U128 `yaml:"remoteMaxDebt" json:"remoteMaxDebt"`
	LocalPendingDebt         credit.U128 `yaml:"localPendingDebt" json:"localPendingDebt"`
	RemotePendingDebt        credit.U128 `yaml:"remotePendingDebt" json:"remotePendingDebt"`
	LocalRequestsStatus      string      `yaml:"localRequestsStatus" json:"localRequestsStatus"`
	RemoteRequestsStatus     string      `yaml:"remoteRequestsStatus" json:"remoteRequestsStatus"`
	NumLocalPendingRequests  uint64      `yaml:"numLocalPendingRequests" json:"numLocalPendingRequests"`
	NumRemotePendingRequests uint64      `yaml:"numRemotePendingRequests" json:"numRemotePendingRequests"`
}

type ResetTerms struct {
	ResetToken      string      `yaml:"resetToken" json:"resetToken"`
	BalanceForReset credit.I128 `yaml:"balanceForReset" json:"balanceForReset"`
}

type Inconsistent struct {
	LocalResetTermsBalance credit.I128 `yaml:"localResetTermsBalance" json:"localResetTermsBalance"`
	RemoteResetTerms       *ResetTerms `yaml:"remoteResetTerms,omitempty" json:"remoteResetTerms,omitempty"`
}

// Channel has exactly one of its fields set.
type Channel struct {
	Consistent   *TokenChannel `yaml:"consistent,omitempty" json:"consistent,omitempty"`
	Inconsistent *Inconsistent `yaml:"inconsistent,omitempty" json:"inconsistent,omitempty"`
}

type Friend struct {
	PublicKey                 string      `yaml:"publicKey,omitempty" json:"publicKey"`
	Name                      string      `yaml:"name" json:"name"`
	RemoteRelays              []Address   `yaml:"remoteRelays,omitempty" json:"remoteRelays"`
	SentLocalRelays           SentRelays  `yaml:"sentLocalRelays" json:"sentLocalRelays"`
	LastIncomingMoveToken     *MoveToken  `yaml:"lastIncomingMoveToken,omitempty" json:"lastIncomingMoveToken,omitempty"`
	Liveness                  string      `yaml:"liveness" json:"liveness"`
	Channel                   Channel     `yaml:"channel" json:"channel"`
	WantedRemoteMaxDebt       credit.U128 `yaml:"wantedRemoteMaxDebt" json:"wantedRemoteMaxDebt"`
	WantedLocalRequestsStatus string      `yaml:"wantedLocalRequestsStatus" json:"wantedLocalRequestsStatus"`
	NumPendingRequests        uint64      `yaml:"numPendingRequests,omitempty" json:"numPendingRequests"`
	NumPendingResponses       uint64      `yaml:"numPendingResponses,omitempty" json:"numPendingResponses"`
	Status                    string      `yaml:"status" json:"status"`
	NumPendingUserRequests    uint64      `yaml:"numPendingUserRequests,omitempty" json:"numPendingUserRequests"`
}

// Report is the document form of a node report. An empty ConnectedServer
// means not connected.
type Report struct {
	LocalPublicKey   string         `yaml:"localPublicKey" json:"localPublicKey"`
	Relays           []NamedAddress `yaml:"relays,omitempty" json:"relays"`
	Friends          []Friend       `yaml:"friends,omitempty" json:"friends"`
	NumReadyReceipts uint64         `yaml:"numReadyReceipts,omitempty" json:"numReadyReceipts"`
	IndexServers     []NamedAddress `yaml:"indexServers,omitempty" json:"indexServers"`
	ConnectedServer  string         `yaml:"connectedServer,omitempty" json:"connectedServer,omitempty"`
}

// ParseKey parses a possibly shortened hex key.
func ParseKey(s string) (report.PublicKey, error) {
	var pk report.PublicKey
	if err := parseFixed(pk[:], s); err != nil {
		return pk, fmt.Errorf("public key %q: %w", s, err)
	}
	return pk, nil
}

func parseFixed(dst []byte, s string) error {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	if len(raw) > len(dst) {
		return fmt.Errorf("%d bytes, at most %d", len(raw), len(dst))
	}
	clear(dst)
	copy(dst, raw)
	return nil
}

// FormatKey returns the full hex form of pk.
func FormatKey(pk report.PublicKey) string { return pk.String() }

type enum interface {
	~uint8
	String() string
	Valid() bool
}

func parseEnum[E enum](what, s string) (E, error) {
	for v := 0; v < 256; v++ {
		e := E(v)
		if !e.Valid() {
			break
		}
		if e.String() == s {
			return e, nil
		}
	}
	return 0, fmt.Errorf("unknown %s %q", what, s)
}

// FromAddresses converts relay addresses for display.
func FromAddresses(in []report.RelayAddress) []Address {
	var out []Address
	for _, a := range in {
		out = append(out, Address{PublicKey: FormatKey(a.PublicKey), Address: a.Address})
	}
	return out
}

// ToAddresses parses displayed relay addresses.
func ToAddresses(in []Address) ([]report.RelayAddress, error) {
	var out []report.RelayAddress
	for _, a := range in {
		pk, err := ParseKey(a.PublicKey)
		if err != nil {
			return nil, err
		}
		out = append(out, report.RelayAddress{PublicKey: pk, Address: a.Address})
	}
	return out, nil
}

// FromSentRelays converts an advertisement state.
func FromSentRelays(s report.SentLocalRelaysReport) SentRelays {
	switch x := s.(type) {
	case report.LastSent:
		return SentRelays{State: "last", LastSent: FromAddresses(x.Relays)}
	case report.Transition:
		return SentRelays{State: "transition", LastSent: FromAddresses(x.LastSent), BeforeLastSent: FromAddresses(x.BeforeLastSent)}
	default:
		return SentRelays{State: "never"}
	}
}

func (s SentRelays) toReport() (report.SentLocalRelaysReport, error) {
	last, err := ToAddresses(s.LastSent)
	if err != nil {
		return nil, err
	}
	before, err := ToAddresses(s.BeforeLastSent)
	if err != nil {
		return nil, err
	}
	switch s.State {
	case "", "never":
		return report.NeverSent{}, nil
	case "last":
		return report.LastSent{Relays: last}, nil
	case "transition":
		return report.Transition{LastSent: last, BeforeLastSent: before}, nil
	default:
		return nil, fmt.Errorf("unknown sent relays state %q", s.State)
	}
}

func fromMoveToken(opt report.OptLastIncomingMoveToken) *MoveToken {
	x, ok := opt.(report.LastIncomingMoveToken)
	if !ok {
		return nil
	}
	t := x.Token
	return &MoveToken{
		PrefixHash:           hex.EncodeToString(t.PrefixHash[:]),
		LocalPublicKey:       FormatKey(t.LocalPublicKey),
		RemotePublicKey:      FormatKey(t.RemotePublicKey),
		InconsistencyCounter: t.InconsistencyCounter,
		MoveTokenCounter:     t.MoveTokenCounter,
		Balance:              t.Balance,
		LocalPendingDebt:     t.LocalPendingDebt,
		RemotePendingDebt:    t.RemotePendingDebt,
		RandNonce:            hex.EncodeToString(t.RandNonce[:]),
		NewToken:             hex.EncodeToString(t.NewToken[:]),
	}
}

func (m *MoveToken) toReport() (report.OptLastIncomingMoveToken, error) {
	if m == nil {
		return report.NoMoveToken{}, nil
	}
	t := report.MoveTokenHashedReport{
		InconsistencyCounter: m.InconsistencyCounter,
		MoveTokenCounter:     m.MoveTokenCounter,
		Balance:              m.Balance,
		LocalPendingDebt:     m.LocalPendingDebt,
		RemotePendingDebt:    m.RemotePendingDebt,
	}
	for _, f := range []struct {
		dst  []byte
		src  string
		name string
	}{
		{t.PrefixHash[:], m.PrefixHash, "prefixHash"},
		{t.LocalPublicKey[:], m.LocalPublicKey, "localPublicKey"},
		{t.RemotePublicKey[:], m.RemotePublicKey, "remotePublicKey"},
		{t.RandNonce[:], m.RandNonce, "randNonce"},
		{t.NewToken[:], m.NewToken, "newToken"},
	} {
		if err := parseFixed(f.dst, f.src); err != nil {
			return nil, fmt.Errorf("move token %s: %w", f.name, err)
		}
	}
	return report.LastIncomingMoveToken{Token: t}, nil
}

// FromChannel converts a channel status.
func FromChannel(s report.ChannelStatusReport) Channel {
	switch x := s.(type) {
	case report.ChannelConsistent:
		tc := x.Tc
		return Channel{Consistent: &TokenChannel{
			Direction:                tc.Direction.String(),
			Balance:                  tc.Balance.Balance,
			LocalMaxDebt:             tc.Balance.LocalMaxDebt,
			RemoteMaxDebt:            tc.Balance.RemoteMaxDebt,
			LocalPendingDebt:         tc.Balance.LocalPendingDebt,
			RemotePendingDebt:        tc.Balance.RemotePendingDebt,
			LocalRequestsStatus:      tc.RequestsStatus.Local.String(),
			RemoteRequestsStatus:     tc.RequestsStatus.Remote.String(),
			NumLocalPendingRequests:  tc.NumLocalPendingRequests,
			NumRemotePendingRequests: tc.NumRemotePendingRequests,
		}}
	case report.ChannelInconsistent:
		inc := &Inconsistent{LocalResetTermsBalance: x.Report.LocalResetTermsBalance}
		if terms, ok := x.Report.OptRemoteResetTerms.(report.RemoteResetTerms); ok {
			inc.RemoteResetTerms = &ResetTerms{
				ResetToken:      hex.EncodeToString(terms.Terms.ResetToken[:]),
				BalanceForReset: terms.Terms.BalanceForReset,
			}
		}
		return Channel{Inconsistent: inc}
	default:
		return Channel{}
	}
}

func (c Channel) toReport() (report.ChannelStatusReport, error) {
	switch {
	case c.Consistent != nil && c.Inconsistent != nil:
		return nil, fmt.Errorf("channel is both consistent and inconsistent")
	case c.Inconsistent != nil:
		inc := report.ChannelInconsistentReport{
			LocalResetTermsBalance: c.Inconsistent.LocalResetTermsBalance,
			OptRemoteResetTerms:    report.NoResetTerms{},
		}
		if rt := c.Inconsistent.RemoteResetTerms; rt != nil {
			terms := report.ResetTermsReport{BalanceForReset: rt.BalanceForReset}
			if err := parseFixed(terms.ResetToken[:], rt.ResetToken); err != nil {
				return nil, fmt.Errorf("reset token: %w", err)
			}
			inc.OptRemoteResetTerms = report.RemoteResetTerms{Terms: terms}
		}
		return report.ChannelInconsistent{Report: inc}, nil
	case c.Consistent != nil:
		d := c.Consistent
		tc := report.TcReport{
			Balance: report.McBalanceReport{
				Balance:           d.Balance,
				LocalMaxDebt:      d.LocalMaxDebt,
				RemoteMaxDebt:     d.RemoteMaxDebt,
				LocalPendingDebt:  d.LocalPendingDebt,
				RemotePendingDebt: d.RemotePendingDebt,
			},
			NumLocalPendingRequests:  d.NumLocalPendingRequests,
			NumRemotePendingRequests: d.NumRemotePendingRequests,
		}
		var err error
		if tc.Direction, err = parseEnum[report.Direction]("direction", orDefault(d.Direction, "incoming")); err != nil {
			return nil, err
		}
		if tc.RequestsStatus.Local, err = parseEnum[report.RequestsStatus]("requests status", orDefault(d.LocalRequestsStatus, "closed")); err != nil {
			return nil, err
		}
		if tc.RequestsStatus.Remote, err = parseEnum[report.RequestsStatus]("requests status", orDefault(d.RemoteRequestsStatus, "closed")); err != nil {
			return nil, err
		}
		return report.ChannelConsistent{Tc: tc}, nil
	default:
		return report.ChannelConsistent{}, nil
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// FromFriend converts one friend.
func FromFriend(pk report.PublicKey, f report.FriendReport) Friend {
	return Friend{
		PublicKey:                 FormatKey(pk),
		Name:                      f.Name,
		RemoteRelays:              FromAddresses(f.RemoteRelays),
		SentLocalRelays:           FromSentRelays(f.SentLocalRelays),
		LastIncomingMoveToken:     fromMoveToken(f.OptLastIncomingMoveToken),
		Liveness:                  f.Liveness.String(),
		Channel:                   FromChannel(f.ChannelStatus),
		WantedRemoteMaxDebt:       f.WantedRemoteMaxDebt,
		WantedLocalRequestsStatus: f.WantedLocalRequestsStatus.String(),
		NumPendingRequests:        f.NumPendingRequests,
		NumPendingResponses:       f.NumPendingResponses,
		Status:                    f.Status.String(),
		NumPendingUserRequests:    f.NumPendingUserRequests,
	}
}

// ToFriend converts a document friend. Omitted enums take the values of a
// freshly added friend.
func (d Friend) ToFriend() (report.FriendReport, error) {
	f := report.FriendReport{
		Name:                   d.Name,
		WantedRemoteMaxDebt:    d.WantedRemoteMaxDebt,
		NumPendingRequests:     d.NumPendingRequests,
		NumPendingResponses:    d.NumPendingResponses,
		NumPendingUserRequests: d.NumPendingUserRequests,
	}
	var err error
	if f.RemoteRelays, err = ToAddresses(d.RemoteRelays); err != nil {
		return f, err
	}
	if f.SentLocalRelays, err = d.SentLocalRelays.toReport(); err != nil {
		return f, err
	}
	if f.OptLastIncomingMoveToken, err = d.LastIncomingMoveToken.toReport(); err != nil {
		return f, err
	}
	if f.ChannelStatus, err = d.Channel.toReport(); err != nil {
		return f, err
	}
	if f.Liveness, err = parseEnum[report.Liveness]("liveness", orDefault(d.Liveness, "offline")); err != nil {
		return f, err
	}
	if f.WantedLocalRequestsStatus, err = parseEnum[report.RequestsStatus]("requests status", orDefault(d.WantedLocalRequestsStatus, "closed")); err != nil {
		return f, err
	}
	if f.Status, err = parseEnum[report.FriendStatus]("friend status", orDefault(d.Status, "disabled")); err != nil {
		return f, err
	}
	return f, nil
}

// FromReport converts a node report.
func FromReport(r report.NodeReport) Report {
	d := Report{
		LocalPublicKey:   FormatKey(r.Funder.LocalPublicKey),
		NumReadyReceipts: r.Funder.NumReadyReceipts,
	}
	for _, relay := range r.Funder.Relays {
		d.Relays = append(d.Relays, NamedAddress{PublicKey: FormatKey(relay.PublicKey), Address: relay.Address, Name: relay.Name})
	}
	for pk, f := range r.Funder.Friends.All() {
		d.Friends = append(d.Friends, FromFriend(pk, f))
	}
	for _, s := range r.IndexClient.IndexServers.All() {
		d.IndexServers = append(d.IndexServers, NamedAddress{PublicKey: FormatKey(s.PublicKey), Address: s.Address, Name: s.Name})
	}
	if c, ok := r.IndexClient.ConnectedServer.(report.ConnectedServer); ok {
		d.ConnectedServer = FormatKey(c.PublicKey)
	}
	return d
}

// ToReport converts a document report. Duplicate keys are rejected here,
// other invariants are left to report.Validate.
func (d Report) ToReport() (report.NodeReport, error) {
	local, err := ParseKey(d.LocalPublicKey)
	if err != nil {
		return report.NodeReport{}, err
	}
	r := report.NewNodeReport(local)
	r.Funder.NumReadyReceipts = d.NumReadyReceipts
	for _, relay := range d.Relays {
		pk, err := ParseKey(relay.PublicKey)
		if err != nil {
			return r, err
		}
		r.Funder.Relays = append(r.Funder.Relays, report.NamedRelayAddress{PublicKey: pk, Address: relay.Address, Name: relay.Name})
	}
	var friends report.KeyedBuilder[report.PublicKey, report.FriendReport]
	for _, df := range d.Friends {
		pk, err := ParseKey(df.PublicKey)
		if err != nil {
			return r, err
		}
		f, err := df.ToFriend()
		if err != nil {
			return r, fmt.Errorf("friend %s: %w", pk.Short(), err)
		}
		if !friends.Add(pk, f) {
			return r, fmt.Errorf("duplicate friend %s", pk.Short())
		}
	}
	r.Funder.Friends = friends.Keyed()
	var servers report.KeyedBuilder[report.PublicKey, report.NamedIndexServerAddress]
	for _, s := range d.IndexServers {
		server, err := toNamedServer(s)
		if err != nil {
			return r, err
		}
		if !servers.Add(server.PublicKey, server) {
			return r, fmt.Errorf("duplicate index server %s", server.PublicKey.Short())
		}
	}
	r.IndexClient.IndexServers = servers.Keyed()
	if d.ConnectedServer != "" {
		pk, err := ParseKey(d.ConnectedServer)
		if err != nil {
			return r, err
		}
		r.IndexClient.ConnectedServer = report.ConnectedServer{PublicKey: pk}
	}
	return r, nil
}

func toNamedServer(s NamedAddress) (report.NamedIndexServerAddress, error) {
	pk, err := ParseKey(s.PublicKey)
	return report.NamedIndexServerAddress{PublicKey: pk, Address: s.Address, Name: s.Name}, err
}
