package report

import (
	"errors"
	"fmt"
	"strings"

	"nodemirror/credit"
)

// ErrMalformedUnion is reported when a union-typed field has no recognized
// arm set. Decoders return it for unknown discriminants in a report.
var ErrMalformedUnion = errors.New("report: malformed union")

// Violation is a single broken report invariant.
type Violation struct {
	Path   string
	Reason string
}

func (v Violation) String() string {
	return v.Path + ": " + v.Reason
}

// Violations is the result of a failed Validate call.
type Violations []Violation

func (vs Violations) Error() string {
	parts := make([]string, 0, len(vs))
	for _, v := range vs {
		parts = append(parts, v.String())
	}
	return "report: invariant violated: " + strings.Join(parts, "; ")
}

// Validate checks every report invariant. It returns nil or a Violations
// error listing everything that is wrong.
//
// The relation between a channel balance and its max debts is deliberately
// left unchecked; only pending debts are bounded.
func Validate(r NodeReport) error {
	var c checker
	c.funder(r.Funder)
	c.indexClient(r.IndexClient)
	if len(c.out) == 0 {
		return nil
	}
	return c.out
}

type checker struct {
	out Violations
}

func (c *checker) add(path, format string, args ...any) {
	c.out = append(c.out, Violation{Path: path, Reason: fmt.Sprintf(format, args...)})
}

func (c *checker) funder(f FunderReport) {
	seen := make(map[PublicKey]struct{}, len(f.Relays))
	for i, relay := range f.Relays {
		if _, dup := seen[relay.PublicKey]; dup {
			c.add(fmt.Sprintf("funder.relays[%d]", i), "duplicate relay %s", relay.PublicKey.Short())
		}
		seen[relay.PublicKey] = struct{}{}
	}
	if !f.Friends.consistent() {
		c.add("funder.friends", "friend keys are not unique")
	}
	for pk, friend := range f.Friends.All() {
		if pk == f.LocalPublicKey {
			c.add(friendPath(pk), "local public key listed as a friend")
		}
		c.friend(pk, friend)
	}
}

// friendPath is only built once a violation is found.
func friendPath(pk PublicKey) string {
	return "funder.friends[" + pk.Short() + "]"
}

func (c *checker) friend(pk PublicKey, f FriendReport) {
	switch s := f.SentLocalRelays.(type) {
	case NeverSent, LastSent, Transition:
	default:
		c.add(friendPath(pk)+".sentLocalRelays", "no arm set (%T)", s)
	}
	switch s := f.OptLastIncomingMoveToken.(type) {
	case NoMoveToken, LastIncomingMoveToken:
	default:
		c.add(friendPath(pk)+".optLastIncomingMoveToken", "no arm set (%T)", s)
	}
	if !f.Liveness.Valid() {
		c.add(friendPath(pk)+".liveness", "unknown value %d", f.Liveness)
	}
	if !f.WantedLocalRequestsStatus.Valid() {
		c.add(friendPath(pk)+".wantedLocalRequestsStatus", "unknown value %d", f.WantedLocalRequestsStatus)
	}
	if !f.Status.Valid() {
		c.add(friendPath(pk)+".status", "unknown value %d", f.Status)
	}
	switch s := f.ChannelStatus.(type) {
	case ChannelConsistent:
		c.tc(pk, s.Tc)
	case ChannelInconsistent:
		switch t := s.Report.OptRemoteResetTerms.(type) {
		case NoResetTerms, RemoteResetTerms:
		default:
			c.add(friendPath(pk)+".channelStatus.inconsistent.optRemoteResetTerms", "no arm set (%T)", t)
		}
	default:
		c.add(friendPath(pk)+".channelStatus", "no arm set (%T)", s)
	}
}

const tcPath = ".channelStatus.consistent"

func (c *checker) tc(pk PublicKey, tc TcReport) {
	if !tc.Direction.Valid() {
		c.add(friendPath(pk)+tcPath+".direction", "unknown value %d", tc.Direction)
	}
	if !tc.RequestsStatus.Local.Valid() {
		c.add(friendPath(pk)+tcPath+".requestsStatus.local", "unknown value %d", tc.RequestsStatus.Local)
	}
	if !tc.RequestsStatus.Remote.Valid() {
		c.add(friendPath(pk)+tcPath+".requestsStatus.remote", "unknown value %d", tc.RequestsStatus.Remote)
	}
	b := tc.Balance
	if b.LocalMaxDebt.Less(b.LocalPendingDebt) {
		c.add(friendPath(pk)+tcPath+".balance.localPendingDebt", "%s exceeds local max debt %s", b.LocalPendingDebt, b.LocalMaxDebt)
	}
	if b.RemoteMaxDebt.Less(b.RemotePendingDebt) {
		c.add(friendPath(pk)+tcPath+".balance.remotePendingDebt", "%s exceeds remote max debt %s", b.RemotePendingDebt, b.RemoteMaxDebt)
	}
	if _, ok := credit.AddUnsigned(b.Balance, b.RemotePendingDebt); !ok {
		c.add(friendPath(pk)+tcPath+".balance", "balance for reset overflows (balance %s, remote pending debt %s)", b.Balance, b.RemotePendingDebt)
	}
}

func (c *checker) indexClient(ic IndexClientReport) {
	if !ic.IndexServers.consistent() {
		c.add("indexClient.indexServers", "index server keys are not unique")
	}
	for pk, server := range ic.IndexServers.All() {
		if server.PublicKey != pk {
			c.add("indexClient.indexServers["+pk.Short()+"]", "stored under key of another server %s", server.PublicKey.Short())
		}
	}
	switch s := ic.ConnectedServer.(type) {
	case NotConnected:
	case ConnectedServer:
		if !ic.IndexServers.Has(s.PublicKey) {
			c.add("indexClient.connectedServer", "server %s is not a known index server", s.PublicKey.Short())
		}
	default:
		c.add("indexClient.connectedServer", "no arm set (%T)", s)
	}
}
