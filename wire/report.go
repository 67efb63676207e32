package wire

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"nodemirror/credit"
	"nodemirror/report"
)

// EncodeReport returns the wire form of r. Equal reports encode to equal
// bytes. A union left nil is omitted and fails to decode.
func EncodeReport(r report.NodeReport) []byte {
	return appendNodeReport(nil, r)
}

// DecodeReport parses a full report. It does not validate invariants.
func DecodeReport(b []byte) (report.NodeReport, error) {
	r, err := decodeNodeReport(b)
	if err != nil {
		return report.NodeReport{}, fmt.Errorf("decode report: %w", err)
	}
	return r, nil
}

func appendU128(b []byte, num protowire.Number, u credit.U128) []byte {
	body := appendFixed64(nil, amountHi, u.Hi)
	body = appendFixed64(body, amountLo, u.Lo)
	return appendBytes(b, num, body)
}

func appendI128(b []byte, num protowire.Number, i credit.I128) []byte {
	return appendU128(b, num, credit.U128{Hi: i.Hi, Lo: i.Lo})
}

func decodeU128(f field) (credit.U128, error) {
	body, err := f.bytes()
	if err != nil {
		return credit.U128{}, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return credit.U128{}, err
	}
	var u credit.U128
	for _, af := range fields {
		switch af.num {
		case amountHi:
			u.Hi, err = af.fixed64()
		case amountLo:
			u.Lo, err = af.fixed64()
		}
		if err != nil {
			return credit.U128{}, err
		}
	}
	return u, nil
}

func decodeI128(f field) (credit.I128, error) {
	u, err := decodeU128(f)
	return credit.I128{Hi: u.Hi, Lo: u.Lo}, err
}

func appendRelayAddress(b []byte, num protowire.Number, r report.RelayAddress) []byte {
	body := appendBytes(nil, relayPublicKey, r.PublicKey[:])
	body = appendString(body, relayAddress, r.Address)
	return appendBytes(b, num, body)
}

func appendNamedAddress(b []byte, num protowire.Number, pk report.PublicKey, address, name string) []byte {
	body := appendBytes(nil, relayPublicKey, pk[:])
	body = appendString(body, relayAddress, address)
	body = appendString(body, relayName, name)
	return appendBytes(b, num, body)
}

// decodeAddress reads any of the three address shapes.
func decodeAddress(f field) (pk report.PublicKey, address, name string, err error) {
	body, err := f.bytes()
	if err != nil {
		return pk, "", "", err
	}
	fields, err := parseFields(body)
	if err != nil {
		return pk, "", "", err
	}
	for _, af := range fields {
		var v []byte
		switch af.num {
		case relayPublicKey:
			pk, err = af.publicKey()
		case relayAddress:
			v, err = af.bytes()
			address = string(v)
		case relayName:
			v, err = af.bytes()
			name = string(v)
		}
		if err != nil {
			return pk, "", "", err
		}
	}
	return pk, address, name, nil
}

func decodeRelayAddress(f field) (report.RelayAddress, error) {
	pk, address, _, err := decodeAddress(f)
	return report.RelayAddress{PublicKey: pk, Address: address}, err
}

func appendRelayList(b []byte, num protowire.Number, relays []report.RelayAddress) []byte {
	var body []byte
	for _, r := range relays {
		body = appendRelayAddress(body, relayListItem, r)
	}
	return appendBytes(b, num, body)
}

func decodeRelayList(f field) ([]report.RelayAddress, error) {
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return nil, err
	}
	var out []report.RelayAddress
	for _, rf := range fields {
		if rf.num != relayListItem {
			continue
		}
		r, err := decodeRelayAddress(rf)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func appendSentLocalRelays(b []byte, num protowire.Number, s report.SentLocalRelaysReport) []byte {
	var body []byte
	switch x := s.(type) {
	case report.NeverSent:
		body = appendBytes(body, sentNeverSent, nil)
	case report.LastSent:
		body = appendRelayList(body, sentLastSent, x.Relays)
	case report.Transition:
		var t []byte
		t = appendRelayList(t, transitionLastSent, x.LastSent)
		t = appendRelayList(t, transitionBeforeLastSent, x.BeforeLastSent)
		body = appendBytes(body, sentTransition, t)
	default:
		return b
	}
	return appendBytes(b, num, body)
}

func decodeSentLocalRelays(f field) (report.SentLocalRelaysReport, error) {
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	arm, err := oneField(body)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case sentNeverSent:
		return report.NeverSent{}, arm.expect(protowire.BytesType)
	case sentLastSent:
		relays, err := decodeRelayList(arm)
		if err != nil {
			return nil, err
		}
		return report.LastSent{Relays: relays}, nil
	case sentTransition:
		tb, err := arm.bytes()
		if err != nil {
			return nil, err
		}
		fields, err := parseFields(tb)
		if err != nil {
			return nil, err
		}
		var t report.Transition
		for _, tf := range fields {
			switch tf.num {
			case transitionLastSent:
				t.LastSent, err = decodeRelayList(tf)
			case transitionBeforeLastSent:
				t.BeforeLastSent, err = decodeRelayList(tf)
			}
			if err != nil {
				return nil, err
			}
		}
		return t, nil
	default:
		return nil, unknownArm("sentLocalRelays", arm.num)
	}
}

func unknownArm(union string, num protowire.Number) error {
	return fmt.Errorf("%w: %s has unknown arm %d", ErrMalformedUnion, union, num)
}

func appendMoveToken(b []byte, num protowire.Number, opt report.OptLastIncomingMoveToken) []byte {
	var body []byte
	switch x := opt.(type) {
	case report.NoMoveToken:
		body = appendBytes(body, optTokenNone, nil)
	case report.LastIncomingMoveToken:
		t := x.Token
		var tb []byte
		tb = appendBytes(tb, tokenPrefixHash, t.PrefixHash[:])
		tb = appendBytes(tb, tokenLocalPublicKey, t.LocalPublicKey[:])
		tb = appendBytes(tb, tokenRemotePublicKey, t.RemotePublicKey[:])
		tb = appendVarint(tb, tokenInconsistencyCounter, t.InconsistencyCounter)
		tb = appendU128(tb, tokenMoveTokenCounter, t.MoveTokenCounter)
		tb = appendI128(tb, tokenBalance, t.Balance)
		tb = appendU128(tb, tokenLocalPendingDebt, t.LocalPendingDebt)
		tb = appendU128(tb, tokenRemotePendingDebt, t.RemotePendingDebt)
		tb = appendBytes(tb, tokenRandNonce, t.RandNonce[:])
		tb = appendBytes(tb, tokenNewToken, t.NewToken[:])
		body = appendBytes(body, optTokenSome, tb)
	default:
		return b
	}
	return appendBytes(b, num, body)
}

func decodeMoveToken(f field) (report.OptLastIncomingMoveToken, error) {
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	arm, err := oneField(body)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case optTokenNone:
		return report.NoMoveToken{}, arm.expect(protowire.BytesType)
	case optTokenSome:
	default:
		return nil, unknownArm("optLastIncomingMoveToken", arm.num)
	}
	tb, err := arm.bytes()
	if err != nil {
		return nil, err
	}
	fields, err := parseFields(tb)
	if err != nil {
		return nil, err
	}
	var t report.MoveTokenHashedReport
	for _, tf := range fields {
		switch tf.num {
		case tokenPrefixHash:
			err = tf.fixedBytes(t.PrefixHash[:])
		case tokenLocalPublicKey:
			err = tf.fixedBytes(t.LocalPublicKey[:])
		case tokenRemotePublicKey:
			err = tf.fixedBytes(t.RemotePublicKey[:])
		case tokenInconsistencyCounter:
			t.InconsistencyCounter, err = tf.varint()
		case tokenMoveTokenCounter:
			t.MoveTokenCounter, err = decodeU128(tf)
		case tokenBalance:
			t.Balance, err = decodeI128(tf)
		case tokenLocalPendingDebt:
			t.LocalPendingDebt, err = decodeU128(tf)
		case tokenRemotePendingDebt:
			t.RemotePendingDebt, err = decodeU128(tf)
		case tokenRandNonce:
			err = tf.fixedBytes(t.RandNonce[:])
		case tokenNewToken:
			err = tf.fixedBytes(t.NewToken[:])
		}
		if err != nil {
			return nil, err
		}
	}
	return report.LastIncomingMoveToken{Token: t}, nil
}

func appendTc(b []byte, num protowire.Number, tc report.TcReport) []byte {
	var bal []byte
	bal = appendI128(bal, balanceBalance, tc.Balance.Balance)
	bal = appendU128(bal, balanceLocalMaxDebt, tc.Balance.LocalMaxDebt)
	bal = appendU128(bal, balanceRemoteMaxDebt, tc.Balance.RemoteMaxDebt)
	bal = appendU128(bal, balanceLocalPendingDebt, tc.Balance.LocalPendingDebt)
	bal = appendU128(bal, balanceRemotePendingDebt, tc.Balance.RemotePendingDebt)

	var req []byte
	req = appendVarint(req, requestsLocal, uint64(tc.RequestsStatus.Local))
	req = appendVarint(req, requestsRemote, uint64(tc.RequestsStatus.Remote))

	var body []byte
	body = appendVarint(body, tcDirection, uint64(tc.Direction))
	body = appendBytes(body, tcBalance, bal)
	body = appendBytes(body, tcRequestsStatus, req)
	body = appendVarint(body, tcNumLocalPendingRequests, tc.NumLocalPendingRequests)
	body = appendVarint(body, tcNumRemotePendingRequests, tc.NumRemotePendingRequests)
	return appendBytes(b, num, body)
}

func decodeTc(f field) (report.TcReport, error) {
	var tc report.TcReport
	body, err := f.bytes()
	if err != nil {
		return tc, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return tc, err
	}
	for _, tf := range fields {
		switch tf.num {
		case tcDirection:
			tc.Direction, err = decodeEnum[report.Direction](tf)
		case tcBalance:
			tc.Balance, err = decodeBalance(tf)
		case tcRequestsStatus:
			tc.RequestsStatus, err = decodeRequestsStatus(tf)
		case tcNumLocalPendingRequests:
			tc.NumLocalPendingRequests, err = tf.varint()
		case tcNumRemotePendingRequests:
			tc.NumRemotePendingRequests, err = tf.varint()
		}
		if err != nil {
			return tc, err
		}
	}
	return tc, nil
}

func decodeBalance(f field) (report.McBalanceReport, error) {
	var bal report.McBalanceReport
	body, err := f.bytes()
	if err != nil {
		return bal, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return bal, err
	}
	for _, bf := range fields {
		switch bf.num {
		case balanceBalance:
			bal.Balance, err = decodeI128(bf)
		case balanceLocalMaxDebt:
			bal.LocalMaxDebt, err = decodeU128(bf)
		case balanceRemoteMaxDebt:
			bal.RemoteMaxDebt, err = decodeU128(bf)
		case balanceLocalPendingDebt:
			bal.LocalPendingDebt, err = decodeU128(bf)
		case balanceRemotePendingDebt:
			bal.RemotePendingDebt, err = decodeU128(bf)
		}
		if err != nil {
			return bal, err
		}
	}
	return bal, nil
}

func decodeRequestsStatus(f field) (report.TcRequestsStatus, error) {
	var s report.TcRequestsStatus
	body, err := f.bytes()
	if err != nil {
		return s, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return s, err
	}
	for _, sf := range fields {
		switch sf.num {
		case requestsLocal:
			s.Local, err = decodeEnum[report.RequestsStatus](sf)
		case requestsRemote:
			s.Remote, err = decodeEnum[report.RequestsStatus](sf)
		}
		if err != nil {
			return s, err
		}
	}
	return s, nil
}

func appendChannelStatus(b []byte, num protowire.Number, s report.ChannelStatusReport) []byte {
	var body []byte
	switch x := s.(type) {
	case report.ChannelConsistent:
		body = appendTc(body, channelConsistent, x.Tc)
	case report.ChannelInconsistent:
		var ib []byte
		ib = appendI128(ib, inconsistentLocalResetTermsBalance, x.Report.LocalResetTermsBalance)
		var ob []byte
		switch terms := x.Report.OptRemoteResetTerms.(type) {
		case report.NoResetTerms:
			ob = appendBytes(ob, optResetNone, nil)
		case report.RemoteResetTerms:
			var tb []byte
			tb = appendBytes(tb, resetToken, terms.Terms.ResetToken[:])
			tb = appendI128(tb, resetBalanceForReset, terms.Terms.BalanceForReset)
			ob = appendBytes(ob, optResetSome, tb)
		}
		if ob != nil {
			ib = appendBytes(ib, inconsistentOptRemoteResetTerms, ob)
		}
		body = appendBytes(body, channelInconsistent, ib)
	default:
		return b
	}
	return appendBytes(b, num, body)
}

func decodeChannelStatus(f field) (report.ChannelStatusReport, error) {
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	arm, err := oneField(body)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case channelConsistent:
		tc, err := decodeTc(arm)
		if err != nil {
			return nil, err
		}
		return report.ChannelConsistent{Tc: tc}, nil
	case channelInconsistent:
		inc, err := decodeInconsistent(arm)
		if err != nil {
			return nil, err
		}
		return report.ChannelInconsistent{Report: inc}, nil
	default:
		return nil, unknownArm("channelStatus", arm.num)
	}
}

func decodeInconsistent(f field) (report.ChannelInconsistentReport, error) {
	var inc report.ChannelInconsistentReport
	body, err := f.bytes()
	if err != nil {
		return inc, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return inc, err
	}
	for _, inf := range fields {
		switch inf.num {
		case inconsistentLocalResetTermsBalance:
			inc.LocalResetTermsBalance, err = decodeI128(inf)
		case inconsistentOptRemoteResetTerms:
			inc.OptRemoteResetTerms, err = decodeResetTerms(inf)
		}
		if err != nil {
			return inc, err
		}
	}
	if inc.OptRemoteResetTerms == nil {
		return inc, fmt.Errorf("%w: optRemoteResetTerms missing", ErrMalformedUnion)
	}
	return inc, nil
}

func decodeResetTerms(f field) (report.OptRemoteResetTerms, error) {
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	arm, err := oneField(body)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case optResetNone:
		return report.NoResetTerms{}, arm.expect(protowire.BytesType)
	case optResetSome:
	default:
		return nil, unknownArm("optRemoteResetTerms", arm.num)
	}
	tb, err := arm.bytes()
	if err != nil {
		return nil, err
	}
	fields, err := parseFields(tb)
	if err != nil {
		return nil, err
	}
	var terms report.ResetTermsReport
	for _, tf := range fields {
		switch tf.num {
		case resetToken:
			err = tf.fixedBytes(terms.ResetToken[:])
		case resetBalanceForReset:
			terms.BalanceForReset, err = decodeI128(tf)
		}
		if err != nil {
			return nil, err
		}
	}
	return report.RemoteResetTerms{Terms: terms}, nil
}

func appendFriendReport(b []byte, num protowire.Number, f report.FriendReport) []byte {
	var body []byte
	body = appendString(body, friendName, f.Name)
	for _, r := range f.RemoteRelays {
		body = appendRelayAddress(body, friendRemoteRelays, r)
	}
	body = appendSentLocalRelays(body, friendSentLocalRelays, f.SentLocalRelays)
	body = appendMoveToken(body, friendOptLastIncomingMoveToken, f.OptLastIncomingMoveToken)
	body = appendVarint(body, friendLiveness, uint64(f.Liveness))
	body = appendChannelStatus(body, friendChannelStatus, f.ChannelStatus)
	body = appendU128(body, friendWantedRemoteMaxDebt, f.WantedRemoteMaxDebt)
	body = appendVarint(body, friendWantedLocalRequestsStatus, uint64(f.WantedLocalRequestsStatus))
	body = appendVarint(body, friendNumPendingRequests, f.NumPendingRequests)
	body = appendVarint(body, friendNumPendingResponses, f.NumPendingResponses)
	body = appendVarint(body, friendStatus, uint64(f.Status))
	body = appendVarint(body, friendNumPendingUserRequests, f.NumPendingUserRequests)
	return appendBytes(b, num, body)
}

func decodeFriendReport(f field) (report.FriendReport, error) {
	var fr report.FriendReport
	body, err := f.bytes()
	if err != nil {
		return fr, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return fr, err
	}
	for _, ff := range fields {
		var v []byte
		switch ff.num {
		case friendName:
			v, err = ff.bytes()
			fr.Name = string(v)
		case friendRemoteRelays:
			var r report.RelayAddress
			if r, err = decodeRelayAddress(ff); err == nil {
				fr.RemoteRelays = append(fr.RemoteRelays, r)
			}
		case friendSentLocalRelays:
			fr.SentLocalRelays, err = decodeSentLocalRelays(ff)
		case friendOptLastIncomingMoveToken:
			fr.OptLastIncomingMoveToken, err = decodeMoveToken(ff)
		case friendLiveness:
			fr.Liveness, err = decodeEnum[report.Liveness](ff)
		case friendChannelStatus:
			fr.ChannelStatus, err = decodeChannelStatus(ff)
		case friendWantedRemoteMaxDebt:
			fr.WantedRemoteMaxDebt, err = decodeU128(ff)
		case friendWantedLocalRequestsStatus:
			fr.WantedLocalRequestsStatus, err = decodeEnum[report.RequestsStatus](ff)
		case friendNumPendingRequests:
			fr.NumPendingRequests, err = ff.varint()
		case friendNumPendingResponses:
			fr.NumPendingResponses, err = ff.varint()
		case friendStatus:
			fr.Status, err = decodeEnum[report.FriendStatus](ff)
		case friendNumPendingUserRequests:
			fr.NumPendingUserRequests, err = ff.varint()
		}
		if err != nil {
			return fr, err
		}
	}
	switch {
	case fr.SentLocalRelays == nil:
		return fr, fmt.Errorf("%w: sentLocalRelays missing", ErrMalformedUnion)
	case fr.OptLastIncomingMoveToken == nil:
		return fr, fmt.Errorf("%w: optLastIncomingMoveToken missing", ErrMalformedUnion)
	case fr.ChannelStatus == nil:
		return fr, fmt.Errorf("%w: channelStatus missing", ErrMalformedUnion)
	}
	return fr, nil
}

// appendFriendEntry writes a keyed friend, the same shape addFriend uses.
func appendFriendEntry(b []byte, num protowire.Number, pk report.PublicKey, f report.FriendReport) []byte {
	body := appendBytes(nil, entryPublicKey, pk[:])
	body = appendFriendReport(body, entryValue, f)
	return appendBytes(b, num, body)
}

func decodeFriendEntry(f field) (report.PublicKey, report.FriendReport, error) {
	var (
		pk     report.PublicKey
		fr     report.FriendReport
		hasRep bool
	)
	body, err := f.bytes()
	if err != nil {
		return pk, fr, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return pk, fr, err
	}
	for _, ef := range fields {
		switch ef.num {
		case entryPublicKey:
			pk, err = ef.publicKey()
		case entryValue:
			fr, err = decodeFriendReport(ef)
			hasRep = true
		}
		if err != nil {
			return pk, fr, err
		}
	}
	if !hasRep {
		return pk, fr, fmt.Errorf("%w: friend %s has no report", ErrMalformedUnion, pk.Short())
	}
	return pk, fr, nil
}

func appendOptConnected(b []byte, num protowire.Number, s report.OptConnectedServer) []byte {
	var body []byte
	switch x := s.(type) {
	case report.NotConnected:
		body = appendBytes(body, connectedNone, nil)
	case report.ConnectedServer:
		body = appendBytes(body, connectedSome, x.PublicKey[:])
	default:
		return b
	}
	return appendBytes(b, num, body)
}

func decodeOptConnected(f field) (report.OptConnectedServer, error) {
	body, err := f.bytes()
	if err != nil {
		return nil, err
	}
	arm, err := oneField(body)
	if err != nil {
		return nil, err
	}
	switch arm.num {
	case connectedNone:
		return report.NotConnected{}, arm.expect(protowire.BytesType)
	case connectedSome:
		pk, err := arm.publicKey()
		if err != nil {
			return nil, err
		}
		return report.ConnectedServer{PublicKey: pk}, nil
	default:
		return nil, unknownArm("connectedServer", arm.num)
	}
}

func appendNodeReport(b []byte, r report.NodeReport) []byte {
	var funder []byte
	funder = appendBytes(funder, funderLocalPublicKey, r.Funder.LocalPublicKey[:])
	for _, relay := range r.Funder.Relays {
		funder = appendNamedAddress(funder, funderRelays, relay.PublicKey, relay.Address, relay.Name)
	}
	for pk, f := range r.Funder.Friends.All() {
		funder = appendFriendEntry(funder, funderFriends, pk, f)
	}
	funder = appendVarint(funder, funderNumReadyReceipts, r.Funder.NumReadyReceipts)

	var ic []byte
	for _, s := range r.IndexClient.IndexServers.All() {
		ic = appendNamedAddress(ic, indexClientServers, s.PublicKey, s.Address, s.Name)
	}
	ic = appendOptConnected(ic, indexClientConnected, r.IndexClient.ConnectedServer)

	b = appendBytes(b, nodeFunder, funder)
	return appendBytes(b, nodeIndexClient, ic)
}

func decodeNodeReport(b []byte) (report.NodeReport, error) {
	var r report.NodeReport
	fields, err := parseFields(b)
	if err != nil {
		return r, err
	}
	for _, nf := range fields {
		switch nf.num {
		case nodeFunder:
			r.Funder, err = decodeFunder(nf)
		case nodeIndexClient:
			r.IndexClient, err = decodeIndexClient(nf)
		}
		if err != nil {
			return r, err
		}
	}
	if r.IndexClient.ConnectedServer == nil {
		return r, fmt.Errorf("%w: connectedServer missing", ErrMalformedUnion)
	}
	return r, nil
}

func decodeFunder(f field) (report.FunderReport, error) {
	var (
		fr      report.FunderReport
		friends report.KeyedBuilder[report.PublicKey, report.FriendReport]
	)
	body, err := f.bytes()
	if err != nil {
		return fr, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return fr, err
	}
	for _, ff := range fields {
		switch ff.num {
		case funderLocalPublicKey:
			fr.LocalPublicKey, err = ff.publicKey()
		case funderRelays:
			var (
				pk            report.PublicKey
				address, name string
			)
			if pk, address, name, err = decodeAddress(ff); err == nil {
				fr.Relays = append(fr.Relays, report.NamedRelayAddress{PublicKey: pk, Address: address, Name: name})
			}
		case funderFriends:
			var (
				pk     report.PublicKey
				friend report.FriendReport
			)
			if pk, friend, err = decodeFriendEntry(ff); err == nil {
				if !friends.Add(pk, friend) {
					err = fmt.Errorf("duplicate friend %s", pk.Short())
				}
			}
		case funderNumReadyReceipts:
			fr.NumReadyReceipts, err = ff.varint()
		}
		if err != nil {
			return fr, err
		}
	}
	fr.Friends = friends.Keyed()
	return fr, nil
}

func decodeIndexClient(f field) (report.IndexClientReport, error) {
	var (
		ic      report.IndexClientReport
		servers report.KeyedBuilder[report.PublicKey, report.NamedIndexServerAddress]
	)
	body, err := f.bytes()
	if err != nil {
		return ic, err
	}
	fields, err := parseFields(body)
	if err != nil {
		return ic, err
	}
	for _, icf := range fields {
		switch icf.num {
		case indexClientServers:
			var (
				pk            report.PublicKey
				address, name string
			)
			if pk, address, name, err = decodeAddress(icf); err == nil {
				if !servers.Add(pk, report.NamedIndexServerAddress{PublicKey: pk, Address: address, Name: name}) {
					err = fmt.Errorf("duplicate index server %s", pk.Short())
				}
			}
		case indexClientConnected:
			ic.ConnectedServer, err = decodeOptConnected(icf)
		}
		if err != nil {
			return ic, err
		}
	}
	ic.IndexServers = servers.Keyed()
	return ic, nil
}
