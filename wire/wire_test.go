package wire

import (
	"bytes"
	"io"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"nodemirror/credit"
	"nodemirror/mirror"
	"nodemirror/mirror/mirrortest"
	"nodemirror/mutation"
	"nodemirror/report"
)

func richReport() report.NodeReport {
	auth := mirrortest.NewAuthority(11)
	auth.Run(500)
	r := auth.Report()

	friend := report.NewFriendReport("extremes")
	friend.ChannelStatus = report.ChannelConsistent{Tc: report.TcReport{
		Direction: report.DirectionOutgoing,
		Balance: report.McBalanceReport{
			Balance:           credit.I128{Hi: 1 << 63},
			LocalMaxDebt:      credit.MaxFunderDebt,
			RemoteMaxDebt:     credit.MaxFunderDebt,
			LocalPendingDebt:  credit.MaxFunderDebt,
			RemotePendingDebt: credit.NewU128(0),
		},
	}}
	friend.WantedRemoteMaxDebt = credit.U128{Hi: ^uint64(0), Lo: ^uint64(0)}
	r.Funder.Friends = r.Funder.Friends.With(mirrortest.Key(0x7f), friend)
	return r
}

func TestReportRoundTrip(t *testing.T) {
	for _, r := range []report.NodeReport{
		report.NewNodeReport(mirrortest.Key(0xAA)),
		richReport(),
	} {
		got, err := DecodeReport(EncodeReport(r))
		require.NoError(t, err)
		require.True(t, got.Equal(r))
		require.Equal(t, EncodeReport(r), EncodeReport(got))
	}
}

func TestDigestTracksEquality(t *testing.T) {
	a, b := richReport(), richReport()
	require.Equal(t, Digest(a), Digest(b))

	b.Funder.NumReadyReceipts++
	require.NotEqual(t, Digest(a), Digest(b))
}

func TestMutationRoundTrip(t *testing.T) {
	auth := mirrortest.NewAuthority(5)
	ms := auth.Run(400)
	ms = append(ms,
		mutation.Friend(mirrortest.Key(1), mutation.SetName{Name: ""}),
		mutation.Tc(mirrortest.Key(1), mutation.SetBalance{Balance: credit.NewI128(-1)}),
		mutation.Friend(mirrortest.Key(1), mutation.SetSentLocalRelays{Report: report.NeverSent{}}),
		mutation.IndexClient(mutation.SetConnectedServer{Server: report.NotConnected{}}),
		mutation.UnknownNode{Tag: 77},
		mutation.Funder(mutation.UnknownFunder{Tag: 78}),
		mutation.Friend(mirrortest.Key(1), mutation.UnknownFriend{Tag: 79}),
		mutation.Tc(mirrortest.Key(1), mutation.UnknownTc{Tag: 80}),
		mutation.IndexClient(mutation.UnknownIndexClient{Tag: 81}),
	)
	for _, m := range ms {
		enc, err := EncodeMutation(m)
		require.NoError(t, err, mutation.Describe(m))
		got, err := DecodeMutation(enc)
		require.NoError(t, err, mutation.Describe(m))
		require.Equal(t, mutation.Describe(m), mutation.Describe(got))
		again, err := EncodeMutation(got)
		require.NoError(t, err)
		require.Equal(t, enc, again)
	}
}

func TestDecodedStreamReplays(t *testing.T) {
	auth := mirrortest.NewAuthority(9)
	initial := auth.Report()
	ms := auth.Run(300)

	decoded := make([]mutation.NodeReportMutation, 0, len(ms))
	for _, m := range ms {
		enc, err := EncodeMutation(m)
		require.NoError(t, err)
		got, err := DecodeMutation(enc)
		require.NoError(t, err)
		decoded = append(decoded, got)
	}
	r, err := mirror.ApplyAll(initial, decoded)
	require.NoError(t, err)
	require.True(t, r.Equal(auth.Report()))
}

func TestUnknownMutationTagDecodesAsUnknown(t *testing.T) {
	// a node-level arm from a newer producer, with a payload
	b := appendBytes(nil, 19, []byte{0x08, 0x01})
	m, err := DecodeMutation(b)
	require.NoError(t, err)
	require.Equal(t, mutation.UnknownNode{Tag: 19}, m)

	inner := appendArmVarint(nil, 42, 5)
	b = appendBytes(nil, mutFunder, inner)
	m, err = DecodeMutation(b)
	require.NoError(t, err)
	require.Equal(t, mutation.FunderMutation{Mutation: mutation.UnknownFunder{Tag: 42}}, m)
}

func TestEncodeRejectsInvalidUnknownTags(t *testing.T) {
	for _, tag := range []uint64{0, 1 << 29, 1 << 30, 1<<32 + 1, math.MaxUint64} {
		for _, m := range []mutation.NodeReportMutation{
			mutation.UnknownNode{Tag: tag},
			mutation.Funder(mutation.UnknownFunder{Tag: tag}),
			mutation.Friend(mirrortest.Key(1), mutation.UnknownFriend{Tag: tag}),
			mutation.Tc(mirrortest.Key(1), mutation.UnknownTc{Tag: tag}),
			mutation.IndexClient(mutation.UnknownIndexClient{Tag: tag}),
		} {
			_, err := EncodeMutation(m)
			require.ErrorIs(t, err, ErrInvalidTag, mutation.Describe(m))

			err = NewFrameWriter(io.Discard).Write(Envelope{Seq: 3, Mutations: []mutation.NodeReportMutation{m}})
			require.ErrorIs(t, err, ErrInvalidTag)
		}
	}

	// the largest field number still has a wire form
	m := mutation.Tc(mirrortest.Key(1), mutation.UnknownTc{Tag: 1<<29 - 1})
	enc, err := EncodeMutation(m)
	require.NoError(t, err)
	got, err := DecodeMutation(enc)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestUnknownArmInReportIsMalformed(t *testing.T) {
	var ic []byte
	ic = appendBytes(ic, indexClientConnected, appendBytes(nil, 9, nil))
	b := appendBytes(nil, nodeIndexClient, ic)

	_, err := DecodeReport(b)
	require.ErrorIs(t, err, ErrMalformedUnion)
}

func TestMissingUnionIsMalformed(t *testing.T) {
	r := report.NewNodeReport(mirrortest.Key(0xAA))
	r.IndexClient.ConnectedServer = nil
	_, err := DecodeReport(EncodeReport(r))
	require.ErrorIs(t, err, ErrMalformedUnion)

	r = report.NewNodeReport(mirrortest.Key(0xAA))
	f := report.NewFriendReport("x")
	f.ChannelStatus = nil
	r.Funder.Friends = r.Funder.Friends.With(mirrortest.Key(1), f)
	_, err = DecodeReport(EncodeReport(r))
	require.ErrorIs(t, err, ErrMalformedUnion)
}

func TestTwoArmsAreMalformed(t *testing.T) {
	var arms []byte
	arms = appendBytes(arms, connectedNone, nil)
	arms = appendBytes(arms, connectedSome, make([]byte, report.PublicKeyLen))
	b := appendBytes(nil, nodeIndexClient, appendBytes(nil, indexClientConnected, arms))
	_, err := DecodeReport(b)
	require.ErrorIs(t, err, ErrMalformedUnion)
}

func TestUnknownEnumValueIsMalformed(t *testing.T) {
	b := appendBytes(nil, mutFunder, appendBytes(nil, mutPkFriend,
		appendBytes(appendBytes(nil, entryPublicKey, make([]byte, report.PublicKeyLen)),
			entryValue, appendArmVarint(nil, mutSetLiveness, 7))))
	_, err := DecodeMutation(b)
	require.ErrorIs(t, err, ErrMalformedUnion)
}

func TestCorruptInput(t *testing.T) {
	enc := EncodeReport(richReport())
	_, err := DecodeReport(enc[:len(enc)-3])
	require.ErrorIs(t, err, ErrTruncated)

	short := appendBytes(nil, mutFunder, appendBytes(nil, mutRemoveFriend, []byte{1, 2, 3}))
	_, err = DecodeMutation(short)
	require.ErrorIs(t, err, ErrFieldLength)

	wrongType := appendBytes(nil, mutFunder, appendArmVarint(nil, mutRemoveFriend, 1))
	_, err = DecodeMutation(wrongType)
	require.ErrorIs(t, err, ErrWireType)
}

func TestEnvelopeFrames(t *testing.T) {
	r := richReport()
	envelopes := []Envelope{
		{Seq: 0, FullReport: &r},
		{Seq: 1, Mutations: []mutation.NodeReportMutation{mutation.Funder(mutation.SetNumReadyReceipts{Value: 3})}},
		{Seq: 2, Mutations: []mutation.NodeReportMutation{}},
	}

	var buf bytes.Buffer
	w := NewFrameWriter(&buf)
	for _, e := range envelopes {
		require.NoError(t, w.Write(e))
	}

	fr := NewFrameReader(&buf, 0)
	first, err := fr.Read()
	require.NoError(t, err)
	require.True(t, first.IsFullReport())
	require.True(t, first.FullReport.Equal(r))

	second, err := fr.Read()
	require.NoError(t, err)
	require.Equal(t, uint64(1), second.Seq)
	require.Equal(t, envelopes[1].Mutations, second.Mutations)

	third, err := fr.Read()
	require.NoError(t, err)
	require.False(t, third.IsFullReport())
	require.Empty(t, third.Mutations)

	_, err = fr.Read()
	require.ErrorIs(t, err, io.EOF)
}

func TestFrameLimits(t *testing.T) {
	var buf bytes.Buffer
	r := richReport()
	require.NoError(t, NewFrameWriter(&buf).Write(Envelope{FullReport: &r}))

	_, err := NewFrameReader(bytes.NewReader(buf.Bytes()), 16).Next()
	require.ErrorIs(t, err, ErrFrameTooLarge)

	_, err = NewFrameReader(bytes.NewReader(buf.Bytes()[:buf.Len()-1]), 0).Next()
	require.ErrorIs(t, err, ErrFrame)
}

func TestEnvelopeNeedsOneBody(t *testing.T) {
	_, err := DecodeEnvelope(protowire.AppendVarint(protowire.AppendTag(nil, envelopeSeq, protowire.VarintType), 4))
	require.ErrorIs(t, err, ErrMalformedUnion)

	_, err = DecodeEnvelope(appendBytes(nil, 12, nil))
	require.ErrorIs(t, err, ErrMalformedUnion)
}
