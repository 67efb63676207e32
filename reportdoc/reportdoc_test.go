package reportdoc_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"nodemirror/credit"
	"nodemirror/mirror"
	"nodemirror/mirror/mirrortest"
	"nodemirror/mutation"
	"nodemirror/report"
	"nodemirror/reportdoc"
)

func TestReportRoundTripYAML(t *testing.T) {
	for seed := uint64(1); seed <= 10; seed++ {
		auth := mirrortest.NewAuthority(seed)
		auth.Run(150)
		want := auth.Report()

		raw, err := yaml.Marshal(reportdoc.FromReport(want))
		require.NoError(t, err)
		var doc reportdoc.Report
		require.NoError(t, yaml.Unmarshal(raw, &doc))
		got, err := doc.ToReport()
		require.NoError(t, err)
		require.True(t, got.Equal(want), "seed %d:\n%s", seed, raw)
	}
}

func TestReportRoundTripJSON(t *testing.T) {
	auth := mirrortest.NewAuthority(77)
	auth.Run(200)
	want := auth.Report()

	raw, err := json.Marshal(reportdoc.FromReport(want))
	require.NoError(t, err)
	var doc reportdoc.Report
	require.NoError(t, json.Unmarshal(raw, &doc))
	got, err := doc.ToReport()
	require.NoError(t, err)
	require.True(t, got.Equal(want))
}

func TestShortDocument(t *testing.T) {
	const src = `
localPublicKey: aa
relays:
  - {publicKey: "40", address: "relay.example:443", name: r0}
friends:
  - publicKey: "01"
    name: alice
    liveness: online
    channel:
      consistent:
        direction: outgoing
        balance: -20
        localMaxDebt: 100
  - publicKey: "02"
    name: bob
    channel:
      inconsistent:
        localResetTermsBalance: 5
indexServers:
  - {publicKey: "60", address: "index.example:443"}
connectedServer: "60"
`
	var doc reportdoc.Report
	require.NoError(t, yaml.Unmarshal([]byte(src), &doc))
	r, err := doc.ToReport()
	require.NoError(t, err)
	require.NoError(t, report.Validate(r))

	require.Equal(t, mirrortest.Key(0xAA), r.Funder.LocalPublicKey)
	alice, ok := r.Funder.Friends.Get(mirrortest.Key(1))
	require.True(t, ok)
	require.Equal(t, report.LivenessOnline, alice.Liveness)
	require.Equal(t, report.FriendDisabled, alice.Status)
	tc := alice.ChannelStatus.(report.ChannelConsistent).Tc
	require.Equal(t, report.DirectionOutgoing, tc.Direction)
	require.Equal(t, credit.NewI128(-20), tc.Balance.Balance)
	require.Equal(t, credit.NewU128(100), tc.Balance.LocalMaxDebt)

	bob, _ := r.Funder.Friends.Get(mirrortest.Key(2))
	inc := bob.ChannelStatus.(report.ChannelInconsistent)
	require.Equal(t, report.NoResetTerms{}, inc.Report.OptRemoteResetTerms)
	require.Equal(t, report.NoMoveToken{}, bob.OptLastIncomingMoveToken)
	require.Equal(t, report.NeverSent{}, bob.SentLocalRelays)

	require.Equal(t, report.ConnectedServer{PublicKey: mirrortest.Key(0x60)}, r.IndexClient.ConnectedServer)
}

func TestReportDocumentErrors(t *testing.T) {
	cases := map[string]reportdoc.Report{
		"bad key":          {LocalPublicKey: "zz"},
		"long key":         {LocalPublicKey: "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff00"},
		"duplicate friend": {LocalPublicKey: "aa", Friends: []reportdoc.Friend{{PublicKey: "01"}, {PublicKey: "01"}}},
		"bad liveness":     {LocalPublicKey: "aa", Friends: []reportdoc.Friend{{PublicKey: "01", Liveness: "asleep"}}},
		"duplicate server": {LocalPublicKey: "aa", IndexServers: []reportdoc.NamedAddress{{PublicKey: "60"}, {PublicKey: "60"}}},
		"two channels": {LocalPublicKey: "aa", Friends: []reportdoc.Friend{{
			PublicKey: "01",
			Channel:   reportdoc.Channel{Consistent: &reportdoc.TokenChannel{}, Inconsistent: &reportdoc.Inconsistent{}},
		}}},
		"bad sent state": {LocalPublicKey: "aa", Friends: []reportdoc.Friend{{PublicKey: "01", SentLocalRelays: reportdoc.SentRelays{State: "maybe"}}}},
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := doc.ToReport()
			require.Error(t, err)
		})
	}
}

// Converting every mutation of a random stream through its document form and
// replaying it must reproduce the producer's report.
func TestMutationDocumentsReplay(t *testing.T) {
	for seed := uint64(1); seed <= 8; seed++ {
		auth := mirrortest.NewAuthority(seed)
		r := auth.Report()
		for _, m := range auth.Run(300) {
			doc, err := reportdoc.FromMutation(m)
			require.NoError(t, err)
			raw, err := yaml.Marshal(doc)
			require.NoError(t, err)
			var back reportdoc.Mutation
			require.NoError(t, yaml.Unmarshal(raw, &back))
			decoded, err := back.ToMutation()
			require.NoError(t, err, "%s", raw)

			r, err = mirror.Apply(r, decoded)
			require.NoError(t, err, "%s", raw)
		}
		require.True(t, r.Equal(auth.Report()), "seed %d", seed)
	}
}

func TestMutationDocumentForms(t *testing.T) {
	pk := mirrortest.Key(1)
	cases := []struct {
		doc  reportdoc.Mutation
		want mutation.NodeReportMutation
	}{
		{
			reportdoc.Mutation{Op: "funder.friend.setLiveness", Key: "01", Value: "online"},
			mutation.Friend(pk, mutation.SetLiveness{Liveness: report.LivenessOnline}),
		},
		{
			reportdoc.Mutation{Op: "funder.friend.tc.setBalance", Key: "01", Value: "-7"},
			mutation.Tc(pk, mutation.SetBalance{Balance: credit.NewI128(-7)}),
		},
		{
			reportdoc.Mutation{Op: "indexClient.setConnectedServer"},
			mutation.IndexClient(mutation.SetConnectedServer{Server: report.NotConnected{}}),
		},
		{
			reportdoc.Mutation{Op: "funder.friend.tc.unknown", Key: "01", Tag: 42},
			mutation.Tc(pk, mutation.UnknownTc{Tag: 42}),
		},
		{
			reportdoc.Mutation{Op: "unknown", Tag: 99},
			mutation.UnknownNode{Tag: 99},
		},
	}
	for _, tc := range cases {
		t.Run(tc.doc.Op, func(t *testing.T) {
			got, err := tc.doc.ToMutation()
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestMutationDocumentErrors(t *testing.T) {
	for _, doc := range []reportdoc.Mutation{
		{Op: "funder.renameNode"},
		{Op: "funder.removeFriend"},
		{Op: "funder.friend.setLiveness", Value: "online"},
		{Op: "funder.friend.setLiveness", Key: "01", Value: "sleepy"},
		{Op: "funder.friend.tc.setBalance", Key: "01", Value: "ten"},
		{Op: "funder.addRelay"},
		{Op: "funder.setNumReadyReceipts", Value: "-1"},
	} {
		_, err := doc.ToMutation()
		require.Error(t, err, doc.Op)
	}
}
