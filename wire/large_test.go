package wire

import (
	"encoding/binary"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"nodemirror/report"
)

func largeReport(friends int) report.NodeReport {
	r := report.NewNodeReport(report.PublicKey{0xAA})
	var b report.KeyedBuilder[report.PublicKey, report.FriendReport]
	for i := 0; i < friends; i++ {
		var pk report.PublicKey
		pk[0] = 0x01
		binary.BigEndian.PutUint32(pk[1:], uint32(i))
		b.Add(pk, report.NewFriendReport(fmt.Sprintf("friend-%d", i)))
	}
	r.Funder.Friends = b.Keyed()
	return r
}

func TestDecodeLargeReport(t *testing.T) {
	if testing.Short() {
		t.Skip("large report")
	}
	r := largeReport(50_000)
	encoded := EncodeReport(r)
	require.Less(t, len(encoded), DefaultMaxFrameSize)

	start := time.Now()
	decoded, err := DecodeReport(encoded)
	elapsed := time.Since(start)
	require.NoError(t, err)
	require.Equal(t, 50_000, decoded.Funder.Friends.Len())
	require.True(t, decoded.Equal(r))
	require.NoError(t, report.Validate(decoded))
	require.Less(t, elapsed, 10*time.Second)
}

func TestDecodeRejectsDuplicateFriend(t *testing.T) {
	r := largeReport(3)
	pk := r.Funder.Friends.Keys()[1]
	f, _ := r.Funder.Friends.Get(pk)
	body := appendFriendEntry(nil, funderFriends, pk, f)

	// repeat the entry for pk at the end of the funder message
	fields, err := parseFields(EncodeReport(r))
	require.NoError(t, err)
	var out []byte
	for _, fd := range fields {
		inner := fd.b
		if fd.num == nodeFunder {
			inner = append(append([]byte(nil), fd.b...), body...)
		}
		out = appendBytes(out, fd.num, inner)
	}
	_, err = DecodeReport(out)
	require.ErrorContains(t, err, "duplicate friend")
}

func BenchmarkDecodeReport(b *testing.B) {
	encoded := EncodeReport(largeReport(10_000))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeReport(encoded); err != nil {
			b.Fatal(err)
		}
	}
}
