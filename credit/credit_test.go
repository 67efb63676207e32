package credit

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestI128SignExtension(t *testing.T) {
	minusOne := NewI128(-1)
	require.Equal(t, I128{Hi: math.MaxUint64, Lo: math.MaxUint64}, minusOne)
	require.True(t, minusOne.Negative())
	require.Equal(t, "-1", minusOne.String())
	require.Equal(t, -1, minusOne.Cmp(NewI128(0)))
	require.Equal(t, 1, NewI128(5).Cmp(NewI128(-7)))
	require.Equal(t, 0, NewI128(-7).Cmp(NewI128(-7)))
}

func TestU128Ordering(t *testing.T) {
	small := NewU128(100)
	big := U128{Hi: 1}
	require.True(t, small.Less(big))
	require.False(t, big.Less(small))
	require.Equal(t, 0, small.Cmp(NewU128(100)))
	require.Equal(t, "18446744073709551616", big.String())
}

func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"0",
		"1",
		"340282366920938463463374607431768211455",
	}
	for _, tc := range cases {
		v, err := ParseU128(tc)
		require.NoError(t, err)
		require.Equal(t, tc, v.String())
	}

	signed := []string{
		"0",
		"-1",
		"170141183460469231731687303715884105727",
		"-170141183460469231731687303715884105728",
	}
	for _, tc := range signed {
		v, err := ParseI128(tc)
		require.NoError(t, err)
		require.Equal(t, tc, v.String())
	}
}

func TestParseRejectsOutOfRange(t *testing.T) {
	_, err := ParseU128("340282366920938463463374607431768211456")
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = ParseI128("170141183460469231731687303715884105728")
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = ParseI128("-170141183460469231731687303715884105729")
	require.ErrorIs(t, err, ErrOutOfRange)

	_, err = ParseU128("12ab")
	require.ErrorIs(t, err, ErrSyntax)
}

func TestAddUnsignedDetectsOverflow(t *testing.T) {
	sum, ok := AddUnsigned(NewI128(-10), NewU128(15))
	require.True(t, ok)
	require.Equal(t, NewI128(5), sum)

	maxI128 := I128{Hi: math.MaxInt64, Lo: math.MaxUint64}
	_, ok = AddUnsigned(maxI128, NewU128(1))
	require.False(t, ok)

	minI128 := I128{Hi: 1 << 63}
	sum, ok = AddUnsigned(minI128, MaxFunderDebt)
	require.True(t, ok)
	require.Equal(t, NewI128(-1), sum)
}

func TestTextMarshalling(t *testing.T) {
	var u U128
	require.NoError(t, u.UnmarshalText([]byte("42")))
	require.Equal(t, NewU128(42), u)

	var i I128
	require.NoError(t, i.UnmarshalText([]byte("-42")))
	text, err := i.MarshalText()
	require.NoError(t, err)
	require.Equal(t, "-42", string(text))
}
