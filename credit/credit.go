// Package credit implements the fixed-width 128-bit quantities carried by
// mutual-credit channel reports. Balances are signed (two's complement) and
// debts are unsigned. Both are stored as two 64-bit halves, which is also how
// they travel on the wire.
package credit

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/holiman/uint256"
)

var (
	// ErrOutOfRange is returned when a value does not fit the 128-bit type.
	ErrOutOfRange = errors.New("credit: value out of 128-bit range")
	// ErrSyntax is returned when a decimal string cannot be parsed.
	ErrSyntax = errors.New("credit: invalid decimal amount")
)

// U128 is an unsigned 128-bit credit amount.
type U128 struct {
	Hi uint64
	Lo uint64
}

// I128 is a signed 128-bit credit amount in two's complement.
type I128 struct {
	Hi uint64
	Lo uint64
}

// MaxFunderDebt is the largest debt a channel may carry. The full unsigned
// range is not usable because a balance (I128) cannot go beyond it.
var MaxFunderDebt = U128{Hi: math.MaxInt64, Lo: math.MaxUint64}

// NewU128 converts a uint64 into a U128.
func NewU128(v uint64) U128 {
	return U128{Lo: v}
}

// NewI128 converts an int64 into an I128, sign extending the upper half.
func NewI128(v int64) I128 {
	if v < 0 {
		return I128{Hi: math.MaxUint64, Lo: uint64(v)}
	}
	return I128{Lo: uint64(v)}
}

// Int returns the value as a 256-bit integer.
func (u U128) Int() *uint256.Int {
	return &uint256.Int{u.Lo, u.Hi, 0, 0}
}

// Int returns the value as a sign-extended 256-bit integer. Signed
// comparisons on the result (Slt, Sgt, Sign) match the 128-bit semantics.
func (i I128) Int() *uint256.Int {
	if i.Negative() {
		return &uint256.Int{i.Lo, i.Hi, math.MaxUint64, math.MaxUint64}
	}
	return &uint256.Int{i.Lo, i.Hi, 0, 0}
}

// IsZero reports whether u is zero.
func (u U128) IsZero() bool { return u.Hi == 0 && u.Lo == 0 }

// Cmp compares u and v and returns -1, 0 or +1.
func (u U128) Cmp(v U128) int {
	return u.Int().Cmp(v.Int())
}

// Less reports whether u < v.
func (u U128) Less(v U128) bool { return u.Cmp(v) < 0 }

// Negative reports whether i < 0.
func (i I128) Negative() bool { return i.Hi>>63 == 1 }

// Cmp compares i and j as signed values and returns -1, 0 or +1.
func (i I128) Cmp(j I128) int {
	a, b := i.Int(), j.Int()
	switch {
	case a.Slt(b):
		return -1
	case a.Sgt(b):
		return 1
	default:
		return 0
	}
}

// AddUnsigned returns i+u. The boolean result is false when the sum is not
// representable as an I128.
func AddUnsigned(i I128, u U128) (I128, bool) {
	sum := new(uint256.Int).Add(i.Int(), u.Int())
	return fromSigned(sum)
}

// U128FromInt narrows a 256-bit integer into a U128.
func U128FromInt(x *uint256.Int) (U128, error) {
	if x[2] != 0 || x[3] != 0 {
		return U128{}, ErrOutOfRange
	}
	return U128{Hi: x[1], Lo: x[0]}, nil
}

// fromSigned narrows a sign-extended 256-bit value. The value fits when the
// upper 129 bits are all equal.
func fromSigned(x *uint256.Int) (I128, bool) {
	out := I128{Hi: x[1], Lo: x[0]}
	var ext uint64
	if out.Negative() {
		ext = math.MaxUint64
	}
	if x[2] != ext || x[3] != ext {
		return I128{}, false
	}
	return out, true
}

// ParseU128 parses a base-10 unsigned amount.
func ParseU128(s string) (U128, error) {
	x, err := uint256.FromDecimal(strings.TrimSpace(s))
	if err != nil {
		return U128{}, fmt.Errorf("%w %q: %v", ErrSyntax, s, err)
	}
	return U128FromInt(x)
}

// ParseI128 parses a base-10 signed amount.
func ParseI128(s string) (I128, error) {
	s = strings.TrimSpace(s)
	neg := strings.HasPrefix(s, "-")
	digits := strings.TrimPrefix(strings.TrimPrefix(s, "-"), "+")
	x, err := uint256.FromDecimal(digits)
	if err != nil {
		return I128{}, fmt.Errorf("%w %q: %v", ErrSyntax, s, err)
	}
	if neg {
		x.Neg(x)
	}
	v, ok := fromSigned(x)
	if !ok || (!neg && v.Negative()) || (neg && !x.IsZero() && !v.Negative()) {
		return I128{}, ErrOutOfRange
	}
	return v, nil
}

// String returns the decimal form of u.
func (u U128) String() string { return u.Int().Dec() }

// String returns the decimal form of i.
func (i I128) String() string {
	if !i.Negative() {
		return i.Int().Dec()
	}
	return "-" + new(uint256.Int).Neg(i.Int()).Dec()
}

// MarshalText implements encoding.TextMarshaler.
func (u U128) MarshalText() ([]byte, error) { return []byte(u.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *U128) UnmarshalText(text []byte) error {
	v, err := ParseU128(string(text))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (i I128) MarshalText() ([]byte, error) { return []byte(i.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *I128) UnmarshalText(text []byte) error {
	v, err := ParseI128(string(text))
	if err != nil {
		return err
	}
	*i = v
	return nil
}
