// Package wire encodes reports, mutations and stream envelopes in the
// protobuf wire format.
//
// Messages are built and parsed directly with protowire; there is no
// generated code. Every union is a message holding exactly one field whose
// number is the discriminant, with an explicit empty field for the absence
// arm. 128-bit quantities are a message of two fixed64 fields, hi and lo.
//
// An unknown discriminant inside a report is ErrMalformedUnion. An unknown
// discriminant at a mutation level decodes to that level's Unknown variant so
// newer producers can talk to older mirrors.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"nodemirror/report"
)

var (
	// ErrTruncated means the input ended inside a field or was otherwise not
	// valid protobuf wire data.
	ErrTruncated = errors.New("wire: truncated or corrupt message")
	// ErrWireType means a known field arrived with the wrong wire type.
	ErrWireType = errors.New("wire: unexpected wire type")
	// ErrFieldLength means a fixed-size byte field had the wrong length.
	ErrFieldLength = errors.New("wire: bad field length")
	// ErrFrame means the byte stream ended inside a frame. Unlike a bad
	// payload, the stream cannot be resumed.
	ErrFrame = errors.New("wire: broken frame")
	// ErrFrameTooLarge means a frame header announced more than the reader
	// accepts.
	ErrFrameTooLarge = errors.New("wire: frame too large")
	// ErrMalformedUnion means a union had no arm, several arms, or an arm
	// this build does not know in a place where it cannot be skipped.
	ErrMalformedUnion = report.ErrMalformedUnion
	// ErrInvalidTag means an Unknown variant carries a tag outside the
	// protobuf field number range, so it has no wire form.
	ErrInvalidTag = errors.New("wire: invalid unknown variant tag")
)

type field struct {
	num protowire.Number
	typ protowire.Type
	// u holds varint and fixed64 values.
	u uint64
	// b holds length-delimited values. It aliases the input.
	b []byte
}

func parseFields(b []byte) ([]field, error) {
	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, parseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.u, n = protowire.ConsumeVarint(b)
		case protowire.Fixed64Type:
			f.u, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, parseError(n)
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

func parseError(n int) error {
	return fmt.Errorf("%w: %v", ErrTruncated, protowire.ParseError(n))
}

// oneField parses a union message.
func oneField(b []byte) (field, error) {
	fields, err := parseFields(b)
	if err != nil {
		return field{}, err
	}
	if len(fields) != 1 {
		return field{}, fmt.Errorf("%w: %d arms set", ErrMalformedUnion, len(fields))
	}
	return fields[0], nil
}

func (f field) expect(typ protowire.Type) error {
	if f.typ != typ {
		return fmt.Errorf("%w: field %d is %d, want %d", ErrWireType, f.num, f.typ, typ)
	}
	return nil
}

func (f field) bytes() ([]byte, error) {
	if err := f.expect(protowire.BytesType); err != nil {
		return nil, err
	}
	return f.b, nil
}

func (f field) varint() (uint64, error) {
	if err := f.expect(protowire.VarintType); err != nil {
		return 0, err
	}
	return f.u, nil
}

func (f field) fixed64() (uint64, error) {
	if err := f.expect(protowire.Fixed64Type); err != nil {
		return 0, err
	}
	return f.u, nil
}

func (f field) fixedBytes(dst []byte) error {
	v, err := f.bytes()
	if err != nil {
		return err
	}
	if len(v) != len(dst) {
		return fmt.Errorf("%w: field %d has %d bytes, want %d", ErrFieldLength, f.num, len(v), len(dst))
	}
	copy(dst, v)
	return nil
}

func (f field) publicKey() (report.PublicKey, error) {
	var pk report.PublicKey
	err := f.fixedBytes(pk[:])
	return pk, err
}

type enum interface {
	~uint8
	Valid() bool
}

// decodeEnum rejects values this build does not name; an enum is a
// discriminant like any union.
func decodeEnum[E enum](f field) (E, error) {
	v, err := f.varint()
	if err != nil {
		return 0, err
	}
	e := E(v)
	if v > 0xff || !e.Valid() {
		return 0, fmt.Errorf("%w: field %d has unknown value %d", ErrMalformedUnion, f.num, v)
	}
	return e, nil
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// appendVarint omits zero values. Use appendArmVarint for union arms, where
// presence is the discriminant.
func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	return appendArmVarint(b, num, v)
}

func appendArmVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFixed64(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, v)
}
