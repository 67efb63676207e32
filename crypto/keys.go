// Package crypto renders node public keys in a checksummed bech32 form for
// operators. Reports themselves keep raw key bytes.
package crypto

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"

	"nodemirror/report"
)

// KeyPrefix is the human-readable part of an encoded public key.
type KeyPrefix string

const (
	NodePrefix  KeyPrefix = "node"
	RelayPrefix KeyPrefix = "relay"
)

// EncodePublicKey returns the bech32 form of pk under prefix.
func EncodePublicKey(prefix KeyPrefix, pk report.PublicKey) string {
	conv, err := bech32.ConvertBits(pk[:], 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

// DecodePublicKey parses a bech32 public key and returns its prefix.
func DecodePublicKey(s string) (KeyPrefix, report.PublicKey, error) {
	var pk report.PublicKey
	prefix, decoded, err := bech32.Decode(s)
	if err != nil {
		return "", pk, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return "", pk, fmt.Errorf("error converting bits: %w", err)
	}
	if len(conv) != report.PublicKeyLen {
		return "", pk, fmt.Errorf("public key must be %d bytes, got %d", report.PublicKeyLen, len(conv))
	}
	copy(pk[:], conv)
	return KeyPrefix(prefix), pk, nil
}
