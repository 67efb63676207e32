package report

import (
	"encoding/hex"
	"fmt"
)

// Sizes of the opaque byte payloads carried in reports.
const (
	PublicKeyLen  = 32
	SignatureLen  = 64
	HashResultLen = 32
	RandValueLen  = 16
)

// PublicKey identifies a node, friend, relay or index server.
type PublicKey [PublicKeyLen]byte

// Signature is an opaque signature. Reports never verify it.
type Signature [SignatureLen]byte

// HashResult is an opaque hash value.
type HashResult [HashResultLen]byte

// RandValue is an opaque nonce.
type RandValue [RandValueLen]byte

// String returns the hex encoding of the key.
func (pk PublicKey) String() string { return hex.EncodeToString(pk[:]) }

// Short returns an abbreviated hex form suitable for log lines.
func (pk PublicKey) Short() string { return hex.EncodeToString(pk[:4]) }

// ParsePublicKey decodes a hex encoded public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var pk PublicKey
	raw, err := hex.DecodeString(s)
	if err != nil {
		return pk, fmt.Errorf("parse public key: %w", err)
	}
	if len(raw) != PublicKeyLen {
		return pk, fmt.Errorf("parse public key: expected %d bytes, got %d", PublicKeyLen, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// RelayAddress is a relay advertised to (or by) a friend.
type RelayAddress struct {
	PublicKey PublicKey
	Address   string
}

// NamedRelayAddress is a locally configured relay.
type NamedRelayAddress struct {
	PublicKey PublicKey
	Address   string
	Name      string
}

// NamedIndexServerAddress is a locally configured index server.
type NamedIndexServerAddress struct {
	PublicKey PublicKey
	Address   string
	Name      string
}
