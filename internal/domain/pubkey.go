package domain

import (
	"bytes"
	"fmt"

	"github.com/mr-tron/base58"
)

// PubkeyLength is the size of an account address in bytes.
const PubkeyLength = 32

// Pubkey is a ledger account address.
// Text form is base58, matching what wallets and RPC endpoints emit.
type Pubkey [PubkeyLength]byte

// PubkeyFromBase58 parses a base58 encoded address.
func PubkeyFromBase58(s string) (Pubkey, error) {
	var pk Pubkey
	raw, err := base58.Decode(s)
	if err != nil {
		return pk, fmt.Errorf("decode pubkey %q: %w", s, err)
	}
	if len(raw) != PubkeyLength {
		return pk, fmt.Errorf("decode pubkey %q: invalid length %d", s, len(raw))
	}
	copy(pk[:], raw)
	return pk, nil
}

// MustPubkeyFromBase58 is PubkeyFromBase58 for constants. Panics on bad input.
func MustPubkeyFromBase58(s string) Pubkey {
	pk, err := PubkeyFromBase58(s)
	if err != nil {
		panic(err)
	}
	return pk
}

// PubkeyFromBytes copies b into a Pubkey. b must be exactly 32 bytes.
func PubkeyFromBytes(b []byte) (Pubkey, error) {
	var pk Pubkey
	if len(b) != PubkeyLength {
		return pk, fmt.Errorf("pubkey: invalid length %d", len(b))
	}
	copy(pk[:], b)
	return pk, nil
}

// String returns the base58 form.
func (p Pubkey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the raw key bytes.
func (p Pubkey) Bytes() []byte {
	out := make([]byte, PubkeyLength)
	copy(out, p[:])
	return out
}

// IsZero reports whether the key is all zero bytes.
func (p Pubkey) IsZero() bool {
	return p == Pubkey{}
}

// Equals compares two keys.
func (p Pubkey) Equals(other Pubkey) bool {
	return bytes.Equal(p[:], other[:])
}

// MarshalText implements encoding.TextMarshaler.
func (p Pubkey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Pubkey) UnmarshalText(text []byte) error {
	pk, err := PubkeyFromBase58(string(text))
	if err != nil {
		return err
	}
	*p = pk
	return nil
}
