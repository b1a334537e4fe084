// Package pda derives program-owned addresses and the signing capabilities
// bound to them.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"filippo.io/edwards25519"

	"nft-stake-vault/internal/domain"
)

// Derivation limits enforced by the host ledger.
const (
	MaxSeeds      = 16
	MaxSeedLength = 32
)

// pdaMarker is appended to every derivation hash input.
const pdaMarker = "ProgramDerivedAddress"

// Derivation errors.
var (
	ErrMaxSeedLength = errors.New("pda: seed exceeds maximum length")
	ErrTooManySeeds  = errors.New("pda: too many seeds")
	ErrOnCurve       = errors.New("pda: derived address lies on the ed25519 curve")
	ErrNoViableBump  = errors.New("pda: no viable bump seed")
)

// CreateProgramAddress hashes seeds with the program id and rejects results
// that are valid ed25519 points, since those could have a private key.
func CreateProgramAddress(seeds [][]byte, programID domain.Pubkey) (domain.Pubkey, error) {
	if len(seeds) > MaxSeeds {
		return domain.Pubkey{}, fmt.Errorf("%w: %d", ErrTooManySeeds, len(seeds))
	}

	h := sha256.New()
	for _, seed := range seeds {
		if len(seed) > MaxSeedLength {
			return domain.Pubkey{}, fmt.Errorf("%w: %d bytes", ErrMaxSeedLength, len(seed))
		}
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write([]byte(pdaMarker))

	var addr domain.Pubkey
	copy(addr[:], h.Sum(nil))

	if IsOnCurve(addr[:]) {
		return domain.Pubkey{}, ErrOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bump seeds from 255 downwards and returns the
// first off-curve address together with its bump.
func FindProgramAddress(seeds [][]byte, programID domain.Pubkey) (domain.Pubkey, uint8, error) {
	withBump := make([][]byte, len(seeds)+1)
	copy(withBump, seeds)

	for bump := 255; bump > 0; bump-- {
		withBump[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, uint8(bump), nil
		}
		if !errors.Is(err, ErrOnCurve) {
			return domain.Pubkey{}, 0, err
		}
	}
	return domain.Pubkey{}, 0, ErrNoViableBump
}

// IsOnCurve reports whether b decodes as an ed25519 point.
func IsOnCurve(b []byte) bool {
	if len(b) != domain.PubkeyLength {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
