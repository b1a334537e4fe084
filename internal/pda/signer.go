package pda

import (
	"errors"
	"fmt"

	"nft-stake-vault/internal/domain"
)

// ErrSignerMismatch is returned when a capability's seeds no longer produce
// its address.
var ErrSignerMismatch = errors.New("pda: signer seeds do not produce address")

// Signer authorizes ledger calls as a derived address. It carries the exact
// seed set (bump included) that produced the address and nothing else.
type Signer struct {
	address   domain.Pubkey
	programID domain.Pubkey
	seeds     [][]byte
}

// DeriveAndSign derives the address for seeds under programID and returns a
// capability scoped to it.
func DeriveAndSign(programID domain.Pubkey, seeds ...[]byte) (*Signer, error) {
	addr, bump, err := FindProgramAddress(seeds, programID)
	if err != nil {
		return nil, err
	}

	scoped := make([][]byte, 0, len(seeds)+1)
	for _, s := range seeds {
		cp := make([]byte, len(s))
		copy(cp, s)
		scoped = append(scoped, cp)
	}
	scoped = append(scoped, []byte{bump})

	return &Signer{address: addr, programID: programID, seeds: scoped}, nil
}

// Address returns the derived address the capability signs for.
func (s *Signer) Address() domain.Pubkey {
	return s.address
}

// ProgramID returns the program the address was derived under.
func (s *Signer) ProgramID() domain.Pubkey {
	return s.programID
}

// Bump returns the bump seed found during derivation.
func (s *Signer) Bump() uint8 {
	return s.seeds[len(s.seeds)-1][0]
}

// Verify recomputes the address from the stored seeds for the executing
// program. The host calls this before honouring the capability.
func (s *Signer) Verify(executing domain.Pubkey) error {
	if s.programID != executing {
		return fmt.Errorf("%w: derived under %s, executing %s", ErrSignerMismatch, s.programID, executing)
	}
	addr, err := CreateProgramAddress(s.seeds, s.programID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSignerMismatch, err)
	}
	if addr != s.address {
		return ErrSignerMismatch
	}
	return nil
}

// Authorizes reports whether the capability signs for key.
func (s *Signer) Authorizes(key domain.Pubkey) bool {
	return s != nil && s.address == key
}
