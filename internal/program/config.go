package program

import (
	"errors"
	"fmt"

	"nft-stake-vault/internal/domain"
)

// Config carries the identities fixed for the lifetime of a deployment.
type Config struct {
	ProgramID  domain.Pubkey // address the program executes as
	Admin      domain.Pubkey // sole identity allowed to configure and withdraw
	RewardMint domain.Pubkey // token paid out as staking reward
}

// Validate rejects unset identities.
func (c Config) Validate() error {
	var errs []error
	if c.ProgramID.IsZero() {
		errs = append(errs, errors.New("program id is required"))
	}
	if c.Admin.IsZero() {
		errs = append(errs, errors.New("admin is required"))
	}
	if c.RewardMint.IsZero() {
		errs = append(errs, errors.New("reward mint is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid program config: %w", errors.Join(errs...))
	}
	return nil
}
