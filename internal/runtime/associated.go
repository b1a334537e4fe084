package runtime

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

// associatedService implements program.AssociatedTokenService.
type associatedService struct {
	h *host
}

// Create initializes the canonical holding account of wallet for mint,
// funding its deposit from payer.
func (s associatedService) Create(ctx context.Context, payer, wallet, mint domain.Pubkey) error {
	ata, err := pda.AssociatedTokenAddress(wallet, mint)
	if err != nil {
		return fmt.Errorf("derive holding account: %w", err)
	}
	if err := s.h.requireWritable(ata); err != nil {
		return err
	}
	if err := s.h.requireWritable(payer); err != nil {
		return err
	}
	if err := s.h.authorize(payer, nil); err != nil {
		return err
	}

	mintAcct, err := s.h.load(ctx, mint)
	if err != nil {
		return err
	}
	if mintAcct.Owner != domain.TokenProgramID {
		return fmt.Errorf("%w: %s owned by %s", ErrInvalidMint, mint, mintAcct.Owner)
	}
	if _, err := domain.DecodeMint(mintAcct.Data); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidMint, mint, err)
	}

	acct, err := s.h.load(ctx, ata)
	if err != nil {
		return err
	}
	if acct.Owner != domain.SystemProgramID || len(acct.Data) != 0 {
		return fmt.Errorf("%w: %s", ErrAccountInUse, ata)
	}

	required := s.h.rent.MinimumBalance(domain.TokenAccountSize)
	if acct.Lamports < required {
		if err := s.h.moveLamports(ctx, payer, ata, required-acct.Lamports); err != nil {
			return fmt.Errorf("fund %s: %w", ata, err)
		}
		if acct, err = s.h.load(ctx, ata); err != nil {
			return err
		}
	}

	acct.Owner = domain.TokenProgramID
	acct.Data = domain.TokenAccount{
		Mint:  mint,
		Owner: wallet,
		State: domain.TokenAccountInitialized,
	}.Encode()
	return s.h.tx.PutAccount(ctx, acct)
}
