package runtime

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

// MaxAccountDataSize bounds Allocate.
const MaxAccountDataSize = 10 * 1024 * 1024

// systemService implements program.SystemService.
type systemService struct {
	h *host
}

// Transfer moves lamports out of a system-owned, data-free account.
func (s systemService) Transfer(ctx context.Context, from, to domain.Pubkey, lamports uint64, signers ...*pda.Signer) error {
	if err := s.h.requireWritable(from); err != nil {
		return err
	}
	if err := s.h.requireWritable(to); err != nil {
		return err
	}
	if err := s.h.authorize(from, signers); err != nil {
		return err
	}
	src, err := s.h.load(ctx, from)
	if err != nil {
		return err
	}
	if src.Owner != domain.SystemProgramID || len(src.Data) != 0 {
		return fmt.Errorf("%w: transfer source %s carries data or is owned by %s", ErrIllegalOwner, from, src.Owner)
	}
	return s.h.moveLamports(ctx, from, to, lamports)
}

// Allocate gives an empty system account space zeroed bytes.
func (s systemService) Allocate(ctx context.Context, account domain.Pubkey, space int, signers ...*pda.Signer) error {
	if space < 0 || space > MaxAccountDataSize {
		return fmt.Errorf("allocate %s: invalid size %d", account, space)
	}
	acct, err := s.claim(ctx, account, signers)
	if err != nil {
		return err
	}
	if len(acct.Data) != 0 {
		return fmt.Errorf("%w: %s already has %d bytes", ErrAccountInUse, account, len(acct.Data))
	}
	acct.Data = make([]byte, space)
	return s.h.tx.PutAccount(ctx, acct)
}

// Assign hands a system account to owner.
func (s systemService) Assign(ctx context.Context, account, owner domain.Pubkey, signers ...*pda.Signer) error {
	acct, err := s.claim(ctx, account, signers)
	if err != nil {
		return err
	}
	acct.Owner = owner
	return s.h.tx.PutAccount(ctx, acct)
}

// claim loads a writable, system-owned account its authority signed for.
func (s systemService) claim(ctx context.Context, account domain.Pubkey, signers []*pda.Signer) (*domain.Account, error) {
	if err := s.h.requireWritable(account); err != nil {
		return nil, err
	}
	if err := s.h.authorize(account, signers); err != nil {
		return nil, err
	}
	acct, err := s.h.load(ctx, account)
	if err != nil {
		return nil, err
	}
	if acct.Owner != domain.SystemProgramID {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrAccountInUse, account, acct.Owner)
	}
	return acct, nil
}
