package runtime

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

// tokenService implements program.TokenService over SPL-layout accounts.
type tokenService struct {
	h *host
}

// Transfer moves amount units between two holding accounts of the same mint.
// The authority must own the source.
func (s tokenService) Transfer(ctx context.Context, source, destination, authority domain.Pubkey, amount uint64, signers ...*pda.Signer) error {
	if err := s.h.requireWritable(source); err != nil {
		return err
	}
	if err := s.h.requireWritable(destination); err != nil {
		return err
	}
	if err := s.h.authorize(authority, signers); err != nil {
		return err
	}

	srcAcct, src, err := s.holding(ctx, source)
	if err != nil {
		return err
	}
	if src.Owner != authority {
		return fmt.Errorf("%w: %s owned by %s, authority %s", ErrOwnerMismatch, source, src.Owner, authority)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, source, src.Amount, amount)
	}
	dstAcct, dst, err := s.holding(ctx, destination)
	if err != nil {
		return err
	}
	if src.Mint != dst.Mint {
		return fmt.Errorf("%w: %s vs %s", ErrMintMismatch, src.Mint, dst.Mint)
	}
	if source == destination {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return fmt.Errorf("%w: %s amount", ErrOverflow, destination)
	}

	src.Amount -= amount
	dst.Amount += amount
	srcAcct.Data = src.Encode()
	dstAcct.Data = dst.Encode()
	if err := s.h.tx.PutAccount(ctx, srcAcct); err != nil {
		return err
	}
	return s.h.tx.PutAccount(ctx, dstAcct)
}

// CloseAccount deletes an empty holding account and sends its deposit to
// destination.
func (s tokenService) CloseAccount(ctx context.Context, account, destination, authority domain.Pubkey, signers ...*pda.Signer) error {
	if err := s.h.requireWritable(account); err != nil {
		return err
	}
	if err := s.h.requireWritable(destination); err != nil {
		return err
	}
	if err := s.h.authorize(authority, signers); err != nil {
		return err
	}
	if account == destination {
		return fmt.Errorf("close %s: destination is the closed account", account)
	}

	acct, ta, err := s.holding(ctx, account)
	if err != nil {
		return err
	}
	if ta.Owner != authority {
		return fmt.Errorf("%w: %s owned by %s, authority %s", ErrOwnerMismatch, account, ta.Owner, authority)
	}
	if ta.Amount != 0 {
		return fmt.Errorf("%w: %s holds %d", ErrNonZeroBalance, account, ta.Amount)
	}

	dst, err := s.h.load(ctx, destination)
	if err != nil {
		return err
	}
	if dst.Lamports+acct.Lamports < dst.Lamports {
		return fmt.Errorf("%w: %s lamports", ErrOverflow, destination)
	}
	dst.Lamports += acct.Lamports
	if err := s.h.store(ctx, dst); err != nil {
		return err
	}
	return s.h.tx.DeleteAccount(ctx, account)
}

// holding loads and decodes an initialized token account.
func (s tokenService) holding(ctx context.Context, key domain.Pubkey) (*domain.Account, *domain.TokenAccount, error) {
	acct, err := s.h.load(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	if acct.Owner != domain.TokenProgramID {
		return nil, nil, fmt.Errorf("%w: %s owned by %s", ErrNotTokenAccount, key, acct.Owner)
	}
	ta, err := domain.DecodeTokenAccount(acct.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %s: %v", ErrNotTokenAccount, key, err)
	}
	switch ta.State {
	case domain.TokenAccountInitialized:
	case domain.TokenAccountFrozen:
		return nil, nil, fmt.Errorf("%w: %s", ErrAccountFrozen, key)
	default:
		return nil, nil, fmt.Errorf("%w: %s is uninitialized", ErrNotTokenAccount, key)
	}
	return acct, ta, nil
}
