// Package program implements the stake vault instruction handlers.
//
// Handlers are pure functions of (config, host, accounts, payload). All state
// lives in ledger accounts reached through Host; the host applies a whole
// instruction atomically or not at all.
package program

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

// SystemService moves native balance and manages account allocation.
type SystemService interface {
	Transfer(ctx context.Context, from, to domain.Pubkey, lamports uint64, signers ...*pda.Signer) error
	Allocate(ctx context.Context, account domain.Pubkey, space int, signers ...*pda.Signer) error
	Assign(ctx context.Context, account, owner domain.Pubkey, signers ...*pda.Signer) error
}

// TokenService moves token units between holding accounts.
type TokenService interface {
	Transfer(ctx context.Context, source, destination, authority domain.Pubkey, amount uint64, signers ...*pda.Signer) error
	CloseAccount(ctx context.Context, account, destination, authority domain.Pubkey, signers ...*pda.Signer) error
}

// AssociatedTokenService creates canonical holding accounts.
type AssociatedTokenService interface {
	Create(ctx context.Context, payer, wallet, mint domain.Pubkey) error
}

// Host is the ledger as seen by one executing instruction.
type Host interface {
	// Now returns the ledger clock in unix seconds.
	Now() int64
	Rent() domain.Rent
	// Account returns a copy of the account. Absent accounts read as
	// system-owned with zero balance and no data.
	Account(ctx context.Context, key domain.Pubkey) (*domain.Account, error)
	// SetData overwrites the data of a program-owned, writable account.
	SetData(ctx context.Context, key domain.Pubkey, data []byte) error
	Log(format string, args ...any)
	Emit(ev domain.StakeEvent)

	System() SystemService
	Token() TokenService
	AssociatedToken() AssociatedTokenService
}

// Processor dispatches instructions to their handlers.
type Processor struct {
	cfg Config
}

// NewProcessor validates cfg and returns a processor bound to it.
func NewProcessor(cfg Config) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Processor{cfg: cfg}, nil
}

// Config returns the processor's configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// Process decodes data and runs the matching handler.
func (p *Processor) Process(ctx context.Context, host Host, accounts []domain.AccountMeta, data []byte) error {
	ix, err := DecodeInstruction(data)
	if err != nil {
		return err
	}
	host.Log("Instruction: %s", ix.Tag())

	it := newAccountIter(accounts)
	switch ix := ix.(type) {
	case ConfigureVault:
		return p.configureVault(ctx, host, it, ix)
	case SetPrice:
		return p.setPrice(ctx, host, it, ix)
	case Stake:
		return p.stake(ctx, host, it)
	case Unstake:
		return p.unstake(ctx, host, it)
	case Withdraw:
		return p.withdraw(ctx, host, it, ix)
	default:
		return newError(KindDecodeFault, CodeDecodeFault, "unhandled instruction %T", ix)
	}
}

// allocateIfAbsent turns key into a program-owned account of size bytes
// unless the program already owns it. Any missing deposit is paid by payer.
func (p *Processor) allocateIfAbsent(ctx context.Context, host Host, payer domain.Pubkey, signer *pda.Signer, size int) (bool, error) {
	key := signer.Address()
	acct, err := host.Account(ctx, key)
	if err != nil {
		return false, fmt.Errorf("load %s: %w", key, err)
	}
	if acct.IsOwnedBy(p.cfg.ProgramID) {
		return false, nil
	}

	required := host.Rent().MinimumBalance(size)
	if required == 0 {
		required = 1
	}
	if acct.Lamports < required {
		if err := host.System().Transfer(ctx, payer, key, required-acct.Lamports); err != nil {
			return false, fmt.Errorf("fund %s: %w", key, err)
		}
	}
	if err := host.System().Allocate(ctx, key, size, signer); err != nil {
		return false, fmt.Errorf("allocate %s: %w", key, err)
	}
	if err := host.System().Assign(ctx, key, p.cfg.ProgramID, signer); err != nil {
		return false, fmt.Errorf("assign %s: %w", key, err)
	}
	return true, nil
}

// createATAIfAbsent creates the holding account of wallet for mint unless
// the token program already owns it.
func createATAIfAbsent(ctx context.Context, host Host, payer, wallet, mint, ata domain.Pubkey) error {
	acct, err := host.Account(ctx, ata)
	if err != nil {
		return fmt.Errorf("load %s: %w", ata, err)
	}
	if acct.IsOwnedBy(domain.TokenProgramID) {
		return nil
	}
	if err := host.AssociatedToken().Create(ctx, payer, wallet, mint); err != nil {
		return fmt.Errorf("create holding account %s: %w", ata, err)
	}
	return nil
}

// clockSeconds reads the ledger clock as an unsigned timestamp.
func clockSeconds(host Host) (uint64, error) {
	now := host.Now()
	if now < 0 {
		return 0, newError(KindInvalidParameter, CodeClock, "ledger clock before epoch: %d", now)
	}
	return uint64(now), nil
}
