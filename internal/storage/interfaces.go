package storage

import (
	"context"

	"nft-stake-vault/internal/domain"
)

// AccountStore holds ledger accounts keyed by address.
type AccountStore interface {
	// GetAccount reads the committed state. Returns ErrNotFound if absent.
	GetAccount(ctx context.Context, key domain.Pubkey) (*domain.Account, error)

	// Begin opens a transaction. Writes become visible to other readers only
	// after Commit. Transactions that touch the same accounts are serialized.
	Begin(ctx context.Context) (AccountTx, error)
}

// AccountTx is one atomic unit of account writes.
type AccountTx interface {
	// GetAccount reads through the transaction's own writes.
	// Returns ErrNotFound if absent.
	GetAccount(ctx context.Context, key domain.Pubkey) (*domain.Account, error)

	// PutAccount creates or replaces an account.
	PutAccount(ctx context.Context, acct *domain.Account) error

	// DeleteAccount removes an account. Deleting an absent account is a no-op.
	DeleteAccount(ctx context.Context, key domain.Pubkey) error

	// Commit applies all writes atomically.
	Commit(ctx context.Context) error

	// Rollback discards all writes. Safe to call after Commit.
	Rollback(ctx context.Context) error
}

// StakeEventStore provides access to the stake history archive.
type StakeEventStore interface {
	// InsertBulk adds events atomically. Fails the entire batch on a duplicate
	// (tx_id, event_index).
	InsertBulk(ctx context.Context, events []*domain.StakeEvent) error

	// GetByMint retrieves the history of one NFT, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint domain.Pubkey) ([]*domain.StakeEvent, error)

	// GetByStaker retrieves every event of one holder, ordered by timestamp ASC.
	GetByStaker(ctx context.Context, staker domain.Pubkey) ([]*domain.StakeEvent, error)
}
