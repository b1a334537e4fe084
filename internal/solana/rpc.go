// Package solana is a client for the JSON-RPC and websocket endpoints of a
// Solana cluster, scoped to reading stake vault accounts.
package solana

import (
	"context"

	"nft-stake-vault/internal/domain"
)

// RPCClient defines the Solana RPC HTTP calls the vault tooling uses.
type RPCClient interface {
	// GetAccountInfo returns the account at pubkey, or nil if it does not exist.
	GetAccountInfo(ctx context.Context, pubkey domain.Pubkey) (*AccountInfo, error)

	// GetProgramAccounts lists accounts owned by programID matching filters.
	GetProgramAccounts(ctx context.Context, programID domain.Pubkey, filters ...AccountFilter) ([]KeyedAccount, error)

	// GetSlot returns the current slot.
	GetSlot(ctx context.Context) (uint64, error)
}
