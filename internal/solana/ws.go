package solana

import (
	"context"

	"nft-stake-vault/internal/domain"
)

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SubscribeProgram streams changes to accounts owned by a program.
	SubscribeProgram(ctx context.Context, filter ProgramFilter) (<-chan AccountNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// ProgramFilter defines a programSubscribe subscription.
type ProgramFilter struct {
	ProgramID domain.Pubkey
	Filters   []AccountFilter
}

// AccountNotification is one account change pushed by the cluster.
type AccountNotification struct {
	Pubkey  domain.Pubkey
	Slot    uint64
	Account *AccountInfo
}
