package domain

// StakeEventKind identifies a custody transition.
type StakeEventKind string

const (
	StakeEventStake   StakeEventKind = "STAKE"
	StakeEventUnstake StakeEventKind = "UNSTAKE"
)

// StakeEvent is one committed transition of a StakeRecord.
// The on-ledger record only keeps the latest cycle; these events form the
// full history and are stored off-ledger.
type StakeEvent struct {
	TxID       string         `json:"tx_id"`      // id of the committing transaction
	EventIndex int            `json:"event_index"` // position within the transaction
	Kind       StakeEventKind `json:"kind"`
	Mint       Pubkey         `json:"mint"`
	Staker     Pubkey         `json:"staker"`
	Collection Pubkey         `json:"collection"`
	Timestamp  int64          `json:"timestamp"` // ledger clock, unix seconds
	Periods    uint64         `json:"periods"`   // elapsed reward periods, unstake only
	Reward     uint64         `json:"reward"`    // reward units paid, unstake only
}
