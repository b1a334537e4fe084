// Package verification reconciles the on-ledger stake records with the
// stake history archive. Replaying the archived events of a mint must
// reproduce its stake record and the custody of the NFT.
package verification

import (
	"context"
	"errors"
	"fmt"

	"nft-stake-vault/internal/domain"
)

// ErrInconsistentHistory is returned when archived events cannot follow each
// other, e.g. an unstake without a preceding stake.
var ErrInconsistentHistory = errors.New("inconsistent stake history")

// FieldDivergence represents a mismatch between replayed and ledger values.
type FieldDivergence struct {
	Field    string      `json:"field"`
	Expected interface{} `json:"expected"` // replayed value
	Actual   interface{} `json:"actual"`   // ledger value
}

// VerificationResult contains the result of verifying a single mint.
type VerificationResult struct {
	Mint        domain.Pubkey     `json:"mint"`
	Events      int               `json:"events"`
	Match       bool              `json:"match"`
	Divergences []FieldDivergence `json:"divergences,omitempty"`
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalMints     int                  `json:"total_mints"`
	MatchedMints   int                  `json:"matched_mints"`
	DivergentMints int                  `json:"divergent_mints"`
	Results        []VerificationResult `json:"results"`
}

// Verifier checks ledger state against the archive.
type Verifier interface {
	// VerifyMint replays the history of one NFT and compares it with the
	// ledger.
	VerifyMint(ctx context.Context, mint domain.Pubkey) (*VerificationResult, error)

	// VerifyAll verifies every mint and reports per-mint results.
	VerifyAll(ctx context.Context, mints []domain.Pubkey) (*VerificationReport, error)
}

// ReplayHistory folds events, ordered by timestamp, into the stake record
// they imply. It returns nil for an empty history.
func ReplayHistory(events []*domain.StakeEvent) (*domain.StakeRecord, error) {
	var rec *domain.StakeRecord
	for _, ev := range events {
		switch ev.Kind {
		case domain.StakeEventStake:
			if rec != nil && rec.Active {
				return nil, fmt.Errorf("%w: stake %s while active", ErrInconsistentHistory, ev.TxID)
			}
			rec = &domain.StakeRecord{Timestamp: uint64(ev.Timestamp), Staker: ev.Staker, Active: true}
		case domain.StakeEventUnstake:
			if rec == nil || !rec.Active {
				return nil, fmt.Errorf("%w: unstake %s while inactive", ErrInconsistentHistory, ev.TxID)
			}
			if rec.Staker != ev.Staker {
				return nil, fmt.Errorf("%w: unstake %s by %s, staked by %s", ErrInconsistentHistory, ev.TxID, ev.Staker, rec.Staker)
			}
			rec.Active = false
		default:
			return nil, fmt.Errorf("%w: unknown event kind %q", ErrInconsistentHistory, ev.Kind)
		}
	}
	return rec, nil
}

// CompareStakeRecords compares the replayed record with the ledger record.
// A nil record stands for an absent account.
func CompareStakeRecords(replayed, ledger *domain.StakeRecord) []FieldDivergence {
	if replayed == nil || ledger == nil {
		if replayed == ledger {
			return nil
		}
		return []FieldDivergence{{Field: "Exists", Expected: replayed != nil, Actual: ledger != nil}}
	}

	var divergences []FieldDivergence

	if replayed.Active != ledger.Active {
		divergences = append(divergences, FieldDivergence{
			Field:    "Active",
			Expected: replayed.Active,
			Actual:   ledger.Active,
		})
	}

	if replayed.Staker != ledger.Staker {
		divergences = append(divergences, FieldDivergence{
			Field:    "Staker",
			Expected: replayed.Staker,
			Actual:   ledger.Staker,
		})
	}

	if replayed.Timestamp != ledger.Timestamp {
		divergences = append(divergences, FieldDivergence{
			Field:    "Timestamp",
			Expected: replayed.Timestamp,
			Actual:   ledger.Timestamp,
		})
	}

	return divergences
}
