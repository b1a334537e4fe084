package verification

import (
	"context"
	"errors"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
	"nft-stake-vault/internal/storage"
)

// LedgerVerifier implements Verifier over an account store and a stake
// event store.
type LedgerVerifier struct {
	programID domain.Pubkey
	accounts  storage.AccountStore
	history   storage.StakeEventStore
}

// LedgerVerifierOptions contains configuration for creating a LedgerVerifier.
type LedgerVerifierOptions struct {
	ProgramID domain.Pubkey
	Accounts  storage.AccountStore
	History   storage.StakeEventStore
}

// NewLedgerVerifier creates a new LedgerVerifier.
func NewLedgerVerifier(opts LedgerVerifierOptions) *LedgerVerifier {
	return &LedgerVerifier{
		programID: opts.ProgramID,
		accounts:  opts.Accounts,
		history:   opts.History,
	}
}

var _ Verifier = (*LedgerVerifier)(nil)

// VerifyMint replays the archived events of mint and compares the result
// with its stake record and with the vault's NFT holding.
func (v *LedgerVerifier) VerifyMint(ctx context.Context, mint domain.Pubkey) (*VerificationResult, error) {
	// 1. Load archived history
	events, err := v.history.GetByMint(ctx, mint)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	// 2. Replay it
	replayed, err := ReplayHistory(events)
	if err != nil {
		return nil, err
	}

	// 3. Read the ledger
	ledger, err := v.stakeRecord(ctx, mint)
	if err != nil {
		return nil, err
	}
	custody, err := v.vaultHolding(ctx, mint)
	if err != nil {
		return nil, err
	}

	// 4. Compare
	divergences := CompareStakeRecords(replayed, ledger)
	var wantCustody uint64
	if replayed != nil && replayed.Active {
		wantCustody = 1
	}
	if custody != wantCustody {
		divergences = append(divergences, FieldDivergence{
			Field:    "Custody",
			Expected: wantCustody,
			Actual:   custody,
		})
	}

	return &VerificationResult{
		Mint:        mint,
		Events:      len(events),
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// VerifyAll verifies every mint. Errors are recorded as divergences.
func (v *LedgerVerifier) VerifyAll(ctx context.Context, mints []domain.Pubkey) (*VerificationReport, error) {
	report := &VerificationReport{
		TotalMints: len(mints),
		Results:    make([]VerificationResult, 0, len(mints)),
	}

	for _, mint := range mints {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := v.VerifyMint(ctx, mint)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				Mint:  mint,
				Match: false,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentMints++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedMints++
		} else {
			report.DivergentMints++
		}
	}

	return report, nil
}

func (v *LedgerVerifier) stakeRecord(ctx context.Context, mint domain.Pubkey) (*domain.StakeRecord, error) {
	addr, _, err := pda.StakeAddress(v.programID, mint)
	if err != nil {
		return nil, fmt.Errorf("derive stake record: %w", err)
	}
	acct, err := v.accounts.GetAccount(ctx, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read stake record: %w", err)
	}
	rec, err := domain.DecodeStakeRecord(acct.Data)
	if err != nil {
		return nil, fmt.Errorf("decode stake record: %w", err)
	}
	return rec, nil
}

func (v *LedgerVerifier) vaultHolding(ctx context.Context, mint domain.Pubkey) (uint64, error) {
	vault, _, err := pda.VaultAddress(v.programID)
	if err != nil {
		return 0, fmt.Errorf("derive vault: %w", err)
	}
	ata, err := pda.AssociatedTokenAddress(vault, mint)
	if err != nil {
		return 0, fmt.Errorf("derive vault holding: %w", err)
	}
	acct, err := v.accounts.GetAccount(ctx, ata)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read vault holding: %w", err)
	}
	ta, err := domain.DecodeTokenAccount(acct.Data)
	if err != nil {
		return 0, fmt.Errorf("decode vault holding: %w", err)
	}
	return ta.Amount, nil
}
