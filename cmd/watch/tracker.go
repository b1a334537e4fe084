package main

import (
	"fmt"
	"sync"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/idhash"
	"nft-stake-vault/internal/pda"
	"nft-stake-vault/internal/solana"
)

// tracker turns stake record snapshots into stake events by comparing each
// snapshot with the last one seen for the same address.
type tracker struct {
	mu    sync.Mutex
	last  map[domain.Pubkey]domain.StakeRecord
	mints map[domain.Pubkey]domain.Pubkey // stake record address -> mint
}

func newTracker(programID domain.Pubkey, mints []domain.Pubkey) (*tracker, error) {
	t := &tracker{
		last:  make(map[domain.Pubkey]domain.StakeRecord),
		mints: make(map[domain.Pubkey]domain.Pubkey, len(mints)),
	}
	for _, mint := range mints {
		addr, _, err := pda.StakeAddress(programID, mint)
		if err != nil {
			return nil, fmt.Errorf("derive stake record of %s: %w", mint, err)
		}
		t.mints[addr] = mint
	}
	return t, nil
}

// seed records the current state without emitting events.
func (t *tracker) seed(entries []solana.StakeEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.last[e.Address] = *e.Record
	}
}

// observe returns the event implied by entry, if its state changed.
// now stamps unstake events, whose record keeps the stake time.
func (t *tracker) observe(entry solana.StakeEntry, slot uint64, now int64) (*domain.StakeEvent, bool) {
	t.mu.Lock()
	prev, seen := t.last[entry.Address]
	t.last[entry.Address] = *entry.Record
	mint := t.mints[entry.Address]
	t.mu.Unlock()

	rec := entry.Record
	ev := &domain.StakeEvent{
		Mint:   mint,
		Staker: rec.Staker,
	}

	switch {
	case rec.Active && (!seen || !prev.Active || prev.Timestamp != rec.Timestamp):
		ev.Kind = domain.StakeEventStake
		ev.Timestamp = int64(rec.Timestamp)
	case !rec.Active && seen && prev.Active:
		ev.Kind = domain.StakeEventUnstake
		ev.Timestamp = now
	default:
		return nil, false
	}
	ev.TxID = idhash.ComputeObservedEventID(entry.Address, slot, ev.Kind)
	return ev, true
}

// known reports whether the mint behind addr is known.
func (t *tracker) known(addr domain.Pubkey) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.mints[addr]
	return ok
}
