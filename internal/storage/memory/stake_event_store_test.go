package memory

import (
	"context"
	"errors"
	"testing"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/storage"
)

func TestStakeEventStore_InsertAndGetByMint(t *testing.T) {
	store := NewStakeEventStore()
	ctx := context.Background()

	events := []*domain.StakeEvent{
		{TxID: "tx2", Kind: domain.StakeEventUnstake, Mint: keyA, Staker: keyB, Timestamp: 2000, Periods: 25, Reward: 250},
		{TxID: "tx1", Kind: domain.StakeEventStake, Mint: keyA, Staker: keyB, Timestamp: 1000},
		{TxID: "tx3", Kind: domain.StakeEventStake, Mint: keyB, Staker: keyB, Timestamp: 1500},
	}
	if err := store.InsertBulk(ctx, events); err != nil {
		t.Fatalf("InsertBulk failed: %v", err)
	}

	got, err := store.GetByMint(ctx, keyA)
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 events, got %d", len(got))
	}
	if got[0].Kind != domain.StakeEventStake || got[1].Kind != domain.StakeEventUnstake {
		t.Errorf("Events not ordered by timestamp: %s, %s", got[0].Kind, got[1].Kind)
	}
	if got[1].Reward != 250 {
		t.Errorf("Reward mismatch: got %d, want 250", got[1].Reward)
	}

	byStaker, _ := store.GetByStaker(ctx, keyB)
	if len(byStaker) != 3 {
		t.Errorf("Expected 3 events for staker, got %d", len(byStaker))
	}
}

func TestStakeEventStore_DuplicateKey(t *testing.T) {
	store := NewStakeEventStore()
	ctx := context.Background()

	ev := &domain.StakeEvent{TxID: "tx1", EventIndex: 0, Mint: keyA}
	if err := store.InsertBulk(ctx, []*domain.StakeEvent{ev}); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}
	err := store.InsertBulk(ctx, []*domain.StakeEvent{{TxID: "tx2", Mint: keyA}, ev})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}

	// Batch was rejected as a whole
	got, _ := store.GetByMint(ctx, keyA)
	if len(got) != 1 {
		t.Errorf("Expected 1 event after rejected batch, got %d", len(got))
	}
}

func TestStakeEventStore_IntraBatchDuplicate(t *testing.T) {
	store := NewStakeEventStore()
	err := store.InsertBulk(context.Background(), []*domain.StakeEvent{
		{TxID: "tx1", EventIndex: 0},
		{TxID: "tx1", EventIndex: 0},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestStakeEventStore_InvalidInput(t *testing.T) {
	store := NewStakeEventStore()
	err := store.InsertBulk(context.Background(), []*domain.StakeEvent{{Mint: keyA}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput, got %v", err)
	}
}
