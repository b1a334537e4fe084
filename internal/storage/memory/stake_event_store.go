package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/storage"
)

// StakeEventStore is an in-memory implementation of storage.StakeEventStore.
type StakeEventStore struct {
	mu   sync.RWMutex
	data map[string]*domain.StakeEvent // keyed by tx_id|event_index
}

// NewStakeEventStore creates a new in-memory stake event store.
func NewStakeEventStore() *StakeEventStore {
	return &StakeEventStore{
		data: make(map[string]*domain.StakeEvent),
	}
}

func stakeEventKey(txID string, eventIndex int) string {
	return fmt.Sprintf("%s|%d", txID, eventIndex)
}

// InsertBulk adds multiple events atomically. Fails entire batch on any duplicate.
func (s *StakeEventStore) InsertBulk(_ context.Context, events []*domain.StakeEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if ev == nil || ev.TxID == "" {
			return storage.ErrInvalidInput
		}
		key := stakeEventKey(ev.TxID, ev.EventIndex)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, ev := range events {
		cp := *ev
		s.data[stakeEventKey(ev.TxID, ev.EventIndex)] = &cp
	}
	return nil
}

// GetByMint retrieves the history of one NFT, ordered by timestamp ASC.
func (s *StakeEventStore) GetByMint(_ context.Context, mint domain.Pubkey) ([]*domain.StakeEvent, error) {
	return s.filter(func(ev *domain.StakeEvent) bool { return ev.Mint == mint }), nil
}

// GetByStaker retrieves every event of one holder, ordered by timestamp ASC.
func (s *StakeEventStore) GetByStaker(_ context.Context, staker domain.Pubkey) ([]*domain.StakeEvent, error) {
	return s.filter(func(ev *domain.StakeEvent) bool { return ev.Staker == staker }), nil
}

func (s *StakeEventStore) filter(keep func(*domain.StakeEvent) bool) []*domain.StakeEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StakeEvent
	for _, ev := range s.data {
		if keep(ev) {
			cp := *ev
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		if result[i].TxID != result[j].TxID {
			return result[i].TxID < result[j].TxID
		}
		return result[i].EventIndex < result[j].EventIndex
	})
	return result
}

var _ storage.StakeEventStore = (*StakeEventStore)(nil)
