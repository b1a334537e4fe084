package memory

import (
	"context"
	"sync"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/storage"
)

// AccountStore is an in-memory implementation of storage.AccountStore.
// Only one transaction is open at a time, which serializes writers the way
// the ledger scheduler does.
type AccountStore struct {
	mu   sync.RWMutex
	data map[domain.Pubkey]*domain.Account

	txSlot chan struct{}
}

// NewAccountStore creates an empty in-memory account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		data:   make(map[domain.Pubkey]*domain.Account),
		txSlot: make(chan struct{}, 1),
	}
}

// GetAccount returns a copy of the committed account.
func (s *AccountStore) GetAccount(_ context.Context, key domain.Pubkey) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acct, ok := s.data[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return acct.Clone(), nil
}

// Begin waits for the transaction slot and opens a transaction.
func (s *AccountStore) Begin(ctx context.Context) (storage.AccountTx, error) {
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &accountTx{
		store:   s,
		overlay: make(map[domain.Pubkey]*domain.Account),
	}, nil
}

// Len returns the number of committed accounts.
func (s *AccountStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// accountTx buffers writes until commit. A nil overlay entry marks a delete.
type accountTx struct {
	store   *AccountStore
	overlay map[domain.Pubkey]*domain.Account
	order   []domain.Pubkey
	done    bool
}

func (tx *accountTx) GetAccount(ctx context.Context, key domain.Pubkey) (*domain.Account, error) {
	if tx.done {
		return nil, storage.ErrTxDone
	}
	if acct, ok := tx.overlay[key]; ok {
		if acct == nil {
			return nil, storage.ErrNotFound
		}
		return acct.Clone(), nil
	}
	return tx.store.GetAccount(ctx, key)
}

func (tx *accountTx) PutAccount(_ context.Context, acct *domain.Account) error {
	if tx.done {
		return storage.ErrTxDone
	}
	if acct == nil {
		return storage.ErrInvalidInput
	}
	tx.record(acct.Address, acct.Clone())
	return nil
}

func (tx *accountTx) DeleteAccount(_ context.Context, key domain.Pubkey) error {
	if tx.done {
		return storage.ErrTxDone
	}
	tx.record(key, nil)
	return nil
}

func (tx *accountTx) record(key domain.Pubkey, acct *domain.Account) {
	if _, seen := tx.overlay[key]; !seen {
		tx.order = append(tx.order, key)
	}
	tx.overlay[key] = acct
}

func (tx *accountTx) Commit(_ context.Context) error {
	if tx.done {
		return storage.ErrTxDone
	}
	tx.done = true
	defer tx.release()

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for _, key := range tx.order {
		if acct := tx.overlay[key]; acct != nil {
			tx.store.data[key] = acct
		} else {
			delete(tx.store.data, key)
		}
	}
	return nil
}

func (tx *accountTx) Rollback(_ context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.release()
	return nil
}

func (tx *accountTx) release() {
	tx.overlay = nil
	<-tx.store.txSlot
}

var _ storage.AccountStore = (*AccountStore)(nil)
