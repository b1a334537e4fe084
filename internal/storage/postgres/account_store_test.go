package postgres

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/storage"
)

var (
	testProgram = domain.MustPubkeyFromBase58("Stake11111111111111111111111111111111111111")
	testKeyA    = domain.MustPubkeyFromBase58("Aoz9EBZPZ8oQHnuV8UY5bCV87xJ5DpwFcy84TrRWBCzp")
	testKeyB    = domain.MustPubkeyFromBase58("Ek6Vqf4cCq6zXAp9TwSqeAbQXm8Eo3Y8DV7abbJYntwv")
)

func putAndCommit(t *testing.T, ctx context.Context, store *AccountStore, accts ...*domain.Account) {
	t.Helper()

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	for _, a := range accts {
		require.NoError(t, tx.PutAccount(ctx, a))
	}
	require.NoError(t, tx.Commit(ctx))
}

func TestAccountStore_PutAndGet(t *testing.T) {
	pool := startPostgres(t)

	ctx := context.Background()
	store := NewAccountStore(pool)

	acct := &domain.Account{
		Address:  testKeyA,
		Owner:    testProgram,
		Lamports: 1176240,
		Data:     domain.StakeRecord{Timestamp: 42, Staker: testKeyB, Active: true}.Encode(),
	}
	putAndCommit(t, ctx, store, acct)

	got, err := store.GetAccount(ctx, testKeyA)
	require.NoError(t, err)
	assert.Equal(t, acct.Address, got.Address)
	assert.Equal(t, acct.Owner, got.Owner)
	assert.Equal(t, acct.Lamports, got.Lamports)
	assert.Equal(t, acct.Data, got.Data)

	_, err = store.GetAccount(ctx, testKeyB)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_UpsertOverwrites(t *testing.T) {
	pool := startPostgres(t)

	ctx := context.Background()
	store := NewAccountStore(pool)

	putAndCommit(t, ctx, store, &domain.Account{Address: testKeyA, Owner: domain.SystemProgramID, Lamports: 10})
	putAndCommit(t, ctx, store, &domain.Account{Address: testKeyA, Owner: testProgram, Lamports: 20, Data: []byte{7}})

	got, err := store.GetAccount(ctx, testKeyA)
	require.NoError(t, err)
	assert.Equal(t, testProgram, got.Owner)
	assert.Equal(t, uint64(20), got.Lamports)
	assert.Equal(t, []byte{7}, got.Data)
}

func TestAccountStore_RollbackDiscards(t *testing.T) {
	pool := startPostgres(t)

	ctx := context.Background()
	store := NewAccountStore(pool)

	putAndCommit(t, ctx, store, &domain.Account{Address: testKeyA, Owner: domain.SystemProgramID, Lamports: 10})

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.PutAccount(ctx, &domain.Account{Address: testKeyA, Owner: domain.SystemProgramID, Lamports: 99}))
	require.NoError(t, tx.DeleteAccount(ctx, testKeyA))
	require.NoError(t, tx.PutAccount(ctx, &domain.Account{Address: testKeyB, Owner: domain.SystemProgramID, Lamports: 5}))
	require.NoError(t, tx.Rollback(ctx))

	got, err := store.GetAccount(ctx, testKeyA)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), got.Lamports)

	_, err = store.GetAccount(ctx, testKeyB)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_ReadYourWrites(t *testing.T) {
	pool := startPostgres(t)

	ctx := context.Background()
	store := NewAccountStore(pool)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	require.NoError(t, tx.PutAccount(ctx, &domain.Account{Address: testKeyA, Owner: testProgram, Lamports: 3}))
	got, err := tx.GetAccount(ctx, testKeyA)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), got.Lamports)

	require.NoError(t, tx.DeleteAccount(ctx, testKeyA))
	_, err = tx.GetAccount(ctx, testKeyA)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestAccountStore_TxDone(t *testing.T) {
	pool := startPostgres(t)

	ctx := context.Background()
	store := NewAccountStore(pool)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	err = tx.PutAccount(ctx, &domain.Account{Address: testKeyA, Owner: testProgram})
	assert.ErrorIs(t, err, storage.ErrTxDone)
	assert.NoError(t, tx.Rollback(ctx))
}

func TestAccountStore_RejectsOversizedLamports(t *testing.T) {
	pool := startPostgres(t)

	ctx := context.Background()
	store := NewAccountStore(pool)

	tx, err := store.Begin(ctx)
	require.NoError(t, err)
	defer tx.Rollback(ctx)

	err = tx.PutAccount(ctx, &domain.Account{Address: testKeyA, Lamports: math.MaxUint64})
	assert.ErrorIs(t, err, storage.ErrInvalidInput)
}

func TestAccountStore_ListByOwner(t *testing.T) {
	pool := startPostgres(t)

	ctx := context.Background()
	store := NewAccountStore(pool)

	putAndCommit(t, ctx, store,
		&domain.Account{Address: testKeyA, Owner: testProgram, Lamports: 1, Data: []byte{1}},
		&domain.Account{Address: testKeyB, Owner: domain.SystemProgramID, Lamports: 1},
	)

	owned, err := store.ListByOwner(ctx, testProgram)
	require.NoError(t, err)
	require.Len(t, owned, 1)
	assert.Equal(t, testKeyA, owned[0].Address)
}
