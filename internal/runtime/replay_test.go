package runtime

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/program"
	"nft-stake-vault/internal/storage"
	"nft-stake-vault/internal/storage/memory"
)

func TestReplaySet_EvictsOldest(t *testing.T) {
	s := newReplaySet(3)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.reserve(id))
	}
	require.ErrorIs(t, s.reserve("a"), ErrDuplicateTransaction)

	require.NoError(t, s.reserve("d"))
	assert.Equal(t, 3, s.len())
	require.NoError(t, s.reserve("a"), "oldest id is evicted once the window is full")
	require.ErrorIs(t, s.reserve("c"), ErrDuplicateTransaction)
	require.ErrorIs(t, s.reserve("d"), ErrDuplicateTransaction)
}

func TestReplaySet_ReleasedIDKeepsNewerReservation(t *testing.T) {
	s := newReplaySet(2)
	require.NoError(t, s.reserve("a"))
	s.release("a")
	require.NoError(t, s.reserve("a"))

	// "b" does not evict the re-reserved "a"
	require.NoError(t, s.reserve("b"))
	require.ErrorIs(t, s.reserve("a"), ErrDuplicateTransaction)
	require.ErrorIs(t, s.reserve("b"), ErrDuplicateTransaction)
	assert.Equal(t, 2, s.len())
}

func TestReplaySet_ZeroWindowTakesDefault(t *testing.T) {
	s := newReplaySet(0)
	require.NoError(t, s.reserve("a"))
	require.NoError(t, s.reserve("b"))
	require.ErrorIs(t, s.reserve("a"), ErrDuplicateTransaction)
	assert.Equal(t, 2, s.len())
}

func TestExecute_ReplayWindow(t *testing.T) {
	env := newTestEnv(t)
	rt, err := New(Options{
		Config:       env.cfg,
		Store:        env.store,
		Clock:        env.clock,
		Logger:       log.New(bytes.NewBuffer(nil), "", 0),
		ReplayWindow: 1,
	})
	require.NoError(t, err)
	ctx := context.Background()

	run := func(id string) error {
		ix, err := program.NewConfigureVaultInstruction(env.cfg, 1, 1)
		require.NoError(t, err)
		_, err = rt.Execute(ctx, &Transaction{ID: id, Instruction: ix, Signers: []domain.Pubkey{env.cfg.Admin}})
		return err
	}
	require.NoError(t, run("first"))
	require.ErrorIs(t, run("first"), ErrDuplicateTransaction)
	require.NoError(t, run("second"))
	require.NoError(t, run("first"), "evicted id is accepted again")
}

type failingHistory struct {
	storage.StakeEventStore
}

func (failingHistory) InsertBulk(context.Context, []*domain.StakeEvent) error {
	return errors.New("history unavailable")
}

func TestArchive_HistoryFailureIsLogged(t *testing.T) {
	var logs bytes.Buffer
	rt, err := New(Options{
		Config:  program.Config{ProgramID: testProgramID, Admin: domain.TokenProgramID, RewardMint: domain.RentSysvarID},
		Store:   memory.NewAccountStore(),
		History: failingHistory{},
		Logger:  log.New(&logs, "", 0),
	})
	require.NoError(t, err)
	events, cancel := rt.Feed().Subscribe()
	defer cancel()

	ev := domain.StakeEvent{Kind: domain.StakeEventUnstake, TxID: "tx", Reward: 5}
	rt.archive(context.Background(), []domain.StakeEvent{ev})

	assert.Contains(t, logs.String(), "history unavailable")
	select {
	case got := <-events:
		assert.Equal(t, ev, got)
	default:
		t.Fatal("feed skipped after history failure")
	}
}
