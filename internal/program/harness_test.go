package program_test

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log"
	"testing"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
	"nft-stake-vault/internal/program"
	"nft-stake-vault/internal/runtime"
	"nft-stake-vault/internal/storage"
	"nft-stake-vault/internal/storage/memory"
)

const (
	t0             = int64(1_700_000_000)
	walletLamports = 10_000_000_000
	vaultReward    = 1_000_000
)

var testProgramID = domain.MustPubkeyFromBase58("Stake11111111111111111111111111111111111111")

func walletKey(seed byte) domain.Pubkey {
	priv := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	var pk domain.Pubkey
	copy(pk[:], priv.Public().(ed25519.PublicKey))
	return pk
}

// fixture is a dev ledger with one whitelisted-collection NFT in the
// holder's wallet and a funded vault reward account.
type fixture struct {
	t       *testing.T
	ctx     context.Context
	cfg     program.Config
	store   *memory.AccountStore
	history *memory.StakeEventStore
	clock   *runtime.ManualClock
	rt      *runtime.Runtime

	admin, holder, other        domain.Pubkey
	rewardMint, nft, collection domain.Pubkey
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:          t,
		ctx:        context.Background(),
		store:      memory.NewAccountStore(),
		history:    memory.NewStakeEventStore(),
		clock:      runtime.NewManualClock(t0),
		admin:      walletKey(1),
		holder:     walletKey(2),
		other:      walletKey(3),
		rewardMint: walletKey(10),
		nft:        walletKey(11),
		collection: walletKey(12),
	}
	f.cfg = program.Config{ProgramID: testProgramID, Admin: f.admin, RewardMint: f.rewardMint}

	rt, err := runtime.New(runtime.Options{
		Config:  f.cfg,
		Store:   f.store,
		History: f.history,
		Clock:   f.clock,
		Logger:  log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("runtime.New: %v", err)
	}
	f.rt = rt

	g := &runtime.Genesis{
		Wallets: []runtime.GenesisWallet{
			{Address: f.admin, Lamports: walletLamports},
			{Address: f.holder, Lamports: walletLamports},
			{Address: f.other, Lamports: walletLamports},
		},
		Mints: []runtime.GenesisMint{
			{Address: f.rewardMint, Decimals: 6, Supply: 1_000_000_000},
			{Address: f.nft, Supply: 1},
		},
		TokenAccounts: []runtime.GenesisTokenAccount{
			{Wallet: f.holder, Mint: f.nft, Amount: 1},
		},
		Metadata: []runtime.GenesisMetadata{{
			Mint:            f.nft,
			UpdateAuthority: f.collection,
			Name:            "Vault Test #1",
			Symbol:          "VT",
			Creators:        []domain.Creator{{Address: f.collection, Verified: true, Share: 100}},
		}},
		VaultReward: vaultReward,
	}
	if err := g.Apply(f.ctx, f.store, f.cfg, rt.Rent()); err != nil {
		t.Fatalf("apply genesis: %v", err)
	}
	return f
}

// exec runs ix signed by every meta marked as signer.
func (f *fixture) exec(ix domain.Instruction) (*runtime.Receipt, error) {
	f.t.Helper()
	var signers []domain.Pubkey
	for _, m := range ix.Accounts {
		if m.IsSigner {
			signers = append(signers, m.Pubkey)
		}
	}
	return f.rt.Execute(f.ctx, &runtime.Transaction{Instruction: ix, Signers: signers})
}

func (f *fixture) mustExec(ix domain.Instruction, err error) *runtime.Receipt {
	f.t.Helper()
	if err != nil {
		f.t.Fatalf("build instruction: %v", err)
	}
	receipt, err := f.exec(ix)
	if err != nil {
		f.t.Fatalf("execute: %v (logs %v)", err, receipt.Logs)
	}
	return receipt
}

func (f *fixture) configure(minPeriod, rewardPeriod uint64) {
	f.t.Helper()
	f.mustExec(program.NewConfigureVaultInstruction(f.cfg, minPeriod, rewardPeriod))
}

func (f *fixture) setPrice(price uint64) {
	f.t.Helper()
	f.mustExec(program.NewSetPriceInstruction(f.cfg, f.collection, price))
}

func (f *fixture) stakeIx(holder domain.Pubkey) domain.Instruction {
	f.t.Helper()
	ix, err := program.NewStakeInstruction(f.cfg, holder, f.nft, f.collection)
	if err != nil {
		f.t.Fatalf("NewStakeInstruction: %v", err)
	}
	return ix
}

func (f *fixture) unstakeIx(holder domain.Pubkey) domain.Instruction {
	f.t.Helper()
	ix, err := program.NewUnstakeInstruction(f.cfg, holder, f.nft, f.collection)
	if err != nil {
		f.t.Fatalf("NewUnstakeInstruction: %v", err)
	}
	return ix
}

// ready configures the canonical scenario: 1 day minimum, hourly periods,
// 10 units per period.
func (f *fixture) ready() {
	f.t.Helper()
	f.configure(86400, 3600)
	f.setPrice(10)
}

func (f *fixture) account(key domain.Pubkey) *domain.Account {
	f.t.Helper()
	acct, err := f.store.GetAccount(f.ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		f.t.Fatalf("GetAccount(%s): %v", key, err)
	}
	return acct
}

func (f *fixture) put(acct *domain.Account) {
	f.t.Helper()
	tx, err := f.store.Begin(f.ctx)
	if err != nil {
		f.t.Fatalf("Begin: %v", err)
	}
	if err := tx.PutAccount(f.ctx, acct); err != nil {
		f.t.Fatalf("PutAccount: %v", err)
	}
	if err := tx.Commit(f.ctx); err != nil {
		f.t.Fatalf("Commit: %v", err)
	}
}

// balance returns the token balance of wallet's holding account for mint,
// or -1 when the account does not exist.
func (f *fixture) balance(wallet, mint domain.Pubkey) int64 {
	f.t.Helper()
	addr, err := pda.AssociatedTokenAddress(wallet, mint)
	if err != nil {
		f.t.Fatalf("AssociatedTokenAddress: %v", err)
	}
	acct := f.account(addr)
	if acct == nil {
		return -1
	}
	ta, err := domain.DecodeTokenAccount(acct.Data)
	if err != nil {
		f.t.Fatalf("decode token account %s: %v", addr, err)
	}
	return int64(ta.Amount)
}

func (f *fixture) vaultAddress() domain.Pubkey {
	f.t.Helper()
	addr, _, err := pda.VaultAddress(testProgramID)
	if err != nil {
		f.t.Fatalf("VaultAddress: %v", err)
	}
	return addr
}

func (f *fixture) vaultRecord() *domain.VaultRecord {
	f.t.Helper()
	acct := f.account(f.vaultAddress())
	if acct == nil {
		return nil
	}
	rec, err := domain.DecodeVaultRecord(acct.Data)
	if err != nil {
		f.t.Fatalf("decode vault: %v", err)
	}
	return rec
}

func (f *fixture) whitelistRecord() *domain.WhitelistRecord {
	f.t.Helper()
	addr, _, err := pda.WhitelistAddress(testProgramID, f.collection)
	if err != nil {
		f.t.Fatalf("WhitelistAddress: %v", err)
	}
	acct := f.account(addr)
	if acct == nil {
		return nil
	}
	rec, err := domain.DecodeWhitelistRecord(acct.Data)
	if err != nil {
		f.t.Fatalf("decode whitelist: %v", err)
	}
	return rec
}

func (f *fixture) stakeRecord() *domain.StakeRecord {
	f.t.Helper()
	addr, _, err := pda.StakeAddress(testProgramID, f.nft)
	if err != nil {
		f.t.Fatalf("StakeAddress: %v", err)
	}
	acct := f.account(addr)
	if acct == nil {
		return nil
	}
	rec, err := domain.DecodeStakeRecord(acct.Data)
	if err != nil {
		f.t.Fatalf("decode stake record: %v", err)
	}
	return rec
}

// snapshot captures every committed account for no-mutation assertions.
func (f *fixture) snapshot(keys ...domain.Pubkey) map[domain.Pubkey]*domain.Account {
	f.t.Helper()
	out := make(map[domain.Pubkey]*domain.Account, len(keys))
	for _, k := range keys {
		out[k] = f.account(k)
	}
	return out
}

func (f *fixture) assertUnchanged(before map[domain.Pubkey]*domain.Account) {
	f.t.Helper()
	for k, want := range before {
		got := f.account(k)
		switch {
		case want == nil && got == nil:
		case want == nil || got == nil:
			f.t.Errorf("account %s existence changed", k)
		case got.Owner != want.Owner || got.Lamports != want.Lamports || !bytes.Equal(got.Data, want.Data):
			f.t.Errorf("account %s changed", k)
		}
	}
}

// keysOf lists the accounts of ix.
func keysOf(ix domain.Instruction) []domain.Pubkey {
	keys := make([]domain.Pubkey, len(ix.Accounts))
	for i, m := range ix.Accounts {
		keys[i] = m.Pubkey
	}
	return keys
}

// mismatch matches one specific address check.
func mismatch(code uint32) *program.ProgramError {
	return &program.ProgramError{Kind: program.KindAddressMismatch, Code: code}
}

func requireKind(t *testing.T, err error, want *program.ProgramError) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("expected %s, got %v", want.Kind, err)
	}
}
