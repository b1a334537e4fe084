package program_test

import (
	"testing"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/program"
)

func TestConfigureVault_CreatesAndOverwrites(t *testing.T) {
	f := newFixture(t)

	f.configure(86400, 3600)
	rec := f.vaultRecord()
	if rec == nil || rec.MinPeriod != 86400 || rec.RewardPeriod != 3600 {
		t.Fatalf("vault = %+v, want {86400 3600}", rec)
	}
	acct := f.account(f.vaultAddress())
	if acct.Owner != testProgramID {
		t.Errorf("vault owner = %s, want program", acct.Owner)
	}
	if deposit := f.rt.Rent().MinimumBalance(domain.VaultRecordSize); acct.Lamports < deposit {
		t.Errorf("vault lamports %d below deposit %d", acct.Lamports, deposit)
	}

	f.configure(60, 30)
	rec = f.vaultRecord()
	if rec.MinPeriod != 60 || rec.RewardPeriod != 30 {
		t.Errorf("vault after overwrite = %+v, want {60 30}", rec)
	}
}

func TestConfigureVault_RejectsNonAdmin(t *testing.T) {
	f := newFixture(t)
	f.configure(86400, 3600)

	cfg := f.cfg
	cfg.Admin = f.other
	ix, err := program.NewConfigureVaultInstruction(cfg, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	before := f.snapshot(keysOf(ix)...)

	_, err = f.exec(ix)
	requireKind(t, err, program.ErrUnauthorized)
	f.assertUnchanged(before)
}

func TestConfigureVault_RejectsUnsignedAdmin(t *testing.T) {
	f := newFixture(t)

	ix, err := program.NewConfigureVaultInstruction(f.cfg, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	ix.Accounts[0].IsSigner = false

	_, err = f.exec(ix)
	requireKind(t, err, program.ErrUnauthorized)
	if f.vaultRecord() != nil {
		t.Error("vault created without admin signature")
	}
}

func TestConfigureVault_RejectsZeroRewardPeriod(t *testing.T) {
	f := newFixture(t)

	ix, err := program.NewConfigureVaultInstruction(f.cfg, 86400, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.exec(ix)
	requireKind(t, err, program.ErrInvalidParameter)
	if f.vaultRecord() != nil {
		t.Error("vault created with zero reward period")
	}
}

func TestConfigureVault_RejectsWrongVaultAddress(t *testing.T) {
	f := newFixture(t)

	ix, err := program.NewConfigureVaultInstruction(f.cfg, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	ix.Accounts[2].Pubkey = f.other

	_, err = f.exec(ix)
	requireKind(t, err, program.ErrAddressMismatch)
}

func TestConfigureVault_CorruptExistingVault(t *testing.T) {
	f := newFixture(t)
	f.put(&domain.Account{
		Address:  f.vaultAddress(),
		Owner:    testProgramID,
		Lamports: 1_000_000,
		Data:     make([]byte, 10),
	})

	ix, err := program.NewConfigureVaultInstruction(f.cfg, 1, 1)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.exec(ix)
	requireKind(t, err, program.ErrCorruptState)
}

func TestSetPrice_CreatesAndOverwrites(t *testing.T) {
	f := newFixture(t)

	f.setPrice(10)
	if rec := f.whitelistRecord(); rec == nil || rec.Price != 10 {
		t.Fatalf("whitelist = %+v, want price 10", rec)
	}
	f.setPrice(0)
	if rec := f.whitelistRecord(); rec.Price != 0 {
		t.Errorf("price after overwrite = %d, want 0", rec.Price)
	}
}

func TestSetPrice_RejectsNonAdmin(t *testing.T) {
	f := newFixture(t)
	f.setPrice(10)

	cfg := f.cfg
	cfg.Admin = f.holder
	ix, err := program.NewSetPriceInstruction(cfg, f.collection, 1_000)
	if err != nil {
		t.Fatal(err)
	}
	_, err = f.exec(ix)
	requireKind(t, err, program.ErrUnauthorized)
	if rec := f.whitelistRecord(); rec.Price != 10 {
		t.Errorf("price = %d, want 10", rec.Price)
	}
}

func TestSetPrice_RejectsWrongWhitelistAddress(t *testing.T) {
	f := newFixture(t)

	ix, err := program.NewSetPriceInstruction(f.cfg, f.collection, 5)
	if err != nil {
		t.Fatal(err)
	}
	ix.Accounts[1].Pubkey = f.other

	_, err = f.exec(ix)
	requireKind(t, err, program.ErrAddressMismatch)
}

func TestSetPrice_RejectsUnsignedAdmin(t *testing.T) {
	f := newFixture(t)
	f.setPrice(10)

	ix, err := program.NewSetPriceInstruction(f.cfg, f.collection, 1_000)
	if err != nil {
		t.Fatal(err)
	}
	ix.Accounts[0].IsSigner = false
	before := f.snapshot(keysOf(ix)...)

	_, err = f.exec(ix)
	requireKind(t, err, program.ErrUnauthorized)
	f.assertUnchanged(before)
}

func TestSetPrice_RejectsForeignWhitelistAccount(t *testing.T) {
	f := newFixture(t)

	ix, err := program.NewSetPriceInstruction(f.cfg, f.collection, 5)
	if err != nil {
		t.Fatal(err)
	}
	ix.Accounts[2].Pubkey = f.other
	before := f.snapshot(keysOf(ix)...)

	_, err = f.exec(ix)
	requireKind(t, err, mismatch(program.CodePriceWhitelistAddress))
	f.assertUnchanged(before)
	if f.whitelistRecord() != nil {
		t.Error("whitelist created at the wrong address")
	}
}
