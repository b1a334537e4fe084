package domain

import (
	"errors"
	"testing"
)

func TestRecordSizes(t *testing.T) {
	if got := len(VaultRecord{MinPeriod: 1, RewardPeriod: 2}.Encode()); got != 16 {
		t.Errorf("vault record size = %d, want 16", got)
	}
	if got := len(WhitelistRecord{Price: 10}.Encode()); got != 8 {
		t.Errorf("whitelist record size = %d, want 8", got)
	}
	if got := len(StakeRecord{Timestamp: 1, Active: true}.Encode()); got != 41 {
		t.Errorf("stake record size = %d, want 41", got)
	}
}

func TestStakeRecord_Layout(t *testing.T) {
	staker := MustPubkeyFromBase58("Ek6Vqf4cCq6zXAp9TwSqeAbQXm8Eo3Y8DV7abbJYntwv")
	rec := StakeRecord{Timestamp: 0x0102030405060708, Staker: staker, Active: true}
	data := rec.Encode()

	// Little-endian timestamp first
	if data[0] != 0x08 || data[7] != 0x01 {
		t.Errorf("timestamp not little-endian: % x", data[:8])
	}
	if got, _ := PubkeyFromBytes(data[8:40]); got != staker {
		t.Errorf("staker bytes mismatch")
	}
	if data[40] != 1 {
		t.Errorf("active flag = %d, want 1", data[40])
	}

	got, err := DecodeStakeRecord(data)
	if err != nil {
		t.Fatalf("DecodeStakeRecord: %v", err)
	}
	if *got != rec {
		t.Errorf("decoded %+v, want %+v", *got, rec)
	}
}

func TestDecodeRecords_WrongSize(t *testing.T) {
	if _, err := DecodeVaultRecord(make([]byte, 15)); !errors.Is(err, ErrRecordSize) {
		t.Errorf("vault: expected ErrRecordSize, got %v", err)
	}
	if _, err := DecodeWhitelistRecord(nil); !errors.Is(err, ErrRecordSize) {
		t.Errorf("whitelist: expected ErrRecordSize, got %v", err)
	}
	if _, err := DecodeStakeRecord(make([]byte, 42)); !errors.Is(err, ErrRecordSize) {
		t.Errorf("stake: expected ErrRecordSize, got %v", err)
	}
}

func TestDecodeStakeRecord_InvalidBool(t *testing.T) {
	data := StakeRecord{Timestamp: 5}.Encode()
	data[40] = 2
	if _, err := DecodeStakeRecord(data); err == nil {
		t.Error("expected error for bool byte 2")
	}
}

func TestVaultRecord_Decode(t *testing.T) {
	got, err := DecodeVaultRecord(VaultRecord{MinPeriod: 86400, RewardPeriod: 3600}.Encode())
	if err != nil {
		t.Fatalf("DecodeVaultRecord: %v", err)
	}
	if got.MinPeriod != 86400 || got.RewardPeriod != 3600 {
		t.Errorf("got %+v", *got)
	}
}

func TestTokenAccount_Layout(t *testing.T) {
	mint := MustPubkeyFromBase58("Aoz9EBZPZ8oQHnuV8UY5bCV87xJ5DpwFcy84TrRWBCzp")
	owner := MustPubkeyFromBase58("Ek6Vqf4cCq6zXAp9TwSqeAbQXm8Eo3Y8DV7abbJYntwv")
	acct := TokenAccount{Mint: mint, Owner: owner, Amount: 250, State: TokenAccountInitialized}

	data := acct.Encode()
	if len(data) != TokenAccountSize {
		t.Fatalf("size = %d, want %d", len(data), TokenAccountSize)
	}
	if data[108] != byte(TokenAccountInitialized) {
		t.Errorf("state byte = %d at offset 108", data[108])
	}

	got, err := DecodeTokenAccount(data)
	if err != nil {
		t.Fatalf("DecodeTokenAccount: %v", err)
	}
	if *got != acct {
		t.Errorf("decoded %+v, want %+v", *got, acct)
	}
}

func TestMint_Layout(t *testing.T) {
	data := Mint{Supply: 1, Decimals: 0}.Encode()
	if len(data) != MintSize {
		t.Fatalf("size = %d, want %d", len(data), MintSize)
	}
	got, err := DecodeMint(data)
	if err != nil {
		t.Fatalf("DecodeMint: %v", err)
	}
	if got.Supply != 1 {
		t.Errorf("supply = %d, want 1", got.Supply)
	}
}

func TestRent_MinimumBalance(t *testing.T) {
	rent := DefaultRent()
	// (128 + 41) * 3480 * 2
	if got := rent.MinimumBalance(StakeRecordSize); got != 1176240 {
		t.Errorf("MinimumBalance(41) = %d, want 1176240", got)
	}
}
