package pda

import (
	"errors"
	"testing"

	"nft-stake-vault/internal/domain"
)

func TestDeriveAndSign_MatchesFind(t *testing.T) {
	signer, err := VaultSigner(testProgram)
	if err != nil {
		t.Fatalf("VaultSigner: %v", err)
	}
	addr, bump, _ := VaultAddress(testProgram)

	if signer.Address() != addr {
		t.Errorf("signer address %s, want %s", signer.Address(), addr)
	}
	if signer.Bump() != bump {
		t.Errorf("signer bump %d, want %d", signer.Bump(), bump)
	}
	if signer.ProgramID() != testProgram {
		t.Errorf("program id %s", signer.ProgramID())
	}
	if !signer.Authorizes(addr) {
		t.Error("signer should authorize its own address")
	}
}

func TestSigner_Verify(t *testing.T) {
	signer, err := VaultSigner(testProgram)
	if err != nil {
		t.Fatalf("VaultSigner: %v", err)
	}
	if err := signer.Verify(testProgram); err != nil {
		t.Errorf("Verify under owning program: %v", err)
	}

	other := domain.MustPubkeyFromBase58("Aoz9EBZPZ8oQHnuV8UY5bCV87xJ5DpwFcy84TrRWBCzp")
	if err := signer.Verify(other); !errors.Is(err, ErrSignerMismatch) {
		t.Errorf("expected ErrSignerMismatch for foreign program, got %v", err)
	}
}

func TestSigner_ScopedToOneAddress(t *testing.T) {
	signer, _ := VaultSigner(testProgram)
	mint := domain.MustPubkeyFromBase58("Aoz9EBZPZ8oQHnuV8UY5bCV87xJ5DpwFcy84TrRWBCzp")
	stake, _, _ := StakeAddress(testProgram, mint)

	if signer.Authorizes(stake) {
		t.Error("vault capability must not authorize the stake record")
	}

	var nilSigner *Signer
	if nilSigner.Authorizes(stake) {
		t.Error("nil signer authorizes nothing")
	}
}

func TestDeriveAndSign_CopiesSeeds(t *testing.T) {
	seed := []byte("vault")
	signer, err := DeriveAndSign(testProgram, seed)
	if err != nil {
		t.Fatalf("DeriveAndSign: %v", err)
	}
	seed[0] = 'x'
	if err := signer.Verify(testProgram); err != nil {
		t.Errorf("caller mutation leaked into signer: %v", err)
	}
}
