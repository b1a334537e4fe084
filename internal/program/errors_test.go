package program

import (
	"errors"
	"fmt"
	"math"
	"testing"
)

func TestProgramError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", newError(KindTooEarly, CodeUnstakeTooEarly, "staked %ds", 10))

	if !errors.Is(err, ErrTooEarly) {
		t.Error("expected match on kind sentinel")
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Error("unexpected match on different kind")
	}
	if !errors.Is(err, &ProgramError{Kind: KindTooEarly, Code: CodeUnstakeTooEarly}) {
		t.Error("expected match on kind and code")
	}
	if errors.Is(err, &ProgramError{Kind: KindTooEarly, Code: CodeUnstakeInactive}) {
		t.Error("unexpected match on different code")
	}

	pe, ok := AsProgramError(err)
	if !ok {
		t.Fatal("AsProgramError failed")
	}
	if pe.Code != CodeUnstakeTooEarly {
		t.Errorf("code = 0x%x", pe.Code)
	}
}

func TestProgramError_Message(t *testing.T) {
	err := newError(KindAddressMismatch, CodeStakeVaultAddress, "vault: got a, want b")
	want := "AddressMismatch (0x7): vault: got a, want b"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
	if got := (&ProgramError{Kind: KindCorruptState, Code: 0x912}).Error(); got != "CorruptState (0x912)" {
		t.Errorf("Error() without message = %q", got)
	}
}

func TestComputeReward(t *testing.T) {
	got, err := computeReward(25, 10)
	if err != nil {
		t.Fatalf("computeReward: %v", err)
	}
	if got != 250 {
		t.Errorf("reward = %d, want 250", got)
	}

	if got, err := computeReward(0, math.MaxUint64); err != nil || got != 0 {
		t.Errorf("zero periods: got %d, %v", got, err)
	}

	_, err = computeReward(2, math.MaxUint64)
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Errorf("expected ArithmeticOverflow, got %v", err)
	}
}

func TestAccountIter_Missing(t *testing.T) {
	it := newAccountIter(nil)
	_, err := it.next("admin")
	if !errors.Is(err, ErrMissingAccount) {
		t.Errorf("expected MissingAccount, got %v", err)
	}
}
