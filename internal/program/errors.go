package program

import (
	"errors"
	"fmt"
)

// Kind classifies a program failure. Callers branch on Kind, never on text.
type Kind uint8

const (
	KindUnauthorized Kind = iota + 1
	KindAddressMismatch
	KindWrongToken
	KindNotWhitelisted
	KindUnverifiedProvenance
	KindCorruptState
	KindStakeInactive
	KindTooEarly
	KindDecodeFault
	KindMissingAccount
	KindInvalidParameter
	KindArithmeticOverflow
)

var kindNames = map[Kind]string{
	KindUnauthorized:         "Unauthorized",
	KindAddressMismatch:      "AddressMismatch",
	KindWrongToken:           "WrongToken",
	KindNotWhitelisted:       "NotWhitelisted",
	KindUnverifiedProvenance: "UnverifiedProvenance",
	KindCorruptState:         "CorruptState",
	KindStakeInactive:        "StakeInactive",
	KindTooEarly:             "TooEarly",
	KindDecodeFault:          "DecodeFault",
	KindMissingAccount:       "MissingAccount",
	KindInvalidParameter:     "InvalidParameter",
	KindArithmeticOverflow:   "ArithmeticOverflow",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Custom error codes. Each checked condition has its own code.
const (
	// Shared
	CodeDecodeFault    uint32 = 0xD0
	CodeMissingAccount uint32 = 0xD1
	CodeClock          uint32 = 0xD2
	CodeTokenProgram   uint32 = 0x345

	// Configure vault
	CodeVaultAddress       uint32 = 0x00
	CodeVaultRewardPeriod  uint32 = 0x01
	CodeVaultUnauthorized  uint32 = 0x02
	CodeVaultRecordCorrupt uint32 = 0x0A

	// Set price
	CodePriceUnauthorized     uint32 = 0x31
	CodePriceWhitelistAddress uint32 = 0x32

	// Stake
	CodeStakeMetadataAddress  uint32 = 0x03
	CodeStakeMetadataOwner    uint32 = 0x04
	CodeStakeMetadataCreators uint32 = 0x05
	CodeStakeUnverified       uint32 = 0x06
	CodeStakeVaultAddress     uint32 = 0x07
	CodeStakeSourceAddress    uint32 = 0x08
	CodeStakeDestinationAddr  uint32 = 0x09
	CodeStakeRecordAddress    uint32 = 0x10
	CodeStakeNotSigner        uint32 = 0x11
	CodeStakeWhitelistAddress uint32 = 0x900
	CodeStakeWhitelistCorrupt uint32 = 0x901
	CodeStakeNotWhitelisted   uint32 = 0x902

	// Unstake
	CodeUnstakeRecordAddress      uint32 = 0x60
	CodeUnstakeVaultAddress       uint32 = 0x61
	CodeUnstakeHolderRewardAddr   uint32 = 0x62
	CodeUnstakeVaultRewardAddr    uint32 = 0x63
	CodeUnstakeHolderNFTAddr      uint32 = 0x64
	CodeUnstakeVaultNFTAddr       uint32 = 0x65
	CodeUnstakeMetadataAddress    uint32 = 0x66
	CodeUnstakeRewardMint         uint32 = 0x67
	CodeUnstakeMetadataCreators   uint32 = 0x68
	CodeUnstakeUnverified         uint32 = 0x106
	CodeUnstakeInactive           uint32 = 0x107
	CodeUnstakeStakerMismatch     uint32 = 0x108
	CodeUnstakeTooEarly           uint32 = 0x109
	CodeUnstakeNotSigner          uint32 = 0x10A
	CodeUnstakeRewardOverflow     uint32 = 0x10B
	CodeUnstakeWhitelistAddress   uint32 = 0x910
	CodeUnstakeWhitelistCorrupt   uint32 = 0x911
	CodeUnstakeVaultCorrupt       uint32 = 0x912
	CodeUnstakeStakeRecordCorrupt uint32 = 0x913

	// Withdraw
	CodeWithdrawUnauthorized    uint32 = 0x231
	CodeWithdrawVaultAddress    uint32 = 0x261
	CodeWithdrawAdminRewardAddr uint32 = 0x262
	CodeWithdrawVaultRewardAddr uint32 = 0x263
	CodeWithdrawRewardMint      uint32 = 0x264
)

// ProgramError is a failed check. The whole transaction aborts on it.
type ProgramError struct {
	Kind Kind
	Code uint32
	Msg  string
}

func (e *ProgramError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s (0x%x)", e.Kind, e.Code)
	}
	return fmt.Sprintf("%s (0x%x): %s", e.Kind, e.Code, e.Msg)
}

// Is matches by kind, so errors.Is(err, ErrTooEarly) holds for every
// TooEarly code.
func (e *ProgramError) Is(target error) bool {
	t, ok := target.(*ProgramError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Code == 0 || t.Code == e.Code)
}

// Kind sentinels for errors.Is.
var (
	ErrUnauthorized         = &ProgramError{Kind: KindUnauthorized}
	ErrAddressMismatch      = &ProgramError{Kind: KindAddressMismatch}
	ErrWrongToken           = &ProgramError{Kind: KindWrongToken}
	ErrNotWhitelisted       = &ProgramError{Kind: KindNotWhitelisted}
	ErrUnverifiedProvenance = &ProgramError{Kind: KindUnverifiedProvenance}
	ErrCorruptState         = &ProgramError{Kind: KindCorruptState}
	ErrStakeInactive        = &ProgramError{Kind: KindStakeInactive}
	ErrTooEarly             = &ProgramError{Kind: KindTooEarly}
	ErrDecodeFault          = &ProgramError{Kind: KindDecodeFault}
	ErrMissingAccount       = &ProgramError{Kind: KindMissingAccount}
	ErrInvalidParameter     = &ProgramError{Kind: KindInvalidParameter}
	ErrArithmeticOverflow   = &ProgramError{Kind: KindArithmeticOverflow}
)

func newError(kind Kind, code uint32, format string, args ...any) *ProgramError {
	return &ProgramError{Kind: kind, Code: code, Msg: fmt.Sprintf(format, args...)}
}

// AsProgramError extracts the program error from err, if any.
func AsProgramError(err error) (*ProgramError, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}
