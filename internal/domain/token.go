package domain

import (
	"bytes"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// SPL token account layouts.
const (
	TokenAccountSize = 165
	MintSize         = 82
)

// TokenAccountState mirrors the SPL account state byte.
type TokenAccountState uint8

const (
	TokenAccountUninitialized TokenAccountState = iota
	TokenAccountInitialized
	TokenAccountFrozen
)

// TokenAccount is a holding account for units of one mint.
// Layout: mint(32) | owner(32) | amount(8) | delegate COption(36) | state(1) |
// is_native COption(12) | delegated_amount(8) | close_authority COption(36)
type TokenAccount struct {
	Mint   Pubkey
	Owner  Pubkey
	Amount uint64
	State  TokenAccountState
}

// Encode serializes the token account in SPL layout. Optional fields are
// written as None.
func (t TokenAccount) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(TokenAccountSize)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteBytes(t.Mint[:], false)
	_ = enc.WriteBytes(t.Owner[:], false)
	_ = enc.WriteUint64(t.Amount, bin.LE)
	writeNoneCOption(enc, PubkeyLength)
	_ = enc.WriteUint8(uint8(t.State))
	writeNoneCOption(enc, 8)
	_ = enc.WriteUint64(0, bin.LE)
	writeNoneCOption(enc, PubkeyLength)
	return buf.Bytes()
}

// DecodeTokenAccount parses the fields of an SPL token account this
// program relies on.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, fmt.Errorf("token account: %w: got %d, want %d", ErrRecordSize, len(data), TokenAccountSize)
	}
	dec := bin.NewBorshDecoder(data)
	var t TokenAccount
	mint, err := dec.ReadNBytes(PubkeyLength)
	if err != nil {
		return nil, fmt.Errorf("token account mint: %w", err)
	}
	copy(t.Mint[:], mint)
	owner, err := dec.ReadNBytes(PubkeyLength)
	if err != nil {
		return nil, fmt.Errorf("token account owner: %w", err)
	}
	copy(t.Owner[:], owner)
	if t.Amount, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("token account amount: %w", err)
	}
	if _, err = dec.ReadNBytes(4 + PubkeyLength); err != nil {
		return nil, fmt.Errorf("token account delegate: %w", err)
	}
	state, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("token account state: %w", err)
	}
	t.State = TokenAccountState(state)
	return &t, nil
}

// Mint describes a token mint. Only supply and decimals are tracked.
// Layout: mint_authority COption(36) | supply(8) | decimals(1) |
// is_initialized(1) | freeze_authority COption(36)
type Mint struct {
	Supply   uint64
	Decimals uint8
}

// Encode serializes the mint in SPL layout with no authorities.
func (m Mint) Encode() []byte {
	buf := new(bytes.Buffer)
	buf.Grow(MintSize)
	enc := bin.NewBorshEncoder(buf)
	writeNoneCOption(enc, PubkeyLength)
	_ = enc.WriteUint64(m.Supply, bin.LE)
	_ = enc.WriteUint8(m.Decimals)
	_ = enc.WriteBool(true)
	writeNoneCOption(enc, PubkeyLength)
	return buf.Bytes()
}

// DecodeMint parses a mint account.
func DecodeMint(data []byte) (*Mint, error) {
	if len(data) != MintSize {
		return nil, fmt.Errorf("mint: %w: got %d, want %d", ErrRecordSize, len(data), MintSize)
	}
	dec := bin.NewBorshDecoder(data)
	if _, err := dec.ReadNBytes(4 + PubkeyLength); err != nil {
		return nil, fmt.Errorf("mint authority: %w", err)
	}
	var m Mint
	var err error
	if m.Supply, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("mint supply: %w", err)
	}
	if m.Decimals, err = dec.ReadUint8(); err != nil {
		return nil, fmt.Errorf("mint decimals: %w", err)
	}
	initialized, err := dec.ReadBool()
	if err != nil {
		return nil, fmt.Errorf("mint is_initialized: %w", err)
	}
	if !initialized {
		return nil, fmt.Errorf("mint not initialized")
	}
	return &m, nil
}

// writeNoneCOption writes a C-style option tag of 0 followed by a zeroed body.
func writeNoneCOption(enc *bin.Encoder, bodyLen int) {
	_ = enc.WriteUint32(0, bin.LE)
	_ = enc.WriteBytes(make([]byte, bodyLen), false)
}
