package domain

import (
	"bytes"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
)

// Stored record sizes in bytes.
const (
	VaultRecordSize     = 8 + 8
	WhitelistRecordSize = 8
	StakeRecordSize     = 8 + PubkeyLength + 1

	// StakeRecordStakerOffset locates the staker key for memcmp filters.
	StakeRecordStakerOffset = 8
)

// ErrRecordSize is returned when stored bytes do not match the record layout.
var ErrRecordSize = errors.New("record size mismatch")

// VaultRecord holds protocol-wide timing parameters.
// Lives at derive(["vault"]).
type VaultRecord struct {
	MinPeriod    uint64 // minimum lock duration, seconds
	RewardPeriod uint64 // reward accrual granularity, seconds
}

// WhitelistRecord holds the per-collection reward price.
// Lives at derive(["whitelist", collection]).
type WhitelistRecord struct {
	Price uint64 // reward-token units per elapsed reward period
}

// StakeRecord tracks the custody state of one NFT mint.
// Lives at derive([mint]) and is reused across stake cycles.
type StakeRecord struct {
	Timestamp uint64 // unix seconds when staked
	Staker    Pubkey // holder entitled to unstake
	Active    bool
}

// Encode serializes the record in borsh layout.
func (r VaultRecord) Encode() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint64(r.MinPeriod, bin.LE)
	_ = enc.WriteUint64(r.RewardPeriod, bin.LE)
	return buf.Bytes()
}

// DecodeVaultRecord parses a VaultRecord. The input must be exactly
// VaultRecordSize bytes.
func DecodeVaultRecord(data []byte) (*VaultRecord, error) {
	if len(data) != VaultRecordSize {
		return nil, fmt.Errorf("vault record: %w: got %d, want %d", ErrRecordSize, len(data), VaultRecordSize)
	}
	dec := bin.NewBorshDecoder(data)
	var r VaultRecord
	var err error
	if r.MinPeriod, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("vault record min_period: %w", err)
	}
	if r.RewardPeriod, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("vault record reward_period: %w", err)
	}
	return &r, nil
}

// Encode serializes the record in borsh layout.
func (r WhitelistRecord) Encode() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint64(r.Price, bin.LE)
	return buf.Bytes()
}

// DecodeWhitelistRecord parses a WhitelistRecord.
func DecodeWhitelistRecord(data []byte) (*WhitelistRecord, error) {
	if len(data) != WhitelistRecordSize {
		return nil, fmt.Errorf("whitelist record: %w: got %d, want %d", ErrRecordSize, len(data), WhitelistRecordSize)
	}
	dec := bin.NewBorshDecoder(data)
	price, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("whitelist record price: %w", err)
	}
	return &WhitelistRecord{Price: price}, nil
}

// Encode serializes the record in borsh layout.
func (r StakeRecord) Encode() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint64(r.Timestamp, bin.LE)
	_ = enc.WriteBytes(r.Staker[:], false)
	_ = enc.WriteBool(r.Active)
	return buf.Bytes()
}

// DecodeStakeRecord parses a StakeRecord. A flag byte other than 0 or 1
// is rejected.
func DecodeStakeRecord(data []byte) (*StakeRecord, error) {
	if len(data) != StakeRecordSize {
		return nil, fmt.Errorf("stake record: %w: got %d, want %d", ErrRecordSize, len(data), StakeRecordSize)
	}
	dec := bin.NewBorshDecoder(data)
	var r StakeRecord
	var err error
	if r.Timestamp, err = dec.ReadUint64(bin.LE); err != nil {
		return nil, fmt.Errorf("stake record timestamp: %w", err)
	}
	staker, err := dec.ReadNBytes(PubkeyLength)
	if err != nil {
		return nil, fmt.Errorf("stake record staker: %w", err)
	}
	copy(r.Staker[:], staker)
	flag, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("stake record active: %w", err)
	}
	switch flag {
	case 0:
	case 1:
		r.Active = true
	default:
		return nil, fmt.Errorf("stake record active: invalid bool byte %d", flag)
	}
	return &r, nil
}
