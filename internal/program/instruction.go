package program

import (
	"bytes"

	bin "github.com/gagliardetto/binary"
)

// Tag is the leading byte of an instruction payload.
type Tag uint8

// Tags in declaration order of the on-chain enum.
const (
	TagConfigureVault Tag = iota
	TagStake
	TagUnstake
	TagSetPrice
	TagWithdraw
)

func (t Tag) String() string {
	switch t {
	case TagConfigureVault:
		return "configure_vault"
	case TagStake:
		return "stake"
	case TagUnstake:
		return "unstake"
	case TagSetPrice:
		return "set_price"
	case TagWithdraw:
		return "withdraw"
	default:
		return "unknown"
	}
}

// Instruction is a decoded instruction payload.
type Instruction interface {
	Tag() Tag
	Encode() []byte
}

// ConfigureVault creates or overwrites the vault timing parameters.
type ConfigureVault struct {
	MinPeriod    uint64
	RewardPeriod uint64
}

// Stake locks one NFT into the vault.
type Stake struct{}

// Unstake returns a staked NFT and pays the accrued reward.
type Unstake struct{}

// SetPrice sets the per-period reward of a collection.
type SetPrice struct {
	Price uint64
}

// Withdraw moves reward tokens from the vault to the administrator.
type Withdraw struct {
	Amount uint64
}

func (ConfigureVault) Tag() Tag { return TagConfigureVault }
func (Stake) Tag() Tag          { return TagStake }
func (Unstake) Tag() Tag        { return TagUnstake }
func (SetPrice) Tag() Tag       { return TagSetPrice }
func (Withdraw) Tag() Tag       { return TagWithdraw }

func (ix ConfigureVault) Encode() []byte {
	return encodeWith(TagConfigureVault, ix.MinPeriod, ix.RewardPeriod)
}

func (Stake) Encode() []byte { return encodeWith(TagStake) }

func (Unstake) Encode() []byte { return encodeWith(TagUnstake) }

func (ix SetPrice) Encode() []byte { return encodeWith(TagSetPrice, ix.Price) }

func (ix Withdraw) Encode() []byte { return encodeWith(TagWithdraw, ix.Amount) }

func encodeWith(tag Tag, fields ...uint64) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint8(uint8(tag))
	for _, f := range fields {
		_ = enc.WriteUint64(f, bin.LE)
	}
	return buf.Bytes()
}

// DecodeInstruction parses a payload. Unknown tags, short payloads and
// trailing bytes all yield a DecodeFault.
func DecodeInstruction(data []byte) (Instruction, error) {
	if len(data) == 0 {
		return nil, newError(KindDecodeFault, CodeDecodeFault, "empty instruction data")
	}
	dec := bin.NewBorshDecoder(data)
	raw, err := dec.ReadUint8()
	if err != nil {
		return nil, newError(KindDecodeFault, CodeDecodeFault, "read tag: %v", err)
	}

	var ix Instruction
	switch tag := Tag(raw); tag {
	case TagConfigureVault:
		fields, err := readFields(dec, tag, 2)
		if err != nil {
			return nil, err
		}
		ix = ConfigureVault{MinPeriod: fields[0], RewardPeriod: fields[1]}
	case TagStake:
		ix = Stake{}
	case TagUnstake:
		ix = Unstake{}
	case TagSetPrice:
		fields, err := readFields(dec, tag, 1)
		if err != nil {
			return nil, err
		}
		ix = SetPrice{Price: fields[0]}
	case TagWithdraw:
		fields, err := readFields(dec, tag, 1)
		if err != nil {
			return nil, err
		}
		ix = Withdraw{Amount: fields[0]}
	default:
		return nil, newError(KindDecodeFault, CodeDecodeFault, "unknown instruction tag %d", raw)
	}

	if rem := dec.Remaining(); rem != 0 {
		return nil, newError(KindDecodeFault, CodeDecodeFault, "%s: %d trailing bytes", ix.Tag(), rem)
	}
	return ix, nil
}

func readFields(dec *bin.Decoder, tag Tag, n int) ([]uint64, error) {
	out := make([]uint64, n)
	for i := range out {
		v, err := dec.ReadUint64(bin.LE)
		if err != nil {
			return nil, newError(KindDecodeFault, CodeDecodeFault, "%s: field %d: %v", tag, i, err)
		}
		out[i] = v
	}
	return out, nil
}
