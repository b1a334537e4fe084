package domain

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	bin "github.com/gagliardetto/binary"
)

// MetadataKeyV1 is the account discriminator of a token-metadata record.
const MetadataKeyV1 = 4

// Field length limits enforced by the metadata program.
const (
	maxNameLength     = 32
	maxSymbolLength   = 10
	maxURILength      = 200
	maxCreatorEntries = 5
)

// Provenance decoding errors.
var (
	ErrMetadataKey      = errors.New("metadata: unexpected account key")
	ErrMetadataTooLarge = errors.New("metadata: field exceeds limit")
)

// Creator is one entry of an NFT's creator list.
type Creator struct {
	Address  Pubkey `yaml:"address"`
	Verified bool   `yaml:"verified"`
	Share    uint8  `yaml:"share"`
}

// Metadata is the provenance record the metadata program keeps per mint.
// Layout (borsh): key(1) | update_authority(32) | mint(32) | name | symbol |
// uri | seller_fee_basis_points(2) | creators Option<Vec<Creator>> | ...
// Trailing fields are not needed here and are ignored on decode.
type Metadata struct {
	UpdateAuthority      Pubkey
	Mint                 Pubkey
	Name                 string
	Symbol               string
	URI                  string
	SellerFeeBasisPoints uint16
	Creators             []Creator // nil when the record carries no creator list
}

// CollectionCreator returns the first creator entry. Its address keys the
// per-collection price. The bool is false when no creators are recorded.
func (m *Metadata) CollectionCreator() (Creator, bool) {
	if m == nil || len(m.Creators) == 0 {
		return Creator{}, false
	}
	return m.Creators[0], true
}

// Encode serializes the record in the metadata program layout, followed by
// primary_sale_happened and is_mutable flags.
func (m Metadata) Encode() []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteUint8(MetadataKeyV1)
	_ = enc.WriteBytes(m.UpdateAuthority[:], false)
	_ = enc.WriteBytes(m.Mint[:], false)
	writeBorshString(enc, m.Name)
	writeBorshString(enc, m.Symbol)
	writeBorshString(enc, m.URI)
	_ = enc.WriteUint16(m.SellerFeeBasisPoints, bin.LE)
	if m.Creators == nil {
		_ = enc.WriteUint8(0)
	} else {
		_ = enc.WriteUint8(1)
		_ = enc.WriteUint32(uint32(len(m.Creators)), bin.LE)
		for _, c := range m.Creators {
			_ = enc.WriteBytes(c.Address[:], false)
			_ = enc.WriteBool(c.Verified)
			_ = enc.WriteUint8(c.Share)
		}
	}
	_ = enc.WriteBool(false) // primary_sale_happened
	_ = enc.WriteBool(true)  // is_mutable
	return buf.Bytes()
}

// DecodeMetadata parses a provenance record. Padding NUL bytes on string
// fields are trimmed.
func DecodeMetadata(data []byte) (*Metadata, error) {
	dec := bin.NewBorshDecoder(data)

	key, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("metadata key: %w", err)
	}
	if key != MetadataKeyV1 {
		return nil, fmt.Errorf("%w: %d", ErrMetadataKey, key)
	}

	var m Metadata
	if err := readPubkey(dec, &m.UpdateAuthority); err != nil {
		return nil, fmt.Errorf("metadata update_authority: %w", err)
	}
	if err := readPubkey(dec, &m.Mint); err != nil {
		return nil, fmt.Errorf("metadata mint: %w", err)
	}
	if m.Name, err = readBorshString(dec, maxNameLength); err != nil {
		return nil, fmt.Errorf("metadata name: %w", err)
	}
	if m.Symbol, err = readBorshString(dec, maxSymbolLength); err != nil {
		return nil, fmt.Errorf("metadata symbol: %w", err)
	}
	if m.URI, err = readBorshString(dec, maxURILength); err != nil {
		return nil, fmt.Errorf("metadata uri: %w", err)
	}
	if m.SellerFeeBasisPoints, err = dec.ReadUint16(bin.LE); err != nil {
		return nil, fmt.Errorf("metadata seller_fee_basis_points: %w", err)
	}

	hasCreators, err := dec.ReadUint8()
	if err != nil {
		return nil, fmt.Errorf("metadata creators tag: %w", err)
	}
	if hasCreators == 0 {
		return &m, nil
	}
	count, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, fmt.Errorf("metadata creators length: %w", err)
	}
	if count > maxCreatorEntries {
		return nil, fmt.Errorf("%w: %d creators", ErrMetadataTooLarge, count)
	}
	m.Creators = make([]Creator, 0, count)
	for i := uint32(0); i < count; i++ {
		var c Creator
		if err := readPubkey(dec, &c.Address); err != nil {
			return nil, fmt.Errorf("metadata creator %d address: %w", i, err)
		}
		if c.Verified, err = dec.ReadBool(); err != nil {
			return nil, fmt.Errorf("metadata creator %d verified: %w", i, err)
		}
		if c.Share, err = dec.ReadUint8(); err != nil {
			return nil, fmt.Errorf("metadata creator %d share: %w", i, err)
		}
		m.Creators = append(m.Creators, c)
	}
	return &m, nil
}

func readPubkey(dec *bin.Decoder, out *Pubkey) error {
	raw, err := dec.ReadNBytes(PubkeyLength)
	if err != nil {
		return err
	}
	copy(out[:], raw)
	return nil
}

// readBorshString reads a u32 length-prefixed string. The metadata program
// pads names to their maximum, so limit applies after trimming.
func readBorshString(dec *bin.Decoder, limit int) (string, error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return "", err
	}
	if int(n) > dec.Remaining() {
		return "", fmt.Errorf("string length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	raw, err := dec.ReadNBytes(int(n))
	if err != nil {
		return "", err
	}
	s := strings.TrimRight(string(raw), "\x00")
	if len(s) > limit {
		return "", fmt.Errorf("%w: %d > %d", ErrMetadataTooLarge, len(s), limit)
	}
	return s, nil
}

func writeBorshString(enc *bin.Encoder, s string) {
	_ = enc.WriteUint32(uint32(len(s)), bin.LE)
	_ = enc.WriteBytes([]byte(s), false)
}
