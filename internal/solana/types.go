package solana

import (
	"encoding/base64"
	"fmt"

	"github.com/mr-tron/base58"

	"nft-stake-vault/internal/domain"
)

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64
	Owner      domain.Pubkey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// Account converts the RPC view into a ledger account at address.
func (a *AccountInfo) Account(address domain.Pubkey) *domain.Account {
	return &domain.Account{
		Address:    address,
		Owner:      a.Owner,
		Lamports:   a.Lamports,
		Data:       a.Data,
		Executable: a.Executable,
	}
}

// KeyedAccount is one result of getProgramAccounts.
type KeyedAccount struct {
	Pubkey  domain.Pubkey
	Account *AccountInfo
}

// AccountFilter narrows getProgramAccounts. Exactly one field is set.
type AccountFilter struct {
	DataSize *uint64
	Memcmp   *Memcmp
}

// Memcmp matches Bytes at Offset of the account data.
type Memcmp struct {
	Offset uint64
	Bytes  []byte
}

// DataSizeFilter matches accounts with exactly size bytes of data.
func DataSizeFilter(size int) AccountFilter {
	s := uint64(size)
	return AccountFilter{DataSize: &s}
}

// MemcmpFilter matches accounts whose data holds b at offset.
func MemcmpFilter(offset int, b []byte) AccountFilter {
	return AccountFilter{Memcmp: &Memcmp{Offset: uint64(offset), Bytes: b}}
}

// encodeFilters renders filters in the JSON-RPC form. Memcmp bytes are
// base58, the encoding every RPC node accepts.
func encodeFilters(filters []AccountFilter) []map[string]interface{} {
	wire := make([]map[string]interface{}, 0, len(filters))
	for _, f := range filters {
		switch {
		case f.DataSize != nil:
			wire = append(wire, map[string]interface{}{"dataSize": *f.DataSize})
		case f.Memcmp != nil:
			wire = append(wire, map[string]interface{}{"memcmp": map[string]interface{}{
				"offset": f.Memcmp.Offset,
				"bytes":  base58.Encode(f.Memcmp.Bytes),
			}})
		}
	}
	return wire
}

// rpcAccount is the wire form of an account with base64 data.
type rpcAccount struct {
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

func (r *rpcAccount) decode() (*AccountInfo, error) {
	owner, err := domain.PubkeyFromBase58(r.Owner)
	if err != nil {
		return nil, fmt.Errorf("account owner: %w", err)
	}
	info := &AccountInfo{
		Lamports:   r.Lamports,
		Owner:      owner,
		Executable: r.Executable,
		RentEpoch:  r.RentEpoch,
	}
	if len(r.Data) >= 1 {
		if len(r.Data) >= 2 && r.Data[1] != "base64" {
			return nil, fmt.Errorf("account data: unsupported encoding %q", r.Data[1])
		}
		if info.Data, err = base64.StdEncoding.DecodeString(r.Data[0]); err != nil {
			return nil, fmt.Errorf("account data: %w", err)
		}
	}
	return info, nil
}
