package stub

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/solana"
)

// ErrUnavailable is returned by every call once Fail is set.
var ErrUnavailable = errors.New("stub rpc unavailable")

// RPCClient implements solana.RPCClient over an in-memory account map.
type RPCClient struct {
	mu       sync.Mutex
	Accounts map[domain.Pubkey]*solana.AccountInfo
	Slot     uint64
	Fail     bool
}

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[domain.Pubkey]*solana.AccountInfo),
	}
}

// GetAccountInfo returns the stored account or nil when absent.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey domain.Pubkey) (*solana.AccountInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return nil, ErrUnavailable
	}
	info, ok := c.Accounts[pubkey]
	if !ok {
		return nil, nil
	}
	return info, nil
}

// GetProgramAccounts returns accounts owned by programID that pass every
// filter, ordered by address.
func (c *RPCClient) GetProgramAccounts(_ context.Context, programID domain.Pubkey, filters ...solana.AccountFilter) ([]solana.KeyedAccount, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return nil, ErrUnavailable
	}

	var out []solana.KeyedAccount
	for key, info := range c.Accounts {
		if info.Owner != programID || !matches(info.Data, filters) {
			continue
		}
		out = append(out, solana.KeyedAccount{Pubkey: key, Account: info})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Pubkey[:], out[j].Pubkey[:]) < 0
	})
	return out, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(_ context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.Fail {
		return 0, ErrUnavailable
	}
	return c.Slot, nil
}

// AddAccount stores an account at key.
func (c *RPCClient) AddAccount(key domain.Pubkey, acct *domain.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[key] = &solana.AccountInfo{
		Lamports:   acct.Lamports,
		Owner:      acct.Owner,
		Data:       append([]byte(nil), acct.Data...),
		Executable: acct.Executable,
	}
}

func matches(data []byte, filters []solana.AccountFilter) bool {
	for _, f := range filters {
		if f.DataSize != nil && uint64(len(data)) != *f.DataSize {
			return false
		}
		if m := f.Memcmp; m != nil {
			end := int(m.Offset) + len(m.Bytes)
			if end > len(data) || !bytes.Equal(data[m.Offset:end], m.Bytes) {
				return false
			}
		}
	}
	return true
}
