package solana

import (
	"context"
	"errors"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

// ErrAccountNotFound is returned when a vault account does not exist on the
// cluster.
var ErrAccountNotFound = errors.New("account not found")

// ErrForeignOwner is returned when an account at a derived address is not
// owned by the vault program.
var ErrForeignOwner = errors.New("account not owned by program")

// Inspector reads and decodes stake vault accounts from a cluster.
type Inspector struct {
	rpc       RPCClient
	programID domain.Pubkey
}

// NewInspector creates an Inspector for programID.
func NewInspector(rpc RPCClient, programID domain.Pubkey) *Inspector {
	return &Inspector{rpc: rpc, programID: programID}
}

// StakeEntry is a decoded stake record with its address.
type StakeEntry struct {
	Address domain.Pubkey
	Record  *domain.StakeRecord
}

// FetchVault returns the vault parameters.
func (i *Inspector) FetchVault(ctx context.Context) (domain.Pubkey, *domain.VaultRecord, error) {
	addr, _, err := pda.VaultAddress(i.programID)
	if err != nil {
		return domain.Pubkey{}, nil, fmt.Errorf("derive vault: %w", err)
	}
	data, err := i.ownedData(ctx, addr)
	if err != nil {
		return addr, nil, err
	}
	rec, err := domain.DecodeVaultRecord(data)
	return addr, rec, err
}

// FetchWhitelist returns the price record of collection.
func (i *Inspector) FetchWhitelist(ctx context.Context, collection domain.Pubkey) (domain.Pubkey, *domain.WhitelistRecord, error) {
	addr, _, err := pda.WhitelistAddress(i.programID, collection)
	if err != nil {
		return domain.Pubkey{}, nil, fmt.Errorf("derive whitelist: %w", err)
	}
	data, err := i.ownedData(ctx, addr)
	if err != nil {
		return addr, nil, err
	}
	rec, err := domain.DecodeWhitelistRecord(data)
	return addr, rec, err
}

// FetchStake returns the stake record of mint.
func (i *Inspector) FetchStake(ctx context.Context, mint domain.Pubkey) (domain.Pubkey, *domain.StakeRecord, error) {
	addr, _, err := pda.StakeAddress(i.programID, mint)
	if err != nil {
		return domain.Pubkey{}, nil, fmt.Errorf("derive stake record: %w", err)
	}
	data, err := i.ownedData(ctx, addr)
	if err != nil {
		return addr, nil, err
	}
	rec, err := domain.DecodeStakeRecord(data)
	return addr, rec, err
}

// ListStakes returns every stake record of the program. A non-zero staker
// narrows the result to that holder.
func (i *Inspector) ListStakes(ctx context.Context, staker domain.Pubkey) ([]StakeEntry, error) {
	filters := []AccountFilter{DataSizeFilter(domain.StakeRecordSize)}
	if !staker.IsZero() {
		filters = append(filters, MemcmpFilter(domain.StakeRecordStakerOffset, staker.Bytes()))
	}

	accounts, err := i.rpc.GetProgramAccounts(ctx, i.programID, filters...)
	if err != nil {
		return nil, fmt.Errorf("list stake records: %w", err)
	}

	out := make([]StakeEntry, 0, len(accounts))
	for _, acct := range accounts {
		rec, err := domain.DecodeStakeRecord(acct.Account.Data)
		if err != nil {
			return nil, fmt.Errorf("stake record %s: %w", acct.Pubkey, err)
		}
		out = append(out, StakeEntry{Address: acct.Pubkey, Record: rec})
	}
	return out, nil
}

// DecodeStakeNotification decodes a programSubscribe notification carrying
// a stake record. ok is false for other account types.
func DecodeStakeNotification(n AccountNotification) (StakeEntry, bool) {
	if n.Account == nil || len(n.Account.Data) != domain.StakeRecordSize {
		return StakeEntry{}, false
	}
	rec, err := domain.DecodeStakeRecord(n.Account.Data)
	if err != nil {
		return StakeEntry{}, false
	}
	return StakeEntry{Address: n.Pubkey, Record: rec}, true
}

func (i *Inspector) ownedData(ctx context.Context, addr domain.Pubkey) ([]byte, error) {
	info, err := i.rpc.GetAccountInfo(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, addr)
	}
	if info.Owner != i.programID {
		return nil, fmt.Errorf("%w: %s owned by %s", ErrForeignOwner, addr, info.Owner)
	}
	return info.Data, nil
}
