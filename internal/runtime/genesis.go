package runtime

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
	"nft-stake-vault/internal/program"
	"nft-stake-vault/internal/storage"
)

// Genesis describes the initial state of a dev ledger.
type Genesis struct {
	// Clock is the starting ledger time for a manual clock, unix seconds.
	Clock int64 `yaml:"clock"`

	Wallets       []GenesisWallet       `yaml:"wallets"`
	Mints         []GenesisMint         `yaml:"mints"`
	TokenAccounts []GenesisTokenAccount `yaml:"token_accounts"`
	Metadata      []GenesisMetadata     `yaml:"metadata"`

	// VaultReward pre-funds the vault's reward holding account.
	VaultReward uint64 `yaml:"vault_reward"`
}

// GenesisWallet is a system account with a native balance.
type GenesisWallet struct {
	Address  domain.Pubkey `yaml:"address"`
	Lamports uint64        `yaml:"lamports"`
}

// GenesisMint is a token mint.
type GenesisMint struct {
	Address  domain.Pubkey `yaml:"address"`
	Decimals uint8         `yaml:"decimals"`
	Supply   uint64        `yaml:"supply"`
}

// GenesisTokenAccount is a canonical holding account of wallet for mint.
type GenesisTokenAccount struct {
	Wallet domain.Pubkey `yaml:"wallet"`
	Mint   domain.Pubkey `yaml:"mint"`
	Amount uint64        `yaml:"amount"`
}

// GenesisMetadata is the provenance record of an NFT mint.
type GenesisMetadata struct {
	Mint            domain.Pubkey    `yaml:"mint"`
	UpdateAuthority domain.Pubkey    `yaml:"update_authority"`
	Name            string           `yaml:"name"`
	Symbol          string           `yaml:"symbol"`
	URI             string           `yaml:"uri"`
	Creators        []domain.Creator `yaml:"creators"`
}

// LoadGenesis reads a genesis file.
func LoadGenesis(path string) (*Genesis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	return ParseGenesis(data)
}

// ParseGenesis decodes a YAML genesis document.
func ParseGenesis(data []byte) (*Genesis, error) {
	var g Genesis
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse genesis: %w", err)
	}
	return &g, nil
}

// Apply writes the genesis accounts to store in a single transaction.
// Holding accounts are placed at their derived addresses. When VaultReward
// is set, the vault's holding account for cfg.RewardMint is funded too.
func (g *Genesis) Apply(ctx context.Context, store storage.AccountStore, cfg program.Config, rent domain.Rent) error {
	accounts, err := g.accounts(cfg, rent)
	if err != nil {
		return err
	}

	tx, err := store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin genesis: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, acct := range accounts {
		if err := tx.PutAccount(ctx, acct); err != nil {
			return fmt.Errorf("genesis account %s: %w", acct.Address, err)
		}
	}
	return tx.Commit(ctx)
}

func (g *Genesis) accounts(cfg program.Config, rent domain.Rent) ([]*domain.Account, error) {
	var out []*domain.Account

	for _, w := range g.Wallets {
		out = append(out, &domain.Account{
			Address:  w.Address,
			Owner:    domain.SystemProgramID,
			Lamports: w.Lamports,
		})
	}
	for _, m := range g.Mints {
		out = append(out, &domain.Account{
			Address:  m.Address,
			Owner:    domain.TokenProgramID,
			Lamports: rent.MinimumBalance(domain.MintSize),
			Data:     domain.Mint{Supply: m.Supply, Decimals: m.Decimals}.Encode(),
		})
	}

	holdings := g.TokenAccounts
	if g.VaultReward > 0 {
		vault, _, err := pda.VaultAddress(cfg.ProgramID)
		if err != nil {
			return nil, fmt.Errorf("derive vault: %w", err)
		}
		holdings = append(holdings, GenesisTokenAccount{Wallet: vault, Mint: cfg.RewardMint, Amount: g.VaultReward})
	}
	for _, ta := range holdings {
		addr, err := pda.AssociatedTokenAddress(ta.Wallet, ta.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive holding account of %s: %w", ta.Wallet, err)
		}
		out = append(out, &domain.Account{
			Address:  addr,
			Owner:    domain.TokenProgramID,
			Lamports: rent.MinimumBalance(domain.TokenAccountSize),
			Data: domain.TokenAccount{
				Mint:   ta.Mint,
				Owner:  ta.Wallet,
				Amount: ta.Amount,
				State:  domain.TokenAccountInitialized,
			}.Encode(),
		})
	}

	for _, md := range g.Metadata {
		addr, err := pda.MetadataAddress(md.Mint)
		if err != nil {
			return nil, fmt.Errorf("derive metadata of %s: %w", md.Mint, err)
		}
		rec := domain.Metadata{
			UpdateAuthority: md.UpdateAuthority,
			Mint:            md.Mint,
			Name:            md.Name,
			Symbol:          md.Symbol,
			URI:             md.URI,
			Creators:        md.Creators,
		}
		data := rec.Encode()
		out = append(out, &domain.Account{
			Address:  addr,
			Owner:    domain.MetadataProgramID,
			Lamports: rent.MinimumBalance(len(data)),
			Data:     data,
		})
	}
	return out, nil
}
