package program

import (
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

// NewConfigureVaultInstruction builds a configure-vault call signed by the
// administrator.
func NewConfigureVaultInstruction(cfg Config, minPeriod, rewardPeriod uint64) (domain.Instruction, error) {
	vault, _, err := pda.VaultAddress(cfg.ProgramID)
	if err != nil {
		return domain.Instruction{}, err
	}
	return domain.Instruction{
		ProgramID: cfg.ProgramID,
		Accounts: []domain.AccountMeta{
			domain.Meta(cfg.Admin, true, true),
			domain.Meta(domain.SystemProgramID, false, false),
			domain.Meta(vault, false, true),
			domain.Meta(domain.RentSysvarID, false, false),
		},
		Data: ConfigureVault{MinPeriod: minPeriod, RewardPeriod: rewardPeriod}.Encode(),
	}, nil
}

// NewSetPriceInstruction builds a set-price call for collection.
func NewSetPriceInstruction(cfg Config, collection domain.Pubkey, price uint64) (domain.Instruction, error) {
	whitelist, _, err := pda.WhitelistAddress(cfg.ProgramID, collection)
	if err != nil {
		return domain.Instruction{}, err
	}
	return domain.Instruction{
		ProgramID: cfg.ProgramID,
		Accounts: []domain.AccountMeta{
			domain.Meta(cfg.Admin, true, true),
			domain.Meta(collection, false, false),
			domain.Meta(whitelist, false, true),
			domain.Meta(domain.SystemProgramID, false, false),
			domain.Meta(domain.RentSysvarID, false, false),
		},
		Data: SetPrice{Price: price}.Encode(),
	}, nil
}

// NewStakeInstruction builds a stake call. collection is the first creator
// of the NFT's provenance record.
func NewStakeInstruction(cfg Config, holder, mint, collection domain.Pubkey) (domain.Instruction, error) {
	addrs, err := deriveStakeAddresses(cfg, holder, mint, collection)
	if err != nil {
		return domain.Instruction{}, err
	}
	return domain.Instruction{
		ProgramID: cfg.ProgramID,
		Accounts: []domain.AccountMeta{
			domain.Meta(holder, true, true),
			domain.Meta(mint, false, false),
			domain.Meta(addrs.metadata, false, false),
			domain.Meta(addrs.vault, false, false),
			domain.Meta(addrs.holderNFT, false, true),
			domain.Meta(addrs.vaultNFT, false, true),
			domain.Meta(domain.TokenProgramID, false, false),
			domain.Meta(domain.SystemProgramID, false, false),
			domain.Meta(domain.RentSysvarID, false, false),
			domain.Meta(domain.AssociatedTokenProgramID, false, false),
			domain.Meta(addrs.stake, false, true),
			domain.Meta(addrs.whitelist, false, false),
		},
		Data: Stake{}.Encode(),
	}, nil
}

// NewUnstakeInstruction builds an unstake call signed by holder.
func NewUnstakeInstruction(cfg Config, holder, mint, collection domain.Pubkey) (domain.Instruction, error) {
	addrs, err := deriveStakeAddresses(cfg, holder, mint, collection)
	if err != nil {
		return domain.Instruction{}, err
	}
	holderReward, err := pda.AssociatedTokenAddress(holder, cfg.RewardMint)
	if err != nil {
		return domain.Instruction{}, err
	}
	vaultReward, err := pda.AssociatedTokenAddress(addrs.vault, cfg.RewardMint)
	if err != nil {
		return domain.Instruction{}, err
	}
	return domain.Instruction{
		ProgramID: cfg.ProgramID,
		Accounts: []domain.AccountMeta{
			domain.Meta(holder, true, true),
			domain.Meta(domain.SystemProgramID, false, false),
			domain.Meta(mint, false, false),
			domain.Meta(domain.TokenProgramID, false, false),
			domain.Meta(domain.RentSysvarID, false, false),
			domain.Meta(domain.AssociatedTokenProgramID, false, false),
			domain.Meta(addrs.stake, false, true),
			domain.Meta(addrs.vault, false, false),
			domain.Meta(holderReward, false, true),
			domain.Meta(vaultReward, false, true),
			domain.Meta(addrs.holderNFT, false, true),
			domain.Meta(addrs.vaultNFT, false, true),
			domain.Meta(addrs.metadata, false, false),
			domain.Meta(addrs.whitelist, false, false),
			domain.Meta(cfg.RewardMint, false, false),
		},
		Data: Unstake{}.Encode(),
	}, nil
}

// NewWithdrawInstruction builds a withdraw call signed by the administrator.
func NewWithdrawInstruction(cfg Config, amount uint64) (domain.Instruction, error) {
	vault, _, err := pda.VaultAddress(cfg.ProgramID)
	if err != nil {
		return domain.Instruction{}, err
	}
	adminReward, err := pda.AssociatedTokenAddress(cfg.Admin, cfg.RewardMint)
	if err != nil {
		return domain.Instruction{}, err
	}
	vaultReward, err := pda.AssociatedTokenAddress(vault, cfg.RewardMint)
	if err != nil {
		return domain.Instruction{}, err
	}
	return domain.Instruction{
		ProgramID: cfg.ProgramID,
		Accounts: []domain.AccountMeta{
			domain.Meta(cfg.Admin, true, true),
			domain.Meta(adminReward, false, true),
			domain.Meta(vaultReward, false, true),
			domain.Meta(vault, false, false),
			domain.Meta(cfg.RewardMint, false, false),
			domain.Meta(domain.SystemProgramID, false, false),
			domain.Meta(domain.TokenProgramID, false, false),
			domain.Meta(domain.RentSysvarID, false, false),
			domain.Meta(domain.AssociatedTokenProgramID, false, false),
		},
		Data: Withdraw{Amount: amount}.Encode(),
	}, nil
}

type stakeAddresses struct {
	vault, stake, whitelist, metadata, holderNFT, vaultNFT domain.Pubkey
}

func deriveStakeAddresses(cfg Config, holder, mint, collection domain.Pubkey) (stakeAddresses, error) {
	var a stakeAddresses
	var err error
	if a.vault, _, err = pda.VaultAddress(cfg.ProgramID); err != nil {
		return a, fmt.Errorf("vault: %w", err)
	}
	if a.stake, _, err = pda.StakeAddress(cfg.ProgramID, mint); err != nil {
		return a, fmt.Errorf("stake record: %w", err)
	}
	if a.whitelist, _, err = pda.WhitelistAddress(cfg.ProgramID, collection); err != nil {
		return a, fmt.Errorf("whitelist: %w", err)
	}
	if a.metadata, err = pda.MetadataAddress(mint); err != nil {
		return a, fmt.Errorf("metadata: %w", err)
	}
	if a.holderNFT, err = pda.AssociatedTokenAddress(holder, mint); err != nil {
		return a, fmt.Errorf("holder nft account: %w", err)
	}
	if a.vaultNFT, err = pda.AssociatedTokenAddress(a.vault, mint); err != nil {
		return a, fmt.Errorf("vault nft account: %w", err)
	}
	return a, nil
}
