package program

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

var withdrawAccounts = []string{
	"admin", "admin_reward", "vault_reward", "vault", "reward_mint",
	"system", "token_program", "rent", "associated_token_program",
}

// withdraw moves reward tokens out of the vault to the administrator. The
// token service rejects amounts above the vault balance.
func (p *Processor) withdraw(ctx context.Context, host Host, it *accountIter, ix Withdraw) error {
	var admin, adminReward, vaultReward, vault, rewardMint, system, token, rent, ataProgram domain.AccountMeta
	if err := it.take(withdrawAccounts, &admin, &adminReward, &vaultReward, &vault, &rewardMint,
		&system, &token, &rent, &ataProgram); err != nil {
		return err
	}

	if err := p.requireAdmin(admin, CodeWithdrawUnauthorized); err != nil {
		return err
	}
	vaultSigner, err := pda.VaultSigner(p.cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("derive vault: %w", err)
	}
	vaultAddr := vaultSigner.Address()
	if err := expectAddress(vault.Pubkey, vaultAddr, CodeWithdrawVaultAddress, "vault"); err != nil {
		return err
	}
	if err := expectATA(adminReward.Pubkey, admin.Pubkey, p.cfg.RewardMint, CodeWithdrawAdminRewardAddr, "admin reward account"); err != nil {
		return err
	}
	if err := expectATA(vaultReward.Pubkey, vaultAddr, p.cfg.RewardMint, CodeWithdrawVaultRewardAddr, "vault reward account"); err != nil {
		return err
	}
	if rewardMint.Pubkey != p.cfg.RewardMint {
		return newError(KindWrongToken, CodeWithdrawRewardMint, "reward mint %s, want %s", rewardMint.Pubkey, p.cfg.RewardMint)
	}
	if err := requireTokenProgram(token); err != nil {
		return err
	}

	if err := createATAIfAbsent(ctx, host, admin.Pubkey, admin.Pubkey, p.cfg.RewardMint, adminReward.Pubkey); err != nil {
		return err
	}
	if err := host.Token().Transfer(ctx, vaultReward.Pubkey, adminReward.Pubkey, vaultAddr, ix.Amount, vaultSigner); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}
	host.Log("withdrew %d reward units to %s", ix.Amount, admin.Pubkey)
	return nil
}
