package program

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

// configureVault creates the vault record on first use and overwrites its
// timing parameters.
//
// Accounts: [admin(signer), system, vault, rent]
func (p *Processor) configureVault(ctx context.Context, host Host, it *accountIter, ix ConfigureVault) error {
	var admin, system, vault, rent domain.AccountMeta
	if err := it.take([]string{"admin", "system", "vault", "rent"}, &admin, &system, &vault, &rent); err != nil {
		return err
	}

	if err := p.requireAdmin(admin, CodeVaultUnauthorized); err != nil {
		return err
	}
	signer, err := pda.VaultSigner(p.cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("derive vault: %w", err)
	}
	if err := expectAddress(vault.Pubkey, signer.Address(), CodeVaultAddress, "vault"); err != nil {
		return err
	}
	if ix.RewardPeriod == 0 {
		return newError(KindInvalidParameter, CodeVaultRewardPeriod, "reward_period must be positive")
	}

	existing, err := host.Account(ctx, vault.Pubkey)
	if err != nil {
		return fmt.Errorf("load vault: %w", err)
	}
	if existing.IsOwnedBy(p.cfg.ProgramID) && len(existing.Data) != domain.VaultRecordSize {
		return newError(KindCorruptState, CodeVaultRecordCorrupt, "vault record is %d bytes", len(existing.Data))
	}
	if _, err := p.allocateIfAbsent(ctx, host, admin.Pubkey, signer, domain.VaultRecordSize); err != nil {
		return err
	}

	rec := domain.VaultRecord{MinPeriod: ix.MinPeriod, RewardPeriod: ix.RewardPeriod}
	if err := host.SetData(ctx, vault.Pubkey, rec.Encode()); err != nil {
		return fmt.Errorf("write vault: %w", err)
	}
	host.Log("vault configured: min_period=%d reward_period=%d", ix.MinPeriod, ix.RewardPeriod)
	return nil
}
