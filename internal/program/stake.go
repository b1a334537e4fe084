package program

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

var stakeAccounts = []string{
	"holder", "mint", "metadata", "vault", "holder_nft", "vault_nft",
	"token_program", "system", "rent", "associated_token_program",
	"stake_record", "whitelist",
}

// stake moves one NFT of a whitelisted, verified collection into the vault
// and records the holder and time.
func (p *Processor) stake(ctx context.Context, host Host, it *accountIter) error {
	var holder, mint, metadata, vault, holderNFT, vaultNFT, token, system, rent, ataProgram, stakeRec, whitelist domain.AccountMeta
	if err := it.take(stakeAccounts, &holder, &mint, &metadata, &vault, &holderNFT, &vaultNFT,
		&token, &system, &rent, &ataProgram, &stakeRec, &whitelist); err != nil {
		return err
	}

	now, err := clockSeconds(host)
	if err != nil {
		return err
	}

	if err := requireTokenProgram(token); err != nil {
		return err
	}
	if err := requireSigner(holder, CodeStakeNotSigner, "holder"); err != nil {
		return err
	}

	stakeSigner, err := pda.DeriveAndSign(p.cfg.ProgramID, pda.StakeSeeds(mint.Pubkey)...)
	if err != nil {
		return fmt.Errorf("derive stake record: %w", err)
	}
	if err := expectAddress(stakeRec.Pubkey, stakeSigner.Address(), CodeStakeRecordAddress, "stake record"); err != nil {
		return err
	}

	metadataAddr, err := pda.MetadataAddress(mint.Pubkey)
	if err != nil {
		return fmt.Errorf("derive metadata: %w", err)
	}
	if err := expectAddress(metadata.Pubkey, metadataAddr, CodeStakeMetadataAddress, "metadata"); err != nil {
		return err
	}
	creator, err := readCollectionCreator(ctx, host, metadata.Pubkey, CodeStakeMetadataCreators)
	if err != nil {
		return err
	}

	whitelistAddr, _, err := pda.WhitelistAddress(p.cfg.ProgramID, creator.Address)
	if err != nil {
		return fmt.Errorf("derive whitelist: %w", err)
	}
	if err := expectAddress(whitelist.Pubkey, whitelistAddr, CodeStakeWhitelistAddress, "whitelist"); err != nil {
		return err
	}
	wlAcct, err := host.Account(ctx, whitelist.Pubkey)
	if err != nil {
		return fmt.Errorf("load whitelist: %w", err)
	}
	if !wlAcct.IsOwnedBy(p.cfg.ProgramID) {
		return newError(KindNotWhitelisted, CodeStakeNotWhitelisted, "collection %s is not whitelisted", creator.Address)
	}
	if _, err := domain.DecodeWhitelistRecord(wlAcct.Data); err != nil {
		return newError(KindCorruptState, CodeStakeWhitelistCorrupt, "%v", err)
	}
	if err := requireVerified(creator, CodeStakeUnverified); err != nil {
		return err
	}

	vaultAddr, _, err := pda.VaultAddress(p.cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("derive vault: %w", err)
	}
	if err := expectAddress(vault.Pubkey, vaultAddr, CodeStakeVaultAddress, "vault"); err != nil {
		return err
	}
	if err := expectATA(holderNFT.Pubkey, holder.Pubkey, mint.Pubkey, CodeStakeSourceAddress, "holder nft account"); err != nil {
		return err
	}
	if err := expectATA(vaultNFT.Pubkey, vaultAddr, mint.Pubkey, CodeStakeDestinationAddr, "vault nft account"); err != nil {
		return err
	}

	if _, err := p.allocateIfAbsent(ctx, host, holder.Pubkey, stakeSigner, domain.StakeRecordSize); err != nil {
		return err
	}
	rec := domain.StakeRecord{Timestamp: now, Staker: holder.Pubkey, Active: true}
	if err := host.SetData(ctx, stakeRec.Pubkey, rec.Encode()); err != nil {
		return fmt.Errorf("write stake record: %w", err)
	}

	if err := createATAIfAbsent(ctx, host, holder.Pubkey, vaultAddr, mint.Pubkey, vaultNFT.Pubkey); err != nil {
		return err
	}
	if err := host.Token().Transfer(ctx, holderNFT.Pubkey, vaultNFT.Pubkey, holder.Pubkey, 1); err != nil {
		return fmt.Errorf("transfer nft to vault: %w", err)
	}

	host.Log("staked %s from %s", mint.Pubkey, holder.Pubkey)
	host.Emit(domain.StakeEvent{
		Kind:       domain.StakeEventStake,
		Mint:       mint.Pubkey,
		Staker:     holder.Pubkey,
		Collection: creator.Address,
		Timestamp:  int64(now),
	})
	return nil
}

func expectATA(got, wallet, mint domain.Pubkey, code uint32, what string) error {
	want, err := pda.AssociatedTokenAddress(wallet, mint)
	if err != nil {
		return fmt.Errorf("derive %s: %w", what, err)
	}
	return expectAddress(got, want, code, what)
}
