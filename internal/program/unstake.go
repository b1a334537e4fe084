package program

import (
	"context"
	"fmt"
	"math/bits"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

var unstakeAccounts = []string{
	"holder", "system", "mint", "token_program", "rent", "associated_token_program",
	"stake_record", "vault", "holder_reward", "vault_reward", "holder_nft", "vault_nft",
	"metadata", "whitelist", "reward_mint",
}

// unstake returns a staked NFT to its staker once the minimum period has
// passed and pays floor(elapsed / reward_period) * price reward tokens.
func (p *Processor) unstake(ctx context.Context, host Host, it *accountIter) error {
	var holder, system, mint, token, rent, ataProgram, stakeRec, vault,
		holderReward, vaultReward, holderNFT, vaultNFT, metadata, whitelist, rewardMint domain.AccountMeta
	if err := it.take(unstakeAccounts, &holder, &system, &mint, &token, &rent, &ataProgram,
		&stakeRec, &vault, &holderReward, &vaultReward, &holderNFT, &vaultNFT,
		&metadata, &whitelist, &rewardMint); err != nil {
		return err
	}

	now, err := clockSeconds(host)
	if err != nil {
		return err
	}

	if err := requireTokenProgram(token); err != nil {
		return err
	}
	if rewardMint.Pubkey != p.cfg.RewardMint {
		return newError(KindWrongToken, CodeUnstakeRewardMint, "reward mint %s, want %s", rewardMint.Pubkey, p.cfg.RewardMint)
	}

	stakeAddr, _, err := pda.StakeAddress(p.cfg.ProgramID, mint.Pubkey)
	if err != nil {
		return fmt.Errorf("derive stake record: %w", err)
	}
	if err := expectAddress(stakeRec.Pubkey, stakeAddr, CodeUnstakeRecordAddress, "stake record"); err != nil {
		return err
	}
	vaultSigner, err := pda.VaultSigner(p.cfg.ProgramID)
	if err != nil {
		return fmt.Errorf("derive vault: %w", err)
	}
	vaultAddr := vaultSigner.Address()
	if err := expectAddress(vault.Pubkey, vaultAddr, CodeUnstakeVaultAddress, "vault"); err != nil {
		return err
	}

	holdings := []struct {
		got, wallet, mint domain.Pubkey
		code              uint32
		what              string
	}{
		{holderReward.Pubkey, holder.Pubkey, p.cfg.RewardMint, CodeUnstakeHolderRewardAddr, "holder reward account"},
		{vaultReward.Pubkey, vaultAddr, p.cfg.RewardMint, CodeUnstakeVaultRewardAddr, "vault reward account"},
		{holderNFT.Pubkey, holder.Pubkey, mint.Pubkey, CodeUnstakeHolderNFTAddr, "holder nft account"},
		{vaultNFT.Pubkey, vaultAddr, mint.Pubkey, CodeUnstakeVaultNFTAddr, "vault nft account"},
	}
	for _, h := range holdings {
		if err := expectATA(h.got, h.wallet, h.mint, h.code, h.what); err != nil {
			return err
		}
	}

	metadataAddr, err := pda.MetadataAddress(mint.Pubkey)
	if err != nil {
		return fmt.Errorf("derive metadata: %w", err)
	}
	if err := expectAddress(metadata.Pubkey, metadataAddr, CodeUnstakeMetadataAddress, "metadata"); err != nil {
		return err
	}
	creator, err := readCollectionCreator(ctx, host, metadata.Pubkey, CodeUnstakeMetadataCreators)
	if err != nil {
		return err
	}
	whitelistAddr, _, err := pda.WhitelistAddress(p.cfg.ProgramID, creator.Address)
	if err != nil {
		return fmt.Errorf("derive whitelist: %w", err)
	}
	if err := expectAddress(whitelist.Pubkey, whitelistAddr, CodeUnstakeWhitelistAddress, "whitelist"); err != nil {
		return err
	}

	price, err := p.loadWhitelist(ctx, host, whitelist.Pubkey, CodeUnstakeWhitelistCorrupt)
	if err != nil {
		return err
	}
	params, err := p.loadVault(ctx, host, vault.Pubkey, CodeUnstakeVaultCorrupt)
	if err != nil {
		return err
	}
	rec, err := p.loadStake(ctx, host, stakeRec.Pubkey, CodeUnstakeStakeRecordCorrupt)
	if err != nil {
		return err
	}

	if err := requireVerified(creator, CodeUnstakeUnverified); err != nil {
		return err
	}
	if !rec.Active {
		return newError(KindStakeInactive, CodeUnstakeInactive, "%s is not staked", mint.Pubkey)
	}
	if rec.Staker != holder.Pubkey {
		return newError(KindUnauthorized, CodeUnstakeStakerMismatch, "%s was staked by %s", mint.Pubkey, rec.Staker)
	}
	if err := requireSigner(holder, CodeUnstakeNotSigner, "holder"); err != nil {
		return err
	}
	if now < rec.Timestamp {
		return newError(KindTooEarly, CodeUnstakeTooEarly, "clock %d precedes stake time %d", now, rec.Timestamp)
	}
	elapsed := now - rec.Timestamp
	if elapsed < params.MinPeriod {
		return newError(KindTooEarly, CodeUnstakeTooEarly, "staked %ds of required %ds", elapsed, params.MinPeriod)
	}
	if params.RewardPeriod == 0 {
		return newError(KindCorruptState, CodeUnstakeVaultCorrupt, "vault reward_period is zero")
	}

	periods := elapsed / params.RewardPeriod
	reward, err := computeReward(periods, price.Price)
	if err != nil {
		return err
	}
	host.Log("periods passed %d", periods)

	if err := createATAIfAbsent(ctx, host, holder.Pubkey, holder.Pubkey, p.cfg.RewardMint, holderReward.Pubkey); err != nil {
		return err
	}
	if err := host.Token().Transfer(ctx, vaultReward.Pubkey, holderReward.Pubkey, vaultAddr, reward, vaultSigner); err != nil {
		return fmt.Errorf("pay reward: %w", err)
	}
	if err := createATAIfAbsent(ctx, host, holder.Pubkey, holder.Pubkey, mint.Pubkey, holderNFT.Pubkey); err != nil {
		return err
	}
	if err := host.Token().Transfer(ctx, vaultNFT.Pubkey, holderNFT.Pubkey, vaultAddr, 1, vaultSigner); err != nil {
		return fmt.Errorf("return nft: %w", err)
	}
	if err := host.Token().CloseAccount(ctx, vaultNFT.Pubkey, holder.Pubkey, vaultAddr, vaultSigner); err != nil {
		return fmt.Errorf("close vault nft account: %w", err)
	}

	rec.Active = false
	if err := host.SetData(ctx, stakeRec.Pubkey, rec.Encode()); err != nil {
		return fmt.Errorf("write stake record: %w", err)
	}

	host.Emit(domain.StakeEvent{
		Kind:       domain.StakeEventUnstake,
		Mint:       mint.Pubkey,
		Staker:     holder.Pubkey,
		Collection: creator.Address,
		Timestamp:  int64(now),
		Periods:    periods,
		Reward:     reward,
	})
	return nil
}

// computeReward multiplies periods by price, failing on overflow.
func computeReward(periods, price uint64) (uint64, error) {
	hi, lo := bits.Mul64(periods, price)
	if hi != 0 {
		return 0, newError(KindArithmeticOverflow, CodeUnstakeRewardOverflow, "%d periods at price %d overflows", periods, price)
	}
	return lo, nil
}
