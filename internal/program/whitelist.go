package program

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
)

// setPrice creates the whitelist record of a collection on first use and
// overwrites its price.
//
// Accounts: [admin(signer), collection, whitelist, system, rent]
func (p *Processor) setPrice(ctx context.Context, host Host, it *accountIter, ix SetPrice) error {
	var admin, collection, whitelist, system, rent domain.AccountMeta
	if err := it.take([]string{"admin", "collection", "whitelist", "system", "rent"},
		&admin, &collection, &whitelist, &system, &rent); err != nil {
		return err
	}

	if err := p.requireAdmin(admin, CodePriceUnauthorized); err != nil {
		return err
	}
	signer, err := pda.DeriveAndSign(p.cfg.ProgramID, pda.WhitelistSeeds(collection.Pubkey)...)
	if err != nil {
		return fmt.Errorf("derive whitelist: %w", err)
	}
	if err := expectAddress(whitelist.Pubkey, signer.Address(), CodePriceWhitelistAddress, "whitelist"); err != nil {
		return err
	}

	if _, err := p.allocateIfAbsent(ctx, host, admin.Pubkey, signer, domain.WhitelistRecordSize); err != nil {
		return err
	}

	rec := domain.WhitelistRecord{Price: ix.Price}
	if err := host.SetData(ctx, whitelist.Pubkey, rec.Encode()); err != nil {
		return fmt.Errorf("write whitelist: %w", err)
	}
	host.Log("collection %s price set to %d", collection.Pubkey, ix.Price)
	return nil
}
