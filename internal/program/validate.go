package program

import (
	"context"
	"fmt"

	"nft-stake-vault/internal/domain"
)

func expectAddress(got, want domain.Pubkey, code uint32, what string) error {
	if got != want {
		return newError(KindAddressMismatch, code, "%s: got %s, want %s", what, got, want)
	}
	return nil
}

// requireAdmin fails unless meta is the configured administrator and signed.
func (p *Processor) requireAdmin(meta domain.AccountMeta, code uint32) error {
	if meta.Pubkey != p.cfg.Admin || !meta.IsSigner {
		return newError(KindUnauthorized, code, "%s is not the signing administrator", meta.Pubkey)
	}
	return nil
}

func requireSigner(meta domain.AccountMeta, code uint32, what string) error {
	if !meta.IsSigner {
		return newError(KindUnauthorized, code, "%s %s did not sign", what, meta.Pubkey)
	}
	return nil
}

func requireTokenProgram(meta domain.AccountMeta) error {
	if meta.Pubkey != domain.TokenProgramID {
		return newError(KindAddressMismatch, CodeTokenProgram, "token program: got %s", meta.Pubkey)
	}
	return nil
}

// readCollectionCreator loads the provenance record of an NFT and returns its
// first creator. A record not owned by the metadata program, one that does
// not decode, or one without creators is rejected.
func readCollectionCreator(ctx context.Context, host Host, key domain.Pubkey, code uint32) (domain.Creator, error) {
	acct, err := host.Account(ctx, key)
	if err != nil {
		return domain.Creator{}, fmt.Errorf("load metadata %s: %w", key, err)
	}
	if !acct.IsOwnedBy(domain.MetadataProgramID) {
		return domain.Creator{}, newError(KindUnverifiedProvenance, code, "metadata %s not owned by metadata program", key)
	}
	md, err := domain.DecodeMetadata(acct.Data)
	if err != nil {
		return domain.Creator{}, newError(KindUnverifiedProvenance, code, "metadata %s: %v", key, err)
	}
	creator, ok := md.CollectionCreator()
	if !ok {
		return domain.Creator{}, newError(KindUnverifiedProvenance, code, "metadata %s has no creators", key)
	}
	return creator, nil
}

func requireVerified(creator domain.Creator, code uint32) error {
	if !creator.Verified {
		return newError(KindUnverifiedProvenance, code, "creator %s is not verified", creator.Address)
	}
	return nil
}

// loadVault reads the vault record. Foreign ownership or bad bytes are
// CorruptState.
func (p *Processor) loadVault(ctx context.Context, host Host, key domain.Pubkey, code uint32) (*domain.VaultRecord, error) {
	data, err := p.ownedData(ctx, host, key, code)
	if err != nil {
		return nil, err
	}
	rec, err := domain.DecodeVaultRecord(data)
	if err != nil {
		return nil, newError(KindCorruptState, code, "%v", err)
	}
	return rec, nil
}

func (p *Processor) loadWhitelist(ctx context.Context, host Host, key domain.Pubkey, code uint32) (*domain.WhitelistRecord, error) {
	data, err := p.ownedData(ctx, host, key, code)
	if err != nil {
		return nil, err
	}
	rec, err := domain.DecodeWhitelistRecord(data)
	if err != nil {
		return nil, newError(KindCorruptState, code, "%v", err)
	}
	return rec, nil
}

func (p *Processor) loadStake(ctx context.Context, host Host, key domain.Pubkey, code uint32) (*domain.StakeRecord, error) {
	data, err := p.ownedData(ctx, host, key, code)
	if err != nil {
		return nil, err
	}
	rec, err := domain.DecodeStakeRecord(data)
	if err != nil {
		return nil, newError(KindCorruptState, code, "%v", err)
	}
	return rec, nil
}

func (p *Processor) ownedData(ctx context.Context, host Host, key domain.Pubkey, code uint32) ([]byte, error) {
	acct, err := host.Account(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	if !acct.IsOwnedBy(p.cfg.ProgramID) {
		return nil, newError(KindCorruptState, code, "%s is not a program record", key)
	}
	return acct.Data, nil
}
