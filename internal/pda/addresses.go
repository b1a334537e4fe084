package pda

import "nft-stake-vault/internal/domain"

// Seed prefixes of the protocol's own records.
const (
	VaultSeed     = "vault"
	WhitelistSeed = "whitelist"
	metadataSeed  = "metadata"
)

// VaultSeeds returns the seeds of the singleton vault record.
func VaultSeeds() [][]byte {
	return [][]byte{[]byte(VaultSeed)}
}

// WhitelistSeeds returns the seeds of the price record for a collection.
func WhitelistSeeds(collection domain.Pubkey) [][]byte {
	return [][]byte{[]byte(WhitelistSeed), collection.Bytes()}
}

// StakeSeeds returns the seeds of the stake record for an NFT mint.
func StakeSeeds(mint domain.Pubkey) [][]byte {
	return [][]byte{mint.Bytes()}
}

// VaultAddress derives the vault record address.
func VaultAddress(programID domain.Pubkey) (domain.Pubkey, uint8, error) {
	return FindProgramAddress(VaultSeeds(), programID)
}

// WhitelistAddress derives the price record address for a collection.
func WhitelistAddress(programID, collection domain.Pubkey) (domain.Pubkey, uint8, error) {
	return FindProgramAddress(WhitelistSeeds(collection), programID)
}

// StakeAddress derives the stake record address for an NFT mint.
func StakeAddress(programID, mint domain.Pubkey) (domain.Pubkey, uint8, error) {
	return FindProgramAddress(StakeSeeds(mint), programID)
}

// VaultSigner returns the vault's signing capability.
func VaultSigner(programID domain.Pubkey) (*Signer, error) {
	return DeriveAndSign(programID, VaultSeeds()...)
}

// AssociatedTokenAddress derives the canonical holding account of wallet for
// mint under the associated-token program.
func AssociatedTokenAddress(wallet, mint domain.Pubkey) (domain.Pubkey, error) {
	addr, _, err := FindProgramAddress(
		[][]byte{wallet.Bytes(), domain.TokenProgramID.Bytes(), mint.Bytes()},
		domain.AssociatedTokenProgramID,
	)
	return addr, err
}

// MetadataAddress derives the provenance record address of mint under the
// token-metadata program.
func MetadataAddress(mint domain.Pubkey) (domain.Pubkey, error) {
	addr, _, err := FindProgramAddress(
		[][]byte{[]byte(metadataSeed), domain.MetadataProgramID.Bytes(), mint.Bytes()},
		domain.MetadataProgramID,
	)
	return addr, err
}
