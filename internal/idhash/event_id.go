// Package idhash derives deterministic identifiers from the fields that
// define a record.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"nft-stake-vault/internal/domain"
)

// ComputeObservedEventID computes a deterministic id for a stake transition
// observed from an account notification, which carries no transaction
// signature.
// Formula: SHA256(stake_record|slot|kind)
// Returns hex-encoded hash (64 characters).
func ComputeObservedEventID(
	stakeRecord domain.Pubkey,
	slot uint64,
	kind domain.StakeEventKind,
) string {
	data := fmt.Sprintf("%s|%d|%s",
		stakeRecord,
		slot,
		string(kind),
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
