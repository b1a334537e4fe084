package idhash

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/mr-tron/base58"
)

// ComputeTransactionID names a transaction that arrived without signatures.
// Formula: SHA256(message|now_le64), base58 encoded like a signature.
// Callers make message unique, e.g. with a sequence number as nonce.
func ComputeTransactionID(message []byte, now int64) string {
	h := sha256.New()
	h.Write(message)
	var ts [8]byte
	binary.LittleEndian.PutUint64(ts[:], uint64(now))
	h.Write(ts[:])
	return base58.Encode(h.Sum(nil))
}
