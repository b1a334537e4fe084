package runtime

import (
	"bytes"
	"crypto/ed25519"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/mr-tron/base58"

	"nft-stake-vault/internal/domain"
)

// Transaction is one instruction together with the keys that signed it.
// ID is optional; the runtime assigns one when it is empty.
type Transaction struct {
	ID          string
	Instruction domain.Instruction
	Signers     []domain.Pubkey
}

// Signature is one signer's ed25519 signature over a message, base58 encoded.
type Signature struct {
	Signer    domain.Pubkey `json:"signer"`
	Signature string        `json:"signature"`
}

// SignedTransaction is the wire form accepted by the dev ledger.
// Nonce lets a client submit the same instruction twice.
type SignedTransaction struct {
	Instruction domain.Instruction `json:"instruction"`
	Nonce       uint64             `json:"nonce"`
	Signatures  []Signature        `json:"signatures"`
}

// Message returns the bytes every signer signs:
// program_id | u32 meta count | (pubkey | signer | writable)* | u32 data len | data | u64 nonce
func Message(ix domain.Instruction, nonce uint64) []byte {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	_ = enc.WriteBytes(ix.ProgramID[:], false)
	_ = enc.WriteUint32(uint32(len(ix.Accounts)), bin.LE)
	for _, m := range ix.Accounts {
		_ = enc.WriteBytes(m.Pubkey[:], false)
		_ = enc.WriteBool(m.IsSigner)
		_ = enc.WriteBool(m.IsWritable)
	}
	_ = enc.WriteUint32(uint32(len(ix.Data)), bin.LE)
	_ = enc.WriteBytes(ix.Data, false)
	_ = enc.WriteUint64(nonce, bin.LE)
	return buf.Bytes()
}

// Sign builds a SignedTransaction signed by every key.
func Sign(ix domain.Instruction, nonce uint64, keys ...ed25519.PrivateKey) (*SignedTransaction, error) {
	msg := Message(ix, nonce)
	stx := &SignedTransaction{Instruction: ix, Nonce: nonce}
	for _, key := range keys {
		if len(key) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("sign: private key has %d bytes", len(key))
		}
		signer, err := domain.PubkeyFromBytes(key.Public().(ed25519.PublicKey))
		if err != nil {
			return nil, fmt.Errorf("sign: %w", err)
		}
		stx.Signatures = append(stx.Signatures, Signature{
			Signer:    signer,
			Signature: base58.Encode(ed25519.Sign(key, msg)),
		})
	}
	return stx, nil
}

// Verify checks every signature and returns the transaction to execute.
// Its ID is the first signature, the way ledger explorers name transactions.
func (s *SignedTransaction) Verify() (*Transaction, error) {
	if len(s.Signatures) == 0 {
		return nil, fmt.Errorf("%w: transaction carries no signatures", ErrMissingSignature)
	}
	msg := Message(s.Instruction, s.Nonce)
	tx := &Transaction{Instruction: s.Instruction}
	seen := make(map[domain.Pubkey]bool, len(s.Signatures))
	for i, sig := range s.Signatures {
		raw, err := base58.Decode(sig.Signature)
		if err != nil || len(raw) != ed25519.SignatureSize {
			return nil, fmt.Errorf("%w: signature %d is malformed", ErrInvalidSignature, i)
		}
		if !ed25519.Verify(ed25519.PublicKey(sig.Signer.Bytes()), msg, raw) {
			return nil, fmt.Errorf("%w: signature %d by %s", ErrInvalidSignature, i, sig.Signer)
		}
		if i == 0 {
			tx.ID = sig.Signature
		}
		if !seen[sig.Signer] {
			seen[sig.Signer] = true
			tx.Signers = append(tx.Signers, sig.Signer)
		}
	}
	return tx, nil
}
