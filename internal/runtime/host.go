package runtime

import (
	"context"
	"errors"
	"fmt"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/pda"
	"nft-stake-vault/internal/program"
	"nft-stake-vault/internal/storage"
)

// host is the program.Host bound to one store transaction. Every read and
// write goes through tx, so a rollback discards all effects.
type host struct {
	programID domain.Pubkey
	tx        storage.AccountTx
	metas     map[domain.Pubkey]domain.AccountMeta
	now       int64
	rent      domain.Rent

	logs   []string
	events []domain.StakeEvent
}

var _ program.Host = (*host)(nil)

func newHost(programID domain.Pubkey, tx storage.AccountTx, metas []domain.AccountMeta, now int64, rent domain.Rent) *host {
	h := &host{
		programID: programID,
		tx:        tx,
		metas:     make(map[domain.Pubkey]domain.AccountMeta, len(metas)),
		now:       now,
		rent:      rent,
	}
	for _, m := range metas {
		prev := h.metas[m.Pubkey]
		h.metas[m.Pubkey] = domain.AccountMeta{
			Pubkey:     m.Pubkey,
			IsSigner:   prev.IsSigner || m.IsSigner,
			IsWritable: prev.IsWritable || m.IsWritable,
		}
	}
	return h
}

func (h *host) Now() int64        { return h.now }
func (h *host) Rent() domain.Rent { return h.rent }

func (h *host) Account(ctx context.Context, key domain.Pubkey) (*domain.Account, error) {
	return h.load(ctx, key)
}

func (h *host) SetData(ctx context.Context, key domain.Pubkey, data []byte) error {
	if err := h.requireWritable(key); err != nil {
		return err
	}
	acct, err := h.load(ctx, key)
	if err != nil {
		return err
	}
	if acct.Owner != h.programID {
		return fmt.Errorf("%w: %s owned by %s", ErrIllegalOwner, key, acct.Owner)
	}
	if len(data) != len(acct.Data) {
		return fmt.Errorf("%w: %s has %d bytes, got %d", ErrDataSize, key, len(acct.Data), len(data))
	}
	acct.Data = append([]byte(nil), data...)
	return h.store(ctx, acct)
}

func (h *host) Log(format string, args ...any) {
	h.logs = append(h.logs, fmt.Sprintf(format, args...))
}

func (h *host) Emit(ev domain.StakeEvent) {
	h.events = append(h.events, ev)
}

func (h *host) System() program.SystemService                   { return systemService{h} }
func (h *host) Token() program.TokenService                     { return tokenService{h} }
func (h *host) AssociatedToken() program.AssociatedTokenService { return associatedService{h} }

// load reads an account listed in the instruction. Absent accounts read as
// empty system accounts.
func (h *host) load(ctx context.Context, key domain.Pubkey) (*domain.Account, error) {
	if _, ok := h.metas[key]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotListed, key)
	}
	acct, err := h.tx.GetAccount(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return &domain.Account{Address: key, Owner: domain.SystemProgramID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", key, err)
	}
	return acct, nil
}

// store writes acct back. An empty system account is garbage collected.
func (h *host) store(ctx context.Context, acct *domain.Account) error {
	if acct.Owner == domain.SystemProgramID && acct.Lamports == 0 && len(acct.Data) == 0 {
		return h.tx.DeleteAccount(ctx, acct.Address)
	}
	return h.tx.PutAccount(ctx, acct)
}

func (h *host) requireWritable(key domain.Pubkey) error {
	m, ok := h.metas[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotListed, key)
	}
	if !m.IsWritable {
		return fmt.Errorf("%w: %s", ErrReadonlyAccount, key)
	}
	return nil
}

// authorize accepts key if it signed the transaction or if one of the
// capabilities signs for it under the executing program.
func (h *host) authorize(key domain.Pubkey, signers []*pda.Signer) error {
	if m, ok := h.metas[key]; ok && m.IsSigner {
		return nil
	}
	for _, s := range signers {
		if !s.Authorizes(key) {
			continue
		}
		if err := s.Verify(h.programID); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMissingSignature, key, err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrMissingSignature, key)
}

// moveLamports shifts native balance between two listed accounts.
func (h *host) moveLamports(ctx context.Context, from, to domain.Pubkey, lamports uint64) error {
	src, err := h.load(ctx, from)
	if err != nil {
		return err
	}
	if src.Lamports < lamports {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientLamports, from, src.Lamports, lamports)
	}
	if from == to {
		return nil
	}
	dst, err := h.load(ctx, to)
	if err != nil {
		return err
	}
	if dst.Lamports+lamports < dst.Lamports {
		return fmt.Errorf("%w: %s lamports", ErrOverflow, to)
	}
	src.Lamports -= lamports
	dst.Lamports += lamports
	if err := h.store(ctx, src); err != nil {
		return err
	}
	return h.store(ctx, dst)
}
