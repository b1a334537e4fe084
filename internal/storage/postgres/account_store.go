package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/storage"
)

// AccountStore implements storage.AccountStore using PostgreSQL.
// Transactions run at SERIALIZABLE and lock every account they read.
type AccountStore struct {
	pool *Pool
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(pool *Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Compile-time interface check.
var _ storage.AccountStore = (*AccountStore)(nil)

const selectAccount = `
	SELECT address, owner, lamports, data, executable
	FROM accounts
	WHERE address = $1
`

// GetAccount reads the committed state of an account.
func (s *AccountStore) GetAccount(ctx context.Context, key domain.Pubkey) (_ *domain.Account, err error) {
	defer observe("get_account", time.Now(), &err)

	acct, err := scanAccount(s.pool.QueryRow(ctx, selectAccount, key.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get account %s: %w", key, err)
	}
	return acct, nil
}

// ListByOwner returns all accounts owned by program, ordered by address.
func (s *AccountStore) ListByOwner(ctx context.Context, owner domain.Pubkey) (_ []*domain.Account, err error) {
	defer observe("list_by_owner", time.Now(), &err)

	query := `
		SELECT address, owner, lamports, data, executable
		FROM accounts
		WHERE owner = $1
		ORDER BY address ASC
	`

	rows, err := s.pool.Query(ctx, query, owner.String())
	if err != nil {
		return nil, fmt.Errorf("list accounts by owner: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}

// Begin opens a serializable transaction.
func (s *AccountStore) Begin(ctx context.Context) (storage.AccountTx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return &accountTx{tx: tx}, nil
}

type accountTx struct {
	tx pgx.Tx
}

func (t *accountTx) GetAccount(ctx context.Context, key domain.Pubkey) (*domain.Account, error) {
	acct, err := scanAccount(t.tx.QueryRow(ctx, selectAccount+" FOR UPDATE", key.String()))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, t.wrap("get account", err)
	}
	return acct, nil
}

func (t *accountTx) PutAccount(ctx context.Context, acct *domain.Account) error {
	if acct == nil || acct.Lamports > math.MaxInt64 {
		return storage.ErrInvalidInput
	}
	data := acct.Data
	if data == nil {
		data = []byte{}
	}

	query := `
		INSERT INTO accounts (address, owner, lamports, data, executable)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO UPDATE SET
			owner = EXCLUDED.owner,
			lamports = EXCLUDED.lamports,
			data = EXCLUDED.data,
			executable = EXCLUDED.executable,
			updated_at = now()
	`
	_, err := t.tx.Exec(ctx, query,
		acct.Address.String(),
		acct.Owner.String(),
		int64(acct.Lamports),
		data,
		acct.Executable,
	)
	if err != nil {
		return t.wrap("put account", err)
	}
	return nil
}

func (t *accountTx) DeleteAccount(ctx context.Context, key domain.Pubkey) error {
	if _, err := t.tx.Exec(ctx, `DELETE FROM accounts WHERE address = $1`, key.String()); err != nil {
		return t.wrap("delete account", err)
	}
	return nil
}

func (t *accountTx) Commit(ctx context.Context) (err error) {
	defer observe("commit", time.Now(), &err)

	if err = t.tx.Commit(ctx); err != nil {
		return t.wrap("commit tx", err)
	}
	return nil
}

func (t *accountTx) Rollback(ctx context.Context) error {
	err := t.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("rollback tx: %w", err)
	}
	return nil
}

func (t *accountTx) wrap(op string, err error) error {
	if errors.Is(err, pgx.ErrTxClosed) {
		return storage.ErrTxDone
	}
	return fmt.Errorf("%s: %w", op, err)
}

// scanAccount scans one row of the accounts table.
func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		address, owner string
		lamports       int64
		acct           domain.Account
	)
	if err := row.Scan(&address, &owner, &lamports, &acct.Data, &acct.Executable); err != nil {
		return nil, err
	}

	var err error
	if acct.Address, err = domain.PubkeyFromBase58(address); err != nil {
		return nil, err
	}
	if acct.Owner, err = domain.PubkeyFromBase58(owner); err != nil {
		return nil, err
	}
	acct.Lamports = uint64(lamports)
	return &acct, nil
}
