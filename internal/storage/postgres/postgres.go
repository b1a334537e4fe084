package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"nft-stake-vault/internal/observability"
	"nft-stake-vault/internal/storage"
)

// Pool is a pgx connection pool shared by the Postgres stores.
type Pool struct {
	*pgxpool.Pool
}

const (
	applicationName = "nft-stake-vault"
	maxConns        = 16
	maxConnIdleTime = 5 * time.Minute
)

// NewPool opens a pool for dsn and checks it with a ping. Pool limits given
// in the dsn (pool_max_conns and friends) take precedence over the defaults.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if _, set := cfg.ConnConfig.RuntimeParams["application_name"]; !set {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if !strings.Contains(dsn, "pool_max_conns") {
		cfg.MaxConns = maxConns
	}
	if !strings.Contains(dsn, "pool_max_conn_idle_time") {
		cfg.MaxConnIdleTime = maxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

// Close waits for acquired connections and closes the pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// observe records the duration of op. A missing row is not a failure.
func observe(op string, start time.Time, errp *error) {
	err := *errp
	if errors.Is(err, storage.ErrNotFound) {
		err = nil
	}
	observability.RecordDBQuery("postgres", op, time.Since(start).Seconds(), err)
}

// SQLSTATE codes the stores react to.
const (
	sqlstateUniqueViolation      = "23505"
	sqlstateSerializationFailure = "40001"
)

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func isDuplicateKeyError(err error) bool {
	return err != nil && pgErrorCode(err) == sqlstateUniqueViolation
}

// IsSerializationFailure reports whether a transaction lost a conflict with a
// concurrent one and may be retried.
func IsSerializationFailure(err error) bool {
	return err != nil && pgErrorCode(err) == sqlstateSerializationFailure
}

func isNotFoundError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
