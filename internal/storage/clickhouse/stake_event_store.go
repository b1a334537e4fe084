package clickhouse

import (
	"context"
	"fmt"
	"time"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/observability"
	"nft-stake-vault/internal/storage"
)

// StakeEventStore implements storage.StakeEventStore using ClickHouse.
type StakeEventStore struct {
	conn *Conn
}

// NewStakeEventStore creates a new StakeEventStore.
func NewStakeEventStore(conn *Conn) *StakeEventStore {
	return &StakeEventStore{conn: conn}
}

// Compile-time interface check.
var _ storage.StakeEventStore = (*StakeEventStore)(nil)

// InsertBulk adds multiple events. MergeTree does not enforce keys, so
// duplicates are rejected by explicit checks before the batch is sent.
func (s *StakeEventStore) InsertBulk(ctx context.Context, events []*domain.StakeEvent) (err error) {
	defer observe("insert_bulk", time.Now(), &err)

	if len(events) == 0 {
		return nil
	}

	type key struct {
		txID       string
		eventIndex int
	}
	seen := make(map[key]struct{}, len(events))
	for _, ev := range events {
		if ev == nil || ev.TxID == "" || ev.EventIndex < 0 {
			return storage.ErrInvalidInput
		}
		k := key{ev.TxID, ev.EventIndex}
		if _, exists := seen[k]; exists {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, ev := range events {
		exists, err := s.exists(ctx, ev.TxID, ev.EventIndex)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO stake_events (
			tx_id, event_index, kind, mint, staker, collection, timestamp, periods, reward
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, ev := range events {
		err = batch.Append(
			ev.TxID, uint32(ev.EventIndex), string(ev.Kind),
			ev.Mint.String(), ev.Staker.String(), ev.Collection.String(),
			ev.Timestamp, ev.Periods, ev.Reward,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves the history of one NFT, ordered by timestamp ASC.
func (s *StakeEventStore) GetByMint(ctx context.Context, mint domain.Pubkey) (_ []*domain.StakeEvent, err error) {
	defer observe("get_by_mint", time.Now(), &err)

	query := `
		SELECT tx_id, event_index, kind, mint, staker, collection, timestamp, periods, reward
		FROM stake_events
		WHERE mint = ?
		ORDER BY timestamp ASC, tx_id ASC, event_index ASC
	`

	rows, err := s.conn.Query(ctx, query, mint.String())
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanStakeEvents(rows)
}

// GetByStaker retrieves every event of one holder, ordered by timestamp ASC.
// Reads the staker-ordered projection filled by a materialized view.
func (s *StakeEventStore) GetByStaker(ctx context.Context, staker domain.Pubkey) (_ []*domain.StakeEvent, err error) {
	defer observe("get_by_staker", time.Now(), &err)

	query := `
		SELECT tx_id, event_index, kind, mint, staker, collection, timestamp, periods, reward
		FROM stake_events_by_staker
		WHERE staker = ?
		ORDER BY timestamp ASC, tx_id ASC, event_index ASC
	`

	rows, err := s.conn.Query(ctx, query, staker.String())
	if err != nil {
		return nil, fmt.Errorf("query by staker: %w", err)
	}
	defer rows.Close()

	return scanStakeEvents(rows)
}

func observe(op string, start time.Time, errp *error) {
	observability.RecordDBQuery("clickhouse", op, time.Since(start).Seconds(), *errp)
}

func (s *StakeEventStore) exists(ctx context.Context, txID string, eventIndex int) (bool, error) {
	query := `
		SELECT count(*) FROM stake_events
		WHERE tx_id = ? AND event_index = ?
	`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, txID, uint32(eventIndex)).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanStakeEvents(rows chRows) ([]*domain.StakeEvent, error) {
	var events []*domain.StakeEvent

	for rows.Next() {
		var (
			ev                       domain.StakeEvent
			eventIndex               uint32
			kind, mint, staker, coll string
		)
		err := rows.Scan(
			&ev.TxID, &eventIndex, &kind, &mint, &staker, &coll,
			&ev.Timestamp, &ev.Periods, &ev.Reward,
		)
		if err != nil {
			return nil, fmt.Errorf("scan stake event row: %w", err)
		}

		ev.EventIndex = int(eventIndex)
		ev.Kind = domain.StakeEventKind(kind)
		if ev.Mint, err = domain.PubkeyFromBase58(mint); err != nil {
			return nil, fmt.Errorf("stake event mint: %w", err)
		}
		if ev.Staker, err = domain.PubkeyFromBase58(staker); err != nil {
			return nil, fmt.Errorf("stake event staker: %w", err)
		}
		if ev.Collection, err = domain.PubkeyFromBase58(coll); err != nil {
			return nil, fmt.Errorf("stake event collection: %w", err)
		}
		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stake event rows: %w", err)
	}
	return events, nil
}
