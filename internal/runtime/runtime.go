// Package runtime is a reference ledger host for the stake vault program.
//
// It executes one instruction per atomic transaction against an
// AccountStore, provides the system, token and associated-token services
// the program calls, and archives emitted stake events.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/idhash"
	"nft-stake-vault/internal/observability"
	"nft-stake-vault/internal/program"
	"nft-stake-vault/internal/storage"
)

// Options configures a Runtime.
type Options struct {
	Config  program.Config
	Store   storage.AccountStore    // required
	History storage.StakeEventStore // optional archive of stake events
	Clock   Clock                   // defaults to SystemClock
	Rent    *domain.Rent            // defaults to domain.DefaultRent
	Logger  *log.Logger

	// ReplayWindow bounds the remembered transaction ids. Defaults to
	// DefaultReplayWindow.
	ReplayWindow int
}

// Receipt describes one executed transaction. It is returned for failed
// transactions too, carrying the program log up to the failure.
type Receipt struct {
	TxID        string              `json:"tx_id"`
	Instruction string              `json:"instruction"`
	Timestamp   int64               `json:"timestamp"`
	Logs        []string            `json:"logs"`
	Events      []domain.StakeEvent `json:"events,omitempty"`
	Err         string              `json:"error,omitempty"`
}

// Runtime executes vault transactions.
type Runtime struct {
	processor *program.Processor
	store     storage.AccountStore
	history   storage.StakeEventStore
	clock     Clock
	rent      domain.Rent
	logger    *log.Logger

	seq    atomic.Uint64
	replay *replaySet

	feed *Feed
}

// New creates a Runtime.
func New(opts Options) (*Runtime, error) {
	if opts.Store == nil {
		return nil, errors.New("runtime: account store is required")
	}
	proc, err := program.NewProcessor(opts.Config)
	if err != nil {
		return nil, fmt.Errorf("runtime: %w", err)
	}
	r := &Runtime{
		processor: proc,
		store:     opts.Store,
		history:   opts.History,
		clock:     opts.Clock,
		rent:      domain.DefaultRent(),
		logger:    opts.Logger,
		replay:    newReplaySet(opts.ReplayWindow),
		feed:      NewFeed(),
	}
	if r.clock == nil {
		r.clock = SystemClock{}
	}
	if opts.Rent != nil {
		r.rent = *opts.Rent
	}
	if r.logger == nil {
		r.logger = log.New(os.Stderr, "[runtime] ", log.LstdFlags)
	}
	return r, nil
}

// Config returns the program configuration.
func (r *Runtime) Config() program.Config { return r.processor.Config() }

// Rent returns the rent schedule the runtime charges.
func (r *Runtime) Rent() domain.Rent { return r.rent }

// Clock returns the runtime clock.
func (r *Runtime) Clock() Clock { return r.clock }

// Feed returns the broadcaster of committed stake events.
func (r *Runtime) Feed() *Feed { return r.feed }

// History returns the stake event archive, or nil.
func (r *Runtime) History() storage.StakeEventStore { return r.history }

// Account reads committed account state.
func (r *Runtime) Account(ctx context.Context, key domain.Pubkey) (*domain.Account, error) {
	return r.store.GetAccount(ctx, key)
}

// Execute runs tx atomically. On any failure no account changes are
// committed and the error is returned alongside the receipt.
func (r *Runtime) Execute(ctx context.Context, tx *Transaction) (*Receipt, error) {
	start := time.Now()
	ix := tx.Instruction
	name := instructionName(ix.Data)

	receipt := &Receipt{TxID: tx.ID, Instruction: name, Timestamp: r.clock.Now()}
	if receipt.TxID == "" {
		receipt.TxID = r.assignID(ix, receipt.Timestamp)
	}

	err := r.execute(ctx, tx, receipt)
	observability.RecordInstruction(name, failureKind(err), time.Since(start).Seconds())
	if err != nil {
		receipt.Err = err.Error()
		r.logger.Printf("tx %s %s failed: %v", shortID(receipt.TxID), name, err)
		return receipt, err
	}
	observability.RecordCommit(receipt.Timestamp)
	r.logger.Printf("tx %s %s committed (%d events)", shortID(receipt.TxID), name, len(receipt.Events))

	r.archive(ctx, receipt.Events)
	return receipt, nil
}

func (r *Runtime) execute(ctx context.Context, tx *Transaction, receipt *Receipt) error {
	ix := tx.Instruction
	if ix.ProgramID != r.processor.Config().ProgramID {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, ix.ProgramID)
	}
	if err := requireSignatures(ix.Accounts, tx.Signers); err != nil {
		return err
	}
	if err := r.replay.reserve(receipt.TxID); err != nil {
		return err
	}

	committed := false
	defer func() {
		if !committed {
			r.replay.release(receipt.TxID)
		}
	}()

	stx, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = stx.Rollback(ctx) }()

	h := newHost(ix.ProgramID, stx, ix.Accounts, receipt.Timestamp, r.rent)
	err = r.processor.Process(ctx, h, ix.Accounts, ix.Data)
	receipt.Logs = h.logs
	if err != nil {
		return err
	}
	if err := stx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true

	for i, ev := range h.events {
		ev.TxID = receipt.TxID
		ev.EventIndex = i
		receipt.Events = append(receipt.Events, ev)
		switch ev.Kind {
		case domain.StakeEventStake:
			observability.RecordStake()
		case domain.StakeEventUnstake:
			observability.RecordUnstake(ev.Reward)
		}
	}
	return nil
}

// archive writes committed events to the history store and the feed.
// History is an off-ledger archive: the accounts are already committed, so
// a failed write is logged and counted but does not fail the transaction,
// and the missing events are not retried.
func (r *Runtime) archive(ctx context.Context, events []domain.StakeEvent) {
	if len(events) == 0 {
		return
	}
	if r.history != nil {
		batch := make([]*domain.StakeEvent, len(events))
		for i := range events {
			batch[i] = &events[i]
		}
		err := r.history.InsertBulk(ctx, batch)
		observability.RecordHistoryWrite(len(batch), err)
		if err != nil {
			r.logger.Printf("archive %d stake events: %v", len(batch), err)
		}
	}
	for _, ev := range events {
		r.feed.Publish(ev)
	}
}

// assignID names an unsigned transaction by hashing its message with a
// per-runtime sequence number.
func (r *Runtime) assignID(ix domain.Instruction, now int64) string {
	return idhash.ComputeTransactionID(Message(ix, r.seq.Add(1)), now)
}

// requireSignatures checks every meta marked as signer is in signers.
func requireSignatures(metas []domain.AccountMeta, signers []domain.Pubkey) error {
	signed := make(map[domain.Pubkey]bool, len(signers))
	for _, s := range signers {
		signed[s] = true
	}
	for _, m := range metas {
		if m.IsSigner && !signed[m.Pubkey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, m.Pubkey)
		}
	}
	return nil
}

func instructionName(data []byte) string {
	ix, err := program.DecodeInstruction(data)
	if err != nil {
		return "unknown"
	}
	return ix.Tag().String()
}

func failureKind(err error) string {
	if err == nil {
		return ""
	}
	if pe, ok := program.AsProgramError(err); ok {
		return pe.Kind.String()
	}
	return "host"
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
