// Package main follows stake record changes of a deployed vault over a
// websocket subscription and archives the transitions as stake events.
//
// Account notifications carry no mint, so events are archived only for the
// mints passed with --mints. Other transitions are logged.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"nft-stake-vault/internal/config"
	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/solana"
	"nft-stake-vault/internal/storage"
	chstore "nft-stake-vault/internal/storage/clickhouse"
	"nft-stake-vault/internal/storage/memory"
	"nft-stake-vault/internal/storage/migrations"
)

func main() {
	configPath := flag.String("config", os.Getenv("VAULT_CONFIG"), "YAML config file")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	wsEndpoint := flag.String("ws-endpoint", "", "Solana WebSocket endpoint")
	programID := flag.String("program-id", "", "Vault program id")
	mintList := flag.String("mints", "", "Comma-separated NFT mints whose transitions are archived")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string (memory history when empty)")
	flag.Parse()

	logger := log.New(os.Stdout, "[watch] ", log.LstdFlags|log.Lshortfile)

	if err := config.LoadEnvFile(".env"); err != nil {
		logger.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}
	if *rpcEndpoint != "" {
		cfg.Solana.RPCEndpoint = *rpcEndpoint
	}
	if *wsEndpoint != "" {
		cfg.Solana.WSEndpoint = *wsEndpoint
	}
	if *programID != "" {
		cfg.Program.ID = *programID
	}
	if *clickhouseDSN != "" {
		cfg.History.ClickhouseDSN = *clickhouseDSN
	}
	if cfg.Solana.RPCEndpoint == "" || cfg.Solana.WSEndpoint == "" {
		logger.Fatal("--rpc-endpoint and --ws-endpoint are required")
	}
	program, err := domain.PubkeyFromBase58(cfg.Program.ID)
	if err != nil {
		logger.Fatalf("--program-id: %v", err)
	}
	mints, err := parseMints(*mintList)
	if err != nil {
		logger.Fatalf("--mints: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, shutting down...", sig)
		cancel()
	}()

	var history storage.StakeEventStore = memory.NewStakeEventStore()
	if cfg.History.ClickhouseDSN != "" {
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.History.ClickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to open history store: %v", err)
		}
		defer conn.Close()
		history = chstore.NewStakeEventStore(conn)
	}

	t, err := newTracker(program, mints)
	if err != nil {
		logger.Fatalf("Failed to build tracker: %v", err)
	}

	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint, solana.WithCommitment(cfg.Solana.Commitment))
	entries, err := solana.NewInspector(rpc, program).ListStakes(ctx, domain.Pubkey{})
	if err != nil {
		logger.Fatalf("Failed to list stake records: %v", err)
	}
	t.seed(entries)
	logger.Printf("Seeded %d stake records of program %s", len(entries), program)

	ws, err := solana.NewWSClient(ctx, cfg.Solana.WSEndpoint, nil)
	if err != nil {
		logger.Fatalf("Failed to connect websocket: %v", err)
	}
	defer ws.Close()

	notifications, err := ws.SubscribeProgram(ctx, solana.ProgramFilter{
		ProgramID: program,
		Filters:   []solana.AccountFilter{solana.DataSizeFilter(domain.StakeRecordSize)},
	})
	if err != nil {
		logger.Fatalf("Failed to subscribe: %v", err)
	}
	logger.Println("Watching stake records...")

	for {
		select {
		case <-ctx.Done():
			logger.Println("Shutdown complete")
			return
		case n, ok := <-notifications:
			if !ok {
				logger.Println("Subscription closed")
				return
			}
			handleNotification(ctx, t, history, n, logger)
		}
	}
}

func handleNotification(ctx context.Context, t *tracker, history storage.StakeEventStore, n solana.AccountNotification, logger *log.Logger) {
	entry, ok := solana.DecodeStakeNotification(n)
	if !ok {
		return
	}
	ev, changed := t.observe(entry, n.Slot, time.Now().Unix())
	if !changed {
		return
	}
	logger.Printf("slot %d: %s %s by %s", n.Slot, ev.Kind, entry.Address, ev.Staker)
	if !t.known(entry.Address) {
		return
	}
	if err := history.InsertBulk(ctx, []*domain.StakeEvent{ev}); err != nil {
		logger.Printf("archive %s: %v", ev.TxID, err)
	}
}

func parseMints(list string) ([]domain.Pubkey, error) {
	var mints []domain.Pubkey
	for _, s := range strings.Split(list, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key, err := domain.PubkeyFromBase58(s)
		if err != nil {
			return nil, err
		}
		mints = append(mints, key)
	}
	return mints, nil
}
