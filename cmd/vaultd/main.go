// Package main runs the vault dev ledger: the staking program on the
// reference runtime behind an HTTP API.
//
// Settings are read from --config (YAML), then environment variables
// (a local .env file is loaded first), then explicit flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nft-stake-vault/internal/config"
	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/program"
	"nft-stake-vault/internal/runtime"
	"nft-stake-vault/internal/storage"
	chstore "nft-stake-vault/internal/storage/clickhouse"
	"nft-stake-vault/internal/storage/memory"
	"nft-stake-vault/internal/storage/migrations"
	pgstore "nft-stake-vault/internal/storage/postgres"
	"nft-stake-vault/internal/verification"
)

const shutdownTimeout = 30 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("VAULT_CONFIG"), "YAML config file")
	addr := flag.String("addr", "", "HTTP listen address")
	storeBackend := flag.String("store", "", "Account store: memory or postgres")
	historyBackend := flag.String("history", "", "Stake history store: memory or clickhouse")
	postgresDSN := flag.String("postgres-dsn", "", "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", "", "ClickHouse connection string")
	genesisPath := flag.String("genesis", "", "Genesis YAML applied to an empty ledger")
	manualClock := flag.Bool("manual-clock", false, "Freeze ledger time at the genesis clock")
	flag.Parse()

	logger := log.New(os.Stdout, "[vaultd] ", log.LstdFlags|log.Lshortfile)

	if err := config.LoadEnvFile(".env"); err != nil {
		logger.Fatalf("Failed to load .env: %v", err)
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	// Explicit flags win over file and environment.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "addr":
			cfg.Server.Addr = *addr
		case "store":
			cfg.Store.Backend = *storeBackend
		case "history":
			cfg.History.Backend = *historyBackend
		case "postgres-dsn":
			cfg.Store.PostgresDSN = *postgresDSN
		case "clickhouse-dsn":
			cfg.History.ClickhouseDSN = *clickhouseDSN
		case "genesis":
			cfg.Ledger.Genesis = *genesisPath
		case "manual-clock":
			cfg.Ledger.ManualClock = *manualClock
		}
	})

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("Invalid config: %v", err)
	}
	programCfg, err := cfg.ProgramConfig()
	if err != nil {
		logger.Fatalf("Invalid program config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	clock, err := seedLedger(ctx, cfg, programCfg, stores.accounts, logger)
	if err != nil {
		logger.Fatalf("Failed to seed ledger: %v", err)
	}

	rt, err := runtime.New(runtime.Options{
		Config:  programCfg,
		Store:   stores.accounts,
		History: stores.history,
		Clock:   clock,
		Logger:  log.New(os.Stdout, "[runtime] ", log.LstdFlags|log.Lshortfile),

		ReplayWindow: cfg.Ledger.ReplayWindow,
	})
	if err != nil {
		logger.Fatalf("Failed to create runtime: %v", err)
	}

	verifier := verification.NewLedgerVerifier(verification.LedgerVerifierOptions{
		ProgramID: programCfg.ProgramID,
		Accounts:  stores.accounts,
		History:   stores.history,
	})
	api := NewAPI(rt, verifier, log.New(os.Stdout, "[api] ", log.LstdFlags|log.Lshortfile))
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Printf("Starting HTTP server on %s (program %s, store %s, history %s)",
			cfg.Server.Addr, programCfg.ProgramID, cfg.Store.Backend, cfg.History.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
	case err := <-serveErr:
		if err != nil {
			logger.Fatalf("HTTP server error: %v", err)
		}
	}

	// Wait for second signal for immediate shutdown
	go func() {
		sig := <-sigCh
		logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
		os.Exit(1)
	}()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Printf("Graceful shutdown failed: %v", err)
	}
	logger.Println("Shutdown complete")
}

type ledgerStores struct {
	accounts storage.AccountStore
	history  storage.StakeEventStore
}

// createStores opens the configured backends and applies migrations.
func createStores(ctx context.Context, cfg config.Config) (*ledgerStores, func(), error) {
	stores := &ledgerStores{}
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	switch cfg.Store.Backend {
	case config.BackendPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect to postgres: %w", err)
		}
		closers = append(closers, pool.Close)
		if cfg.Store.Migrate {
			if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("postgres migrations: %w", err)
			}
		}
		stores.accounts = pgstore.NewAccountStore(pool)
	default:
		stores.accounts = memory.NewAccountStore()
	}

	switch cfg.History.Backend {
	case config.BackendClickhouse:
		var (
			conn *chstore.Conn
			err  error
		)
		if cfg.History.Migrate {
			conn, err = migrations.RunClickhouseMigrations(ctx, cfg.History.ClickhouseDSN)
		} else {
			conn, err = chstore.NewConn(ctx, cfg.History.ClickhouseDSN)
		}
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		closers = append(closers, func() { conn.Close() })
		stores.history = chstore.NewStakeEventStore(conn)
	default:
		stores.history = memory.NewStakeEventStore()
	}

	return stores, cleanup, nil
}

// seedLedger applies the genesis file to an empty ledger and returns the
// ledger clock. A ledger that already holds the reward mint is left as is.
func seedLedger(ctx context.Context, cfg config.Config, programCfg program.Config, accounts storage.AccountStore, logger *log.Logger) (runtime.Clock, error) {
	var genesis *runtime.Genesis
	if cfg.Ledger.Genesis != "" {
		var err error
		if genesis, err = runtime.LoadGenesis(cfg.Ledger.Genesis); err != nil {
			return nil, err
		}

		_, err = accounts.GetAccount(ctx, programCfg.RewardMint)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			if err := genesis.Apply(ctx, accounts, programCfg, domain.DefaultRent()); err != nil {
				return nil, fmt.Errorf("apply genesis: %w", err)
			}
			logger.Printf("Applied genesis %s", cfg.Ledger.Genesis)
		case err != nil:
			return nil, fmt.Errorf("check ledger seed: %w", err)
		default:
			logger.Printf("Ledger already seeded, skipping genesis %s", cfg.Ledger.Genesis)
		}
	}

	if !cfg.Ledger.ManualClock {
		return runtime.SystemClock{}, nil
	}
	start := time.Now().Unix()
	if genesis != nil && genesis.Clock != 0 {
		start = genesis.Clock
	}
	logger.Printf("Using manual ledger clock starting at %d", start)
	return runtime.NewManualClock(start), nil
}
