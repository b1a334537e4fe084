// Package config loads the settings of the vault commands from a YAML file,
// a .env file and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/program"
)

// Store backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

// Config is the full settings tree.
type Config struct {
	Program ProgramConfig `yaml:"program"`
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	History HistoryConfig `yaml:"history"`
	Ledger  LedgerConfig  `yaml:"ledger"`
	Solana  SolanaConfig  `yaml:"solana"`
}

// ProgramConfig holds the deployment identities in base58.
type ProgramConfig struct {
	ID         string `yaml:"id"`
	Admin      string `yaml:"admin"`
	RewardMint string `yaml:"reward_mint"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// StoreConfig selects the account store.
type StoreConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
	Migrate     bool   `yaml:"migrate"`
}

// HistoryConfig selects the stake event store.
type HistoryConfig struct {
	Backend       string `yaml:"backend"`
	ClickhouseDSN string `yaml:"clickhouse_dsn"`
	Migrate       bool   `yaml:"migrate"`
}

// LedgerConfig seeds the dev ledger.
type LedgerConfig struct {
	Genesis string `yaml:"genesis"`
	// ManualClock freezes ledger time at the genesis clock. Time then only
	// moves through the clock endpoint.
	ManualClock bool `yaml:"manual_clock"`
	// ReplayWindow bounds the transaction ids remembered for duplicate
	// detection. Zero takes the runtime default.
	ReplayWindow int `yaml:"replay_window"`
}

// SolanaConfig points the read-only tools at a cluster.
type SolanaConfig struct {
	RPCEndpoint string `yaml:"rpc_endpoint"`
	WSEndpoint  string `yaml:"ws_endpoint"`
	Commitment  string `yaml:"commitment"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Server:  ServerConfig{Addr: ":8080"},
		Store:   StoreConfig{Backend: BackendMemory, Migrate: true},
		History: HistoryConfig{Backend: BackendMemory, Migrate: true},
		Solana:  SolanaConfig{Commitment: "confirmed"},
	}
}

// Load reads path over the defaults and applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"VAULT_PROGRAM_ID":    &c.Program.ID,
		"VAULT_ADMIN":         &c.Program.Admin,
		"VAULT_REWARD_MINT":   &c.Program.RewardMint,
		"VAULT_ADDR":          &c.Server.Addr,
		"VAULT_STORE":         &c.Store.Backend,
		"POSTGRES_DSN":        &c.Store.PostgresDSN,
		"VAULT_HISTORY":       &c.History.Backend,
		"CLICKHOUSE_DSN":      &c.History.ClickhouseDSN,
		"VAULT_GENESIS":       &c.Ledger.Genesis,
		"SOLANA_RPC_ENDPOINT": &c.Solana.RPCEndpoint,
		"SOLANA_WS_ENDPOINT":  &c.Solana.WSEndpoint,
		"SOLANA_COMMITMENT":   &c.Solana.Commitment,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	bools := map[string][]*bool{
		"VAULT_MANUAL_CLOCK": {&c.Ledger.ManualClock},
		"VAULT_MIGRATE":      {&c.Store.Migrate, &c.History.Migrate},
	}
	for key, dsts := range bools {
		v, ok := lookup(key)
		if !ok || v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		for _, dst := range dsts {
			*dst = b
		}
	}
	return nil
}

// Validate checks the settings needed to run the ledger server.
func (c Config) Validate() error {
	var errs []error
	if _, err := c.ProgramConfig(); err != nil {
		errs = append(errs, err)
	}
	switch c.Store.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Store.PostgresDSN == "" {
			errs = append(errs, errors.New("store: postgres_dsn is required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("store: unknown backend %q", c.Store.Backend))
	}
	switch c.History.Backend {
	case BackendMemory:
	case BackendClickhouse:
		if c.History.ClickhouseDSN == "" {
			errs = append(errs, errors.New("history: clickhouse_dsn is required for the clickhouse backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("history: unknown backend %q", c.History.Backend))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server: addr is required"))
	}
	return errors.Join(errs...)
}

// ProgramConfig parses the deployment identities.
func (c Config) ProgramConfig() (program.Config, error) {
	var (
		out  program.Config
		errs []error
	)
	parse := func(name, value string, dst *domain.Pubkey) {
		if value == "" {
			return
		}
		key, err := domain.PubkeyFromBase58(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("program.%s: %w", name, err))
			return
		}
		*dst = key
	}
	parse("id", c.Program.ID, &out.ProgramID)
	parse("admin", c.Program.Admin, &out.Admin)
	parse("reward_mint", c.Program.RewardMint, &out.RewardMint)
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// LoadEnvFile sets variables from a .env file without overriding ones
// already present. A missing file is ignored.
func LoadEnvFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read env file: %w", err)
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.Trim(strings.TrimSpace(parts[1]), `"'`)

		// Don't override existing env vars
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return nil
}
