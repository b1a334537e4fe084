// Package main prints decoded vault accounts read from a cluster.
//
// Usage:
//
//	inspect --rpc-endpoint URL --program-id ID                  vault parameters
//	inspect ... --collection ADDR                               collection price
//	inspect ... --mint ADDR                                     stake record of an NFT
//	inspect ... --stakes [--staker ADDR]                        every stake record
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"nft-stake-vault/internal/config"
	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/solana"
)

func main() {
	configPath := flag.String("config", os.Getenv("VAULT_CONFIG"), "YAML config file")
	rpcEndpoint := flag.String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	programID := flag.String("program-id", "", "Vault program id")
	collection := flag.String("collection", "", "Print the whitelist record of this collection")
	mint := flag.String("mint", "", "Print the stake record of this NFT mint")
	stakes := flag.Bool("stakes", false, "List every stake record")
	staker := flag.String("staker", "", "Narrow --stakes to one holder")
	asJSON := flag.Bool("json", false, "Output as JSON")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall request timeout")
	flag.Parse()

	logger := log.New(os.Stderr, "[inspect] ", log.LstdFlags)

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
	if *programID != "" {
		cfg.Program.ID = *programID
	}
	if cfg.Solana.RPCEndpoint == "" {
		logger.Fatal("--rpc-endpoint is required")
	}
	program, err := domain.PubkeyFromBase58(cfg.Program.ID)
	if err != nil {
		logger.Fatalf("--program-id: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	rpc := solana.NewHTTPClient(cfg.Solana.RPCEndpoint, solana.WithCommitment(cfg.Solana.Commitment))
	inspector := solana.NewInspector(rpc, program)

	var out interface{}
	switch {
	case *collection != "":
		key := mustKey(logger, "--collection", *collection)
		addr, rec, err := inspector.FetchWhitelist(ctx, key)
		if err != nil {
			logger.Fatalf("Fetch whitelist: %v", err)
		}
		out = map[string]interface{}{"address": addr, "collection": key, "price": rec.Price}
	case *mint != "":
		key := mustKey(logger, "--mint", *mint)
		addr, rec, err := inspector.FetchStake(ctx, key)
		if err != nil {
			logger.Fatalf("Fetch stake record: %v", err)
		}
		out = stakeView(addr, rec)
	case *stakes:
		var holder domain.Pubkey
		if *staker != "" {
			holder = mustKey(logger, "--staker", *staker)
		}
		entries, err := inspector.ListStakes(ctx, holder)
		if err != nil {
			logger.Fatalf("List stakes: %v", err)
		}
		views := make([]map[string]interface{}, 0, len(entries))
		for _, e := range entries {
			views = append(views, stakeView(e.Address, e.Record))
		}
		out = views
	default:
		addr, rec, err := inspector.FetchVault(ctx)
		if err != nil {
			logger.Fatalf("Fetch vault: %v", err)
		}
		out = map[string]interface{}{
			"address":       addr,
			"min_period":    rec.MinPeriod,
			"reward_period": rec.RewardPeriod,
		}
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			logger.Fatalf("Encode output: %v", err)
		}
		return
	}
	printText(out)
}

func mustKey(logger *log.Logger, name, value string) domain.Pubkey {
	key, err := domain.PubkeyFromBase58(value)
	if err != nil {
		logger.Fatalf("%s: %v", name, err)
	}
	return key
}

func stakeView(addr domain.Pubkey, rec *domain.StakeRecord) map[string]interface{} {
	return map[string]interface{}{
		"address":   addr,
		"staker":    rec.Staker,
		"active":    rec.Active,
		"timestamp": rec.Timestamp,
		"staked_at": time.Unix(int64(rec.Timestamp), 0).UTC().Format(time.RFC3339),
	}
}

func printText(out interface{}) {
	switch v := out.(type) {
	case []map[string]interface{}:
		fmt.Printf("%d stake records\n", len(v))
		for _, row := range v {
			fmt.Printf("  %v staker=%v active=%v staked_at=%v\n",
				row["address"], row["staker"], row["active"], row["staked_at"])
		}
	case map[string]interface{}:
		for _, k := range []string{"address", "collection", "price", "min_period", "reward_period", "staker", "active", "staked_at"} {
			if val, ok := v[k]; ok {
				fmt.Printf("%-14s %v\n", k+":", val)
			}
		}
	}
}
