package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Cardano transaction output normalizer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	normalizeCmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize transaction outputs from a JSONL file",
		RunE:  runNormalize,
	}

	normalizeCmd.Flags().String("in", "", "input output records JSONL")
	normalizeCmd.Flags().String("sink", "jsonl", "output sink (jsonl, nats)")
	normalizeCmd.Flags().String("out", "./data/outputs.jsonl", "output JSONL path (jsonl sink)")
	normalizeCmd.Flags().String("nats-url", "", "NATS URL (nats sink)")
	normalizeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	addRegistryFlags(normalizeCmd, "")
	normalizeCmd.Flags().StringSlice("asset", nil, "tracked assets: lovelace or <policy hex>.<name hex> (comma-separated)")
	normalizeCmd.Flags().Int("batch-size", 1000, "records per batch")
	normalizeCmd.Flags().Int("workers", 4, "concurrent normalization workers")
	normalizeCmd.Flags().Int("lookup-chunk", 500, "asset pairs per registry transaction")
	normalizeCmd.Flags().String("checkpoint", "./data/checkpoint.json", "checkpoint file path")
	normalizeCmd.Flags().Bool("checkpoint-enabled", true, "enable checkpointing")
	normalizeCmd.Flags().Bool("checkpoint-db", false, "store the checkpoint in indexer_state (pgx registry only)")
	normalizeCmd.Flags().String("state-name", "normalize", "checkpoint name in indexer_state")
	normalizeCmd.Flags().Int("max-retries", 5, "maximum registry retry attempts")
	normalizeCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	normalizeCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9100)")
	normalizeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(normalizeCmd)

	assetsCmd := &cobra.Command{
		Use:   "assets",
		Short: "Manage the native asset registry",
	}

	resolveCmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print registry rows for asset pairs",
		RunE:  runAssetsResolve,
	}
	addAssetFlags(resolveCmd)

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Register asset pairs in the registry",
		RunE:  runAssetsImport,
	}
	addAssetFlags(importCmd)
	importCmd.Flags().Int64("first-slot", 0, "first slot recorded for new rows")
	importCmd.Flags().Bool("migrate", true, "create registry tables before importing")

	assetsCmd.AddCommand(resolveCmd, importCmd)
	root.AddCommand(assetsCmd)

	addressCmd := &cobra.Command{
		Use:   "address [address...]",
		Short: "Decode addresses (bech32, base58 or hex)",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAddress,
	}
	root.AddCommand(addressCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRegistryFlags(cmd *cobra.Command, backend string) {
	cmd.Flags().String("registry", backend, "asset registry backend (pgx, postgres, sqlite); empty disables lookups")
	cmd.Flags().String("registry-dsn", "", "asset registry DSN")
}

func addAssetFlags(cmd *cobra.Command) {
	addRegistryFlags(cmd, "pgx")
	cmd.Flags().StringSlice("asset", nil, "asset pairs <policy hex>.<name hex> (comma-separated)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
