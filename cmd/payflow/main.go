package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "payflow",
		Short:        "Payment streams and constant-product pools with an off-chain mirror",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a scenario against a fresh ledger and write its notifications as logs",
		RunE:  runScenario,
	}
	runCmd.Flags().String("scenario", "", "scenario YAML file")
	runCmd.Flags().String("out", "./data/logs.jsonl", "output log JSONL path")
	runCmd.Flags().String("events", "", "optional decoded events JSONL path")
	runCmd.Flags().String("results", "", "optional step results JSONL path")
	runCmd.Flags().Uint64("chain-id", 31337, "chain id stamped on log records")
	runCmd.Flags().String("ledger-address", "", "emitting address for log records (defaults to custody)")
	runCmd.Flags().Bool("reset", false, "truncate the output log before writing")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(runCmd)

	mirrorCmd := &cobra.Command{
		Use:   "mirror",
		Short: "Replay logs into streams, pools, positions and swap window metrics",
		RunE:  runMirror,
	}
	mirrorCmd.Flags().String("in", "", "input log JSONL")
	mirrorCmd.Flags().String("errors", "", "optional decode errors JSONL")
	mirrorCmd.Flags().String("address", "", "only mirror records from this ledger address")
	mirrorCmd.Flags().Duration("window", 5*time.Minute, "swap metrics window (e.g. 1m, 5m, 1h)")
	mirrorCmd.Flags().String("store", "sqlite", "mirror store (sqlite, postgres)")
	mirrorCmd.Flags().String("pg-dsn", "", "Postgres DSN")
	mirrorCmd.Flags().String("sqlite-path", "./data/mirror.db", "SQLite database path")
	mirrorCmd.Flags().Uint64("batch-size", 1000, "seq numbers per write batch")
	mirrorCmd.Flags().String("state-file", "", "optional local state file for progress tracking")
	mirrorCmd.Flags().Uint64("recompute-from", 0, "rewrite rows from this seq on, ignoring saved progress")
	mirrorCmd.Flags().Int("max-retries", 5, "maximum retry attempts per batch")
	mirrorCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	mirrorCmd.Flags().String("rpc", "", "optional RPC URL for token metadata")
	mirrorCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(mirrorCmd)

	quoteCmd := &cobra.Command{
		Use:   "quote",
		Short: "Quote a constant-product swap",
		RunE:  runQuote,
	}
	quoteCmd.Flags().String("reserve-in", "", "reserve of the input token")
	quoteCmd.Flags().String("reserve-out", "", "reserve of the output token")
	quoteCmd.Flags().String("amount-in", "", "input amount")
	quoteCmd.Flags().Uint64("fee-bps", 30, "swap fee in basis points")
	quoteCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(quoteCmd)

	return root
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
