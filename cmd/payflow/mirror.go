package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payflow/internal/chain"
	"payflow/internal/config"
	"payflow/internal/mirror"
	"payflow/internal/storage/postgres"
	"payflow/internal/storage/sqlite"
	"payflow/internal/tokenmeta"
)

type mirrorStore interface {
	mirror.Store
	mirror.StateBackend
	EnsureSchema(ctx context.Context) error
	Close()
}

func runMirror(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadMirror(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}
	windowSeconds := cfg.WindowSeconds()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	var stateStore mirror.StateStore
	if cfg.StateFile != "" {
		stateStore = &mirror.FileStateStore{Path: cfg.StateFile}
	} else {
		stateStore = &mirror.DBStateStore{Store: store, Name: fmt.Sprintf("mirror:%d", windowSeconds)}
	}

	var caller tokenmeta.Caller
	if cfg.RPCURL != "" {
		chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
		if err != nil {
			return fmt.Errorf("connect rpc: %w", err)
		}
		defer chainClient.Close()
		caller = chainClient
	}
	resolver, err := tokenmeta.NewResolver(caller, cfg.Tokens, logger)
	if err != nil {
		return err
	}

	runner, err := mirror.NewRunner(mirror.RunConfig{
		InputPath:     cfg.Input,
		ErrorsPath:    cfg.Errors,
		Address:       cfg.Address,
		WindowSeconds: windowSeconds,
		BatchSize:     cfg.BatchSize,
		MaxRetries:    cfg.MaxRetries,
		RetryBackoff:  cfg.RetryBackoff,
		RecomputeFrom: cfg.RecomputeFrom,
		StateStore:    stateStore,
	}, store, resolver, logger)
	if err != nil {
		return err
	}

	logger.Info("mirror start",
		zap.String("input", cfg.Input),
		zap.String("store", cfg.Store),
		zap.String("pg_dsn", redactDSN(cfg.PGDSN)),
		zap.Uint64("window_seconds", windowSeconds),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.Uint64("recompute_from", cfg.RecomputeFrom),
		zap.Int("static_tokens", len(cfg.Tokens)),
	)

	stats, err := runner.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("mirror stats",
		zap.Int("streams", stats.Streams),
		zap.Int("pools", stats.Pools),
		zap.Int("positions", stats.Positions),
		zap.Int("windows", stats.Windows),
		zap.Uint64("checkpoint", stats.Checkpoint),
	)
	return nil
}

func openStore(ctx context.Context, cfg config.MirrorConfig) (mirrorStore, error) {
	switch cfg.Store {
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return store, nil
	case config.StoreSQLite:
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

func redactDSN(dsn string) string {
	if dsn == "" {
		return dsn
	}
	return "***"
}
