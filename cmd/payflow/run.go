package main

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payflow/internal/config"
	"payflow/internal/events"
	"payflow/internal/ledger"
	"payflow/internal/model"
	"payflow/internal/script"
	"payflow/internal/storage"
)

func runScenario(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.Scenario == "" {
		return fmt.Errorf("scenario path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}

	sc, err := script.Load(cfg.Scenario)
	if err != nil {
		return err
	}
	host, err := script.NewHost(sc, logger)
	if err != nil {
		return err
	}

	address := host.Ledger().Custody()
	if cfg.LedgerAddress != "" {
		if !common.IsHexAddress(cfg.LedgerAddress) {
			return fmt.Errorf("invalid ledger address: %s", cfg.LedgerAddress)
		}
		address = common.HexToAddress(cfg.LedgerAddress)
	}

	sink, err := storage.NewJsonlStorage(cfg.Out)
	if err != nil {
		return err
	}
	if cfg.Reset {
		if err := sink.Reset(); err != nil {
			return err
		}
	} else if sink.LastSeq() > 0 {
		return fmt.Errorf("%s already holds %d records; pass --reset to overwrite", cfg.Out, sink.LastSeq())
	}

	logger.Info("scenario start",
		zap.String("scenario", cfg.Scenario),
		zap.Int("steps", len(sc.Steps)),
		zap.Uint64("chain_id", cfg.ChainID),
		zap.String("ledger", address.Hex()),
		zap.String("out", cfg.Out),
	)

	results, runErr := host.Run()
	if runErr != nil {
		logger.Error("scenario stopped", zap.Error(runErr), zap.Int("completed", len(results)))
	}

	// Committed notifications are valid even when a later step failed.
	if err := writeResults(cfg.Results, results); err != nil {
		return errors.Join(runErr, err)
	}

	enc, err := events.NewEncoder(cfg.ChainID, address)
	if err != nil {
		return errors.Join(runErr, err)
	}
	records, err := publish(sink, enc, host.Ledger().Notifications(0))
	if err != nil {
		return errors.Join(runErr, err)
	}
	if err := writeEvents(cfg.Events, records); err != nil {
		return errors.Join(runErr, err)
	}

	logger.Info("scenario complete",
		zap.Int("steps", len(results)),
		zap.Int("records", len(records)),
		zap.Uint64("last_seq", sink.LastSeq()),
	)
	return runErr
}

func publish(sink storage.Storage, enc *events.Encoder, notes []ledger.Notification) ([]model.LogRecord, error) {
	records, err := enc.EncodeAll(notes)
	if err != nil {
		return nil, fmt.Errorf("encode notifications: %w", err)
	}
	if err := sink.PutLogBatch(records); err != nil {
		return nil, fmt.Errorf("store logs: %w", err)
	}
	return records, nil
}

func writeResults(path string, results []script.StepResult) error {
	if path == "" {
		return nil
	}
	w, err := storage.NewJSONLWriter(path, false)
	if err != nil {
		return err
	}
	for _, res := range results {
		if err := w.Write(res); err != nil {
			w.Close()
			return fmt.Errorf("write results: %w", err)
		}
	}
	return w.Close()
}

func writeEvents(path string, records []model.LogRecord) error {
	if path == "" {
		return nil
	}
	decoder, err := events.NewDecoder()
	if err != nil {
		return err
	}
	w, err := storage.NewJSONLWriter(path, false)
	if err != nil {
		return err
	}
	for _, rec := range records {
		typed, err := decoder.Decode(rec)
		if err != nil {
			w.Close()
			return fmt.Errorf("decode seq %d: %w", rec.Seq(), err)
		}
		if err := w.Write(typed); err != nil {
			w.Close()
			return fmt.Errorf("write events: %w", err)
		}
	}
	return w.Close()
}
