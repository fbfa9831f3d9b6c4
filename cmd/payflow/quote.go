package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payflow/internal/config"
	"payflow/internal/ledger"
)

type quoteOutput struct {
	ReserveIn  string `json:"reserve_in"`
	ReserveOut string `json:"reserve_out"`
	AmountIn   string `json:"amount_in"`
	FeeBps     uint64 `json:"fee_bps"`
	AmountOut  string `json:"amount_out"`
	Fee        string `json:"fee"`
}

func runQuote(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadQuote(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	reserveIn, err := ledger.ParseAmount(cfg.ReserveIn)
	if err != nil {
		return fmt.Errorf("reserve-in: %w", err)
	}
	reserveOut, err := ledger.ParseAmount(cfg.ReserveOut)
	if err != nil {
		return fmt.Errorf("reserve-out: %w", err)
	}
	amountIn, err := ledger.ParseAmount(cfg.AmountIn)
	if err != nil {
		return fmt.Errorf("amount-in: %w", err)
	}

	out, fee, err := ledger.QuoteSwap(reserveIn, reserveOut, amountIn, cfg.FeeBps)
	if err != nil {
		return err
	}
	logger.Debug("quote", zap.String("amount_out", ledger.FormatAmount(out)), zap.String("fee", ledger.FormatAmount(fee)))

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(quoteOutput{
		ReserveIn:  ledger.FormatAmount(reserveIn),
		ReserveOut: ledger.FormatAmount(reserveOut),
		AmountIn:   ledger.FormatAmount(amountIn),
		FeeBps:     cfg.FeeBps,
		AmountOut:  ledger.FormatAmount(out),
		Fee:        ledger.FormatAmount(fee),
	})
}
