package config

import (
	"github.com/spf13/pflag"
)

// QuoteConfig holds inputs for an offline swap quote.
type QuoteConfig struct {
	ReserveIn  string
	ReserveOut string
	AmountIn   string
	FeeBps     uint64
	LogLevel   string
}

func LoadQuote(cfgFile string, flags *pflag.FlagSet) (QuoteConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"fee-bps":   uint64(30),
		"log-level": "info",
	})
	if err != nil {
		return QuoteConfig{}, err
	}
	return QuoteConfig{
		ReserveIn:  v.GetString("reserve-in"),
		ReserveOut: v.GetString("reserve-out"),
		AmountIn:   v.GetString("amount-in"),
		FeeBps:     v.GetUint64("fee-bps"),
		LogLevel:   v.GetString("log-level"),
	}, nil
}
