package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "PAYFLOW"

// RunConfig holds settings for executing a scenario against the ledger.
type RunConfig struct {
	Scenario      string
	Out           string
	Events        string
	Results       string
	ChainID       uint64
	LedgerAddress string
	Reset         bool
	LogLevel      string
}

// Load merges config file, environment variables, and flags into RunConfig.
func Load(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"out":       "./data/logs.jsonl",
		"chain-id":  uint64(31337),
		"log-level": "info",
	})
	if err != nil {
		return RunConfig{}, err
	}

	return RunConfig{
		Scenario:      v.GetString("scenario"),
		Out:           v.GetString("out"),
		Events:        v.GetString("events"),
		Results:       v.GetString("results"),
		ChainID:       v.GetUint64("chain-id"),
		LedgerAddress: v.GetString("ledger-address"),
		Reset:         v.GetBool("reset"),
		LogLevel:      v.GetString("log-level"),
	}, nil
}

// newViper layers defaults, the config file, PAYFLOW_* environment
// variables and flags, lowest precedence first. Without an explicit file a
// missing ./config.* is not an error.
func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]any) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return v, nil
	}

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}
