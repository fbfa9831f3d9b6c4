package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"payflow/internal/model"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// MirrorConfig holds configuration for replaying logs into a store.
type MirrorConfig struct {
	Input         string
	Errors        string
	Address       string
	Window        time.Duration
	Store         string
	PGDSN         string
	SQLitePath    string
	BatchSize     uint64
	StateFile     string
	RecomputeFrom uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	RPCURL        string
	Tokens        []model.TokenMeta
	LogLevel      string
}

// LoadMirror merges config file, environment variables, and flags into
// MirrorConfig. Static token metadata can only come from the config file.
func LoadMirror(cfgFile string, flags *pflag.FlagSet) (MirrorConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"window":        5 * time.Minute,
		"store":         StoreSQLite,
		"sqlite-path":   "./data/mirror.db",
		"batch-size":    uint64(1000),
		"max-retries":   5,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return MirrorConfig{}, err
	}

	cfg := MirrorConfig{
		Input:         v.GetString("in"),
		Errors:        v.GetString("errors"),
		Address:       v.GetString("address"),
		Window:        v.GetDuration("window"),
		Store:         v.GetString("store"),
		PGDSN:         v.GetString("pg-dsn"),
		SQLitePath:    v.GetString("sqlite-path"),
		BatchSize:     v.GetUint64("batch-size"),
		StateFile:     v.GetString("state-file"),
		RecomputeFrom: v.GetUint64("recompute-from"),
		MaxRetries:    v.GetInt("max-retries"),
		RetryBackoff:  v.GetDuration("retry-backoff"),
		RPCURL:        v.GetString("rpc"),
		LogLevel:      v.GetString("log-level"),
	}
	if err := v.UnmarshalKey("tokens", &cfg.Tokens); err != nil {
		return MirrorConfig{}, fmt.Errorf("parse tokens: %w", err)
	}
	return cfg, nil
}

// Validate checks the settings the mirror cannot run without.
func (c MirrorConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("input path is required")
	}
	if c.Window < time.Second {
		return fmt.Errorf("window must be at least 1s")
	}
	switch c.Store {
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg dsn is required")
		}
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	return nil
}

// WindowSeconds returns the window size truncated to whole seconds.
func (c MirrorConfig) WindowSeconds() uint64 {
	return uint64(c.Window / time.Second)
}
