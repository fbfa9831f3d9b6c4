package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mirrorFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("mirror", pflag.ContinueOnError)
	fs.String("in", "", "")
	fs.String("store", "sqlite", "")
	fs.Duration("window", 5*time.Minute, "")
	fs.Uint64("batch-size", 1000, "")
	fs.Uint64("recompute-from", 0, "")
	fs.String("log-level", "info", "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadMirrorLayers(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "payflow.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
in: ./from-file.jsonl
window: 1h
batch-size: 50
tokens:
  - address: "0x00000000000000000000000000000000000000a1"
    decimals: 6
    symbol: USDC
`), 0o644))

	t.Setenv("PAYFLOW_BATCH_SIZE", "75")
	t.Setenv("PAYFLOW_PG_DSN", "postgres://mirror@localhost/payflow")

	cfg, err := LoadMirror(cfgPath, mirrorFlags(t, "--recompute-from", "12"))
	require.NoError(t, err)

	assert.Equal(t, "./from-file.jsonl", cfg.Input)
	assert.Equal(t, time.Hour, cfg.Window)
	assert.Equal(t, uint64(3600), cfg.WindowSeconds())
	assert.Equal(t, uint64(75), cfg.BatchSize)
	assert.Equal(t, uint64(12), cfg.RecomputeFrom)
	assert.Equal(t, "postgres://mirror@localhost/payflow", cfg.PGDSN)
	assert.Equal(t, StoreSQLite, cfg.Store)
	assert.Equal(t, "./data/mirror.db", cfg.SQLitePath)
	assert.Equal(t, 5, cfg.MaxRetries)
	require.Len(t, cfg.Tokens, 1)
	assert.Equal(t, uint8(6), cfg.Tokens[0].Decimals)
	assert.Equal(t, "USDC", cfg.Tokens[0].Symbol)
	require.NoError(t, cfg.Validate())

	cfg, err = LoadMirror(cfgPath, mirrorFlags(t, "--in", "flag.jsonl", "--store", "postgres"))
	require.NoError(t, err)
	assert.Equal(t, "flag.jsonl", cfg.Input)
	assert.Equal(t, StorePostgres, cfg.Store)
	require.NoError(t, cfg.Validate())
}

func TestMirrorConfigValidate(t *testing.T) {
	base := MirrorConfig{Input: "in.jsonl", Window: time.Minute, Store: StoreSQLite, SQLitePath: "m.db"}
	require.NoError(t, base.Validate())

	noInput := base
	noInput.Input = ""
	require.Error(t, noInput.Validate())

	tiny := base
	tiny.Window = 500 * time.Millisecond
	require.Error(t, tiny.Validate())

	pg := base
	pg.Store = StorePostgres
	require.Error(t, pg.Validate())

	other := base
	other.Store = "mongo"
	require.Error(t, other.Validate())
}

func TestLoadRunDefaults(t *testing.T) {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	fs.String("scenario", "", "")
	fs.Bool("reset", false, "")
	require.NoError(t, fs.Parse([]string{"--scenario", "demo.yaml", "--reset"}))

	cfg, err := Load("", fs)
	require.NoError(t, err)
	assert.Equal(t, "demo.yaml", cfg.Scenario)
	assert.True(t, cfg.Reset)
	assert.Equal(t, "./data/logs.jsonl", cfg.Out)
	assert.Equal(t, uint64(31337), cfg.ChainID)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadQuoteFromEnv(t *testing.T) {
	t.Setenv("PAYFLOW_AMOUNT_IN", "100")
	t.Setenv("PAYFLOW_FEE_BPS", "0")

	cfg, err := LoadQuote("", nil)
	require.NoError(t, err)
	assert.Equal(t, "100", cfg.AmountIn)
	assert.Equal(t, uint64(0), cfg.FeeBps)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := LoadQuote(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	require.Error(t, err)
}
