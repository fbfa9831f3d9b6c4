package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payflow/internal/model"
)

// Set PAYFLOW_TEST_PG_DSN to run against a disposable database.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("PAYFLOW_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("PAYFLOW_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	s, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestNewStoreRequiresDSN(t *testing.T) {
	_, err := NewStore(context.Background(), "")
	require.Error(t, err)
}

func TestPostgresUpsertAndState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertPools(ctx, []model.PoolRow{{
		ChainID: 999, PoolID: 1, TokenA: "0xa", TokenB: "0xb", ReserveA: "1000", ReserveB: "1000",
		TotalShares: "1000", FeesA: "0", FeesB: "0", CreatedSeq: 1, LastSeq: 1,
	}}))
	require.NoError(t, s.UpsertPositions(ctx, []model.PositionRow{
		{ChainID: 999, PoolID: 1, Owner: "0xa", Shares: "1000", LastSeq: 1},
	}))

	require.NoError(t, s.SaveState(ctx, "pg-test", 7))
	seq, ok, err := s.LoadState(ctx, "pg-test")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), seq)
}
