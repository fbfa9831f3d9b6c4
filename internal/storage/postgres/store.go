package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"payflow/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS streams (
	chain_id        BIGINT        NOT NULL,
	stream_id       BIGINT        NOT NULL,
	sender          TEXT          NOT NULL,
	recipient       TEXT          NOT NULL,
	token           TEXT          NOT NULL,
	deposit         NUMERIC(78,0) NOT NULL,
	rate_per_second NUMERIC(78,0) NOT NULL,
	start_time      BIGINT        NOT NULL,
	duration        BIGINT        NOT NULL,
	withdrawn       NUMERIC(78,0) NOT NULL,
	status          TEXT          NOT NULL,
	created_seq     BIGINT        NOT NULL,
	last_seq        BIGINT        NOT NULL,
	updated_at      TIMESTAMPTZ   NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, stream_id)
);

CREATE TABLE IF NOT EXISTS pools (
	chain_id     BIGINT        NOT NULL,
	pool_id      BIGINT        NOT NULL,
	token_a      TEXT          NOT NULL,
	token_b      TEXT          NOT NULL,
	reserve_a    NUMERIC(78,0) NOT NULL,
	reserve_b    NUMERIC(78,0) NOT NULL,
	total_shares NUMERIC(78,0) NOT NULL,
	fees_a       NUMERIC(78,0) NOT NULL,
	fees_b       NUMERIC(78,0) NOT NULL,
	paused       BOOLEAN       NOT NULL,
	created_seq  BIGINT        NOT NULL,
	last_seq     BIGINT        NOT NULL,
	updated_at   TIMESTAMPTZ   NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_id)
);

CREATE TABLE IF NOT EXISTS lp_positions (
	chain_id   BIGINT        NOT NULL,
	pool_id    BIGINT        NOT NULL,
	owner      TEXT          NOT NULL,
	shares     NUMERIC(78,0) NOT NULL,
	last_seq   BIGINT        NOT NULL,
	updated_at TIMESTAMPTZ   NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_id, owner)
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	chain_id            BIGINT        NOT NULL,
	pool_id             BIGINT        NOT NULL,
	window_size_seconds BIGINT        NOT NULL,
	window_start_ts     TIMESTAMPTZ   NOT NULL,
	window_end_ts       TIMESTAMPTZ   NOT NULL,
	swap_count          BIGINT        NOT NULL,
	volume_a            NUMERIC(78,0) NOT NULL,
	volume_b            NUMERIC(78,0) NOT NULL,
	fee_a               NUMERIC(78,0) NOT NULL,
	fee_b               NUMERIC(78,0) NOT NULL,
	volume_a_display    TEXT,
	volume_b_display    TEXT,
	fee_a_display       TEXT,
	fee_b_display       TEXT,
	last_seq            BIGINT        NOT NULL,
	updated_at          TIMESTAMPTZ   NOT NULL DEFAULT now(),
	PRIMARY KEY (chain_id, pool_id, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS mirror_state (
	name       TEXT        PRIMARY KEY,
	last_seq   BIGINT      NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Store provides Postgres persistence for the ledger mirror.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the mirror tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertStreams inserts or updates stream rows. Rows older than the stored
// last_seq are ignored.
func (s *Store) UpsertStreams(ctx context.Context, rows []model.StreamRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO streams (
				chain_id, stream_id, sender, recipient, token, deposit, rate_per_second,
				start_time, duration, withdrawn, status, created_seq, last_seq, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
			ON CONFLICT (chain_id, stream_id)
			DO UPDATE SET
				withdrawn = EXCLUDED.withdrawn,
				status = EXCLUDED.status,
				last_seq = EXCLUDED.last_seq,
				updated_at = now()
			WHERE streams.last_seq <= EXCLUDED.last_seq
		`,
			int64(r.ChainID),
			int64(r.StreamID),
			r.Sender,
			r.Recipient,
			r.Token,
			r.Deposit,
			r.RatePerSecond,
			int64(r.StartTime),
			int64(r.Duration),
			r.Withdrawn,
			r.Status,
			int64(r.CreatedSeq),
			int64(r.LastSeq),
		)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// UpsertPools inserts or updates pool rows.
func (s *Store) UpsertPools(ctx context.Context, rows []model.PoolRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO pools (
				chain_id, pool_id, token_a, token_b, reserve_a, reserve_b, total_shares,
				fees_a, fees_b, paused, created_seq, last_seq, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,now())
			ON CONFLICT (chain_id, pool_id)
			DO UPDATE SET
				reserve_a = EXCLUDED.reserve_a,
				reserve_b = EXCLUDED.reserve_b,
				total_shares = EXCLUDED.total_shares,
				fees_a = EXCLUDED.fees_a,
				fees_b = EXCLUDED.fees_b,
				paused = EXCLUDED.paused,
				last_seq = EXCLUDED.last_seq,
				updated_at = now()
			WHERE pools.last_seq <= EXCLUDED.last_seq
		`,
			int64(r.ChainID),
			int64(r.PoolID),
			r.TokenA,
			r.TokenB,
			r.ReserveA,
			r.ReserveB,
			r.TotalShares,
			r.FeesA,
			r.FeesB,
			r.Paused,
			int64(r.CreatedSeq),
			int64(r.LastSeq),
		)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// UpsertPositions inserts or updates LP positions.
func (s *Store) UpsertPositions(ctx context.Context, rows []model.PositionRow) error {
	if len(rows) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO lp_positions (chain_id, pool_id, owner, shares, last_seq, updated_at)
			VALUES ($1,$2,$3,$4,$5,now())
			ON CONFLICT (chain_id, pool_id, owner)
			DO UPDATE SET
				shares = EXCLUDED.shares,
				last_seq = EXCLUDED.last_seq,
				updated_at = now()
			WHERE lp_positions.last_seq <= EXCLUDED.last_seq
		`,
			int64(r.ChainID),
			int64(r.PoolID),
			r.Owner,
			r.Shares,
			int64(r.LastSeq),
		)
	}
	return s.sendBatch(ctx, batch, len(rows))
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, m := range metrics {
		batch.Queue(`
			INSERT INTO pool_window_metrics (
				chain_id, pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume_a, volume_b, fee_a, fee_b,
				volume_a_display, volume_b_display, fee_a_display, fee_b_display,
				last_seq, updated_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,now())
			ON CONFLICT (chain_id, pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = EXCLUDED.window_end_ts,
				swap_count = EXCLUDED.swap_count,
				volume_a = EXCLUDED.volume_a,
				volume_b = EXCLUDED.volume_b,
				fee_a = EXCLUDED.fee_a,
				fee_b = EXCLUDED.fee_b,
				volume_a_display = EXCLUDED.volume_a_display,
				volume_b_display = EXCLUDED.volume_b_display,
				fee_a_display = EXCLUDED.fee_a_display,
				fee_b_display = EXCLUDED.fee_b_display,
				last_seq = EXCLUDED.last_seq,
				updated_at = now()
		`,
			int64(m.ChainID),
			int64(m.PoolID),
			m.WindowSizeSecs,
			m.WindowStart,
			m.WindowEnd,
			int64(m.SwapCount),
			m.VolumeA,
			m.VolumeB,
			m.FeeA,
			m.FeeB,
			m.VolumeADisplay,
			m.VolumeBDisplay,
			m.FeeADisplay,
			m.FeeBDisplay,
			int64(m.LastSeq),
		)
	}
	return s.sendBatch(ctx, batch, len(metrics))
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// LoadState returns the last mirrored sequence number for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	row := s.pool.QueryRow(ctx, `SELECT last_seq FROM mirror_state WHERE name=$1`, name)
	if err := row.Scan(&seq); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(seq), true, nil
}

// SaveState upserts the last mirrored sequence number for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO mirror_state (name, last_seq, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_seq = EXCLUDED.last_seq, updated_at = now()
	`, name, int64(seq))
	return err
}
