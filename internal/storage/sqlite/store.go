package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"payflow/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS streams (
	chain_id        INTEGER NOT NULL,
	stream_id       INTEGER NOT NULL,
	sender          TEXT    NOT NULL,
	recipient       TEXT    NOT NULL,
	token           TEXT    NOT NULL,
	deposit         TEXT    NOT NULL,
	rate_per_second TEXT    NOT NULL,
	start_time      INTEGER NOT NULL,
	duration        INTEGER NOT NULL,
	withdrawn       TEXT    NOT NULL,
	status          TEXT    NOT NULL,
	created_seq     INTEGER NOT NULL,
	last_seq        INTEGER NOT NULL,
	updated_at      TEXT    NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (chain_id, stream_id)
);

CREATE TABLE IF NOT EXISTS pools (
	chain_id     INTEGER NOT NULL,
	pool_id      INTEGER NOT NULL,
	token_a      TEXT    NOT NULL,
	token_b      TEXT    NOT NULL,
	reserve_a    TEXT    NOT NULL,
	reserve_b    TEXT    NOT NULL,
	total_shares TEXT    NOT NULL,
	fees_a       TEXT    NOT NULL,
	fees_b       TEXT    NOT NULL,
	paused       INTEGER NOT NULL,
	created_seq  INTEGER NOT NULL,
	last_seq     INTEGER NOT NULL,
	updated_at   TEXT    NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (chain_id, pool_id)
);

CREATE TABLE IF NOT EXISTS lp_positions (
	chain_id   INTEGER NOT NULL,
	pool_id    INTEGER NOT NULL,
	owner      TEXT    NOT NULL,
	shares     TEXT    NOT NULL,
	last_seq   INTEGER NOT NULL,
	updated_at TEXT    NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (chain_id, pool_id, owner)
);

CREATE TABLE IF NOT EXISTS pool_window_metrics (
	chain_id            INTEGER NOT NULL,
	pool_id             INTEGER NOT NULL,
	window_size_seconds INTEGER NOT NULL,
	window_start_ts     INTEGER NOT NULL,
	window_end_ts       INTEGER NOT NULL,
	swap_count          INTEGER NOT NULL,
	volume_a            TEXT    NOT NULL,
	volume_b            TEXT    NOT NULL,
	fee_a               TEXT    NOT NULL,
	fee_b               TEXT    NOT NULL,
	volume_a_display    TEXT,
	volume_b_display    TEXT,
	fee_a_display       TEXT,
	fee_b_display       TEXT,
	last_seq            INTEGER NOT NULL,
	updated_at          TEXT    NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (chain_id, pool_id, window_size_seconds, window_start_ts)
);

CREATE TABLE IF NOT EXISTS mirror_state (
	name       TEXT    PRIMARY KEY,
	last_seq   INTEGER NOT NULL,
	updated_at TEXT    NOT NULL DEFAULT (datetime('now'))
);
`

// Store provides SQLite persistence for the ledger mirror. Amounts are kept
// as base-10 text.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database file at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() {
	if s.db != nil {
		s.db.Close()
	}
}

// EnsureSchema creates the mirror tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
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
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO streams (
				chain_id, stream_id, sender, recipient, token, deposit, rate_per_second,
				start_time, duration, withdrawn, status, created_seq, last_seq, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,datetime('now'))
			ON CONFLICT (chain_id, stream_id)
			DO UPDATE SET
				withdrawn = excluded.withdrawn,
				status = excluded.status,
				last_seq = excluded.last_seq,
				updated_at = datetime('now')
			WHERE streams.last_seq <= excluded.last_seq
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				int64(r.ChainID), int64(r.StreamID), r.Sender, r.Recipient, r.Token,
				r.Deposit, r.RatePerSecond, int64(r.StartTime), int64(r.Duration),
				r.Withdrawn, r.Status, int64(r.CreatedSeq), int64(r.LastSeq),
			); err != nil {
				return fmt.Errorf("upsert stream %d: %w", r.StreamID, err)
			}
		}
		return nil
	})
}

// UpsertPools inserts or updates pool rows.
func (s *Store) UpsertPools(ctx context.Context, rows []model.PoolRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pools (
				chain_id, pool_id, token_a, token_b, reserve_a, reserve_b, total_shares,
				fees_a, fees_b, paused, created_seq, last_seq, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,datetime('now'))
			ON CONFLICT (chain_id, pool_id)
			DO UPDATE SET
				reserve_a = excluded.reserve_a,
				reserve_b = excluded.reserve_b,
				total_shares = excluded.total_shares,
				fees_a = excluded.fees_a,
				fees_b = excluded.fees_b,
				paused = excluded.paused,
				last_seq = excluded.last_seq,
				updated_at = datetime('now')
			WHERE pools.last_seq <= excluded.last_seq
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				int64(r.ChainID), int64(r.PoolID), r.TokenA, r.TokenB,
				r.ReserveA, r.ReserveB, r.TotalShares, r.FeesA, r.FeesB,
				r.Paused, int64(r.CreatedSeq), int64(r.LastSeq),
			); err != nil {
				return fmt.Errorf("upsert pool %d: %w", r.PoolID, err)
			}
		}
		return nil
	})
}

// UpsertPositions inserts or updates LP positions.
func (s *Store) UpsertPositions(ctx context.Context, rows []model.PositionRow) error {
	if len(rows) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO lp_positions (chain_id, pool_id, owner, shares, last_seq, updated_at)
			VALUES (?,?,?,?,?,datetime('now'))
			ON CONFLICT (chain_id, pool_id, owner)
			DO UPDATE SET
				shares = excluded.shares,
				last_seq = excluded.last_seq,
				updated_at = datetime('now')
			WHERE lp_positions.last_seq <= excluded.last_seq
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				int64(r.ChainID), int64(r.PoolID), r.Owner, r.Shares, int64(r.LastSeq),
			); err != nil {
				return fmt.Errorf("upsert position %d/%s: %w", r.PoolID, r.Owner, err)
			}
		}
		return nil
	})
}

// UpsertWindowMetrics inserts or updates window metrics.
func (s *Store) UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error {
	if len(metrics) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO pool_window_metrics (
				chain_id, pool_id, window_size_seconds, window_start_ts, window_end_ts,
				swap_count, volume_a, volume_b, fee_a, fee_b,
				volume_a_display, volume_b_display, fee_a_display, fee_b_display,
				last_seq, updated_at
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,datetime('now'))
			ON CONFLICT (chain_id, pool_id, window_size_seconds, window_start_ts)
			DO UPDATE SET
				window_end_ts = excluded.window_end_ts,
				swap_count = excluded.swap_count,
				volume_a = excluded.volume_a,
				volume_b = excluded.volume_b,
				fee_a = excluded.fee_a,
				fee_b = excluded.fee_b,
				volume_a_display = excluded.volume_a_display,
				volume_b_display = excluded.volume_b_display,
				fee_a_display = excluded.fee_a_display,
				fee_b_display = excluded.fee_b_display,
				last_seq = excluded.last_seq,
				updated_at = datetime('now')
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, m := range metrics {
			if _, err := stmt.ExecContext(ctx,
				int64(m.ChainID), int64(m.PoolID), m.WindowSizeSecs,
				m.WindowStart.Unix(), m.WindowEnd.Unix(), int64(m.SwapCount),
				m.VolumeA, m.VolumeB, m.FeeA, m.FeeB,
				m.VolumeADisplay, m.VolumeBDisplay, m.FeeADisplay, m.FeeBDisplay,
				int64(m.LastSeq),
			); err != nil {
				return fmt.Errorf("upsert window %d/%d: %w", m.PoolID, m.WindowStart.Unix(), err)
			}
		}
		return nil
	})
}

// LoadState returns the last mirrored sequence number for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var seq int64
	err := s.db.QueryRowContext(ctx, `SELECT last_seq FROM mirror_state WHERE name = ?`, name).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return uint64(seq), true, nil
}

// SaveState upserts the last mirrored sequence number for a name.
func (s *Store) SaveState(ctx context.Context, name string, seq uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO mirror_state (name, last_seq, updated_at)
		VALUES (?, ?, datetime('now'))
		ON CONFLICT (name) DO UPDATE
		SET last_seq = excluded.last_seq, updated_at = datetime('now')
	`, name, int64(seq))
	return err
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
