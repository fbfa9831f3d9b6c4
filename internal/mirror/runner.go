package mirror

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"payflow/internal/events"
	"payflow/internal/model"
	"payflow/internal/storage"
	"payflow/internal/tokenmeta"
)

// Store receives mirrored rows. Upserts must be idempotent.
type Store interface {
	UpsertStreams(ctx context.Context, rows []model.StreamRow) error
	UpsertPools(ctx context.Context, rows []model.PoolRow) error
	UpsertPositions(ctx context.Context, rows []model.PositionRow) error
	UpsertWindowMetrics(ctx context.Context, metrics []model.PoolWindowMetrics) error
}

// TokenResolver supplies decimals for display formatting.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (model.TokenMeta, error)
}

// RunConfig controls a mirror pass.
type RunConfig struct {
	InputPath     string
	ErrorsPath    string
	Address       string
	WindowSeconds uint64
	BatchSize     uint64
	MaxRetries    int
	RetryBackoff  time.Duration
	// RecomputeFrom rewrites everything from this seq on, ignoring the checkpoint.
	RecomputeFrom uint64
	StateStore    StateStore
}

// Stats summarizes a mirror pass.
type Stats struct {
	Total      int
	Decoded    int
	Skipped    int
	Failed     int
	LastSeq    uint64
	Streams    int
	Pools      int
	Positions  int
	Windows    int
	Checkpoint uint64
}

// Runner replays a log file into a projection and writes changed rows.
type Runner struct {
	cfg      RunConfig
	store    Store
	tokens   TokenResolver
	logger   *zap.Logger
	decoder  *events.Decoder
	proj     *Projection
	windows  *Windows
	retry    retryPolicy
	decimals map[string]*uint8
}

// NewRunner builds a Runner. tokens may be nil, in which case display
// fields are left empty.
func NewRunner(cfg RunConfig, store Store, tokens TokenResolver, logger *zap.Logger) (*Runner, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		return nil, fmt.Errorf("store is nil")
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 1000
	}
	windows, err := NewWindows(cfg.WindowSeconds)
	if err != nil {
		return nil, err
	}
	decoder, err := events.NewDecoder()
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		store:    store,
		tokens:   tokens,
		logger:   logger,
		decoder:  decoder,
		proj:     NewProjection(),
		windows:  windows,
		retry:    newRetryPolicy(cfg.MaxRetries, cfg.RetryBackoff, logger),
		decimals: make(map[string]*uint8),
	}, nil
}

// Projection exposes the replayed state.
func (r *Runner) Projection() *Projection {
	return r.proj
}

// Run replays the whole input and writes rows changed after the checkpoint.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	var stats Stats

	checkpoint, err := r.loadCheckpoint(ctx)
	if err != nil {
		return stats, err
	}
	stats.Checkpoint = checkpoint

	if err := r.replay(ctx, &stats); err != nil {
		return stats, err
	}
	stats.LastSeq = r.proj.LastSeq()

	if stats.LastSeq <= checkpoint {
		r.logger.Info("nothing to mirror", zap.Uint64("checkpoint", checkpoint), zap.Uint64("last_seq", stats.LastSeq))
		return stats, nil
	}

	ranges, err := SplitRange(checkpoint+1, stats.LastSeq, r.cfg.BatchSize)
	if err != nil {
		return stats, err
	}
	for _, seqRange := range ranges {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		if err := r.flush(ctx, seqRange, &stats); err != nil {
			return stats, err
		}
		if r.cfg.StateStore != nil {
			if err := r.cfg.StateStore.Save(ctx, seqRange.To); err != nil {
				return stats, fmt.Errorf("save checkpoint: %w", err)
			}
		}
		stats.Checkpoint = seqRange.To
	}

	r.logger.Info("mirror complete",
		zap.Int("total", stats.Total),
		zap.Int("decoded", stats.Decoded),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Uint64("last_seq", stats.LastSeq),
	)
	return stats, nil
}

func (r *Runner) loadCheckpoint(ctx context.Context) (uint64, error) {
	if r.cfg.RecomputeFrom > 0 {
		return r.cfg.RecomputeFrom - 1, nil
	}
	if r.cfg.StateStore == nil {
		return 0, nil
	}
	last, ok, err := r.cfg.StateStore.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load checkpoint: %w", err)
	}
	if !ok {
		return 0, nil
	}
	r.logger.Info("resume from checkpoint", zap.Uint64("last_seq", last))
	return last, nil
}

func (r *Runner) replay(ctx context.Context, stats *Stats) error {
	file, err := os.Open(r.cfg.InputPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	var errWriter *storage.JSONLWriter
	if r.cfg.ErrorsPath != "" {
		errWriter, err = storage.NewJSONLWriter(r.cfg.ErrorsPath, false)
		if err != nil {
			return fmt.Errorf("open errors output: %w", err)
		}
		defer errWriter.Close()
	}

	fail := func(rec model.LogRecord, cause error) error {
		stats.Failed++
		r.logger.Warn("skip record", zap.Uint64("seq", rec.Seq()), zap.String("topic0", rec.Topic0()), zap.Error(cause))
		return errWriter.Write(model.DecodeError{
			ChainID: rec.ChainID,
			Seq:     rec.Seq(),
			TxHash:  rec.TxHash,
			Address: rec.Address,
			Topic0:  rec.Topic0(),
			Error:   cause.Error(),
		})
	}

	return storage.ScanLogs(file, func(line int, rec model.LogRecord, scanErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Total++
		if scanErr != nil {
			return fail(rec, fmt.Errorf("line %d: %w", line, scanErr))
		}
		if r.cfg.Address != "" && !strings.EqualFold(rec.Address, r.cfg.Address) {
			stats.Skipped++
			return nil
		}
		if rec.Seq() <= r.proj.LastSeq() {
			stats.Skipped++
			r.logger.Debug("duplicate record", zap.Uint64("seq", rec.Seq()))
			return nil
		}
		if !r.decoder.CanDecode(rec.Topic0()) {
			return fail(rec, fmt.Errorf("unsupported topic0"))
		}

		ev, err := r.decoder.Decode(rec)
		if err != nil {
			return fail(rec, err)
		}
		if err := r.proj.Apply(ev); err != nil {
			return fail(rec, err)
		}
		if swap, ok := ev.Decoded.(model.SwappedData); ok {
			pool, _ := r.proj.Pool(swap.PoolID)
			if err := r.windows.Add(pool, ev.Seq, ev.Timestamp, swap); err != nil {
				return fail(rec, err)
			}
		}
		stats.Decoded++
		return nil
	})
}

func (r *Runner) flush(ctx context.Context, seqRange SeqRange, stats *Stats) error {
	changed := r.proj.ChangedIn(seqRange)
	windows := r.windows.ChangedIn(seqRange)
	if changed.Len() == 0 && len(windows) == 0 {
		return nil
	}

	metrics := make([]model.PoolWindowMetrics, 0, len(windows))
	for _, acc := range windows {
		metrics = append(metrics, r.buildMetrics(ctx, acc))
	}

	fields := []zap.Field{zap.Uint64("from", seqRange.From), zap.Uint64("to", seqRange.To)}
	err := r.retry.do(ctx, fields, func(ctx context.Context) error {
		return r.write(ctx, changed, metrics)
	})
	if err != nil {
		return fmt.Errorf("write seq %d-%d: %w", seqRange.From, seqRange.To, err)
	}

	stats.Streams += len(changed.Streams)
	stats.Pools += len(changed.Pools)
	stats.Positions += len(changed.Positions)
	stats.Windows += len(metrics)
	r.logger.Info("batch complete",
		zap.Uint64("from", seqRange.From),
		zap.Uint64("to", seqRange.To),
		zap.Int("rows", changed.Len()),
		zap.Int("windows", len(metrics)),
	)
	return nil
}

func (r *Runner) write(ctx context.Context, changed Changed, metrics []model.PoolWindowMetrics) error {
	if len(changed.Streams) > 0 {
		if err := r.store.UpsertStreams(ctx, changed.Streams); err != nil {
			return err
		}
	}
	if len(changed.Pools) > 0 {
		if err := r.store.UpsertPools(ctx, changed.Pools); err != nil {
			return err
		}
	}
	if len(changed.Positions) > 0 {
		if err := r.store.UpsertPositions(ctx, changed.Positions); err != nil {
			return err
		}
	}
	if len(metrics) > 0 {
		if err := r.store.UpsertWindowMetrics(ctx, metrics); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) buildMetrics(ctx context.Context, acc *Accumulator) model.PoolWindowMetrics {
	m := model.PoolWindowMetrics{
		ChainID:        acc.ChainID,
		PoolID:         acc.PoolID,
		WindowSizeSecs: int64(r.windows.Size()),
		WindowStart:    time.Unix(int64(acc.WindowStart), 0).UTC(),
		WindowEnd:      time.Unix(int64(acc.WindowEnd), 0).UTC(),
		SwapCount:      acc.SwapCount,
		VolumeA:        acc.VolumeA.String(),
		VolumeB:        acc.VolumeB.String(),
		FeeA:           acc.FeeA.String(),
		FeeB:           acc.FeeB.String(),
		LastSeq:        acc.LastSeq,
	}
	if dec := r.tokenDecimals(ctx, acc.TokenA); dec != nil {
		m.VolumeADisplay = display(tokenmeta.FormatAmount(acc.VolumeA, *dec))
		m.FeeADisplay = display(tokenmeta.FormatAmount(acc.FeeA, *dec))
	}
	if dec := r.tokenDecimals(ctx, acc.TokenB); dec != nil {
		m.VolumeBDisplay = display(tokenmeta.FormatAmount(acc.VolumeB, *dec))
		m.FeeBDisplay = display(tokenmeta.FormatAmount(acc.FeeB, *dec))
	}
	return m
}

// tokenDecimals returns nil when metadata is unavailable; misses are
// remembered so a token is looked up once per run.
func (r *Runner) tokenDecimals(ctx context.Context, token string) *uint8 {
	if r.tokens == nil {
		return nil
	}
	key := strings.ToLower(token)
	if dec, ok := r.decimals[key]; ok {
		return dec
	}
	meta, err := r.tokens.Resolve(ctx, token)
	if err != nil {
		r.logger.Warn("token metadata unavailable", zap.String("token", token), zap.Error(err))
		r.decimals[key] = nil
		return nil
	}
	dec := meta.Decimals
	r.decimals[key] = &dec
	return &dec
}

func display(s string) *string {
	return &s
}
