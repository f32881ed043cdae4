package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cardanoScope/internal/ledger"
	"cardanoScope/internal/metrics"
	"cardanoScope/internal/model"
	"cardanoScope/internal/normalize"
	"cardanoScope/internal/storage"
)

// RunConfig holds runtime settings for the normalization pipeline.
type RunConfig struct {
	BatchSize    int
	Workers      int
	LookupChunk  int
	Selectors    []ledger.AssetSelector
	MaxRetries   int
	RetryBackoff time.Duration
}

// Registry opens a transaction-bound asset lookup. Implemented by the
// postgres and gorm stores.
type Registry interface {
	WithLookup(ctx context.Context, fn func(normalize.AssetLookup) error) error
}

// ErrorSink receives records that could not be normalized.
type ErrorSink interface {
	PutDecodeError(record model.DecodeError) error
}

// Stats summarizes a run.
type Stats struct {
	Total      int
	Normalized int
	Skipped    int
	Failed     int
	LastSlot   uint64
}

// Runner reads output records, normalizes them and writes them to a sink.
type Runner struct {
	cfg      RunConfig
	registry Registry
	sink     storage.Sink
	state    StateStore
	errors   ErrorSink
	metrics  *metrics.Metrics
	logger   *zap.Logger
	ids      *IdentityCache
	now      func() time.Time
}

// NewRunner builds a Runner. registry, state, errSink and m may be nil.
func NewRunner(cfg RunConfig, registry Registry, sink storage.Sink, state StateStore, errSink ErrorSink, m *metrics.Metrics, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		cfg:      cfg,
		registry: registry,
		sink:     sink,
		state:    state,
		errors:   errSink,
		metrics:  m,
		logger:   logger,
		ids:      NewIdentityCache(),
		now:      time.Now,
	}
}

// Run processes the JSONL file at path.
func (r *Runner) Run(ctx context.Context, path string) (Stats, error) {
	file, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return r.RunReader(ctx, file)
}

// RunReader processes JSONL output records from in. Records at or below the
// checkpointed slot are skipped. A batch is only cut between slots so a
// checkpoint never splits the outputs of one slot.
func (r *Runner) RunReader(ctx context.Context, in io.Reader) (Stats, error) {
	var stats Stats
	if r.sink == nil {
		return stats, fmt.Errorf("sink is nil")
	}
	if r.cfg.BatchSize <= 0 {
		return stats, fmt.Errorf("batch size must be greater than zero")
	}
	if r.cfg.LookupChunk <= 0 {
		return stats, fmt.Errorf("lookup chunk must be greater than zero")
	}

	var (
		checkpoint    uint64
		hasCheckpoint bool
	)
	if r.state != nil {
		slot, ok, err := r.state.Load(ctx)
		if err != nil {
			return stats, fmt.Errorf("load checkpoint: %w", err)
		}
		checkpoint, hasCheckpoint = slot, ok
		if ok {
			stats.LastSlot = slot
			r.logger.Info("resume from checkpoint", zap.Uint64("last_processed_slot", slot))
		}
	}

	scanner := bufio.NewScanner(in)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	batch := make([]model.OutputRecord, 0, r.cfg.BatchSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var record model.OutputRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			r.metrics.RecordOutput("unknown", metrics.OutcomeFailed)
			r.reportDecodeError(model.DecodeError{Error: err.Error()})
			continue
		}
		if hasCheckpoint && record.Slot <= checkpoint {
			stats.Skipped++
			r.metrics.RecordOutput(eraLabel(record.Era), metrics.OutcomeSkipped)
			continue
		}

		if len(batch) >= r.cfg.BatchSize && record.Slot != batch[len(batch)-1].Slot {
			if err := r.processBatch(ctx, batch, &stats); err != nil {
				return stats, err
			}
			batch = batch[:0]
		}
		batch = append(batch, record)
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan input: %w", err)
	}
	if len(batch) > 0 {
		if err := r.processBatch(ctx, batch, &stats); err != nil {
			return stats, err
		}
	}

	r.logger.Info("normalize complete",
		zap.Int("total", stats.Total),
		zap.Int("normalized", stats.Normalized),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
		zap.Uint64("last_slot", stats.LastSlot),
	)
	return stats, nil
}

func (r *Runner) processBatch(ctx context.Context, batch []model.OutputRecord, stats *Stats) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ingestedAt := r.now()
	results := make([]normalized, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.cfg.Workers, 1))
	for i := range batch {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := normalizeRecord(batch[i], r.cfg.Selectors, ingestedAt)
			if err != nil {
				r.metrics.RecordDatum(metrics.DatumInvalid)
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	outputs := make([]model.NormalizedOutput, 0, len(batch))
	var pairs []ledger.AssetPair
	for i, res := range results {
		record := batch[i]
		if res.err != nil {
			stats.Failed++
			r.metrics.RecordOutput(eraLabel(record.Era), metrics.OutcomeFailed)
			r.logger.Debug("skip output", zap.String("output", record.ID()), zap.Error(res.err))
			r.reportDecodeError(model.DecodeErrorFromRecord(record, res.err))
			continue
		}
		r.metrics.RecordDatum(res.datum)
		outputs = append(outputs, res.output)
		pairs = append(pairs, res.pairs...)
	}

	ids, err := r.resolveIdentities(ctx, normalize.DistinctPairs(pairs))
	if err != nil {
		return err
	}
	for i := range outputs {
		for j := range outputs[i].Assets {
			if id, ok := ids[outputs[i].Assets[j].Key()]; ok {
				outputs[i].Assets[j].RegistryID = &id
			}
		}
	}

	err = r.sink.PutOutputBatch(ctx, outputs)
	r.metrics.RecordSinkWrite(len(outputs), err)
	if err != nil {
		return fmt.Errorf("store outputs: %w", err)
	}
	for _, out := range outputs {
		r.metrics.RecordOutput(out.Era, metrics.OutcomeNormalized)
	}
	stats.Normalized += len(outputs)

	lastSlot := batch[len(batch)-1].Slot
	for _, record := range batch {
		lastSlot = max(lastSlot, record.Slot)
	}
	if r.state != nil {
		if err := r.state.Save(ctx, lastSlot); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
	}
	stats.LastSlot = lastSlot
	r.metrics.SetLastProcessedSlot(lastSlot)

	r.logger.Info("batch complete",
		zap.Int("records", len(batch)),
		zap.Int("outputs", len(outputs)),
		zap.Int("registered_assets", len(ids)),
		zap.Uint64("last_slot", lastSlot),
	)
	return nil
}

// resolveIdentities looks up registry ids for pairs not cached yet, one
// transaction per chunk. A failed chunk is retried as a whole.
func (r *Runner) resolveIdentities(ctx context.Context, pairs []ledger.AssetPair) (map[string]int64, error) {
	ids := make(map[string]int64, len(pairs))
	if r.registry == nil || len(pairs) == 0 {
		return ids, nil
	}
	misses := r.ids.Misses(pairs, ids)
	chunks, err := SplitChunks(misses, r.cfg.LookupChunk)
	if err != nil {
		return nil, err
	}
	for _, chunk := range chunks {
		var rows []model.NativeAsset
		err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
			start := time.Now()
			err := r.registry.WithLookup(ctx, func(lookup normalize.AssetLookup) error {
				var err error
				rows, err = normalize.AssetsFromPairs(ctx, lookup, chunk)
				return err
			})
			r.metrics.RecordRegistryLookup(len(chunk), time.Since(start), err)
			if err != nil {
				r.logger.Warn("registry lookup failed", zap.Int("pairs", len(chunk)), zap.Error(err))
			}
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("resolve asset identities: %w", err)
		}
		for _, row := range rows {
			ids[row.String()] = row.ID
			r.ids.Set(row.String(), row.ID)
		}
	}
	return ids, nil
}

func (r *Runner) reportDecodeError(record model.DecodeError) {
	if r.errors == nil {
		return
	}
	if err := r.errors.PutDecodeError(record); err != nil {
		r.logger.Warn("write decode error failed", zap.Error(err))
	}
}

func eraLabel(name string) string {
	era, err := ledger.ParseEra(name)
	if err != nil {
		return "unknown"
	}
	return era.String()
}
