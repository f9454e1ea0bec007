package pipeline

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"suppliers/internal"
	"suppliers/internal/config"
	"suppliers/internal/connectors"
	"suppliers/internal/storage"
)

const (
	SinkTabular = "tabular"
	SinkFlat    = "flat"
	SinkXLSX    = "xlsx"

	maxLineBytes    = 16 * 1024 * 1024
	maxStoredRawLen = 2048
)

type ProcessingService struct {
	db      *storage.DB
	cfg     config.Config
	log     zerolog.Logger
	tabular connectors.TabularSink
	store   connectors.ObjectStore
	now     func() time.Time
}

type Option func(*ProcessingService)

func WithTabularSink(sink connectors.TabularSink) Option {
	return func(s *ProcessingService) { s.tabular = sink }
}

func WithObjectStore(store connectors.ObjectStore) Option {
	return func(s *ProcessingService) { s.store = store }
}

func WithClock(now func() time.Time) Option {
	return func(s *ProcessingService) { s.now = now }
}

func NewProcessingService(db *storage.DB, cfg config.Config, logger zerolog.Logger, opts ...Option) *ProcessingService {
	s := &ProcessingService{db: db, cfg: cfg, log: logger, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RunInput struct {
	Primary    string
	Auxiliary  string
	FlatOutput string
	XLSXOutput string
}

func InputFromConfig(cfg config.Config) RunInput {
	return RunInput{
		Primary:    cfg.PrimaryInput,
		Auxiliary:  cfg.AuxInput,
		FlatOutput: cfg.FlatOutput,
		XLSXOutput: cfg.XLSXOutput,
	}
}

type RunResult struct {
	TraceID      string
	PrimaryLines int
	Normalized   int
	AuxEntries   int
	Enriched     int
	Failures     []internal.RecordFailure
	SinkErrors   map[string]error
	Duration     time.Duration
}

// Err joins the per-sink failures, or returns nil if every sink succeeded.
func (r RunResult) Err() error {
	names := make([]string, 0, len(r.SinkErrors))
	for name := range r.SinkErrors {
		names = append(names, name)
	}
	sort.Strings(names)
	errs := make([]error, 0, len(names))
	for _, name := range names {
		errs = append(errs, fmt.Errorf("%s sink: %w", name, r.SinkErrors[name]))
	}
	return errors.Join(errs...)
}

type ingestStats struct {
	primaryLines atomic.Int64
	normalized   atomic.Int64
	auxEntries   atomic.Int64

	mu       sync.Mutex
	failures []internal.RecordFailure
}

func (st *ingestStats) fail(f internal.RecordFailure) {
	st.mu.Lock()
	st.failures = append(st.failures, f)
	st.mu.Unlock()
}

// Run processes one full batch: both feeds are read, joined and written to
// every configured sink. The returned error covers ingestion only; sink
// failures are reported per sink in RunResult.SinkErrors.
func (s *ProcessingService) Run(ctx context.Context, in RunInput) (RunResult, error) {
	start := time.Now()
	res := RunResult{TraceID: uuid.NewString(), SinkErrors: map[string]error{}}
	logger := s.log.With().Str("trace_id", res.TraceID).Logger()
	logger.Info().Str("primary", in.Primary).Str("auxiliary", in.Auxiliary).Msg("run started")

	timings := map[string]float64{}
	joiner := NewJoiner(s.cfg.JoinPartitions)
	stats := &ingestStats{}

	ingestStart := time.Now()
	if err := s.ingest(ctx, in, joiner, stats, logger); err != nil {
		logger.Error().Err(err).Msg("ingest failed")
		return res, err
	}
	timings["ingestMs"] = msSince(ingestStart)

	joinStart := time.Now()
	enriched, err := joiner.Emit(ctx)
	if err != nil {
		return res, err
	}
	timings["joinMs"] = msSince(joinStart)

	res.PrimaryLines = int(stats.primaryLines.Load())
	res.Normalized = int(stats.normalized.Load())
	res.AuxEntries = int(stats.auxEntries.Load())
	res.Enriched = len(enriched)
	res.Failures = stats.failures
	sort.Slice(res.Failures, func(a, b int) bool { return res.Failures[a].LineNo < res.Failures[b].LineNo })

	for name, ms := range s.writeSinks(ctx, in, enriched, &res, logger) {
		timings["sink_"+name+"Ms"] = ms
	}

	res.Duration = time.Since(start)
	timings["totalMs"] = float64(res.Duration.Milliseconds())
	s.recordRun(res, timings, logger)

	logger.Info().
		Int("primary_lines", res.PrimaryLines).
		Int("normalized", res.Normalized).
		Int("failed", len(res.Failures)).
		Int("aux_entries", res.AuxEntries).
		Int("enriched", res.Enriched).
		Int("sink_failures", len(res.SinkErrors)).
		Dur("duration", res.Duration).
		Msg("run finished")

	return res, nil
}

func (s *ProcessingService) ingest(ctx context.Context, in RunInput, joiner *Joiner, stats *ingestStats, logger zerolog.Logger) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return s.readAuxiliary(gctx, in.Auxiliary, joiner, stats)
	})

	type job struct {
		lineNo int
		line   []byte
	}
	jobs := make(chan job)
	loadDate := s.now()

	g.Go(func() error {
		defer close(jobs)
		src, err := OpenInput(gctx, s.store, in.Primary)
		if err != nil {
			return fmt.Errorf("open primary feed: %w", err)
		}
		defer src.Close()

		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			raw := scanner.Bytes()
			if strings.TrimSpace(string(raw)) == "" {
				continue
			}
			line := make([]byte, len(raw))
			copy(line, raw)
			select {
			case jobs <- job{lineNo: lineNo, line: line}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("read primary feed: %w", err)
		}
		return nil
	})

	for i := 0; i < s.cfg.PipelineWorkers; i++ {
		g.Go(func() error {
			for j := range jobs {
				stats.primaryLines.Add(1)
				rec, err := NormalizeLine(j.line, loadDate)
				if err != nil {
					recErr := &RecordError{Source: "primary", LineNo: j.lineNo, Err: err}
					if s.cfg.FailOnMalformed {
						return recErr
					}
					logger.Warn().Int("line", j.lineNo).Err(err).Msg("skipping primary record")
					stats.fail(internal.RecordFailure{
						Source:  "primary",
						LineNo:  j.lineNo,
						RawLine: truncate(string(j.line), maxStoredRawLen),
						Error:   err.Error(),
					})
					continue
				}
				rec.LineNo = j.lineNo
				joiner.AddPrimary(rec)
				stats.normalized.Add(1)
			}
			return nil
		})
	}

	return g.Wait()
}

func (s *ProcessingService) readAuxiliary(ctx context.Context, location string, joiner *Joiner, stats *ingestStats) error {
	if strings.TrimSpace(location) == "" {
		return nil
	}
	src, err := OpenInput(ctx, s.store, location)
	if err != nil {
		return fmt.Errorf("open auxiliary feed: %w", err)
	}
	defer src.Close()

	add := func(entry internal.AuxiliaryEntry) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		joiner.AddAuxiliary(entry)
		stats.auxEntries.Add(1)
		return nil
	}
	if isXLSX(location) {
		return ReadAuxiliaryXLSX(src, add)
	}
	return ReadAuxiliaryCSV(src, add)
}

// writeSinks fans the enriched records out to every configured sink. Sinks
// run independently: one failing never stops or rolls back another.
func (s *ProcessingService) writeSinks(ctx context.Context, in RunInput, enriched []internal.EnrichedRecord, res *RunResult, logger zerolog.Logger) map[string]float64 {
	var mu sync.Mutex
	timings := map[string]float64{}
	var g errgroup.Group

	run := func(name string, fn func() error) {
		g.Go(func() error {
			start := time.Now()
			err := fn()
			mu.Lock()
			defer mu.Unlock()
			timings[name] = msSince(start)
			if err != nil {
				res.SinkErrors[name] = err
				logger.Error().Str("sink", name).Err(err).Msg("sink write failed")
				return nil
			}
			logger.Info().Str("sink", name).Int("rows", len(enriched)).Msg("sink written")
			return nil
		})
	}

	if s.tabular != nil {
		run(SinkTabular, func() error {
			rows := make([]internal.TabularRow, 0, len(enriched))
			for _, rec := range enriched {
				rows = append(rows, ProjectTabular(rec))
			}
			if err := s.tabular.ReplaceRows(ctx, rows); err != nil {
				return err
			}
			return s.db.SetMetadata("sink."+SinkTabular+".last_success", res.TraceID)
		})
	}

	var flatOnce sync.Once
	var flat []internal.FlatRow
	flatRows := func() []internal.FlatRow {
		flatOnce.Do(func() {
			flat = make([]internal.FlatRow, 0, len(enriched))
			for _, rec := range enriched {
				flat = append(flat, ProjectFlat(rec))
			}
		})
		return flat
	}

	if in.FlatOutput != "" {
		run(SinkFlat, func() error {
			target := ShardPath(in.FlatOutput)
			local := s.stagingPath(target, res.TraceID)
			if err := ExportRowsToCSV(flatRows(), local, s.cfg.FlatEscape); err != nil {
				return err
			}
			return PublishOutput(ctx, s.store, local, target)
		})
	}

	if in.XLSXOutput != "" {
		run(SinkXLSX, func() error {
			local := s.stagingPath(in.XLSXOutput, res.TraceID)
			if err := ExportRowsToXLSX(flatRows(), local); err != nil {
				return err
			}
			return PublishOutput(ctx, s.store, local, in.XLSXOutput)
		})
	}

	_ = g.Wait()
	return timings
}

// stagingPath is where an output is written locally before publishing. Local
// targets are written in place.
func (s *ProcessingService) stagingPath(target, traceID string) string {
	if !connectors.IsObjectURI(target) {
		return target
	}
	return filepath.Join(s.cfg.OutputDir, ".staging", traceID, path.Base(target))
}

func (s *ProcessingService) recordRun(res RunResult, timings map[string]float64, logger zerolog.Logger) {
	counts := map[string]int{
		"primaryLines": res.PrimaryLines,
		"normalized":   res.Normalized,
		"failed":       len(res.Failures),
		"auxEntries":   res.AuxEntries,
		"enriched":     res.Enriched,
		"sinkFailures": len(res.SinkErrors),
	}
	if err := s.db.InsertRun(res.TraceID, timings, counts); err != nil {
		logger.Warn().Err(err).Msg("record run")
	}
	if err := s.db.InsertRecordFailures(res.TraceID, res.Failures); err != nil {
		logger.Warn().Err(err).Msg("record failures")
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
