// Package pipeline sequences one ingestion run: fetch every symbol, keep the
// trailing window, normalize, then hand the aggregate batch to the writer in
// a single call.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/trogers1052/price-ingest/internal/apperror"
	"github.com/trogers1052/price-ingest/internal/ingest"
	"github.com/trogers1052/price-ingest/internal/models"
	"github.com/trogers1052/price-ingest/internal/provider"
)

// Phase is a state of the run state machine
type Phase string

const (
	PhaseStart       Phase = "START"
	PhaseFetching    Phase = "FETCHING"
	PhaseNormalizing Phase = "NORMALIZING"
	PhaseWriting     Phase = "WRITING"
	PhaseSucceeded   Phase = "SUCCEEDED"
	PhaseFailed      Phase = "FAILED"
)

const (
	defaultConcurrency      = 2
	defaultRateLimitRetries = 3
)

// Writer applies an aggregate batch atomically
type Writer interface {
	ApplyBatch(ctx context.Context, batch models.Batch) (models.ApplyReport, error)
}

// Publisher announces a finished run to downstream collaborators
type Publisher interface {
	PublishRunResult(ctx context.Context, result models.RunResult) error
}

// Coordinator runs ingestion for a set of symbols
type Coordinator struct {
	fetcher     provider.Fetcher
	writer      Writer
	publisher   Publisher
	concurrency int
	retries     int
	newBackOff  func() backoff.BackOff
	clock       func() time.Time
}

// Option configures a Coordinator
type Option func(*Coordinator)

// WithPublisher sets where terminal run results are published
func WithPublisher(p Publisher) Option {
	return func(c *Coordinator) { c.publisher = p }
}

// WithConcurrency bounds how many symbols are fetched at once
func WithConcurrency(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRateLimitRetries sets how many times a throttled symbol is retried
func WithRateLimitRetries(n int) Option {
	return func(c *Coordinator) {
		if n >= 0 {
			c.retries = n
		}
	}
}

// WithBackOff sets the policy used between rate-limit retries. The factory
// is called once per symbol.
func WithBackOff(f func() backoff.BackOff) Option {
	return func(c *Coordinator) { c.newBackOff = f }
}

// WithClock sets the clock used for timestamps and a missing RunRequest.Now
func WithClock(f func() time.Time) Option {
	return func(c *Coordinator) { c.clock = f }
}

// New creates a Coordinator
func New(fetcher provider.Fetcher, writer Writer, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:     fetcher,
		writer:      writer,
		concurrency: defaultConcurrency,
		retries:     defaultRateLimitRetries,
		newBackOff:  defaultBackOff,
		clock:       time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxElapsedTime = time.Minute
	return b
}

// Run executes one ingestion run and always returns a result. Per-record
// and per-symbol failures shrink the batch; configuration, cancellation and
// write failures fail the run. Nothing is written unless every fetch has
// finished and the run was not cancelled.
func (c *Coordinator) Run(ctx context.Context, req models.RunRequest) models.RunResult {
	result := models.RunResult{StartedAt: c.clock()}
	logPhase(PhaseStart, "symbols", req.Symbols, "window_days", req.WindowDays)

	symbols, err := c.validate(req)
	if err != nil {
		return c.finish(ctx, result, err)
	}

	now := req.Now
	if now.IsZero() {
		now = c.clock()
	}

	logPhase(PhaseFetching, "symbols", symbols, "concurrency", c.concurrency)
	collected := make([]collectedSymbol, len(symbols))

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)
	for i, symbol := range symbols {
		g.Go(func() error {
			collected[i] = c.collect(ctx, symbol, now, req.WindowDays)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return c.finish(ctx, result, fmt.Errorf("run cancelled before writing: %w", err))
	}

	logPhase(PhaseNormalizing, "symbols", len(symbols))
	var batch models.Batch
	for _, cs := range collected {
		result.Symbols = append(result.Symbols, cs.summary)
		batch = append(batch, cs.records...)
	}

	logPhase(PhaseWriting, "records", len(batch))
	report, err := c.writer.ApplyBatch(ctx, batch)
	if err != nil {
		return c.finish(ctx, result, err)
	}

	result.Status = models.RunSucceeded
	result.RecordsWritten = len(batch.Dedupe())
	result.Inserted = report.Inserted
	result.Updated = report.Updated
	return c.finish(ctx, result, nil)
}

func (c *Coordinator) validate(req models.RunRequest) ([]string, error) {
	switch {
	case c.fetcher == nil:
		return nil, apperror.NewMissing("provider client")
	case c.writer == nil:
		return nil, apperror.NewMissing("writer")
	case req.WindowDays <= 0:
		return nil, apperror.NewMissing("window_days")
	}

	seen := make(map[string]bool, len(req.Symbols))
	var symbols []string
	for _, s := range req.Symbols {
		s = ingest.NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		symbols = append(symbols, s)
	}
	if len(symbols) == 0 {
		return nil, apperror.NewMissing("symbols")
	}
	return symbols, nil
}

func (c *Coordinator) finish(ctx context.Context, result models.RunResult, err error) models.RunResult {
	result.FinishedAt = c.clock()

	if err != nil {
		result.Status = models.RunFailed
		result.RecordsWritten = 0
		result.Inserted = 0
		result.Updated = 0
		result.Error = err.Error()
		logPhase(PhaseFailed, "error", err, "duration", result.FinishedAt.Sub(result.StartedAt))
	} else {
		logPhase(PhaseSucceeded,
			"records_written", result.RecordsWritten,
			"inserted", result.Inserted,
			"updated", result.Updated,
			"duration", result.FinishedAt.Sub(result.StartedAt))
	}

	if c.publisher != nil {
		if perr := c.publisher.PublishRunResult(ctx, result); perr != nil {
			slog.Warn("failed to publish run result", "status", result.Status, "error", perr)
		}
	}
	return result
}

type collectedSymbol struct {
	records models.Batch
	summary models.SymbolResult
}

// collect fetches, filters and normalizes one symbol. Any fetch failure
// leaves the symbol with no records.
func (c *Coordinator) collect(ctx context.Context, symbol string, now time.Time, windowDays int) collectedSymbol {
	out := collectedSymbol{summary: models.SymbolResult{Symbol: symbol}}

	series, err := c.fetch(ctx, symbol)
	if err != nil {
		kind, _ := apperror.KindOf(err)
		slog.Warn("symbol degraded to empty contribution", "symbol", symbol, "kind", kind, "error", err)
		out.summary.Error = err.Error()
		return out
	}
	out.summary.Fetched = len(series)

	quotes, dropped := ingest.FilterWindow(series, now, windowDays)
	for _, derr := range dropped {
		slog.Warn("dropping record", "symbol", symbol, "error", derr)
	}
	out.summary.Dropped = len(dropped)

	for _, q := range quotes {
		rec, err := ingest.Normalize(symbol, q.Date, q)
		if err != nil {
			slog.Warn("dropping record", "symbol", symbol, "date", q.Date, "error", err)
			out.summary.Dropped++
			continue
		}
		out.records = append(out.records, rec)
	}
	out.summary.Kept = len(out.records)

	slog.Info("collected symbol",
		"symbol", symbol,
		"fetched", out.summary.Fetched,
		"kept", out.summary.Kept,
		"dropped", out.summary.Dropped)
	return out
}

// fetch retries only RateLimited errors; every other error is final
func (c *Coordinator) fetch(ctx context.Context, symbol string) (models.DailySeries, error) {
	var series models.DailySeries

	op := func() error {
		s, err := c.fetcher.FetchDailySeries(ctx, symbol)
		if err == nil {
			series = s
			return nil
		}
		if apperror.Is(err, apperror.RateLimited) && ctx.Err() == nil {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		slog.Info("provider rate limited, backing off", "symbol", symbol, "wait", wait, "error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), uint64(c.retries)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, apperror.NewFetchError(apperror.Transport, symbol, err)
		}
		return nil, err
	}
	return series, nil
}

func logPhase(phase Phase, args ...any) {
	slog.Info("ingestion run "+string(phase), append([]any{"phase", phase}, args...)...)
}
