// Package ingest pulls historical daily bars for the active universe
// into the bar store, respecting the source's rate budget and retrying
// transient failures with exponential backoff.
package ingest

import (
	"context"
	"sync"
	"time"

	"github.com/wonny/rebalance/internal/barstore"
	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// Store is the slice of the bar store the pipeline writes through.
type Store interface {
	SaveBatch(ctx context.Context, bars []contracts.Bar) (*barstore.SaveResult, error)
	StoredDates(ctx context.Context, instrument string, from, to time.Time) ([]time.Time, error)
}

// RateWaiter blocks until the shared fetch budget admits one request.
type RateWaiter interface {
	Wait(ctx context.Context) error
}

// Pipeline coordinates the ingestion workers.
type Pipeline struct {
	source contracts.BarSource
	store  Store
	waiter RateWaiter
	cfg    config.IngestConfig
	logger *logger.Logger
	now    func() time.Time
}

// New creates an ingestion pipeline.
func New(source contracts.BarSource, store Store, waiter RateWaiter, cfg config.IngestConfig, log *logger.Logger) *Pipeline {
	return &Pipeline{
		source: source,
		store:  store,
		waiter: waiter,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

// Options tune one ingestion run.
type Options struct {
	// LookbackDays overrides the configured history window when > 0.
	LookbackDays int

	// Force re-fetches the whole window even for dates already stored.
	Force bool
}

type task struct {
	instrument *contracts.Instrument
}

type taskResult struct {
	instrument   string
	inserted     int
	updated      int
	restatements []barstore.Restatement
	skipped      bool
	err          error
}

// Run ingests bars for the given instruments. Failures are isolated
// per instrument: one instrument failing never aborts the others.
func (p *Pipeline) Run(ctx context.Context, instruments []*contracts.Instrument, opts Options) (*Report, error) {
	start := p.now()

	lookback := p.cfg.LookbackDays
	if opts.LookbackDays > 0 {
		lookback = opts.LookbackDays
	}

	to := start.UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -lookback)

	p.logger.WithFields(map[string]interface{}{
		"instruments": len(instruments),
		"from":        from.Format("2006-01-02"),
		"to":          to.Format("2006-01-02"),
		"workers":     p.cfg.Workers,
		"force":       opts.Force,
	}).Info("Starting bar ingestion")

	tasks := make(chan task)
	results := make(chan taskResult)

	workers := p.cfg.Workers
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				results <- p.ingestOne(ctx, t.instrument, from, to, opts.Force)
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, inst := range instruments {
			select {
			case tasks <- task{instrument: inst}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	report := &Report{
		From:   from,
		To:     to,
		Errors: make(map[string]string),
	}
	for res := range results {
		report.Instruments++
		switch {
		case res.err != nil:
			report.Failed++
			report.Errors[res.instrument] = res.err.Error()
			p.logger.WithError(res.err).WithField("instrument", res.instrument).
				Error("Bar ingestion failed for instrument")
		case res.skipped:
			report.Skipped++
		default:
			report.Succeeded++
			report.BarsInserted += res.inserted
			report.BarsUpdated += res.updated
			report.Restatements = append(report.Restatements, res.restatements...)
		}
	}

	report.Duration = p.now().Sub(start)

	p.logger.WithFields(map[string]interface{}{
		"succeeded":    report.Succeeded,
		"skipped":      report.Skipped,
		"failed":       report.Failed,
		"inserted":     report.BarsInserted,
		"updated":      report.BarsUpdated,
		"restatements": len(report.Restatements),
		"duration":     report.Duration.String(),
	}).Info("Bar ingestion finished")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// ingestOne fills the missing ranges of one instrument's window.
func (p *Pipeline) ingestOne(ctx context.Context, inst *contracts.Instrument, from, to time.Time, force bool) taskResult {
	res := taskResult{instrument: inst.ID}

	var ranges []barstore.DateRange
	if force {
		ranges = []barstore.DateRange{{From: from, To: to}}
	} else {
		stored, err := p.store.StoredDates(ctx, inst.ID, from, to)
		if err != nil {
			res.err = err
			return res
		}
		ranges = barstore.MissingRanges(stored, from, to)
	}

	if len(ranges) == 0 {
		res.skipped = true
		return res
	}

	for _, rng := range ranges {
		for _, batch := range splitRange(rng, p.cfg.BatchDays) {
			bars, err := p.fetchWithRetry(ctx, inst.Symbol, batch.From, batch.To)
			if err != nil {
				res.err = &contracts.FetchError{Instrument: inst.ID, Err: err}
				return res
			}

			// Bars come keyed by the fetch symbol; store them under
			// the instrument ID.
			for i := range bars {
				bars[i].Instrument = inst.ID
			}

			saved, err := p.store.SaveBatch(ctx, bars)
			if err != nil {
				res.err = err
				return res
			}
			res.inserted += saved.Inserted
			res.updated += saved.Updated
			res.restatements = append(res.restatements, saved.Restatements...)
		}
	}
	return res
}

// fetchWithRetry waits on the rate budget before every attempt and
// retries rate-limited and transient failures with exponential backoff.
func (p *Pipeline) fetchWithRetry(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	backoff := p.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.logger.WithFields(map[string]interface{}{
				"symbol":  symbol,
				"attempt": attempt,
				"backoff": backoff.String(),
			}).Warn("Retrying bar fetch")

			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			backoff *= 2
			if backoff > p.cfg.MaxBackoff {
				backoff = p.cfg.MaxBackoff
			}
		}

		if p.waiter != nil {
			if err := p.waiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		bars, err := p.source.FetchBars(ctx, symbol, from, to)
		if err == nil {
			return bars, nil
		}
		lastErr = err

		if !contracts.IsRetryableFetch(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// splitRange cuts a date range into batches of at most batchDays days.
func splitRange(rng barstore.DateRange, batchDays int) []barstore.DateRange {
	if batchDays <= 0 {
		return []barstore.DateRange{rng}
	}

	var batches []barstore.DateRange
	for cur := rng.From; !cur.After(rng.To); cur = cur.AddDate(0, 0, batchDays) {
		end := cur.AddDate(0, 0, batchDays-1)
		if end.After(rng.To) {
			end = rng.To
		}
		batches = append(batches, barstore.DateRange{From: cur, To: end})
	}
	return batches
}
