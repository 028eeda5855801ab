package rebalance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/internal/ranking"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// UniverseReader lists the instruments a cycle operates on.
type UniverseReader interface {
	ListActive(ctx context.Context) ([]*contracts.Instrument, error)
}

// BarReader is the slice of the bar store the planner reads.
type BarReader interface {
	TrailingBars(ctx context.Context, instrument string, asOf time.Time, n int) ([]contracts.Bar, error)
	LastCloses(ctx context.Context, instruments []string, asOf time.Time) (map[string]float64, error)
}

// ClassificationStore persists and recalls classifications.
type ClassificationStore interface {
	Save(ctx context.Context, c *contracts.Classification) error
	LatestBefore(ctx context.Context, asOf time.Time) (*contracts.Classification, error)
}

// SignalStore writes planned signals.
type SignalStore interface {
	CreateBatch(ctx context.Context, signals []contracts.Signal) (*CreateResult, error)
}

// CycleStore persists cycle records.
type CycleStore interface {
	Create(ctx context.Context, c *Cycle) error
	Finish(ctx context.Context, c *Cycle) error
	LastCompleted(ctx context.Context, portfolio string) (*Cycle, error)
}

// Locker serializes cycles per portfolio.
type Locker interface {
	Acquire(ctx context.Context, portfolio string) (func(), error)
}

// HoldingSource lists current holdings.
type HoldingSource interface {
	List(ctx context.Context, portfolio string) ([]contracts.Holding, error)
}

// CashSource reports investable cash.
type CashSource interface {
	GetCash(ctx context.Context) (decimal.Decimal, error)
}

// Report is the outcome of one planning run. A dry run produces the
// same report as a live run over the same inputs; only persistence
// differs.
type Report struct {
	CycleID    uuid.UUID           `json:"cycle_id"`
	Portfolio  string              `json:"portfolio"`
	AsOf       time.Time           `json:"as_of"`
	Strategy   string              `json:"strategy"`
	DryRun     bool                `json:"dry_run"`
	Analyzed   int                 `json:"analyzed"`
	Ranked     int                 `json:"ranked"`
	Signals    []contracts.Signal  `json:"signals"`
	Buys       int                 `json:"buys"`
	Sells      int                 `json:"sells"`
	Created    int                 `json:"created"`
	Duplicates int                 `json:"duplicates"`
	Stats      ranking.Stats       `json:"stats"`
	Duration   time.Duration       `json:"duration"`
}

// Options tune one planning run.
type Options struct {
	DryRun bool

	// Force skips the frequency gate.
	Force bool
}

// Planner runs one rebalance cycle end to end: classify the universe
// for the as-of date, diff against the previous state, and persist the
// resulting signals exactly once.
type Planner struct {
	strategy        contracts.Strategy
	universe        UniverseReader
	bars            BarReader
	classifications ClassificationStore
	signals         SignalStore
	cycles          CycleStore
	lock            Locker
	holdings        HoldingSource
	cash            CashSource
	cfg             config.RebalanceConfig
	workers         int
	logger          *logger.Logger
	now             func() time.Time
}

// NewPlanner wires a planner.
func NewPlanner(
	strategy contracts.Strategy,
	universe UniverseReader,
	bars BarReader,
	classifications ClassificationStore,
	signals SignalStore,
	cycles CycleStore,
	lock Locker,
	holdings HoldingSource,
	cash CashSource,
	cfg *config.Config,
	log *logger.Logger,
) *Planner {
	return &Planner{
		strategy:        strategy,
		universe:        universe,
		bars:            bars,
		classifications: classifications,
		signals:         signals,
		cycles:          cycles,
		lock:            lock,
		holdings:        holdings,
		cash:            cash,
		cfg:             cfg.Rebalance,
		workers:         cfg.Ingest.Workers,
		logger:          log,
		now:             time.Now,
	}
}

// Run executes one planning cycle for the portfolio and as-of date.
func (p *Planner) Run(ctx context.Context, portfolio string, asOf time.Time, opts Options) (*Report, error) {
	start := p.now()
	asOf = asOf.UTC().Truncate(24 * time.Hour)

	if !opts.Force {
		if err := p.checkDue(ctx, portfolio, asOf); err != nil {
			return nil, err
		}
	}

	release, err := p.lock.Acquire(ctx, portfolio)
	if err != nil {
		return nil, err
	}
	defer release()

	cycle := &Cycle{
		ID:        uuid.New(),
		Portfolio: portfolio,
		AsOf:      asOf,
		Status:    CycleInProgress,
		DryRun:    opts.DryRun,
		StartedAt: start,
	}
	if err := p.cycles.Create(ctx, cycle); err != nil {
		return nil, fmt.Errorf("create cycle record: %w", err)
	}

	report, err := p.plan(ctx, portfolio, asOf, opts.DryRun)
	if err != nil {
		cycle.Status = CycleFailed
		cycle.Error = err.Error()
		if finishErr := p.cycles.Finish(ctx, cycle); finishErr != nil {
			p.logger.WithError(finishErr).Error("Failed to record failed cycle")
		}
		return nil, err
	}

	report.CycleID = cycle.ID
	report.Duration = p.now().Sub(start)

	cycle.Status = CyclePlanned
	if opts.DryRun {
		cycle.Status = CycleDryRunReported
	}
	cycle.Analyzed = report.Analyzed
	cycle.BuySignals = report.Buys
	cycle.SellSignals = report.Sells
	cycle.Stats = report.Stats
	if err := p.cycles.Finish(ctx, cycle); err != nil {
		return nil, fmt.Errorf("finish cycle record: %w", err)
	}

	p.logger.WithFields(map[string]interface{}{
		"portfolio": portfolio,
		"as_of":     asOf.Format("2006-01-02"),
		"dry_run":   opts.DryRun,
		"buys":      report.Buys,
		"sells":     report.Sells,
		"created":   report.Created,
		"duration":  report.Duration.String(),
	}).Info("Rebalance cycle finished")

	return report, nil
}

// checkDue enforces the rebalance frequency. Re-planning the same
// as-of date is always allowed; that path is idempotent.
func (p *Planner) checkDue(ctx context.Context, portfolio string, asOf time.Time) error {
	last, err := p.cycles.LastCompleted(ctx, portfolio)
	if err != nil {
		return fmt.Errorf("load last cycle: %w", err)
	}
	if last == nil {
		return nil
	}

	lastAsOf := last.AsOf.UTC().Truncate(24 * time.Hour)
	if lastAsOf.Equal(asOf) {
		return nil
	}
	if asOf.Sub(lastAsOf) < time.Duration(p.cfg.FrequencyDays())*24*time.Hour {
		return fmt.Errorf("%w: last rebalance %s", contracts.ErrRebalanceNotDue,
			lastAsOf.Format("2006-01-02"))
	}
	return nil
}

func (p *Planner) plan(ctx context.Context, portfolio string, asOf time.Time, dryRun bool) (*Report, error) {
	instruments, err := p.universe.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list universe: %w", err)
	}
	if len(instruments) == 0 {
		return nil, fmt.Errorf("%w: universe is empty", contracts.ErrInvalidInstrument)
	}

	bars, err := p.loadBars(ctx, instruments, asOf)
	if err != nil {
		return nil, err
	}

	set, err := p.strategy.ComputeIndicators(asOf, bars)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}

	classification, err := p.strategy.Classify(asOf, set)
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}

	previous, err := p.classifications.LatestBefore(ctx, asOf)
	if err != nil {
		return nil, fmt.Errorf("load previous classification: %w", err)
	}

	holdings, err := p.holdings.List(ctx, portfolio)
	if err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}

	cash, err := p.cash.GetCash(ctx)
	if err != nil {
		return nil, fmt.Errorf("load cash: %w", err)
	}

	ids := make([]string, 0, len(instruments))
	instByID := make(map[string]*contracts.Instrument, len(instruments))
	for _, inst := range instruments {
		ids = append(ids, inst.ID)
		instByID[inst.ID] = inst
	}
	lastCloses, err := p.bars.LastCloses(ctx, ids, asOf)
	if err != nil {
		return nil, fmt.Errorf("load last closes: %w", err)
	}

	signals, err := p.strategy.PlanSignals(&contracts.PlanInput{
		Portfolio:      portfolio,
		AsOf:           asOf,
		Indicators:     set,
		Classification: classification,
		Previous:       previous,
		Holdings:       holdings,
		Cash:           cash,
		LastClose:      lastCloses,
		Instruments:    instByID,
	})
	if err != nil {
		return nil, fmt.Errorf("plan signals: %w", err)
	}

	report := &Report{
		Portfolio: portfolio,
		AsOf:      asOf,
		Strategy:  p.strategy.Kind(),
		DryRun:    dryRun,
		Analyzed:  len(instruments),
		Ranked:    len(classification.Tiers) + len(classification.States),
		Signals:   signals,
		Stats:     ranking.ComputeStats(classification.Tiers),
	}
	for _, s := range signals {
		if s.Direction == contracts.DirectionBuy {
			report.Buys++
		} else {
			report.Sells++
		}
	}

	if dryRun {
		return report, nil
	}

	if err := p.classifications.Save(ctx, classification); err != nil {
		return nil, fmt.Errorf("save classification: %w", err)
	}

	created, err := p.signals.CreateBatch(ctx, signals)
	if err != nil {
		return nil, fmt.Errorf("persist signals: %w", err)
	}
	report.Created = created.Created
	report.Duplicates = created.Duplicates

	return report, nil
}

// loadBars reads each instrument's trailing window with bounded
// concurrency.
func (p *Planner) loadBars(ctx context.Context, instruments []*contracts.Instrument, asOf time.Time) (map[string][]contracts.Bar, error) {
	workers := p.workers
	if workers < 1 {
		workers = 1
	}
	required := p.strategy.RequiredBars()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
		bars     = make(map[string][]contracts.Bar, len(instruments))
		sem      = make(chan struct{}, workers)
	)

	for _, inst := range instruments {
		wg.Add(1)
		go func(inst *contracts.Instrument) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			series, err := p.bars.TrailingBars(ctx, inst.ID, asOf, required)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("load bars for %s: %w", inst.ID, err)
				}
				return
			}
			bars[inst.ID] = series
		}(inst)
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	return bars, nil
}
