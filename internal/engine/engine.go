// Package engine wires the pipeline components behind the operations
// the CLI, API, and scheduler trigger: ingestion, indicator updates,
// rank-and-plan cycles, and signal execution.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/barstore"
	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/internal/indicator"
	"github.com/wonny/rebalance/internal/ingest"
	"github.com/wonny/rebalance/internal/lifecycle"
	"github.com/wonny/rebalance/internal/ranking"
	"github.com/wonny/rebalance/internal/rebalance"
	"github.com/wonny/rebalance/internal/universe"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// NewStrategy builds the configured strategy variant.
func NewStrategy(cfg *config.Config) (contracts.Strategy, error) {
	switch cfg.Strategy.Kind {
	case "momentum":
		return NewMomentumStrategy(cfg), nil
	case "crossover":
		return NewCrossoverStrategy(cfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy kind: %s", cfg.Strategy.Kind)
	}
}

// Engine is the top-level facade over the decision pipeline.
type Engine struct {
	cfg      *config.Config
	logger   *logger.Logger
	strategy contracts.Strategy

	Universe   *universe.Repository
	Bars       *barstore.Repository
	Indicators *indicator.Repository
	Signals    *rebalance.SignalRepository
	Cycles     *rebalance.CycleRepository

	pipeline *ingest.Pipeline
	planner  *rebalance.Planner
	tracker  *lifecycle.Tracker
}

// New wires an engine over the shared pool, bar source, rate budget,
// and broker.
func New(cfg *config.Config, log *logger.Logger, pool *pgxpool.Pool,
	source contracts.BarSource, waiter ingest.RateWaiter, brk contracts.Broker) (*Engine, error) {

	strategy, err := NewStrategy(cfg)
	if err != nil {
		return nil, err
	}

	universeRepo := universe.NewRepository(pool)
	barRepo := barstore.NewRepository(pool)
	indicatorRepo := indicator.NewRepository(pool)
	classificationRepo := ranking.NewRepository(pool)
	signalRepo := rebalance.NewSignalRepository(pool)
	cycleRepo := rebalance.NewCycleRepository(pool)
	holdingsRepo := lifecycle.NewHoldingsRepository(pool)
	tradeRepo := lifecycle.NewTradeRepository(pool)

	e := &Engine{
		cfg:        cfg,
		logger:     log,
		strategy:   strategy,
		Universe:   universeRepo,
		Bars:       barRepo,
		Indicators: indicatorRepo,
		Signals:    signalRepo,
		Cycles:     cycleRepo,
		pipeline:   ingest.New(source, barRepo, waiter, cfg.Ingest, log),
		planner: rebalance.NewPlanner(
			strategy, universeRepo, barRepo, classificationRepo,
			signalRepo, cycleRepo, rebalance.NewCycleLock(pool),
			holdingsRepo, brk, cfg, log),
		tracker: lifecycle.NewTracker(signalRepo, tradeRepo, holdingsRepo, brk, log),
	}
	return e, nil
}

// Strategy exposes the active strategy kind.
func (e *Engine) Strategy() string { return e.strategy.Kind() }

// RunIngestion pulls bars for the active universe.
func (e *Engine) RunIngestion(ctx context.Context, opts ingest.Options) (*ingest.Report, error) {
	instruments, err := e.Universe.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list universe: %w", err)
	}
	return e.pipeline.Run(ctx, instruments, opts)
}

// IndicatorReport summarizes one indicator update.
type IndicatorReport struct {
	AsOf         time.Time `json:"as_of"`
	Computed     int       `json:"computed"`
	Insufficient int       `json:"insufficient"`
}

// RunIndicatorUpdate computes and persists the strategy's indicators
// for the as-of date. Instruments without enough history are reported,
// never scored.
func (e *Engine) RunIndicatorUpdate(ctx context.Context, asOf time.Time) (*IndicatorReport, error) {
	asOf = asOf.UTC().Truncate(24 * time.Hour)

	instruments, err := e.Universe.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list universe: %w", err)
	}

	bars := make(map[string][]contracts.Bar, len(instruments))
	for _, inst := range instruments {
		series, err := e.Bars.TrailingBars(ctx, inst.ID, asOf, e.strategy.RequiredBars())
		if err != nil {
			return nil, fmt.Errorf("load bars for %s: %w", inst.ID, err)
		}
		bars[inst.ID] = series
	}

	set, err := e.strategy.ComputeIndicators(asOf, bars)
	if err != nil {
		return nil, err
	}
	if err := e.Indicators.SaveSet(ctx, set); err != nil {
		return nil, err
	}

	report := &IndicatorReport{AsOf: asOf}
	for _, v := range set.Values {
		if v.Sufficient {
			report.Computed++
		} else {
			report.Insufficient++
		}
	}

	e.logger.WithFields(map[string]interface{}{
		"as_of":        asOf.Format("2006-01-02"),
		"computed":     report.Computed,
		"insufficient": report.Insufficient,
	}).Info("Indicator update finished")

	return report, nil
}

// RunRankAndPlan runs one rebalance cycle for the configured portfolio.
func (e *Engine) RunRankAndPlan(ctx context.Context, asOf time.Time, opts rebalance.Options) (*rebalance.Report, error) {
	return e.planner.Run(ctx, e.cfg.Rebalance.Portfolio, asOf, opts)
}

// PendingSignals lists the portfolio's pending signals, sells first.
func (e *Engine) PendingSignals(ctx context.Context) ([]contracts.Signal, error) {
	return e.Signals.ListPending(ctx, e.cfg.Rebalance.Portfolio)
}

// ExecuteSignal submits one pending signal to the broker.
func (e *Engine) ExecuteSignal(ctx context.Context, signalID uuid.UUID) (*contracts.Trade, error) {
	return e.tracker.ExecuteSignal(ctx, signalID)
}

// ExecutionReport summarizes an execute-pending sweep.
type ExecutionReport struct {
	Executed int               `json:"executed"`
	Failed   int               `json:"failed"`
	Errors   map[string]string `json:"errors,omitempty"`
}

// ExecutePending executes every pending signal in order. Sells come
// first so their proceeds settle before the buys draw cash.
func (e *Engine) ExecutePending(ctx context.Context) (*ExecutionReport, error) {
	signals, err := e.PendingSignals(ctx)
	if err != nil {
		return nil, err
	}

	report := &ExecutionReport{Errors: make(map[string]string)}
	for _, s := range signals {
		if _, err := e.tracker.ExecuteSignal(ctx, s.ID); err != nil {
			report.Failed++
			report.Errors[s.ID.String()] = err.Error()
			continue
		}
		report.Executed++
	}
	return report, nil
}

// PollTrades refreshes open trades from the broker.
func (e *Engine) PollTrades(ctx context.Context) (int, error) {
	return e.tracker.PollOpenTrades(ctx, e.cfg.Rebalance.Portfolio)
}

// SyncPositions reconciles holdings against the broker.
func (e *Engine) SyncPositions(ctx context.Context) (*lifecycle.SyncReport, error) {
	return e.tracker.SyncPositions(ctx, e.cfg.Rebalance.Portfolio)
}

// Status is a snapshot for the status command and API.
type Status struct {
	Portfolio      string             `json:"portfolio"`
	Strategy       string             `json:"strategy"`
	PendingSignals int                `json:"pending_signals"`
	RecentCycles   []*rebalance.Cycle `json:"recent_cycles"`
}

// GetStatus reports the recent cycles and pending-signal count.
func (e *Engine) GetStatus(ctx context.Context) (*Status, error) {
	pending, err := e.PendingSignals(ctx)
	if err != nil {
		return nil, err
	}
	cycles, err := e.Cycles.Recent(ctx, e.cfg.Rebalance.Portfolio, 10)
	if err != nil {
		return nil, err
	}
	return &Status{
		Portfolio:      e.cfg.Rebalance.Portfolio,
		Strategy:       e.strategy.Kind(),
		PendingSignals: len(pending),
		RecentCycles:   cycles,
	}, nil
}
