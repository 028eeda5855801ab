package rebalance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/ranking"
)

// CycleStatus is the lifecycle state of one planner run.
type CycleStatus string

const (
	CycleInProgress     CycleStatus = "in_progress"
	CyclePlanned        CycleStatus = "planned"
	CycleDryRunReported CycleStatus = "dry_run_reported"
	CycleCompleted      CycleStatus = "completed"
	CycleFailed         CycleStatus = "failed"
)

// Cycle is the persisted record of one rebalance run.
type Cycle struct {
	ID          uuid.UUID     `json:"id"`
	Portfolio   string        `json:"portfolio"`
	AsOf        time.Time     `json:"as_of"`
	Status      CycleStatus   `json:"status"`
	DryRun      bool          `json:"dry_run"`
	Analyzed    int           `json:"analyzed"`
	BuySignals  int           `json:"buy_signals"`
	SellSignals int           `json:"sell_signals"`
	Stats       ranking.Stats `json:"stats"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// CycleRepository persists rebalance cycles.
type CycleRepository struct {
	pool *pgxpool.Pool
}

// NewCycleRepository creates a new cycle repository.
func NewCycleRepository(pool *pgxpool.Pool) *CycleRepository {
	return &CycleRepository{pool: pool}
}

// Create inserts a cycle in progress.
func (r *CycleRepository) Create(ctx context.Context, c *Cycle) error {
	query := `
		INSERT INTO quant.rebalance_cycles
			(cycle_id, portfolio, as_of, status, dry_run, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID, c.Portfolio, c.AsOf, string(c.Status), c.DryRun, c.StartedAt)
	return err
}

// Finish records the terminal status and counters of a cycle.
func (r *CycleRepository) Finish(ctx context.Context, c *Cycle) error {
	query := `
		UPDATE quant.rebalance_cycles SET
			status = $2,
			analyzed = $3,
			buy_signals = $4,
			sell_signals = $5,
			score_mean = $6,
			score_min = $7,
			score_max = $8,
			tier1_cutoff = $9,
			error = NULLIF($10, ''),
			completed_at = NOW()
		WHERE cycle_id = $1
	`
	_, err := r.pool.Exec(ctx, query,
		c.ID, string(c.Status), c.Analyzed, c.BuySignals, c.SellSignals,
		c.Stats.Mean, c.Stats.Min, c.Stats.Max, c.Stats.Tier1Cutoff, c.Error)
	return err
}

// LastCompleted returns the most recent non-dry-run cycle that reached
// planned or completed, or nil when the portfolio has never rebalanced.
func (r *CycleRepository) LastCompleted(ctx context.Context, portfolio string) (*Cycle, error) {
	query := `
		SELECT cycle_id, portfolio, as_of, status, dry_run, analyzed,
		       buy_signals, sell_signals, started_at, completed_at
		FROM quant.rebalance_cycles
		WHERE portfolio = $1
		  AND dry_run = false
		  AND status IN ('planned', 'completed')
		ORDER BY as_of DESC, started_at DESC
		LIMIT 1
	`

	var c Cycle
	var status string
	err := r.pool.QueryRow(ctx, query, portfolio).Scan(
		&c.ID, &c.Portfolio, &c.AsOf, &status, &c.DryRun, &c.Analyzed,
		&c.BuySignals, &c.SellSignals, &c.StartedAt, &c.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Status = CycleStatus(status)
	return &c, nil
}

// Recent lists the latest cycles for a portfolio, newest first.
func (r *CycleRepository) Recent(ctx context.Context, portfolio string, limit int) ([]*Cycle, error) {
	query := `
		SELECT cycle_id, portfolio, as_of, status, dry_run, analyzed,
		       buy_signals, sell_signals, started_at, completed_at
		FROM quant.rebalance_cycles
		WHERE portfolio = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, portfolio, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []*Cycle
	for rows.Next() {
		var c Cycle
		var status string
		if err := rows.Scan(&c.ID, &c.Portfolio, &c.AsOf, &status, &c.DryRun,
			&c.Analyzed, &c.BuySignals, &c.SellSignals, &c.StartedAt, &c.CompletedAt); err != nil {
			return nil, err
		}
		c.Status = CycleStatus(status)
		cycles = append(cycles, &c)
	}
	return cycles, rows.Err()
}
