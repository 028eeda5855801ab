package ranking

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/contracts"
)

// Repository persists classifications. A classification for one as-of
// date is written in a single transaction so readers never observe a
// partial tier set.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new classification repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Save replaces the stored classification for the as-of date.
func (r *Repository) Save(ctx context.Context, c *contracts.Classification) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin classification tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM quant.tiers WHERE as_of = $1`, c.AsOf); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM quant.crossover_states WHERE as_of = $1`, c.AsOf); err != nil {
		return err
	}

	for _, t := range c.Tiers {
		_, err := tx.Exec(ctx, `
			INSERT INTO quant.tiers (instrument_id, as_of, tier, rank, score)
			VALUES ($1, $2, $3, $4, $5)`,
			t.Instrument, t.AsOf, t.Tier, t.Rank, t.Score)
		if err != nil {
			return fmt.Errorf("save tier %s: %w", t.Instrument, err)
		}
	}

	for _, s := range c.States {
		_, err := tx.Exec(ctx, `
			INSERT INTO quant.crossover_states (instrument_id, as_of, side, short_ma, long_ma)
			VALUES ($1, $2, $3, $4, $5)`,
			s.Instrument, s.AsOf, string(s.Side), s.ShortMA, s.LongMA)
		if err != nil {
			return fmt.Errorf("save crossover state %s: %w", s.Instrument, err)
		}
	}

	return tx.Commit(ctx)
}

// Get loads the classification stored for one as-of date. Both result
// slices empty means no classification exists for the date.
func (r *Repository) Get(ctx context.Context, asOf time.Time) (*contracts.Classification, error) {
	c := &contracts.Classification{AsOf: asOf}

	rows, err := r.pool.Query(ctx, `
		SELECT instrument_id, as_of, tier, rank, score
		FROM quant.tiers WHERE as_of = $1
		ORDER BY rank`, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var t contracts.TierAssignment
		if err := rows.Scan(&t.Instrument, &t.AsOf, &t.Tier, &t.Rank, &t.Score); err != nil {
			return nil, err
		}
		c.Tiers = append(c.Tiers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stateRows, err := r.pool.Query(ctx, `
		SELECT instrument_id, as_of, side, short_ma, long_ma
		FROM quant.crossover_states WHERE as_of = $1
		ORDER BY instrument_id`, asOf)
	if err != nil {
		return nil, err
	}
	defer stateRows.Close()
	for stateRows.Next() {
		var s contracts.CrossState
		var side string
		if err := stateRows.Scan(&s.Instrument, &s.AsOf, &side, &s.ShortMA, &s.LongMA); err != nil {
			return nil, err
		}
		s.Side = contracts.CrossSide(side)
		c.States = append(c.States, s)
	}
	return c, stateRows.Err()
}

// LatestBefore loads the most recent classification strictly before the
// as-of date, or nil when none exists. Used to compute tier deltas and
// crossover events against the previous run.
func (r *Repository) LatestBefore(ctx context.Context, asOf time.Time) (*contracts.Classification, error) {
	var prev *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT MAX(as_of) FROM (
			SELECT as_of FROM quant.tiers WHERE as_of < $1
			UNION
			SELECT as_of FROM quant.crossover_states WHERE as_of < $1
		) t`, asOf).Scan(&prev)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, nil
	}
	return r.Get(ctx, *prev)
}
