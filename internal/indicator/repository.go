package indicator

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/contracts"
)

// Repository persists computed indicator values.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new indicator repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveSet upserts all values of one indicator set. Values flagged
// insufficient are not persisted; absence is the record.
func (r *Repository) SaveSet(ctx context.Context, set *contracts.IndicatorSet) error {
	query := `
		INSERT INTO quant.indicator_values (instrument_id, as_of, kind, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (instrument_id, as_of, kind) DO UPDATE SET
			value = EXCLUDED.value
	`

	for _, v := range set.Values {
		if !v.Sufficient {
			continue
		}
		if _, err := r.pool.Exec(ctx, query, v.Instrument, v.AsOf, string(v.Kind), v.Value); err != nil {
			return fmt.Errorf("save indicator %s %s: %w", v.Instrument, v.Kind, err)
		}
	}
	return nil
}

// GetSet loads all indicator values for one as-of date.
func (r *Repository) GetSet(ctx context.Context, asOf time.Time) (*contracts.IndicatorSet, error) {
	query := `
		SELECT instrument_id, as_of, kind, value
		FROM quant.indicator_values
		WHERE as_of = $1
		ORDER BY instrument_id, kind
	`

	rows, err := r.pool.Query(ctx, query, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	set := &contracts.IndicatorSet{AsOf: asOf}
	for rows.Next() {
		var v contracts.IndicatorValue
		var kind string
		if err := rows.Scan(&v.Instrument, &v.AsOf, &kind, &v.Value); err != nil {
			return nil, err
		}
		v.Kind = contracts.IndicatorKind(kind)
		v.Sufficient = true
		set.Values = append(set.Values, v)
	}
	return set, rows.Err()
}

// LatestAsOf returns the most recent as-of date with stored values, or
// a zero time when none exist.
func (r *Repository) LatestAsOf(ctx context.Context) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(as_of) FROM quant.indicator_values`).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}
