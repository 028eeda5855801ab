// Package barstore is the persistent store of historical OHLC bars.
// One bar per (instrument, date); re-ingesting a date replaces the bar
// and reports the restatement.
package barstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/contracts"
)

// Restatement records a stored bar replaced by a re-fetch with a
// different close.
type Restatement struct {
	Instrument string    `json:"instrument"`
	Date       time.Time `json:"date"`
	OldClose   float64   `json:"old_close"`
	NewClose   float64   `json:"new_close"`
}

// SaveResult summarizes one batch write.
type SaveResult struct {
	Inserted     int
	Updated      int
	Restatements []Restatement
}

// Repository persists bars.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new bar repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// SaveBatch upserts bars and reports which stored closes were replaced.
// Bars that fail validation are rejected before anything is written.
func (r *Repository) SaveBatch(ctx context.Context, bars []contracts.Bar) (*SaveResult, error) {
	result := &SaveResult{}
	if len(bars) == 0 {
		return result, nil
	}

	for i := range bars {
		if !bars[i].Valid() {
			return nil, fmt.Errorf("invalid bar %s %s: close must be positive",
				bars[i].Instrument, bars[i].Date.Format("2006-01-02"))
		}
	}

	query := `
		WITH prior AS (
			SELECT close_price FROM quant.bars
			WHERE instrument_id = $1 AND bar_date = $2
		)
		INSERT INTO quant.bars (instrument_id, bar_date, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (instrument_id, bar_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume
		RETURNING (SELECT close_price FROM prior)
	`

	for _, b := range bars {
		var oldClose *float64
		err := r.pool.QueryRow(ctx, query,
			b.Instrument, b.Date, b.Open, b.High, b.Low, b.Close, b.Volume,
		).Scan(&oldClose)
		if err != nil {
			return nil, fmt.Errorf("save bar %s %s: %w",
				b.Instrument, b.Date.Format("2006-01-02"), err)
		}

		switch {
		case oldClose == nil:
			result.Inserted++
		default:
			result.Updated++
			if *oldClose != b.Close {
				result.Restatements = append(result.Restatements, Restatement{
					Instrument: b.Instrument,
					Date:       b.Date,
					OldClose:   *oldClose,
					NewClose:   b.Close,
				})
			}
		}
	}
	return result, nil
}

// GetBars returns bars for an instrument in [from, to], ascending.
func (r *Repository) GetBars(ctx context.Context, instrument string, from, to time.Time) ([]contracts.Bar, error) {
	query := `
		SELECT instrument_id, bar_date, open_price, high_price, low_price, close_price, volume
		FROM quant.bars
		WHERE instrument_id = $1 AND bar_date BETWEEN $2 AND $3
		ORDER BY bar_date ASC
	`

	rows, err := r.pool.Query(ctx, query, instrument, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Instrument, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// TrailingBars returns the last n bars up to and including asOf,
// ascending by date. Fewer than n bars may exist.
func (r *Repository) TrailingBars(ctx context.Context, instrument string, asOf time.Time, n int) ([]contracts.Bar, error) {
	query := `
		SELECT instrument_id, bar_date, open_price, high_price, low_price, close_price, volume
		FROM (
			SELECT instrument_id, bar_date, open_price, high_price, low_price, close_price, volume
			FROM quant.bars
			WHERE instrument_id = $1 AND bar_date <= $2
			ORDER BY bar_date DESC
			LIMIT $3
		) t
		ORDER BY bar_date ASC
	`

	rows, err := r.pool.Query(ctx, query, instrument, asOf, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []contracts.Bar
	for rows.Next() {
		var b contracts.Bar
		if err := rows.Scan(&b.Instrument, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// StoredDates returns the bar dates stored for an instrument in
// [from, to], ascending. Used for gap detection.
func (r *Repository) StoredDates(ctx context.Context, instrument string, from, to time.Time) ([]time.Time, error) {
	query := `
		SELECT bar_date FROM quant.bars
		WHERE instrument_id = $1 AND bar_date BETWEEN $2 AND $3
		ORDER BY bar_date ASC
	`

	rows, err := r.pool.Query(ctx, query, instrument, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// LatestDate returns the most recent bar date for an instrument, or a
// zero time when no bars exist.
func (r *Repository) LatestDate(ctx context.Context, instrument string) (time.Time, error) {
	var latest *time.Time
	err := r.pool.QueryRow(ctx,
		`SELECT MAX(bar_date) FROM quant.bars WHERE instrument_id = $1`,
		instrument).Scan(&latest)
	if err != nil {
		return time.Time{}, err
	}
	if latest == nil {
		return time.Time{}, nil
	}
	return *latest, nil
}

// LastCloses returns the most recent close on or before asOf for each
// instrument, keyed by instrument ID.
func (r *Repository) LastCloses(ctx context.Context, instruments []string, asOf time.Time) (map[string]float64, error) {
	query := `
		SELECT DISTINCT ON (instrument_id) instrument_id, close_price
		FROM quant.bars
		WHERE instrument_id = ANY($1) AND bar_date <= $2
		ORDER BY instrument_id, bar_date DESC
	`

	rows, err := r.pool.Query(ctx, query, instruments, asOf)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	closes := make(map[string]float64)
	for rows.Next() {
		var id string
		var c float64
		if err := rows.Scan(&id, &c); err != nil {
			return nil, err
		}
		closes[id] = c
	}
	return closes, rows.Err()
}
