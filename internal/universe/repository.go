// Package universe manages the investable instrument universe: the set
// of instruments bars are ingested for and signals are planned against.
package universe

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/contracts"
)

// Repository persists the instrument universe.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new universe repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Upsert inserts or updates one instrument.
func (r *Repository) Upsert(ctx context.Context, inst *contracts.Instrument) error {
	query := `
		INSERT INTO quant.instruments (instrument_id, symbol, proxy_symbol, name, active)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (instrument_id) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			proxy_symbol = EXCLUDED.proxy_symbol,
			name = EXCLUDED.name,
			active = EXCLUDED.active
	`

	_, err := r.pool.Exec(ctx, query,
		inst.ID, inst.Symbol, inst.Proxy, inst.Name, inst.Active)
	if err != nil {
		return fmt.Errorf("upsert instrument %s: %w", inst.ID, err)
	}
	return nil
}

// Get retrieves one instrument by ID.
func (r *Repository) Get(ctx context.Context, id string) (*contracts.Instrument, error) {
	query := `
		SELECT instrument_id, symbol, proxy_symbol, name, active
		FROM quant.instruments
		WHERE instrument_id = $1
	`

	var inst contracts.Instrument
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&inst.ID, &inst.Symbol, &inst.Proxy, &inst.Name, &inst.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrInvalidInstrument
	}
	if err != nil {
		return nil, err
	}
	return &inst, nil
}

// ListActive returns all active instruments ordered by ID.
func (r *Repository) ListActive(ctx context.Context) ([]*contracts.Instrument, error) {
	query := `
		SELECT instrument_id, symbol, proxy_symbol, name, active
		FROM quant.instruments
		WHERE active = true
		ORDER BY instrument_id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instruments []*contracts.Instrument
	for rows.Next() {
		var inst contracts.Instrument
		if err := rows.Scan(&inst.ID, &inst.Symbol, &inst.Proxy, &inst.Name, &inst.Active); err != nil {
			return nil, err
		}
		instruments = append(instruments, &inst)
	}
	return instruments, rows.Err()
}

// Deactivate marks an instrument inactive. Its bars and history stay.
func (r *Repository) Deactivate(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quant.instruments SET active = false WHERE instrument_id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate instrument %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrInvalidInstrument
	}
	return nil
}

// Sync upserts the given instruments and deactivates every active
// instrument not in the list. Used when the configured universe changes.
func (r *Repository) Sync(ctx context.Context, instruments []*contracts.Instrument) error {
	keep := make(map[string]bool, len(instruments))
	for _, inst := range instruments {
		if err := r.Upsert(ctx, inst); err != nil {
			return err
		}
		keep[inst.ID] = true
	}

	active, err := r.ListActive(ctx)
	if err != nil {
		return err
	}
	for _, inst := range active {
		if !keep[inst.ID] {
			if err := r.Deactivate(ctx, inst.ID); err != nil {
				return err
			}
		}
	}
	return nil
}
