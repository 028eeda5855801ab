package rebalance

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/contracts"
)

// SignalRepository persists planned signals. Signal IDs are
// deterministic, so inserts are idempotent: replanning the same date
// conflicts on the primary key and leaves the stored signal untouched.
type SignalRepository struct {
	pool *pgxpool.Pool
}

// NewSignalRepository creates a new signal repository.
func NewSignalRepository(pool *pgxpool.Pool) *SignalRepository {
	return &SignalRepository{pool: pool}
}

// CreateResult reports how a batch insert resolved.
type CreateResult struct {
	Created    int
	Duplicates int
}

// CreateBatch inserts the signals, skipping any whose ID already
// exists.
func (r *SignalRepository) CreateBatch(ctx context.Context, signals []contracts.Signal) (*CreateResult, error) {
	query := `
		INSERT INTO quant.signals
			(signal_id, portfolio, instrument_id, symbol, as_of, direction,
			 reason, quantity, notional, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
		ON CONFLICT (signal_id) DO NOTHING
	`

	result := &CreateResult{}
	for _, s := range signals {
		tag, err := r.pool.Exec(ctx, query,
			s.ID, s.Portfolio, s.Instrument, s.Symbol, s.AsOf,
			string(s.Direction), string(s.Reason), s.Quantity, s.Notional,
			string(s.Status))
		if err != nil {
			return nil, fmt.Errorf("create signal %s: %w", s.ID, err)
		}
		if tag.RowsAffected() == 0 {
			result.Duplicates++
		} else {
			result.Created++
		}
	}
	return result, nil
}

// Get loads one signal.
func (r *SignalRepository) Get(ctx context.Context, id uuid.UUID) (*contracts.Signal, error) {
	query := `
		SELECT signal_id, portfolio, instrument_id, symbol, as_of, direction,
		       reason, quantity, notional, status, created_at, updated_at
		FROM quant.signals
		WHERE signal_id = $1
	`

	var s contracts.Signal
	var direction, reason, status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.Portfolio, &s.Instrument, &s.Symbol, &s.AsOf,
		&direction, &reason, &s.Quantity, &s.Notional, &status,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Direction = contracts.Direction(direction)
	s.Reason = contracts.SignalReason(reason)
	s.Status = contracts.SignalStatus(status)
	return &s, nil
}

// ListPending returns the portfolio's pending signals, sells first so
// execution frees cash before spending it, then by symbol.
func (r *SignalRepository) ListPending(ctx context.Context, portfolio string) ([]contracts.Signal, error) {
	query := `
		SELECT signal_id, portfolio, instrument_id, symbol, as_of, direction,
		       reason, quantity, notional, status, created_at, updated_at
		FROM quant.signals
		WHERE portfolio = $1 AND status = 'PENDING'
		ORDER BY CASE direction WHEN 'SELL' THEN 0 ELSE 1 END, symbol
	`

	rows, err := r.pool.Query(ctx, query, portfolio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var signals []contracts.Signal
	for rows.Next() {
		var s contracts.Signal
		var direction, reason, status string
		if err := rows.Scan(&s.ID, &s.Portfolio, &s.Instrument, &s.Symbol, &s.AsOf,
			&direction, &reason, &s.Quantity, &s.Notional, &status,
			&s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		s.Direction = contracts.Direction(direction)
		s.Reason = contracts.SignalReason(reason)
		s.Status = contracts.SignalStatus(status)
		signals = append(signals, s)
	}
	return signals, rows.Err()
}

// UpdateStatus moves a signal to a new lifecycle state.
func (r *SignalRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status contracts.SignalStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE quant.signals SET status = $2, updated_at = NOW() WHERE signal_id = $1`,
		id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrNotFound
	}
	return nil
}
