// Package lifecycle tracks signals through execution: order
// submission, status polling, and the holdings mutations that follow
// fills.
package lifecycle

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/wonny/rebalance/internal/contracts"
)

// HoldingsRepository persists positions. Quantities and average costs
// change only through ApplyFill and SetQuantity.
type HoldingsRepository struct {
	pool *pgxpool.Pool
}

// NewHoldingsRepository creates a new holdings repository.
func NewHoldingsRepository(pool *pgxpool.Pool) *HoldingsRepository {
	return &HoldingsRepository{pool: pool}
}

// List returns the portfolio's holdings with positive quantity.
func (r *HoldingsRepository) List(ctx context.Context, portfolio string) ([]contracts.Holding, error) {
	query := `
		SELECT portfolio, symbol, quantity, avg_cost, updated_at
		FROM quant.holdings
		WHERE portfolio = $1 AND quantity > 0
		ORDER BY symbol
	`

	rows, err := r.pool.Query(ctx, query, portfolio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []contracts.Holding
	for rows.Next() {
		var h contracts.Holding
		if err := rows.Scan(&h.Portfolio, &h.Symbol, &h.Quantity, &h.AvgCost, &h.UpdatedAt); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// ApplyFill blends a fill into the stored holding inside one
// transaction. The row is locked so concurrent fills serialize.
func (r *HoldingsRepository) ApplyFill(ctx context.Context, portfolio, symbol string, direction contracts.Direction, qty, price decimal.Decimal) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin fill tx: %w", err)
	}
	defer tx.Rollback(ctx)

	h := contracts.Holding{Portfolio: portfolio, Symbol: symbol}
	err = tx.QueryRow(ctx, `
		SELECT quantity, avg_cost FROM quant.holdings
		WHERE portfolio = $1 AND symbol = $2
		FOR UPDATE`, portfolio, symbol).Scan(&h.Quantity, &h.AvgCost)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}

	h.ApplyFill(direction, qty, price)

	_, err = tx.Exec(ctx, `
		INSERT INTO quant.holdings (portfolio, symbol, quantity, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (portfolio, symbol) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_cost = EXCLUDED.avg_cost,
			updated_at = NOW()`,
		portfolio, symbol, h.Quantity, h.AvgCost)
	if err != nil {
		return fmt.Errorf("apply fill %s %s: %w", portfolio, symbol, err)
	}

	return tx.Commit(ctx)
}

// SetQuantity overwrites a holding's quantity, used when reconciling
// against the broker's authoritative positions.
func (r *HoldingsRepository) SetQuantity(ctx context.Context, portfolio, symbol string, qty, avgCost decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO quant.holdings (portfolio, symbol, quantity, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (portfolio, symbol) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_cost = EXCLUDED.avg_cost,
			updated_at = NOW()`,
		portfolio, symbol, qty, avgCost)
	return err
}
