package lifecycle

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/contracts"
)

// TradeRepository persists broker-side trade records.
type TradeRepository struct {
	pool *pgxpool.Pool
}

// NewTradeRepository creates a new trade repository.
func NewTradeRepository(pool *pgxpool.Pool) *TradeRepository {
	return &TradeRepository{pool: pool}
}

// Create inserts a trade.
func (r *TradeRepository) Create(ctx context.Context, t *contracts.Trade) error {
	query := `
		INSERT INTO quant.trades
			(trade_id, signal_id, portfolio, symbol, direction, quantity,
			 filled_qty, filled_price, broker_ref, status, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
	`
	_, err := r.pool.Exec(ctx, query,
		t.ID, t.SignalID, t.Portfolio, t.Symbol, string(t.Direction),
		t.Quantity, t.FilledQty, t.FilledPrice, t.BrokerRef, string(t.Status))
	return err
}

// Update writes the mutable fields of a trade.
func (r *TradeRepository) Update(ctx context.Context, t *contracts.Trade) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE quant.trades SET
			filled_qty = $2,
			filled_price = $3,
			broker_ref = $4,
			status = $5,
			updated_at = NOW()
		WHERE trade_id = $1`,
		t.ID, t.FilledQty, t.FilledPrice, t.BrokerRef, string(t.Status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return contracts.ErrNotFound
	}
	return nil
}

// Get loads one trade.
func (r *TradeRepository) Get(ctx context.Context, id uuid.UUID) (*contracts.Trade, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT trade_id, signal_id, portfolio, symbol, direction, quantity,
		       filled_qty, filled_price, broker_ref, status, submitted_at, updated_at
		FROM quant.trades
		WHERE trade_id = $1`, id)

	t, err := scanTrade(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, contracts.ErrNotFound
	}
	return t, err
}

// ListOpen returns trades still awaiting a terminal status.
func (r *TradeRepository) ListOpen(ctx context.Context, portfolio string) ([]contracts.Trade, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT trade_id, signal_id, portfolio, symbol, direction, quantity,
		       filled_qty, filled_price, broker_ref, status, submitted_at, updated_at
		FROM quant.trades
		WHERE portfolio = $1 AND status IN ('SUBMITTED', 'PARTIALLY_FILLED')
		ORDER BY submitted_at`, portfolio)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []contracts.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, *t)
	}
	return trades, rows.Err()
}

func scanTrade(row pgx.Row) (*contracts.Trade, error) {
	var t contracts.Trade
	var direction, status string
	err := row.Scan(&t.ID, &t.SignalID, &t.Portfolio, &t.Symbol, &direction,
		&t.Quantity, &t.FilledQty, &t.FilledPrice, &t.BrokerRef, &status,
		&t.SubmittedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Direction = contracts.Direction(direction)
	t.Status = contracts.TradeStatus(status)
	return &t, nil
}
