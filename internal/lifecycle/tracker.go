package lifecycle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/logger"
)

// SignalStore is the slice of the signal repository the tracker needs.
type SignalStore interface {
	Get(ctx context.Context, id uuid.UUID) (*contracts.Signal, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status contracts.SignalStatus) error
}

// TradeStore persists trade records.
type TradeStore interface {
	Create(ctx context.Context, t *contracts.Trade) error
	Update(ctx context.Context, t *contracts.Trade) error
	ListOpen(ctx context.Context, portfolio string) ([]contracts.Trade, error)
}

// HoldingStore mutates positions.
type HoldingStore interface {
	List(ctx context.Context, portfolio string) ([]contracts.Holding, error)
	ApplyFill(ctx context.Context, portfolio, symbol string, direction contracts.Direction, qty, price decimal.Decimal) error
	SetQuantity(ctx context.Context, portfolio, symbol string, qty, avgCost decimal.Decimal) error
}

// Tracker executes signals and follows their trades to a terminal
// state. Holdings change only here, and only on fills.
type Tracker struct {
	signals  SignalStore
	trades   TradeStore
	holdings HoldingStore
	broker   contracts.Broker
	logger   *logger.Logger
}

// NewTracker wires a tracker.
func NewTracker(signals SignalStore, trades TradeStore, holdings HoldingStore, broker contracts.Broker, log *logger.Logger) *Tracker {
	return &Tracker{
		signals:  signals,
		trades:   trades,
		holdings: holdings,
		broker:   broker,
		logger:   log,
	}
}

// ExecuteSignal submits a pending signal's order to the broker. The
// signal must be pending; executing anything else is refused so a
// signal can never be submitted twice.
func (t *Tracker) ExecuteSignal(ctx context.Context, signalID uuid.UUID) (*contracts.Trade, error) {
	signal, err := t.signals.Get(ctx, signalID)
	if err != nil {
		return nil, err
	}
	if signal.Status != contracts.SignalPending {
		return nil, fmt.Errorf("signal %s is %s, not pending", signalID, signal.Status)
	}

	trade := &contracts.Trade{
		ID:          uuid.New(),
		SignalID:    signal.ID,
		Portfolio:   signal.Portfolio,
		Symbol:      signal.Symbol,
		Direction:   signal.Direction,
		Quantity:    signal.Quantity,
		Status:      contracts.TradePending,
		SubmittedAt: time.Now(),
	}
	if err := t.trades.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("create trade: %w", err)
	}

	status, err := t.broker.SubmitOrder(ctx, contracts.OrderRequest{
		Symbol:    signal.Symbol,
		Direction: signal.Direction,
		Quantity:  signal.Quantity,
	})
	if err != nil {
		trade.Status = contracts.TradeRejected
		if updateErr := t.trades.Update(ctx, trade); updateErr != nil {
			t.logger.WithError(updateErr).Error("Failed to record rejected trade")
		}
		if updateErr := t.signals.UpdateStatus(ctx, signal.ID, contracts.SignalRejected); updateErr != nil {
			t.logger.WithError(updateErr).Error("Failed to mark signal rejected")
		}
		return trade, err
	}

	trade.BrokerRef = status.BrokerRef
	trade.Status = contracts.TradeSubmitted
	if err := t.trades.Update(ctx, trade); err != nil {
		return nil, fmt.Errorf("record submission: %w", err)
	}
	if err := t.signals.UpdateStatus(ctx, signal.ID, contracts.SignalSubmitted); err != nil {
		return nil, err
	}

	// Market orders often fill synchronously; absorb the fill now
	// instead of waiting for the next poll.
	if status.Status.Terminal() || status.Status == contracts.TradePartiallyFilled {
		if err := t.applyStatus(ctx, trade, status); err != nil {
			return nil, err
		}
	}

	return trade, nil
}

// PollOpenTrades refreshes every open trade from the broker and applies
// terminal transitions.
func (t *Tracker) PollOpenTrades(ctx context.Context, portfolio string) (int, error) {
	open, err := t.trades.ListOpen(ctx, portfolio)
	if err != nil {
		return 0, err
	}

	settled := 0
	for i := range open {
		trade := &open[i]
		status, err := t.broker.GetOrderStatus(ctx, trade.BrokerRef)
		if err != nil {
			t.logger.WithError(err).WithField("trade", trade.ID.String()).
				Warn("Order status poll failed")
			continue
		}
		if status.Status == trade.Status && !status.FilledQty.GreaterThan(trade.FilledQty) {
			continue
		}
		if err := t.applyStatus(ctx, trade, status); err != nil {
			return settled, err
		}
		if trade.Status.Terminal() {
			settled++
		}
	}
	return settled, nil
}

// applyStatus moves a trade to the broker-reported state and applies
// the newly filled quantity to holdings. Trade.FilledQty records what
// has already been applied, so each filled share mutates holdings
// exactly once across partial fills, the final fill, and a cancel that
// arrives after a partial.
func (t *Tracker) applyStatus(ctx context.Context, trade *contracts.Trade, status *contracts.OrderStatus) error {
	samePartial := trade.Status == contracts.TradePartiallyFilled &&
		status.Status == contracts.TradePartiallyFilled
	if !samePartial && !trade.Status.CanTransition(status.Status) {
		return fmt.Errorf("trade %s: illegal transition %s -> %s",
			trade.ID, trade.Status, status.Status)
	}

	delta := status.FilledQty.Sub(trade.FilledQty)

	trade.Status = status.Status
	trade.FilledQty = status.FilledQty
	trade.FilledPrice = status.FilledPrice
	if err := t.trades.Update(ctx, trade); err != nil {
		return fmt.Errorf("update trade %s: %w", trade.ID, err)
	}

	if delta.IsPositive() {
		if err := t.holdings.ApplyFill(ctx, trade.Portfolio, trade.Symbol,
			trade.Direction, delta, status.FilledPrice); err != nil {
			return fmt.Errorf("apply fill: %w", err)
		}
		t.logger.WithFields(map[string]interface{}{
			"trade":  trade.ID.String(),
			"symbol": trade.Symbol,
			"side":   string(trade.Direction),
			"qty":    delta.String(),
			"price":  status.FilledPrice.String(),
			"status": string(status.Status),
		}).Info("Fill applied to holdings")
	}

	switch status.Status {
	case contracts.TradeFilled:
		if err := t.signals.UpdateStatus(ctx, trade.SignalID, contracts.SignalFilled); err != nil {
			return err
		}

	case contracts.TradeRejected:
		if err := t.signals.UpdateStatus(ctx, trade.SignalID, contracts.SignalRejected); err != nil {
			return err
		}

	case contracts.TradeCancelled:
		if err := t.signals.UpdateStatus(ctx, trade.SignalID, contracts.SignalCancelled); err != nil {
			return err
		}
	}

	return nil
}

// Drift is one divergence between local holdings and the broker.
type Drift struct {
	Symbol    string          `json:"symbol"`
	LocalQty  decimal.Decimal `json:"local_qty"`
	BrokerQty decimal.Decimal `json:"broker_qty"`
}

// SyncReport summarizes a position reconciliation.
type SyncReport struct {
	Portfolio string  `json:"portfolio"`
	Matched   int     `json:"matched"`
	Drifts    []Drift `json:"drifts,omitempty"`
}

// SyncPositions reconciles local holdings against the broker. The
// broker is authoritative for quantities; local average costs are kept
// where the position survives.
func (t *Tracker) SyncPositions(ctx context.Context, portfolio string) (*SyncReport, error) {
	positions, err := t.broker.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("broker positions: %w", err)
	}
	holdings, err := t.holdings.List(ctx, portfolio)
	if err != nil {
		return nil, err
	}

	local := make(map[string]contracts.Holding, len(holdings))
	for _, h := range holdings {
		local[h.Symbol] = h
	}

	report := &SyncReport{Portfolio: portfolio}
	seen := make(map[string]bool, len(positions))

	for _, pos := range positions {
		seen[pos.Symbol] = true
		h, exists := local[pos.Symbol]
		if exists && h.Quantity.Equal(pos.Quantity) {
			report.Matched++
			continue
		}

		report.Drifts = append(report.Drifts, Drift{
			Symbol:    pos.Symbol,
			LocalQty:  h.Quantity,
			BrokerQty: pos.Quantity,
		})

		avgCost := pos.AvgCost
		if exists && !h.AvgCost.IsZero() {
			avgCost = h.AvgCost
		}
		if err := t.holdings.SetQuantity(ctx, portfolio, pos.Symbol, pos.Quantity, avgCost); err != nil {
			return nil, err
		}
	}

	// Local positions the broker no longer has are zeroed.
	for symbol, h := range local {
		if seen[symbol] {
			continue
		}
		report.Drifts = append(report.Drifts, Drift{
			Symbol:    symbol,
			LocalQty:  h.Quantity,
			BrokerQty: decimal.Zero,
		})
		if err := t.holdings.SetQuantity(ctx, portfolio, symbol, decimal.Zero, decimal.Zero); err != nil {
			return nil, err
		}
	}

	sort.Slice(report.Drifts, func(i, j int) bool {
		return report.Drifts[i].Symbol < report.Drifts[j].Symbol
	})

	if len(report.Drifts) > 0 {
		t.logger.WithFields(map[string]interface{}{
			"portfolio": portfolio,
			"drifts":    len(report.Drifts),
		}).Warn("Position drift detected against broker")
	}

	return report, nil
}
