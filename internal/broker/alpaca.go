// Package broker abstracts the execution venue behind
// contracts.Broker. The production implementation talks to Alpaca; the
// mock drives tests.
package broker

import (
	"context"
	"fmt"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/shopspring/decimal"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// AlpacaBroker implements contracts.Broker over the Alpaca trading API.
type AlpacaBroker struct {
	client *alpaca.Client
	logger *logger.Logger
}

// NewAlpacaBroker creates an Alpaca-backed broker.
func NewAlpacaBroker(cfg *config.Config, log *logger.Logger) *AlpacaBroker {
	return &AlpacaBroker{
		client: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
			BaseURL:   cfg.Alpaca.BaseURL,
		}),
		logger: log,
	}
}

// SubmitOrder places a day market order for the request.
func (b *AlpacaBroker) SubmitOrder(ctx context.Context, req contracts.OrderRequest) (*contracts.OrderStatus, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	side := alpaca.Buy
	if req.Direction == contracts.DirectionSell {
		side = alpaca.Sell
	}

	qty := req.Quantity
	order, err := b.client.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:      req.Symbol,
		Qty:         &qty,
		Side:        side,
		Type:        alpaca.Market,
		TimeInForce: alpaca.Day,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contracts.ErrOrderRejected, err)
	}

	b.logger.WithFields(map[string]interface{}{
		"symbol":    req.Symbol,
		"side":      string(side),
		"qty":       req.Quantity.String(),
		"order_id":  order.ID,
		"status":    string(order.Status),
	}).Info("Order submitted")

	return orderStatus(order), nil
}

// GetOrderStatus polls one order.
func (b *AlpacaBroker) GetOrderStatus(ctx context.Context, brokerRef string) (*contracts.OrderStatus, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	order, err := b.client.GetOrder(brokerRef)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", brokerRef, err)
	}
	return orderStatus(order), nil
}

// GetPositions lists the account's open positions.
func (b *AlpacaBroker) GetPositions(ctx context.Context) ([]contracts.Position, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	positions, err := b.client.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("get positions: %w", err)
	}

	out := make([]contracts.Position, 0, len(positions))
	for _, p := range positions {
		out = append(out, contracts.Position{
			Symbol:   p.Symbol,
			Quantity: p.Qty,
			AvgCost:  p.AvgEntryPrice,
		})
	}
	return out, nil
}

// GetCash returns the account's settled cash.
func (b *AlpacaBroker) GetCash(ctx context.Context) (decimal.Decimal, error) {
	if ctx.Err() != nil {
		return decimal.Zero, ctx.Err()
	}

	account, err := b.client.GetAccount()
	if err != nil {
		return decimal.Zero, fmt.Errorf("get account: %w", err)
	}
	return account.Cash, nil
}

// orderStatus converts an Alpaca order into the broker-agnostic view.
func orderStatus(order *alpaca.Order) *contracts.OrderStatus {
	status := &contracts.OrderStatus{
		BrokerRef: order.ID,
		Status:    mapOrderStatus(string(order.Status)),
		FilledQty: order.FilledQty,
	}
	if order.FilledAvgPrice != nil {
		status.FilledPrice = *order.FilledAvgPrice
	}
	return status
}

func mapOrderStatus(status string) contracts.TradeStatus {
	switch status {
	case "filled":
		return contracts.TradeFilled
	case "partially_filled":
		return contracts.TradePartiallyFilled
	case "rejected":
		return contracts.TradeRejected
	case "canceled", "expired":
		return contracts.TradeCancelled
	default:
		// new, accepted, pending_new and friends are all live.
		return contracts.TradeSubmitted
	}
}
