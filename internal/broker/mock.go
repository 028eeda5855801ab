package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wonny/rebalance/internal/contracts"
)

type mockOrder struct {
	req    contracts.OrderRequest
	status contracts.OrderStatus
}

// MockBroker is an in-memory broker for tests and paper runs. Orders
// fill instantly at the configured price unless a scripted behavior
// says otherwise.
type MockBroker struct {
	mu        sync.Mutex
	cash      decimal.Decimal
	prices    map[string]decimal.Decimal
	positions map[string]contracts.Position
	orders    map[string]*mockOrder

	// RejectSymbols lists symbols whose orders are rejected.
	RejectSymbols map[string]bool

	// PendingSymbols lists symbols whose orders stay submitted until
	// FillPending is called.
	PendingSymbols map[string]bool

	// PartialFills maps symbols to a quantity that fills immediately;
	// the remainder stays open until FillPending or CancelOpen.
	PartialFills map[string]decimal.Decimal

	Submitted []contracts.OrderRequest
}

// NewMockBroker creates a mock broker with starting cash.
func NewMockBroker(cash decimal.Decimal) *MockBroker {
	return &MockBroker{
		cash:           cash,
		prices:         make(map[string]decimal.Decimal),
		positions:      make(map[string]contracts.Position),
		orders:         make(map[string]*mockOrder),
		RejectSymbols:  make(map[string]bool),
		PendingSymbols: make(map[string]bool),
		PartialFills:   make(map[string]decimal.Decimal),
	}
}

// SetPrice fixes the fill price for a symbol.
func (m *MockBroker) SetPrice(symbol string, price decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prices[symbol] = price
}

// SetPosition seeds an existing position.
func (m *MockBroker) SetPosition(symbol string, qty, avgCost decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[symbol] = contracts.Position{Symbol: symbol, Quantity: qty, AvgCost: avgCost}
}

// SubmitOrder implements contracts.Broker.
func (m *MockBroker) SubmitOrder(ctx context.Context, req contracts.OrderRequest) (*contracts.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Submitted = append(m.Submitted, req)

	if m.RejectSymbols[req.Symbol] {
		return nil, fmt.Errorf("%w: %s", contracts.ErrOrderRejected, req.Symbol)
	}

	order := &mockOrder{
		req:    req,
		status: contracts.OrderStatus{BrokerRef: uuid.NewString()},
	}

	switch {
	case m.PendingSymbols[req.Symbol]:
		order.status.Status = contracts.TradeSubmitted
	case m.PartialFills[req.Symbol].IsPositive():
		m.fillQty(order, m.PartialFills[req.Symbol])
	default:
		m.fill(order)
	}

	m.orders[order.status.BrokerRef] = order
	cp := order.status
	return &cp, nil
}

func (m *MockBroker) fill(order *mockOrder) {
	m.fillQty(order, order.req.Quantity.Sub(order.status.FilledQty))
}

// fillQty fills qty more shares of the order at the configured price.
func (m *MockBroker) fillQty(order *mockOrder, qty decimal.Decimal) {
	price, ok := m.prices[order.req.Symbol]
	if !ok {
		price = decimal.NewFromInt(100)
	}

	order.status.FilledQty = order.status.FilledQty.Add(qty)
	order.status.FilledPrice = price
	if order.status.FilledQty.GreaterThanOrEqual(order.req.Quantity) {
		order.status.Status = contracts.TradeFilled
	} else {
		order.status.Status = contracts.TradePartiallyFilled
	}

	pos := m.positions[order.req.Symbol]
	pos.Symbol = order.req.Symbol
	switch order.req.Direction {
	case contracts.DirectionBuy:
		pos.Quantity = pos.Quantity.Add(qty)
		m.cash = m.cash.Sub(qty.Mul(price))
	case contracts.DirectionSell:
		pos.Quantity = pos.Quantity.Sub(qty)
		m.cash = m.cash.Add(qty.Mul(price))
	}

	if pos.Quantity.IsPositive() {
		m.positions[order.req.Symbol] = pos
	} else {
		delete(m.positions, order.req.Symbol)
	}
}

// FillPending fills every order that is not yet fully filled.
func (m *MockBroker) FillPending() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, order := range m.orders {
		switch order.status.Status {
		case contracts.TradeSubmitted, contracts.TradePartiallyFilled:
			m.fill(order)
		}
	}
}

// CancelOpen cancels every open order, keeping whatever quantity
// already filled.
func (m *MockBroker) CancelOpen() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, order := range m.orders {
		switch order.status.Status {
		case contracts.TradeSubmitted, contracts.TradePartiallyFilled:
			order.status.Status = contracts.TradeCancelled
		}
	}
}

// GetOrderStatus implements contracts.Broker.
func (m *MockBroker) GetOrderStatus(ctx context.Context, brokerRef string) (*contracts.OrderStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order, ok := m.orders[brokerRef]
	if !ok {
		return nil, contracts.ErrNotFound
	}
	cp := order.status
	return &cp, nil
}

// GetPositions implements contracts.Broker.
func (m *MockBroker) GetPositions(ctx context.Context) ([]contracts.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]contracts.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p)
	}
	return out, nil
}

// GetCash implements contracts.Broker.
func (m *MockBroker) GetCash(ctx context.Context) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cash, nil
}
