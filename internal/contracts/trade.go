package contracts

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeStatus is the lifecycle state of an order submitted to the broker.
type TradeStatus string

const (
	TradePending         TradeStatus = "PENDING"
	TradeSubmitted       TradeStatus = "SUBMITTED"
	TradePartiallyFilled TradeStatus = "PARTIALLY_FILLED"
	TradeFilled          TradeStatus = "FILLED"
	TradeRejected        TradeStatus = "REJECTED"
	TradeCancelled       TradeStatus = "CANCELLED"
)

// Terminal reports whether the trade can no longer change state.
func (s TradeStatus) Terminal() bool {
	switch s {
	case TradeFilled, TradeRejected, TradeCancelled:
		return true
	}
	return false
}

// CanTransition reports whether moving from s to next is a legal
// lifecycle step. Terminal states accept no transitions.
func (s TradeStatus) CanTransition(next TradeStatus) bool {
	switch s {
	case TradePending:
		return next == TradeSubmitted || next == TradeRejected || next == TradeCancelled
	case TradeSubmitted:
		return next == TradePartiallyFilled || next == TradeFilled ||
			next == TradeRejected || next == TradeCancelled
	case TradePartiallyFilled:
		return next == TradeFilled || next == TradeCancelled
	}
	return false
}

// Trade is the broker-side record of an executed signal.
type Trade struct {
	ID          uuid.UUID       `json:"id"`
	SignalID    uuid.UUID       `json:"signal_id"`
	Portfolio   string          `json:"portfolio"`
	Symbol      string          `json:"symbol"`
	Direction   Direction       `json:"direction"`
	Quantity    decimal.Decimal `json:"quantity"`
	FilledQty   decimal.Decimal `json:"filled_qty"`
	FilledPrice decimal.Decimal `json:"filled_price"`
	BrokerRef   string          `json:"broker_ref"` // broker-assigned order id
	Status      TradeStatus     `json:"status"`
	SubmittedAt time.Time       `json:"submitted_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}
