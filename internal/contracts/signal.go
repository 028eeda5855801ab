package contracts

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction of a planned or executed trade.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// SignalReason records why the planner emitted a signal.
type SignalReason string

const (
	ReasonQuintileEntry SignalReason = "quintile-entry"
	ReasonQuintileExit  SignalReason = "quintile-exit"
	ReasonGoldenCross   SignalReason = "golden-cross"
	ReasonDeathCross    SignalReason = "death-cross"
)

// SignalStatus is the lifecycle state of a signal.
type SignalStatus string

const (
	SignalPending   SignalStatus = "PENDING"
	SignalSubmitted SignalStatus = "SUBMITTED"
	SignalFilled    SignalStatus = "FILLED"
	SignalRejected  SignalStatus = "REJECTED"
	SignalCancelled SignalStatus = "CANCELLED"
)

// signalNamespace scopes deterministic signal IDs to this system.
var signalNamespace = uuid.MustParse("7e3f1a52-9c44-4b7d-8f21-6a0d2e9b5c18")

// Signal is one planned trade intention produced by a rebalance cycle.
type Signal struct {
	ID         uuid.UUID       `json:"id"`
	Portfolio  string          `json:"portfolio"`
	Instrument string          `json:"instrument"`
	Symbol     string          `json:"symbol"` // tradable symbol orders go against
	AsOf       time.Time       `json:"as_of"`
	Direction  Direction       `json:"direction"`
	Reason     SignalReason    `json:"reason"`
	Quantity   decimal.Decimal `json:"quantity"`
	Notional   decimal.Decimal `json:"notional"`
	Status     SignalStatus    `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SignalID derives the deterministic identifier for a signal. Replanning
// the same portfolio, instrument, as-of date, and direction always yields
// the same ID, which is what makes signal creation idempotent.
func SignalID(portfolio, instrument string, asOf time.Time, direction Direction) uuid.UUID {
	key := fmt.Sprintf("%s|%s|%s|%s", portfolio, instrument, asOf.Format("2006-01-02"), direction)
	return uuid.NewSHA1(signalNamespace, []byte(key))
}

// Terminal reports whether the signal can no longer change state.
func (s SignalStatus) Terminal() bool {
	switch s {
	case SignalFilled, SignalRejected, SignalCancelled:
		return true
	}
	return false
}
