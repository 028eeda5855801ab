package contracts

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// BarSource fetches historical daily bars from an external data source.
// Implementations classify failures with the fetch sentinels
// (ErrRateLimited, ErrNotFound, ErrTransient).
type BarSource interface {
	// FetchBars returns bars for the symbol in [from, to], ascending by
	// date. An empty slice with a nil error means the source has no
	// data for the window.
	FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]Bar, error)
}

// OrderRequest is the broker-agnostic order submission payload.
type OrderRequest struct {
	Symbol    string
	Direction Direction
	Quantity  decimal.Decimal
}

// OrderStatus is the broker's view of a submitted order.
type OrderStatus struct {
	BrokerRef   string
	Status      TradeStatus
	FilledQty   decimal.Decimal
	FilledPrice decimal.Decimal
}

// Position is the broker's view of one held symbol.
type Position struct {
	Symbol   string
	Quantity decimal.Decimal
	AvgCost  decimal.Decimal
}

// Broker abstracts the execution venue.
type Broker interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (*OrderStatus, error)
	GetOrderStatus(ctx context.Context, brokerRef string) (*OrderStatus, error)
	GetPositions(ctx context.Context) ([]Position, error)
	GetCash(ctx context.Context) (decimal.Decimal, error)
}

// PlanInput gathers everything a strategy needs to plan signals for one
// portfolio and as-of date.
type PlanInput struct {
	Portfolio      string
	AsOf           time.Time
	Indicators     *IndicatorSet
	Classification *Classification
	Previous       *Classification // nil on cold start
	Holdings       []Holding
	Cash           decimal.Decimal
	LastClose      map[string]float64 // by instrument ID
	Instruments    map[string]*Instrument
}

// Strategy is one ranking-and-planning variant. Implementations are
// pure over their inputs so a dry run and a live run produce identical
// plans.
type Strategy interface {
	Kind() string

	// RequiredBars returns the minimum trailing bars an instrument
	// needs before the strategy can score it.
	RequiredBars() int

	// ComputeIndicators derives indicator values for the as-of date
	// from each instrument's trailing bars, ascending by date.
	ComputeIndicators(asOf time.Time, bars map[string][]Bar) (*IndicatorSet, error)

	// Classify partitions the scored universe into tiers or crossover
	// states for the as-of date.
	Classify(asOf time.Time, set *IndicatorSet) (*Classification, error)

	// PlanSignals turns the classification delta into buy and sell
	// signals, sells first.
	PlanSignals(in *PlanInput) ([]Signal, error)
}
