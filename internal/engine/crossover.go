package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/internal/indicator"
	"github.com/wonny/rebalance/pkg/config"
)

// CrossoverStrategy trades moving-average crossovers on index
// instruments through their ETF proxies: a golden cross buys a fixed
// quantity of the proxy, a death cross liquidates it.
type CrossoverStrategy struct {
	shortWindow int
	longWindow  int
	quantity    decimal.Decimal
}

// NewCrossoverStrategy creates the MA-crossover strategy from
// configuration.
func NewCrossoverStrategy(cfg *config.Config) *CrossoverStrategy {
	return &CrossoverStrategy{
		shortWindow: cfg.Strategy.ShortWindow,
		longWindow:  cfg.Strategy.LongWindow,
		quantity:    decimal.NewFromInt(int64(cfg.Rebalance.CrossoverQty)),
	}
}

// Kind implements contracts.Strategy.
func (s *CrossoverStrategy) Kind() string { return "crossover" }

// RequiredBars implements contracts.Strategy.
func (s *CrossoverStrategy) RequiredBars() int { return s.longWindow }

// ComputeIndicators derives the short and long moving averages for
// every instrument with enough history.
func (s *CrossoverStrategy) ComputeIndicators(asOf time.Time, bars map[string][]contracts.Bar) (*contracts.IndicatorSet, error) {
	set := &contracts.IndicatorSet{AsOf: asOf}

	for instrument, series := range bars {
		closes := contracts.Closes(series)

		shortVal := contracts.IndicatorValue{
			Instrument: instrument, AsOf: asOf, Kind: contracts.MAKind(s.shortWindow),
		}
		if ma, err := indicator.SMA(closes, s.shortWindow); err == nil {
			shortVal.Value = ma
			shortVal.Sufficient = true
		}

		longVal := contracts.IndicatorValue{
			Instrument: instrument, AsOf: asOf, Kind: contracts.MAKind(s.longWindow),
		}
		if ma, err := indicator.SMA(closes, s.longWindow); err == nil {
			longVal.Value = ma
			longVal.Sufficient = true
		}

		set.Values = append(set.Values, shortVal, longVal)
	}

	sort.Slice(set.Values, func(i, j int) bool {
		if set.Values[i].Instrument != set.Values[j].Instrument {
			return set.Values[i].Instrument < set.Values[j].Instrument
		}
		return set.Values[i].Kind < set.Values[j].Kind
	})
	return set, nil
}

// Classify records the crossover state of every instrument with both
// averages available.
func (s *CrossoverStrategy) Classify(asOf time.Time, set *contracts.IndicatorSet) (*contracts.Classification, error) {
	short := set.ByKind(contracts.MAKind(s.shortWindow))
	long := set.ByKind(contracts.MAKind(s.longWindow))

	c := &contracts.Classification{AsOf: asOf}
	for instrument, shortMA := range short {
		longMA, ok := long[instrument]
		if !ok {
			continue
		}
		c.States = append(c.States, contracts.CrossState{
			Instrument: instrument,
			AsOf:       asOf,
			Side:       indicator.CrossSide(shortMA, longMA),
			ShortMA:    shortMA,
			LongMA:     longMA,
		})
	}

	sort.Slice(c.States, func(i, j int) bool {
		return c.States[i].Instrument < c.States[j].Instrument
	})
	return c, nil
}

// PlanSignals emits signals only on state transitions between two known
// states: below to above is a golden cross (buy), above to below is a
// death cross (sell). An instrument appearing for the first time
// establishes state without trading.
func (s *CrossoverStrategy) PlanSignals(in *contracts.PlanInput) ([]contracts.Signal, error) {
	held := make(map[string]contracts.Holding)
	for _, h := range in.Holdings {
		if h.Quantity.IsPositive() {
			held[h.Symbol] = h
		}
	}

	var sells, buys []contracts.Signal
	for _, state := range in.Classification.States {
		if in.Previous == nil {
			continue
		}
		prevSide, known := in.Previous.StateOf(state.Instrument)
		if !known || prevSide == state.Side {
			continue
		}

		inst := in.Instruments[state.Instrument]
		if inst == nil {
			return nil, fmt.Errorf("%w: %s", contracts.ErrInvalidInstrument, state.Instrument)
		}
		symbol := inst.TradeSymbol()

		switch state.Side {
		case contracts.CrossAbove:
			if _, already := held[symbol]; already {
				continue
			}
			var notional decimal.Decimal
			if close, ok := in.LastClose[state.Instrument]; ok {
				notional = s.quantity.Mul(decimal.NewFromFloat(close))
			}
			buys = append(buys, contracts.Signal{
				ID:         contracts.SignalID(in.Portfolio, state.Instrument, in.AsOf, contracts.DirectionBuy),
				Portfolio:  in.Portfolio,
				Instrument: state.Instrument,
				Symbol:     symbol,
				AsOf:       in.AsOf,
				Direction:  contracts.DirectionBuy,
				Reason:     contracts.ReasonGoldenCross,
				Quantity:   s.quantity,
				Notional:   notional,
				Status:     contracts.SignalPending,
			})

		case contracts.CrossBelow:
			h, ok := held[symbol]
			if !ok {
				continue
			}
			var notional decimal.Decimal
			if close, ok := in.LastClose[state.Instrument]; ok {
				notional = h.Quantity.Mul(decimal.NewFromFloat(close))
			}
			sells = append(sells, contracts.Signal{
				ID:         contracts.SignalID(in.Portfolio, state.Instrument, in.AsOf, contracts.DirectionSell),
				Portfolio:  in.Portfolio,
				Instrument: state.Instrument,
				Symbol:     symbol,
				AsOf:       in.AsOf,
				Direction:  contracts.DirectionSell,
				Reason:     contracts.ReasonDeathCross,
				Quantity:   h.Quantity,
				Notional:   notional,
				Status:     contracts.SignalPending,
			})
		}
	}

	return append(sells, buys...), nil
}
