package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/internal/indicator"
	"github.com/wonny/rebalance/internal/ranking"
	"github.com/wonny/rebalance/pkg/config"
)

// MomentumStrategy ranks the universe by skip-adjusted trailing return
// and holds the top tier, equal-weighted.
type MomentumStrategy struct {
	lookback   int
	skip       int
	tiers      int
	topTier    int
	cashBuffer decimal.Decimal
}

// NewMomentumStrategy creates the momentum-quintile strategy from
// configuration.
func NewMomentumStrategy(cfg *config.Config) *MomentumStrategy {
	return &MomentumStrategy{
		lookback:   cfg.Strategy.LookbackDays,
		skip:       cfg.Strategy.SkipDays,
		tiers:      cfg.Strategy.Tiers,
		topTier:    cfg.Strategy.TopTier,
		cashBuffer: decimal.NewFromFloat(cfg.Rebalance.CashBufferPct),
	}
}

// Kind implements contracts.Strategy.
func (s *MomentumStrategy) Kind() string { return "momentum" }

// RequiredBars implements contracts.Strategy.
func (s *MomentumStrategy) RequiredBars() int { return s.lookback + 1 }

// ComputeIndicators scores every instrument with sufficient history.
// Instruments with too few bars get an insufficient marker, never a
// zero score.
func (s *MomentumStrategy) ComputeIndicators(asOf time.Time, bars map[string][]contracts.Bar) (*contracts.IndicatorSet, error) {
	set := &contracts.IndicatorSet{AsOf: asOf}

	for instrument, series := range bars {
		value := contracts.IndicatorValue{
			Instrument: instrument,
			AsOf:       asOf,
			Kind:       contracts.KindMomentum,
		}

		score, err := indicator.Momentum(contracts.Closes(series), s.lookback, s.skip)
		if err == nil {
			value.Value = score
			value.Sufficient = true
		}
		set.Values = append(set.Values, value)
	}

	sort.Slice(set.Values, func(i, j int) bool {
		return set.Values[i].Instrument < set.Values[j].Instrument
	})
	return set, nil
}

// Classify partitions the scored instruments into tiers.
func (s *MomentumStrategy) Classify(asOf time.Time, set *contracts.IndicatorSet) (*contracts.Classification, error) {
	return &contracts.Classification{
		AsOf:  asOf,
		Tiers: ranking.AssignTiers(asOf, set.ByKind(contracts.KindMomentum), s.tiers),
	}, nil
}

// PlanSignals emits sells for held symbols that dropped out of the top
// tier, then equal-weighted buys for symbols newly in it. Estimated
// sale proceeds count toward the investable cash before the buffer is
// applied.
func (s *MomentumStrategy) PlanSignals(in *contracts.PlanInput) ([]contracts.Signal, error) {
	target := make(map[string]*contracts.Instrument) // trade symbol -> instrument
	for _, t := range in.Classification.Tiers {
		if t.Tier > s.topTier {
			continue
		}
		inst := in.Instruments[t.Instrument]
		if inst == nil {
			return nil, fmt.Errorf("%w: %s", contracts.ErrInvalidInstrument, t.Instrument)
		}
		target[inst.TradeSymbol()] = inst
	}

	held := make(map[string]contracts.Holding)
	for _, h := range in.Holdings {
		if h.Quantity.IsPositive() {
			held[h.Symbol] = h
		}
	}

	symbolToInstrument := make(map[string]string)
	for id, inst := range in.Instruments {
		symbolToInstrument[inst.TradeSymbol()] = id
	}

	// Holdings excluded from ranking for lack of history were never
	// placed in a tier, so dropping out of the top tier says nothing
	// about them. They are held as-is until they can be scored.
	unranked := make(map[string]bool)
	if in.Indicators != nil {
		for _, v := range in.Indicators.Values {
			if v.Kind == contracts.KindMomentum && !v.Sufficient {
				unranked[v.Instrument] = true
			}
		}
	}

	var signals []contracts.Signal
	cash := in.Cash

	// Sells first: exited symbols are liquidated and their estimated
	// proceeds fund the buys.
	sellSymbols := make([]string, 0, len(held))
	for symbol := range held {
		if _, keep := target[symbol]; keep {
			continue
		}
		if unranked[symbolToInstrument[symbol]] {
			continue
		}
		sellSymbols = append(sellSymbols, symbol)
	}
	sort.Strings(sellSymbols)

	for _, symbol := range sellSymbols {
		h := held[symbol]
		instrument := symbolToInstrument[symbol]
		if instrument == "" {
			instrument = symbol
		}

		var proceeds decimal.Decimal
		if close, ok := in.LastClose[instrument]; ok {
			proceeds = h.Quantity.Mul(decimal.NewFromFloat(close))
		}
		cash = cash.Add(proceeds)

		signals = append(signals, contracts.Signal{
			ID:         contracts.SignalID(in.Portfolio, instrument, in.AsOf, contracts.DirectionSell),
			Portfolio:  in.Portfolio,
			Instrument: instrument,
			Symbol:     symbol,
			AsOf:       in.AsOf,
			Direction:  contracts.DirectionSell,
			Reason:     contracts.ReasonQuintileExit,
			Quantity:   h.Quantity,
			Notional:   proceeds,
			Status:     contracts.SignalPending,
		})
	}

	// Buys: equal weight over the new entries.
	buySymbols := make([]string, 0, len(target))
	for symbol := range target {
		if _, already := held[symbol]; !already {
			buySymbols = append(buySymbols, symbol)
		}
	}
	sort.Strings(buySymbols)

	if len(buySymbols) == 0 {
		return signals, nil
	}

	investable := cash.Mul(decimal.NewFromInt(1).Sub(s.cashBuffer))
	if !investable.IsPositive() {
		return nil, contracts.ErrInsufficientFunds
	}
	slot := investable.Div(decimal.NewFromInt(int64(len(buySymbols))))

	for _, symbol := range buySymbols {
		inst := target[symbol]

		close, ok := in.LastClose[inst.ID]
		if !ok || close <= 0 {
			// No price for the as-of date; the instrument is skipped
			// rather than sized blind.
			continue
		}
		price := decimal.NewFromFloat(close)

		qty := slot.Div(price).Floor()
		if !qty.IsPositive() {
			continue
		}

		signals = append(signals, contracts.Signal{
			ID:         contracts.SignalID(in.Portfolio, inst.ID, in.AsOf, contracts.DirectionBuy),
			Portfolio:  in.Portfolio,
			Instrument: inst.ID,
			Symbol:     symbol,
			AsOf:       in.AsOf,
			Direction:  contracts.DirectionBuy,
			Reason:     contracts.ReasonQuintileEntry,
			Quantity:   qty,
			Notional:   qty.Mul(price),
			Status:     contracts.SignalPending,
		})
	}

	return signals, nil
}
