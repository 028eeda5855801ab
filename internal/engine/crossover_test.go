package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/config"
)

func crossoverStrategy() *CrossoverStrategy {
	return NewCrossoverStrategy(&config.Config{
		Strategy:  config.StrategyConfig{Kind: "crossover", ShortWindow: 50, LongWindow: 200},
		Rebalance: config.RebalanceConfig{CrossoverQty: 10},
	})
}

func indexInstruments() map[string]*contracts.Instrument {
	return map[string]*contracts.Instrument{
		"SPX": {ID: "SPX", Symbol: "^GSPC", Proxy: "SPY", Active: true},
		"NDX": {ID: "NDX", Symbol: "^NDX", Proxy: "QQQ", Active: true},
	}
}

func classificationWith(side contracts.CrossSide, instrument string) *contracts.Classification {
	return &contracts.Classification{AsOf: asOf, States: []contracts.CrossState{
		{Instrument: instrument, AsOf: asOf, Side: side, ShortMA: 100, LongMA: 100},
	}}
}

func TestCrossoverGoldenCrossBuysProxy(t *testing.T) {
	s := crossoverStrategy()

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: classificationWith(contracts.CrossAbove, "SPX"),
		Previous:       classificationWith(contracts.CrossBelow, "SPX"),
		LastClose:      map[string]float64{"SPX": 5000},
		Instruments:    indexInstruments(),
	})
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, contracts.DirectionBuy, sig.Direction)
	assert.Equal(t, contracts.ReasonGoldenCross, sig.Reason)
	assert.Equal(t, "SPX", sig.Instrument)
	assert.Equal(t, "SPY", sig.Symbol, "orders go against the proxy")
	assert.True(t, sig.Quantity.Equal(decimal.NewFromInt(10)))
}

func TestCrossoverDeathCrossSellsHolding(t *testing.T) {
	s := crossoverStrategy()

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: classificationWith(contracts.CrossBelow, "SPX"),
		Previous:       classificationWith(contracts.CrossAbove, "SPX"),
		Holdings: []contracts.Holding{
			{Portfolio: "main", Symbol: "SPY", Quantity: decimal.NewFromInt(10), AvgCost: decimal.NewFromInt(450)},
		},
		LastClose:   map[string]float64{"SPX": 5000},
		Instruments: indexInstruments(),
	})
	require.NoError(t, err)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, contracts.DirectionSell, sig.Direction)
	assert.Equal(t, contracts.ReasonDeathCross, sig.Reason)
	assert.True(t, sig.Quantity.Equal(decimal.NewFromInt(10)), "death cross liquidates the full position")
}

func TestCrossoverNoEventWithoutStateChange(t *testing.T) {
	s := crossoverStrategy()

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: classificationWith(contracts.CrossAbove, "SPX"),
		Previous:       classificationWith(contracts.CrossAbove, "SPX"),
		LastClose:      map[string]float64{"SPX": 5000},
		Instruments:    indexInstruments(),
	})
	require.NoError(t, err)

	assert.Empty(t, signals, "staying above is not a crossover event")
}

func TestCrossoverColdStartEstablishesStateOnly(t *testing.T) {
	s := crossoverStrategy()

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: classificationWith(contracts.CrossAbove, "SPX"),
		Previous:       nil,
		LastClose:      map[string]float64{"SPX": 5000},
		Instruments:    indexInstruments(),
	})
	require.NoError(t, err)

	assert.Empty(t, signals, "first observation must not trade")
}

func TestCrossoverUnknownPreviousInstrument(t *testing.T) {
	s := crossoverStrategy()

	// Previous classification exists but never saw NDX.
	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: classificationWith(contracts.CrossAbove, "NDX"),
		Previous:       classificationWith(contracts.CrossBelow, "SPX"),
		LastClose:      map[string]float64{"NDX": 20000},
		Instruments:    indexInstruments(),
	})
	require.NoError(t, err)

	assert.Empty(t, signals)
}

func TestCrossoverDeathCrossWithoutHoldingIsNoop(t *testing.T) {
	s := crossoverStrategy()

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: classificationWith(contracts.CrossBelow, "SPX"),
		Previous:       classificationWith(contracts.CrossAbove, "SPX"),
		LastClose:      map[string]float64{"SPX": 5000},
		Instruments:    indexInstruments(),
	})
	require.NoError(t, err)

	assert.Empty(t, signals, "nothing held, nothing to sell")
}
