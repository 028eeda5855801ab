package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/config"
)

var asOf = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func momentumStrategy() *MomentumStrategy {
	return NewMomentumStrategy(&config.Config{
		Strategy: config.StrategyConfig{
			Kind: "momentum", LookbackDays: 252, SkipDays: 21, Tiers: 5, TopTier: 1,
		},
		Rebalance: config.RebalanceConfig{CashBufferPct: 0.05},
	})
}

// barSeries builds n daily bars ending at asOf with a linear close ramp
// from start to end.
func barSeries(instrument string, n int, start, end float64) []contracts.Bar {
	bars := make([]contracts.Bar, n)
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		bars[i] = contracts.Bar{
			Instrument: instrument,
			Date:       asOf.AddDate(0, 0, i-n+1),
			Close:      start + (end-start)*frac,
			Volume:     1000,
		}
	}
	return bars
}

func instruments(ids ...string) map[string]*contracts.Instrument {
	m := make(map[string]*contracts.Instrument, len(ids))
	for _, id := range ids {
		m[id] = &contracts.Instrument{ID: id, Symbol: id, Active: true}
	}
	return m
}

func TestComputeIndicatorsSkipsShortHistory(t *testing.T) {
	s := momentumStrategy()

	set, err := s.ComputeIndicators(asOf, map[string][]contracts.Bar{
		"FULL":  barSeries("FULL", 253, 100, 120),
		"SHORT": barSeries("SHORT", 60, 100, 120),
	})
	require.NoError(t, err)

	byInst := make(map[string]contracts.IndicatorValue)
	for _, v := range set.Values {
		byInst[v.Instrument] = v
	}

	assert.True(t, byInst["FULL"].Sufficient)
	assert.False(t, byInst["SHORT"].Sufficient,
		"short history must be marked insufficient, not scored zero")

	scores := set.ByKind(contracts.KindMomentum)
	_, present := scores["SHORT"]
	assert.False(t, present)
}

func TestPlanSignalsEqualWeightSizing(t *testing.T) {
	s := momentumStrategy()

	// Five new tier-1 entries, $100k cash, 5% buffer: $19,000 per slot.
	ids := []string{"A", "B", "C", "D", "E"}
	var tiers []contracts.TierAssignment
	lastClose := make(map[string]float64)
	for i, id := range ids {
		tiers = append(tiers, contracts.TierAssignment{
			Instrument: id, AsOf: asOf, Tier: 1, Rank: i + 1, Score: 0.5 - float64(i)*0.01,
		})
		lastClose[id] = 100
	}

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: &contracts.Classification{AsOf: asOf, Tiers: tiers},
		Cash:           decimal.NewFromInt(100000),
		LastClose:      lastClose,
		Instruments:    instruments(ids...),
	})
	require.NoError(t, err)
	require.Len(t, signals, 5)

	for _, sig := range signals {
		assert.Equal(t, contracts.DirectionBuy, sig.Direction)
		assert.Equal(t, contracts.ReasonQuintileEntry, sig.Reason)
		assert.True(t, sig.Quantity.Equal(decimal.NewFromInt(190)), "qty %s", sig.Quantity)
		assert.True(t, sig.Notional.Equal(decimal.NewFromInt(19000)), "notional %s", sig.Notional)
	}
}

func TestPlanSignalsSellsBeforeBuys(t *testing.T) {
	s := momentumStrategy()

	// OLD dropped out of tier 1, NEW entered. Sale proceeds fund the buy.
	classification := &contracts.Classification{AsOf: asOf, Tiers: []contracts.TierAssignment{
		{Instrument: "NEW", AsOf: asOf, Tier: 1, Rank: 1, Score: 0.4},
		{Instrument: "OLD", AsOf: asOf, Tier: 3, Rank: 3, Score: 0.1},
	}}

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: classification,
		Holdings: []contracts.Holding{
			{Portfolio: "main", Symbol: "OLD", Quantity: decimal.NewFromInt(100), AvgCost: decimal.NewFromInt(90)},
		},
		Cash:        decimal.NewFromInt(1000),
		LastClose:   map[string]float64{"NEW": 50, "OLD": 100},
		Instruments: instruments("NEW", "OLD"),
	})
	require.NoError(t, err)
	require.Len(t, signals, 2)

	assert.Equal(t, contracts.DirectionSell, signals[0].Direction)
	assert.Equal(t, "OLD", signals[0].Instrument)
	assert.Equal(t, contracts.ReasonQuintileExit, signals[0].Reason)

	assert.Equal(t, contracts.DirectionBuy, signals[1].Direction)
	assert.Equal(t, "NEW", signals[1].Instrument)

	// (1000 + 100*100) * 0.95 / 1 = 10450 investable at price 50.
	assert.True(t, signals[1].Quantity.Equal(decimal.NewFromInt(209)), "qty %s", signals[1].Quantity)
}

func TestPlanSignalsKeepsExistingTopTierHoldings(t *testing.T) {
	s := momentumStrategy()

	classification := &contracts.Classification{AsOf: asOf, Tiers: []contracts.TierAssignment{
		{Instrument: "KEEP", AsOf: asOf, Tier: 1, Rank: 1, Score: 0.4},
	}}

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Classification: classification,
		Holdings: []contracts.Holding{
			{Portfolio: "main", Symbol: "KEEP", Quantity: decimal.NewFromInt(10)},
		},
		Cash:        decimal.NewFromInt(100000),
		LastClose:   map[string]float64{"KEEP": 100},
		Instruments: instruments("KEEP"),
	})
	require.NoError(t, err)

	assert.Empty(t, signals, "a holding that stays in tier 1 is untouched")
}

func TestPlanSignalsHoldsUnrankedInstruments(t *testing.T) {
	s := momentumStrategy()

	// HLD has too little history to rank: it carries an insufficient
	// indicator marker and no tier assignment. Absence from the top
	// tier must not liquidate it.
	set, err := s.ComputeIndicators(asOf, map[string][]contracts.Bar{
		"A":   barSeries("A", 253, 100, 130),
		"B":   barSeries("B", 253, 100, 125),
		"C":   barSeries("C", 253, 100, 120),
		"D":   barSeries("D", 253, 100, 115),
		"E":   barSeries("E", 253, 100, 110),
		"HLD": barSeries("HLD", 60, 100, 120),
	})
	require.NoError(t, err)

	classification, err := s.Classify(asOf, set)
	require.NoError(t, err)

	signals, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio:      "main",
		AsOf:           asOf,
		Indicators:     set,
		Classification: classification,
		Holdings: []contracts.Holding{
			{Portfolio: "main", Symbol: "A", Quantity: decimal.NewFromInt(100)},
			{Portfolio: "main", Symbol: "HLD", Quantity: decimal.NewFromInt(10)},
		},
		Cash:        decimal.NewFromInt(10000),
		LastClose:   map[string]float64{"A": 130, "B": 125, "C": 120, "D": 115, "E": 110, "HLD": 120},
		Instruments: instruments("A", "B", "C", "D", "E", "HLD"),
	})
	require.NoError(t, err)

	for _, sig := range signals {
		assert.NotEqual(t, "HLD", sig.Instrument,
			"an unrankable holding must not be traded, got %s %s", sig.Direction, sig.Instrument)
	}
}

func TestPlanSignalsDeterministicIDs(t *testing.T) {
	s := momentumStrategy()

	in := &contracts.PlanInput{
		Portfolio: "main",
		AsOf:      asOf,
		Classification: &contracts.Classification{AsOf: asOf, Tiers: []contracts.TierAssignment{
			{Instrument: "A", AsOf: asOf, Tier: 1, Rank: 1, Score: 0.4},
		}},
		Cash:        decimal.NewFromInt(10000),
		LastClose:   map[string]float64{"A": 100},
		Instruments: instruments("A"),
	}

	first, err := s.PlanSignals(in)
	require.NoError(t, err)
	second, err := s.PlanSignals(in)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID, "replanning must produce identical signal IDs")
}

func TestPlanSignalsNoCash(t *testing.T) {
	s := momentumStrategy()

	_, err := s.PlanSignals(&contracts.PlanInput{
		Portfolio: "main",
		AsOf:      asOf,
		Classification: &contracts.Classification{AsOf: asOf, Tiers: []contracts.TierAssignment{
			{Instrument: "A", AsOf: asOf, Tier: 1, Rank: 1, Score: 0.4},
		}},
		Cash:        decimal.Zero,
		LastClose:   map[string]float64{"A": 100},
		Instruments: instruments("A"),
	})

	assert.ErrorIs(t, err, contracts.ErrInsufficientFunds)
}
