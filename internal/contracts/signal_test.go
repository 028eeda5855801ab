package contracts

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignalIDDeterministic(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	a := SignalID("main", "SPX", asOf, DirectionBuy)
	b := SignalID("main", "SPX", asOf, DirectionBuy)

	assert.Equal(t, a, b, "same plan inputs must yield the same signal ID")
}

func TestSignalIDVariesByComponent(t *testing.T) {
	asOf := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	base := SignalID("main", "SPX", asOf, DirectionBuy)

	assert.NotEqual(t, base, SignalID("other", "SPX", asOf, DirectionBuy))
	assert.NotEqual(t, base, SignalID("main", "NDX", asOf, DirectionBuy))
	assert.NotEqual(t, base, SignalID("main", "SPX", asOf.AddDate(0, 0, 1), DirectionBuy))
	assert.NotEqual(t, base, SignalID("main", "SPX", asOf, DirectionSell))
}

func TestSignalIDIgnoresTimeOfDay(t *testing.T) {
	morning := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	evening := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)

	assert.Equal(t,
		SignalID("main", "SPX", morning, DirectionBuy),
		SignalID("main", "SPX", evening, DirectionBuy))
}

func TestTradeStatusTransitions(t *testing.T) {
	tests := []struct {
		from TradeStatus
		to   TradeStatus
		ok   bool
	}{
		{TradePending, TradeSubmitted, true},
		{TradePending, TradeFilled, false},
		{TradeSubmitted, TradeFilled, true},
		{TradeSubmitted, TradePartiallyFilled, true},
		{TradePartiallyFilled, TradeFilled, true},
		{TradeFilled, TradeCancelled, false},
		{TradeRejected, TradeSubmitted, false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to),
			"%s -> %s", tt.from, tt.to)
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, SignalPending.Terminal())
	assert.False(t, SignalSubmitted.Terminal())
	assert.True(t, SignalFilled.Terminal())
	assert.True(t, SignalRejected.Terminal())
	assert.True(t, SignalCancelled.Terminal())

	assert.False(t, TradeSubmitted.Terminal())
	assert.True(t, TradeFilled.Terminal())
}

func TestTradeSymbol(t *testing.T) {
	index := &Instrument{ID: "SPX", Symbol: "^GSPC", Proxy: "SPY"}
	etf := &Instrument{ID: "QQQ", Symbol: "QQQ"}

	assert.Equal(t, "SPY", index.TradeSymbol())
	assert.Equal(t, "QQQ", etf.TradeSymbol())
}
