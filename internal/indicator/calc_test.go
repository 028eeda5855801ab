package indicator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalance/internal/contracts"
)

// flatSeries builds n closes all at the given price.
func flatSeries(n int, price float64) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = price
	}
	return s
}

func TestMomentumTwelveOne(t *testing.T) {
	// Price 100 at t-252, 115 at t-21: momentum = 0.15.
	closes := flatSeries(253, 100)
	for i := 1; i < len(closes); i++ {
		closes[i] = 100 + 15*float64(i)/231 // linear ramp reaching 115 at t-21
	}
	closes[len(closes)-1-21] = 115
	closes[0] = 100

	got, err := Momentum(closes, 252, 21)

	require.NoError(t, err)
	assert.InDelta(t, 0.15, got, 1e-9)
}

func TestMomentumUsesSkipWindow(t *testing.T) {
	// A crash inside the skip window must not affect the score.
	closes := flatSeries(253, 100)
	closes[len(closes)-1-21] = 120
	for i := len(closes) - 21; i < len(closes); i++ {
		closes[i] = 10
	}

	got, err := Momentum(closes, 252, 21)

	require.NoError(t, err)
	assert.InDelta(t, 0.20, got, 1e-9)
}

func TestMomentumInsufficientHistory(t *testing.T) {
	// Exactly lookback closes is one short of the requirement.
	_, err := Momentum(flatSeries(252, 100), 252, 21)

	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientHistory))
}

func TestMomentumExactBoundary(t *testing.T) {
	_, err := Momentum(flatSeries(253, 100), 252, 21)
	assert.NoError(t, err)
}

func TestMomentumRejectsBadWindows(t *testing.T) {
	_, err := Momentum(flatSeries(300, 100), 21, 21)
	assert.Error(t, err)

	_, err = Momentum(flatSeries(300, 100), 20, 21)
	assert.Error(t, err)
}

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}

	got, err := SMA(closes, 3)

	require.NoError(t, err)
	assert.InDelta(t, 5.0, got, 1e-9, "mean of the last three closes")
}

func TestSMAInsufficientHistory(t *testing.T) {
	_, err := SMA([]float64{1, 2}, 3)

	require.Error(t, err)
	assert.True(t, errors.Is(err, contracts.ErrInsufficientHistory))
}

func TestCrossSide(t *testing.T) {
	assert.Equal(t, contracts.CrossAbove, CrossSide(101, 100))
	assert.Equal(t, contracts.CrossBelow, CrossSide(99, 100))
	assert.Equal(t, contracts.CrossBelow, CrossSide(100, 100), "tie counts as below")
}
