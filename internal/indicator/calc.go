// Package indicator computes derived signals from daily close series.
// Calculators are pure: same closes in, same value out.
package indicator

import (
	"fmt"

	"github.com/wonny/rebalance/internal/contracts"
)

// Momentum computes the skip-adjusted trailing return: the return from
// lookback days ago to skip days ago, excluding the most recent skip
// days. Closes must be ascending by date with the last element being
// the as-of close. At least lookback+1 closes are required.
func Momentum(closes []float64, lookback, skip int) (float64, error) {
	if skip < 0 || lookback <= skip {
		return 0, fmt.Errorf("momentum windows invalid: lookback=%d skip=%d", lookback, skip)
	}
	if len(closes) < lookback+1 {
		return 0, fmt.Errorf("%w: need %d closes, have %d",
			contracts.ErrInsufficientHistory, lookback+1, len(closes))
	}

	end := closes[len(closes)-1-skip]
	start := closes[len(closes)-1-lookback]
	if start <= 0 {
		return 0, fmt.Errorf("%w: non-positive base close", contracts.ErrInsufficientHistory)
	}
	return (end - start) / start, nil
}

// SMA computes the simple moving average of the last window closes.
// At least window closes are required.
func SMA(closes []float64, window int) (float64, error) {
	if window <= 0 {
		return 0, fmt.Errorf("sma window invalid: %d", window)
	}
	if len(closes) < window {
		return 0, fmt.Errorf("%w: need %d closes, have %d",
			contracts.ErrInsufficientHistory, window, len(closes))
	}

	var sum float64
	for _, c := range closes[len(closes)-window:] {
		sum += c
	}
	return sum / float64(window), nil
}

// CrossSide derives the crossover state from the two averages. The
// comparison is strict: a tie is below, the state a golden cross
// emerges from.
func CrossSide(shortMA, longMA float64) contracts.CrossSide {
	if shortMA > longMA {
		return contracts.CrossAbove
	}
	return contracts.CrossBelow
}
