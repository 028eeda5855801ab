package contracts

import (
	"fmt"
	"time"
)

// IndicatorKind identifies a derived scalar signal.
type IndicatorKind string

const (
	KindMomentum IndicatorKind = "momentum-12-1"
)

// MAKind returns the indicator kind for an N-day simple moving average.
func MAKind(window int) IndicatorKind {
	return IndicatorKind(fmt.Sprintf("ma-%d", window))
}

// IndicatorValue is a computed signal for one instrument on one as-of
// date. When fewer than the required trailing bars exist the value is
// absent and Sufficient is false; callers must never read Value as zero
// momentum in that case.
type IndicatorValue struct {
	Instrument string        `json:"instrument"`
	AsOf       time.Time     `json:"as_of"`
	Kind       IndicatorKind `json:"kind"`
	Value      float64       `json:"value"`
	Sufficient bool          `json:"sufficient"`
}

// IndicatorSet carries all values computed for one as-of date.
type IndicatorSet struct {
	AsOf   time.Time        `json:"as_of"`
	Values []IndicatorValue `json:"values"`
}

// ByKind returns the sufficient values of one kind keyed by instrument.
func (s *IndicatorSet) ByKind(kind IndicatorKind) map[string]float64 {
	out := make(map[string]float64)
	for _, v := range s.Values {
		if v.Kind == kind && v.Sufficient {
			out[v.Instrument] = v.Value
		}
	}
	return out
}
