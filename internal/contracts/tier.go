package contracts

import "time"

// TierAssignment places one instrument into a rank-ordered tier
// (1 = top) for an as-of date. Instruments without sufficient history
// get no assignment at all.
type TierAssignment struct {
	Instrument string    `json:"instrument"`
	AsOf       time.Time `json:"as_of"`
	Tier       int       `json:"tier"`
	Rank       int       `json:"rank"` // 1-based position in the descending score order
	Score      float64   `json:"score"`
}

// CrossSide is the moving-average crossover state.
type CrossSide string

const (
	CrossAbove CrossSide = "above" // short MA above long MA
	CrossBelow CrossSide = "below"
)

// CrossState is the crossover state of one instrument on an as-of date.
type CrossState struct {
	Instrument string    `json:"instrument"`
	AsOf       time.Time `json:"as_of"`
	Side       CrossSide `json:"side"`
	ShortMA    float64   `json:"short_ma"`
	LongMA     float64   `json:"long_ma"`
}

// Classification is the full partition of the universe for one as-of
// date: quintile tiers for the momentum strategy, crossover states for
// the moving-average strategy. Exactly one of the slices is populated.
type Classification struct {
	AsOf   time.Time        `json:"as_of"`
	Tiers  []TierAssignment `json:"tiers,omitempty"`
	States []CrossState     `json:"states,omitempty"`
}

// TierOf returns the tier for an instrument, or 0 when unranked.
func (c *Classification) TierOf(instrument string) int {
	for _, t := range c.Tiers {
		if t.Instrument == instrument {
			return t.Tier
		}
	}
	return 0
}

// StateOf returns the crossover state for an instrument.
func (c *Classification) StateOf(instrument string) (CrossSide, bool) {
	for _, s := range c.States {
		if s.Instrument == instrument {
			return s.Side, true
		}
	}
	return "", false
}
