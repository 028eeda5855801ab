// Package ranking partitions the scored universe into rank-ordered
// tiers and persists classifications.
package ranking

import (
	"sort"
	"time"

	"github.com/wonny/rebalance/internal/contracts"
)

// AssignTiers sorts instruments by score descending and partitions them
// into the given number of tiers, tier 1 highest. When N is not an even
// multiple of the tier count the leftover slots go to the outer tiers
// first (bottom, then top), which keeps tier 1 at round(N/tiers)
// members for any remainder.
func AssignTiers(asOf time.Time, scores map[string]float64, tiers int) []contracts.TierAssignment {
	if len(scores) == 0 || tiers <= 0 {
		return nil
	}

	type scored struct {
		instrument string
		score      float64
	}
	ranked := make([]scored, 0, len(scores))
	for id, s := range scores {
		ranked = append(ranked, scored{instrument: id, score: s})
	}
	// Deterministic order: score descending, instrument ID as tie-break.
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].score != ranked[j].score {
			return ranked[i].score > ranked[j].score
		}
		return ranked[i].instrument < ranked[j].instrument
	})

	sizes := tierSizes(len(ranked), tiers)

	out := make([]contracts.TierAssignment, 0, len(ranked))
	idx := 0
	for tier := 1; tier <= tiers; tier++ {
		for n := 0; n < sizes[tier-1]; n++ {
			out = append(out, contracts.TierAssignment{
				Instrument: ranked[idx].instrument,
				AsOf:       asOf,
				Tier:       tier,
				Rank:       idx + 1,
				Score:      ranked[idx].score,
			})
			idx++
		}
	}
	return out
}

// tierSizes distributes n members over the tiers. Each tier gets the
// floor share; remainder slots are handed out bottom tier first, then
// second-from-bottom, then from the top down.
func tierSizes(n, tiers int) []int {
	sizes := make([]int, tiers)
	for i := range sizes {
		sizes[i] = n / tiers
	}

	extras := n % tiers
	order := extraOrder(tiers)
	for i := 0; i < extras; i++ {
		sizes[order[i]-1]++
	}
	return sizes
}

func extraOrder(tiers int) []int {
	order := make([]int, 0, tiers)
	if tiers >= 1 {
		order = append(order, tiers)
	}
	if tiers >= 2 {
		order = append(order, tiers-1)
	}
	for t := 1; t <= tiers-2; t++ {
		order = append(order, t)
	}
	return order
}

// Stats summarizes the score distribution of one classification.
type Stats struct {
	Count       int     `json:"count"`
	Mean        float64 `json:"mean"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
	Tier1Cutoff float64 `json:"tier1_cutoff"` // lowest score still in tier 1
}

// ComputeStats derives score statistics from tier assignments.
func ComputeStats(assignments []contracts.TierAssignment) Stats {
	var s Stats
	if len(assignments) == 0 {
		return s
	}

	s.Count = len(assignments)
	s.Min = assignments[0].Score
	s.Max = assignments[0].Score

	var sum float64
	for _, a := range assignments {
		sum += a.Score
		if a.Score < s.Min {
			s.Min = a.Score
		}
		if a.Score > s.Max {
			s.Max = a.Score
		}
		if a.Tier == 1 && (s.Tier1Cutoff == 0 || a.Score < s.Tier1Cutoff) {
			s.Tier1Cutoff = a.Score
		}
	}
	s.Mean = sum / float64(len(assignments))
	return s
}
