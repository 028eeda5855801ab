package barstore

import "time"

// DateRange is an inclusive calendar-date window.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// maxCalendarGap is the widest spacing between consecutive trading days
// that is still considered contiguous. A long weekend plus a holiday is
// four calendar days; anything wider is treated as missing data.
const maxCalendarGap = 4

// MissingRanges computes the sub-ranges of [from, to] not covered by
// the stored dates. Stored dates must be ascending. With no stored
// dates the whole window is missing.
func MissingRanges(stored []time.Time, from, to time.Time) []DateRange {
	if to.Before(from) {
		return nil
	}
	if len(stored) == 0 {
		return []DateRange{{From: from, To: to}}
	}

	var missing []DateRange

	// Head: window start up to the first stored date.
	if daysBetween(from, stored[0]) > 0 {
		missing = append(missing, DateRange{From: from, To: stored[0].AddDate(0, 0, -1)})
	}

	// Interior: spacing wider than the weekend/holiday tolerance.
	for i := 1; i < len(stored); i++ {
		if daysBetween(stored[i-1], stored[i]) > maxCalendarGap {
			missing = append(missing, DateRange{
				From: stored[i-1].AddDate(0, 0, 1),
				To:   stored[i].AddDate(0, 0, -1),
			})
		}
	}

	// Tail: last stored date up to the window end.
	last := stored[len(stored)-1]
	if daysBetween(last, to) > 0 {
		missing = append(missing, DateRange{From: last.AddDate(0, 0, 1), To: to})
	}

	return missing
}

func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
