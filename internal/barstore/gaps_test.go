package barstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func days(ss ...string) []time.Time {
	out := make([]time.Time, len(ss))
	for i, s := range ss {
		out[i] = day(s)
	}
	return out
}

func TestMissingRangesEmptyStore(t *testing.T) {
	got := MissingRanges(nil, day("2026-01-05"), day("2026-01-09"))

	require.Len(t, got, 1)
	assert.Equal(t, day("2026-01-05"), got[0].From)
	assert.Equal(t, day("2026-01-09"), got[0].To)
}

func TestMissingRangesFullyCovered(t *testing.T) {
	// Mon-Fri week, weekend spacing to the next Monday.
	stored := days("2026-01-05", "2026-01-06", "2026-01-07", "2026-01-08", "2026-01-09", "2026-01-12")

	got := MissingRanges(stored, day("2026-01-05"), day("2026-01-12"))
	assert.Empty(t, got, "weekend spacing is not a gap")
}

func TestMissingRangesHeadAndTail(t *testing.T) {
	stored := days("2026-01-07", "2026-01-08")

	got := MissingRanges(stored, day("2026-01-05"), day("2026-01-12"))

	require.Len(t, got, 2)
	assert.Equal(t, DateRange{From: day("2026-01-05"), To: day("2026-01-06")}, got[0])
	assert.Equal(t, DateRange{From: day("2026-01-09"), To: day("2026-01-12")}, got[1])
}

func TestMissingRangesInteriorGap(t *testing.T) {
	// A full missing week between two stored runs.
	stored := days("2026-01-05", "2026-01-06", "2026-01-14", "2026-01-15")

	got := MissingRanges(stored, day("2026-01-05"), day("2026-01-15"))

	require.Len(t, got, 1)
	assert.Equal(t, DateRange{From: day("2026-01-07"), To: day("2026-01-13")}, got[0])
}

func TestMissingRangesLongWeekendTolerated(t *testing.T) {
	// Thursday to the following Monday: 4 calendar days, holiday Friday.
	stored := days("2026-01-01", "2026-01-05")

	got := MissingRanges(stored, day("2026-01-01"), day("2026-01-05"))
	assert.Empty(t, got)
}

func TestMissingRangesInvertedWindow(t *testing.T) {
	assert.Nil(t, MissingRanges(nil, day("2026-01-09"), day("2026-01-05")))
}
