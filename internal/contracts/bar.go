package contracts

import "time"

// Bar is one end-of-day OHLC record. At most one bar exists per
// (instrument, date) and close is always positive.
type Bar struct {
	Instrument string    `json:"instrument"`
	Date       time.Time `json:"date"`
	Open       float64   `json:"open"`
	High       float64   `json:"high"`
	Low        float64   `json:"low"`
	Close      float64   `json:"close"`
	Volume     int64     `json:"volume"`
}

// Valid reports whether the bar satisfies the storage invariants.
func (b *Bar) Valid() bool {
	return b.Instrument != "" && !b.Date.IsZero() && b.Close > 0
}

// Closes extracts the close series from bars ordered by date.
func Closes(bars []Bar) []float64 {
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	return closes
}
