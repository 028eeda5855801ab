package ingest

import (
	"time"

	"github.com/wonny/rebalance/internal/barstore"
)

// Report summarizes one ingestion run.
type Report struct {
	From         time.Time               `json:"from"`
	To           time.Time               `json:"to"`
	Instruments  int                     `json:"instruments"`
	Succeeded    int                     `json:"succeeded"`
	Skipped      int                     `json:"skipped"` // already up to date
	Failed       int                     `json:"failed"`
	BarsInserted int                     `json:"bars_inserted"`
	BarsUpdated  int                     `json:"bars_updated"`
	Restatements []barstore.Restatement  `json:"restatements,omitempty"`
	Errors       map[string]string       `json:"errors,omitempty"`
	Duration     time.Duration           `json:"duration"`
}
