package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalance/internal/barstore"
	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// fakeSource serves canned bars and scripted failures per symbol.
type fakeSource struct {
	mu       sync.Mutex
	bars     map[string][]contracts.Bar
	failures map[string][]error // consumed one per call before bars are served
	calls    map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		bars:     make(map[string][]contracts.Bar),
		failures: make(map[string][]error),
		calls:    make(map[string]int),
	}
}

func (f *fakeSource) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[symbol]++
	if errs := f.failures[symbol]; len(errs) > 0 {
		err := errs[0]
		f.failures[symbol] = errs[1:]
		return nil, err
	}

	var out []contracts.Bar
	for _, b := range f.bars[symbol] {
		if !b.Date.Before(from) && !b.Date.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

// memStore is an in-memory Store.
type memStore struct {
	mu   sync.Mutex
	bars map[string]map[string]contracts.Bar // instrument -> date -> bar
}

func newMemStore() *memStore {
	return &memStore{bars: make(map[string]map[string]contracts.Bar)}
}

func (m *memStore) SaveBatch(ctx context.Context, bars []contracts.Bar) (*barstore.SaveResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := &barstore.SaveResult{}
	for _, b := range bars {
		byDate, ok := m.bars[b.Instrument]
		if !ok {
			byDate = make(map[string]contracts.Bar)
			m.bars[b.Instrument] = byDate
		}
		key := b.Date.Format("2006-01-02")
		if old, exists := byDate[key]; exists {
			result.Updated++
			if old.Close != b.Close {
				result.Restatements = append(result.Restatements, barstore.Restatement{
					Instrument: b.Instrument,
					Date:       b.Date,
					OldClose:   old.Close,
					NewClose:   b.Close,
				})
			}
		} else {
			result.Inserted++
		}
		byDate[key] = b
	}
	return result, nil
}

func (m *memStore) StoredDates(ctx context.Context, instrument string, from, to time.Time) ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var dates []time.Time
	for cur := from; !cur.After(to); cur = cur.AddDate(0, 0, 1) {
		if _, ok := m.bars[instrument][cur.Format("2006-01-02")]; ok {
			dates = append(dates, cur)
		}
	}
	return dates, nil
}

func testPipeline(source contracts.BarSource, store Store) *Pipeline {
	cfg := config.IngestConfig{
		LookbackDays:   10,
		Workers:        2,
		BatchDays:      30,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
	log := logger.New(&config.Config{Env: "development", LogLevel: "error"})
	return New(source, store, nil, cfg, log)
}

func seedBars(source *fakeSource, symbol string, days int, now time.Time) {
	for i := 0; i < days; i++ {
		d := now.AddDate(0, 0, -i)
		source.bars[symbol] = append(source.bars[symbol], contracts.Bar{
			Instrument: symbol,
			Date:       d,
			Open:       100,
			High:       101,
			Low:        99,
			Close:      100.5,
			Volume:     1000,
		})
	}
}

func TestRunIngestsMissingBars(t *testing.T) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	source := newFakeSource()
	seedBars(source, "SPY", 11, now)

	store := newMemStore()
	p := testPipeline(source, store)

	report, err := p.Run(context.Background(),
		[]*contracts.Instrument{{ID: "SPX", Symbol: "SPY", Active: true}}, Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 11, report.BarsInserted)
	assert.Zero(t, report.Failed)

	// Bars are stored under the instrument ID, not the fetch symbol.
	assert.Len(t, store.bars["SPX"], 11)
	assert.Empty(t, store.bars["SPY"])
}

func TestRunSkipsUpToDateInstrument(t *testing.T) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	source := newFakeSource()
	seedBars(source, "SPY", 11, now)

	store := newMemStore()
	p := testPipeline(source, store)
	inst := []*contracts.Instrument{{ID: "SPX", Symbol: "SPY", Active: true}}

	_, err := p.Run(context.Background(), inst, Options{})
	require.NoError(t, err)

	report, err := p.Run(context.Background(), inst, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Skipped)
	assert.Zero(t, report.BarsInserted)
}

func TestRunRetriesTransientFailures(t *testing.T) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	source := newFakeSource()
	seedBars(source, "SPY", 11, now)
	source.failures["SPY"] = []error{contracts.ErrRateLimited, contracts.ErrTransient}

	store := newMemStore()
	p := testPipeline(source, store)

	report, err := p.Run(context.Background(),
		[]*contracts.Instrument{{ID: "SPX", Symbol: "SPY", Active: true}}, Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 3, source.calls["SPY"], "two failures then success")
}

func TestRunGivesUpAfterMaxRetries(t *testing.T) {
	source := newFakeSource()
	source.failures["SPY"] = []error{
		contracts.ErrTransient, contracts.ErrTransient, contracts.ErrTransient,
	}

	store := newMemStore()
	p := testPipeline(source, store)

	report, err := p.Run(context.Background(),
		[]*contracts.Instrument{{ID: "SPX", Symbol: "SPY", Active: true}}, Options{})

	require.NoError(t, err, "instrument failure must not abort the run")
	assert.Equal(t, 1, report.Failed)
	assert.Contains(t, report.Errors, "SPX")
}

func TestRunDoesNotRetryNotFound(t *testing.T) {
	source := newFakeSource()
	source.failures["GONE"] = []error{contracts.ErrNotFound}

	store := newMemStore()
	p := testPipeline(source, store)

	report, err := p.Run(context.Background(),
		[]*contracts.Instrument{{ID: "GONE", Symbol: "GONE", Active: true}}, Options{})

	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, source.calls["GONE"], "not-found is permanent")
}

func TestRunIsolatesFailures(t *testing.T) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	source := newFakeSource()
	seedBars(source, "SPY", 11, now)
	seedBars(source, "QQQ", 11, now)
	source.failures["BAD"] = []error{contracts.ErrNotFound}

	store := newMemStore()
	p := testPipeline(source, store)

	report, err := p.Run(context.Background(), []*contracts.Instrument{
		{ID: "SPX", Symbol: "SPY", Active: true},
		{ID: "BAD", Symbol: "BAD", Active: true},
		{ID: "NDX", Symbol: "QQQ", Active: true},
	}, Options{})

	require.NoError(t, err)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}

func TestRunForceReportsRestatements(t *testing.T) {
	now := time.Now().UTC().Truncate(24 * time.Hour)
	source := newFakeSource()
	seedBars(source, "SPY", 11, now)

	store := newMemStore()
	p := testPipeline(source, store)
	inst := []*contracts.Instrument{{ID: "SPX", Symbol: "SPY", Active: true}}

	_, err := p.Run(context.Background(), inst, Options{})
	require.NoError(t, err)

	// The source restates one close; a forced re-fetch must surface it.
	source.mu.Lock()
	source.bars["SPY"][0].Close = 200
	restated := source.bars["SPY"][0].Date
	source.mu.Unlock()

	report, err := p.Run(context.Background(), inst, Options{Force: true})
	require.NoError(t, err)

	require.Len(t, report.Restatements, 1)
	assert.Equal(t, "SPX", report.Restatements[0].Instrument)
	assert.Equal(t, restated.Format("2006-01-02"), report.Restatements[0].Date.Format("2006-01-02"))
	assert.Equal(t, 200.0, report.Restatements[0].NewClose)
}
