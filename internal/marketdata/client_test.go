package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/httputil"
	"github.com/wonny/rebalance/pkg/logger"
)

func testClient(t *testing.T, serverURL string) *Client {
	t.Helper()

	cfg := &config.Config{
		Env:      "development",
		LogLevel: "error",
		MarketData: config.MarketDataConfig{
			BaseURL: serverURL,
			APIKey:  "test-key",
			Timeout: 5 * time.Second,
		},
	}
	log := logger.New(cfg)

	return &Client{
		http:    httputil.NewWithTimeout(cfg, log, cfg.MarketData.Timeout).DisableRetry(),
		baseURL: serverURL,
		apiKey:  "test-key",
		logger:  log,
	}
}

func TestFetchBarsParsesAggregates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/v2/aggs/ticker/SPY/range/1/day/")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"ticker": "SPY",
			"status": "OK",
			"results": [
				{"t": 1767571200000, "o": 470.0, "h": 475.2, "l": 469.1, "c": 474.5, "v": 1000000},
				{"t": 1767657600000, "o": 474.5, "h": 478.0, "l": 473.0, "c": 477.1, "v": 900000}
			]
		}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	bars, err := client.FetchBars(context.Background(),
		"SPY", day("2026-01-05"), day("2026-01-06"))

	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, "SPY", bars[0].Instrument)
	assert.Equal(t, 474.5, bars[0].Close)
	assert.Equal(t, int64(1000000), bars[0].Volume)
	assert.True(t, bars[0].Date.Before(bars[1].Date), "bars must be ascending")
}

func TestFetchBarsClassifiesStatuses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, contracts.ErrRateLimited},
		{"unknown symbol", http.StatusNotFound, contracts.ErrNotFound},
		{"server error", http.StatusInternalServerError, contracts.ErrTransient},
		{"bad gateway", http.StatusBadGateway, contracts.ErrTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := testClient(t, server.URL)

			_, err := client.FetchBars(context.Background(),
				"SPY", day("2026-01-05"), day("2026-01-06"))

			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestFetchBarsEmptyWindow(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ticker": "SPY", "status": "OK", "results": []}`))
	}))
	defer server.Close()

	client := testClient(t, server.URL)

	bars, err := client.FetchBars(context.Background(),
		"SPY", day("2026-01-05"), day("2026-01-06"))

	require.NoError(t, err)
	assert.Empty(t, bars)
}

func day(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}
