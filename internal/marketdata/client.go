// Package marketdata provides BarSource implementations over external
// daily-bar providers.
package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/httputil"
	"github.com/wonny/rebalance/pkg/logger"
)

// Client fetches daily aggregate bars from an HTTP JSON source.
// Retry policy lives in the ingestion pipeline, so the underlying HTTP
// client runs with retries disabled and every failure is classified
// into the fetch sentinels.
type Client struct {
	http    *httputil.Client
	baseURL string
	apiKey  string
	logger  *logger.Logger
}

// NewClient creates an HTTP bar source from configuration.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		http:    httputil.NewWithTimeout(cfg, log, cfg.MarketData.Timeout).DisableRetry(),
		baseURL: cfg.MarketData.BaseURL,
		apiKey:  cfg.MarketData.APIKey,
		logger:  log,
	}
}

// aggsResponse is the provider's aggregate-bars payload.
type aggsResponse struct {
	Ticker  string `json:"ticker"`
	Status  string `json:"status"`
	Results []struct {
		Timestamp int64   `json:"t"` // epoch millis
		Open      float64 `json:"o"`
		High      float64 `json:"h"`
		Low       float64 `json:"l"`
		Close     float64 `json:"c"`
		Volume    float64 `json:"v"`
	} `json:"results"`
}

// FetchBars implements contracts.BarSource.
func (c *Client) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	url := fmt.Sprintf("%s/v2/aggs/ticker/%s/range/1/day/%s/%s?adjusted=true&sort=asc&apiKey=%s",
		c.baseURL, symbol,
		from.Format("2006-01-02"), to.Format("2006-01-02"), c.apiKey)

	resp, err := c.http.Get(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", contracts.ErrTransient, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp.StatusCode); err != nil {
		io.Copy(io.Discard, resp.Body)
		return nil, &contracts.FetchError{Instrument: symbol, Err: err}
	}

	var payload aggsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: decode bars for %s: %v", contracts.ErrTransient, symbol, err)
	}

	bars := make([]contracts.Bar, 0, len(payload.Results))
	for _, r := range payload.Results {
		bars = append(bars, contracts.Bar{
			Instrument: symbol,
			Date:       time.UnixMilli(r.Timestamp).UTC().Truncate(24 * time.Hour),
			Open:       r.Open,
			High:       r.High,
			Low:        r.Low,
			Close:      r.Close,
			Volume:     int64(r.Volume),
		})
	}

	c.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"from":   from.Format("2006-01-02"),
		"to":     to.Format("2006-01-02"),
		"bars":   len(bars),
	}).Debug("Fetched daily bars")

	return bars, nil
}

// classifyStatus maps an HTTP status to a fetch sentinel.
func classifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests:
		return contracts.ErrRateLimited
	case status == http.StatusNotFound:
		return contracts.ErrNotFound
	case status >= 500:
		return fmt.Errorf("%w: status %d", contracts.ErrTransient, status)
	default:
		return fmt.Errorf("unexpected status %d", status)
	}
}
