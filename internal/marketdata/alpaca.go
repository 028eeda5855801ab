package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// AlpacaSource fetches daily bars through the Alpaca market-data API.
type AlpacaSource struct {
	client *marketdata.Client
	logger *logger.Logger
}

// NewAlpacaSource creates an Alpaca-backed bar source.
func NewAlpacaSource(cfg *config.Config, log *logger.Logger) *AlpacaSource {
	return &AlpacaSource{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    cfg.Alpaca.APIKey,
			APISecret: cfg.Alpaca.APISecret,
		}),
		logger: log,
	}
}

// FetchBars implements contracts.BarSource. The SDK does not expose a
// status-classified error type, so failures are treated as transient
// and retried by the ingestion pipeline.
func (s *AlpacaSource) FetchBars(ctx context.Context, symbol string, from, to time.Time) ([]contracts.Bar, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	// End is exclusive for daily bars, so extend it by a day to include
	// bars on the end date itself.
	alpacaBars, err := s.client.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     from,
		End:       to.AddDate(0, 0, 1),
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: alpaca bars for %s: %v", contracts.ErrTransient, symbol, err)
	}

	bars := make([]contracts.Bar, 0, len(alpacaBars))
	for _, ab := range alpacaBars {
		bars = append(bars, contracts.Bar{
			Instrument: symbol,
			Date:       ab.Timestamp.UTC().Truncate(24 * time.Hour),
			Open:       ab.Open,
			High:       ab.High,
			Low:        ab.Low,
			Close:      ab.Close,
			Volume:     int64(ab.Volume),
		})
	}

	s.logger.WithFields(map[string]interface{}{
		"symbol": symbol,
		"bars":   len(bars),
	}).Debug("Fetched daily bars from Alpaca")

	return bars, nil
}
