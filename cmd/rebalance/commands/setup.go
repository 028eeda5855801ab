package commands

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/wonny/rebalance/internal/broker"
	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/internal/engine"
	"github.com/wonny/rebalance/internal/ingest"
	"github.com/wonny/rebalance/internal/marketdata"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/database"
	"github.com/wonny/rebalance/pkg/logger"
	"github.com/wonny/rebalance/pkg/redis"
)

// app bundles everything a command needs.
type app struct {
	cfg    *config.Config
	logger *logger.Logger
	db     *database.DB
	engine *engine.Engine
}

// newApp loads configuration and wires the engine. Callers must call
// close when done.
func newApp() (*app, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}

	var source contracts.BarSource
	switch cfg.MarketData.Source {
	case "alpaca":
		source = marketdata.NewAlpacaSource(cfg, log)
	default:
		source = marketdata.NewClient(cfg, log)
	}

	// The fetch budget is shared across workers; with Redis enabled it
	// is shared across processes too.
	var waiter ingest.RateWaiter
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(cfg)
		if err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		waiter = redis.NewBudget(
			redis.NewRateLimiter(redisClient, "rebalance"),
			redis.RateLimitConfig{
				Key:    "marketdata",
				Limit:  cfg.Ingest.RateLimit,
				Window: cfg.Ingest.RateWindow,
			})
	} else {
		waiter = rate.NewLimiter(
			rate.Every(cfg.Ingest.RateWindow/time.Duration(cfg.Ingest.RateLimit)),
			cfg.Ingest.RateLimit)
	}

	var brk contracts.Broker
	if cfg.Alpaca.APIKey != "" {
		brk = broker.NewAlpacaBroker(cfg, log)
	} else {
		log.Warn("No broker credentials configured, using mock broker")
		brk = broker.NewMockBroker(decimal.NewFromInt(100000))
	}

	eng, err := engine.New(cfg, log, db.Pool, source, waiter, brk)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	a := &app{cfg: cfg, logger: log, db: db, engine: eng}
	return a, db.Close, nil
}
