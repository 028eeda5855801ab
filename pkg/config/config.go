package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the engine. It is loaded once at
// startup and passed explicitly into each component.
type Config struct {
	Env string // development, staging, production

	// Persistence
	Database DatabaseConfig
	Redis    RedisConfig

	// External collaborators
	MarketData MarketDataConfig
	Alpaca     AlpacaConfig

	// Decision engine
	Strategy  StrategyConfig
	Rebalance RebalanceConfig
	Ingest    IngestConfig

	// Surrounding application
	API       APIConfig
	Scheduler SchedulerConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	URL string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration. Redis is optional; when enabled
// the ingestion rate budget is shared across processes.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// MarketDataConfig holds configuration for the historical bar source.
type MarketDataConfig struct {
	Source  string // "http" or "alpaca"
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// AlpacaConfig holds broker API configuration.
type AlpacaConfig struct {
	APIKey    string
	APISecret string
	BaseURL   string
	Account   string
}

// StrategyConfig selects and parameterizes the rebalancing strategy.
type StrategyConfig struct {
	Kind string // "momentum" or "crossover"

	// Momentum: trailing return over LookbackDays excluding the most
	// recent SkipDays, ranked into Tiers groups.
	LookbackDays int
	SkipDays     int
	Tiers        int
	TopTier      int

	// Crossover: short/long simple moving average windows.
	ShortWindow int
	LongWindow  int
}

// RebalanceConfig holds planner parameters.
type RebalanceConfig struct {
	Portfolio     string
	Frequency     string // "daily", "weekly", "monthly"
	CashBufferPct float64
	CrossoverQty  int64
}

// IngestConfig holds ingestion pipeline parameters.
type IngestConfig struct {
	LookbackDays   int
	Workers        int
	BatchDays      int
	RateLimit      int           // max requests per RateWindow
	RateWindow     time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// APIConfig holds the read-only HTTP surface configuration.
type APIConfig struct {
	Port string
}

// SchedulerConfig holds cron expressions for the daily cycle jobs.
type SchedulerConfig struct {
	IngestSpec string
	PlanSpec   string
}

// Load reads configuration from environment variables. Only this
// function calls os.Getenv.
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Env: getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		MarketData: MarketDataConfig{
			Source:  getEnv("MARKET_DATA_SOURCE", "http"),
			BaseURL: getEnv("MARKET_DATA_BASE_URL", "https://api.polygon.io"),
			APIKey:  getEnv("MARKET_DATA_API_KEY", ""),
			Timeout: getEnvAsDuration("MARKET_DATA_TIMEOUT", "30s"),
		},

		Alpaca: AlpacaConfig{
			APIKey:    getEnv("ALPACA_API_KEY", ""),
			APISecret: getEnv("ALPACA_SECRET_KEY", ""),
			BaseURL:   getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
			Account:   getEnv("ALPACA_ACCOUNT", ""),
		},

		Strategy: StrategyConfig{
			Kind:         getEnv("STRATEGY_KIND", "momentum"),
			LookbackDays: getEnvAsInt("MOMENTUM_LOOKBACK_DAYS", 252),
			SkipDays:     getEnvAsInt("MOMENTUM_SKIP_DAYS", 21),
			Tiers:        getEnvAsInt("RANKING_TIERS", 5),
			TopTier:      getEnvAsInt("RANKING_TOP_TIER", 1),
			ShortWindow:  getEnvAsInt("MA_SHORT_WINDOW", 50),
			LongWindow:   getEnvAsInt("MA_LONG_WINDOW", 200),
		},

		Rebalance: RebalanceConfig{
			Portfolio:     getEnv("PORTFOLIO", "default"),
			Frequency:     getEnv("REBALANCE_FREQUENCY", "weekly"),
			CashBufferPct: getEnvAsFloat("CASH_BUFFER_PCT", 0.05),
			CrossoverQty:  int64(getEnvAsInt("CROSSOVER_QTY", 10)),
		},

		Ingest: IngestConfig{
			LookbackDays:   getEnvAsInt("INGEST_LOOKBACK_DAYS", 420),
			Workers:        getEnvAsInt("INGEST_WORKERS", 4),
			BatchDays:      getEnvAsInt("INGEST_BATCH_DAYS", 120),
			RateLimit:      getEnvAsInt("INGEST_RATE_LIMIT", 5),
			RateWindow:     getEnvAsDuration("INGEST_RATE_WINDOW", "1s"),
			MaxRetries:     getEnvAsInt("INGEST_MAX_RETRIES", 3),
			InitialBackoff: getEnvAsDuration("INGEST_INITIAL_BACKOFF", "1s"),
			MaxBackoff:     getEnvAsDuration("INGEST_MAX_BACKOFF", "30s"),
		},

		API: APIConfig{
			Port: getEnv("PORT", "8090"),
		},

		Scheduler: SchedulerConfig{
			// Six-field cron expressions (seconds first), weekdays after
			// the US market close.
			IngestSpec: getEnv("SCHEDULE_INGEST", "0 30 21 * * 1-5"),
			PlanSpec:   getEnv("SCHEDULE_PLAN", "0 0 22 * * 1-5"),
		},

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks required values. Misconfiguration is fatal at startup,
// never discovered mid-cycle.
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	switch c.Strategy.Kind {
	case "momentum", "crossover":
	default:
		return fmt.Errorf("STRATEGY_KIND must be momentum or crossover, got %q", c.Strategy.Kind)
	}

	if c.Strategy.LookbackDays <= c.Strategy.SkipDays {
		return fmt.Errorf("MOMENTUM_LOOKBACK_DAYS (%d) must exceed MOMENTUM_SKIP_DAYS (%d)",
			c.Strategy.LookbackDays, c.Strategy.SkipDays)
	}
	if c.Strategy.SkipDays < 0 {
		return fmt.Errorf("MOMENTUM_SKIP_DAYS must not be negative")
	}
	if c.Strategy.Tiers < 2 {
		return fmt.Errorf("RANKING_TIERS must be at least 2, got %d", c.Strategy.Tiers)
	}
	if c.Strategy.TopTier < 1 || c.Strategy.TopTier > c.Strategy.Tiers {
		return fmt.Errorf("RANKING_TOP_TIER must be within 1..%d, got %d", c.Strategy.Tiers, c.Strategy.TopTier)
	}
	if c.Strategy.ShortWindow <= 0 || c.Strategy.LongWindow <= c.Strategy.ShortWindow {
		return fmt.Errorf("MA windows invalid: short=%d long=%d", c.Strategy.ShortWindow, c.Strategy.LongWindow)
	}

	switch c.Rebalance.Frequency {
	case "daily", "weekly", "monthly":
	default:
		return fmt.Errorf("REBALANCE_FREQUENCY must be daily, weekly or monthly, got %q", c.Rebalance.Frequency)
	}
	if c.Rebalance.CashBufferPct < 0 || c.Rebalance.CashBufferPct >= 1 {
		return fmt.Errorf("CASH_BUFFER_PCT must be within [0, 1), got %f", c.Rebalance.CashBufferPct)
	}

	if c.Ingest.Workers < 1 {
		return fmt.Errorf("INGEST_WORKERS must be at least 1")
	}
	if c.Ingest.RateLimit < 1 {
		return fmt.Errorf("INGEST_RATE_LIMIT must be at least 1")
	}

	if c.MarketData.Source != "http" && c.MarketData.Source != "alpaca" {
		return fmt.Errorf("MARKET_DATA_SOURCE must be http or alpaca, got %q", c.MarketData.Source)
	}

	return nil
}

// FrequencyDays returns the rebalance gate interval in calendar days.
func (c *RebalanceConfig) FrequencyDays() int {
	switch c.Frequency {
	case "daily":
		return 1
	case "weekly":
		return 7
	case "monthly":
		return 30
	default:
		return 7
	}
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
