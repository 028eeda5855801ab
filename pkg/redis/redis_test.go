package redis

import (
	"context"
	"testing"
	"time"

	"github.com/wonny/rebalance/pkg/config"
)

func TestNewClient_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if client.Enabled() {
		t.Error("Expected client to be disabled")
	}
}

func TestRateLimiter_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, _ := New(cfg)
	limiter := NewRateLimiter(client, "test")

	limitCfg := RateLimitConfig{Key: "marketdata", Limit: 5, Window: time.Second}

	// When Redis is disabled, all requests should be allowed
	allowed, remaining, err := limiter.Allow(context.Background(), limitCfg)
	if err != nil {
		t.Fatalf("Allow() error = %v", err)
	}
	if !allowed {
		t.Error("Expected request to be allowed when Redis disabled")
	}
	if remaining != limitCfg.Limit {
		t.Errorf("Expected remaining = %d, got %d", limitCfg.Limit, remaining)
	}
}

func TestBudget_Disabled(t *testing.T) {
	cfg := &config.Config{
		Redis: config.RedisConfig{
			Enabled: false,
		},
	}

	client, _ := New(cfg)
	limiter := NewRateLimiter(client, "test")
	budget := NewBudget(limiter, RateLimitConfig{Key: "marketdata", Limit: 1, Window: time.Second})

	if err := budget.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
}
