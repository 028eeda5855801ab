// Package rebalance runs the planning side of the engine: one
// exclusive cycle per portfolio that classifies the universe and turns
// tier transitions into idempotent trade signals.
package rebalance

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rebalance/internal/contracts"
)

// CycleLock serializes rebalance cycles per portfolio with a session
// advisory lock. The lock lives on a dedicated pooled connection so it
// is held exactly as long as the cycle runs.
type CycleLock struct {
	pool *pgxpool.Pool
}

// NewCycleLock creates a cycle lock over the pool.
func NewCycleLock(pool *pgxpool.Pool) *CycleLock {
	return &CycleLock{pool: pool}
}

// Acquire takes the portfolio lock. It returns a release function on
// success and ErrCycleInProgress when another cycle holds the lock.
func (l *CycleLock) Acquire(ctx context.Context, portfolio string) (func(), error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire lock connection: %w", err)
	}

	var locked bool
	err = conn.QueryRow(ctx,
		`SELECT pg_try_advisory_lock(hashtext($1))`, "rebalance:"+portfolio).Scan(&locked)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, contracts.ErrCycleInProgress
	}

	release := func() {
		// Unlock on the same session; releasing the conn would drop
		// the lock anyway, but an explicit unlock keeps it tidy.
		_, _ = conn.Exec(context.Background(),
			`SELECT pg_advisory_unlock(hashtext($1))`, "rebalance:"+portfolio)
		conn.Release()
	}
	return release, nil
}
