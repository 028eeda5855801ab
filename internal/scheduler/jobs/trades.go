package jobs

import (
	"context"
	"fmt"

	"github.com/wonny/rebalance/internal/engine"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// TradeMaintenanceJob polls open trades and reconciles positions
// against the broker.
type TradeMaintenanceJob struct {
	engine *engine.Engine
	config *config.Config
	logger *logger.Logger
}

// NewTradeMaintenanceJob creates the trade maintenance job.
func NewTradeMaintenanceJob(eng *engine.Engine, cfg *config.Config, log *logger.Logger) *TradeMaintenanceJob {
	return &TradeMaintenanceJob{engine: eng, config: cfg, logger: log}
}

// Name returns the job name.
func (j *TradeMaintenanceJob) Name() string { return "trade_maintenance" }

// Schedule returns the cron schedule (every 15 minutes).
func (j *TradeMaintenanceJob) Schedule() string { return "0 */15 * * * *" }

// Run settles open trades, then reconciles holdings.
func (j *TradeMaintenanceJob) Run(ctx context.Context) error {
	settled, err := j.engine.PollTrades(ctx)
	if err != nil {
		return fmt.Errorf("poll trades: %w", err)
	}
	if settled > 0 {
		j.logger.WithField("settled", settled).Info("Open trades settled")
	}

	report, err := j.engine.SyncPositions(ctx)
	if err != nil {
		return fmt.Errorf("sync positions: %w", err)
	}
	if len(report.Drifts) > 0 {
		j.logger.WithField("drifts", len(report.Drifts)).
			Warn("Holdings reconciled against broker")
	}
	return nil
}
