package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/wonny/rebalance/internal/contracts"
	"github.com/wonny/rebalance/internal/engine"
	"github.com/wonny/rebalance/internal/rebalance"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// PlanJob runs the rank-and-plan cycle. The frequency gate inside the
// planner decides whether the portfolio is actually due, so the job
// can run daily regardless of the configured rebalance frequency.
type PlanJob struct {
	engine *engine.Engine
	config *config.Config
	logger *logger.Logger
}

// NewPlanJob creates the daily planning job.
func NewPlanJob(eng *engine.Engine, cfg *config.Config, log *logger.Logger) *PlanJob {
	return &PlanJob{engine: eng, config: cfg, logger: log}
}

// Name returns the job name.
func (j *PlanJob) Name() string { return "rank_and_plan" }

// Schedule returns the cron schedule.
func (j *PlanJob) Schedule() string { return j.config.Scheduler.PlanSpec }

// Run plans the cycle; a portfolio that is not due is a clean no-op.
func (j *PlanJob) Run(ctx context.Context) error {
	report, err := j.engine.RunRankAndPlan(ctx, time.Now(), rebalance.Options{})
	if errors.Is(err, contracts.ErrRebalanceNotDue) {
		j.logger.Debug("Rebalance not due, skipping plan")
		return nil
	}
	if err != nil {
		return err
	}

	j.logger.WithFields(map[string]interface{}{
		"buys":    report.Buys,
		"sells":   report.Sells,
		"created": report.Created,
	}).Info("Scheduled planning cycle finished")
	return nil
}
