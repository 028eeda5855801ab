// Package jobs defines the scheduled entry points into the engine.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/rebalance/internal/engine"
	"github.com/wonny/rebalance/internal/ingest"
	"github.com/wonny/rebalance/pkg/config"
	"github.com/wonny/rebalance/pkg/logger"
)

// IngestionJob pulls the latest bars and refreshes indicators after
// each trading day.
type IngestionJob struct {
	engine *engine.Engine
	config *config.Config
	logger *logger.Logger
}

// NewIngestionJob creates the daily ingestion job.
func NewIngestionJob(eng *engine.Engine, cfg *config.Config, log *logger.Logger) *IngestionJob {
	return &IngestionJob{engine: eng, config: cfg, logger: log}
}

// Name returns the job name.
func (j *IngestionJob) Name() string { return "ingestion" }

// Schedule returns the cron schedule.
func (j *IngestionJob) Schedule() string { return j.config.Scheduler.IngestSpec }

// Run ingests recent bars, then recomputes indicators for today.
func (j *IngestionJob) Run(ctx context.Context) error {
	report, err := j.engine.RunIngestion(ctx, ingest.Options{})
	if err != nil {
		return fmt.Errorf("ingestion: %w", err)
	}
	if report.Failed > 0 {
		j.logger.WithField("failed", report.Failed).
			Warn("Ingestion finished with failed instruments")
	}

	if _, err := j.engine.RunIndicatorUpdate(ctx, time.Now()); err != nil {
		return fmt.Errorf("indicator update: %w", err)
	}
	return nil
}
