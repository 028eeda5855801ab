package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wonny/rebalance/internal/scheduler"
	"github.com/wonny/rebalance/internal/scheduler/jobs"
)

var schedulerRunOnce string

// schedulerCmd runs the cron scheduler
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the cron scheduler",
	Long: `Runs the scheduled jobs: daily bar ingestion plus indicator update,
the rebalance planner, and trade maintenance (fill polling and position
sync). Use --run to trigger a single job immediately and exit.

Example:
  go run ./cmd/rebalance scheduler
  go run ./cmd/rebalance scheduler --run ingestion`,
	RunE: runScheduler,
}

func init() {
	rootCmd.AddCommand(schedulerCmd)

	schedulerCmd.Flags().StringVar(&schedulerRunOnce, "run", "", "run one job by name and exit")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	app, cleanup, err := newApp()
	if err != nil {
		return err
	}
	defer cleanup()

	sched := scheduler.New(app.logger)

	jobList := []scheduler.Job{
		jobs.NewIngestionJob(app.engine, app.cfg, app.logger),
		jobs.NewPlanJob(app.engine, app.cfg, app.logger),
		jobs.NewTradeMaintenanceJob(app.engine, app.cfg, app.logger),
	}
	for _, job := range jobList {
		if err := sched.AddJob(job); err != nil {
			return fmt.Errorf("add job %s: %w", job.Name(), err)
		}
	}

	if schedulerRunOnce != "" {
		return sched.RunJob(schedulerRunOnce)
	}

	sched.Start()
	defer sched.Stop()
	app.logger.Info("Scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	app.logger.Info("Scheduler stopping")
	return nil
}
