package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/baseline-edge/internal/health"
	"github.com/yourusername/baseline-edge/internal/scheduler"
)

var scheduleOpts struct {
	runNow  bool
	timeout time.Duration
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleOpts.runNow, "run-now", false, "Run one replay immediately before waiting for the schedule")
	scheduleCmd.Flags().DurationVar(&scheduleOpts.timeout, "timeout", time.Hour, "Maximum duration of one scheduled replay")
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Re-run the replay on the configured cron schedule",
	Long: `Runs the replay whenever schedule.cron fires, serving /health, /ready, /live and
metrics on metrics.port until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if !cfg.Schedule.Enabled {
			logger.Warn("schedule.enabled is false; running the schedule because it was requested explicitly")
		}

		p, err := openPipeline(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		replay := func(ctx context.Context) error {
			result, err := p.Run(ctx)
			if err != nil {
				return err
			}
			logger.WithFields(logrus.Fields{
				"run_id":      result.RunID,
				"predictions": len(result.Predictions),
				"brier":       result.Calibration.Brier,
			}).Info("Scheduled replay finished")
			return nil
		}

		sched := scheduler.NewScheduler(logger)
		if _, err := sched.ScheduleReplay(cfg.Schedule.Cron, scheduleOpts.timeout, replay); err != nil {
			return fmt.Errorf("failed to schedule replay: %w", err)
		}

		var server *health.Server
		if cfg.Metrics.Enabled {
			server = health.NewServer(health.Config{
				ServiceName: cfg.App.Name,
				Version:     Version,
				Commit:      GitCommit,
				Port:        strconv.Itoa(cfg.Metrics.Port),
				MetricsPath: cfg.Metrics.Path,
				Logger:      logger,
				DB:          p.pinger(),
				Schedule:    sched,
				Runs:        p,
			})
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("failed to start health server: %w", err)
			}
		}

		if err := sched.Start(); err != nil {
			return err
		}
		if server != nil {
			server.SetReady(true)
		}

		if scheduleOpts.runNow {
			if err := sched.RunNow(ctx, replay); err != nil {
				logger.WithError(err).Error("Initial replay failed")
			}
		}

		logger.WithField("next_run", sched.GetNextRun()).Info("Waiting for scheduled replays")
		<-ctx.Done()
		logger.Info("Shutting down scheduler")
		return sched.Stop()
	},
}
