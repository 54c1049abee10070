package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marketday/tracker/internal/api"
	"github.com/marketday/tracker/internal/scheduler"
	"github.com/marketday/tracker/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Run the cron daemon",
	Long: `Runs the tracking schedule until interrupted.

Registered jobs:
- daily_tracking: weekdays at 16:30 (after market close)
- cache_warmup:   Sunday at 22:00 (re-scrape index constituents)

With --with-api the dashboard API is served from the same process, so
manual refreshes and the cron schedule share one supervisor.

Example:
  go run ./cmd/tracker scheduler
  go run ./cmd/tracker scheduler --with-api`,
	RunE: runScheduler,
}

// Scheduler flags
var schedulerWithAPI bool

func init() {
	rootCmd.AddCommand(schedulerCmd)

	// Flags
	schedulerCmd.Flags().BoolVar(&schedulerWithAPI, "with-api", false, "serve the dashboard API from this process")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Market Day Tracker Scheduler ===")

	// 1. Wire the tracking pipeline
	p, err := initPipeline(pipelineOptions{requireDB: true})
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	defer p.Close()

	// 2. Register jobs
	sched := scheduler.New(p.log)
	if err := sched.AddJob(jobs.NewDailyTrackingJob(p.supervisor, p.log)); err != nil {
		return fmt.Errorf("add job: %w", err)
	}
	if err := sched.AddJob(jobs.NewCacheWarmupJob(p.source, p.cfg.Tracker.Indices, p.log)); err != nil {
		return fmt.Errorf("add job: %w", err)
	}

	// 3. Start scheduler (and the API when co-hosted)
	sched.Start()

	var server *api.Server
	if schedulerWithAPI {
		server = buildAPIServer(p)
		go func() {
			if err := server.Start(); err != nil {
				p.log.WithError(err).Fatal("Failed to start server")
			}
		}()
		fmt.Printf("\n✅ API running on http://localhost:%s\n", p.cfg.Port)
	}

	fmt.Println("\n✅ Scheduler started")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// 4. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down...")
	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			p.log.WithError(err).Error("API shutdown failed")
		}
	}
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}
