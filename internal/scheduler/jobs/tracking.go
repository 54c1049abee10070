package jobs

import (
	"context"
	"fmt"

	"github.com/marketday/tracker/internal/refresh"
	"github.com/marketday/tracker/pkg/logger"
)

// DailyTrackingJob runs the full tracking workflow once per trading
// day, after the market close.
type DailyTrackingJob struct {
	supervisor *refresh.Supervisor
	logger     *logger.Logger
}

// NewDailyTrackingJob creates the daily tracking job.
func NewDailyTrackingJob(supervisor *refresh.Supervisor, log *logger.Logger) *DailyTrackingJob {
	return &DailyTrackingJob{
		supervisor: supervisor,
		logger:     log,
	}
}

// Name returns the job name.
func (j *DailyTrackingJob) Name() string {
	return "daily_tracking"
}

// Schedule returns the cron schedule (16:30 on weekdays, after close).
func (j *DailyTrackingJob) Schedule() string {
	return "0 30 16 * * MON-FRI"
}

// Run triggers a supervised tracking run and waits for it to finish.
func (j *DailyTrackingJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled tracking run")

	if err := j.supervisor.TriggerAndWait(ctx); err != nil {
		return fmt.Errorf("tracking run failed: %w", err)
	}

	j.logger.Info("Scheduled tracking run finished")
	return nil
}
