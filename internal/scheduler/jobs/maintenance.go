package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/marginrecon/pkg/logger"
)

// ReportCleanupJobName identifies the workbook retention job
const ReportCleanupJobName = "report_cleanup"

// Pruner removes stored discrepancy reports older than a cutoff
type Pruner interface {
	Prune(cutoff time.Time) (int, error)
}

// ReportCleanupJob removes discrepancy workbooks past their retention
type ReportCleanupJob struct {
	pruner    Pruner
	retention time.Duration
	logger    *logger.Logger
	now       func() time.Time
}

// NewReportCleanupJob creates a new report cleanup job
func NewReportCleanupJob(pruner Pruner, retention time.Duration, log *logger.Logger) *ReportCleanupJob {
	return &ReportCleanupJob{
		pruner:    pruner,
		retention: retention,
		logger:    log,
		now:       time.Now,
	}
}

// Name returns the job name
func (j *ReportCleanupJob) Name() string {
	return ReportCleanupJobName
}

// Schedule returns the cron schedule (daily at 03:00)
func (j *ReportCleanupJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run executes the report cleanup
func (j *ReportCleanupJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled report cleanup")

	count, err := j.pruner.Prune(j.now().Add(-j.retention))
	if err != nil {
		return fmt.Errorf("prune reports: %w", err)
	}

	if count > 0 {
		j.logger.WithField("removed", count).Info("Report cleanup completed")
	}

	return nil
}
