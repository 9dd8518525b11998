package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/pipeline"
	"github.com/wonny/marginrecon/internal/scheduler"
	"github.com/wonny/marginrecon/pkg/logger"
)

// ReconciliationJobName identifies the scheduled reconciliation
const ReconciliationJobName = "margin_reconciliation"

// Runner runs one reconciliation
type Runner interface {
	Run(ctx context.Context, opts pipeline.Options) (*contracts.RunSummary, error)
}

// ReconciliationJob runs the margin reconciliation on a schedule
// ⭐ SSOT: 정기 대사 실행은 이 Job에서만
type ReconciliationJob struct {
	runner   Runner
	schedule string
	loc      *time.Location
	now      func() time.Time
	logger   *logger.Logger
}

// NewReconciliationJob creates the job for the given cron schedule
func NewReconciliationJob(runner Runner, schedule string, log *logger.Logger) *ReconciliationJob {
	return &ReconciliationJob{
		runner:   runner,
		schedule: schedule,
		loc:      time.Local,
		now:      time.Now,
		logger:   log,
	}
}

// WithLocation sets the zone of the run date. It should match the
// scheduler's zone so a run fired just after midnight reconciles the new day.
func (j *ReconciliationJob) WithLocation(loc *time.Location) *ReconciliationJob {
	j.loc = loc
	return j
}

// Name returns the job name
func (j *ReconciliationJob) Name() string {
	return ReconciliationJobName
}

// Schedule returns the cron schedule (with seconds)
func (j *ReconciliationJob) Schedule() string {
	return j.schedule
}

// Run reconciles as of today in the job's zone. Only store failures are worth a retry;
// configuration, reconciliation and delivery errors are permanent.
func (j *ReconciliationJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled margin reconciliation")

	now := j.now().In(j.loc)
	asOf := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, j.loc)

	summary, err := j.runner.Run(ctx, pipeline.Options{AsOf: asOf})
	if errors.Is(err, pipeline.ErrRunInProgress) {
		j.logger.Warn("Previous reconciliation still running, skipping")
		return nil
	}
	if err != nil {
		switch contracts.ExitCode(err) {
		case contracts.ExitConnection, contracts.ExitQuery:
			return fmt.Errorf("reconciliation run: %w", err)
		default:
			return scheduler.Permanent(fmt.Errorf("reconciliation run: %w", err))
		}
	}

	j.logger.WithFields(map[string]interface{}{
		"run_id":        summary.RunID,
		"as_of":         summary.AsOf,
		"zone":          j.loc.String(),
		"discrepancies": summary.Discrepancies(),
	}).Info("Scheduled margin reconciliation finished")

	return nil
}
