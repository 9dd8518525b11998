package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marginrecon/internal/notify"
	"github.com/wonny/marginrecon/internal/scheduler"
	"github.com/wonny/marginrecon/internal/scheduler/jobs"
	"github.com/wonny/marginrecon/pkg/config"
	"github.com/wonny/marginrecon/pkg/logger"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `대사 스케줄러를 시작하거나 작업을 관리합니다.

Subcommands:
  start   - 스케줄러 시작 (RECON_SCHEDULE)
  list    - 등록된 작업 및 다음 실행 시각
  run     - 대사 작업 즉시 1회 실행

Example:
  go run ./cmd/marginrecon scheduler start
  go run ./cmd/marginrecon scheduler list
  go run ./cmd/marginrecon scheduler run`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 margin_reconciliation 작업을 스케줄합니다.

등록되는 작업:
- margin_reconciliation: RECON_SCHEDULE (기본 평일 08:30:00)

DB 연결/쿼리 실패는 재시도, 설정/대사/알림 실패는 재시도하지 않습니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run",
		Short: "대사 작업 즉시 실행",
		RunE:  runJobNow,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

// newScheduler registers the reconciliation job on a new scheduler, plus
// the workbook cleanup when the xlsx sink is enabled
func newScheduler(runner jobs.Runner, cfg *config.Config, log *logger.Logger) (*scheduler.Scheduler, error) {
	loc := cfg.Recon.Location()
	sched := scheduler.New(log, scheduler.WithRetry(3, time.Minute), scheduler.WithLocation(loc))
	if err := sched.AddJob(jobs.NewReconciliationJob(runner, cfg.Recon.Schedule, log).WithLocation(loc)); err != nil {
		return nil, err
	}
	if slices.Contains(cfg.Notify.Sinks, "xlsx") {
		cleanup := jobs.NewReportCleanupJob(notify.NewSpreadsheet(cfg.Notify.SpreadsheetDir), cfg.Notify.Retention, log)
		if err := sched.AddJob(cleanup); err != nil {
			return nil, err
		}
	}
	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== marginrecon Scheduler ===")

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(nil)
	if err != nil {
		return err
	}

	sched, err := newScheduler(runner, a.cfg, a.log)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		next, _ := sched.NextRun(jobName)
		fmt.Printf("  - %s (next: %s)\n", jobName, next.Format("2006-01-02 15:04:05"))
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down scheduler...")
	sched.Stop()
	fmt.Println("Scheduler stopped")

	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	schedules := []struct{ name, spec string }{
		{jobs.ReconciliationJobName, cfg.Recon.Schedule},
	}
	if slices.Contains(cfg.Notify.Sinks, "xlsx") {
		cleanup := jobs.NewReportCleanupJob(nil, cfg.Notify.Retention, nil)
		schedules = append(schedules, struct{ name, spec string }{cleanup.Name(), cleanup.Schedule()})
	}

	fmt.Println("Registered jobs:")
	for _, j := range schedules {
		next, err := scheduler.NextActivation(j.spec, time.Now().In(cfg.Recon.Location()))
		if err != nil {
			return err
		}
		fmt.Printf("  - %s\n", j.name)
		fmt.Printf("    Schedule: %s\n", j.spec)
		fmt.Printf("    Next Run: %s\n", next.Format("2006-01-02 15:04:05"))
	}

	return nil
}

func runJobNow(cmd *cobra.Command, args []string) error {
	fmt.Printf("Running job: %s\n", jobs.ReconciliationJobName)

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(nil)
	if err != nil {
		return err
	}

	job := jobs.NewReconciliationJob(runner, a.cfg.Recon.Schedule, a.log).WithLocation(a.cfg.Recon.Location())
	if err := job.Run(context.Background()); err != nil {
		return err
	}

	if s := runner.LastSummary(); s != nil {
		PrintRunSummary(s)
	}
	return nil
}
