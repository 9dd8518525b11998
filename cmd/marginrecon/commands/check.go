package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/pipeline"
	"github.com/wonny/marginrecon/internal/window"
	"github.com/wonny/marginrecon/pkg/config"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "마진 리포트 대사 1회 실행",
	Long: `설정된 모든 마진 구분 × 리포트 쌍을 조회하여 대사합니다.

이 명령어는:
- 기준일(as-of)로부터 last_day / current_day 계산
- 리포트 설정(YAML) 검증
- 모든 리포트 조회 (하나라도 실패하면 중단)
- 리포트 쌍별 대사 및 불일치 리포트

Exit codes:
  0  성공
  2  설정 검증 실패
  3  DB 연결 실패
  4  쿼리 실패
  5  대사 실패
  6  알림 전송 실패
  10 불일치 발견 (--fail-on-discrepancy)

Example:
  go run ./cmd/marginrecon check
  go run ./cmd/marginrecon check --as-of 2020-05-12
  go run ./cmd/marginrecon check --reports cc050_eod_report,ci050_first_report --fail-on-discrepancy`,
	RunE: runCheck,
}

var (
	checkAsOf              string
	checkReports           []string
	checkFailOnDiscrepancy bool
)

func init() {
	rootCmd.AddCommand(checkCmd)

	checkCmd.Flags().StringVar(&checkAsOf, "as-of", "", "기준일 YYYY-MM-DD (기본: 오늘)")
	checkCmd.Flags().StringSliceVar(&checkReports, "reports", nil, "대사할 리포트 이름 (기본: 전체)")
	checkCmd.Flags().BoolVar(&checkFailOnDiscrepancy, "fail-on-discrepancy", false, "불일치 발견 시 exit code 10")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	asOf, err := preflight(cfg, checkAsOf, checkReports)
	if err != nil {
		return err
	}

	a, err := connect(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	runner, err := a.runner(nil)
	if err != nil {
		return err
	}

	summary, runErr := runner.Run(context.Background(), pipeline.Options{
		AsOf:              asOf,
		Reports:           checkReports,
		FailOnDiscrepancy: checkFailOnDiscrepancy,
	})
	if summary != nil {
		PrintRunSummary(summary)
	}
	if runErr != nil {
		return runErr
	}

	if summary.ExitCode == contracts.ExitDiscrepancy {
		return &exitError{
			code: contracts.ExitDiscrepancy,
			err:  fmt.Errorf("%d discrepancy report(s) found", summary.Discrepancies()),
		}
	}
	return nil
}

// preflight resolves the as-of date and validates the report configuration
// without touching the database, so a bad file exits 2 even when
// PostgreSQL is down
func preflight(cfg *config.Config, asOfFlag string, reports []string) (time.Time, error) {
	asOf, err := window.ParseAsOf(asOfFlag, cfg.Recon.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
	}
	if _, err := pipeline.Prepare(cfg, asOf, reports); err != nil {
		return time.Time{}, err
	}
	return asOf, nil
}
