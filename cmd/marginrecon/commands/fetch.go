package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/fetcher"
	"github.com/wonny/marginrecon/internal/pipeline"
	"github.com/wonny/marginrecon/internal/window"
)

// fetchCmd represents the fetch command
var fetchCmd = &cobra.Command{
	Use:   "fetch [report] [margin_class]",
	Short: "리포트 1건 조회",
	Long: `설정된 리포트 하나를 마진 구분 하나에 대해 조회하여 출력합니다.
대사 없이 조회 조건(날짜/시각 치환 결과)을 확인할 때 사용합니다.

Example:
  go run ./cmd/marginrecon fetch cc050_eod_report SPAN
  go run ./cmd/marginrecon fetch ci050_first_report IMSM --as-of 2020-05-12`,
	Args: cobra.ExactArgs(2),
	RunE: runFetch,
}

var fetchAsOf string

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVar(&fetchAsOf, "as-of", "", "기준일 YYYY-MM-DD (기본: 오늘)")
}

func runFetch(cmd *cobra.Command, args []string) error {
	reportName, margin := args[0], args[1]

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	asOf, err := window.ParseAsOf(fetchAsOf, cfg.Recon.Location())
	if err != nil {
		return fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
	}
	rc, err := pipeline.Prepare(cfg, asOf, nil)
	if err != nil {
		return err
	}

	report, ok := rc.Report(reportName)
	if !ok {
		return fmt.Errorf("%w: unknown report %q (have %v)", contracts.ErrConfigValidation, reportName, rc.ReportNames())
	}

	a, err := connect(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	f := fetcher.New(a.store, a.log, a.cfg.Recon.QueryTimeout, 1)
	ds, err := f.Fetch(context.Background(), report, margin)
	if err != nil {
		return err
	}

	fmt.Printf("%s (table %s, date %s", ds.Name, report.Table, report.Date)
	if report.TimeOfDay != "" {
		fmt.Printf(", time_of_day %s", report.TimeOfDay)
	}
	fmt.Println(")")
	PrintRows(ds.Columns, ds.Rows)
	return nil
}
