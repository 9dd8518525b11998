package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/reportconfig"
	"github.com/wonny/marginrecon/internal/window"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "설정 점검",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "환경/리포트 설정 검증 (DB 연결 없음)",
	Long: `환경변수 설정과 리포트 설정(YAML)을 검증합니다.
모든 검증 오류를 한 번에 출력하며, 경고(무효 리포트 쌍 등)도 함께 표시합니다.

Example:
  go run ./cmd/marginrecon config validate
  go run ./cmd/marginrecon config validate --reports-file config/reports.yaml --as-of 2020-05-12`,
	RunE: runConfigValidate,
}

var configAsOf string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configValidateCmd)

	configValidateCmd.Flags().StringVar(&configAsOf, "as-of", "", "기준일 YYYY-MM-DD (기본: 오늘)")
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Printf("✅ Environment (ENV: %s, DB: %s)\n", cfg.Env, maskPassword(cfg.Database.URL))

	asOf, err := window.ParseAsOf(configAsOf, cfg.Recon.Location())
	if err != nil {
		return fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
	}
	dates, err := window.Compute(asOf, window.Boundaries{Close: cfg.Recon.CloseTime, Open: cfg.Recon.OpenTime})
	if err != nil {
		return fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
	}

	rc, err := reportconfig.Load(cfg.Recon.ReportsFile, dates)
	if err != nil {
		var verrs reportconfig.ValidationErrors
		if errors.As(err, &verrs) {
			fmt.Printf("❌ %s: %d error(s)\n", cfg.Recon.ReportsFile, len(verrs))
			for _, e := range verrs {
				fmt.Printf("   - %s\n", e.Error())
			}
		}
		return err
	}

	hash, err := reportconfig.Hash(rc)
	if err != nil {
		return err
	}

	fmt.Printf("✅ %s (hash %s)\n", cfg.Recon.ReportsFile, hash[:12])
	fmt.Printf("   last_day=%s current_day=%s max_time_of_day=%s min_time_of_day=%s\n",
		dates.LastDay, dates.CurrentDay, dates.MaxTimeOfDay, dates.MinTimeOfDay)
	fmt.Printf("   %d margin classes × %d reports, %d pairs\n",
		len(rc.MarginClasses), len(rc.Reports), len(rc.ComparePairs()))

	for _, w := range reportconfig.Warn(rc) {
		fmt.Printf("⚠️  [%s] %s\n", w.Code, w.Message)
	}
	return nil
}
