package commands

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/wonny/marginrecon/internal/contracts"
)

var (
	// Global flags
	reportsFile string
	verbose     bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "marginrecon",
	Short: "마진 리포트 대사 (cc050 / ci050)",
	Long: `marginrecon CLI

cc050(정산 마진콜)과 ci050(장중 마진 스냅샷) 리포트를 PostgreSQL에서
조회하여 키 컬럼 기준으로 대사하고, 불일치 내역을 리포트합니다.

Usage:
  go run ./cmd/marginrecon [command]

Examples:
  go run ./cmd/marginrecon check --as-of 2020-05-12
  go run ./cmd/marginrecon config validate
  go run ./cmd/marginrecon schema create
  go run ./cmd/marginrecon seed
  go run ./cmd/marginrecon scheduler start
  go run ./cmd/marginrecon api`,
	SilenceUsage: true,
}

// exitError carries a process exit code that is not derived from an
// error kind, such as discrepancies under --fail-on-discrepancy
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

// ExitCode maps an error returned by Execute to the process exit code
func ExitCode(err error) int {
	var e *exitError
	if errors.As(err, &e) {
		return e.code
	}
	return contracts.ExitCode(err)
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&reportsFile, "reports-file", "", "report configuration YAML (default RECON_REPORTS_FILE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
