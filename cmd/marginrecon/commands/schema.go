package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/marginstore"
	"github.com/wonny/marginrecon/internal/reportconfig"
	"github.com/wonny/marginrecon/internal/window"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "리포트 테이블 관리",
	Long: `cc050 / ci050 테이블을 생성하거나 점검합니다.

Subcommands:
  create  - 테이블 및 인덱스 생성 (IF NOT EXISTS)
  check   - 설정된 테이블/키 컬럼 존재 여부 점검
  tail    - 테이블 최근 행 조회

Example:
  go run ./cmd/marginrecon schema create
  go run ./cmd/marginrecon schema check
  go run ./cmd/marginrecon schema tail cc050 -n 20`,
}

var (
	schemaCreateCmd = &cobra.Command{
		Use:   "create",
		Short: "테이블 생성",
		RunE:  runSchemaCreate,
	}

	schemaCheckCmd = &cobra.Command{
		Use:   "check",
		Short: "테이블/키 컬럼 점검",
		RunE:  runSchemaCheck,
	}

	schemaTailCmd = &cobra.Command{
		Use:   "tail [table]",
		Short: "최근 행 조회",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchemaTail,
	}

	tailRows int
)

func init() {
	rootCmd.AddCommand(schemaCmd)
	schemaCmd.AddCommand(schemaCreateCmd)
	schemaCmd.AddCommand(schemaCheckCmd)
	schemaCmd.AddCommand(schemaTailCmd)

	schemaTailCmd.Flags().IntVarP(&tailRows, "rows", "n", 10, "조회할 행 수")
}

func runSchemaCreate(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Recon.QueryTimeout)
	defer cancel()

	if err := a.store.CreateTables(ctx); err != nil {
		return err
	}
	fmt.Println("✅ Tables cc050, ci050 ready")
	return nil
}

func runSchemaCheck(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	dates, err := window.Compute(time.Now(), window.Boundaries{Close: a.cfg.Recon.CloseTime, Open: a.cfg.Recon.OpenTime})
	if err != nil {
		return fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
	}
	rc, err := reportconfig.Load(a.cfg.Recon.ReportsFile, dates)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Recon.QueryTimeout)
	defer cancel()

	if err := a.store.CheckIntegrity(ctx, rc.Tables(), rc.ColsToCheck); err != nil {
		return err
	}
	fmt.Printf("✅ Tables %v expose %v\n", rc.Tables(), rc.ColsToCheck)
	return nil
}

func runSchemaTail(cmd *cobra.Command, args []string) error {
	table := args[0]
	cols, ok := marginstore.Columns(table)
	if !ok {
		return fmt.Errorf("%w: unknown table %q", contracts.ErrConfigValidation, table)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Recon.QueryTimeout)
	defer cancel()

	rows, err := a.store.Latest(ctx, table, tailRows)
	if err != nil {
		return err
	}
	PrintRows(cols, rows)
	return nil
}
