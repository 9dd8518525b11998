package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wonny/marginrecon/internal/marginstore"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "샘플 리포트 데이터 적재",
	Long: `cc050 / ci050 픽스처(JSON)를 COPY로 적재합니다.

픽스처 형식: {"<batch>": [[컬럼 값, ...], ...]}
--dir 를 지정하지 않으면 내장 샘플(2020-05-11 / 2020-05-12)을 사용합니다.

Example:
  go run ./cmd/marginrecon seed
  go run ./cmd/marginrecon seed --dir ./testdata`,
	RunE: runSeed,
}

var seedDir string

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().StringVar(&seedDir, "dir", "", "픽스처 디렉토리 (<table>.json)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := context.Background()
	if err := a.store.CreateTables(ctx); err != nil {
		return err
	}

	for _, table := range []string{"cc050", "ci050"} {
		f, err := marginstore.ReadFixture(seedDir, table)
		if err != nil {
			return err
		}
		n, err := a.store.LoadFixture(ctx, table, f)
		if err != nil {
			return err
		}
		fmt.Printf("✅ %s: %d rows loaded\n", table, n)
	}
	return nil
}
