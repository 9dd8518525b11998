package notify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/wonny/marginrecon/internal/contracts"
)

const (
	rowsSheet    = "Discrepancies"
	summarySheet = "Summary"
)

// Spreadsheet writes one .xlsx workbook per discrepancy into a directory
type Spreadsheet struct {
	dir string
}

// NewSpreadsheet writes workbooks into dir, creating it on first use
func NewSpreadsheet(dir string) *Spreadsheet {
	return &Spreadsheet{dir: dir}
}

// Path returns the workbook path used for d
func (s *Spreadsheet) Path(d *contracts.Discrepancy) string {
	name := fmt.Sprintf("%s_%s_vs_%s.xlsx", d.RunID, d.Left, d.Right)
	return filepath.Join(s.dir, name)
}

// Report writes the non-matching rows and the per-source totals
func (s *Spreadsheet) Report(_ context.Context, d *contracts.Discrepancy) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rowsSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}

	cols := append(append([]string{}, d.KeyColumns...), contracts.SourceColumn, contracts.DuplicateColumn)
	header := make([]interface{}, len(cols))
	for i, c := range cols {
		header[i] = c
	}
	if err := f.SetSheetRow(rowsSheet, "A1", &header); err != nil {
		return err
	}

	for i, row := range d.Rows {
		vals := make([]interface{}, len(cols))
		for j, c := range cols {
			vals[j] = row[c]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(rowsSheet, cell, &vals); err != nil {
			return err
		}
	}

	summary := [][]interface{}{
		{"run_id", d.RunID},
		{"margin", d.Margin},
		{"left", d.Left},
		{"right", d.Right},
		{"detected_at", d.DetectedAt.Format("2006-01-02 15:04:05")},
		{},
		{"source", "rows", "duplicates", "margin_total", "unparsed"},
	}
	sources := make([]string, 0, len(d.BySource))
	for src := range d.BySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)
	for _, src := range sources {
		t := d.BySource[src]
		summary = append(summary, []interface{}{src, t.Rows, t.Duplicates, t.Margin.String(), t.Unparsed})
	}
	for i, vals := range summary {
		if len(vals) == 0 {
			continue
		}
		if err := f.SetSheetRow(summarySheet, fmt.Sprintf("A%d", i+1), &vals); err != nil {
			return err
		}
	}

	if err := f.SaveAs(s.Path(d)); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// Prune removes workbooks last modified before cutoff and returns how many
// were removed. A missing directory has nothing to prune.
func (s *Spreadsheet) Prune(cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read report dir: %w", err)
	}

	removed := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".xlsx") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return removed, err
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
			return removed, fmt.Errorf("remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}
