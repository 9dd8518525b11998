package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"

	"github.com/wonny/marginrecon/internal/contracts"
)

// Console prints discrepancies as a table
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole writes to w, or to stdout when w is nil
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = os.Stdout
	}
	return &Console{w: w}
}

// Report writes a header line, the unmatched rows and the per-source totals
func (c *Console) Report(_ context.Context, d *contracts.Discrepancy) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	tw := tabwriter.NewWriter(c.w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(tw, "%s vs %s (%s): %d non-matching row(s)\n", d.Left, d.Right, d.Margin, len(d.Rows))

	cols := append(append([]string{}, d.KeyColumns...), contracts.SourceColumn, contracts.DuplicateColumn)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for _, row := range d.Rows {
		vals := make([]string, len(cols))
		for i, col := range cols {
			vals[i] = fmt.Sprint(row[col])
		}
		fmt.Fprintln(tw, strings.Join(vals, "\t"))
	}

	sources := make([]string, 0, len(d.BySource))
	for s := range d.BySource {
		sources = append(sources, s)
	}
	sort.Strings(sources)
	for _, s := range sources {
		t := d.BySource[s]
		fmt.Fprintf(tw, "%s\trows=%d\tduplicates=%d\tmargin=%s\n", s, t.Rows, t.Duplicates, t.Margin.String())
	}
	fmt.Fprintln(tw)

	return tw.Flush()
}
