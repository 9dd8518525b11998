package marginstore

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/jackc/pgx/v5"
)

//go:embed fixtures/*.json
var bundled embed.FS

// Fixture is a set of named batches of positional row values
type Fixture map[string][][]string

// ParseFixture decodes fixture JSON and checks every row's width
func ParseFixture(data []byte, width int) (Fixture, error) {
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	for batch, rows := range f {
		for i, r := range rows {
			if len(r) != width {
				return nil, fmt.Errorf("fixture batch %s row %d: %d values, want %d", batch, i, len(r), width)
			}
		}
	}
	return f, nil
}

// Rows flattens the batches in batch-name order
func (f Fixture) Rows() [][]any {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	sort.Strings(names)

	var out [][]any
	for _, name := range names {
		for _, r := range f[name] {
			row := make([]any, len(r))
			for i, v := range r {
				row[i] = v
			}
			out = append(out, row)
		}
	}
	return out
}

// ReadFixture loads <table>.json from dir, or from the bundled sample set
// when dir is empty
func ReadFixture(dir, table string) (Fixture, error) {
	cols, ok := Columns(table)
	if !ok {
		return nil, fmt.Errorf("unknown report table %q", table)
	}

	var (
		data []byte
		err  error
	)
	if dir == "" {
		data, err = bundled.ReadFile("fixtures/" + table + ".json")
	} else {
		data, err = os.ReadFile(filepath.Join(dir, table+".json"))
	}
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", table, err)
	}

	return ParseFixture(data, len(cols))
}

// LoadFixture bulk-inserts the fixture rows into table with COPY
func (s *Store) LoadFixture(ctx context.Context, table string, f Fixture) (int64, error) {
	cols, ok := Columns(table)
	if !ok {
		return 0, fmt.Errorf("unknown report table %q", table)
	}

	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{table}, cols, pgx.CopyFromRows(f.Rows()))
	if err != nil {
		return 0, fmt.Errorf("copy into %s: %w", table, classify(err, false))
	}

	s.logger.WithFields(map[string]interface{}{
		"table": table,
		"rows":  n,
	}).Info("Fixture loaded")

	return n, nil
}
