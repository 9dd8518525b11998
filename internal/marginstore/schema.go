package marginstore

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/wonny/marginrecon/internal/contracts"
)

// Business columns per table, in insert order
var (
	CC050Columns = []string{"date", "clearing_member", "account", "margin_type", "margin"}
	CI050Columns = []string{"date", "time_of_day", "clearing_member", "account", "margin_type", "margin"}
)

// Columns returns the business columns of a known report table
func Columns(table string) ([]string, bool) {
	switch table {
	case "cc050":
		return CC050Columns, true
	case "ci050":
		return CI050Columns, true
	}
	return nil, false
}

var ddl = []string{
	`CREATE TABLE IF NOT EXISTS cc050 (
		id SERIAL PRIMARY KEY,
		date VARCHAR(255) NOT NULL,
		clearing_member VARCHAR(255) NOT NULL,
		account VARCHAR(255) NOT NULL,
		margin_type VARCHAR(255) NOT NULL,
		margin VARCHAR(255) NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS ci050 (
		id SERIAL PRIMARY KEY,
		date VARCHAR(255) NOT NULL,
		time_of_day VARCHAR(255) NOT NULL,
		clearing_member VARCHAR(255) NOT NULL,
		account VARCHAR(255) NOT NULL,
		margin_type VARCHAR(255) NOT NULL,
		margin VARCHAR(255) NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS cc050_lookup_idx ON cc050 (margin_type, date)`,
	`CREATE INDEX IF NOT EXISTS ci050_lookup_idx ON ci050 (margin_type, date, time_of_day)`,
}

// CreateTables creates both report tables in one transaction
func (s *Store) CreateTables(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", contracts.ErrConnection, err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range ddl {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("create tables: %w", classify(err, false))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("create tables: commit: %w", err)
	}

	s.logger.Info("Report tables ready")
	return nil
}

// Latest returns the newest n rows of table, newest first
func (s *Store) Latest(ctx context.Context, table string, n int) ([]contracts.Row, error) {
	cols, ok := Columns(table)
	if !ok {
		return nil, fmt.Errorf("unknown report table %q", table)
	}

	quoted := make([]string, 0, len(cols))
	for _, c := range cols {
		quoted = append(quoted, pgx.Identifier{c}.Sanitize())
	}
	sql := fmt.Sprintf("SELECT %s FROM %s ORDER BY id DESC LIMIT $1",
		strings.Join(quoted, ", "), pgx.Identifier{table}.Sanitize())

	rows, err := s.pool.Query(ctx, sql, n)
	if err != nil {
		return nil, classify(err, false)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, classify(err, false)
	}

	out := make([]contracts.Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, contracts.Row(m))
	}
	return out, nil
}

// CheckIntegrity verifies every table exists and carries every key column
func (s *Store) CheckIntegrity(ctx context.Context, tables, keyColumns []string) error {
	rows, err := s.pool.Query(ctx, `
		SELECT table_name, column_name
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = ANY($1)
	`, tables)
	if err != nil {
		return classify(err, false)
	}

	present := make(map[string]map[string]bool)
	var table, column string
	_, err = pgx.ForEachRow(rows, []any{&table, &column}, func() error {
		if present[table] == nil {
			present[table] = make(map[string]bool)
		}
		present[table][column] = true
		return nil
	})
	if err != nil {
		return classify(err, false)
	}

	return missingSchema(present, tables, keyColumns)
}

func missingSchema(present map[string]map[string]bool, tables, keyColumns []string) error {
	var problems []string
	for _, t := range tables {
		cols, ok := present[t]
		if !ok {
			problems = append(problems, fmt.Sprintf("table %s does not exist", t))
			continue
		}
		var missing []string
		for _, k := range keyColumns {
			if !cols[k] {
				missing = append(missing, k)
			}
		}
		if len(missing) > 0 {
			sort.Strings(missing)
			problems = append(problems, fmt.Sprintf("table %s lacks %s", t, strings.Join(missing, ", ")))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", contracts.ErrConfigValidation, strings.Join(problems, "; "))
	}
	return nil
}
