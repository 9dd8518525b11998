// Package marginstore is the PostgreSQL side of the margin reports: the
// report selection used by the fetcher plus schema and fixture helpers.
package marginstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/query"
	"github.com/wonny/marginrecon/pkg/logger"
)

// Store reads and writes the cc050/ci050 tables
// ⭐ SSOT: 마진 리포트 테이블 접근은 여기서만
type Store struct {
	pool   *pgxpool.Pool
	logger *logger.Logger
}

// New creates a store on top of a shared pool
func New(pool *pgxpool.Pool, log *logger.Logger) *Store {
	return &Store{pool: pool, logger: log}
}

// Select runs the predicate on a connection acquired for this call only.
// The connection goes back to the pool on every path.
func (s *Store) Select(ctx context.Context, p query.Predicate) ([]string, []contracts.Row, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: acquire connection: %w", contracts.ErrConnection, err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, p.SQL(), p.Args()...)
	if err != nil {
		return nil, nil, classify(err, conn.Conn().IsClosed())
	}

	columns := fieldNames(rows.FieldDescriptions())

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, nil, classify(err, conn.Conn().IsClosed())
	}
	if columns == nil {
		columns = fieldNames(rows.FieldDescriptions())
	}

	out := make([]contracts.Row, 0, len(maps))
	for _, m := range maps {
		out = append(out, contracts.Row(m))
	}

	s.logger.WithFields(map[string]interface{}{
		"table": p.Table,
		"args":  p.Args(),
		"rows":  len(out),
	}).Debug("Report rows selected")

	return columns, out, nil
}

func fieldNames(fds []pgconn.FieldDescription) []string {
	if fds == nil {
		return nil
	}
	names := make([]string, 0, len(fds))
	for _, fd := range fds {
		names = append(names, fd.Name)
	}
	return names
}

// classify maps a driver error to ErrConnection or ErrQuery. Server-side
// errors are always query errors; a dead connection is a connection error.
func classify(err error, connClosed bool) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fmt.Errorf("%w: %s (SQLSTATE %s): %w", contracts.ErrQuery, pgErr.Message, pgErr.Code, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) || (connClosed && !errors.Is(err, context.DeadlineExceeded)) {
		return fmt.Errorf("%w: %w", contracts.ErrConnection, err)
	}

	return fmt.Errorf("%w: %w", contracts.ErrQuery, err)
}
