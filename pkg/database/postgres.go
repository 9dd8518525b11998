package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/marginrecon/pkg/config"
)

const (
	applicationName = "marginrecon"
	connectTimeout  = 5 * time.Second
)

// DB is the pool shared by every report fetch of one process
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New opens the pool and returns once the server answers a ping
func New(cfg *config.Config) (*DB, error) {
	pc, err := poolConfig(cfg.Database, cfg.Recon.QueryTimeout)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// poolConfig maps DatabaseConfig onto pgxpool. A positive statementTimeout
// is also enforced server side, so a query outliving its context is
// cancelled by PostgreSQL as well.
func poolConfig(c config.DatabaseConfig, statementTimeout time.Duration) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	if c.MaxConns > 0 {
		pc.MaxConns = int32(c.MaxConns)
	}
	if c.MinConns > 0 {
		pc.MinConns = int32(c.MinConns)
	}
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}

	params := pc.ConnConfig.RuntimeParams
	params["application_name"] = applicationName
	if statementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(statementTimeout.Milliseconds(), 10)
	}

	return pc, nil
}

// Close releases every pooled connection. Safe to call twice.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// HealthStatus is served by GET /health and printed by test-db
type HealthStatus struct {
	Healthy      bool          `json:"healthy"`
	Timestamp    time.Time     `json:"timestamp"`
	ResponseTime time.Duration `json:"response_time"`
	Error        string        `json:"error,omitempty"`
	Stats        PoolStats     `json:"stats"`
}

// HealthCheck pings the server and snapshots the pool. The status is
// returned on failure too, so callers can still report pool usage.
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	err := db.Pool.Ping(ctx)

	status := &HealthStatus{
		Healthy:      err == nil,
		Timestamp:    start,
		ResponseTime: time.Since(start),
		Stats:        db.Stats(),
	}
	if err != nil {
		status.Error = err.Error()
	}
	return status, err
}

// PoolStats is a JSON friendly snapshot of pgxpool.Stat
type PoolStats struct {
	MaxConns             int32         `json:"max_conns"`
	TotalConns           int32         `json:"total_conns"`
	AcquiredConns        int32         `json:"acquired_conns"`
	IdleConns            int32         `json:"idle_conns"`
	AcquireCount         int64         `json:"acquire_count"`
	CanceledAcquireCount int64         `json:"canceled_acquire_count"`
	AcquireDuration      time.Duration `json:"acquire_duration"`
}

// Stats snapshots the pool counters
func (db *DB) Stats() PoolStats {
	s := db.Pool.Stat()
	return PoolStats{
		MaxConns:             s.MaxConns(),
		TotalConns:           s.TotalConns(),
		AcquiredConns:        s.AcquiredConns(),
		IdleConns:            s.IdleConns(),
		AcquireCount:         s.AcquireCount(),
		CanceledAcquireCount: s.CanceledAcquireCount(),
		AcquireDuration:      s.AcquireDuration(),
	}
}
