// Package fetcher turns report definitions into datasets, one per margin
// class and report.
package fetcher

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/query"
	"github.com/wonny/marginrecon/internal/reportconfig"
	"github.com/wonny/marginrecon/pkg/logger"
)

// Store executes a report selection
type Store interface {
	Select(ctx context.Context, p query.Predicate) ([]string, []contracts.Row, error)
}

// Reports maps margin class → report name → dataset
type Reports map[string]map[string]*contracts.Dataset

// Get returns the dataset of report for margin
func (r Reports) Get(margin, report string) (*contracts.Dataset, bool) {
	ds, ok := r[margin][report]
	return ds, ok
}

// Count returns the number of datasets held
func (r Reports) Count() int {
	n := 0
	for _, byReport := range r {
		n += len(byReport)
	}
	return n
}

// Fetcher loads report datasets from a Store
type Fetcher struct {
	store   Store
	logger  *logger.Logger
	timeout time.Duration
	workers int
}

// New creates a fetcher. timeout bounds each query; workers bounds the
// number of queries in flight.
func New(store Store, log *logger.Logger, timeout time.Duration, workers int) *Fetcher {
	if workers < 1 {
		workers = 1
	}
	return &Fetcher{
		store:   store,
		logger:  log,
		timeout: timeout,
		workers: workers,
	}
}

// Fetch loads one report for one margin class. An empty result is a valid
// empty dataset; failures come back as ErrConnection or ErrQuery.
func (f *Fetcher) Fetch(ctx context.Context, report reportconfig.Report, margin string) (*contracts.Dataset, error) {
	name := contracts.DatasetName(report.Name, margin)
	p := query.Build(report.Table, margin, report.Date, report.TimeOfDay)

	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	start := time.Now()
	cols, rows, err := f.store.Select(ctx, p)
	if err != nil {
		f.logger.WithFields(map[string]interface{}{
			"dataset": name,
			"table":   report.Table,
		}).WithError(err).Error("Failed to fetch report")
		return nil, fmt.Errorf("fetch %s: %w", name, err)
	}

	f.logger.WithFields(map[string]interface{}{
		"dataset":  name,
		"rows":     len(rows),
		"duration": time.Since(start).String(),
	}).Debug("Report fetched")

	return &contracts.Dataset{Name: name, Columns: cols, Rows: rows}, nil
}

// FetchReports loads every report for every margin class. Any failure
// fails the whole call and no partial mapping is returned.
// ⭐ SSOT: 결과 키 = margin_classes × reports
func (f *Fetcher) FetchReports(ctx context.Context, cfg *reportconfig.Config) (Reports, error) {
	type job struct {
		margin string
		report reportconfig.Report
	}

	jobs := make([]job, 0, len(cfg.MarginClasses)*len(cfg.Reports))
	for _, m := range cfg.MarginClasses {
		for _, r := range cfg.Reports {
			jobs = append(jobs, job{margin: m, report: r})
		}
	}

	results := make([]*contracts.Dataset, len(jobs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.workers)

	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			ds, err := f.Fetch(gctx, j.report, j.margin)
			if err != nil {
				return err
			}
			results[i] = ds
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(Reports, len(cfg.MarginClasses))
	for i, j := range jobs {
		if out[j.margin] == nil {
			out[j.margin] = make(map[string]*contracts.Dataset, len(cfg.Reports))
		}
		out[j.margin][j.report.Name] = results[i]
	}

	f.logger.WithFields(map[string]interface{}{
		"margin_classes": len(cfg.MarginClasses),
		"reports":        len(cfg.Reports),
		"datasets":       len(jobs),
	}).Info("Reports fetched")

	return out, nil
}
