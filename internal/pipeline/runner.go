// Package pipeline runs one complete reconciliation: window, report
// configuration, fetch, per-pair checks and the run summary.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/fetcher"
	"github.com/wonny/marginrecon/internal/reconcile"
	"github.com/wonny/marginrecon/internal/reportconfig"
	"github.com/wonny/marginrecon/internal/window"
	"github.com/wonny/marginrecon/pkg/config"
	"github.com/wonny/marginrecon/pkg/logger"
	"github.com/wonny/marginrecon/pkg/redis"
)

// ErrRunInProgress is returned when Run is called while a run is active
var ErrRunInProgress = errors.New("a reconciliation run is already in progress")

// integrityChecker is implemented by stores that can verify the schema
type integrityChecker interface {
	CheckIntegrity(ctx context.Context, tables, keyColumns []string) error
}

// Deps are the collaborators of a Runner
type Deps struct {
	Store  fetcher.Store
	Sink   reconcile.Sink
	Cache  *redis.Cache // optional
	Logger *logger.Logger
}

// Options narrow a single run
type Options struct {
	AsOf              time.Time // zero means today in RECON_TIMEZONE
	Reports           []string  // restrict to these report names
	FailOnDiscrepancy bool
}

// Runner executes reconciliation runs
// ⭐ SSOT: 실행 순서 = 검증 → 전체 조회(fail-fast) → 쌍별 비교
type Runner struct {
	cfg    *config.Config
	deps   Deps
	logger *logger.Logger
	now    func() time.Time

	running atomic.Bool

	mu   sync.RWMutex
	last *contracts.RunSummary
}

// New creates a runner
func New(cfg *config.Config, deps Deps) *Runner {
	if deps.Cache == nil {
		deps.Cache = redis.NewCache(redis.Disabled(), "marginrecon")
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNop()
	}
	return &Runner{
		cfg:    cfg,
		deps:   deps,
		logger: deps.Logger,
		now:    time.Now,
	}
}

// Running reports whether a run is in progress
func (r *Runner) Running() bool {
	return r.running.Load()
}

// LastSummary returns the summary of the most recent run in this process
func (r *Runner) LastSummary() *contracts.RunSummary {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}

// Run performs one reconciliation. Unless another run is in progress the
// summary is returned with ExitCode set; err carries every failure.
func (r *Runner) Run(ctx context.Context, opts Options) (*contracts.RunSummary, error) {
	if !r.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer r.running.Store(false)

	return r.execute(ctx, uuid.NewString(), opts)
}

// Start claims the run slot before returning and runs in the background.
// It fails with ErrRunInProgress, without starting anything, while another
// run holds the slot. The result is published like any other run.
func (r *Runner) Start(opts Options) (string, error) {
	if !r.running.CompareAndSwap(false, true) {
		return "", ErrRunInProgress
	}

	runID := uuid.NewString()
	go func() {
		defer r.running.Store(false)
		_, _ = r.execute(context.Background(), runID, opts)
	}()
	return runID, nil
}

func (r *Runner) execute(ctx context.Context, runID string, opts Options) (*contracts.RunSummary, error) {
	summary := &contracts.RunSummary{
		RunID:     runID,
		StartedAt: r.now().UTC(),
	}
	log := r.logger.WithField("run_id", summary.RunID)

	if r.cfg.Recon.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Recon.RunDeadline)
		defer cancel()
	}

	err := r.run(ctx, opts, summary, log)

	summary.FinishedAt = r.now().UTC()
	summary.ExitCode = contracts.ExitCode(err)
	if err != nil {
		for _, e := range unwrapJoined(err) {
			summary.Errors = append(summary.Errors, e.Error())
		}
	}
	if summary.ExitCode == contracts.ExitOK && opts.FailOnDiscrepancy && summary.Discrepancies() > 0 {
		summary.ExitCode = contracts.ExitDiscrepancy
	}

	r.publish(summary, log)

	fields := map[string]interface{}{
		"as_of":         summary.AsOf,
		"datasets":      summary.Datasets,
		"pairs":         len(summary.Outcomes),
		"discrepancies": summary.Discrepancies(),
		"exit_code":     summary.ExitCode,
		"duration":      summary.FinishedAt.Sub(summary.StartedAt).String(),
	}
	if err != nil {
		log.WithFields(fields).WithError(err).Error("Reconciliation run failed")
	} else {
		log.WithFields(fields).Info("Reconciliation run finished")
	}

	return summary, err
}

// Prepare resolves the run window for asOf and loads the report
// configuration, restricted to reports when given. Every failure is a
// configuration error. It needs no database, so callers can validate
// before connecting.
func Prepare(cfg *config.Config, asOf time.Time, reports []string) (*reportconfig.Config, error) {
	dates, err := window.Compute(asOf, window.Boundaries{
		Close: cfg.Recon.CloseTime,
		Open:  cfg.Recon.OpenTime,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
	}

	rc, err := reportconfig.Load(cfg.Recon.ReportsFile, dates)
	if err != nil {
		if !errors.Is(err, contracts.ErrConfigValidation) {
			err = fmt.Errorf("%w: %w", contracts.ErrConfigValidation, err)
		}
		return nil, err
	}
	if len(reports) > 0 {
		return Restrict(rc, reports)
	}
	return rc, nil
}

func (r *Runner) run(ctx context.Context, opts Options, summary *contracts.RunSummary, log *logger.Logger) error {
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = r.now().In(r.cfg.Recon.Location())
	}
	summary.AsOf = asOf.Format(window.DateLayout)

	rc, err := Prepare(r.cfg, asOf, opts.Reports)
	if err != nil {
		return err
	}
	for _, w := range reportconfig.Warn(rc) {
		log.WithField("code", w.Code).Warn(w.Message)
	}

	if ic, ok := r.deps.Store.(integrityChecker); ok {
		if err := ic.CheckIntegrity(ctx, rc.Tables(), rc.ColsToCheck); err != nil {
			return err
		}
	}

	f := fetcher.New(r.deps.Store, r.logger, r.cfg.Recon.QueryTimeout, r.cfg.Recon.FetchWorkers)
	reports, err := f.FetchReports(ctx, rc)
	if err != nil {
		return err
	}
	summary.Datasets = reports.Count()

	checker := reconcile.NewChecker(r.deps.Sink, r.logger, summary.RunID)

	var errs []error
	for _, margin := range rc.MarginClasses {
		for _, pair := range rc.ComparePairs() {
			if skip := skipReason(rc, pair); skip != "" {
				log.WithFields(map[string]interface{}{
					"margin_class": margin,
					"left":         pair.Left,
					"right":        pair.Right,
				}).Warn(skip)
				summary.Outcomes = append(summary.Outcomes, contracts.PairOutcome{
					Margin:  margin,
					Left:    contracts.DatasetName(pair.Left, margin),
					Right:   contracts.DatasetName(pair.Right, margin),
					Skipped: true,
				})
				continue
			}

			left, _ := reports.Get(margin, pair.Left)
			right, _ := reports.Get(margin, pair.Right)

			outcome, err := checker.CheckPair(ctx, margin, left, right, rc.ColsToCheck)
			if err != nil {
				outcome.Error = err.Error()
				errs = append(errs, err)
			}
			summary.Outcomes = append(summary.Outcomes, outcome)
		}
	}

	return errors.Join(errs...)
}

func skipReason(rc *reportconfig.Config, pair reportconfig.Pair) string {
	for _, name := range []string{pair.Left, pair.Right} {
		if rep, ok := rc.Report(name); ok && !rep.IsValid() {
			return fmt.Sprintf("skipping pair: report %s is marked invalid", name)
		}
	}
	return ""
}

// Restrict keeps only the named reports and the pairs between them
func Restrict(rc *reportconfig.Config, names []string) (*reportconfig.Config, error) {
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := rc.Report(n); !ok {
			return nil, fmt.Errorf("%w: unknown report %q", contracts.ErrConfigValidation, n)
		}
		keep[n] = true
	}

	out := *rc
	out.Reports = nil
	for _, rep := range rc.Reports {
		if keep[rep.Name] {
			out.Reports = append(out.Reports, rep)
		}
	}
	out.Pairs = []reportconfig.Pair{}
	for _, p := range rc.ComparePairs() {
		if keep[p.Left] && keep[p.Right] {
			out.Pairs = append(out.Pairs, p)
		}
	}
	if len(out.Pairs) == 0 {
		return nil, fmt.Errorf("%w: no configured pair among reports %v", contracts.ErrConfigValidation, names)
	}
	return &out, nil
}

func (r *Runner) publish(summary *contracts.RunSummary, log *logger.Logger) {
	r.mu.Lock()
	r.last = summary
	r.mu.Unlock()

	// Own context: the run context may already be past its deadline
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := r.deps.Cache.Set(ctx, redis.LatestRunKey, summary, redis.TTLRun); err != nil {
		log.WithError(err).Warn("Failed to cache run summary")
		return
	}
	if err := r.deps.Cache.Set(ctx, redis.RunKey(summary.RunID), summary, redis.TTLRun); err != nil {
		log.WithError(err).Warn("Failed to cache run summary")
	}
}

func unwrapJoined(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
