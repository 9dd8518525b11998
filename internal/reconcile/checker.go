package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/pkg/logger"
)

// MarginColumn is summed per source when it is one of the key columns
const MarginColumn = "margin"

// Sink receives discrepancy reports
type Sink interface {
	Report(ctx context.Context, d *contracts.Discrepancy) error
}

// Checker reconciles dataset pairs and reports non-empty differences
type Checker struct {
	sink   Sink
	logger *logger.Logger
	runID  string
	now    func() time.Time
}

// NewChecker creates a checker whose reports carry runID
func NewChecker(sink Sink, log *logger.Logger, runID string) *Checker {
	return &Checker{
		sink:   sink,
		logger: log,
		runID:  runID,
		now:    time.Now,
	}
}

// Check reconciles a against b and reports the non-matching rows, if any.
// It returns true when a discrepancy was reported.
func (c *Checker) Check(ctx context.Context, a, b *contracts.Dataset, keys []string) (bool, error) {
	outcome, err := c.CheckPair(ctx, "", a, b, keys)
	return outcome.Reported, err
}

// CheckPair is Check for the pair of one margin class, returning counts
func (c *Checker) CheckPair(ctx context.Context, margin string, a, b *contracts.Dataset, keys []string) (contracts.PairOutcome, error) {
	outcome := contracts.PairOutcome{Margin: margin}
	if a != nil {
		outcome.Left = a.Name
	}
	if b != nil {
		outcome.Right = b.Name
	}

	result, err := Reconcile(a, b, keys)
	if err != nil {
		return outcome, err
	}
	outcome.Matched = result.Matching.Len()
	outcome.NonMatching = result.NonMatching.Len()

	log := c.logger.WithFields(map[string]interface{}{
		"run_id":       c.runID,
		"margin_class": margin,
		"left":         a.Name,
		"right":        b.Name,
	})

	if !result.HasDiscrepancy() {
		log.Info("nothing to report")
		return outcome, nil
	}

	d := c.discrepancy(margin, a.Name, b.Name, keys, result.NonMatching)
	if err := c.sink.Report(ctx, d); err != nil {
		return outcome, fmt.Errorf("%w: report %s vs %s: %w", contracts.ErrNotification, a.Name, b.Name, err)
	}

	outcome.Reported = true
	log.WithField("rows", outcome.NonMatching).Warn("Discrepancy reported")
	return outcome, nil
}

func (c *Checker) discrepancy(margin, left, right string, keys []string, nonMatching *contracts.Dataset) *contracts.Discrepancy {
	hasMargin := nonMatching.HasColumn(MarginColumn)
	bySource := make(map[string]contracts.SourceTotals)

	for _, row := range nonMatching.Rows {
		src, _ := row[contracts.SourceColumn].(string)
		t := bySource[src]
		t.Rows++
		if dup, _ := row[contracts.DuplicateColumn].(bool); dup {
			t.Duplicates++
		}
		if hasMargin {
			if v, ok := toDecimal(row[MarginColumn]); ok {
				t.Margin = t.Margin.Add(v)
			} else {
				t.Unparsed++
			}
		}
		bySource[src] = t
	}

	return &contracts.Discrepancy{
		RunID:      c.runID,
		Margin:     margin,
		Left:       left,
		Right:      right,
		KeyColumns: keys,
		Rows:       nonMatching.Rows,
		BySource:   bySource,
		DetectedAt: c.now().UTC(),
	}
}

// toDecimal reads a margin value stored as text or as a number
func toDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case string:
		d, err := decimal.NewFromString(x)
		return d, err == nil
	case int64:
		return decimal.NewFromInt(x), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int:
		return decimal.NewFromInt(int64(x)), true
	case float64:
		return decimal.NewFromFloat(x), true
	case decimal.Decimal:
		return x, true
	}
	return decimal.Zero, false
}
