package contracts

import (
	"time"

	"github.com/shopspring/decimal"
)

// Discrepancy is the payload handed to notification sinks
// ⭐ SSOT: 불일치 리포트 전달 형식
type Discrepancy struct {
	RunID      string                  `json:"run_id"`
	Margin     string                  `json:"margin"`
	Left       string                  `json:"left"`
	Right      string                  `json:"right"`
	KeyColumns []string                `json:"key_columns"`
	Rows       []Row                   `json:"rows"`
	BySource   map[string]SourceTotals `json:"by_source"`
	DetectedAt time.Time               `json:"detected_at"`
}

// SourceTotals aggregates the unmatched rows of one source
type SourceTotals struct {
	Rows       int             `json:"rows"`
	Duplicates int             `json:"duplicates"`
	Margin     decimal.Decimal `json:"margin"`
	Unparsed   int             `json:"unparsed"` // margin values that are not numbers
}

// PairOutcome is the result of checking one report pair for one margin class
type PairOutcome struct {
	Margin      string `json:"margin"`
	Left        string `json:"left"`
	Right       string `json:"right"`
	Matched     int    `json:"matched"`
	NonMatching int    `json:"non_matching"`
	Reported    bool   `json:"reported"`
	Skipped     bool   `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
}

// RunSummary describes one reconciliation run
type RunSummary struct {
	RunID      string        `json:"run_id"`
	AsOf       string        `json:"as_of"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Datasets   int           `json:"datasets"`
	Outcomes   []PairOutcome `json:"outcomes"`
	Errors     []string      `json:"errors,omitempty"`
	ExitCode   int           `json:"exit_code"`
}

// Discrepancies counts pairs that produced a report
func (s *RunSummary) Discrepancies() int {
	n := 0
	for _, o := range s.Outcomes {
		if o.Reported {
			n++
		}
	}
	return n
}

// Succeeded is true when no error was recorded
func (s *RunSummary) Succeeded() bool {
	return len(s.Errors) == 0
}
