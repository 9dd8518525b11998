package reconcile

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/pkg/logger"
)

type recordingSink struct {
	got []*contracts.Discrepancy
	err error
}

func (s *recordingSink) Report(_ context.Context, d *contracts.Discrepancy) error {
	if s.err != nil {
		return s.err
	}
	s.got = append(s.got, d)
	return nil
}

func TestCheck_NothingToReport(t *testing.T) {
	var buf bytes.Buffer
	sink := &recordingSink{}
	c := NewChecker(sink, logger.NewWithWriter(&buf, "production"), "run-1")

	a := ds("A", r("cm1", "acc1", "SPAN", "100"))
	b := ds("B", r("cm1", "acc1", "SPAN", "100"))

	reported, err := c.Check(context.Background(), a, b, keys)
	require.NoError(t, err)
	assert.False(t, reported)
	assert.Empty(t, sink.got)
	assert.Contains(t, buf.String(), "nothing to report")
}

func TestCheckPair_ReportsDiscrepancy(t *testing.T) {
	sink := &recordingSink{}
	c := NewChecker(sink, logger.NewNop(), "run-2")
	c.now = func() time.Time { return time.Date(2020, 5, 12, 8, 30, 0, 0, time.UTC) }

	a := ds("cc050_eod_report_SPAN",
		r("cm1", "acc1", "SPAN", "100.50"),
		r("cm1", "acc1", "SPAN", "100.50"),
		r("cm2", "acc2", "SPAN", "n/a"),
	)
	b := ds("ci050_first_report_SPAN", r("cm1", "acc1", "SPAN", "99.25"))

	outcome, err := c.CheckPair(context.Background(), "SPAN", a, b, keys)
	require.NoError(t, err)

	assert.True(t, outcome.Reported)
	assert.Equal(t, 0, outcome.Matched)
	assert.Equal(t, 4, outcome.NonMatching)
	assert.Equal(t, "cc050_eod_report_SPAN", outcome.Left)

	require.Len(t, sink.got, 1)
	d := sink.got[0]
	assert.Equal(t, "run-2", d.RunID)
	assert.Equal(t, "SPAN", d.Margin)
	assert.Len(t, d.Rows, 4)
	assert.Equal(t, time.Date(2020, 5, 12, 8, 30, 0, 0, time.UTC), d.DetectedAt)

	left := d.BySource["found in cc050_eod_report_SPAN"]
	assert.Equal(t, 3, left.Rows)
	assert.Equal(t, 1, left.Duplicates)
	assert.Equal(t, 1, left.Unparsed)
	assert.True(t, left.Margin.Equal(decimal.RequireFromString("201.00")), left.Margin.String())

	right := d.BySource["found in ci050_first_report_SPAN"]
	assert.Equal(t, 1, right.Rows)
	assert.True(t, right.Margin.Equal(decimal.RequireFromString("99.25")))
}

func TestCheckPair_SinkFailure(t *testing.T) {
	c := NewChecker(&recordingSink{err: errors.New("webhook down")}, logger.NewNop(), "run-3")

	outcome, err := c.CheckPair(context.Background(), "IMSM",
		ds("A", r("cm1", "acc1", "IMSM", "1")), ds("B"), keys)

	require.ErrorIs(t, err, contracts.ErrNotification)
	assert.False(t, outcome.Reported)
	assert.Equal(t, 1, outcome.NonMatching)
}

func TestCheckPair_ReconcileFailure(t *testing.T) {
	c := NewChecker(&recordingSink{}, logger.NewNop(), "run-4")

	_, err := c.CheckPair(context.Background(), "SPAN",
		ds("A"), &contracts.Dataset{Name: "B", Columns: []string{"account"}}, keys)
	assert.ErrorIs(t, err, contracts.ErrReconciliation)
}

func TestToDecimal(t *testing.T) {
	tests := []struct {
		in   any
		want string
		ok   bool
	}{
		{"12.5", "12.5", true},
		{int64(3), "3", true},
		{int32(4), "4", true},
		{2.25, "2.25", true},
		{"abc", "0", false},
		{nil, "0", false},
	}
	for _, tt := range tests {
		got, ok := toDecimal(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		if ok {
			assert.Equal(t, tt.want, got.String())
		}
	}
}
