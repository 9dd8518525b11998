package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/query"
	"github.com/wonny/marginrecon/internal/reportconfig"
	"github.com/wonny/marginrecon/pkg/logger"
)

// fakeStore answers selections from rows keyed by "table/margin/date/time"
type fakeStore struct {
	mu       sync.Mutex
	rows     map[string][]contracts.Row
	fail     map[string]error
	calls    []query.Predicate
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	delay    time.Duration
}

func key(p query.Predicate) string {
	m, _ := p.Value(query.ColMarginType)
	d, _ := p.Value(query.ColDate)
	tod, _ := p.Value(query.ColTimeOfDay)
	return fmt.Sprintf("%s/%s/%s/%s", p.Table, m, d, tod)
}

func (s *fakeStore) Select(ctx context.Context, p query.Predicate) ([]string, []contracts.Row, error) {
	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxSeen.Load()
		if n <= seen || s.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	s.mu.Lock()
	s.calls = append(s.calls, p)
	err := s.fail[key(p)]
	rows := s.rows[key(p)]
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("%w: %w", contracts.ErrQuery, ctx.Err())
		}
	}
	if err != nil {
		return nil, nil, err
	}
	return []string{"id", "clearing_member", "account", "margin_type", "margin"}, rows, nil
}

func boolPtr(b bool) *bool { return &b }

func testConfig() *reportconfig.Config {
	return &reportconfig.Config{
		ColsToCheck:   []string{"clearing_member", "account", "margin_type", "margin"},
		MarginClasses: []string{"SPAN", "IMSM"},
		Reports: []reportconfig.Report{
			{Name: "cc050_eod_report", Table: "cc050", Date: "2020-05-11", ValidReport: boolPtr(true)},
			{Name: "ci050_last_report", Table: "ci050", Date: "2020-05-11", TimeOfDay: "19:00:00", ValidReport: boolPtr(true)},
			{Name: "ci050_first_report", Table: "ci050", Date: "2020-05-12", TimeOfDay: "08:00:00", ValidReport: boolPtr(true)},
		},
	}
}

func TestFetch_NamesAndFilters(t *testing.T) {
	store := &fakeStore{rows: map[string][]contracts.Row{
		"ci050/SPAN/2020-05-11/19:00:00": {{"clearing_member": "CM001", "margin": "1.00"}},
	}}
	f := New(store, logger.NewNop(), time.Second, 1)

	ds, err := f.Fetch(context.Background(), testConfig().Reports[1], "SPAN")
	require.NoError(t, err)

	assert.Equal(t, "ci050_last_report_SPAN", ds.Name)
	assert.Equal(t, 1, ds.Len())
	require.Len(t, store.calls, 1)
	assert.Equal(t, []any{"SPAN", "2020-05-11", "19:00:00"}, store.calls[0].Args())
}

func TestFetch_EmptyIsNotFailure(t *testing.T) {
	f := New(&fakeStore{}, logger.NewNop(), time.Second, 1)

	ds, err := f.Fetch(context.Background(), testConfig().Reports[0], "AMWI")
	require.NoError(t, err)
	assert.True(t, ds.Empty())
	assert.NotEmpty(t, ds.Columns, "empty datasets keep their columns")
}

func TestFetch_ErrorKindPreserved(t *testing.T) {
	store := &fakeStore{fail: map[string]error{
		"cc050/SPAN/2020-05-11/": fmt.Errorf("%w: acquire connection: refused", contracts.ErrConnection),
	}}
	f := New(store, logger.NewNop(), time.Second, 1)

	ds, err := f.Fetch(context.Background(), testConfig().Reports[0], "SPAN")
	assert.Nil(t, ds)
	assert.ErrorIs(t, err, contracts.ErrConnection)
	assert.Contains(t, err.Error(), "cc050_eod_report_SPAN")
}

func TestFetch_Timeout(t *testing.T) {
	store := &fakeStore{delay: time.Second}
	f := New(store, logger.NewNop(), 20*time.Millisecond, 1)

	_, err := f.Fetch(context.Background(), testConfig().Reports[0], "SPAN")
	assert.ErrorIs(t, err, contracts.ErrQuery)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestFetchReports_KeysAreMarginsTimesReports(t *testing.T) {
	store := &fakeStore{}
	cfg := testConfig()
	f := New(store, logger.NewNop(), time.Second, 3)

	reports, err := f.FetchReports(context.Background(), cfg)
	require.NoError(t, err)

	require.Len(t, reports, len(cfg.MarginClasses))
	for _, m := range cfg.MarginClasses {
		require.Len(t, reports[m], len(cfg.Reports), m)
		for _, r := range cfg.Reports {
			ds, ok := reports.Get(m, r.Name)
			require.True(t, ok)
			assert.Equal(t, contracts.DatasetName(r.Name, m), ds.Name)
		}
	}
	assert.Equal(t, 6, reports.Count())
	assert.Len(t, store.calls, 6)
}

func TestFetchReports_SingleFailureFailsAll(t *testing.T) {
	store := &fakeStore{fail: map[string]error{
		"ci050/IMSM/2020-05-12/08:00:00": fmt.Errorf("%w: relation does not exist", contracts.ErrQuery),
	}}
	f := New(store, logger.NewNop(), time.Second, 2)

	reports, err := f.FetchReports(context.Background(), testConfig())
	assert.Nil(t, reports)
	assert.ErrorIs(t, err, contracts.ErrQuery)
}

func TestFetchReports_RespectsWorkerLimit(t *testing.T) {
	store := &fakeStore{delay: 10 * time.Millisecond}
	f := New(store, logger.NewNop(), time.Second, 2)

	_, err := f.FetchReports(context.Background(), testConfig())
	require.NoError(t, err)
	assert.LessOrEqual(t, store.maxSeen.Load(), int32(2))
}

func TestFetchReports_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := New(&fakeStore{delay: time.Second}, logger.NewNop(), time.Second, 1)
	_, err := f.FetchReports(ctx, testConfig())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
