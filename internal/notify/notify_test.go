package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/pkg/config"
	"github.com/wonny/marginrecon/pkg/httputil"
	"github.com/wonny/marginrecon/pkg/logger"
)

func sample() *contracts.Discrepancy {
	return &contracts.Discrepancy{
		RunID:      "run-1",
		Margin:     "SPAN",
		Left:       "cc050_eod_report_SPAN",
		Right:      "ci050_first_report_SPAN",
		KeyColumns: []string{"clearing_member", "account", "margin_type", "margin"},
		Rows: []contracts.Row{
			{"clearing_member": "CM001", "account": "A0002", "margin_type": "SPAN", "margin": "320.50", "source": "found in cc050_eod_report_SPAN", "is_duplicate": false},
			{"clearing_member": "CM001", "account": "A0002", "margin_type": "SPAN", "margin": "330.00", "source": "found in ci050_first_report_SPAN", "is_duplicate": false},
		},
		BySource: map[string]contracts.SourceTotals{
			"found in cc050_eod_report_SPAN":   {Rows: 1, Margin: decimal.RequireFromString("320.50")},
			"found in ci050_first_report_SPAN": {Rows: 1, Margin: decimal.RequireFromString("330.00")},
		},
		DetectedAt: time.Date(2020, 5, 12, 8, 30, 0, 0, time.UTC),
	}
}

func TestConsole_Report(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsole(&buf).Report(context.Background(), sample()))

	out := buf.String()
	assert.Contains(t, out, "cc050_eod_report_SPAN vs ci050_first_report_SPAN (SPAN): 2 non-matching row(s)")
	assert.Contains(t, out, "clearing_member")
	assert.Contains(t, out, "is_duplicate")
	assert.Contains(t, out, "330.00")
	assert.Contains(t, out, "margin=320.5")
}

func TestWebhook_Report(t *testing.T) {
	var got contracts.Discrepancy
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	log := logger.NewNop()
	wh := NewWebhook(srv.URL, httputil.New(log).DisableRetry(), 0, log)

	require.NoError(t, wh.Report(context.Background(), sample()))
	assert.Equal(t, "run-1", got.RunID)
	assert.Len(t, got.Rows, 2)
}

func TestWebhook_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	log := logger.NewNop()
	wh := NewWebhook(srv.URL, httputil.New(log).DisableRetry(), 0, log)

	err := wh.Report(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestWebhook_RateLimitHonoursContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	log := logger.NewNop()
	wh := NewWebhook(srv.URL, httputil.New(log).DisableRetry(), 0.01, log)

	require.NoError(t, wh.Report(context.Background(), sample()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, wh.Report(ctx, sample()))
	assert.Equal(t, int32(1), hits.Load())
}

func TestSpreadsheet_Report(t *testing.T) {
	dir := t.TempDir()
	s := NewSpreadsheet(filepath.Join(dir, "out"))
	d := sample()

	require.NoError(t, s.Report(context.Background(), d))

	f, err := excelize.OpenFile(s.Path(d))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(rowsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"clearing_member", "account", "margin_type", "margin", "source", "is_duplicate"}, rows[0])
	assert.Equal(t, "330.00", rows[2][3])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	assert.Equal(t, []string{"run_id", "run-1"}, summary[0])
}

func TestSpreadsheet_Prune(t *testing.T) {
	dir := t.TempDir()
	s := NewSpreadsheet(dir)

	old := filepath.Join(dir, "old.xlsx")
	fresh := filepath.Join(dir, "fresh.xlsx")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	past := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.Chtimes(other, past, past))

	n, err := s.Prune(time.Now().Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, other)

	n, err = NewSpreadsheet(filepath.Join(dir, "missing")).Prune(time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMulti_JoinsFailures(t *testing.T) {
	var calls int
	ok := SinkFunc(func(context.Context, *contracts.Discrepancy) error { calls++; return nil })
	bad := SinkFunc(func(context.Context, *contracts.Discrepancy) error { calls++; return errors.New("down") })

	err := Multi{bad, ok}.Report(context.Background(), sample())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
	assert.Equal(t, 2, calls, "every sink is tried")

	assert.NoError(t, Multi{ok}.Report(context.Background(), sample()))
}

func TestBuild(t *testing.T) {
	log := logger.NewNop()

	s, err := Build(config.NotifyConfig{Sinks: []string{"console"}}, log, nil)
	require.NoError(t, err)
	assert.IsType(t, &Console{}, s)

	s, err = Build(config.NotifyConfig{Sinks: []string{"console", "xlsx"}, SpreadsheetDir: t.TempDir()}, log, nil)
	require.NoError(t, err)
	assert.Len(t, s.(Multi), 2)

	s, err = Build(config.NotifyConfig{Sinks: []string{"ws"}}, log, nil)
	require.NoError(t, err)
	assert.IsType(t, &Console{}, s, "falls back to console")

	_, err = Build(config.NotifyConfig{Sinks: []string{"pager"}}, log, nil)
	assert.Error(t, err)
}
