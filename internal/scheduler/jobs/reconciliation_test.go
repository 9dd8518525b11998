package jobs

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marginrecon/internal/contracts"
	"github.com/wonny/marginrecon/internal/pipeline"
	"github.com/wonny/marginrecon/internal/scheduler"
	"github.com/wonny/marginrecon/pkg/logger"
)

type stubRunner struct {
	err  error
	opts *pipeline.Options
}

func (r stubRunner) Run(_ context.Context, opts pipeline.Options) (*contracts.RunSummary, error) {
	if r.opts != nil {
		*r.opts = opts
	}
	return &contracts.RunSummary{RunID: "r1", AsOf: "2020-05-12"}, r.err
}

func TestReconciliationJob(t *testing.T) {
	job := NewReconciliationJob(stubRunner{}, "0 30 8 * * 1-5", logger.NewNop())
	assert.Equal(t, "margin_reconciliation", job.Name())
	assert.Equal(t, "0 30 8 * * 1-5", job.Schedule())
	assert.NoError(t, job.Run(context.Background()))
}

func TestReconciliationJob_ErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		permanent bool
	}{
		{"connection retried", fmt.Errorf("%w: refused", contracts.ErrConnection), false},
		{"query retried", fmt.Errorf("%w: timeout", contracts.ErrQuery), false},
		{"config permanent", fmt.Errorf("%w: bad", contracts.ErrConfigValidation), true},
		{"notification permanent", fmt.Errorf("%w: down", contracts.ErrNotification), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := NewReconciliationJob(stubRunner{err: tt.err}, "@daily", logger.NewNop())
			err := job.Run(context.Background())
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.permanent, scheduler.IsPermanent(err))
		})
	}
}

func TestReconciliationJob_InProgressIsNotFailure(t *testing.T) {
	job := NewReconciliationJob(stubRunner{err: pipeline.ErrRunInProgress}, "@daily", logger.NewNop())
	assert.NoError(t, job.Run(context.Background()))
}

func TestReconciliationJob_AsOfInJobZone(t *testing.T) {
	kst := time.FixedZone("KST", 9*60*60)

	var got pipeline.Options
	job := NewReconciliationJob(stubRunner{opts: &got}, "0 5 0 * * *", logger.NewNop()).WithLocation(kst)
	// 00:05 KST on the 12th is still the 11th in UTC
	job.now = func() time.Time { return time.Date(2020, 5, 11, 15, 5, 0, 0, time.UTC) }

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, time.Date(2020, 5, 12, 0, 0, 0, 0, kst), got.AsOf)
	assert.Equal(t, kst, got.AsOf.Location())
}
