package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marginrecon/pkg/logger"
)

type countingJob struct {
	name     string
	schedule string
	calls    atomic.Int32
	errs     []error // returned in order, then nil
}

func (j *countingJob) Name() string     { return j.name }
func (j *countingJob) Schedule() string { return j.schedule }
func (j *countingJob) Run(ctx context.Context) error {
	n := int(j.calls.Add(1))
	if n <= len(j.errs) {
		return j.errs[n-1]
	}
	return nil
}

func TestAddJob(t *testing.T) {
	s := New(logger.NewNop())

	require.NoError(t, s.AddJob(&countingJob{name: "b", schedule: "0 30 8 * * 1-5"}))
	require.NoError(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}))

	assert.Error(t, s.AddJob(&countingJob{name: "a", schedule: "@daily"}), "duplicate name")
	assert.Error(t, s.AddJob(&countingJob{name: "c", schedule: "not a schedule"}))

	assert.Equal(t, []string{"a", "b"}, s.GetAllJobs())

	next, err := s.NextRun("b")
	require.NoError(t, err)
	assert.True(t, next.IsZero(), "no activation before Start")

	require.NoError(t, s.RemoveJob("b"))
	assert.Error(t, s.RemoveJob("b"))
	assert.Equal(t, []string{"a"}, s.GetAllJobs())
}

func TestRunJob_RetriesTransientFailures(t *testing.T) {
	s := New(logger.NewNop(), WithRetry(2, time.Millisecond))
	job := &countingJob{name: "j", schedule: "@daily", errs: []error{errors.New("connection refused")}}

	s.runJob(job)

	assert.Equal(t, int32(2), job.calls.Load())
	history, err := s.GetJobHistory("j")
	require.Error(t, err, "history exists only for added jobs")
	assert.Nil(t, history)

	require.NoError(t, s.AddJob(job))
	s.runJob(job)
	history, err = s.GetJobHistory("j")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.True(t, history.Results[0].Success)
	assert.Equal(t, 1, history.Results[0].Attempts)
}

func TestRunJob_PermanentFailureNotRetried(t *testing.T) {
	s := New(logger.NewNop(), WithRetry(3, time.Millisecond))
	job := &countingJob{name: "j", schedule: "@daily", errs: []error{Permanent(errors.New("bad config"))}}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, int32(1), job.calls.Load())
	history, err := s.GetJobHistory("j")
	require.NoError(t, err)
	require.Len(t, history.Results, 1)
	assert.False(t, history.Results[0].Success)
	assert.Equal(t, "bad config", history.Results[0].Error)

	stats := s.GetJobStats()["j"]
	assert.Equal(t, 1, stats.FailureCount)
	assert.NotNil(t, stats.LastFailure)
	assert.Nil(t, stats.LastSuccess)
}

func TestRunJob_GivesUpAfterMaxRetries(t *testing.T) {
	s := New(logger.NewNop(), WithRetry(2, time.Millisecond))
	boom := errors.New("timeout")
	job := &countingJob{name: "j", schedule: "@daily", errs: []error{boom, boom, boom, boom}}
	require.NoError(t, s.AddJob(job))

	s.runJob(job)

	assert.Equal(t, int32(3), job.calls.Load())
	stats := s.GetJobStats()["j"]
	assert.Equal(t, 0.0, stats.SuccessRate)
}

func TestStop_CancelsRetryWait(t *testing.T) {
	s := New(logger.NewNop(), WithRetry(5, time.Hour))
	job := &countingJob{name: "j", schedule: "@daily", errs: []error{errors.New("down")}}
	require.NoError(t, s.AddJob(job))

	done := make(chan struct{})
	go func() {
		s.runJob(job)
		close(done)
	}()

	require.Eventually(t, func() bool { return job.calls.Load() == 1 }, time.Second, time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runJob did not return after Stop")
	}
}

func TestPermanent(t *testing.T) {
	base := errors.New("x")
	assert.Nil(t, Permanent(nil))
	assert.True(t, IsPermanent(Permanent(base)))
	assert.ErrorIs(t, Permanent(base), base)
	assert.False(t, IsPermanent(base))
}

func TestJobHistory(t *testing.T) {
	h := &JobHistory{}
	for i := 0; i < maxHistory+5; i++ {
		h.AddResult(JobResult{Success: i%2 == 0})
	}

	assert.Len(t, h.Results, maxHistory)
	assert.Len(t, h.GetLatestResults(3), 3)
	assert.Len(t, h.GetLatestResults(1000), maxHistory)
	assert.InDelta(t, 0.5, h.GetSuccessRate(), 0.01)
	assert.Len(t, h.GetFailedResults(), maxHistory/2)
}

func TestNextActivation(t *testing.T) {
	// Friday 2020-05-15 09:00 → next weekday 08:30 is Monday
	from := time.Date(2020, 5, 15, 9, 0, 0, 0, time.UTC)
	next, err := NextActivation("0 30 8 * * 1-5", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2020, 5, 18, 8, 30, 0, 0, time.UTC), next)

	_, err = NextActivation("30 8 * * *", from)
	assert.Error(t, err, "five-field specs are rejected")
}
