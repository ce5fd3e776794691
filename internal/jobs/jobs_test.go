package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/jobs"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

func TestDispatchAndClaimIsExclusive(t *testing.T) {
	ctx := context.Background()
	d := jobs.New(storage.NewMemDriver(), nil)

	job, err := d.Dispatch(ctx, "acme", model.JobSummarization, "a1", model.LayerHot, time.Now())
	require.NoError(t, err)

	claimed, ok, err := d.Claim(ctx, job)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, model.JobRunning, claimed.Status)

	// A second claim against the stale (pre-claim) snapshot must lose the race.
	_, ok2, err := d.Claim(ctx, job)
	require.NoError(t, err)
	require.False(t, ok2)
}

func TestExecuteReportsTerminalFailure(t *testing.T) {
	ctx := context.Background()

	reporter := &captureReporter{}
	d := jobs.New(storage.NewMemDriver(), reporter)

	job, err := d.Dispatch(ctx, "acme", model.JobRetentionEvaluation, "a1", model.LayerWarm, time.Now())
	require.NoError(t, err)

	claimed, ok, err := d.Claim(ctx, job)
	require.NoError(t, err)
	require.True(t, ok)

	err = d.Execute(ctx, claimed, func(ctx context.Context, j model.Job) error {
		return errors.New("boom")
	})
	require.Error(t, err)
	require.False(t, reporter.called, "should not report before MaxAttempts")

	for attempt := 1; attempt < jobs.MaxAttempts; attempt++ {
		pending, err := d.Pending(ctx)
		require.NoError(t, err)
		require.Len(t, pending, 1, "a failed job below MaxAttempts is queued again")
		claimed, ok, err = d.Claim(ctx, pending[0])
		require.NoError(t, err)
		require.True(t, ok)
		require.Error(t, d.Execute(ctx, claimed, func(ctx context.Context, j model.Job) error {
			return errors.New("boom")
		}))
	}
	require.True(t, reporter.called, "should report once MaxAttempts is reached")

	pending, err := d.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

type captureReporter struct {
	called bool
}

func (c *captureReporter) ReportJobFailure(ctx context.Context, tenant string, jobID uuid.UUID, reason string) {
	c.called = true
}
