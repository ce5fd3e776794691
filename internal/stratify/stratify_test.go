package stratify_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/stratify"
	"github.com/ashita-ai/akashi/internal/storage"
)

func TestClassifyWindows(t *testing.T) {
	now := time.Now()
	require.Equal(t, model.LayerHot, stratify.Classify(now.Add(-time.Hour), now))
	require.Equal(t, model.LayerWarm, stratify.Classify(now.Add(-3*24*time.Hour), now))
	require.Equal(t, model.LayerCold, stratify.Classify(now.Add(-20*24*time.Hour), now))
	require.Equal(t, model.LayerFrozen, stratify.Classify(now.Add(-60*24*time.Hour), now))
}

func TestObserveTriggersOnCountThreshold(t *testing.T) {
	ctx := context.Background()
	s := stratify.New(storage.NewMemDriver())
	now := time.Now()
	// A fresh last-summary time keeps the interval trigger quiet, so only the
	// count of 50 hot-layer observations can trip.
	require.NoError(t, s.MarkSummarized(ctx, "acme", "a1", model.LayerHot, now))

	var triggered bool
	for i := 0; i < 50; i++ {
		trig, err := s.Observe(ctx, "acme", "a1", model.LayerHot, now)
		require.NoError(t, err)
		require.Equal(t, i == 49, trig)
		if trig {
			triggered = true
		}
	}
	require.True(t, triggered)
}

func TestMarkPendingSuppressesRepeatTrigger(t *testing.T) {
	ctx := context.Background()
	s := stratify.New(storage.NewMemDriver())
	now := time.Now()

	for i := 0; i < 49; i++ {
		_, err := s.Observe(ctx, "acme", "a1", model.LayerHot, now)
		require.NoError(t, err)
	}
	trig, err := s.Observe(ctx, "acme", "a1", model.LayerHot, now)
	require.NoError(t, err)
	require.True(t, trig)

	require.NoError(t, s.MarkPending(ctx, "acme", "a1", model.LayerHot, "job-1"))

	trig, err = s.Observe(ctx, "acme", "a1", model.LayerHot, now)
	require.NoError(t, err)
	require.False(t, trig, "pending marker should suppress re-trigger")

	require.NoError(t, s.MarkSummarized(ctx, "acme", "a1", model.LayerHot, now))
}

func TestAllocateBudgetSplitsProportions(t *testing.T) {
	b := stratify.AllocateBudget(1000)
	require.Equal(t, 500, b.Hot)
	require.Equal(t, 300, b.Warm)
	require.Equal(t, 150, b.Cold)
	require.Equal(t, 50, b.Frozen)
}

func TestBuildContextSubstitutesSummaryForWarmLayer(t *testing.T) {
	now := time.Now()
	records := []model.MemoryRecord{
		{Content: "recent", CreatedAt: now.Add(-time.Minute)},
		{Content: "older", CreatedAt: now.Add(-10 * 24 * time.Hour)},
	}
	summaries := map[model.Layer]string{model.LayerWarm: "warm summary"}
	out := stratify.BuildContext(records, summaries, 1000)

	var sawSummary bool
	for _, r := range out {
		if r.Layer == model.LayerWarm && r.IsSummary {
			sawSummary = true
			require.Equal(t, "warm summary", r.Content)
		}
	}
	require.True(t, sawSummary)
}
