package atlas_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/atlas"
)

func TestRecencyDecaysWithAge(t *testing.T) {
	require.InDelta(t, 1.0, atlas.Recency(0), 1e-9)
	require.Less(t, atlas.Recency(atlas.HalfLifeDays), atlas.Recency(0))
	require.InDelta(t, 0.5, atlas.Recency(atlas.HalfLifeDays), 1e-9)
}

func TestUsageSaturates(t *testing.T) {
	require.InDelta(t, 1.0, atlas.Usage(100), 1e-9)
	require.InDelta(t, 0.5, atlas.Usage(10), 1e-9)
}

func TestRelevanceTokenOverlap(t *testing.T) {
	r := atlas.Relevance("the quick brown fox", "quick fox")
	require.InDelta(t, 1.0, r, 1e-9)
	require.Equal(t, 0.0, atlas.Relevance("anything", ""))
}

func TestUpdateImportanceFromUsageEMA(t *testing.T) {
	next := atlas.UpdateImportanceFromUsage(0.5, 1.0)
	require.InDelta(t, 0.6, next, 1e-9)
}

func TestRerankRespectsTokenBudgetAndPrefersHighImportance(t *testing.T) {
	w := atlas.DefaultWeights()
	candidates := []atlas.Candidate{
		{MemoryID: "a", Content: "critical contradiction detected in pricing model", Surprise: 0.9, UsageCount: 5},
		{MemoryID: "b", Content: "routine heartbeat ping", Surprise: 0.01, UsageCount: 1},
		{MemoryID: "c", Content: "critical contradiction detected in pricing model again", Surprise: 0.9, UsageCount: 5},
	}
	out := atlas.Rerank(w, candidates, "pricing contradiction", 1000, 0.5)
	require.NotEmpty(t, out)
	require.Equal(t, "a", out[0].MemoryID)
}
