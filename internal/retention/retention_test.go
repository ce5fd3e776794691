package retention_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/retention"
)

func TestScoreWithinUnitInterval(t *testing.T) {
	w := retention.DefaultWeights()
	s := retention.Signals{Surprise: 1, IsContradicting: true, Recency: 1, EvidenceQuality: 1, Usage: 1}
	require.InDelta(t, 1.0, retention.Score(w, s), 1e-9)

	s2 := retention.Signals{}
	require.Equal(t, 0.0, retention.Score(w, s2))
}

func TestEvaluateRecommendsCompressForLowScore(t *testing.T) {
	w := retention.DefaultWeights()
	th := retention.DefaultThresholds()
	signals := []retention.Signals{
		{MemoryID: "low", Surprise: 0, Recency: 0, EvidenceQuality: 0, Usage: 0},
		{MemoryID: "mid", Surprise: 0.5, Recency: 0.5, EvidenceQuality: 0.5, Usage: 0.5},
		{MemoryID: "high", Surprise: 1, IsContradicting: true, Recency: 1, EvidenceQuality: 1, Usage: 1},
	}
	recs := retention.Evaluate(w, th, signals)

	var byID = map[string]retention.Action{}
	for _, r := range recs {
		byID[r.MemoryID] = r.Action
	}
	require.Equal(t, retention.ActionCompress, byID["low"])
	require.Equal(t, retention.ActionPromote, byID["high"])
	_, midPresent := byID["mid"]
	require.False(t, midPresent, "mid-range score should be retained, not recommended")
}
