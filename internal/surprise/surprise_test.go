package surprise_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/surprise"
)

func TestScoreDefaultWeights(t *testing.T) {
	in := surprise.Inputs{Novelty: 1, Contradiction: 1, Evidence: 1, ConfidenceShift: 1, Disagreement: 1}
	score, _ := surprise.Score(model.DefaultSurpriseWeights(), in, nil)
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestScoreClampedToUnitInterval(t *testing.T) {
	in := surprise.Inputs{}
	score, _ := surprise.Score(model.DefaultSurpriseWeights(), in, nil)
	require.GreaterOrEqual(t, score, 0.0)
	require.LessOrEqual(t, score, 1.0)
}

func TestS2ExternalMagnitudeActsAsCeiling(t *testing.T) {
	in := surprise.Inputs{} // internal would be 0
	score, _ := surprise.Score(model.DefaultSurpriseWeights(), in, &surprise.Signal{Magnitude: 0.9})
	require.InDelta(t, 0.9, score, 1e-9)

	inHigh := surprise.Inputs{Novelty: 1, Contradiction: 1, Evidence: 1, ConfidenceShift: 1, Disagreement: 1}
	scoreHigh, _ := surprise.Score(model.DefaultSurpriseWeights(), inHigh, &surprise.Signal{Magnitude: 0.1})
	require.InDelta(t, 1.0, scoreHigh, 1e-9, "internal score should act as a floor when it exceeds the external magnitude")
}
