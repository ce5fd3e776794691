package mdl_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/mdl"
)

func TestTargetRatioClamped(t *testing.T) {
	ratio := mdl.TargetRatio("hello world")
	require.GreaterOrEqual(t, ratio, 0.2)
	require.LessOrEqual(t, ratio, 0.8)
}

func TestTargetRatioStructureBonusRaisesTarget(t *testing.T) {
	plain := mdl.TargetRatio("plain text with no structure at all repeated words words words")
	structured := mdl.TargetRatio("# Header\n\n- bullet one\n- bullet two\n\n```go\ncode\n```\n\n1. first\n2. second")
	require.Greater(t, structured, plain)
}

func TestEstimateTokens(t *testing.T) {
	require.Equal(t, 0, mdl.EstimateTokens(""))
	require.Equal(t, 1, mdl.EstimateTokens("ab"))
	require.Equal(t, 3, mdl.EstimateTokens("0123456789"))
}
