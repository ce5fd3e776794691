package aiprovider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNoopAlwaysDegrades(t *testing.T) {
	var p Provider = Noop{}
	ctx := context.Background()

	_, err := p.Summarize(ctx, "x", SummarizeOptions{})
	require.ErrorIs(t, err, ErrNoProvider)

	_, err = p.ScoreEpistemicConfidence(ctx, "x", "")
	require.ErrorIs(t, err, ErrNoProvider)

	verdict, err := p.DetectContradiction(ctx, "a", "b")
	require.ErrorIs(t, err, ErrNoProvider)
	require.Nil(t, verdict)
}

func TestParseConfidenceTriple(t *testing.T) {
	c, ok := parseConfidenceTriple("0.2 0.5 0.8")
	require.True(t, ok)
	require.InDelta(t, 0.2, c.Min, 1e-9)
	require.InDelta(t, 0.5, c.Mean, 1e-9)
	require.InDelta(t, 0.8, c.Max, 1e-9)

	_, ok = parseConfidenceTriple("not numbers")
	require.False(t, ok)

	_, ok = parseConfidenceTriple("0.8 0.5 0.2") // out of order, fails the min<=mean<=max invariant
	require.False(t, ok)
}
