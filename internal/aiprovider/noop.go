package aiprovider

import (
	"context"

	"github.com/ashita-ai/akashi/internal/model"
)

// Noop always fails with ErrNoProvider, forcing every caller onto its
// deterministic fallback path. This is the default provider when none is
// configured — the substrate must function (degraded) with zero AI wiring.
type Noop struct{}

func (Noop) Summarize(ctx context.Context, content string, opts SummarizeOptions) (string, error) {
	return "", ErrNoProvider
}

func (Noop) ScoreEpistemicConfidence(ctx context.Context, claim string, claimCtx string) (model.Confidence, error) {
	return model.Confidence{}, ErrNoProvider
}

func (Noop) DetectContradiction(ctx context.Context, a, b string) (*bool, error) {
	return nil, ErrNoProvider
}

func (Noop) ExtractEntities(ctx context.Context, text string) ([]Entity, error) {
	return nil, ErrNoProvider
}

func (Noop) Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error) {
	return "", ErrNoProvider
}
