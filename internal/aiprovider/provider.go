// Package aiprovider defines the AI Provider contract and its
// implementations: a Noop provider (default, always degrades), an Ollama
// provider, and an OpenAI provider. Every method is allowed to fail; callers
// are required to degrade gracefully.
package aiprovider

import (
	"context"
	"errors"

	"github.com/ashita-ai/akashi/internal/model"
)

// ErrNoProvider is returned by the Noop provider for every call, and by real
// providers when they are unreachable. Callers match on this (or any error)
// and fall back to deterministic, provider-free behaviour.
var ErrNoProvider = errors.New("aiprovider: no provider configured")

// SummarizeOptions configures a summarize call.
type SummarizeOptions struct {
	Level              int
	TargetCompression  float64
	DeltaMode          bool
	PreviousSummary    string
	PreserveIntent     bool
	PreserveContradictions bool
	PreserveRejected   bool
	PreserveDecisions  bool
}

// Entity is one extracted entity.
type Entity struct {
	Entity     string         `json:"entity"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// ChatOptions configures a chat call.
type ChatOptions struct {
	System      string
	Temperature float64
}

// ChatMessage is one turn in a chat call.
type ChatMessage struct {
	Role    string
	Content string
}

// Provider is the AI provider contract. All methods are pure from the
// core's point of view: no side effect on the core's state, only a
// remote (or local-model) call that may fail.
type Provider interface {
	Summarize(ctx context.Context, content string, opts SummarizeOptions) (string, error)
	ScoreEpistemicConfidence(ctx context.Context, claim string, claimCtx string) (model.Confidence, error)
	// DetectContradiction returns a pointer: nil means "the provider could not
	// decide" (distinct from a definite false) — a true|false|null contract.
	DetectContradiction(ctx context.Context, a, b string) (*bool, error)
	ExtractEntities(ctx context.Context, text string) ([]Entity, error)
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
}
