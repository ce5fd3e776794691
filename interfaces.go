package akashi

import (
	"context"
	"time"
)

// StorageDriver is the public extension point for a custom key-value backend.
// When provided via WithStorageDriver, replaces the Postgres driver New
// otherwise connects to. Mirrors internal/storage.Driver's capability surface
// without exposing internal types, so external implementations never import
// internal/storage.
type StorageDriver interface {
	Write(ctx context.Context, key string, value map[string]any, immutable bool) error
	Read(ctx context.Context, key string) (map[string]any, bool, error)
	Query(ctx context.Context, pattern string, filters map[string]any, limit int) ([]map[string]any, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// AIProvider generates chat completions and summaries. Its Summarize backs
// the Summariser and Hierarchical Compressor; no component calls Chat. When
// provided via WithAIProvider, replaces the auto-detected Ollama/OpenAI/noop
// provider selected from config, and contradiction detection and confidence
// scoring then always report no provider (see aiProviderAdapter).
type AIProvider interface {
	Chat(ctx context.Context, prompt string) (string, error)
	Summarize(ctx context.Context, texts []string, targetRatio float64) (string, error)
}

// AuditSink receives every audit event emitted by the substrate. When
// provided via WithAuditSink, replaces the built-in in-memory hash-chained
// sink (internal/audit.ChainedSink).
type AuditSink interface {
	Emit(ctx context.Context, tenant, action string, data map[string]any, ts time.Time) error
}

// Clock supplies the current time. Tests replace it with a fixed or
// steppable clock; production uses the default wall-clock implementation.
type Clock interface {
	Now() time.Time
}

// systemClock is the default Clock, backed by time.Now.
type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }
