package akashi

import (
	"context"
	"strings"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/audit"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

// storageAdapter widens a caller-supplied StorageDriver (the public, minimal
// surface) into the internal storage.Driver capability set. Count and
// GetMetadata have no public equivalent; Count falls back to len(Query) and
// GetMetadata always reports absent, so a custom driver never gets
// immutability enforcement for free — only the built-in MemDriver/PGDriver do.
type storageAdapter struct {
	d StorageDriver
}

func (a storageAdapter) Write(ctx context.Context, key string, value map[string]any, meta storage.Meta) error {
	return a.d.Write(ctx, key, value, meta.Immutable)
}

func (a storageAdapter) Read(ctx context.Context, key string) (map[string]any, bool, error) {
	return a.d.Read(ctx, key)
}

func (a storageAdapter) Query(ctx context.Context, q storage.Query) ([]map[string]any, error) {
	return a.d.Query(ctx, q.Pattern, q.Filters, q.Limit)
}

func (a storageAdapter) Count(ctx context.Context, q storage.Query) (int, error) {
	rows, err := a.Query(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(rows), nil
}

func (a storageAdapter) Exists(ctx context.Context, key string) (bool, error) {
	return a.d.Exists(ctx, key)
}

func (a storageAdapter) GetMetadata(ctx context.Context, key string) (storage.Meta, bool, error) {
	return storage.Meta{}, false, nil
}

// aiProviderAdapter widens a caller-supplied AIProvider into the internal
// aiprovider.Provider contract. ScoreEpistemicConfidence, DetectContradiction
// and ExtractEntities have no public equivalent and always degrade, same as
// aiprovider.Noop — callers supplying a custom provider only get Chat and
// Summarize, which matches what the public surface exposes.
type aiProviderAdapter struct {
	p AIProvider
}

func (a aiProviderAdapter) Summarize(ctx context.Context, content string, opts aiprovider.SummarizeOptions) (string, error) {
	ratio := opts.TargetCompression
	if ratio <= 0 {
		ratio = 0.5
	}
	return a.p.Summarize(ctx, []string{content}, ratio)
}

func (a aiProviderAdapter) ScoreEpistemicConfidence(ctx context.Context, claim, claimCtx string) (model.Confidence, error) {
	return model.Confidence{}, aiprovider.ErrNoProvider
}

func (a aiProviderAdapter) DetectContradiction(ctx context.Context, x, y string) (*bool, error) {
	return nil, aiprovider.ErrNoProvider
}

func (a aiProviderAdapter) ExtractEntities(ctx context.Context, text string) ([]aiprovider.Entity, error) {
	return nil, aiprovider.ErrNoProvider
}

func (a aiProviderAdapter) Chat(ctx context.Context, messages []aiprovider.ChatMessage, opts aiprovider.ChatOptions) (string, error) {
	var sb strings.Builder
	for i, m := range messages {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(m.Content)
	}
	return a.p.Chat(ctx, sb.String())
}

// auditSinkAdapter widens a caller-supplied AuditSink into orchestrator.Auditor.
type auditSinkAdapter struct {
	s AuditSink
}

func (a auditSinkAdapter) Emit(ctx context.Context, ev audit.Event) error {
	return a.s.Emit(ctx, ev.Tenant, ev.Action, ev.Data, ev.Timestamp)
}
