// Package summarise implements the Summariser (C6): level-scoped chunking,
// MDL-target-ratio-aware AI summarisation, and an idempotent result cache.
package summarise

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/mdl"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

// Level names the target chunk size for a summarisation pass.
type Level int

const (
	L1 Level = iota + 1
	L2
	L3
)

// chunkSize is the approximate number of records grouped per chunk at each level.
var chunkSize = map[Level]int{L1: 15, L2: 75, L3: 300}

// Summariser groups timestamp-ordered records into fixed windows per level,
// consults the MDL scorer for a target compression ratio, and delegates to
// an AI provider with preserve-semantics flags.
type Summariser struct {
	driver   *storage.EmulatingDriver
	provider aiprovider.Provider
}

// New constructs a Summariser. provider defaults to aiprovider.Noop{} if nil.
func New(driver storage.Driver, provider aiprovider.Provider) *Summariser {
	if provider == nil {
		provider = aiprovider.Noop{}
	}
	return &Summariser{driver: storage.Wrap(driver), provider: provider}
}

// Chunk groups ordered records into windows of chunkSize[level].
func Chunk(records []model.MemoryRecord, level Level) [][]model.MemoryRecord {
	sorted := append([]model.MemoryRecord(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })

	size := chunkSize[level]
	if size <= 0 {
		size = 15
	}
	var chunks [][]model.MemoryRecord
	for i := 0; i < len(sorted); i += size {
		end := i + size
		if end > len(sorted) {
			end = len(sorted)
		}
		chunks = append(chunks, sorted[i:end])
	}
	return chunks
}

// memberKey is the idempotent cache key: a hash of the sorted member ids.
func memberKey(records []model.MemoryRecord) string {
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID.String()
	}
	sort.Strings(ids)
	h := sha256.New()
	for _, id := range ids {
		h.Write([]byte(id))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Result is a completed summarisation.
type Result struct {
	ID         uuid.UUID
	MemberKey  string
	Level      Level
	Summary    string
	TargetRatio float64
}

// Options controls preserve-semantics and delta mode, mirroring aiprovider.SummarizeOptions.
type Options struct {
	PreviousSummary string
	DeltaMode       bool
}

// Summarize produces (or returns the cached) summary for a chunk of records.
// The cache key is content-addressed on the sorted member ids, so repeated
// calls over the same chunk are idempotent and cheap.
func (s *Summariser) Summarize(ctx context.Context, tenant string, level Level, records []model.MemoryRecord, opts Options) (Result, error) {
	key := memberKey(records)
	cacheKey := storage.SummaryKey(tenant, key)

	if cached, ok, err := s.driver.Read(ctx, cacheKey); err == nil && ok {
		return decodeResult(cached), nil
	}

	var combined string
	for _, r := range records {
		combined += r.Content + "\n"
	}
	targetRatio := mdl.TargetRatio(combined)

	summary, err := s.provider.Summarize(ctx, combined, aiprovider.SummarizeOptions{
		Level:                  int(level),
		TargetCompression:      targetRatio,
		DeltaMode:              opts.DeltaMode,
		PreviousSummary:        opts.PreviousSummary,
		PreserveIntent:         true,
		PreserveContradictions: true,
		PreserveRejected:       true,
		PreserveDecisions:      true,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: summarize: %v", apperr.ErrAIUnavailable, err)
	}

	res := Result{ID: uuid.New(), MemberKey: key, Level: level, Summary: summary, TargetRatio: targetRatio}
	if err := s.driver.Write(ctx, cacheKey, encodeResult(res), storage.Meta{Tenant: tenant, Type: "summary", Immutable: true}); err != nil {
		return Result{}, fmt.Errorf("%w: cache summary: %v", apperr.ErrStorageUnavailable, err)
	}
	return res, nil
}

func encodeResult(r Result) map[string]any {
	return map[string]any{
		"id": r.ID.String(), "member_key": r.MemberKey, "level": int(r.Level),
		"summary": r.Summary, "target_ratio": r.TargetRatio,
	}
}

func decodeResult(v map[string]any) Result {
	var r Result
	if s, ok := v["id"].(string); ok {
		r.ID, _ = uuid.Parse(s)
	}
	r.MemberKey, _ = v["member_key"].(string)
	if l, ok := v["level"].(int); ok {
		r.Level = Level(l)
	}
	r.Summary, _ = v["summary"].(string)
	if f, ok := v["target_ratio"].(float64); ok {
		r.TargetRatio = f
	}
	return r
}
