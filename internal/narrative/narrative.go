// Package narrative implements the Narrative Store (C4): append-only storage
// of memory records with parent-link lineage.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/mdl"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
	"github.com/ashita-ai/akashi/internal/timeindex"
)

// Store appends MemoryRecords and serves filtered retrieval and lineage walks.
// timeIdx is an in-process day-bucketed index over every record this Store
// instance has written, used to serve From/To range queries without a full
// driver scan; it holds no content, only (tenant, id, timestamp).
type Store struct {
	driver  *storage.EmulatingDriver
	timeIdx *timeindex.Index
}

// New constructs a Store over driver.
func New(driver storage.Driver) *Store {
	return &Store{driver: storage.Wrap(driver), timeIdx: timeindex.New()}
}

// timeIndexKey scopes a timeindex.Entry's key to its tenant, since one Index
// here serves every tenant sharing this Store.
func timeIndexKey(tenant string, id uuid.UUID) string {
	return tenant + ":" + id.String()
}

// RecordInput is the caller-supplied shape of a narrative write.
type RecordInput struct {
	Agent    string
	Type     string
	Content  string
	Metadata map[string]any
	ParentID *uuid.UUID
}

// Store appends a new MemoryRecord. Two calls with identical payloads produce
// two distinct ids — there is no content-hash dedup.
func (s *Store) Store(ctx context.Context, tenant string, in RecordInput, now time.Time) (model.MemoryRecord, error) {
	if in.Content == "" {
		return model.MemoryRecord{}, fmt.Errorf("%w: content is required", apperr.ErrInvalidInput)
	}
	rec := model.MemoryRecord{
		ID: uuid.New(), Tenant: tenant, Agent: in.Agent, Type: in.Type,
		Content: in.Content, Metadata: in.Metadata, ParentID: in.ParentID, CreatedAt: now,
	}
	if err := s.driver.Write(ctx, storage.MemoryKey(tenant, rec.ID.String()), encodeRecord(rec), storage.Meta{Tenant: tenant, Type: "memory", Immutable: true}); err != nil {
		return model.MemoryRecord{}, fmt.Errorf("%w: store memory: %v", apperr.ErrStorageUnavailable, err)
	}
	s.timeIdx.Add(timeindex.Entry{Key: timeIndexKey(tenant, rec.ID), Timestamp: rec.CreatedAt.Unix()})
	return rec, nil
}

// RetrieveFilter is the query shape for Retrieve.
type RetrieveFilter struct {
	Agent     string
	Type      string
	From, To  time.Time
	MaxTokens int
}

// Retrieve returns memory records matching the filter, respecting a token
// budget estimated via mdl.EstimateTokens: records are appended in ascending
// creation order until the budget would be exceeded. A non-zero From or To
// routes the range scan through the day-bucketed time index instead of a
// full driver query.
func (s *Store) Retrieve(ctx context.Context, tenant string, f RetrieveFilter) ([]model.MemoryRecord, error) {
	if !f.From.IsZero() || !f.To.IsZero() {
		return s.retrieveByTimeIndex(ctx, tenant, f)
	}

	filters := map[string]any{}
	if f.Agent != "" {
		filters["agent"] = f.Agent
	}
	if f.Type != "" {
		filters["type"] = f.Type
	}
	rows, err := s.driver.Query(ctx, storage.Query{Pattern: fmt.Sprintf("mindscape:%s:memory:", tenant), Filters: filters})
	if err != nil {
		return nil, fmt.Errorf("%w: retrieve: %v", apperr.ErrStorageUnavailable, err)
	}

	var out []model.MemoryRecord
	var tokens int
	for _, row := range rows {
		rec := decodeRecord(row)
		recTokens := mdl.EstimateTokens(rec.Content)
		if f.MaxTokens > 0 && tokens+recTokens > f.MaxTokens && len(out) > 0 {
			break
		}
		out = append(out, rec)
		tokens += recTokens
	}
	return out, nil
}

// retrieveByTimeIndex serves a ranged Retrieve call from the in-process time
// index: it unions the day buckets spanning [From, To], resolves each hit
// back to its full record, and applies the remaining filters and token
// budget the same way the unranged path does.
func (s *Store) retrieveByTimeIndex(ctx context.Context, tenant string, f RetrieveFilter) ([]model.MemoryRecord, error) {
	to := f.To
	if to.IsZero() {
		to = time.Now()
	}
	prefix := tenant + ":"
	entries := s.timeIdx.Query(f.From.Unix(), to.Unix())

	var out []model.MemoryRecord
	var tokens int
	for _, e := range entries {
		if !strings.HasPrefix(e.Key, prefix) {
			continue
		}
		id, err := uuid.Parse(strings.TrimPrefix(e.Key, prefix))
		if err != nil {
			continue
		}
		rec, err := s.Get(ctx, tenant, id)
		if err != nil {
			continue
		}
		if f.Agent != "" && rec.Agent != f.Agent {
			continue
		}
		if f.Type != "" && rec.Type != f.Type {
			continue
		}
		recTokens := mdl.EstimateTokens(rec.Content)
		if f.MaxTokens > 0 && tokens+recTokens > f.MaxTokens && len(out) > 0 {
			break
		}
		out = append(out, rec)
		tokens += recTokens
	}
	return out, nil
}

// Get reads a single memory record by id.
func (s *Store) Get(ctx context.Context, tenant string, id uuid.UUID) (model.MemoryRecord, error) {
	v, ok, err := s.driver.Read(ctx, storage.MemoryKey(tenant, id.String()))
	if err != nil {
		return model.MemoryRecord{}, fmt.Errorf("%w: get memory: %v", apperr.ErrStorageUnavailable, err)
	}
	if !ok {
		return model.MemoryRecord{}, fmt.Errorf("%w: memory %s", apperr.ErrNotFound, id)
	}
	return decodeRecord(v), nil
}

// Lineage walks parent_id chains starting at id, oldest ancestor first.
func (s *Store) Lineage(ctx context.Context, tenant string, id uuid.UUID) ([]model.MemoryRecord, error) {
	var chain []model.MemoryRecord
	cursor := &id
	for cursor != nil {
		rec, err := s.Get(ctx, tenant, *cursor)
		if err != nil {
			return nil, err
		}
		chain = append(chain, rec)
		cursor = rec.ParentID
	}
	// Reverse into oldest-first order.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func encodeRecord(r model.MemoryRecord) map[string]any {
	v := map[string]any{
		"id": r.ID.String(), "tenant": r.Tenant, "agent": r.Agent, "type": r.Type,
		"content": r.Content, "metadata": r.Metadata, "created_at": r.CreatedAt.Format(time.RFC3339Nano),
	}
	if r.ParentID != nil {
		v["parent_id"] = r.ParentID.String()
	}
	return v
}

func decodeRecord(v map[string]any) model.MemoryRecord {
	var r model.MemoryRecord
	if s, ok := v["id"].(string); ok {
		r.ID, _ = uuid.Parse(s)
	}
	r.Tenant, _ = v["tenant"].(string)
	r.Agent, _ = v["agent"].(string)
	r.Type, _ = v["type"].(string)
	r.Content, _ = v["content"].(string)
	if md, ok := v["metadata"].(map[string]any); ok {
		r.Metadata = md
	}
	if s, ok := v["parent_id"].(string); ok {
		if pid, err := uuid.Parse(s); err == nil {
			r.ParentID = &pid
		}
	}
	if s, ok := v["created_at"].(string); ok {
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	return r
}
