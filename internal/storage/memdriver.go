package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ashita-ai/akashi/internal/apperr"
)

// MemDriver is an in-process Driver backed by a mutex-guarded map. It is used
// by unit tests across every component and is a legitimate production choice
// for single-process deployments that don't need durability across restarts.
//
// MemDriver implements Driver, BatchDriver, SetDriver and CASDriver natively,
// so CompareAndSwap is truly atomic here (unlike EmulatingDriver's
// read-check-write emulation).
type MemDriver struct {
	mu      sync.Mutex
	entries map[string]entry
	sets    map[string]map[string]struct{}
}

type entry struct {
	value map[string]any
	meta  Meta
}

// NewMemDriver constructs an empty MemDriver.
func NewMemDriver() *MemDriver {
	return &MemDriver{
		entries: make(map[string]entry),
		sets:    make(map[string]map[string]struct{}),
	}
}

// Write stores value at key. Immutable writes over an existing key fail with
// ErrInvalidInput, matching the driver contract's "must reject overwrites".
func (m *MemDriver) Write(ctx context.Context, key string, value map[string]any, meta Meta) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrCancelled, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.entries[key]; ok && existing.meta.Immutable {
		return fmt.Errorf("%w: key %q is immutable", apperr.ErrInvalidInput, key)
	}
	m.entries[key] = entry{value: cloneMap(value), meta: meta}
	return nil
}

func (m *MemDriver) Read(ctx context.Context, key string) (map[string]any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, fmt.Errorf("%w: %v", apperr.ErrCancelled, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return cloneMap(e.value), true, nil
}

func (m *MemDriver) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[key]
	return ok, nil
}

func (m *MemDriver) GetMetadata(ctx context.Context, key string) (Meta, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return Meta{}, false, nil
	}
	return e.meta, true, nil
}

// Query scans all entries whose key has the requested prefix, applies
// equality filters and a time-range filter, and returns them sorted
// ascending by a "created_at" or "timestamp" field when present.
func (m *MemDriver) Query(ctx context.Context, q Query) ([]map[string]any, error) {
	m.mu.Lock()
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []map[string]any
	for _, k := range keys {
		if q.Pattern != "" && !strings.HasPrefix(k, q.Pattern) {
			continue
		}
		v := m.entries[k].value
		if !matchFilters(v, q.Filters) {
			continue
		}
		if !matchTimeRange(v, q.From, q.To) {
			continue
		}
		out = append(out, cloneMap(v))
	}
	m.mu.Unlock()

	sortByTime(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MemDriver) Count(ctx context.Context, q Query) (int, error) {
	results, err := m.Query(ctx, Query{Pattern: q.Pattern, Filters: q.Filters, From: q.From, To: q.To})
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

// WriteMulti writes every item under a single lock so callers observe it atomically.
func (m *MemDriver) WriteMulti(ctx context.Context, items map[string]map[string]any, meta Meta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, value := range items {
		if existing, ok := m.entries[key]; ok && existing.meta.Immutable {
			return fmt.Errorf("%w: key %q is immutable", apperr.ErrInvalidInput, key)
		}
		m.entries[key] = entry{value: cloneMap(value), meta: meta}
	}
	return nil
}

func (m *MemDriver) ReadMulti(ctx context.Context, keys []string) (map[string]map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]map[string]any, len(keys))
	for _, k := range keys {
		if e, ok := m.entries[k]; ok {
			out[k] = cloneMap(e.value)
		}
	}
	return out, nil
}

func (m *MemDriver) AddToSet(ctx context.Context, setKey, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[setKey]
	if !ok {
		s = make(map[string]struct{})
		m.sets[setKey] = s
	}
	s[member] = struct{}{}
	return nil
}

func (m *MemDriver) RemoveFromSet(ctx context.Context, setKey, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[setKey]; ok {
		delete(s, member)
	}
	return nil
}

func (m *MemDriver) GetSetMembers(ctx context.Context, setKey string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.sets[setKey]
	out := make([]string, 0, len(s))
	for member := range s {
		out = append(out, member)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemDriver) IsSetMember(ctx context.Context, setKey, member string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sets[setKey][member]
	return ok, nil
}

// CompareAndSwap is truly atomic here: the whole check-and-write happens
// under the single mutex, so concurrent callers never interleave.
func (m *MemDriver) CompareAndSwap(ctx context.Context, key string, expectedVersion int, value map[string]any, meta Meta) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	currentVersion := 0
	if e, ok := m.entries[key]; ok {
		if v, ok := e.value["version"].(int); ok {
			currentVersion = v
		}
	}
	if currentVersion != expectedVersion {
		return false, nil
	}
	m.entries[key] = entry{value: cloneMap(value), meta: meta}
	return true, nil
}

func cloneMap(v map[string]any) map[string]any {
	out := make(map[string]any, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

func matchFilters(v map[string]any, filters map[string]any) bool {
	for k, want := range filters {
		if got, ok := v[k]; !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func matchTimeRange(v map[string]any, from, to time.Time) bool {
	if from.IsZero() && to.IsZero() {
		return true
	}
	ts, ok := extractTime(v)
	if !ok {
		return true
	}
	if !from.IsZero() && ts.Before(from) {
		return false
	}
	if !to.IsZero() && ts.After(to) {
		return false
	}
	return true
}

func extractTime(v map[string]any) (time.Time, bool) {
	for _, field := range []string{"created_at", "timestamp", "discovered_at"} {
		raw, ok := v[field]
		if !ok {
			continue
		}
		switch t := raw.(type) {
		case time.Time:
			return t, true
		case string:
			if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

func sortByTime(records []map[string]any) {
	sort.SliceStable(records, func(i, j int) bool {
		ti, oki := extractTime(records[i])
		tj, okj := extractTime(records[j])
		if !oki || !okj {
			return false
		}
		return ti.Before(tj)
	})
}
