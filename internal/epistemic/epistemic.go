// Package epistemic implements the Epistemic Store (C10): beliefs with an
// immutable version chain, snapshot-at-time reads, and lineage queries.
package epistemic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/lifecycle"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

// Store manages Belief records and their BeliefVersion chains.
type Store struct {
	driver *storage.EmulatingDriver
}

// New constructs a Store over driver.
func New(driver storage.Driver) *Store {
	return &Store{driver: storage.Wrap(driver)}
}

// Create records a new belief in the initial hypothesis state, writing
// version 1 of its chain. This is the only path that creates a Belief; every
// subsequent change goes through Transition.
func (s *Store) Create(ctx context.Context, tenant string, claim model.Claim, confidence model.Confidence, provenance model.Provenance, now time.Time) (model.Belief, error) {
	b := model.Belief{
		ID: uuid.New(), Tenant: tenant, Claim: claim, Confidence: confidence,
		State: lifecycle.InitialState, Provenance: provenance, Version: 1,
		CreatedAt: now, UpdatedAt: now,
	}

	version := model.BeliefVersion{
		VersionID: uuid.New(), BeliefID: b.ID, Tenant: tenant,
		PreviousState: b.State, NewState: b.State, TransitionReason: "created",
		Confidence: confidence, CreatedAt: now,
	}
	if err := s.writeVersion(ctx, version); err != nil {
		return model.Belief{}, err
	}
	if err := s.writeBelief(ctx, b); err != nil {
		return model.Belief{}, err
	}
	return b, nil
}

// Transition validates and applies a state transition, retrying on optimistic
// concurrency conflicts (max 5 retries, base 50ms, exponential backoff). On
// success, version count = before + 1; on failure, version count is unchanged.
func (s *Store) Transition(ctx context.Context, tenant string, beliefID uuid.UUID, to model.BeliefState, reason string, now time.Time) (model.Belief, error) {
	var result model.Belief
	err := storage.WithRetry(ctx, storage.DefaultMaxRetries, storage.DefaultBaseDelay, func() error {
		current, err := s.Get(ctx, tenant, beliefID)
		if err != nil {
			return err
		}
		if err := lifecycle.Validate(current.State, to); err != nil {
			return err
		}

		updated := current
		updated.State = to
		updated.Version = current.Version + 1
		updated.UpdatedAt = now

		ok, err := s.driver.CompareAndSwap(ctx, storage.BeliefKey(tenant, beliefID.String()), current.Version, encodeBelief(updated), storage.Meta{Tenant: tenant, Type: "belief"})
		if err != nil {
			return fmt.Errorf("%w: cas belief: %v", apperr.ErrStorageUnavailable, err)
		}
		if !ok {
			return fmt.Errorf("%w: belief %s version moved concurrently", apperr.ErrConflict, beliefID)
		}

		version := model.BeliefVersion{
			VersionID: uuid.New(), BeliefID: beliefID, Tenant: tenant,
			PreviousState: current.State, NewState: to, TransitionReason: reason,
			Confidence: current.Confidence, CreatedAt: now,
		}
		if err := s.writeVersion(ctx, version); err != nil {
			return err
		}
		if err := s.appendLifecycle(ctx, tenant, beliefID, current.State, to, reason, now); err != nil {
			return err
		}
		result = updated
		return nil
	})
	if err != nil {
		return model.Belief{}, err
	}
	return result, nil
}

// Get reads the current belief record.
func (s *Store) Get(ctx context.Context, tenant string, beliefID uuid.UUID) (model.Belief, error) {
	v, ok, err := s.driver.Read(ctx, storage.BeliefKey(tenant, beliefID.String()))
	if err != nil {
		return model.Belief{}, fmt.Errorf("%w: read belief: %v", apperr.ErrStorageUnavailable, err)
	}
	if !ok {
		return model.Belief{}, fmt.Errorf("%w: belief %s", apperr.ErrNotFound, beliefID)
	}
	return decodeBelief(v), nil
}

// Versions returns a belief's full version chain, ascending by creation time.
func (s *Store) Versions(ctx context.Context, tenant string, beliefID uuid.UUID) ([]model.BeliefVersion, error) {
	rows, err := s.driver.Query(ctx, storage.Query{Pattern: fmt.Sprintf("gnosis:%s:belief:%s:version:", tenant, beliefID.String())})
	if err != nil {
		return nil, fmt.Errorf("%w: query versions: %v", apperr.ErrStorageUnavailable, err)
	}
	versions := make([]model.BeliefVersion, 0, len(rows))
	for _, row := range rows {
		versions = append(versions, decodeVersion(row))
	}
	return versions, nil
}

// SnapshotAt returns the belief state as of a point in time: the newest
// version with CreatedAt <= at, projected onto the belief's other immutable fields.
func (s *Store) SnapshotAt(ctx context.Context, tenant string, beliefID uuid.UUID, at time.Time) (model.Belief, error) {
	versions, err := s.Versions(ctx, tenant, beliefID)
	if err != nil {
		return model.Belief{}, err
	}
	current, err := s.Get(ctx, tenant, beliefID)
	if err != nil {
		return model.Belief{}, err
	}

	snapshot := current
	found := false
	for i, v := range versions {
		if v.CreatedAt.After(at) {
			break
		}
		snapshot.State = v.NewState
		snapshot.Confidence = v.Confidence
		snapshot.Version = i + 1
		found = true
	}
	if !found {
		return model.Belief{}, fmt.Errorf("%w: no belief version at or before %s", apperr.ErrNotFound, at)
	}
	return snapshot, nil
}

// Lifecycle returns a belief's full history of state transitions, ascending
// by time, distinct from Versions' immutable confidence/claim snapshots:
// the lifecycle record exists solely to answer "what path did this belief's
// state take", without re-deriving it from the version chain.
func (s *Store) Lifecycle(ctx context.Context, tenant string, beliefID uuid.UUID) ([]model.LifecycleTransition, error) {
	v, ok, err := s.driver.Read(ctx, storage.LifecycleKey(tenant, beliefID.String()))
	if err != nil {
		return nil, fmt.Errorf("%w: read lifecycle: %v", apperr.ErrStorageUnavailable, err)
	}
	if !ok {
		return nil, nil
	}
	entries := toMapSlice(v["transitions"])
	out := make([]model.LifecycleTransition, 0, len(entries))
	for _, e := range entries {
		out = append(out, decodeLifecycleEntry(tenant, beliefID, e))
	}
	return out, nil
}

// appendLifecycle records one transition onto the belief's lifecycle record.
// It is a read-modify-write over a single key rather than a CAS update:
// Transition already serialises concurrent writers through the belief's own
// optimistic-concurrency retry loop, so by the time this runs the state
// change it is recording has already won.
func (s *Store) appendLifecycle(ctx context.Context, tenant string, beliefID uuid.UUID, from, to model.BeliefState, reason string, now time.Time) error {
	key := storage.LifecycleKey(tenant, beliefID.String())
	v, ok, err := s.driver.Read(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: read lifecycle: %v", apperr.ErrStorageUnavailable, err)
	}
	var entries []map[string]any
	if ok {
		entries = toMapSlice(v["transitions"])
	}
	entries = append(entries, map[string]any{
		"previous_state": string(from), "new_state": string(to),
		"reason": reason, "at": now.Format(time.RFC3339Nano),
	})
	value := map[string]any{"belief_id": beliefID.String(), "tenant": tenant, "transitions": entries}
	if err := s.driver.Write(ctx, key, value, storage.Meta{Tenant: tenant, Type: "lifecycle"}); err != nil {
		return fmt.Errorf("%w: write lifecycle: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// toMapSlice normalises either a native []map[string]any (MemDriver) or a
// []interface{} of map[string]any (PGDriver, JSON round-tripped) into one shape.
func toMapSlice(v any) []map[string]any {
	switch s := v.(type) {
	case []map[string]any:
		return s
	case []interface{}:
		out := make([]map[string]any, 0, len(s))
		for _, e := range s {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

func decodeLifecycleEntry(tenant string, beliefID uuid.UUID, v map[string]any) model.LifecycleTransition {
	e := model.LifecycleTransition{BeliefID: beliefID, Tenant: tenant}
	e.PreviousState = model.BeliefState(fmt.Sprint(v["previous_state"]))
	e.NewState = model.BeliefState(fmt.Sprint(v["new_state"]))
	e.Reason, _ = v["reason"].(string)
	if s, ok := v["at"].(string); ok {
		e.At, _ = time.Parse(time.RFC3339Nano, s)
	}
	return e
}

func (s *Store) writeBelief(ctx context.Context, b model.Belief) error {
	if err := s.driver.Write(ctx, storage.BeliefKey(b.Tenant, b.ID.String()), encodeBelief(b), storage.Meta{Tenant: b.Tenant, Type: "belief"}); err != nil {
		return fmt.Errorf("%w: write belief: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func (s *Store) writeVersion(ctx context.Context, v model.BeliefVersion) error {
	key := storage.BeliefVersionKey(v.Tenant, v.BeliefID.String(), v.VersionID.String())
	if err := s.driver.Write(ctx, key, encodeVersion(v), storage.Meta{Tenant: v.Tenant, Type: "belief_version", Immutable: true}); err != nil {
		return fmt.Errorf("%w: write belief version: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func encodeConfidence(c model.Confidence) map[string]any {
	return map[string]any{"min": c.Min, "mean": c.Mean, "max": c.Max}
}

func decodeConfidence(v map[string]any) model.Confidence {
	get := func(k string) float64 {
		switch n := v[k].(type) {
		case float64:
			return n
		case int:
			return float64(n)
		}
		return 0
	}
	return model.Confidence{Min: get("min"), Mean: get("mean"), Max: get("max")}
}

func encodeBelief(b model.Belief) map[string]any {
	return map[string]any{
		"id": b.ID.String(), "tenant": b.Tenant,
		"claim": map[string]any{"text": b.Claim.Text},
		"confidence": encodeConfidence(b.Confidence),
		"state":      string(b.State),
		"provenance": map[string]any{
			"source": b.Provenance.Source, "memory_id": b.Provenance.MemoryID.String(), "agent": b.Provenance.Agent,
		},
		"version":    b.Version,
		"created_at": b.CreatedAt.Format(time.RFC3339Nano),
		"updated_at": b.UpdatedAt.Format(time.RFC3339Nano),
	}
}

func decodeBelief(v map[string]any) model.Belief {
	var b model.Belief
	if s, ok := v["id"].(string); ok {
		b.ID, _ = uuid.Parse(s)
	}
	b.Tenant, _ = v["tenant"].(string)
	if claim, ok := v["claim"].(map[string]any); ok {
		b.Claim.Text, _ = claim["text"].(string)
	}
	if conf, ok := v["confidence"].(map[string]any); ok {
		b.Confidence = decodeConfidence(conf)
	}
	b.State = model.BeliefState(fmt.Sprint(v["state"]))
	if prov, ok := v["provenance"].(map[string]any); ok {
		b.Provenance.Source, _ = prov["source"].(string)
		if s, ok := prov["memory_id"].(string); ok {
			b.Provenance.MemoryID, _ = uuid.Parse(s)
		}
		b.Provenance.Agent, _ = prov["agent"].(string)
	}
	if ver, ok := v["version"].(int); ok {
		b.Version = ver
	} else if verF, ok := v["version"].(float64); ok {
		b.Version = int(verF)
	}
	if s, ok := v["created_at"].(string); ok {
		b.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	if s, ok := v["updated_at"].(string); ok {
		b.UpdatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	return b
}

func encodeVersion(v model.BeliefVersion) map[string]any {
	return map[string]any{
		"version_id": v.VersionID.String(), "belief_id": v.BeliefID.String(), "tenant": v.Tenant,
		"previous_state": string(v.PreviousState), "new_state": string(v.NewState),
		"transition_reason": v.TransitionReason, "confidence": encodeConfidence(v.Confidence),
		"created_at": v.CreatedAt.Format(time.RFC3339Nano),
	}
}

func decodeVersion(v map[string]any) model.BeliefVersion {
	var bv model.BeliefVersion
	if s, ok := v["version_id"].(string); ok {
		bv.VersionID, _ = uuid.Parse(s)
	}
	if s, ok := v["belief_id"].(string); ok {
		bv.BeliefID, _ = uuid.Parse(s)
	}
	bv.Tenant, _ = v["tenant"].(string)
	bv.PreviousState = model.BeliefState(fmt.Sprint(v["previous_state"]))
	bv.NewState = model.BeliefState(fmt.Sprint(v["new_state"]))
	bv.TransitionReason, _ = v["transition_reason"].(string)
	if conf, ok := v["confidence"].(map[string]any); ok {
		bv.Confidence = decodeConfidence(conf)
	}
	if s, ok := v["created_at"].(string); ok {
		bv.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	return bv
}
