// Package audit implements the Audit Emitter (C17): synchronous,
// per-tenant-ordered emission of structured audit events, plus an optional
// hash-chained sink for tamper-evident audit trails.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/storage"
)

// Event is the shape every audit record takes: {tenant, action, data, meta}.
type Event struct {
	Tenant    string         `json:"tenant"`
	Action    string         `json:"action"`
	Data      map[string]any `json:"data"`
	Component string         `json:"component"`
	Timestamp time.Time      `json:"timestamp"`
}

// Emitter writes Events in strict per-tenant sequence order, guaranteeing
// that two events from the same tenant are never observed out of order
// even under concurrent emission from different goroutines.
type Emitter struct {
	driver *storage.EmulatingDriver

	mu    sync.Mutex
	seqs  map[string]int64
}

// New constructs an Emitter.
func New(driver storage.Driver) *Emitter {
	return &Emitter{driver: storage.Wrap(driver), seqs: map[string]int64{}}
}

// Emit synchronously persists ev under the next sequence number for its tenant.
func (e *Emitter) Emit(ctx context.Context, ev Event) error {
	e.mu.Lock()
	seq := e.seqs[ev.Tenant]
	e.seqs[ev.Tenant] = seq + 1
	e.mu.Unlock()

	value := map[string]any{
		"tenant": ev.Tenant, "action": ev.Action, "data": ev.Data,
		"component": ev.Component, "timestamp": ev.Timestamp.Format(time.RFC3339Nano), "seq": seq,
	}
	if err := e.driver.Write(ctx, storage.AuditKey(ev.Tenant, seq), value, storage.Meta{Tenant: ev.Tenant, Type: "audit", Immutable: true}); err != nil {
		return fmt.Errorf("%w: emit audit event: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// ReportJobFailure satisfies jobs.FailureReporter: terminal job failures are
// emitted as ordinary audit events.
func (e *Emitter) ReportJobFailure(ctx context.Context, tenant string, jobID uuid.UUID, reason string) {
	_ = e.Emit(ctx, Event{
		Tenant: tenant, Action: "job_terminal_failure",
		Data:      map[string]any{"job_id": jobID.String(), "reason": reason},
		Component: "jobs", Timestamp: time.Now(),
	})
}

// ChainedSink wraps an Emitter with SHA-256 hash-chaining: each event's hash
// covers its own payload plus the previous event's hash, so any deletion or
// reordering breaks the chain. akashi.New wires it in as the orchestrator's
// default auditor unless WithAuditSink supplies another.
type ChainedSink struct {
	emitter *Emitter

	mu       sync.Mutex
	lastHash map[string]string // per-tenant chain tip
}

// NewChainedSink wraps emitter with hash-chaining state.
func NewChainedSink(emitter *Emitter) *ChainedSink {
	return &ChainedSink{emitter: emitter, lastHash: map[string]string{}}
}

// Emit computes this event's chained hash and delegates to the wrapped Emitter,
// attaching the hash and its predecessor under ev.Data["_hash"]/["_prev_hash"].
func (c *ChainedSink) Emit(ctx context.Context, ev Event) error {
	c.mu.Lock()
	prev := c.lastHash[ev.Tenant]
	payload, _ := json.Marshal(struct {
		Event
		Prev string `json:"prev_hash"`
	}{Event: ev, Prev: prev})
	sum := sha256.Sum256(payload)
	hash := hex.EncodeToString(sum[:])
	c.lastHash[ev.Tenant] = hash
	c.mu.Unlock()

	if ev.Data == nil {
		ev.Data = map[string]any{}
	}
	ev.Data["_hash"] = hash
	ev.Data["_prev_hash"] = prev
	return c.emitter.Emit(ctx, ev)
}
