// Package jobs implements the Job Dispatcher & Worker (C16): dispatch,
// fairness-ordered polling, CAS-based claiming, bounded-concurrency
// execution, and terminal-failure reporting.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

// MaxAttempts is the terminal-failure threshold before a job is marked dead.
const MaxAttempts = 5

// FailureReporter receives terminal job failures. The audit package satisfies
// this so jobs need not import audit directly (it would create a cycle, since
// audit emission can itself be triggered by job completion elsewhere).
type FailureReporter interface {
	ReportJobFailure(ctx context.Context, tenant string, jobID uuid.UUID, reason string)
}

// Handler executes one job and returns an error on failure.
type Handler func(ctx context.Context, job model.Job) error

// Claimed wraps a Job with the optimistic version CompareAndSwap last observed,
// so a Claim can be protected independently of the job's execution-attempt count.
type Claimed struct {
	model.Job
	version int
}

// Dispatcher writes jobs and runs a bounded-concurrency polling worker loop.
type Dispatcher struct {
	driver   *storage.EmulatingDriver
	reporter FailureReporter
}

// New constructs a Dispatcher. reporter may be nil to disable failure reporting.
func New(driver storage.Driver, reporter FailureReporter) *Dispatcher {
	return &Dispatcher{driver: storage.Wrap(driver), reporter: reporter}
}

// Dispatch writes a new queued job at version 0.
func (d *Dispatcher) Dispatch(ctx context.Context, tenant string, jobType model.JobType, agent string, layer model.Layer, now time.Time) (Claimed, error) {
	job := model.Job{ID: uuid.New(), Type: jobType, Tenant: tenant, Agent: agent, Layer: layer, CreatedAt: now, Status: model.JobQueued}
	if err := d.writeJob(ctx, job, 0); err != nil {
		return Claimed{}, err
	}
	return Claimed{Job: job, version: 0}, nil
}

// Pending lists queued jobs across all tenants, ordered lexicographically by
// id as a deterministic fairness fallback.
func (d *Dispatcher) Pending(ctx context.Context) ([]Claimed, error) {
	rows, err := d.driver.Query(ctx, storage.Query{Pattern: "job:", Filters: map[string]any{"status": string(model.JobQueued)}})
	if err != nil {
		return nil, fmt.Errorf("%w: list pending jobs: %v", apperr.ErrStorageUnavailable, err)
	}
	out := make([]Claimed, 0, len(rows))
	for _, row := range rows {
		out = append(out, decodeJob(row))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

// Claim attempts to transition a job from queued to running via CAS on its
// version, so concurrent workers racing the same stale snapshot never both win.
func (d *Dispatcher) Claim(ctx context.Context, c Claimed) (Claimed, bool, error) {
	next := c
	next.Status = model.JobRunning
	next.version = c.version + 1
	ok, err := d.driver.CompareAndSwap(ctx, storage.JobKey(c.ID.String()), c.version, encodeJob(next), storage.Meta{Tenant: c.Tenant, Type: "job"})
	if err != nil {
		return Claimed{}, false, fmt.Errorf("%w: claim job: %v", apperr.ErrStorageUnavailable, err)
	}
	return next, ok, nil
}

// Execute runs handler against a claimed job, updating status/attempts and
// reporting terminal failures at MaxAttempts.
func (d *Dispatcher) Execute(ctx context.Context, c Claimed, handler Handler) error {
	err := handler(ctx, c.Job)
	c.Attempts++
	c.version++
	if err != nil {
		// Below MaxAttempts the job goes back to queued so Pending offers it again.
		c.Status = model.JobQueued
		if c.Attempts >= MaxAttempts {
			c.Status = model.JobFailed
		}
		if writeErr := d.writeJob(ctx, c.Job, c.version); writeErr != nil {
			return writeErr
		}
		if c.Status == model.JobFailed && d.reporter != nil {
			d.reporter.ReportJobFailure(ctx, c.Tenant, c.ID, err.Error())
		}
		return err
	}
	c.Status = model.JobDone
	return d.writeJob(ctx, c.Job, c.version)
}

// RunWorkers polls Pending in a loop and executes up to concurrency jobs at
// once via errgroup, until ctx is cancelled.
func RunWorkers(ctx context.Context, d *Dispatcher, concurrency int, pollInterval time.Duration, handler Handler) error {
	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, concurrency)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return g.Wait()
		case <-ticker.C:
			pending, err := d.Pending(ctx)
			if err != nil {
				continue
			}
			for _, job := range pending {
				job := job
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return g.Wait()
				}
				g.Go(func() error {
					defer func() { <-sem }()
					claimed, ok, err := d.Claim(ctx, job)
					if err != nil || !ok {
						return nil
					}
					_ = d.Execute(ctx, claimed, handler)
					return nil
				})
			}
		}
	}
}

func (d *Dispatcher) writeJob(ctx context.Context, j model.Job, version int) error {
	c := Claimed{Job: j, version: version}
	if err := d.driver.Write(ctx, storage.JobKey(j.ID.String()), encodeJob(c), storage.Meta{Tenant: j.Tenant, Type: "job"}); err != nil {
		return fmt.Errorf("%w: write job: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func encodeJob(c Claimed) map[string]any {
	return map[string]any{
		"id": c.ID.String(), "type": string(c.Type), "tenant": c.Tenant, "agent": c.Agent,
		"layer": string(c.Layer), "created_at": c.CreatedAt.Format(time.RFC3339Nano),
		"status": string(c.Status), "attempts": c.Attempts, "version": c.version,
	}
}

func decodeJob(v map[string]any) Claimed {
	var c Claimed
	if s, ok := v["id"].(string); ok {
		c.ID, _ = uuid.Parse(s)
	}
	if s, ok := v["type"].(string); ok {
		c.Type = model.JobType(s)
	}
	c.Tenant, _ = v["tenant"].(string)
	c.Agent, _ = v["agent"].(string)
	if s, ok := v["layer"].(string); ok {
		c.Layer = model.Layer(s)
	}
	if s, ok := v["created_at"].(string); ok {
		c.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	if s, ok := v["status"].(string); ok {
		c.Status = model.JobStatus(s)
	}
	if n, ok := v["attempts"].(int); ok {
		c.Attempts = n
	} else if f, ok := v["attempts"].(float64); ok {
		c.Attempts = int(f)
	}
	if n, ok := v["version"].(int); ok {
		c.version = n
	} else if f, ok := v["version"].(float64); ok {
		c.version = int(f)
	}
	return c
}
