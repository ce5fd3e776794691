// Package stratify implements the Temporal Stratifier (C5): age-derived
// layer classification, summarisation trigger counters, and layered token
// budget allocation for context builds.
package stratify

import (
	"context"
	"fmt"
	"time"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/mdl"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

// Classification windows in seconds.
const (
	hotWindowSeconds    = 86400
	warmWindowSeconds   = 604800
	coldWindowSeconds   = 2592000
)

// layerCountThreshold and layerSummaryInterval are the two independent
// trigger conditions for summarisation: either trips it.
var layerCountThreshold = map[model.Layer]int{
	model.LayerHot: 50, model.LayerWarm: 100, model.LayerCold: 200,
}

var layerSummaryInterval = map[model.Layer]time.Duration{
	model.LayerHot:  time.Hour,
	model.LayerWarm: 24 * time.Hour,
	model.LayerCold: 7 * 24 * time.Hour,
}

// Classify assigns a layer from the age of a record, computed as now - createdAt.
func Classify(createdAt, now time.Time) model.Layer {
	ageSeconds := now.Sub(createdAt).Seconds()
	switch {
	case ageSeconds <= hotWindowSeconds:
		return model.LayerHot
	case ageSeconds <= warmWindowSeconds:
		return model.LayerWarm
	case ageSeconds <= coldWindowSeconds:
		return model.LayerCold
	default:
		return model.LayerFrozen
	}
}

// Stratifier tracks per-(tenant, agent, layer) counters and last-summary
// timestamps, and decides when to trigger a summarisation job.
type Stratifier struct {
	driver *storage.EmulatingDriver
}

// New constructs a Stratifier over driver.
func New(driver storage.Driver) *Stratifier {
	return &Stratifier{driver: storage.Wrap(driver)}
}

type counterState struct {
	Count          int       `json:"count"`
	LastSummaryAt  time.Time `json:"last_summary_at"`
	PendingJobID   string    `json:"pending_job_id,omitempty"`
}

// Observe increments the (tenant, agent, layer) counter after an ingest and
// reports whether a summarisation trigger condition is met. The caller is
// responsible for dispatching the job and calling MarkPending/MarkSummarized.
func (s *Stratifier) Observe(ctx context.Context, tenant, agent string, layer model.Layer, now time.Time) (trigger bool, err error) {
	key := storage.StratifyKey(tenant, agent, string(layer))
	state, err := s.readState(ctx, key)
	if err != nil {
		return false, err
	}
	state.Count++
	if err := s.writeState(ctx, key, state); err != nil {
		return false, err
	}

	if state.PendingJobID != "" {
		// A pending marker makes repeated triggers idempotent until cleared.
		return false, nil
	}

	threshold, hasThreshold := layerCountThreshold[layer]
	interval, hasInterval := layerSummaryInterval[layer]
	countTrip := hasThreshold && state.Count >= threshold
	intervalTrip := hasInterval && (state.LastSummaryAt.IsZero() || now.Sub(state.LastSummaryAt) >= interval)
	return countTrip || intervalTrip, nil
}

// MarkPending records a pending summarisation marker, an idempotent retry
// token that prevents a second trigger while a job is in flight.
func (s *Stratifier) MarkPending(ctx context.Context, tenant, agent string, layer model.Layer, jobID string) error {
	key := storage.StratifyKey(tenant, agent, string(layer))
	state, err := s.readState(ctx, key)
	if err != nil {
		return err
	}
	state.PendingJobID = jobID
	return s.writeState(ctx, key, state)
}

// MarkSummarized clears the pending marker and resets the counter/last-summary time.
func (s *Stratifier) MarkSummarized(ctx context.Context, tenant, agent string, layer model.Layer, now time.Time) error {
	key := storage.StratifyKey(tenant, agent, string(layer))
	state, err := s.readState(ctx, key)
	if err != nil {
		return err
	}
	state.Count = 0
	state.LastSummaryAt = now
	state.PendingJobID = ""
	return s.writeState(ctx, key, state)
}

func (s *Stratifier) readState(ctx context.Context, key string) (counterState, error) {
	v, ok, err := s.driver.Read(ctx, key)
	if err != nil {
		return counterState{}, fmt.Errorf("%w: read stratify state: %v", apperr.ErrStorageUnavailable, err)
	}
	if !ok {
		return counterState{}, nil
	}
	var cs counterState
	if n, ok := v["count"].(int); ok {
		cs.Count = n
	}
	if s, ok := v["last_summary_at"].(string); ok {
		cs.LastSummaryAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	cs.PendingJobID, _ = v["pending_job_id"].(string)
	return cs, nil
}

func (s *Stratifier) writeState(ctx context.Context, key string, cs counterState) error {
	v := map[string]any{"count": cs.Count, "pending_job_id": cs.PendingJobID}
	if !cs.LastSummaryAt.IsZero() {
		v["last_summary_at"] = cs.LastSummaryAt.Format(time.RFC3339Nano)
	}
	if err := s.driver.Write(ctx, key, v, storage.Meta{Tenant: "", Type: "stratify_state"}); err != nil {
		return fmt.Errorf("%w: write stratify state: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// LayeredBudget is the 50/30/15/5 token split across hot/warm/cold/frozen.
type LayeredBudget struct {
	Hot, Warm, Cold, Frozen int
}

// AllocateBudget splits maxTokens into the four layer budgets.
func AllocateBudget(maxTokens int) LayeredBudget {
	return LayeredBudget{
		Hot:    maxTokens * 50 / 100,
		Warm:   maxTokens * 30 / 100,
		Cold:   maxTokens * 15 / 100,
		Frozen: maxTokens * 5 / 100,
	}
}

// LayeredRecord is either a full record (hot layer) or a substitute: the
// latest stored summary, or failing that, a small sample.
type LayeredRecord struct {
	Layer      model.Layer
	MemoryID   string
	Content    string
	IsSummary  bool
	IsSample   bool
}

// BuildContext partitions records by layer and allocates budget, substituting
// summaries (or a 5-record sample) for warm/cold/frozen layers.
func BuildContext(records []model.MemoryRecord, summaries map[model.Layer]string, maxTokens int) []LayeredRecord {
	budget := AllocateBudget(maxTokens)
	byLayer := map[model.Layer][]model.MemoryRecord{}
	now := time.Now()
	for _, r := range records {
		layer := Classify(r.CreatedAt, now)
		byLayer[layer] = append(byLayer[layer], r)
	}

	var out []LayeredRecord
	out = append(out, fillLayer(model.LayerHot, byLayer[model.LayerHot], budget.Hot, true, summaries)...)
	out = append(out, fillLayer(model.LayerWarm, byLayer[model.LayerWarm], budget.Warm, false, summaries)...)
	out = append(out, fillLayer(model.LayerCold, byLayer[model.LayerCold], budget.Cold, false, summaries)...)
	out = append(out, fillLayer(model.LayerFrozen, byLayer[model.LayerFrozen], budget.Frozen, false, summaries)...)
	return out
}

func fillLayer(layer model.Layer, records []model.MemoryRecord, tokenBudget int, full bool, summaries map[model.Layer]string) []LayeredRecord {
	if full {
		var out []LayeredRecord
		var used int
		for _, r := range records {
			t := mdl.EstimateTokens(r.Content)
			if used+t > tokenBudget && len(out) > 0 {
				break
			}
			out = append(out, LayeredRecord{Layer: layer, MemoryID: r.ID.String(), Content: r.Content})
			used += t
		}
		return out
	}
	if summary, ok := summaries[layer]; ok && summary != "" {
		return []LayeredRecord{{Layer: layer, Content: summary, IsSummary: true}}
	}
	sampleSize := 5
	if len(records) < sampleSize {
		sampleSize = len(records)
	}
	var out []LayeredRecord
	for i := 0; i < sampleSize; i++ {
		out = append(out, LayeredRecord{Layer: layer, MemoryID: records[i].ID.String(), Content: records[i].Content, IsSample: true})
	}
	return out
}
