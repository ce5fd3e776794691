// Package orchestrator implements the Orchestrator (C15): the single
// ingestion path (storeMemory) and single context path (buildContext) that
// tie the Narrative Store, Epistemic Store, Surprise Scorer, ATLAS Priority,
// Hierarchical Compressor, Retention Evaluator and Temporal Stratifier
// together atomically for both the ingest and the context-read path.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/atlas"
	"github.com/ashita-ai/akashi/internal/audit"
	"github.com/ashita-ai/akashi/internal/compress"
	"github.com/ashita-ai/akashi/internal/confidence"
	"github.com/ashita-ai/akashi/internal/contradiction"
	"github.com/ashita-ai/akashi/internal/epistemic"
	"github.com/ashita-ai/akashi/internal/jobs"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/narrative"
	"github.com/ashita-ai/akashi/internal/retention"
	"github.com/ashita-ai/akashi/internal/storage"
	"github.com/ashita-ai/akashi/internal/stratify"
	"github.com/ashita-ai/akashi/internal/summarise"
	"github.com/ashita-ai/akashi/internal/surprise"
)

// atlasDiversityLambda trades raw importance against redundancy in Rerank:
// higher values favour diversity over the top-scored candidate.
const atlasDiversityLambda = 0.3

// Auditor receives the events the orchestrator emits for storeMemory and
// other state-changing operations. Both audit.Emitter and audit.ChainedSink
// satisfy this, and so does any caller-supplied sink adapted to it.
type Auditor interface {
	Emit(ctx context.Context, ev audit.Event) error
}

// Orchestrator wires the full component graph behind two entry points.
type Orchestrator struct {
	driver       *storage.EmulatingDriver
	narrativeSt  *narrative.Store
	epistemicSt  *epistemic.Store
	contradictSt *contradiction.Index
	stratifier   *stratify.Stratifier
	summariser   *summarise.Summariser
	dispatcher   *jobs.Dispatcher
	auditor      Auditor
	aiProvider   aiprovider.Provider
	confidenceTr *confidence.Tracker
	defaultCfg   model.TenantConfig
	atlasWeights atlas.Weights
}

// New wires an Orchestrator over a single storage driver. jobDispatcher and
// auditor may be constructed over the same driver by the caller. aiProvider
// fills a claim's confidence when the caller omits one. cfg is the fallback
// tenant configuration used until a tenant calls ConfigureAdaptive.
func New(driver storage.Driver, contradictSt *contradiction.Index, summariser *summarise.Summariser, dispatcher *jobs.Dispatcher, auditor Auditor, aiProvider aiprovider.Provider, cfg model.TenantConfig) *Orchestrator {
	return &Orchestrator{
		driver:       storage.Wrap(driver),
		narrativeSt:  narrative.New(driver),
		epistemicSt:  epistemic.New(driver),
		contradictSt: contradictSt,
		stratifier:   stratify.New(driver),
		summariser:   summariser,
		dispatcher:   dispatcher,
		auditor:      auditor,
		aiProvider:   aiProvider,
		confidenceTr: confidence.New(driver),
		defaultCfg:   cfg,
		atlasWeights: atlas.DefaultWeights(),
	}
}

// ConfigureAdaptive stores tenant-specific retention and surprise weighting,
// read back by every subsequent StoreMemory/BuildContext/EvaluateRetention
// call for that tenant.
func (o *Orchestrator) ConfigureAdaptive(ctx context.Context, tenant string, cfg model.TenantConfig) error {
	cfg.Tenant = tenant
	rw := &cfg.RetentionPolicy.RetentionWeights
	if sum := rw.Surprise + rw.Contradiction + rw.Temporal + rw.Evidence + rw.Usage; sum > 0 {
		rw.Surprise, rw.Contradiction, rw.Temporal, rw.Evidence, rw.Usage = rw.Surprise/sum, rw.Contradiction/sum, rw.Temporal/sum, rw.Evidence/sum, rw.Usage/sum
	}
	sw := &cfg.SurpriseWeights
	if sum := sw.Novelty + sw.Contradiction + sw.Evidence + sw.ConfidenceShift + sw.Disagreement; sum > 0 {
		sw.Novelty, sw.Contradiction, sw.Evidence, sw.ConfidenceShift, sw.Disagreement = sw.Novelty/sum, sw.Contradiction/sum, sw.Evidence/sum, sw.ConfidenceShift/sum, sw.Disagreement/sum
	}
	if err := o.driver.Write(ctx, storage.AdaptiveConfigKey(tenant, "policy"), encodeTenantConfig(cfg), storage.Meta{Tenant: tenant, Type: "adaptive_config"}); err != nil {
		return fmt.Errorf("configure adaptive: %w", err)
	}
	return nil
}

// tenantConfig reads the tenant's stored configuration, falling back to the
// Orchestrator's default when the tenant never called ConfigureAdaptive.
func (o *Orchestrator) tenantConfig(ctx context.Context, tenant string) model.TenantConfig {
	v, ok, err := o.driver.Read(ctx, storage.AdaptiveConfigKey(tenant, "policy"))
	if err != nil || !ok {
		cfg := o.defaultCfg
		cfg.Tenant = tenant
		return cfg
	}
	return decodeTenantConfig(v)
}

func encodeTenantConfig(cfg model.TenantConfig) map[string]any {
	rw := cfg.RetentionPolicy.RetentionWeights
	sw := cfg.SurpriseWeights
	return map[string]any{
		"tenant":                cfg.Tenant,
		"compression_strategy":  cfg.CompressionStrategy,
		"promotion_threshold":   cfg.RetentionPolicy.PromotionThreshold,
		"compression_threshold": cfg.RetentionPolicy.CompressionThreshold,
		"compression_age_days":  cfg.RetentionPolicy.CompressionAgeDays,
		"decay_rate":            cfg.RetentionPolicy.DecayRate,
		"temporal_half_life":    cfg.RetentionPolicy.TemporalHalfLifeDays,
		"retention_weights": map[string]any{
			"surprise": rw.Surprise, "contradiction": rw.Contradiction, "temporal": rw.Temporal, "evidence": rw.Evidence, "usage": rw.Usage,
		},
		"surprise_weights": map[string]any{
			"novelty": sw.Novelty, "contradiction": sw.Contradiction, "evidence": sw.Evidence, "confidence_shift": sw.ConfidenceShift, "disagreement": sw.Disagreement,
		},
	}
}

func decodeTenantConfig(v map[string]any) model.TenantConfig {
	cfg := model.DefaultTenantConfig("")
	cfg.Tenant, _ = v["tenant"].(string)
	if s, ok := v["compression_strategy"].(string); ok {
		cfg.CompressionStrategy = s
	}
	if f, ok := v["promotion_threshold"].(float64); ok {
		cfg.RetentionPolicy.PromotionThreshold = f
	}
	if f, ok := v["compression_threshold"].(float64); ok {
		cfg.RetentionPolicy.CompressionThreshold = f
	}
	if f, ok := v["compression_age_days"].(float64); ok {
		cfg.RetentionPolicy.CompressionAgeDays = f
	}
	if f, ok := v["decay_rate"].(float64); ok {
		cfg.RetentionPolicy.DecayRate = f
	}
	if f, ok := v["temporal_half_life"].(float64); ok {
		cfg.RetentionPolicy.TemporalHalfLifeDays = f
	}
	if rw, ok := v["retention_weights"].(map[string]any); ok {
		cfg.RetentionPolicy.RetentionWeights = model.RetentionWeights{
			Surprise: toF(rw["surprise"]), Contradiction: toF(rw["contradiction"]), Temporal: toF(rw["temporal"]),
			Evidence: toF(rw["evidence"]), Usage: toF(rw["usage"]),
		}
	}
	if sw, ok := v["surprise_weights"].(map[string]any); ok {
		cfg.SurpriseWeights = model.SurpriseWeights{
			Novelty: toF(sw["novelty"]), Contradiction: toF(sw["contradiction"]), Evidence: toF(sw["evidence"]),
			ConfidenceShift: toF(sw["confidence_shift"]), Disagreement: toF(sw["disagreement"]),
		}
	}
	return cfg
}

func toF(v any) float64 {
	f, _ := v.(float64)
	return f
}

// IngestClaim is one claim attached to an ingestion, optionally compared
// against peer beliefs from other agents to resolve the disagreement
// component of the surprise score: the fraction of supplied peers whose
// belief on the same claim differs materially (peer state rejected or
// contested, or mean confidence diverging by more than 0.3) from this
// claim's own confidence.
type IngestClaim struct {
	Claim         model.Claim
	PeerBeliefs   []model.Belief
}

// IngestInput is the caller-supplied payload for storeMemory.
type IngestInput struct {
	Type      string
	Content   string
	Metadata  map[string]any
	ParentID  *uuid.UUID
	Claims    []IngestClaim
	Evidence  float64 // provenance-quality signal in [0,1]; 0 if unknown

	// IdempotencyKey, when non-empty, makes a repeated storeMemory call with
	// the same key return the original Result instead of ingesting again.
	// This is an opt-in caller contract layered on top of the six-step
	// sequence, distinct from the content-based round-trip property that
	// governs unkeyed calls (two unkeyed calls with identical content always
	// produce two distinct memory ids).
	IdempotencyKey string
}

// Result is the outcome of storeMemory, always returning whatever was
// achieved even on partial failure.
type Result struct {
	MemoryID      uuid.UUID
	AdaptiveID    uuid.UUID
	BeliefIDs     []uuid.UUID
	SurpriseScore float64
	Degraded      []string
}

// StoreMemory runs the six-step ingestion sequence: validate, append
// MemoryRecord, record claims as beliefs, compute surprise, write the
// AdaptiveMemory projection, trigger layer checks, emit audit. Steps after
// MemoryRecord append that fail (including via context cancellation) yield a
// partial Result with a populated Degraded field rather than silent loss.
func (o *Orchestrator) StoreMemory(ctx context.Context, tenant, agent string, in IngestInput, signal *surprise.Signal, now time.Time) (Result, error) {
	if in.Content == "" {
		return Result{}, fmt.Errorf("%w: content is required", apperr.ErrInvalidInput)
	}

	if in.IdempotencyKey != "" {
		if prior, ok, err := o.priorResult(ctx, tenant, in.IdempotencyKey); err == nil && ok {
			return prior, nil
		}
	}

	cfg := o.tenantConfig(ctx, tenant)

	rec, err := o.narrativeSt.Store(ctx, tenant, narrative.RecordInput{
		Agent: agent, Type: in.Type, Content: in.Content, Metadata: in.Metadata, ParentID: in.ParentID,
	}, now)
	if err != nil {
		return Result{}, fmt.Errorf("store memory record: %w", err)
	}
	result := Result{MemoryID: rec.ID}

	if err := ctx.Err(); err != nil {
		result.Degraded = append(result.Degraded, "belief_recording_cancelled")
		return result, nil
	}

	var beliefIDs []uuid.UUID
	var contradictionFraction, disagreementFraction, confidenceShiftSum float64
	var confidenceShiftCount int
	for _, ic := range in.Claims {
		if err := ctx.Err(); err != nil {
			result.Degraded = append(result.Degraded, "belief_recording_cancelled")
			break
		}
		claimConfidence := ic.Claim.Confidence
		confidence := o.resolveConfidence(ctx, ic.Claim.Text, in.Content, claimConfidence)
		belief, err := o.epistemicSt.Create(ctx, tenant, ic.Claim, confidence,
			model.Provenance{Source: in.Type, MemoryID: rec.ID, Agent: agent}, now)
		if err != nil {
			result.Degraded = append(result.Degraded, "belief_creation_failed:"+err.Error())
			continue
		}
		beliefIDs = append(beliefIDs, belief.ID)

		if o.confidenceTr != nil {
			_ = o.confidenceTr.Record(ctx, tenant, belief.ID, confidence, now)
			for _, peer := range ic.PeerBeliefs {
				drift, err := o.confidenceTr.Drift(ctx, tenant, peer.ID)
				if err != nil {
					continue
				}
				confidenceShiftSum += abs(drift)
				confidenceShiftCount++
			}
		}

		contradictionFraction += o.contradictionFraction(ctx, tenant, belief, beliefIDs)
		disagreementFraction += disagreementFor(ic, confidence)
	}
	result.BeliefIDs = beliefIDs

	var confidenceShift float64
	if confidenceShiftCount > 0 {
		confidenceShift = confidenceShiftSum / float64(confidenceShiftCount)
	}

	var novelty float64 = 1
	if len(beliefIDs) > 0 {
		contradictionFraction /= float64(len(beliefIDs))
		disagreementFraction /= float64(len(beliefIDs))
	}

	score, components := surprise.Score(cfg.SurpriseWeights, surprise.Inputs{
		Novelty: novelty, Contradiction: contradictionFraction, Evidence: in.Evidence,
		ConfidenceShift: confidenceShift, Disagreement: disagreementFraction,
	}, signal)
	result.SurpriseScore = score

	layer := stratify.Classify(now, now)
	importance := atlas.Importance(o.atlasWeights, 0, atlas.Recency(0), score, 0, 0)

	adaptive := model.AdaptiveMemory{
		ID: uuid.New(), Tenant: tenant, Agent: agent, CoreMemoryID: rec.ID, BeliefIDs: beliefIDs,
		SurpriseScore: score, SurpriseComponents: components, Layer: layer, Importance: importance,
		CompressionLevel: int(compress.LevelForSurprise(score)),
		CreatedAt:        now, UpdatedAt: now,
	}
	if err := o.driver.Write(ctx, storage.AdaptiveMemoryKey(tenant, adaptive.ID.String()), encodeAdaptive(adaptive), storage.Meta{Tenant: tenant, Type: "adaptive_memory"}); err != nil {
		result.Degraded = append(result.Degraded, "adaptive_projection_failed")
		return result, nil
	}
	result.AdaptiveID = adaptive.ID

	if o.stratifier != nil {
		trigger, err := o.stratifier.Observe(ctx, tenant, agent, layer, now)
		if err == nil && trigger && o.dispatcher != nil {
			job, err := o.dispatcher.Dispatch(ctx, tenant, model.JobSummarization, agent, layer, now)
			if err == nil {
				_ = o.stratifier.MarkPending(ctx, tenant, agent, layer, job.ID.String())
			}
		}
	}

	if o.auditor != nil {
		_ = o.auditor.Emit(ctx, audit.Event{
			Tenant: tenant, Action: "memory_stored",
			Data:      map[string]any{"memory_id": rec.ID.String(), "surprise_score": score, "degraded": result.Degraded},
			Component: "orchestrator", Timestamp: now,
		})
	}

	if in.IdempotencyKey != "" {
		_ = o.driver.Write(ctx, storage.IdempotencyKey(tenant, in.IdempotencyKey), encodeResult(result),
			storage.Meta{Tenant: tenant, Type: "idempotency", Immutable: true})
	}

	return result, nil
}

// priorResult looks up a Result previously stored under an idempotency key.
func (o *Orchestrator) priorResult(ctx context.Context, tenant, key string) (Result, bool, error) {
	v, ok, err := o.driver.Read(ctx, storage.IdempotencyKey(tenant, key))
	if err != nil || !ok {
		return Result{}, false, err
	}
	return decodeResult(v), true, nil
}

func encodeResult(r Result) map[string]any {
	beliefIDs := make([]string, len(r.BeliefIDs))
	for i, id := range r.BeliefIDs {
		beliefIDs[i] = id.String()
	}
	return map[string]any{
		"memory_id": r.MemoryID.String(), "adaptive_id": r.AdaptiveID.String(),
		"belief_ids": beliefIDs, "surprise_score": r.SurpriseScore, "degraded": r.Degraded,
	}
}

func decodeResult(v map[string]any) Result {
	var r Result
	if s, ok := v["memory_id"].(string); ok {
		r.MemoryID, _ = uuid.Parse(s)
	}
	if s, ok := v["adaptive_id"].(string); ok {
		r.AdaptiveID, _ = uuid.Parse(s)
	}
	for _, s := range toStringSlice(v["belief_ids"]) {
		if id, err := uuid.Parse(s); err == nil {
			r.BeliefIDs = append(r.BeliefIDs, id)
		}
	}
	if f, ok := v["surprise_score"].(float64); ok {
		r.SurpriseScore = f
	}
	r.Degraded = toStringSlice(v["degraded"])
	return r
}

// toStringSlice normalises either a native []string (MemDriver, which stores
// Go values directly) or a []interface{} of strings (PGDriver, which
// round-trips everything through JSON).
func toStringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

func (o *Orchestrator) contradictionFraction(ctx context.Context, tenant string, belief model.Belief, others []uuid.UUID) float64 {
	if o.contradictSt == nil || len(others) < 2 {
		return 0
	}
	prior := others[:len(others)-1]
	if len(prior) == 0 {
		return 0
	}
	var hits int
	for _, otherID := range prior {
		other, err := o.epistemicSt.Get(ctx, tenant, otherID)
		if err != nil {
			continue
		}
		contradictory, _ := o.contradictSt.AreContradictory(ctx, belief.Claim.Text, other.Claim.Text)
		if contradictory {
			hits++
			_, _ = o.contradictSt.Record(ctx, tenant, belief.ID, other.ID, "claim_conflict", time.Now())
		}
	}
	return float64(hits) / float64(len(prior))
}

// resolveConfidence returns the caller-supplied confidence when given;
// otherwise it asks the AI provider to score the claim against the memory's
// content, falling back to model.DefaultConfidence when no provider is wired
// or the provider call fails.
func (o *Orchestrator) resolveConfidence(ctx context.Context, claimText, claimCtx string, supplied *model.Confidence) model.Confidence {
	if supplied != nil {
		return *supplied
	}
	if o.aiProvider != nil {
		if scored, err := o.aiProvider.ScoreEpistemicConfidence(ctx, claimText, claimCtx); err == nil {
			return scored
		}
	}
	return model.DefaultConfidence()
}

// disagreementFor resolves agent_disagreement as the fraction of supplied
// peer beliefs that diverge materially from this claim's own confidence.
func disagreementFor(ic IngestClaim, confidence model.Confidence) float64 {
	if len(ic.PeerBeliefs) == 0 {
		return 0
	}
	var disagreeing int
	for _, peer := range ic.PeerBeliefs {
		stateDiverges := peer.State == model.StateRejected || peer.State == model.StateContested
		confidenceDiverges := abs(peer.Confidence.Mean-confidence.Mean) > 0.3
		if stateDiverges || confidenceDiverges {
			disagreeing++
		}
	}
	return float64(disagreeing) / float64(len(ic.PeerBeliefs))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// ContextOptions controls buildContext.
type ContextOptions struct {
	MaxTokens    int
	QueryContext string
	Agent        string
}

// Context is the assembled result of buildContext: layered records, active
// contradictions, retention recommendations, and a high-surprise callout.
type Context struct {
	Records              []stratify.LayeredRecord
	ActiveContradictions []model.Contradiction
	RetentionAdvice       []retention.Recommendation
	HighSurprise          []uuid.UUID
	CompressionStats      map[compress.Level]int
}

// BuildContext assembles the single context-read path: layer partitioning,
// summary substitution, contradiction surfacing,
// importance-based reranking, and retention advisory scoring, all under a
// single token budget.
func (o *Orchestrator) BuildContext(ctx context.Context, tenant string, opts ContextOptions) (Context, error) {
	cfg := o.tenantConfig(ctx, tenant)
	records, err := o.narrativeSt.Retrieve(ctx, tenant, narrative.RetrieveFilter{Agent: opts.Agent, MaxTokens: opts.MaxTokens})
	if err != nil {
		return Context{}, fmt.Errorf("retrieve narrative records: %w", err)
	}

	layered := stratify.BuildContext(records, o.layerSummaries(ctx, tenant, records), opts.MaxTokens)
	layered = o.rerankHotLayer(ctx, tenant, layered, records, opts)

	var active []model.Contradiction
	if o.contradictSt != nil {
		active, _ = o.contradictSt.Active(ctx, tenant)
	}

	highSurprise, signals, stats := o.gatherSignals(ctx, tenant, records)
	advice := retention.Evaluate(retention.FromModel(cfg.RetentionPolicy.RetentionWeights), retentionThresholds(cfg), signals)

	return Context{
		Records: layered, ActiveContradictions: active, RetentionAdvice: advice,
		HighSurprise: highSurprise, CompressionStats: stats,
	}, nil
}

// rerankHotLayer replaces the hot-layer slice of a layered context with
// ATLAS's diversity-aware MMR selection under the hot layer's token budget,
// leaving warm/cold/frozen summaries and samples untouched.
func (o *Orchestrator) rerankHotLayer(ctx context.Context, tenant string, layered []stratify.LayeredRecord, records []model.MemoryRecord, opts ContextOptions) []stratify.LayeredRecord {
	byID := make(map[string]model.MemoryRecord, len(records))
	for _, r := range records {
		byID[r.ID.String()] = r
	}

	var candidates []atlas.Candidate
	var rest []stratify.LayeredRecord
	for _, lr := range layered {
		if lr.Layer != model.LayerHot || lr.IsSummary || lr.IsSample {
			rest = append(rest, lr)
			continue
		}
		rec, ok := byID[lr.MemoryID]
		if !ok {
			rest = append(rest, lr)
			continue
		}
		adaptive, ok, err := o.readAdaptiveForMemory(ctx, tenant, rec.ID)
		var surpriseScore, importance float64
		var usage int
		if ok && err == nil {
			surpriseScore, importance, usage = adaptive.SurpriseScore, adaptive.Importance, adaptive.UsageCount
		}
		candidates = append(candidates, atlas.Candidate{
			MemoryID: lr.MemoryID, Content: lr.Content,
			AgeDays: time.Since(rec.CreatedAt).Hours() / 24,
			Surprise: surpriseScore, UsageCount: usage, Importance: importance,
		})
	}
	if len(candidates) == 0 {
		return layered
	}

	budget := stratify.AllocateBudget(opts.MaxTokens).Hot
	selected := atlas.Rerank(o.atlasWeights, candidates, opts.QueryContext, budget, atlasDiversityLambda)

	out := make([]stratify.LayeredRecord, 0, len(selected)+len(rest))
	for _, c := range selected {
		out = append(out, stratify.LayeredRecord{Layer: model.LayerHot, MemoryID: c.MemoryID, Content: c.Content})
	}
	return append(out, rest...)
}

// EvaluateRetention runs the retention advisory pass over every stored
// memory record for tenant without building a full layered context.
// It never mutates stored state.
func (o *Orchestrator) EvaluateRetention(ctx context.Context, tenant string) ([]retention.Recommendation, error) {
	cfg := o.tenantConfig(ctx, tenant)
	records, err := o.narrativeSt.Retrieve(ctx, tenant, narrative.RetrieveFilter{})
	if err != nil {
		return nil, fmt.Errorf("retrieve narrative records: %w", err)
	}
	_, signals, _ := o.gatherSignals(ctx, tenant, records)
	return retention.Evaluate(retention.FromModel(cfg.RetentionPolicy.RetentionWeights), retentionThresholds(cfg), signals), nil
}

// RecordUsage increments an AdaptiveMemory's usage counter and refolds the
// observation into its ATLAS importance via an exponential moving average.
func (o *Orchestrator) RecordUsage(ctx context.Context, tenant string, adaptiveID uuid.UUID, now time.Time) error {
	adaptive, err := o.readAdaptive(ctx, tenant, adaptiveID)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	adaptive.UsageCount++
	adaptive.LastAccessTS = now
	adaptive.Importance = atlas.UpdateImportanceFromUsage(adaptive.Importance, atlas.Usage(adaptive.UsageCount))
	adaptive.UpdatedAt = now
	if err := o.writeAdaptive(ctx, tenant, adaptive); err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// Compress is the imperative endpoint that acts on a retention "compress"
// recommendation: it groups the adaptive memory's record by its surprise
// bucket, runs it through the Hierarchical Compressor, and persists the
// resulting summary alongside a compression level that advances by at least
// one tier from whatever the memory was already at, capped at L4 (a memory
// already at L4 stays at L4).
func (o *Orchestrator) Compress(ctx context.Context, tenant string, adaptiveID uuid.UUID, now time.Time) error {
	adaptive, err := o.readAdaptive(ctx, tenant, adaptiveID)
	if err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	rec, err := o.narrativeSt.Get(ctx, tenant, adaptive.CoreMemoryID)
	if err != nil {
		return fmt.Errorf("compress: read memory record: %w", err)
	}

	summaries, err := compress.CreateHierarchicalSummary(ctx, o.summariser, tenant, []compress.Scored{
		{Record: rec, Surprise: adaptive.SurpriseScore},
	})
	if err != nil {
		return fmt.Errorf("compress: summarize: %w", err)
	}

	level := compress.LevelForSurprise(adaptive.SurpriseScore)
	if int(level) <= adaptive.CompressionLevel {
		level = compress.Level(adaptive.CompressionLevel + 1)
		if level > compress.L4 {
			level = compress.L4
		}
	}
	adaptive.CompressionLevel = int(level)
	for _, hs := range summaries {
		if hs.Level != compress.L0 && hs.Summary != "" {
			summary := hs.Summary
			adaptive.CompressedPayload = &summary
		}
	}
	adaptive.UpdatedAt = now

	if err := o.writeAdaptive(ctx, tenant, adaptive); err != nil {
		return fmt.Errorf("compress: %w", err)
	}
	if o.auditor != nil {
		_ = o.auditor.Emit(ctx, audit.Event{
			Tenant: tenant, Action: "memory_compressed",
			Data:      map[string]any{"adaptive_id": adaptiveID.String(), "compression_level": adaptive.CompressionLevel},
			Component: "orchestrator", Timestamp: now,
		})
	}
	return nil
}

// Promote is the imperative endpoint that acts on a retention "promote"
// recommendation: it restores full fidelity (clearing any compressed
// payload and resetting compression level to L0) and raises importance to
// at least the tenant's promotion threshold. Retention scoring reads
// surprise, recency and usage but not importance or compression level, so
// the next evaluation pass can still return a recommendation for it.
func (o *Orchestrator) Promote(ctx context.Context, tenant string, adaptiveID uuid.UUID, now time.Time) error {
	adaptive, err := o.readAdaptive(ctx, tenant, adaptiveID)
	if err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	cfg := o.tenantConfig(ctx, tenant)

	adaptive.CompressionLevel = int(compress.L0)
	adaptive.CompressedPayload = nil
	if adaptive.Importance < cfg.RetentionPolicy.PromotionThreshold {
		adaptive.Importance = cfg.RetentionPolicy.PromotionThreshold
	}
	adaptive.UpdatedAt = now

	if err := o.writeAdaptive(ctx, tenant, adaptive); err != nil {
		return fmt.Errorf("promote: %w", err)
	}
	if o.auditor != nil {
		_ = o.auditor.Emit(ctx, audit.Event{
			Tenant: tenant, Action: "memory_promoted",
			Data:      map[string]any{"adaptive_id": adaptiveID.String(), "importance": adaptive.Importance},
			Component: "orchestrator", Timestamp: now,
		})
	}
	return nil
}

// readAdaptive reads a single AdaptiveMemory by id, distinct from
// readAdaptiveForMemory which looks one up by its source MemoryRecord id.
func (o *Orchestrator) readAdaptive(ctx context.Context, tenant string, adaptiveID uuid.UUID) (model.AdaptiveMemory, error) {
	v, ok, err := o.driver.Read(ctx, storage.AdaptiveMemoryKey(tenant, adaptiveID.String()))
	if err != nil {
		return model.AdaptiveMemory{}, fmt.Errorf("%w: %v", apperr.ErrStorageUnavailable, err)
	}
	if !ok {
		return model.AdaptiveMemory{}, fmt.Errorf("%w: adaptive memory %s", apperr.ErrNotFound, adaptiveID)
	}
	return decodeAdaptive(v), nil
}

func (o *Orchestrator) writeAdaptive(ctx context.Context, tenant string, adaptive model.AdaptiveMemory) error {
	return o.driver.Write(ctx, storage.AdaptiveMemoryKey(tenant, adaptive.ID.String()), encodeAdaptive(adaptive), storage.Meta{Tenant: tenant, Type: "adaptive_memory"})
}

func retentionThresholds(cfg model.TenantConfig) retention.Thresholds {
	return retention.Thresholds{CompressBelow: cfg.RetentionPolicy.CompressionThreshold, PromoteAbove: cfg.RetentionPolicy.PromotionThreshold}
}

func (o *Orchestrator) gatherSignals(ctx context.Context, tenant string, records []model.MemoryRecord) ([]uuid.UUID, []retention.Signals, map[compress.Level]int) {
	var highSurprise []uuid.UUID
	var signals []retention.Signals
	stats := map[compress.Level]int{}
	for _, r := range records {
		adaptive, ok, err := o.readAdaptiveForMemory(ctx, tenant, r.ID)
		if err != nil || !ok {
			continue
		}
		stats[compress.LevelForSurprise(adaptive.SurpriseScore)]++
		if adaptive.SurpriseScore >= 0.7 {
			highSurprise = append(highSurprise, r.ID)
		}
		signals = append(signals, retention.Signals{
			MemoryID: r.ID.String(), Surprise: adaptive.SurpriseScore,
			Recency: atlas.Recency(time.Since(r.CreatedAt).Hours() / 24), Usage: atlas.Usage(adaptive.UsageCount),
		})
	}
	return highSurprise, signals, stats
}

// layerSummaries reads the latest stored summary for each layer present
// among records, keyed by storage.LayerSummaryKey. Absent layers are simply
// omitted, and stratify.BuildContext falls back to a record sample for them.
func (o *Orchestrator) layerSummaries(ctx context.Context, tenant string, records []model.MemoryRecord) map[model.Layer]string {
	now := time.Now()
	layers := map[model.Layer]bool{}
	for _, r := range records {
		layers[stratify.Classify(r.CreatedAt, now)] = true
	}
	out := map[model.Layer]string{}
	for layer := range layers {
		v, ok, err := o.driver.Read(ctx, storage.LayerSummaryKey(tenant, string(layer)))
		if err != nil || !ok {
			continue
		}
		if content, ok := v["content"].(string); ok {
			out[layer] = content
		}
	}
	return out
}

// RunSummarizationJob performs the work queued when the Temporal Stratifier
// trips a layer's summarisation trigger: it gathers every record for
// (tenant, agent) currently classified into layer, summarises them as one
// chunk, stores the result as that layer's latest summary, and clears the
// stratifier's pending marker so future triggers can fire again.
func (o *Orchestrator) RunSummarizationJob(ctx context.Context, tenant, agent string, layer model.Layer, now time.Time) error {
	records, err := o.narrativeSt.Retrieve(ctx, tenant, narrative.RetrieveFilter{Agent: agent})
	if err != nil {
		return fmt.Errorf("retrieve records for summarization: %w", err)
	}
	var toSummarize []model.MemoryRecord
	for _, r := range records {
		if stratify.Classify(r.CreatedAt, now) == layer {
			toSummarize = append(toSummarize, r)
		}
	}
	if len(toSummarize) == 0 {
		return o.stratifier.MarkSummarized(ctx, tenant, agent, layer, now)
	}

	result, err := o.summariser.Summarize(ctx, tenant, summariseLevelFor(layer), toSummarize, summarise.Options{})
	if err != nil {
		return fmt.Errorf("summarize layer %s: %w", layer, err)
	}
	if err := o.driver.Write(ctx, storage.LayerSummaryKey(tenant, string(layer)), map[string]any{
		"content": result.Summary, "created_at": now.Format(time.RFC3339Nano),
	}, storage.Meta{Tenant: tenant, Type: "layer_summary"}); err != nil {
		return fmt.Errorf("write layer summary: %w", err)
	}
	return o.stratifier.MarkSummarized(ctx, tenant, agent, layer, now)
}

// summariseLevelFor maps a temporal layer to the summarise.Level passed to
// the Summariser: warm is L1, cold L2, frozen (and anything else) L3, so the
// colder the layer, the larger that level's chunk size. RunSummarizationJob
// summarises a layer's records as a single chunk; it does not split them
// with summarise.Chunk.
func summariseLevelFor(layer model.Layer) summarise.Level {
	switch layer {
	case model.LayerWarm:
		return summarise.L1
	case model.LayerCold:
		return summarise.L2
	default:
		return summarise.L3
	}
}

// readAdaptiveForMemory is a best-effort lookup; the AdaptiveMemory id isn't
// known from the MemoryRecord alone, so callers needing guaranteed lookups
// should index by CoreMemoryID at write time. It scans the tenant's
// adaptive_memory key prefix with a core_memory_id filter and returns the
// first match.
func (o *Orchestrator) readAdaptiveForMemory(ctx context.Context, tenant string, memoryID uuid.UUID) (model.AdaptiveMemory, bool, error) {
	rows, err := o.driver.Query(ctx, storage.Query{Pattern: fmt.Sprintf("adaptive_memory:%s:", tenant), Filters: map[string]any{"core_memory_id": memoryID.String()}})
	if err != nil || len(rows) == 0 {
		return model.AdaptiveMemory{}, false, err
	}
	return decodeAdaptive(rows[0]), true, nil
}

func encodeAdaptive(a model.AdaptiveMemory) map[string]any {
	beliefIDs := make([]string, len(a.BeliefIDs))
	for i, id := range a.BeliefIDs {
		beliefIDs[i] = id.String()
	}
	v := map[string]any{
		"id": a.ID.String(), "tenant": a.Tenant, "agent": a.Agent, "core_memory_id": a.CoreMemoryID.String(),
		"belief_ids": beliefIDs, "surprise_score": a.SurpriseScore, "layer": string(a.Layer),
		"importance": a.Importance, "usage_count": a.UsageCount, "compression_level": a.CompressionLevel,
		"last_access_ts": a.LastAccessTS.Format(time.RFC3339Nano),
		"created_at":     a.CreatedAt.Format(time.RFC3339Nano), "updated_at": a.UpdatedAt.Format(time.RFC3339Nano),
	}
	if a.CompressedPayload != nil {
		v["compressed_payload"] = *a.CompressedPayload
	}
	return v
}

func decodeAdaptive(v map[string]any) model.AdaptiveMemory {
	var a model.AdaptiveMemory
	if s, ok := v["id"].(string); ok {
		a.ID, _ = uuid.Parse(s)
	}
	a.Tenant, _ = v["tenant"].(string)
	a.Agent, _ = v["agent"].(string)
	if s, ok := v["core_memory_id"].(string); ok {
		a.CoreMemoryID, _ = uuid.Parse(s)
	}
	if f, ok := v["surprise_score"].(float64); ok {
		a.SurpriseScore = f
	}
	if s, ok := v["layer"].(string); ok {
		a.Layer = model.Layer(s)
	}
	if f, ok := v["importance"].(float64); ok {
		a.Importance = f
	}
	a.UsageCount = toInt(v["usage_count"])
	a.CompressionLevel = toInt(v["compression_level"])
	if s, ok := v["compressed_payload"].(string); ok {
		a.CompressedPayload = &s
	}
	if s, ok := v["last_access_ts"].(string); ok {
		a.LastAccessTS, _ = time.Parse(time.RFC3339Nano, s)
	}
	if s, ok := v["created_at"].(string); ok {
		a.CreatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	if s, ok := v["updated_at"].(string); ok {
		a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	return a
}

// toInt normalises either a native int (MemDriver, which stores Go values
// as-is) or a float64 (PGDriver, which round-trips values through JSON).
func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}
