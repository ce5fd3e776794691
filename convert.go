package akashi

import (
	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/orchestrator"
	"github.com/ashita-ai/akashi/internal/retention"
	"github.com/ashita-ai/akashi/internal/stratify"
	"github.com/ashita-ai/akashi/internal/surprise"
)

// This file holds the conversions between the public types and their
// internal/model counterparts (adapters.go and akashi.go also import
// internal packages alongside the public types); the import graph enforces a strict
// no-cycle rule: akashi (root) imports internal/*, but internal/* never
// imports akashi (root).

func toModelConfidence(c *Confidence) *model.Confidence {
	if c == nil {
		return nil
	}
	return &model.Confidence{Min: c.Min, Mean: c.Mean, Max: c.Max}
}

func toPublicConfidence(c model.Confidence) Confidence {
	return Confidence{Min: c.Min, Mean: c.Mean, Max: c.Max}
}

func toModelClaim(c Claim) model.Claim {
	return model.Claim{Text: c.Text, Confidence: toModelConfidence(c.Confidence)}
}

func toPublicMemoryRecord(r model.MemoryRecord) MemoryRecord {
	return MemoryRecord{
		ID: r.ID, Tenant: r.Tenant, Agent: r.Agent, Type: r.Type,
		Content: r.Content, Metadata: r.Metadata, ParentID: r.ParentID, CreatedAt: r.CreatedAt,
	}
}

func toPublicBelief(b model.Belief) Belief {
	return Belief{
		ID:     b.ID,
		Tenant: b.Tenant,
		Claim:  Claim{Text: b.Claim.Text, Confidence: nil},
		Confidence: toPublicConfidence(b.Confidence),
		State:      BeliefState(b.State),
		Version:    b.Version,
		CreatedAt:  b.CreatedAt,
		UpdatedAt:  b.UpdatedAt,
	}
}

func toPublicContradiction(c model.Contradiction) Contradiction {
	return Contradiction{
		ID: c.ID, BeliefA: c.BeliefA, BeliefB: c.BeliefB,
		Type: c.Type, DiscoveredAt: c.DiscoveredAt, Resolved: c.Resolved,
	}
}

func toPublicRetentionRecommendation(r retention.Recommendation) RetentionRecommendation {
	action := RetentionCompress
	if r.Action == retention.ActionPromote {
		action = RetentionPromote
	}
	id, _ := uuid.Parse(r.MemoryID)
	return RetentionRecommendation{MemoryID: id, Score: r.Score, Action: action}
}

func toPublicContextRecord(r stratify.LayeredRecord) ContextRecord {
	id, _ := uuid.Parse(r.MemoryID)
	return ContextRecord{
		Layer: string(r.Layer), MemoryID: id, Content: r.Content,
		IsSummary: r.IsSummary, IsSample: r.IsSample,
	}
}

func toPublicContext(c orchestrator.Context) ContextResult {
	records := make([]ContextRecord, len(c.Records))
	for i, r := range c.Records {
		records[i] = toPublicContextRecord(r)
	}
	contradictions := make([]Contradiction, len(c.ActiveContradictions))
	for i, ct := range c.ActiveContradictions {
		contradictions[i] = toPublicContradiction(ct)
	}
	advice := make([]RetentionRecommendation, len(c.RetentionAdvice))
	for i, a := range c.RetentionAdvice {
		advice[i] = toPublicRetentionRecommendation(a)
	}
	return ContextResult{
		Records: records, ActiveContradictions: contradictions,
		RetentionAdvice: advice, HighSurprise: c.HighSurprise,
	}
}

func toPublicStoreResult(r orchestrator.Result) StoreResult {
	return StoreResult{
		MemoryID: r.MemoryID, AdaptiveID: r.AdaptiveID, BeliefIDs: r.BeliefIDs,
		SurpriseScore: r.SurpriseScore, Degraded: r.Degraded,
	}
}

func toModelBelief(b Belief) model.Belief {
	return model.Belief{
		ID: b.ID, Tenant: b.Tenant, Claim: model.Claim{Text: b.Claim.Text},
		Confidence: model.Confidence{Min: b.Confidence.Min, Mean: b.Confidence.Mean, Max: b.Confidence.Max},
		State:      model.BeliefState(b.State),
		Version:    b.Version, CreatedAt: b.CreatedAt, UpdatedAt: b.UpdatedAt,
	}
}

func toOrchestratorIngestInput(in StoreMemoryInput) orchestrator.IngestInput {
	claims := make([]orchestrator.IngestClaim, len(in.Claims))
	for i, c := range in.Claims {
		peers := make([]model.Belief, len(c.PeerBeliefs))
		for j, p := range c.PeerBeliefs {
			peers[j] = toModelBelief(p)
		}
		claims[i] = orchestrator.IngestClaim{Claim: toModelClaim(c.Claim), PeerBeliefs: peers}
	}
	return orchestrator.IngestInput{
		Type: in.Type, Content: in.Content, Metadata: in.Metadata,
		ParentID: in.ParentID, Claims: claims, Evidence: in.Evidence,
		IdempotencyKey: in.IdempotencyKey,
	}
}

func toSurpriseSignal(s *SurpriseSignal) *surprise.Signal {
	if s == nil {
		return nil
	}
	return &surprise.Signal{Magnitude: s.Magnitude, Momentum: s.Momentum}
}

func toModelTenantConfig(tenant string, p TenantPolicy) model.TenantConfig {
	cfg := model.DefaultTenantConfig(tenant)
	cfg.RetentionPolicy.PromotionThreshold = p.PromotionThreshold
	cfg.RetentionPolicy.CompressionThreshold = p.CompressionThreshold
	cfg.RetentionPolicy.CompressionAgeDays = p.CompressionAgeDays
	cfg.RetentionPolicy.RetentionWeights = model.RetentionWeights{
		Surprise: p.RetentionWeights.Surprise, Contradiction: p.RetentionWeights.Contradiction,
		Temporal: p.RetentionWeights.Temporal, Evidence: p.RetentionWeights.Evidence, Usage: p.RetentionWeights.Usage,
	}
	cfg.SurpriseWeights = model.SurpriseWeights{
		Novelty: p.SurpriseWeights.Novelty, Contradiction: p.SurpriseWeights.Contradiction,
		Evidence: p.SurpriseWeights.Evidence, ConfidenceShift: p.SurpriseWeights.ConfidenceShift,
		Disagreement: p.SurpriseWeights.Disagreement,
	}
	return cfg
}
