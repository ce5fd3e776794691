// Package model holds the data types shared across the memory substrate's
// components: narrative records, claims, beliefs, contradictions, the
// adaptive projection, tenant configuration, and background jobs.
package model

import (
	"time"

	"github.com/google/uuid"
)

// MemoryRecord is an immutable narrative unit written by the Narrative Store (C4).
// Once written it is never mutated; a superseding write carries ParentID and
// remains reachable through the lineage chain.
type MemoryRecord struct {
	ID        uuid.UUID      `json:"id"`
	Tenant    string         `json:"tenant"`
	Agent     string         `json:"agent"`
	Type      string         `json:"type"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ParentID  *uuid.UUID     `json:"parent_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Confidence is a bounded triple, 0 <= min <= mean <= max <= 1.
type Confidence struct {
	Min  float64 `json:"min"`
	Mean float64 `json:"mean"`
	Max  float64 `json:"max"`
}

// DefaultConfidence is used when the AI provider fails to score a claim.
func DefaultConfidence() Confidence {
	return Confidence{Min: 0.3, Mean: 0.5, Max: 0.7}
}

// Claim is embedded in an ingest payload; it is never stored as its own
// top-level entity, only as the seed of a Belief.
type Claim struct {
	Text       string      `json:"text"`
	Confidence *Confidence `json:"confidence,omitempty"`
}

// BeliefState is one of the five FSM states (C7).
type BeliefState string

const (
	StateHypothesis BeliefState = "hypothesis"
	StateAccepted   BeliefState = "accepted"
	StateContested  BeliefState = "contested"
	StateDeprecated BeliefState = "deprecated"
	StateRejected   BeliefState = "rejected"
)

// Provenance records where a belief's claim came from.
type Provenance struct {
	Source   string    `json:"source"`
	MemoryID uuid.UUID `json:"memory_id"`
	Agent    string    `json:"agent"`
}

// Belief is the epistemic unit tracked by the Epistemic Store (C10).
// Version equals the number of BeliefVersion records written for it.
type Belief struct {
	ID         uuid.UUID   `json:"id"`
	Tenant     string      `json:"tenant"`
	Claim      Claim       `json:"claim"`
	Confidence Confidence  `json:"confidence"`
	State      BeliefState `json:"state"`
	Provenance Provenance  `json:"provenance"`
	Version    int         `json:"version"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// BeliefVersion is an immutable append-only snapshot written on every
// lifecycle transition.
type BeliefVersion struct {
	VersionID        uuid.UUID   `json:"version_id"`
	BeliefID         uuid.UUID   `json:"belief_id"`
	Tenant           string      `json:"tenant"`
	PreviousState    BeliefState `json:"previous_state"`
	NewState         BeliefState `json:"new_state"`
	TransitionReason string      `json:"transition_reason"`
	Confidence       Confidence  `json:"confidence"`
	CreatedAt        time.Time   `json:"created_at"`
}

// LifecycleTransition is one entry of a belief's lifecycle record, appended
// by the Epistemic Store on every successful Transition.
type LifecycleTransition struct {
	BeliefID      uuid.UUID   `json:"belief_id"`
	Tenant        string      `json:"tenant"`
	PreviousState BeliefState `json:"previous_state"`
	NewState      BeliefState `json:"new_state"`
	Reason        string      `json:"reason"`
	At            time.Time   `json:"at"`
}

// ConfidencePoint is an immutable member of a belief's confidence-point series.
type ConfidencePoint struct {
	BeliefID   uuid.UUID  `json:"belief_id"`
	Tenant     string     `json:"tenant"`
	Confidence Confidence `json:"confidence"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Contradiction is a per-pair contradiction record. ID is the order-independent
// hash of the two belief ids, so indexing is idempotent regardless of argument order.
type Contradiction struct {
	ID           string    `json:"id"`
	Tenant       string    `json:"tenant"`
	BeliefA      uuid.UUID `json:"belief_a"`
	BeliefB      uuid.UUID `json:"belief_b"`
	Type         string    `json:"type"`
	DiscoveredAt time.Time `json:"discovered_at"`
	Resolved     bool      `json:"resolved"`
}

// Layer is the age-derived classification computed by the Temporal Stratifier (C5).
type Layer string

const (
	LayerHot    Layer = "hot"
	LayerWarm   Layer = "warm"
	LayerCold   Layer = "cold"
	LayerFrozen Layer = "frozen"
)

// SurpriseComponents are the five weighted inputs to the Surprise Scorer (C11).
type SurpriseComponents struct {
	Novelty          float64 `json:"novelty"`
	Contradiction    float64 `json:"contradiction"`
	Evidence         float64 `json:"evidence"`
	ConfidenceShift  float64 `json:"confidence_shift"`
	Disagreement     float64 `json:"disagreement"`
}

// AdaptiveMemory is the surprise-annotated projection of a MemoryRecord,
// maintained by the adaptive layer (C11-C14) and tied together by the
// Orchestrator (C15).
type AdaptiveMemory struct {
	ID                uuid.UUID          `json:"id"`
	Tenant            string             `json:"tenant"`
	Agent             string             `json:"agent"`
	CoreMemoryID      uuid.UUID          `json:"core_memory_id"`
	BeliefIDs         []uuid.UUID        `json:"belief_ids"`
	SurpriseScore     float64            `json:"surprise_score"`
	SurpriseComponents SurpriseComponents `json:"surprise_components"`
	Layer             Layer              `json:"layer"`
	Importance        float64            `json:"importance"`
	UsageCount        int                `json:"usage_count"`
	LastAccessTS      time.Time          `json:"last_access_ts"`
	CompressionLevel  int                `json:"compression_level"`
	CompressedPayload *string            `json:"compressed_payload,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}

// RetentionWeights weight the five factors of the retention score (C14).
// Must sum to 1.0; TenantConfig normalises on write.
type RetentionWeights struct {
	Surprise      float64 `json:"surprise"`
	Contradiction float64 `json:"contradiction"`
	Temporal      float64 `json:"temporal"`
	Evidence      float64 `json:"evidence"`
	Usage         float64 `json:"usage"`
}

// SurpriseWeights weight the five components of the surprise score (C11).
type SurpriseWeights struct {
	Novelty         float64 `json:"novelty"`
	Contradiction   float64 `json:"contradiction"`
	Evidence        float64 `json:"evidence"`
	ConfidenceShift float64 `json:"confidence_shift"`
	Disagreement    float64 `json:"disagreement"`
}

// DefaultSurpriseWeights are the default component weights for the surprise score.
func DefaultSurpriseWeights() SurpriseWeights {
	return SurpriseWeights{Novelty: 0.35, Contradiction: 0.25, Evidence: 0.15, ConfidenceShift: 0.15, Disagreement: 0.10}
}

// RetentionPolicy bundles the retention scoring weights and thresholds (C14).
type RetentionPolicy struct {
	Name                 string            `json:"name"`
	RetentionWeights      RetentionWeights  `json:"retention_weights"`
	PromotionThreshold    float64           `json:"promotion_threshold"`
	CompressionThreshold  float64           `json:"compression_threshold"`
	CompressionAgeDays    float64           `json:"compression_age_days"`
	DecayRate             float64           `json:"decay_rate"`
	TemporalHalfLifeDays  float64           `json:"temporal_half_life_days"`
}

// DefaultRetentionPolicy provides sane defaults for a tenant that never
// configured one explicitly.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{
		Name: "default",
		RetentionWeights: RetentionWeights{
			Surprise: 0.35, Contradiction: 0.2, Temporal: 0.2, Evidence: 0.15, Usage: 0.1,
		},
		PromotionThreshold:   0.7,
		CompressionThreshold: 0.35,
		CompressionAgeDays:   30,
		DecayRate:            0.1,
		TemporalHalfLifeDays: 14,
	}
}

// TenantConfig is per-tenant configuration for the adaptive layer.
type TenantConfig struct {
	Tenant              string          `json:"tenant"`
	RetentionPolicy     RetentionPolicy `json:"retention_policy"`
	SurpriseWeights     SurpriseWeights `json:"surprise_weights"`
	CompressionStrategy string          `json:"compression_strategy"`
}

// DefaultTenantConfig returns the configuration a tenant gets before it ever
// calls configureAdaptive.
func DefaultTenantConfig(tenant string) TenantConfig {
	return TenantConfig{
		Tenant:              tenant,
		RetentionPolicy:     DefaultRetentionPolicy(),
		SurpriseWeights:     DefaultSurpriseWeights(),
		CompressionStrategy: "hierarchical",
	}
}

// JobType enumerates background job kinds dispatched by C16.
type JobType string

const (
	JobSummarization       JobType = "summarization"
	JobRetentionEvaluation JobType = "retention_evaluation"
)

// JobStatus is the lifecycle of a dispatched Job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobFailed  JobStatus = "failed"
)

// Job is a unit of background work processed by the Job Dispatcher & Worker (C16).
type Job struct {
	ID        uuid.UUID `json:"id"`
	Type      JobType   `json:"type"`
	Tenant    string    `json:"tenant"`
	Agent     string    `json:"agent,omitempty"`
	Layer     Layer     `json:"layer,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Status    JobStatus `json:"status"`
	Attempts  int       `json:"attempts"`
}
