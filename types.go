package akashi

import (
	"time"

	"github.com/google/uuid"
)

// MemoryRecord is the public view of a narrative unit (internal/model.MemoryRecord).
// No internal package imports — safe to use from outside the module.
type MemoryRecord struct {
	ID        uuid.UUID
	Tenant    string
	Agent     string
	Type      string
	Content   string
	Metadata  map[string]any
	ParentID  *uuid.UUID
	CreatedAt time.Time
}

// Confidence is a bounded triple, 0 <= min <= mean <= max <= 1.
type Confidence struct {
	Min  float64
	Mean float64
	Max  float64
}

// Claim is one assertion attached to a storeMemory call.
type Claim struct {
	Text       string
	Confidence *Confidence
}

// BeliefState is one of the five lifecycle states a Belief can occupy.
type BeliefState string

const (
	StateHypothesis BeliefState = "hypothesis"
	StateAccepted   BeliefState = "accepted"
	StateContested  BeliefState = "contested"
	StateDeprecated BeliefState = "deprecated"
	StateRejected   BeliefState = "rejected"
)

// Belief is the public view of an epistemic unit (internal/model.Belief).
type Belief struct {
	ID         uuid.UUID
	Tenant     string
	Claim      Claim
	Confidence Confidence
	State      BeliefState
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// StoreResult is returned by storeMemory.
type StoreResult struct {
	MemoryID      uuid.UUID
	AdaptiveID    uuid.UUID
	BeliefIDs     []uuid.UUID
	SurpriseScore float64
	// Degraded lists the steps of the six-step ingestion sequence that did
	// not complete. A non-empty Degraded never means an error was returned —
	// storeMemory always returns the identifiers produced up to the point
	// where it degraded.
	Degraded []string
}

// Contradiction is a detected pairwise conflict between two beliefs.
type Contradiction struct {
	ID           string
	BeliefA      uuid.UUID
	BeliefB      uuid.UUID
	Type         string
	DiscoveredAt time.Time
	Resolved     bool
}

// RetentionAction is the advisory action a retention recommendation carries.
type RetentionAction string

const (
	RetentionCompress RetentionAction = "compress"
	RetentionPromote  RetentionAction = "promote"
)

// RetentionRecommendation is one advisory line from evaluateRetention. It is
// never applied automatically — callers decide whether to act on it.
type RetentionRecommendation struct {
	MemoryID uuid.UUID
	Score    float64
	Action   RetentionAction
}

// ContextResult is the assembled output of buildOptimizedContext.
type ContextResult struct {
	Records              []ContextRecord
	ActiveContradictions []Contradiction
	RetentionAdvice      []RetentionRecommendation
	HighSurprise         []uuid.UUID
}

// ContextRecord is one entry of a buildOptimizedContext result, either a full
// record (hot layer) or a layer-level summary/sample (warm/cold/frozen).
type ContextRecord struct {
	Layer     string
	MemoryID  uuid.UUID
	Content   string
	IsSummary bool
	IsSample  bool
}

// QueryFilter constrains a raw query() call over stored memory records.
type QueryFilter struct {
	Agent     string
	Type      string
	From      time.Time
	To        time.Time
	MaxTokens int
}

// RetentionWeights weight the five factors of the retention score. Must sum
// to 1.0 — configureAdaptive normalises on write.
type RetentionWeights struct {
	Surprise      float64
	Contradiction float64
	Temporal      float64
	Evidence      float64
	Usage         float64
}

// SurpriseWeights weight the five components of the surprise score.
type SurpriseWeights struct {
	Novelty         float64
	Contradiction   float64
	Evidence        float64
	ConfidenceShift float64
	Disagreement    float64
}

// TenantPolicy is the caller-configurable adaptive-layer policy for one
// tenant, set via configureAdaptive.
type TenantPolicy struct {
	PromotionThreshold   float64
	CompressionThreshold float64
	CompressionAgeDays   float64
	RetentionWeights     RetentionWeights
	SurpriseWeights      SurpriseWeights
}

// ClaimInput is one claim attached to a storeMemory call, optionally compared
// against peer beliefs from other agents to score agent disagreement.
type ClaimInput struct {
	Claim       Claim
	PeerBeliefs []Belief
}

// StoreMemoryInput is the payload for storeMemory.
type StoreMemoryInput struct {
	Type     string
	Content  string
	Metadata map[string]any
	ParentID *uuid.UUID
	Claims   []ClaimInput
	Evidence float64

	// IdempotencyKey, when set, makes a repeated call with the same key
	// return the original StoreResult instead of ingesting again.
	IdempotencyKey string
}

// SurpriseSignal is an optional externally-computed surprise signal a caller
// may supply instead of (or as a ceiling alongside) the internal computation.
type SurpriseSignal struct {
	Magnitude float64
	Momentum  float64
}

// Metrics is a point-in-time read of the in-process counters maintained
// alongside the OTel instrumentation.
type Metrics struct {
	MemoriesStored     int64
	BeliefsCreated     int64
	FSMTransitions     map[string]int64
	JobsSucceeded      int64
	JobsFailed         int64
	SurpriseHistogram  map[string]int64 // bucketed as "0.0-0.2", "0.2-0.4", ...
}
