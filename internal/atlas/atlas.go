// Package atlas implements the ATLAS Priority scorer (C12): per-memory
// importance scoring, diversity-aware reranking under a token budget, and
// usage-driven importance updates.
package atlas

import (
	"math"
	"sort"
	"strings"

	"github.com/ashita-ai/akashi/internal/mdl"
)

// Weights are the importance formula coefficients, summing to 1.0 by convention.
type Weights struct {
	Relevance, Recency, Surprise, Usage, ContextFit float64
}

// DefaultWeights returns the default importance-formula coefficients.
func DefaultWeights() Weights {
	return Weights{Relevance: 0.30, Recency: 0.20, Surprise: 0.25, Usage: 0.15, ContextFit: 0.10}
}

// HalfLifeDays controls the recency decay rate: recency = 2^(-age_days/halfLife).
const HalfLifeDays = 3.0

// usageSaturationK is the usage count at which the usage component saturates to 1.
const usageSaturationK = 20.0

// Candidate is a memory record plus the raw signals needed to score it.
type Candidate struct {
	MemoryID    string
	Content     string
	AgeDays     float64
	Surprise    float64
	UsageCount  int
	Importance  float64 // prior importance, updated via EMA on usage
}

// Recency computes 2^(-age_days/half_life).
func Recency(ageDays float64) float64 {
	return math.Pow(2, -ageDays/HalfLifeDays)
}

// Usage computes min(1, usage_count/K).
func Usage(usageCount int) float64 {
	u := float64(usageCount) / usageSaturationK
	if u > 1 {
		return 1
	}
	return u
}

// Relevance is a token-overlap score between content and a query context,
// a deliberate fallback to avoid requiring an embedding engine.
func Relevance(content, queryContext string) float64 {
	if queryContext == "" {
		return 0
	}
	contentTokens := tokenSet(content)
	queryTokens := tokenSet(queryContext)
	if len(queryTokens) == 0 {
		return 0
	}
	var overlap int
	for t := range queryTokens {
		if _, ok := contentTokens[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / float64(len(queryTokens))
}

func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	for _, w := range strings.Fields(strings.ToLower(s)) {
		out[w] = struct{}{}
	}
	return out
}

// Importance computes I = α·relevance + β·recency + γ·surprise + δ·usage + ε·context_fit.
// contextFit is a caller-supplied [0,1] score (e.g. topical match to the active session);
// callers with no context-fit signal should pass 0.
func Importance(w Weights, relevance, recency, surprise, usage, contextFit float64) float64 {
	return w.Relevance*relevance + w.Recency*recency + w.Surprise*surprise + w.Usage*usage + w.ContextFit*contextFit
}

// Score computes full importance for a Candidate given a query context.
func Score(w Weights, c Candidate, queryContext string) float64 {
	return Importance(w, Relevance(c.Content, queryContext), Recency(c.AgeDays), c.Surprise, Usage(c.UsageCount), 0)
}

// etaUsageUpdate is the EMA learning rate for usage-driven importance updates.
const etaUsageUpdate = 0.2

// UpdateImportanceFromUsage applies an EMA update: new = (1-η)·old + η·observed.
func UpdateImportanceFromUsage(prior, observed float64) float64 {
	return (1-etaUsageUpdate)*prior + etaUsageUpdate*observed
}

// Rerank selects candidates under tokenBudget using a greedy MMR-style pass:
// at each step it picks the candidate maximising (1-λ)·importance - λ·maxSimilarityToSelected,
// which trades raw importance against redundancy with what's already chosen.
func Rerank(w Weights, candidates []Candidate, queryContext string, tokenBudget int, lambda float64) []Candidate {
	scored := make([]Candidate, len(candidates))
	copy(scored, candidates)
	sort.Slice(scored, func(i, j int) bool {
		return Score(w, scored[i], queryContext) > Score(w, scored[j], queryContext)
	})

	var selected []Candidate
	var usedTokens int
	for len(scored) > 0 {
		bestIdx := -1
		bestVal := math.Inf(-1)
		for i, cand := range scored {
			importance := Score(w, cand, queryContext)
			similarity := maxSimilarity(cand, selected)
			val := (1-lambda)*importance - lambda*similarity
			if val > bestVal {
				bestVal = val
				bestIdx = i
			}
		}
		cand := scored[bestIdx]
		tokens := mdl.EstimateTokens(cand.Content)
		if usedTokens+tokens > tokenBudget && len(selected) > 0 {
			break
		}
		selected = append(selected, cand)
		usedTokens += tokens
		scored = append(scored[:bestIdx], scored[bestIdx+1:]...)
	}
	return selected
}

// maxSimilarity is a Jaccard token-overlap similarity against the most similar already-selected candidate.
func maxSimilarity(c Candidate, selected []Candidate) float64 {
	var max float64
	cTokens := tokenSet(c.Content)
	for _, s := range selected {
		sTokens := tokenSet(s.Content)
		sim := jaccard(cTokens, sTokens)
		if sim > max {
			max = sim
		}
	}
	return max
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var intersection int
	for t := range a {
		if _, ok := b[t]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
