// Package contradiction implements the Contradiction Index (C9):
// AI-preferred, heuristic-fallback pairwise contradiction detection with a
// deterministic, order-independent id.
package contradiction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

var negationCue = regexp.MustCompile(`(?i)\b(not|never|no|false|incorrect)\b`)

// Index records and queries contradiction pairs.
type Index struct {
	driver   *storage.EmulatingDriver
	provider aiprovider.Provider
}

// New constructs an Index over driver, preferring provider for classification
// and falling back to the negation-cue heuristic on error or a null verdict.
func New(driver storage.Driver, provider aiprovider.Provider) *Index {
	if provider == nil {
		provider = aiprovider.Noop{}
	}
	return &Index{driver: storage.Wrap(driver), provider: provider}
}

// ID computes the order-independent, idempotent contradiction id for a pair
// of belief ids.
func ID(a, b uuid.UUID) string {
	ids := []string{a.String(), b.String()}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(ids[0] + "|" + ids[1]))
	return hex.EncodeToString(sum[:])
}

// AreContradictory prefers the AI provider's true|false|null verdict; on
// null or error, it falls back to the negation-cue
// heuristic. Returns the verdict plus whether the AI provider was actually
// used (for audit/metrics purposes).
func (idx *Index) AreContradictory(ctx context.Context, claimA, claimB string) (contradictory bool, viaAI bool) {
	verdict, err := idx.provider.DetectContradiction(ctx, claimA, claimB)
	if err == nil && verdict != nil {
		return *verdict, true
	}
	return heuristicContradiction(claimA, claimB), false
}

// heuristicContradiction flags a pair as contradictory when exactly one claim
// carries a negation cue and the other does not.
func heuristicContradiction(a, b string) bool {
	return negationCue.MatchString(a) != negationCue.MatchString(b)
}

// Record indexes a contradiction idempotently: a second call for the same
// pair (regardless of argument order) is a no-op, satisfying I3.
func (idx *Index) Record(ctx context.Context, tenant string, beliefA, beliefB uuid.UUID, kind string, now time.Time) (model.Contradiction, error) {
	id := ID(beliefA, beliefB)
	key := storage.ContradictionKey(tenant, id)

	existing, ok, err := idx.driver.Read(ctx, key)
	if err != nil {
		return model.Contradiction{}, fmt.Errorf("%w: read contradiction: %v", apperr.ErrStorageUnavailable, err)
	}
	if ok {
		return decodeContradiction(existing), nil
	}

	ids := []uuid.UUID{beliefA, beliefB}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	c := model.Contradiction{
		ID: id, Tenant: tenant, BeliefA: ids[0], BeliefB: ids[1],
		Type: kind, DiscoveredAt: now, Resolved: false,
	}
	if err := idx.driver.Write(ctx, key, encodeContradiction(c), storage.Meta{Tenant: tenant, Type: "contradiction", Immutable: true}); err != nil {
		return model.Contradiction{}, fmt.Errorf("%w: write contradiction: %v", apperr.ErrStorageUnavailable, err)
	}
	return c, nil
}

// Active returns every unresolved contradiction for the tenant.
func (idx *Index) Active(ctx context.Context, tenant string) ([]model.Contradiction, error) {
	rows, err := idx.driver.Query(ctx, storage.Query{Pattern: fmt.Sprintf("contradictions:%s:", tenant)})
	if err != nil {
		return nil, fmt.Errorf("%w: query contradictions: %v", apperr.ErrStorageUnavailable, err)
	}
	out := make([]model.Contradiction, 0, len(rows))
	for _, row := range rows {
		c := decodeContradiction(row)
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out, nil
}

func encodeContradiction(c model.Contradiction) map[string]any {
	return map[string]any{
		"id": c.ID, "tenant": c.Tenant,
		"belief_a": c.BeliefA.String(), "belief_b": c.BeliefB.String(),
		"type": c.Type, "discovered_at": c.DiscoveredAt.Format(time.RFC3339Nano),
		"resolved": c.Resolved,
	}
}

func decodeContradiction(v map[string]any) model.Contradiction {
	var c model.Contradiction
	c.ID, _ = v["id"].(string)
	c.Tenant, _ = v["tenant"].(string)
	if s, ok := v["belief_a"].(string); ok {
		c.BeliefA, _ = uuid.Parse(s)
	}
	if s, ok := v["belief_b"].(string); ok {
		c.BeliefB, _ = uuid.Parse(s)
	}
	c.Type, _ = v["type"].(string)
	if s, ok := v["discovered_at"].(string); ok {
		c.DiscoveredAt, _ = time.Parse(time.RFC3339Nano, s)
	}
	c.Resolved, _ = v["resolved"].(bool)
	return c
}
