package orchestrator_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/audit"
	"github.com/ashita-ai/akashi/internal/contradiction"
	"github.com/ashita-ai/akashi/internal/epistemic"
	"github.com/ashita-ai/akashi/internal/jobs"
	"github.com/ashita-ai/akashi/internal/mdl"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/orchestrator"
	"github.com/ashita-ai/akashi/internal/storage"
	"github.com/ashita-ai/akashi/internal/stratify"
	"github.com/ashita-ai/akashi/internal/summarise"
)

// cancelAfterN is a context.Context that reports itself cancelled starting
// from the Nth call to Err(), simulating cancellation landing between two
// steps of a single synchronous call.
type cancelAfterN struct {
	context.Context
	calls        atomic.Int32
	allowedCalls int32
}

func (c *cancelAfterN) Err() error {
	n := c.calls.Add(1)
	if n > c.allowedCalls {
		return context.Canceled
	}
	return nil
}

func newCancelAfterN(n int32) *cancelAfterN {
	return &cancelAfterN{Context: context.Background(), allowedCalls: n}
}

func newOrchestrator(driver storage.Driver) *orchestrator.Orchestrator {
	return newOrchestratorWithProvider(driver, aiprovider.Noop{})
}

func newOrchestratorWithProvider(driver storage.Driver, provider aiprovider.Provider) *orchestrator.Orchestrator {
	contradictSt := contradiction.New(driver, provider)
	summariser := summarise.New(driver, provider)
	auditor := audit.New(driver)
	dispatcher := jobs.New(driver, auditor)
	cfg := model.DefaultTenantConfig("acme")
	return orchestrator.New(driver, contradictSt, summariser, dispatcher, auditor, provider, cfg)
}

// scoringProvider answers ScoreEpistemicConfidence with a fixed value and
// fails every other call the same way aiprovider.Noop does.
type scoringProvider struct {
	aiprovider.Noop
	confidence model.Confidence
}

func (p scoringProvider) ScoreEpistemicConfidence(ctx context.Context, claim, claimCtx string) (model.Confidence, error) {
	return p.confidence, nil
}

func TestStoreMemoryHappyPath(t *testing.T) {
	ctx := context.Background()
	driver := storage.NewMemDriver()
	o := newOrchestrator(driver)

	res, err := o.StoreMemory(ctx, "acme", "agent-1", orchestrator.IngestInput{
		Type: "observation", Content: "the build is green",
		Claims: []orchestrator.IngestClaim{{Claim: model.Claim{Text: "the build is green"}}},
	}, nil, time.Now())

	require.NoError(t, err)
	require.NotEqual(t, res.MemoryID.String(), "")
	require.Len(t, res.BeliefIDs, 1)
	require.Empty(t, res.Degraded)
	require.GreaterOrEqual(t, res.SurpriseScore, 0.0)
	require.LessOrEqual(t, res.SurpriseScore, 1.0)
}

func TestS6CancellationAfterMemoryAppendDegradesBeliefRecording(t *testing.T) {
	driver := storage.NewMemDriver()
	o := newOrchestrator(driver)

	// Allows exactly two ctx.Err() checks to pass (the tenant-config read, then
	// the MemoryRecord write), then reports cancelled from the very next check
	// onward — matching S6's "cancel after MemoryRecord is appended but before
	// belief is recorded".
	ctx := newCancelAfterN(2)

	res, err := o.StoreMemory(ctx, "acme", "agent-1", orchestrator.IngestInput{
		Type: "observation", Content: "cancelled mid-flight",
		Claims: []orchestrator.IngestClaim{{Claim: model.Claim{Text: "cancelled mid-flight"}}},
	}, nil, time.Now())

	require.NoError(t, err)
	require.NotEqual(t, res.MemoryID.String(), "")
	require.Empty(t, res.BeliefIDs)
	require.Contains(t, res.Degraded, "belief_recording_cancelled")
}

func TestStoreMemoryRejectsEmptyContent(t *testing.T) {
	driver := storage.NewMemDriver()
	o := newOrchestrator(driver)

	_, err := o.StoreMemory(context.Background(), "acme", "agent-1", orchestrator.IngestInput{}, nil, time.Now())
	require.Error(t, err)
}

func TestBuildContextReturnsLayeredRecords(t *testing.T) {
	ctx := context.Background()
	driver := storage.NewMemDriver()
	o := newOrchestrator(driver)

	_, err := o.StoreMemory(ctx, "acme", "agent-1", orchestrator.IngestInput{
		Type: "observation", Content: "first memory",
	}, nil, time.Now())
	require.NoError(t, err)

	built, err := o.BuildContext(ctx, "acme", orchestrator.ContextOptions{MaxTokens: 500})
	require.NoError(t, err)
	require.NotEmpty(t, built.Records)
}

func TestStoreMemoryFallsBackToProviderScoredConfidence(t *testing.T) {
	ctx := context.Background()
	driver := storage.NewMemDriver()
	provider := scoringProvider{confidence: model.Confidence{Min: 0.6, Mean: 0.8, Max: 0.95}}
	o := newOrchestratorWithProvider(driver, provider)

	res, err := o.StoreMemory(ctx, "acme", "agent-1", orchestrator.IngestInput{
		Type: "observation", Content: "unattributed claim",
		Claims: []orchestrator.IngestClaim{{Claim: model.Claim{Text: "unattributed claim"}}},
	}, nil, time.Now())

	require.NoError(t, err)
	require.Len(t, res.BeliefIDs, 1)
	require.Empty(t, res.Degraded)

	belief, err := epistemic.New(driver).Get(ctx, "acme", res.BeliefIDs[0])
	require.NoError(t, err)
	require.InDelta(t, 0.8, belief.Confidence.Mean, 1e-9)
}

func TestCompressAndPromoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	driver := storage.NewMemDriver()
	o := newOrchestrator(driver)

	res, err := o.StoreMemory(ctx, "acme", "agent-1", orchestrator.IngestInput{
		Type: "observation", Content: "a low-surprise routine note",
	}, nil, time.Now())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, res.AdaptiveID)

	require.NoError(t, o.Compress(ctx, "acme", res.AdaptiveID, time.Now()))
	require.NoError(t, o.Promote(ctx, "acme", res.AdaptiveID, time.Now()))
}

func TestCompressUnknownAdaptiveIDFails(t *testing.T) {
	driver := storage.NewMemDriver()
	o := newOrchestrator(driver)

	err := o.Compress(context.Background(), "acme", uuid.New(), time.Now())
	require.Error(t, err)
}

func TestPromoteUnknownAdaptiveIDFails(t *testing.T) {
	driver := storage.NewMemDriver()
	o := newOrchestrator(driver)

	err := o.Promote(context.Background(), "acme", uuid.New(), time.Now())
	require.Error(t, err)
}

func TestBuildContextRerankHonoursHotBudget(t *testing.T) {
	ctx := context.Background()
	driver := storage.NewMemDriver()
	o := newOrchestrator(driver)
	now := time.Now()

	for i := 0; i < 5; i++ {
		_, err := o.StoreMemory(ctx, "acme", "agent-1", orchestrator.IngestInput{
			Type: "observation", Content: "recent observation about the deploy pipeline",
		}, nil, now)
		require.NoError(t, err)
	}

	built, err := o.BuildContext(ctx, "acme", orchestrator.ContextOptions{MaxTokens: 40, QueryContext: "deploy pipeline"})
	require.NoError(t, err)
	require.NotEmpty(t, built.Records)

	var hotTokens int
	for _, r := range built.Records {
		if r.Layer == model.LayerHot {
			hotTokens += mdl.EstimateTokens(r.Content)
		}
	}
	require.LessOrEqual(t, hotTokens, stratify.AllocateBudget(40).Hot)
}
