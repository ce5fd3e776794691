package epistemic_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/epistemic"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

func TestS1CreateAndTransition(t *testing.T) {
	ctx := context.Background()
	store := epistemic.New(storage.NewMemDriver())
	now := time.Now()

	claim := model.Claim{Text: "Pattern X contradicts theory Y"}
	conf := model.Confidence{Min: 0.8, Mean: 0.9, Max: 0.95}
	b, err := store.Create(ctx, "acme", claim, conf, model.Provenance{Source: "ingest", MemoryID: uuid.New(), Agent: "agent-1"}, now)
	require.NoError(t, err)
	require.Equal(t, model.StateHypothesis, b.State)
	require.Equal(t, 1, b.Version)

	accepted, err := store.Transition(ctx, "acme", b.ID, model.StateAccepted, "peer reviewed", now.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, model.StateAccepted, accepted.State)
	require.Equal(t, 2, accepted.Version)

	versions, err := store.Versions(ctx, "acme", b.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	require.Equal(t, model.StateHypothesis, versions[1].PreviousState)
	require.Equal(t, model.StateAccepted, versions[1].NewState)

	_, err = store.Transition(ctx, "acme", b.ID, model.StateHypothesis, "bad", now.Add(2*time.Minute))
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	// I7: failed transition leaves version count unchanged.
	unchanged, err := store.Get(ctx, "acme", b.ID)
	require.NoError(t, err)
	require.Equal(t, 2, unchanged.Version)
}

func TestTransitionAppendsLifecycle(t *testing.T) {
	ctx := context.Background()
	store := epistemic.New(storage.NewMemDriver())
	now := time.Now()

	b, err := store.Create(ctx, "acme", model.Claim{Text: "x"}, model.Confidence{Min: 0.3, Mean: 0.5, Max: 0.7}, model.Provenance{MemoryID: uuid.New()}, now)
	require.NoError(t, err)

	// A belief's lifecycle record is empty until its first Transition —
	// Create alone writes no lifecycle entry.
	empty, err := store.Lifecycle(ctx, "acme", b.ID)
	require.NoError(t, err)
	require.Empty(t, empty)

	_, err = store.Transition(ctx, "acme", b.ID, model.StateAccepted, "peer reviewed", now.Add(time.Minute))
	require.NoError(t, err)
	_, err = store.Transition(ctx, "acme", b.ID, model.StateContested, "new evidence", now.Add(2*time.Minute))
	require.NoError(t, err)

	history, err := store.Lifecycle(ctx, "acme", b.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, model.StateHypothesis, history[0].PreviousState)
	require.Equal(t, model.StateAccepted, history[0].NewState)
	require.Equal(t, "peer reviewed", history[0].Reason)
	require.Equal(t, model.StateAccepted, history[1].PreviousState)
	require.Equal(t, model.StateContested, history[1].NewState)
}

func TestSnapshotAt(t *testing.T) {
	ctx := context.Background()
	store := epistemic.New(storage.NewMemDriver())
	t0 := time.Now()

	b, err := store.Create(ctx, "acme", model.Claim{Text: "x"}, model.Confidence{Min: 0.3, Mean: 0.5, Max: 0.7}, model.Provenance{MemoryID: uuid.New()}, t0)
	require.NoError(t, err)

	t1 := t0.Add(time.Hour)
	_, err = store.Transition(ctx, "acme", b.ID, model.StateAccepted, "r", t1)
	require.NoError(t, err)

	snap, err := store.SnapshotAt(ctx, "acme", b.ID, t0.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, model.StateHypothesis, snap.State)

	snap2, err := store.SnapshotAt(ctx, "acme", b.ID, t1.Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, model.StateAccepted, snap2.State)
}
