package narrative_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/narrative"
	"github.com/ashita-ai/akashi/internal/storage"
)

func TestI1RoundTripContentEquality(t *testing.T) {
	ctx := context.Background()
	store := narrative.New(storage.NewMemDriver())

	rec, err := store.Store(ctx, "acme", narrative.RecordInput{Agent: "a1", Type: "observation", Content: "the sky is blue"}, time.Now())
	require.NoError(t, err)

	got, err := store.Get(ctx, "acme", rec.ID)
	require.NoError(t, err)
	require.Equal(t, "the sky is blue", got.Content)
}

func TestStoreTwiceProducesDistinctIDs(t *testing.T) {
	ctx := context.Background()
	store := narrative.New(storage.NewMemDriver())
	now := time.Now()

	r1, err := store.Store(ctx, "acme", narrative.RecordInput{Agent: "a1", Content: "same"}, now)
	require.NoError(t, err)
	r2, err := store.Store(ctx, "acme", narrative.RecordInput{Agent: "a1", Content: "same"}, now)
	require.NoError(t, err)
	require.NotEqual(t, r1.ID, r2.ID)
}

func TestStoreRejectsMissingContent(t *testing.T) {
	store := narrative.New(storage.NewMemDriver())
	_, err := store.Store(context.Background(), "acme", narrative.RecordInput{Agent: "a1"}, time.Now())
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestRetrieveRangeUsesTimeIndex(t *testing.T) {
	ctx := context.Background()
	store := narrative.New(storage.NewMemDriver())
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	old, err := store.Store(ctx, "acme", narrative.RecordInput{Agent: "a1", Content: "old"}, base)
	require.NoError(t, err)
	_ = old
	mid, err := store.Store(ctx, "acme", narrative.RecordInput{Agent: "a1", Content: "mid"}, base.Add(10*24*time.Hour))
	require.NoError(t, err)
	_, err = store.Store(ctx, "acme", narrative.RecordInput{Agent: "a1", Content: "new"}, base.Add(40*24*time.Hour))
	require.NoError(t, err)

	got, err := store.Retrieve(ctx, "acme", narrative.RetrieveFilter{
		From: base.Add(5 * 24 * time.Hour), To: base.Add(20 * 24 * time.Hour),
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, mid.ID, got[0].ID)
}

func TestLineageWalksParentChain(t *testing.T) {
	ctx := context.Background()
	store := narrative.New(storage.NewMemDriver())
	now := time.Now()

	root, err := store.Store(ctx, "acme", narrative.RecordInput{Agent: "a1", Content: "v1"}, now)
	require.NoError(t, err)
	child, err := store.Store(ctx, "acme", narrative.RecordInput{Agent: "a1", Content: "v2", ParentID: &root.ID}, now.Add(time.Minute))
	require.NoError(t, err)

	chain, err := store.Lineage(ctx, "acme", child.ID)
	require.NoError(t, err)
	require.Len(t, chain, 2)
	require.Equal(t, root.ID, chain[0].ID)
	require.Equal(t, child.ID, chain[1].ID)
}
