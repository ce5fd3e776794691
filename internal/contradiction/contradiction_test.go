package contradiction_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/contradiction"
	"github.com/ashita-ai/akashi/internal/storage"
)

func TestIDOrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	require.Equal(t, contradiction.ID(a, b), contradiction.ID(b, a))
}

func TestAreContradictoryHeuristicFallback(t *testing.T) {
	idx := contradiction.New(storage.NewMemDriver(), aiprovider.Noop{})
	contradictory, viaAI := idx.AreContradictory(context.Background(), "The market will grow", "The market will not grow")
	require.True(t, contradictory)
	require.False(t, viaAI)
}

func TestS3RecordIsIdempotentRegardlessOfOrder(t *testing.T) {
	idx := contradiction.New(storage.NewMemDriver(), aiprovider.Noop{})
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()
	now := time.Now()

	c1, err := idx.Record(ctx, "acme", a, b, "claim_negation", now)
	require.NoError(t, err)
	c2, err := idx.Record(ctx, "acme", b, a, "claim_negation", now)
	require.NoError(t, err)
	require.Equal(t, c1.ID, c2.ID)

	active, err := idx.Active(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, active, 1)
}
