package summarise_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
	"github.com/ashita-ai/akashi/internal/summarise"
)

func uuidFixed(n byte) uuid.UUID {
	var id uuid.UUID
	id[0] = n
	return id
}

type fakeProvider struct {
	aiprovider.Noop
	calls int
}

func (f *fakeProvider) Summarize(ctx context.Context, content string, opts aiprovider.SummarizeOptions) (string, error) {
	f.calls++
	return "summary of: " + content, nil
}

func TestChunkGroupsByOrderedWindow(t *testing.T) {
	now := time.Now()
	var records []model.MemoryRecord
	for i := 0; i < 32; i++ {
		records = append(records, model.MemoryRecord{Content: "x", CreatedAt: now.Add(time.Duration(i) * time.Minute)})
	}
	chunks := summarise.Chunk(records, summarise.L1)
	require.Len(t, chunks, 3) // 15 + 15 + 2
	require.Len(t, chunks[0], 15)
	require.Len(t, chunks[2], 2)
}

func TestSummarizeIsIdempotentOverSameMembers(t *testing.T) {
	ctx := context.Background()
	provider := &fakeProvider{}
	s := summarise.New(storage.NewMemDriver(), provider)

	records := []model.MemoryRecord{{ID: uuidFixed(1), Content: "a"}, {ID: uuidFixed(2), Content: "b"}}

	r1, err := s.Summarize(ctx, "acme", summarise.L1, records, summarise.Options{})
	require.NoError(t, err)
	r2, err := s.Summarize(ctx, "acme", summarise.L1, records, summarise.Options{})
	require.NoError(t, err)

	require.Equal(t, r1.Summary, r2.Summary)
	require.Equal(t, 1, provider.calls, "second call should hit cache, not the provider")
}
