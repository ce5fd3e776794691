package compress_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/compress"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
	"github.com/ashita-ai/akashi/internal/summarise"
)

type fakeProvider struct {
	aiprovider.Noop
}

func (fakeProvider) Summarize(ctx context.Context, content string, opts aiprovider.SummarizeOptions) (string, error) {
	return "compressed", nil
}

func TestLevelForSurpriseBoundaries(t *testing.T) {
	require.Equal(t, compress.L0, compress.LevelForSurprise(0.9))
	require.Equal(t, compress.L1, compress.LevelForSurprise(0.5))
	require.Equal(t, compress.L2, compress.LevelForSurprise(0.3))
	require.Equal(t, compress.L3, compress.LevelForSurprise(0.1))
	require.Equal(t, compress.L4, compress.LevelForSurprise(0.0))
}

func TestCreateHierarchicalSummaryRetainsL0Originals(t *testing.T) {
	ctx := context.Background()
	s := summarise.New(storage.NewMemDriver(), fakeProvider{})

	scored := []compress.Scored{
		{Record: model.MemoryRecord{Content: "high surprise event"}, Surprise: 0.95},
		{Record: model.MemoryRecord{Content: "routine update"}, Surprise: 0.05},
	}

	summaries, err := compress.CreateHierarchicalSummary(ctx, s, "acme", scored)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	var sawL0, sawL4 bool
	for _, hs := range summaries {
		if hs.Level == compress.L0 {
			sawL0 = true
			require.Len(t, hs.Original, 1)
			require.Equal(t, "high surprise event", hs.Original[0].Content)
		}
		if hs.Level == compress.L4 {
			sawL4 = true
			require.Equal(t, "compressed", hs.Summary)
		}
	}
	require.True(t, sawL0)
	require.True(t, sawL4)
}
