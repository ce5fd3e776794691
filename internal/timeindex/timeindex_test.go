package timeindex_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/timeindex"
)

func TestBucket(t *testing.T) {
	require.Equal(t, int64(0), timeindex.Bucket(0))
	require.Equal(t, int64(1), timeindex.Bucket(86400))
	require.Equal(t, int64(1), timeindex.Bucket(86400+100))
}

func TestQueryUnionsBucketsAndFilters(t *testing.T) {
	idx := timeindex.New()
	idx.Add(timeindex.Entry{Key: "a", Timestamp: 10})
	idx.Add(timeindex.Entry{Key: "b", Timestamp: 86400 + 10})
	idx.Add(timeindex.Entry{Key: "c", Timestamp: 2*86400 + 10})

	results := idx.Query(0, 86400+20)
	require.Len(t, results, 2)
	require.Equal(t, "a", results[0].Key)
	require.Equal(t, "b", results[1].Key)
}

func TestQuerySortedAscending(t *testing.T) {
	idx := timeindex.New()
	idx.Add(timeindex.Entry{Key: "later", Timestamp: 500})
	idx.Add(timeindex.Entry{Key: "earlier", Timestamp: 100})

	results := idx.Query(0, 1000)
	require.Len(t, results, 2)
	require.Equal(t, "earlier", results[0].Key)
	require.Equal(t, "later", results[1].Key)
}
