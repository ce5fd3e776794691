// Package timeindex implements the Time Index (C2): a day-bucketed index
// over timestamps supporting range queries.
package timeindex

import "sort"

const bucketSeconds = 86400

// Bucket returns the day bucket for a unix timestamp: floor(ts / 86400).
func Bucket(unixTS int64) int64 {
	return unixTS / bucketSeconds
}

// Entry is anything the index can order and bucket.
type Entry struct {
	Key       string
	Timestamp int64
}

// Index is a day-bucketed map of entries, built incrementally via Add.
type Index struct {
	buckets map[int64][]Entry
}

// New returns an empty Index.
func New() *Index {
	return &Index{buckets: make(map[int64][]Entry)}
}

// Add inserts an entry into its day bucket.
func (i *Index) Add(e Entry) {
	b := Bucket(e.Timestamp)
	i.buckets[b] = append(i.buckets[b], e)
}

// Query unions every bucket in [floor(from/86400), floor(to/86400)], filters
// entries whose timestamp falls outside [from, to], and returns them sorted
// ascending by timestamp.
func (i *Index) Query(from, to int64) []Entry {
	fromBucket := Bucket(from)
	toBucket := Bucket(to)

	var out []Entry
	for b := fromBucket; b <= toBucket; b++ {
		for _, e := range i.buckets[b] {
			if e.Timestamp >= from && e.Timestamp <= to {
				out = append(out, e)
			}
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Timestamp < out[b].Timestamp })
	return out
}
