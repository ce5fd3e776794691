// Package compress implements the Hierarchical Compressor (C13): surprise-
// driven level assignment and grouped summarisation into L0-L4 byte-fraction
// targets.
package compress

import (
	"context"

	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/summarise"
)

// Level names a compression tier. L0 is uncompressed; L4 is maximally compressed.
type Level int

const (
	L0 Level = iota
	L1
	L2
	L3
	L4
)

// ByteFractionTarget is the fraction of original byte size each level targets.
var ByteFractionTarget = map[Level]float64{
	L0: 1.00, L1: 0.70, L2: 0.40, L3: 0.20, L4: 0.10,
}

// LevelForSurprise maps a surprise score to a compression level. High-surprise
// memories stay close to uncompressed; low-surprise memories compress aggressively.
func LevelForSurprise(surprise float64) Level {
	switch {
	case surprise >= 0.7:
		return L0
	case surprise >= 0.5:
		return L1
	case surprise >= 0.3:
		return L2
	case surprise >= 0.1:
		return L3
	default:
		return L4
	}
}

// Scored pairs a memory record with its surprise score, the input shape for grouping.
type Scored struct {
	Record   model.MemoryRecord
	Surprise float64
}

// Group buckets scored records by their assigned compression level.
func Group(records []Scored) map[Level][]model.MemoryRecord {
	groups := map[Level][]model.MemoryRecord{}
	for _, s := range records {
		lvl := LevelForSurprise(s.Surprise)
		groups[lvl] = append(groups[lvl], s.Record)
	}
	return groups
}

// HierarchicalSummary is the compressed representation of one level's group.
type HierarchicalSummary struct {
	Level       Level
	Summary     string
	MemberCount int
	Original    []model.MemoryRecord // retained uncompressed only for L0
}

// toSummariseLevel maps a compression tier to the nearest Summariser chunk level;
// L0 bypasses summarisation entirely (originals are retained verbatim).
func toSummariseLevel(l Level) summarise.Level {
	switch l {
	case L1:
		return summarise.L1
	case L2:
		return summarise.L2
	default:
		return summarise.L3
	}
}

// CreateHierarchicalSummary groups records by level and summarises each group
// at the matching Summariser level; the target ratio the Summariser passes on
// is its MDL ratio for the group's content, not ByteFractionTarget. High-surprise (L0) records retain their
// uncompressed originals rather than being summarised.
func CreateHierarchicalSummary(ctx context.Context, s *summarise.Summariser, tenant string, records []Scored) ([]HierarchicalSummary, error) {
	groups := Group(records)

	var out []HierarchicalSummary
	for lvl, recs := range groups {
		if lvl == L0 {
			out = append(out, HierarchicalSummary{Level: L0, MemberCount: len(recs), Original: recs})
			continue
		}
		res, err := s.Summarize(ctx, tenant, toSummariseLevel(lvl), recs, summarise.Options{})
		if err != nil {
			return nil, err
		}
		out = append(out, HierarchicalSummary{Level: lvl, Summary: res.Summary, MemberCount: len(recs)})
	}
	return out, nil
}
