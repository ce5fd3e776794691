// Package confidence implements the Confidence Tracker (C8): an append-only
// confidence-point series per belief, with simple drift analysis.
package confidence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/storage"
)

// Tracker appends ConfidencePoint records and reads back a belief's series.
type Tracker struct {
	driver *storage.EmulatingDriver
}

// New constructs a Tracker over the given driver.
func New(driver storage.Driver) *Tracker {
	return &Tracker{driver: storage.Wrap(driver)}
}

// Record appends an immutable confidence point; the key embeds the timestamp
// so points are naturally ordered.
func (t *Tracker) Record(ctx context.Context, tenant string, beliefID uuid.UUID, c model.Confidence, ts time.Time) error {
	key := storage.ConfidenceKey(tenant, beliefID.String(), ts.Unix())
	value := map[string]any{
		"belief_id": beliefID.String(),
		"tenant":    tenant,
		"confidence": map[string]any{
			"min": c.Min, "mean": c.Mean, "max": c.Max,
		},
		"timestamp": ts.Format(time.RFC3339Nano),
	}
	if err := t.driver.Write(ctx, key, value, storage.Meta{Tenant: tenant, Type: "confidence_point", Immutable: true}); err != nil {
		return fmt.Errorf("%w: record confidence point: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// Series returns every confidence point recorded for a belief, ascending by time.
func (t *Tracker) Series(ctx context.Context, tenant string, beliefID uuid.UUID) ([]model.ConfidencePoint, error) {
	prefix := storage.ConfidencePrefix(tenant, beliefID.String())
	rows, err := t.driver.Query(ctx, storage.Query{Pattern: prefix})
	if err != nil {
		return nil, fmt.Errorf("%w: query confidence series: %v", apperr.ErrStorageUnavailable, err)
	}
	points := make([]model.ConfidencePoint, 0, len(rows))
	for _, row := range rows {
		p, err := decodePoint(row)
		if err != nil {
			continue
		}
		points = append(points, p)
	}
	return points, nil
}

// Drift returns the change in mean confidence between the first and last
// recorded point: last.mean - first.mean. Returns 0 when fewer than two
// points exist.
func (t *Tracker) Drift(ctx context.Context, tenant string, beliefID uuid.UUID) (float64, error) {
	series, err := t.Series(ctx, tenant, beliefID)
	if err != nil {
		return 0, err
	}
	if len(series) < 2 {
		return 0, nil
	}
	return series[len(series)-1].Confidence.Mean - series[0].Confidence.Mean, nil
}

func decodePoint(row map[string]any) (model.ConfidencePoint, error) {
	var p model.ConfidencePoint
	beliefIDRaw, _ := row["belief_id"].(string)
	id, err := uuid.Parse(beliefIDRaw)
	if err != nil {
		return p, err
	}
	p.BeliefID = id
	p.Tenant, _ = row["tenant"].(string)

	confRaw, _ := row["confidence"].(map[string]any)
	p.Confidence = model.Confidence{
		Min:  toFloat(confRaw["min"]),
		Mean: toFloat(confRaw["mean"]),
		Max:  toFloat(confRaw["max"]),
	}

	tsRaw, _ := row["timestamp"].(string)
	ts, err := time.Parse(time.RFC3339Nano, tsRaw)
	if err != nil {
		return p, err
	}
	p.Timestamp = ts
	return p, nil
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}
