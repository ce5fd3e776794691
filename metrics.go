package akashi

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/metric"

	"github.com/ashita-ai/akashi/internal/telemetry"
)

// metricsRegistry holds the in-process counters getMetrics reads, mirrored
// into OTel instruments so the same numbers are visible to both the public
// API and whatever OTEL_EXPORTER_OTLP_ENDPOINT is configured.
type metricsRegistry struct {
	mu                sync.Mutex
	memoriesStored    int64
	beliefsCreated    int64
	fsmTransitions    map[string]int64
	jobsSucceeded     int64
	jobsFailed        int64
	surpriseHistogram map[string]int64

	memoriesStoredCounter metric.Int64Counter
	beliefsCreatedCounter metric.Int64Counter
	fsmTransitionsCounter metric.Int64Counter
	jobsSucceededCounter  metric.Int64Counter
	jobsFailedCounter     metric.Int64Counter
}

func newMetricsRegistry() *metricsRegistry {
	meter := telemetry.Meter("akashi")
	m := &metricsRegistry{
		fsmTransitions:    map[string]int64{},
		surpriseHistogram: map[string]int64{},
	}
	m.memoriesStoredCounter, _ = meter.Int64Counter("akashi.memories_stored")
	m.beliefsCreatedCounter, _ = meter.Int64Counter("akashi.beliefs_created")
	m.fsmTransitionsCounter, _ = meter.Int64Counter("akashi.fsm_transitions")
	m.jobsSucceededCounter, _ = meter.Int64Counter("akashi.jobs_succeeded")
	m.jobsFailedCounter, _ = meter.Int64Counter("akashi.jobs_failed")
	return m
}

func (m *metricsRegistry) recordMemoryStored(ctx context.Context) {
	m.mu.Lock()
	m.memoriesStored++
	m.mu.Unlock()
	if m.memoriesStoredCounter != nil {
		m.memoriesStoredCounter.Add(ctx, 1)
	}
}

func (m *metricsRegistry) recordBeliefsCreated(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	m.mu.Lock()
	m.beliefsCreated += int64(n)
	m.mu.Unlock()
	if m.beliefsCreatedCounter != nil {
		m.beliefsCreatedCounter.Add(ctx, int64(n))
	}
}

func (m *metricsRegistry) recordFSMTransition(ctx context.Context, to string) {
	m.mu.Lock()
	m.fsmTransitions[to]++
	m.mu.Unlock()
	if m.fsmTransitionsCounter != nil {
		m.fsmTransitionsCounter.Add(ctx, 1, metric.WithAttributes())
	}
}

func (m *metricsRegistry) recordJobOutcome(ctx context.Context, succeeded bool) {
	m.mu.Lock()
	if succeeded {
		m.jobsSucceeded++
	} else {
		m.jobsFailed++
	}
	m.mu.Unlock()
	counter := m.jobsFailedCounter
	if succeeded {
		counter = m.jobsSucceededCounter
	}
	if counter != nil {
		counter.Add(ctx, 1)
	}
}

func (m *metricsRegistry) recordSurprise(score float64) {
	bucket := surpriseBucket(score)
	m.mu.Lock()
	m.surpriseHistogram[bucket]++
	m.mu.Unlock()
}

func surpriseBucket(score float64) string {
	switch {
	case score < 0.2:
		return "0.0-0.2"
	case score < 0.4:
		return "0.2-0.4"
	case score < 0.6:
		return "0.4-0.6"
	case score < 0.8:
		return "0.6-0.8"
	default:
		return "0.8-1.0"
	}
}

func (m *metricsRegistry) snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	fsm := make(map[string]int64, len(m.fsmTransitions))
	for k, v := range m.fsmTransitions {
		fsm[k] = v
	}
	hist := make(map[string]int64, len(m.surpriseHistogram))
	for k, v := range m.surpriseHistogram {
		hist[k] = v
	}
	return Metrics{
		MemoriesStored:    m.memoriesStored,
		BeliefsCreated:    m.beliefsCreated,
		FSMTransitions:    fsm,
		JobsSucceeded:     m.jobsSucceeded,
		JobsFailed:        m.jobsFailed,
		SurpriseHistogram: hist,
	}
}
