// Package akashi implements an epistemic memory substrate: an append-only
// narrative log, a belief lifecycle with optimistic-concurrency versioning,
// surprise-driven importance scoring, and an adaptive layer that compresses
// and retains memories according to per-tenant policy.
//
// The import graph enforces a strict no-cycle rule: akashi (root) imports
// internal/*, but internal/* never imports akashi (root). Public types are
// standalone structs with no internal imports; conversion helpers between
// them and the internal types live in convert.go, and the widening adapters
// for caller-supplied extension points live in adapters.go.
package akashi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ashita-ai/akashi/internal/aiprovider"
	"github.com/ashita-ai/akashi/internal/audit"
	"github.com/ashita-ai/akashi/internal/config"
	"github.com/ashita-ai/akashi/internal/confidence"
	"github.com/ashita-ai/akashi/internal/contradiction"
	"github.com/ashita-ai/akashi/internal/epistemic"
	"github.com/ashita-ai/akashi/internal/jobs"
	"github.com/ashita-ai/akashi/internal/model"
	"github.com/ashita-ai/akashi/internal/narrative"
	"github.com/ashita-ai/akashi/internal/orchestrator"
	"github.com/ashita-ai/akashi/internal/storage"
	"github.com/ashita-ai/akashi/internal/summarise"
	"github.com/ashita-ai/akashi/internal/telemetry"
)

// App is the wired memory substrate: one storage driver, one AI provider,
// and the full component graph behind the public surface below.
type App struct {
	cfg     config.Config
	logger  *slog.Logger
	version string
	clock   Clock

	driver       storage.Driver
	auditEmitter *audit.Emitter
	narrativeSt  *narrative.Store
	epistemicSt  *epistemic.Store
	confidenceTr *confidence.Tracker
	dispatcher   *jobs.Dispatcher
	orchestrator *orchestrator.Orchestrator
	metrics      *metricsRegistry

	otelShutdown telemetry.Shutdown

	workerConcurrency int
	workerPoll        time.Duration
	runCancel         context.CancelFunc
	workerDone        chan error
}

// New constructs an App. Configuration is loaded from the environment first
// (DATABASE_URL, AKASHI_AI_PROVIDER, etc.); options override individual
// fields without requiring the caller to set environment variables, which
// matters most for tests driving the public API directly.
func New(opts ...Option) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("akashi: load config: %w", err)
	}

	ro := resolvedOptions{workerConcurrency: cfg.WorkerConcurrency}
	for _, opt := range opts {
		opt(&ro)
	}

	logger := ro.logger
	if logger == nil {
		logger = slog.Default()
	}
	version := ro.version
	if version == "" {
		version = "dev"
	}
	clock := ro.clock
	if clock == nil {
		clock = systemClock{}
	}

	var driver storage.Driver
	if ro.storageDriver != nil {
		driver = storageAdapter{ro.storageDriver}
	} else {
		databaseURL := ro.databaseURL
		if databaseURL == "" {
			databaseURL = cfg.DatabaseURL
		}
		notifyURL := ro.notifyURL
		if notifyURL == "" {
			notifyURL = cfg.NotifyURL
		}
		pg, err := storage.NewPGDriver(context.Background(), databaseURL, notifyURL, logger)
		if err != nil {
			return nil, fmt.Errorf("akashi: connect storage: %w", err)
		}
		if err := pg.Migrate(context.Background()); err != nil {
			return nil, fmt.Errorf("akashi: migrate storage: %w", err)
		}
		driver = pg
	}

	var aiProvider aiprovider.Provider
	if ro.aiProvider != nil {
		aiProvider = aiProviderAdapter{ro.aiProvider}
	} else {
		switch cfg.AIProvider {
		case "ollama":
			aiProvider = aiprovider.NewOllama(cfg.OllamaURL, cfg.ChatModel)
		case "openai":
			aiProvider = aiprovider.NewOpenAI(cfg.OpenAIAPIKey, cfg.ChatModel)
		default:
			aiProvider = aiprovider.Noop{}
		}
	}

	auditEmitter := audit.New(driver)
	var auditor orchestrator.Auditor = audit.NewChainedSink(auditEmitter)
	if ro.auditSink != nil {
		auditor = auditSinkAdapter{ro.auditSink}
	}

	contradictSt := contradiction.New(driver, aiProvider)
	summariser := summarise.New(driver, aiProvider)
	dispatcher := jobs.New(driver, auditEmitter)

	defaultCfg := model.DefaultTenantConfig("")
	defaultCfg.RetentionPolicy.PromotionThreshold = cfg.DefaultPromotionThreshold
	defaultCfg.RetentionPolicy.CompressionThreshold = cfg.DefaultCompressionThreshold

	orch := orchestrator.New(driver, contradictSt, summariser, dispatcher, auditor, aiProvider, defaultCfg)

	otelShutdown, err := telemetry.Init(context.Background(), cfg.OTELEndpoint, cfg.ServiceName, version, cfg.OTELInsecure)
	if err != nil {
		return nil, fmt.Errorf("akashi: init telemetry: %w", err)
	}

	workerConcurrency := ro.workerConcurrency
	if workerConcurrency <= 0 {
		workerConcurrency = cfg.WorkerConcurrency
	}

	return &App{
		cfg: cfg, logger: logger, version: version, clock: clock,
		driver: driver, auditEmitter: auditEmitter,
		narrativeSt: narrative.New(driver), epistemicSt: epistemic.New(driver),
		confidenceTr: confidence.New(driver),
		dispatcher:   dispatcher, orchestrator: orch, metrics: newMetricsRegistry(),
		otelShutdown:      otelShutdown,
		workerConcurrency: workerConcurrency, workerPoll: cfg.WorkerPollInterval,
	}, nil
}

// Run starts the background job worker pool (the summarisation jobs queued
// by StoreMemory; handleJob also runs retention-evaluation jobs, which no
// call in this package queues) and blocks until ctx is cancelled or a worker
// returns a non-nil error.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	a.runCancel = cancel
	a.workerDone = make(chan error, 1)

	go func() {
		a.workerDone <- jobs.RunWorkers(ctx, a.dispatcher, a.workerConcurrency, a.workerPoll, a.handleJob)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-a.workerDone:
		return err
	}
}

// Shutdown stops the worker pool and flushes telemetry. It is safe to call
// even if Run was never started.
func (a *App) Shutdown(ctx context.Context) error {
	if a.runCancel != nil {
		a.runCancel()
		select {
		case <-a.workerDone:
		case <-ctx.Done():
		}
	}
	if a.otelShutdown != nil {
		return a.otelShutdown(ctx)
	}
	return nil
}

// handleJob executes one dispatched job according to its type.
func (a *App) handleJob(ctx context.Context, job model.Job) error {
	now := a.clock.Now()
	var err error
	switch job.Type {
	case model.JobSummarization:
		err = a.orchestrator.RunSummarizationJob(ctx, job.Tenant, job.Agent, job.Layer, now)
	case model.JobRetentionEvaluation:
		_, err = a.orchestrator.EvaluateRetention(ctx, job.Tenant)
	default:
		err = fmt.Errorf("akashi: unknown job type %q", job.Type)
	}
	a.metrics.recordJobOutcome(ctx, err == nil)
	return err
}

// StoreMemory runs the ingestion sequence (validate, append, record beliefs,
// score surprise, project adaptive state, trigger layer checks, audit) as a
// single logical unit.
func (a *App) StoreMemory(ctx context.Context, tenant, agent string, in StoreMemoryInput, signal *SurpriseSignal) (StoreResult, error) {
	now := a.clock.Now()
	result, err := a.orchestrator.StoreMemory(ctx, tenant, agent, toOrchestratorIngestInput(in), toSurpriseSignal(signal), now)
	if err != nil {
		return StoreResult{}, err
	}
	a.metrics.recordMemoryStored(ctx)
	a.metrics.recordBeliefsCreated(ctx, len(result.BeliefIDs))
	a.metrics.recordSurprise(result.SurpriseScore)
	return toPublicStoreResult(result), nil
}

// BuildOptimizedContext assembles a token-budgeted, layer-aware context for
// tenant: hot-layer records verbatim, warm/cold/frozen summaries or samples,
// active contradictions, retention advisory, and a high-surprise callout.
func (a *App) BuildOptimizedContext(ctx context.Context, tenant, agent string, maxTokens int, queryContext string) (ContextResult, error) {
	c, err := a.orchestrator.BuildContext(ctx, tenant, orchestrator.ContextOptions{
		MaxTokens: maxTokens, QueryContext: queryContext, Agent: agent,
	})
	if err != nil {
		return ContextResult{}, err
	}
	return toPublicContext(c), nil
}

// Query runs a raw, filtered read over tenant's stored memory records,
// respecting f.MaxTokens as a budget on the returned set.
func (a *App) Query(ctx context.Context, tenant string, f QueryFilter) ([]MemoryRecord, error) {
	records, err := a.narrativeSt.Retrieve(ctx, tenant, narrative.RetrieveFilter{
		Agent: f.Agent, Type: f.Type, From: f.From, To: f.To, MaxTokens: f.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	out := make([]MemoryRecord, len(records))
	for i, r := range records {
		out[i] = toPublicMemoryRecord(r)
	}
	return out, nil
}

// UpdateBelief validates and applies a belief lifecycle transition.
func (a *App) UpdateBelief(ctx context.Context, tenant string, beliefID uuid.UUID, to BeliefState, reason string) (Belief, error) {
	now := a.clock.Now()
	b, err := a.epistemicSt.Transition(ctx, tenant, beliefID, model.BeliefState(to), reason, now)
	if err != nil {
		return Belief{}, err
	}
	_ = a.confidenceTr.Record(ctx, tenant, beliefID, b.Confidence, now)
	a.metrics.recordFSMTransition(ctx, string(to))
	return toPublicBelief(b), nil
}

// Compress imperatively acts on a retention "compress" recommendation,
// running the memory through the Hierarchical Compressor and advancing its
// compression level. The retention evaluator only ever recommends this.
func (a *App) Compress(ctx context.Context, tenant string, adaptiveID uuid.UUID) error {
	return a.orchestrator.Compress(ctx, tenant, adaptiveID, a.clock.Now())
}

// Promote imperatively acts on a retention "promote" recommendation,
// restoring full fidelity and raising importance to at least the tenant's
// promotion threshold. The retention evaluator only ever recommends this.
func (a *App) Promote(ctx context.Context, tenant string, adaptiveID uuid.UUID) error {
	return a.orchestrator.Promote(ctx, tenant, adaptiveID, a.clock.Now())
}

// RecordMemoryUsage increments an AdaptiveMemory's usage counter and refolds
// the observation into its importance score.
func (a *App) RecordMemoryUsage(ctx context.Context, tenant string, adaptiveID uuid.UUID) error {
	return a.orchestrator.RecordUsage(ctx, tenant, adaptiveID, a.clock.Now())
}

// EvaluateRetention runs the retention advisory pass over every stored
// memory record for tenant. It never mutates stored state — callers decide
// whether to act on a recommendation.
func (a *App) EvaluateRetention(ctx context.Context, tenant string) ([]RetentionRecommendation, error) {
	recs, err := a.orchestrator.EvaluateRetention(ctx, tenant)
	if err != nil {
		return nil, err
	}
	out := make([]RetentionRecommendation, len(recs))
	for i, r := range recs {
		out[i] = toPublicRetentionRecommendation(r)
	}
	return out, nil
}

// ConfigureAdaptive stores tenant-specific retention and surprise weighting,
// applied to every subsequent call for that tenant until overwritten.
func (a *App) ConfigureAdaptive(ctx context.Context, tenant string, policy TenantPolicy) error {
	return a.orchestrator.ConfigureAdaptive(ctx, tenant, toModelTenantConfig(tenant, policy))
}

// GetMetrics returns a point-in-time read of the in-process counters.
func (a *App) GetMetrics(ctx context.Context) Metrics {
	return a.metrics.snapshot()
}

// GetMemoryLineage walks the parent_id chain from id back to its root.
func (a *App) GetMemoryLineage(ctx context.Context, tenant string, id uuid.UUID) ([]MemoryRecord, error) {
	records, err := a.narrativeSt.Lineage(ctx, tenant, id)
	if err != nil {
		return nil, err
	}
	out := make([]MemoryRecord, len(records))
	for i, r := range records {
		out[i] = toPublicMemoryRecord(r)
	}
	return out, nil
}
