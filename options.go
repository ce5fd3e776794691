package akashi

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds all extension points after applying defaults.
// Unexported — callers use the With* functions.
type resolvedOptions struct {
	databaseURL       string
	notifyURL         string
	logger            *slog.Logger
	version           string
	storageDriver     StorageDriver
	aiProvider        AIProvider
	auditSink         AuditSink
	clock             Clock
	workerConcurrency int
}

// WithDatabaseURL overrides the database connection string from config (DATABASE_URL env var).
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) { o.databaseURL = url }
}

// WithNotifyURL overrides the direct Postgres URL used for LISTEN/NOTIFY (NOTIFY_URL env var).
// Set this when using a connection pooler for queries — LISTEN/NOTIFY requires
// a direct (non-pooled) connection.
func WithNotifyURL(url string) Option {
	return func(o *resolvedOptions) { o.notifyURL = url }
}

// WithLogger sets the structured logger for the App. If not set, the default
// slog logger is used.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}

// WithStorageDriver replaces the Postgres driver New otherwise connects to.
func WithStorageDriver(d StorageDriver) Option {
	return func(o *resolvedOptions) { o.storageDriver = d }
}

// WithAIProvider replaces the auto-detected noop/Ollama/OpenAI provider. The
// supplied provider backs summarisation and compression; contradiction
// detection and confidence scoring degrade as with the noop provider.
func WithAIProvider(p AIProvider) Option {
	return func(o *resolvedOptions) { o.aiProvider = p }
}

// WithAuditSink replaces the built-in hash-chained in-memory audit sink.
func WithAuditSink(s AuditSink) Option {
	return func(o *resolvedOptions) { o.auditSink = s }
}

// WithClock replaces the wall-clock used to timestamp every write. Intended
// for deterministic tests driving the public API.
func WithClock(c Clock) Option {
	return func(o *resolvedOptions) { o.clock = c }
}

// WithWorkerConcurrency overrides the background job worker pool size from
// config (AKASHI_WORKER_CONCURRENCY env var).
func WithWorkerConcurrency(n int) Option {
	return func(o *resolvedOptions) { o.workerConcurrency = n }
}
