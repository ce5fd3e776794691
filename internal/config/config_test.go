package config

import (
	"testing"
	"time"
)

func TestEnvIntValid(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	v, err := envInt("TEST_INT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 42 {
		t.Fatalf("expected 42, got %d", v)
	}
}

func TestEnvIntFallback(t *testing.T) {
	v, err := envInt("TEST_INT_MISSING", 99)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 99 {
		t.Fatalf("expected fallback 99, got %d", v)
	}
}

func TestEnvIntInvalid(t *testing.T) {
	t.Setenv("TEST_INT_BAD", "abc")
	_, err := envInt("TEST_INT_BAD", 0)
	if err == nil {
		t.Fatal("expected error for non-integer value, got nil")
	}
	if got := err.Error(); got != `TEST_INT_BAD="abc" is not a valid integer` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvBoolValid(t *testing.T) {
	t.Setenv("TEST_BOOL", "true")
	v, err := envBool("TEST_BOOL", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !v {
		t.Fatal("expected true")
	}
}

func TestEnvBoolInvalid(t *testing.T) {
	t.Setenv("TEST_BOOL_BAD", "maybe")
	_, err := envBool("TEST_BOOL_BAD", false)
	if err == nil {
		t.Fatal("expected error for non-boolean value, got nil")
	}
	if got := err.Error(); got != `TEST_BOOL_BAD="maybe" is not a valid boolean` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvDurationValid(t *testing.T) {
	t.Setenv("TEST_DUR", "5s")
	v, err := envDuration("TEST_DUR", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v.Seconds() != 5 {
		t.Fatalf("expected 5s, got %s", v)
	}
}

func TestEnvDurationInvalid(t *testing.T) {
	t.Setenv("TEST_DUR_BAD", "five-seconds")
	_, err := envDuration("TEST_DUR_BAD", 0)
	if err == nil {
		t.Fatal("expected error for invalid duration, got nil")
	}
	if got := err.Error(); got != `TEST_DUR_BAD="five-seconds" is not a valid duration` {
		t.Fatalf("unexpected error message: %s", got)
	}
}

func TestEnvFloatValid(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.42")
	v, err := envFloat("TEST_FLOAT", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != 0.42 {
		t.Fatalf("expected 0.42, got %f", v)
	}
}

func TestLoadFailsOnInvalidWorkerConcurrency(t *testing.T) {
	t.Setenv("AKASHI_WORKER_CONCURRENCY", "abc")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with invalid AKASHI_WORKER_CONCURRENCY")
	}
	if got := err.Error(); !contains(got, "AKASHI_WORKER_CONCURRENCY") || !contains(got, "abc") {
		t.Fatalf("error should mention AKASHI_WORKER_CONCURRENCY and value 'abc', got: %s", got)
	}
}

func TestLoadFailsOnMultipleInvalid(t *testing.T) {
	t.Setenv("AKASHI_WORKER_CONCURRENCY", "abc")
	t.Setenv("AKASHI_EVENT_BUFFER_SIZE", "xyz")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail with multiple invalid vars")
	}
	got := err.Error()
	if !contains(got, "AKASHI_WORKER_CONCURRENCY") {
		t.Fatalf("error should mention AKASHI_WORKER_CONCURRENCY, got: %s", got)
	}
	if !contains(got, "AKASHI_EVENT_BUFFER_SIZE") {
		t.Fatalf("error should mention AKASHI_EVENT_BUFFER_SIZE, got: %s", got)
	}
}

func TestLoadSucceedsWithDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed with defaults, got: %v", err)
	}
	if cfg.AIProvider != "noop" {
		t.Fatalf("expected default AIProvider noop, got %q", cfg.AIProvider)
	}
	if cfg.WorkerConcurrency != 4 {
		t.Fatalf("expected default WorkerConcurrency 4, got %d", cfg.WorkerConcurrency)
	}
}

func TestLoadFailsWhenOpenAIProviderMissingKey(t *testing.T) {
	t.Setenv("AKASHI_AI_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail when openai provider has no API key")
	}
	if !contains(err.Error(), "OPENAI_API_KEY") {
		t.Fatalf("error should mention OPENAI_API_KEY, got: %s", err.Error())
	}
}

func TestLoadFailsOnUnknownAIProvider(t *testing.T) {
	t.Setenv("AKASHI_AI_PROVIDER", "anthropic")
	_, err := Load()
	if err == nil {
		t.Fatal("expected Load() to fail for an unrecognised AI provider")
	}
}

func TestLoad_OTELEndpointParsing(t *testing.T) {
	endpoint := "https://otel.example.com:4317"
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", endpoint)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}
	if cfg.OTELEndpoint != endpoint {
		t.Fatalf("expected OTELEndpoint %q, got %q", endpoint, cfg.OTELEndpoint)
	}
}

func TestLoad_AllEnvVarsHonored(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/testdb")
	t.Setenv("NOTIFY_URL", "postgres://test:test@db:5432/testdb_notify")
	t.Setenv("AKASHI_WORKER_CONCURRENCY", "8")
	t.Setenv("AKASHI_WORKER_POLL_INTERVAL", "500ms")
	t.Setenv("OTEL_SERVICE_NAME", "akashi-test")
	t.Setenv("AKASHI_LOG_LEVEL", "debug")
	t.Setenv("AKASHI_DEFAULT_PROMOTION_THRESHOLD", "0.8")
	t.Setenv("AKASHI_DEFAULT_COMPRESSION_THRESHOLD", "0.3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("expected Load() to succeed, got: %v", err)
	}

	if cfg.DatabaseURL != "postgres://test:test@db:5432/testdb" {
		t.Fatalf("expected DatabaseURL %q, got %q", "postgres://test:test@db:5432/testdb", cfg.DatabaseURL)
	}
	if cfg.NotifyURL != "postgres://test:test@db:5432/testdb_notify" {
		t.Fatalf("expected NotifyURL %q, got %q", "postgres://test:test@db:5432/testdb_notify", cfg.NotifyURL)
	}
	if cfg.WorkerConcurrency != 8 {
		t.Fatalf("expected WorkerConcurrency 8, got %d", cfg.WorkerConcurrency)
	}
	if cfg.WorkerPollInterval != 500*time.Millisecond {
		t.Fatalf("expected WorkerPollInterval 500ms, got %s", cfg.WorkerPollInterval)
	}
	if cfg.ServiceName != "akashi-test" {
		t.Fatalf("expected ServiceName %q, got %q", "akashi-test", cfg.ServiceName)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected LogLevel %q, got %q", "debug", cfg.LogLevel)
	}
	if cfg.DefaultPromotionThreshold != 0.8 {
		t.Fatalf("expected DefaultPromotionThreshold 0.8, got %f", cfg.DefaultPromotionThreshold)
	}
	if cfg.DefaultCompressionThreshold != 0.3 {
		t.Fatalf("expected DefaultCompressionThreshold 0.3, got %f", cfg.DefaultCompressionThreshold)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && searchSubstring(s, substr)
}

func searchSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
