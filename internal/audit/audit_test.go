package audit_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/audit"
	"github.com/ashita-ai/akashi/internal/storage"
)

func TestEmitAssignsMonotonicPerTenantSequence(t *testing.T) {
	ctx := context.Background()
	driver := storage.NewMemDriver()
	e := audit.New(driver)

	require.NoError(t, e.Emit(ctx, audit.Event{Tenant: "acme", Action: "memory_stored", Timestamp: time.Now()}))
	require.NoError(t, e.Emit(ctx, audit.Event{Tenant: "acme", Action: "belief_transitioned", Timestamp: time.Now()}))
	require.NoError(t, e.Emit(ctx, audit.Event{Tenant: "other", Action: "memory_stored", Timestamp: time.Now()}))

	v, ok, err := driver.Read(ctx, storage.AuditKey("acme", 1))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "belief_transitioned", v["action"])
	require.Equal(t, int64(1), v["seq"])

	v, ok, err = driver.Read(ctx, storage.AuditKey("other", 0))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(0), v["seq"])
}

func TestReportJobFailureEmitsAuditEvent(t *testing.T) {
	ctx := context.Background()
	driver := storage.NewMemDriver()
	e := audit.New(driver)
	e.ReportJobFailure(ctx, "acme", uuid.New(), "boom")

	v, ok, err := driver.Read(ctx, storage.AuditKey("acme", 0))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "job_terminal_failure", v["action"])
}

func TestChainedSinkProducesDistinctHashesAcrossEvents(t *testing.T) {
	ctx := context.Background()
	base := audit.New(storage.NewMemDriver())
	sink := audit.NewChainedSink(base)

	ev1 := audit.Event{Tenant: "acme", Action: "memory_stored", Data: map[string]any{"id": "1"}, Timestamp: time.Now()}
	ev2 := audit.Event{Tenant: "acme", Action: "memory_stored", Data: map[string]any{"id": "2"}, Timestamp: time.Now()}

	require.NoError(t, sink.Emit(ctx, ev1))
	hash1 := ev1.Data["_hash"]
	require.NoError(t, sink.Emit(ctx, ev2))
	hash2 := ev2.Data["_hash"]

	require.NotEqual(t, hash1, hash2)
	require.Equal(t, hash1, ev2.Data["_prev_hash"])
}
