package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/akashi/internal/apperr"
	"github.com/ashita-ai/akashi/internal/storage"
)

func TestMemDriverWriteRead(t *testing.T) {
	ctx := context.Background()
	d := storage.NewMemDriver()

	err := d.Write(ctx, "mindscape:acme:memory:1", map[string]any{"content": "hello"}, storage.Meta{Tenant: "acme"})
	require.NoError(t, err)

	v, ok, err := d.Read(ctx, "mindscape:acme:memory:1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "hello", v["content"])
}

func TestMemDriverImmutableRejectsOverwrite(t *testing.T) {
	ctx := context.Background()
	d := storage.NewMemDriver()

	require.NoError(t, d.Write(ctx, "k", map[string]any{"v": 1}, storage.Meta{Immutable: true}))
	err := d.Write(ctx, "k", map[string]any{"v": 2}, storage.Meta{Immutable: true})
	require.ErrorIs(t, err, apperr.ErrInvalidInput)
}

func TestMemDriverQueryPrefixAndFilter(t *testing.T) {
	ctx := context.Background()
	d := storage.NewMemDriver()

	require.NoError(t, d.Write(ctx, "gnosis:acme:belief:1", map[string]any{"state": "hypothesis"}, storage.Meta{}))
	require.NoError(t, d.Write(ctx, "gnosis:acme:belief:2", map[string]any{"state": "accepted"}, storage.Meta{}))
	require.NoError(t, d.Write(ctx, "mindscape:acme:memory:1", map[string]any{"state": "hypothesis"}, storage.Meta{}))

	results, err := d.Query(ctx, storage.Query{Pattern: "gnosis:acme:belief:", Filters: map[string]any{"state": "hypothesis"}})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestMemDriverCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	d := storage.NewMemDriver()

	ok, err := d.CompareAndSwap(ctx, "k", 0, map[string]any{"version": 1}, storage.Meta{})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = d.CompareAndSwap(ctx, "k", 0, map[string]any{"version": 2}, storage.Meta{})
	require.NoError(t, err)
	require.False(t, ok, "stale expected version must be rejected")

	ok, err = d.CompareAndSwap(ctx, "k", 1, map[string]any{"version": 2}, storage.Meta{})
	require.NoError(t, err)
	require.True(t, ok)
}

func TestEmulatingDriverSets(t *testing.T) {
	ctx := context.Background()
	e := storage.Wrap(storage.NewMemDriver())

	require.NoError(t, e.AddToSet(ctx, "s", "a"))
	require.NoError(t, e.AddToSet(ctx, "s", "b"))
	members, err := e.GetSetMembers(ctx, "s")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"a", "b"}, members)

	isMember, err := e.IsSetMember(ctx, "s", "a")
	require.NoError(t, err)
	require.True(t, isMember)

	require.NoError(t, e.RemoveFromSet(ctx, "s", "a"))
	isMember, err = e.IsSetMember(ctx, "s", "a")
	require.NoError(t, err)
	require.False(t, isMember)
}
