// Package storage defines the key-value driver capability (C1) the memory
// substrate's core depends on, plus a capability-emulation helper and two
// concrete drivers: an in-memory one (tests, single-process use) and a
// Postgres-backed one (internal/storage/pgdriver.go).
//
// The core never depends on a concrete driver type, only on the Driver
// interface below. Namespaced keys follow a consistent pattern, e.g.
// "mindscape:{tenant}:memory:{id}".
package storage

import (
	"context"
	"time"
)

// Meta carries per-write metadata. Immutable, when true, means the driver
// must reject overwrites of an existing key (or the caller never issues them).
type Meta struct {
	Tenant    string
	Type      string
	Immutable bool
}

// Query filters a Driver.Query call. Pattern is a key prefix; Filters are
// equality constraints evaluated against each value's top-level fields; the
// time range (when non-zero) is matched against the "created_at"/"timestamp"
// field recorded in the stored value.
type Query struct {
	Pattern string
	Filters map[string]any
	From    time.Time
	To      time.Time
	Limit   int
}

// Driver is the capability set the core consumes. Implementations
// may also satisfy BatchDriver and SetDriver for the optional operations; the
// core calls those through EmulatingDriver so callers never need a type switch.
type Driver interface {
	Write(ctx context.Context, key string, value map[string]any, meta Meta) error
	Read(ctx context.Context, key string) (map[string]any, bool, error)
	Query(ctx context.Context, q Query) ([]map[string]any, error)
	Count(ctx context.Context, q Query) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetMetadata(ctx context.Context, key string) (Meta, bool, error)
}

// BatchDriver is an optional capability; drivers that implement it get
// multi-key writes/reads in one round trip.
type BatchDriver interface {
	WriteMulti(ctx context.Context, items map[string]map[string]any, meta Meta) error
	ReadMulti(ctx context.Context, keys []string) (map[string]map[string]any, error)
}

// SetDriver is an optional capability backing per-key set membership.
// MemDriver and PGDriver implement it natively; EmulatingDriver emulates it
// for drivers that do not.
type SetDriver interface {
	AddToSet(ctx context.Context, setKey, member string) error
	RemoveFromSet(ctx context.Context, setKey, member string) error
	GetSetMembers(ctx context.Context, setKey string) ([]string, error)
	IsSetMember(ctx context.Context, setKey, member string) (bool, error)
}

// CASDriver is an optional capability for drivers that can offer a true
// compare-and-set primitive instead of the emulated read-then-write used by
// EmulatingDriver.
type CASDriver interface {
	CompareAndSwap(ctx context.Context, key string, expectedVersion int, value map[string]any, meta Meta) (bool, error)
}
