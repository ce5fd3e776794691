package storage

import (
	"context"
	"fmt"
)

// EmulatingDriver wraps a bare Driver and exposes the full optional
// capability set, emulating BatchDriver, SetDriver and CASDriver over the
// required methods when the wrapped driver doesn't implement them natively.
// It exists so every other component can call the full capability set
// without knowing which concrete driver is behind it.
type EmulatingDriver struct {
	Driver
}

// Wrap returns an EmulatingDriver over d.
func Wrap(d Driver) *EmulatingDriver {
	return &EmulatingDriver{Driver: d}
}

// WriteMulti writes every item, falling back to serial writes when the
// wrapped driver doesn't implement BatchDriver.
func (e *EmulatingDriver) WriteMulti(ctx context.Context, items map[string]map[string]any, meta Meta) error {
	if b, ok := e.Driver.(BatchDriver); ok {
		return b.WriteMulti(ctx, items, meta)
	}
	for key, value := range items {
		if err := e.Driver.Write(ctx, key, value, meta); err != nil {
			return fmt.Errorf("storage: emulated writeMulti at key %q: %w", key, err)
		}
	}
	return nil
}

// ReadMulti reads every key, falling back to serial reads.
func (e *EmulatingDriver) ReadMulti(ctx context.Context, keys []string) (map[string]map[string]any, error) {
	if b, ok := e.Driver.(BatchDriver); ok {
		return b.ReadMulti(ctx, keys)
	}
	out := make(map[string]map[string]any, len(keys))
	for _, key := range keys {
		v, ok, err := e.Driver.Read(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("storage: emulated readMulti at key %q: %w", key, err)
		}
		if ok {
			out[key] = v
		}
	}
	return out, nil
}

// setKeyPrefix namespaces the emulated set storage so it never collides with
// regular entity keys.
const setKeyPrefix = "__set__:"

// AddToSet emulates set membership as a Write to a synthetic key holding a
// map of members, when the wrapped driver doesn't implement SetDriver.
func (e *EmulatingDriver) AddToSet(ctx context.Context, setKey, member string) error {
	if s, ok := e.Driver.(SetDriver); ok {
		return s.AddToSet(ctx, setKey, member)
	}
	key := setKeyPrefix + setKey
	members, err := e.readSet(ctx, key)
	if err != nil {
		return err
	}
	members[member] = true
	return e.Driver.Write(ctx, key, map[string]any{"members": members}, Meta{})
}

// RemoveFromSet is the emulated inverse of AddToSet.
func (e *EmulatingDriver) RemoveFromSet(ctx context.Context, setKey, member string) error {
	if s, ok := e.Driver.(SetDriver); ok {
		return s.RemoveFromSet(ctx, setKey, member)
	}
	key := setKeyPrefix + setKey
	members, err := e.readSet(ctx, key)
	if err != nil {
		return err
	}
	delete(members, member)
	return e.Driver.Write(ctx, key, map[string]any{"members": members}, Meta{})
}

// GetSetMembers lists emulated set members.
func (e *EmulatingDriver) GetSetMembers(ctx context.Context, setKey string) ([]string, error) {
	if s, ok := e.Driver.(SetDriver); ok {
		return s.GetSetMembers(ctx, setKey)
	}
	members, err := e.readSet(ctx, setKeyPrefix+setKey)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(members))
	for m := range members {
		out = append(out, m)
	}
	return out, nil
}

// IsSetMember reports emulated set membership.
func (e *EmulatingDriver) IsSetMember(ctx context.Context, setKey, member string) (bool, error) {
	if s, ok := e.Driver.(SetDriver); ok {
		return s.IsSetMember(ctx, setKey, member)
	}
	members, err := e.readSet(ctx, setKeyPrefix+setKey)
	if err != nil {
		return false, err
	}
	return members[member], nil
}

func (e *EmulatingDriver) readSet(ctx context.Context, key string) (map[string]bool, error) {
	v, ok, err := e.Driver.Read(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("storage: emulated set read at key %q: %w", key, err)
	}
	members := make(map[string]bool)
	if !ok {
		return members, nil
	}
	raw, _ := v["members"].(map[string]any)
	for k := range raw {
		members[k] = true
	}
	return members, nil
}

// CompareAndSwap emulates compare-and-set as a read-check-write sequence when
// the wrapped driver doesn't implement CASDriver natively. This is not
// linearizable against a concurrent emulated caller on the same process — the
// in-memory driver provides true atomicity via its internal mutex instead;
// the Postgres driver implements CASDriver natively using an UPDATE ... WHERE
// version = $expected.
func (e *EmulatingDriver) CompareAndSwap(ctx context.Context, key string, expectedVersion int, value map[string]any, meta Meta) (bool, error) {
	if c, ok := e.Driver.(CASDriver); ok {
		return c.CompareAndSwap(ctx, key, expectedVersion, value, meta)
	}
	current, ok, err := e.Driver.Read(ctx, key)
	if err != nil {
		return false, err
	}
	currentVersion := 0
	if ok {
		if v, ok := current["version"].(int); ok {
			currentVersion = v
		}
	}
	if currentVersion != expectedVersion {
		return false, nil
	}
	if err := e.Driver.Write(ctx, key, value, meta); err != nil {
		return false, err
	}
	return true, nil
}
