package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ashita-ai/akashi/internal/apperr"
)

// PGDriver is the Postgres-backed Driver. Entities are stored as a single
// generic key/value table (kv_entries) keyed by the namespaced string keys
// defined in keys.go; this mirrors the driver contract's "values are
// JSON-serialisable maps" requirement without committing to a relational
// schema per entity type, so the core never needs migration changes when a
// new component is added.
//
// A dedicated connection is kept for LISTEN/NOTIFY, separate from the pool,
// the same split the donor repo uses for pooled queries vs. direct-connection
// notification (pooled connections can't hold a stable LISTEN session behind
// a transaction-mode pooler).
type PGDriver struct {
	pool       *pgxpool.Pool
	notifyConn *pgx.Conn
	notifyMu   sync.Mutex
	logger     *slog.Logger
}

// NewPGDriver opens a pool against poolDSN and, if notifyDSN is non-empty, a
// dedicated connection for LISTEN/NOTIFY.
func NewPGDriver(ctx context.Context, poolDSN, notifyDSN string, logger *slog.Logger) (*PGDriver, error) {
	poolCfg, err := pgxpool.ParseConfig(poolDSN)
	if err != nil {
		return nil, fmt.Errorf("storage: parse pool DSN: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("storage: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("storage: ping pool: %w", err)
	}

	var notifyConn *pgx.Conn
	if notifyDSN != "" {
		notifyConn, err = pgx.Connect(ctx, notifyDSN)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("storage: connect notify: %w", err)
		}
	}

	return &PGDriver{pool: pool, notifyConn: notifyConn, logger: logger}, nil
}

// Close releases the pool and notify connection.
func (d *PGDriver) Close(ctx context.Context) {
	d.pool.Close()
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	if d.notifyConn != nil {
		_ = d.notifyConn.Close(ctx)
	}
}

// Pool exposes the underlying pool for migrations and health checks.
func (d *PGDriver) Pool() *pgxpool.Pool { return d.pool }

const kvSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	tenant     TEXT NOT NULL,
	entry_type TEXT NOT NULL,
	immutable  BOOLEAN NOT NULL DEFAULT false,
	value      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS kv_entries_tenant_idx ON kv_entries (tenant, entry_type);
CREATE TABLE IF NOT EXISTS kv_sets (
	set_key TEXT NOT NULL,
	member  TEXT NOT NULL,
	PRIMARY KEY (set_key, member)
);
`

// Migrate creates the kv_entries/kv_sets tables if they don't exist.
func (d *PGDriver) Migrate(ctx context.Context) error {
	_, err := d.pool.Exec(ctx, kvSchema)
	if err != nil {
		return fmt.Errorf("%w: migrate: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func (d *PGDriver) Write(ctx context.Context, key string, value map[string]any, meta Meta) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: marshal value: %v", apperr.ErrInvalidInput, err)
	}
	_, err = d.pool.Exec(ctx, `
		INSERT INTO kv_entries (key, tenant, entry_type, immutable, value, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (key) DO UPDATE SET
			value = CASE WHEN kv_entries.immutable THEN kv_entries.value ELSE EXCLUDED.value END,
			updated_at = CASE WHEN kv_entries.immutable THEN kv_entries.updated_at ELSE now() END
		WHERE NOT kv_entries.immutable OR kv_entries.value = EXCLUDED.value
	`, key, meta.Tenant, meta.Type, meta.Immutable, payload)
	if err != nil {
		return fmt.Errorf("%w: write %q: %v", apperr.ErrStorageUnavailable, key, err)
	}
	return nil
}

func (d *PGDriver) Read(ctx context.Context, key string) (map[string]any, bool, error) {
	var raw []byte
	err := d.pool.QueryRow(ctx, `SELECT value FROM kv_entries WHERE key = $1`, key).Scan(&raw)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("%w: read %q: %v", apperr.ErrStorageUnavailable, key, err)
	}
	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, fmt.Errorf("%w: unmarshal %q: %v", apperr.ErrStorageUnavailable, key, err)
	}
	return value, true, nil
}

func (d *PGDriver) Exists(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM kv_entries WHERE key = $1)`, key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: exists %q: %v", apperr.ErrStorageUnavailable, key, err)
	}
	return exists, nil
}

func (d *PGDriver) GetMetadata(ctx context.Context, key string) (Meta, bool, error) {
	var m Meta
	err := d.pool.QueryRow(ctx, `SELECT tenant, entry_type, immutable FROM kv_entries WHERE key = $1`, key).
		Scan(&m.Tenant, &m.Type, &m.Immutable)
	if err != nil {
		if err == pgx.ErrNoRows {
			return Meta{}, false, nil
		}
		return Meta{}, false, fmt.Errorf("%w: metadata %q: %v", apperr.ErrStorageUnavailable, key, err)
	}
	return m, true, nil
}

func (d *PGDriver) Query(ctx context.Context, q Query) ([]map[string]any, error) {
	sql := `SELECT value FROM kv_entries WHERE key LIKE $1`
	args := []any{escapeLikePrefix(q.Pattern) + "%"}
	n := 2
	if !q.From.IsZero() {
		sql += fmt.Sprintf(" AND created_at >= $%d", n)
		args = append(args, q.From)
		n++
	}
	if !q.To.IsZero() {
		sql += fmt.Sprintf(" AND created_at <= $%d", n)
		args = append(args, q.To)
		n++
	}
	sql += " ORDER BY created_at ASC"
	if q.Limit > 0 {
		sql += fmt.Sprintf(" LIMIT $%d", n)
		args = append(args, q.Limit)
	}

	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: query: %v", apperr.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	var out []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", apperr.ErrStorageUnavailable, err)
		}
		var value map[string]any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("%w: unmarshal: %v", apperr.ErrStorageUnavailable, err)
		}
		if matchFilters(value, q.Filters) {
			out = append(out, value)
		}
	}
	return out, rows.Err()
}

func (d *PGDriver) Count(ctx context.Context, q Query) (int, error) {
	results, err := d.Query(ctx, Query{Pattern: q.Pattern, Filters: q.Filters, From: q.From, To: q.To})
	if err != nil {
		return 0, err
	}
	return len(results), nil
}

func (d *PGDriver) WriteMulti(ctx context.Context, items map[string]map[string]any, meta Meta) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", apperr.ErrStorageUnavailable, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for key, value := range items {
		payload, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("%w: marshal %q: %v", apperr.ErrInvalidInput, key, err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO kv_entries (key, tenant, entry_type, immutable, value, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
			WHERE NOT kv_entries.immutable
		`, key, meta.Tenant, meta.Type, meta.Immutable, payload); err != nil {
			return fmt.Errorf("%w: writeMulti %q: %v", apperr.ErrStorageUnavailable, key, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func (d *PGDriver) ReadMulti(ctx context.Context, keys []string) (map[string]map[string]any, error) {
	rows, err := d.pool.Query(ctx, `SELECT key, value FROM kv_entries WHERE key = ANY($1)`, keys)
	if err != nil {
		return nil, fmt.Errorf("%w: readMulti: %v", apperr.ErrStorageUnavailable, err)
	}
	defer rows.Close()
	out := make(map[string]map[string]any, len(keys))
	for rows.Next() {
		var key string
		var raw []byte
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("%w: scan: %v", apperr.ErrStorageUnavailable, err)
		}
		var value map[string]any
		if err := json.Unmarshal(raw, &value); err != nil {
			return nil, fmt.Errorf("%w: unmarshal: %v", apperr.ErrStorageUnavailable, err)
		}
		out[key] = value
	}
	return out, rows.Err()
}

// CompareAndSwap performs a single-statement UPDATE guarded by the stored
// value's "version" field, giving true compare-and-set semantics without a
// round-trip read, satisfying the per-belief optimistic-locking requirement.
func (d *PGDriver) CompareAndSwap(ctx context.Context, key string, expectedVersion int, value map[string]any, meta Meta) (bool, error) {
	payload, err := json.Marshal(value)
	if err != nil {
		return false, fmt.Errorf("%w: marshal: %v", apperr.ErrInvalidInput, err)
	}
	tag, err := d.pool.Exec(ctx, `
		UPDATE kv_entries SET value = $1, updated_at = now()
		WHERE key = $2 AND (value->>'version')::int = $3
	`, payload, key, expectedVersion)
	if err != nil {
		return false, fmt.Errorf("%w: cas %q: %v", apperr.ErrStorageUnavailable, key, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the row doesn't exist yet (first write) or the version moved.
		var exists bool
		if err := d.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM kv_entries WHERE key=$1)`, key).Scan(&exists); err != nil {
			return false, fmt.Errorf("%w: cas existence check %q: %v", apperr.ErrStorageUnavailable, key, err)
		}
		if !exists && expectedVersion == 0 {
			if err := d.Write(ctx, key, value, meta); err != nil {
				return false, err
			}
			return true, nil
		}
		return false, nil
	}
	return true, nil
}

func (d *PGDriver) AddToSet(ctx context.Context, setKey, member string) error {
	_, err := d.pool.Exec(ctx, `INSERT INTO kv_sets (set_key, member) VALUES ($1, $2) ON CONFLICT DO NOTHING`, setKey, member)
	if err != nil {
		return fmt.Errorf("%w: addToSet: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func (d *PGDriver) RemoveFromSet(ctx context.Context, setKey, member string) error {
	_, err := d.pool.Exec(ctx, `DELETE FROM kv_sets WHERE set_key = $1 AND member = $2`, setKey, member)
	if err != nil {
		return fmt.Errorf("%w: removeFromSet: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

func (d *PGDriver) GetSetMembers(ctx context.Context, setKey string) ([]string, error) {
	rows, err := d.pool.Query(ctx, `SELECT member FROM kv_sets WHERE set_key = $1 ORDER BY member`, setKey)
	if err != nil {
		return nil, fmt.Errorf("%w: getSetMembers: %v", apperr.ErrStorageUnavailable, err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (d *PGDriver) IsSetMember(ctx context.Context, setKey, member string) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM kv_sets WHERE set_key=$1 AND member=$2)`, setKey, member).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: isSetMember: %v", apperr.ErrStorageUnavailable, err)
	}
	return exists, nil
}

// Notify sends a LISTEN/NOTIFY payload on channel. The Job Dispatcher's
// worker loop (C16) polls on a ticker and does not call it.
func (d *PGDriver) Notify(ctx context.Context, channel, payload string) error {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()
	if d.notifyConn == nil {
		return nil
	}
	_, err := d.notifyConn.Exec(ctx, "SELECT pg_notify($1, $2)", channel, payload)
	if err != nil {
		return fmt.Errorf("%w: notify: %v", apperr.ErrStorageUnavailable, err)
	}
	return nil
}

// WaitForNotification blocks until a notification arrives on a previously
// LISTENed channel, or ctx is done. Reconnects once on a dropped connection,
// matching the donor pool's resilience to transient network blips.
func (d *PGDriver) WaitForNotification(ctx context.Context, channel string, notifyDSN string) (*pgx.Notification, error) {
	d.notifyMu.Lock()
	conn := d.notifyConn
	d.notifyMu.Unlock()
	if conn == nil {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return nil, fmt.Errorf("%w: listen: %v", apperr.ErrStorageUnavailable, err)
	}
	n, err := conn.WaitForNotification(ctx)
	if err != nil {
		if d.logger != nil {
			d.logger.Warn("storage: notify connection error, reconnecting", "error", err)
		}
		reconn, rerr := pgx.Connect(context.Background(), notifyDSN)
		if rerr == nil {
			d.notifyMu.Lock()
			d.notifyConn = reconn
			d.notifyMu.Unlock()
		}
		return nil, fmt.Errorf("%w: wait for notification: %v", apperr.ErrStorageUnavailable, err)
	}
	return n, nil
}

func escapeLikePrefix(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
