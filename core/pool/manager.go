// Package pool caches live engine handles keyed by (connection id, database)
// and revalidates them before reuse. It owns the only shared mutable state in
// the core.
package pool

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/sqldeck/sqldeck/core/config"
	"github.com/sqldeck/sqldeck/core/engines"
	"github.com/sqldeck/sqldeck/core/logging"
	apperrors "github.com/sqldeck/sqldeck/core/shared/errors"
)

// Handle is a live, share-safe engine handle. Pooled handles are owned by
// the Manager's cache and shared out per query; ephemeral handles belong to
// the caller, who releases them after one use.
type Handle struct {
	DB        *sql.DB
	Engine    engines.Engine
	key       string
	ephemeral bool
}

// Ephemeral reports whether the caller owns the handle's lifetime
func (h *Handle) Ephemeral() bool { return h.ephemeral }

// Release closes an ephemeral handle. Pooled handles stay open; the cache
// owns them.
func (h *Handle) Release() error {
	if h.ephemeral {
		return h.DB.Close()
	}
	return nil
}

// HealthCheck issues the engine's trivial round-trip query
func (h *Handle) HealthCheck(ctx context.Context) error {
	_, err := h.DB.ExecContext(ctx, h.Engine.HealthQuery())
	return err
}

// Manager caches handles per (connection, database) key.
type Manager struct {
	mu    sync.RWMutex
	pools map[string]*Handle
	group singleflight.Group
	log   logging.Logger
}

// NewManager creates an empty pool manager
func NewManager() *Manager {
	return &Manager{
		pools: make(map[string]*Handle),
		log:   logging.New("pool"),
	}
}

func cacheKey(connectionID, database string) string {
	return connectionID + ":" + database
}

// Acquire returns a cached handle if present and healthy, else builds a
// fresh one. Stale entries are evicted and rebuilt once; only a failing
// rebuild surfaces as a PoolError. Construction failures are returned
// verbatim-wrapped and never retried here; retry policy belongs to the
// caller.
func (m *Manager) Acquire(ctx context.Context, conn *config.Connection, database string) (*Handle, error) {
	eng, err := engines.ForKind(conn.Kind)
	if err != nil {
		return nil, err
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	if !eng.Poolable() {
		db, err := eng.Open(ctx, conn.Config, database)
		if err != nil {
			poolBuildsTotal.WithLabelValues(string(conn.Kind), "error").Inc()
			return nil, err
		}
		poolAcquiresTotal.WithLabelValues(string(conn.Kind), "ephemeral").Inc()
		return &Handle{DB: db, Engine: eng, ephemeral: true}, nil
	}

	key := cacheKey(conn.ID, database)

	m.mu.RLock()
	cached := m.pools[key]
	m.mu.RUnlock()

	if cached != nil {
		if err := cached.HealthCheck(ctx); err == nil {
			poolAcquiresTotal.WithLabelValues(string(conn.Kind), "hit").Inc()
			return cached, nil
		}
		poolHealthCheckFailures.WithLabelValues(string(conn.Kind)).Inc()
		m.log.Warnf("pool for connection %q (db %q) failed health check, rebuilding", conn.ID, database)
		m.evict(key, cached)

		rebuilt, err := m.build(ctx, key, eng, conn, database)
		if err != nil {
			return nil, apperrors.NewAppError(apperrors.ErrCodePool,
				fmt.Sprintf("pool for connection %q failed health check and could not be rebuilt", conn.Name), err)
		}
		poolAcquiresTotal.WithLabelValues(string(conn.Kind), "rebuild").Inc()
		return rebuilt, nil
	}

	h, err := m.build(ctx, key, eng, conn, database)
	if err != nil {
		return nil, err
	}
	poolAcquiresTotal.WithLabelValues(string(conn.Kind), "miss").Inc()
	return h, nil
}

// build constructs and caches a handle. Concurrent builds for the same key
// collapse into one physical construction via singleflight; every caller
// receives the same handle.
func (m *Manager) build(ctx context.Context, key string, eng engines.Engine, conn *config.Connection, database string) (*Handle, error) {
	v, err, _ := m.group.Do(key, func() (any, error) {
		// A racing caller may have built and cached the handle while this
		// one was waiting on the flight group.
		m.mu.RLock()
		existing := m.pools[key]
		m.mu.RUnlock()
		if existing != nil {
			return existing, nil
		}

		db, err := eng.Open(ctx, conn.Config, database)
		if err != nil {
			poolBuildsTotal.WithLabelValues(string(conn.Kind), "error").Inc()
			return nil, err
		}
		h := &Handle{DB: db, Engine: eng, key: key}

		m.mu.Lock()
		m.pools[key] = h
		m.mu.Unlock()

		poolBuildsTotal.WithLabelValues(string(conn.Kind), "ok").Inc()
		poolsLive.Inc()
		m.log.Debugf("built pool for connection %q (db %q)", conn.ID, database)
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Handle), nil
}

// evict removes a stale entry so future acquires rebuild. The handle is
// closed for hygiene; database/sql lets queries already started run to
// completion, so eviction does not revoke in-flight use.
func (m *Manager) evict(key string, h *Handle) {
	m.mu.Lock()
	if m.pools[key] == h {
		delete(m.pools, key)
		poolsLive.Dec()
	}
	m.mu.Unlock()
	h.DB.Close()
}

// Invalidate removes every cached entry for a connection id regardless of
// database suffix. Required on config edits and deletions so a stale
// authenticated handle cannot outlive its authorizing config.
func (m *Manager) Invalidate(connectionID string) {
	prefix := connectionID + ":"

	m.mu.Lock()
	var victims []*Handle
	for key, h := range m.pools {
		if strings.HasPrefix(key, prefix) {
			victims = append(victims, h)
			delete(m.pools, key)
			poolsLive.Dec()
		}
	}
	m.mu.Unlock()

	for _, h := range victims {
		h.DB.Close()
	}
	if len(victims) > 0 {
		m.log.Debugf("invalidated %d pool(s) for connection %q", len(victims), connectionID)
	}
}

// Clear drops and closes every cached entry, in parallel. Used at shutdown
// or bulk reset.
func (m *Manager) Clear() error {
	m.mu.Lock()
	victims := m.pools
	m.pools = make(map[string]*Handle)
	m.mu.Unlock()

	if len(victims) == 0 {
		return nil
	}
	m.log.Debugf("closing %d pool(s)", len(victims))

	var g errgroup.Group
	var mu sync.Mutex
	var errs []error
	for key, h := range victims {
		g.Go(func() error {
			if err := h.DB.Close(); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("pool %q: %w", key, err))
				mu.Unlock()
			}
			poolsLive.Dec()
			return nil
		})
	}
	g.Wait()
	return stderrors.Join(errs...)
}

// Count returns the number of cached pools
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools)
}
