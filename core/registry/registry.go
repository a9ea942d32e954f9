// Package registry stores connection definitions and keeps the pool cache
// coherent when a definition changes.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/sqldeck/sqldeck/core/config"
	"github.com/sqldeck/sqldeck/core/logging"
	apperrors "github.com/sqldeck/sqldeck/core/shared/errors"
)

// Registry is the read surface consumed by the execution layer.
type Registry interface {
	// Get returns the connection with the given id, or a NOT_FOUND error.
	Get(ctx context.Context, id string) (*config.Connection, error)
	// List returns all stored connections ordered by name.
	List(ctx context.Context) ([]*config.Connection, error)
}

// Invalidator drops any cached pools derived from a connection id.
// *pool.Manager satisfies it.
type Invalidator interface {
	Invalidate(connectionID string)
}

// InMemory is a mutex-guarded connection store. Mutations that change how a
// connection dials out invalidate its pools before the new definition becomes
// visible, so no caller can observe a pool built from stale parameters.
type InMemory struct {
	mu          sync.RWMutex
	connections map[string]*config.Connection
	invalidator Invalidator
	log         logging.Logger
}

// NewInMemory creates an empty store. invalidator may be nil when pool
// coherence is handled elsewhere.
func NewInMemory(invalidator Invalidator) *InMemory {
	return &InMemory{
		connections: make(map[string]*config.Connection),
		invalidator: invalidator,
		log:         logging.New("registry"),
	}
}

// Create decodes the engine parameters, assigns a fresh id and stores the
// connection.
func (r *InMemory) Create(ctx context.Context, name string, kind config.EngineKind, raw json.RawMessage) (*config.Connection, error) {
	cfg, err := config.Decode(kind, raw)
	if err != nil {
		return nil, err
	}

	conn := &config.Connection{
		ID:     uuid.NewString(),
		Name:   name,
		Kind:   kind,
		Config: cfg,
	}
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.connections[conn.ID] = conn
	r.mu.Unlock()

	r.log.Infof("created %s connection %q (%s)", kind, name, conn.ID)
	return conn, nil
}

// Get returns the connection with the given id.
func (r *InMemory) Get(ctx context.Context, id string) (*config.Connection, error) {
	r.mu.RLock()
	conn, ok := r.connections[id]
	r.mu.RUnlock()
	if !ok {
		return nil, apperrors.NewAppError(apperrors.ErrCodeNotFound, fmt.Sprintf("connection %q not found", id), nil)
	}
	return conn, nil
}

// List returns all connections ordered by name, id as a tiebreak.
func (r *InMemory) List(ctx context.Context) ([]*config.Connection, error) {
	r.mu.RLock()
	out := make([]*config.Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		out = append(out, conn)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Update replaces the definition stored under id. Cached pools for the
// connection are dropped first: a rename alone does not strictly need it, but
// invalidating unconditionally keeps the rule simple and the race window
// closed for parameter changes.
func (r *InMemory) Update(ctx context.Context, id, name string, kind config.EngineKind, raw json.RawMessage) (*config.Connection, error) {
	cfg, err := config.Decode(kind, raw)
	if err != nil {
		return nil, err
	}

	conn := &config.Connection{ID: id, Name: name, Kind: kind, Config: cfg}
	if err := conn.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.connections[id]; !ok {
		return nil, apperrors.NewAppError(apperrors.ErrCodeNotFound, fmt.Sprintf("connection %q not found", id), nil)
	}
	if r.invalidator != nil {
		r.invalidator.Invalidate(id)
	}
	r.connections[id] = conn

	r.log.Infof("updated connection %q (%s)", name, id)
	return conn, nil
}

// Delete removes the connection and drops its cached pools.
func (r *InMemory) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.connections[id]
	if !ok {
		return apperrors.NewAppError(apperrors.ErrCodeNotFound, fmt.Sprintf("connection %q not found", id), nil)
	}
	if r.invalidator != nil {
		r.invalidator.Invalidate(id)
	}
	delete(r.connections, id)

	r.log.Infof("deleted connection %q (%s)", conn.Name, id)
	return nil
}
