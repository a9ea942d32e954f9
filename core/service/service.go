// Package service is the application-facing facade: it resolves connection
// definitions, borrows pooled handles and dispatches statements and schema
// lookups, recording the outcome of every execution.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sqldeck/sqldeck/core/config"
	"github.com/sqldeck/sqldeck/core/engines"
	"github.com/sqldeck/sqldeck/core/executor"
	"github.com/sqldeck/sqldeck/core/history"
	"github.com/sqldeck/sqldeck/core/logging"
	"github.com/sqldeck/sqldeck/core/pool"
	"github.com/sqldeck/sqldeck/core/registry"
)

type Service struct {
	registry registry.Registry
	pools    *pool.Manager
	history  history.Sink
	log      logging.Logger
}

// New wires the facade together. sink may be nil to disable history.
func New(reg registry.Registry, pools *pool.Manager, sink history.Sink) *Service {
	return &Service{
		registry: reg,
		pools:    pools,
		history:  sink,
		log:      logging.New("service"),
	}
}

// ExecuteSQL runs sqlText against the named connection, optionally scoped to
// database, and records the outcome. The result is returned even when history
// recording fails; a broken sink must not fail a successful statement.
func (s *Service) ExecuteSQL(ctx context.Context, connectionID, sqlText, database string) (*executor.QueryResult, error) {
	conn, err := s.registry.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}

	handle, err := s.pools.Acquire(ctx, conn, database)
	if err != nil {
		s.record(ctx, conn, sqlText, nil, err)
		return nil, err
	}
	defer handle.Release()

	result, err := executor.Run(ctx, handle, sqlText)
	s.record(ctx, conn, sqlText, result, err)
	return result, err
}

// record writes a history entry for one execution attempt.
func (s *Service) record(ctx context.Context, conn *config.Connection, sqlText string, result *executor.QueryResult, execErr error) {
	if s.history == nil {
		return
	}

	entry := history.Entry{
		ConnectionID:   conn.ID,
		ConnectionName: conn.Name,
		SQL:            sqlText,
		Success:        execErr == nil,
		ExecutedAt:     time.Now(),
	}
	if execErr != nil {
		entry.Error = execErr.Error()
	}
	if result != nil {
		if n, ok := result.AffectedRows(); ok {
			entry.RowsAffected = &n
		} else if len(result.Rows) > 0 {
			n := int64(len(result.Rows))
			entry.RowsAffected = &n
		}
	}

	if err := s.history.Record(ctx, entry); err != nil {
		s.log.Warnf("failed to record history for connection %s: %v", conn.ID, err)
	}
}

// TestConfig opens a one-off client from raw engine parameters, round-trips
// the health statement and reports success. Nothing is cached.
func (s *Service) TestConfig(ctx context.Context, kind config.EngineKind, raw json.RawMessage) (string, error) {
	cfg, err := config.Decode(kind, raw)
	if err != nil {
		return "", err
	}
	eng, err := engines.ForKind(kind)
	if err != nil {
		return "", err
	}

	db, err := eng.Open(ctx, cfg, "")
	if err != nil {
		return "", err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, eng.HealthQuery()); err != nil {
		return "", engines.ConnectError(kind, err)
	}
	return fmt.Sprintf("%s connection successful", kind.DisplayName()), nil
}

// ListDatabases returns the database names visible on the connection.
func (s *Service) ListDatabases(ctx context.Context, connectionID string) ([]string, error) {
	conn, err := s.registry.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	handle, err := s.pools.Acquire(ctx, conn, "")
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	return handle.Engine.ListDatabases(ctx, handle.DB)
}

// ListTables returns the table names, optionally scoped to database.
func (s *Service) ListTables(ctx context.Context, connectionID, database string) ([]string, error) {
	conn, err := s.registry.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	handle, err := s.pools.Acquire(ctx, conn, database)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	return handle.Engine.ListTables(ctx, handle.DB, database)
}

// DescribeTable returns the column descriptors of a table.
func (s *Service) DescribeTable(ctx context.Context, connectionID, database, table string) ([]engines.Column, error) {
	conn, err := s.registry.Get(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	handle, err := s.pools.Acquire(ctx, conn, database)
	if err != nil {
		return nil, err
	}
	defer handle.Release()

	return handle.Engine.DescribeTable(ctx, handle.DB, database, table)
}

// InvalidateConnection drops every cached pool for the connection id.
func (s *Service) InvalidateConnection(connectionID string) {
	s.pools.Invalidate(connectionID)
}

// Shutdown closes every cached pool.
func (s *Service) Shutdown() error {
	return s.pools.Clear()
}
