// Package engines binds each supported engine kind to its client library:
// handle construction, health checks, identifier quoting and catalog queries
// live behind one Engine interface, selected once per connection.
package engines

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sqldeck/sqldeck/core/config"
	apperrors "github.com/sqldeck/sqldeck/core/shared/errors"
)

// maxPoolConns caps each pooled handle. Sized for an interactive client,
// not a throughput-oriented server.
const maxPoolConns = 5

// Column describes one column of a table as the engine reports it. DataType
// is the engine's own type name, deliberately not normalized across engines.
type Column struct {
	Name          string  `json:"name"`
	DataType      string  `json:"dataType"`
	Nullable      bool    `json:"nullable"`
	Default       *string `json:"default,omitempty"`
	PrimaryKey    bool    `json:"primaryKey"`
	AutoIncrement bool    `json:"autoIncrement"`
}

// Engine is the per-kind capability set the pool manager, executor and
// schema layer dispatch through.
type Engine interface {
	// Kind returns the engine kind this implementation serves
	Kind() config.EngineKind

	// Poolable reports whether handles for this engine may be cached and
	// reused. The non-poolable engine opens a fresh client per call.
	Poolable() bool

	// ReportsAffectedRows reports whether command statements yield a
	// reliable mutation count. Engines returning false get a synthetic
	// success status instead.
	ReportsAffectedRows() bool

	// Open builds a live handle for the config. The database override takes
	// precedence over the config's own database field. Returns ConnectError
	// on any failure to reach the engine.
	Open(ctx context.Context, cfg config.EngineConfig, database string) (*sql.DB, error)

	// HealthQuery returns the trivial round-trip statement used to
	// revalidate cached handles.
	HealthQuery() string

	// QuoteIdent escapes an identifier per the engine's quoting rules.
	// Every identifier interpolated into catalog SQL goes through this,
	// treated as attacker-controllable.
	QuoteIdent(name string) string

	// ListDatabases returns the database names visible on the handle
	ListDatabases(ctx context.Context, db *sql.DB) ([]string, error)

	// ListTables returns the table names, optionally scoped to a database
	ListTables(ctx context.Context, db *sql.DB, database string) ([]string, error)

	// DescribeTable returns the column descriptors of a table
	DescribeTable(ctx context.Context, db *sql.DB, database, table string) ([]Column, error)
}

// ForKind selects the engine implementation for a kind
func ForKind(kind config.EngineKind) (Engine, error) {
	switch kind {
	case config.KindSQLite:
		return sqliteEngine{}, nil
	case config.KindMySQL:
		return mysqlEngine{}, nil
	case config.KindPostgres:
		return postgresEngine{}, nil
	case config.KindMSSQL:
		return mssqlEngine{}, nil
	default:
		return nil, apperrors.NewAppError(apperrors.ErrCodeUnsupportedEngine,
			fmt.Sprintf("unsupported engine kind %q", kind), nil)
	}
}

func configMismatch(kind config.EngineKind, cfg config.EngineConfig) error {
	got := "nil"
	if cfg != nil {
		got = string(cfg.Kind())
	}
	return apperrors.NewAppError(apperrors.ErrCodeConfig,
		fmt.Sprintf("%s engine received a %s config", kind, got), nil)
}

// ConnectError wraps a reachability failure in the engine's display name.
func ConnectError(kind config.EngineKind, err error) error {
	return apperrors.NewAppError(apperrors.ErrCodeConnect,
		fmt.Sprintf("failed to connect to %s", kind.DisplayName()), err)
}

// openAndPing opens a database/sql handle, applies the pool cap and verifies
// reachability with one round trip.
func openAndPing(ctx context.Context, kind config.EngineKind, driver, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, ConnectError(kind, err)
	}
	db.SetMaxOpenConns(maxPoolConns)
	db.SetMaxIdleConns(maxPoolConns)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, ConnectError(kind, err)
	}
	return db, nil
}

// collectStrings runs a single-column catalog query and gathers the values
func collectStrings(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func nullableString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
