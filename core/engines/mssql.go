package engines

import (
	"context"
	"crypto/tls"
	"database/sql"
	"strings"

	mssql "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"

	"github.com/sqldeck/sqldeck/core/config"
)

// mssqlEngine speaks TDS through go-mssqldb. It is the one engine built from
// a structured driver config rather than a connection string, and the one
// engine whose handles are never cached: the pool manager opens a fresh
// client per call and the caller discards it afterwards.
type mssqlEngine struct{}

func (mssqlEngine) Kind() config.EngineKind { return config.KindMSSQL }
func (mssqlEngine) Poolable() bool          { return false }

// ReportsAffectedRows is false: command results carry a synthetic success
// status instead of a mutation count, so callers can detect that this engine
// cannot supply a precise one.
func (mssqlEngine) ReportsAffectedRows() bool { return false }

func (mssqlEngine) HealthQuery() string { return "SELECT 1" }

// driverConfig assembles the structured TDS config. There is no string form
// for this engine.
func (mssqlEngine) driverConfig(cfg *config.MSSQLConfig, database string) msdsn.Config {
	db := database
	if db == "" {
		db = cfg.Database
	}
	dc := msdsn.Config{
		Host:       cfg.Host,
		Port:       uint64(cfg.Port),
		User:       cfg.User,
		Password:   cfg.Password,
		Database:   db,
		Encryption: msdsn.EncryptionDisabled,
	}
	if cfg.Encrypt {
		dc.Encryption = msdsn.EncryptionRequired
		dc.TLSConfig = &tls.Config{
			ServerName:         cfg.Host,
			InsecureSkipVerify: cfg.TrustServerCertificate,
		}
	}
	return dc
}

func (e mssqlEngine) Open(ctx context.Context, cfg config.EngineConfig, database string) (*sql.DB, error) {
	mc, ok := cfg.(*config.MSSQLConfig)
	if !ok {
		return nil, configMismatch(e.Kind(), cfg)
	}
	connector := mssql.NewConnectorConfig(e.driverConfig(mc, database))
	db := sql.OpenDB(connector)
	// One physical connection per ephemeral client.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, ConnectError(e.Kind(), err)
	}
	return db, nil
}

func (mssqlEngine) QuoteIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

func (mssqlEngine) ListDatabases(ctx context.Context, db *sql.DB) ([]string, error) {
	// database_id <= 4 are the system databases
	return collectStrings(ctx, db,
		`SELECT name FROM sys.databases WHERE database_id > 4 ORDER BY name`)
}

func (mssqlEngine) ListTables(ctx context.Context, db *sql.DB, database string) ([]string, error) {
	// The handle is bound to a database at connection time via the pool key.
	return collectStrings(ctx, db, `
		SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME`)
}

func (mssqlEngine) DescribeTable(ctx context.Context, db *sql.DB, database, table string) ([]Column, error) {
	const query = `
		SELECT c.name,
		       ty.name,
		       c.is_nullable,
		       dc.definition,
		       c.is_identity,
		       CASE WHEN pk.column_id IS NOT NULL THEN 1 ELSE 0 END
		FROM sys.columns c
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
		LEFT JOIN (
		    SELECT ic.object_id, ic.column_id
		    FROM sys.indexes i
		    JOIN sys.index_columns ic
		      ON ic.object_id = i.object_id AND ic.index_id = i.index_id
		    WHERE i.is_primary_key = 1
		) pk ON pk.object_id = c.object_id AND pk.column_id = c.column_id
		WHERE c.object_id = OBJECT_ID(@p1)
		ORDER BY c.column_id`

	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			name       string
			typeName   string
			isNullable bool
			dflt       sql.NullString
			isIdentity bool
			isPK       bool
		)
		if err := rows.Scan(&name, &typeName, &isNullable, &dflt, &isIdentity, &isPK); err != nil {
			return nil, err
		}
		cols = append(cols, Column{
			Name:          name,
			DataType:      typeName,
			Nullable:      isNullable,
			Default:       nullableString(dflt),
			PrimaryKey:    isPK,
			AutoIncrement: isIdentity,
		})
	}
	return cols, rows.Err()
}
