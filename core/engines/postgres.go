package engines

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/sqldeck/sqldeck/core/config"
)

type postgresEngine struct{}

func (postgresEngine) Kind() config.EngineKind   { return config.KindPostgres }
func (postgresEngine) Poolable() bool            { return true }
func (postgresEngine) ReportsAffectedRows() bool { return true }
func (postgresEngine) HealthQuery() string       { return "SELECT 1" }

func (postgresEngine) dsn(cfg *config.PostgresConfig, database string) string {
	db := database
	if db == "" {
		db = cfg.Database
	}
	sslmode := "disable"
	if cfg.SSL {
		sslmode = "require"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + db,
		RawQuery: "sslmode=" + sslmode,
	}
	return u.String()
}

func (e postgresEngine) Open(ctx context.Context, cfg config.EngineConfig, database string) (*sql.DB, error) {
	pc, ok := cfg.(*config.PostgresConfig)
	if !ok {
		return nil, configMismatch(e.Kind(), cfg)
	}
	return openAndPing(ctx, e.Kind(), "pgx", e.dsn(pc, database))
}

func (postgresEngine) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (postgresEngine) ListDatabases(ctx context.Context, db *sql.DB) ([]string, error) {
	return collectStrings(ctx, db,
		`SELECT datname FROM pg_database WHERE datistemplate = false ORDER BY datname`)
}

func (postgresEngine) ListTables(ctx context.Context, db *sql.DB, database string) ([]string, error) {
	// The catalog is per-database in PostgreSQL; the handle is already bound
	// to the requested database through the pool key.
	return collectStrings(ctx, db, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type = 'BASE TABLE'
		ORDER BY table_name`)
}

func (postgresEngine) DescribeTable(ctx context.Context, db *sql.DB, database, table string) ([]Column, error) {
	const query = `
		SELECT c.column_name,
		       c.data_type,
		       c.is_nullable,
		       c.column_default,
		       c.is_identity,
		       EXISTS (
		           SELECT 1
		           FROM information_schema.table_constraints tc
		           JOIN information_schema.key_column_usage kcu
		             ON kcu.constraint_name = tc.constraint_name
		            AND kcu.table_schema = tc.table_schema
		           WHERE tc.constraint_type = 'PRIMARY KEY'
		             AND tc.table_schema = c.table_schema
		             AND tc.table_name = c.table_name
		             AND kcu.column_name = c.column_name
		       ) AS is_pk
		FROM information_schema.columns c
		WHERE c.table_schema = 'public' AND c.table_name = $1
		ORDER BY c.ordinal_position`

	rows, err := db.QueryContext(ctx, query, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			name       string
			dataType   string
			isNullable string
			dflt       sql.NullString
			isIdentity string
			isPK       bool
		)
		if err := rows.Scan(&name, &dataType, &isNullable, &dflt, &isIdentity, &isPK); err != nil {
			return nil, err
		}
		autoInc := isIdentity == "YES" ||
			(dflt.Valid && strings.HasPrefix(dflt.String, "nextval("))
		cols = append(cols, Column{
			Name:          name,
			DataType:      dataType,
			Nullable:      isNullable == "YES",
			Default:       nullableString(dflt),
			PrimaryKey:    isPK,
			AutoIncrement: autoInc,
		})
	}
	return cols, rows.Err()
}
