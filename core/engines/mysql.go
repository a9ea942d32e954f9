package engines

import (
	"context"
	"database/sql"
	"net"
	"strconv"
	"strings"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/sqldeck/sqldeck/core/config"
)

type mysqlEngine struct{}

func (mysqlEngine) Kind() config.EngineKind   { return config.KindMySQL }
func (mysqlEngine) Poolable() bool            { return true }
func (mysqlEngine) ReportsAffectedRows() bool { return true }
func (mysqlEngine) HealthQuery() string       { return "SELECT 1" }

// dsn builds the driver DSN. parseTime makes temporal columns scan as
// time.Time instead of raw bytes; skip-verify matches "encrypt without CA
// verification", the behavior the ssl flag promises.
func (mysqlEngine) dsn(cfg *config.MySQLConfig, database string) string {
	db := database
	if db == "" {
		db = cfg.Database
	}
	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = db
	mc.ParseTime = true
	if cfg.SSL {
		mc.TLSConfig = "skip-verify"
	}
	return mc.FormatDSN()
}

func (e mysqlEngine) Open(ctx context.Context, cfg config.EngineConfig, database string) (*sql.DB, error) {
	mc, ok := cfg.(*config.MySQLConfig)
	if !ok {
		return nil, configMismatch(e.Kind(), cfg)
	}
	return openAndPing(ctx, e.Kind(), "mysql", e.dsn(mc, database))
}

func (mysqlEngine) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (mysqlEngine) ListDatabases(ctx context.Context, db *sql.DB) ([]string, error) {
	return collectStrings(ctx, db, "SHOW DATABASES")
}

func (e mysqlEngine) ListTables(ctx context.Context, db *sql.DB, database string) ([]string, error) {
	if database == "" {
		return collectStrings(ctx, db, "SHOW TABLES")
	}
	return collectStrings(ctx, db, "SHOW TABLES FROM "+e.QuoteIdent(database))
}

func (mysqlEngine) DescribeTable(ctx context.Context, db *sql.DB, database, table string) ([]Column, error) {
	const query = `
		SELECT column_name, column_type, is_nullable, column_default, column_key, extra
		FROM information_schema.columns
		WHERE table_schema = IF(? = '', DATABASE(), ?) AND table_name = ?
		ORDER BY ordinal_position`

	rows, err := db.QueryContext(ctx, query, database, database, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			name       string
			columnType string
			isNullable string
			dflt       sql.NullString
			columnKey  string
			extra      string
		)
		if err := rows.Scan(&name, &columnType, &isNullable, &dflt, &columnKey, &extra); err != nil {
			return nil, err
		}
		cols = append(cols, Column{
			Name:          name,
			DataType:      columnType,
			Nullable:      isNullable == "YES",
			Default:       nullableString(dflt),
			PrimaryKey:    columnKey == "PRI",
			AutoIncrement: strings.Contains(extra, "auto_increment"),
		})
	}
	return cols, rows.Err()
}
