package engines

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/sqldeck/sqldeck/core/config"
	apperrors "github.com/sqldeck/sqldeck/core/shared/errors"
)

// sqliteEngine is the file-embedded engine, served by the pure-Go
// modernc.org/sqlite driver.
type sqliteEngine struct{}

func (sqliteEngine) Kind() config.EngineKind { return config.KindSQLite }
func (sqliteEngine) Poolable() bool          { return true }
func (sqliteEngine) ReportsAffectedRows() bool { return true }
func (sqliteEngine) HealthQuery() string     { return "SELECT 1" }

// dsn verifies the database file exists before handing the path to the
// driver. The driver would otherwise create an empty database or fail late,
// so missing files are reported here, distinctly from connect failures.
func (sqliteEngine) dsn(cfg *config.SQLiteConfig) (string, error) {
	if _, err := os.Stat(cfg.Filepath); err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.NewAppError(apperrors.ErrCodeConnect,
				fmt.Sprintf("SQLite file does not exist: %s", cfg.Filepath), err)
		}
		return "", apperrors.NewAppError(apperrors.ErrCodeConnect,
			fmt.Sprintf("SQLite file is not readable: %s", cfg.Filepath), err)
	}
	return cfg.Filepath, nil
}

func (e sqliteEngine) Open(ctx context.Context, cfg config.EngineConfig, database string) (*sql.DB, error) {
	sc, ok := cfg.(*config.SQLiteConfig)
	if !ok {
		return nil, configMismatch(e.Kind(), cfg)
	}
	dsn, err := e.dsn(sc)
	if err != nil {
		return nil, err
	}
	return openAndPing(ctx, e.Kind(), "sqlite", dsn)
}

func (sqliteEngine) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (sqliteEngine) ListDatabases(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var (
			seq  int
			name string
			file sql.NullString
		)
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (sqliteEngine) ListTables(ctx context.Context, db *sql.DB, database string) ([]string, error) {
	// A SQLite handle is bound to one file; the database scope does not
	// apply here.
	return collectStrings(ctx, db,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
}

func (e sqliteEngine) DescribeTable(ctx context.Context, db *sql.DB, database, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, "PRAGMA table_info("+e.QuoteIdent(table)+")")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var (
			cid      int
			name     string
			declType string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, Column{
			Name:       name,
			DataType:   declType,
			Nullable:   notNull == 0 && pk == 0,
			Default:    nullableString(dflt),
			PrimaryKey: pk > 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// AUTOINCREMENT is not visible through table_info; it only appears in
	// the table's CREATE statement, and only ever on an INTEGER PRIMARY KEY.
	var createSQL sql.NullString
	err = db.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&createSQL)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if createSQL.Valid && strings.Contains(strings.ToUpper(createSQL.String), "AUTOINCREMENT") {
		for i := range cols {
			if cols[i].PrimaryKey && strings.EqualFold(cols[i].DataType, "INTEGER") {
				cols[i].AutoIncrement = true
			}
		}
	}
	return cols, nil
}
