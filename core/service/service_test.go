package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldeck/sqldeck/core/config"
	"github.com/sqldeck/sqldeck/core/history"
	"github.com/sqldeck/sqldeck/core/pool"
	"github.com/sqldeck/sqldeck/core/registry"
	apperrors "github.com/sqldeck/sqldeck/core/shared/errors"
)

type fixture struct {
	svc     *Service
	reg     *registry.InMemory
	pools   *pool.Manager
	sink    *history.Memory
	connID  string
	dbPath  string
	context context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "svc.db")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	pools := pool.NewManager()
	t.Cleanup(func() { pools.Clear() })
	reg := registry.NewInMemory(pools)
	sink := history.NewMemory(100)
	svc := New(reg, pools, sink)

	ctx := context.Background()
	raw := json.RawMessage(fmt.Sprintf(`{"filepath": %q}`, path))
	conn, err := reg.Create(ctx, "local sqlite", config.KindSQLite, raw)
	require.NoError(t, err)

	return &fixture{svc: svc, reg: reg, pools: pools, sink: sink, connID: conn.ID, dbPath: path, context: ctx}
}

func TestExecuteSQL_QueryAndCommand(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.ExecuteSQL(f.context, f.connID, `CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"affected_rows"}, res.Columns)

	res, err = f.svc.ExecuteSQL(f.context, f.connID, `INSERT INTO notes (body) VALUES ('a'), ('b')`, "")
	require.NoError(t, err)
	n, ok := res.AffectedRows()
	require.True(t, ok)
	assert.Equal(t, int64(2), n)

	res, err = f.svc.ExecuteSQL(f.context, f.connID, `SELECT body FROM notes ORDER BY id`, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"body"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "a", res.Rows[0][0])
}

func TestExecuteSQL_RecordsHistory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ExecuteSQL(f.context, f.connID, `CREATE TABLE t (id INTEGER)`, "")
	require.NoError(t, err)
	_, err = f.svc.ExecuteSQL(f.context, f.connID, `INSERT INTO t VALUES (1), (2), (3)`, "")
	require.NoError(t, err)
	_, err = f.svc.ExecuteSQL(f.context, f.connID, `SELECT * FROM t`, "")
	require.NoError(t, err)
	_, err = f.svc.ExecuteSQL(f.context, f.connID, `SELEC broken`, "")
	require.Error(t, err)

	entries := f.sink.List()
	require.Len(t, entries, 4)

	// Newest first: the failure.
	assert.False(t, entries[0].Success)
	assert.NotEmpty(t, entries[0].Error)
	assert.Nil(t, entries[0].RowsAffected)

	// SELECT derives rows affected from the row count.
	require.NotNil(t, entries[1].RowsAffected)
	assert.Equal(t, int64(3), *entries[1].RowsAffected)

	// INSERT carries the driver-reported count.
	require.NotNil(t, entries[2].RowsAffected)
	assert.Equal(t, int64(3), *entries[2].RowsAffected)

	for _, e := range entries {
		assert.Equal(t, f.connID, e.ConnectionID)
		assert.Equal(t, "local sqlite", e.ConnectionName)
		assert.False(t, e.ExecutedAt.IsZero())
	}
}

func TestExecuteSQL_UnknownConnection(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ExecuteSQL(f.context, "ghost", "SELECT 1", "")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Empty(t, f.sink.List(), "nothing to record without a connection")
}

func TestTestConfig(t *testing.T) {
	f := newFixture(t)

	msg, err := f.svc.TestConfig(f.context, config.KindSQLite, json.RawMessage(fmt.Sprintf(`{"filepath": %q}`, f.dbPath)))
	require.NoError(t, err)
	assert.Equal(t, "SQLite connection successful", msg)

	_, err = f.svc.TestConfig(f.context, config.KindSQLite, json.RawMessage(`{"filepath": "/nonexistent/x.db"}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsConnectError(err))

	_, err = f.svc.TestConfig(f.context, "oracle", json.RawMessage(`{}`))
	require.Error(t, err)
	assert.True(t, apperrors.IsUnsupportedEngine(err))
}

func TestSchemaLookups(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ExecuteSQL(f.context, f.connID, `CREATE TABLE people (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL)`, "")
	require.NoError(t, err)

	dbs, err := f.svc.ListDatabases(f.context, f.connID)
	require.NoError(t, err)
	assert.Contains(t, dbs, "main")

	tables, err := f.svc.ListTables(f.context, f.connID, "")
	require.NoError(t, err)
	assert.Contains(t, tables, "people")

	cols, err := f.svc.DescribeTable(f.context, f.connID, "", "people")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.True(t, cols[0].PrimaryKey)
	assert.True(t, cols[0].AutoIncrement)
	assert.Equal(t, "name", cols[1].Name)
	assert.False(t, cols[1].Nullable)
}

func TestInvalidateAndShutdown(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ExecuteSQL(f.context, f.connID, "SELECT 1", "")
	require.NoError(t, err)
	require.Equal(t, 1, f.pools.Count())

	f.svc.InvalidateConnection(f.connID)
	assert.Equal(t, 0, f.pools.Count())

	_, err = f.svc.ExecuteSQL(f.context, f.connID, "SELECT 1", "")
	require.NoError(t, err)
	require.Equal(t, 1, f.pools.Count())

	require.NoError(t, f.svc.Shutdown())
	assert.Equal(t, 0, f.pools.Count())
}
