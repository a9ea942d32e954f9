package engines

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldeck/sqldeck/core/config"
)

// Network engine tests run only when the matching environment variable
// points at a reachable server. The value is the JSON parameter bag the
// config layer decodes, e.g.
//
//	MYSQL_TEST_CONFIG='{"host":"127.0.0.1","port":3306,"user":"root","password":"secret","database":"test"}'
func engineFromEnv(t *testing.T, envVar string, kind config.EngineKind) (Engine, config.EngineConfig) {
	t.Helper()
	raw := os.Getenv(envVar)
	if raw == "" {
		t.Skipf("%s not set, skipping %s integration test", envVar, kind)
	}
	cfg, err := config.Decode(kind, json.RawMessage(raw))
	require.NoError(t, err)
	eng, err := ForKind(kind)
	require.NoError(t, err)
	return eng, cfg
}

func TestMySQL_Integration(t *testing.T) {
	eng, cfg := engineFromEnv(t, "MYSQL_TEST_CONFIG", config.KindMySQL)
	ctx := context.Background()

	db, err := eng.Open(ctx, cfg, "")
	require.NoError(t, err)
	defer db.Close()

	dbs, err := eng.ListDatabases(ctx, db)
	require.NoError(t, err)
	assert.NotEmpty(t, dbs)

	_, err = eng.ListTables(ctx, db, "information_schema")
	assert.NoError(t, err)
}

func TestPostgres_Integration(t *testing.T) {
	eng, cfg := engineFromEnv(t, "POSTGRES_TEST_CONFIG", config.KindPostgres)
	ctx := context.Background()

	db, err := eng.Open(ctx, cfg, "")
	require.NoError(t, err)
	defer db.Close()

	dbs, err := eng.ListDatabases(ctx, db)
	require.NoError(t, err)
	assert.NotEmpty(t, dbs)

	_, err = eng.ListTables(ctx, db, "")
	assert.NoError(t, err)
}

func TestMSSQL_Integration(t *testing.T) {
	eng, cfg := engineFromEnv(t, "MSSQL_TEST_CONFIG", config.KindMSSQL)
	ctx := context.Background()

	db, err := eng.Open(ctx, cfg, "")
	require.NoError(t, err)
	defer db.Close()

	dbs, err := eng.ListDatabases(ctx, db)
	require.NoError(t, err)
	_ = dbs // may be empty on a fresh instance

	_, err = eng.ListTables(ctx, db, "")
	assert.NoError(t, err)
}
