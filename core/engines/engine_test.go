package engines

import (
	"context"
	"testing"

	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqldeck/sqldeck/core/config"
	apperrors "github.com/sqldeck/sqldeck/core/shared/errors"
)

func TestForKind(t *testing.T) {
	for _, kind := range []config.EngineKind{config.KindSQLite, config.KindMySQL, config.KindPostgres, config.KindMSSQL} {
		eng, err := ForKind(kind)
		require.NoError(t, err, "kind %s", kind)
		assert.Equal(t, kind, eng.Kind())
	}

	_, err := ForKind("unsupported_engine")
	require.Error(t, err)
	assert.True(t, apperrors.IsUnsupportedEngine(err))
}

func TestPoolable(t *testing.T) {
	poolable := map[config.EngineKind]bool{
		config.KindSQLite:   true,
		config.KindMySQL:    true,
		config.KindPostgres: true,
		config.KindMSSQL:    false,
	}
	for kind, want := range poolable {
		eng, err := ForKind(kind)
		require.NoError(t, err)
		assert.Equal(t, want, eng.Poolable(), "kind %s", kind)
		// The non-poolable engine is also the one without reliable counts.
		assert.Equal(t, want, eng.ReportsAffectedRows(), "kind %s", kind)
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		name   string
		engine Engine
		ident  string
		want   string
	}{
		{"sqlite plain", sqliteEngine{}, "users", `"users"`},
		{"sqlite embedded quote", sqliteEngine{}, `us"ers`, `"us""ers"`},
		{"postgres embedded quote", postgresEngine{}, `t"; DROP TABLE x; --`, `"t""; DROP TABLE x; --"`},
		{"mysql plain", mysqlEngine{}, "orders", "`orders`"},
		{"mysql embedded backtick", mysqlEngine{}, "or`ders", "`or``ders`"},
		{"mssql plain", mssqlEngine{}, "orders", "[orders]"},
		{"mssql embedded bracket", mssqlEngine{}, "or]ders", "[or]]ders]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.engine.QuoteIdent(tt.ident))
		})
	}
}

func TestMySQLDSN(t *testing.T) {
	cfg := &config.MySQLConfig{
		Host:     "db.local",
		Port:     3306,
		User:     "root",
		Password: "secret",
		Database: "app",
	}

	dsn := mysqlEngine{}.dsn(cfg, "")
	assert.Contains(t, dsn, "root:secret@tcp(db.local:3306)/app")
	assert.Contains(t, dsn, "parseTime=true")
	assert.NotContains(t, dsn, "tls=")

	cfg.SSL = true
	dsn = mysqlEngine{}.dsn(cfg, "other")
	assert.Contains(t, dsn, "/other", "database override takes precedence")
	assert.Contains(t, dsn, "tls=skip-verify")
}

func TestPostgresDSN(t *testing.T) {
	cfg := &config.PostgresConfig{
		Host:     "db.local",
		Port:     5432,
		User:     "postgres",
		Password: "p@ss/word",
		Database: "app",
	}

	dsn := postgresEngine{}.dsn(cfg, "")
	assert.Contains(t, dsn, "postgres://")
	assert.Contains(t, dsn, "db.local:5432/app")
	assert.Contains(t, dsn, "sslmode=disable")
	assert.NotContains(t, dsn, "p@ss/word", "password must be URL-escaped")

	cfg.SSL = true
	dsn = postgresEngine{}.dsn(cfg, "analytics")
	assert.Contains(t, dsn, "/analytics", "database override takes precedence")
	assert.Contains(t, dsn, "sslmode=require")
}

func TestMSSQLDriverConfig(t *testing.T) {
	cfg := &config.MSSQLConfig{
		Host:     "db.local",
		Port:     1433,
		User:     "sa",
		Password: "secret",
		Database: "app",
	}

	dc := mssqlEngine{}.driverConfig(cfg, "")
	assert.Equal(t, "db.local", dc.Host)
	assert.Equal(t, uint64(1433), dc.Port)
	assert.Equal(t, "sa", dc.User)
	assert.Equal(t, "app", dc.Database)
	assert.Equal(t, msdsn.Encryption(msdsn.EncryptionDisabled), dc.Encryption)
	assert.Nil(t, dc.TLSConfig)

	cfg.Encrypt = true
	cfg.TrustServerCertificate = true
	dc = mssqlEngine{}.driverConfig(cfg, "override")
	assert.Equal(t, "override", dc.Database, "database override takes precedence")
	assert.Equal(t, msdsn.Encryption(msdsn.EncryptionRequired), dc.Encryption)
	require.NotNil(t, dc.TLSConfig)
	assert.True(t, dc.TLSConfig.InsecureSkipVerify)
	assert.Equal(t, "db.local", dc.TLSConfig.ServerName)
}

func TestOpen_ConfigMismatch(t *testing.T) {
	_, err := mysqlEngine{}.Open(context.Background(), &config.SQLiteConfig{Filepath: "/tmp/x"}, "")
	require.Error(t, err)
	assert.True(t, apperrors.IsConfigError(err))
}
