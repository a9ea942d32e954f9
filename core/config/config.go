// Package config models the engine-specific parameters of a registered
// connection as a tagged union: one variant per engine kind, decoded from a
// loosely-typed JSON parameter bag and validated before anything touches the
// network.
package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/sqldeck/sqldeck/core/shared/errors"
)

// EngineKind identifies a supported database engine
type EngineKind string

const (
	KindSQLite   EngineKind = "sqlite"
	KindMySQL    EngineKind = "mysql"
	KindPostgres EngineKind = "postgres"
	KindMSSQL    EngineKind = "mssql"
)

// Valid reports whether the kind names a supported engine
func (k EngineKind) Valid() bool {
	switch k {
	case KindSQLite, KindMySQL, KindPostgres, KindMSSQL:
		return true
	}
	return false
}

// DisplayName returns the engine's user-facing name
func (k EngineKind) DisplayName() string {
	switch k {
	case KindSQLite:
		return "SQLite"
	case KindMySQL:
		return "MySQL"
	case KindPostgres:
		return "PostgreSQL"
	case KindMSSQL:
		return "SQL Server"
	}
	return string(k)
}

// EngineConfig is the closed union of per-engine connection parameters.
// The variant tag always matches the owning Connection's engine kind.
type EngineConfig interface {
	Kind() EngineKind
}

// SQLiteConfig holds parameters for the file-embedded engine
type SQLiteConfig struct {
	Filepath string `json:"filepath" validate:"required"`
}

// Kind implements EngineConfig
func (*SQLiteConfig) Kind() EngineKind { return KindSQLite }

// MySQLConfig holds parameters for a MySQL server
type MySQLConfig struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSL      bool   `json:"ssl"`
}

// Kind implements EngineConfig
func (*MySQLConfig) Kind() EngineKind { return KindMySQL }

// PostgresConfig holds parameters for a PostgreSQL server
type PostgresConfig struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSL      bool   `json:"ssl"`
}

// Kind implements EngineConfig
func (*PostgresConfig) Kind() EngineKind { return KindPostgres }

// MSSQLConfig holds parameters for a SQL Server instance. Unlike the other
// network engines it is handed to the driver as a structured config object,
// not a connection string.
type MSSQLConfig struct {
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	User     string `json:"user" validate:"required"`
	Password string `json:"password"`
	Database string `json:"database"`
	// Encrypt enables TLS for the TDS stream; TrustServerCertificate skips
	// certificate verification when it is on.
	Encrypt                bool `json:"encrypt"`
	TrustServerCertificate bool `json:"trustServerCertificate"`
}

// Kind implements EngineConfig
func (*MSSQLConfig) Kind() EngineKind { return KindMSSQL }

// Connection is the registry-owned record the core reads. The core never
// mutates it; cached pool state keyed on ID must be invalidated when the
// registry mutates or deletes the record.
type Connection struct {
	ID     string       `json:"id"`
	Name   string       `json:"name"`
	Kind   EngineKind   `json:"type"`
	Config EngineConfig `json:"config"`
}

// Validate checks the variant-tag invariant
func (c *Connection) Validate() error {
	if c.Config == nil {
		return apperrors.NewAppError(apperrors.ErrCodeConfig,
			fmt.Sprintf("connection %q has no engine config", c.ID), nil)
	}
	if c.Config.Kind() != c.Kind {
		return apperrors.NewAppError(apperrors.ErrCodeConfig,
			fmt.Sprintf("connection %q declares engine %q but carries a %q config", c.ID, c.Kind, c.Config.Kind()), nil)
	}
	return nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report field names as they appear in the parameter bag, not as Go
	// struct fields.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return fld.Name
		}
		return name
	})
	return v
}

// Decode turns an engine-kind tag plus a loosely-typed parameter bag into
// exactly one EngineConfig variant. Missing or mistyped required fields fail
// with a ConfigError naming the field and engine kind; unknown kinds fail
// with UnsupportedEngine.
func Decode(kind EngineKind, raw json.RawMessage) (EngineConfig, error) {
	var cfg EngineConfig
	switch kind {
	case KindSQLite:
		cfg = &SQLiteConfig{}
	case KindMySQL:
		cfg = &MySQLConfig{}
	case KindPostgres:
		cfg = &PostgresConfig{}
	case KindMSSQL:
		cfg = &MSSQLConfig{}
	default:
		return nil, apperrors.NewAppError(apperrors.ErrCodeUnsupportedEngine,
			fmt.Sprintf("unsupported engine kind %q", kind), nil)
	}
	if err := decodeBag(kind, raw, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeBag(kind EngineKind, raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if stderrors.As(err, &typeErr) && typeErr.Field != "" {
			return apperrors.NewAppError(apperrors.ErrCodeConfig,
				fmt.Sprintf("field %q for %s connection must be a %s", typeErr.Field, kind, typeErr.Type.Kind()), err)
		}
		return apperrors.NewAppError(apperrors.ErrCodeConfig,
			fmt.Sprintf("invalid %s config", kind), err)
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) && len(verrs) > 0 {
			f := verrs[0]
			if f.Tag() == "required" {
				return apperrors.NewAppError(apperrors.ErrCodeConfig,
					fmt.Sprintf("missing %s for %s connection", f.Field(), kind), err)
			}
			return apperrors.NewAppError(apperrors.ErrCodeConfig,
				fmt.Sprintf("invalid %s for %s connection: %v", f.Field(), kind, f.Value()), err)
		}
		return apperrors.NewAppError(apperrors.ErrCodeConfig,
			fmt.Sprintf("invalid %s config", kind), err)
	}
	return nil
}
