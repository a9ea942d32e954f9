// Package executor runs ad-hoc SQL against a pooled handle and normalizes
// the heterogeneous driver rows into one tabular shape.
package executor

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/sqldeck/sqldeck/core/pool"
	apperrors "github.com/sqldeck/sqldeck/core/shared/errors"
)

// QueryResult is the uniform tabular result. Every row holds exactly
// len(Columns) values. Zero columns and zero rows means "statement executed,
// no tabular output"; a query that matched nothing keeps its column list and
// has zero rows.
type QueryResult struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// AffectedRowsColumn is the synthetic column name for command results
const AffectedRowsColumn = "affected_rows"

// StatusColumn is the synthetic column for engines that cannot report a
// reliable mutation count
const StatusColumn = "status"

// AffectedRows extracts the mutation count from a command-style result.
// The second return is false for tabular results and for engines that only
// report a success status.
func (r *QueryResult) AffectedRows() (int64, bool) {
	if len(r.Columns) != 1 || r.Columns[0] != AffectedRowsColumn || len(r.Rows) != 1 {
		return 0, false
	}
	n, ok := r.Rows[0][0].(int64)
	return n, ok
}

// rowProducingKeywords lead statements whose natural form is a result set.
// Everything else is attempted as a command first. Either path falls back to
// the other on error; when both fail, the command-form error wins because it
// carries the more specific SQL error.
var rowProducingKeywords = map[string]struct{}{
	"SELECT":   {},
	"WITH":     {},
	"SHOW":     {},
	"PRAGMA":   {},
	"EXPLAIN":  {},
	"DESCRIBE": {},
	"DESC":     {},
	"VALUES":   {},
	"TABLE":    {},
}

// Run executes one SQL statement against the handle and returns the
// normalized result or a typed ExecutionError. No partial results: callers
// get a complete QueryResult or an error, never both.
func Run(ctx context.Context, h *pool.Handle, sqlText string) (*QueryResult, error) {
	if isRowProducing(sqlText) {
		if res, err := runQuery(ctx, h.DB, sqlText); err == nil {
			return res, nil
		}
		res, cmdErr := runCommand(ctx, h, sqlText)
		if cmdErr != nil {
			return nil, executionError(cmdErr)
		}
		return res, nil
	}

	res, cmdErr := runCommand(ctx, h, sqlText)
	if cmdErr == nil {
		return res, nil
	}
	if res, err := runQuery(ctx, h.DB, sqlText); err == nil {
		return res, nil
	}
	return nil, executionError(cmdErr)
}

func executionError(err error) error {
	return apperrors.NewAppError(apperrors.ErrCodeExecution, "SQL execution failed", err)
}

// isRowProducing classifies the statement by its leading keyword, skipping
// whitespace and comments.
func isRowProducing(sqlText string) bool {
	_, ok := rowProducingKeywords[leadingKeyword(sqlText)]
	return ok
}

func leadingKeyword(sqlText string) string {
	s := sqlText
	for {
		s = strings.TrimLeft(s, " \t\r\n;(")
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.IndexByte(s, '\n'); i >= 0 {
				s = s[i+1:]
				continue
			}
			return ""
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
				continue
			}
			return ""
		}
		break
	}
	end := strings.IndexFunc(s, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\r' || r == '\n' || r == '(' || r == ';'
	})
	if end >= 0 {
		s = s[:end]
	}
	return strings.ToUpper(s)
}

func runQuery(ctx context.Context, db *sql.DB, sqlText string) (*QueryResult, error) {
	rows, err := db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	// The driver's row descriptor is available even for zero-row results,
	// so column names never require re-running the statement.
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: cols, Rows: [][]any{}}
	if result.Columns == nil {
		result.Columns = []string{}
	}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		out := make([]any, len(cols))
		for i, v := range values {
			out[i] = normalizeValue(v)
		}
		result.Rows = append(result.Rows, out)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func runCommand(ctx context.Context, h *pool.Handle, sqlText string) (*QueryResult, error) {
	res, err := h.DB.ExecContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	if !h.Engine.ReportsAffectedRows() {
		return &QueryResult{
			Columns: []string{StatusColumn},
			Rows:    [][]any{{"success"}},
		}, nil
	}
	affected, err := res.RowsAffected()
	if err != nil {
		// Driver executed the statement but cannot report a count.
		return &QueryResult{
			Columns: []string{StatusColumn},
			Rows:    [][]any{{"success"}},
		}, nil
	}
	return &QueryResult{
		Columns: []string{AffectedRowsColumn},
		Rows:    [][]any{{affected}},
	}, nil
}

const (
	timeLayout     = "2006-01-02 15:04:05"
	timeLayoutFrac = "2006-01-02 15:04:05.999999999"
)

// normalizeValue maps a driver value onto the uniform typed-value set. The
// arm order is a contract: string forms first, then integers before floats
// (integral floats must not shadow integer columns), booleans, timestamps
// rendered to their canonical string form last, and null for anything the
// chain cannot decode.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		return t
	case []byte:
		return string(t)
	case int64:
		return t
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case int16:
		return int64(t)
	case int8:
		return int64(t)
	case uint64:
		return int64(t)
	case uint32:
		return int64(t)
	case uint16:
		return int64(t)
	case uint8:
		return int64(t)
	case float64:
		return t
	case float32:
		return float64(t)
	case bool:
		return t
	case time.Time:
		return formatTime(t)
	default:
		return nil
	}
}

func formatTime(t time.Time) string {
	if t.Nanosecond() != 0 {
		return t.Format(timeLayoutFrac)
	}
	return t.Format(timeLayout)
}
