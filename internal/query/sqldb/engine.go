// Package sqldb executes statements over a database/sql handle.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/nl2sqlstudio/studio/internal/query"
)

var (
	ErrNoDatabase   = errors.New("database is not configured")
	ErrEmptyRequest = errors.New("sql is required")
)

// Engine runs one statement at a time against db. Rows beyond the request
// row limit are not scanned and the result is marked truncated. Driver
// errors are returned as is so callers can show the engine's message.
type Engine struct {
	db *sql.DB
}

func NewEngine(db *sql.DB) *Engine {
	return &Engine{db: db}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if e.db == nil {
		return query.Result{}, ErrNoDatabase
	}
	statement := trimStatement(request.SQL)
	if statement == "" {
		return query.Result{}, ErrEmptyRequest
	}

	start := time.Now()
	rows, err := e.db.QueryContext(ctx, statement, request.Args...)
	if err != nil {
		return query.Result{}, err
	}
	defer func() { _ = rows.Close() }()

	out, err := collect(rows, request.RowLimit)
	if err != nil {
		return query.Result{}, err
	}
	out.Duration = time.Since(start)
	return out, nil
}

func collect(rows *sql.Rows, limit int) (query.Result, error) {
	columns, err := rows.Columns()
	if err != nil {
		return query.Result{}, err
	}
	out := query.Result{
		Columns:     columns,
		ColumnTypes: declaredTypes(rows, len(columns)),
		Rows:        [][]any{},
	}

	cells := make([]any, len(columns))
	targets := make([]any, len(columns))
	for i := range cells {
		targets[i] = &cells[i]
	}
	for rows.Next() {
		if limit > 0 && len(out.Rows) == limit {
			out.Truncated = true
			break
		}
		if err := rows.Scan(targets...); err != nil {
			return query.Result{}, err
		}
		row := make([]any, len(cells))
		for i, cell := range cells {
			// Drivers may reuse byte buffers between rows.
			if raw, ok := cell.([]byte); ok {
				cell = string(raw)
			}
			row[i] = cell
		}
		out.Rows = append(out.Rows, row)
	}
	return out, rows.Err()
}

func declaredTypes(rows *sql.Rows, n int) []string {
	names := make([]string, n)
	types, err := rows.ColumnTypes()
	if err != nil {
		return names
	}
	for i, columnType := range types {
		if i < n {
			names[i] = strings.ToUpper(columnType.DatabaseTypeName())
		}
	}
	return names
}

// trimStatement drops surrounding space and trailing semicolons, which
// some drivers reject.
func trimStatement(statement string) string {
	return strings.TrimSpace(strings.TrimRight(strings.TrimSpace(statement), "; \t\r\n"))
}
