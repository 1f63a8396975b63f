// Package query defines the statement execution contract shared by the
// pipeline and its engines.
package query

import (
	"context"
	"time"
)

type Request struct {
	SQL  string
	Args []any
	// RowLimit caps fetched rows; zero means no cap.
	RowLimit int
}

type Result struct {
	Columns []string
	// ColumnTypes holds the driver's declared type per column, upper case,
	// or "" when the driver does not report one.
	ColumnTypes []string
	Rows        [][]any
	Truncated   bool
	Duration    time.Duration
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}
