package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/nl2sqlstudio/studio/internal/nl2sql"
	"github.com/nl2sqlstudio/studio/internal/query"
)

var (
	ErrNoSession               = errors.New("no database is open")
	ErrUnknownTable            = errors.New("unknown table")
	ErrTranslatorNotConfigured = errors.New("generation service is not configured")
)

// DataSourceError means the database is missing, unreadable or closed.
type DataSourceError struct {
	Op  string
	Err error
}

func (e *DataSourceError) Error() string {
	return fmt.Sprintf("data source %s: %v", e.Op, e.Err)
}

func (e *DataSourceError) Unwrap() error {
	return e.Err
}

// GenerationServiceError wraps any failure of the text-generation call,
// including an expired generation deadline.
type GenerationServiceError struct {
	Err     error
	timeout bool
}

func (e *GenerationServiceError) Error() string {
	if e.timeout {
		return fmt.Sprintf("generation service timed out: %v", e.Err)
	}
	return fmt.Sprintf("generation service: %v", e.Err)
}

func (e *GenerationServiceError) Unwrap() error {
	return e.Err
}

func (e *GenerationServiceError) Timeout() bool {
	return e.timeout
}

// Retryable is true for timeouts, transport failures and throttling.
func (e *GenerationServiceError) Retryable() bool {
	if e.timeout {
		return true
	}
	var statusErr *nl2sql.StatusError
	if errors.As(e.Err, &statusErr) {
		return statusErr.Retryable()
	}
	return !errors.Is(e.Err, ErrTranslatorNotConfigured) &&
		!errors.Is(e.Err, nl2sql.ErrEmptyStatement) &&
		!errors.Is(e.Err, nl2sql.ErrTruncatedCompletion)
}

// QueryExecutionError carries the engine message unchanged.
type QueryExecutionError struct {
	Statement string
	Err       error
}

func (e *QueryExecutionError) Error() string {
	return e.Err.Error()
}

func (e *QueryExecutionError) Unwrap() error {
	return e.Err
}

// StatementRejectedError is returned for statements that are not a single
// read-only query while mutations are disabled.
type StatementRejectedError struct {
	Statement      string
	Classification query.Classification
}

func (e *StatementRejectedError) Error() string {
	switch e.Classification.Kind {
	case query.KindMultiple:
		return "statement rejected: only a single statement may be executed"
	case query.KindEmpty:
		return "statement rejected: statement is empty"
	default:
		return fmt.Sprintf("statement rejected: %s is not allowed, only read-only queries may be executed", e.Classification.Keyword)
	}
}

func newGenerationError(ctx context.Context, err error) *GenerationServiceError {
	return &GenerationServiceError{Err: err, timeout: isTimeout(ctx, err)}
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Outcome names err for metrics and logs.
func Outcome(err error) string {
	var (
		sourceErr     *DataSourceError
		generationErr *GenerationServiceError
		executionErr  *QueryExecutionError
		rejectedErr   *StatementRejectedError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &sourceErr):
		return "data_source_error"
	case errors.As(err, &generationErr):
		if generationErr.Timeout() {
			return "generation_timeout"
		}
		return "generation_error"
	case errors.As(err, &executionErr):
		return "execution_error"
	case errors.As(err, &rejectedErr):
		return "rejected"
	default:
		return "error"
	}
}
