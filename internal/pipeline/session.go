// Package pipeline answers natural-language questions against one open
// database: translate, classify, execute, normalize.
package pipeline

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nl2sqlstudio/studio/internal/datasource"
	"github.com/nl2sqlstudio/studio/internal/nl2sql"
	"github.com/nl2sqlstudio/studio/internal/observability"
	"github.com/nl2sqlstudio/studio/internal/query"
	"github.com/nl2sqlstudio/studio/internal/query/sqldb"
	"github.com/nl2sqlstudio/studio/internal/result"
	"github.com/nl2sqlstudio/studio/internal/schema"
)

type Options struct {
	Source     datasource.Config
	Translator nl2sql.Translator
	// RowLimit caps rows per statement; zero disables the cap.
	RowLimit          int
	GenerationTimeout time.Duration
	QueryTimeout      time.Duration
	AllowMutations    bool
	PreviewRows       int
	Logger            *slog.Logger
}

type Answer struct {
	Question           string
	Translation        nl2sql.Result
	Table              result.Table
	Chart              *result.Chart
	GenerationDuration time.Duration
	ExecutionDuration  time.Duration
}

// Session owns one data source and its schema for its whole lifetime.
// Calls are serialized: one question is fully resolved before the next.
type Session struct {
	mu      sync.Mutex
	source  *datasource.Source
	engine  query.Engine
	schema  schema.Description
	options Options
	logger  *slog.Logger
}

func Open(ctx context.Context, options Options) (*Session, error) {
	source, err := datasource.Open(ctx, options.Source)
	if err != nil {
		return nil, &DataSourceError{Op: "open", Err: err}
	}
	session, err := NewSession(ctx, source, options)
	if err != nil {
		_ = source.Close()
		return nil, err
	}
	return session, nil
}

// NewSession extracts the schema of an already opened source. The session
// takes ownership of source.
func NewSession(ctx context.Context, source *datasource.Source, options Options) (*Session, error) {
	db, err := source.DB()
	if err != nil {
		return nil, &DataSourceError{Op: "open", Err: err}
	}
	description, err := schema.Extract(ctx, source)
	if err != nil {
		return nil, &DataSourceError{Op: "extract schema", Err: err}
	}
	if options.PreviewRows <= 0 {
		options.PreviewRows = 100
	}
	logger := options.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	observability.IncrementSessionsOpened()
	logger.Info("session_opened",
		slog.String("dialect", source.Dialect().Name),
		slog.String("database", source.Label()),
		slog.Int("tables", len(description.Tables)),
	)
	return &Session{
		source:  source,
		engine:  sqldb.NewEngine(db),
		schema:  description,
		options: options,
		logger:  logger,
	}, nil
}

func (s *Session) Schema() schema.Description {
	return s.schema
}

func (s *Session) Tables() []string {
	return s.schema.TableNames()
}

func (s *Session) Dialect() datasource.Dialect {
	return s.source.Dialect()
}

func (s *Session) Label() string {
	return s.source.Label()
}

// Ping checks the data source is still reachable. While a call holds the
// session the source counts as reachable and no ping is sent, since the
// source's only connection is busy.
func (s *Session) Ping(ctx context.Context) error {
	db, err := s.source.DB()
	if err != nil {
		return &DataSourceError{Op: "ping", Err: err}
	}
	if !s.mu.TryLock() {
		return nil
	}
	defer s.mu.Unlock()
	if err := db.PingContext(ctx); err != nil {
		return &DataSourceError{Op: "ping", Err: err}
	}
	return nil
}

// Preview returns up to limit rows of a table from the schema. A
// non-positive limit uses the configured preview size.
func (s *Session) Preview(ctx context.Context, table string, limit int) (result.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	described, ok := s.schema.Lookup(table)
	if !ok {
		return result.Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if limit <= 0 {
		limit = s.options.PreviewRows
	}
	statement := s.source.Dialect().PreviewStatement(described.Schema, described.Name, limit)
	return s.run(ctx, statement, limit)
}

// Translate only generates the statement.
func (s *Session) Translate(ctx context.Context, question string) (nl2sql.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	translation, _, err := s.translate(ctx, question)
	return translation, err
}

// Execute classifies and runs a caller supplied statement.
func (s *Session) Execute(ctx context.Context, statement string) (result.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.authorize(statement); err != nil {
		return result.Table{}, err
	}
	return s.run(ctx, statement, s.options.RowLimit)
}

// Ask runs the whole pipeline for one question. On error no table is
// returned and the session stays usable.
func (s *Session) Ask(ctx context.Context, question string) (Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	answer, err := s.ask(ctx, question)
	observability.ObserveQuestion(Outcome(err))
	if err != nil {
		s.logger.Warn("question_failed",
			slog.Int("question_length", len(question)),
			slog.String("statement", answer.Translation.SQL),
			slog.String("error_kind", Outcome(err)),
			slog.String("error", err.Error()),
		)
		return Answer{Question: question, Translation: answer.Translation}, err
	}
	s.logger.Info("question_answered",
		slog.Int("question_length", len(question)),
		slog.String("statement", answer.Translation.SQL),
		slog.Int("rows", len(answer.Table.Rows)),
		slog.Bool("truncated", answer.Table.Truncated),
		slog.Bool("cached", answer.Translation.Cached),
		slog.Int64("generation_ms", answer.GenerationDuration.Milliseconds()),
		slog.Int64("execution_ms", answer.ExecutionDuration.Milliseconds()),
	)
	return answer, nil
}

func (s *Session) ask(ctx context.Context, question string) (Answer, error) {
	answer := Answer{Question: question}
	if _, err := s.source.DB(); err != nil {
		return answer, &DataSourceError{Op: "query", Err: err}
	}

	translation, elapsed, err := s.translate(ctx, question)
	answer.Translation = translation
	answer.GenerationDuration = elapsed
	if err != nil {
		return answer, err
	}

	if err := s.authorize(translation.SQL); err != nil {
		return answer, err
	}

	start := time.Now()
	table, err := s.run(ctx, translation.SQL, s.options.RowLimit)
	answer.ExecutionDuration = time.Since(start)
	if err != nil {
		return answer, err
	}
	answer.Table = table
	if chart, ok := result.SelectChart(table); ok {
		answer.Chart = &chart
	}
	return answer, nil
}

func (s *Session) translate(ctx context.Context, question string) (nl2sql.Result, time.Duration, error) {
	if s.options.Translator == nil {
		return nl2sql.Result{}, 0, &GenerationServiceError{Err: ErrTranslatorNotConfigured}
	}
	generationCtx := ctx
	if s.options.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		generationCtx, cancel = context.WithTimeout(ctx, s.options.GenerationTimeout)
		defer cancel()
	}

	start := time.Now()
	translation, err := s.options.Translator.Translate(generationCtx, nl2sql.Request{
		Question: question,
		Schema:   s.schema,
		Dialect:  s.source.Dialect().DisplayName,
	})
	elapsed := time.Since(start)
	if !translation.Cached {
		observability.ObserveGeneration(elapsed)
	}
	if err != nil {
		return nl2sql.Result{}, elapsed, newGenerationError(generationCtx, err)
	}
	if !translation.Cached {
		observability.ObserveGenerationTokens(translation.Usage.Prompt, translation.Usage.Completion)
	}
	return translation, elapsed, nil
}

func (s *Session) authorize(statement string) error {
	if s.options.AllowMutations {
		return nil
	}
	classification := query.Classify(statement)
	if !classification.ReadOnly() {
		return &StatementRejectedError{Statement: statement, Classification: classification}
	}
	return nil
}

func (s *Session) run(ctx context.Context, statement string, rowLimit int) (result.Table, error) {
	if _, err := s.source.DB(); err != nil {
		return result.Table{}, &DataSourceError{Op: "query", Err: err}
	}
	if s.options.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.options.QueryTimeout)
		defer cancel()
	}

	executed, err := s.engine.Execute(ctx, query.Request{SQL: statement, RowLimit: rowLimit})
	if err != nil {
		if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
			return result.Table{}, &DataSourceError{Op: "query", Err: err}
		}
		return result.Table{}, &QueryExecutionError{Statement: statement, Err: err}
	}
	observability.ObserveStatement(executed.Duration, len(executed.Rows))
	return result.FromQuery(executed), nil
}

// Close waits for an in-flight call, then closes the data source.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source.Close()
}
