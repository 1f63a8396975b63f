// Package studioctl is the local command line for asking questions against a
// database file without running the API server.
package studioctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nl2sqlstudio/studio/internal/config"
	"github.com/nl2sqlstudio/studio/internal/datasource"
	"github.com/nl2sqlstudio/studio/internal/nl2sql"
	"github.com/nl2sqlstudio/studio/internal/pipeline"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

type Options struct {
	Config config.Config
	// Translator overrides the one built from Config.AI.
	Translator nl2sql.Translator

	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client

	// Stdin switches repl to plain line mode when set.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// runtimeError marks failures that happen after the arguments were accepted.
type runtimeError struct {
	err error
}

func (e *runtimeError) Error() string { return e.err.Error() }
func (e *runtimeError) Unwrap() error { return e.err }

func failed(err error) error {
	if err == nil {
		return nil
	}
	return &runtimeError{err: err}
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

// Run executes one command and returns the process exit code: 0 on success,
// 1 when the command failed, 2 on usage errors.
func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}
	r := &runner{options: defaults, stdout: stdout, stderr: stderr}
	r.options.Stdout = stdout
	r.options.Stderr = stderr
	if r.options.Logger == nil {
		r.options.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	root := r.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	_, _ = fmt.Fprintf(stderr, "error: %v\n", err)
	var rtErr *runtimeError
	if errors.As(err, &rtErr) {
		return exitFailure
	}
	return exitUsage
}

type runner struct {
	options Options
	stdout  io.Writer
	stderr  io.Writer

	db             string
	dialect        string
	format         string
	allowMutations bool
	rowLimit       int
}

func (r *runner) rootCommand() *cobra.Command {
	cfg := r.options.Config
	root := &cobra.Command{
		Use:           "studioctl",
		Short:         "Ask a database questions in plain language",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Usage()
			return &usageError{msg: "a command is required"}
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&r.db, "db", firstNonEmpty(cfg.DataSource.DSN, "MiniCRM.db"), "Database file or DSN.")
	flags.StringVar(&r.dialect, "dialect", firstNonEmpty(cfg.DataSource.Dialect, "sqlite"), "sqlite, duckdb, postgres or sqlserver.")
	flags.StringVar(&r.format, "format", formatTable, "Output format: table, csv or json.")
	flags.BoolVar(&r.allowMutations, "allow-mutations", cfg.Query.AllowMutations, "Execute statements that modify data.")
	flags.IntVar(&r.rowLimit, "row-limit", cfg.Query.RowLimit, "Maximum rows per statement, 0 for no limit.")
	flags.StringVar(&r.options.BaseURL, "base-url", firstNonEmpty(r.options.BaseURL, "http://localhost:8080"), "API base URL for server commands.")
	flags.StringVar(&r.options.APIKey, "api-key", r.options.APIKey, "API key for server commands.")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		switch r.format {
		case formatTable, formatCSV, formatJSON:
			return nil
		default:
			return &usageError{msg: fmt.Sprintf("unknown format %q", r.format)}
		}
	}

	root.AddCommand(
		r.schemaCommand(),
		r.tablesCommand(),
		r.previewCommand(),
		r.askCommand(),
		r.sqlCommand(),
		r.replCommand(),
		r.serverCommand(),
		r.demoCommand(),
	)
	return root
}

// openSession opens the database named by the global flags.
func (r *runner) openSession(ctx context.Context) (*pipeline.Session, error) {
	translator, err := r.translator()
	if err != nil {
		return nil, err
	}
	cfg := r.options.Config
	source := datasource.Config{
		Dialect:  r.dialect,
		DSN:      r.db,
		ReadOnly: !r.allowMutations,
	}
	return pipeline.Open(ctx, pipeline.Options{
		Source:            source,
		Translator:        translator,
		RowLimit:          r.rowLimit,
		GenerationTimeout: cfg.AI.Timeout,
		QueryTimeout:      cfg.Query.Timeout,
		AllowMutations:    r.allowMutations,
		PreviewRows:       cfg.DataSource.PreviewRows,
		Logger:            r.options.Logger,
	})
}

func (r *runner) translator() (nl2sql.Translator, error) {
	if r.options.Translator != nil {
		return r.options.Translator, nil
	}
	return nl2sql.FromConfig(r.options.Config.AI)
}

// withSession opens a session for the duration of fn.
func (r *runner) withSession(cmd *cobra.Command, fn func(*pipeline.Session) error) error {
	session, err := r.openSession(cmd.Context())
	if err != nil {
		return failed(err)
	}
	defer func() { _ = session.Close() }()
	return failed(fn(session))
}

func exactArgs(n int, name string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return &usageError{msg: fmt.Sprintf("%s requires exactly %d argument(s)", name, n)}
		}
		return nil
	}
}

func minimumArgs(n int, name string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) < n {
			return &usageError{msg: fmt.Sprintf("%s requires at least %d argument(s)", name, n)}
		}
		return nil
	}
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
