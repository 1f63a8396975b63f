package studioctl

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nl2sqlstudio/studio/internal/datasource"
	"github.com/nl2sqlstudio/studio/internal/demo"
	"github.com/nl2sqlstudio/studio/internal/pipeline"
)

func (r *runner) schemaCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the tables and columns of the database",
		Args:  exactArgs(0, "schema"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, func(session *pipeline.Session) error {
				return renderSchema(r.stdout, r.format, session.Schema())
			})
		},
	}
}

func (r *runner) tablesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List table names",
		Args:  exactArgs(0, "tables"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, func(session *pipeline.Session) error {
				return renderNames(r.stdout, r.format, "table", session.Tables())
			})
		},
	}
}

func (r *runner) previewCommand() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "preview <table>",
		Short: "Show the first rows of a table",
		Args:  exactArgs(1, "preview"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 || limit > 1000 {
				return &usageError{msg: "limit must be between 1 and 1000"}
			}
			return r.withSession(cmd, func(session *pipeline.Session) error {
				table, err := session.Preview(cmd.Context(), args[0], limit)
				if err != nil {
					return err
				}
				return renderTable(r.stdout, r.format, table)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Rows to show; defaults to the configured preview size.")
	return cmd
}

func (r *runner) askCommand() *cobra.Command {
	var showSQL bool
	var out string
	cmd := &cobra.Command{
		Use:   "ask <question...>",
		Short: "Translate a question to SQL and run it",
		Args:  minimumArgs(1, "ask"),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(strings.Join(args, " "))
			if question == "" {
				return &usageError{msg: "question must not be empty"}
			}
			return r.withSession(cmd, func(session *pipeline.Session) error {
				return r.ask(cmd, session, question, showSQL, out)
			})
		},
	}
	cmd.Flags().BoolVar(&showSQL, "show-sql", false, "Print the generated statement.")
	cmd.Flags().StringVar(&out, "out", "", "Also write the result to a .csv or .parquet file.")
	return cmd
}

func (r *runner) ask(cmd *cobra.Command, session *pipeline.Session, question string, showSQL bool, out string) error {
	answer, err := session.Ask(cmd.Context(), question)
	if showSQL && answer.Translation.SQL != "" {
		_, _ = fmt.Fprintf(r.stdout, "SQL: %s\n", answer.Translation.SQL)
	}
	if err != nil {
		return err
	}
	if err := renderTable(r.stdout, r.format, answer.Table); err != nil {
		return err
	}
	if out != "" {
		if err := exportTable(out, answer.Table); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(r.stderr, "wrote %d rows to %s\n", len(answer.Table.Rows), out)
	}
	return nil
}

func (r *runner) sqlCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sql <statement...>",
		Short: "Run a SQL statement directly",
		Args:  minimumArgs(1, "sql"),
		RunE: func(cmd *cobra.Command, args []string) error {
			statement := strings.TrimSpace(strings.Join(args, " "))
			if statement == "" {
				return &usageError{msg: "statement must not be empty"}
			}
			return r.withSession(cmd, func(session *pipeline.Session) error {
				table, err := session.Execute(cmd.Context(), statement)
				if err != nil {
					return err
				}
				return renderTable(r.stdout, r.format, table)
			})
		},
	}
}

func (r *runner) demoCommand() *cobra.Command {
	options := demo.DefaultOptions()
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Create the MiniCRM sample database at --db",
		Args:  exactArgs(0, "demo"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if r.dialect != datasource.SQLite {
				return &usageError{msg: "demo databases are SQLite only"}
			}
			summary, err := demo.Create(cmd.Context(), r.db, options)
			if err != nil {
				return failed(err)
			}
			_, _ = fmt.Fprintf(r.stdout, "created %s: %d customers, %d deals, %d activities\n", r.db, summary.Customers, summary.Deals, summary.Activities)
			return nil
		},
	}
	cmd.Flags().IntVar(&options.Customers, "customers", options.Customers, "Number of customers to generate.")
	cmd.Flags().Int64Var(&options.Seed, "seed", options.Seed, "Random seed; the same seed yields the same rows.")
	cmd.Flags().BoolVar(&options.Overwrite, "force", false, "Replace an existing file.")
	return cmd
}
