package studioctl

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/spf13/cobra"

	"github.com/nl2sqlstudio/studio/internal/pipeline"
)

const replHelp = `Type a question to ask it, or one of:
  .tables            list tables
  .schema            print the schema
  .preview <table>   show the first rows of a table
  .sql <statement>   run a statement directly
  exit               leave`

func (r *runner) replCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Ask questions interactively",
		Args:  exactArgs(0, "repl"),
		RunE: func(cmd *cobra.Command, args []string) error {
			return r.withSession(cmd, func(session *pipeline.Session) error {
				_, _ = fmt.Fprintf(r.stdout, "connected to %s (%s)\n%s\n", session.Label(), session.Dialect().DisplayName, replHelp)
				if r.options.Stdin != nil {
					return r.readLines(cmd.Context(), session)
				}
				r.prompt(cmd.Context(), session)
				return nil
			})
		},
	}
}

func (r *runner) readLines(ctx context.Context, session *pipeline.Session) error {
	scanner := bufio.NewScanner(r.options.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !r.replLine(ctx, session, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

func (r *runner) prompt(ctx context.Context, session *pipeline.Session) {
	done := false
	p := prompt.New(
		func(line string) {
			if !r.replLine(ctx, session, line) {
				done = true
			}
		},
		replCompleter(session.Tables()),
		prompt.OptionPrefix("studio> "),
		prompt.OptionTitle("studioctl"),
		prompt.OptionSetExitCheckerOnInput(func(in string, breakline bool) bool {
			return done || (breakline && isExit(in))
		}),
	)
	p.Run()
}

// replLine handles one input line and reports whether the loop continues.
// Failures are printed and do not end the loop.
func (r *runner) replLine(ctx context.Context, session *pipeline.Session, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	if isExit(line) {
		return false
	}

	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	var err error
	switch command {
	case ".help":
		_, err = fmt.Fprintln(r.stdout, replHelp)
	case ".tables":
		err = renderNames(r.stdout, r.format, "table", session.Tables())
	case ".schema":
		err = renderSchema(r.stdout, r.format, session.Schema())
	case ".preview":
		err = r.replPreview(ctx, session, rest)
	case ".sql":
		err = r.replSQL(ctx, session, rest)
	default:
		if strings.HasPrefix(command, ".") {
			err = fmt.Errorf("unknown command %s, try .help", command)
			break
		}
		answer, askErr := session.Ask(ctx, line)
		if answer.Translation.SQL != "" {
			_, _ = fmt.Fprintf(r.stdout, "SQL: %s\n", answer.Translation.SQL)
		}
		err = askErr
		if err == nil {
			err = renderTable(r.stdout, r.format, answer.Table)
		}
	}
	if err != nil {
		_, _ = fmt.Fprintf(r.stderr, "error: %v\n", err)
	}
	return true
}

func (r *runner) replPreview(ctx context.Context, session *pipeline.Session, table string) error {
	if table == "" {
		return fmt.Errorf(".preview needs a table name")
	}
	preview, err := session.Preview(ctx, table, 0)
	if err != nil {
		return err
	}
	return renderTable(r.stdout, r.format, preview)
}

func (r *runner) replSQL(ctx context.Context, session *pipeline.Session, statement string) error {
	if statement == "" {
		return fmt.Errorf(".sql needs a statement")
	}
	table, err := session.Execute(ctx, statement)
	if err != nil {
		return err
	}
	return renderTable(r.stdout, r.format, table)
}

func isExit(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit", `\q`:
		return true
	}
	return false
}

func replCompleter(tables []string) prompt.Completer {
	suggestions := []prompt.Suggest{
		{Text: ".tables", Description: "list tables"},
		{Text: ".schema", Description: "print the schema"},
		{Text: ".preview", Description: "show the first rows of a table"},
		{Text: ".sql", Description: "run a statement directly"},
		{Text: "exit", Description: "leave"},
	}
	for _, table := range tables {
		suggestions = append(suggestions, prompt.Suggest{Text: table, Description: "table"})
	}
	return func(d prompt.Document) []prompt.Suggest {
		word := d.GetWordBeforeCursor()
		if word == "" {
			return nil
		}
		return prompt.FilterHasPrefix(suggestions, word, true)
	}
}
