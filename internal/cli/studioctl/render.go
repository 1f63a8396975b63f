package studioctl

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/nl2sqlstudio/studio/internal/result"
	"github.com/nl2sqlstudio/studio/internal/schema"
)

const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

func renderTable(w io.Writer, format string, t result.Table) error {
	switch format {
	case formatCSV:
		return result.WriteCSV(w, t)
	case formatJSON:
		return writeJSON(w, t.Records())
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(t.Columns)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	for _, row := range t.Rows {
		out := make([]string, len(t.Columns))
		for i := range out {
			if i < len(row) {
				out[i] = result.FormatValue(row[i])
			}
		}
		table.Append(out)
	}
	table.Render()
	if t.Truncated {
		_, _ = fmt.Fprintf(w, "(showing the first %d rows)\n", len(t.Rows))
	}
	return nil
}

func renderSchema(w io.Writer, format string, description schema.Description) error {
	switch format {
	case formatJSON:
		return writeJSON(w, description)
	case formatCSV:
		return renderTable(w, formatCSV, schemaTable(description))
	}
	_, err := io.WriteString(w, description.Text())
	return err
}

func schemaTable(description schema.Description) result.Table {
	t := result.Table{Columns: []string{"table", "column", "type"}, Rows: [][]any{}}
	for _, table := range description.Tables {
		for _, column := range table.Columns {
			t.Rows = append(t.Rows, []any{table.QualifiedName(), column.Name, column.Type})
		}
	}
	return t
}

func renderNames(w io.Writer, format string, header string, names []string) error {
	if format == formatTable {
		for _, name := range names {
			if _, err := fmt.Fprintln(w, name); err != nil {
				return err
			}
		}
		return nil
	}
	t := result.Table{Columns: []string{header}, Rows: make([][]any, 0, len(names))}
	for _, name := range names {
		t.Rows = append(t.Rows, []any{name})
	}
	return renderTable(w, format, t)
}

// exportTable writes t to path, picking Parquet or CSV from the extension.
func exportTable(path string, t result.Table) error {
	var write func(io.Writer, result.Table) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet":
		write = result.WriteParquet
	case ".csv":
		write = result.WriteCSV
	default:
		return fmt.Errorf("unsupported export file %q: use .csv or .parquet", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	if err := write(file, t); err != nil {
		_ = file.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write export file: %w", err)
	}
	return file.Close()
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
