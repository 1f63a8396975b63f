// Package result holds executed statement output in the shape shown to
// users: unique column names, row maps, chart choice and file exports.
package result

import "github.com/nl2sqlstudio/studio/internal/query"

type Table struct {
	Columns []string `json:"columns"`
	// ColumnTypes are the declared database types, when known.
	ColumnTypes []string `json:"column_types,omitempty"`
	Rows        [][]any  `json:"rows"`
	Truncated   bool     `json:"truncated"`
}

// FromQuery builds a Table and repairs duplicate column names.
func FromQuery(result query.Result) Table {
	rows := result.Rows
	if rows == nil {
		rows = [][]any{}
	}
	return Table{
		Columns:     UniqueColumns(result.Columns),
		ColumnTypes: result.ColumnTypes,
		Rows:        rows,
		Truncated:   result.Truncated,
	}
}

// Records returns one map per row keyed by column name.
func (t Table) Records() []map[string]any {
	records := make([]map[string]any, 0, len(t.Rows))
	for _, row := range t.Rows {
		record := make(map[string]any, len(t.Columns))
		for i, column := range t.Columns {
			if i < len(row) {
				record[column] = row[i]
			}
		}
		records = append(records, record)
	}
	return records
}

func (t Table) Column(name string) (int, bool) {
	for i, column := range t.Columns {
		if column == name {
			return i, true
		}
	}
	return -1, false
}
