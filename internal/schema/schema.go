// Package schema reads user table metadata from a data source and renders
// it as the text used to ground generation requests.
package schema

import (
	"strconv"
	"strings"

	"github.com/zeebo/xxh3"
)

type Column struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type Table struct {
	Schema  string   `json:"schema,omitempty"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// QualifiedName is schema.table for tables outside the default schema.
func (t Table) QualifiedName() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

func (t Table) ColumnNames() []string {
	names := make([]string, 0, len(t.Columns))
	for _, column := range t.Columns {
		names = append(names, column.Name)
	}
	return names
}

// Description is built once per session and not modified afterward.
type Description struct {
	Dialect string  `json:"dialect"`
	Tables  []Table `json:"tables"`
}

func (d Description) TableNames() []string {
	names := make([]string, 0, len(d.Tables))
	for _, table := range d.Tables {
		names = append(names, table.QualifiedName())
	}
	return names
}

// Lookup finds a table by its qualified name.
func (d Description) Lookup(name string) (Table, bool) {
	for _, table := range d.Tables {
		if table.QualifiedName() == name {
			return table, true
		}
	}
	return Table{}, false
}

// Text renders the prompt form:
//
//	Table: customers
//	  - id
//	  - name
//
// A description with no tables renders as the empty string.
func (d Description) Text() string {
	var b strings.Builder
	for _, table := range d.Tables {
		b.WriteString("Table: ")
		b.WriteString(table.QualifiedName())
		b.WriteString("\n")
		for _, column := range table.Columns {
			b.WriteString("  - ")
			b.WriteString(column.Name)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Fingerprint is stable for equal descriptions, column types included.
func (d Description) Fingerprint() string {
	var b strings.Builder
	b.WriteString(d.Dialect)
	for _, table := range d.Tables {
		b.WriteString("\x00t")
		b.WriteString(table.QualifiedName())
		for _, column := range table.Columns {
			b.WriteString("\x00c")
			b.WriteString(column.Name)
			b.WriteString("\x00")
			b.WriteString(column.Type)
		}
	}
	return strconv.FormatUint(xxh3.HashString(b.String()), 16)
}
