package datasource

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	SQLite    = "sqlite"
	DuckDB    = "duckdb"
	Postgres  = "postgres"
	SQLServer = "sqlserver"
)

// Dialect describes how to reach and address one database engine.
type Dialect struct {
	Name          string
	Driver        string
	DisplayName   string
	DefaultSchema string
	FileBased     bool
	bracketQuotes bool
	topClause     bool
}

var dialects = map[string]Dialect{
	SQLite:    {Name: SQLite, Driver: "sqlite", DisplayName: "SQLite", FileBased: true},
	DuckDB:    {Name: DuckDB, Driver: "duckdb", DisplayName: "DuckDB", DefaultSchema: "main", FileBased: true},
	Postgres:  {Name: Postgres, Driver: "pgx", DisplayName: "PostgreSQL", DefaultSchema: "public"},
	SQLServer: {Name: SQLServer, Driver: "sqlserver", DisplayName: "Microsoft SQL Server (T-SQL)", DefaultSchema: "dbo", bracketQuotes: true, topClause: true},
}

func LookupDialect(name string) (Dialect, error) {
	dialect, ok := dialects[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnknownDialect, name)
	}
	return dialect, nil
}

func (d Dialect) QuoteIdent(value string) string {
	if d.bracketQuotes {
		return "[" + strings.ReplaceAll(value, "]", "]]") + "]"
	}
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}

// QualifiedName quotes schemaName.tableName, leaving out the schema when it
// is empty or the dialect default.
func (d Dialect) QualifiedName(schemaName, tableName string) string {
	if schemaName == "" || schemaName == d.DefaultSchema {
		return d.QuoteIdent(tableName)
	}
	return d.QuoteIdent(schemaName) + "." + d.QuoteIdent(tableName)
}

func (d Dialect) PreviewStatement(schemaName, tableName string, limit int) string {
	target := d.QualifiedName(schemaName, tableName)
	if d.topClause {
		return "SELECT TOP (" + strconv.Itoa(limit) + ") * FROM " + target
	}
	return "SELECT * FROM " + target + " LIMIT " + strconv.Itoa(limit)
}
