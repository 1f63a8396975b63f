package schema

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/nl2sqlstudio/studio/internal/datasource"
)

const sqliteTablesSQL = `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`

const sqliteColumnsSQL = `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`

const informationSchemaSQL = `SELECT c.table_schema, c.table_name, c.column_name, c.data_type
FROM information_schema.columns c
JOIN information_schema.tables t
  ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE t.table_type = 'BASE TABLE'
  AND c.table_schema NOT IN ('pg_catalog', 'information_schema', 'INFORMATION_SCHEMA', 'sys')
ORDER BY c.table_schema, c.table_name, c.ordinal_position`

// Extract lists every user table with its columns in declared order.
// Catalog and internal tables are never included.
func Extract(ctx context.Context, source *datasource.Source) (Description, error) {
	db, err := source.DB()
	if err != nil {
		return Description{}, err
	}
	dialect := source.Dialect()

	var tables []Table
	if dialect.Name == datasource.SQLite {
		tables, err = extractSQLite(ctx, db)
	} else {
		tables, err = extractInformationSchema(ctx, db, dialect)
	}
	if err != nil {
		return Description{}, err
	}
	return Description{Dialect: dialect.Name, Tables: tables}, nil
}

func extractSQLite(ctx context.Context, db *sql.DB) ([]Table, error) {
	rows, err := db.QueryContext(ctx, sqliteTablesSQL)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("iterate tables: %w", err)
	}
	// The source holds a single connection; release it before the column queries.
	_ = rows.Close()

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		columns, err := sqliteColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, Table{Name: name, Columns: columns})
	}
	return tables, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, sqliteColumnsSQL, table)
	if err != nil {
		return nil, fmt.Errorf("list columns for table %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	columns := make([]Column, 0)
	for rows.Next() {
		var column Column
		var columnType sql.NullString
		if err := rows.Scan(&column.Name, &columnType); err != nil {
			return nil, fmt.Errorf("scan column for table %q: %w", table, err)
		}
		column.Type = columnType.String
		columns = append(columns, column)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns for table %q: %w", table, err)
	}
	return columns, nil
}

func extractInformationSchema(ctx context.Context, db *sql.DB, dialect datasource.Dialect) ([]Table, error) {
	rows, err := db.QueryContext(ctx, informationSchemaSQL)
	if err != nil {
		return nil, fmt.Errorf("list columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tables := make([]Table, 0)
	for rows.Next() {
		var schemaName, tableName, columnName string
		var dataType sql.NullString
		if err := rows.Scan(&schemaName, &tableName, &columnName, &dataType); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if schemaName == dialect.DefaultSchema {
			schemaName = ""
		}
		last := len(tables) - 1
		if last < 0 || tables[last].Schema != schemaName || tables[last].Name != tableName {
			tables = append(tables, Table{Schema: schemaName, Name: tableName})
			last++
		}
		tables[last].Columns = append(tables[last].Columns, Column{Name: columnName, Type: dataType.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}
	return tables, nil
}
