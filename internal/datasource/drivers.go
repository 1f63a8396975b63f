package datasource

import (
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "github.com/microsoft/go-mssqldb"
	_ "modernc.org/sqlite"
)
