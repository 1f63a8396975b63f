package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nl2sqlstudio/studio/internal/datasource/sqlitetest"
	"github.com/nl2sqlstudio/studio/internal/query"
)

func TestExecuteAgainstSQLite(t *testing.T) {
	db := openSQLite(t)
	engine := NewEngine(db)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT name, revenue FROM customers ORDER BY revenue DESC LIMIT 2;",
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Join(result.Columns, ",") != "name,revenue" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if len(result.Rows) != 2 || result.Truncated {
		t.Fatalf("rows = %d truncated = %v", len(result.Rows), result.Truncated)
	}
	if result.Rows[0][0] != "Initech" || result.Rows[1][0] != "Acme" {
		t.Fatalf("rows = %#v", result.Rows)
	}
}

func TestExecuteAppliesRowLimit(t *testing.T) {
	engine := NewEngine(openSQLite(t))

	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT id FROM customers ORDER BY id", RowLimit: 2})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 || !result.Truncated {
		t.Fatalf("rows = %d truncated = %v", len(result.Rows), result.Truncated)
	}

	result, err = engine.Execute(context.Background(), query.Request{SQL: "SELECT id FROM customers", RowLimit: 3})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 3 || result.Truncated {
		t.Fatalf("exact limit: rows = %d truncated = %v", len(result.Rows), result.Truncated)
	}
}

func TestExecuteKeepsEngineMessage(t *testing.T) {
	engine := NewEngine(openSQLite(t))

	_, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT nickname FROM customers"})
	if err == nil {
		t.Fatal("expected error for unknown column")
	}
	if !strings.Contains(err.Error(), "no such column: nickname") {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestExecuteConvertsBytes(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT payload FROM blobs`).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).AddRow([]byte("abc")))

	result, err := NewEngine(db).Execute(context.Background(), query.Request{SQL: "SELECT payload FROM blobs"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows[0][0] != "abc" {
		t.Fatalf("value = %#v, want string", result.Rows[0][0])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestExecuteReturnsDriverErrorUnwrapped(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	engineErr := errors.New(`relation "missing" does not exist`)
	mock.ExpectQuery(`FROM missing`).WillReturnError(engineErr)

	_, err = NewEngine(db).Execute(context.Background(), query.Request{SQL: "SELECT * FROM missing"})
	if !errors.Is(err, engineErr) || err.Error() != engineErr.Error() {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestExecuteRequiresSQL(t *testing.T) {
	if _, err := NewEngine(openSQLite(t)).Execute(context.Background(), query.Request{SQL: " ;; "}); !errors.Is(err, ErrEmptyRequest) {
		t.Fatalf("Execute() error = %v, want ErrEmptyRequest", err)
	}
	if _, err := NewEngine(nil).Execute(context.Background(), query.Request{SQL: "SELECT 1"}); !errors.Is(err, ErrNoDatabase) {
		t.Fatalf("Execute() error = %v, want ErrNoDatabase", err)
	}
}

func TestExecuteReportsDeclaredTypesAndBindsArgs(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRowsWithColumnDefinition(
		sqlmock.NewColumn("id").OfType("int8", int64(0)),
		sqlmock.NewColumn("total").OfType("numeric", float64(0)),
	).AddRow(int64(1), nil)
	mock.ExpectQuery(`SELECT id, total FROM deals WHERE stage = \$1`).WithArgs("won").WillReturnRows(rows)

	result, err := NewEngine(db).Execute(context.Background(), query.Request{
		SQL:  "SELECT id, total FROM deals WHERE stage = $1;\n",
		Args: []any{"won"},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Join(result.ColumnTypes, ",") != "INT8,NUMERIC" {
		t.Fatalf("ColumnTypes = %v", result.ColumnTypes)
	}
	if result.Rows[0][1] != nil {
		t.Fatalf("null cell = %#v", result.Rows[0][1])
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestExecuteEmptyResultHasRowsSlice(t *testing.T) {
	result, err := NewEngine(openSQLite(t)).Execute(context.Background(), query.Request{SQL: "SELECT id FROM customers WHERE id < 0"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.Rows == nil || len(result.Rows) != 0 || len(result.ColumnTypes) != 1 {
		t.Fatalf("result = %#v", result)
	}
}

func openSQLite(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", sqlitetest.NewDB(t, sqlitetest.MiniCRM...))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
