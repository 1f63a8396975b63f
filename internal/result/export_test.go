package result

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"
)

func TestWriteCSV(t *testing.T) {
	table := Table{
		Columns: []string{"name", "revenue", "seen_at"},
		Rows: [][]any{
			{"Acme, Inc.", 1200.5, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)},
			{"Globex", nil, nil},
		},
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	want := "name,revenue,seen_at\n\"Acme, Inc.\",1200.5,2024-01-05T10:00:00Z\nGlobex,,\n"
	if buf.String() != want {
		t.Fatalf("WriteCSV() = %q, want %q", buf.String(), want)
	}
}

func TestWriteParquetRoundTrip(t *testing.T) {
	table := Table{
		Columns: []string{"name", "revenue", "orders", "active"},
		Rows: [][]any{
			{"Acme", 1200.5, int64(3), true},
			{"Globex", int64(830), nil, false},
			{nil, 2100.0, int64(1), nil},
		},
	}
	var buf bytes.Buffer
	if err := WriteParquet(&buf, table); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}

	file, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	if file.NumRows() != 3 {
		t.Fatalf("NumRows() = %d", file.NumRows())
	}

	kinds := map[string]parquet.Kind{}
	for _, field := range file.Schema().Fields() {
		if !field.Optional() {
			t.Fatalf("column %s should be optional", field.Name())
		}
		kinds[field.Name()] = field.Type().Kind()
	}
	want := map[string]parquet.Kind{
		"name":    parquet.ByteArray,
		"revenue": parquet.Double,
		"orders":  parquet.Int64,
		"active":  parquet.Boolean,
	}
	for name, kind := range want {
		if kinds[name] != kind {
			t.Fatalf("column %s kind = %v, want %v", name, kinds[name], kind)
		}
	}
}

func TestWriteParquetUsesDeclaredTypeForNullColumns(t *testing.T) {
	table := Table{
		Columns:     []string{"total", "deal_count", "note"},
		ColumnTypes: []string{"NUMERIC", "BIGINT", ""},
		Rows:        [][]any{{nil, nil, nil}},
	}
	var buf bytes.Buffer
	if err := WriteParquet(&buf, table); err != nil {
		t.Fatalf("WriteParquet() error = %v", err)
	}
	file, err := parquet.OpenFile(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatalf("OpenFile() error = %v", err)
	}
	kinds := map[string]parquet.Kind{}
	for _, field := range file.Schema().Fields() {
		kinds[field.Name()] = field.Type().Kind()
	}
	if kinds["total"] != parquet.Double || kinds["deal_count"] != parquet.Int64 || kinds["note"] != parquet.ByteArray {
		t.Fatalf("kinds = %v", kinds)
	}
}

func TestKindOfDeclared(t *testing.T) {
	cases := map[string]columnKind{
		"integer":       kindInt,
		"INT8":          kindInt,
		"REAL":          kindDouble,
		"DOUBLE":        kindDouble,
		"decimal(10,2)": kindDouble,
		"BOOLEAN":       kindBool,
		"BIT":           kindBool,
		"VARCHAR":       kindString,
		"":              kindString,
	}
	for declared, want := range cases {
		if got := kindOfDeclared(declared); got != want {
			t.Fatalf("kindOfDeclared(%q) = %v, want %v", declared, got, want)
		}
	}
}

func TestWriteParquetRequiresColumns(t *testing.T) {
	if err := WriteParquet(&bytes.Buffer{}, Table{}); err == nil || !strings.Contains(err.Error(), "no columns") {
		t.Fatalf("WriteParquet() error = %v", err)
	}
}
