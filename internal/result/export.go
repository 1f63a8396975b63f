package result

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
)

const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
)

func ContentType(format string) string {
	if format == FormatParquet {
		return "application/vnd.apache.parquet"
	}
	return "text/csv; charset=utf-8"
}

// WriteCSV writes a header row followed by every row. NULL is written as an
// empty field.
func WriteCSV(w io.Writer, t Table) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(t.Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	record := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(row) {
				record[i] = FormatValue(row[i])
			}
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// FormatValue renders one cell as text.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return typed
	case []byte:
		return string(typed)
	case time.Time:
		return typed.Format(time.RFC3339Nano)
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32)
	default:
		return fmt.Sprint(typed)
	}
}

type columnKind int

const (
	kindString columnKind = iota
	kindInt
	kindDouble
	kindBool
)

// WriteParquet writes t as a single row group. Column types are inferred
// from the values: integers, floats, booleans, and text for the rest. Every
// column is optional.
func WriteParquet(w io.Writer, t Table) error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("table has no columns")
	}
	kinds := make([]columnKind, len(t.Columns))
	group := parquet.Group{}
	for i, column := range t.Columns {
		kinds[i] = inferKind(t, i)
		group[column] = parquet.Optional(parquetNode(kinds[i]))
	}
	schema := parquet.NewSchema("result", group)

	// Group fields are laid out in name order.
	leafIndex := leafOrder(t.Columns)

	rows := make([]parquet.Row, 0, len(t.Rows))
	for _, source := range t.Rows {
		row := make(parquet.Row, len(t.Columns))
		for i := range t.Columns {
			var value any
			if i < len(source) {
				value = source[i]
			}
			row[leafIndex[i]] = parquetValue(kinds[i], value).Level(0, definitionLevel(value), leafIndex[i])
		}
		rows = append(rows, row)
	}

	writer := parquet.NewWriter(w, schema)
	if _, err := writer.WriteRows(rows); err != nil {
		return fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

func inferKind(t Table, index int) columnKind {
	kind := kindString
	seen := false
	for _, row := range t.Rows {
		if index >= len(row) || row[index] == nil {
			continue
		}
		var current columnKind
		switch row[index].(type) {
		case int, int8, int16, int32, int64, uint8, uint16, uint32:
			current = kindInt
		case float32, float64:
			current = kindDouble
		case bool:
			current = kindBool
		default:
			return kindString
		}
		switch {
		case !seen:
			kind = current
			seen = true
		case kind == current:
		case (kind == kindInt && current == kindDouble) || (kind == kindDouble && current == kindInt):
			kind = kindDouble
		default:
			return kindString
		}
	}
	if !seen && index < len(t.ColumnTypes) {
		return kindOfDeclared(t.ColumnTypes[index])
	}
	return kind
}

// kindOfDeclared maps a declared column type for columns that only hold
// NULLs, such as an aggregate over an empty set.
func kindOfDeclared(declared string) columnKind {
	declared = strings.ToUpper(declared)
	switch {
	case strings.Contains(declared, "INT"):
		return kindInt
	case strings.Contains(declared, "REAL"), strings.Contains(declared, "FLOA"), strings.Contains(declared, "DOUB"),
		strings.Contains(declared, "NUMERIC"), strings.Contains(declared, "DECIMAL"):
		return kindDouble
	case strings.HasPrefix(declared, "BOOL"), declared == "BIT":
		return kindBool
	default:
		return kindString
	}
}

func parquetNode(kind columnKind) parquet.Node {
	switch kind {
	case kindInt:
		return parquet.Int(64)
	case kindDouble:
		return parquet.Leaf(parquet.DoubleType)
	case kindBool:
		return parquet.Leaf(parquet.BooleanType)
	default:
		return parquet.String()
	}
}

func parquetValue(kind columnKind, value any) parquet.Value {
	if value == nil {
		return parquet.NullValue()
	}
	switch kind {
	case kindInt:
		return parquet.Int64Value(toInt64(value))
	case kindDouble:
		number, _ := Number(value)
		return parquet.DoubleValue(number)
	case kindBool:
		return parquet.BooleanValue(value.(bool))
	default:
		return parquet.ByteArrayValue([]byte(FormatValue(value)))
	}
}

func definitionLevel(value any) int {
	if value == nil {
		return 0
	}
	return 1
}

func leafOrder(columns []string) []int {
	sorted := append([]string(nil), columns...)
	sort.Strings(sorted)
	position := make(map[string]int, len(sorted))
	for i, name := range sorted {
		position[name] = i
	}
	order := make([]int, len(columns))
	for i, name := range columns {
		order[i] = position[name]
	}
	return order
}

func toInt64(value any) int64 {
	switch typed := value.(type) {
	case int:
		return int64(typed)
	case int8:
		return int64(typed)
	case int16:
		return int64(typed)
	case int32:
		return int64(typed)
	case int64:
		return typed
	case uint8:
		return int64(typed)
	case uint16:
		return int64(typed)
	case uint32:
		return int64(typed)
	default:
		return 0
	}
}
