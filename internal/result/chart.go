package result

import (
	"encoding/json"
	"strconv"
	"strings"
)

const ChartBar = "bar"

type Chart struct {
	Kind     string `json:"kind"`
	Category string `json:"category"`
	Value    string `json:"value"`
}

// SelectChart picks a bar chart for tables with two or more columns. The
// first column is the category axis. The second column is the value axis
// when numeric, otherwise the first numeric column after it. Tables
// without a numeric column get no chart.
func SelectChart(t Table) (Chart, bool) {
	if len(t.Columns) < 2 || len(t.Rows) == 0 {
		return Chart{}, false
	}
	for i := 1; i < len(t.Columns); i++ {
		if numericColumn(t, i) {
			return Chart{Kind: ChartBar, Category: t.Columns[0], Value: t.Columns[i]}, true
		}
	}
	return Chart{}, false
}

// numericColumn requires at least one non-null value and no non-numeric ones.
func numericColumn(t Table, index int) bool {
	seen := false
	for _, row := range t.Rows {
		if index >= len(row) || row[index] == nil {
			continue
		}
		if _, ok := Number(row[index]); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// Number converts driver values to float64. Numeric strings count, since
// some drivers return DECIMAL as text.
func Number(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int8:
		return float64(typed), true
	case int16:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint:
		return float64(typed), true
	case uint8:
		return float64(typed), true
	case uint16:
		return float64(typed), true
	case uint32:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	case json.Number:
		parsed, err := typed.Float64()
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
