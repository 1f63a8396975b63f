package result

import "testing"

func TestSelectChartUsesSecondColumnWhenNumeric(t *testing.T) {
	table := Table{
		Columns: []string{"name", "revenue"},
		Rows:    [][]any{{"Initech", 2100.0}, {"Acme", int64(1200)}},
	}
	chart, ok := SelectChart(table)
	if !ok {
		t.Fatal("expected a chart")
	}
	if chart != (Chart{Kind: ChartBar, Category: "name", Value: "revenue"}) {
		t.Fatalf("SelectChart() = %#v", chart)
	}
}

func TestSelectChartFallsBackToNextNumericColumn(t *testing.T) {
	table := Table{
		Columns: []string{"name", "city", "orders"},
		Rows:    [][]any{{"Acme", "Berlin", int64(3)}, {"Globex", "Paris", nil}},
	}
	chart, ok := SelectChart(table)
	if !ok || chart.Value != "orders" || chart.Category != "name" {
		t.Fatalf("SelectChart() = %#v, %v", chart, ok)
	}
}

func TestSelectChartDeclines(t *testing.T) {
	cases := map[string]Table{
		"single column": {Columns: []string{"n"}, Rows: [][]any{{int64(1)}}},
		"no rows":       {Columns: []string{"a", "b"}, Rows: [][]any{}},
		"no numbers":    {Columns: []string{"a", "b"}, Rows: [][]any{{"x", "y"}}},
		"only nulls":    {Columns: []string{"a", "b"}, Rows: [][]any{{"x", nil}}},
	}
	for name, table := range cases {
		if chart, ok := SelectChart(table); ok {
			t.Fatalf("%s: SelectChart() = %#v, want none", name, chart)
		}
	}
}

func TestNumberAcceptsDecimalText(t *testing.T) {
	if value, ok := Number("12.50"); !ok || value != 12.5 {
		t.Fatalf("Number() = %v, %v", value, ok)
	}
	if _, ok := Number("n/a"); ok {
		t.Fatal("Number() accepted non-numeric text")
	}
}
