package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ResultTable is a named, column-ordered view of an analysis result used by
// the report writers
type ResultTable struct {
	Name    string          `json:"name"`
	Columns []string        `json:"columns"`
	Rows    [][]interface{} `json:"rows"`
}

// NewResultTable creates an empty table with the given columns
func NewResultTable(name string, columns ...string) *ResultTable {
	return &ResultTable{Name: name, Columns: columns}
}

// Append adds a row; it panics when the width does not match the columns
func (t *ResultTable) Append(values ...interface{}) {
	if len(values) != len(t.Columns) {
		panic(fmt.Sprintf("table %s: row has %d values, want %d", t.Name, len(values), len(t.Columns)))
	}
	t.Rows = append(t.Rows, values)
}

// Len returns the number of rows
func (t *ResultTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// StringRows renders every cell for text outputs such as CSV and the console
func (t *ResultTable) StringRows() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		cells := make([]string, len(row))
		for j, v := range row {
			cells[j] = FormatCell(v)
		}
		out[i] = cells
	}
	return out
}

// FormatCell renders one value the way the text reports print it
func FormatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case decimal.Decimal:
		return val.StringFixed(2)
	case float64:
		return fmt.Sprintf("%.4f", val)
	case time.Time:
		if val.IsZero() {
			return ""
		}
		if val.Equal(TruncateDay(val)) {
			return val.Format("2006-01-02")
		}
		return val.Format("2006-01-02 15:04:05")
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// LabelCount is a categorical value and how often it occurs
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// LabelAmount is a categorical value and a summed amount
type LabelAmount struct {
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}
