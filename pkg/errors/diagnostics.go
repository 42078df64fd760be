package errors

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// CoercionAction describes how an unusable cell value was handled
type CoercionAction string

const (
	ActionZeroed    CoercionAction = "zeroed"
	ActionNulled    CoercionAction = "nulled"
	ActionDropped   CoercionAction = "dropped"
	ActionDefaulted CoercionAction = "defaulted"
)

// Diagnostic records a best-effort coercion applied while normalizing a report.
// Diagnostics are never returned as errors; they exist so callers can inspect
// how much of a report was degraded.
type Diagnostic struct {
	File   string         `json:"file"`
	Row    int            `json:"row,omitempty"`
	Column string         `json:"column"`
	Value  string         `json:"value,omitempty"`
	Action CoercionAction `json:"action"`
	Reason string         `json:"reason,omitempty"`
}

// String returns a single-line description of the diagnostic
func (d Diagnostic) String() string {
	location := filepath.Base(d.File)
	if d.Row > 0 {
		location += fmt.Sprintf(":%d", d.Row)
	}
	msg := fmt.Sprintf("%s column '%s' %s", location, d.Column, d.Action)
	if d.Value != "" {
		msg += fmt.Sprintf(" (value '%s')", d.Value)
	}
	if d.Reason != "" {
		msg += ": " + d.Reason
	}
	return msg
}

// Diagnostics collects coercions up to a sample limit while still counting every one
type Diagnostics struct {
	items      []Diagnostic
	maxSamples int
	total      int
	byColumn   map[string]int
}

// NewDiagnostics creates a collector keeping at most maxSamples entries
func NewDiagnostics(maxSamples int) *Diagnostics {
	if maxSamples <= 0 {
		maxSamples = 100
	}
	return &Diagnostics{
		items:      make([]Diagnostic, 0),
		maxSamples: maxSamples,
		byColumn:   make(map[string]int),
	}
}

// Add records a diagnostic
func (c *Diagnostics) Add(d Diagnostic) {
	c.total++
	c.byColumn[d.Column]++
	if len(c.items) < c.maxSamples {
		c.items = append(c.items, d)
	}
}

// Merge folds another collector into this one
func (c *Diagnostics) Merge(other *Diagnostics) {
	if other == nil {
		return
	}
	for _, d := range other.items {
		if len(c.items) < c.maxSamples {
			c.items = append(c.items, d)
		}
	}
	c.total += other.total
	for col, n := range other.byColumn {
		c.byColumn[col] += n
	}
}

// Total returns the number of diagnostics recorded, including unsampled ones
func (c *Diagnostics) Total() int {
	return c.total
}

// Samples returns the retained diagnostics
func (c *Diagnostics) Samples() []Diagnostic {
	return c.items
}

// CountByColumn returns the number of coercions per column
func (c *Diagnostics) CountByColumn() map[string]int {
	out := make(map[string]int, len(c.byColumn))
	for k, v := range c.byColumn {
		out[k] = v
	}
	return out
}

// Summary formats the collected diagnostics for a console report
func (c *Diagnostics) Summary() string {
	if c.total == 0 {
		return "No values were coerced"
	}

	columns := make([]string, 0, len(c.byColumn))
	for col := range c.byColumn {
		columns = append(columns, col)
	}
	sort.Strings(columns)

	lines := []string{fmt.Sprintf("%d values coerced:", c.total)}
	for _, col := range columns {
		lines = append(lines, fmt.Sprintf("  %s: %d", col, c.byColumn[col]))
	}

	maxDetailed := 3
	for i, d := range c.items {
		if i == maxDetailed {
			lines = append(lines, fmt.Sprintf("  ... and %d more", c.total-maxDetailed))
			break
		}
		lines = append(lines, "  - "+d.String())
	}
	return strings.Join(lines, "\n")
}
