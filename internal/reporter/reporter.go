// Package reporter renders analysis results.
//
// Every result is first flattened into named tables (see analysis.Result.Tables)
// and each output format lays those tables out its own way.
//
// Supported output formats:
//   - Console: human-readable tables for terminal display
//   - JSON: run summary plus every table, for programmatic consumption
//   - CSV: one section per table, prefixed by a table-name column
//   - XLSX: one worksheet per table
//   - SQLite: one database table per result table
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatXLSX})
//	err = generator.WriteFile(result, "analisis.xlsx")
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"golang-pos-analytics/internal/analysis"
	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/errors"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatXLSX    OutputFormat = "xlsx"
	FormatSQLite  OutputFormat = "sqlite"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatXLSX, FormatSQLite:
		return true
	default:
		return false
	}
}

// NeedsFile reports whether the format can only be written to a file path
func (f OutputFormat) NeedsFile() bool {
	return f == FormatSQLite
}

// maxSheetName is the longest worksheet name a workbook accepts
const maxSheetName = 31

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Tables limits the output to the named tables; empty keeps all
	Tables []string `json:"tables,omitempty"`

	// Console formatting options
	MaxConsoleRows int `json:"max_console_rows"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:         FormatConsole,
		MaxConsoleRows: 15,
		CSVDelimiter:   ',',
		CSVHeaders:     true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxConsoleRows < 1 {
		return fmt.Errorf("max console rows must be positive, got %d", c.MaxConsoleRows)
	}
	if c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator generates analysis reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// GenerateReport writes the report to the provided writer. SQLite output
// needs a path; use WriteFile.
func (rg *ReportGenerator) GenerateReport(result *analysis.Result, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("analysis result cannot be nil")
	}

	tables := rg.selectTables(result.Tables())
	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, tables, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, tables, writer)
	case FormatCSV:
		return rg.generateCSVReport(tables, writer)
	case FormatXLSX:
		return rg.generateXLSXReport(tables, writer)
	case FormatSQLite:
		return errors.ExportError(errors.CodeWriteFailed, "sqlite", fmt.Errorf("sqlite output needs an output file")).
			WithSuggestion("pass --output-file with a .db or .sqlite path")
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// WriteFile writes the report to path, replacing any existing file
func (rg *ReportGenerator) WriteFile(result *analysis.Result, path string) error {
	if result == nil {
		return fmt.Errorf("analysis result cannot be nil")
	}
	if rg.config.Format == FormatSQLite {
		if err := writeSQLite(path, rg.selectTables(result.Tables())); err != nil {
			return errors.ExportError(errors.CodeWriteFailed, path, err)
		}
		return nil
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.ExportError(errors.CodeWriteFailed, path, err)
	}
	if err := rg.GenerateReport(result, file); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return errors.ExportError(errors.CodeWriteFailed, path, err)
	}
	return nil
}

// selectTables applies the table filter of the configuration
func (rg *ReportGenerator) selectTables(tables []*models.ResultTable) []*models.ResultTable {
	if len(rg.config.Tables) == 0 {
		return tables
	}
	keep := make(map[string]bool, len(rg.config.Tables))
	for _, name := range rg.config.Tables {
		keep[strings.TrimSpace(name)] = true
	}
	var out []*models.ResultTable
	for _, t := range tables {
		if keep[t.Name] {
			out = append(out, t)
		}
	}
	return out
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *analysis.Result, tables []*models.ResultTable, writer io.Writer) error {
	summary := result.Summary()
	fmt.Fprintf(writer, "POS ANALYTICS REPORT\n")
	fmt.Fprintf(writer, "Run: %s\n", summary.RunID)
	fmt.Fprintf(writer, "Generated: %s\n", result.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Processing Duration: %v\n", result.Duration)
	if summary.Outcome != "" {
		fmt.Fprintf(writer, "Merge: %s (sales rows %d, index rows %d)\n", summary.Outcome, summary.SalesRows, summary.IndexRows)
	}
	fmt.Fprintf(writer, "\n")

	if len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "=== WARNINGS ===\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(writer, "  - %s\n", w)
		}
		fmt.Fprintf(writer, "\n")
	}

	for _, t := range tables {
		if t.Name == "run" {
			continue
		}
		fmt.Fprintf(writer, "=== %s ===\n", strings.ToUpper(strings.ReplaceAll(t.Name, "_", " ")))
		if err := rg.printTable(t, writer); err != nil {
			return err
		}
		fmt.Fprintf(writer, "\n")
	}
	return nil
}

func (rg *ReportGenerator) printTable(t *models.ResultTable, writer io.Writer) error {
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(t.Columns, "\t"))

	rows := t.StringRows()
	for i, row := range rows {
		if i >= rg.config.MaxConsoleRows {
			fmt.Fprintf(tw, "... and %d more\n", len(rows)-rg.config.MaxConsoleRows)
			break
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// jsonReport is the JSON document layout
type jsonReport struct {
	Summary  analysis.Summary      `json:"summary"`
	Warnings []string              `json:"warnings,omitempty"`
	Tables   []*models.ResultTable `json:"tables"`
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *analysis.Result, tables []*models.ResultTable, writer io.Writer) error {
	doc := jsonReport{
		Summary:  result.Summary(),
		Warnings: result.Warnings,
		Tables:   make([]*models.ResultTable, 0, len(tables)),
	}
	for _, t := range tables {
		doc.Tables = append(doc.Tables, jsonTable(t))
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// jsonTable converts money cells to numbers so consumers need no decimal parsing
func jsonTable(t *models.ResultTable) *models.ResultTable {
	out := &models.ResultTable{Name: t.Name, Columns: t.Columns, Rows: make([][]interface{}, len(t.Rows))}
	for i, row := range t.Rows {
		cells := make([]interface{}, len(row))
		for j, v := range row {
			if d, ok := v.(decimal.Decimal); ok {
				cells[j] = d.InexactFloat64()
				continue
			}
			cells[j] = v
		}
		out.Rows[i] = cells
	}
	return out
}

// generateCSVReport writes every table as a block of rows whose first field
// is the table name
func (rg *ReportGenerator) generateCSVReport(tables []*models.ResultTable, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	for _, t := range tables {
		if rg.config.CSVHeaders {
			if err := csvWriter.Write(append([]string{"table"}, t.Columns...)); err != nil {
				return fmt.Errorf("failed to write CSV headers for %s: %w", t.Name, err)
			}
		}
		for _, row := range t.StringRows() {
			if err := csvWriter.Write(append([]string{t.Name}, row...)); err != nil {
				return fmt.Errorf("failed to write %s record: %w", t.Name, err)
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// generateXLSXReport writes one worksheet per table
func (rg *ReportGenerator) generateXLSXReport(tables []*models.ResultTable, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	defaultSheet := f.GetSheetName(f.GetActiveSheetIndex())
	for i, t := range tables {
		name := sheetName(t.Name)
		index, err := f.NewSheet(name)
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
		if i == 0 {
			f.SetActiveSheet(index)
		}

		header := make([]interface{}, len(t.Columns))
		for j, c := range t.Columns {
			header[j] = c
		}
		if err := f.SetSheetRow(name, "A1", &header); err != nil {
			return fmt.Errorf("failed to write header of %s: %w", name, err)
		}
		for r, row := range t.Rows {
			cells := make([]interface{}, len(row))
			for j, v := range row {
				cells[j] = xlsxValue(v)
			}
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(name, cell, &cells); err != nil {
				return fmt.Errorf("failed to write row %d of %s: %w", r+1, name, err)
			}
		}
	}
	if len(tables) > 0 && defaultSheet != "" {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return err
		}
	}

	return f.Write(writer)
}

func sheetName(name string) string {
	if len(name) > maxSheetName {
		return name[:maxSheetName]
	}
	return name
}

// xlsxValue keeps numbers numeric in the workbook
func xlsxValue(v interface{}) interface{} {
	switch val := v.(type) {
	case decimal.Decimal:
		return val.InexactFloat64()
	case time.Time:
		if val.IsZero() {
			return nil
		}
		return models.FormatCell(val)
	default:
		return val
	}
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
