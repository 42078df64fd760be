// Package parsers loads point-of-sale back-office exports and normalizes them
// into typed records.
//
// Two export shapes are supported: the line-item Sales report and the
// order-level Index report. Both arrive with loosely named columns, localized
// money formats and day-first timestamps, as CSV (comma or semicolon) or XLSX.
//
// Loading is split in two steps:
//   - TableReader turns a file into an untyped models.RawTable
//   - Normalizer maps the table onto canonical columns through a versioned
//     SchemaMapping and coerces every cell, recording each coercion as a
//     diagnostic instead of failing
//
// Example usage:
//
//	reader := NewTableReader(nil)
//	table, err := reader.ReadFile(ctx, "ventas.xlsx")
//	result, err := NewNormalizer(SalesSchema(), nil).Normalize(table)
package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/errors"
	"golang-pos-analytics/pkg/logger"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// autoGeneratedHeader matches the placeholder headers spreadsheet tools emit for index columns
var autoGeneratedHeader = regexp.MustCompile(`(?i)^unnamed`)

// ReadConfig holds configuration for reading a tabular export
type ReadConfig struct {
	Delimiter        rune   // 0 sniffs ',' or ';' from the header line
	Sheet            string // XLSX sheet; empty selects the first sheet with data
	TrimLeadingSpace bool
	SkipEmptyRows    bool
	MaxFieldSize     int
	ValidateEncoding bool // false skips the legacy code page fallback
}

// DefaultReadConfig returns a configuration with sensible defaults
func DefaultReadConfig() *ReadConfig {
	return &ReadConfig{
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000, // 1MB per field
		ValidateEncoding: true,
	}
}

// TableReader reads CSV and XLSX exports into raw tables
type TableReader struct {
	config *ReadConfig
	logger logger.Logger
}

// NewTableReader creates a reader with the given configuration
func NewTableReader(config *ReadConfig) *TableReader {
	if config == nil {
		config = DefaultReadConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("table_reader")
	log.WithFields(logger.Fields{
		"delimiter":         delimiterName(config.Delimiter),
		"sheet":             config.Sheet,
		"validate_encoding": config.ValidateEncoding,
	}).Debug("Created table reader")

	return &TableReader{
		config: config,
		logger: log,
	}
}

// ReadFile reads a report from disk, dispatching on the file extension
func (tr *TableReader) ReadFile(ctx context.Context, filePath string) (*models.RawTable, error) {
	tr.logger.WithField("file_path", filePath).Debug("Opening report")

	info, err := os.Stat(filePath)
	if err != nil {
		return nil, tr.fileError(filePath, err)
	}
	if info.IsDir() {
		return nil, errors.FileError(errors.CodeUnsupportedFile, filePath, fmt.Errorf("path is a directory"))
	}

	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".xlsx", ".xlsm":
		return tr.readWorkbook(ctx, filePath)
	case ".csv", ".txt", "":
		file, err := os.Open(filePath)
		if err != nil {
			return nil, tr.fileError(filePath, err)
		}
		defer file.Close()
		return tr.ReadCSV(ctx, file, filePath)
	default:
		return nil, errors.FileError(errors.CodeUnsupportedFile, filePath, nil)
	}
}

func (tr *TableReader) fileError(filePath string, err error) error {
	tr.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open report")
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err)
	}
	if os.IsPermission(err) {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	return errors.FileError(errors.CodeFileCorrupted, filePath, err)
}

// ReadCSV reads a delimited export from r. source names the table in diagnostics.
func (tr *TableReader) ReadCSV(ctx context.Context, r io.Reader, source string) (*models.RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.FileError(errors.CodeFileCorrupted, source, err)
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	if !utf8.Valid(data) {
		if !tr.config.ValidateEncoding {
			return nil, errors.ParseError(errors.CodeEncodingError, source, fmt.Errorf("invalid UTF-8 encoding detected"))
		}
		// Back-office exports opened and re-saved in Excel come out as Windows-1252
		decoded, decodeErr := charmap.Windows1252.NewDecoder().Bytes(data)
		if decodeErr != nil {
			return nil, errors.ParseError(errors.CodeEncodingError, source, decodeErr)
		}
		tr.logger.WithField("source", source).Warn("Report is not UTF-8, decoded as Windows-1252")
		data = decoded
	}

	delimiter := tr.config.Delimiter
	if delimiter == 0 {
		delimiter = sniffDelimiter(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.TrimLeadingSpace = tr.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1 // Variable number of fields
	reader.LazyQuotes = true

	var rows [][]string
	line := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "csv_reading", err)
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			tr.logger.WithError(err).WithField("line_number", line+1).Error("Failed to read CSV record")
			return nil, errors.ParseError(errors.CodeInvalidFormat, source, err)
		}
		line++

		if err := tr.checkFieldSizes(record, source, line); err != nil {
			return nil, err
		}
		rows = append(rows, record)
	}

	table, err := tr.buildTable(source, rows)
	if err != nil {
		return nil, err
	}

	tr.logger.WithFields(logger.Fields{
		"source":    source,
		"delimiter": delimiterName(delimiter),
		"columns":   table.Width(),
		"rows":      len(table.Rows),
	}).Debug("Read CSV report")
	return table, nil
}

func (tr *TableReader) readWorkbook(ctx context.Context, filePath string) (*models.RawTable, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		tr.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open workbook")
		return nil, errors.FileError(errors.CodeFileCorrupted, filePath, err)
	}
	defer f.Close()

	var rows [][]string
	var sheetName string

	if tr.config.Sheet != "" {
		sheetName = tr.config.Sheet
		rows, err = f.GetRows(sheetName)
		if err != nil {
			return nil, errors.ParseError(errors.CodeInvalidFormat, filePath, fmt.Errorf("sheet %q: %w", sheetName, err))
		}
	} else {
		// First sheet holding at least a header and one row
		for _, name := range f.GetSheetList() {
			if err := ctx.Err(); err != nil {
				return nil, errors.InternalError(errors.CodeUnexpectedError, "xlsx_reading", err)
			}
			candidate, getErr := f.GetRows(name)
			if getErr == nil && len(candidate) > 1 {
				rows = candidate
				sheetName = name
				break
			}
		}
	}

	if len(rows) == 0 {
		return nil, errors.ParseError(errors.CodeEmptyReport, filePath, nil)
	}

	for i, row := range rows {
		if err := tr.checkFieldSizes(row, filePath, i+1); err != nil {
			return nil, err
		}
	}

	table, err := tr.buildTable(filePath, rows)
	if err != nil {
		return nil, err
	}

	tr.logger.WithFields(logger.Fields{
		"source":  filePath,
		"sheet":   sheetName,
		"columns": table.Width(),
		"rows":    len(table.Rows),
	}).Debug("Read workbook report")
	return table, nil
}

func (tr *TableReader) checkFieldSizes(record []string, source string, line int) error {
	if tr.config.MaxFieldSize <= 0 {
		return nil
	}
	for i, field := range record {
		if len(field) > tr.config.MaxFieldSize {
			tr.logger.WithFields(logger.Fields{
				"line_number": line,
				"column":      i,
				"field_size":  len(field),
				"max_size":    tr.config.MaxFieldSize,
			}).Warn("Field exceeds maximum size limit")
			return errors.ParseError(errors.CodeInvalidFormat, source,
				fmt.Errorf("line %d column %d exceeds %d bytes", line, i+1, tr.config.MaxFieldSize))
		}
	}
	return nil
}

// buildTable splits header and data rows and pads short rows to the header width
func (tr *TableReader) buildTable(source string, rows [][]string) (*models.RawTable, error) {
	if len(rows) == 0 {
		tr.logger.WithField("source", source).Error("Report is empty")
		return nil, errors.ParseError(errors.CodeEmptyReport, source, nil)
	}

	headers := cleanHeaders(rows[0])
	table := &models.RawTable{
		Source:  source,
		Headers: headers,
		Rows:    make([][]string, 0, len(rows)-1),
	}

	for _, row := range rows[1:] {
		if tr.config.SkipEmptyRows && isEmptyRecord(row) {
			continue
		}
		padded := make([]string, len(headers))
		copy(padded, row)
		table.Rows = append(table.Rows, padded)
	}

	return table, nil
}

// cleanHeaders removes whitespace and a stray BOM from header names
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		cleaned[i] = strings.TrimSpace(strings.TrimPrefix(header, "\ufeff"))
	}
	return cleaned
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// sniffDelimiter picks ';' when the header line holds more semicolons than commas
func sniffDelimiter(data []byte) rune {
	header := data
	if idx := bytes.IndexByte(data, '\n'); idx >= 0 {
		header = data[:idx]
	}
	if bytes.Count(header, []byte{';'}) > bytes.Count(header, []byte{','}) {
		return ';'
	}
	return ','
}

func delimiterName(r rune) string {
	if r == 0 {
		return "auto"
	}
	return string(r)
}
