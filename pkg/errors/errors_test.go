package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestAnalyticsError(t *testing.T) {
	tests := []struct {
		name       string
		category   ErrorCategory
		code       ErrorCode
		message    string
		cause      error
		expectCode int
	}{
		{
			name:       "file error",
			category:   CategoryFile,
			code:       CodeFileNotFound,
			message:    "file not found",
			cause:      errors.New("no such file"),
			expectCode: 2,
		},
		{
			name:       "schema error",
			category:   CategorySchema,
			code:       CodeMissingColumn,
			message:    "missing column",
			expectCode: 3,
		},
		{
			name:       "configuration error",
			category:   CategoryConfiguration,
			code:       CodeInvalidConfig,
			message:    "invalid config",
			cause:      errors.New("missing field"),
			expectCode: 4,
		},
		{
			name:       "export error",
			category:   CategoryExport,
			code:       CodeWriteFailed,
			message:    "write failed",
			expectCode: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err *AnalyticsError
			if tt.cause != nil {
				err = Wrap(tt.cause, tt.category, tt.code, tt.message)
			} else {
				err = New(tt.category, tt.code, tt.message)
			}

			if err.Category != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, err.Category)
			}
			if err.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, err.Code)
			}
			if err.GetExitCode() != tt.expectCode {
				t.Errorf("expected exit code %d, got %d", tt.expectCode, err.GetExitCode())
			}
			if !strings.HasPrefix(err.Error(), tt.message) {
				t.Errorf("expected error string to start with %q, got %q", tt.message, err.Error())
			}
			if tt.cause != nil && err.Unwrap() != tt.cause {
				t.Errorf("expected to unwrap to %v, got %v", tt.cause, err.Unwrap())
			}
			if len(err.StackTrace) == 0 {
				t.Error("expected a stack trace")
			}
		})
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, CategoryFile, CodeFileNotFound, "x") != nil {
		t.Error("wrapping nil should return nil")
	}
	if WrapIfNeeded(nil, CategoryFile, CodeFileNotFound, "x") != nil {
		t.Error("WrapIfNeeded(nil) should return nil")
	}
}

func TestSpecificConstructors(t *testing.T) {
	fileErr := FileError(CodeUnsupportedFile, "ventas.pdf", nil)
	if fileErr.Context["file_path"] != "ventas.pdf" {
		t.Errorf("expected file_path context, got %v", fileErr.Context)
	}
	if !strings.Contains(fileErr.Suggestion, ".xlsx") {
		t.Errorf("unexpected suggestion %q", fileErr.Suggestion)
	}

	noInput := ConfigurationError(CodeNoInput, "reports", nil, nil)
	if noInput.GetExitCode() != 4 {
		t.Errorf("expected configuration exit code, got %d", noInput.GetExitCode())
	}

	mergeErr := MergeError(CodeDuplicateKeys, "order_id+day", "3 duplicates")
	if mergeErr.Category != CategoryMerge || mergeErr.Context["join_key"] != "order_id+day" {
		t.Errorf("unexpected merge error %+v", mergeErr)
	}

	schemaErr := SchemaError(CodeUnknownReportType, "VENTAS", "")
	if !strings.Contains(schemaErr.Error(), "VENTAS") {
		t.Errorf("unexpected schema error %q", schemaErr.Error())
	}
}

func TestAsAnalyticsError(t *testing.T) {
	base := AnalysisError(CodeNotComputable, "cohort retention", nil)
	wrapped := fmt.Errorf("pipeline: %w", base)

	got, ok := AsAnalyticsError(wrapped)
	if !ok || got != base {
		t.Fatalf("AsAnalyticsError() = %v, %v", got, ok)
	}

	if _, ok := AsAnalyticsError(errors.New("plain")); ok {
		t.Error("plain error should not convert")
	}

	if WrapIfNeeded(wrapped, CategoryInternal, CodeUnexpectedError, "x") != base {
		t.Error("WrapIfNeeded should keep the existing AnalyticsError")
	}
}

func TestErrorSummary(t *testing.T) {
	errs := []*AnalyticsError{
		FileError(CodeFileNotFound, "a.csv", nil),
		FileError(CodeFileNotFound, "b.csv", nil),
		ExportError(CodeWriteFailed, "out.xlsx", errors.New("disk full")),
	}

	summary := NewErrorSummary(errs)
	if summary.Total != 3 {
		t.Errorf("expected 3 errors, got %d", summary.Total)
	}
	if summary.ByCategory[CategoryFile] != 2 {
		t.Errorf("expected 2 file errors, got %d", summary.ByCategory[CategoryFile])
	}
	if !summary.HasCategory(CategoryExport) || summary.HasCategory(CategoryMerge) {
		t.Error("HasCategory mismatch")
	}
	if summary.GetExitCode() != 6 {
		t.Errorf("expected highest exit code 6, got %d", summary.GetExitCode())
	}
	if summary.Error() != "3 errors occurred (export: 1, file: 2)" {
		t.Errorf("unexpected summary message %q", summary.Error())
	}

	empty := NewErrorSummary(nil)
	if empty.Error() != "no errors" || empty.GetExitCode() != 0 {
		t.Error("empty summary mismatch")
	}
}

func TestDiagnostics(t *testing.T) {
	d := NewDiagnostics(2)
	d.Add(Diagnostic{File: "/tmp/ventas.csv", Row: 2, Column: "amount_total", Value: "abc", Action: ActionZeroed})
	d.Add(Diagnostic{File: "/tmp/ventas.csv", Row: 3, Column: "amount_total", Value: "-4", Action: ActionZeroed})
	d.Add(Diagnostic{File: "/tmp/ventas.csv", Row: 4, Column: "timestamp", Value: "ayer", Action: ActionNulled})

	if d.Total() != 3 {
		t.Errorf("Total() = %d, want 3", d.Total())
	}
	if len(d.Samples()) != 2 {
		t.Errorf("expected 2 samples, got %d", len(d.Samples()))
	}
	if d.CountByColumn()["amount_total"] != 2 {
		t.Errorf("unexpected per-column counts %v", d.CountByColumn())
	}

	other := NewDiagnostics(10)
	other.Add(Diagnostic{File: "indice.csv", Column: "paid_at", Action: ActionNulled})
	d.Merge(other)
	if d.Total() != 4 {
		t.Errorf("Total() after merge = %d, want 4", d.Total())
	}

	if s := d.Samples()[0].String(); s != "ventas.csv:2 column 'amount_total' zeroed (value 'abc')" {
		t.Errorf("unexpected diagnostic string %q", s)
	}
	if !strings.HasPrefix(d.Summary(), "4 values coerced:") {
		t.Errorf("unexpected summary %q", d.Summary())
	}
}
