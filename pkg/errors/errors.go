package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrorCategory represents different categories of errors
type ErrorCategory string

const (
	CategoryFile          ErrorCategory = "file"
	CategoryParse         ErrorCategory = "parse"
	CategorySchema        ErrorCategory = "schema"
	CategoryConfiguration ErrorCategory = "configuration"
	CategoryMerge         ErrorCategory = "merge"
	CategoryAnalysis      ErrorCategory = "analysis"
	CategoryExport        ErrorCategory = "export"
	CategoryInternal      ErrorCategory = "internal"
)

// ErrorCode represents specific error codes within categories
type ErrorCode string

const (
	// File errors
	CodeFileNotFound    ErrorCode = "file_not_found"
	CodeFilePermission  ErrorCode = "file_permission"
	CodeFileCorrupted   ErrorCode = "file_corrupted"
	CodeUnsupportedFile ErrorCode = "unsupported_file"

	// Parse errors
	CodeInvalidFormat ErrorCode = "invalid_format"
	CodeEncodingError ErrorCode = "encoding_error"
	CodeEmptyReport   ErrorCode = "empty_report"

	// Schema errors
	CodeMissingColumn     ErrorCode = "missing_column"
	CodeUnknownReportType ErrorCode = "unknown_report_type"

	// Configuration errors
	CodeInvalidConfig ErrorCode = "invalid_config"
	CodeMissingConfig ErrorCode = "missing_config"
	CodeNoInput       ErrorCode = "no_input"

	// Merge errors
	CodeDuplicateKeys ErrorCode = "duplicate_keys"
	CodeMisalignedKey ErrorCode = "misaligned_key"

	// Analysis errors
	CodeNotComputable ErrorCode = "not_computable"

	// Export errors
	CodeWriteFailed ErrorCode = "write_failed"

	// Internal errors
	CodeUnexpectedError ErrorCode = "unexpected_error"
)

// AnalyticsError is the base error type for all application errors
type AnalyticsError struct {
	Category   ErrorCategory     `json:"category"`
	Code       ErrorCode         `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error
type Context map[string]interface{}

// Error implements the error interface
func (e *AnalyticsError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", msg, e.Suggestion)
	}
	return msg
}

// Unwrap returns the underlying cause error
func (e *AnalyticsError) Unwrap() error {
	return e.Cause
}

// GetExitCode returns an appropriate exit code for the error
func (e *AnalyticsError) GetExitCode() int {
	switch e.Category {
	case CategoryFile:
		return 2
	case CategoryParse, CategorySchema:
		return 3
	case CategoryConfiguration:
		return 4
	case CategoryMerge, CategoryAnalysis, CategoryInternal:
		return 5
	case CategoryExport:
		return 6
	default:
		return 1
	}
}

// WithContext adds context information to the error
func (e *AnalyticsError) WithContext(key string, value interface{}) *AnalyticsError {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error
func (e *AnalyticsError) WithSuggestion(suggestion string) *AnalyticsError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AnalyticsError
func New(category ErrorCategory, code ErrorCode, message string) *AnalyticsError {
	return &AnalyticsError{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with AnalyticsError context
func Wrap(err error, category ErrorCategory, code ErrorCode, message string) *AnalyticsError {
	if err == nil {
		return nil
	}

	return &AnalyticsError{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func build(category ErrorCategory, code ErrorCode, message string, err error) *AnalyticsError {
	if err != nil {
		return Wrap(err, category, code, message)
	}
	return New(category, code, message)
}

// FileError creates a file-related error
func FileError(code ErrorCode, path string, err error) *AnalyticsError {
	var message, suggestion string

	switch code {
	case CodeFileNotFound:
		message = fmt.Sprintf("file not found: %s", path)
		suggestion = "check if the file path is correct and the file exists"
	case CodeFilePermission:
		message = fmt.Sprintf("permission denied accessing file: %s", path)
		suggestion = "check file permissions and ensure you have read access"
	case CodeFileCorrupted:
		message = fmt.Sprintf("file appears to be corrupted: %s", path)
		suggestion = "re-export the report from the back office"
	case CodeUnsupportedFile:
		message = fmt.Sprintf("unsupported file type: %s", path)
		suggestion = "provide the report as .csv or .xlsx"
	default:
		message = fmt.Sprintf("file error: %s", path)
		suggestion = "check the file and try again"
	}

	return build(CategoryFile, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file_path", path)
}

// ParseError creates a parsing-related error for a whole report
func ParseError(code ErrorCode, file string, err error) *AnalyticsError {
	var message, suggestion string

	switch code {
	case CodeInvalidFormat:
		message = fmt.Sprintf("report %s could not be read as a table", file)
		suggestion = "check the delimiter and that the first row holds the headers"
	case CodeEncodingError:
		message = fmt.Sprintf("encoding error in report %s", file)
		suggestion = "ensure the file is saved in UTF-8 encoding"
	case CodeEmptyReport:
		message = fmt.Sprintf("report %s has no data rows", file)
		suggestion = "verify the export date range contains orders"
	default:
		message = fmt.Sprintf("parse error in report %s", file)
		suggestion = "check the file format and data integrity"
	}

	return build(CategoryParse, code, message, err).
		WithSuggestion(suggestion).
		WithContext("file", file)
}

// SchemaError creates a schema-mapping error
func SchemaError(code ErrorCode, report string, detail string) *AnalyticsError {
	var message, suggestion string

	switch code {
	case CodeMissingColumn:
		message = fmt.Sprintf("report %s is missing column %s", report, detail)
		suggestion = "add the column alias to the schema mapping or re-export with full columns"
	case CodeUnknownReportType:
		message = fmt.Sprintf("unknown report type %q", report)
		suggestion = "use SALES or INDEX"
	default:
		message = fmt.Sprintf("schema error in report %s: %s", report, detail)
		suggestion = "check the schema mapping"
	}

	return New(CategorySchema, code, message).
		WithSuggestion(suggestion).
		WithContext("report", report)
}

// ConfigurationError creates a configuration-related error
func ConfigurationError(code ErrorCode, setting string, value interface{}, err error) *AnalyticsError {
	var message, suggestion string

	switch code {
	case CodeInvalidConfig:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	case CodeNoInput:
		message = "no report was provided"
		suggestion = "pass --sales-file, --index-file or both"
	default:
		message = fmt.Sprintf("configuration error: %s", setting)
		suggestion = "check your configuration and try again"
	}

	return build(CategoryConfiguration, code, message, err).
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// MergeError creates a merge-related error; these are normally consumed by
// the merge fallback chain rather than returned to callers.
func MergeError(code ErrorCode, key string, detail string) *AnalyticsError {
	var message string

	switch code {
	case CodeDuplicateKeys:
		message = fmt.Sprintf("duplicate join keys on %s: %s", key, detail)
	case CodeMisalignedKey:
		message = fmt.Sprintf("join key %s is not aligned: %s", key, detail)
	default:
		message = fmt.Sprintf("merge error on %s: %s", key, detail)
	}

	return New(CategoryMerge, code, message).
		WithContext("join_key", key)
}

// AnalysisError creates an analysis-related error
func AnalysisError(code ErrorCode, analysis string, err error) *AnalyticsError {
	var message string

	switch code {
	case CodeNotComputable:
		message = fmt.Sprintf("%s is not computable for this input", analysis)
	default:
		message = fmt.Sprintf("analysis %s failed", analysis)
	}

	return build(CategoryAnalysis, code, message, err).
		WithContext("analysis", analysis)
}

// ExportError creates a report/export error
func ExportError(code ErrorCode, target string, err error) *AnalyticsError {
	return build(CategoryExport, code, fmt.Sprintf("failed to write %s", target), err).
		WithSuggestion("check the output path and available disk space").
		WithContext("target", target)
}

// InternalError creates an internal error
func InternalError(code ErrorCode, operation string, err error) *AnalyticsError {
	return build(CategoryInternal, code, fmt.Sprintf("unexpected error during %s", operation), err).
		WithSuggestion("this is likely a bug - please report it with the error details").
		WithContext("operation", operation)
}

// ErrorSummary provides a summary of multiple errors
type ErrorSummary struct {
	Total        int                   `json:"total"`
	ByCategory   map[ErrorCategory]int `json:"by_category"`
	ByCode       map[ErrorCode]int     `json:"by_code"`
	Errors       []*AnalyticsError     `json:"errors"`
	SampleErrors []*AnalyticsError     `json:"sample_errors,omitempty"`
}

// NewErrorSummary creates a new error summary
func NewErrorSummary(errs []*AnalyticsError) *ErrorSummary {
	summary := &ErrorSummary{
		Total:      len(errs),
		ByCategory: make(map[ErrorCategory]int),
		ByCode:     make(map[ErrorCode]int),
		Errors:     errs,
	}
	if summary.Errors == nil {
		summary.Errors = []*AnalyticsError{}
	}

	for _, err := range errs {
		summary.ByCategory[err.Category]++
		summary.ByCode[err.Code]++
	}

	maxSamples := 5
	if len(errs) > maxSamples {
		summary.SampleErrors = errs[:maxSamples]
	} else {
		summary.SampleErrors = errs
	}

	return summary
}

// Error returns a formatted error message for the summary
func (es *ErrorSummary) Error() string {
	if es.Total == 0 {
		return "no errors"
	}

	if es.Total == 1 {
		return es.Errors[0].Error()
	}

	var categories []string
	for category, count := range es.ByCategory {
		categories = append(categories, fmt.Sprintf("%s: %d", category, count))
	}
	sort.Strings(categories)

	return fmt.Sprintf("%d errors occurred (%s)", es.Total, strings.Join(categories, ", "))
}

// HasCategory checks if the summary contains errors of the given category
func (es *ErrorSummary) HasCategory(category ErrorCategory) bool {
	return es.ByCategory[category] > 0
}

// GetExitCode returns the highest priority exit code from all errors
func (es *ErrorSummary) GetExitCode() int {
	if es.Total == 0 {
		return 0
	}

	maxCode := 1
	for _, err := range es.Errors {
		if code := err.GetExitCode(); code > maxCode {
			maxCode = code
		}
	}

	return maxCode
}

// AsAnalyticsError extracts an AnalyticsError from an error chain
func AsAnalyticsError(err error) (*AnalyticsError, bool) {
	var analyticsErr *AnalyticsError
	if errors.As(err, &analyticsErr) {
		return analyticsErr, true
	}
	return nil, false
}

// WrapIfNeeded wraps an error if it's not already an AnalyticsError
func WrapIfNeeded(err error, category ErrorCategory, code ErrorCode, message string) *AnalyticsError {
	if err == nil {
		return nil
	}

	if analyticsErr, ok := AsAnalyticsError(err); ok {
		return analyticsErr
	}

	return Wrap(err, category, code, message)
}
