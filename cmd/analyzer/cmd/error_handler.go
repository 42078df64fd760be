package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"golang-pos-analytics/cmd/analyzer/config"
	"golang-pos-analytics/pkg/errors"
	"golang-pos-analytics/pkg/logger"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler writing to stderr
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool(config.KeyVerbose),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Debug("Command failed")

	if analyticsErr, ok := errors.AsAnalyticsError(err); ok {
		return h.handleAnalyticsError(analyticsErr)
	}

	return h.handleGenericError(err)
}

// handleAnalyticsError prints the message, context, suggestion and category help
func (h *CLIErrorHandler) handleAnalyticsError(err *errors.AnalyticsError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key, value := range err.Context {
			if value != nil {
				keys = append(keys, key)
			}
		}
		sort.Strings(keys)
		if len(keys) > 0 {
			fmt.Fprintf(h.out, "\nContext:\n")
			for _, key := range keys {
				fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
			}
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles errors outside the analytics taxonomy, mostly
// flag parsing failures reported by cobra
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 6
	}

	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'analyzer --help' for usage.\n")
	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the report exists and is readable
• Verify the path is correct (use absolute paths if needed)
• Reports must be .csv or .xlsx exports`

	case errors.CategoryParse:
		return `Parse error help:
• Re-export the report from the back office
• CSV files may use ',' or ';'; force one with --delimiter
• For workbooks with several sheets pick one with --sheet
• Save CSV files as UTF-8 when accents look broken`

	case errors.CategorySchema:
		return `Schema error help:
• Check the header row of the report
• Sales reports need Número, Fecha, Monto total and Detalle columns
• Index reports need Numero, Creado el and Estado columns`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Environment overrides use the POSANALYTICS_ prefix
• Use 'analyzer analyze --help' to see all available options`

	case errors.CategoryMerge, errors.CategoryAnalysis:
		return `Analysis error help:
• Check that both reports cover the same date range
• Try running with a single report to isolate the problem
• Run with --verbose for per-stage details`

	case errors.CategoryExport:
		return `Export error help:
• Check that the output directory exists and is writable
• sqlite output needs --output-file
• Close the output file if another program has it open`

	default:
		return `For more help:
• Use 'analyzer --help' for general help
• Use 'analyzer analyze --help' for command-specific help
• Run with --verbose and report the output if the problem persists`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full") ||
		strings.Contains(errStr, "device full")
}
