package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang-pos-analytics/internal/analysis"
	"golang-pos-analytics/pkg/errors"
	"golang-pos-analytics/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with error handling and fallbacks
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"report_config",
			config,
			err,
		).WithSuggestion("Check the report configuration values")
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          logger.OrGlobal(log).WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely writes the report to writer, falling back to the
// console layout when the requested format fails
func (srg *SafeReportGenerator) GenerateReportSafely(result *analysis.Result, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Info("Starting report generation")

	if err := srg.validateInputs(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	if err := srg.generateWithFallback(result, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed")
		return err
	}

	srg.logger.Info("Report generation completed successfully")
	return nil
}

// WriteFileSafely writes the report to path. When path cannot be written a
// backup path next to it is tried.
func (srg *SafeReportGenerator) WriteFileSafely(result *analysis.Result, path string) error {
	if err := srg.validateInputs(result, io.Discard); err != nil {
		return err
	}

	ol := logger.NewOperationLogger("write_report", srg.logger).
		WithField("format", srg.config.Format).
		WithField("file_path", path)

	err := srg.WriteFile(result, path)
	if err == nil {
		ol.Success("Report written")
		return nil
	}
	if !srg.isFileError(err) {
		ol.Error(err, "Failed to write report")
		return srg.wrapGenerationError(err)
	}

	backupPath := srg.generateBackupPath(path)
	srg.logger.WithFields(logger.Fields{
		"original_file": path,
		"backup_file":   backupPath,
	}).Warn("Attempting output fallback")

	if backupErr := srg.WriteFile(result, backupPath); backupErr != nil {
		ol.Error(backupErr, "Backup output failed too")
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_output_fallback",
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", err, backupErr),
		)
	}

	fmt.Fprintf(os.Stderr, "Warning: Could not write to %s, report saved to %s\n", path, backupPath)
	ol.WithField("backup_file", backupPath).Success("Report written to backup location")
	return nil
}

// validateInputs validates the inputs for report generation
func (srg *SafeReportGenerator) validateInputs(result *analysis.Result, writer io.Writer) error {
	if result == nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_generation",
			fmt.Errorf("analysis result is nil"),
		).WithSuggestion("Run the analysis before generating a report")
	}

	if writer == nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_generation",
			fmt.Errorf("output writer is nil"),
		).WithSuggestion("Provide a valid output writer")
	}

	return nil
}

// generateWithFallback attempts to generate the report with fallback strategies
func (srg *SafeReportGenerator) generateWithFallback(result *analysis.Result, writer io.Writer) error {
	err := srg.GenerateReport(result, writer)
	if err == nil {
		return nil
	}

	srg.logger.WithError(err).Warn("Primary report generation failed, attempting fallback")

	if srg.shouldAttemptFormatFallback(err) {
		return srg.generateWithFormatFallback(result, writer, err)
	}

	return srg.wrapGenerationError(err)
}

// shouldAttemptFormatFallback only falls back from structured formats; a
// failing console write will fail again
func (srg *SafeReportGenerator) shouldAttemptFormatFallback(err error) bool {
	return srg.config.Format != FormatConsole && !srg.isFileError(err)
}

// generateWithFormatFallback attempts to generate with the console format
func (srg *SafeReportGenerator) generateWithFormatFallback(result *analysis.Result, writer io.Writer, originalErr error) error {
	fallbackConfig := *srg.config
	fallbackConfig.Format = FormatConsole

	srg.logger.WithField("fallback_format", FormatConsole).Info("Attempting format fallback")

	fallbackGenerator, err := NewReportGenerator(&fallbackConfig)
	if err != nil {
		return srg.wrapGenerationError(originalErr)
	}

	fmt.Fprintf(writer, "NOTE: Report generated in fallback format due to error with requested format\n")
	fmt.Fprintf(writer, "Original error: %v\n\n", originalErr)

	if err := fallbackGenerator.GenerateReport(result, writer); err != nil {
		return errors.InternalError(
			errors.CodeUnexpectedError,
			"report_fallback",
			fmt.Errorf("both primary and fallback generation failed: primary=%v, fallback=%v", originalErr, err),
		)
	}

	srg.logger.Info("Report generated successfully using format fallback")
	return nil
}

// isFileError checks if the error is file-related
func (srg *SafeReportGenerator) isFileError(err error) bool {
	if ae, ok := errors.AsAnalyticsError(err); ok && ae.Cause != nil {
		err = ae.Cause
	}
	return os.IsPermission(err) ||
		os.IsNotExist(err) ||
		os.IsExist(err) ||
		isSpaceError(err)
}

// generateBackupPath creates a backup file path
func (srg *SafeReportGenerator) generateBackupPath(originalPath string) string {
	dir := filepath.Dir(originalPath)
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]

	// fall back to the temp dir when the target directory is missing
	if _, err := os.Stat(dir); err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, fmt.Sprintf("%s_backup%s", name, ext))
}

// wrapGenerationError wraps generation errors with context
func (srg *SafeReportGenerator) wrapGenerationError(err error) error {
	if analyticsErr, ok := errors.AsAnalyticsError(err); ok {
		return analyticsErr
	}

	return errors.ExportError(
		errors.CodeWriteFailed,
		string(srg.config.Format),
		err,
	).WithSuggestion("Check the output destination and report format settings")
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		if w.Name() != "" {
			return fmt.Sprintf("file:%s", w.Name())
		}
		return "file:unnamed"
	default:
		return fmt.Sprintf("writer:%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "no space left") ||
		strings.Contains(msg, "disk full") ||
		strings.Contains(msg, "device full")
}
