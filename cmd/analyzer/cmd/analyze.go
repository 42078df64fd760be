package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-pos-analytics/cmd/analyzer/config"
	"golang-pos-analytics/internal/analysis"
	"golang-pos-analytics/internal/metrics"
	"golang-pos-analytics/internal/reporter"
	"golang-pos-analytics/pkg/errors"
	"golang-pos-analytics/pkg/logger"
)

// Flags for the analyze command
var (
	salesFile    string
	indexFile    string
	outputFormat string
	outputFile   string
	showProgress bool
	metricsFile  string
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze point-of-sale sales and order index exports",
	Long: `Analyze loads the sales report, the order index report or both, joins them
into a master table and computes KPIs, association rules, the BCG product
matrix and customer recurrence.

Reports may be CSV (comma or semicolon separated) or XLSX. Either report can
be omitted; analyses that need the missing one are skipped with a warning.

Examples:
  # Both reports, console summary
  analyzer analyze --sales-file ventas.xlsx --index-file indice.xlsx

  # Sales only, full workbook
  analyzer analyze --sales-file ventas.csv --output-format xlsx --output-file reporte.xlsx

  # SQLite database for ad hoc queries
  analyzer analyze -s ventas.csv -i indice.csv -f sqlite -o analisis.db

  # Looser rules and a longer BCG window
  analyzer analyze -s ventas.csv --min-support 0.005 --min-confidence 0.2 --window-weeks 8

  # Progress bar and a Prometheus textfile
  analyzer analyze -s ventas.csv --progress --metrics-file analyzer.prom`,

	PreRunE:      validateAnalyzeFlags,
	RunE:         runAnalyze,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	defaults := analysis.DefaultConfig()
	flags := analyzeCmd.Flags()

	// Input flags
	flags.StringVarP(&salesFile, config.KeySalesFile, "s", "", "path to the sales report (CSV or XLSX)")
	flags.StringVarP(&indexFile, config.KeyIndexFile, "i", "", "path to the order index report (CSV or XLSX)")
	flags.String(config.KeySheet, "", "XLSX sheet to read (default: first sheet with data)")
	flags.String(config.KeyDelimiter, "", "CSV delimiter: a character, comma, semicolon or tab (default: sniffed)")

	// Output flags
	flags.StringVarP(&outputFormat, config.KeyOutputFormat, "f", "console", "output format: console, json, csv, xlsx, sqlite")
	flags.StringVarP(&outputFile, config.KeyOutputFile, "o", "", "output file path (default: stdout; required for sqlite)")
	flags.StringSlice(config.KeyTables, nil, "only output these tables, e.g. kpis,bcg_matrix")
	flags.Int(config.KeyMaxRows, reporter.DefaultReportConfig().MaxConsoleRows, "rows per table in console output")
	flags.String(config.KeyCSVDelimiter, ",", "delimiter for csv output")

	// Market basket flags
	flags.Float64(config.KeyMinSupport, defaults.Basket.MinSupport, "apriori minimum support (0, 1]")
	flags.Float64(config.KeyMinConfidence, defaults.Basket.MinConfidence, "minimum rule confidence [0, 1]")
	flags.Int(config.KeyMaxLen, defaults.Basket.MaxLen, "largest itemset size")
	flags.Int(config.KeyTopRules, defaults.Basket.TopN, "rules kept, by lift")
	flags.Int(config.KeyPairMinCount, defaults.PairMinCount, "minimum co-occurrences for a product pair")
	flags.Int(config.KeyPairTopN, defaults.PairTopN, "product pairs kept")

	// Portfolio flags
	flags.Int(config.KeyWindowWeeks, defaults.Portfolio.WindowWeeks, "BCG growth window in weeks")
	flags.String(config.KeyZeroPrior, string(defaults.Portfolio.ZeroPrior), "growth of products with no prior revenue: recent, cap, unclassifiable")
	flags.Float64(config.KeyZeroPriorScale, defaults.Portfolio.ZeroPriorScale, "scale applied to recent revenue under the recent policy")
	flags.Float64(config.KeyZeroPriorCap, defaults.Portfolio.ZeroPriorCap, "growth assigned under the cap policy")

	// Customer and KPI flags
	flags.Int(config.KeyMinVisits, defaults.Retention.MinVisits, "visits that make a customer recurrent")
	flags.Int(config.KeyProblemTopN, defaults.KPI.ProblemTopN, "problem products listed")
	flags.Float64(config.KeyVIPShare, defaults.KPI.VIPShare, "cumulative revenue share that defines VIP products")
	flags.Int(config.KeyWhaleTopN, defaults.KPI.WhaleTopN, "top spenders listed")

	// UI flags
	flags.BoolVar(&showProgress, config.KeyProgress, false, "show a stage progress bar on stderr")
	flags.StringVar(&metricsFile, config.KeyMetricsFile, "", "write run metrics to this file in Prometheus text format")

	viper.BindPFlags(flags)
}

func validateAnalyzeFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file and env)
	salesFile = viper.GetString(config.KeySalesFile)
	indexFile = viper.GetString(config.KeyIndexFile)
	outputFormat = strings.ToLower(viper.GetString(config.KeyOutputFormat))
	outputFile = viper.GetString(config.KeyOutputFile)
	showProgress = viper.GetBool(config.KeyProgress)
	metricsFile = viper.GetString(config.KeyMetricsFile)

	if salesFile == "" && indexFile == "" {
		return errors.ConfigurationError(errors.CodeNoInput, "reports", nil, nil)
	}

	if salesFile != "" {
		if err := validateFileExists(salesFile, "sales report"); err != nil {
			return err
		}
	}
	if indexFile != "" {
		if err := validateFileExists(indexFile, "index report"); err != nil {
			return err
		}
	}

	format := reporter.OutputFormat(outputFormat)
	if !format.IsValid() {
		return errors.ConfigurationError(errors.CodeInvalidConfig, config.KeyOutputFormat, outputFormat,
			fmt.Errorf("valid formats: console, json, csv, xlsx, sqlite"))
	}
	if format.NeedsFile() && outputFile == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, config.KeyOutputFile, nil,
			fmt.Errorf("%s output needs --output-file", format))
	}

	for _, path := range []string{outputFile, metricsFile} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return errors.FileError(errors.CodeFileNotFound, dir, err).
					WithSuggestion("create the output directory first")
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return errors.ConfigurationError(errors.CodeMissingConfig, description, nil, nil)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return errors.FileError(errors.CodeFileNotFound, filePath, err).
			WithContext("report", description)
	}
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}

	if info.IsDir() {
		return errors.FileError(errors.CodeUnsupportedFile, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return errors.FileError(errors.CodeFilePermission, filePath, err)
	}
	file.Close()

	return nil
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	v := viper.GetViper()
	stderr := cmd.ErrOrStderr()
	isVerbose := v.GetBool(config.KeyVerbose)

	analysisConfig, err := config.CreateAnalysisConfig(v)
	if err != nil {
		return err
	}
	reportConfig, err := config.CreateReportConfig(v)
	if err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "report", reportConfig, err)
	}

	if isVerbose {
		fmt.Fprintf(stderr, "Starting analysis...\n")
		if salesFile != "" {
			fmt.Fprintf(stderr, "Sales report: %s\n", salesFile)
		}
		if indexFile != "" {
			fmt.Fprintf(stderr, "Index report: %s\n", indexFile)
		}
		fmt.Fprintf(stderr, "Output format: %s\n", reportConfig.Format)
		if outputFile != "" {
			fmt.Fprintf(stderr, "Output file: %s\n", outputFile)
		}
	}

	registry := metrics.NewRegistry()
	pipeline, err := analysis.NewPipeline(analysisConfig, registry)
	if err != nil {
		return err
	}
	if showProgress {
		pipeline.SetProgressWriter(stderr)
	}
	if isVerbose {
		pipeline.AddProgressCallback(func(p *analysis.Progress) {
			fmt.Fprintf(stderr, "[%d/%d] %s (%.1f%% complete)\n",
				p.CompletedSteps, p.TotalSteps, p.CurrentStep, p.PercentComplete)
		})
	}

	result, runErr := pipeline.Run(ctx)
	if metricsFile != "" {
		if err := registry.WriteToTextfile(metricsFile); err != nil {
			logger.GetGlobalLogger().WithError(err).Warn("Failed to write metrics file")
		}
	}
	if runErr != nil {
		return runErr
	}

	generator, err := reporter.NewSafeReportGenerator(reportConfig, logger.GetGlobalLogger())
	if err != nil {
		return err
	}

	if outputFile != "" || reportConfig.Format.NeedsFile() {
		if err := generator.WriteFileSafely(result, outputFile); err != nil {
			return err
		}
	} else if err := generator.GenerateReportSafely(result, cmd.OutOrStdout()); err != nil {
		return err
	}

	if isVerbose {
		summary := result.Summary()
		fmt.Fprintf(stderr, "\nAnalysis completed successfully.\n")
		fmt.Fprintf(stderr, "Merge: %s (%d sales rows, %d index rows).\n",
			summary.Outcome, summary.SalesRows, summary.IndexRows)
		fmt.Fprintf(stderr, "Revenue %s over %d transactions.\n", summary.Revenue, summary.Transactions)
		fmt.Fprintf(stderr, "Found %d rules, %d classified products, %d customers.\n",
			summary.Rules, summary.Products, summary.Customers)
		for _, w := range result.Warnings {
			fmt.Fprintf(stderr, "Warning: %s\n", w)
		}
		fmt.Fprintf(stderr, "Processing time: %v\n", result.Duration)
	}

	return nil
}
