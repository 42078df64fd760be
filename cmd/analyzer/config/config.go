package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"

	"golang-pos-analytics/internal/analysis"
	"golang-pos-analytics/internal/portfolio"
	"golang-pos-analytics/internal/reporter"
	"golang-pos-analytics/pkg/logger"
)

// EnvPrefix is prepended to every environment override, e.g. POSANALYTICS_SALES_FILE
const EnvPrefix = "POSANALYTICS"

// Viper keys shared by flags, config files and the environment
const (
	KeySalesFile = "sales-file"
	KeyIndexFile = "index-file"
	KeySheet     = "sheet"
	KeyDelimiter = "delimiter"

	KeyOutputFormat = "output-format"
	KeyOutputFile   = "output-file"
	KeyTables       = "tables"
	KeyMaxRows      = "max-rows"
	KeyCSVDelimiter = "csv-delimiter"

	KeyMinSupport    = "min-support"
	KeyMinConfidence = "min-confidence"
	KeyMaxLen        = "max-len"
	KeyTopRules      = "top-rules"
	KeyPairMinCount  = "pair-min-count"
	KeyPairTopN      = "pair-top-n"

	KeyWindowWeeks    = "window-weeks"
	KeyZeroPrior      = "zero-prior"
	KeyZeroPriorScale = "zero-prior-scale"
	KeyZeroPriorCap   = "zero-prior-cap"

	KeyMinVisits   = "min-visits"
	KeyProblemTopN = "problem-top-n"
	KeyVIPShare    = "vip-share"
	KeyWhaleTopN   = "whale-top-n"

	KeyProgress    = "progress"
	KeyMetricsFile = "metrics-file"
	KeyVerbose     = "verbose"
	KeyLogLevel    = "log-level"
	KeyLogFormat   = "log-format"
	KeyLogFile     = "log-file"
)

// SetDefaults registers the default of every key on v
func SetDefaults(v *viper.Viper) {
	defaults := analysis.DefaultConfig()
	report := reporter.DefaultReportConfig()

	v.SetDefault(KeyOutputFormat, string(report.Format))
	v.SetDefault(KeyMaxRows, report.MaxConsoleRows)
	v.SetDefault(KeyCSVDelimiter, string(report.CSVDelimiter))

	v.SetDefault(KeyMinSupport, defaults.Basket.MinSupport)
	v.SetDefault(KeyMinConfidence, defaults.Basket.MinConfidence)
	v.SetDefault(KeyMaxLen, defaults.Basket.MaxLen)
	v.SetDefault(KeyTopRules, defaults.Basket.TopN)
	v.SetDefault(KeyPairMinCount, defaults.PairMinCount)
	v.SetDefault(KeyPairTopN, defaults.PairTopN)

	v.SetDefault(KeyWindowWeeks, defaults.Portfolio.WindowWeeks)
	v.SetDefault(KeyZeroPrior, string(defaults.Portfolio.ZeroPrior))
	v.SetDefault(KeyZeroPriorScale, defaults.Portfolio.ZeroPriorScale)
	v.SetDefault(KeyZeroPriorCap, defaults.Portfolio.ZeroPriorCap)

	v.SetDefault(KeyMinVisits, defaults.Retention.MinVisits)
	v.SetDefault(KeyProblemTopN, defaults.KPI.ProblemTopN)
	v.SetDefault(KeyVIPShare, defaults.KPI.VIPShare)
	v.SetDefault(KeyWhaleTopN, defaults.KPI.WhaleTopN)

	v.SetDefault(KeyLogLevel, string(logger.InfoLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
}

// BindEnv makes every key overridable through POSANALYTICS_* variables
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// CreateAnalysisConfig builds and validates the analysis configuration from v
func CreateAnalysisConfig(v *viper.Viper) (*analysis.Config, error) {
	config := analysis.DefaultConfig()

	config.SalesFile = strings.TrimSpace(v.GetString(KeySalesFile))
	config.IndexFile = strings.TrimSpace(v.GetString(KeyIndexFile))

	config.Read.Sheet = v.GetString(KeySheet)
	delimiter, err := parseDelimiter(v.GetString(KeyDelimiter), true)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyDelimiter, err)
	}
	config.Read.Delimiter = delimiter

	config.Basket.MinSupport = v.GetFloat64(KeyMinSupport)
	config.Basket.MinConfidence = v.GetFloat64(KeyMinConfidence)
	config.Basket.MaxLen = v.GetInt(KeyMaxLen)
	config.Basket.TopN = v.GetInt(KeyTopRules)
	config.PairMinCount = v.GetInt(KeyPairMinCount)
	config.PairTopN = v.GetInt(KeyPairTopN)

	config.Portfolio.WindowWeeks = v.GetInt(KeyWindowWeeks)
	config.Portfolio.ZeroPrior = portfolio.ZeroPriorPolicy(strings.ToLower(v.GetString(KeyZeroPrior)))
	config.Portfolio.ZeroPriorScale = v.GetFloat64(KeyZeroPriorScale)
	config.Portfolio.ZeroPriorCap = v.GetFloat64(KeyZeroPriorCap)

	config.Retention.MinVisits = v.GetInt(KeyMinVisits)
	config.KPI.ProblemTopN = v.GetInt(KeyProblemTopN)
	config.KPI.VIPShare = v.GetFloat64(KeyVIPShare)
	config.KPI.WhaleTopN = v.GetInt(KeyWhaleTopN)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateReportConfig builds the report configuration from v
func CreateReportConfig(v *viper.Viper) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(strings.ToLower(v.GetString(KeyOutputFormat)))
	config.MaxConsoleRows = v.GetInt(KeyMaxRows)
	config.Tables = v.GetStringSlice(KeyTables)

	delimiter, err := parseDelimiter(v.GetString(KeyCSVDelimiter), false)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", KeyCSVDelimiter, err)
	}
	config.CSVDelimiter = delimiter

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateLoggerConfig builds the logger configuration; verbose forces debug
func CreateLoggerConfig(v *viper.Viper) (*logger.Config, error) {
	config := logger.DefaultConfig()
	config.Level = logger.Level(strings.ToLower(v.GetString(KeyLogLevel)))
	config.Format = logger.Format(strings.ToLower(v.GetString(KeyLogFormat)))
	if v.GetBool(KeyVerbose) {
		config.Level = logger.DebugLevel
	}
	if file := v.GetString(KeyLogFile); file != "" {
		config.Output = logger.FileOutput
		config.File = file
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// parseDelimiter accepts a single character or the names "tab" and
// "semicolon". An empty value means sniffing when allowed.
func parseDelimiter(s string, allowEmpty bool) (rune, error) {
	switch strings.ToLower(s) {
	case "":
		if allowEmpty {
			return 0, nil
		}
		return 0, fmt.Errorf("delimiter cannot be empty")
	case "tab", `\t`:
		return '\t', nil
	case "semicolon":
		return ';', nil
	case "comma":
		return ',', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, fmt.Errorf("delimiter must be a single character, got %q", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}
