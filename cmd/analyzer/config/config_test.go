package config

import (
	"testing"

	"github.com/spf13/viper"

	"golang-pos-analytics/internal/portfolio"
	"golang-pos-analytics/internal/reporter"
	"golang-pos-analytics/pkg/errors"
	"golang-pos-analytics/pkg/logger"
)

func newViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	return v
}

func TestCreateAnalysisConfig(t *testing.T) {
	v := newViper()
	v.Set(KeySalesFile, " ventas.csv ")
	v.Set(KeyMinSupport, 0.05)
	v.Set(KeyZeroPrior, "CAP")
	v.Set(KeyDelimiter, "semicolon")

	config, err := CreateAnalysisConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if config.SalesFile != "ventas.csv" {
		t.Errorf("expected trimmed sales file, got %q", config.SalesFile)
	}
	if config.Basket.MinSupport != 0.05 {
		t.Errorf("expected min support 0.05, got %v", config.Basket.MinSupport)
	}
	if config.Portfolio.ZeroPrior != portfolio.ZeroPriorCap {
		t.Errorf("expected zero prior policy cap, got %q", config.Portfolio.ZeroPrior)
	}
	if config.Read.Delimiter != ';' {
		t.Errorf("expected ';' delimiter, got %q", config.Read.Delimiter)
	}
	if config.Basket.MaxLen != 3 || config.Retention.MinVisits != 2 {
		t.Errorf("expected defaults to survive, got max len %d and min visits %d",
			config.Basket.MaxLen, config.Retention.MinVisits)
	}
}

func TestCreateAnalysisConfig_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*viper.Viper)
		code  errors.ErrorCode
	}{
		{
			name:  "no reports",
			setup: func(v *viper.Viper) {},
			code:  errors.CodeNoInput,
		},
		{
			name: "support above one",
			setup: func(v *viper.Viper) {
				v.Set(KeyIndexFile, "indice.csv")
				v.Set(KeyMinSupport, 2.0)
			},
			code: errors.CodeInvalidConfig,
		},
		{
			name: "unknown zero prior policy",
			setup: func(v *viper.Viper) {
				v.Set(KeySalesFile, "ventas.csv")
				v.Set(KeyZeroPrior, "ignore")
			},
			code: errors.CodeInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper()
			tt.setup(v)

			_, err := CreateAnalysisConfig(v)
			ae, ok := errors.AsAnalyticsError(err)
			if !ok {
				t.Fatalf("expected an analytics error, got %v", err)
			}
			if ae.Code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, ae.Code)
			}
		})
	}

	v := newViper()
	v.Set(KeySalesFile, "ventas.csv")
	v.Set(KeyDelimiter, ";;")
	if _, err := CreateAnalysisConfig(v); err == nil {
		t.Error("expected an error for a multi-character delimiter")
	}
}

func TestCreateReportConfig(t *testing.T) {
	v := newViper()
	config, err := CreateReportConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Format != reporter.FormatConsole {
		t.Errorf("expected console format, got %s", config.Format)
	}
	if config.CSVDelimiter != ',' {
		t.Errorf("expected ',' csv delimiter, got %q", config.CSVDelimiter)
	}

	v.Set(KeyOutputFormat, "XLSX")
	v.Set(KeyTables, []string{"kpis", "bcg_matrix"})
	v.Set(KeyCSVDelimiter, "tab")
	config, err = CreateReportConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Format != reporter.FormatXLSX {
		t.Errorf("expected xlsx format, got %s", config.Format)
	}
	if len(config.Tables) != 2 {
		t.Errorf("expected 2 selected tables, got %v", config.Tables)
	}
	if config.CSVDelimiter != '\t' {
		t.Errorf("expected tab delimiter, got %q", config.CSVDelimiter)
	}

	v.Set(KeyOutputFormat, "pdf")
	if _, err := CreateReportConfig(v); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestCreateLoggerConfig(t *testing.T) {
	v := newViper()
	config, err := CreateLoggerConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Level != logger.InfoLevel || config.Output != logger.StderrOutput {
		t.Errorf("unexpected defaults: %+v", config)
	}

	v.Set(KeyVerbose, true)
	v.Set(KeyLogFormat, "json")
	v.Set(KeyLogFile, "analisis.log")
	config, err = CreateLoggerConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Level != logger.DebugLevel {
		t.Errorf("verbose should force debug, got %s", config.Level)
	}
	if config.Output != logger.FileOutput || config.File != "analisis.log" {
		t.Errorf("expected file output, got %+v", config)
	}

	v.Set(KeyLogFormat, "xml")
	if _, err := CreateLoggerConfig(v); err == nil {
		t.Error("expected an error for an unknown log format")
	}
}

func TestBindEnv(t *testing.T) {
	t.Setenv("POSANALYTICS_SALES_FILE", "ventas-env.csv")
	t.Setenv("POSANALYTICS_MIN_SUPPORT", "0.2")

	v := newViper()
	BindEnv(v)

	config, err := CreateAnalysisConfig(v)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.SalesFile != "ventas-env.csv" {
		t.Errorf("expected sales file from env, got %q", config.SalesFile)
	}
	if config.Basket.MinSupport != 0.2 {
		t.Errorf("expected min support from env, got %v", config.Basket.MinSupport)
	}
}
