package analysis

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"golang-pos-analytics/internal/basket"
	"golang-pos-analytics/internal/classifier"
	"golang-pos-analytics/internal/kpi"
	"golang-pos-analytics/internal/parsers"
	"golang-pos-analytics/internal/portfolio"
	"golang-pos-analytics/internal/retention"
	"golang-pos-analytics/pkg/errors"
)

// Config holds every setting of one analysis run
type Config struct {
	// Input reports; at least one is required
	SalesFile string `json:"sales_file" validate:"required_without=IndexFile"`
	IndexFile string `json:"index_file" validate:"required_without=SalesFile"`

	Read      *parsers.ReadConfig      `json:"-" validate:"-"`
	Normalize *parsers.NormalizeConfig `json:"-" validate:"-"`
	Rules     *classifier.Rules        `json:"-" validate:"-"`

	Basket       basket.Config    `json:"basket"`
	PairMinCount int              `json:"pair_min_count" validate:"min=1"`
	PairTopN     int              `json:"pair_top_n" validate:"min=1"`
	Portfolio    portfolio.Config `json:"portfolio"`
	Retention    retention.Config `json:"retention"`
	KPI          kpi.Config       `json:"kpi"`
}

// DefaultConfig returns a configuration with the default thresholds and no
// input files
func DefaultConfig() *Config {
	return &Config{
		Read:         parsers.DefaultReadConfig(),
		Normalize:    parsers.DefaultNormalizeConfig(),
		Rules:        classifier.DefaultRules(),
		Basket:       basket.DefaultConfig(),
		PairMinCount: basket.DefaultPairMinCount,
		PairTopN:     basket.DefaultPairTopN,
		Portfolio:    portfolio.DefaultConfig(),
		Retention:    retention.DefaultConfig(),
		KPI:          kpi.DefaultConfig(),
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// report json names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the struct tags and the settings the tags cannot express
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SalesFile) == "" && strings.TrimSpace(c.IndexFile) == "" {
		return errors.ConfigurationError(errors.CodeNoInput, "reports", nil, nil)
	}

	if err := validate.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			fe := verrs[0]
			return errors.ConfigurationError(errors.CodeInvalidConfig, fe.Namespace(), fe.Value(),
				fmt.Errorf("failed on %q rule", fe.Tag()))
		}
		return errors.ConfigurationError(errors.CodeInvalidConfig, "config", nil, err)
	}

	if err := c.Basket.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "basket", nil, err)
	}
	if err := c.Portfolio.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "portfolio", nil, err)
	}
	if c.Rules != nil {
		if err := c.Rules.Validate(); err != nil {
			return errors.ConfigurationError(errors.CodeInvalidConfig, "rules", nil, err)
		}
	}

	if c.SalesFile != "" && c.SalesFile == c.IndexFile {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "index_file", c.IndexFile,
			fmt.Errorf("sales and index reports must be different files"))
	}
	return nil
}
