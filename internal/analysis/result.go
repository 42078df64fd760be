package analysis

import (
	"strings"
	"time"

	"golang-pos-analytics/internal/basket"
	"golang-pos-analytics/internal/classifier"
	"golang-pos-analytics/internal/kpi"
	"golang-pos-analytics/internal/merger"
	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/internal/parsers"
	"golang-pos-analytics/internal/portfolio"
	"golang-pos-analytics/internal/retention"
	"golang-pos-analytics/pkg/errors"
)

// LoadedReport is one report after normalization and classification
type LoadedReport struct {
	Path           string                  `json:"path"`
	Report         models.ReportType       `json:"report"`
	Records        []*models.Record        `json:"-"`
	Normalization  *parsers.NormalizeStats `json:"normalization"`
	Classification *classifier.Stats       `json:"classification"`
	Diagnostics    *errors.Diagnostics     `json:"-"`
}

// records returns nil for an absent report so downstream stages can tell
// absent from empty
func (lr *LoadedReport) records() []*models.Record {
	if lr == nil {
		return nil
	}
	return lr.Records
}

// Result holds everything one run produced. Nil analyses were not computable.
type Result struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`

	Sales *LoadedReport `json:"sales,omitempty"`
	Index *LoadedReport `json:"index,omitempty"`

	Merge     *merger.MergeResult            `json:"merge"`
	KPIs      *kpi.Report                    `json:"kpis"`
	Basket    *basket.Result                 `json:"basket,omitempty"`
	Pairs     []basket.Pair                  `json:"pairs,omitempty"`
	Portfolio []models.ProductClassification `json:"portfolio,omitempty"`
	Retention *retention.Result              `json:"retention,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// Summary is the short form printed at the end of a run
type Summary struct {
	RunID        string  `json:"run_id"`
	Outcome      string  `json:"merge_outcome"`
	SalesRows    int     `json:"sales_rows"`
	IndexRows    int     `json:"index_rows"`
	Revenue      string  `json:"revenue"`
	Transactions int     `json:"transactions"`
	Rules        int     `json:"rules"`
	Products     int     `json:"products"`
	Customers    int     `json:"customers"`
	DurationSec  float64 `json:"duration_seconds"`
}

// Summary condenses the result
func (r *Result) Summary() Summary {
	s := Summary{
		RunID:       r.RunID,
		SalesRows:   len(r.Sales.records()),
		IndexRows:   len(r.Index.records()),
		Products:    len(r.Portfolio),
		DurationSec: r.Duration.Seconds(),
	}
	if r.Merge != nil {
		s.Outcome = r.Merge.Outcome.String()
	}
	if r.KPIs != nil && r.KPIs.Financial != nil {
		s.Revenue = r.KPIs.Financial.TotalRevenue.StringFixed(2)
		s.Transactions = r.KPIs.Financial.Transactions
	}
	if r.Basket != nil {
		s.Rules = len(r.Basket.Rules)
	}
	if r.Retention != nil {
		s.Customers = r.Retention.Customers
	}
	return s
}

// Tables flattens the result into named tables for the report writers.
// Empty tables are omitted.
func (r *Result) Tables() []*models.ResultTable {
	var tables []*models.ResultTable
	add := func(t *models.ResultTable) {
		if t.Len() > 0 {
			tables = append(tables, t)
		}
	}

	add(r.runTable())
	add(r.normalizationTable())
	add(r.mergeTable())
	if r.KPIs != nil {
		tables = append(tables, r.KPIs.ResultTables()...)
	}
	if r.Basket != nil {
		add(basket.RulesTable(r.Basket.Rules))
	}
	add(basket.PairsTable(r.Pairs))
	add(portfolio.Table(r.Portfolio))
	if r.Retention != nil {
		add(r.Retention.SummaryTable())
		add(r.Retention.RetentionTable())
	}
	return tables
}

func (r *Result) runTable() *models.ResultTable {
	t := models.NewResultTable("run", "field", "value")
	t.Append("run_id", r.RunID)
	t.Append("started_at", r.StartedAt.Format(time.RFC3339))
	t.Append("duration_seconds", r.Duration.Seconds())
	if r.Merge != nil {
		t.Append("merge_outcome", r.Merge.Outcome.String())
	}
	if len(r.Warnings) > 0 {
		t.Append("warnings", strings.Join(r.Warnings, "; "))
	}
	return t
}

func (r *Result) normalizationTable() *models.ResultTable {
	t := models.NewResultTable("normalization",
		"report", "source", "schema_version", "total_rows", "records", "empty_rows_skipped",
		"coercions", "valid", "real_sales", "rental", "pending", "missing_columns")
	for _, lr := range []*LoadedReport{r.Sales, r.Index} {
		if lr == nil || lr.Normalization == nil {
			continue
		}
		n := lr.Normalization
		c := lr.Classification
		if c == nil {
			c = &classifier.Stats{}
		}
		t.Append(lr.Report.String(), n.Source, n.SchemaVersion, n.TotalRows, n.RecordsNormalized,
			n.EmptyRowsSkipped, n.Coercions, c.Valid, c.RealSales, c.Rental, c.Pending,
			strings.Join(n.MissingColumns, ", "))
	}
	return t
}

func (r *Result) mergeTable() *models.ResultTable {
	t := models.NewResultTable("merge_attempts", "strategy", "success", "error")
	if r.Merge == nil {
		return t
	}
	for _, a := range r.Merge.Attempts {
		t.Append(a.Strategy, a.Success, a.Error)
	}
	return t
}
