package parsers

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/errors"
	"golang-pos-analytics/pkg/logger"
)

// NormalizeConfig holds configuration for normalization
type NormalizeConfig struct {
	MaxDiagnostics   int  // diagnostics kept as samples; all are counted
	DropEmptyColumns bool // drop columns where every cell is blank
}

// DefaultNormalizeConfig returns a configuration with sensible defaults
func DefaultNormalizeConfig() *NormalizeConfig {
	return &NormalizeConfig{
		MaxDiagnostics:   100,
		DropEmptyColumns: true,
	}
}

// Normalizer maps a raw table onto canonical typed records
type Normalizer struct {
	schema *SchemaMapping
	config *NormalizeConfig
	logger logger.Logger
}

// NewNormalizer creates a normalizer for the given schema
func NewNormalizer(schema *SchemaMapping, config *NormalizeConfig) *Normalizer {
	if config == nil {
		config = DefaultNormalizeConfig()
	}
	return &Normalizer{
		schema: schema,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("normalizer").WithField("report", schema.Report.String()),
	}
}

// NormalizeResult holds the records produced from one table
type NormalizeResult struct {
	Report      models.ReportType   `json:"report"`
	Records     []*models.Record    `json:"records"`
	Stats       *NormalizeStats     `json:"stats"`
	Diagnostics *errors.Diagnostics `json:"-"`
}

// NormalizeStats holds statistics about a normalization run
type NormalizeStats struct {
	Source            string   `json:"source"`
	SchemaVersion     string   `json:"schema_version"`
	TotalRows         int      `json:"total_rows"`
	RecordsNormalized int      `json:"records_normalized"`
	EmptyRowsSkipped  int      `json:"empty_rows_skipped"`
	DroppedColumns    []string `json:"dropped_columns,omitempty"`
	UnmappedColumns   []string `json:"unmapped_columns,omitempty"`
	MissingColumns    []string `json:"missing_columns,omitempty"`
	Coercions         int      `json:"coercions"`
}

// String returns a human-readable summary of normalization statistics
func (s *NormalizeStats) String() string {
	return fmt.Sprintf("Normalized %d of %d rows (%d empty skipped), %d values coerced, %d columns dropped, %d missing",
		s.RecordsNormalized, s.TotalRows, s.EmptyRowsSkipped, s.Coercions, len(s.DroppedColumns), len(s.MissingColumns))
}

// Normalize converts the table into records. Unusable cells are coerced and
// recorded as diagnostics; only an unusable schema or a nil table fails.
func (n *Normalizer) Normalize(table *models.RawTable) (*NormalizeResult, error) {
	if table == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "normalize", fmt.Errorf("nil table"))
	}
	if err := n.schema.Validate(); err != nil {
		return nil, errors.SchemaError(errors.CodeUnknownReportType, n.schema.Report.String(), err.Error())
	}

	plan := n.planColumns(table)
	stats := &NormalizeStats{
		Source:          table.Source,
		SchemaVersion:   n.schema.Version,
		TotalRows:       len(table.Rows),
		DroppedColumns:  plan.dropped,
		UnmappedColumns: plan.unmapped,
		MissingColumns:  plan.missing(n.schema.ExpectedColumns),
	}
	diags := errors.NewDiagnostics(n.config.MaxDiagnostics)

	if len(stats.MissingColumns) > 0 {
		n.logger.WithFields(logger.Fields{
			"source":  table.Source,
			"missing": stats.MissingColumns,
		}).Warn("Report is missing expected columns, dependent fields stay empty")
	}

	records := make([]*models.Record, 0, len(table.Rows))
	for i, row := range table.Rows {
		if isEmptyRecord(row) {
			stats.EmptyRowsSkipped++
			continue
		}
		v := rowView{
			row:    row,
			plan:   plan,
			source: table.Source,
			line:   i + 2, // header is line 1
			diags:  diags,
		}
		records = append(records, n.buildRecord(v))
	}

	stats.RecordsNormalized = len(records)
	stats.Coercions = diags.Total()

	n.logger.WithFields(logger.Fields{
		"source":    table.Source,
		"records":   stats.RecordsNormalized,
		"coercions": stats.Coercions,
		"dropped":   len(stats.DroppedColumns),
	}).Info("Normalized report")

	return &NormalizeResult{
		Report:      n.schema.Report,
		Records:     records,
		Stats:       stats,
		Diagnostics: diags,
	}, nil
}

// columnPlan maps canonical column names to raw column positions
type columnPlan struct {
	index    map[string]int
	dropped  []string
	unmapped []string
}

func (p columnPlan) missing(expected []string) []string {
	var out []string
	for _, col := range expected {
		if _, ok := p.index[col]; ok {
			continue
		}
		// date and time are satisfied by a combined timestamp column
		if (col == ColDate || col == ColTime) && p.has(ColTimestamp) {
			continue
		}
		out = append(out, col)
	}
	return out
}

func (p columnPlan) has(col string) bool {
	_, ok := p.index[col]
	return ok
}

func (n *Normalizer) planColumns(table *models.RawTable) columnPlan {
	plan := columnPlan{index: make(map[string]int)}

	for i, header := range table.Headers {
		if header == "" || autoGeneratedHeader.MatchString(header) {
			plan.dropped = append(plan.dropped, displayHeader(header, i))
			continue
		}
		if n.config.DropEmptyColumns && columnIsEmpty(table, i) {
			plan.dropped = append(plan.dropped, header)
			continue
		}

		canonical, ok := n.schema.Resolve(header)
		if !ok {
			plan.unmapped = append(plan.unmapped, header)
			continue
		}
		if prev, dup := plan.index[canonical]; dup {
			n.logger.WithFields(logger.Fields{
				"column":    header,
				"canonical": canonical,
				"kept":      table.Headers[prev],
			}).Warn("Several columns map to the same canonical name, keeping the first")
			plan.unmapped = append(plan.unmapped, header)
			continue
		}
		plan.index[canonical] = i
	}

	return plan
}

func displayHeader(header string, i int) string {
	if header == "" {
		return fmt.Sprintf("<column %d>", i+1)
	}
	return header
}

func columnIsEmpty(table *models.RawTable, col int) bool {
	for r := range table.Rows {
		if strings.TrimSpace(table.Cell(r, col)) != "" {
			return false
		}
	}
	return true
}

// rowView reads canonical fields from one raw row and records coercions
type rowView struct {
	row    []string
	plan   columnPlan
	source string
	line   int
	diags  *errors.Diagnostics
}

func (v rowView) get(col string) string {
	i, ok := v.plan.index[col]
	if !ok || i >= len(v.row) {
		return ""
	}
	return strings.TrimSpace(v.row[i])
}

func (v rowView) has(col string) bool {
	return v.plan.has(col)
}

func (v rowView) note(col, value string, action errors.CoercionAction, reason string) {
	v.diags.Add(errors.Diagnostic{
		File:   v.source,
		Row:    v.line,
		Column: col,
		Value:  value,
		Action: action,
		Reason: reason,
	})
}

func (v rowView) money(col string) decimal.Decimal {
	raw := v.get(col)
	amount, ok := models.ParseMoney(raw)
	if !ok {
		v.note(col, raw, errors.ActionZeroed, "unparsable or negative amount")
	}
	return amount
}

func (v rowView) timestamp(col string) time.Time {
	raw := v.get(col)
	if raw == "" {
		return time.Time{}
	}
	ts, ok := models.ParseDayFirst(raw)
	if !ok {
		v.note(col, raw, errors.ActionNulled, "unrecognized date format")
	}
	return ts
}

func (v rowView) flag(col string) bool {
	raw := v.get(col)
	if raw != "" && !isBoolLiteral(raw) {
		v.note(col, raw, errors.ActionDefaulted, "not a yes/no value, read as false")
	}
	return models.ParseBoolFlag(raw)
}

func isBoolLiteral(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sí", "si", "true", "yes", "1", "no", "false", "0":
		return true
	default:
		return false
	}
}

// resolveTimestamp prefers a combined timestamp column and falls back to date + time
func (v rowView) resolveTimestamp() time.Time {
	if v.has(ColTimestamp) {
		return v.timestamp(ColTimestamp)
	}

	date, clock := v.get(ColDate), v.get(ColTime)
	if date == "" {
		if clock != "" {
			v.note(ColDate, clock, errors.ActionNulled, "time without a date")
		}
		return time.Time{}
	}

	raw := strings.TrimSpace(date + " " + clock)
	ts, ok := models.ParseDayFirst(raw)
	if !ok && clock != "" {
		// keep the day when only the clock is malformed
		if day, dayOK := models.ParseDayFirst(date); dayOK {
			v.note(ColTime, clock, errors.ActionNulled, "unrecognized time, kept the date")
			return day
		}
	}
	if !ok {
		v.note(ColDate, raw, errors.ActionNulled, "unrecognized date format")
	}
	return ts
}

func (n *Normalizer) buildRecord(v rowView) *models.Record {
	r := models.NewRecord(n.schema.Report)

	r.OrderID = models.NormalizeIdentifier(v.get(ColOrderID))
	r.SaleID = models.NormalizeIdentifier(v.get(ColSaleID))

	r.SetTimestamp(v.resolveTimestamp())
	r.PaidAt = v.timestamp(ColPaidAt)

	r.AmountTotal = v.money(ColAmountTotal)
	r.Subtotal = v.money(ColSubtotal)
	r.Discount = v.money(ColDiscount)
	r.DeliveryFee = v.money(ColDeliveryFee)
	r.InvoiceAmount = v.money(ColInvoiceAmount)

	r.OrderType = models.NormalizeLabel(v.get(ColOrderType))
	r.Status = models.NormalizeLabel(v.get(ColStatus))
	r.ValidityState = models.NormalizeLabel(v.get(ColValidity))
	r.Voided = v.flag(ColVoided)

	r.PaymentMethods = v.get(ColPaymentMethods)
	r.TableID = v.get(ColTable)
	r.Customer = v.get(ColCustomer)
	r.ServerID = v.get(ColServer)
	r.DetailText = v.get(ColDetail)

	return r
}

// NormalizeTable is a convenience wrapper using the default schema for the report type
func NormalizeTable(table *models.RawTable, report models.ReportType) (*NormalizeResult, error) {
	schema, err := SchemaFor(report)
	if err != nil {
		return nil, errors.SchemaError(errors.CodeUnknownReportType, report.String(), err.Error())
	}
	return NewNormalizer(schema, nil).Normalize(table)
}
