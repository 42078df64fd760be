package models

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ReportType identifies which back-office export a table came from
type ReportType string

const (
	// ReportSales is the line-item sales export (one row per order with a free-text detail)
	ReportSales ReportType = "SALES"
	// ReportIndex is the order-level listing with lifecycle timestamps
	ReportIndex ReportType = "INDEX"
)

// String returns the string representation of ReportType
func (r ReportType) String() string {
	return string(r)
}

// IsValid checks if the report type is one of the known exports
func (r ReportType) IsValid() bool {
	return r == ReportSales || r == ReportIndex
}

// Business status values after upper-casing
const (
	StatusPaid        = "PAGADO"
	ValidityValid     = "VÁLIDO"
	ValidityVoided    = "ANULADO"
	OrderTypeInternal = "INTERNO"
)

// RawTable is an untyped tabular export as read from disk.
// It is never mutated by normalization.
type RawTable struct {
	Source  string     `json:"source"`
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

// Width returns the number of columns
func (t *RawTable) Width() int {
	return len(t.Headers)
}

// Cell returns the value at row/col, or "" when the row is short
func (t *RawTable) Cell(row, col int) string {
	if row < 0 || row >= len(t.Rows) || col < 0 || col >= len(t.Rows[row]) {
		return ""
	}
	return t.Rows[row][col]
}

// Flags holds the business-rule classification attached to a record
type Flags struct {
	IsValid          bool `json:"is_valid"`
	IsRealSale       bool `json:"is_real_sale"`
	IsInternal       bool `json:"is_internal"`
	IsRentalExempt   bool `json:"is_rental_exempt"`
	IsPendingPayment bool `json:"is_pending_payment"`
}

// Consistent reports whether the flag invariants hold
func (f Flags) Consistent() bool {
	if f.IsRealSale && !f.IsValid {
		return false
	}
	return !(f.IsRealSale && f.IsInternal)
}

// Record is a normalized row of either report type.
// Monetary fields are always finite and non-negative.
type Record struct {
	Report  ReportType `json:"report"`
	OrderID string     `json:"order_id"`
	SaleID  string     `json:"sale_id,omitempty"`

	Timestamp   time.Time `json:"-"`
	PaidAt      time.Time `json:"-"`
	Day         time.Time `json:"-"`
	HourOfDay   int       `json:"hour_of_day"`
	WeekdayName string    `json:"weekday,omitempty"`

	AmountTotal   decimal.Decimal `json:"amount_total"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	InvoiceAmount decimal.Decimal `json:"invoice_amount"`

	OrderType      string `json:"order_type,omitempty"`
	PaymentMethods string `json:"payment_methods,omitempty"`
	Status         string `json:"status,omitempty"`
	ValidityState  string `json:"validity_state,omitempty"`
	Voided         bool   `json:"voided"`
	TableID        string `json:"table_id,omitempty"`
	Customer       string `json:"customer,omitempty"`
	ServerID       string `json:"server_id,omitempty"`
	DetailText     string `json:"detail_text,omitempty"`

	Flags Flags `json:"flags"`
}

// NewRecord creates an empty record of the given report type
func NewRecord(report ReportType) *Record {
	return &Record{
		Report:        report,
		HourOfDay:     -1,
		AmountTotal:   decimal.Zero,
		Subtotal:      decimal.Zero,
		Discount:      decimal.Zero,
		DeliveryFee:   decimal.Zero,
		InvoiceAmount: decimal.Zero,
	}
}

// SetTimestamp stores the timestamp and derives day, hour and weekday
func (r *Record) SetTimestamp(ts time.Time) {
	r.Timestamp = ts
	if ts.IsZero() {
		r.Day = time.Time{}
		r.HourOfDay = -1
		r.WeekdayName = ""
		return
	}
	r.Day = TruncateDay(ts)
	r.HourOfDay = ts.Hour()
	r.WeekdayName = ts.Weekday().String()
}

// HasTimestamp reports whether a timestamp was resolved
func (r *Record) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// GroupKey returns the identifier used to group rows of the same sale
func (r *Record) GroupKey() string {
	if r.SaleID != "" {
		return r.SaleID
	}
	return r.OrderID
}

// WithFlags returns a copy of the record carrying the given flags
func (r *Record) WithFlags(flags Flags) *Record {
	clone := *r
	clone.Flags = flags
	return &clone
}

// Validate checks the record invariants
func (r *Record) Validate() error {
	if !r.Report.IsValid() {
		return fmt.Errorf("invalid report type: %s", r.Report)
	}
	for name, amount := range map[string]decimal.Decimal{
		"amount_total":   r.AmountTotal,
		"subtotal":       r.Subtotal,
		"discount":       r.Discount,
		"delivery_fee":   r.DeliveryFee,
		"invoice_amount": r.InvoiceAmount,
	} {
		if amount.IsNegative() {
			return fmt.Errorf("%s cannot be negative: %s", name, amount.String())
		}
	}
	if !r.Flags.Consistent() {
		return fmt.Errorf("inconsistent flags for order %s", r.OrderID)
	}
	return nil
}

// String returns a string representation of the record
func (r *Record) String() string {
	return fmt.Sprintf("Record{Report: %s, OrderID: %s, Amount: %s, Status: %s, Time: %s}",
		r.Report, r.OrderID, r.AmountTotal.String(), r.Status, r.Timestamp.Format("2006-01-02 15:04"))
}

// MarshalJSON implements custom JSON marshaling for Record
func (r *Record) MarshalJSON() ([]byte, error) {
	type Alias Record
	return json.Marshal(&struct {
		Timestamp string `json:"timestamp,omitempty"`
		PaidAt    string `json:"paid_at,omitempty"`
		Day       string `json:"day,omitempty"`
		*Alias
	}{
		Timestamp: formatOptionalTime(r.Timestamp, time.RFC3339),
		PaidAt:    formatOptionalTime(r.PaidAt, time.RFC3339),
		Day:       formatOptionalTime(r.Day, "2006-01-02"),
		Alias:     (*Alias)(r),
	})
}

func formatOptionalTime(t time.Time, layout string) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(layout)
}

// Helper functions

// TruncateDay returns the calendar day of t at midnight in t's location
func TruncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// WeekStart returns the Monday starting the week that contains t
func WeekStart(t time.Time) time.Time {
	day := TruncateDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

var (
	currencyPrefix = regexp.MustCompile(`^\s*[^\d\-.,\s]+\.?`)
	moneyNoise     = regexp.MustCompile(`[^\d.,-]`)
)

// ParseMoney parses a noisy currency string such as "S/ 1.234,50" or "Bs. 12".
// It never fails: the boolean is false when the value had to be coerced to zero.
func ParseMoney(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" || strings.EqualFold(s, "nan") {
		return decimal.Zero, true
	}

	s = currencyPrefix.ReplaceAllString(s, "")
	s = moneyNoise.ReplaceAllString(s, "")

	s, ok := normalizeSeparators(s)
	if !ok {
		return decimal.Zero, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// normalizeSeparators resolves thousands and decimal separators into a plain
// dot-decimal number string.
func normalizeSeparators(s string) (string, bool) {
	negative := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	if s == "" || strings.Contains(s, "-") {
		return "", false
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		decimals := len(s) - lastComma - 1
		if strings.Count(s, ",") == 1 && decimals >= 1 && decimals <= 2 {
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case strings.Count(s, ".") > 1:
		groups := strings.Split(s, ".")
		for _, g := range groups[1:] {
			if len(g) != 3 {
				return "", false
			}
		}
		s = strings.Join(groups, "")
	}

	if negative {
		s = "-" + s
	}
	return s, true
}

// dayFirstLayouts lists the accepted day-first date/time layouts, most specific first
var dayFirstLayouts = []string{
	"2/1/2006 15:04:05",
	"2/1/2006 15:04",
	"2/1/2006",
	"2-1-2006 15:04:05",
	"2-1-2006 15:04",
	"2-1-2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDayFirst parses a date or date-time using the day-first convention.
// Unparsable input returns the zero time and false.
func ParseDayFirst(raw string) (time.Time, bool) {
	s := strings.Join(strings.Fields(raw), " ")
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dayFirstLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatDayFirst renders t in the canonical day-first layout
func FormatDayFirst(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("02/01/2006 15:04:05")
}

// ParseBoolFlag interprets the affirmative spellings used by the exports
func ParseBoolFlag(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sí", "si", "true", "yes", "1":
		return true
	default:
		return false
	}
}

// NormalizeLabel trims and upper-cases a categorical value
func NormalizeLabel(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// NormalizeIdentifier trims an identifier and drops a trailing ".0" left by spreadsheet exports
func NormalizeIdentifier(id string) string {
	id = strings.TrimSpace(id)
	if strings.HasSuffix(id, ".0") && len(id) > 2 {
		if _, err := decimal.NewFromString(id); err == nil {
			id = strings.TrimSuffix(id, ".0")
		}
	}
	return id
}
