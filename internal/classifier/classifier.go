// Package classifier attaches business-rule flags to normalized records.
//
// Sales rows are flagged as valid, real sale, internal consumption, rental
// (office membership and supply deliveries billed through the POS) or pending
// payment. Index rows only carry validity. Flagging never mutates its input:
// every call returns fresh copies.
//
// Example usage:
//
//	c := classifier.New(classifier.DefaultRules())
//	flagged, stats := c.Classify(records)
package classifier

import (
	"fmt"
	"regexp"
	"strings"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/logger"
)

// DefaultRentalPattern matches the membership and supply-delivery lines that
// are billed through the till but are not sales
const DefaultRentalPattern = `(?i)\d[x×]\s*Cuota de membresía por Oficina C&C \(|1[x×]\s*Entrega de insumos \(`

// Rules holds the labels and patterns used to derive flags
type Rules struct {
	PaidStatus        string
	ValidStates       []string // accepted spellings of the valid state
	InternalOrderType string
	RentalPattern     *regexp.Regexp
}

// DefaultRules returns the rules used by the back office exports
func DefaultRules() *Rules {
	return &Rules{
		PaidStatus:        models.StatusPaid,
		ValidStates:       []string{models.ValidityValid, "VALIDO"},
		InternalOrderType: models.OrderTypeInternal,
		RentalPattern:     regexp.MustCompile(DefaultRentalPattern),
	}
}

// Validate checks the rules for consistency
func (r *Rules) Validate() error {
	if strings.TrimSpace(r.PaidStatus) == "" {
		return fmt.Errorf("paid status cannot be empty")
	}
	if len(r.ValidStates) == 0 {
		return fmt.Errorf("at least one valid state is required")
	}
	if r.RentalPattern == nil {
		return fmt.Errorf("rental pattern is required")
	}
	return nil
}

// Stats counts the flags assigned in one classification run
type Stats struct {
	Total     int `json:"total"`
	Valid     int `json:"valid"`
	RealSales int `json:"real_sales"`
	Internal  int `json:"internal"`
	Rental    int `json:"rental"`
	Pending   int `json:"pending"`
}

// String returns a human-readable summary of the classification
func (s *Stats) String() string {
	return fmt.Sprintf("%d records: %d valid, %d real sales, %d internal, %d rental, %d pending",
		s.Total, s.Valid, s.RealSales, s.Internal, s.Rental, s.Pending)
}

// Classifier derives flags for records
type Classifier struct {
	rules  *Rules
	logger logger.Logger
}

// New creates a classifier; nil rules selects DefaultRules
func New(rules *Rules) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{
		rules:  rules,
		logger: logger.GetGlobalLogger().WithComponent("classifier"),
	}
}

// Classify returns flagged copies of the records. The input slice and its
// records are left untouched.
func (c *Classifier) Classify(records []*models.Record) ([]*models.Record, *Stats) {
	out := make([]*models.Record, 0, len(records))
	stats := &Stats{}

	for _, r := range records {
		if r == nil {
			continue
		}
		flags := c.Flags(r)
		out = append(out, r.WithFlags(flags))

		stats.Total++
		if flags.IsValid {
			stats.Valid++
		}
		if flags.IsRealSale {
			stats.RealSales++
		}
		if flags.IsInternal {
			stats.Internal++
		}
		if flags.IsRentalExempt {
			stats.Rental++
		}
		if flags.IsPendingPayment {
			stats.Pending++
		}
	}

	c.logger.WithFields(logger.Fields{
		"total":      stats.Total,
		"valid":      stats.Valid,
		"real_sales": stats.RealSales,
		"rental":     stats.Rental,
	}).Debug("Classified records")

	return out, stats
}

// Flags computes the flags for a single record
func (c *Classifier) Flags(r *models.Record) models.Flags {
	switch r.Report {
	case models.ReportIndex:
		return models.Flags{
			IsValid: r.Status == c.rules.PaidStatus && !r.Voided,
		}
	default:
		return c.salesFlags(r)
	}
}

func (c *Classifier) salesFlags(r *models.Record) models.Flags {
	paid := r.Status == c.rules.PaidStatus
	validState := c.isValidState(r.ValidityState)

	var f models.Flags
	f.IsValid = paid && validState
	f.IsRentalExempt = c.IsRental(r.DetailText)
	f.IsInternal = f.IsValid && r.OrderType == c.rules.InternalOrderType
	f.IsRealSale = f.IsValid && !f.IsInternal && !f.IsRentalExempt
	f.IsPendingPayment = !paid && validState
	return f
}

func (c *Classifier) isValidState(state string) bool {
	for _, s := range c.rules.ValidStates {
		if state == s {
			return true
		}
	}
	return false
}

// IsRental reports whether a detail text bills a rental concept
func (c *Classifier) IsRental(detail string) bool {
	if detail == "" {
		return false
	}
	return c.rules.RentalPattern.MatchString(detail)
}

// Classify flags records with the default rules
func Classify(records []*models.Record) []*models.Record {
	out, _ := New(nil).Classify(records)
	return out
}
