package parsers

import (
	"fmt"
	"sort"
	"strings"

	"golang-pos-analytics/internal/models"
)

// SchemaVersion identifies the alias table below. Bump it whenever an alias is
// added or remapped so that exported results can be traced to the mapping used.
const SchemaVersion = "2024.2"

// Canonical column names shared by both reports
const (
	ColOrderID        = "order_id"
	ColSaleID         = "sale_id"
	ColDate           = "date"
	ColTime           = "time"
	ColTimestamp      = "timestamp"
	ColPaidAt         = "paid_at"
	ColAmountTotal    = "amount_total"
	ColSubtotal       = "subtotal"
	ColDiscount       = "discount"
	ColDeliveryFee    = "delivery_fee"
	ColInvoiceAmount  = "invoice_amount"
	ColOrderType      = "order_type"
	ColPaymentMethods = "payment_methods"
	ColStatus         = "status"
	ColValidity       = "validity"
	ColVoided         = "voided"
	ColTable          = "table_id"
	ColCustomer       = "customer"
	ColServer         = "server_id"
	ColDetail         = "detail"
)

// SchemaMapping is an explicit alias -> canonical column table for one report type
type SchemaMapping struct {
	Version       string            `json:"version"`
	Report        models.ReportType `json:"report"`
	ColumnAliases map[string]string `json:"column_aliases"`
	MoneyColumns  []string          `json:"money_columns"`
	// ExpectedColumns are reported as missing when absent; absence is never fatal
	ExpectedColumns []string `json:"expected_columns"`
}

var moneyColumns = []string{ColAmountTotal, ColSubtotal, ColDiscount, ColDeliveryFee, ColInvoiceAmount}

// SalesSchema returns the mapping for the sales export
func SalesSchema() *SchemaMapping {
	return newSchema(models.ReportSales, map[string]string{
		"número":          ColOrderID,
		"numero":          ColOrderID,
		"nro":             ColOrderID,
		"ticket_id":       ColOrderID,
		"id":              ColSaleID,
		"fecha":           ColDate,
		"hora":            ColTime,
		"fecha_dt":        ColTimestamp,
		"fecha y hora":    ColTimestamp,
		"monto total":     ColAmountTotal,
		"monto_ventas":    ColAmountTotal,
		"subtotal":        ColSubtotal,
		"descuento":       ColDiscount,
		"tarifa delivery": ColDeliveryFee,
		"monto factura":   ColInvoiceAmount,
		"tipo de orden":   ColOrderType,
		"tipo_orden":      ColOrderType,
		"métodos de pago": ColPaymentMethods,
		"metodos de pago": ColPaymentMethods,
		"método de pago":  ColPaymentMethods,
		"metodo de pago":  ColPaymentMethods,
		"estado":          ColStatus,
		"validez":         ColValidity,
		"anulado":         ColVoided,
		"mesa":            ColTable,
		"cliente":         ColCustomer,
		"nombre cliente":  ColCustomer,
		"cliente nombre":  ColCustomer,
		"mesero":          ColServer,
		"detalle":         ColDetail,
	}, []string{ColOrderID, ColDate, ColTime, ColAmountTotal, ColDiscount, ColStatus, ColValidity, ColOrderType, ColDetail})
}

// IndexSchema returns the mapping for the order index export
func IndexSchema() *SchemaMapping {
	return newSchema(models.ReportIndex, map[string]string{
		"número":          ColOrderID,
		"numero":          ColOrderID,
		"ticket_id":       ColOrderID,
		"tipo":            ColOrderType,
		"tipo de orden":   ColOrderType,
		"mesa":            ColTable,
		"mesa_real":       ColTable,
		"estado":          ColStatus,
		"monto total":     ColAmountTotal,
		"monto":           ColAmountTotal,
		"creado el":       ColTimestamp,
		"creado_el":       ColTimestamp,
		"pagado el":       ColPaidAt,
		"pagado_el":       ColPaidAt,
		"anulado":         ColVoided,
		"cliente":         ColCustomer,
		"mesero":          ColServer,
		"métodos de pago": ColPaymentMethods,
		"metodos de pago": ColPaymentMethods,
		"descuento":       ColDiscount,
	}, []string{ColOrderID, ColTimestamp, ColPaidAt, ColStatus, ColAmountTotal, ColTable, ColVoided})
}

func newSchema(report models.ReportType, aliases map[string]string, expected []string) *SchemaMapping {
	s := &SchemaMapping{
		Version:         SchemaVersion,
		Report:          report,
		ColumnAliases:   make(map[string]string, len(aliases)+len(allCanonical)),
		MoneyColumns:    append([]string(nil), moneyColumns...),
		ExpectedColumns: expected,
	}
	// canonical names resolve to themselves so a normalized table re-normalizes unchanged
	for _, c := range allCanonical {
		s.ColumnAliases[c] = c
	}
	for alias, canonical := range aliases {
		s.ColumnAliases[alias] = canonical
	}
	return s
}

var allCanonical = []string{
	ColOrderID, ColSaleID, ColDate, ColTime, ColTimestamp, ColPaidAt,
	ColAmountTotal, ColSubtotal, ColDiscount, ColDeliveryFee, ColInvoiceAmount,
	ColOrderType, ColPaymentMethods, ColStatus, ColValidity, ColVoided,
	ColTable, ColCustomer, ColServer, ColDetail,
}

// SchemaFor returns the default mapping for a report type
func SchemaFor(report models.ReportType) (*SchemaMapping, error) {
	switch report {
	case models.ReportSales:
		return SalesSchema(), nil
	case models.ReportIndex:
		return IndexSchema(), nil
	default:
		return nil, fmt.Errorf("unknown report type %q", report)
	}
}

// WithAliases returns a copy of the mapping extended with extra aliases
func (s *SchemaMapping) WithAliases(extra map[string]string) *SchemaMapping {
	clone := *s
	clone.ColumnAliases = make(map[string]string, len(s.ColumnAliases)+len(extra))
	for k, v := range s.ColumnAliases {
		clone.ColumnAliases[k] = v
	}
	for k, v := range extra {
		clone.ColumnAliases[aliasKey(k)] = v
	}
	return &clone
}

// Validate checks that every alias points at a known canonical column
func (s *SchemaMapping) Validate() error {
	if !s.Report.IsValid() {
		return fmt.Errorf("invalid report type: %s", s.Report)
	}
	known := make(map[string]bool, len(allCanonical))
	for _, c := range allCanonical {
		known[c] = true
	}
	var unknown []string
	for alias, canonical := range s.ColumnAliases {
		if !known[canonical] {
			unknown = append(unknown, fmt.Sprintf("%s->%s", alias, canonical))
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("aliases map to unknown canonical columns: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Resolve maps a raw header to its canonical name, case-insensitively
func (s *SchemaMapping) Resolve(header string) (string, bool) {
	canonical, ok := s.ColumnAliases[aliasKey(header)]
	return canonical, ok
}

// IsMoney reports whether a canonical column holds a monetary amount
func (s *SchemaMapping) IsMoney(canonical string) bool {
	for _, c := range s.MoneyColumns {
		if c == canonical {
			return true
		}
	}
	return false
}

func aliasKey(header string) string {
	return strings.ToLower(strings.Join(strings.Fields(header), " "))
}
