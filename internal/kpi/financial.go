// Package kpi computes the scalar and grouped business indicators of the
// dashboard from classified records and the master table.
//
// Every aggregate guards its divisions and returns zero instead of NaN. An
// analysis that has no input rows after filtering returns nil so callers can
// tell "not computable" apart from an empty but valid result.
package kpi

import (
	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
)

// Business keys exposed by Financial.AsMap
const (
	KeyTotalRevenue   = "Ventas Totales"
	KeyTransactions   = "Transacciones"
	KeyAverageTicket  = "Ticket Promedio"
	KeyTotalDiscounts = "Total Descuentos"
	KeyPendingRevenue = "Ventas Pendientes"
	KeyInternal       = "Consumo Interno"
	KeyPaidRatio      = "Ratio Pagado"
)

// Financial holds the headline revenue indicators.
// Rental rows stay out of revenue and transactions but still count for
// discounts, pending revenue and internal consumption.
type Financial struct {
	TotalRevenue        decimal.Decimal `json:"total_revenue"`
	Transactions        int             `json:"transactions"`
	AverageTicket       decimal.Decimal `json:"average_ticket"`
	TotalDiscounts      decimal.Decimal `json:"total_discounts"`
	PendingRevenue      decimal.Decimal `json:"pending_revenue"`
	InternalConsumption decimal.Decimal `json:"internal_consumption"`
	PaidRatio           float64         `json:"paid_ratio"`
	RentalIncome        decimal.Decimal `json:"rental_income"`
}

// ComputeFinancial aggregates the financial KPIs of classified records
func ComputeFinancial(records []*models.Record) *Financial {
	f := &Financial{
		TotalRevenue:        decimal.Zero,
		AverageTicket:       decimal.Zero,
		TotalDiscounts:      decimal.Zero,
		PendingRevenue:      decimal.Zero,
		InternalConsumption: decimal.Zero,
		RentalIncome:        decimal.Zero,
	}

	for _, r := range records {
		if r == nil {
			continue
		}
		flags := r.Flags
		if flags.IsRentalExempt && flags.IsValid {
			f.RentalIncome = f.RentalIncome.Add(r.AmountTotal)
		}
		if flags.IsRealSale {
			f.TotalRevenue = f.TotalRevenue.Add(r.AmountTotal)
			f.Transactions++
		}
		if flags.IsValid {
			f.TotalDiscounts = f.TotalDiscounts.Add(r.Discount)
		}
		if flags.IsPendingPayment {
			f.PendingRevenue = f.PendingRevenue.Add(r.AmountTotal)
		}
		if flags.IsInternal {
			f.InternalConsumption = f.InternalConsumption.Add(r.AmountTotal)
		}
	}

	if f.Transactions > 0 {
		f.AverageTicket = f.TotalRevenue.Div(decimal.NewFromInt(int64(f.Transactions)))
	}
	f.PaidRatio = ratio(f.TotalRevenue, f.TotalRevenue.Add(f.PendingRevenue))
	return f
}

// RentalIncome sums the amount of valid rental rows
func RentalIncome(records []*models.Record) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r != nil && r.Flags.IsRentalExempt && r.Flags.IsValid {
			total = total.Add(r.AmountTotal)
		}
	}
	return total
}

// AsMap exposes the scalar KPIs under their business keys
func (f *Financial) AsMap() map[string]float64 {
	return map[string]float64{
		KeyTotalRevenue:   f.TotalRevenue.InexactFloat64(),
		KeyTransactions:   float64(f.Transactions),
		KeyAverageTicket:  f.AverageTicket.InexactFloat64(),
		KeyTotalDiscounts: f.TotalDiscounts.InexactFloat64(),
		KeyPendingRevenue: f.PendingRevenue.InexactFloat64(),
		KeyInternal:       f.InternalConsumption.InexactFloat64(),
		KeyPaidRatio:      f.PaidRatio,
	}
}

// Table renders the KPIs as a two-column table in a stable order
func (f *Financial) Table() *models.ResultTable {
	t := models.NewResultTable("kpis", "kpi", "value")
	t.Append(KeyTotalRevenue, f.TotalRevenue)
	t.Append(KeyTransactions, f.Transactions)
	t.Append(KeyAverageTicket, f.AverageTicket)
	t.Append(KeyTotalDiscounts, f.TotalDiscounts)
	t.Append(KeyPendingRevenue, f.PendingRevenue)
	t.Append(KeyInternal, f.InternalConsumption)
	t.Append(KeyPaidRatio, f.PaidRatio)
	t.Append("Ingresos Alquiler", f.RentalIncome)
	return t
}

// ratio divides two amounts, returning 0 when the denominator is zero
func ratio(num, den decimal.Decimal) float64 {
	if den.IsZero() {
		return 0
	}
	return num.Div(den).InexactFloat64()
}

// percent returns part/whole*100, or 0 when whole is zero
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}

// mean divides a sum by a count, returning zero for an empty group
func mean(sum decimal.Decimal, n int) decimal.Decimal {
	if n == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(n)))
}
