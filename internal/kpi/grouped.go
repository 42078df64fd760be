package kpi

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
)

// UnassignedServer labels rows without a server
const UnassignedServer = "Sin Asignar"

// ServerPerformance is the activity of one server
type ServerPerformance struct {
	Server    string          `json:"server"`
	TotalSold decimal.Decimal `json:"total_sold"`
	Orders    int             `json:"orders"`
	Voids     int             `json:"voids"`
	VoidPct   float64         `json:"void_pct"`
}

// ServerPerformances groups non-rental rows by server. The total only counts
// real sales while orders and voids count every row.
func ServerPerformances(records []*models.Record) []ServerPerformance {
	byServer := make(map[string]*ServerPerformance)
	for _, r := range records {
		if r == nil || r.Flags.IsRentalExempt {
			continue
		}
		name := strings.TrimSpace(r.ServerID)
		if name == "" {
			name = UnassignedServer
		}
		sp, ok := byServer[name]
		if !ok {
			sp = &ServerPerformance{Server: name, TotalSold: decimal.Zero}
			byServer[name] = sp
		}
		sp.Orders++
		if r.Flags.IsRealSale {
			sp.TotalSold = sp.TotalSold.Add(r.AmountTotal)
		}
		if r.ValidityState == models.ValidityVoided {
			sp.Voids++
		}
	}
	if len(byServer) == 0 {
		return nil
	}

	out := make([]ServerPerformance, 0, len(byServer))
	for _, sp := range byServer {
		sp.VoidPct = percent(sp.Voids, sp.Orders)
		out = append(out, *sp)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].TotalSold.Cmp(out[j].TotalSold); c != 0 {
			return c > 0
		}
		return out[i].Server < out[j].Server
	})
	return out
}

// PaymentMethodSummary aggregates one exact payment-method string
type PaymentMethodSummary struct {
	Method  string          `json:"method"`
	Orders  int             `json:"orders"`
	Total   decimal.Decimal `json:"total"`
	Average decimal.Decimal `json:"average"`
}

// PaymentCrosstab counts rows per payment method and order type
type PaymentCrosstab struct {
	Methods    []string                  `json:"methods"`
	OrderTypes []string                  `json:"order_types"`
	Counts     map[string]map[string]int `json:"counts"`
}

// Count returns the number of rows for a method and order type
func (c *PaymentCrosstab) Count(method, orderType string) int {
	return c.Counts[method][orderType]
}

// PaymentAnalysis bundles the payment breakdowns
type PaymentAnalysis struct {
	Methods  []PaymentMethodSummary `json:"methods"`
	Crosstab *PaymentCrosstab       `json:"crosstab"`
	Mixed    []models.LabelCount    `json:"mixed"`
}

// AnalyzePayments breaks valid, non-rental rows down by payment method.
// Mixed lists how often each single method appears once comma-separated
// combinations are split apart.
func AnalyzePayments(records []*models.Record) *PaymentAnalysis {
	type acc struct {
		orders map[string]struct{}
		total  decimal.Decimal
		rows   int
	}
	byMethod := make(map[string]*acc)
	crosstab := &PaymentCrosstab{Counts: make(map[string]map[string]int)}
	orderTypes := make(map[string]struct{})
	mixed := make(map[string]int)

	for _, r := range records {
		if r == nil || !r.Flags.IsValid || r.Flags.IsRentalExempt {
			continue
		}
		method := strings.TrimSpace(r.PaymentMethods)
		if method == "" {
			continue
		}

		a, ok := byMethod[method]
		if !ok {
			a = &acc{orders: make(map[string]struct{}), total: decimal.Zero}
			byMethod[method] = a
		}
		a.rows++
		a.total = a.total.Add(r.AmountTotal)
		if r.OrderID != "" {
			a.orders[r.OrderID] = struct{}{}
		}

		if r.OrderType != "" {
			if crosstab.Counts[method] == nil {
				crosstab.Counts[method] = make(map[string]int)
			}
			crosstab.Counts[method][r.OrderType]++
			orderTypes[r.OrderType] = struct{}{}
		}

		for _, part := range strings.Split(method, ",") {
			if part = strings.TrimSpace(part); part != "" {
				mixed[part]++
			}
		}
	}
	if len(byMethod) == 0 {
		return nil
	}

	analysis := &PaymentAnalysis{Crosstab: crosstab}
	for method, a := range byMethod {
		analysis.Methods = append(analysis.Methods, PaymentMethodSummary{
			Method:  method,
			Orders:  len(a.orders),
			Total:   a.total,
			Average: mean(a.total, a.rows),
		})
	}
	sort.Slice(analysis.Methods, func(i, j int) bool {
		if c := analysis.Methods[i].Total.Cmp(analysis.Methods[j].Total); c != 0 {
			return c > 0
		}
		return analysis.Methods[i].Method < analysis.Methods[j].Method
	})

	crosstab.Methods = sortedKeys(crosstab.Counts)
	crosstab.OrderTypes = sortedKeys(orderTypes)
	analysis.Mixed = rankCounts(mixed)
	return analysis
}

// OrderTypeOccupancy counts valid rows per order type
func OrderTypeOccupancy(records []*models.Record) []models.LabelCount {
	return countValid(records, func(r *models.Record) string { return r.OrderType })
}

// TableOccupancy counts valid rows per table label as written in the report
func TableOccupancy(records []*models.Record) []models.LabelCount {
	return countValid(records, func(r *models.Record) string { return r.TableID })
}

func countValid(records []*models.Record, label func(*models.Record) string) []models.LabelCount {
	counts := make(map[string]int)
	for _, r := range records {
		if r == nil || !r.Flags.IsValid {
			continue
		}
		if l := strings.TrimSpace(label(r)); l != "" {
			counts[l]++
		}
	}
	return rankCounts(counts)
}

// rankCounts orders counts descending, ties by label; nil when empty
func rankCounts(counts map[string]int) []models.LabelCount {
	if len(counts) == 0 {
		return nil
	}
	out := make([]models.LabelCount, 0, len(counts))
	for label, n := range counts {
		out = append(out, models.LabelCount{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}

// rankAmounts orders amounts descending, ties by label; nil when empty
func rankAmounts(amounts map[string]decimal.Decimal) []models.LabelAmount {
	if len(amounts) == 0 {
		return nil
	}
	out := make([]models.LabelAmount, 0, len(amounts))
	for label, amount := range amounts {
		out = append(out, models.LabelAmount{Label: label, Amount: amount})
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
