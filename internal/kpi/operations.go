package kpi

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
)

// MaxServiceMinutes bounds plausible service times; longer spans are
// tables left open and are ignored
const MaxServiceMinutes = 300

// Order types broken out by the service speed report
const (
	OrderTypeTable    = "MESA"
	OrderTypeDelivery = "DELIVERY"
)

// ServiceSpeed summarizes minutes between order creation and payment
type ServiceSpeed struct {
	Orders      int                `json:"orders"`
	MeanMinutes float64            `json:"mean_minutes"`
	MinMinutes  float64            `json:"min_minutes"`
	MaxMinutes  float64            `json:"max_minutes"`
	ByOrderType map[string]float64 `json:"by_order_type"`
}

// ComputeServiceSpeed aggregates service minutes from the master table,
// keeping values in [0, MaxServiceMinutes)
func ComputeServiceSpeed(master []*models.MasterRecord) *ServiceSpeed {
	speed := &ServiceSpeed{
		MinMinutes:  math.Inf(1),
		MaxMinutes:  math.Inf(-1),
		ByOrderType: make(map[string]float64),
	}
	var sum float64
	typeSum := make(map[string]float64)
	typeCount := make(map[string]int)

	for _, m := range master {
		if m == nil || m.ServiceMinutes == nil {
			continue
		}
		minutes := *m.ServiceMinutes
		if minutes < 0 || minutes >= MaxServiceMinutes {
			continue
		}
		speed.Orders++
		sum += minutes
		speed.MinMinutes = math.Min(speed.MinMinutes, minutes)
		speed.MaxMinutes = math.Max(speed.MaxMinutes, minutes)

		switch t := orderType(m); t {
		case OrderTypeTable, OrderTypeDelivery:
			typeSum[t] += minutes
			typeCount[t]++
		}
	}
	if speed.Orders == 0 {
		return nil
	}

	speed.MeanMinutes = sum / float64(speed.Orders)
	for t, n := range typeCount {
		speed.ByOrderType[t] = typeSum[t] / float64(n)
	}
	return speed
}

// orderType prefers the sales label and falls back to the index side
func orderType(m *models.MasterRecord) string {
	if m.Sales != nil && m.Sales.OrderType != "" {
		return m.Sales.OrderType
	}
	if m.Index != nil {
		return m.Index.OrderType
	}
	return ""
}

// TableUsage is the activity of one normalized table
type TableUsage struct {
	Table         string          `json:"table"`
	Orders        int             `json:"orders"`
	Revenue       decimal.Decimal `json:"revenue"`
	AverageAmount decimal.Decimal `json:"average_amount"`
}

// TableHeatmap groups non-voided master rows by normalized table name.
// Delivery and unrecognized labels are dropped. Orders counts distinct
// (order, day) pairs since order numbers restart every day.
func TableHeatmap(master []*models.MasterRecord) []TableUsage {
	type acc struct {
		orders  map[string]struct{}
		revenue decimal.Decimal
		rows    int
	}
	byTable := make(map[string]*acc)

	for _, m := range master {
		if m == nil || m.Primary() == nil || m.Voided() {
			continue
		}
		table, ok := models.NormalizeTableName(m.TableID())
		if !ok {
			continue
		}
		a, exists := byTable[table]
		if !exists {
			a = &acc{orders: make(map[string]struct{}), revenue: decimal.Zero}
			byTable[table] = a
		}
		p := m.Primary()
		a.orders[p.OrderID+"|"+p.Day.Format("2006-01-02")] = struct{}{}
		a.revenue = a.revenue.Add(p.AmountTotal)
		a.rows++
	}
	if len(byTable) == 0 {
		return nil
	}

	out := make([]TableUsage, 0, len(byTable))
	for table, a := range byTable {
		out = append(out, TableUsage{
			Table:         table,
			Orders:        len(a.orders),
			Revenue:       a.revenue,
			AverageAmount: mean(a.revenue, a.rows),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Orders != out[j].Orders {
			return out[i].Orders > out[j].Orders
		}
		return out[i].Table < out[j].Table
	})
	return out
}

// pendingStatuses are the lowercase status spellings that mean "not paid yet"
var pendingStatuses = map[string]struct{}{
	"pendiente":         {},
	"por pagar":         {},
	"pending":           {},
	"pendiente de pago": {},
}

// IsPendingStatus reports whether a status means payment is still due
func IsPendingStatus(status string) bool {
	_, ok := pendingStatuses[strings.ToLower(strings.TrimSpace(status))]
	return ok
}

// VoidControl reports voided and pending orders
type VoidControl struct {
	VoidedCount       int                  `json:"voided_count"`
	VoidedAmount      decimal.Decimal      `json:"voided_amount"`
	PendingCount      int                  `json:"pending_count"`
	PendingAmount     decimal.Decimal      `json:"pending_amount"`
	PendingByCustomer []models.LabelAmount `json:"pending_by_customer"`
	PendingByTable    []models.LabelAmount `json:"pending_by_table"`
}

// ComputeVoidControl counts voided and pending rows over every record
func ComputeVoidControl(records []*models.Record) *VoidControl {
	vc := &VoidControl{VoidedAmount: decimal.Zero, PendingAmount: decimal.Zero}
	byCustomer := make(map[string]decimal.Decimal)
	byTable := make(map[string]decimal.Decimal)
	seen := 0

	for _, r := range records {
		if r == nil {
			continue
		}
		seen++
		if r.Voided || r.ValidityState == models.ValidityVoided {
			vc.VoidedCount++
			vc.VoidedAmount = vc.VoidedAmount.Add(r.AmountTotal)
		}
		if IsPendingStatus(r.Status) {
			vc.PendingCount++
			vc.PendingAmount = vc.PendingAmount.Add(r.AmountTotal)
			if r.Customer != "" {
				byCustomer[r.Customer] = byCustomer[r.Customer].Add(r.AmountTotal)
			}
			if r.TableID != "" {
				byTable[r.TableID] = byTable[r.TableID].Add(r.AmountTotal)
			}
		}
	}
	if seen == 0 {
		return nil
	}

	vc.PendingByCustomer = rankAmounts(byCustomer)
	vc.PendingByTable = rankAmounts(byTable)
	return vc
}
