package kpi

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-pos-analytics/internal/models"
)

var (
	realSale = models.Flags{IsValid: true, IsRealSale: true}
	internal = models.Flags{IsValid: true, IsInternal: true}
	pending  = models.Flags{IsValid: true, IsPendingPayment: true}
	rental   = models.Flags{IsValid: true, IsRentalExempt: true}
	invalid  = models.Flags{}
)

type option func(*models.Record)

func withDiscount(v string) option {
	return func(r *models.Record) { r.Discount = decimal.RequireFromString(v) }
}

func withServer(s string) option { return func(r *models.Record) { r.ServerID = s } }

func withOrder(id string) option { return func(r *models.Record) { r.OrderID = id } }

func withCustomer(c string) option { return func(r *models.Record) { r.Customer = c } }

func withPayment(p, orderType string) option {
	return func(r *models.Record) {
		r.PaymentMethods = p
		r.OrderType = orderType
	}
}

func withTime(ts time.Time) option { return func(r *models.Record) { r.SetTimestamp(ts) } }

func withDetail(d string) option { return func(r *models.Record) { r.DetailText = d } }

func voided() option {
	return func(r *models.Record) { r.ValidityState = models.ValidityVoided }
}

func rec(amount string, flags models.Flags, opts ...option) *models.Record {
	r := models.NewRecord(models.ReportSales)
	r.AmountTotal = decimal.RequireFromString(amount)
	for _, opt := range opts {
		opt(r)
	}
	return r.WithFlags(flags)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), append([]interface{}{"want %s, got %s", want, got.String()}, msgAndArgs...)...)
}

func TestComputeFinancial(t *testing.T) {
	records := []*models.Record{
		rec("100", realSale, withDiscount("5")),
		rec("50", realSale),
		rec("30", internal, withDiscount("2")),
		rec("20", pending),
		rec("500", rental, withDiscount("50")),
		rec("70", invalid, withDiscount("7")),
		nil,
	}

	f := ComputeFinancial(records)
	assertDecimal(t, "150", f.TotalRevenue)
	assert.Equal(t, 2, f.Transactions)
	assertDecimal(t, "75", f.AverageTicket)
	assertDecimal(t, "57", f.TotalDiscounts, "rental discounts count, invalid ones do not")
	assertDecimal(t, "20", f.PendingRevenue)
	assertDecimal(t, "30", f.InternalConsumption)
	assertDecimal(t, "500", f.RentalIncome)
	assert.InDelta(t, 150.0/170.0, f.PaidRatio, 1e-9)
	assertDecimal(t, "500", RentalIncome(records))

	m := f.AsMap()
	assert.Len(t, m, 7)
	assert.Equal(t, 150.0, m[KeyTotalRevenue])
	assert.Equal(t, 2.0, m[KeyTransactions])
	assert.Equal(t, 75.0, m[KeyAverageTicket])
}

func TestComputeFinancial_RentalRows(t *testing.T) {
	pendingRental := models.Flags{IsRentalExempt: true, IsPendingPayment: true}
	records := []*models.Record{
		rec("100", realSale, withDiscount("5")),
		rec("500", rental, withDiscount("50")),
		rec("40", pendingRental),
	}

	f := ComputeFinancial(records)
	assertDecimal(t, "100", f.TotalRevenue)
	assert.Equal(t, 1, f.Transactions)
	assertDecimal(t, "55", f.TotalDiscounts)
	assertDecimal(t, "40", f.PendingRevenue)
	assertDecimal(t, "500", f.RentalIncome, "pending rentals are not income")
	assert.InDelta(t, 100.0/140.0, f.PaidRatio, 1e-9)
}

func TestComputeFinancial_AllRealSales(t *testing.T) {
	records := []*models.Record{rec("10.5", realSale), rec("4.5", realSale), rec("5", realSale)}
	f := ComputeFinancial(records)
	assertDecimal(t, "20", f.TotalRevenue)
	assert.Equal(t, 1.0, f.PaidRatio)
}

func TestComputeFinancial_Empty(t *testing.T) {
	f := ComputeFinancial(nil)
	require.NotNil(t, f)
	assert.True(t, f.AverageTicket.IsZero())
	assert.Equal(t, 0.0, f.PaidRatio)
	assert.Equal(t, 8, f.Table().Len())
}

func TestServerPerformances(t *testing.T) {
	records := []*models.Record{
		rec("100", realSale, withServer("Ana")),
		rec("40", invalid, withServer("Ana"), voided()),
		rec("200", realSale, withServer("Luis")),
		rec("10", realSale),
		rec("999", rental, withServer("Ana")),
	}

	got := ServerPerformances(records)
	require.Len(t, got, 3)
	assert.Equal(t, "Luis", got[0].Server)
	assert.Equal(t, "Ana", got[1].Server)
	assertDecimal(t, "100", got[1].TotalSold)
	assert.Equal(t, 2, got[1].Orders)
	assert.Equal(t, 1, got[1].Voids)
	assert.Equal(t, 50.0, got[1].VoidPct)
	assert.Equal(t, UnassignedServer, got[2].Server)

	assert.Nil(t, ServerPerformances(nil))
}

func TestAnalyzePayments(t *testing.T) {
	records := []*models.Record{
		rec("100", realSale, withOrder("1"), withPayment("EFECTIVO", "MESA")),
		rec("50", realSale, withOrder("1"), withPayment("EFECTIVO", "MESA")),
		rec("60", realSale, withOrder("2"), withPayment("EFECTIVO, YAPE", "DELIVERY")),
		rec("30", realSale, withOrder("3"), withPayment("YAPE", "MESA")),
		rec("80", invalid, withOrder("4"), withPayment("TARJETA", "MESA")),
		rec("10", rental, withOrder("5"), withPayment("TARJETA", "MESA")),
	}

	got := AnalyzePayments(records)
	require.NotNil(t, got)
	require.Len(t, got.Methods, 3)
	assert.Equal(t, "EFECTIVO", got.Methods[0].Method)
	assert.Equal(t, 1, got.Methods[0].Orders)
	assertDecimal(t, "150", got.Methods[0].Total)
	assertDecimal(t, "75", got.Methods[0].Average)

	assert.Equal(t, []string{"EFECTIVO", "EFECTIVO, YAPE", "YAPE"}, got.Crosstab.Methods)
	assert.Equal(t, []string{"DELIVERY", "MESA"}, got.Crosstab.OrderTypes)
	assert.Equal(t, 2, got.Crosstab.Count("EFECTIVO", "MESA"))
	assert.Equal(t, 0, got.Crosstab.Count("YAPE", "DELIVERY"))

	assert.Equal(t, []models.LabelCount{{Label: "EFECTIVO", Count: 3}, {Label: "YAPE", Count: 2}}, got.Mixed)

	assert.Nil(t, AnalyzePayments([]*models.Record{rec("1", invalid, withPayment("EFECTIVO", ""))}))
}

func TestOccupancy(t *testing.T) {
	records := []*models.Record{
		rec("1", realSale, withPayment("", "MESA")),
		rec("1", realSale, withPayment("", "MESA")),
		rec("1", realSale, withPayment("", "DELIVERY")),
		rec("1", invalid, withPayment("", "DELIVERY")),
	}
	assert.Equal(t, []models.LabelCount{{Label: "MESA", Count: 2}, {Label: "DELIVERY", Count: 1}}, OrderTypeOccupancy(records))
	assert.Nil(t, TableOccupancy(records))
}

func TestSalesOverTime(t *testing.T) {
	monday := time.Date(2024, 1, 15, 12, 30, 0, 0, time.UTC)
	tuesday := monday.AddDate(0, 0, 1)
	sunday := monday.AddDate(0, 0, 6).Add(2 * time.Hour)
	records := []*models.Record{
		rec("10", realSale, withTime(sunday)),
		rec("20", realSale, withTime(monday)),
		rec("5", internal, withTime(monday)),
		rec("7", realSale, withTime(tuesday)),
		rec("100", invalid, withTime(monday)),
		rec("100", rental, withTime(monday)),
		rec("100", realSale),
	}

	byDay := SalesByDay(records)
	require.Len(t, byDay, 3)
	assert.Equal(t, models.TruncateDay(monday), byDay[0].Day)
	assertDecimal(t, "25", byDay[0].Total)
	assertDecimal(t, "10", byDay[2].Total)

	byHour := SalesByHour(records)
	require.Len(t, byHour, 2)
	assert.Equal(t, 12, byHour[0].Hour)
	assertDecimal(t, "32", byHour[0].Total)
	assert.Equal(t, 14, byHour[1].Hour)

	h := WeeklyHeatmap(records)
	require.NotNil(t, h)
	assert.Equal(t, []string{"Monday", "Tuesday", "Sunday"}, h.Weekdays)
	assert.Equal(t, []int{12, 14}, h.Hours)
	assertDecimal(t, "25", h.Value(12, "Monday"))
	assertDecimal(t, "10", h.Value(14, "Sunday"))
	assertDecimal(t, "0", h.Value(14, "Monday"))

	assert.Nil(t, SalesByDay(nil))
	assert.Nil(t, WeeklyHeatmap(nil))
}

func master(orderType, table string, minutes *float64, amount string, opts ...option) *models.MasterRecord {
	s := rec(amount, realSale, opts...)
	s.OrderType = orderType
	idx := models.NewRecord(models.ReportIndex)
	idx.TableID = table
	return &models.MasterRecord{Sales: s, Index: idx, ServiceMinutes: minutes}
}

func minutes(v float64) *float64 { return &v }

func TestComputeServiceSpeed(t *testing.T) {
	rows := []*models.MasterRecord{
		master("MESA", "", minutes(20), "1"),
		master("MESA", "", minutes(40), "1"),
		master("DELIVERY", "", minutes(60), "1"),
		master("LLEVAR", "", minutes(0), "1"),
		master("MESA", "", minutes(300), "1"),
		master("MESA", "", minutes(-5), "1"),
		master("MESA", "", nil, "1"),
	}

	s := ComputeServiceSpeed(rows)
	require.NotNil(t, s)
	assert.Equal(t, 4, s.Orders)
	assert.Equal(t, 30.0, s.MeanMinutes)
	assert.Equal(t, 0.0, s.MinMinutes)
	assert.Equal(t, 60.0, s.MaxMinutes)
	assert.Equal(t, map[string]float64{"MESA": 30, "DELIVERY": 60}, s.ByOrderType)

	assert.Nil(t, ComputeServiceSpeed(rows[4:]))
}

func TestTableHeatmap(t *testing.T) {
	day := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	rows := []*models.MasterRecord{
		master("MESA", "Sala S1", nil, "30", withOrder("1"), withTime(day)),
		master("MESA", "salón s1", nil, "10", withOrder("1"), withTime(day)),
		master("MESA", "S1", nil, "20", withOrder("2"), withTime(day)),
		master("MESA", "Balcón B2", nil, "50", withOrder("3"), withTime(day)),
		master("MESA", "Delivery Yango", nil, "80", withOrder("4"), withTime(day)),
		master("MESA", "S3", nil, "90", withOrder("5"), withTime(day), voided()),
	}

	got := TableHeatmap(rows)
	require.Len(t, got, 2)
	assert.Equal(t, "S1", got[0].Table)
	assert.Equal(t, 2, got[0].Orders)
	assertDecimal(t, "60", got[0].Revenue)
	assertDecimal(t, "20", got[0].AverageAmount)
	assert.Equal(t, "B2", got[1].Table)

	assert.Nil(t, TableHeatmap(nil))
}

func TestComputeVoidControl(t *testing.T) {
	p1 := rec("40", pending, withCustomer("Rosa"))
	p1.Status = "PENDIENTE"
	p2 := rec("15", pending, withCustomer("Rosa"))
	p2.Status = "POR PAGAR"
	p2.TableID = "S2"
	idx := models.NewRecord(models.ReportIndex)
	idx.Voided = true
	idx.AmountTotal = decimal.NewFromInt(12)

	vc := ComputeVoidControl([]*models.Record{p1, p2, rec("30", invalid, voided()), idx, rec("5", realSale)})
	require.NotNil(t, vc)
	assert.Equal(t, 2, vc.VoidedCount)
	assertDecimal(t, "42", vc.VoidedAmount)
	assert.Equal(t, 2, vc.PendingCount)
	assertDecimal(t, "55", vc.PendingAmount)
	require.Len(t, vc.PendingByCustomer, 1)
	assertDecimal(t, "55", vc.PendingByCustomer[0].Amount)
	require.Len(t, vc.PendingByTable, 1)
	assert.Equal(t, "S2", vc.PendingByTable[0].Label)

	assert.Nil(t, ComputeVoidControl(nil))
	assert.True(t, IsPendingStatus(" Pendiente de pago "))
	assert.False(t, IsPendingStatus("PAGADO"))
}

func TestFindProblemProducts(t *testing.T) {
	week1 := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	week2 := week1.AddDate(0, 0, 7)
	week3 := week1.AddDate(0, 0, 14)
	records := []*models.Record{
		rec("10", realSale, withOrder("1"), withTime(week1), withDetail("2x Café 1x Pan")),
		rec("10", invalid, withOrder("2"), withTime(week1), withDetail("1x Café"), voided()),
		rec("10", realSale, withOrder("3"), withTime(week2), withDetail("4x Café"), withDiscount("3")),
		rec("10", realSale, withOrder("4"), withTime(week3), withDetail("2x Café 2x Pan")),
		rec("10", rental, withOrder("5"), withTime(week3), withDetail("1x Cuota de membresía")),
	}

	got := FindProblemProducts(records, nil, 1)
	require.NotNil(t, got)

	require.Len(t, got.Voids, 1)
	assert.Equal(t, ProductVoids{Product: "café", Voids: 1, Orders: 4, VoidPct: 25}, got.Voids[0])

	require.Len(t, got.Discounts, 1)
	assert.Equal(t, "café", got.Discounts[0].Product)
	assertDecimal(t, "3", got.Discounts[0].Discount)

	// café: 3 -> 4 -> 2 units; pan: 1 -> 0 -> 2 units
	require.Len(t, got.Trends, 2)
	assert.Equal(t, "café", got.Trends[0].Product)
	assert.InDelta(t, (1.0/3.0-0.5)/3.0, got.Trends[0].AvgWeeklyChange, 1e-9)
	assert.Equal(t, "pan", got.Trends[1].Product)
	assert.InDelta(t, -1.0/3.0, got.Trends[1].AvgWeeklyChange, 1e-9)

	assert.Nil(t, FindProblemProducts([]*models.Record{rec("1", realSale)}, nil, 5))
}

func TestFindProblemProducts_NoOrderKeys(t *testing.T) {
	records := []*models.Record{
		rec("10", invalid, withDetail("1x Café"), voided()),
	}

	got := FindProblemProducts(records, nil, 5)
	require.NotNil(t, got)
	require.Len(t, got.Voids, 1)
	assert.Equal(t, 0, got.Voids[0].Orders)
	assert.Equal(t, 0.0, got.Voids[0].VoidPct)
	assert.False(t, math.IsNaN(got.Voids[0].VoidPct))
}

func TestVIPProducts(t *testing.T) {
	records := []*models.Record{
		rec("80", realSale, withDetail("3x Cappuccino 1x Croissant")),
		rec("20", realSale, withDetail("1x Agua")),
		rec("1000", invalid, withDetail("1x Agua")),
	}

	got := VIPProducts(records, nil, 0.6)
	require.Len(t, got, 3)
	assert.Equal(t, "cappuccino", got[0].Product)
	assertDecimal(t, "60", got[0].Revenue)
	assert.InDelta(t, 0.6, got[0].Share, 1e-9)
	assert.True(t, got[0].VIP)
	assert.InDelta(t, 0.8, got[1].CumulativeShare, 1e-9)
	assert.False(t, got[1].VIP)
	assert.InDelta(t, 1.0, got[2].CumulativeShare, 1e-9)

	assert.Nil(t, VIPProducts(nil, nil, 0))
}

func TestWhaleCustomers(t *testing.T) {
	records := []*models.Record{
		rec("60", realSale, withCustomer("Rosa"), withOrder("1")),
		rec("15", realSale, withCustomer("Rosa"), withOrder("2")),
		rec("25", realSale, withCustomer("Juan"), withOrder("3")),
		rec("99", realSale, withOrder("4")),
		rec("99", invalid, withCustomer("Juan"), withOrder("5")),
	}

	got := WhaleCustomers(records, 1)
	require.Len(t, got, 1)
	assert.Equal(t, "Rosa", got[0].Customer)
	assert.Equal(t, 2, got[0].Orders)
	assertDecimal(t, "75", got[0].Revenue)
	assert.InDelta(t, 75.0, got[0].PctOfTotal, 1e-9)

	assert.Nil(t, WhaleCustomers(nil, 0))
}

func TestAggregator_ResultTables(t *testing.T) {
	ts := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	sales := []*models.Record{
		rec("100", realSale, withOrder("1"), withServer("Ana"), withCustomer("Rosa"),
			withPayment("EFECTIVO", "MESA"), withTime(ts), withDetail("2x Café 1x Pan")),
	}
	m := []*models.MasterRecord{master("MESA", "S1", minutes(25), "100", withOrder("1"), withTime(ts))}

	report := NewAggregator(DefaultConfig(), nil).Compute(sales, nil, m)
	require.NotNil(t, report.Financial)
	assert.Nil(t, report.Tables, "no index report means no table occupancy")

	names := make(map[string]bool)
	for _, table := range report.ResultTables() {
		names[table.Name] = true
		for _, row := range table.Rows {
			assert.Len(t, row, len(table.Columns), table.Name)
		}
	}
	for _, name := range []string{"kpis", "server_performance", "payment_methods", "sales_by_day",
		"weekly_heatmap", "service_speed", "table_heatmap", "vip_products", "whale_customers"} {
		assert.True(t, names[name], "missing table %s", name)
	}
	assert.False(t, names["table_occupancy"])
	assert.False(t, math.IsNaN(report.Financial.PaidRatio))
}
