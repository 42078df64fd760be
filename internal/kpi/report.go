package kpi

import (
	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/internal/orderline"
	"golang-pos-analytics/pkg/logger"
)

// Config holds the tunables of the product and customer reports
type Config struct {
	ProblemTopN int     `json:"problem_top_n" validate:"min=1"`
	VIPShare    float64 `json:"vip_share" validate:"gt=0,lte=1"`
	WhaleTopN   int     `json:"whale_top_n" validate:"min=1"`
}

// DefaultConfig returns the default KPI configuration
func DefaultConfig() Config {
	return Config{
		ProblemTopN: DefaultProblemTopN,
		VIPShare:    DefaultVIPShare,
		WhaleTopN:   DefaultWhaleTopN,
	}
}

// Report bundles every KPI of one run. Nil members were not computable.
type Report struct {
	Financial       *Financial          `json:"financial"`
	Servers         []ServerPerformance `json:"servers,omitempty"`
	Payments        *PaymentAnalysis    `json:"payments,omitempty"`
	OrderTypes      []models.LabelCount `json:"order_types,omitempty"`
	Tables          []models.LabelCount `json:"tables,omitempty"`
	SalesByDay      []DayTotal          `json:"sales_by_day,omitempty"`
	SalesByHour     []HourTotal         `json:"sales_by_hour,omitempty"`
	Heatmap         *Heatmap            `json:"heatmap,omitempty"`
	ServiceSpeed    *ServiceSpeed       `json:"service_speed,omitempty"`
	TableHeatmap    []TableUsage        `json:"table_heatmap,omitempty"`
	VoidControl     *VoidControl        `json:"void_control,omitempty"`
	ProblemProducts *ProblemProducts    `json:"problem_products,omitempty"`
	VIPProducts     []VIPProduct        `json:"vip_products,omitempty"`
	Whales          []WhaleCustomer     `json:"whales,omitempty"`
}

// Aggregator computes the full KPI report
type Aggregator struct {
	config    Config
	extractor *orderline.Extractor
	logger    logger.Logger
}

// NewAggregator creates an aggregator; a nil extractor uses the default parser
func NewAggregator(config Config, extractor *orderline.Extractor) *Aggregator {
	if extractor == nil {
		extractor = orderline.NewExtractor(nil)
	}
	return &Aggregator{
		config:    config,
		extractor: extractor,
		logger:    logger.GetGlobalLogger().WithComponent("kpi"),
	}
}

// Compute runs every KPI over the classified reports and the master table.
// Either report may be nil.
func (a *Aggregator) Compute(sales, index []*models.Record, master []*models.MasterRecord) *Report {
	// headline figures come from the sales report, or from the index alone
	base := sales
	if base == nil {
		base = index
	}

	report := &Report{
		Financial:       ComputeFinancial(base),
		Servers:         ServerPerformances(base),
		Payments:        AnalyzePayments(base),
		OrderTypes:      OrderTypeOccupancy(sales),
		Tables:          TableOccupancy(index),
		SalesByDay:      SalesByDay(base),
		SalesByHour:     SalesByHour(base),
		Heatmap:         WeeklyHeatmap(base),
		ServiceSpeed:    ComputeServiceSpeed(master),
		TableHeatmap:    TableHeatmap(master),
		VoidControl:     ComputeVoidControl(base),
		ProblemProducts: FindProblemProducts(sales, a.extractor, a.config.ProblemTopN),
		VIPProducts:     VIPProducts(sales, a.extractor, a.config.VIPShare),
		Whales:          WhaleCustomers(base, a.config.WhaleTopN),
	}

	a.logger.WithFields(logger.Fields{
		"revenue":      report.Financial.TotalRevenue.StringFixed(2),
		"transactions": report.Financial.Transactions,
		"servers":      len(report.Servers),
		"tables":       len(report.TableHeatmap),
	}).Info("Computed KPIs")
	return report
}

// ResultTables flattens the report into named tables for the writers.
// Analyses that were not computable produce no table.
func (r *Report) ResultTables() []*models.ResultTable {
	var tables []*models.ResultTable
	add := func(t *models.ResultTable) {
		if t.Len() > 0 {
			tables = append(tables, t)
		}
	}

	if r.Financial != nil {
		add(r.Financial.Table())
	}

	t := models.NewResultTable("server_performance", "server", "total_sold", "orders", "voids", "void_pct")
	for _, s := range r.Servers {
		t.Append(s.Server, s.TotalSold, s.Orders, s.Voids, s.VoidPct)
	}
	add(t)

	if r.Payments != nil {
		t = models.NewResultTable("payment_methods", "method", "orders", "total", "average")
		for _, m := range r.Payments.Methods {
			t.Append(m.Method, m.Orders, m.Total, m.Average)
		}
		add(t)

		t = models.NewResultTable("payment_crosstab", "method", "order_type", "count")
		for _, method := range r.Payments.Crosstab.Methods {
			for _, orderType := range r.Payments.Crosstab.OrderTypes {
				t.Append(method, orderType, r.Payments.Crosstab.Count(method, orderType))
			}
		}
		add(t)

		add(labelCounts("payment_mixed", "method", r.Payments.Mixed))
	}

	add(labelCounts("order_type_occupancy", "order_type", r.OrderTypes))
	add(labelCounts("table_occupancy", "table", r.Tables))

	t = models.NewResultTable("sales_by_day", "day", "total")
	for _, d := range r.SalesByDay {
		t.Append(d.Day, d.Total)
	}
	add(t)

	t = models.NewResultTable("sales_by_hour", "hour", "total")
	for _, h := range r.SalesByHour {
		t.Append(h.Hour, h.Total)
	}
	add(t)

	if r.Heatmap != nil {
		t = models.NewResultTable("weekly_heatmap", "hour", "weekday", "total")
		for i, hour := range r.Heatmap.Hours {
			for j, wd := range r.Heatmap.Weekdays {
				t.Append(hour, wd, r.Heatmap.Values[i][j])
			}
		}
		add(t)
	}

	if r.ServiceSpeed != nil {
		t = models.NewResultTable("service_speed", "metric", "minutes")
		t.Append("orders", float64(r.ServiceSpeed.Orders))
		t.Append("mean", r.ServiceSpeed.MeanMinutes)
		t.Append("min", r.ServiceSpeed.MinMinutes)
		t.Append("max", r.ServiceSpeed.MaxMinutes)
		for _, orderType := range sortedKeys(r.ServiceSpeed.ByOrderType) {
			t.Append("mean_"+orderType, r.ServiceSpeed.ByOrderType[orderType])
		}
		add(t)
	}

	t = models.NewResultTable("table_heatmap", "table", "orders", "revenue", "average_amount")
	for _, u := range r.TableHeatmap {
		t.Append(u.Table, u.Orders, u.Revenue, u.AverageAmount)
	}
	add(t)

	if r.VoidControl != nil {
		vc := r.VoidControl
		t = models.NewResultTable("void_control", "metric", "count", "amount")
		t.Append("voided", vc.VoidedCount, vc.VoidedAmount)
		t.Append("pending", vc.PendingCount, vc.PendingAmount)
		add(t)
		add(labelAmounts("pending_by_customer", "customer", vc.PendingByCustomer))
		add(labelAmounts("pending_by_table", "table", vc.PendingByTable))
	}

	if pp := r.ProblemProducts; pp != nil {
		t = models.NewResultTable("product_voids", "product", "voids", "orders", "void_pct")
		for _, v := range pp.Voids {
			t.Append(v.Product, v.Voids, v.Orders, v.VoidPct)
		}
		add(t)

		t = models.NewResultTable("product_discounts", "product", "discount", "orders")
		for _, d := range pp.Discounts {
			t.Append(d.Product, d.Discount, d.Orders)
		}
		add(t)

		t = models.NewResultTable("product_trends", "product", "avg_weekly_change")
		for _, tr := range pp.Trends {
			t.Append(tr.Product, tr.AvgWeeklyChange)
		}
		add(t)
	}

	t = models.NewResultTable("vip_products", "product", "revenue", "share", "cumulative_share", "vip")
	for _, v := range r.VIPProducts {
		t.Append(v.Product, v.Revenue, v.Share, v.CumulativeShare, v.VIP)
	}
	add(t)

	t = models.NewResultTable("whale_customers", "customer", "revenue", "orders", "pct_of_total")
	for _, w := range r.Whales {
		t.Append(w.Customer, w.Revenue, w.Orders, w.PctOfTotal)
	}
	add(t)

	return tables
}

func labelCounts(name, column string, counts []models.LabelCount) *models.ResultTable {
	t := models.NewResultTable(name, column, "count")
	for _, c := range counts {
		t.Append(c.Label, c.Count)
	}
	return t
}

func labelAmounts(name, column string, amounts []models.LabelAmount) *models.ResultTable {
	t := models.NewResultTable(name, column, "amount")
	for _, a := range amounts {
		t.Append(a.Label, a.Amount)
	}
	return t
}
