package kpi

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/internal/orderline"
)

// Defaults for the product reports
const (
	DefaultProblemTopN = 20
	DefaultVIPShare    = 0.2
	DefaultWhaleTopN   = 10
)

// ProductVoids counts voided item lines of a product
type ProductVoids struct {
	Product string  `json:"product"`
	Voids   int     `json:"voids"`
	Orders  int     `json:"orders"`
	VoidPct float64 `json:"void_pct"`
}

// ProductDiscount sums the ticket discounts of orders containing a product
type ProductDiscount struct {
	Product  string          `json:"product"`
	Discount decimal.Decimal `json:"discount"`
	Orders   int             `json:"orders"`
}

// ProductTrend is the average week-over-week change of units sold
type ProductTrend struct {
	Product         string  `json:"product"`
	AvgWeeklyChange float64 `json:"avg_weekly_change"`
}

// ProblemProducts flags products with voids, discounts or falling sales
type ProblemProducts struct {
	Voids     []ProductVoids    `json:"voids"`
	Discounts []ProductDiscount `json:"discounts"`
	Trends    []ProductTrend    `json:"trends"`
}

type productAcc struct {
	voids    int
	discount decimal.Decimal
	orders   map[string]struct{}
	weekly   map[time.Time]int
}

// FindProblemProducts parses every non-rental sales row, voided ones
// included, and ranks products by voids and discounts (top N each) and by
// average weekly change of quantity.
func FindProblemProducts(records []*models.Record, extractor *orderline.Extractor, topN int) *ProblemProducts {
	if extractor == nil {
		extractor = orderline.NewExtractor(nil)
	}
	if topN <= 0 {
		topN = DefaultProblemTopN
	}

	products := make(map[string]*productAcc)
	weeks := make(map[time.Time]struct{})
	exploded := extractor.ExplodeWhere(records, func(r *models.Record) bool {
		return !r.Flags.IsRentalExempt
	})

	for _, ri := range exploded {
		r := ri.Record
		voided := r.Voided || r.ValidityState == models.ValidityVoided
		var week time.Time
		if r.HasTimestamp() {
			week = models.WeekStart(r.Timestamp)
			weeks[week] = struct{}{}
		}

		for _, item := range ri.Items {
			p, ok := products[item.BasketKey()]
			if !ok {
				p = &productAcc{discount: decimal.Zero, orders: make(map[string]struct{}), weekly: make(map[time.Time]int)}
				products[item.BasketKey()] = p
			}
			if voided {
				p.voids++
			}
			p.discount = p.discount.Add(r.Discount)
			if key := r.GroupKey(); key != "" {
				p.orders[key] = struct{}{}
			}
			if !week.IsZero() {
				p.weekly[week] += item.Quantity
			}
		}
	}
	if len(products) == 0 {
		return nil
	}

	result := &ProblemProducts{}
	for name, p := range products {
		result.Voids = append(result.Voids, ProductVoids{Product: name, Voids: p.voids, Orders: len(p.orders), VoidPct: percent(p.voids, len(p.orders))})
		result.Discounts = append(result.Discounts, ProductDiscount{Product: name, Discount: p.discount, Orders: len(p.orders)})
	}

	sort.Slice(result.Voids, func(i, j int) bool {
		if result.Voids[i].Voids != result.Voids[j].Voids {
			return result.Voids[i].Voids > result.Voids[j].Voids
		}
		return result.Voids[i].Product < result.Voids[j].Product
	})
	sort.Slice(result.Discounts, func(i, j int) bool {
		if c := result.Discounts[i].Discount.Cmp(result.Discounts[j].Discount); c != 0 {
			return c > 0
		}
		return result.Discounts[i].Product < result.Discounts[j].Product
	})
	result.Voids = truncate(result.Voids, topN)
	result.Discounts = truncate(result.Discounts, topN)
	result.Trends = weeklyTrends(products, weeks)
	return result
}

// weeklyTrends averages the week-over-week relative change of each product
// across every observed week, counting missing weeks as zero units. The first
// week and changes from a zero week count as no change.
func weeklyTrends(products map[string]*productAcc, weeks map[time.Time]struct{}) []ProductTrend {
	if len(weeks) == 0 {
		return nil
	}
	ordered := make([]time.Time, 0, len(weeks))
	for w := range weeks {
		ordered = append(ordered, w)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Before(ordered[j]) })

	var trends []ProductTrend
	for name, p := range products {
		if len(p.weekly) == 0 {
			continue
		}
		var sum float64
		for i := 1; i < len(ordered); i++ {
			prev, cur := p.weekly[ordered[i-1]], p.weekly[ordered[i]]
			if prev > 0 {
				sum += float64(cur-prev) / float64(prev)
			}
		}
		trends = append(trends, ProductTrend{Product: name, AvgWeeklyChange: sum / float64(len(ordered))})
	}
	sort.Slice(trends, func(i, j int) bool {
		if trends[i].AvgWeeklyChange != trends[j].AvgWeeklyChange {
			return trends[i].AvgWeeklyChange > trends[j].AvgWeeklyChange
		}
		return trends[i].Product < trends[j].Product
	})
	return trends
}

// VIPProduct is one row of the Pareto table
type VIPProduct struct {
	Product         string          `json:"product"`
	Revenue         decimal.Decimal `json:"revenue"`
	Share           float64         `json:"share"`
	CumulativeShare float64         `json:"cumulative_share"`
	VIP             bool            `json:"vip"`
}

// VIPProducts allocates each valid, non-rental ticket across its items by
// quantity and ranks products by revenue. Products whose cumulative share
// stays within topShare are flagged VIP.
func VIPProducts(records []*models.Record, extractor *orderline.Extractor, topShare float64) []VIPProduct {
	if extractor == nil {
		extractor = orderline.NewExtractor(nil)
	}
	if topShare <= 0 {
		topShare = DefaultVIPShare
	}

	revenue := make(map[string]decimal.Decimal)
	total := decimal.Zero
	for _, ri := range extractor.ExplodeByRecord(records) {
		for i, amount := range ri.Allocate() {
			key := ri.Items[i].BasketKey()
			revenue[key] = revenue[key].Add(amount)
			total = total.Add(amount)
		}
	}
	if len(revenue) == 0 {
		return nil
	}

	ranked := rankAmounts(revenue)
	out := make([]VIPProduct, len(ranked))
	var cumulative float64
	for i, la := range ranked {
		share := ratio(la.Amount, total)
		cumulative += share
		out[i] = VIPProduct{
			Product:         la.Label,
			Revenue:         la.Amount,
			Share:           share,
			CumulativeShare: cumulative,
			VIP:             cumulative <= topShare,
		}
	}
	return out
}

// WhaleCustomer is a top customer by revenue
type WhaleCustomer struct {
	Customer   string          `json:"customer"`
	Revenue    decimal.Decimal `json:"revenue"`
	Orders     int             `json:"orders"`
	PctOfTotal float64         `json:"pct_of_total"`
}

// WhaleCustomers ranks customers of valid, non-rental rows by revenue and
// returns the top N with their share of all customer revenue
func WhaleCustomers(records []*models.Record, topN int) []WhaleCustomer {
	if topN <= 0 {
		topN = DefaultWhaleTopN
	}
	revenue := make(map[string]decimal.Decimal)
	orders := make(map[string]map[string]struct{})
	total := decimal.Zero

	for _, r := range records {
		if r == nil || !r.Flags.IsValid || r.Flags.IsRentalExempt || r.Customer == "" {
			continue
		}
		revenue[r.Customer] = revenue[r.Customer].Add(r.AmountTotal)
		total = total.Add(r.AmountTotal)
		if orders[r.Customer] == nil {
			orders[r.Customer] = make(map[string]struct{})
		}
		if key := r.GroupKey(); key != "" {
			orders[r.Customer][key] = struct{}{}
		}
	}
	if len(revenue) == 0 {
		return nil
	}

	ranked := truncate(rankAmounts(revenue), topN)
	out := make([]WhaleCustomer, len(ranked))
	for i, la := range ranked {
		out[i] = WhaleCustomer{
			Customer:   la.Label,
			Revenue:    la.Amount,
			Orders:     len(orders[la.Label]),
			PctOfTotal: ratio(la.Amount, total) * 100,
		}
	}
	return out
}

func truncate[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
