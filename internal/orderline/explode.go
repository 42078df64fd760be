package orderline

import (
	"sort"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/logger"
)

// RecordItems pairs a sales record with the items parsed from its detail
type RecordItems struct {
	Record *models.Record
	Items  []models.LineItem
}

// TotalQuantity returns the sum of item quantities
func (ri RecordItems) TotalQuantity() int {
	total := 0
	for _, item := range ri.Items {
		total += item.Quantity
	}
	return total
}

// Allocate splits the record amount across its items in proportion to
// their quantity
func (ri RecordItems) Allocate() []decimal.Decimal {
	out := make([]decimal.Decimal, len(ri.Items))
	total := ri.TotalQuantity()
	if total == 0 {
		return out
	}
	qty := decimal.NewFromInt(int64(total))
	for i, item := range ri.Items {
		out[i] = ri.Record.AmountTotal.Mul(decimal.NewFromInt(int64(item.Quantity))).Div(qty)
	}
	return out
}

// Extractor applies a Parser to classified sales records
type Extractor struct {
	parser Parser
	logger logger.Logger
}

// NewExtractor creates an extractor; nil selects the default parser
func NewExtractor(parser Parser) *Extractor {
	if parser == nil {
		parser = NewParser()
	}
	return &Extractor{
		parser: parser,
		logger: logger.GetGlobalLogger().WithComponent("orderline"),
	}
}

// eligible reports whether a record takes part in product analytics
func eligible(r *models.Record) bool {
	return r != nil && r.Report == models.ReportSales &&
		r.Flags.IsValid && !r.Flags.IsRentalExempt
}

// ExplodeByRecord parses every valid, non-rental sales record and keeps the
// items grouped by their record. Records without items are omitted.
func (e *Extractor) ExplodeByRecord(records []*models.Record) []RecordItems {
	return e.ExplodeWhere(records, eligible)
}

// ExplodeWhere parses the sales records accepted by keep
func (e *Extractor) ExplodeWhere(records []*models.Record, keep func(*models.Record) bool) []RecordItems {
	var out []RecordItems
	for _, r := range records {
		if r == nil || r.Report != models.ReportSales || !keep(r) {
			continue
		}
		items := e.parser.Parse(r.DetailText)
		if len(items) == 0 {
			continue
		}
		for i := range items {
			items[i].OrderID = r.GroupKey()
		}
		out = append(out, RecordItems{Record: r, Items: items})
	}
	return out
}

// Explode returns the line items of every valid, non-rental sales record
func (e *Extractor) Explode(records []*models.Record) []models.LineItem {
	var items []models.LineItem
	for _, ri := range e.ExplodeByRecord(records) {
		items = append(items, ri.Items...)
	}

	e.logger.WithFields(logger.Fields{
		"records": len(records),
		"items":   len(items),
	}).Debug("Exploded order lines")
	return items
}

// Baskets groups items per sale into sorted sets of distinct lowercase base
// product names. Baskets are ordered by sale key.
func (e *Extractor) Baskets(records []*models.Record) [][]string {
	sets := make(map[string]map[string]struct{})
	for _, ri := range e.ExplodeByRecord(records) {
		key := ri.Record.GroupKey()
		set, ok := sets[key]
		if !ok {
			set = make(map[string]struct{})
			sets[key] = set
		}
		for _, item := range ri.Items {
			set[item.BasketKey()] = struct{}{}
		}
	}

	keys := make([]string, 0, len(sets))
	for k := range sets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	baskets := make([][]string, 0, len(keys))
	for _, k := range keys {
		basket := make([]string, 0, len(sets[k]))
		for name := range sets[k] {
			basket = append(basket, name)
		}
		sort.Strings(basket)
		baskets = append(baskets, basket)
	}
	return baskets
}

// Explode parses records with the default parser
func Explode(records []*models.Record) []models.LineItem {
	return NewExtractor(nil).Explode(records)
}

// Baskets builds baskets with the default parser
func Baskets(records []*models.Record) [][]string {
	return NewExtractor(nil).Baskets(records)
}
