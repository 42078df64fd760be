// Package retention measures how often customers come back.
//
// A visit is a distinct calendar day on which a customer has at least one
// valid order. Customers are grouped into cohorts by the week (starting on
// Monday) of their first visit, and the retention matrix gives the share of
// each cohort seen again in every later week.
package retention

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/logger"
)

// DefaultMinVisits is the number of visit days that makes a customer recurrent
const DefaultMinVisits = 2

// Config holds the analyzer settings
type Config struct {
	MinVisits int `json:"min_visits" validate:"min=1"`
}

// DefaultConfig returns the default analyzer settings
func DefaultConfig() Config {
	return Config{MinVisits: DefaultMinVisits}
}

// Result summarizes customer recurrence
type Result struct {
	Customers          int                          `json:"customers"`
	RecurrentCustomers int                          `json:"recurrent_customers"`
	MeanDaysBetween    *float64                     `json:"mean_days_between"`
	VisitsPerMonth     float64                      `json:"visits_per_month"`
	TicketNew          decimal.Decimal              `json:"ticket_new"`
	TicketRecurrent    decimal.Decimal              `json:"ticket_recurrent"`
	Retention          []models.CohortRetentionCell `json:"retention"`
}

// Cell returns the retention cell of a cohort in a week
func (r *Result) Cell(cohort, week time.Time) (models.CohortRetentionCell, bool) {
	for _, c := range r.Retention {
		if c.CohortWeek.Equal(cohort) && c.ObservationWeek.Equal(week) {
			return c, true
		}
	}
	return models.CohortRetentionCell{}, false
}

// customer accumulates one customer's activity
type customer struct {
	days   map[time.Time]struct{}
	weeks  map[time.Time]struct{}
	months map[string]map[string]struct{}
	orders map[string]decimal.Decimal
}

// Analyzer computes recurrence metrics
type Analyzer struct {
	config Config
	logger logger.Logger
}

// NewAnalyzer creates an analyzer with the given settings
func NewAnalyzer(config Config) *Analyzer {
	if config.MinVisits < 1 {
		config.MinVisits = DefaultMinVisits
	}
	return &Analyzer{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("retention"),
	}
}

// Analyze computes recurrence over valid, non-rental records that carry a
// customer and a timestamp. Nil means no record was usable.
func (a *Analyzer) Analyze(records []*models.Record) *Result {
	customers := make(map[string]*customer)
	for _, r := range records {
		if r == nil || !r.Flags.IsValid || r.Flags.IsRentalExempt || !r.HasTimestamp() {
			continue
		}
		name := strings.TrimSpace(r.Customer)
		if name == "" {
			continue
		}
		c, ok := customers[name]
		if !ok {
			c = &customer{
				days:   make(map[time.Time]struct{}),
				weeks:  make(map[time.Time]struct{}),
				months: make(map[string]map[string]struct{}),
				orders: make(map[string]decimal.Decimal),
			}
			customers[name] = c
		}

		order := orderKey(r)
		c.days[r.Day] = struct{}{}
		c.weeks[models.WeekStart(r.Timestamp)] = struct{}{}
		month := r.Timestamp.Format("2006-01")
		if c.months[month] == nil {
			c.months[month] = make(map[string]struct{})
		}
		c.months[month][order] = struct{}{}
		c.orders[order] = c.orders[order].Add(r.AmountTotal)
	}

	if len(customers) == 0 {
		a.logger.Warn("No customer-identified records, skipping recurrence analysis")
		return nil
	}

	result := &Result{Customers: len(customers)}
	var gapMeans, monthlyVisits []float64
	var ticketsNew, ticketsRecurrent []decimal.Decimal

	for _, c := range customers {
		ticket := averageTicket(c.orders)
		monthlyVisits = append(monthlyVisits, averageOrdersPerMonth(c.months))

		if len(c.days) < a.config.MinVisits {
			ticketsNew = append(ticketsNew, ticket)
			continue
		}
		result.RecurrentCustomers++
		ticketsRecurrent = append(ticketsRecurrent, ticket)
		if gap, ok := meanGapDays(c.days); ok {
			gapMeans = append(gapMeans, gap)
		}
	}

	if len(gapMeans) > 0 {
		m := meanFloat(gapMeans)
		result.MeanDaysBetween = &m
	}
	result.VisitsPerMonth = meanFloat(monthlyVisits)
	result.TicketNew = meanDecimal(ticketsNew)
	result.TicketRecurrent = meanDecimal(ticketsRecurrent)
	result.Retention = cohortRetention(customers)

	a.logger.WithFields(logger.Fields{
		"customers": result.Customers,
		"recurrent": result.RecurrentCustomers,
		"cohorts":   countCohorts(result.Retention),
	}).Info("Analyzed customer recurrence")
	return result
}

// orderKey identifies an order; order numbers restart every day
func orderKey(r *models.Record) string {
	return r.GroupKey() + "|" + r.Day.Format("2006-01-02")
}

// averageTicket is the mean of the per-order sums of one customer
func averageTicket(orders map[string]decimal.Decimal) decimal.Decimal {
	values := make([]decimal.Decimal, 0, len(orders))
	for _, amount := range orders {
		values = append(values, amount)
	}
	return meanDecimal(values)
}

func averageOrdersPerMonth(months map[string]map[string]struct{}) float64 {
	counts := make([]float64, 0, len(months))
	for _, orders := range months {
		counts = append(counts, float64(len(orders)))
	}
	return meanFloat(counts)
}

// meanGapDays is the mean number of days between consecutive visit days
func meanGapDays(days map[time.Time]struct{}) (float64, bool) {
	if len(days) < 2 {
		return 0, false
	}
	sorted := make([]time.Time, 0, len(days))
	for d := range days {
		sorted = append(sorted, d)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	var total float64
	for i := 1; i < len(sorted); i++ {
		total += sorted[i].Sub(sorted[i-1]).Hours() / 24
	}
	return total / float64(len(sorted)-1), true
}

// cohortRetention builds one cell per cohort and observation week from the
// cohort week to the last observed week
func cohortRetention(customers map[string]*customer) []models.CohortRetentionCell {
	type cohortData struct {
		size   int
		active map[time.Time]int
	}
	cohorts := make(map[time.Time]*cohortData)
	allWeeks := make(map[time.Time]struct{})

	for _, c := range customers {
		var first time.Time
		for w := range c.weeks {
			allWeeks[w] = struct{}{}
			if first.IsZero() || w.Before(first) {
				first = w
			}
		}
		cd, ok := cohorts[first]
		if !ok {
			cd = &cohortData{active: make(map[time.Time]int)}
			cohorts[first] = cd
		}
		cd.size++
		for w := range c.weeks {
			cd.active[w]++
		}
	}

	weeks := sortedTimes(allWeeks)
	cohortWeeks := make(map[time.Time]struct{}, len(cohorts))
	for w := range cohorts {
		cohortWeeks[w] = struct{}{}
	}

	var cells []models.CohortRetentionCell
	for _, cohort := range sortedTimes(cohortWeeks) {
		cd := cohorts[cohort]
		for _, week := range weeks {
			if week.Before(cohort) {
				continue
			}
			active := cd.active[week]
			cells = append(cells, models.CohortRetentionCell{
				CohortWeek:       cohort,
				ObservationWeek:  week,
				Active:           active,
				CohortSize:       cd.size,
				RetainedFraction: float64(active) / float64(cd.size),
			})
		}
	}
	return cells
}

func sortedTimes(set map[time.Time]struct{}) []time.Time {
	out := make([]time.Time, 0, len(set))
	for t := range set {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func countCohorts(cells []models.CohortRetentionCell) int {
	seen := make(map[time.Time]struct{})
	for _, c := range cells {
		seen[c.CohortWeek] = struct{}{}
	}
	return len(seen)
}

func meanFloat(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func meanDecimal(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	return decimal.Sum(values[0], values[1:]...).Div(decimal.NewFromInt(int64(len(values))))
}

// SummaryTable renders the scalar metrics
func (r *Result) SummaryTable() *models.ResultTable {
	t := models.NewResultTable("recurrence", "metric", "value")
	t.Append("customers", float64(r.Customers))
	t.Append("recurrent_customers", float64(r.RecurrentCustomers))
	var gap interface{}
	if r.MeanDaysBetween != nil {
		gap = *r.MeanDaysBetween
	}
	t.Append("mean_days_between", gap)
	t.Append("visits_per_month", r.VisitsPerMonth)
	t.Append("ticket_new", r.TicketNew.InexactFloat64())
	t.Append("ticket_recurrent", r.TicketRecurrent.InexactFloat64())
	return t
}

// RetentionTable renders the cohort matrix in long form
func (r *Result) RetentionTable() *models.ResultTable {
	t := models.NewResultTable("cohort_retention", "cohort_week", "week", "active", "cohort_size", "retained")
	for _, c := range r.Retention {
		t.Append(c.CohortWeek, c.ObservationWeek, c.Active, c.CohortSize, c.RetainedFraction)
	}
	return t
}

// String returns a one-line summary
func (r *Result) String() string {
	return fmt.Sprintf("%d customers, %d recurrent, %.2f visits/month",
		r.Customers, r.RecurrentCustomers, r.VisitsPerMonth)
}
