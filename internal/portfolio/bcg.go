// Package portfolio places products on a growth/revenue matrix.
//
// Revenue is split into two consecutive windows ending at the latest sale:
// the recent window and the prior one. Growth compares the two; revenue is
// their sum. Both axes are cut at the median, giving the four quadrants
// Star, Cash Cow, Question Mark and Dog.
package portfolio

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/internal/orderline"
	"golang-pos-analytics/pkg/logger"
)

// ZeroPriorPolicy decides the growth of a product with no prior revenue
type ZeroPriorPolicy string

const (
	// ZeroPriorRecent uses the recent revenue times ZeroPriorScale
	ZeroPriorRecent ZeroPriorPolicy = "recent"
	// ZeroPriorCap uses the fixed ZeroPriorCap value
	ZeroPriorCap ZeroPriorPolicy = "cap"
	// ZeroPriorUnclassifiable leaves growth undefined
	ZeroPriorUnclassifiable ZeroPriorPolicy = "unclassifiable"
)

// IsValid checks the policy is known
func (p ZeroPriorPolicy) IsValid() bool {
	switch p {
	case ZeroPriorRecent, ZeroPriorCap, ZeroPriorUnclassifiable:
		return true
	}
	return false
}

// Config holds the classifier settings
type Config struct {
	WindowWeeks    int             `json:"window_weeks" validate:"min=1,max=52"`
	ZeroPrior      ZeroPriorPolicy `json:"zero_prior" validate:"oneof=recent cap unclassifiable"`
	ZeroPriorScale float64         `json:"zero_prior_scale" validate:"gt=0"`
	ZeroPriorCap   float64         `json:"zero_prior_cap" validate:"gt=0"`
}

// DefaultConfig returns the default classifier settings
func DefaultConfig() Config {
	return Config{
		WindowWeeks:    4,
		ZeroPrior:      ZeroPriorRecent,
		ZeroPriorScale: 1.0,
		ZeroPriorCap:   10.0,
	}
}

// Validate checks the settings
func (c Config) Validate() error {
	if c.WindowWeeks < 1 {
		return fmt.Errorf("window must be at least one week, got %d", c.WindowWeeks)
	}
	if !c.ZeroPrior.IsValid() {
		return fmt.Errorf("unknown zero prior policy %q", c.ZeroPrior)
	}
	if c.ZeroPriorScale <= 0 || c.ZeroPriorCap <= 0 {
		return fmt.Errorf("zero prior scale and cap must be positive")
	}
	return nil
}

// Window returns the length of one comparison window
func (c Config) Window() time.Duration {
	return time.Duration(c.WindowWeeks) * 7 * 24 * time.Hour
}

// RevenueEvent is the revenue attributed to one product at one time
type RevenueEvent struct {
	Product string
	Amount  decimal.Decimal
	Time    time.Time
}

// BuildEvents allocates each valid, non-rental ticket across its items in
// proportion to quantity. Tickets without a timestamp are skipped.
func BuildEvents(records []*models.Record, extractor *orderline.Extractor) []RevenueEvent {
	if extractor == nil {
		extractor = orderline.NewExtractor(nil)
	}
	var events []RevenueEvent
	for _, ri := range extractor.ExplodeByRecord(records) {
		if !ri.Record.HasTimestamp() {
			continue
		}
		for i, amount := range ri.Allocate() {
			events = append(events, RevenueEvent{
				Product: ri.Items[i].BasketKey(),
				Amount:  amount,
				Time:    ri.Record.Timestamp,
			})
		}
	}
	return events
}

// Classifier assigns quadrants to products
type Classifier struct {
	config Config
	logger logger.Logger
}

// NewClassifier creates a classifier with the given settings
func NewClassifier(config Config) *Classifier {
	return &Classifier{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("portfolio"),
	}
}

// Classify computes the matrix. Products are ordered by total revenue and
// then growth, undefined growth last. Nil means there were no events.
func (c *Classifier) Classify(events []RevenueEvent) []models.ProductClassification {
	if len(events) == 0 {
		return nil
	}

	var latest time.Time
	for _, e := range events {
		if e.Time.After(latest) {
			latest = e.Time
		}
	}
	recentStart := latest.Add(-c.config.Window())
	priorStart := recentStart.Add(-c.config.Window())

	type windows struct{ recent, prior decimal.Decimal }
	byProduct := make(map[string]*windows)
	for _, e := range events {
		var inRecent bool
		switch {
		case e.Time.After(recentStart):
			inRecent = true
		case e.Time.After(priorStart):
		default:
			continue
		}
		w, ok := byProduct[e.Product]
		if !ok {
			w = &windows{recent: decimal.Zero, prior: decimal.Zero}
			byProduct[e.Product] = w
		}
		if inRecent {
			w.recent = w.recent.Add(e.Amount)
		} else {
			w.prior = w.prior.Add(e.Amount)
		}
	}
	if len(byProduct) == 0 {
		return nil
	}

	out := make([]models.ProductClassification, 0, len(byProduct))
	for product, w := range byProduct {
		recent, prior := w.recent.InexactFloat64(), w.prior.InexactFloat64()
		out = append(out, models.ProductClassification{
			Product:       product,
			RevenueRecent: recent,
			RevenuePrior:  prior,
			RevenueTotal:  w.recent.Add(w.prior).InexactFloat64(),
			Growth:        c.growth(recent, prior),
		})
	}

	revenueThreshold, growthThreshold := thresholds(out)
	for i := range out {
		out[i].Quadrant = quadrant(out[i], revenueThreshold, growthThreshold)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.RevenueTotal != b.RevenueTotal {
			return a.RevenueTotal > b.RevenueTotal
		}
		if a.HasGrowth() != b.HasGrowth() {
			return a.HasGrowth()
		}
		if a.HasGrowth() && a.Growth != b.Growth {
			return a.Growth > b.Growth
		}
		return a.Product < b.Product
	})

	c.logger.WithFields(logger.Fields{
		"products":       len(out),
		"latest":         latest.Format("2006-01-02"),
		"revenue_median": revenueThreshold,
		"growth_median":  growthThreshold,
		"zero_prior":     string(c.config.ZeroPrior),
	}).Info("Classified product portfolio")
	return out
}

// growth is the relative change from prior to recent revenue
func (c *Classifier) growth(recent, prior float64) float64 {
	switch {
	case prior > 0:
		return (recent - prior) / prior
	case recent > 0:
		switch c.config.ZeroPrior {
		case ZeroPriorCap:
			return c.config.ZeroPriorCap
		case ZeroPriorUnclassifiable:
			return math.NaN()
		default:
			return recent * c.config.ZeroPriorScale
		}
	default:
		return math.NaN()
	}
}

// thresholds returns the median revenue and the median of defined growths,
// zero when no growth is defined
func thresholds(products []models.ProductClassification) (float64, float64) {
	revenues := make([]float64, 0, len(products))
	var growths []float64
	for _, p := range products {
		revenues = append(revenues, p.RevenueTotal)
		if p.HasGrowth() {
			growths = append(growths, p.Growth)
		}
	}
	return median(revenues), median(growths)
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

// quadrant applies the 2x2 rule; undefined growth counts as low growth
func quadrant(p models.ProductClassification, revenueThreshold, growthThreshold float64) models.Quadrant {
	highRevenue := p.RevenueTotal >= revenueThreshold
	highGrowth := p.HasGrowth() && p.Growth > growthThreshold
	switch {
	case highRevenue && highGrowth:
		return models.QuadrantStar
	case highRevenue:
		return models.QuadrantCashCow
	case highGrowth:
		return models.QuadrantQuestionMark
	default:
		return models.QuadrantDog
	}
}

// Table renders the classification for the report writers
func Table(products []models.ProductClassification) *models.ResultTable {
	t := models.NewResultTable("bcg_matrix", "product", "revenue_recent", "revenue_prior", "revenue_total", "growth", "quadrant")
	for _, p := range products {
		var growth interface{}
		if p.HasGrowth() {
			growth = p.Growth
		}
		t.Append(p.Product, p.RevenueRecent, p.RevenuePrior, p.RevenueTotal, growth, p.Quadrant.String())
	}
	return t
}
