package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// NoModification is the variant assigned to items ordered without changes
const NoModification = "no modification"

// LineItem is one (quantity, product, variant) tuple extracted from a detail field
type LineItem struct {
	OrderID     string `json:"order_id"`
	Quantity    int    `json:"quantity"`
	BaseProduct string `json:"base_product"`
	Variant     string `json:"variant"`
	FullName    string `json:"full_name"`
}

// NewLineItem builds a line item and derives its full name
func NewLineItem(orderID string, quantity int, base, variant string) LineItem {
	if variant == "" {
		variant = NoModification
	}
	full := base
	if variant != NoModification {
		full = fmt.Sprintf("%s (%s)", base, variant)
	}
	return LineItem{
		OrderID:     orderID,
		Quantity:    quantity,
		BaseProduct: base,
		Variant:     variant,
		FullName:    full,
	}
}

// BasketKey returns the lowercase product name used for co-occurrence analysis
func (li LineItem) BasketKey() string {
	return strings.ToLower(li.BaseProduct)
}

// MergeOutcome tags how the master table was produced
type MergeOutcome int

const (
	// OutcomeJoinedOnFull means the join used (order id, calendar day)
	OutcomeJoinedOnFull MergeOutcome = iota
	// OutcomeJoinedOnIDOnly means the join fell back to order id alone
	OutcomeJoinedOnIDOnly
	// OutcomeUnmerged means both joins failed and the sales side is returned as is
	OutcomeUnmerged
	// OutcomeSalesOnly means the index report was absent
	OutcomeSalesOnly
	// OutcomeIndexOnly means the sales report was absent
	OutcomeIndexOnly
)

// String returns the string representation of MergeOutcome
func (o MergeOutcome) String() string {
	switch o {
	case OutcomeJoinedOnFull:
		return "JOINED_ON_FULL"
	case OutcomeJoinedOnIDOnly:
		return "JOINED_ON_ID_ONLY"
	case OutcomeUnmerged:
		return "UNMERGED"
	case OutcomeSalesOnly:
		return "SALES_ONLY"
	case OutcomeIndexOnly:
		return "INDEX_ONLY"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON renders the outcome by name
func (o MergeOutcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// Degraded reports whether the outcome is narrower than a full join
func (o MergeOutcome) Degraded() bool {
	return o != OutcomeJoinedOnFull
}

// MasterRecord is one row of the merged table.
// Sales is nil only when the master table was built from the index report alone.
type MasterRecord struct {
	Sales            *Record  `json:"-"`
	Index            *Record  `json:"-"`
	ServiceMinutes   *float64 `json:"service_minutes,omitempty"`
	TableOccupancies int      `json:"table_occupancies"`
}

// Primary returns the record that anchors this master row
func (m *MasterRecord) Primary() *Record {
	if m.Sales != nil {
		return m.Sales
	}
	return m.Index
}

// OrderID returns the order identifier of the anchoring record
func (m *MasterRecord) OrderID() string {
	return m.Primary().OrderID
}

// TableID prefers the index table name, which the sales export lacks
func (m *MasterRecord) TableID() string {
	if m.Index != nil && m.Index.TableID != "" {
		return m.Index.TableID
	}
	return m.Primary().TableID
}

// Voided reports whether either side marks the order as voided
func (m *MasterRecord) Voided() bool {
	if m.Index != nil && m.Index.Voided {
		return true
	}
	p := m.Primary()
	return p.Voided || p.ValidityState == ValidityVoided
}

// MarshalJSON flattens both sides, suffixing index fields with "_idx"
func (m *MasterRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{})
	if p := m.Primary(); p != nil {
		if err := mergeJSONFields(out, p, ""); err != nil {
			return nil, err
		}
	}
	if m.Index != nil && m.Sales != nil {
		if err := mergeJSONFields(out, m.Index, "_idx"); err != nil {
			return nil, err
		}
	}
	if m.ServiceMinutes != nil {
		out["service_minutes"] = *m.ServiceMinutes
	}
	out["table_occupancies"] = m.TableOccupancies
	return json.Marshal(out)
}

func mergeJSONFields(out map[string]interface{}, r *Record, suffix string) error {
	data, err := json.Marshal(r)
	if err != nil {
		return err
	}
	fields := make(map[string]interface{})
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for k, v := range fields {
		key := k
		if _, exists := out[k]; exists && suffix != "" {
			key = k + suffix
		}
		out[key] = v
	}
	return nil
}

// AssociationRule is an antecedent -> consequent rule with its metrics
type AssociationRule struct {
	Antecedent []string `json:"antecedent"`
	Consequent []string `json:"consequent"`
	Support    float64  `json:"support"`
	Confidence float64  `json:"confidence"`
	Lift       float64  `json:"lift"`
	Count      int      `json:"count"`
}

// String returns a readable form of the rule
func (r AssociationRule) String() string {
	return fmt.Sprintf("{%s} -> {%s} (supp=%.3f conf=%.3f lift=%.3f)",
		strings.Join(r.Antecedent, ", "), strings.Join(r.Consequent, ", "),
		r.Support, r.Confidence, r.Lift)
}

// MarshalJSON encodes an undefined lift as null
func (r AssociationRule) MarshalJSON() ([]byte, error) {
	type Alias AssociationRule
	return json.Marshal(&struct {
		Lift *float64 `json:"lift"`
		Alias
	}{
		Lift:  finiteOrNil(r.Lift),
		Alias: Alias(r),
	})
}

// Quadrant is the BCG portfolio category of a product
type Quadrant int

const (
	QuadrantDog Quadrant = iota
	QuadrantQuestionMark
	QuadrantCashCow
	QuadrantStar
)

// String returns the string representation of Quadrant
func (q Quadrant) String() string {
	switch q {
	case QuadrantStar:
		return "Star"
	case QuadrantCashCow:
		return "Cash Cow"
	case QuadrantQuestionMark:
		return "Question Mark"
	default:
		return "Dog"
	}
}

// MarshalJSON renders the quadrant by name
func (q Quadrant) MarshalJSON() ([]byte, error) {
	return json.Marshal(q.String())
}

// ProductClassification is the growth/revenue position of one product
type ProductClassification struct {
	Product       string   `json:"product"`
	RevenueRecent float64  `json:"revenue_recent"`
	RevenuePrior  float64  `json:"revenue_prior"`
	RevenueTotal  float64  `json:"revenue_total"`
	Growth        float64  `json:"-"`
	Quadrant      Quadrant `json:"quadrant"`
}

// HasGrowth reports whether the growth rate is defined
func (p ProductClassification) HasGrowth() bool {
	return !math.IsNaN(p.Growth)
}

// MarshalJSON encodes an undefined growth as null
func (p ProductClassification) MarshalJSON() ([]byte, error) {
	type Alias ProductClassification
	return json.Marshal(&struct {
		Growth *float64 `json:"growth"`
		Alias
	}{
		Growth: finiteOrNil(p.Growth),
		Alias:  Alias(p),
	})
}

// CohortRetentionCell is the share of a cohort active in a given week
type CohortRetentionCell struct {
	CohortWeek       time.Time `json:"cohort_week"`
	ObservationWeek  time.Time `json:"observation_week"`
	Active           int       `json:"active"`
	CohortSize       int       `json:"cohort_size"`
	RetainedFraction float64   `json:"retained_fraction"`
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
