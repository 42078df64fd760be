package basket

import (
	"math"
	"strings"

	"golang-pos-analytics/internal/models"
)

// RulesTable renders mined rules. An undefined lift is left empty.
func RulesTable(rules []models.AssociationRule) *models.ResultTable {
	t := models.NewResultTable("association_rules",
		"antecedent", "consequent", "support", "confidence", "lift", "count")
	for _, r := range rules {
		var lift interface{}
		if !math.IsNaN(r.Lift) && !math.IsInf(r.Lift, 0) {
			lift = r.Lift
		}
		t.Append(strings.Join(r.Antecedent, ", "), strings.Join(r.Consequent, ", "),
			r.Support, r.Confidence, lift, r.Count)
	}
	return t
}

// PairsTable renders pair co-occurrence
func PairsTable(pairs []Pair) *models.ResultTable {
	t := models.NewResultTable("product_pairs",
		"item_a", "item_b", "count", "support", "confidence_a_b", "confidence_b_a")
	for _, p := range pairs {
		t.Append(p.ItemA, p.ItemB, p.Count, p.Support, p.ConfidenceAB, p.ConfidenceBA)
	}
	return t
}
