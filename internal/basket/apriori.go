// Package basket mines association rules between products bought together.
//
// Itemsets are counted level by level with the Apriori property: a candidate
// of size k+1 is only counted when every k-subset was frequent. Rules are
// generated from every frequent itemset of size two or more.
//
// Example usage:
//
//	miner := basket.NewMiner(basket.DefaultConfig())
//	result := miner.Mine(orderline.Baskets(records))
//	for _, rule := range result.Rules { ... }
package basket

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/logger"
)

// Config holds the mining thresholds
type Config struct {
	MinSupport    float64 `json:"min_support" validate:"gt=0,lte=1"`
	MinConfidence float64 `json:"min_confidence" validate:"gte=0,lte=1"`
	MaxLen        int     `json:"max_len" validate:"min=2,max=6"`
	TopN          int     `json:"top_n" validate:"min=1"`
}

// DefaultConfig returns the default mining thresholds
func DefaultConfig() Config {
	return Config{
		MinSupport:    0.01,
		MinConfidence: 0.3,
		MaxLen:        3,
		TopN:          50,
	}
}

// Validate checks the thresholds
func (c Config) Validate() error {
	if c.MinSupport <= 0 || c.MinSupport > 1 {
		return fmt.Errorf("min support must be in (0, 1], got %v", c.MinSupport)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min confidence must be in [0, 1], got %v", c.MinConfidence)
	}
	if c.MaxLen < 2 {
		return fmt.Errorf("max itemset length must be at least 2, got %d", c.MaxLen)
	}
	if c.TopN < 1 {
		return fmt.Errorf("top N must be positive, got %d", c.TopN)
	}
	return nil
}

// Result holds the mined rules and the size of the search
type Result struct {
	Transactions     int                      `json:"transactions"`
	FrequentItemsets int                      `json:"frequent_itemsets"`
	Rules            []models.AssociationRule `json:"rules"`
	ProcessingMS     int64                    `json:"processing_ms"`
}

// Miner runs Apriori over baskets
type Miner struct {
	config Config
	logger logger.Logger
}

// NewMiner creates a miner with the given thresholds
func NewMiner(config Config) *Miner {
	return &Miner{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("basket"),
	}
}

// itemset is a sorted set of product names
type itemset []string

func (s itemset) key() string {
	return strings.Join(s, "\x00")
}

// counts maps itemset keys to the number of baskets containing them
type counts map[string]int

// Mine counts frequent itemsets and derives the rules above the confidence
// threshold, strongest first. Nil means there were no baskets.
func (m *Miner) Mine(baskets [][]string) *Result {
	start := time.Now()
	transactions := normalizeBaskets(baskets)
	if len(transactions) == 0 {
		m.logger.Warn("No baskets to mine")
		return nil
	}

	n := len(transactions)
	minCount := int(math.Ceil(m.config.MinSupport*float64(n) - 1e-9))
	if minCount < 1 {
		minCount = 1
	}

	frequent := make(counts)
	var levels [][]itemset

	level := frequentSingles(transactions, minCount, frequent)
	for k := 1; len(level) > 0 && k <= m.config.MaxLen; k++ {
		levels = append(levels, level)
		if k == m.config.MaxLen {
			break
		}
		candidates := generateCandidates(level, frequent)
		level = countCandidates(transactions, candidates, k+1, minCount, frequent)
	}

	result := &Result{Transactions: n, FrequentItemsets: len(frequent)}
	for k := 1; k < len(levels); k++ {
		for _, set := range levels[k] {
			result.Rules = append(result.Rules, m.rulesFor(set, frequent, n)...)
		}
	}
	sortRules(result.Rules)
	if len(result.Rules) > m.config.TopN {
		result.Rules = result.Rules[:m.config.TopN]
	}
	result.ProcessingMS = time.Since(start).Milliseconds()

	m.logger.WithFields(logger.Fields{
		"transactions": n,
		"frequent":     result.FrequentItemsets,
		"rules":        len(result.Rules),
	}).Info("Mined association rules")
	return result
}

// normalizeBaskets dedupes and sorts each basket and drops empty ones
func normalizeBaskets(baskets [][]string) []itemset {
	out := make([]itemset, 0, len(baskets))
	for _, b := range baskets {
		seen := make(map[string]struct{}, len(b))
		set := make(itemset, 0, len(b))
		for _, item := range b {
			if item == "" {
				continue
			}
			if _, dup := seen[item]; dup {
				continue
			}
			seen[item] = struct{}{}
			set = append(set, item)
		}
		if len(set) == 0 {
			continue
		}
		sort.Strings(set)
		out = append(out, set)
	}
	return out
}

func frequentSingles(transactions []itemset, minCount int, frequent counts) []itemset {
	single := make(counts)
	for _, t := range transactions {
		for _, item := range t {
			single[item]++
		}
	}
	var level []itemset
	for item, c := range single {
		if c >= minCount {
			frequent[item] = c
			level = append(level, itemset{item})
		}
	}
	sortItemsets(level)
	return level
}

// generateCandidates joins frequent k-itemsets sharing their first k-1 items
// and prunes candidates with an infrequent k-subset
func generateCandidates(level []itemset, frequent counts) []itemset {
	var candidates []itemset
	for i := 0; i < len(level); i++ {
		for j := i + 1; j < len(level); j++ {
			a, b := level[i], level[j]
			k := len(a)
			if !equalPrefix(a, b, k-1) {
				// level is sorted, so no later b shares the prefix either
				break
			}
			candidate := make(itemset, k+1)
			copy(candidate, a)
			candidate[k] = b[k-1]
			if allSubsetsFrequent(candidate, frequent) {
				candidates = append(candidates, candidate)
			}
		}
	}
	return candidates
}

func equalPrefix(a, b itemset, n int) bool {
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func allSubsetsFrequent(candidate itemset, frequent counts) bool {
	subset := make(itemset, 0, len(candidate)-1)
	for skip := range candidate {
		subset = subset[:0]
		for i, item := range candidate {
			if i != skip {
				subset = append(subset, item)
			}
		}
		if _, ok := frequent[subset.key()]; !ok {
			return false
		}
	}
	return true
}

// countCandidates counts the candidates contained in each transaction and
// returns the frequent ones
func countCandidates(transactions []itemset, candidates []itemset, k, minCount int, frequent counts) []itemset {
	if len(candidates) == 0 {
		return nil
	}
	byKey := make(map[string]itemset, len(candidates))
	for _, c := range candidates {
		byKey[c.key()] = c
	}

	found := make(counts)
	for _, t := range transactions {
		if len(t) < k {
			continue
		}
		combinations(t, k, func(combo itemset) {
			key := combo.key()
			if _, ok := byKey[key]; ok {
				found[key]++
			}
		})
	}

	var level []itemset
	for key, c := range found {
		if c >= minCount {
			frequent[key] = c
			level = append(level, byKey[key])
		}
	}
	sortItemsets(level)
	return level
}

// combinations calls fn with every k-subset of set in lexical order.
// The slice passed to fn is reused between calls.
func combinations(set itemset, k int, fn func(itemset)) {
	combo := make(itemset, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			fn(combo)
			return
		}
		for i := start; i <= len(set)-(k-depth); i++ {
			combo[depth] = set[i]
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
}

// rulesFor splits a frequent itemset into every antecedent/consequent pair
func (m *Miner) rulesFor(set itemset, frequent counts, n int) []models.AssociationRule {
	count := frequent[set.key()]
	support := float64(count) / float64(n)

	var rules []models.AssociationRule
	for size := 1; size < len(set); size++ {
		combinations(set, size, func(combo itemset) {
			antecedent := append(itemset(nil), combo...)
			consequent := difference(set, antecedent)

			antCount := frequent[antecedent.key()]
			if antCount == 0 {
				return
			}
			confidence := float64(count) / float64(antCount)
			if confidence < m.config.MinConfidence {
				return
			}
			lift := math.NaN()
			if consCount := frequent[consequent.key()]; consCount > 0 {
				lift = confidence / (float64(consCount) / float64(n))
			}
			rules = append(rules, models.AssociationRule{
				Antecedent: antecedent,
				Consequent: consequent,
				Support:    support,
				Confidence: confidence,
				Lift:       lift,
				Count:      count,
			})
		})
	}
	return rules
}

func difference(set, remove itemset) itemset {
	out := make(itemset, 0, len(set)-len(remove))
	j := 0
	for _, item := range set {
		if j < len(remove) && remove[j] == item {
			j++
			continue
		}
		out = append(out, item)
	}
	return out
}

// sortRules orders by lift, confidence and support descending with an
// undefined lift last, then by antecedent and consequent names
func sortRules(rules []models.AssociationRule) {
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		aNaN, bNaN := math.IsNaN(a.Lift), math.IsNaN(b.Lift)
		if aNaN != bNaN {
			return bNaN
		}
		if !aNaN && a.Lift != b.Lift {
			return a.Lift > b.Lift
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Support != b.Support {
			return a.Support > b.Support
		}
		if ak, bk := strings.Join(a.Antecedent, ","), strings.Join(b.Antecedent, ","); ak != bk {
			return ak < bk
		}
		return strings.Join(a.Consequent, ",") < strings.Join(b.Consequent, ",")
	})
}

func sortItemsets(sets []itemset) {
	sort.Slice(sets, func(i, j int) bool {
		a, b := sets[i], sets[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}
