package basket

import (
	"sort"
)

// Defaults for pair co-occurrence
const (
	DefaultPairMinCount = 2
	DefaultPairTopN     = 20
)

// Pair is the co-occurrence of two products
type Pair struct {
	ItemA        string  `json:"item_a"`
	ItemB        string  `json:"item_b"`
	Count        int     `json:"count"`
	Support      float64 `json:"support"`
	ConfidenceAB float64 `json:"confidence_a_b"`
	ConfidenceBA float64 `json:"confidence_b_a"`
}

// Pairs counts how often two products share a basket. Pairs seen fewer than
// minCount times are dropped and the topN most frequent are returned.
// Nil means there were no baskets.
func Pairs(baskets [][]string, minCount, topN int) []Pair {
	if minCount <= 0 {
		minCount = DefaultPairMinCount
	}
	if topN <= 0 {
		topN = DefaultPairTopN
	}

	transactions := normalizeBaskets(baskets)
	if len(transactions) == 0 {
		return nil
	}
	n := float64(len(transactions))

	items := make(counts)
	pairs := make(map[[2]string]int)
	for _, t := range transactions {
		for i, a := range t {
			items[a]++
			for _, b := range t[i+1:] {
				pairs[[2]string{a, b}]++
			}
		}
	}

	out := make([]Pair, 0, len(pairs))
	for p, c := range pairs {
		if c < minCount {
			continue
		}
		out = append(out, Pair{
			ItemA:        p[0],
			ItemB:        p[1],
			Count:        c,
			Support:      float64(c) / n,
			ConfidenceAB: float64(c) / float64(items[p[0]]),
			ConfidenceBA: float64(c) / float64(items[p[1]]),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		if out[i].ItemA != out[j].ItemA {
			return out[i].ItemA < out[j].ItemA
		}
		return out[i].ItemB < out[j].ItemB
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
