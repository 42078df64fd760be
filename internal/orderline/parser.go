// Package orderline extracts line items from the free-text detail field of
// sales records.
//
// A detail reads like "2x Café Americano (grande) 1x Pan: integral". Each item
// starts at a quantity token (digits, optional spaces, 'x' or '×'); the product
// name runs to the next quantity token preceded by whitespace, or to the end of
// the text. Names split into a base product and a variant at the first '(',
// ':' or '.'.
package orderline

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang-pos-analytics/internal/models"
)

// Parser turns a detail text into line items
type Parser interface {
	Parse(text string) []models.LineItem
}

var (
	quantityToken  = regexp.MustCompile(`(\d+)\s*[x×]\s*`)
	variantPattern = regexp.MustCompile(`^([^(:.]+)(?:[\(:\.]\s*(.+?)\)?)?$`)
)

// RegexParser is the default Parser
type RegexParser struct{}

// NewParser returns the default parser
func NewParser() *RegexParser {
	return &RegexParser{}
}

type rawItem struct {
	quantity string
	name     string
}

// Parse extracts line items in the order they appear. Segments whose
// quantity is not a positive integer, or whose name is blank, are skipped.
func (p *RegexParser) Parse(text string) []models.LineItem {
	text = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ").Replace(text)

	var items []models.LineItem
	for _, raw := range segment(text) {
		qty, err := strconv.Atoi(raw.quantity)
		if err != nil || qty <= 0 {
			continue
		}
		name := strings.TrimSpace(raw.name)
		if name == "" {
			continue
		}
		base, variant := SplitVariant(name)
		if base == "" {
			continue
		}
		items = append(items, models.NewLineItem("", qty, base, variant))
	}
	return items
}

// segment cuts the text at quantity tokens. The first token opens an item
// wherever it sits; later tokens close the open item only when preceded by
// whitespace and when the open item already has a name.
func segment(text string) []rawItem {
	locs := quantityToken.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}

	var items []rawItem
	open := 0
	for k := 1; k < len(locs); k++ {
		start := locs[k][0]
		wsStart := start
		for wsStart > 0 && isSpace(text[wsStart-1]) {
			wsStart--
		}
		if wsStart == start {
			continue
		}
		nameStart := locs[open][1]
		if wsStart <= nameStart {
			continue
		}
		items = append(items, rawItem{
			quantity: text[locs[open][2]:locs[open][3]],
			name:     text[nameStart:wsStart],
		})
		open = k
	}

	if nameStart := locs[open][1]; nameStart < len(text) {
		items = append(items, rawItem{
			quantity: text[locs[open][2]:locs[open][3]],
			name:     text[nameStart:],
		})
	}
	return items
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\f', '\v':
		return true
	}
	return false
}

// SplitVariant splits a product name into a title-cased base and a variant.
// Names without a delimiter get the NoModification variant.
func SplitVariant(name string) (string, string) {
	name = strings.TrimSpace(name)
	m := variantPattern.FindStringSubmatch(name)
	if m == nil {
		return TitleCase(name), models.NoModification
	}

	base := TitleCase(strings.TrimSpace(m[1]))
	variant := strings.TrimSpace(m[2])
	if variant == "" {
		variant = models.NoModification
	}
	return base, variant
}

// TitleCase upper-cases the first letter of every word and lower-cases the rest.
// A word starts at any letter not preceded by another letter.
func TitleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		prevLetter = false
		b.WriteRune(r)
	}
	return b.String()
}
