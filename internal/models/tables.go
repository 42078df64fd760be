package models

import (
	"regexp"
	"strconv"
	"strings"
)

// GenericHall is the canonical name for hall tables without a number
const GenericHall = "SALA"

var accentFolder = strings.NewReplacer("Á", "A", "É", "E", "Í", "I", "Ó", "O", "Ú", "U", "Ü", "U", "Ñ", "N")

// tableRule maps a floor-plan naming pattern to a canonical prefix and its valid numbers
type tableRule struct {
	pattern *regexp.Regexp
	prefix  string
	max     int
}

// tableRules are tried in order; a rule whose number is out of range falls through
var tableRules = []tableRule{
	{regexp.MustCompile(`SALA\s+S\s*(\d+)`), "S", 6},
	{regexp.MustCompile(`SALON\s+S?\s*(\d+)`), "S", 6},
	{regexp.MustCompile(`\bS\s*(\d+)`), "S", 6},
	{regexp.MustCompile(`BALCON\s+B\s*(\d+)`), "B", 5},
	{regexp.MustCompile(`\bB\s*(\d+)`), "B", 5},
	{regexp.MustCompile(`CUBICUL\w*\s+C\s*(\d+)`), "C", 6},
	{regexp.MustCompile(`\bC\s*(\d+)`), "C", 6},
	{regexp.MustCompile(`BARRA\s+P\s*(\d+)`), "P", 2},
	{regexp.MustCompile(`\bP\s*(\d+)`), "P", 2},
}

// NormalizeTableName maps a free-text table label onto the floor plan
// (S1-S6 hall, B1-B5 balcony, C1-C6 cubicles, P1-P2 bar, or SALA).
// Delivery labels and names that are not tables return false.
func NormalizeTableName(raw string) (string, bool) {
	name := accentFolder.Replace(strings.ToUpper(strings.TrimSpace(raw)))
	if name == "" {
		return "", false
	}
	if strings.Contains(name, "YANGO") || strings.Contains(name, "DELIVERY") {
		return "", false
	}

	for _, rule := range tableRules {
		m := rule.pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		num, err := strconv.Atoi(m[1])
		if err == nil && num >= 1 && num <= rule.max {
			return rule.prefix + strconv.Itoa(num), true
		}
	}

	if strings.Contains(name, "SALA") || strings.Contains(name, "SALON") {
		return GenericHall, true
	}
	return "", false
}
