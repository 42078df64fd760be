package merger

import (
	"fmt"
	"sort"
	"strings"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/errors"
)

// keyFunc extracts a join key; false means the record cannot be keyed
type keyFunc func(r *models.Record) (string, bool)

// fullKey joins on order id and calendar day
func fullKey(r *models.Record) (string, bool) {
	if r.OrderID == "" || r.Day.IsZero() {
		return "", false
	}
	return r.OrderID + "|" + r.Day.Format("2006-01-02"), true
}

// idKey joins on order id alone
func idKey(r *models.Record) (string, bool) {
	if r.OrderID == "" {
		return "", false
	}
	return r.OrderID, true
}

// RecordIndex provides keyed lookups over index-report records
type RecordIndex struct {
	byKey   map[string]*models.Record
	skipped int
}

// buildIndex keys the records and fails when a key repeats, since a left
// join on a repeated key would duplicate sales rows
func buildIndex(records []*models.Record, key keyFunc, keyName string) (*RecordIndex, error) {
	idx := &RecordIndex{byKey: make(map[string]*models.Record, len(records))}
	counts := make(map[string]int)

	for _, r := range records {
		k, ok := key(r)
		if !ok {
			idx.skipped++
			continue
		}
		counts[k]++
		if _, exists := idx.byKey[k]; !exists {
			idx.byKey[k] = r
		}
	}

	var duplicates []string
	for k, n := range counts {
		if n > 1 {
			duplicates = append(duplicates, k)
		}
	}
	if len(duplicates) > 0 {
		sort.Strings(duplicates)
		sample := duplicates
		if len(sample) > 5 {
			sample = sample[:5]
		}
		return nil, errors.MergeError(errors.CodeDuplicateKeys, keyName,
			fmt.Sprintf("%d repeated keys (e.g. %s)", len(duplicates), strings.Join(sample, ", ")))
	}

	if len(idx.byKey) == 0 && len(records) > 0 {
		return nil, errors.MergeError(errors.CodeMisalignedKey, keyName,
			fmt.Sprintf("none of %d index records carries the key", len(records)))
	}

	return idx, nil
}

// Lookup returns the record stored under key
func (ri *RecordIndex) Lookup(key string) (*models.Record, bool) {
	r, ok := ri.byKey[key]
	return r, ok
}

// Len returns the number of keyed records
func (ri *RecordIndex) Len() int {
	return len(ri.byKey)
}
