// Package merger builds the master table by joining the sales report with
// the order index report.
//
// The join is a left-outer join anchored on sales rows. It first keys the
// index on (order id, calendar day); when that key is structurally unusable
// it downgrades to the order id alone, and when that fails too the sales rows
// are returned un-joined. Either report may be absent, in which case the other
// is wrapped as is. Once at least one report is present, merging never fails:
// every attempt is recorded in the result instead.
//
// Example usage:
//
//	engine := merger.NewEngine()
//	result, err := engine.Merge(salesRecords, indexRecords)
//	if result.Outcome.Degraded() { ... }
package merger

import (
	"fmt"
	"time"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/errors"
	"golang-pos-analytics/pkg/logger"
)

// Attempt records one join strategy tried by the engine
type Attempt struct {
	Strategy string `json:"strategy"`
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
}

// MergeStats summarizes a merge
type MergeStats struct {
	SalesRows    int   `json:"sales_rows"`
	IndexRows    int   `json:"index_rows"`
	Matched      int   `json:"matched"`
	Unmatched    int   `json:"unmatched"`
	WithService  int   `json:"with_service_minutes"`
	ProcessingMS int64 `json:"processing_ms"`
}

// MergeResult holds the master table and how it was produced
type MergeResult struct {
	Outcome  models.MergeOutcome    `json:"outcome"`
	Records  []*models.MasterRecord `json:"records"`
	Attempts []Attempt              `json:"attempts"`
	Stats    MergeStats             `json:"stats"`
}

// Engine merges the two reports
type Engine struct {
	logger logger.Logger
}

// NewEngine creates a merge engine
func NewEngine() *Engine {
	return &Engine{
		logger: logger.GetGlobalLogger().WithComponent("merger"),
	}
}

type strategy struct {
	name    string
	key     keyFunc
	outcome models.MergeOutcome
}

var strategies = []strategy{
	{name: "order_id+day", key: fullKey, outcome: models.OutcomeJoinedOnFull},
	{name: "order_id", key: idKey, outcome: models.OutcomeJoinedOnIDOnly},
}

// Merge joins sales and index records. A nil slice means the report is
// absent; both absent is the only error.
func (e *Engine) Merge(sales, index []*models.Record) (*MergeResult, error) {
	start := time.Now()

	if sales == nil && index == nil {
		return nil, errors.ConfigurationError(errors.CodeNoInput, "reports", nil, nil)
	}

	result := &MergeResult{
		Stats: MergeStats{SalesRows: len(sales), IndexRows: len(index)},
	}

	switch {
	case index == nil:
		result.Outcome = models.OutcomeSalesOnly
		result.Records = wrap(sales, func(r *models.Record) *models.MasterRecord {
			return &models.MasterRecord{Sales: r}
		})
	case sales == nil:
		result.Outcome = models.OutcomeIndexOnly
		result.Records = wrap(index, func(r *models.Record) *models.MasterRecord {
			return &models.MasterRecord{Index: r}
		})
	default:
		e.join(result, sales, index)
	}

	annotate(result)
	result.Stats.ProcessingMS = time.Since(start).Milliseconds()

	e.logger.WithFields(logger.Fields{
		"outcome":   result.Outcome.String(),
		"records":   len(result.Records),
		"matched":   result.Stats.Matched,
		"unmatched": result.Stats.Unmatched,
	}).Info("Built master table")

	return result, nil
}

// join walks the strategies until one can key the index
func (e *Engine) join(result *MergeResult, sales, index []*models.Record) {
	for _, s := range strategies {
		idx, err := buildIndex(index, s.key, s.name)
		if err != nil {
			result.Attempts = append(result.Attempts, Attempt{Strategy: s.name, Error: err.Error()})
			e.logger.WithError(err).WithField("strategy", s.name).Warn("Join strategy failed, downgrading")
			continue
		}

		result.Attempts = append(result.Attempts, Attempt{Strategy: s.name, Success: true})
		result.Outcome = s.outcome
		result.Records = make([]*models.MasterRecord, 0, len(sales))

		for _, r := range sales {
			m := &models.MasterRecord{Sales: r}
			if k, ok := s.key(r); ok {
				if match, found := idx.Lookup(k); found {
					m.Index = match
				}
			}
			if m.Index != nil {
				result.Stats.Matched++
			} else {
				result.Stats.Unmatched++
			}
			result.Records = append(result.Records, m)
		}
		return
	}

	result.Outcome = models.OutcomeUnmerged
	result.Records = wrap(sales, func(r *models.Record) *models.MasterRecord {
		return &models.MasterRecord{Sales: r}
	})
	result.Stats.Unmatched = len(sales)
	e.logger.Warn("All join strategies failed, returning sales rows un-joined")
}

func wrap(records []*models.Record, fn func(*models.Record) *models.MasterRecord) []*models.MasterRecord {
	out := make([]*models.MasterRecord, 0, len(records))
	for _, r := range records {
		if r != nil {
			out = append(out, fn(r))
		}
	}
	return out
}

// annotate derives service minutes and per-table daily occupancy
func annotate(result *MergeResult) {
	occupancy := make(map[string]map[string]struct{})
	tableKeys := make([]string, len(result.Records))

	for i, m := range result.Records {
		// only the index report carries both created and paid times
		if src := m.Index; src != nil && src.HasTimestamp() && !src.PaidAt.IsZero() {
			minutes := src.PaidAt.Sub(src.Timestamp).Minutes()
			m.ServiceMinutes = &minutes
			result.Stats.WithService++
		}

		table, ok := models.NormalizeTableName(m.TableID())
		day := m.Primary().Day
		if !ok || day.IsZero() {
			continue
		}
		key := fmt.Sprintf("%s|%s", table, day.Format("2006-01-02"))
		tableKeys[i] = key
		if occupancy[key] == nil {
			occupancy[key] = make(map[string]struct{})
		}
		occupancy[key][m.OrderID()] = struct{}{}
	}

	for i, m := range result.Records {
		if key := tableKeys[i]; key != "" {
			m.TableOccupancies = len(occupancy[key])
		}
	}
}
