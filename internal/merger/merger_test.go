package merger

import (
	"testing"
	"time"

	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/errors"
)

func day(d, h, m int) time.Time {
	return time.Date(2024, 1, d, h, m, 0, 0, time.UTC)
}

func salesRec(orderID string, ts time.Time) *models.Record {
	r := models.NewRecord(models.ReportSales)
	r.OrderID = orderID
	r.SetTimestamp(ts)
	return r
}

func indexRec(orderID, table string, created, paid time.Time) *models.Record {
	r := models.NewRecord(models.ReportIndex)
	r.OrderID = orderID
	r.TableID = table
	r.SetTimestamp(created)
	r.PaidAt = paid
	return r
}

func TestMerge_BothAbsent(t *testing.T) {
	_, err := NewEngine().Merge(nil, nil)
	analyticsErr, ok := errors.AsAnalyticsError(err)
	if !ok || analyticsErr.Code != errors.CodeNoInput {
		t.Fatalf("expected no input error, got %v", err)
	}
	if analyticsErr.Category != errors.CategoryConfiguration {
		t.Errorf("Category = %s", analyticsErr.Category)
	}
}

func TestMerge_OneSideAbsent(t *testing.T) {
	sales := []*models.Record{salesRec("1", day(15, 12, 0)), salesRec("2", day(15, 13, 0))}
	index := []*models.Record{indexRec("1", "Sala S1", day(15, 12, 0), day(15, 12, 30))}

	tests := []struct {
		name    string
		sales   []*models.Record
		index   []*models.Record
		outcome models.MergeOutcome
		records int
	}{
		{"sales only", sales, nil, models.OutcomeSalesOnly, 2},
		{"index only", nil, index, models.OutcomeIndexOnly, 1},
		{"empty sales still present", []*models.Record{}, index, models.OutcomeJoinedOnFull, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := NewEngine().Merge(tt.sales, tt.index)
			if err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			if result.Outcome != tt.outcome {
				t.Errorf("Outcome = %s, want %s", result.Outcome, tt.outcome)
			}
			if len(result.Records) != tt.records {
				t.Errorf("expected %d records, got %d", tt.records, len(result.Records))
			}
		})
	}

	result, _ := NewEngine().Merge(nil, index)
	m := result.Records[0]
	if m.Sales != nil || m.Index != index[0] {
		t.Error("index-only rows must wrap the index record unmodified")
	}
	if m.ServiceMinutes == nil || *m.ServiceMinutes != 30 {
		t.Errorf("ServiceMinutes = %v, want 30", m.ServiceMinutes)
	}
}

func TestMerge_FullJoin(t *testing.T) {
	sales := []*models.Record{
		salesRec("1", day(15, 12, 0)),
		salesRec("1", day(15, 12, 0)), // second line of the same order
		salesRec("2", day(15, 13, 0)),
		salesRec("1", day(16, 9, 0)), // order numbers restart each day
	}
	index := []*models.Record{
		indexRec("1", "Sala S1", day(15, 11, 55), day(15, 12, 40)),
		indexRec("2", "Sala S1", day(15, 12, 58), day(15, 13, 10)),
		indexRec("1", "Balcón B2", day(16, 8, 50), time.Time{}),
	}

	result, err := NewEngine().Merge(sales, index)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if result.Outcome != models.OutcomeJoinedOnFull {
		t.Fatalf("Outcome = %s, want JOINED_ON_FULL", result.Outcome)
	}
	if len(result.Records) != len(sales) {
		t.Fatalf("left join must keep every sales row, got %d", len(result.Records))
	}
	if result.Records[3].Index != index[2] {
		t.Error("day 16 order 1 should join the day 16 index row")
	}
	if result.Stats.Matched != 4 || result.Stats.Unmatched != 0 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}

	first := result.Records[0]
	if first.ServiceMinutes == nil || *first.ServiceMinutes != 45 {
		t.Errorf("ServiceMinutes = %v, want 45", first.ServiceMinutes)
	}
	if result.Records[3].ServiceMinutes != nil {
		t.Error("missing paid time must leave service minutes null")
	}
	// orders 1 and 2 were both at S1 on the 15th
	if first.TableOccupancies != 2 || result.Records[2].TableOccupancies != 2 {
		t.Errorf("TableOccupancies = %d, %d; want 2", first.TableOccupancies, result.Records[2].TableOccupancies)
	}
	if result.Records[3].TableOccupancies != 1 {
		t.Errorf("TableOccupancies = %d, want 1", result.Records[3].TableOccupancies)
	}
	if len(result.Attempts) != 1 || !result.Attempts[0].Success {
		t.Errorf("unexpected attempts %+v", result.Attempts)
	}
}

func TestMerge_DowngradesToIDOnly(t *testing.T) {
	sales := []*models.Record{salesRec("1", day(15, 12, 0)), salesRec("3", day(15, 14, 0))}
	// index without creation times cannot be keyed by day
	index := []*models.Record{
		indexRec("1", "S2", time.Time{}, time.Time{}),
		indexRec("2", "S3", time.Time{}, time.Time{}),
	}

	result, err := NewEngine().Merge(sales, index)
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if result.Outcome != models.OutcomeJoinedOnIDOnly {
		t.Fatalf("Outcome = %s, want JOINED_ON_ID_ONLY", result.Outcome)
	}
	if len(result.Attempts) != 2 || result.Attempts[0].Success || !result.Attempts[1].Success {
		t.Errorf("unexpected attempts %+v", result.Attempts)
	}
	if result.Records[0].Index != index[0] || result.Records[1].Index != nil {
		t.Error("unexpected join result")
	}
	if result.Stats.Matched != 1 || result.Stats.Unmatched != 1 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
}

func TestMerge_Unmerged(t *testing.T) {
	sales := []*models.Record{salesRec("1", day(15, 12, 0))}
	// the same order id twice on the same day breaks both keys
	index := []*models.Record{
		indexRec("1", "S1", day(15, 11, 0), day(15, 11, 30)),
		indexRec("1", "S2", day(15, 12, 0), day(15, 12, 30)),
	}

	result, err := NewEngine().Merge(sales, index)
	if err != nil {
		t.Fatalf("Merge() must not fail once a report exists: %v", err)
	}
	if result.Outcome != models.OutcomeUnmerged {
		t.Fatalf("Outcome = %s, want UNMERGED", result.Outcome)
	}
	if len(result.Records) != 1 || result.Records[0].Index != nil || result.Records[0].Sales != sales[0] {
		t.Error("unmerged result must return the sales rows un-joined")
	}
	if len(result.Attempts) != 2 {
		t.Errorf("expected two failed attempts, got %+v", result.Attempts)
	}
	for _, a := range result.Attempts {
		if a.Success || a.Error == "" {
			t.Errorf("attempt %s should record its failure", a.Strategy)
		}
	}
}

func TestBuildIndex(t *testing.T) {
	records := []*models.Record{
		indexRec("1", "", day(15, 10, 0), time.Time{}),
		indexRec("", "", day(15, 10, 0), time.Time{}),
	}
	idx, err := buildIndex(records, fullKey, "order_id+day")
	if err != nil {
		t.Fatalf("buildIndex() error = %v", err)
	}
	if idx.Len() != 1 || idx.skipped != 1 {
		t.Errorf("Len() = %d skipped = %d", idx.Len(), idx.skipped)
	}
	if _, ok := idx.Lookup("1|2024-01-15"); !ok {
		t.Error("expected key 1|2024-01-15")
	}

	_, err = buildIndex(append(records, indexRec("1", "", day(15, 18, 0), time.Time{})), fullKey, "order_id+day")
	analyticsErr, ok := errors.AsAnalyticsError(err)
	if !ok || analyticsErr.Code != errors.CodeDuplicateKeys {
		t.Errorf("expected duplicate key error, got %v", err)
	}
}
