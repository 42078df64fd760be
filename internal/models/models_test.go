package models

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestReportType_IsValid(t *testing.T) {
	tests := []struct {
		report ReportType
		valid  bool
	}{
		{ReportSales, true},
		{ReportIndex, true},
		{"VENTAS", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.report), func(t *testing.T) {
			if got := tt.report.IsValid(); got != tt.valid {
				t.Errorf("ReportType.IsValid() = %v, want %v", got, tt.valid)
			}
		})
	}
}

func TestParseMoney(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
		clean bool
	}{
		{"soles with thousands dot and decimal comma", "S/ 1.234,50", "1234.5", true},
		{"soles prefix with dot", "S/. 80,00", "80", true},
		{"bolivianos prefix", "Bs. 12", "12", true},
		{"dollar with thousands comma", "$1,234.56", "1234.56", true},
		{"plain decimal", "45.90", "45.9", true},
		{"decimal comma", "45,9", "45.9", true},
		{"thousands comma only", "1,234", "1234", true},
		{"dotted thousands", "1.234.567", "1234567", true},
		{"empty is zero", "", "0", true},
		{"nan is zero", "NaN", "0", true},
		{"garbage", "abc", "0", false},
		{"negative clamps to zero", "-15.00", "0", false},
		{"embedded minus", "12-3", "0", false},
		{"broken dotted groups", "1.23.4", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clean := ParseMoney(tt.input)
			want := decimal.RequireFromString(tt.want)
			if !got.Equal(want) {
				t.Errorf("ParseMoney(%q) = %s, want %s", tt.input, got, want)
			}
			if clean != tt.clean {
				t.Errorf("ParseMoney(%q) clean = %v, want %v", tt.input, clean, tt.clean)
			}
		})
	}
}

func TestParseDayFirst(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
		ok    bool
	}{
		{"25/12/2024 14:30", time.Date(2024, 12, 25, 14, 30, 0, 0, time.UTC), true},
		{"03/02/2024 09:05:10", time.Date(2024, 2, 3, 9, 5, 10, 0, time.UTC), true},
		{"3/2/2024", time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC), true},
		{"03-02-2024 18:00", time.Date(2024, 2, 3, 18, 0, 0, 0, time.UTC), true},
		{"2024-02-03 18:00:00", time.Date(2024, 2, 3, 18, 0, 0, 0, time.UTC), true},
		{"  25/12/2024   14:30 ", time.Date(2024, 12, 25, 14, 30, 0, 0, time.UTC), true},
		{"31/02/2024", time.Time{}, false},
		{"mañana", time.Time{}, false},
		{"", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseDayFirst(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseDayFirst(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseDayFirst(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseBoolFlag(t *testing.T) {
	for _, v := range []string{"Sí", "si", "TRUE", "yes", "1", " si "} {
		if !ParseBoolFlag(v) {
			t.Errorf("ParseBoolFlag(%q) = false, want true", v)
		}
	}
	for _, v := range []string{"No", "", "0", "false", "anulado"} {
		if ParseBoolFlag(v) {
			t.Errorf("ParseBoolFlag(%q) = true, want false", v)
		}
	}
}

func TestNormalizeIdentifier(t *testing.T) {
	tests := map[string]string{
		" 1024 ":  "1024",
		"1024.0":  "1024",
		"A-10.0":  "A-10.0",
		"ORD-001": "ORD-001",
	}
	for in, want := range tests {
		if got := NormalizeIdentifier(in); got != want {
			t.Errorf("NormalizeIdentifier(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestRecord_SetTimestamp(t *testing.T) {
	r := NewRecord(ReportSales)
	ts := time.Date(2024, 3, 4, 19, 45, 0, 0, time.UTC)
	r.SetTimestamp(ts)

	if !r.Day.Equal(time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Day = %v", r.Day)
	}
	if r.HourOfDay != 19 {
		t.Errorf("HourOfDay = %d, want 19", r.HourOfDay)
	}
	if r.WeekdayName != "Monday" {
		t.Errorf("WeekdayName = %s, want Monday", r.WeekdayName)
	}

	r.SetTimestamp(time.Time{})
	if r.HasTimestamp() || r.HourOfDay != -1 || r.WeekdayName != "" || !r.Day.IsZero() {
		t.Errorf("clearing the timestamp should clear derived fields: %+v", r)
	}
}

func TestRecord_WithFlagsDoesNotMutate(t *testing.T) {
	r := NewRecord(ReportSales)
	flagged := r.WithFlags(Flags{IsValid: true, IsRealSale: true})

	if r.Flags.IsValid {
		t.Error("original record should not be mutated")
	}
	if !flagged.Flags.IsRealSale {
		t.Error("copy should carry the flags")
	}
}

func TestRecord_Validate(t *testing.T) {
	r := NewRecord(ReportSales)
	r.AmountTotal = decimal.NewFromInt(10)
	if err := r.Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}

	bad := r.WithFlags(Flags{IsRealSale: true})
	if err := bad.Validate(); err == nil {
		t.Error("real sale without validity should fail validation")
	}

	neg := NewRecord(ReportIndex)
	neg.Discount = decimal.NewFromInt(-1)
	if err := neg.Validate(); err == nil {
		t.Error("negative discount should fail validation")
	}
}

func TestWeekStart(t *testing.T) {
	sunday := time.Date(2024, 3, 10, 22, 0, 0, 0, time.UTC)
	want := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	if got := WeekStart(sunday); !got.Equal(want) {
		t.Errorf("WeekStart(%v) = %v, want %v", sunday, got, want)
	}
	if got := WeekStart(want); !got.Equal(want) {
		t.Errorf("WeekStart(monday) = %v, want %v", got, want)
	}
}

func TestNewLineItem(t *testing.T) {
	withVariant := NewLineItem("1", 2, "Cappuccino", "Almond Milk")
	if withVariant.FullName != "Cappuccino (Almond Milk)" {
		t.Errorf("FullName = %q", withVariant.FullName)
	}
	plain := NewLineItem("1", 1, "Croissant", "")
	if plain.Variant != NoModification || plain.FullName != "Croissant" {
		t.Errorf("plain item = %+v", plain)
	}
	if plain.BasketKey() != "croissant" {
		t.Errorf("BasketKey() = %q", plain.BasketKey())
	}
}

func TestMasterRecord_MarshalJSONSuffixesIndexFields(t *testing.T) {
	sales := NewRecord(ReportSales)
	sales.OrderID = "100"
	sales.Status = StatusPaid
	index := NewRecord(ReportIndex)
	index.OrderID = "100"
	index.Status = "PENDIENTE"
	index.TableID = "Sala S1"

	m := &MasterRecord{Sales: sales, Index: index, TableOccupancies: 3}
	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out["status"] != StatusPaid {
		t.Errorf("status = %v, want sales status", out["status"])
	}
	if out["status_idx"] != "PENDIENTE" {
		t.Errorf("status_idx = %v, want index status", out["status_idx"])
	}
	if out["table_id"] != "Sala S1" {
		t.Errorf("table_id = %v, want index table", out["table_id"])
	}
	if m.TableID() != "Sala S1" {
		t.Errorf("TableID() = %q", m.TableID())
	}
}

func TestAssociationRule_MarshalJSONNaNLift(t *testing.T) {
	rule := AssociationRule{Antecedent: []string{"a"}, Consequent: []string{"b"}, Lift: math.NaN()}
	data, err := json.Marshal(rule)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"lift":null`) {
		t.Errorf("expected null lift, got %s", data)
	}
}

func TestQuadrantAndOutcomeStrings(t *testing.T) {
	if QuadrantCashCow.String() != "Cash Cow" || QuadrantStar.String() != "Star" {
		t.Error("unexpected quadrant names")
	}
	if OutcomeJoinedOnIDOnly.String() != "JOINED_ON_ID_ONLY" {
		t.Errorf("unexpected outcome name %s", OutcomeJoinedOnIDOnly)
	}
	if OutcomeJoinedOnFull.Degraded() || !OutcomeUnmerged.Degraded() {
		t.Error("Degraded() mismatch")
	}
}

func TestNormalizeTableName(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		ok   bool
	}{
		{"Sala S1", "S1", true},
		{"salón 4", "S4", true},
		{"S 6", "S6", true},
		{"Sala S7", "SALA", true},
		{"Balcón B2", "B2", true},
		{"b5", "B5", true},
		{"Cubículo C6", "C6", true},
		{"Barra P2", "P2", true},
		{"Barra P3", "", false},
		{"Sala principal", "SALA", true},
		{"Delivery Sala S1", "", false},
		{"YANGO 12", "", false},
		{"Juan Pérez", "", false},
		{"  ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := NormalizeTableName(tt.raw)
			if got != tt.want || ok != tt.ok {
				t.Errorf("NormalizeTableName(%q) = %q, %v; want %q, %v", tt.raw, got, ok, tt.want, tt.ok)
			}
		})
	}
}
