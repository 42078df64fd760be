package orderline

import (
	"reflect"
	"testing"

	"github.com/shopspring/decimal"

	"golang-pos-analytics/internal/models"
)

func TestParse(t *testing.T) {
	p := NewParser()

	tests := []struct {
		name string
		text string
		want []models.LineItem
	}{
		{
			name: "two items with variant",
			text: "2x Café Americano (grande) 1x pan",
			want: []models.LineItem{
				models.NewLineItem("", 2, "Café Americano", "grande"),
				models.NewLineItem("", 1, "Pan", models.NoModification),
			},
		},
		{
			name: "colon and dot variants",
			text: "1x Sandwich: pollo 3× té. verde",
			want: []models.LineItem{
				models.NewLineItem("", 1, "Sandwich", "pollo"),
				models.NewLineItem("", 3, "Té", "verde"),
			},
		},
		{
			name: "newlines and spaced quantity",
			text: "1 x Jugo de naranja\n2x Empanada (carne)",
			want: []models.LineItem{
				models.NewLineItem("", 1, "Jugo De Naranja", models.NoModification),
				models.NewLineItem("", 2, "Empanada", "carne"),
			},
		},
		{
			name: "token glued to a word stays in the name",
			text: "1x Pack2x1 promo",
			want: []models.LineItem{
				models.NewLineItem("", 1, "Pack2X1 Promo", models.NoModification),
			},
		},
		{
			name: "zero quantity skipped",
			text: "0x Agua 2x Pan",
			want: []models.LineItem{
				models.NewLineItem("", 2, "Pan", models.NoModification),
			},
		},
		{
			name: "no items",
			text: "Consumo varios",
			want: nil,
		},
		{
			name: "empty",
			text: "",
			want: nil,
		},
		{
			name: "trailing token without name",
			text: "2x Pan 3x",
			want: []models.LineItem{
				models.NewLineItem("", 2, "Pan", models.NoModification),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Parse(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) =\n  %+v\nwant\n  %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestSplitVariant(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		variant string
	}{
		{"Cappuccino (Leche almendra)", "Cappuccino", "Leche almendra"},
		{"cappuccino", "Cappuccino", models.NoModification},
		{"Pan.", "Pan.", models.NoModification},
		{"(sin nombre)", "(Sin Nombre)", models.NoModification},
		{"Combo c&c: doble", "Combo C&C", "doble"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			base, variant := SplitVariant(tt.name)
			if base != tt.base || variant != tt.variant {
				t.Errorf("SplitVariant(%q) = %q, %q; want %q, %q", tt.name, base, variant, tt.base, tt.variant)
			}
		})
	}
}

func TestNewLineItemFullName(t *testing.T) {
	if got := models.NewLineItem("1", 1, "Café", "grande").FullName; got != "Café (grande)" {
		t.Errorf("FullName = %q", got)
	}
	if got := models.NewLineItem("1", 1, "Café", "").FullName; got != "Café" {
		t.Errorf("FullName = %q", got)
	}
}

func sale(orderID, saleID, detail string, flags models.Flags) *models.Record {
	r := models.NewRecord(models.ReportSales)
	r.OrderID = orderID
	r.SaleID = saleID
	r.DetailText = detail
	return r.WithFlags(flags)
}

func TestExplodeAndBaskets(t *testing.T) {
	valid := models.Flags{IsValid: true, IsRealSale: true}
	records := []*models.Record{
		sale("10", "S2", "2x Café (grande) 1x Pan", valid),
		sale("10", "S2", "1x café", valid),
		sale("11", "S1", "1x Té", valid),
		sale("12", "S3", "1x Cuota de membresía por Oficina C&C (x)", models.Flags{IsValid: true, IsRentalExempt: true}),
		sale("13", "S4", "1x Agua", models.Flags{}),
	}

	items := Explode(records)
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d: %+v", len(items), items)
	}
	if items[0].OrderID != "S2" {
		t.Errorf("items should carry the sale key, got %q", items[0].OrderID)
	}

	byRecord := NewExtractor(nil).ExplodeByRecord(records)
	if len(byRecord) != 3 || byRecord[0].TotalQuantity() != 3 {
		t.Errorf("unexpected per-record explosion: %+v", byRecord)
	}

	want := [][]string{{"té"}, {"café", "pan"}}
	if got := Baskets(records); !reflect.DeepEqual(got, want) {
		t.Errorf("Baskets() = %v, want %v", got, want)
	}
}

func TestExplodeSkipsIndexRecords(t *testing.T) {
	r := models.NewRecord(models.ReportIndex)
	r.DetailText = "1x Pan"
	r = r.WithFlags(models.Flags{IsValid: true})
	if items := Explode([]*models.Record{r}); len(items) != 0 {
		t.Errorf("index records should not be exploded, got %+v", items)
	}
}

func TestExplodeWhereAndAllocate(t *testing.T) {
	voided := sale("20", "", "3x Café 1x Pan", models.Flags{})
	voided.AmountTotal = decimal.NewFromInt(80)

	e := NewExtractor(nil)
	if got := e.ExplodeByRecord([]*models.Record{voided}); len(got) != 0 {
		t.Fatalf("invalid records are not eligible by default, got %+v", got)
	}

	got := e.ExplodeWhere([]*models.Record{voided, nil}, func(*models.Record) bool { return true })
	if len(got) != 1 || got[0].Items[0].OrderID != "20" {
		t.Fatalf("unexpected explosion: %+v", got)
	}

	amounts := got[0].Allocate()
	if len(amounts) != 2 || !amounts[0].Equal(decimal.NewFromInt(60)) || !amounts[1].Equal(decimal.NewFromInt(20)) {
		t.Errorf("Allocate() = %v, want [60 20]", amounts)
	}
}
