package sampledata

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"golang-pos-analytics/internal/analysis"
	"golang-pos-analytics/internal/models"
)

var start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestGenerate(t *testing.T) {
	g := NewGenerator(120, start, 30, 42)
	orders, err := g.Generate()
	require.NoError(t, err)
	require.Len(t, orders, 120)

	again, err := NewGenerator(120, start, 30, 42).Generate()
	require.NoError(t, err)
	assert.Equal(t, orders, again, "same seed gives the same orders")

	for _, o := range orders {
		assert.NotEmpty(t, o.Lines)
		assert.True(t, o.Total().IsPositive(), "order %d total", o.Number)
		assert.False(t, o.Pending && o.Voided)
		assert.Equal(t, o.Pending, o.PaidAt.IsZero())
		assert.False(t, o.CreatedAt.Before(start))
		assert.True(t, o.CreatedAt.Before(start.AddDate(0, 0, 30)))
	}
}

func TestGenerate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Generator)
	}{
		{"no orders", func(g *Generator) { g.Orders = 0 }},
		{"no days", func(g *Generator) { g.Days = 0 }},
		{"empty menu", func(g *Generator) { g.Menu = nil }},
		{"ratio above one", func(g *Generator) { g.VoidRatio = 1.5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGenerator(10, start, 5, 1)
			tt.modify(g)
			_, err := g.Generate()
			assert.Error(t, err)
		})
	}
}

func TestRows(t *testing.T) {
	g := NewGenerator(50, start, 10, 7)
	g.IndexMissRatio = 0.5
	orders, err := g.Generate()
	require.NoError(t, err)

	sales := SalesRows(orders)
	assert.Len(t, sales, 51)
	assert.Equal(t, SalesHeader, sales[0])

	present := 0
	for _, o := range orders {
		if o.InIndex {
			present++
		}
	}
	index := IndexRows(orders)
	assert.Len(t, index, present+1)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sales))
	parsed, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, sales, parsed)
}

func TestWriteXLSX(t *testing.T) {
	orders, err := NewGenerator(5, start, 1, 3).Generate()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, "Ventas", SalesRows(orders)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Ventas"}, f.GetSheetList())
	rows, err := f.GetRows("Ventas")
	require.NoError(t, err)
	assert.Len(t, rows, 6)
	assert.Equal(t, "Número", rows[0][0])
}

func TestGeneratedReportsAnalyze(t *testing.T) {
	orders, err := NewGenerator(300, start, 42, 11).Generate()
	require.NoError(t, err)

	dir := t.TempDir()
	write := func(name string, rows [][]string) string {
		var buf bytes.Buffer
		require.NoError(t, WriteCSV(&buf, rows))
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
		return path
	}

	config := analysis.DefaultConfig()
	config.SalesFile = write("ventas.csv", SalesRows(orders))
	config.IndexFile = write("indice.csv", IndexRows(orders))

	pipeline, err := analysis.NewPipeline(config, nil)
	require.NoError(t, err)
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, models.OutcomeJoinedOnFull, result.Merge.Outcome)
	assert.Equal(t, 300, result.Merge.Stats.Matched)
	assert.Len(t, result.Sales.Records, 300)
	require.NotNil(t, result.KPIs)
	assert.True(t, result.KPIs.Financial.TotalRevenue.IsPositive())
	require.NotNil(t, result.Basket)
	assert.NotEmpty(t, result.Portfolio)
	require.NotNil(t, result.Retention)
	assert.Equal(t, 8, result.Retention.Customers)
}
