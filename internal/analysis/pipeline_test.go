package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"golang-pos-analytics/internal/metrics"
	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/pkg/errors"
)

const salesCSV = `Número,Id,Fecha,Hora,Monto total,Descuento,Estado,Validez,Tipo de orden,Métodos de pago,Detalle,Mesero,Cliente
101,1,15/01/2024,13:45,30,0,Pagado,Válido,Mesa,Efectivo,2x Café 1x Pan,Ana,Luis
102,2,15/01/2024,14:10,20,2,Pagado,Válido,Mesa,Yape,1x Café 1x Pan,Ana,Marta
103,3,16/01/2024,09:30,10,0,Pagado,Válido,Delivery,Efectivo,1x Té,Rosa,Luis
104,4,16/01/2024,10:00,15,0,Pendiente,Válido,Mesa,,1x Café,Rosa,Marta
`

const indexCSV = `Numero,Tipo,Mesa,Estado,Monto total,Creado el,Pagado el,Anulado
101,Mesa,S1,Pagado,30,15/01/2024 13:40,15/01/2024 14:05,No
102,Mesa,S2,Pagado,20,15/01/2024 14:05,15/01/2024 14:30,No
103,Delivery,,Pagado,10,16/01/2024 09:25,16/01/2024 09:50,No
104,Mesa,S1,Pendiente,15,16/01/2024 09:55,,No
`

func writeReport(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRun_BothReports(t *testing.T) {
	config := DefaultConfig()
	config.SalesFile = writeReport(t, "ventas.csv", salesCSV)
	config.IndexFile = writeReport(t, "indice.csv", indexCSV)
	registry := metrics.NewRegistry()

	pipeline, err := NewPipeline(config, registry)
	require.NoError(t, err)

	var seen []string
	pipeline.AddProgressCallback(func(p *Progress) {
		seen = append(seen, p.CurrentStep)
	})

	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, stages, seen)
	assert.Equal(t, 100.0, pipeline.GetProgress().PercentComplete)

	require.NotNil(t, result.Sales)
	require.NotNil(t, result.Index)
	assert.Len(t, result.Sales.Records, 4)
	assert.Len(t, result.Index.Records, 4)

	require.NotNil(t, result.Merge)
	assert.Equal(t, models.OutcomeJoinedOnFull, result.Merge.Outcome)
	assert.Equal(t, 4, result.Merge.Stats.Matched)

	require.NotNil(t, result.KPIs)
	assert.Equal(t, "60.00", result.KPIs.Financial.TotalRevenue.StringFixed(2))
	require.NotNil(t, result.KPIs.ServiceSpeed)

	require.NotNil(t, result.Basket)
	// 104 is still pending, so only three paid orders form baskets
	assert.Equal(t, 3, result.Basket.Transactions)
	assert.NotEmpty(t, result.Basket.Rules)
	assert.NotEmpty(t, result.Portfolio)
	require.NotNil(t, result.Retention)
	assert.Equal(t, 2, result.Retention.Customers)
	assert.Empty(t, result.Warnings)

	assert.Equal(t, 1.0, testutil.ToFloat64(registry.Runs))
	assert.Equal(t, 4.0, testutil.ToFloat64(registry.RecordsNormalized.WithLabelValues("SALES")))
	assert.Equal(t, 1.0, testutil.ToFloat64(registry.MergeOutcome.WithLabelValues("JOINED_ON_FULL")))
	assert.Equal(t, float64(len(result.Basket.Rules)), testutil.ToFloat64(registry.RulesMined))

	summary := result.Summary()
	assert.Equal(t, "JOINED_ON_FULL", summary.Outcome)
	assert.Equal(t, 4, summary.SalesRows)
}

func TestRun_Tables(t *testing.T) {
	config := DefaultConfig()
	config.SalesFile = writeReport(t, "ventas.csv", salesCSV)
	config.IndexFile = writeReport(t, "indice.csv", indexCSV)

	pipeline, err := NewPipeline(config, nil)
	require.NoError(t, err)
	result, err := pipeline.Run(context.Background())
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, table := range result.Tables() {
		assert.NotZero(t, table.Len(), "table %s should not be empty", table.Name)
		names[table.Name] = true
	}
	for _, want := range []string{"run", "normalization", "merge_attempts", "kpis", "association_rules", "bcg_matrix", "recurrence", "cohort_retention"} {
		assert.True(t, names[want], "missing table %s", want)
	}
}

func TestRun_SingleReport(t *testing.T) {
	t.Run("sales only", func(t *testing.T) {
		config := DefaultConfig()
		config.SalesFile = writeReport(t, "ventas.csv", salesCSV)

		pipeline, err := NewPipeline(config, nil)
		require.NoError(t, err)
		result, err := pipeline.Run(context.Background())
		require.NoError(t, err)

		assert.Nil(t, result.Index)
		assert.Equal(t, models.OutcomeSalesOnly, result.Merge.Outcome)
		assert.NotNil(t, result.Basket)
		assert.Empty(t, result.Warnings, "a missing index is not a degraded merge")
	})

	t.Run("index only", func(t *testing.T) {
		config := DefaultConfig()
		config.IndexFile = writeReport(t, "indice.csv", indexCSV)

		pipeline, err := NewPipeline(config, nil)
		require.NoError(t, err)
		result, err := pipeline.Run(context.Background())
		require.NoError(t, err)

		assert.Equal(t, models.OutcomeIndexOnly, result.Merge.Outcome)
		assert.Nil(t, result.Basket)
		assert.Nil(t, result.Portfolio)
		assert.Contains(t, result.Warnings, "basket analysis needs the sales report")
		assert.Contains(t, result.Warnings, "portfolio analysis needs the sales report")
	})
}

func TestRun_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		config := DefaultConfig()
		config.SalesFile = filepath.Join(t.TempDir(), "nope.csv")
		registry := metrics.NewRegistry()

		pipeline, err := NewPipeline(config, registry)
		require.NoError(t, err)
		_, err = pipeline.Run(context.Background())
		require.Error(t, err)

		ae, ok := errors.AsAnalyticsError(err)
		require.True(t, ok)
		assert.Equal(t, errors.CategoryFile, ae.Category)
		assert.Equal(t, errors.CodeFileNotFound, ae.Code)
		assert.Equal(t, 1.0, testutil.ToFloat64(registry.RunFailures))
	})

	t.Run("cancelled", func(t *testing.T) {
		config := DefaultConfig()
		config.SalesFile = writeReport(t, "ventas.csv", salesCSV)
		pipeline, err := NewPipeline(config, nil)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = pipeline.Run(ctx)
		assert.Error(t, err)
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		code   errors.ErrorCode
	}{
		{"no input", func(c *Config) {}, errors.CodeNoInput},
		{"support out of range", func(c *Config) {
			c.SalesFile = "ventas.csv"
			c.Basket.MinSupport = 1.5
		}, errors.CodeInvalidConfig},
		{"zero pair count", func(c *Config) {
			c.SalesFile = "ventas.csv"
			c.PairMinCount = 0
		}, errors.CodeInvalidConfig},
		{"unknown zero prior policy", func(c *Config) {
			c.IndexFile = "indice.csv"
			c.Portfolio.ZeroPrior = "guess"
		}, errors.CodeInvalidConfig},
		{"same file twice", func(c *Config) {
			c.SalesFile = "ventas.csv"
			c.IndexFile = "ventas.csv"
		}, errors.CodeInvalidConfig},
		{"valid", func(c *Config) { c.SalesFile = "ventas.csv" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if tt.code == "" {
				assert.NoError(t, err)
				return
			}
			ae, ok := errors.AsAnalyticsError(err)
			require.True(t, ok, "expected an analytics error, got %v", err)
			assert.Equal(t, errors.CategoryConfiguration, ae.Category)
			assert.Equal(t, tt.code, ae.Code)
		})
	}

	_, err := NewPipeline(nil, nil)
	assert.Error(t, err)
}
