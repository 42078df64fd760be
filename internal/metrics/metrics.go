// Package metrics keeps the pipeline counters in a private prometheus
// registry that can be dumped in the text exposition format after a run.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "posanalytics"

// Registry holds the pipeline metrics
type Registry struct {
	reg *prometheus.Registry

	Runs               prometheus.Counter
	RunFailures        prometheus.Counter
	RecordsNormalized  *prometheus.CounterVec
	RowsSkipped        *prometheus.CounterVec
	Coercions          *prometheus.CounterVec
	MergeOutcome       *prometheus.GaugeVec
	MergeMatched       prometheus.Gauge
	RulesMined         prometheus.Gauge
	ProductsClassified prometheus.Gauge
	StageDuration      *prometheus.HistogramVec
}

// NewRegistry creates a registry with every pipeline metric registered
func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	runs := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "runs_total",
		Help: "Analysis runs started.",
	})
	failures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "run_failures_total",
		Help: "Analysis runs that ended with an error.",
	})
	normalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "records_normalized_total",
		Help: "Rows turned into canonical records, by report.",
	}, []string{"report"})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "rows_skipped_total",
		Help: "Empty rows skipped during normalization, by report.",
	}, []string{"report"})
	coercions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Name: "coercions_total",
		Help: "Cell values coerced to a default, by report and column.",
	}, []string{"report", "column"})
	outcome := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Name: "merge_outcome",
		Help: "Set to 1 for the outcome of the last merge.",
	}, []string{"outcome"})
	matched := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "merge_matched_rows",
		Help: "Sales rows joined to an index row in the last merge.",
	})
	rules := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "association_rules",
		Help: "Association rules kept in the last run.",
	})
	products := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "products_classified",
		Help: "Products placed on the growth matrix in the last run.",
	})
	stages := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Name: "stage_duration_seconds",
		Help:    "Duration of each pipeline stage.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	r.MustRegister(runs, failures, normalized, skipped, coercions, outcome, matched, rules, products, stages)
	return &Registry{
		reg:                r,
		Runs:               runs,
		RunFailures:        failures,
		RecordsNormalized:  normalized,
		RowsSkipped:        skipped,
		Coercions:          coercions,
		MergeOutcome:       outcome,
		MergeMatched:       matched,
		RulesMined:         rules,
		ProductsClassified: products,
		StageDuration:      stages,
	}
}

// ObserveStage records the duration of a pipeline stage
func (r *Registry) ObserveStage(stage string, d time.Duration) {
	r.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetMergeOutcome marks the given outcome and clears the others
func (r *Registry) SetMergeOutcome(outcome string, all []string) {
	for _, o := range all {
		r.MergeOutcome.WithLabelValues(o).Set(0)
	}
	r.MergeOutcome.WithLabelValues(outcome).Set(1)
}

// Gatherer exposes the registry for tests and custom exporters
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteToTextfile dumps every metric to path in the text exposition format
func (r *Registry) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.reg)
}
