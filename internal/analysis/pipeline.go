// Package analysis runs the full POS analytics pipeline.
//
// A run loads the Sales and Index exports concurrently, normalizes and
// classifies them, builds the master table and then computes every analysis
// over the classified records:
//   - financial and operational KPIs
//   - association rules and product pairs
//   - the growth/revenue portfolio matrix
//   - customer recurrence and cohort retention
//
// Analyses that cannot be computed for the given input are left nil and
// noted as warnings; only unreadable input or an invalid configuration fails
// the run.
//
// Example usage:
//
//	config := analysis.DefaultConfig()
//	config.SalesFile = "ventas.csv"
//	pipeline, err := analysis.NewPipeline(config, metrics.NewRegistry())
//	pipeline.AddProgressCallback(func(p *analysis.Progress) {
//		fmt.Printf("%.0f%% %s\n", p.PercentComplete, p.CurrentStep)
//	})
//	result, err := pipeline.Run(ctx)
package analysis

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"golang-pos-analytics/internal/basket"
	"golang-pos-analytics/internal/classifier"
	"golang-pos-analytics/internal/kpi"
	"golang-pos-analytics/internal/merger"
	"golang-pos-analytics/internal/metrics"
	"golang-pos-analytics/internal/models"
	"golang-pos-analytics/internal/orderline"
	"golang-pos-analytics/internal/parsers"
	"golang-pos-analytics/internal/portfolio"
	"golang-pos-analytics/internal/retention"
	"golang-pos-analytics/pkg/errors"
	"golang-pos-analytics/pkg/logger"
)

// Pipeline stages, in execution order
const (
	StageLoad      = "load"
	StageMerge     = "merge"
	StageKPIs      = "kpis"
	StageBasket    = "basket"
	StagePortfolio = "portfolio"
	StageRetention = "retention"
)

var stages = []string{StageLoad, StageMerge, StageKPIs, StageBasket, StagePortfolio, StageRetention}

var mergeOutcomes = []string{
	models.OutcomeJoinedOnFull.String(),
	models.OutcomeJoinedOnIDOnly.String(),
	models.OutcomeUnmerged.String(),
	models.OutcomeSalesOnly.String(),
	models.OutcomeIndexOnly.String(),
}

// Progress tracks the progress of a run
type Progress struct {
	RunID           string        `json:"run_id"`
	TotalSteps      int           `json:"total_steps"`
	CompletedSteps  int           `json:"completed_steps"`
	CurrentStep     string        `json:"current_step"`
	PercentComplete float64       `json:"percent_complete"`
	StartTime       time.Time     `json:"start_time"`
	ElapsedTime     time.Duration `json:"elapsed_time"`
	Warnings        []string      `json:"warnings,omitempty"`
}

// ProgressCallback is called after every stage
type ProgressCallback func(*Progress)

// Pipeline runs one analysis over a pair of reports
type Pipeline struct {
	config    *Config
	metrics   *metrics.Registry
	extractor *orderline.Extractor
	logger    logger.Logger

	progressWriter    io.Writer
	progressCallbacks []ProgressCallback
	progress          *Progress
	progressMutex     sync.RWMutex
}

// NewPipeline validates the configuration and creates a pipeline. A nil
// registry disables metrics.
func NewPipeline(config *Config, registry *metrics.Registry) (*Pipeline, error) {
	if config == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "analysis", nil, nil)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	log := logger.GetGlobalLogger().WithComponent("pipeline")
	log.WithFields(logger.Fields{
		"sales_file": config.SalesFile,
		"index_file": config.IndexFile,
	}).Debug("Created analysis pipeline")

	return &Pipeline{
		config:    config,
		metrics:   registry,
		extractor: orderline.NewExtractor(nil),
		logger:    log,
		progress:  &Progress{TotalSteps: len(stages)},
	}, nil
}

// AddProgressCallback adds a progress callback function
func (p *Pipeline) AddProgressCallback(callback ProgressCallback) {
	p.progressCallbacks = append(p.progressCallbacks, callback)
}

// SetProgressWriter renders a stage progress bar to w
func (p *Pipeline) SetProgressWriter(w io.Writer) {
	p.progressWriter = w
}

// GetProgress returns a snapshot of the current progress
func (p *Pipeline) GetProgress() Progress {
	p.progressMutex.RLock()
	defer p.progressMutex.RUnlock()

	snapshot := *p.progress
	snapshot.Warnings = append([]string(nil), p.progress.Warnings...)
	return snapshot
}

// Run executes every stage. The returned result is complete even when some
// analyses were not computable; see Result.Warnings.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	result := &Result{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
	}
	log := p.logger.WithField("run_id", result.RunID)
	p.initializeProgress(result.RunID, result.StartedAt)

	tracker := logger.NewStageProgress(logger.ProgressConfig{
		Operation: "analysis",
		Total:     len(stages),
		Writer:    p.progressWriter,
		Logger:    log,
	})

	if p.metrics != nil {
		p.metrics.Runs.Inc()
	}
	log.Info("Starting analysis run")

	err := p.run(ctx, result, tracker, log)
	result.Duration = time.Since(result.StartedAt)
	result.Warnings = p.GetProgress().Warnings

	if err != nil {
		if p.metrics != nil {
			p.metrics.RunFailures.Inc()
		}
		log.WithError(err).Error("Analysis run failed")
		return nil, err
	}

	tracker.Complete()
	log.WithFields(logger.Fields{
		"duration": result.Duration.String(),
		"warnings": len(result.Warnings),
	}).Info("Analysis run completed")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, result *Result, tracker *logger.StageProgress, log logger.Logger) error {
	step := func(stage string, fn func() error) error {
		if err := ctx.Err(); err != nil {
			return errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "analysis cancelled").
				WithContext("stage", stage)
		}
		tracker.Begin(stage)
		start := time.Now()
		if err := fn(); err != nil {
			return err
		}
		elapsed := time.Since(start)
		if p.metrics != nil {
			p.metrics.ObserveStage(stage, elapsed)
		}
		tracker.Done(stage)
		p.completeStep(stage)
		return nil
	}

	// Step 1: load, normalize and classify both reports
	if err := step(StageLoad, func() error {
		sales, index, err := p.load(ctx)
		if err != nil {
			return err
		}
		result.Sales, result.Index = sales, index
		return nil
	}); err != nil {
		return err
	}

	salesRecords := result.Sales.records()
	indexRecords := result.Index.records()
	base := salesRecords
	if base == nil {
		base = indexRecords
	}

	// Step 2: master table
	if err := step(StageMerge, func() error {
		merged, err := merger.NewEngine().Merge(salesRecords, indexRecords)
		if err != nil {
			return err
		}
		result.Merge = merged
		if merged.Outcome.Degraded() && salesRecords != nil && indexRecords != nil {
			p.addWarning("merge degraded to " + merged.Outcome.String())
		}
		if p.metrics != nil {
			p.metrics.SetMergeOutcome(merged.Outcome.String(), mergeOutcomes)
			p.metrics.MergeMatched.Set(float64(merged.Stats.Matched))
		}
		return nil
	}); err != nil {
		return err
	}

	// Step 3: KPIs
	if err := step(StageKPIs, func() error {
		result.KPIs = kpi.NewAggregator(p.config.KPI, p.extractor).
			Compute(salesRecords, indexRecords, result.Merge.Records)
		return nil
	}); err != nil {
		return err
	}

	// Step 4: market basket
	if err := step(StageBasket, func() error {
		if salesRecords == nil {
			p.addWarning("basket analysis needs the sales report")
			return nil
		}
		baskets := p.extractor.Baskets(salesRecords)
		result.Basket = basket.NewMiner(p.config.Basket).Mine(baskets)
		result.Pairs = basket.Pairs(baskets, p.config.PairMinCount, p.config.PairTopN)
		if result.Basket == nil {
			p.addWarning("no baskets to mine")
			return nil
		}
		if p.metrics != nil {
			p.metrics.RulesMined.Set(float64(len(result.Basket.Rules)))
		}
		return nil
	}); err != nil {
		return err
	}

	// Step 5: portfolio matrix
	if err := step(StagePortfolio, func() error {
		if salesRecords == nil {
			p.addWarning("portfolio analysis needs the sales report")
			return nil
		}
		events := portfolio.BuildEvents(salesRecords, p.extractor)
		result.Portfolio = portfolio.NewClassifier(p.config.Portfolio).Classify(events)
		if result.Portfolio == nil {
			p.addWarning("no dated product revenue for the portfolio matrix")
			return nil
		}
		if p.metrics != nil {
			p.metrics.ProductsClassified.Set(float64(len(result.Portfolio)))
		}
		return nil
	}); err != nil {
		return err
	}

	// Step 6: recurrence
	return step(StageRetention, func() error {
		result.Retention = retention.NewAnalyzer(p.config.Retention).Analyze(base)
		if result.Retention == nil {
			p.addWarning("no customer-identified records for recurrence analysis")
		}
		log.Debug("Computed recurrence")
		return nil
	})
}

// load reads both reports concurrently. A report without a path stays nil.
func (p *Pipeline) load(ctx context.Context) (*LoadedReport, *LoadedReport, error) {
	var sales, index *LoadedReport
	g, gctx := errgroup.WithContext(ctx)

	if p.config.SalesFile != "" {
		g.Go(func() error {
			var err error
			sales, err = p.loadReport(gctx, p.config.SalesFile, parsers.SalesSchema())
			return err
		})
	}
	if p.config.IndexFile != "" {
		g.Go(func() error {
			var err error
			index, err = p.loadReport(gctx, p.config.IndexFile, parsers.IndexSchema())
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sales, index, nil
}

// loadReport runs read, normalize and classify for one report
func (p *Pipeline) loadReport(ctx context.Context, path string, schema *parsers.SchemaMapping) (*LoadedReport, error) {
	report := schema.Report.String()
	ol := logger.NewOperationLogger("load_report", p.logger).
		WithField("report", report).
		WithField("file_path", path)

	table, err := parsers.NewTableReader(p.config.Read).ReadFile(ctx, path)
	if err != nil {
		ol.Error(err, "Failed to read report")
		return nil, err
	}

	normalized, err := parsers.NewNormalizer(schema, p.config.Normalize).Normalize(table)
	if err != nil {
		ol.Error(err, "Failed to normalize report")
		return nil, err
	}

	records, stats := classifier.New(p.config.Rules).Classify(normalized.Records)

	if p.metrics != nil {
		p.metrics.RecordsNormalized.WithLabelValues(report).Add(float64(normalized.Stats.RecordsNormalized))
		p.metrics.RowsSkipped.WithLabelValues(report).Add(float64(normalized.Stats.EmptyRowsSkipped))
		for column, n := range normalized.Diagnostics.CountByColumn() {
			p.metrics.Coercions.WithLabelValues(report, column).Add(float64(n))
		}
	}
	if len(normalized.Stats.MissingColumns) > 0 {
		p.addWarning(report + " report is missing columns, dependent analyses are partial")
	}

	ol.WithField("records", len(records)).
		WithField("valid", stats.Valid).
		Success("Loaded report")

	return &LoadedReport{
		Path:           path,
		Report:         schema.Report,
		Records:        records,
		Normalization:  normalized.Stats,
		Classification: stats,
		Diagnostics:    normalized.Diagnostics,
	}, nil
}

func (p *Pipeline) initializeProgress(runID string, start time.Time) {
	p.progressMutex.Lock()
	defer p.progressMutex.Unlock()

	p.progress = &Progress{
		RunID:      runID,
		TotalSteps: len(stages),
		StartTime:  start,
	}
}

func (p *Pipeline) completeStep(stage string) {
	p.progressMutex.Lock()
	p.progress.CompletedSteps++
	p.progress.CurrentStep = stage
	p.progress.ElapsedTime = time.Since(p.progress.StartTime)
	if p.progress.TotalSteps > 0 {
		p.progress.PercentComplete = float64(p.progress.CompletedSteps) / float64(p.progress.TotalSteps) * 100
	}
	snapshot := *p.progress
	p.progressMutex.Unlock()

	for _, callback := range p.progressCallbacks {
		callback(&snapshot)
	}
}

func (p *Pipeline) addWarning(warning string) {
	p.progressMutex.Lock()
	defer p.progressMutex.Unlock()

	p.progress.Warnings = append(p.progress.Warnings, warning)
	p.logger.WithField("run_id", p.progress.RunID).Warn(warning)
}
