package logger

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

// StageProgress tracks a fixed sequence of pipeline stages, logging each
// completed stage and optionally rendering a terminal progress bar.
type StageProgress struct {
	logger     Logger
	bar        *progressbar.ProgressBar
	operation  string
	total      int
	completed  int
	current    string
	startTime  time.Time
	stageStart time.Time
	durations  map[string]time.Duration
	mutex      sync.Mutex
}

// ProgressConfig configures stage tracking behavior
type ProgressConfig struct {
	Operation string    `json:"operation"`
	Total     int       `json:"total"`
	Writer    io.Writer `json:"-"` // nil disables the progress bar
	Logger    Logger    `json:"-"`
}

// NewStageProgress creates a new stage tracker
func NewStageProgress(config ProgressConfig) *StageProgress {
	p := &StageProgress{
		logger:    OrGlobal(config.Logger).WithComponent("progress"),
		operation: config.Operation,
		total:     config.Total,
		startTime: time.Now(),
		durations: make(map[string]time.Duration),
	}

	if config.Writer != nil && config.Total > 0 {
		p.bar = progressbar.NewOptions(config.Total,
			progressbar.OptionSetWriter(config.Writer),
			progressbar.OptionSetDescription(config.Operation),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}

	p.logger.WithFields(Fields{
		"operation": config.Operation,
		"stages":    config.Total,
	}).Debug("Starting operation")

	return p
}

// Begin marks the start of a stage
func (p *StageProgress) Begin(stage string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.current = stage
	p.stageStart = time.Now()
	if p.bar != nil {
		p.bar.Describe(fmt.Sprintf("%s: %s", p.operation, stage))
	}
}

// Done marks the current stage as completed
func (p *StageProgress) Done(stage string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	elapsed := time.Since(p.stageStart)
	if p.stageStart.IsZero() || p.current != stage {
		elapsed = 0
	}
	p.durations[stage] = elapsed
	p.completed++
	if p.bar != nil {
		_ = p.bar.Add(1)
	}

	p.logger.WithFields(Fields{
		"operation": p.operation,
		"stage":     stage,
		"completed": p.completed,
		"total":     p.total,
		"duration":  elapsed.String(),
	}).Debug("Stage completed")
}

// Complete finishes the tracker and logs final statistics
func (p *StageProgress) Complete() {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.bar != nil {
		_ = p.bar.Finish()
	}
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"completed": p.completed,
		"duration":  time.Since(p.startTime).String(),
	}).Info("Operation completed")
}

// Stats returns a snapshot of the tracker
func (p *StageProgress) Stats() ProgressStats {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	var percentage float64
	if p.total > 0 {
		percentage = float64(p.completed) / float64(p.total) * 100
	}

	durations := make(map[string]time.Duration, len(p.durations))
	for k, v := range p.durations {
		durations[k] = v
	}

	return ProgressStats{
		Operation:      p.operation,
		Total:          p.total,
		Completed:      p.completed,
		CurrentStage:   p.current,
		Percentage:     percentage,
		Elapsed:        time.Since(p.startTime),
		StageDurations: durations,
	}
}

// ProgressStats contains progress statistics
type ProgressStats struct {
	Operation      string                   `json:"operation"`
	Total          int                      `json:"total"`
	Completed      int                      `json:"completed"`
	CurrentStage   string                   `json:"current_stage"`
	Percentage     float64                  `json:"percentage"`
	Elapsed        time.Duration            `json:"elapsed"`
	StageDurations map[string]time.Duration `json:"stage_durations,omitempty"`
}

// String returns a human-readable representation of the progress
func (ps ProgressStats) String() string {
	return fmt.Sprintf("%s: %d/%d stages (%.1f%%), elapsed %v",
		ps.Operation, ps.Completed, ps.Total, ps.Percentage, ps.Elapsed)
}

// OperationLogger provides structured logging for operations with timing
type OperationLogger struct {
	logger    Logger
	operation string
	fields    Fields
	startTime time.Time
}

// NewOperationLogger creates a new operation logger
func NewOperationLogger(operation string, logger Logger) *OperationLogger {
	ol := &OperationLogger{
		logger:    OrGlobal(logger),
		operation: operation,
		fields:    make(Fields),
		startTime: time.Now(),
	}

	ol.logger.WithField("operation", operation).Debug("Starting operation")
	return ol
}

// WithField adds a field to the operation context
func (ol *OperationLogger) WithField(key string, value interface{}) *OperationLogger {
	ol.fields[key] = value
	return ol
}

func (ol *OperationLogger) snapshot(extra Fields) Fields {
	fields := Fields{"operation": ol.operation}
	for k, v := range ol.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	return fields
}

// Success completes the operation successfully
func (ol *OperationLogger) Success(message string) {
	ol.logger.WithFields(ol.snapshot(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "success",
	})).Info(message)
}

// Error completes the operation with an error
func (ol *OperationLogger) Error(err error, message string) {
	ol.logger.WithError(err).WithFields(ol.snapshot(Fields{
		"duration": time.Since(ol.startTime).String(),
		"status":   "error",
	})).Error(message)
}

// Warning logs a warning during the operation
func (ol *OperationLogger) Warning(message string) {
	ol.logger.WithFields(ol.snapshot(nil)).Warn(message)
}

// Elapsed returns the time since the operation started
func (ol *OperationLogger) Elapsed() time.Duration {
	return time.Since(ol.startTime)
}

// TimedOperation executes a function and logs timing information
func TimedOperation(operation string, logger Logger, fn func() error) error {
	ol := NewOperationLogger(operation, logger)

	err := fn()

	if err != nil {
		ol.Error(err, "Operation failed")
	} else {
		ol.Success("Operation completed")
	}

	return err
}
