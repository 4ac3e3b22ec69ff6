// Package engine runs a configured curve job: it loads the calibration,
// generates every record's savings curve and combines the marginals into an
// allocation table.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sigmaun/prepo/internal/config"
	"github.com/sigmaun/prepo/internal/optimizer"
	"github.com/sigmaun/prepo/pkg/allocation"
	"github.com/sigmaun/prepo/pkg/calibration"
	"github.com/sigmaun/prepo/pkg/curve"
	"github.com/sigmaun/prepo/pkg/grid"
	"github.com/sigmaun/prepo/pkg/optimization"
	"github.com/sigmaun/prepo/pkg/savings"
	"go.uber.org/zap"
)

// ErrNoRecords is returned when a run is started without calibration records.
var ErrNoRecords = errors.New("no calibration records")

// Report is the outcome of a run.
type Report struct {
	Model   string
	Spec    grid.Spec
	Results []curve.Result
	// Allocation is nil when disabled or when it could not be built; in the
	// latter case AllocationErr says why.
	Allocation    *allocation.Table
	AllocationErr error
	// Optima holds the savings-maximising level per record when enabled.
	Optima   []optimization.Summary
	Duration time.Duration
}

// Succeeded returns the results that produced a curve.
func (r *Report) Succeeded() []curve.Result {
	var out []curve.Result
	for _, res := range r.Results {
		if res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the results that stopped with an error.
func (r *Report) Failed() []curve.Result {
	var out []curve.Result
	for _, res := range r.Results {
		if !res.OK() {
			out = append(out, res)
		}
	}
	return out
}

// LoadCalibration reads the configured calibration file and applies the
// shared fields.
func LoadCalibration(conf config.Configuration) ([]calibration.Record, error) {
	if conf.Calibration.File == "" {
		return nil, fmt.Errorf("calibration file is not configured")
	}
	records, err := calibration.LoadFile(conf.Calibration.File)
	if err != nil {
		return nil, err
	}
	return calibration.ApplyShared(records, conf.Calibration.SharedFields), nil
}

// Run generates a curve for every record. Records fail independently and are
// reported in the Report; the returned error is for problems that stop the
// whole run: an invalid configuration, no records, or a cancelled context.
func Run(ctx context.Context, logger *zap.Logger, conf config.Configuration, records []calibration.Record) (*Report, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	start := time.Now()

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}

	model, err := conf.NewModel()
	if err != nil {
		return nil, err
	}
	generator, err := curve.NewGenerator(model, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("generating savings curves",
		zap.String("op", "engine.Run"),
		zap.String("model", model.Name()),
		zap.Stringer("grid", conf.Grid),
		zap.Int("records", len(records)),
		zap.Int("workers", conf.Workers),
	)

	results, err := generator.Batch(ctx, records, conf.Grid, curve.BatchOptions{Workers: conf.Workers})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{
		Model:   model.Name(),
		Spec:    conf.Grid,
		Results: results,
	}
	logOutcomes(logger, results)

	if conf.Allocation {
		report.buildAllocation(logger)
	}
	if conf.Optimize {
		report.Optima = optimize(logger, model, results, conf.Grid)
	}

	report.Duration = time.Since(start)
	logger.Info("savings curves complete",
		zap.String("op", "engine.Run"),
		zap.Int("succeeded", len(report.Succeeded())),
		zap.Int("failed", len(report.Failed())),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func logOutcomes(logger *zap.Logger, results []curve.Result) {
	for _, res := range results {
		if !res.OK() {
			logger.Error("record failed",
				zap.String("op", "engine.Run"),
				zap.String("record", res.Record.ID()),
				zap.Error(res.Err),
			)
			continue
		}
		for _, warning := range res.Diagnostics.Warnings {
			logger.Warn("curve warning: "+warning,
				zap.String("op", "engine.Run"),
				zap.String("record", res.Record.ID()),
			)
		}
	}
}

func (r *Report) buildAllocation(logger *zap.Logger) {
	var curves []curve.MarginalCurve
	for _, res := range r.Succeeded() {
		if len(res.Marginals.Points) > 0 {
			curves = append(curves, res.Marginals)
		}
	}

	table, err := allocation.Build(curves)
	if err != nil {
		r.AllocationErr = err
		logger.Warn("allocation table not built",
			zap.String("op", "engine.Run"),
			zap.Error(err),
		)
		return
	}
	r.Allocation = &table
}

func optimize(logger *zap.Logger, model savings.Model, results []curve.Result, spec grid.Spec) []optimization.Summary {
	runner, err := optimizer.NewRunner(logger, model)
	if err != nil {
		logger.Warn("optimal prepo search skipped",
			zap.String("op", "engine.Run"),
			zap.Error(err),
		)
		return nil
	}
	return runner.Run(results, spec)
}
