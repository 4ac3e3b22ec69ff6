// Package optimizer searches each record's savings curve for the prepo level
// beyond which another unit of prepo costs more than it saves.
package optimizer

import (
	"fmt"
	"math"

	"github.com/sigmaun/prepo/pkg/calibration"
	"github.com/sigmaun/prepo/pkg/curve"
	"github.com/sigmaun/prepo/pkg/grid"
	"github.com/sigmaun/prepo/pkg/mathutil"
	"github.com/sigmaun/prepo/pkg/optimization"
	"github.com/sigmaun/prepo/pkg/savings"
	"go.uber.org/zap"
)

const (
	// DefaultTolerance is the width, in prepo units, at which the search stops.
	DefaultTolerance = 1.0

	// DefaultMaxIterations bounds the bisection.
	DefaultMaxIterations = 100

	// differenceStep is the half-width of the central difference used for
	// marginal savings.
	differenceStep = 0.5
)

// Runner finds optimal prepo levels with one savings model.
type Runner struct {
	logger        *zap.Logger
	model         savings.Model
	tolerance     float64
	maxIterations int
}

type evaluation struct {
	level    float64
	marginal float64
}

func (e evaluation) pays() bool {
	return e.marginal > 0
}

// NewRunner constructs a Runner for the provided model.
func NewRunner(logger *zap.Logger, model savings.Model) (*Runner, error) {
	if model == nil {
		return nil, fmt.Errorf("savings model cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		logger:        logger,
		model:         model,
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
	}, nil
}

// Run optimizes every successful result over the grid's range. Records whose
// search fails are logged and skipped.
func (r *Runner) Run(results []curve.Result, spec grid.Spec) []optimization.Summary {
	var summaries []optimization.Summary
	for _, res := range results {
		if !res.OK() {
			continue
		}
		summary, err := r.Optimize(res.Record, float64(spec.Min), float64(spec.Last()))
		if err != nil {
			r.logger.Warn("optimal prepo search failed",
				zap.String("op", "optimizer.Run"),
				zap.String("record", res.Record.ID()),
				zap.Error(err),
			)
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries
}

// Optimize bisects [lo, hi] for the level where marginal savings stop being
// positive. Savings are concave in the prepo models, so that level maximises
// savings.
func (r *Runner) Optimize(rec calibration.Record, lo, hi float64) (optimization.Summary, error) {
	if !(lo <= hi) {
		return optimization.Summary{}, fmt.Errorf("invalid search range [%v, %v]", lo, hi)
	}

	lower, err := r.evaluate(rec, lo)
	if err != nil {
		return optimization.Summary{}, err
	}
	upper, err := r.evaluate(rec, hi)
	if err != nil {
		return optimization.Summary{}, err
	}

	switch {
	case !lower.pays():
		return r.summarize(rec, lower, 0, true,
			fmt.Sprintf("prepo does not pay at the lowest level %v", lo))
	case upper.pays():
		return r.summarize(rec, upper, 0, false,
			fmt.Sprintf("savings still rising at the highest level %v; widen the grid", hi))
	}

	iterations := 0
	for upper.level-lower.level > r.tolerance && iterations < r.maxIterations {
		iterations++
		mid, err := r.evaluate(rec, lower.level+(upper.level-lower.level)/2)
		if err != nil {
			return optimization.Summary{}, err
		}
		if mid.pays() {
			lower = mid
		} else {
			upper = mid
		}
	}

	best, err := r.evaluate(rec, lower.level+(upper.level-lower.level)/2)
	if err != nil {
		return optimization.Summary{}, err
	}
	converged := mathutil.WithinTolerance(upper.level, lower.level, r.tolerance)
	r.logger.Debug("optimal prepo level found",
		zap.String("op", "optimizer.Optimize"),
		zap.String("record", rec.ID()),
		zap.Float64("level", best.level),
		zap.Int("iterations", iterations),
		zap.Bool("converged", converged),
	)
	return r.summarize(rec, best, iterations, converged)
}

// evaluate measures marginal savings per prepo unit at level by central
// difference, one-sided at zero.
func (r *Runner) evaluate(rec calibration.Record, level float64) (evaluation, error) {
	left := math.Max(0, level-differenceStep)
	right := level + differenceStep

	vl, err := r.model.Evaluate(rec, left)
	if err != nil {
		return evaluation{}, err
	}
	vr, err := r.model.Evaluate(rec, right)
	if err != nil {
		return evaluation{}, err
	}
	return evaluation{level: level, marginal: (vr - vl) / (right - left)}, nil
}

func (r *Runner) summarize(rec calibration.Record, e evaluation, iterations int, converged bool, notes ...string) (optimization.Summary, error) {
	value, err := r.model.Evaluate(rec, e.level)
	if err != nil {
		return optimization.Summary{}, err
	}
	return optimization.Summary{
		Record:     rec.Label,
		Index:      rec.Index,
		Level:      e.level,
		Savings:    value,
		Marginal:   e.marginal,
		Iterations: iterations,
		Converged:  converged,
		Notes:      notes,
	}, nil
}
