package curve

import (
	"context"
	"errors"
	"fmt"

	"github.com/sigmaun/prepo/pkg/calibration"
	"github.com/sigmaun/prepo/pkg/grid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Result is the outcome for one record of a batch: either a curve with its
// marginals and diagnostics, or the error that stopped it.
type Result struct {
	Record      calibration.Record
	Curve       Curve
	Marginals   MarginalCurve
	Diagnostics Diagnostics
	Err         error
}

// OK reports whether the record produced a curve.
func (r Result) OK() bool {
	return r.Err == nil
}

// BatchOptions controls batch execution.
type BatchOptions struct {
	// Workers is the number of records evaluated concurrently; values below
	// two run sequentially. Results are identical either way.
	Workers int
}

// Batch generates a curve for every record. Records fail independently: a
// bad record yields a Result carrying its error while the others proceed.
// The returned error is reserved for problems shared by all records, such as
// an invalid grid. Cancellation is observed between records; records not yet
// started report the context error.
func (g *Generator) Batch(ctx context.Context, records []calibration.Record, spec grid.Spec, opts BatchOptions) ([]Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	results := make([]Result, len(records))
	if opts.Workers < 2 {
		for i, rec := range records {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Record: rec, Err: err}
				continue
			}
			results[i] = g.run(rec, spec)
		}
		return results, nil
	}

	var group errgroup.Group
	group.SetLimit(opts.Workers)
	for i, rec := range records {
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i] = Result{Record: rec, Err: err}
				return nil
			}
			results[i] = g.run(rec, spec)
			return nil
		})
	}
	_ = group.Wait()
	return results, nil
}

// run processes one record end to end.
func (g *Generator) run(rec calibration.Record, spec grid.Spec) Result {
	c, err := g.Generate(rec, spec)
	if err != nil {
		g.logger.Debug("record failed",
			zap.String("op", "curve.Batch"),
			zap.String("record", rec.ID()),
			zap.Error(err),
		)
		return Result{Record: rec, Err: err}
	}

	res := Result{Record: rec, Curve: c}
	m, err := Marginals(c)
	switch {
	case err == nil:
		res.Marginals = m
	case errors.Is(err, ErrInsufficientPoints):
		// A single-level grid is valid; the record simply has no marginals.
		res.Marginals = MarginalCurve{Record: c.Record, Index: c.Index}
	default:
		return Result{Record: rec, Err: fmt.Errorf("record %s: %w", rec.ID(), err)}
	}

	res.Diagnostics = Diagnose(c, res.Marginals)
	if len(c.Points) < 2 {
		res.Diagnostics.Warnings = append(res.Diagnostics.Warnings, "single-level grid: no marginal savings")
	}
	return res
}
