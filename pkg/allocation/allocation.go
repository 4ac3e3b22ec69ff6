// Package allocation inverts per-record marginal savings curves to answer
// how much prepo each record warrants at a given marginal savings threshold,
// and how much prepo that adds up to across all records.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sigmaun/prepo/pkg/curve"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"
)

var (
	// ErrNoCurves is returned when Build is given nothing to combine.
	ErrNoCurves = errors.New("no marginal curves to allocate")

	// ErrNoCommonRange is returned when the records' marginal savings do not
	// overlap; widening the prepo range usually fixes it.
	ErrNoCommonRange = errors.New("marginal savings ranges do not overlap")
)

// Row is the allocation at one marginal savings threshold. Spend is aligned
// with Table.Records.
type Row struct {
	Threshold float64   `json:"threshold"`
	Total     float64   `json:"total"`
	Spend     []float64 `json:"spend"`
}

// Table is total prepo spend as a function of marginal savings.
type Table struct {
	Records []string `json:"records"`
	Low     float64  `json:"low"`
	High    float64  `json:"high"`
	Rows    []Row    `json:"rows"`
}

// Build combines the marginal curves. Thresholds are every per-unit marginal
// value, from any record, that lies in the range all records share (floored
// at zero); each record's spend at a threshold is interpolated from its own
// curve.
func Build(curves []curve.MarginalCurve) (Table, error) {
	if len(curves) == 0 {
		return Table{}, ErrNoCurves
	}

	low, high := 0.0, math.Inf(1)
	for _, c := range curves {
		if len(c.Points) == 0 {
			return Table{}, fmt.Errorf("%w: record %q has no marginal savings", ErrNoCommonRange, c.Record)
		}
		values := perUnit(c)
		low = math.Max(low, floats.Min(values))
		high = math.Min(high, floats.Max(values))
	}
	if !(low < high) {
		return Table{}, fmt.Errorf("%w: common range [%g, %g] is empty", ErrNoCommonRange, low, high)
	}

	inverses := make([]inverse, len(curves))
	records := make([]string, len(curves))
	var thresholds []float64
	for i, c := range curves {
		inv, err := newInverse(c)
		if err != nil {
			return Table{}, fmt.Errorf("record %q: %w", c.Record, err)
		}
		inverses[i] = inv
		records[i] = c.Record
		for _, v := range inv.xs {
			if v >= low && v <= high {
				thresholds = append(thresholds, v)
			}
		}
	}
	thresholds = uniqueSorted(thresholds)

	rows := make([]Row, len(thresholds))
	for i, threshold := range thresholds {
		spend := make([]float64, len(inverses))
		for j, inv := range inverses {
			spend[j] = inv.at(threshold)
		}
		rows[i] = Row{Threshold: threshold, Total: floats.Sum(spend), Spend: spend}
	}

	return Table{Records: records, Low: low, High: high, Rows: rows}, nil
}

// SpendAt returns the total prepo spend for an arbitrary threshold inside the
// table's range by interpolating between rows.
func (t Table) SpendAt(threshold float64) (float64, error) {
	if len(t.Rows) == 0 {
		return 0, ErrNoCurves
	}
	if threshold < t.Low || threshold > t.High {
		return 0, fmt.Errorf("threshold %g outside [%g, %g]", threshold, t.Low, t.High)
	}
	if len(t.Rows) == 1 {
		return t.Rows[0].Total, nil
	}
	xs := make([]float64, len(t.Rows))
	ys := make([]float64, len(t.Rows))
	for i, r := range t.Rows {
		xs[i], ys[i] = r.Threshold, r.Total
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(xs, ys); err != nil {
		return 0, err
	}
	return pl.Predict(math.Min(math.Max(threshold, xs[0]), xs[len(xs)-1])), nil
}

// inverse maps per-unit marginal savings back to prepo level for one record.
type inverse struct {
	xs []float64
	pl interp.PiecewiseLinear
}

func newInverse(c curve.MarginalCurve) (inverse, error) {
	type pair struct{ m, level float64 }
	pairs := make([]pair, len(c.Points))
	for i, p := range c.Points {
		pairs[i] = pair{m: p.PerUnit, level: float64(p.Level)}
	}
	sort.SliceStable(pairs, func(i, j int) bool { return pairs[i].m < pairs[j].m })

	var xs, ys []float64
	for _, p := range pairs {
		if len(xs) > 0 && p.m == xs[len(xs)-1] {
			continue
		}
		xs = append(xs, p.m)
		ys = append(ys, p.level)
	}
	if len(xs) < 2 {
		return inverse{}, fmt.Errorf("marginal savings are constant")
	}

	inv := inverse{xs: xs}
	if err := inv.pl.Fit(xs, ys); err != nil {
		return inverse{}, err
	}
	return inv, nil
}

func (inv inverse) at(m float64) float64 {
	m = math.Min(math.Max(m, inv.xs[0]), inv.xs[len(inv.xs)-1])
	return inv.pl.Predict(m)
}

func perUnit(c curve.MarginalCurve) []float64 {
	values := make([]float64, len(c.Points))
	for i, p := range c.Points {
		values[i] = p.PerUnit
	}
	return values
}

func uniqueSorted(values []float64) []float64 {
	sort.Float64s(values)
	out := values[:0]
	for i, v := range values {
		if i == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
