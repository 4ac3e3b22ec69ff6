package savings

import (
	"math/rand/v2"

	"github.com/sigmaun/prepo/pkg/calibration"
	"gonum.org/v1/gonum/stat"
)

// PrepoSampled estimates the Prepo model by Monte Carlo. Every evaluation
// restarts the generator from the same seed, so a level is always scored
// against the same draws and repeated calls return identical values.
type PrepoSampled struct {
	n     int
	seed  uint64
	gross bool
}

// NewPrepoSampled returns a Monte Carlo Prepo model.
func NewPrepoSampled(opts Options) *PrepoSampled {
	opts = opts.withDefaults()
	return &PrepoSampled{n: opts.SampleSize, seed: opts.Seed, gross: opts.Gross}
}

// Name implements Model.
func (m *PrepoSampled) Name() string { return NamePrepoSampled }

// Evaluate implements Model.
func (m *PrepoSampled) Evaluate(rec calibration.Record, level float64) (float64, error) {
	p, err := ParamsFromRecord(rec)
	if err != nil {
		return 0, err
	}
	if err := checkLevel(level); err != nil {
		return 0, err
	}
	draws := m.draw(p, level)
	gains := make([]float64, len(draws))
	for i, d := range draws {
		gains[i] = d.gain
	}
	gain := stat.Mean(gains, nil)
	if m.gross {
		return gain, nil
	}
	return gain - p.MarginalCost()*level, nil
}

// Breakdown implements Decomposer.
func (m *PrepoSampled) Breakdown(rec calibration.Record, level float64) (Breakdown, error) {
	p, err := ParamsFromRecord(rec)
	if err != nil {
		return Breakdown{}, err
	}
	if err := checkLevel(level); err != nil {
		return Breakdown{}, err
	}
	draws := m.draw(p, level)
	pa := make([]float64, len(draws))
	pD := make([]float64, len(draws))
	pS := make([]float64, len(draws))
	pcx := make([]float64, len(draws))
	for i, d := range draws {
		pa[i], pD[i], pS[i], pcx[i] = d.pa, d.pD, d.pS, d.pcx
	}
	b := Breakdown{
		ExpectedPa:  stat.Mean(pa, nil),
		ExpectedPD:  stat.Mean(pD, nil),
		ExpectedPS:  stat.Mean(pS, nil),
		ExpectedPcx: stat.Mean(pcx, nil),
	}
	return finish(b, p), nil
}

// draw samples the cost ratio and local supply availability n times and
// returns the matching conditional scenarios.
func (m *PrepoSampled) draw(p Params, level float64) []scenario {
	rng := rand.New(rand.NewPCG(m.seed, m.seed))
	out := make([]scenario, m.n)
	for i := range out {
		a := p.ratioQuantile(rng.Float64())
		none, some := p.branches(a, level)
		if rng.Float64() < p.NoSupplyProb {
			out[i] = none
		} else {
			out[i] = some
		}
	}
	return out
}
