package savings

import (
	"github.com/sigmaun/prepo/pkg/calibration"
	"gonum.org/v1/gonum/integrate/quad"
)

// Prepo is the prepositioning savings model evaluated by Gauss-Legendre
// quadrature over the truncated-normal cost ratio. It is exact up to
// quadrature error and fully deterministic.
//
// Expected savings at spend x is the integral over [0, x] of the net marginal
// savings m(u) = (v-1)E[P_S(u)] + E[P_cx(u)] - h*m_T. The inner integrals
// have a closed form through the normal loss function, so only the
// expectation over the cost ratio needs numerical integration.
type Prepo struct {
	points int
	gross  bool
}

// NewPrepo returns a quadrature Prepo model.
func NewPrepo(opts Options) *Prepo {
	opts = opts.withDefaults()
	return &Prepo{points: opts.QuadraturePoints, gross: opts.Gross}
}

// Name implements Model.
func (m *Prepo) Name() string { return NamePrepo }

// Evaluate implements Model.
func (m *Prepo) Evaluate(rec calibration.Record, level float64) (float64, error) {
	p, err := ParamsFromRecord(rec)
	if err != nil {
		return 0, err
	}
	if err := checkLevel(level); err != nil {
		return 0, err
	}
	gain := m.expect(p, func(a float64) float64 { return p.given(a, level).gain })
	if m.gross {
		return gain, nil
	}
	return gain - p.MarginalCost()*level, nil
}

// Breakdown implements Decomposer.
func (m *Prepo) Breakdown(rec calibration.Record, level float64) (Breakdown, error) {
	p, err := ParamsFromRecord(rec)
	if err != nil {
		return Breakdown{}, err
	}
	if err := checkLevel(level); err != nil {
		return Breakdown{}, err
	}
	b := Breakdown{
		ExpectedPa:  m.expect(p, func(a float64) float64 { return p.given(a, level).pa }),
		ExpectedPD:  m.expect(p, func(a float64) float64 { return p.given(a, level).pD }),
		ExpectedPS:  m.expect(p, func(a float64) float64 { return p.given(a, level).pS }),
		ExpectedPcx: m.expect(p, func(a float64) float64 { return p.given(a, level).pcx }),
	}
	return finish(b, p), nil
}

// expect integrates f against the cost-ratio density. The range is split at
// a = 1 where (a-1)^+ has its kink.
func (m *Prepo) expect(p Params, f func(a float64) float64) float64 {
	lo, hi := p.ratioBounds()
	mass := p.ratioMass()
	integrand := func(a float64) float64 {
		return f(a) * p.ratioDensity(a, mass)
	}
	if lo < 1 && 1 < hi {
		return quad.Fixed(integrand, lo, 1, m.points, quad.Legendre{}, 0) +
			quad.Fixed(integrand, 1, hi, m.points, quad.Legendre{}, 0)
	}
	return quad.Fixed(integrand, lo, hi, m.points, quad.Legendre{}, 0)
}

func finish(b Breakdown, p Params) Breakdown {
	b.MarginalSavings = (p.ShortageRatio-1)*b.ExpectedPS + b.ExpectedPcx
	b.MarginalCost = p.MarginalCost()
	b.Net = b.MarginalSavings - b.MarginalCost
	return b
}
