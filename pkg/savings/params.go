package savings

import (
	"math"

	"github.com/sigmaun/prepo/pkg/calibration"
	"github.com/sigmaun/prepo/pkg/mathutil"
	"gonum.org/v1/gonum/stat/distuv"
)

// Calibration field names read by the prepo models. Demand and supply
// figures are in the item's natural unit and are converted to currency with
// the unit cost c.
const (
	FieldMeanPeriods   = "m_T"
	FieldHolding       = "h"
	FieldShortageRatio = "v"
	FieldUnitCost      = "c"
	FieldRatioMean     = "mean_a"
	FieldRatioStdDev   = "stdev_a"
	FieldRatioMin      = "min_a"
	FieldRatioMax      = "max_a"
	FieldDemandBase    = "m_D"
	FieldDemandSlope   = "a_D"
	FieldDemandStdDev  = "stdev_D"
	FieldNoSupplyProb  = "Q_0"
	FieldSupplyBase    = "m_Q"
	FieldSupplySlope   = "a_Q"
	FieldSupplyStdDev  = "stdev_Q"
	FieldCorrelation   = "rho"
)

// PrepoFields lists every field the prepo models require, in input order.
var PrepoFields = []string{
	FieldMeanPeriods, FieldHolding, FieldShortageRatio, FieldUnitCost,
	FieldRatioMean, FieldRatioStdDev, FieldRatioMin, FieldRatioMax,
	FieldDemandBase, FieldDemandSlope, FieldDemandStdDev,
	FieldNoSupplyProb, FieldSupplyBase, FieldSupplySlope, FieldSupplyStdDev,
	FieldCorrelation,
}

// tailWidth bounds the cost-ratio integration to mean +/- tailWidth standard
// deviations; the truncated density outside is below 1e-14 of its peak.
const tailWidth = 8.0

// Params is the decoded prepo calibration with demand and supply in currency.
type Params struct {
	MeanPeriods   float64
	Holding       float64
	ShortageRatio float64
	UnitCost      float64

	RatioMean   float64
	RatioStdDev float64
	RatioMin    float64
	RatioMax    float64

	DemandBase   float64
	DemandSlope  float64
	DemandStdDev float64

	NoSupplyProb float64
	SupplyBase   float64
	SupplySlope  float64
	SupplyStdDev float64

	Correlation float64
}

// ParamsFromRecord decodes and validates a prepo calibration record.
func ParamsFromRecord(rec calibration.Record) (Params, error) {
	values := make(map[string]float64, len(PrepoFields))
	for _, name := range PrepoFields {
		v, err := field(rec, name)
		if err != nil {
			return Params{}, err
		}
		values[name] = v
	}

	c := values[FieldUnitCost]
	p := Params{
		MeanPeriods:   values[FieldMeanPeriods],
		Holding:       values[FieldHolding],
		ShortageRatio: values[FieldShortageRatio],
		UnitCost:      c,
		RatioMean:     values[FieldRatioMean],
		RatioStdDev:   values[FieldRatioStdDev],
		RatioMin:      values[FieldRatioMin],
		RatioMax:      values[FieldRatioMax],
		DemandBase:    values[FieldDemandBase] * c,
		DemandSlope:   values[FieldDemandSlope] * c,
		DemandStdDev:  values[FieldDemandStdDev] * c,
		// Q_0 is a probability; out-of-range input is clamped rather than rejected.
		NoSupplyProb: mathutil.Clamp(values[FieldNoSupplyProb], 0, 1),
		SupplyBase:   values[FieldSupplyBase] * c,
		SupplySlope:  values[FieldSupplySlope] * c,
		SupplyStdDev: values[FieldSupplyStdDev] * c,
		Correlation:  values[FieldCorrelation],
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks the domain of every parameter.
func (p Params) Validate() error {
	switch {
	case p.UnitCost <= 0:
		return invalid("%s must be positive, got %v", FieldUnitCost, p.UnitCost)
	case p.Holding < 0:
		return invalid("%s must be non-negative, got %v", FieldHolding, p.Holding)
	case p.MeanPeriods < 0:
		return invalid("%s must be non-negative, got %v", FieldMeanPeriods, p.MeanPeriods)
	case p.ShortageRatio < 1:
		return invalid("%s must be at least 1, got %v", FieldShortageRatio, p.ShortageRatio)
	case p.RatioStdDev <= 0:
		return invalid("%s must be positive, got %v", FieldRatioStdDev, p.RatioStdDev)
	case p.RatioMin >= p.RatioMax:
		return invalid("%s (%v) must be below %s (%v)", FieldRatioMin, p.RatioMin, FieldRatioMax, p.RatioMax)
	case p.RatioMean < p.RatioMin || p.RatioMean > p.RatioMax:
		return invalid("%s (%v) must lie in [%v, %v]", FieldRatioMean, p.RatioMean, p.RatioMin, p.RatioMax)
	case p.DemandStdDev <= 0:
		return invalid("%s must be positive, got %v", FieldDemandStdDev, p.DemandStdDev/p.UnitCost)
	case p.SupplyStdDev < 0:
		return invalid("%s must be non-negative, got %v", FieldSupplyStdDev, p.SupplyStdDev/p.UnitCost)
	case p.Correlation < -1 || p.Correlation > 1:
		return invalid("%s must lie in [-1, 1], got %v", FieldCorrelation, p.Correlation)
	case !(p.GapStdDev() > 0):
		return invalid("demand net of supply has zero variance (%s=%v)", FieldCorrelation, p.Correlation)
	}
	return nil
}

// MarginalCost is m_c, the holding cost of one currency unit of prepo
// between relief events.
func (p Params) MarginalCost() float64 {
	return p.Holding * p.MeanPeriods
}

// GapStdDev is the standard deviation of demand net of local supply.
func (p Params) GapStdDev() float64 {
	v := p.DemandStdDev*p.DemandStdDev + p.SupplyStdDev*p.SupplyStdDev -
		2*p.Correlation*p.DemandStdDev*p.SupplyStdDev
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v)
}

// ratioBounds returns the integration range of the cost ratio.
func (p Params) ratioBounds() (lo, hi float64) {
	lo = math.Max(p.RatioMin, p.RatioMean-tailWidth*p.RatioStdDev)
	hi = math.Min(p.RatioMax, p.RatioMean+tailWidth*p.RatioStdDev)
	return lo, hi
}

// ratioMass is the normal probability of [min_a, max_a], the truncation's
// normalising constant.
func (p Params) ratioMass() float64 {
	alpha := (p.RatioMin - p.RatioMean) / p.RatioStdDev
	beta := (p.RatioMax - p.RatioMean) / p.RatioStdDev
	return distuv.UnitNormal.CDF(beta) - distuv.UnitNormal.CDF(alpha)
}

// ratioDensity is the truncated-normal density of the cost ratio at a.
func (p Params) ratioDensity(a, mass float64) float64 {
	if a < p.RatioMin || a > p.RatioMax {
		return 0
	}
	return distuv.UnitNormal.Prob((a-p.RatioMean)/p.RatioStdDev) / (p.RatioStdDev * mass)
}

// ratioQuantile maps u in [0,1] to a cost ratio by inverting the truncated CDF.
func (p Params) ratioQuantile(u float64) float64 {
	lo := distuv.UnitNormal.CDF((p.RatioMin - p.RatioMean) / p.RatioStdDev)
	hi := distuv.UnitNormal.CDF((p.RatioMax - p.RatioMean) / p.RatioStdDev)
	a := p.RatioMean + p.RatioStdDev*distuv.UnitNormal.Quantile(lo+u*(hi-lo))
	return mathutil.Clamp(a, p.RatioMin, p.RatioMax)
}

// scenario holds the quantities conditional on one cost ratio a and spend x.
type scenario struct {
	pa  float64 // (a-1)^+
	pD  float64 // P[D > x | a]
	pS  float64 // P[D-Q > x | a]
	pcx float64 // P_a (P_D - P_S)
	// gain is the expected gross savings of spend x, the integral of
	// (v-1)P_S + P_cx from 0 to x.
	gain float64
}

// branches evaluates the scenario at cost ratio a and spend x, once for an
// event without local supply and once for an event with it.
func (p Params) branches(a, x float64) (noSupply, supplied scenario) {
	pa := mathutil.PositivePart(a - 1)
	demandMean := p.DemandBase + p.DemandSlope*a
	gapMean := demandMean - (p.SupplyBase + p.SupplySlope*a)
	gapSD := p.GapStdDev()

	pD := survival(demandMean, p.DemandStdDev, x)
	pGap := survival(gapMean, gapSD, x)
	gainD := lossGain(demandMean, p.DemandStdDev, x)
	gainGap := lossGain(gapMean, gapSD, x)
	excess := p.ShortageRatio - 1

	// Without local supply the shortfall is demand itself: P_S = P_D and the
	// P_cx term vanishes.
	noSupply = scenario{pa: pa, pD: pD, pS: pD, gain: excess * gainD}
	supplied = scenario{
		pa:   pa,
		pD:   pD,
		pS:   pGap,
		pcx:  pa * (pD - pGap),
		gain: excess*gainGap + pa*(gainD-gainGap),
	}
	return noSupply, supplied
}

// given is the scenario at cost ratio a averaged over local supply availability.
func (p Params) given(a, x float64) scenario {
	none, some := p.branches(a, x)
	q0 := p.NoSupplyProb
	mix := func(u, v float64) float64 { return q0*u + (1-q0)*v }
	return scenario{
		pa:   none.pa,
		pD:   none.pD,
		pS:   mix(none.pS, some.pS),
		pcx:  mix(none.pcx, some.pcx),
		gain: mix(none.gain, some.gain),
	}
}

// survival is P[Y > x] for Y ~ N(mean, sd).
func survival(mean, sd, x float64) float64 {
	return distuv.UnitNormal.Survival((x - mean) / sd)
}

// normalLoss is E[(Y-t)^+] for Y ~ N(mean, sd).
func normalLoss(mean, sd, t float64) float64 {
	z := (t - mean) / sd
	return sd*distuv.UnitNormal.Prob(z) + (mean-t)*distuv.UnitNormal.Survival(z)
}

// lossGain is the integral of P[Y > u] for u from 0 to x.
func lossGain(mean, sd, x float64) float64 {
	return normalLoss(mean, sd, 0) - normalLoss(mean, sd, x)
}
