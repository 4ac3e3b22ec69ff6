package curve

import (
	"fmt"
	"math"

	"github.com/sigmaun/prepo/pkg/constants"
)

// Diagnostics reports where a curve departs from the expected shape:
// savings should not fall as prepo grows, and marginal savings should not
// rise (diminishing returns). Neither is enforced; both are warnings.
type Diagnostics struct {
	// Decreasing lists levels at which savings fell from the previous level.
	Decreasing []int `json:"decreasing,omitempty"`
	// Increasing lists levels at which the marginal rose from the previous one.
	Increasing []int    `json:"increasing,omitempty"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Monotone reports whether savings never fall.
func (d Diagnostics) Monotone() bool {
	return len(d.Decreasing) == 0
}

// DiminishingReturns reports whether marginals never rise.
func (d Diagnostics) DiminishingReturns() bool {
	return len(d.Increasing) == 0
}

// Diagnose checks a curve and its marginals for shape violations.
func Diagnose(c Curve, m MarginalCurve) Diagnostics {
	var d Diagnostics
	for i := 1; i < len(c.Points); i++ {
		if below(c.Points[i].Value, c.Points[i-1].Value) {
			d.Decreasing = append(d.Decreasing, c.Points[i].Level)
		}
	}
	for i := 1; i < len(m.Points); i++ {
		if below(m.Points[i-1].PerUnit, m.Points[i].PerUnit) {
			d.Increasing = append(d.Increasing, m.Points[i].Level)
		}
	}

	if len(d.Decreasing) > 0 {
		d.Warnings = append(d.Warnings, fmt.Sprintf(
			"savings decrease at %d level(s), first at %d", len(d.Decreasing), d.Decreasing[0]))
	}
	if len(d.Increasing) > 0 {
		d.Warnings = append(d.Warnings, fmt.Sprintf(
			"marginal savings increase at %d level(s), first at %d", len(d.Increasing), d.Increasing[0]))
	}
	return d
}

// below reports whether a is less than b beyond floating-point noise.
func below(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return a < b-constants.ShapeTolerance*scale
}
