package validation

import (
	"fmt"

	"github.com/sigmaun/prepo/pkg/constants"
	"github.com/sigmaun/prepo/pkg/grid"
	"github.com/sigmaun/prepo/pkg/savings"
)

// GridWarnings flags grids that are valid but probably not what was meant.
func GridWarnings(spec grid.Spec) []string {
	var warnings []string
	if spec.Validate() != nil {
		return warnings
	}

	if n := spec.Count(); n > constants.LargeGridWarningPoints {
		warnings = append(warnings, fmt.Sprintf("Grid %v has %d levels per record and may take a long time", spec, n))
	}
	if spec.Count() == 1 {
		warnings = append(warnings, fmt.Sprintf("Grid %v has a single level; no marginal savings will be produced", spec))
	}
	if last := spec.Last(); last != spec.Max {
		warnings = append(warnings, fmt.Sprintf("Grid %v stops at %d because the step does not divide the range", spec, last))
	}
	return warnings
}

// ModelWarnings flags model settings that will produce noisy curves.
func ModelWarnings(name string, sampleSize int) []string {
	var warnings []string
	if name == savings.NamePrepoSampled && sampleSize > 0 && sampleSize < constants.MinRecommendedSampleSize {
		warnings = append(warnings, fmt.Sprintf("Sample size %d is below %d; sampled curves will be noisy",
			sampleSize, constants.MinRecommendedSampleSize))
	}
	return warnings
}
