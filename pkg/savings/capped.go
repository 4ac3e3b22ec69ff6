package savings

import (
	"math"

	"github.com/sigmaun/prepo/pkg/calibration"
)

// Field names read by CappedLinear.
const (
	FieldCap       = "cap"
	FieldUnitValue = "unit_value"
)

// CappedLinear values each unit of prepo at unit_value up to cap units:
// value(level) = min(level, cap) * unit_value.
type CappedLinear struct{}

// Name implements Model.
func (CappedLinear) Name() string { return NameCappedLinear }

// Evaluate implements Model.
func (CappedLinear) Evaluate(rec calibration.Record, level float64) (float64, error) {
	limit, err := field(rec, FieldCap)
	if err != nil {
		return 0, err
	}
	unit, err := field(rec, FieldUnitValue)
	if err != nil {
		return 0, err
	}
	if limit < 0 {
		return 0, invalid("%s must be non-negative, got %v", FieldCap, limit)
	}
	if unit < 0 {
		return 0, invalid("%s must be non-negative, got %v", FieldUnitValue, unit)
	}
	if err := checkLevel(level); err != nil {
		return 0, err
	}
	return math.Min(level, limit) * unit, nil
}
