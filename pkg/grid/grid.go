// Package grid defines the prepo-level grid a savings curve is evaluated on.
package grid

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGridSpec is returned for a grid with min > max, a negative
// minimum, or a non-positive step.
var ErrInvalidGridSpec = errors.New("invalid grid specification")

// Spec is the (minimum, maximum, step) description of a prepo grid. It is
// immutable once built and shared read-only across records.
type Spec struct {
	Min  int `json:"min" yaml:"min" mapstructure:"min"`
	Max  int `json:"max" yaml:"max" mapstructure:"max"`
	Step int `json:"step" yaml:"step" mapstructure:"step"`
}

// New validates and returns a Spec.
func New(min, max, step int) (Spec, error) {
	s := Spec{Min: min, Max: max, Step: step}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

// Validate checks the grid invariants.
func (s Spec) Validate() error {
	if s.Step <= 0 {
		return fmt.Errorf("%w: step must be positive, got %d", ErrInvalidGridSpec, s.Step)
	}
	if s.Min < 0 {
		return fmt.Errorf("%w: min must be non-negative, got %d", ErrInvalidGridSpec, s.Min)
	}
	if s.Min > s.Max {
		return fmt.Errorf("%w: min %d exceeds max %d", ErrInvalidGridSpec, s.Min, s.Max)
	}
	return nil
}

// Count returns the number of grid points, floor((max-min)/step)+1.
// It returns 0 for an invalid spec and saturates at math.MaxInt.
func (s Spec) Count() int {
	if s.Validate() != nil {
		return 0
	}
	span := (s.Max - s.Min) / s.Step
	if span == math.MaxInt {
		return math.MaxInt
	}
	return span + 1
}

// Last returns the largest grid level, which is Max only when the step
// divides the range evenly.
func (s Spec) Last() int {
	n := s.Count()
	if n == 0 {
		return s.Min
	}
	return s.Min + (n-1)*s.Step
}

// Levels returns min, min+step, ... up to and including the largest value <= max.
func (s Spec) Levels() ([]int, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	levels := make([]int, s.Count())
	for i := range levels {
		levels[i] = s.Min + i*s.Step
	}
	return levels, nil
}

// String implements fmt.Stringer.
func (s Spec) String() string {
	return fmt.Sprintf("[%d..%d step %d]", s.Min, s.Max, s.Step)
}
