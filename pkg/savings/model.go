// Package savings defines the savings models a curve is evaluated with. A
// model is a pure function of one calibration record and one prepo level.
package savings

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sigmaun/prepo/pkg/calibration"
	"github.com/sigmaun/prepo/pkg/constants"
)

var (
	// ErrInvalidCalibration is returned when a record lacks a field the model
	// needs or carries a value outside the model's domain.
	ErrInvalidCalibration = errors.New("invalid calibration")

	// ErrInvalidLevel is returned for a negative or non-finite prepo level.
	ErrInvalidLevel = errors.New("invalid prepo level")

	// ErrUnknownModel is returned by New for an unregistered model name.
	ErrUnknownModel = errors.New("unknown savings model")
)

// Model evaluates expected savings at a prepo level. Implementations must be
// deterministic and free of side effects.
type Model interface {
	Name() string
	Evaluate(rec calibration.Record, level float64) (float64, error)
}

// Breakdown holds the per-level expectations behind the prepo model's
// marginal savings: m = m_s - m_c with m_s = (v-1)E[P_S] + E[P_cx].
type Breakdown struct {
	ExpectedPa  float64 `json:"expectedPa"`
	ExpectedPD  float64 `json:"expectedPD"`
	ExpectedPS  float64 `json:"expectedPS"`
	ExpectedPcx float64 `json:"expectedPcx"`
	// MarginalSavings is m_s, the gross marginal savings per currency unit.
	MarginalSavings float64 `json:"marginalSavings"`
	// MarginalCost is m_c, the holding cost of one currency unit of prepo.
	MarginalCost float64 `json:"marginalCost"`
	// Net is m_s - m_c.
	Net float64 `json:"net"`
}

// Decomposer is implemented by models that can explain a level's value.
type Decomposer interface {
	Breakdown(rec calibration.Record, level float64) (Breakdown, error)
}

// Options tunes the registered models. Zero values fall back to defaults.
type Options struct {
	QuadraturePoints int
	SampleSize       int
	Seed             uint64
	// Gross reports savings before the prepo holding cost.
	Gross bool
}

func (o Options) withDefaults() Options {
	if o.QuadraturePoints <= 0 {
		o.QuadraturePoints = constants.DefaultQuadraturePoints
	}
	if o.SampleSize <= 0 {
		o.SampleSize = constants.DefaultSampleSize
	}
	return o
}

// Registered model names.
const (
	NameCappedLinear = "capped-linear"
	NamePrepo        = "prepo"
	NamePrepoSampled = "prepo-sampled"
)

var registry = map[string]func(Options) Model{
	NameCappedLinear: func(Options) Model { return CappedLinear{} },
	NamePrepo:        func(o Options) Model { return NewPrepo(o) },
	NamePrepoSampled: func(o Options) Model { return NewPrepoSampled(o) },
}

// New returns the model registered under name.
func New(name string, opts Options) (Model, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownModel, name, Names())
	}
	return ctor(opts.withDefaults()), nil
}

// Names lists the registered model names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkLevel(level float64) error {
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return fmt.Errorf("%w: %v is not finite", ErrInvalidLevel, level)
	}
	if level < 0 {
		return fmt.Errorf("%w: %v is negative", ErrInvalidLevel, level)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCalibration, fmt.Sprintf(format, args...))
}

// field reads a required record field and wraps lookup failures.
func field(rec calibration.Record, name string) (float64, error) {
	v, err := rec.Get(name)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidCalibration, err)
	}
	return v, nil
}
