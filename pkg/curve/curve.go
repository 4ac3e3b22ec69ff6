// Package curve evaluates savings models across a prepo grid and derives
// the marginal savings between successive grid levels.
package curve

import (
	"errors"
	"fmt"

	"github.com/sigmaun/prepo/pkg/calibration"
	"github.com/sigmaun/prepo/pkg/grid"
	"github.com/sigmaun/prepo/pkg/mathutil"
	"github.com/sigmaun/prepo/pkg/savings"
	"go.uber.org/zap"
)

// ErrInsufficientPoints is returned by Marginals for a curve with fewer than
// two points.
var ErrInsufficientPoints = errors.New("insufficient points for marginals")

// ErrNonFinite is returned when a model yields NaN or an infinity.
var ErrNonFinite = errors.New("savings value is not finite")

// Point is the expected savings at one prepo level.
type Point struct {
	Level     int                `json:"level"`
	Value     float64            `json:"value"`
	Breakdown *savings.Breakdown `json:"breakdown,omitempty"`
}

// Curve is a record's savings curve in strictly increasing level order.
type Curve struct {
	Record string  `json:"record"`
	Index  int     `json:"index"`
	Points []Point `json:"points"`
}

// Levels returns the curve's levels.
func (c Curve) Levels() []int {
	levels := make([]int, len(c.Points))
	for i, p := range c.Points {
		levels[i] = p.Level
	}
	return levels
}

// Values returns the curve's savings values.
func (c Curve) Values() []float64 {
	values := make([]float64, len(c.Points))
	for i, p := range c.Points {
		values[i] = p.Value
	}
	return values
}

// Marginal is the savings gained moving up to Level from the previous grid
// level. PerUnit divides by the level difference, giving marginal savings
// per currency unit of prepo.
type Marginal struct {
	Level   int     `json:"level"`
	Value   float64 `json:"value"`
	PerUnit float64 `json:"perUnit"`
}

// MarginalCurve is the difference sequence of a Curve, one entry shorter.
type MarginalCurve struct {
	Record string     `json:"record"`
	Index  int        `json:"index"`
	Points []Marginal `json:"points"`
}

// EvaluationError ties a savings model failure to the record and level that
// caused it.
type EvaluationError struct {
	Record string
	Index  int
	Level  int
	Err    error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("record %s: level %d: %v", e.Record, e.Level, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// Generator drives one savings model across grids.
type Generator struct {
	model  savings.Model
	logger *zap.Logger
}

// NewGenerator returns a Generator for model. A nil logger disables logging.
func NewGenerator(model savings.Model, logger *zap.Logger) (*Generator, error) {
	if model == nil {
		return nil, fmt.Errorf("savings model cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{model: model, logger: logger}, nil
}

// Model returns the generator's savings model.
func (g *Generator) Model() savings.Model {
	return g.model
}

// Generate evaluates the model at every grid level in increasing order. The
// first failing level aborts the record; no partial curve is returned.
func (g *Generator) Generate(rec calibration.Record, spec grid.Spec) (Curve, error) {
	levels, err := spec.Levels()
	if err != nil {
		return Curve{}, err
	}

	decomposer, explain := g.model.(savings.Decomposer)
	points := make([]Point, len(levels))
	for i, level := range levels {
		value, err := g.model.Evaluate(rec, float64(level))
		if err != nil {
			return Curve{}, &EvaluationError{Record: rec.ID(), Index: rec.Index, Level: level, Err: err}
		}
		if !mathutil.IsFinite(value) {
			return Curve{}, &EvaluationError{Record: rec.ID(), Index: rec.Index, Level: level, Err: fmt.Errorf("%w: %v", ErrNonFinite, value)}
		}
		points[i] = Point{Level: level, Value: value}

		if explain {
			b, err := decomposer.Breakdown(rec, float64(level))
			if err != nil {
				return Curve{}, &EvaluationError{Record: rec.ID(), Index: rec.Index, Level: level, Err: err}
			}
			points[i].Breakdown = &b
		}
	}

	g.logger.Debug("generated savings curve",
		zap.String("op", "curve.Generate"),
		zap.String("record", rec.ID()),
		zap.String("model", g.model.Name()),
		zap.Int("points", len(points)),
	)
	return Curve{Record: rec.Label, Index: rec.Index, Points: points}, nil
}

// Marginals returns value[i+1]-value[i] for each consecutive pair, attributed
// to the higher level.
func Marginals(c Curve) (MarginalCurve, error) {
	if len(c.Points) < 2 {
		return MarginalCurve{}, fmt.Errorf("%w: curve for %q has %d point(s)", ErrInsufficientPoints, c.Record, len(c.Points))
	}
	out := make([]Marginal, len(c.Points)-1)
	for i := 1; i < len(c.Points); i++ {
		prev, cur := c.Points[i-1], c.Points[i]
		delta := cur.Value - prev.Value
		out[i-1] = Marginal{
			Level:   cur.Level,
			Value:   delta,
			PerUnit: delta / float64(cur.Level-prev.Level),
		}
	}
	return MarginalCurve{Record: c.Record, Index: c.Index, Points: out}, nil
}
