// Package testutil provides common utility functions for testing.
package testutil

import (
	"github.com/sigmaun/prepo/pkg/curve"
)

// FindResult finds a batch result by record label.
// Returns a pointer to the result if found, nil otherwise.
func FindResult(results []curve.Result, label string) *curve.Result {
	for i := range results {
		if results[i].Record.Label == label {
			return &results[i]
		}
	}
	return nil
}

// PointAt returns the curve point at level, or nil when the curve has none.
func PointAt(c curve.Curve, level int) *curve.Point {
	for i := range c.Points {
		if c.Points[i].Level == level {
			return &c.Points[i]
		}
	}
	return nil
}
