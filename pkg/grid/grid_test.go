package grid

import (
	"errors"
	"math"
	"testing"
)

func TestLevels(t *testing.T) {
	tests := []struct {
		name     string
		spec     Spec
		expected []int
	}{
		{"Max included when divisible", Spec{Min: 0, Max: 100, Step: 50}, []int{0, 50, 100}},
		{"Max excluded when not divisible", Spec{Min: 0, Max: 120, Step: 50}, []int{0, 50, 100}},
		{"Offset minimum", Spec{Min: 10, Max: 40, Step: 15}, []int{10, 25, 40}},
		{"Single point", Spec{Min: 7, Max: 7, Step: 3}, []int{7}},
		{"Step larger than range", Spec{Min: 0, Max: 5, Step: 10}, []int{0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			levels, err := tt.spec.Levels()
			if err != nil {
				t.Fatalf("Levels() error = %v", err)
			}
			if len(levels) != len(tt.expected) {
				t.Fatalf("Levels() returned %d points, expected %d", len(levels), len(tt.expected))
			}
			for i := range levels {
				if levels[i] != tt.expected[i] {
					t.Errorf("Levels()[%d] = %d, expected %d", i, levels[i], tt.expected[i])
				}
			}
		})
	}
}

func TestLevelsProperties(t *testing.T) {
	for min := 0; min <= 30; min += 7 {
		for span := 0; span <= 60; span += 11 {
			for step := 1; step <= 13; step += 3 {
				spec := Spec{Min: min, Max: min + span, Step: step}
				levels, err := spec.Levels()
				if err != nil {
					t.Fatalf("%v: unexpected error %v", spec, err)
				}
				if want := span/step + 1; len(levels) != want {
					t.Errorf("%v: got %d levels, expected %d", spec, len(levels), want)
				}
				if levels[0] != min {
					t.Errorf("%v: first level %d, expected %d", spec, levels[0], min)
				}
				for i := 1; i < len(levels); i++ {
					if levels[i]-levels[i-1] != step {
						t.Errorf("%v: levels %d and %d differ by %d", spec, levels[i-1], levels[i], levels[i]-levels[i-1])
					}
				}
				last := levels[len(levels)-1]
				if last > spec.Max || last+step <= spec.Max {
					t.Errorf("%v: last level %d is not the largest value <= max", spec, last)
				}
				if spec.Last() != last {
					t.Errorf("%v: Last() = %d, expected %d", spec, spec.Last(), last)
				}
			}
		}
	}
}

func TestPaperScenarioGrid(t *testing.T) {
	spec, err := New(0, 20000, 50)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	levels, _ := spec.Levels()
	if len(levels) != 401 {
		t.Fatalf("expected 401 levels, got %d", len(levels))
	}
	if levels[0] != 0 || levels[400] != 20000 {
		t.Errorf("unexpected end points %d and %d", levels[0], levels[400])
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		spec      Spec
		expectErr bool
	}{
		{"Valid", Spec{Min: 0, Max: 10, Step: 1}, false},
		{"Min equals max", Spec{Min: 5, Max: 5, Step: 1}, false},
		{"Zero step", Spec{Min: 0, Max: 10, Step: 0}, true},
		{"Negative step", Spec{Min: 0, Max: 10, Step: -5}, true},
		{"Min above max", Spec{Min: 11, Max: 10, Step: 1}, true},
		{"Negative min", Spec{Min: -10, Max: 10, Step: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.expectErr {
				if !errors.Is(err, ErrInvalidGridSpec) {
					t.Errorf("Validate() error = %v, expected ErrInvalidGridSpec", err)
				}
				levels, levelsErr := tt.spec.Levels()
				if levelsErr == nil || levels != nil {
					t.Errorf("Levels() should fail without output, got %v, %v", levels, levelsErr)
				}
				if tt.spec.Count() != 0 {
					t.Errorf("Count() = %d for invalid spec, expected 0", tt.spec.Count())
				}
			} else if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestCountSaturates(t *testing.T) {
	tests := []struct {
		name     string
		spec     Spec
		expected int
	}{
		{"Full int range", Spec{Min: 0, Max: math.MaxInt, Step: 1}, math.MaxInt},
		{"One below the full range", Spec{Min: 1, Max: math.MaxInt, Step: 1}, math.MaxInt},
		{"Large step", Spec{Min: 0, Max: math.MaxInt, Step: math.MaxInt / 2}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Count(); got != tt.expected {
				t.Errorf("Count() = %d, expected %d", got, tt.expected)
			}
		})
	}
}
