package validation

import (
	"strings"
	"testing"

	"github.com/sigmaun/prepo/pkg/grid"
	"github.com/sigmaun/prepo/pkg/savings"
)

func TestGridWarnings(t *testing.T) {
	tests := []struct {
		name     string
		spec     grid.Spec
		expected []string
	}{
		{
			name:     "Clean grid",
			spec:     grid.Spec{Min: 0, Max: 20000, Step: 50},
			expected: nil,
		},
		{
			name:     "Single level",
			spec:     grid.Spec{Min: 100, Max: 100, Step: 50},
			expected: []string{"single level"},
		},
		{
			name:     "Uneven step",
			spec:     grid.Spec{Min: 0, Max: 1000, Step: 300},
			expected: []string{"stops at 900"},
		},
		{
			name:     "Very large grid",
			spec:     grid.Spec{Min: 0, Max: 1000000, Step: 1},
			expected: []string{"may take a long time"},
		},
		{
			name:     "Invalid grid is left to Validate",
			spec:     grid.Spec{Min: 0, Max: 10, Step: 0},
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			warnings := GridWarnings(tt.spec)
			if len(warnings) != len(tt.expected) {
				t.Fatalf("GridWarnings() = %v, expected %d warning(s)", warnings, len(tt.expected))
			}
			for i, fragment := range tt.expected {
				if !strings.Contains(warnings[i], fragment) {
					t.Errorf("warning %q does not mention %q", warnings[i], fragment)
				}
			}
		})
	}
}

func TestModelWarnings(t *testing.T) {
	if w := ModelWarnings(savings.NamePrepoSampled, 50); len(w) != 1 {
		t.Errorf("expected a small-sample warning, got %v", w)
	}
	if w := ModelWarnings(savings.NamePrepoSampled, 1000); len(w) != 0 {
		t.Errorf("unexpected warnings %v", w)
	}
	if w := ModelWarnings(savings.NamePrepo, 10); len(w) != 0 {
		t.Errorf("sample size should not matter for the quadrature model, got %v", w)
	}
}
