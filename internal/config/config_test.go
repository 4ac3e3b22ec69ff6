package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sigmaun/prepo/pkg/constants"
	"github.com/sigmaun/prepo/pkg/grid"
	"github.com/sigmaun/prepo/pkg/savings"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		wantError  bool
	}{
		{
			name:       "Non-existent config file",
			configPath: "nonexistent.yaml",
			wantError:  true,
		},
		{
			name:       "Example config",
			configPath: filepath.Join("..", "..", constants.ExampleConfigFile),
			wantError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfiguration(tt.configPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadConfiguration() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadConfiguration() error = %v", err)
				return
			}
			if config == nil {
				t.Errorf("LoadConfiguration() returned nil config")
			}
		})
	}
}

func TestLoadConfigurationValues(t *testing.T) {
	path := writeConfig(t, `
calibration:
  file: items.csv
  sharedFields: [m_T, h]
grid:
  min: 100
  max: 5000
  step: 100
model:
  name: prepo-sampled
  sampleSize: 2000
  seed: 7
  gross: true
workers: 4
allocation: false
logging:
  level: debug
  format: console
output:
  format: csv
  file: out.csv
`)

	conf, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if conf.Calibration.File != "items.csv" {
		t.Errorf("calibration file = %q", conf.Calibration.File)
	}
	if len(conf.Calibration.SharedFields) != 2 || conf.Calibration.SharedFields[1] != "h" {
		t.Errorf("shared fields = %v", conf.Calibration.SharedFields)
	}
	if conf.Grid != (grid.Spec{Min: 100, Max: 5000, Step: 100}) {
		t.Errorf("grid = %v", conf.Grid)
	}
	if conf.Model.Name != savings.NamePrepoSampled || conf.Model.SampleSize != 2000 || conf.Model.Seed != 7 || !conf.Model.Gross {
		t.Errorf("model = %+v", conf.Model)
	}
	// Unset keys keep their defaults.
	if conf.Model.QuadraturePoints != constants.DefaultQuadraturePoints {
		t.Errorf("quadrature points = %d, expected default %d", conf.Model.QuadraturePoints, constants.DefaultQuadraturePoints)
	}
	if conf.Workers != 4 || conf.Allocation {
		t.Errorf("workers = %d, allocation = %v", conf.Workers, conf.Allocation)
	}
	if conf.Logging.Level != "debug" || conf.Logging.Format != "console" {
		t.Errorf("logging = %+v", conf.Logging)
	}
	if conf.Output.Format != constants.OutputFormatCSV || conf.Output.File != "out.csv" {
		t.Errorf("output = %+v", conf.Output)
	}
	if conf.Output.Database != constants.DefaultDatabaseFile {
		t.Errorf("database = %q, expected default", conf.Output.Database)
	}
}

func TestLoadConfigurationDefaults(t *testing.T) {
	conf, err := LoadConfiguration(writeConfig(t, "calibration:\n  file: items.csv\n"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	expected := Default()
	if conf.Grid != expected.Grid {
		t.Errorf("grid = %v, expected %v", conf.Grid, expected.Grid)
	}
	if conf.Model != expected.Model {
		t.Errorf("model = %+v, expected %+v", conf.Model, expected.Model)
	}
	if !conf.Allocation || conf.Workers != 1 {
		t.Errorf("allocation = %v, workers = %d", conf.Allocation, conf.Workers)
	}
	if len(conf.Calibration.SharedFields) != 1 || conf.Calibration.SharedFields[0] != "m_T" {
		t.Errorf("shared fields = %v", conf.Calibration.SharedFields)
	}
}

func TestLoadConfigurationEnvironmentOverride(t *testing.T) {
	t.Setenv("PREPO_GRID_MAX", "900")
	t.Setenv("PREPO_MODEL_NAME", savings.NameCappedLinear)

	conf, err := LoadConfiguration(writeConfig(t, "grid:\n  min: 0\n  max: 100\n  step: 10\n"))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if conf.Grid.Max != 900 {
		t.Errorf("grid max = %d, expected environment value 900", conf.Grid.Max)
	}
	if conf.Model.Name != savings.NameCappedLinear {
		t.Errorf("model name = %q, expected environment value", conf.Model.Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Configuration)
		wantErr bool
	}{
		{
			name:    "Defaults are valid",
			mutate:  func(c *Configuration) {},
			wantErr: false,
		},
		{
			name:    "Zero step",
			mutate:  func(c *Configuration) { c.Grid.Step = 0 },
			wantErr: true,
		},
		{
			name:    "Inverted grid",
			mutate:  func(c *Configuration) { c.Grid.Min, c.Grid.Max = 500, 100 },
			wantErr: true,
		},
		{
			name:    "Unknown model",
			mutate:  func(c *Configuration) { c.Model.Name = "magic" },
			wantErr: true,
		},
		{
			name:    "Negative workers",
			mutate:  func(c *Configuration) { c.Workers = -1 },
			wantErr: true,
		},
		{
			name:    "Bad output format",
			mutate:  func(c *Configuration) { c.Output.Format = "json" },
			wantErr: true,
		},
		{
			name:    "Empty model name falls back to default",
			mutate:  func(c *Configuration) { c.Model.Name = "" },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conf := Default()
			tt.mutate(&conf)
			err := conf.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidConfiguration) {
					t.Errorf("Validate() = %v, expected ErrInvalidConfiguration", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error = %v", err)
			}
		})
	}
}

func TestValidateConfigurationWarnings(t *testing.T) {
	conf := Default()
	if warnings := conf.ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("expected no warnings for defaults, got %v", warnings)
	}

	conf.Model.Name = savings.NamePrepoSampled
	conf.Model.SampleSize = 10
	conf.Model.Gross = true
	conf.Grid = grid.Spec{Min: 0, Max: 1000, Step: 300}

	warnings := conf.ValidateConfiguration()
	if len(warnings) != 3 {
		t.Fatalf("expected 3 warnings, got %v", warnings)
	}
	joined := strings.Join(warnings, "\n")
	for _, fragment := range []string{"stops at 900", "Sample size 10", "gross"} {
		if !strings.Contains(joined, fragment) {
			t.Errorf("warnings do not mention %q: %v", fragment, warnings)
		}
	}
}

func TestNewModel(t *testing.T) {
	for _, name := range savings.Names() {
		conf := Default()
		conf.Model.Name = name
		model, err := conf.NewModel()
		if err != nil {
			t.Errorf("NewModel(%s) error = %v", name, err)
			continue
		}
		if model.Name() != name {
			t.Errorf("NewModel(%s).Name() = %s", name, model.Name())
		}
	}
}
