// Package config defines the run configuration and the functions for loading
// it from YAML, the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sigmaun/prepo/pkg/constants"
	"github.com/sigmaun/prepo/pkg/grid"
	"github.com/sigmaun/prepo/pkg/savings"
	"github.com/sigmaun/prepo/pkg/validation"
	"github.com/spf13/viper"
)

// ErrInvalidConfiguration is returned by Validate for unusable settings.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Configuration holds all configuration for a curve run.
type Configuration struct {
	Calibration CalibrationConfig `yaml:"calibration,omitempty"`
	Grid        grid.Spec         `yaml:"grid,omitempty"`
	Model       ModelConfig       `yaml:"model,omitempty"`
	Workers     int               `yaml:"workers,omitempty"`
	Allocation  bool              `yaml:"allocation,omitempty"`
	Optimize    bool              `yaml:"optimize,omitempty"`
	Logging     LoggingConfig     `yaml:"logging,omitempty"`
	Output      OutputConfig      `yaml:"output,omitempty"`
}

// CalibrationConfig locates the calibration table.
type CalibrationConfig struct {
	File string `yaml:"file,omitempty"`
	// SharedFields are read from the first record and applied to every record.
	SharedFields []string `yaml:"sharedFields,omitempty"`
}

// ModelConfig selects and tunes the savings model.
type ModelConfig struct {
	Name             string `yaml:"name,omitempty"`
	QuadraturePoints int    `yaml:"quadraturePoints,omitempty"`
	SampleSize       int    `yaml:"sampleSize,omitempty"`
	Seed             uint64 `yaml:"seed,omitempty"`
	Gross            bool   `yaml:"gross,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output configuration options
type OutputConfig struct {
	Format   string `yaml:"format,omitempty"`   // pretty, csv, sqlite
	File     string `yaml:"file,omitempty"`     // stdout when empty
	Database string `yaml:"database,omitempty"` // sqlite archive path
}

// Default returns the configuration used when nothing is set.
func Default() Configuration {
	return Configuration{
		Calibration: CalibrationConfig{
			SharedFields: append([]string(nil), constants.DefaultSharedFields...),
		},
		Grid: grid.Spec{
			Min:  constants.DefaultGridMin,
			Max:  constants.DefaultGridMax,
			Step: constants.DefaultGridStep,
		},
		Model: ModelConfig{
			Name:             constants.DefaultModel,
			QuadraturePoints: constants.DefaultQuadraturePoints,
			SampleSize:       constants.DefaultSampleSize,
			Seed:             constants.DefaultSeed,
		},
		Workers:    1,
		Allocation: true,
		Optimize:   true,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Output: OutputConfig{
			Format:   constants.OutputFormatPretty,
			Database: constants.DefaultDatabaseFile,
		},
	}
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. Any key can be overridden from the environment with
// the PREPO_ prefix, e.g. PREPO_GRID_MAX or PREPO_MODEL_NAME.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yml")
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	return &configuration, nil
}

// setDefaults registers every key so that environment overrides apply even
// when the file omits the key.
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("calibration.file", d.Calibration.File)
	v.SetDefault("calibration.sharedFields", d.Calibration.SharedFields)
	v.SetDefault("grid.min", d.Grid.Min)
	v.SetDefault("grid.max", d.Grid.Max)
	v.SetDefault("grid.step", d.Grid.Step)
	v.SetDefault("model.name", d.Model.Name)
	v.SetDefault("model.quadraturePoints", d.Model.QuadraturePoints)
	v.SetDefault("model.sampleSize", d.Model.SampleSize)
	v.SetDefault("model.seed", d.Model.Seed)
	v.SetDefault("model.gross", d.Model.Gross)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("allocation", d.Allocation)
	v.SetDefault("optimize", d.Optimize)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.outputFile", d.Logging.OutputFile)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.file", d.Output.File)
	v.SetDefault("output.database", d.Output.Database)
}

// Validate rejects configurations a run cannot start from.
func (c *Configuration) Validate() error {
	if err := c.Grid.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if _, err := c.NewModel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidConfiguration, c.Workers)
	}
	if c.Model.QuadraturePoints < 0 || c.Model.SampleSize < 0 {
		return fmt.Errorf("%w: quadraturePoints and sampleSize must be non-negative", ErrInvalidConfiguration)
	}
	if c.Output.Format != "" {
		if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
		}
	}
	return nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string
	warnings = append(warnings, validation.GridWarnings(c.Grid)...)
	warnings = append(warnings, validation.ModelWarnings(c.Model.Name, c.Model.SampleSize)...)
	if c.Allocation && c.Model.Gross {
		warnings = append(warnings, "Allocation over gross savings ignores the holding cost of prepositioned stock")
	}
	return warnings
}

// SavingsOptions translates the model section into savings.Options.
func (c *Configuration) SavingsOptions() savings.Options {
	return savings.Options{
		QuadraturePoints: c.Model.QuadraturePoints,
		SampleSize:       c.Model.SampleSize,
		Seed:             c.Model.Seed,
		Gross:            c.Model.Gross,
	}
}

// NewModel builds the configured savings model.
func (c *Configuration) NewModel() (savings.Model, error) {
	name := c.Model.Name
	if name == "" {
		name = constants.DefaultModel
	}
	return savings.New(name, c.SavingsOptions())
}
