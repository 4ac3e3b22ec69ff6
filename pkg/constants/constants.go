// Package constants provides shared constants for the prepo application.
package constants

// Grid defaults mirror the range the planning team usually runs.
const (
	// DefaultGridMin is the default lowest prepo level
	DefaultGridMin = 0

	// DefaultGridMax is the default highest prepo level
	DefaultGridMax = 20000

	// DefaultGridStep is the default distance between consecutive prepo levels
	DefaultGridStep = 50

	// LargeGridWarningPoints is the grid size above which a configuration warning is raised
	LargeGridWarningPoints = 100000
)

// Model defaults
const (
	// DefaultModel is the savings model used when none is configured
	DefaultModel = "prepo"

	// DefaultQuadraturePoints is the Gauss-Legendre node count per integration segment
	DefaultQuadraturePoints = 64

	// DefaultSampleSize is the Monte Carlo sample size for the sampled model
	DefaultSampleSize = 1000

	// MinRecommendedSampleSize is the sample size below which a warning is raised
	MinRecommendedSampleSize = 100

	// DefaultSeed is the random seed re-applied on every sampled evaluation
	DefaultSeed = 100
)

// Calibration field names that are read once from the first record.
var DefaultSharedFields = []string{"m_T"}

// Output format constants
const (
	// OutputFormatPretty is the human-readable output format
	OutputFormatPretty = "pretty"

	// OutputFormatCSV is the CSV output format
	OutputFormatCSV = "csv"

	// OutputFormatSQLite archives results into a SQLite database
	OutputFormatSQLite = "sqlite"
)

// Configuration file constants
const (
	// DefaultConfigFile is the default configuration file name
	DefaultConfigFile = "config.yaml"

	// ExampleConfigFile is the example configuration file name
	ExampleConfigFile = "config.yaml.example"

	// DefaultServerConfigFile is the default server configuration file name
	DefaultServerConfigFile = "server-config.yaml"

	// EnvPrefix is the prefix for environment variable overrides
	EnvPrefix = "PREPO"

	// DefaultDatabaseFile is the SQLite archive used when none is configured
	DefaultDatabaseFile = "prepo.db"
)

// Server configuration defaults
const (
	// DefaultServerAddress is the default HTTP listen address
	DefaultServerAddress = ":8080"

	// DefaultMaxUploadSizeBytes is the default maximum upload size for calibration files (1 MB)
	DefaultMaxUploadSizeBytes int64 = 1024 * 1024

	// DefaultMaxGridPoints is the largest grid a single request may evaluate
	DefaultMaxGridPoints = 100000
)

// Numeric constants
const (
	// ShapeTolerance is the slack allowed when checking curve monotonicity
	ShapeTolerance = 1e-9
)
