package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/sigmaun/prepo/internal/config"
	"github.com/sigmaun/prepo/internal/engine"
	"github.com/sigmaun/prepo/internal/store"
	"github.com/sigmaun/prepo/pkg/constants"
	"github.com/sigmaun/prepo/pkg/output"
	"github.com/sigmaun/prepo/pkg/validation"
	"go.uber.org/zap"
)

func main() {
	// Process command line flags first to get config location
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before the configuration")
	inputFile := flag.String("input", "", "calibration CSV override")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, sqlite")
	outputFile := flag.String("output", "", "output file override (stdout when empty; database path for sqlite)")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load %s\", \"error\": \"%v\"}\n", *envFile, err)
		os.Exit(1)
	}

	// Load the config file to get logging configuration
	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	// Initialize logging based on config and CLI override
	logger, err := config.NewLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// CLI overrides take precedence over config
	if *inputFile != "" {
		conf.Calibration.File = *inputFile
	} else if conf.Calibration.File != "" && !filepath.IsAbs(conf.Calibration.File) {
		// Relative calibration paths are resolved against the config file.
		conf.Calibration.File = filepath.Join(filepath.Dir(*configLocation), conf.Calibration.File)
	}
	if *outputFormatFlag != "" {
		conf.Output.Format = *outputFormatFlag
	}
	if conf.Output.Format == "" {
		conf.Output.Format = constants.OutputFormatPretty
	}

	if err := validation.ValidateOutputFormat(conf.Output.Format); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	// Validate configuration and display any warnings
	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	records, err := engine.LoadCalibration(*conf)
	if err != nil {
		logger.Fatal("failed to load calibration",
			zap.String("op", "main"),
			zap.String("file", conf.Calibration.File),
			zap.Error(err),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	report, err := engine.Run(ctx, logger, *conf, records)
	if err != nil {
		logger.Fatal("failed to compute savings curves",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	if len(report.Succeeded()) == 0 {
		logger.Fatal("every record failed",
			zap.String("op", "main"),
			zap.Int("records", len(report.Results)),
		)
	}

	if err := writeReport(logger, conf, *outputFile, report); err != nil {
		logger.Fatal("failed to write output",
			zap.String("op", "main"),
			zap.String("format", conf.Output.Format),
			zap.Error(err),
		)
	}
}

// writeReport handles output in the configured format.
func writeReport(logger *zap.Logger, conf *config.Configuration, override string, report *engine.Report) error {
	if conf.Output.Format == constants.OutputFormatSQLite {
		path := conf.Output.Database
		if override != "" {
			path = override
		}
		archive, err := store.Open(path, logger)
		if err != nil {
			return err
		}
		defer func() {
			_ = archive.Close()
		}()
		runID, err := archive.SaveReport(context.Background(), report)
		if err != nil {
			return err
		}
		fmt.Printf("saved run %d to %s\n", runID, path)
		return nil
	}

	path := conf.Output.File
	if override != "" {
		path = override
	}
	var w io.Writer = os.Stdout
	if path != "" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer func() {
			_ = file.Close()
		}()
		w = file
	}

	switch conf.Output.Format {
	case constants.OutputFormatCSV:
		if err := output.CsvFormat(w, report); err != nil {
			return err
		}
		if report.Allocation != nil && path != "" {
			return writeAllocation(path, report)
		}
		return nil
	default:
		return output.PrettyFormat(w, report)
	}
}

// writeAllocation writes the allocation table next to the curves file as
// <name>_allocation.csv.
func writeAllocation(curvesPath string, report *engine.Report) error {
	ext := filepath.Ext(curvesPath)
	path := strings.TrimSuffix(curvesPath, ext) + "_allocation" + ext
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = file.Close()
	}()
	return output.WriteAllocationCSV(file, *report.Allocation)
}
