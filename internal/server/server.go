package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/sigmaun/prepo/internal/config"
	"github.com/sigmaun/prepo/internal/engine"
	"github.com/sigmaun/prepo/internal/store"
	"github.com/sigmaun/prepo/pkg/allocation"
	"github.com/sigmaun/prepo/pkg/calibration"
	"github.com/sigmaun/prepo/pkg/constants"
	"github.com/sigmaun/prepo/pkg/curve"
	"github.com/sigmaun/prepo/pkg/optimization"
	"github.com/sigmaun/prepo/pkg/output"
	"github.com/sigmaun/prepo/pkg/savings"
	"go.uber.org/zap"
)

type handler struct {
	logger        *zap.Logger
	maxUploadSize int64
	maxGridPoints int
	workers       int
	version       string
	archive       *store.Store
}

// NewHandler constructs the HTTP handler that serves the curves API. archive
// may be nil, in which case runs are not persisted.
func NewHandler(logger *zap.Logger, cfg *Config, archive *store.Store, version string) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = &Config{}
		_ = cfg.normalize()
	}

	maxUploadSize := cfg.UploadSizeBytes()
	if maxUploadSize <= 0 {
		maxUploadSize = constants.DefaultMaxUploadSizeBytes
	}

	maxGridPoints := cfg.MaxGridPoints
	if maxGridPoints <= 0 {
		maxGridPoints = constants.DefaultMaxGridPoints
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	h := &handler{
		logger:        logger,
		maxUploadSize: maxUploadSize,
		maxGridPoints: maxGridPoints,
		workers:       cfg.Workers,
		version:       trimmedVersion,
		archive:       archive,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	// cors treats an empty origin list as "*", so it is only mounted when
	// origins are configured.
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler)
	}

	r.Post("/api/curves", h.handleCurves)
	r.Get("/api/models", h.handleModels)
	r.Get("/api/version", h.handleVersion)

	return r
}

type curvesResponse struct {
	Model           string                 `json:"model"`
	Levels          []int                  `json:"levels"`
	Results         []recordResult         `json:"results"`
	Allocation      *allocation.Table      `json:"allocation,omitempty"`
	AllocationError string                 `json:"allocationError,omitempty"`
	Optima          []optimization.Summary `json:"optima,omitempty"`
	Warnings        []string               `json:"warnings,omitempty"`
	CSV             string                 `json:"csv"`
	RunID           int64                  `json:"runId,omitempty"`
	Duration        string                 `json:"duration"`
}

type recordResult struct {
	Record    string           `json:"record"`
	Index     int              `json:"index"`
	Points    []curve.Point    `json:"points,omitempty"`
	Marginals []curve.Marginal `json:"marginals,omitempty"`
	Warnings  []string         `json:"warnings,omitempty"`
	Error     string           `json:"error,omitempty"`
}

func (h *handler) handleCurves(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCurves"
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds limit of %d bytes", h.maxUploadSize), op)
			return
		}
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("failed to parse upload: %v", err), op)
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "missing calibration file", op)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			h.logger.Warn("failed to close uploaded file",
				zap.String("op", op),
				zap.Error(closeErr),
			)
		}
	}()

	conf, err := h.configFromForm(r)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	if err := conf.Validate(); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error(), op)
		return
	}
	if points := conf.Grid.Count(); points > h.maxGridPoints {
		h.respondError(w, http.StatusBadRequest,
			fmt.Sprintf("grid %v has %d levels, limit is %d", conf.Grid, points, h.maxGridPoints), op)
		return
	}

	records, err := calibration.ReadCSV(file)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, fmt.Sprintf("error reading calibration data, %v", err), op)
		return
	}
	records = calibration.ApplyShared(records, conf.Calibration.SharedFields)

	report, err := engine.Run(r.Context(), h.logger, conf, records)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalidConfiguration) || errors.Is(err, engine.ErrNoRecords) {
			status = http.StatusBadRequest
		}
		h.respondError(w, status, fmt.Sprintf("failed to compute curves: %v", err), op)
		return
	}

	response, err := buildResponse(conf, report)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, err.Error(), op)
		return
	}

	if h.archive != nil {
		runID, err := h.archive.SaveReport(r.Context(), report)
		if err != nil {
			h.logger.Warn("failed to archive run",
				zap.String("op", op),
				zap.Error(err),
			)
		}
		response.RunID = runID
	}

	elapsed := time.Since(start)
	response.Duration = elapsed.String()

	h.logger.Info("curves computed",
		zap.String("op", op),
		zap.String("model", report.Model),
		zap.Int("records", len(report.Results)),
		zap.Int("failed", len(report.Failed())),
		zap.Duration("duration", elapsed),
	)

	h.writeJSON(w, http.StatusOK, response)
}

// configFromForm overlays the request's form fields on the default run
// configuration.
func (h *handler) configFromForm(r *http.Request) (config.Configuration, error) {
	conf := config.Default()
	conf.Workers = h.workers

	ints := []struct {
		name   string
		target *int
	}{
		{"min", &conf.Grid.Min},
		{"max", &conf.Grid.Max},
		{"step", &conf.Grid.Step},
		{"sampleSize", &conf.Model.SampleSize},
		{"quadraturePoints", &conf.Model.QuadraturePoints},
	}
	for _, field := range ints {
		raw := strings.TrimSpace(r.FormValue(field.name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return conf, fmt.Errorf("invalid %s %q: must be an integer", field.name, raw)
		}
		*field.target = v
	}

	if raw := strings.TrimSpace(r.FormValue("seed")); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return conf, fmt.Errorf("invalid seed %q: must be a non-negative integer", raw)
		}
		conf.Model.Seed = seed
	}
	if name := strings.TrimSpace(r.FormValue("model")); name != "" {
		conf.Model.Name = name
	}
	conf.Model.Gross = coerceBool(r.FormValue("gross"))
	if raw := r.FormValue("allocation"); raw != "" {
		conf.Allocation = coerceBool(raw)
	}
	if raw := r.FormValue("optimize"); raw != "" {
		conf.Optimize = coerceBool(raw)
	}
	if raw := strings.TrimSpace(r.FormValue("sharedFields")); raw != "" {
		conf.Calibration.SharedFields = splitList(raw)
	}
	return conf, nil
}

func buildResponse(conf config.Configuration, report *engine.Report) (curvesResponse, error) {
	levels, err := conf.Grid.Levels()
	if err != nil {
		return curvesResponse{}, err
	}

	var csvBuf bytes.Buffer
	if err := output.CsvFormat(&csvBuf, report); err != nil {
		return curvesResponse{}, fmt.Errorf("failed to render CSV: %w", err)
	}

	response := curvesResponse{
		Model:      report.Model,
		Levels:     levels,
		Results:    make([]recordResult, 0, len(report.Results)),
		Allocation: report.Allocation,
		Optima:     report.Optima,
		Warnings:   conf.ValidateConfiguration(),
		CSV:        csvBuf.String(),
	}
	if report.AllocationErr != nil {
		response.AllocationError = report.AllocationErr.Error()
	}

	for _, res := range report.Results {
		item := recordResult{Record: res.Record.Label, Index: res.Record.Index}
		if !res.OK() {
			item.Error = res.Err.Error()
		} else {
			item.Points = res.Curve.Points
			item.Marginals = res.Marginals.Points
			item.Warnings = res.Diagnostics.Warnings
		}
		response.Results = append(response.Results, item)
	}
	return response, nil
}

func (h *handler) handleModels(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"models":  savings.Names(),
		"default": constants.DefaultModel,
		"fields":  savings.PrepoFields,
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) respondError(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("curves request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func coerceBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
