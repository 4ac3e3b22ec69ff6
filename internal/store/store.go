// Package store archives curve runs in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/sigmaun/prepo/internal/engine"
	"github.com/sigmaun/prepo/pkg/curve"
	"github.com/sigmaun/prepo/pkg/grid"
	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrNotFound is returned when a requested run or curve does not exist.
var ErrNotFound = errors.New("not found")

// Run is the summary row of an archived run.
type Run struct {
	ID        int64
	CreatedAt time.Time
	Model     string
	Spec      grid.Spec
	Duration  time.Duration
}

// Failure is an archived per-record error.
type Failure struct {
	Record string
	Index  int
	Error  string
}

// Store is a SQLite-backed archive of curve runs.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens the SQLite database at path, sets recommended pragmas and
// applies pending migrations.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set sqlite pragmas: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite database: %w", err)
	}

	if err := migrate(db, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Debug("opened results archive",
		zap.String("op", "store.Open"),
		zap.String("path", path),
	)
	return &Store{db: db, logger: logger}, nil
}

// migrate applies pending migrations with a goose Provider bound to db.
func migrate(db *sql.DB, logger *zap.Logger) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys,
		goose.WithDisableGlobalRegistry(true),
	)
	if err != nil {
		return fmt.Errorf("create goose provider: %w", err)
	}

	results, err := provider.Up(context.Background())
	if err != nil {
		return fmt.Errorf("run goose up migrations: %w", err)
	}
	for _, res := range results {
		logger.Info("applied migration",
			zap.String("op", "store.migrate"),
			zap.String("path", res.Source.Path),
			zap.Int64("version", res.Source.Version),
			zap.Duration("duration", res.Duration),
		)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveReport archives a report in one transaction and returns the run ID.
func (s *Store) SaveReport(ctx context.Context, report *engine.Report) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (created_at, model, grid_min, grid_max, grid_step, duration_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339), report.Model,
		report.Spec.Min, report.Spec.Max, report.Spec.Step, report.Duration.Milliseconds(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read run id: %w", err)
	}

	points := 0
	for _, result := range report.Results {
		if !result.OK() {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO run_failures (run_id, record, record_index, error) VALUES (?, ?, ?, ?)`,
				runID, result.Record.Label, result.Record.Index, result.Err.Error(),
			); err != nil {
				return 0, fmt.Errorf("insert failure for %s: %w", result.Record.ID(), err)
			}
			continue
		}
		n, err := insertCurve(ctx, tx, runID, result)
		if err != nil {
			return 0, err
		}
		points += n
	}

	if report.Allocation != nil {
		for _, row := range report.Allocation.Rows {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO allocation_rows (run_id, threshold, total_spend) VALUES (?, ?, ?)`,
				runID, row.Threshold, row.Total,
			); err != nil {
				return 0, fmt.Errorf("insert allocation row: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run: %w", err)
	}

	s.logger.Info("archived run",
		zap.String("op", "store.SaveReport"),
		zap.Int64("run", runID),
		zap.Int("points", points),
		zap.Int("failures", len(report.Failed())),
	)
	return runID, nil
}

func insertCurve(ctx context.Context, tx *sql.Tx, runID int64, result curve.Result) (int, error) {
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO curve_points (run_id, record, record_index, level, savings, marginal, marginal_per_unit) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare curve insert: %w", err)
	}
	defer func() {
		_ = stmt.Close()
	}()

	for i, point := range result.Curve.Points {
		var marginal, perUnit sql.NullFloat64
		if i > 0 {
			m := result.Marginals.Points[i-1]
			marginal = sql.NullFloat64{Float64: m.Value, Valid: true}
			perUnit = sql.NullFloat64{Float64: m.PerUnit, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, runID, result.Curve.Record, result.Curve.Index,
			point.Level, point.Value, marginal, perUnit); err != nil {
			return 0, fmt.Errorf("insert curve point %s/%d: %w", result.Record.ID(), point.Level, err)
		}
	}
	return len(result.Curve.Points), nil
}

// LoadCurve reads back the archived curve of the record at index in a run.
func (s *Store) LoadCurve(ctx context.Context, runID int64, index int) (curve.Curve, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record, level, savings FROM curve_points WHERE run_id = ? AND record_index = ? ORDER BY level`,
		runID, index)
	if err != nil {
		return curve.Curve{}, fmt.Errorf("query curve: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	c := curve.Curve{Index: index}
	for rows.Next() {
		var p curve.Point
		if err := rows.Scan(&c.Record, &p.Level, &p.Value); err != nil {
			return curve.Curve{}, fmt.Errorf("scan curve point: %w", err)
		}
		c.Points = append(c.Points, p)
	}
	if err := rows.Err(); err != nil {
		return curve.Curve{}, fmt.Errorf("read curve: %w", err)
	}
	if len(c.Points) == 0 {
		return curve.Curve{}, fmt.Errorf("curve %d in run %d: %w", index, runID, ErrNotFound)
	}
	return c, nil
}

// LoadFailures returns the archived per-record errors of a run.
func (s *Store) LoadFailures(ctx context.Context, runID int64) ([]Failure, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record, record_index, error FROM run_failures WHERE run_id = ? ORDER BY record_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Record, &f.Index, &f.Error); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		failures = append(failures, f)
	}
	return failures, rows.Err()
}

// Runs lists archived runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, model, grid_min, grid_max, grid_step, duration_ms FROM runs ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			createdAt  string
			durationMS int64
		)
		if err := rows.Scan(&r.ID, &createdAt, &r.Model, &r.Spec.Min, &r.Spec.Max, &r.Spec.Step, &durationMS); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parse run time: %w", err)
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
