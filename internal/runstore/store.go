// Package runstore persists inference runs to sqlite: the serialized
// result plus a per-layer summary table for querying past runs without
// re-parsing JSON.
package runstore

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/framelens/internal/infer"
	"github.com/banshee-data/framelens/internal/infer/hypothesis"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Run is one persisted inference run.
type Run struct {
	RunID            string          `json:"run_id"`
	CreatedUnixNanos int64           `json:"created_unix_nanos"`
	Source           string          `json:"source"`
	PduCount         int             `json:"pdu_count"`
	TotalBytes       int             `json:"total_bytes"`
	MaxDepth         int             `json:"max_depth"`
	TopK             int             `json:"top_k"`
	LayerCount       int             `json:"layer_count"`
	ResultJSON       json.RawMessage `json:"result_json"`
}

// LayerSummary is the queryable per-layer row.
type LayerSummary struct {
	RunID             string  `json:"run_id"`
	Depth             int     `json:"depth"`
	HypothesisType    string  `json:"hypothesis_type"`
	HypothesisJSON    string  `json:"hypothesis_json"`
	TotalBits         float64 `json:"total_bits"`
	ModelBits         float64 `json:"model_bits"`
	DataBits          float64 `json:"data_bits"`
	ParseSuccessRatio float64 `json:"parse_success_ratio"`
	AlternativesCount int     `json:"alternatives_count"`
}

// Store wraps the sqlite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the run store at path and applies
// pending migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("runstore: open %s: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("runstore: %q: %w", pragma, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrateUp() error {
	subFS, err := fs.Sub(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("runstore: embedded migrations: %w", err)
	}
	sourceDriver, err := iofs.New(subFS, ".")
	if err != nil {
		return fmt.Errorf("runstore: create iofs source driver: %w", err)
	}
	driver, err := migratesqlite.WithInstance(s.db, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("runstore: create sqlite migrate driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("runstore: create migrate instance: %w", err)
	}
	// No m.Close() here: the sqlite driver's Close() would close the
	// sql.DB we manage ourselves.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("runstore: migration up failed: %w", err)
	}
	return nil
}

// SaveRun persists a result with engine settings under a freshly
// generated run id. Returns the run id.
func (s *Store) SaveRun(result *infer.InferenceResult, engine *infer.Engine) (string, error) {
	runID := uuid.New().String()

	resultJSON, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("runstore: marshal result: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("runstore: begin tx: %w", err)
	}
	defer tx.Rollback()

	err = retryOnBusy(func() error {
		_, err := tx.Exec(`
			INSERT INTO inference_run
				(run_id, created_unix_nanos, source, pdu_count, total_bytes, max_depth, top_k, layer_count, result_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, time.Now().UnixNano(), result.Corpus.Meta.Source,
			result.Corpus.Len(), result.Corpus.TotalBytes(),
			engine.MaxDepth, engine.TopK, len(result.Layers), string(resultJSON))
		return err
	})
	if err != nil {
		return "", fmt.Errorf("runstore: insert run: %w", err)
	}

	for depth, layer := range result.Layers {
		hypJSON, err := json.Marshal(hypothesis.Describe(layer.Hypothesis))
		if err != nil {
			return "", fmt.Errorf("runstore: marshal hypothesis at depth %d: %w", depth, err)
		}
		d, l := depth, layer
		err = retryOnBusy(func() error {
			_, err := tx.Exec(`
				INSERT INTO inference_layer
					(run_id, depth, hypothesis_type, hypothesis_json, total_bits, model_bits, data_bits, parse_success_ratio, alternatives_count)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, d, l.Hypothesis.Name(), string(hypJSON),
				l.Score.TotalBits, l.Score.Breakdown.MdlModelBits, l.Score.Breakdown.MdlDataBits,
				l.Score.Breakdown.ParseSuccessRatio, len(l.AllHypotheses))
			return err
		})
		if err != nil {
			return "", fmt.Errorf("runstore: insert layer %d: %w", depth, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("runstore: commit: %w", err)
	}
	return runID, nil
}

// GetRun loads one run by id.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT run_id, created_unix_nanos, source, pdu_count, total_bytes, max_depth, top_k, layer_count, result_json
		FROM inference_run WHERE run_id = ?`, runID)

	var r Run
	var resultJSON string
	if err := row.Scan(&r.RunID, &r.CreatedUnixNanos, &r.Source, &r.PduCount, &r.TotalBytes,
		&r.MaxDepth, &r.TopK, &r.LayerCount, &resultJSON); err != nil {
		return nil, fmt.Errorf("runstore: get run %s: %w", runID, err)
	}
	r.ResultJSON = json.RawMessage(resultJSON)
	return &r, nil
}

// ListRuns returns up to limit runs, most recent first, without the
// result blob.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, created_unix_nanos, source, pdu_count, total_bytes, max_depth, top_k, layer_count
		FROM inference_run ORDER BY created_unix_nanos DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("runstore: list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.RunID, &r.CreatedUnixNanos, &r.Source, &r.PduCount, &r.TotalBytes,
			&r.MaxDepth, &r.TopK, &r.LayerCount); err != nil {
			return nil, fmt.Errorf("runstore: scan run: %w", err)
		}
		runs = append(runs, &r)
	}
	return runs, rows.Err()
}

// LayersForRun returns the per-layer summaries of a run in depth order.
func (s *Store) LayersForRun(runID string) ([]*LayerSummary, error) {
	rows, err := s.db.Query(`
		SELECT run_id, depth, hypothesis_type, hypothesis_json, total_bits, model_bits, data_bits, parse_success_ratio, alternatives_count
		FROM inference_layer WHERE run_id = ? ORDER BY depth`, runID)
	if err != nil {
		return nil, fmt.Errorf("runstore: layers for run %s: %w", runID, err)
	}
	defer rows.Close()

	var layers []*LayerSummary
	for rows.Next() {
		var l LayerSummary
		if err := rows.Scan(&l.RunID, &l.Depth, &l.HypothesisType, &l.HypothesisJSON,
			&l.TotalBits, &l.ModelBits, &l.DataBits, &l.ParseSuccessRatio, &l.AlternativesCount); err != nil {
			return nil, fmt.Errorf("runstore: scan layer: %w", err)
		}
		layers = append(layers, &l)
	}
	return layers, rows.Err()
}

// retryOnBusy retries an operation on SQLITE_BUSY with exponential
// backoff: 10ms, 20ms, 40ms, 80ms.
func retryOnBusy(operation func() error) error {
	const maxRetries = 5
	const baseDelay = 10 * time.Millisecond

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		err = operation()
		if err == nil {
			return nil
		}
		if !isSQLiteBusy(err) {
			return err
		}
		if attempt < maxRetries-1 {
			time.Sleep(baseDelay * (1 << uint(attempt)))
		}
	}
	return err
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
