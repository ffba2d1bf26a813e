package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/yourusername/baseline-edge/internal/models"
)

const sqliteDateLayout = "2006-01-02"

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		cutoff_policy TEXT NOT NULL,
		model TEXT NOT NULL,
		matches INTEGER NOT NULL,
		predictions INTEGER NOT NULL,
		excluded INTEGER NOT NULL,
		brier REAL,
		log_loss REAL,
		ece REAL,
		flat_roi REAL,
		kelly_roi REAL,
		leakage_violations INTEGER NOT NULL,
		summary TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS ratings (
		run_id TEXT NOT NULL,
		player TEXT NOT NULL,
		overall_rating REAL NOT NULL,
		surface_rating TEXT NOT NULL,
		matches_played INTEGER NOT NULL,
		surface_matches TEXT NOT NULL,
		last_played TEXT,
		PRIMARY KEY (run_id, player)
	)`,
	`CREATE TABLE IF NOT EXISTS predictions (
		run_id TEXT NOT NULL,
		match_id TEXT NOT NULL,
		actual_date TEXT,
		designated_player TEXT NOT NULL,
		opponent TEXT NOT NULL,
		model TEXT NOT NULL,
		predicted_prob REAL NOT NULL,
		elo_prob REAL NOT NULL,
		simulator_prob REAL,
		rating_source TEXT NOT NULL,
		date_source TEXT NOT NULL,
		actual_outcome INTEGER NOT NULL,
		excluded INTEGER NOT NULL,
		exclusion_reason TEXT,
		PRIMARY KEY (run_id, match_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ratings_overall ON ratings (run_id, overall_rating DESC)`,
}

// SQLiteSnapshotWriter keeps run snapshots in a single portable SQLite file
type SQLiteSnapshotWriter struct {
	db     *sql.DB
	path   string
	logger *logrus.Entry
}

// NewSQLiteSnapshotWriter opens or creates the snapshot file and its tables
func NewSQLiteSnapshotWriter(path string, logger *logrus.Logger) (*SQLiteSnapshotWriter, error) {
	if logger == nil {
		logger = logrus.New()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot database: %w", err)
	}
	// a single connection keeps an in-memory database alive across calls
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping snapshot database: %w", err)
	}
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to create snapshot tables: %w", err)
		}
	}

	return &SQLiteSnapshotWriter{
		db:     db,
		path:   path,
		logger: logger.WithField("component", "snapshot"),
	}, nil
}

// Close closes the snapshot file
func (w *SQLiteSnapshotWriter) Close() error {
	return w.db.Close()
}

// WriteSnapshot replaces any earlier snapshot of the same run
func (w *SQLiteSnapshotWriter) WriteSnapshot(ctx context.Context, run *models.ReplayRun, ratings []models.RatingSnapshot, preds []models.Prediction) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin snapshot transaction: %w", err)
	}
	if err := writeSnapshot(ctx, tx, run, ratings, preds); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"run_id":      run.ID.String(),
		"path":        w.path,
		"ratings":     len(ratings),
		"predictions": len(preds),
	}).Info("Snapshot written")
	return nil
}

func writeSnapshot(ctx context.Context, tx *sql.Tx, run *models.ReplayRun, ratings []models.RatingSnapshot, preds []models.Prediction) error {
	id := run.ID.String()
	for _, table := range []string{"runs", "ratings", "predictions"} {
		column := "run_id"
		if table == "runs" {
			column = "id"
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, column), id); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, cutoff_policy, model, matches, predictions, excluded,
			brier, log_loss, ece, flat_roi, kelly_roi, leakage_violations, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, run.CreatedAt.UTC().Format(time.RFC3339), run.CutoffPolicy, string(run.Model),
		run.Matches, run.Predictions, run.Excluded, run.Brier, run.LogLoss, run.ECE,
		run.FlatROI, run.KellyROI, run.LeakageViolations, string(run.Summary),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	ratingStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO ratings (run_id, player, overall_rating, surface_rating, matches_played, surface_matches, last_played)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare rating insert: %w", err)
	}
	defer ratingStmt.Close()

	for _, s := range ratings {
		surface, err := json.Marshal(s.Surface)
		if err != nil {
			return fmt.Errorf("player %s: %w", s.Player, err)
		}
		surfaceMatches, err := json.Marshal(s.SurfaceMatches)
		if err != nil {
			return fmt.Errorf("player %s: %w", s.Player, err)
		}
		if _, err := ratingStmt.ExecContext(ctx, id, s.Player, s.Overall, string(surface), s.Matches,
			string(surfaceMatches), sqliteDate(s.LastPlayed)); err != nil {
			return fmt.Errorf("failed to insert rating for %s: %w", s.Player, err)
		}
	}

	predStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO predictions (run_id, match_id, actual_date, designated_player, opponent, model,
			predicted_prob, elo_prob, simulator_prob, rating_source, date_source, actual_outcome,
			excluded, exclusion_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare prediction insert: %w", err)
	}
	defer predStmt.Close()

	for i := range preds {
		p := &preds[i]
		var simProb sql.NullFloat64
		if p.SimulatorProb != nil {
			simProb = sql.NullFloat64{Float64: *p.SimulatorProb, Valid: true}
		}
		if _, err := predStmt.ExecContext(ctx, id, p.MatchID, sqliteDate(p.ActualDate), p.DesignatedPlayer,
			p.Opponent, string(p.Model), p.PredictedProb, p.EloProb, simProb, string(p.RatingSource),
			string(p.DateSource), p.ActualOutcome, p.Excluded, p.ExclusionReason); err != nil {
			return fmt.Errorf("failed to insert prediction for %s: %w", p.MatchID, err)
		}
	}
	return nil
}

// Runs lists the stored runs, newest first
func (w *SQLiteSnapshotWriter) Runs(ctx context.Context) ([]*models.ReplayRun, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT id, created_at, cutoff_policy, model, matches, predictions, excluded,
			brier, log_loss, ece, flat_roi, kelly_roi, leakage_violations, summary
		FROM runs ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ReplayRun
	for rows.Next() {
		var (
			run                models.ReplayRun
			id, created, model string
			summary            sql.NullString
		)
		if err := rows.Scan(&id, &created, &run.CutoffPolicy, &model, &run.Matches, &run.Predictions,
			&run.Excluded, &run.Brier, &run.LogLoss, &run.ECE, &run.FlatROI, &run.KellyROI,
			&run.LeakageViolations, &summary); err != nil {
			return nil, fmt.Errorf(errScanRun, err)
		}
		if run.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		if run.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
			return nil, fmt.Errorf("invalid run timestamp %q: %w", created, err)
		}
		run.Model = models.PredictionModel(model)
		if summary.Valid && summary.String != "" {
			run.Summary = json.RawMessage(summary.String)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// Ratings returns a run's rating snapshots, strongest player first
func (w *SQLiteSnapshotWriter) Ratings(ctx context.Context, runID uuid.UUID) ([]models.RatingSnapshot, error) {
	rows, err := w.db.QueryContext(ctx, `
		SELECT player, overall_rating, surface_rating, matches_played, surface_matches, last_played
		FROM ratings WHERE run_id = ?
		ORDER BY overall_rating DESC, player ASC`, runID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	var snapshots []models.RatingSnapshot
	for rows.Next() {
		var (
			s                       models.RatingSnapshot
			surface, surfaceMatches string
			lastPlayed              sql.NullString
		)
		if err := rows.Scan(&s.Player, &s.Overall, &surface, &s.Matches, &surfaceMatches, &lastPlayed); err != nil {
			return nil, fmt.Errorf(errScanRating, err)
		}
		if err := unmarshalJSON([]byte(surface), &s.Surface); err != nil {
			return nil, err
		}
		if err := unmarshalJSON([]byte(surfaceMatches), &s.SurfaceMatches); err != nil {
			return nil, err
		}
		if lastPlayed.Valid && lastPlayed.String != "" {
			if s.LastPlayed, err = time.Parse(sqliteDateLayout, lastPlayed.String); err != nil {
				return nil, fmt.Errorf("invalid last played date %q: %w", lastPlayed.String, err)
			}
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}

// Predictions returns how many predictions and exclusions a run stored
func (w *SQLiteSnapshotWriter) Predictions(ctx context.Context, runID uuid.UUID) (total, excluded int, err error) {
	err = w.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(excluded), 0) FROM predictions WHERE run_id = ?", runID.String(),
	).Scan(&total, &excluded)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return total, excluded, nil
}

func sqliteDate(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: models.Day(t).Format(sqliteDateLayout), Valid: true}
}
