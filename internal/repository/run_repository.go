package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/baseline-edge/internal/database"
	"github.com/yourusername/baseline-edge/internal/models"
)

const (
	errScanRun = "failed to scan replay run: %w"
	runColumns = `id, created_at, cutoff_policy, model, matches, predictions, excluded,
		brier, log_loss, ece, flat_roi, kelly_roi, leakage_violations, summary`
)

// PostgresRunRepository implements RunRepository for PostgreSQL
type PostgresRunRepository struct {
	db *database.DB
}

// NewPostgresRunRepository creates a new replay run repository
func NewPostgresRunRepository(db *database.DB) RunRepository {
	return &PostgresRunRepository{db: db}
}

// Save inserts a replay run
func (r *PostgresRunRepository) Save(ctx context.Context, run *models.ReplayRun) error {
	query := `
		INSERT INTO replay_runs (` + runColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`

	var summary []byte
	if len(run.Summary) > 0 {
		summary = run.Summary
	}
	_, err := r.db.Exec(ctx, query,
		run.ID, run.CreatedAt, run.CutoffPolicy, string(run.Model), run.Matches, run.Predictions, run.Excluded,
		run.Brier, run.LogLoss, run.ECE, run.FlatROI, run.KellyROI, run.LeakageViolations, summary,
	)
	if err != nil {
		return fmt.Errorf("failed to save replay run: %w", err)
	}
	return nil
}

// GetByID retrieves a replay run by ID
func (r *PostgresRunRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.ReplayRun, error) {
	query := `SELECT ` + runColumns + ` FROM replay_runs WHERE id = $1`

	run, err := scanRun(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get replay run: %w", err)
	}
	return run, nil
}

// GetLatest retrieves the most recent replay runs
func (r *PostgresRunRepository) GetLatest(ctx context.Context, limit int) ([]*models.ReplayRun, error) {
	query := `SELECT ` + runColumns + ` FROM replay_runs ORDER BY created_at DESC, id ASC LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest replay runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.ReplayRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanRun, err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Delete removes a run; predictions, bets and rating snapshots cascade
func (r *PostgresRunRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.Exec(ctx, "DELETE FROM replay_runs WHERE id = $1", id); err != nil {
		return fmt.Errorf("failed to delete replay run: %w", err)
	}
	return nil
}

func scanRun(row pgx.Row) (*models.ReplayRun, error) {
	var (
		run     models.ReplayRun
		model   string
		summary []byte
	)
	err := row.Scan(
		&run.ID, &run.CreatedAt, &run.CutoffPolicy, &model, &run.Matches, &run.Predictions, &run.Excluded,
		&run.Brier, &run.LogLoss, &run.ECE, &run.FlatROI, &run.KellyROI, &run.LeakageViolations, &summary,
	)
	if err != nil {
		return nil, err
	}
	run.Model = models.PredictionModel(model)
	if len(summary) > 0 {
		run.Summary = summary
	}
	return &run, nil
}
