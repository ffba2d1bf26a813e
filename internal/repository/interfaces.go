package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/baseline-edge/internal/models"
)

// MatchRepository defines operations for historical match records
type MatchRepository interface {
	UpsertBatch(ctx context.Context, matches []models.Match) error
	GetByID(ctx context.Context, id string) (*models.Match, error)
	// LoadMatches returns matches whose tournament started on or before end and whose
	// play date is not before start. Zero bounds are open.
	LoadMatches(ctx context.Context, start, end time.Time) ([]models.Match, error)
	Count(ctx context.Context) (int, error)
}

// RunRepository defines operations for replay run headlines
type RunRepository interface {
	Save(ctx context.Context, run *models.ReplayRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ReplayRun, error)
	GetLatest(ctx context.Context, limit int) ([]*models.ReplayRun, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// PredictionRepository defines operations for per-match predictions of a run
type PredictionRepository interface {
	InsertBatch(ctx context.Context, runID uuid.UUID, preds []models.Prediction) error
	GetByRun(ctx context.Context, runID uuid.UUID) ([]models.Prediction, error)
}

// BetRepository defines operations for simulated bets of a run
type BetRepository interface {
	InsertBatch(ctx context.Context, runID uuid.UUID, bets []models.Bet) error
	// GetByRun returns the run's bets; an empty staking returns every policy
	GetByRun(ctx context.Context, runID uuid.UUID, staking models.Staking) ([]models.Bet, error)
}

// RatingRepository defines operations for end-of-run rating snapshots
type RatingRepository interface {
	SaveSnapshots(ctx context.Context, runID uuid.UUID, snapshots []models.RatingSnapshot) error
	GetSnapshots(ctx context.Context, runID uuid.UUID) ([]models.RatingSnapshot, error)
}

// SnapshotWriter stores a completed run's ratings and predictions
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, run *models.ReplayRun, ratings []models.RatingSnapshot, preds []models.Prediction) error
}
