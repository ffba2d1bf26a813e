package repository

import (
	"context"
	"fmt"

	"github.com/yourusername/baseline-edge/internal/database"
	"github.com/yourusername/baseline-edge/internal/models"
)

// Repositories holds all repository implementations
type Repositories struct {
	db         *database.DB
	Match      MatchRepository
	Run        RunRepository
	Prediction PredictionRepository
	Bet        BetRepository
	Rating     RatingRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		db:         db,
		Match:      NewPostgresMatchRepository(db),
		Run:        NewPostgresRunRepository(db),
		Prediction: NewPostgresPredictionRepository(db),
		Bet:        NewPostgresBetRepository(db),
		Rating:     NewPostgresRatingRepository(db),
	}, nil
}

// SaveRun replaces a run and everything it produced in one transaction. Run ids are
// deterministic, so saving the same run twice leaves a single copy.
func (r *Repositories) SaveRun(ctx context.Context, run *models.ReplayRun, preds []models.Prediction, bets []models.Bet, ratings []models.RatingSnapshot) error {
	return r.db.WithTransaction(ctx, func(txCtx context.Context) error {
		if err := r.Run.Delete(txCtx, run.ID); err != nil {
			return err
		}
		if err := r.Run.Save(txCtx, run); err != nil {
			return err
		}
		if err := r.Prediction.InsertBatch(txCtx, run.ID, preds); err != nil {
			return err
		}
		if err := r.Bet.InsertBatch(txCtx, run.ID, bets); err != nil {
			return err
		}
		return r.Rating.SaveSnapshots(txCtx, run.ID, ratings)
	})
}
