package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/yourusername/baseline-edge/internal/database"
	"github.com/yourusername/baseline-edge/internal/models"
)

const errScanPrediction = "failed to scan prediction: %w"

// PostgresPredictionRepository implements PredictionRepository for PostgreSQL
type PostgresPredictionRepository struct {
	db *database.DB
}

// NewPostgresPredictionRepository creates a new prediction repository
func NewPostgresPredictionRepository(db *database.DB) PredictionRepository {
	return &PostgresPredictionRepository{db: db}
}

// InsertBatch inserts a run's predictions in one round trip
func (r *PostgresPredictionRepository) InsertBatch(ctx context.Context, runID uuid.UUID, preds []models.Prediction) error {
	if len(preds) == 0 {
		return nil
	}

	query := `
		INSERT INTO predictions (
			id, run_id, match_id, actual_date, surface, designated_player, opponent, model,
			predicted_prob, elo_prob, simulator_prob, simulator_half_width, rating_source,
			stat_source_designated, stat_source_opponent, date_source, market_implied_prob,
			market_fair_prob, odds_designated, odds_opponent, market_margin, actual_outcome, excluded, exclusion_reason
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)
	`

	batch := &pgx.Batch{}
	for i := range preds {
		p := &preds[i]
		batch.Queue(query,
			p.ID, runID, p.MatchID, nullableDate(p.ActualDate), string(p.Surface), p.DesignatedPlayer,
			p.Opponent, string(p.Model), p.PredictedProb, p.EloProb, p.SimulatorProb, p.SimulatorHalfWidth,
			string(p.RatingSource), p.StatSourceDesignated, p.StatSourceOpponent, string(p.DateSource),
			p.MarketImpliedProb, p.MarketFairProb, p.OddsDesignated, p.OddsOpponent, p.MarketMargin,
			p.ActualOutcome, p.Excluded, p.ExclusionReason,
		)
	}

	return execBatch(ctx, r.db, batch, "insert predictions")
}

// GetByRun retrieves a run's predictions in replay order
func (r *PostgresPredictionRepository) GetByRun(ctx context.Context, runID uuid.UUID) ([]models.Prediction, error) {
	query := `
		SELECT id, match_id, actual_date, surface, designated_player, opponent, model,
		       predicted_prob, elo_prob, simulator_prob, simulator_half_width, rating_source,
		       COALESCE(stat_source_designated, ''), COALESCE(stat_source_opponent, ''), date_source,
		       market_implied_prob, market_fair_prob, odds_designated, odds_opponent, market_margin, actual_outcome,
		       excluded, COALESCE(exclusion_reason, '')
		FROM predictions
		WHERE run_id = $1
		ORDER BY actual_date ASC NULLS FIRST, match_id ASC
	`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query predictions: %w", err)
	}
	defer rows.Close()

	var preds []models.Prediction
	for rows.Next() {
		var (
			p                                        models.Prediction
			actualDate                               *time.Time
			surface, model, ratingSource, dateSource string
		)
		if err := rows.Scan(
			&p.ID, &p.MatchID, &actualDate, &surface, &p.DesignatedPlayer, &p.Opponent, &model,
			&p.PredictedProb, &p.EloProb, &p.SimulatorProb, &p.SimulatorHalfWidth, &ratingSource,
			&p.StatSourceDesignated, &p.StatSourceOpponent, &dateSource,
			&p.MarketImpliedProb, &p.MarketFairProb, &p.OddsDesignated, &p.OddsOpponent, &p.MarketMargin,
			&p.ActualOutcome, &p.Excluded, &p.ExclusionReason,
		); err != nil {
			return nil, fmt.Errorf(errScanPrediction, err)
		}
		if actualDate != nil {
			p.ActualDate = models.Day(*actualDate)
		}
		p.Surface = models.Surface(surface)
		p.Model = models.PredictionModel(model)
		p.RatingSource = models.RatingSource(ratingSource)
		p.DateSource = models.DateSource(dateSource)
		preds = append(preds, p)
	}
	return preds, rows.Err()
}
