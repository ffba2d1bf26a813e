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

const errScanRating = "failed to scan rating snapshot: %w"

// PostgresRatingRepository implements RatingRepository for PostgreSQL
type PostgresRatingRepository struct {
	db *database.DB
}

// NewPostgresRatingRepository creates a new rating snapshot repository
func NewPostgresRatingRepository(db *database.DB) RatingRepository {
	return &PostgresRatingRepository{db: db}
}

// SaveSnapshots upserts one row per player for the run
func (r *PostgresRatingRepository) SaveSnapshots(ctx context.Context, runID uuid.UUID, snapshots []models.RatingSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}

	query := `
		INSERT INTO rating_snapshots (run_id, player, overall_rating, surface_rating, matches_played, surface_matches, last_played)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id, player) DO UPDATE SET
			overall_rating = EXCLUDED.overall_rating, surface_rating = EXCLUDED.surface_rating,
			matches_played = EXCLUDED.matches_played, surface_matches = EXCLUDED.surface_matches,
			last_played = EXCLUDED.last_played
	`

	batch := &pgx.Batch{}
	for _, s := range snapshots {
		surface, err := marshalJSON(s.Surface)
		if err != nil {
			return fmt.Errorf("player %s: %w", s.Player, err)
		}
		surfaceMatches, err := marshalJSON(s.SurfaceMatches)
		if err != nil {
			return fmt.Errorf("player %s: %w", s.Player, err)
		}
		if surface == nil {
			surface = []byte("{}")
		}
		if surfaceMatches == nil {
			surfaceMatches = []byte("{}")
		}
		batch.Queue(query, runID, s.Player, s.Overall, surface, s.Matches, surfaceMatches, nullableDate(s.LastPlayed))
	}

	return execBatch(ctx, r.db, batch, "save rating snapshots")
}

// GetSnapshots retrieves the run's ratings, strongest player first
func (r *PostgresRatingRepository) GetSnapshots(ctx context.Context, runID uuid.UUID) ([]models.RatingSnapshot, error) {
	query := `
		SELECT player, overall_rating, surface_rating, matches_played, surface_matches, last_played
		FROM rating_snapshots
		WHERE run_id = $1
		ORDER BY overall_rating DESC, player ASC
	`

	rows, err := r.db.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query rating snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []models.RatingSnapshot
	for rows.Next() {
		var (
			s                       models.RatingSnapshot
			surface, surfaceMatches []byte
			lastPlayed              *time.Time
		)
		if err := rows.Scan(&s.Player, &s.Overall, &surface, &s.Matches, &surfaceMatches, &lastPlayed); err != nil {
			return nil, fmt.Errorf(errScanRating, err)
		}
		if err := unmarshalJSON(surface, &s.Surface); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(surfaceMatches, &s.SurfaceMatches); err != nil {
			return nil, err
		}
		if lastPlayed != nil {
			s.LastPlayed = models.Day(*lastPlayed)
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, rows.Err()
}
