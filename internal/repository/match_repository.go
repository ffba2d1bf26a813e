package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/yourusername/baseline-edge/internal/database"
	"github.com/yourusername/baseline-edge/internal/models"
)

const (
	errScanMatch = "failed to scan match: %w"
	matchColumns = `id, tournament_id, tournament_name, tournament_date, round, actual_date, surface, best_of,
		winner, loser, score, winner_serve, loser_serve, odds_winner, odds_loser, odds_source`
)

// PostgresMatchRepository implements MatchRepository for PostgreSQL
type PostgresMatchRepository struct {
	db *database.DB
}

// NewPostgresMatchRepository creates a new match repository
func NewPostgresMatchRepository(db *database.DB) MatchRepository {
	return &PostgresMatchRepository{db: db}
}

// UpsertBatch inserts or replaces matches by id
func (r *PostgresMatchRepository) UpsertBatch(ctx context.Context, matches []models.Match) error {
	if len(matches) == 0 {
		return nil
	}

	query := `
		INSERT INTO matches (` + matchColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			tournament_id = EXCLUDED.tournament_id, tournament_name = EXCLUDED.tournament_name,
			tournament_date = EXCLUDED.tournament_date, round = EXCLUDED.round,
			actual_date = EXCLUDED.actual_date, surface = EXCLUDED.surface, best_of = EXCLUDED.best_of,
			winner = EXCLUDED.winner, loser = EXCLUDED.loser, score = EXCLUDED.score,
			winner_serve = EXCLUDED.winner_serve, loser_serve = EXCLUDED.loser_serve,
			odds_winner = EXCLUDED.odds_winner, odds_loser = EXCLUDED.odds_loser, odds_source = EXCLUDED.odds_source
	`

	batch := &pgx.Batch{}
	for i := range matches {
		m := &matches[i]
		score, err := marshalJSON(m.Score)
		if err != nil {
			return fmt.Errorf("match %s: %w", m.ID, err)
		}
		winnerServe, err := marshalJSON(m.WinnerServe)
		if err != nil {
			return fmt.Errorf("match %s: %w", m.ID, err)
		}
		loserServe, err := marshalJSON(m.LoserServe)
		if err != nil {
			return fmt.Errorf("match %s: %w", m.ID, err)
		}

		var oddsWinner, oddsLoser *float64
		var oddsSource *string
		if m.Odds != nil {
			oddsWinner, oddsLoser, oddsSource = &m.Odds.Winner, &m.Odds.Loser, &m.Odds.Source
		}

		batch.Queue(query,
			m.ID, m.TournamentID, m.TournamentName, m.TournamentDate, m.Round, nullableDate(m.ActualDate),
			string(m.Surface), m.BestOf, m.Winner, m.Loser, score, winnerServe, loserServe,
			oddsWinner, oddsLoser, oddsSource,
		)
	}

	return execBatch(ctx, r.db, batch, "upsert matches")
}

// GetByID retrieves a match by ID
func (r *PostgresMatchRepository) GetByID(ctx context.Context, id string) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE id = $1`

	m, err := scanMatch(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get match: %w", err)
	}
	return m, nil
}

// LoadMatches returns the matches in a date range ordered by tournament date and id
func (r *PostgresMatchRepository) LoadMatches(ctx context.Context, start, end time.Time) ([]models.Match, error) {
	query := `
		SELECT ` + matchColumns + `
		FROM matches
		WHERE ($1::date IS NULL OR COALESCE(actual_date, tournament_date) >= $1::date)
		  AND ($2::date IS NULL OR tournament_date <= $2::date)
		ORDER BY tournament_date ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, nullableDate(start), nullableDate(end))
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf(errScanMatch, err)
		}
		matches = append(matches, *m)
	}
	return matches, rows.Err()
}

// Count returns the number of stored matches
func (r *PostgresMatchRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM matches").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches: %w", err)
	}
	return n, nil
}

func scanMatch(row pgx.Row) (*models.Match, error) {
	var (
		m                              models.Match
		surface                        string
		actualDate                     *time.Time
		score, winnerServe, loserServe []byte
		oddsWinner, oddsLoser          *float64
		oddsSource                     *string
	)
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.TournamentName, &m.TournamentDate, &m.Round, &actualDate,
		&surface, &m.BestOf, &m.Winner, &m.Loser, &score, &winnerServe, &loserServe,
		&oddsWinner, &oddsLoser, &oddsSource,
	)
	if err != nil {
		return nil, err
	}

	m.Surface = models.Surface(surface)
	if actualDate != nil {
		m.ActualDate = models.Day(*actualDate)
	}
	m.TournamentDate = models.Day(m.TournamentDate)
	if err := unmarshalJSON(score, &m.Score); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(winnerServe, &m.WinnerServe); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(loserServe, &m.LoserServe); err != nil {
		return nil, err
	}
	if oddsWinner != nil && oddsLoser != nil {
		m.Odds = &models.MarketOdds{Winner: *oddsWinner, Loser: *oddsLoser}
		if oddsSource != nil {
			m.Odds.Source = *oddsSource
		}
	}
	return &m, nil
}

func marshalJSON(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json column: %w", err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func unmarshalJSON(data []byte, v interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to decode json column: %w", err)
	}
	return nil
}

// nullableDate maps the zero time to SQL NULL
func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	d := models.Day(t)
	return &d
}

func execBatch(ctx context.Context, db *database.DB, batch *pgx.Batch, op string) error {
	results := db.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("failed to %s (row %d): %w", op, i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	return nil
}
