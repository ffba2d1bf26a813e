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

const errScanBet = "failed to scan bet: %w"

// PostgresBetRepository implements BetRepository for PostgreSQL
type PostgresBetRepository struct {
	db *database.DB
}

// NewPostgresBetRepository creates a new bet repository
func NewPostgresBetRepository(db *database.DB) BetRepository {
	return &PostgresBetRepository{db: db}
}

// InsertBatch bulk-loads a run's bets with COPY
func (b *PostgresBetRepository) InsertBatch(ctx context.Context, runID uuid.UUID, bets []models.Bet) error {
	if len(bets) == 0 {
		return nil
	}

	columns := []string{
		"id", "run_id", "match_id", "actual_date", "player", "staking", "stake",
		"odds_taken", "probability", "edge", "won", "profit",
	}
	rows := make([][]interface{}, len(bets))
	for i, bet := range bets {
		rows[i] = []interface{}{
			bet.ID, runID, bet.MatchID, nullableDate(bet.ActualDate), bet.Player, string(bet.Staking),
			bet.Stake, bet.OddsTaken, bet.Probability, bet.Edge, bet.Won, bet.Profit,
		}
	}

	count, err := b.db.CopyFrom(ctx, pgx.Identifier{"bets"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to batch insert bets: %w", err)
	}
	if count != int64(len(bets)) {
		return fmt.Errorf("inserted %d rows, expected %d", count, len(bets))
	}
	return nil
}

// GetByRun retrieves a run's bets in placement order
func (b *PostgresBetRepository) GetByRun(ctx context.Context, runID uuid.UUID, staking models.Staking) ([]models.Bet, error) {
	query := `
		SELECT id, match_id, actual_date, player, staking, stake, odds_taken, probability, edge, won, profit
		FROM bets
		WHERE run_id = $1 AND ($2::text = '' OR staking = $2::text)
		ORDER BY staking ASC, actual_date ASC NULLS FIRST, match_id ASC
	`

	rows, err := b.db.Query(ctx, query, runID, string(staking))
	if err != nil {
		return nil, fmt.Errorf("failed to query bets by run: %w", err)
	}
	defer rows.Close()

	var bets []models.Bet
	for rows.Next() {
		var (
			bet        models.Bet
			actualDate *time.Time
			kind       string
		)
		if err := rows.Scan(
			&bet.ID, &bet.MatchID, &actualDate, &bet.Player, &kind, &bet.Stake,
			&bet.OddsTaken, &bet.Probability, &bet.Edge, &bet.Won, &bet.Profit,
		); err != nil {
			return nil, fmt.Errorf(errScanBet, err)
		}
		if actualDate != nil {
			bet.ActualDate = models.Day(*actualDate)
		}
		bet.Staking = models.Staking(kind)
		bets = append(bets, bet)
	}
	return bets, rows.Err()
}
