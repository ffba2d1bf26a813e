package models

import (
	"time"

	"github.com/google/uuid"
)

// RatingSource reflects how much real rating data backed a prediction
type RatingSource string

const (
	RatingSourceSurface RatingSource = "surface-specific"
	RatingSourceBlended RatingSource = "blended"
	RatingSourceOverall RatingSource = "overall"
	RatingSourceDefault RatingSource = "default"
)

// PredictionModel names the model whose probability is the headline prediction
type PredictionModel string

const (
	ModelElo       PredictionModel = "elo"
	ModelSimulator PredictionModel = "simulator"
	ModelBlend     PredictionModel = "blend"
)

// Prediction is created once per evaluated match and never mutated afterwards
type Prediction struct {
	ID                   uuid.UUID       `db:"id" json:"id"`
	MatchID              string          `db:"match_id" json:"match_id"`
	ActualDate           time.Time       `db:"actual_date" json:"actual_date"`
	Surface              Surface         `db:"surface" json:"surface"`
	DesignatedPlayer     string          `db:"designated_player" json:"designated_player"`
	Opponent             string          `db:"opponent" json:"opponent"`
	Model                PredictionModel `db:"model" json:"model"`
	PredictedProb        float64         `db:"predicted_prob_for_designated_player" json:"predicted_prob_for_designated_player"`
	EloProb              float64         `db:"elo_prob" json:"elo_prob"`
	SimulatorProb        *float64        `db:"simulator_prob" json:"simulator_prob,omitempty"`
	SimulatorHalfWidth   *float64        `db:"simulator_half_width" json:"simulator_half_width,omitempty"`
	RatingSource         RatingSource    `db:"predicted_rating_source" json:"predicted_rating_source"`
	StatSourceDesignated string          `db:"stat_source_designated" json:"stat_source_designated,omitempty"`
	StatSourceOpponent   string          `db:"stat_source_opponent" json:"stat_source_opponent,omitempty"`
	DateSource           DateSource      `db:"date_source" json:"date_source"`
	MarketImpliedProb    *float64        `db:"market_implied_prob" json:"market_implied_prob,omitempty"`
	MarketFairProb       *float64        `db:"market_fair_prob" json:"market_fair_prob,omitempty"`
	OddsDesignated       *float64        `db:"odds_designated" json:"odds_designated,omitempty"`
	OddsOpponent         *float64        `db:"odds_opponent" json:"odds_opponent,omitempty"`
	MarketMargin         *float64        `db:"market_margin" json:"market_margin,omitempty"`
	ActualOutcome        int             `db:"actual_outcome" json:"actual_outcome"`
	Excluded             bool            `db:"excluded" json:"excluded"`
	ExclusionReason      string          `db:"exclusion_reason" json:"exclusion_reason,omitempty"`
}

// HasOdds reports whether both market prices are available
func (p *Prediction) HasOdds() bool {
	return p.OddsDesignated != nil && p.OddsOpponent != nil
}

// Correct reports whether the favourite according to the prediction won
func (p *Prediction) Correct() bool {
	predicted := 0
	if p.PredictedProb > 0.5 {
		predicted = 1
	}
	return predicted == p.ActualOutcome
}
