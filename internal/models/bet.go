package models

import (
	"time"

	"github.com/google/uuid"
)

// Staking names the staking policy that sized a bet
type Staking string

const (
	StakingFlat  Staking = "flat"
	StakingKelly Staking = "kelly"
)

// Bet is derived from a prediction and a staking policy; it is never mutated
type Bet struct {
	ID          uuid.UUID `db:"id" json:"id"`
	MatchID     string    `db:"match_id" json:"match_id"`
	ActualDate  time.Time `db:"actual_date" json:"actual_date"`
	Player      string    `db:"player" json:"player"`
	Staking     Staking   `db:"staking" json:"staking"`
	Stake       float64   `db:"stake" json:"stake"`
	OddsTaken   float64   `db:"odds_taken" json:"odds_taken"`
	Probability float64   `db:"probability" json:"probability"`
	Edge        float64   `db:"edge" json:"edge"`
	Won         bool      `db:"won" json:"won"`
	Profit      float64   `db:"profit" json:"profit"`
}

// ROI returns the bet's return on stake as a fraction
func (b *Bet) ROI() float64 {
	if b.Stake == 0 {
		return 0
	}
	return b.Profit / b.Stake
}
