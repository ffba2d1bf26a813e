package models

import "time"

// RatingSnapshot is the inspectable view of one player's rating record
type RatingSnapshot struct {
	Player         string              `db:"player" json:"player"`
	Overall        float64             `db:"overall_rating" json:"overall_rating"`
	Surface        map[Surface]float64 `db:"surface_rating" json:"surface_rating"`
	Matches        int                 `db:"matches_played" json:"matches_played"`
	SurfaceMatches map[Surface]int     `db:"surface_matches" json:"surface_matches"`
	LastPlayed     time.Time           `db:"last_played" json:"last_played"`
}
