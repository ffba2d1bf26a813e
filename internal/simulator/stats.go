// Package simulator estimates match win probabilities from serve and return statistics.
package simulator

import (
	"fmt"

	"github.com/yourusername/baseline-edge/internal/models"
)

// PlayerStats are serve and return rates for one player, all in [0,1]
type PlayerStats struct {
	FirstServeIn   float64 `json:"first_serve_in"`
	FirstServeWon  float64 `json:"first_serve_won"`
	SecondServeWon float64 `json:"second_serve_won"`
	ReturnVsFirst  float64 `json:"return_vs_first"`
	ReturnVsSecond float64 `json:"return_vs_second"`
	Matches        int     `json:"matches"`
}

// StatSourceKind tags how a statistic was obtained
type StatSourceKind string

const (
	SourceSurfaceSpecific    StatSourceKind = "surface-specific"
	SourceOverall            StatSourceKind = "overall"
	SourceSimilarityWeighted StatSourceKind = "similarity-weighted"
	SourceTourAverage        StatSourceKind = "tour-average"
	SourceInsufficient       StatSourceKind = "insufficient"
)

// StatSource is the provenance of a statistic. N is the number of similar players
// for SimilarityWeighted and the number of matches behind the figure otherwise.
type StatSource struct {
	Kind StatSourceKind `json:"kind"`
	N    int            `json:"n"`
}

func (s StatSource) String() string {
	if s.Kind == SourceSimilarityWeighted {
		return fmt.Sprintf("%s(%d)", s.Kind, s.N)
	}
	return string(s.Kind)
}

// Real reports whether the figure is built from the player's own matches
func (s StatSource) Real() bool {
	return s.Kind == SourceSurfaceSpecific || s.Kind == SourceOverall
}

// Usable reports whether a number can be simulated from the source at all
func (s StatSource) Usable() bool {
	return s.Kind != SourceInsufficient && s.Kind != ""
}

// StatResult is a statistic lookup together with its provenance
type StatResult struct {
	Player  string         `json:"player"`
	Surface models.Surface `json:"surface"`
	Stats   PlayerStats    `json:"stats"`
	Source  StatSource     `json:"source"`
}

// TourAverages are population serve and return rates
type TourAverages struct {
	FirstServeIn   float64 `json:"first_serve_in"`
	FirstServeWon  float64 `json:"first_serve_won"`
	SecondServeWon float64 `json:"second_serve_won"`
	ReturnVsFirst  float64 `json:"return_vs_first"`
	ReturnVsSecond float64 `json:"return_vs_second"`
	Matches        int     `json:"matches"`
}

// AsPlayer returns the averages as a stand-in player profile
func (t TourAverages) AsPlayer() PlayerStats {
	return PlayerStats{
		FirstServeIn:   t.FirstServeIn,
		FirstServeWon:  t.FirstServeWon,
		SecondServeWon: t.SecondServeWon,
		ReturnVsFirst:  t.ReturnVsFirst,
		ReturnVsSecond: t.ReturnVsSecond,
	}
}
