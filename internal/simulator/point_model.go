package simulator

import (
	"math/rand"

	"github.com/yourusername/baseline-edge/internal/scoring"
)

// Bounds is an inclusive clamp range for a point-win probability
type Bounds struct {
	Min float64 `mapstructure:"min" validate:"gte=0,lte=1"`
	Max float64 `mapstructure:"max" validate:"gte=0,lte=1,gtefield=Min"`
}

func (b Bounds) clamp(p float64) (float64, bool) {
	switch {
	case p < b.Min:
		return b.Min, true
	case p > b.Max:
		return b.Max, true
	default:
		return p, false
	}
}

// PointModel turns two players' statistics into per-serve point-win probabilities
type PointModel struct {
	// Adjust shifts serve rates by how far the returner sits from the tour return rate
	Adjust       bool   `mapstructure:"opponent_adjustment"`
	FirstBounds  Bounds `mapstructure:"first_serve_bounds"`
	SecondBounds Bounds `mapstructure:"second_serve_bounds"`
}

// DefaultPointModel adjusts for the opponent and clamps to 0.30-0.95 and 0.20-0.85
func DefaultPointModel() PointModel {
	return PointModel{
		Adjust:       true,
		FirstBounds:  Bounds{Min: 0.30, Max: 0.95},
		SecondBounds: Bounds{Min: 0.20, Max: 0.85},
	}
}

// ServeProfile is a server's probabilities against one particular returner
type ServeProfile struct {
	FirstIn   float64 `json:"first_in"`
	FirstWon  float64 `json:"first_won"`
	SecondWon float64 `json:"second_won"`
	// Clamped is set when a bound or the [0,1] range had to be enforced
	Clamped bool `json:"clamped"`
}

// ServeProbability is the stationary probability the server wins a point
func (s ServeProfile) ServeProbability() float64 {
	return s.FirstIn*s.FirstWon + (1-s.FirstIn)*s.SecondWon
}

// Profile builds the server's point-win probabilities against the returner
func (m PointModel) Profile(server, returner PlayerStats, tour TourAverages) ServeProfile {
	first := server.FirstServeWon
	second := server.SecondServeWon
	if m.Adjust {
		first += tour.ReturnVsFirst - returner.ReturnVsFirst
		second += tour.ReturnVsSecond - returner.ReturnVsSecond
	}

	var profile ServeProfile
	var c1, c2, c3 bool
	var err error

	profile.FirstWon, c1 = m.FirstBounds.clamp(first)
	profile.SecondWon, c2 = m.SecondBounds.clamp(second)
	profile.FirstIn, err = scoring.ValidateProbability(server.FirstServeIn)
	c3 = err != nil
	profile.FirstWon = scoring.ClampProbability(profile.FirstWon)
	profile.SecondWon = scoring.ClampProbability(profile.SecondWon)
	profile.Clamped = c1 || c2 || c3
	return profile
}

// Points returns a point function for A and B serving with the given profiles.
// Each point draws first serve in, then the first or second serve outcome.
func Points(a, b ServeProfile) scoring.PointFunc {
	return func(rng *rand.Rand, server scoring.Side) bool {
		p := a
		if server == scoring.SideB {
			p = b
		}
		if rng.Float64() < p.FirstIn {
			return rng.Float64() < p.FirstWon
		}
		return rng.Float64() < p.SecondWon
	}
}
