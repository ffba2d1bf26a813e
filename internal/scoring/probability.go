// Package scoring propagates point-win probabilities through games, tiebreaks, sets and
// matches, both in closed form and by Monte Carlo simulation.
package scoring

import (
	"math"

	"github.com/yourusername/baseline-edge/internal/models"
)

// Side identifies one of the two players in a match
type Side int

const (
	SideA Side = iota
	SideB
)

// Other returns the opposing side
func (s Side) Other() Side {
	if s == SideA {
		return SideB
	}
	return SideA
}

func (s Side) String() string {
	if s == SideA {
		return "A"
	}
	return "B"
}

// ClampProbability forces p into [0,1]. NaN maps to 0.5.
func ClampProbability(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0.5
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}

// ValidateProbability clamps p and reports a DegenerateProbabilityError when clamping changed it
func ValidateProbability(p float64) (float64, error) {
	clamped := ClampProbability(p)
	if clamped != p || math.IsNaN(p) {
		return clamped, &models.DegenerateProbabilityError{Value: p, Clamped: clamped}
	}
	return p, nil
}
