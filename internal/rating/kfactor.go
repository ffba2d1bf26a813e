package rating

import (
	"errors"
	"fmt"
)

// ErrInvalidKFactor is returned for schedules that are not positive and non-increasing
var ErrInvalidKFactor = errors.New("invalid k-factor schedule")

// KStep applies K to players with fewer than Below matches
type KStep struct {
	Below int     `mapstructure:"below"`
	K     float64 `mapstructure:"k"`
}

// KSchedule is a non-increasing step function of matches played
type KSchedule struct {
	Steps    []KStep `mapstructure:"steps"`
	DefaultK float64 `mapstructure:"default_k"`
}

// DefaultKSchedule gives provisional players (fewer than 30 matches) K=48 and everyone else K=32
func DefaultKSchedule() KSchedule {
	return KSchedule{Steps: []KStep{{Below: 30, K: 48}}, DefaultK: 32}
}

// FlatK uses the same K for every player
func FlatK(k float64) KSchedule {
	return KSchedule{DefaultK: k}
}

// Validate checks the schedule is positive, ordered and non-increasing
func (s KSchedule) Validate() error {
	if s.DefaultK <= 0 {
		return fmt.Errorf("%w: default k must be positive, got %v", ErrInvalidKFactor, s.DefaultK)
	}
	prevBelow := 0
	prevK := 0.0
	for i, step := range s.Steps {
		if step.K <= 0 {
			return fmt.Errorf("%w: step %d has k %v", ErrInvalidKFactor, i, step.K)
		}
		if step.Below <= prevBelow {
			return fmt.Errorf("%w: step %d threshold %d is not increasing", ErrInvalidKFactor, i, step.Below)
		}
		if i > 0 && step.K > prevK {
			return fmt.Errorf("%w: step %d raises k from %v to %v", ErrInvalidKFactor, i, prevK, step.K)
		}
		prevBelow, prevK = step.Below, step.K
	}
	if len(s.Steps) > 0 && s.DefaultK > prevK {
		return fmt.Errorf("%w: default k %v exceeds last step k %v", ErrInvalidKFactor, s.DefaultK, prevK)
	}
	return nil
}

// K returns the K-factor for a player with the given number of matches played
func (s KSchedule) K(matches int) float64 {
	for _, step := range s.Steps {
		if matches < step.Below {
			return step.K
		}
	}
	return s.DefaultK
}
