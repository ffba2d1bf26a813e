package models

import (
	"errors"
	"fmt"
	"time"
)

// Custom errors
var (
	ErrNotFound              = errors.New("record not found")
	ErrInsufficientData      = errors.New("insufficient data")
	ErrTemporalOrdering      = errors.New("temporal ordering violation")
	ErrDegenerateProbability = errors.New("degenerate probability")
)

// InsufficientDataError reports a player without enough history for a real statistic
type InsufficientDataError struct {
	Player  string
	Source  string
	Matches int
	Needed  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data for %s: %d matches (need %d), best source %s",
		e.Player, e.Matches, e.Needed, e.Source)
}

func (e *InsufficientDataError) Unwrap() error { return ErrInsufficientData }

// TemporalOrderingViolation identifies a prediction whose state contains a same-or-later match.
// It invalidates the whole run.
type TemporalOrderingViolation struct {
	MatchID      string
	MatchDate    time.Time
	OffenderID   string
	OffenderDate time.Time
}

func (e *TemporalOrderingViolation) Error() string {
	return fmt.Sprintf("temporal ordering violation: prediction for match %s (%s) used match %s (%s)",
		e.MatchID, e.MatchDate.Format("2006-01-02"), e.OffenderID, e.OffenderDate.Format("2006-01-02"))
}

func (e *TemporalOrderingViolation) Unwrap() error { return ErrTemporalOrdering }

// DegenerateProbabilityError reports a probability outside [0,1] or NaN
type DegenerateProbabilityError struct {
	Value   float64
	Clamped float64
}

func (e *DegenerateProbabilityError) Error() string {
	return fmt.Sprintf("degenerate probability %v clamped to %v", e.Value, e.Clamped)
}

func (e *DegenerateProbabilityError) Unwrap() error { return ErrDegenerateProbability }

// MissingOddsWarning marks a match excluded from betting evaluation
type MissingOddsWarning struct {
	MatchID string
}

func (w MissingOddsWarning) String() string {
	return fmt.Sprintf("match %s has no market odds; excluded from betting evaluation", w.MatchID)
}
