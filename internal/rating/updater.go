package rating

import (
	"fmt"
	"math"

	"github.com/yourusername/baseline-edge/internal/models"
)

// OutcomePolicy chooses the score fed into the update
type OutcomePolicy string

const (
	// OutcomeBinary scores a win as 1
	OutcomeBinary OutcomePolicy = "binary"
	// OutcomeMargin scores a win as the winner's share of games
	OutcomeMargin OutcomePolicy = "margin"
)

// ExpectedScore is the probability a player rated ra beats one rated rb
func ExpectedScore(ra, rb float64) float64 {
	return 1.0 / (1.0 + math.Pow(10.0, (rb-ra)/400.0))
}

// Change is one rating's movement in an update
type Change struct {
	Before float64
	After  float64
}

// Delta returns After - Before
func (c Change) Delta() float64 {
	return c.After - c.Before
}

// Update records everything one match did to the store
type Update struct {
	MatchID         string
	Winner          string
	Loser           string
	Surface         models.Surface
	Score           float64
	KWinner         float64
	KLoser          float64
	Expected        float64
	ExpectedSurface float64
	WinnerOverall   Change
	LoserOverall    Change
	WinnerSurface   Change
	LoserSurface    Change
}

// Updater applies the Elo rule to a store, one completed match at a time
type Updater struct {
	schedule KSchedule
	outcome  OutcomePolicy
}

// NewUpdater creates an updater with a validated K schedule
func NewUpdater(schedule KSchedule, outcome OutcomePolicy) (*Updater, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}
	switch outcome {
	case "":
		outcome = OutcomeBinary
	case OutcomeBinary, OutcomeMargin:
	default:
		return nil, fmt.Errorf("unknown outcome policy %q", outcome)
	}
	return &Updater{schedule: schedule, outcome: outcome}, nil
}

// Schedule returns the K schedule
func (u *Updater) Schedule() KSchedule {
	return u.schedule
}

func (u *Updater) score(m *models.Match) float64 {
	if u.outcome != OutcomeMargin {
		return 1
	}
	won, lost := m.Score.Games()
	if won+lost == 0 {
		return 1
	}
	return float64(won) / float64(won+lost)
}

// Apply advances both players' records with the result of m. Both expectations come from
// the pre-match state, and each player's change uses their own K, so the update is only
// zero-sum when the two K-factors agree.
func (u *Updater) Apply(store *Store, m *models.Match) (Update, error) {
	if m.Winner == "" || m.Loser == "" || m.Winner == m.Loser {
		return Update{}, fmt.Errorf("match %s: invalid players %q and %q", m.ID, m.Winner, m.Loser)
	}

	w := store.recordOrDefault(m.Winner).clone()
	l := store.recordOrDefault(m.Loser).clone()

	kw := u.schedule.K(w.Matches)
	kl := u.schedule.K(l.Matches)
	s := u.score(m)

	expected := ExpectedScore(w.Overall, l.Overall)
	expectedSurface := ExpectedScore(store.blend(w, m.Surface).Rating, store.blend(l, m.Surface).Rating)

	up := Update{
		MatchID:         m.ID,
		Winner:          m.Winner,
		Loser:           m.Loser,
		Surface:         m.Surface,
		Score:           s,
		KWinner:         kw,
		KLoser:          kl,
		Expected:        expected,
		ExpectedSurface: expectedSurface,
		WinnerOverall:   Change{Before: w.Overall},
		LoserOverall:    Change{Before: l.Overall},
		WinnerSurface:   Change{Before: w.Surface[m.Surface]},
		LoserSurface:    Change{Before: l.Surface[m.Surface]},
	}

	w.Overall += kw * (s - expected)
	l.Overall -= kl * (s - expected)
	w.Surface[m.Surface] += kw * (s - expectedSurface)
	l.Surface[m.Surface] -= kl * (s - expectedSurface)

	played := models.Day(m.ActualDate)
	for _, r := range []*Record{w, l} {
		r.Matches++
		r.SurfaceMatches[m.Surface]++
		if played.After(r.LastPlayed) {
			r.LastPlayed = played
		}
	}

	up.WinnerOverall.After = w.Overall
	up.LoserOverall.After = l.Overall
	up.WinnerSurface.After = w.Surface[m.Surface]
	up.LoserSurface.After = l.Surface[m.Surface]

	// both records are written together after every input has been read
	store.put(w)
	store.put(l)
	return up, nil
}

// Replay folds a match stream into the store in the given order
func (u *Updater) Replay(store *Store, matches []*models.Match) error {
	for _, m := range matches {
		if _, err := u.Apply(store, m); err != nil {
			return err
		}
	}
	return nil
}
