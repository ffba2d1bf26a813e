package backtest

import (
	"container/heap"
	"fmt"
	"sort"
	"time"

	"github.com/yourusername/baseline-edge/internal/metrics"
	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/rating"
	"github.com/yourusername/baseline-edge/internal/simulator"
)

// CutoffPolicy decides when a finished match may enter the state used for later predictions
type CutoffPolicy string

const (
	// CutoffStrict applies a match before M only if its play window ends before M's begins
	CutoffStrict CutoffPolicy = "strict"
	// CutoffConservative widens every play window by the buffer days
	CutoffConservative CutoffPolicy = "conservative"
	// CutoffTournamentInclusive applies every match whose tournament started on or before M's.
	// It leaks later rounds into earlier ones and exists to reproduce and audit that bug.
	CutoffTournamentInclusive CutoffPolicy = "tournament-inclusive"
)

// ParseCutoffPolicy validates a policy label
func ParseCutoffPolicy(s string) (CutoffPolicy, error) {
	switch CutoffPolicy(s) {
	case "", CutoffStrict:
		return CutoffStrict, nil
	case CutoffConservative, CutoffTournamentInclusive:
		return CutoffPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown cutoff policy %q", s)
	}
}

// Label is the policy name shown in reports
func (p CutoffPolicy) Label() string {
	switch p {
	case CutoffConservative:
		return "conservative (buffered, not exact)"
	case CutoffTournamentInclusive:
		return "tournament-inclusive (leaks same-tournament results)"
	default:
		return "strict"
	}
}

// release is the day from which a match is known to have finished
func (p CutoffPolicy) release(rm *ResolvedMatch, bufferDays int) time.Time {
	switch p {
	case CutoffTournamentInclusive:
		return models.Day(rm.Match.TournamentDate)
	case CutoffConservative:
		return rm.Latest.AddDate(0, 0, bufferDays)
	default:
		return rm.Latest
	}
}

// eligible reports whether a pending match released on day may be applied before next
func (p CutoffPolicy) eligible(release time.Time, next *ResolvedMatch) bool {
	if p == CutoffTournamentInclusive {
		return !release.After(models.Day(next.Match.TournamentDate))
	}
	return release.Before(next.Earliest)
}

// order sorts the replay sequence for the policy
func (p CutoffPolicy) order(matches []ResolvedMatch) {
	if p != CutoffTournamentInclusive {
		return
	}
	sort.SliceStable(matches, func(i, j int) bool {
		ti, tj := models.Day(matches[i].Match.TournamentDate), models.Day(matches[j].Match.TournamentDate)
		if !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return matches[i].Match.ID < matches[j].Match.ID
	})
}

type pendingMatch struct {
	match   *ResolvedMatch
	release time.Time
}

// pendingQueue is a min-heap of finished matches keyed by release day
type pendingQueue []pendingMatch

func (q pendingQueue) Len() int { return len(q) }

func (q pendingQueue) Less(i, j int) bool {
	if !q[i].release.Equal(q[j].release) {
		return q[i].release.Before(q[j].release)
	}
	if !q[i].match.Earliest.Equal(q[j].match.Earliest) {
		return q[i].match.Earliest.Before(q[j].match.Earliest)
	}
	return q[i].match.Match.ID < q[j].match.Match.ID
}

func (q pendingQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *pendingQueue) Push(x any) { *q = append(*q, x.(pendingMatch)) }

func (q *pendingQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// replayState is everything one run has learned so far. It is owned by a single run.
type replayState struct {
	policy     CutoffPolicy
	bufferDays int
	store      *rating.Store
	updater    *rating.Updater
	corpus     *simulator.Corpus
	pending    pendingQueue
	validator  *LeakageValidator
	applied    int
}

func newReplayState(cfg Config) (*replayState, error) {
	store, err := rating.NewStore(cfg.Rating)
	if err != nil {
		return nil, fmt.Errorf("failed to create rating store: %w", err)
	}
	updater, err := rating.NewUpdater(cfg.KSchedule, cfg.Outcome)
	if err != nil {
		return nil, fmt.Errorf("failed to create rating updater: %w", err)
	}
	return &replayState{
		policy:     cfg.CutoffPolicy,
		bufferDays: cfg.Dates.BufferDays,
		store:      store,
		updater:    updater,
		corpus:     simulator.NewCorpus(cfg.Corpus),
		validator:  NewLeakageValidator(),
	}, nil
}

// push queues a finished match until the policy releases it
func (s *replayState) push(rm *ResolvedMatch) {
	heap.Push(&s.pending, pendingMatch{match: rm, release: s.policy.release(rm, s.bufferDays)})
}

// applyEligible applies every pending match the policy allows before next
func (s *replayState) applyEligible(next *ResolvedMatch) error {
	for s.pending.Len() > 0 && s.policy.eligible(s.pending[0].release, next) {
		item := heap.Pop(&s.pending).(pendingMatch)
		if err := s.apply(item.match); err != nil {
			return err
		}
	}
	return nil
}

// flush applies everything still pending so the final snapshot is complete
func (s *replayState) flush() error {
	for s.pending.Len() > 0 {
		item := heap.Pop(&s.pending).(pendingMatch)
		if err := s.apply(item.match); err != nil {
			return err
		}
	}
	return nil
}

func (s *replayState) apply(rm *ResolvedMatch) error {
	m := &rm.Match
	if _, err := s.updater.Apply(s.store, m); err != nil {
		return fmt.Errorf("failed to apply match %s: %w", m.ID, err)
	}
	s.corpus.Add(m)
	s.validator.Applied(m)
	s.applied++
	metrics.RecordMatchReplayed(string(s.policy))
	return nil
}
