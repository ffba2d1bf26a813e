package backtest

import (
	"time"

	"github.com/yourusername/baseline-edge/internal/models"
)

// TraceKind labels a replay event
type TraceKind string

const (
	TraceApply   TraceKind = "apply"
	TracePredict TraceKind = "predict"
)

// TraceEvent is one step of a replay. ActualDate is zero when the match date is unknown.
type TraceEvent struct {
	Kind       TraceKind `json:"kind"`
	MatchID    string    `json:"match_id"`
	ActualDate time.Time `json:"actual_date"`
}

// Trace is the ordered event log of a replay, kept for offline audit
type Trace []TraceEvent

// LeakageReport summarises the temporal ordering checks of a run
type LeakageReport struct {
	Checked int `json:"checked"`
	// Unverifiable counts predictions for matches without a known actual date
	Unverifiable int `json:"unverifiable"`
	// UndatedApplied counts applied matches whose actual date was unknown
	UndatedApplied int                                `json:"undated_applied"`
	Violations     []models.TemporalOrderingViolation `json:"violations,omitempty"`
}

// Clean reports whether no violation was found
func (r LeakageReport) Clean() bool {
	return len(r.Violations) == 0
}

// horizon tracks the latest actual date among applied matches
type horizon struct {
	date    time.Time
	matchID string
	report  LeakageReport
}

func (h *horizon) apply(matchID string, actual time.Time) {
	if actual.IsZero() {
		h.report.UndatedApplied++
		return
	}
	day := models.Day(actual)
	if h.date.IsZero() || day.After(h.date) {
		h.date = day
		h.matchID = matchID
	}
}

func (h *horizon) check(matchID string, actual time.Time) *models.TemporalOrderingViolation {
	if actual.IsZero() {
		h.report.Unverifiable++
		return nil
	}
	h.report.Checked++
	day := models.Day(actual)
	if h.date.IsZero() || h.date.Before(day) {
		return nil
	}
	v := models.TemporalOrderingViolation{
		MatchID:      matchID,
		MatchDate:    day,
		OffenderID:   h.matchID,
		OffenderDate: h.date,
	}
	h.report.Violations = append(h.report.Violations, v)
	return &v
}

// LeakageValidator checks, before every prediction, that no applied match was played on or
// after the predicted match's actual date. It compares actual dates only.
type LeakageValidator struct {
	h     horizon
	trace Trace
}

// NewLeakageValidator creates an empty validator
func NewLeakageValidator() *LeakageValidator {
	return &LeakageValidator{}
}

// Applied records a match entering rating and statistics state
func (v *LeakageValidator) Applied(m *models.Match) {
	v.trace = append(v.trace, TraceEvent{Kind: TraceApply, MatchID: m.ID, ActualDate: m.ActualDate})
	v.h.apply(m.ID, m.ActualDate)
}

// Check validates the state about to be used to predict m
func (v *LeakageValidator) Check(m *models.Match) *models.TemporalOrderingViolation {
	v.trace = append(v.trace, TraceEvent{Kind: TracePredict, MatchID: m.ID, ActualDate: m.ActualDate})
	return v.h.check(m.ID, m.ActualDate)
}

// Report returns the checks made so far
func (v *LeakageValidator) Report() LeakageReport {
	return v.h.report
}

// Trace returns the recorded event log
func (v *LeakageValidator) Trace() Trace {
	return v.trace
}

// Audit re-checks a recorded trace offline and returns every violation in it
func Audit(trace Trace) LeakageReport {
	var h horizon
	for _, ev := range trace {
		switch ev.Kind {
		case TraceApply:
			h.apply(ev.MatchID, ev.ActualDate)
		case TracePredict:
			h.check(ev.MatchID, ev.ActualDate)
		}
	}
	return h.report
}
