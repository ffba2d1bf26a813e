package backtest

import (
	"container/heap"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/baseline-edge/internal/models"
)

func dated(id string, actual time.Time) *models.Match {
	return &models.Match{ID: id, ActualDate: actual}
}

func TestLeakageValidatorFlagsSameDayState(t *testing.T) {
	v := NewLeakageValidator()
	v.Applied(dated("m1", day(1)))

	assert.Nil(t, v.Check(dated("m2", day(2))))

	v.Applied(dated("m2", day(2)))
	violation := v.Check(dated("m3", day(2)))
	require.NotNil(t, violation)
	assert.Equal(t, "m3", violation.MatchID)
	assert.Equal(t, "m2", violation.OffenderID)
	assert.True(t, errors.Is(violation, models.ErrTemporalOrdering))

	report := v.Report()
	assert.Equal(t, 2, report.Checked)
	assert.Len(t, report.Violations, 1)
	assert.False(t, report.Clean())
}

func TestLeakageValidatorUnknownDates(t *testing.T) {
	v := NewLeakageValidator()
	v.Applied(dated("m1", time.Time{}))
	assert.Nil(t, v.Check(dated("m2", time.Time{})))
	assert.Nil(t, v.Check(dated("m3", day(1))))

	report := v.Report()
	assert.Equal(t, 1, report.UndatedApplied)
	assert.Equal(t, 1, report.Unverifiable, "undated predictions are counted, not passed")
	assert.Equal(t, 1, report.Checked)
	assert.True(t, report.Clean())
}

func TestAuditReplaysTrace(t *testing.T) {
	trace := Trace{
		{Kind: TraceApply, MatchID: "m1", ActualDate: day(1)},
		{Kind: TracePredict, MatchID: "m2", ActualDate: day(3)},
		{Kind: TraceApply, MatchID: "m3", ActualDate: day(5)},
		{Kind: TracePredict, MatchID: "m4", ActualDate: day(4)},
		{Kind: TracePredict, MatchID: "m5", ActualDate: time.Time{}},
	}
	report := Audit(trace)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Unverifiable)
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "m4", report.Violations[0].MatchID)
	assert.Equal(t, "m3", report.Violations[0].OffenderID)
	assert.Equal(t, day(5), report.Violations[0].OffenderDate)
}

func TestAuditMatchesLiveValidator(t *testing.T) {
	v := NewLeakageValidator()
	v.Applied(dated("m1", day(2)))
	v.Check(dated("m2", day(2)))
	v.Check(dated("m3", day(3)))

	assert.Equal(t, v.Report(), Audit(v.Trace()))
}

func TestPendingQueueOrder(t *testing.T) {
	mk := func(id string, release, earliest time.Time) pendingMatch {
		return pendingMatch{
			match:   &ResolvedMatch{Match: models.Match{ID: id}, Earliest: earliest, Latest: earliest},
			release: release,
		}
	}
	q := &pendingQueue{}
	heap.Push(q, mk("c", day(3), day(3)))
	heap.Push(q, mk("b", day(1), day(1)))
	heap.Push(q, mk("a2", day(2), day(1)))
	heap.Push(q, mk("a1", day(2), day(1)))
	heap.Push(q, mk("z", day(2), day(0)))

	var got []string
	for q.Len() > 0 {
		got = append(got, heap.Pop(q).(pendingMatch).match.Match.ID)
	}
	assert.Equal(t, []string{"b", "z", "a1", "a2", "c"}, got)
}

func TestCutoffPolicyEligibility(t *testing.T) {
	window := func(earliest, latest time.Time) *ResolvedMatch {
		return &ResolvedMatch{
			Match:    models.Match{TournamentDate: day0},
			Earliest: earliest,
			Latest:   latest,
		}
	}
	sameDay := window(day(2), day(2))
	next := window(day(2), day(2))
	later := window(day(5), day(5))

	assert.False(t, CutoffStrict.eligible(CutoffStrict.release(sameDay, 0), next))
	assert.True(t, CutoffStrict.eligible(CutoffStrict.release(sameDay, 0), later))

	release := CutoffConservative.release(sameDay, 3)
	assert.Equal(t, day(5), release)
	assert.False(t, CutoffConservative.eligible(release, later))

	assert.True(t, CutoffTournamentInclusive.eligible(CutoffTournamentInclusive.release(later, 0), next),
		"the legacy policy releases every match of a started tournament")
}

func TestParseCutoffPolicy(t *testing.T) {
	p, err := ParseCutoffPolicy("")
	require.NoError(t, err)
	assert.Equal(t, CutoffStrict, p)

	p, err = ParseCutoffPolicy("conservative")
	require.NoError(t, err)
	assert.Equal(t, CutoffConservative, p)
	assert.Contains(t, p.Label(), "not exact")

	_, err = ParseCutoffPolicy("tournament")
	assert.Error(t, err)
}
