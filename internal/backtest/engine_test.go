package backtest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/rating"
)

func played(id, winner, loser string, actual time.Time) models.Match {
	m := undated(id, "t1", "R32", winner, loser)
	m.ActualDate = actual
	return m
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.KSchedule = rating.FlatK(32)
	return cfg
}

func newTestEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	engine, err := NewEngine(cfg, nil, logger)
	require.NoError(t, err)
	return engine
}

func runMatches(t *testing.T, cfg Config, matches []models.Match) *Result {
	t.Helper()
	result, err := newTestEngine(t, cfg).Run(context.Background(), matches, nil)
	require.NoError(t, err)
	return result
}

func ratingOf(t *testing.T, result *Result, player string) float64 {
	t.Helper()
	for _, r := range result.Ratings {
		if r.Player == player {
			return r.Overall
		}
	}
	t.Fatalf("player %s not rated", player)
	return 0
}

// threeWay is A beats B, B beats C, A beats C, then C beats A
func threeWay() []models.Match {
	return []models.Match{
		played("m1", "p-a", "p-b", day(1)),
		played("m2", "p-b", "p-c", day(5)),
		played("m3", "p-a", "p-c", day(10)),
		played("m4", "p-c", "p-a", day(12)),
	}
}

func TestRunFirstMatchRatings(t *testing.T) {
	result := runMatches(t, testConfig(), threeWay()[:1])

	assert.InDelta(t, 1516.0, ratingOf(t, result, "p-a"), 1e-9)
	assert.InDelta(t, 1484.0, ratingOf(t, result, "p-b"), 1e-9)

	pred, ok := result.Prediction("m1")
	require.True(t, ok)
	assert.Equal(t, 0.5, pred.EloProb)
	assert.Equal(t, models.RatingSourceDefault, pred.RatingSource)
	assert.Equal(t, "p-a", pred.DesignatedPlayer)
	assert.Equal(t, 1, pred.ActualOutcome)
}

func TestRunUsesOnlyEarlierMatches(t *testing.T) {
	result := runMatches(t, testConfig(), threeWay())
	require.Len(t, result.Predictions, 4)
	assert.True(t, result.Leakage.Clean())
	assert.Equal(t, 4, result.Leakage.Checked)
	assert.Equal(t, 4, result.Applied)

	cAfterM2 := 1500 - 32*(1-rating.ExpectedScore(1484, 1500))

	m2, _ := result.Prediction("m2")
	assert.Equal(t, "p-b", m2.DesignatedPlayer)
	assert.InDelta(t, rating.ExpectedScore(1484, 1500), m2.EloProb, 1e-9)

	m3, _ := result.Prediction("m3")
	assert.Equal(t, "p-a", m3.DesignatedPlayer)
	assert.Equal(t, 1, m3.ActualOutcome)
	assert.InDelta(t, rating.ExpectedScore(1516, cAfterM2), m3.EloProb, 1e-9)
	assert.Equal(t, models.RatingSourceBlended, m3.RatingSource)

	m4, _ := result.Prediction("m4")
	assert.Equal(t, "p-a", m4.DesignatedPlayer, "designation does not depend on the winner")
	assert.Equal(t, 0, m4.ActualOutcome)
}

func TestRunTournamentInclusiveLeaks(t *testing.T) {
	cfg := testConfig()
	cfg.CutoffPolicy = CutoffTournamentInclusive

	_, err := newTestEngine(t, cfg).Run(context.Background(), threeWay(), nil)
	require.Error(t, err)
	var violation *models.TemporalOrderingViolation
	require.True(t, errors.As(err, &violation))
	assert.Equal(t, "m1", violation.MatchID)
	assert.True(t, errors.Is(err, models.ErrTemporalOrdering))
}

func TestRunLeakageCollectedWhenNotFatal(t *testing.T) {
	cfg := testConfig()
	cfg.CutoffPolicy = CutoffTournamentInclusive
	cfg.FailOnLeakage = false

	result := runMatches(t, cfg, threeWay())
	assert.False(t, result.Leakage.Clean())
	assert.Len(t, result.Leakage.Violations, 4)

	// the offline audit of the recorded trace finds the same violations
	assert.Equal(t, result.Leakage, Audit(result.Trace))

	m1, _ := result.Prediction("m1")
	assert.NotEqual(t, 0.5, m1.EloProb, "the first prediction already saw the whole tournament")
}

// sameDayBracket is a four-player draw whose semi-finals are played on the same day
func sameDayBracket() []models.Match {
	r1 := played("r1", "p2", "p5", day(1))
	r1.Round = "R16"
	sf1 := played("sf1", "p1", "p2", day(2))
	sf1.Round = "SF"
	sf2 := played("sf2", "p3", "p4", day(2))
	sf2.Round = "SF"
	final := played("f", "p1", "p3", day(3))
	final.Round = "F"
	return []models.Match{final, sf2, r1, sf1}
}

func TestRunSameDayMatchesDoNotLeak(t *testing.T) {
	result := runMatches(t, testConfig(), sameDayBracket())
	assert.True(t, result.Leakage.Clean())

	sf2, _ := result.Prediction("sf2")
	assert.Equal(t, 0.5, sf2.EloProb)
	assert.Equal(t, models.RatingSourceDefault, sf2.RatingSource)

	sf1, _ := result.Prediction("sf1")
	assert.InDelta(t, rating.ExpectedScore(1500, 1516), sf1.EloProb, 1e-9)

	p1 := 1500 + 32*(1-rating.ExpectedScore(1500, 1516))
	final, _ := result.Prediction("f")
	assert.Equal(t, "p1", final.DesignatedPlayer)
	assert.InDelta(t, rating.ExpectedScore(p1, 1516), final.EloProb, 1e-9)
}

func TestRunSameDayBracketLeaksUnderLegacyPolicy(t *testing.T) {
	cfg := testConfig()
	cfg.CutoffPolicy = CutoffTournamentInclusive
	cfg.FailOnLeakage = false

	result := runMatches(t, cfg, sameDayBracket())
	assert.NotEmpty(t, result.Leakage.Violations)
	assert.Equal(t, "tournament-inclusive (leaks same-tournament results)", result.PolicyLabel)
}

func TestRunConservativeDelaysUpdates(t *testing.T) {
	matches := []models.Match{
		played("m1", "p-a", "p-b", day(1)),
		played("m2", "p-a", "p-c", day(2)),
		played("m3", "p-a", "p-d", day(4)),
	}

	strict := runMatches(t, testConfig(), matches)
	m2, _ := strict.Prediction("m2")
	assert.NotEqual(t, 0.5, m2.EloProb)

	cfg := testConfig()
	cfg.CutoffPolicy = CutoffConservative
	cfg.Dates.BufferDays = 2
	conservative := runMatches(t, cfg, matches)

	m2, _ = conservative.Prediction("m2")
	assert.Equal(t, 0.5, m2.EloProb, "m1 is not released until day 3")

	m3, _ := conservative.Prediction("m3")
	assert.InDelta(t, rating.ExpectedScore(1516, 1500), m3.EloProb, 1e-9, "only m1 is released by day 4")
	assert.Equal(t, 3, conservative.Applied, "pending matches are flushed at the end")
}

func TestRunBufferedMatchIsUnverifiable(t *testing.T) {
	buffered := undated("m-buf", "t1", "RR", "p-x", "p-y")
	matches := []models.Match{
		buffered,
		played("m-early", "p-x", "p-z", day(5)),
		played("m-late", "p-x", "p-z", day(20)),
	}
	result := runMatches(t, testConfig(), matches)

	early, _ := result.Prediction("m-early")
	assert.Equal(t, models.RatingSourceDefault, early.RatingSource, "the buffered match may still be in progress")

	late, _ := result.Prediction("m-late")
	assert.NotEqual(t, models.RatingSourceDefault, late.RatingSource)

	buf, _ := result.Prediction("m-buf")
	assert.Equal(t, models.DateSourceBuffered, buf.DateSource)
	assert.Equal(t, day0, buf.ActualDate)

	assert.Equal(t, 1, result.Leakage.Unverifiable)
	assert.Equal(t, 1, result.Leakage.UndatedApplied)
	assert.True(t, result.Leakage.Clean())
}

func TestRunWarmUpBeforeStartDate(t *testing.T) {
	cfg := testConfig()
	cfg.StartDate = day(10)

	result := runMatches(t, cfg, threeWay())
	require.Len(t, result.Predictions, 2)
	_, ok := result.Prediction("m1")
	assert.False(t, ok)

	m3, _ := result.Prediction("m3")
	cAfterM2 := 1500 - 32*(1-rating.ExpectedScore(1484, 1500))
	assert.InDelta(t, rating.ExpectedScore(1516, cAfterM2), m3.EloProb, 1e-9)
}

func TestRunRequireRealDataExcludesDefaults(t *testing.T) {
	cfg := testConfig()
	cfg.RequireRealData = true

	result := runMatches(t, cfg, threeWay())
	m1, _ := result.Prediction("m1")
	assert.True(t, m1.Excluded)
	assert.Equal(t, ExclusionDefaultRating, m1.ExclusionReason)

	m2, _ := result.Prediction("m2")
	assert.True(t, m2.Excluded, "p-c has no rating yet")

	m3, _ := result.Prediction("m3")
	assert.False(t, m3.Excluded)

	assert.Equal(t, 2, result.Excluded())
	assert.Equal(t, 2, result.Calibration.Count)
	assert.Equal(t, 1.0, Share(result.Reliability.ExclusionReasons, ExclusionDefaultRating))
}

func TestRunOrientsOdds(t *testing.T) {
	m := played("m1", "p-b", "p-a", day(1))
	m.Odds = &models.MarketOdds{Winner: 1.5, Loser: 2.5}

	result := runMatches(t, testConfig(), []models.Match{m})
	pred, _ := result.Prediction("m1")
	require.True(t, pred.HasOdds())
	assert.Equal(t, "p-a", pred.DesignatedPlayer)
	assert.Equal(t, 2.5, *pred.OddsDesignated)
	assert.Equal(t, 1.5, *pred.OddsOpponent)
	assert.InDelta(t, 0.4, *pred.MarketImpliedProb, 1e-12, "raw 1/odds keeps the margin")
	assert.InDelta(t, 0.4/(0.4+1/1.5), *pred.MarketFairProb, 1e-12)
	assert.InDelta(t, 0.4+1/1.5-1, *pred.MarketMargin, 1e-12)
}

func TestRunRejectsInvalidMatches(t *testing.T) {
	bad := played("m1", "p-a", "p-a", day(1))
	_, err := newTestEngine(t, testConfig()).Run(context.Background(), []models.Match{bad}, nil)
	assert.Error(t, err)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(t, testConfig()).Run(ctx, threeWay(), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

type fakeMatchSource struct{ matches []models.Match }

func (f *fakeMatchSource) LoadMatches(ctx context.Context, start, end time.Time) ([]models.Match, error) {
	return f.matches, nil
}

type fakeDateSource struct {
	dates     []models.MatchDate
	requested []string
}

func (f *fakeDateSource) MatchDates(ctx context.Context, tournamentIDs []string) ([]models.MatchDate, error) {
	f.requested = tournamentIDs
	return f.dates, nil
}

func TestRunFromSourceJoinsSecondaryDates(t *testing.T) {
	matches := []models.Match{undated("m1", "t1", "RR", "p-a", "p-b"), undated("m2", "t0", "RR", "p-c", "p-d")}
	dates := &fakeDateSource{dates: []models.MatchDate{{TournamentID: "t1", Round: "RR", Winner: "p-a", Loser: "p-b", Date: day(3)}}}

	result, err := newTestEngine(t, testConfig()).RunFromSource(context.Background(), &fakeMatchSource{matches: matches}, dates)
	require.NoError(t, err)
	assert.Equal(t, []string{"t0", "t1"}, dates.requested)

	m1, _ := result.Prediction("m1")
	assert.Equal(t, models.DateSourceJoinedExact, m1.DateSource)
	assert.Equal(t, day(3), m1.ActualDate)
	assert.Equal(t, 1, result.Coverage.Counts[models.DateSourceBuffered])
}

// syntheticMatches generates a reproducible season with serve counts and most odds present
func syntheticMatches(n int) []models.Match {
	rng := rand.New(rand.NewSource(7))
	players := []string{"p01", "p02", "p03", "p04", "p05", "p06", "p07", "p08"}
	serve := func() *models.ServeCounts {
		svpt := 60 + rng.Intn(40)
		firstIn := svpt * 6 / 10
		return &models.ServeCounts{
			ServePoints: svpt,
			FirstIn:     firstIn,
			FirstWon:    firstIn * (6 + rng.Intn(3)) / 10,
			SecondWon:   (svpt - firstIn) * (4 + rng.Intn(3)) / 10,
		}
	}

	out := make([]models.Match, 0, n)
	for i := 0; i < n; i++ {
		a := rng.Intn(len(players))
		b := (a + 1 + rng.Intn(len(players)-1)) % len(players)
		m := played(fmt.Sprintf("s%03d", i), players[a], players[b], day(i/3))
		m.TournamentID = fmt.Sprintf("t%02d", i/12)
		m.TournamentDate = day((i / 12) * 4)
		m.WinnerServe = serve()
		m.LoserServe = serve()
		if i%7 != 0 {
			m.Odds = &models.MarketOdds{Winner: 1.4 + rng.Float64(), Loser: 1.4 + rng.Float64()}
		}
		out = append(out, m)
	}
	return out
}

func TestRunIsDeterministic(t *testing.T) {
	matches := syntheticMatches(60)
	run := func(workers int) []byte {
		cfg := testConfig()
		cfg.Model = models.ModelBlend
		cfg.Simulator.Trials = 2000
		cfg.Simulator.ChunkSize = 250
		cfg.Simulator.Workers = workers
		cfg.Corpus.MinMatches = 3
		cfg.Corpus.MinSurfaceMatches = 2
		cfg.Betting.Bootstrap.Workers = workers
		cfg.WalkForward.WindowDays = 5

		shuffled := append([]models.Match(nil), matches...)
		rand.New(rand.NewSource(int64(workers))).Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		result := runMatches(t, cfg, shuffled)
		require.True(t, result.Leakage.Clean())
		data, err := json.Marshal(result)
		require.NoError(t, err)
		return data
	}

	first := run(1)
	assert.Equal(t, first, run(1))
	assert.Equal(t, first, run(4), "worker count and input order do not change the output")

	var decoded Result
	require.NoError(t, json.Unmarshal(first, &decoded))
	require.Len(t, decoded.Predictions, 60)
	assert.Equal(t, ExclusionInsufficientData, decoded.Predictions[0].ExclusionReason,
		"the first match has no statistics at all")

	simulated := 0
	for _, p := range decoded.Predictions {
		if p.SimulatorProb != nil {
			simulated++
			assert.InDelta(t, 0.5*(*p.SimulatorProb)+0.5*p.EloProb, p.PredictedProb, 1e-12)
		}
	}
	assert.Greater(t, simulated, 50)
	assert.NotEmpty(t, decoded.Bets)
	assert.Len(t, decoded.ModelCalibration, 2)
}
