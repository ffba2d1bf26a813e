package simulator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/scoring"
)

func served(svpt, in, firstWon, secondWon int) *models.ServeCounts {
	return &models.ServeCounts{ServePoints: svpt, FirstIn: in, FirstWon: firstWon, SecondWon: secondWon}
}

func statMatch(id, winner, loser string, surface models.Surface) *models.Match {
	return &models.Match{
		ID:          id,
		ActualDate:  time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC),
		Surface:     surface,
		BestOf:      3,
		Winner:      winner,
		Loser:       loser,
		WinnerServe: served(80, 50, 38, 18),
		LoserServe:  served(70, 42, 28, 14),
	}
}

func realStats(player string, in, first, second, retFirst, retSecond float64) StatResult {
	return StatResult{
		Player: player,
		Stats: PlayerStats{
			FirstServeIn:   in,
			FirstServeWon:  first,
			SecondServeWon: second,
			ReturnVsFirst:  retFirst,
			ReturnVsSecond: retSecond,
			Matches:        40,
		},
		Source: StatSource{Kind: SourceOverall, N: 40},
	}
}

func TestCorpusAggregatesServeAndReturn(t *testing.T) {
	c := NewCorpus(CorpusConfig{MinMatches: 1, MinSurfaceMatches: 1})
	require.True(t, c.Add(statMatch("m1", "alice", "bob", models.SurfaceHard)))

	res := c.Lookup("alice", models.SurfaceHard)
	assert.Equal(t, SourceSurfaceSpecific, res.Source.Kind)
	assert.InDelta(t, 0.625, res.Stats.FirstServeIn, 1e-12)
	assert.InDelta(t, 0.76, res.Stats.FirstServeWon, 1e-12)
	assert.InDelta(t, 0.6, res.Stats.SecondServeWon, 1e-12)
	assert.InDelta(t, 1.0/3.0, res.Stats.ReturnVsFirst, 1e-12)
	assert.InDelta(t, 0.5, res.Stats.ReturnVsSecond, 1e-12)

	bob := c.Lookup("bob", models.SurfaceHard)
	assert.InDelta(t, 12.0/50.0, bob.Stats.ReturnVsFirst, 1e-12)
	assert.InDelta(t, 12.0/30.0, bob.Stats.ReturnVsSecond, 1e-12)
}

func TestCorpusSkipsMatchesWithoutServeCounts(t *testing.T) {
	c := NewCorpus(DefaultCorpusConfig())
	m := statMatch("m1", "alice", "bob", models.SurfaceClay)
	m.LoserServe = nil

	assert.False(t, c.Add(m))
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, c.Skipped())
}

func TestCorpusFallbackChain(t *testing.T) {
	c := NewCorpus(CorpusConfig{MinMatches: 3, MinSurfaceMatches: 2, AllowTourAverage: true})

	assert.Equal(t, SourceInsufficient, c.Lookup("alice", models.SurfaceHard).Source.Kind)

	c.Add(statMatch("m1", "alice", "bob", models.SurfaceHard))
	c.Add(statMatch("m2", "alice", "carol", models.SurfaceClay))

	res := c.Lookup("alice", models.SurfaceHard)
	assert.Equal(t, SourceTourAverage, res.Source.Kind)
	assert.Equal(t, 2, res.Stats.Matches)

	c.Add(statMatch("m3", "alice", "dave", models.SurfaceClay))
	assert.Equal(t, SourceOverall, c.Lookup("alice", models.SurfaceHard).Source.Kind)

	clay := c.Lookup("alice", models.SurfaceClay)
	assert.Equal(t, SourceSurfaceSpecific, clay.Source.Kind)
	assert.Equal(t, 2, clay.Source.N)
	assert.True(t, clay.Source.Real())

	strict := NewCorpus(CorpusConfig{MinMatches: 3, MinSurfaceMatches: 2, AllowTourAverage: false})
	strict.Add(statMatch("m1", "alice", "bob", models.SurfaceHard))
	assert.Equal(t, SourceInsufficient, strict.Lookup("alice", models.SurfaceHard).Source.Kind)
}

func TestSurfaceStatsNeedTheOverallMinimum(t *testing.T) {
	c := NewCorpus(CorpusConfig{MinMatches: 3, MinSurfaceMatches: 2, AllowTourAverage: true})
	c.Add(statMatch("m1", "alice", "bob", models.SurfaceHard))
	c.Add(statMatch("m2", "alice", "carol", models.SurfaceHard))

	res := c.Lookup("alice", models.SurfaceHard)
	assert.Equal(t, SourceTourAverage, res.Source.Kind, "two hard matches are below the overall minimum")

	c.Add(statMatch("m3", "alice", "dave", models.SurfaceClay))
	res = c.Lookup("alice", models.SurfaceHard)
	assert.Equal(t, SourceSurfaceSpecific, res.Source.Kind)
	assert.Equal(t, 2, res.Source.N)
}

func TestCorpusSimilarityWeighted(t *testing.T) {
	c := NewCorpus(CorpusConfig{MinMatches: 2, MinSurfaceMatches: 1, SimilarityNeighbors: 1, AllowTourAverage: true})
	c.Add(statMatch("m1", "alice", "bob", models.SurfaceHard))
	c.Add(statMatch("m2", "alice", "bob", models.SurfaceHard))
	c.Add(statMatch("m3", "carol", "dave", models.SurfaceClay))

	carol := c.Lookup("carol", models.SurfaceClay)
	assert.Equal(t, SourceSimilarityWeighted, carol.Source.Kind)
	assert.Equal(t, 1, carol.Source.N)
	assert.Equal(t, 1, carol.Stats.Matches, "own match count is kept")
	assert.False(t, carol.Source.Real())
	alice := c.Lookup("alice", models.SurfaceHard).Stats
	assert.InDelta(t, alice.FirstServeWon, carol.Stats.FirstServeWon, 1e-9, "nearest established player is alice")

	dave := c.Lookup("dave", models.SurfaceClay)
	bob := c.Lookup("bob", models.SurfaceHard).Stats
	assert.InDelta(t, bob.ReturnVsFirst, dave.Stats.ReturnVsFirst, 1e-9)
	assert.Equal(t, dave, c.Lookup("dave", models.SurfaceClay))

	wide := NewCorpus(CorpusConfig{MinMatches: 2, MinSurfaceMatches: 1, SimilarityNeighbors: 5})
	wide.Add(statMatch("m1", "alice", "bob", models.SurfaceHard))
	wide.Add(statMatch("m2", "alice", "bob", models.SurfaceHard))
	wide.Add(statMatch("m3", "carol", "dave", models.SurfaceClay))
	blended := wide.Lookup("carol", models.SurfaceClay)
	assert.Equal(t, 2, blended.Source.N)
	assert.Greater(t, blended.Stats.FirstServeWon, bob.FirstServeWon)
	assert.Less(t, blended.Stats.FirstServeWon, alice.FirstServeWon)
}

func TestTourAveragesFollowTheCorpus(t *testing.T) {
	c := NewCorpus(DefaultCorpusConfig())
	_, ok := c.TourAverages(models.SurfaceHard)
	assert.False(t, ok)

	c.Add(statMatch("m1", "alice", "bob", models.SurfaceHard))
	first, ok := c.TourAverages(models.SurfaceHard)
	require.True(t, ok)
	assert.InDelta(t, 66.0/92.0, first.FirstServeWon, 1e-12)
	assert.InDelta(t, 1-first.FirstServeWon, first.ReturnVsFirst, 1e-12)
	assert.Equal(t, 1, first.Matches)

	// no clay data yet, so clay borrows every surface
	clay, ok := c.TourAverages(models.SurfaceClay)
	require.True(t, ok)
	assert.Equal(t, first, clay)

	m := statMatch("m2", "carol", "dave", models.SurfaceHard)
	m.WinnerServe = served(60, 40, 36, 14)
	c.Add(m)
	second, _ := c.TourAverages(models.SurfaceHard)
	assert.NotEqual(t, first.FirstServeWon, second.FirstServeWon)
}

func TestStatSourceString(t *testing.T) {
	assert.Equal(t, "similarity-weighted(8)", StatSource{Kind: SourceSimilarityWeighted, N: 8}.String())
	assert.Equal(t, "overall", StatSource{Kind: SourceOverall, N: 12}.String())
	assert.False(t, StatSource{Kind: SourceInsufficient}.Usable())
	assert.False(t, StatSource{Kind: SourceTourAverage}.Real())
}

func TestPointModelProfile(t *testing.T) {
	tour := TourAverages{ReturnVsFirst: 0.30, ReturnVsSecond: 0.50}
	server := PlayerStats{FirstServeIn: 0.6, FirstServeWon: 0.75, SecondServeWon: 0.55}
	strongReturner := PlayerStats{ReturnVsFirst: 0.36, ReturnVsSecond: 0.56}

	m := DefaultPointModel()
	p := m.Profile(server, strongReturner, tour)
	assert.InDelta(t, 0.69, p.FirstWon, 1e-12)
	assert.InDelta(t, 0.49, p.SecondWon, 1e-12)
	assert.False(t, p.Clamped)
	assert.InDelta(t, 0.6*0.69+0.4*0.49, p.ServeProbability(), 1e-12)

	m.Adjust = false
	p = m.Profile(server, strongReturner, tour)
	assert.InDelta(t, 0.75, p.FirstWon, 1e-12)

	extreme := PlayerStats{FirstServeIn: 1.3, FirstServeWon: 0.99, SecondServeWon: 0.05}
	p = DefaultPointModel().Profile(extreme, PlayerStats{ReturnVsFirst: 0.3, ReturnVsSecond: 0.5}, tour)
	assert.True(t, p.Clamped)
	assert.Equal(t, 0.95, p.FirstWon)
	assert.Equal(t, 0.20, p.SecondWon)
	assert.Equal(t, 1.0, p.FirstIn)
}

func TestEstimateInsufficientData(t *testing.T) {
	sim, err := NewSimulator(DefaultConfig(), nil, nil)
	require.NoError(t, err)

	a := realStats("alice", 0.62, 0.72, 0.52, 0.3, 0.5)
	b := StatResult{Player: "bob", Source: StatSource{Kind: SourceInsufficient, N: 2}, Stats: PlayerStats{Matches: 2}}

	_, err = sim.Estimate(context.Background(), Request{A: a, B: b, Format: scoring.BestOf(3)})
	var insufficient *models.InsufficientDataError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "bob", insufficient.Player)
	assert.Equal(t, 2, insufficient.Matches)
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestEstimateRequireRealDataRejectsTourAverage(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireRealData = true
	sim, err := NewSimulator(cfg, nil, nil)
	require.NoError(t, err)

	a := realStats("alice", 0.62, 0.72, 0.52, 0.3, 0.5)
	b := realStats("bob", 0.6, 0.7, 0.5, 0.3, 0.5)
	b.Source = StatSource{Kind: SourceTourAverage, N: 100}

	_, err = sim.Estimate(context.Background(), Request{A: a, B: b, Format: scoring.BestOf(3)})
	assert.ErrorIs(t, err, models.ErrInsufficientData)
}

func TestEstimateMonteCarloMatchesClosedForm(t *testing.T) {
	tour := TourAverages{ReturnVsFirst: 0.30, ReturnVsSecond: 0.48}
	a := realStats("alice", 0.62, 0.74, 0.54, 0.31, 0.50)
	b := realStats("bob", 0.58, 0.70, 0.50, 0.29, 0.47)
	req := Request{A: a, B: b, Tour: tour, Format: scoring.BestOf(3), Seed: 99}

	cfg := DefaultConfig()
	cfg.Trials = 20000
	mc, err := NewSimulator(cfg, nil, nil)
	require.NoError(t, err)
	mcEst, err := mc.Estimate(context.Background(), req)
	require.NoError(t, err)

	cfg.Method = MethodClosedForm
	cf, err := NewSimulator(cfg, NewClosedFormCache(time.Minute, 100), nil)
	require.NoError(t, err)
	cfEst, err := cf.Estimate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, 20000, mcEst.Trials)
	assert.Equal(t, MethodMonteCarlo, mcEst.Method)
	assert.Equal(t, MethodClosedForm, cfEst.Method)
	assert.InDelta(t, cfEst.ProbA, mcEst.ProbA, 0.015)
	assert.Greater(t, mcEst.HalfWidth(), 0.0)
	assert.Less(t, mcEst.HalfWidth(), 0.01)
	assert.Equal(t, 0.0, cfEst.HalfWidth())
}

func TestEstimateDeterministicAcrossWorkerCounts(t *testing.T) {
	a := realStats("alice", 0.62, 0.74, 0.54, 0.31, 0.50)
	b := realStats("bob", 0.58, 0.70, 0.50, 0.29, 0.47)
	req := Request{A: a, B: b, Tour: TourAverages{ReturnVsFirst: 0.3, ReturnVsSecond: 0.48}, Format: scoring.BestOf(5), Seed: 7}

	var probs []float64
	for _, workers := range []int{1, 3, 8} {
		cfg := DefaultConfig()
		cfg.Trials = 3000
		cfg.ChunkSize = 250
		cfg.Workers = workers
		sim, err := NewSimulator(cfg, nil, nil)
		require.NoError(t, err)
		est, err := sim.Estimate(context.Background(), req)
		require.NoError(t, err)
		probs = append(probs, est.ProbA)
	}
	assert.Equal(t, probs[0], probs[1])
	assert.Equal(t, probs[0], probs[2])
}

func TestEstimateCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trials = 5000
	sim, err := NewSimulator(cfg, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a := realStats("alice", 0.62, 0.74, 0.54, 0.31, 0.50)
	b := realStats("bob", 0.58, 0.70, 0.50, 0.29, 0.47)
	_, err = sim.Estimate(ctx, Request{A: a, B: b, Format: scoring.BestOf(3)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewSimulatorValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Trials = 0
	_, err := NewSimulator(cfg, nil, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Method = "guess"
	_, err = NewSimulator(cfg, nil, nil)
	assert.Error(t, err)
}

func TestClosedFormCache(t *testing.T) {
	c := NewClosedFormCache(time.Minute, 10)
	defer c.Clear()

	first, err := c.MatchWinProbability(0.65, 0.6, scoring.BestOf(3))
	require.NoError(t, err)
	second, err := c.MatchWinProbability(0.6500000001, 0.6, scoring.BestOf(3))
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.InDelta(t, 0.73650159136421, first, 1e-10)

	hits, misses, ratio := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
	assert.Equal(t, 0.5, ratio)
	assert.Equal(t, 1, c.ItemCount())

	_, err = c.MatchWinProbability(0.6, 0.6, scoring.BestOf(2))
	assert.Error(t, err)
}
