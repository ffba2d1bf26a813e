package repository

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/baseline-edge/internal/database"
	"github.com/yourusername/baseline-edge/internal/models"
)

var (
	testRunID = uuid.MustParse("5b0f0a8e-9a34-5c61-8f5a-3c6b7f3f2a10")
	testDay   = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func testRun() *models.ReplayRun {
	return &models.ReplayRun{
		ID:           testRunID,
		CreatedAt:    testDay.Add(9 * time.Hour),
		CutoffPolicy: "strict",
		Model:        models.ModelElo,
		Matches:      3,
		Predictions:  2,
		Excluded:     1,
		Brier:        0.21,
		LogLoss:      0.61,
		ECE:          0.04,
		FlatROI:      0.05,
		KellyROI:     -0.02,
		Summary:      json.RawMessage(`{"calibration":{"count":1}}`),
	}
}

func testRatings() []models.RatingSnapshot {
	return []models.RatingSnapshot{
		{
			Player:         "p-b",
			Overall:        1484,
			Surface:        map[models.Surface]float64{models.SurfaceHard: 1490},
			Matches:        1,
			SurfaceMatches: map[models.Surface]int{models.SurfaceHard: 1},
			LastPlayed:     testDay,
		},
		{
			Player:         "p-a",
			Overall:        1516,
			Surface:        map[models.Surface]float64{models.SurfaceHard: 1510},
			Matches:        1,
			SurfaceMatches: map[models.Surface]int{models.SurfaceHard: 1},
			LastPlayed:     testDay,
		},
	}
}

func testPredictions() []models.Prediction {
	sim := 0.58
	return []models.Prediction{
		{
			ID:               uuid.NewSHA1(testRunID, []byte("m1")),
			MatchID:          "m1",
			ActualDate:       testDay,
			Surface:          models.SurfaceHard,
			DesignatedPlayer: "p-a",
			Opponent:         "p-b",
			Model:            models.ModelElo,
			PredictedProb:    0.5,
			EloProb:          0.5,
			SimulatorProb:    &sim,
			RatingSource:     models.RatingSourceDefault,
			DateSource:       models.DateSourceRecorded,
			ActualOutcome:    1,
			Excluded:         true,
			ExclusionReason:  "default-rating",
		},
		{
			ID:               uuid.NewSHA1(testRunID, []byte("m2")),
			MatchID:          "m2",
			Surface:          models.SurfaceHard,
			DesignatedPlayer: "p-a",
			Opponent:         "p-c",
			Model:            models.ModelElo,
			PredictedProb:    0.54,
			EloProb:          0.54,
			RatingSource:     models.RatingSourceOverall,
			DateSource:       models.DateSourceBuffered,
		},
	}
}

func TestSQLiteSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.db")
	writer, err := NewSQLiteSnapshotWriter(path, quietLogger())
	require.NoError(t, err)
	defer writer.Close()

	ctx := context.Background()
	require.NoError(t, writer.WriteSnapshot(ctx, testRun(), testRatings(), testPredictions()))

	runs, err := writer.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, testRunID, runs[0].ID)
	assert.Equal(t, models.ModelElo, runs[0].Model)
	assert.True(t, runs[0].CreatedAt.Equal(testDay.Add(9*time.Hour)))
	assert.JSONEq(t, `{"calibration":{"count":1}}`, string(runs[0].Summary))
	assert.True(t, runs[0].Valid())

	ratings, err := writer.Ratings(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, "p-a", ratings[0].Player, "strongest player first")
	assert.InDelta(t, 1510.0, ratings[0].Surface[models.SurfaceHard], 1e-9)
	assert.Equal(t, 1, ratings[0].SurfaceMatches[models.SurfaceHard])
	assert.Equal(t, testDay, ratings[0].LastPlayed)

	total, excluded, err := writer.Predictions(ctx, testRunID)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, 1, excluded)
}

func TestSQLiteSnapshotReplacesRun(t *testing.T) {
	writer, err := NewSQLiteSnapshotWriter(filepath.Join(t.TempDir(), "snapshots.db"), quietLogger())
	require.NoError(t, err)
	defer writer.Close()

	ctx := context.Background()
	require.NoError(t, writer.WriteSnapshot(ctx, testRun(), testRatings(), testPredictions()))
	require.NoError(t, writer.WriteSnapshot(ctx, testRun(), testRatings()[:1], testPredictions()[:1]))

	runs, err := writer.Runs(ctx)
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	ratings, err := writer.Ratings(ctx, testRunID)
	require.NoError(t, err)
	assert.Len(t, ratings, 1)

	total, _, err := writer.Predictions(ctx, testRunID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSQLiteSnapshotUnknownRun(t *testing.T) {
	writer, err := NewSQLiteSnapshotWriter(filepath.Join(t.TempDir(), "snapshots.db"), nil)
	require.NoError(t, err)
	defer writer.Close()

	ratings, err := writer.Ratings(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestNewRepositoriesRequiresDB(t *testing.T) {
	_, err := NewRepositories(nil)
	assert.Error(t, err)
}

func testMatches() []models.Match {
	tb := 5
	return []models.Match{
		{
			ID: "m1", TournamentID: "t1", TournamentName: "Test Open", TournamentDate: testDay,
			Round: "R32", ActualDate: testDay.AddDate(0, 0, 1), Surface: models.SurfaceHard, BestOf: 3,
			Winner: "p-a", Loser: "p-b",
			Score:       models.Scoreline{{WinnerGames: 7, LoserGames: 6, TiebreakLoser: &tb}, {WinnerGames: 6, LoserGames: 3}},
			WinnerServe: &models.ServeCounts{ServePoints: 70, FirstIn: 45, FirstWon: 35, SecondWon: 14},
			LoserServe:  &models.ServeCounts{ServePoints: 72, FirstIn: 40, FirstWon: 28, SecondWon: 15},
			Odds:        &models.MarketOdds{Winner: 1.8, Loser: 2.1, Source: "closing"},
		},
		{
			ID: "m2", TournamentID: "t1", TournamentName: "Test Open", TournamentDate: testDay,
			Round: "QF", Surface: models.SurfaceHard, BestOf: 3, Winner: "p-a", Loser: "p-c",
		},
		{
			ID: "m3", TournamentID: "t2", TournamentName: "Later Open", TournamentDate: testDay.AddDate(0, 1, 0),
			Round: "F", Surface: models.SurfaceClay, BestOf: 5, Winner: "p-c", Loser: "p-b",
		},
	}
}

func TestPostgresMatchRepository(t *testing.T) {
	db := database.SetupTestDB(t)
	database.TruncateAll(t, db)

	repos, err := NewRepositories(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, repos.Match.UpsertBatch(ctx, testMatches()))
	require.NoError(t, repos.Match.UpsertBatch(ctx, testMatches()[:1]))

	n, err := repos.Match.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	m, err := repos.Match.GetByID(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, testMatches()[0], *m)

	_, err = repos.Match.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	loaded, err := repos.Match.LoadMatches(ctx, time.Time{}, testDay.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Equal(t, "m1", loaded[0].ID)
	assert.Nil(t, loaded[1].Odds)
	assert.True(t, loaded[1].ActualDate.IsZero())

	all, err := repos.Match.LoadMatches(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPostgresSaveRun(t *testing.T) {
	db := database.SetupTestDB(t)
	database.TruncateAll(t, db)

	repos, err := NewRepositories(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bets := []models.Bet{
		{ID: uuid.NewSHA1(testRunID, []byte("b1")), MatchID: "m1", ActualDate: testDay, Player: "p-a",
			Staking: models.StakingFlat, Stake: 1, OddsTaken: 2.1, Probability: 0.55, Edge: 0.07, Won: true, Profit: 1.1},
		{ID: uuid.NewSHA1(testRunID, []byte("b2")), MatchID: "m1", ActualDate: testDay, Player: "p-a",
			Staking: models.StakingKelly, Stake: 40, OddsTaken: 2.1, Probability: 0.55, Edge: 0.07, Won: true, Profit: 44},
	}

	// saving twice leaves one copy
	for i := 0; i < 2; i++ {
		require.NoError(t, repos.SaveRun(ctx, testRun(), testPredictions(), bets, testRatings()))
	}

	run, err := repos.Run.GetByID(ctx, testRunID)
	require.NoError(t, err)
	assert.Equal(t, 3, run.Matches)
	assert.JSONEq(t, `{"calibration":{"count":1}}`, string(run.Summary))

	latest, err := repos.Run.GetLatest(ctx, 5)
	require.NoError(t, err)
	assert.Len(t, latest, 1)

	preds, err := repos.Prediction.GetByRun(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "m2", preds[0].MatchID, "undated predictions sort first")
	assert.Equal(t, testPredictions()[0], preds[1])

	flat, err := repos.Bet.GetByRun(ctx, testRunID, models.StakingFlat)
	require.NoError(t, err)
	require.Len(t, flat, 1)
	assert.Equal(t, bets[0], flat[0])

	all, err := repos.Bet.GetByRun(ctx, testRunID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	ratings, err := repos.Rating.GetSnapshots(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, ratings, 2)
	assert.Equal(t, "p-a", ratings[0].Player)

	require.NoError(t, repos.Run.Delete(ctx, testRunID))
	_, err = repos.Run.GetByID(ctx, testRunID)
	assert.ErrorIs(t, err, models.ErrNotFound)
	ratings, err = repos.Rating.GetSnapshots(ctx, testRunID)
	require.NoError(t, err)
	assert.Empty(t, ratings)
}
