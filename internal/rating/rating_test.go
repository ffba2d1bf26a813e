package rating

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/baseline-edge/internal/models"
)

func day(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n-1)
}

func match(id, winner, loser string, surface models.Surface, d int, sets ...[2]int) *models.Match {
	score := make(models.Scoreline, 0, len(sets))
	for _, s := range sets {
		score = append(score, models.SetScore{WinnerGames: s[0], LoserGames: s[1]})
	}
	return &models.Match{
		ID:         id,
		Winner:     winner,
		Loser:      loser,
		Surface:    surface,
		ActualDate: day(d),
		BestOf:     3,
		Score:      score,
	}
}

func newStore(t *testing.T, minSurface int) *Store {
	t.Helper()
	s, err := NewStore(StoreConfig{DefaultRating: DefaultRating, MinSurfaceMatches: minSurface})
	require.NoError(t, err)
	return s
}

func TestExpectedScore(t *testing.T) {
	assert.Equal(t, 0.5, ExpectedScore(1500, 1500))
	assert.InDelta(t, 1/1.1, ExpectedScore(1900, 1500), 1e-12)
	assert.InDelta(t, 1.0, ExpectedScore(1700, 1500)+ExpectedScore(1500, 1700), 1e-12)
}

func TestKScheduleValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       KSchedule
		wantErr bool
	}{
		{"default", DefaultKSchedule(), false},
		{"flat", FlatK(32), false},
		{"zero default", KSchedule{}, true},
		{"increasing k", KSchedule{Steps: []KStep{{Below: 10, K: 30}, {Below: 20, K: 40}}, DefaultK: 20}, true},
		{"unordered thresholds", KSchedule{Steps: []KStep{{Below: 20, K: 40}, {Below: 10, K: 30}}, DefaultK: 20}, true},
		{"default above last step", KSchedule{Steps: []KStep{{Below: 10, K: 30}}, DefaultK: 40}, true},
		{"three tiers", KSchedule{Steps: []KStep{{Below: 10, K: 64}, {Below: 30, K: 48}}, DefaultK: 32}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidKFactor)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestKScheduleIsNonIncreasing(t *testing.T) {
	s := KSchedule{Steps: []KStep{{Below: 10, K: 64}, {Below: 30, K: 48}}, DefaultK: 32}
	assert.Equal(t, 64.0, s.K(0))
	assert.Equal(t, 64.0, s.K(9))
	assert.Equal(t, 48.0, s.K(10))
	assert.Equal(t, 48.0, s.K(29))
	assert.Equal(t, 32.0, s.K(30))

	prev := s.K(0)
	for n := 1; n < 100; n++ {
		assert.LessOrEqual(t, s.K(n), prev)
		prev = s.K(n)
	}
}

func TestApplyEqualKIsZeroSum(t *testing.T) {
	store := newStore(t, 10)
	u, err := NewUpdater(FlatK(32), OutcomeBinary)
	require.NoError(t, err)

	up, err := u.Apply(store, match("m1", "alice", "bob", models.SurfaceHard, 1, [2]int{6, 2}, [2]int{6, 3}))
	require.NoError(t, err)

	assert.Equal(t, 16.0, up.WinnerOverall.Delta())
	assert.Equal(t, -16.0, up.LoserOverall.Delta())
	assert.Equal(t, 0.0, up.WinnerOverall.Delta()+up.LoserOverall.Delta())
	assert.Equal(t, 0.0, up.WinnerSurface.Delta()+up.LoserSurface.Delta())

	// uneven ratings still move by equal and opposite amounts
	up, err = u.Apply(store, match("m2", "bob", "carol", models.SurfaceClay, 2))
	require.NoError(t, err)
	assert.InDelta(t, 0, up.WinnerOverall.Delta()+up.LoserOverall.Delta(), 1e-9)
	assert.Equal(t, up.KWinner, up.KLoser)
}

func TestApplyDifferentKIsNotZeroSum(t *testing.T) {
	store := newStore(t, 10)
	veteran := store.newRecord("veteran")
	veteran.Matches = 30
	veteran.SurfaceMatches[models.SurfaceHard] = 30
	store.put(veteran)

	u, err := NewUpdater(DefaultKSchedule(), OutcomeBinary)
	require.NoError(t, err)

	up, err := u.Apply(store, match("m1", "rookie", "veteran", models.SurfaceHard, 1))
	require.NoError(t, err)

	assert.Equal(t, 48.0, up.KWinner)
	assert.Equal(t, 32.0, up.KLoser)
	assert.Equal(t, 24.0, up.WinnerOverall.Delta())
	assert.Equal(t, -16.0, up.LoserOverall.Delta())
	assert.Equal(t, 8.0, up.WinnerOverall.Delta()+up.LoserOverall.Delta())

	rookie, ok := store.Get("rookie")
	require.True(t, ok)
	assert.Equal(t, 1524.0, rookie.Overall)
	assert.Equal(t, 1, rookie.Matches)
}

func TestApplyMarginOutcome(t *testing.T) {
	store := newStore(t, 10)
	u, err := NewUpdater(FlatK(32), OutcomeMargin)
	require.NoError(t, err)

	up, err := u.Apply(store, match("m1", "alice", "bob", models.SurfaceGrass, 1, [2]int{6, 2}, [2]int{6, 3}))
	require.NoError(t, err)

	assert.InDelta(t, 12.0/17.0, up.Score, 1e-12)
	assert.InDelta(t, 32*(12.0/17.0-0.5), up.WinnerOverall.Delta(), 1e-9)

	// a narrow win moves ratings less than a binary result would
	narrow, err := u.Apply(store, match("m2", "carol", "dave", models.SurfaceGrass, 1, [2]int{7, 6}, [2]int{6, 7}, [2]int{7, 5}))
	require.NoError(t, err)
	assert.Less(t, narrow.WinnerOverall.Delta(), 16.0)
	assert.Greater(t, narrow.WinnerOverall.Delta(), 0.0)
}

func TestApplyRejectsInvalidPlayers(t *testing.T) {
	store := newStore(t, 10)
	u, _ := NewUpdater(FlatK(32), OutcomeBinary)

	_, err := u.Apply(store, match("m1", "alice", "alice", models.SurfaceHard, 1))
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestBlendingAndSource(t *testing.T) {
	store := newStore(t, 4)
	u, _ := NewUpdater(FlatK(32), OutcomeBinary)

	b, ok := store.Rating("alice", models.SurfaceHard)
	assert.False(t, ok)
	assert.Equal(t, DefaultRating, b.Rating)
	assert.Equal(t, models.RatingSourceDefault, b.Source)

	require.NoError(t, u.Replay(store, []*models.Match{
		match("m1", "alice", "bob", models.SurfaceClay, 1),
		match("m2", "alice", "carol", models.SurfaceHard, 2),
		match("m3", "alice", "dave", models.SurfaceHard, 3),
	}))

	grass, _ := store.Rating("alice", models.SurfaceGrass)
	assert.Equal(t, models.RatingSourceOverall, grass.Source)
	assert.Equal(t, 0.0, grass.Weight)

	hard, _ := store.Rating("alice", models.SurfaceHard)
	rec, _ := store.Get("alice")
	assert.Equal(t, models.RatingSourceBlended, hard.Source)
	assert.Equal(t, 0.5, hard.Weight)
	assert.InDelta(t, 0.5*rec.Surface[models.SurfaceHard]+0.5*rec.Overall, hard.Rating, 1e-9)

	require.NoError(t, u.Replay(store, []*models.Match{
		match("m4", "alice", "erin", models.SurfaceHard, 4),
		match("m5", "alice", "frank", models.SurfaceHard, 5),
	}))
	hard, _ = store.Rating("alice", models.SurfaceHard)
	rec, _ = store.Get("alice")
	assert.Equal(t, models.RatingSourceSurface, hard.Source)
	assert.Equal(t, rec.Surface[models.SurfaceHard], hard.Rating)

	assert.Equal(t, models.RatingSourceDefault, store.Source("alice", "nobody", models.SurfaceHard))
	assert.Equal(t, models.RatingSourceOverall, store.Source("alice", "bob", models.SurfaceHard))
	assert.Equal(t, models.RatingSourceSurface, store.Source("alice", "alice", models.SurfaceHard))
}

func TestReplayIsDeterministic(t *testing.T) {
	var stream []*models.Match
	players := []string{"p1", "p2", "p3", "p4", "p5"}
	surfaces := models.Surfaces
	for i := 0; i < 60; i++ {
		w := players[i%len(players)]
		l := players[(i*3+1)%len(players)]
		if w == l {
			continue
		}
		stream = append(stream, match(fmt.Sprintf("m%d", i), w, l, surfaces[i%3], i+1, [2]int{6, i % 5}, [2]int{7, 5}))
	}

	run := func() []models.RatingSnapshot {
		store := newStore(t, 8)
		u, err := NewUpdater(DefaultKSchedule(), OutcomeMargin)
		require.NoError(t, err)
		require.NoError(t, u.Replay(store, stream))
		return store.Snapshot()
	}

	first, second := run(), run()
	assert.Equal(t, first, second)
	for i := 1; i < len(first); i++ {
		assert.Less(t, first[i-1].Player, first[i].Player)
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	store := newStore(t, 10)
	u, _ := NewUpdater(FlatK(32), OutcomeBinary)
	_, err := u.Apply(store, match("m1", "alice", "bob", models.SurfaceHard, 3))
	require.NoError(t, err)

	snap := store.Snapshot()
	require.Len(t, snap, 2)
	snap[0].Surface[models.SurfaceHard] = 0

	rec, _ := store.Get("alice")
	assert.Equal(t, 1516.0, rec.Surface[models.SurfaceHard])
	assert.Equal(t, day(3), rec.LastPlayed)
}

func TestNewStoreRejectsBadThreshold(t *testing.T) {
	_, err := NewStore(StoreConfig{MinSurfaceMatches: 0})
	assert.Error(t, err)
}
