package scoring

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/baseline-edge/internal/models"
)

func TestGameWinProbability(t *testing.T) {
	tests := []struct {
		name string
		p    float64
		want float64
	}{
		{"even", 0.5, 0.5},
		{"never wins", 0, 0},
		{"always wins", 1, 1},
		{"sixty percent", 0.6, 0.7357292307692308},
		{"three quarters", 0.75, 0.94921875},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GameWinProbability(tt.p)
			assert.False(t, math.IsNaN(got))
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	assert.Equal(t, 0.5, GameWinProbability(0.5))
}

func TestGameWinProbabilityMonotone(t *testing.T) {
	prev := GameWinProbability(0)
	for p := 0.01; p <= 1.0; p += 0.01 {
		cur := GameWinProbability(p)
		assert.GreaterOrEqual(t, cur, prev, "p=%v", p)
		prev = cur
	}
}

func TestTiebreakServerRotation(t *testing.T) {
	want := []bool{true, false, false, true, true, false, false, true, true}
	for n, w := range want {
		assert.Equal(t, w, TiebreakServerA(n), "point %d", n)
	}
}

func TestTiebreakWinProbability(t *testing.T) {
	assert.InDelta(t, 0.5, TiebreakWinProbability(0.6, 0.6, 7), 1e-12)
	assert.InDelta(t, 0.5795667986418366, TiebreakWinProbability(0.6, 0.55, 7), 1e-12)
	assert.InDelta(t, 0.6887954461699273, TiebreakWinProbability(0.7, 0.6, 10), 1e-12)

	// the first server has no advantage in a tiebreak
	assert.InDelta(t, TiebreakWinProbability(0.6, 0.55, 7), 1-TiebreakWinProbability(0.55, 0.6, 7), 1e-12)

	boundaries := [][2]float64{{0, 0}, {1, 1}, {0, 1}, {1, 0}, {1, 0.5}}
	for _, b := range boundaries {
		got := TiebreakWinProbability(b[0], b[1], 7)
		assert.False(t, math.IsNaN(got), "pa=%v pb=%v", b[0], b[1])
		assert.True(t, got >= 0 && got <= 1)
	}
	assert.Equal(t, 0.5, TiebreakWinProbability(1, 1, 7))
	assert.Equal(t, 1.0, TiebreakWinProbability(1, 0, 7))
}

func TestSetScoreDistribution(t *testing.T) {
	for _, format := range []SetFormat{StandardSet, MatchTiebreakSet, AdvantageSet} {
		dist := SetScoreDistribution(0.64, 0.58, true, format)
		total := 0.0
		for _, o := range dist {
			total += o.Prob
			assert.NotEqual(t, o.GamesA, o.GamesB)
		}
		assert.InDelta(t, 1.0, total, 1e-12, "format %+v", format)
	}

	dist := SetScoreDistribution(0.65, 0.6, true, StandardSet)
	for i := 1; i < len(dist); i++ {
		prev, cur := dist[i-1], dist[i]
		assert.True(t, prev.GamesA < cur.GamesA || (prev.GamesA == cur.GamesA && prev.GamesB < cur.GamesB))
	}
	for _, o := range dist {
		if o.Tiebreak {
			assert.Equal(t, 13, o.GamesA+o.GamesB)
		}
	}
}

func TestServeFirstInvariance(t *testing.T) {
	pairs := [][2]float64{{0.65, 0.6}, {0.7, 0.55}, {0.5, 0.5}, {0.9, 0.3}, {0.62, 0.38}}
	formats := []MatchFormat{
		BestOf(3),
		BestOf(5),
		{BestOf: 5, Set: StandardSet, FinalSet: AdvantageSet},
		{BestOf: 3, Set: StandardSet, FinalSet: MatchTiebreakSet},
	}

	for _, p := range pairs {
		assert.InDelta(t,
			SetWinProbability(p[0], p[1], true, StandardSet),
			SetWinProbability(p[0], p[1], false, StandardSet), 1e-9)
		assert.InDelta(t,
			SetWinProbability(p[0], p[1], true, AdvantageSet),
			SetWinProbability(p[0], p[1], false, AdvantageSet), 1e-9)

		for _, f := range formats {
			a, err := MatchWinProbabilityFrom(p[0], p[1], f, SideA)
			require.NoError(t, err)
			b, err := MatchWinProbabilityFrom(p[0], p[1], f, SideB)
			require.NoError(t, err)
			assert.InDelta(t, a, b, 1e-9, "pa=%v pb=%v format=%+v", p[0], p[1], f)
		}
	}
}

func TestMatchWinProbability(t *testing.T) {
	tests := []struct {
		pa, pb float64
		bestOf int
		want   float64
	}{
		{0.65, 0.6, 3, 0.73650159136421},
		{0.65, 0.6, 5, 0.78540214819564},
		{0.6, 0.4, 3, 0.99608637139040},
		{0.55, 0.45, 3, 0.91002623533117},
		{0.52, 0.48, 3, 0.70465760308835},
		{0.5, 0.5, 3, 0.5},
	}
	for _, tt := range tests {
		got, err := MatchWinProbability(tt.pa, tt.pb, BestOf(tt.bestOf))
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-10, "pa=%v pb=%v bo%d", tt.pa, tt.pb, tt.bestOf)
	}

	got, err := MatchWinProbability(0.65, 0.6, MatchFormat{BestOf: 3, Set: StandardSet, FinalSet: MatchTiebreakSet})
	require.NoError(t, err)
	assert.InDelta(t, 0.7376734700452425, got, 1e-10)

	got, err = MatchWinProbability(0.65, 0.6, MatchFormat{BestOf: 5, Set: StandardSet, FinalSet: AdvantageSet})
	require.NoError(t, err)
	assert.InDelta(t, 0.7885149324423719, got, 1e-10)
}

func TestMatchWinProbabilityBoundaries(t *testing.T) {
	for _, p := range [][2]float64{{0, 0}, {1, 1}, {1, 0}, {0, 1}} {
		got, err := MatchWinProbability(p[0], p[1], BestOf(5))
		require.NoError(t, err)
		assert.False(t, math.IsNaN(got))
	}
	got, _ := MatchWinProbability(1, 0, BestOf(3))
	assert.Equal(t, 1.0, got)
	got, _ = MatchWinProbability(1, 1, BestOf(3))
	assert.InDelta(t, 0.5, got, 1e-12)
}

func TestMatchWinProbabilityInvalidFormat(t *testing.T) {
	_, err := MatchWinProbability(0.6, 0.6, BestOf(4))
	assert.Error(t, err)
	_, err = MatchWinProbability(0.6, 0.6, MatchFormat{})
	assert.Error(t, err)
}

func TestValidateProbability(t *testing.T) {
	p, err := ValidateProbability(0.7)
	require.NoError(t, err)
	assert.Equal(t, 0.7, p)

	p, err = ValidateProbability(1.2)
	assert.Equal(t, 1.0, p)
	var degenerate *models.DegenerateProbabilityError
	require.True(t, errors.As(err, &degenerate))
	assert.Equal(t, 1.2, degenerate.Value)

	p, err = ValidateProbability(math.NaN())
	assert.Equal(t, 0.5, p)
	assert.ErrorIs(t, err, models.ErrDegenerateProbability)

	p, err = ValidateProbability(-0.1)
	assert.Equal(t, 0.0, p)
	assert.Error(t, err)
}
