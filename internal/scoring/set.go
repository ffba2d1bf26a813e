package scoring

import (
	"fmt"
	"sort"
)

// SetFormat describes how a set is decided
type SetFormat struct {
	// GamesToWin is the game count that wins a set by two (6 in every professional format)
	GamesToWin int `mapstructure:"games_to_win" json:"games_to_win"`
	// TiebreakPoints is the tiebreak target played at GamesToWin-all. 0 plays an advantage set.
	TiebreakPoints int `mapstructure:"tiebreak_points" json:"tiebreak_points"`
}

// StandardSet is a set with a 7-point tiebreak at 6-6
var StandardSet = SetFormat{GamesToWin: 6, TiebreakPoints: 7}

// MatchTiebreakSet plays a 10-point tiebreak at 6-6
var MatchTiebreakSet = SetFormat{GamesToWin: 6, TiebreakPoints: 10}

// AdvantageSet has no tiebreak
var AdvantageSet = SetFormat{GamesToWin: 6, TiebreakPoints: 0}

// ParseFinalSet maps a final-set label to its format
func ParseFinalSet(label string) (SetFormat, error) {
	switch label {
	case "", "normal", "tiebreak":
		return StandardSet, nil
	case "super", "match-tiebreak":
		return MatchTiebreakSet, nil
	case "none", "advantage":
		return AdvantageSet, nil
	default:
		return SetFormat{}, fmt.Errorf("unknown final set format %q", label)
	}
}

func (f SetFormat) normalized() SetFormat {
	if f.GamesToWin <= 0 {
		f.GamesToWin = 6
	}
	if f.TiebreakPoints < 0 {
		f.TiebreakPoints = 0
	}
	return f
}

// SetOutcome is one final game score of a set, seen from side A
type SetOutcome struct {
	GamesA   int
	GamesB   int
	Tiebreak bool
	Prob     float64
}

// WonByA reports whether side A took the set
func (o SetOutcome) WonByA() bool {
	return o.GamesA > o.GamesB
}

// FlipsServer reports whether the other player serves first in the next set
func (o SetOutcome) FlipsServer() bool {
	return (o.GamesA+o.GamesB)%2 == 1
}

// SetScoreDistribution propagates probability mass forward over game scores and returns the
// distribution of final set scores, ordered by (GamesA, GamesB).
//
// Advantage sets never end in theory. Their tail past (G-1)-all is resolved in closed form and
// reported as G+1 to G-1; every real extended score has the same even game total, so the next
// set's server is unaffected.
func SetScoreDistribution(pa, pb float64, firstServerA bool, format SetFormat) []SetOutcome {
	format = format.normalized()
	g := format.GamesToWin
	holdA := GameWinProbability(pa)
	holdB := GameWinProbability(pb)

	gameWonByA := func(n int) float64 {
		if (n%2 == 0) == firstServerA {
			return holdA
		}
		return 1 - holdB
	}

	mass := make([][]float64, g+1)
	for i := range mass {
		mass[i] = make([]float64, g+1)
	}
	mass[0][0] = 1

	finals := make(map[[2]int]*SetOutcome)
	record := func(a, b int, p float64, tiebreak bool) {
		key := [2]int{a, b}
		o, ok := finals[key]
		if !ok {
			o = &SetOutcome{GamesA: a, GamesB: b, Tiebreak: tiebreak}
			finals[key] = o
		}
		o.Prob += p
	}
	finished := func(a, b int) bool {
		return (a == g && b <= g-2) || (b == g && a <= g-2) || a == g+1 || b == g+1
	}
	advance := func(a, b int, p float64) {
		if finished(a, b) {
			record(a, b, p, false)
			return
		}
		mass[a][b] += p
	}

	for n := 0; n <= 2*g; n++ {
		for a := max(0, n-g); a <= min(n, g); a++ {
			b := n - a
			m := mass[a][b]
			if m == 0 {
				continue
			}

			if a == g && b == g {
				// g-all always has an even game total, so the set's first server opens the tiebreak
				var tb float64
				if firstServerA {
					tb = TiebreakWinProbability(pa, pb, format.TiebreakPoints)
				} else {
					tb = 1 - TiebreakWinProbability(pb, pa, format.TiebreakPoints)
				}
				record(g+1, g, m*tb, true)
				record(g, g+1, m*(1-tb), true)
				continue
			}
			if format.TiebreakPoints == 0 && a == g-1 && b == g-1 {
				var w float64
				if firstServerA {
					w = tiedWinProbability(holdA, holdB)
				} else {
					w = 1 - tiedWinProbability(holdB, holdA)
				}
				record(g+1, g-1, m*w, false)
				record(g-1, g+1, m*(1-w), false)
				continue
			}

			w := gameWonByA(n)
			advance(a+1, b, m*w)
			advance(a, b+1, m*(1-w))
		}
	}

	out := make([]SetOutcome, 0, len(finals))
	for _, o := range finals {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GamesA != out[j].GamesA {
			return out[i].GamesA < out[j].GamesA
		}
		return out[i].GamesB < out[j].GamesB
	})
	return out
}

// SetWinProbability is the probability side A wins the set
func SetWinProbability(pa, pb float64, firstServerA bool, format SetFormat) float64 {
	total := 0.0
	for _, o := range SetScoreDistribution(pa, pb, firstServerA, format) {
		if o.WonByA() {
			total += o.Prob
		}
	}
	return total
}
