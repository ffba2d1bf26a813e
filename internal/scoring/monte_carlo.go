package scoring

import (
	"math/rand"

	"github.com/yourusername/baseline-edge/internal/models"
)

// maxTiedPoints bounds win-by-two sequences. Past it neither side can break serve in any
// practical sense and the winner is drawn evenly, which is the closed-form limit.
const maxTiedPoints = 1000

// PointFunc draws one point and reports whether the server won it
type PointFunc func(rng *rand.Rand, server Side) bool

// IIDPoints returns a stationary point model where A and B win their service points with pa and pb
func IIDPoints(pa, pb float64) PointFunc {
	pa, pb = ClampProbability(pa), ClampProbability(pb)
	return func(rng *rand.Rand, server Side) bool {
		if server == SideA {
			return SimulatePoint(rng, pa)
		}
		return SimulatePoint(rng, pb)
	}
}

// SimulatePoint draws a single point won with probability p
func SimulatePoint(rng *rand.Rand, p float64) bool {
	return rng.Float64() < p
}

// GameResult is a simulated service game
type GameResult struct {
	Winner         Side
	ServerPoints   int
	ReceiverPoints int
}

// SimulateGame plays one deuce-advantage service game
func SimulateGame(rng *rand.Rand, points PointFunc, server Side) GameResult {
	var res GameResult
	for {
		if points(rng, server) {
			res.ServerPoints++
		} else {
			res.ReceiverPoints++
		}
		if res.ServerPoints >= 4 && res.ServerPoints-res.ReceiverPoints >= 2 {
			res.Winner = server
			return res
		}
		if res.ReceiverPoints >= 4 && res.ReceiverPoints-res.ServerPoints >= 2 {
			res.Winner = server.Other()
			return res
		}
		if res.ServerPoints+res.ReceiverPoints >= maxTiedPoints {
			res.Winner = coinFlip(rng)
			return res
		}
	}
}

// TiebreakResult is a simulated tiebreak with points by absolute side
type TiebreakResult struct {
	Winner  Side
	PointsA int
	PointsB int
}

// LoserPoints returns the points won by the tiebreak loser
func (t TiebreakResult) LoserPoints() int {
	if t.Winner == SideA {
		return t.PointsB
	}
	return t.PointsA
}

// SimulateTiebreak plays a tiebreak to target points. firstServer serves point 0, then
// service alternates every two points.
func SimulateTiebreak(rng *rand.Rand, points PointFunc, firstServer Side, target int) TiebreakResult {
	if target <= 0 {
		target = 7
	}
	var res TiebreakResult
	for n := 0; ; n++ {
		server := firstServer
		if !TiebreakServerA(n) {
			server = firstServer.Other()
		}
		won := points(rng, server)
		if won == (server == SideA) {
			res.PointsA++
		} else {
			res.PointsB++
		}
		switch {
		case res.PointsA >= target && res.PointsA-res.PointsB >= 2:
			res.Winner = SideA
			return res
		case res.PointsB >= target && res.PointsB-res.PointsA >= 2:
			res.Winner = SideB
			return res
		case n >= maxTiedPoints:
			res.Winner = coinFlip(rng)
			return res
		}
	}
}

// SetResult is a simulated set
type SetResult struct {
	Winner   Side
	GamesA   int
	GamesB   int
	Tiebreak *TiebreakResult
	// NextServer serves first in the following set
	NextServer Side
}

// SimulateSet plays one set with firstServer serving the opening game
func SimulateSet(rng *rand.Rand, points PointFunc, firstServer Side, format SetFormat) SetResult {
	format = format.normalized()
	g := format.GamesToWin
	server := firstServer
	var res SetResult

	for {
		if format.TiebreakPoints > 0 && res.GamesA == g && res.GamesB == g {
			tb := SimulateTiebreak(rng, points, server, format.TiebreakPoints)
			res.Tiebreak = &tb
			if tb.Winner == SideA {
				res.GamesA++
			} else {
				res.GamesB++
			}
			res.Winner = tb.Winner
			// the tiebreak counts as a game: the receiver of its first point serves next
			res.NextServer = server.Other()
			return res
		}

		game := SimulateGame(rng, points, server)
		if game.Winner == SideA {
			res.GamesA++
		} else {
			res.GamesB++
		}
		server = server.Other()

		lead := res.GamesA - res.GamesB
		switch {
		case res.GamesA >= g && lead >= 2:
			res.Winner = SideA
		case res.GamesB >= g && -lead >= 2:
			res.Winner = SideB
		case res.GamesA+res.GamesB >= maxTiedPoints:
			res.Winner = coinFlip(rng)
		default:
			continue
		}
		res.NextServer = server
		return res
	}
}

// MatchResult is a simulated match with the full scoreline
type MatchResult struct {
	Winner Side
	Sets   []SetResult
}

// SetsWon returns sets won by A and B
func (m MatchResult) SetsWon() (a, b int) {
	for _, s := range m.Sets {
		if s.Winner == SideA {
			a++
		} else {
			b++
		}
	}
	return a, b
}

// Scoreline returns the sets from the match winner's perspective
func (m MatchResult) Scoreline() models.Scoreline {
	out := make(models.Scoreline, 0, len(m.Sets))
	for _, s := range m.Sets {
		score := models.SetScore{WinnerGames: s.GamesA, LoserGames: s.GamesB}
		if m.Winner == SideB {
			score.WinnerGames, score.LoserGames = s.GamesB, s.GamesA
		}
		if s.Tiebreak != nil {
			loser := s.Tiebreak.LoserPoints()
			score.TiebreakLoser = &loser
		}
		out = append(out, score)
	}
	return out
}

// Score formats the scoreline, e.g. "6-4 3-6 7-6(5)"
func (m MatchResult) Score() string {
	return m.Scoreline().String()
}

// SimulateMatch plays a full match. Formats are assumed validated by the caller.
func SimulateMatch(rng *rand.Rand, points PointFunc, format MatchFormat, firstServer Side) MatchResult {
	need := format.SetsToWin()
	if need < 1 {
		need = 1
	}
	server := firstServer
	res := MatchResult{Sets: make([]SetResult, 0, format.BestOf)}

	for {
		setsA, setsB := res.SetsWon()
		if setsA == need {
			res.Winner = SideA
			return res
		}
		if setsB == need {
			res.Winner = SideB
			return res
		}
		set := SimulateSet(rng, points, server, format.setFormat(setsA, setsB))
		res.Sets = append(res.Sets, set)
		server = set.NextServer
	}
}

func coinFlip(rng *rand.Rand) Side {
	if rng.Float64() < 0.5 {
		return SideA
	}
	return SideB
}
