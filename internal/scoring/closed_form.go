package scoring

// GameWinProbability is the probability the server wins a deuce-advantage game
// when every point is won independently with probability p.
func GameWinProbability(p float64) float64 {
	p = ClampProbability(p)
	q := 1 - p
	p2, q2 := p*p, q*q
	p4 := p2 * p2
	// to 40-0, 40-15, 40-30 then win the next point
	direct := p4 * (1 + 4*q + 10*q2)
	// reach deuce (20 orderings of 3-3), then win two in a row before losing two in a row
	deuce := 20 * p2 * p * q2 * q
	fromDeuce := p2 / (1 - 2*p*q)
	return direct + deuce*fromDeuce
}

// TiebreakServerA reports whether side A serves point n (0-based) of a tiebreak A opened.
// A serves the first point, then each player serves two in turn.
func TiebreakServerA(n int) bool {
	return ((n+1)/2)%2 == 0
}

// tiedWinProbability resolves an endless win-by-two sequence. Every two points (or games)
// contain one served by each player, so the winner takes both before losing both.
func tiedWinProbability(pa, pb float64) float64 {
	win := pa * (1 - pb)
	lose := (1 - pa) * pb
	if win+lose == 0 {
		return 0.5
	}
	return win / (win + lose)
}

// TiebreakWinProbability is the probability that the player serving first wins a tiebreak
// to `points` (win by two). pa and pb are each player's point-win probability on serve.
func TiebreakWinProbability(pa, pb float64, points int) float64 {
	if points <= 0 {
		points = 7
	}
	pa, pb = ClampProbability(pa), ClampProbability(pb)

	size := points + 1
	memo := make([]float64, size*size)
	known := make([]bool, size*size)

	var solve func(a, b int) float64
	solve = func(a, b int) float64 {
		switch {
		case a >= points && a-b >= 2:
			return 1
		case b >= points && b-a >= 2:
			return 0
		case a == b && a >= points-1:
			return tiedWinProbability(pa, pb)
		}
		idx := a*size + b
		if known[idx] {
			return memo[idx]
		}
		win := 1 - pb
		if TiebreakServerA(a + b) {
			win = pa
		}
		result := win*solve(a+1, b) + (1-win)*solve(a, b+1)
		memo[idx] = result
		known[idx] = true
		return result
	}

	return solve(0, 0)
}
