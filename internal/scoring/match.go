package scoring

import "fmt"

// MatchFormat describes a best-of-N match
type MatchFormat struct {
	BestOf   int       `mapstructure:"best_of" json:"best_of"`
	Set      SetFormat `mapstructure:"set" json:"set"`
	FinalSet SetFormat `mapstructure:"final_set" json:"final_set"`
}

// BestOf returns a match format with standard sets and a standard final set
func BestOf(n int) MatchFormat {
	return MatchFormat{BestOf: n, Set: StandardSet, FinalSet: StandardSet}
}

// Validate checks the number of sets
func (f MatchFormat) Validate() error {
	if f.BestOf != 3 && f.BestOf != 5 {
		return fmt.Errorf("best of %d is not supported: must be 3 or 5", f.BestOf)
	}
	return nil
}

// SetsToWin is the number of sets that decides the match
func (f MatchFormat) SetsToWin() int {
	return (f.BestOf + 1) / 2
}

func (f MatchFormat) setFormat(setsA, setsB int) SetFormat {
	need := f.SetsToWin()
	if setsA == need-1 && setsB == need-1 && f.FinalSet != (SetFormat{}) {
		return f.FinalSet
	}
	return f.Set
}

// MatchWinProbability is the probability side A wins the match with A serving first
func MatchWinProbability(pa, pb float64, format MatchFormat) (float64, error) {
	return MatchWinProbabilityFrom(pa, pb, format, SideA)
}

// MatchWinProbabilityFrom is MatchWinProbability with an explicit first server
func MatchWinProbabilityFrom(pa, pb float64, format MatchFormat, firstServer Side) (float64, error) {
	if err := format.Validate(); err != nil {
		return 0, err
	}
	pa, pb = ClampProbability(pa), ClampProbability(pb)
	need := format.SetsToWin()

	// set distributions only depend on the set format and who serves first
	type distKey struct {
		format       SetFormat
		firstServerA bool
	}
	dists := make(map[distKey][]SetOutcome, 4)
	distribution := func(f SetFormat, firstServerA bool) []SetOutcome {
		key := distKey{f, firstServerA}
		d, ok := dists[key]
		if !ok {
			d = SetScoreDistribution(pa, pb, firstServerA, f)
			dists[key] = d
		}
		return d
	}

	memo := make([]float64, need*need*2)
	known := make([]bool, need*need*2)

	var solve func(setsA, setsB int, firstServerA bool) float64
	solve = func(setsA, setsB int, firstServerA bool) float64 {
		if setsA == need {
			return 1
		}
		if setsB == need {
			return 0
		}
		idx := (setsA*need + setsB) * 2
		if firstServerA {
			idx++
		}
		if known[idx] {
			return memo[idx]
		}

		total := 0.0
		for _, o := range distribution(format.setFormat(setsA, setsB), firstServerA) {
			next := firstServerA
			if o.FlipsServer() {
				next = !next
			}
			if o.WonByA() {
				total += o.Prob * solve(setsA+1, setsB, next)
			} else {
				total += o.Prob * solve(setsA, setsB+1, next)
			}
		}
		memo[idx] = total
		known[idx] = true
		return total
	}

	return solve(0, 0, firstServer == SideA), nil
}
