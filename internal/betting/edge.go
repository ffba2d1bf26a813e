// Package betting turns predictions and market prices into bets and measures their profitability.
package betting

import "fmt"

// EdgePolicy chooses the break-even probability an edge is measured against
type EdgePolicy string

const (
	// EdgePolicyRaw compares against 1/odds on the quoted price, margin included
	EdgePolicyRaw EdgePolicy = "raw"
	// EdgePolicyFair compares against margin-free probabilities. Profit is still settled at quoted odds.
	EdgePolicyFair EdgePolicy = "fair"
)

// ParseEdgePolicy validates a policy label
func ParseEdgePolicy(s string) (EdgePolicy, error) {
	switch EdgePolicy(s) {
	case "", EdgePolicyRaw:
		return EdgePolicyRaw, nil
	case EdgePolicyFair:
		return EdgePolicyFair, nil
	default:
		return "", fmt.Errorf("unknown edge policy %q", s)
	}
}

// ImpliedProbability is the break-even probability of decimal odds
func ImpliedProbability(odds float64) float64 {
	if odds <= 0 {
		return 0
	}
	return 1.0 / odds
}

// Edge is p minus the break-even probability of the quoted odds
func Edge(p, odds float64) float64 {
	return p - ImpliedProbability(odds)
}

// Margin is the bookmaker overround of a two-way market
func Margin(oddsA, oddsB float64) float64 {
	return ImpliedProbability(oddsA) + ImpliedProbability(oddsB) - 1
}

// RemoveVig converts two-way decimal odds to fair probabilities by stripping the overround
func RemoveVig(oddsA, oddsB float64) (float64, float64) {
	rawA := ImpliedProbability(oddsA)
	rawB := ImpliedProbability(oddsB)
	total := rawA + rawB
	if total == 0 {
		return 0, 0
	}
	return rawA / total, rawB / total
}

// edge measures p on a side priced at odds against an opponent priced at other
func (policy EdgePolicy) edge(p, odds, other float64) float64 {
	if policy == EdgePolicyFair {
		fair, _ := RemoveVig(odds, other)
		return p - fair
	}
	return Edge(p, odds)
}

// Admit reports whether an edge passes the threshold. The comparison is strict, so an
// edge of exactly zero is never admitted at threshold zero.
func Admit(edge, threshold float64) bool {
	return edge > threshold
}
