package betting

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)

// KellyFraction returns fraction*(b*p-q)/b with b = odds-1, floored at 0 and capped at maxFraction
func KellyFraction(p, odds, fraction, maxFraction float64) float64 {
	b := odds - 1.0
	if b <= 0 {
		return 0
	}
	q := 1.0 - p
	f := fraction * (b*p - q) / b
	if f < 0 {
		return 0
	}
	if maxFraction > 0 && f > maxFraction {
		return maxFraction
	}
	return f
}

// Settle returns the profit of a stake at decimal odds: (odds-1)*stake if won, -stake otherwise
func Settle(stake, odds float64, won bool) decimal.Decimal {
	s := decimal.NewFromFloat(stake)
	if !won {
		return s.Neg()
	}
	return decimal.NewFromFloat(odds).Sub(one).Mul(s)
}

// Ledger accumulates stakes and profit exactly
type Ledger struct {
	staked decimal.Decimal
	profit decimal.Decimal
	bets   int
	wins   int
}

// Add records a settled bet
func (l *Ledger) Add(stake decimal.Decimal, profit decimal.Decimal, won bool) {
	l.staked = l.staked.Add(stake)
	l.profit = l.profit.Add(profit)
	l.bets++
	if won {
		l.wins++
	}
}

// Bets returns the number of bets recorded
func (l *Ledger) Bets() int {
	return l.bets
}

// Wins returns the number of winning bets
func (l *Ledger) Wins() int {
	return l.wins
}

// Staked returns total stake
func (l *Ledger) Staked() float64 {
	f, _ := l.staked.Float64()
	return f
}

// Profit returns total profit
func (l *Ledger) Profit() float64 {
	f, _ := l.profit.Float64()
	return f
}

// ROI is total profit over total staked
func (l *Ledger) ROI() float64 {
	if l.staked.IsZero() {
		return 0
	}
	f, _ := l.profit.DivRound(l.staked, 12).Float64()
	return f
}
