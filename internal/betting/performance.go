package betting

import (
	"math"
	"sort"
)

// profitFactorCap stands in for an infinite profit factor when nothing was lost
const profitFactorCap = 999

// Performance holds risk and payoff statistics over one stream of settled bets.
// Ratios use per-bet returns (profit / stake) and are not annualised.
type Performance struct {
	WinRate       float64 `json:"win_rate"`
	ProfitFactor  float64 `json:"profit_factor"`
	Expectancy    float64 `json:"expectancy"`
	AverageWin    float64 `json:"average_win"`
	AverageLoss   float64 `json:"average_loss"`
	LargestWin    float64 `json:"largest_win"`
	LargestLoss   float64 `json:"largest_loss"`
	SharpeRatio   float64 `json:"sharpe_ratio"`
	SortinoRatio  float64 `json:"sortino_ratio"`
	ValueAtRisk95 float64 `json:"var_95"`
	ValueAtRisk99 float64 `json:"var_99"`
}

// CalculatePerformance summarises parallel profit and stake slices in settlement order
func CalculatePerformance(profits, stakes []float64) Performance {
	var perf Performance
	if len(profits) == 0 || len(profits) != len(stakes) {
		return perf
	}

	wins, losses := 0, 0
	grossProfit, grossLoss := 0.0, 0.0
	returns := make([]float64, 0, len(profits))
	for i, pl := range profits {
		switch {
		case pl > 0:
			wins++
			grossProfit += pl
			perf.LargestWin = math.Max(perf.LargestWin, pl)
		case pl < 0:
			losses++
			grossLoss -= pl
			perf.LargestLoss = math.Min(perf.LargestLoss, pl)
		}
		if stakes[i] > 0 {
			returns = append(returns, pl/stakes[i])
		}
	}

	n := float64(len(profits))
	perf.WinRate = float64(wins) / n
	perf.Expectancy = (grossProfit - grossLoss) / n
	if wins > 0 {
		perf.AverageWin = grossProfit / float64(wins)
	}
	if losses > 0 {
		perf.AverageLoss = -grossLoss / float64(losses)
	}
	switch {
	case grossLoss > 0:
		perf.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		perf.ProfitFactor = profitFactorCap
	}

	mean := average(returns)
	if std := stddev(returns); std > 0 {
		perf.SharpeRatio = mean / std
	}
	if std := downsideStddev(returns); std > 0 {
		perf.SortinoRatio = mean / std
	}
	perf.ValueAtRisk95 = valueAtRisk(returns, 0.95)
	perf.ValueAtRisk99 = valueAtRisk(returns, 0.99)
	return perf
}

// valueAtRisk returns the per-bet return at the (1-level) quantile
func valueAtRisk(returns []float64, level float64) float64 {
	if len(returns) == 0 {
		return 0
	}
	sorted := append([]float64(nil), returns...)
	sort.Float64s(sorted)
	index := int(math.Floor((1.0 - level) * float64(len(sorted))))
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	return math.Sqrt(variance / float64(len(values)))
}

// downsideStddev is the spread of the losing returns only
func downsideStddev(values []float64) float64 {
	negatives := make([]float64, 0, len(values))
	for _, v := range values {
		if v < 0 {
			negatives = append(negatives, v)
		}
	}
	return stddev(negatives)
}
