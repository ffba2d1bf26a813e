package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/yourusername/baseline-edge/internal/models"
)

// WalkForwardConfig configures the rolling-window breakdown of a run
type WalkForwardConfig struct {
	WindowDays int
	// MinPredictions drops windows with fewer scored predictions from the scores
	MinPredictions int
}

// WalkForwardWindow is one consecutive slice of the prediction stream
type WalkForwardWindow struct {
	WindowID    int       `json:"window_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Predictions int       `json:"predictions"`
	Accuracy    float64   `json:"accuracy"`
	Brier       float64   `json:"brier"`
	Bets        int       `json:"bets"`
	FlatProfit  float64   `json:"flat_profit"`
	FlatROI     float64   `json:"flat_roi"`
}

// WalkForwardResult is the per-window breakdown with stability scores
type WalkForwardResult struct {
	Windows []WalkForwardWindow `json:"windows"`
	// ConsistencyScore is the share of windows with positive flat-stake ROI
	ConsistencyScore float64 `json:"consistency_score"`
	// BrierSpread is the standard deviation of the windowed Brier scores
	BrierSpread float64 `json:"brier_spread"`
}

// RunWalkForward splits an already replayed prediction stream into consecutive windows of
// cfg.WindowDays. Every prediction was made out of sample, so no window is re-fitted.
func RunWalkForward(preds []models.Prediction, bets []models.Bet, cfg WalkForwardConfig) WalkForwardResult {
	if cfg.WindowDays <= 0 {
		return WalkForwardResult{}
	}

	var first time.Time
	for i := range preds {
		if preds[i].Excluded || preds[i].ActualDate.IsZero() {
			continue
		}
		d := models.Day(preds[i].ActualDate)
		if first.IsZero() || d.Before(first) {
			first = d
		}
	}
	if first.IsZero() {
		return WalkForwardResult{}
	}

	index := func(t time.Time) int {
		return int(models.Day(t).Sub(first).Hours()/24) / cfg.WindowDays
	}

	grouped := map[int][]models.Prediction{}
	last := 0
	for i := range preds {
		p := preds[i]
		if p.Excluded || p.ActualDate.IsZero() {
			continue
		}
		idx := index(p.ActualDate)
		grouped[idx] = append(grouped[idx], p)
		last = max(last, idx)
	}

	type ledger struct {
		bets   int
		staked decimal.Decimal
		profit decimal.Decimal
	}
	flat := map[int]*ledger{}
	for _, b := range bets {
		if b.Staking != models.StakingFlat || b.ActualDate.IsZero() {
			continue
		}
		idx := index(b.ActualDate)
		l := flat[idx]
		if l == nil {
			l = &ledger{}
			flat[idx] = l
		}
		l.bets++
		l.staked = l.staked.Add(decimal.NewFromFloat(b.Stake))
		l.profit = l.profit.Add(decimal.NewFromFloat(b.Profit))
	}

	var result WalkForwardResult
	for idx := 0; idx <= last; idx++ {
		window := grouped[idx]
		if len(window) == 0 || len(window) < cfg.MinPredictions {
			continue
		}
		ev, err := EvaluateWith(window, 1, Headline)
		if err != nil {
			continue
		}
		start := first.AddDate(0, 0, idx*cfg.WindowDays)
		w := WalkForwardWindow{
			WindowID:    idx + 1,
			Start:       start,
			End:         start.AddDate(0, 0, cfg.WindowDays),
			Predictions: ev.Count,
			Accuracy:    ev.Accuracy,
			Brier:       ev.Brier,
		}
		if l := flat[idx]; l != nil {
			w.Bets = l.bets
			w.FlatProfit = l.profit.InexactFloat64()
			if l.staked.IsPositive() {
				w.FlatROI = l.profit.Div(l.staked).InexactFloat64()
			}
		}
		result.Windows = append(result.Windows, w)
	}

	result.ConsistencyScore = CalculateConsistency(result.Windows)
	result.BrierSpread = brierSpread(result.Windows)
	return result
}

// CalculateConsistency calculates percentage of profitable windows
func CalculateConsistency(windows []WalkForwardWindow) float64 {
	if len(windows) == 0 {
		return 0
	}
	profitable := 0
	for _, w := range windows {
		if w.FlatROI > 0 {
			profitable++
		}
	}
	return float64(profitable) / float64(len(windows))
}

func brierSpread(windows []WalkForwardWindow) float64 {
	if len(windows) < 2 {
		return 0
	}
	mean := 0.0
	for _, w := range windows {
		mean += w.Brier
	}
	mean /= float64(len(windows))
	variance := 0.0
	for _, w := range windows {
		variance += (w.Brier - mean) * (w.Brier - mean)
	}
	return math.Sqrt(variance / float64(len(windows)-1))
}
