package backtest

import (
	"fmt"
	"math"
	"sort"

	"github.com/yourusername/baseline-edge/internal/models"
)

// logLossEpsilon keeps log-loss finite for predictions of exactly 0 or 1
const logLossEpsilon = 1e-15

// CalibrationBin is one equal-width bucket of the calibration table
type CalibrationBin struct {
	Lower            float64 `json:"lower"`
	Upper            float64 `json:"upper"`
	Count            int     `json:"count"`
	MeanPredicted    float64 `json:"mean_predicted"`
	ObservedRate     float64 `json:"observed_rate"`
	CalibrationError float64 `json:"calibration_error"`
}

// Evaluation measures the quality of a set of probabilistic predictions
type Evaluation struct {
	Model    string           `json:"model"`
	Count    int              `json:"count"`
	Skipped  int              `json:"skipped"`
	Accuracy float64          `json:"accuracy"`
	Brier    float64          `json:"brier"`
	LogLoss  float64          `json:"log_loss"`
	ECE      float64          `json:"expected_calibration_error"`
	Bins     []CalibrationBin `json:"bins"`
}

// ProbabilitySelector picks the probability to score from a prediction. ok=false skips it.
type ProbabilitySelector func(p *models.Prediction) (prob float64, ok bool)

// Headline scores the prediction's headline probability
func Headline(p *models.Prediction) (float64, bool) {
	return p.PredictedProb, true
}

// EloOnly scores the Elo-implied probability
func EloOnly(p *models.Prediction) (float64, bool) {
	return p.EloProb, true
}

// SimulatorOnly scores the simulator probability when one was produced
func SimulatorOnly(p *models.Prediction) (float64, bool) {
	if p.SimulatorProb == nil {
		return 0, false
	}
	return *p.SimulatorProb, true
}

// Evaluate scores the headline probability of every non-excluded prediction
func Evaluate(preds []models.Prediction, bins int) (Evaluation, error) {
	return EvaluateWith(preds, bins, Headline)
}

// EvaluateWith scores the probability chosen by sel. The predictions are sorted into a
// canonical order first so the sums, and hence the result, do not depend on input order.
func EvaluateWith(preds []models.Prediction, bins int, sel ProbabilitySelector) (Evaluation, error) {
	if bins < 1 {
		return Evaluation{}, fmt.Errorf("calibration bins must be positive, got %d", bins)
	}

	sorted := make([]*models.Prediction, 0, len(preds))
	for i := range preds {
		sorted = append(sorted, &preds[i])
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].MatchID != sorted[j].MatchID {
			return sorted[i].MatchID < sorted[j].MatchID
		}
		return sorted[i].Model < sorted[j].Model
	})

	type acc struct {
		count   int
		sumPred float64
		sumOutc float64
	}
	buckets := make([]acc, bins)

	var ev Evaluation
	var correct int
	var brier, logLoss float64
	for _, p := range sorted {
		if p.Excluded {
			ev.Skipped++
			continue
		}
		prob, ok := sel(p)
		if !ok || math.IsNaN(prob) {
			ev.Skipped++
			continue
		}
		y := float64(p.ActualOutcome)

		ev.Count++
		predicted := 0
		if prob > 0.5 {
			predicted = 1
		}
		if predicted == p.ActualOutcome {
			correct++
		}
		brier += (prob - y) * (prob - y)
		clamped := math.Min(math.Max(prob, logLossEpsilon), 1-logLossEpsilon)
		logLoss -= y*math.Log(clamped) + (1-y)*math.Log(1-clamped)

		idx := int(prob * float64(bins))
		if idx >= bins {
			idx = bins - 1
		}
		if idx < 0 {
			idx = 0
		}
		buckets[idx].count++
		buckets[idx].sumPred += prob
		buckets[idx].sumOutc += y
	}

	ev.Bins = make([]CalibrationBin, bins)
	width := 1.0 / float64(bins)
	for i, b := range buckets {
		bin := CalibrationBin{
			Lower: float64(i) * width,
			Upper: float64(i+1) * width,
			Count: b.count,
		}
		if b.count > 0 {
			bin.MeanPredicted = b.sumPred / float64(b.count)
			bin.ObservedRate = b.sumOutc / float64(b.count)
			bin.CalibrationError = math.Abs(bin.MeanPredicted - bin.ObservedRate)
		}
		ev.Bins[i] = bin
	}

	if ev.Count == 0 {
		return ev, nil
	}
	n := float64(ev.Count)
	ev.Accuracy = float64(correct) / n
	ev.Brier = brier / n
	ev.LogLoss = logLoss / n
	for _, bin := range ev.Bins {
		ev.ECE += float64(bin.Count) / n * bin.CalibrationError
	}
	return ev, nil
}
