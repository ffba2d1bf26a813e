package backtest

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/baseline-edge/internal/models"
)

func scored(id string, p float64, outcome int, actual time.Time) models.Prediction {
	return models.Prediction{
		MatchID:       id,
		ActualDate:    actual,
		Model:         models.ModelElo,
		PredictedProb: p,
		EloProb:       p,
		ActualOutcome: outcome,
		RatingSource:  models.RatingSourceOverall,
		DateSource:    models.DateSourceRecorded,
	}
}

func fourPredictions() []models.Prediction {
	return []models.Prediction{
		scored("a", 0.8, 1, day(1)),
		scored("b", 0.3, 0, day(1)),
		scored("c", 0.6, 0, day(2)),
		scored("d", 0.1, 1, day(2)),
	}
}

func TestEvaluateKnownValues(t *testing.T) {
	ev, err := Evaluate(fourPredictions(), 2)
	require.NoError(t, err)

	assert.Equal(t, 4, ev.Count)
	assert.InDelta(t, 0.5, ev.Accuracy, 1e-12)
	assert.InDelta(t, 0.325, ev.Brier, 1e-12)
	wantLogLoss := -(math.Log(0.8) + math.Log(0.7) + math.Log(0.4) + math.Log(0.1)) / 4
	assert.InDelta(t, wantLogLoss, ev.LogLoss, 1e-12)

	require.Len(t, ev.Bins, 2)
	assert.Equal(t, 2, ev.Bins[0].Count)
	assert.InDelta(t, 0.2, ev.Bins[0].MeanPredicted, 1e-12)
	assert.InDelta(t, 0.5, ev.Bins[0].ObservedRate, 1e-12)
	assert.InDelta(t, 0.3, ev.Bins[0].CalibrationError, 1e-12)
	assert.InDelta(t, 0.7, ev.Bins[1].MeanPredicted, 1e-12)
	assert.InDelta(t, 0.25, ev.ECE, 1e-12)
}

func TestEvaluateIsOrderIndependent(t *testing.T) {
	preds := fourPredictions()
	reversed := make([]models.Prediction, len(preds))
	for i := range preds {
		reversed[len(preds)-1-i] = preds[i]
	}

	a, err := Evaluate(preds, 10)
	require.NoError(t, err)
	b, err := Evaluate(reversed, 10)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEvaluateEdgeCases(t *testing.T) {
	preds := []models.Prediction{
		scored("certain", 1.0, 0, day(1)),
		scored("half", 0.5, 1, day(1)),
	}
	excluded := scored("excluded", 0.9, 1, day(1))
	excluded.Excluded = true
	preds = append(preds, excluded)

	ev, err := Evaluate(preds, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, ev.Count)
	assert.Equal(t, 1, ev.Skipped)
	assert.False(t, math.IsInf(ev.LogLoss, 0), "log-loss is clamped")
	assert.Equal(t, 2, ev.Bins[1].Count, "0.5 and 1.0 fall in the upper bin")
	assert.InDelta(t, 0.0, ev.Accuracy, 1e-12, "0.5 does not predict a win")

	sim, err := EvaluateWith(preds, 2, SimulatorOnly)
	require.NoError(t, err)
	assert.Equal(t, 0, sim.Count)
	assert.Equal(t, 3, sim.Skipped)

	_, err = Evaluate(preds, 0)
	assert.Error(t, err)
}

func TestRunWalkForward(t *testing.T) {
	preds := []models.Prediction{
		scored("a", 0.7, 1, day(1)),
		scored("b", 0.6, 1, day(2)),
		scored("c", 0.4, 1, day(40)),
	}
	bets := []models.Bet{
		{MatchID: "a", ActualDate: day(1), Staking: models.StakingFlat, Stake: 1, Profit: 1},
		{MatchID: "a", ActualDate: day(1), Staking: models.StakingKelly, Stake: 50, Profit: -50},
		{MatchID: "c", ActualDate: day(40), Staking: models.StakingFlat, Stake: 1, Profit: -1},
	}

	result := RunWalkForward(preds, bets, WalkForwardConfig{WindowDays: 30})
	require.Len(t, result.Windows, 2)
	assert.Equal(t, 1, result.Windows[0].WindowID)
	assert.Equal(t, 2, result.Windows[0].Predictions)
	assert.Equal(t, 1, result.Windows[0].Bets, "only flat bets count")
	assert.InDelta(t, 1.0, result.Windows[0].FlatROI, 1e-12)
	assert.Equal(t, 2, result.Windows[1].WindowID)
	assert.Equal(t, day(31), result.Windows[1].Start)
	assert.InDelta(t, 0.5, result.ConsistencyScore, 1e-12)
	assert.Greater(t, result.BrierSpread, 0.0)

	filtered := RunWalkForward(preds, bets, WalkForwardConfig{WindowDays: 30, MinPredictions: 2})
	require.Len(t, filtered.Windows, 1)
	assert.InDelta(t, 1.0, filtered.ConsistencyScore, 1e-12)

	assert.Empty(t, RunWalkForward(preds, bets, WalkForwardConfig{}).Windows)
}

func TestBuildReliability(t *testing.T) {
	preds := fourPredictions()
	preds[0].RatingSource = models.RatingSourceDefault
	preds[0].Excluded = true
	preds[0].ExclusionReason = ExclusionDefaultRating
	preds[1].StatSourceDesignated = "surface-specific"
	preds[1].StatSourceOpponent = "tour-average"
	odds := 2.0
	preds[2].OddsDesignated = &odds
	preds[2].OddsOpponent = &odds

	report := BuildReliability(preds)
	assert.Equal(t, 4, report.Predictions)
	assert.Equal(t, 1, report.Excluded)
	assert.Equal(t, 3, report.MissingOdds)
	assert.InDelta(t, 0.25, Share(report.RatingSources, "default"), 1e-12)
	assert.InDelta(t, 0.75, Share(report.RatingSources, "overall"), 1e-12)
	assert.InDelta(t, 0.5, Share(report.StatSources, "tour-average"), 1e-12)
	assert.InDelta(t, 1.0, Share(report.DateSources, "recorded"), 1e-12)
	assert.Equal(t, "default", report.RatingSources[0].Label, "rows are sorted by label")
}

func TestReports(t *testing.T) {
	result := runMatches(t, testConfig(), threeWay())

	console := GenerateConsoleReport(result)
	assert.Contains(t, console, "Cutoff Policy: strict")
	assert.Contains(t, console, "Leakage: none (4 checked, 0 unverifiable)")
	assert.Contains(t, console, "flat   win rate=")
	assert.Contains(t, console, "kelly  win rate=")

	var buf bytes.Buffer
	require.NoError(t, WritePredictionsCSV(&buf, result.Predictions))
	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "match_id", rows[0][1])
	assert.Equal(t, "m1", rows[1][1])

	dir := t.TempDir()
	written, err := WriteReports(result, dir, []string{FormatConsole, FormatCSV, FormatJSON})
	require.NoError(t, err)
	assert.Len(t, written, 4)

	data, err := os.ReadFile(filepath.Join(dir, "result.json"))
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, result.RunID, decoded["run_id"])

	_, err = WriteReports(result, dir, []string{"html"})
	assert.Error(t, err)
}
