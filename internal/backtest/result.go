package backtest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yourusername/baseline-edge/internal/betting"
	"github.com/yourusername/baseline-edge/internal/models"
)

// Result is everything a replay run produced. Two runs over the same input and config
// marshal to identical JSON.
type Result struct {
	RunID        string                  `json:"run_id"`
	CutoffPolicy CutoffPolicy            `json:"cutoff_policy"`
	PolicyLabel  string                  `json:"policy_label"`
	Model        models.PredictionModel  `json:"model"`
	Matches      int                     `json:"matches"`
	Applied      int                     `json:"applied"`
	Predictions  []models.Prediction     `json:"predictions"`
	Bets         []models.Bet            `json:"bets"`
	Ratings      []models.RatingSnapshot `json:"ratings"`
	Calibration  Evaluation              `json:"calibration"`
	// ModelCalibration scores the Elo and simulator probabilities separately
	ModelCalibration []Evaluation      `json:"model_calibration"`
	Betting          betting.Summary   `json:"betting"`
	Reliability      ReliabilityReport `json:"reliability"`
	Coverage         CoverageReport    `json:"coverage"`
	Leakage          LeakageReport     `json:"leakage"`
	WalkForward      WalkForwardResult `json:"walk_forward"`
	Trace            Trace             `json:"trace,omitempty"`
	Duration         time.Duration     `json:"-"`
}

// Excluded returns the number of predictions kept out of evaluation
func (r *Result) Excluded() int {
	n := 0
	for i := range r.Predictions {
		if r.Predictions[i].Excluded {
			n++
		}
	}
	return n
}

// Prediction returns the prediction for a match
func (r *Result) Prediction(matchID string) (models.Prediction, bool) {
	for _, p := range r.Predictions {
		if p.MatchID == matchID {
			return p, true
		}
	}
	return models.Prediction{}, false
}

// Run converts the result into its persisted headline. The summary column holds the
// calibration, betting and reliability sections without the per-record lists.
func (r *Result) Run(createdAt time.Time) (*models.ReplayRun, error) {
	id, err := uuid.Parse(r.RunID)
	if err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", r.RunID, err)
	}
	summary, err := json.Marshal(struct {
		Calibration      Evaluation        `json:"calibration"`
		ModelCalibration []Evaluation      `json:"model_calibration"`
		Betting          betting.Summary   `json:"betting"`
		Reliability      ReliabilityReport `json:"reliability"`
		Coverage         CoverageReport    `json:"coverage"`
		WalkForward      WalkForwardResult `json:"walk_forward"`
	}{r.Calibration, r.ModelCalibration, r.Betting, r.Reliability, r.Coverage, r.WalkForward})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal run summary: %w", err)
	}

	return &models.ReplayRun{
		ID:                id,
		CreatedAt:         createdAt,
		CutoffPolicy:      string(r.CutoffPolicy),
		Model:             r.Model,
		Matches:           r.Matches,
		Predictions:       len(r.Predictions),
		Excluded:          r.Excluded(),
		Brier:             r.Calibration.Brier,
		LogLoss:           r.Calibration.LogLoss,
		ECE:               r.Calibration.ECE,
		FlatROI:           r.Betting.Flat.ROI,
		KellyROI:          r.Betting.Kelly.ROI,
		LeakageViolations: len(r.Leakage.Violations),
		Summary:           summary,
	}, nil
}
