package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReplayRun is the persisted headline of one replay run
type ReplayRun struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	CutoffPolicy      string          `db:"cutoff_policy" json:"cutoff_policy"`
	Model             PredictionModel `db:"model" json:"model"`
	Matches           int             `db:"matches" json:"matches"`
	Predictions       int             `db:"predictions" json:"predictions"`
	Excluded          int             `db:"excluded" json:"excluded"`
	Brier             float64         `db:"brier" json:"brier"`
	LogLoss           float64         `db:"log_loss" json:"log_loss"`
	ECE               float64         `db:"ece" json:"ece"`
	FlatROI           float64         `db:"flat_roi" json:"flat_roi"`
	KellyROI          float64         `db:"kelly_roi" json:"kelly_roi"`
	LeakageViolations int             `db:"leakage_violations" json:"leakage_violations"`
	Summary           json.RawMessage `db:"summary" json:"summary,omitempty"`
}

// Valid reports whether the run passed the leakage check
func (r *ReplayRun) Valid() bool {
	return r.LeakageViolations == 0
}
