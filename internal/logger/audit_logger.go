package logger

import (
	"github.com/sirupsen/logrus"

	"github.com/yourusername/baseline-edge/internal/models"
)

// AuditLogger provides dedicated audit trail logging for every record a run emits.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogBetRecorded logs a bet derived from a prediction.
func (al *AuditLogger) LogBetRecorded(runID string, bet models.Bet) {
	al.WithFields(logrus.Fields{
		"run_id":      runID,
		"bet_id":      bet.ID.String(),
		"match_id":    bet.MatchID,
		"player":      bet.Player,
		"staking":     string(bet.Staking),
		"stake":       bet.Stake,
		"odds":        bet.OddsTaken,
		"probability": bet.Probability,
		"edge":        bet.Edge,
		"won":         bet.Won,
		"profit":      bet.Profit,
		"actual_date": bet.ActualDate.Format("2006-01-02"),
	}).Info("Bet recorded")
}

// LogRunConfig logs the parameters a run was started with.
func (al *AuditLogger) LogRunConfig(runID string, params map[string]interface{}) {
	al.WithFields(logrus.Fields{
		"run_id": runID,
		"params": params,
	}).Info("Run configuration recorded")
}

// LogSnapshotWritten logs a persisted rating snapshot.
func (al *AuditLogger) LogSnapshotWritten(runID, destination string, players int) {
	al.WithFields(logrus.Fields{
		"run_id":      runID,
		"destination": destination,
		"players":     players,
	}).Info("Rating snapshot written")
}
