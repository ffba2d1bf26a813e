package logger

import (
	"github.com/sirupsen/logrus"
)

// ReplayLogger provides dedicated logging for replay runs.
type ReplayLogger struct {
	*logrus.Entry
}

// NewReplayLogger creates a new replay logger.
func NewReplayLogger(baseLogger *logrus.Logger) *ReplayLogger {
	return &ReplayLogger{
		Entry: baseLogger.WithField("component", "replay"),
	}
}

// LogRunStarted logs the start of a replay run.
func (rl *ReplayLogger) LogRunStarted(runID, policy, model string, matches int) {
	rl.WithFields(logrus.Fields{
		"run_id":        runID,
		"cutoff_policy": policy,
		"model":         model,
		"matches":       matches,
	}).Info("Replay run started")
}

// LogRunCompleted logs a finished replay run.
func (rl *ReplayLogger) LogRunCompleted(runID string, predictions, excluded, bets int, durationSeconds float64) {
	rl.WithFields(logrus.Fields{
		"run_id":           runID,
		"predictions":      predictions,
		"excluded":         excluded,
		"bets":             bets,
		"duration_seconds": durationSeconds,
	}).Info("Replay run completed")
}

// LogDateCoverage logs how match dates were resolved.
func (rl *ReplayLogger) LogDateCoverage(coverage map[string]int, total int) {
	rl.WithFields(logrus.Fields{
		"coverage": coverage,
		"total":    total,
	}).Info("Match dates resolved")
}

// LogStatFallback logs a statistics lookup that did not use the player's own surface data.
func (rl *ReplayLogger) LogStatFallback(matchID, player, source string) {
	rl.WithFields(logrus.Fields{
		"match_id": matchID,
		"player":   player,
		"source":   source,
	}).Debug("Statistics fallback used")
}

// LogExclusion logs a prediction excluded from evaluation.
func (rl *ReplayLogger) LogExclusion(matchID, reason string) {
	rl.WithFields(logrus.Fields{
		"match_id": matchID,
		"reason":   reason,
	}).Debug("Prediction excluded from evaluation")
}

// LogLeakageViolation logs a temporal ordering violation.
func (rl *ReplayLogger) LogLeakageViolation(matchID, offenderID string, matchDate, offenderDate string) {
	rl.WithFields(logrus.Fields{
		"match_id":      matchID,
		"match_date":    matchDate,
		"offender_id":   offenderID,
		"offender_date": offenderDate,
	}).Error("Temporal ordering violation detected")
}
