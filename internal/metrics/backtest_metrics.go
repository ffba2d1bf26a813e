package metrics

import "github.com/prometheus/client_golang/prometheus"

// Backtest counter vectors
var (
	ReplayRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "replay_runs_total",
		Help:      "Total number of replay runs by cutoff policy and status",
	}, []string{"cutoff_policy", "status"})
)

// Backtest gauge vectors
var (
	RunBrierScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "baseline_edge",
		Name:      "run_brier_score",
		Help:      "Brier score of the last completed run by model",
	}, []string{"model"})
	RunROI = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "baseline_edge",
		Name:      "run_roi",
		Help:      "Return on investment of the last completed run by staking policy",
	}, []string{"staking"})
)

// RecordReplayRun records a replay run event.
// status should be one of: "success", "failure", "leakage"
func RecordReplayRun(policy, status string) {
	ReplayRunsTotal.WithLabelValues(policy, status).Inc()
}

// UpdateRunBrier updates the Brier score gauge for a model.
func UpdateRunBrier(model string, brier float64) {
	RunBrierScore.WithLabelValues(model).Set(brier)
}

// UpdateRunROI updates the ROI gauge for a staking policy.
func UpdateRunROI(staking string, roi float64) {
	RunROI.WithLabelValues(staking).Set(roi)
}
