// Package metrics provides the centralized Prometheus registry for replay runs.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	MatchesReplayedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "matches_replayed_total",
		Help:      "Total number of matches applied to rating and statistics state",
	}, []string{"cutoff_policy"})
	PredictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "predictions_total",
		Help:      "Total number of pre-match predictions by model and rating source",
	}, []string{"model", "rating_source"})
	PredictionsExcludedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "predictions_excluded_total",
		Help:      "Total number of predictions excluded from evaluation by reason",
	}, []string{"reason"})
	StatFallbacksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "stat_fallbacks_total",
		Help:      "Total number of player statistic lookups by provenance",
	}, []string{"source"})
	BetsAdmittedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "bets_admitted_total",
		Help:      "Total number of bets admitted by the edge filter",
	}, []string{"staking"})
	MissingOddsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "missing_odds_total",
		Help:      "Total number of predictions without market odds",
	})
	LeakageViolationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "leakage_violations_total",
		Help:      "Total number of temporal ordering violations detected",
	})
	SimulationTrialsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "simulation_trials_total",
		Help:      "Total number of simulated matches",
	})
	SourceRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "baseline_edge",
		Name:      "source_requests_total",
		Help:      "Total number of data source lookups by source and outcome",
	}, []string{"source", "status"})
)

// Gauge metrics
var (
	RatedPlayers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "baseline_edge",
		Name:      "rated_players",
		Help:      "Number of players in the rating store at the end of the last run",
	})
	ClosedFormCacheHitRatio = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "baseline_edge",
		Name:      "closed_form_cache_hit_ratio",
		Help:      "Hit ratio of the closed-form match probability cache",
	})
)

// Histogram metrics
var (
	SimulationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "baseline_edge",
		Name:      "simulation_duration_seconds",
		Help:      "Duration of a single match win-probability estimate in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	ReplayDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "baseline_edge",
		Name:      "replay_duration_seconds",
		Help:      "Duration of replay runs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800},
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(MatchesReplayedTotal)
		registry.MustRegister(PredictionsTotal)
		registry.MustRegister(PredictionsExcludedTotal)
		registry.MustRegister(StatFallbacksTotal)
		registry.MustRegister(BetsAdmittedTotal)
		registry.MustRegister(MissingOddsTotal)
		registry.MustRegister(LeakageViolationsTotal)
		registry.MustRegister(SimulationTrialsTotal)
		registry.MustRegister(SourceRequestsTotal)

		registry.MustRegister(RatedPlayers)
		registry.MustRegister(ClosedFormCacheHitRatio)

		registry.MustRegister(SimulationDuration)
		registry.MustRegister(ReplayDuration)

		registry.MustRegister(ReplayRunsTotal)
		registry.MustRegister(RunBrierScore)
		registry.MustRegister(RunROI)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordMatchReplayed records a match applied to replay state.
func RecordMatchReplayed(policy string) {
	MatchesReplayedTotal.WithLabelValues(policy).Inc()
}

// RecordPrediction records a prediction and its rating provenance.
func RecordPrediction(model, ratingSource string) {
	PredictionsTotal.WithLabelValues(model, ratingSource).Inc()
}

// RecordExclusion records a prediction excluded from evaluation.
func RecordExclusion(reason string) {
	PredictionsExcludedTotal.WithLabelValues(reason).Inc()
}

// RecordStatSource records the provenance of a statistics lookup.
func RecordStatSource(source string) {
	StatFallbacksTotal.WithLabelValues(source).Inc()
}

// RecordBetAdmitted records a bet that passed the edge filter.
func RecordBetAdmitted(staking string) {
	BetsAdmittedTotal.WithLabelValues(staking).Inc()
}

// RecordMissingOdds records a prediction without market odds.
func RecordMissingOdds() {
	MissingOddsTotal.Inc()
}

// RecordLeakageViolation records a temporal ordering violation.
func RecordLeakageViolation() {
	LeakageViolationsTotal.Inc()
}

// RecordSimulation records one win-probability estimate.
func RecordSimulation(trials int, durationSeconds float64) {
	SimulationTrialsTotal.Add(float64(trials))
	SimulationDuration.Observe(durationSeconds)
}

// UpdateRatedPlayers updates the rated players gauge.
func UpdateRatedPlayers(count int) {
	RatedPlayers.Set(float64(count))
}

// UpdateCacheHitRatio updates the closed-form cache hit ratio.
func UpdateCacheHitRatio(ratio float64) {
	ClosedFormCacheHitRatio.Set(ratio)
}

// RecordReplayDuration records replay duration.
func RecordReplayDuration(durationSeconds float64) {
	ReplayDuration.Observe(durationSeconds)
}

// RecordSourceRequest records a data source lookup; status is hit, fetched, not_found or error.
func RecordSourceRequest(source, status string) {
	SourceRequestsTotal.WithLabelValues(source, status).Inc()
}
