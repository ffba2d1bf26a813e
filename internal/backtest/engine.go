package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/baseline-edge/internal/betting"
	applogger "github.com/yourusername/baseline-edge/internal/logger"
	"github.com/yourusername/baseline-edge/internal/metrics"
	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/rating"
	"github.com/yourusername/baseline-edge/internal/scoring"
	"github.com/yourusername/baseline-edge/internal/simulator"
)

// Exclusion reasons recorded on predictions kept out of evaluation
const (
	ExclusionInsufficientData = "insufficient-data"
	ExclusionDefaultRating    = "default-rating"
)

var (
	runNamespace        = uuid.NewSHA1(uuid.NameSpaceURL, []byte("baseline-edge/run"))
	predictionNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("baseline-edge/prediction"))
)

// MatchSource loads historical matches. Matches before start are needed for warm-up,
// so callers usually pass a zero start.
type MatchSource interface {
	LoadMatches(ctx context.Context, start, end time.Time) ([]models.Match, error)
}

// MatchDateSource returns per-match play dates for the given tournaments
type MatchDateSource interface {
	MatchDates(ctx context.Context, tournamentIDs []string) ([]models.MatchDate, error)
}

// Engine orchestrates replay runs. It holds no state between runs: every Run builds a
// fresh rating store, statistics corpus and pending queue.
type Engine struct {
	config    Config
	cache     *simulator.ClosedFormCache
	logger    *logrus.Logger
	replayLog *applogger.ReplayLogger
	auditLog  *applogger.AuditLogger
}

// NewEngine creates a new replay engine. cache may be nil.
func NewEngine(cfg Config, cache *simulator.ClosedFormCache, logger *logrus.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid replay config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		config:    cfg,
		cache:     cache,
		logger:    logger,
		replayLog: applogger.NewReplayLogger(logger),
		auditLog:  applogger.NewAuditLogger(logger),
	}, nil
}

// Config returns the replay configuration
func (e *Engine) Config() Config {
	return e.config
}

// Logger returns the engine logger
func (e *Engine) Logger() *logrus.Logger {
	return e.logger
}

// RunFromSource loads matches and their secondary dates, then runs the replay.
// dates may be nil.
func (e *Engine) RunFromSource(ctx context.Context, matches MatchSource, dates MatchDateSource) (*Result, error) {
	loaded, err := matches.LoadMatches(ctx, time.Time{}, e.config.EndDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load matches: %w", err)
	}

	var secondary []models.MatchDate
	if dates != nil {
		secondary, err = dates.MatchDates(ctx, tournamentIDs(loaded))
		if err != nil {
			return nil, fmt.Errorf("failed to load match dates: %w", err)
		}
	}
	return e.Run(ctx, loaded, secondary)
}

func tournamentIDs(matches []models.Match) []string {
	seen := make(map[string]bool)
	var ids []string
	for i := range matches {
		id := matches[i].TournamentID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Run replays matches in time order. Before each prediction every match the cutoff policy
// releases is applied, the state is checked for leakage, and only then is the match
// predicted and queued. A leakage violation aborts the run unless FailOnLeakage is off.
func (e *Engine) Run(ctx context.Context, matches []models.Match, secondary []models.MatchDate) (*Result, error) {
	start := time.Now()
	policy := string(e.config.CutoffPolicy)

	for i := range matches {
		if err := matches[i].Validate(); err != nil {
			metrics.RecordReplayRun(policy, "failure")
			return nil, fmt.Errorf("invalid match: %w", err)
		}
	}

	runID := e.runID(matches)
	e.replayLog.LogRunStarted(runID, policy, string(e.config.Model), len(matches))
	e.auditLog.LogRunConfig(runID, e.params())

	resolved, coverage := NewDateResolver(e.config.Dates, secondary).Resolve(matches)
	e.replayLog.LogDateCoverage(coverage.AsMap(), coverage.Total)
	e.config.CutoffPolicy.order(resolved)

	state, err := newReplayState(e.config)
	if err != nil {
		metrics.RecordReplayRun(policy, "failure")
		return nil, err
	}

	var sim *simulator.Simulator
	if e.config.simulates() {
		simCfg := e.config.Simulator
		simCfg.RequireRealData = e.config.RequireRealData
		sim, err = simulator.NewSimulator(simCfg, e.cache, e.logger)
		if err != nil {
			metrics.RecordReplayRun(policy, "failure")
			return nil, fmt.Errorf("failed to create simulator: %w", err)
		}
	}

	// the legacy policy releases by tournament start, so the whole tournament is queued up front
	inclusive := e.config.CutoffPolicy == CutoffTournamentInclusive
	if inclusive {
		for i := range resolved {
			state.push(&resolved[i])
		}
	}

	preds := make([]models.Prediction, 0, len(resolved))
	for i := range resolved {
		if err := ctx.Err(); err != nil {
			metrics.RecordReplayRun(policy, "failure")
			return nil, err
		}
		rm := &resolved[i]
		if err := state.applyEligible(rm); err != nil {
			metrics.RecordReplayRun(policy, "failure")
			return nil, err
		}

		if e.config.inWindow(rm.Earliest) {
			if v := state.validator.Check(&rm.Match); v != nil {
				metrics.RecordLeakageViolation()
				e.replayLog.LogLeakageViolation(v.MatchID, v.OffenderID,
					v.MatchDate.Format("2006-01-02"), v.OffenderDate.Format("2006-01-02"))
				if e.config.FailOnLeakage {
					metrics.RecordReplayRun(policy, "leakage")
					return nil, v
				}
			}

			pred, err := e.predict(ctx, i, rm, state, sim, runID)
			if err != nil {
				metrics.RecordReplayRun(policy, "failure")
				return nil, err
			}
			preds = append(preds, pred)
		}

		if !inclusive {
			state.push(rm)
		}
	}

	if err := state.flush(); err != nil {
		metrics.RecordReplayRun(policy, "failure")
		return nil, err
	}

	result, err := e.evaluate(ctx, runID, preds, state, sim != nil)
	if err != nil {
		metrics.RecordReplayRun(policy, "failure")
		return nil, err
	}
	result.Matches = len(matches)
	result.Coverage = coverage
	result.Duration = time.Since(start)

	status := "success"
	if !result.Leakage.Clean() {
		status = "leakage"
	}
	metrics.RecordReplayRun(policy, status)
	metrics.UpdateRatedPlayers(state.store.Len())
	metrics.RecordReplayDuration(result.Duration.Seconds())
	e.replayLog.LogRunCompleted(runID, len(preds), result.Excluded(), len(result.Bets), result.Duration.Seconds())
	return result, nil
}

func (e *Engine) evaluate(ctx context.Context, runID string, preds []models.Prediction, state *replayState, simulated bool) (*Result, error) {
	bins := e.config.CalibrationBins

	headline, err := EvaluateWith(preds, bins, Headline)
	if err != nil {
		return nil, err
	}
	headline.Model = string(e.config.Model)
	metrics.UpdateRunBrier(headline.Model, headline.Brier)

	elo, err := EvaluateWith(preds, bins, EloOnly)
	if err != nil {
		return nil, err
	}
	elo.Model = string(models.ModelElo)
	perModel := []Evaluation{elo}
	if simulated {
		simEval, err := EvaluateWith(preds, bins, SimulatorOnly)
		if err != nil {
			return nil, err
		}
		simEval.Model = string(models.ModelSimulator)
		perModel = append(perModel, simEval)
	}

	bcfg := e.config.Betting
	bcfg.Bootstrap.Seed = e.config.Seed
	evaluator, err := betting.NewEvaluator(bcfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create betting evaluator: %w", err)
	}
	summary, err := evaluator.Evaluate(ctx, preds)
	if err != nil {
		return nil, fmt.Errorf("betting evaluation failed: %w", err)
	}
	for _, b := range summary.Bets {
		e.auditLog.LogBetRecorded(runID, b)
	}

	return &Result{
		RunID:            runID,
		CutoffPolicy:     e.config.CutoffPolicy,
		PolicyLabel:      e.config.CutoffPolicy.Label(),
		Model:            e.config.Model,
		Applied:          state.applied,
		Predictions:      preds,
		Bets:             summary.Bets,
		Ratings:          state.store.Snapshot(),
		Calibration:      headline,
		ModelCalibration: perModel,
		Betting:          summary,
		Reliability:      BuildReliability(preds),
		Leakage:          state.validator.Report(),
		WalkForward:      RunWalkForward(preds, summary.Bets, e.config.WalkForward),
		Trace:            state.validator.Trace(),
	}, nil
}

// predict builds the prediction for the idx-th match from the current state only
func (e *Engine) predict(ctx context.Context, idx int, rm *ResolvedMatch, state *replayState, sim *simulator.Simulator, runID string) (models.Prediction, error) {
	m := &rm.Match

	// the designated player does not depend on who won
	designated, opponent := m.Winner, m.Loser
	if opponent < designated {
		designated, opponent = opponent, designated
	}
	outcome := 0
	if m.Winner == designated {
		outcome = 1
	}

	ra, _ := state.store.Rating(designated, m.Surface)
	rb, _ := state.store.Rating(opponent, m.Surface)
	elo := rating.ExpectedScore(ra.Rating, rb.Rating)

	pred := models.Prediction{
		ID:               uuid.NewSHA1(predictionNamespace, []byte(runID+"|"+m.ID)),
		MatchID:          m.ID,
		ActualDate:       m.ActualDate,
		Surface:          m.Surface,
		DesignatedPlayer: designated,
		Opponent:         opponent,
		Model:            e.config.Model,
		EloProb:          elo,
		RatingSource:     state.store.Source(designated, opponent, m.Surface),
		DateSource:       m.DateSource,
		ActualOutcome:    outcome,
	}
	if pred.ActualDate.IsZero() {
		pred.ActualDate = rm.Earliest
	}

	var exclusion string
	if sim != nil {
		est, err := e.simulate(ctx, idx, m, designated, opponent, state, sim, &pred)
		var insufficient *models.InsufficientDataError
		switch {
		case err == nil:
			p, hw := est.ProbA, est.HalfWidth()
			pred.SimulatorProb = &p
			pred.SimulatorHalfWidth = &hw
		case errors.As(err, &insufficient):
			// an Elo headline stays valid without statistics
			if e.config.Model != models.ModelElo {
				exclusion = ExclusionInsufficientData
			}
		default:
			return models.Prediction{}, fmt.Errorf("failed to simulate match %s: %w", m.ID, err)
		}
	}

	headline := elo
	if pred.SimulatorProb != nil {
		switch e.config.Model {
		case models.ModelSimulator:
			headline = *pred.SimulatorProb
		case models.ModelBlend:
			w := e.config.BlendWeight
			headline = w*(*pred.SimulatorProb) + (1-w)*elo
		}
	}
	headline, err := scoring.ValidateProbability(headline)
	if err != nil {
		e.logger.WithError(err).WithField("match_id", m.ID).Warn("Prediction probability clamped")
	}
	pred.PredictedProb = headline

	if exclusion == "" && e.config.RequireRealData && pred.RatingSource == models.RatingSourceDefault {
		exclusion = ExclusionDefaultRating
	}
	if exclusion != "" {
		pred.Excluded = true
		pred.ExclusionReason = exclusion
		metrics.RecordExclusion(exclusion)
		e.replayLog.LogExclusion(m.ID, exclusion)
	}

	if m.Odds.Valid() {
		od, oo := m.Odds.Winner, m.Odds.Loser
		if designated != m.Winner {
			od, oo = oo, od
		}
		implied := betting.ImpliedProbability(od)
		fair, _ := betting.RemoveVig(od, oo)
		margin := betting.Margin(od, oo)
		pred.OddsDesignated = &od
		pred.OddsOpponent = &oo
		pred.MarketImpliedProb = &implied
		pred.MarketFairProb = &fair
		pred.MarketMargin = &margin
	}

	metrics.RecordPrediction(string(pred.Model), string(pred.RatingSource))
	return pred, nil
}

func (e *Engine) simulate(ctx context.Context, idx int, m *models.Match, designated, opponent string, state *replayState, sim *simulator.Simulator, pred *models.Prediction) (simulator.Estimate, error) {
	a := state.corpus.Lookup(designated, m.Surface)
	b := state.corpus.Lookup(opponent, m.Surface)
	pred.StatSourceDesignated = a.Source.String()
	pred.StatSourceOpponent = b.Source.String()
	for _, side := range []simulator.StatResult{a, b} {
		metrics.RecordStatSource(string(side.Source.Kind))
		if side.Source.Kind != simulator.SourceSurfaceSpecific {
			e.replayLog.LogStatFallback(m.ID, side.Player, side.Source.String())
		}
	}

	tour, _ := state.corpus.TourAverages(m.Surface)
	bestOf := m.BestOf
	if bestOf == 0 {
		bestOf = 3
	}
	format := scoring.MatchFormat{BestOf: bestOf, Set: scoring.StandardSet, FinalSet: e.config.FinalSet}

	return sim.Estimate(ctx, simulator.Request{
		A:      a,
		B:      b,
		Tour:   tour,
		Format: format,
		Seed:   scoring.DeriveSeed(e.config.Seed, uint64(idx)),
	})
}

// runID is derived from the replay and staking configuration and the match ids so reruns share it
func (e *Engine) runID(matches []models.Match) string {
	ids := make([]string, len(matches))
	for i := range matches {
		ids[i] = matches[i].ID
	}
	sort.Strings(ids)
	bc := e.config.Betting
	key := fmt.Sprintf("%s|%s|%v|%d|%s|%s|%s|%v|%v|%v|%v|%v|%s", e.config.CutoffPolicy, e.config.Model, e.config.BlendWeight,
		e.config.Seed, e.config.StartDate.Format("2006-01-02"), e.config.EndDate.Format("2006-01-02"),
		bc.EdgePolicy, bc.EdgeThreshold, bc.FlatStake, bc.InitialBankroll, bc.KellyFraction, bc.MaxFraction,
		strings.Join(ids, ","))
	return uuid.NewSHA1(runNamespace, []byte(key)).String()
}

func (e *Engine) params() map[string]interface{} {
	return map[string]interface{}{
		"cutoff_policy":     string(e.config.CutoffPolicy),
		"model":             string(e.config.Model),
		"blend_weight":      e.config.BlendWeight,
		"buffer_days":       e.config.Dates.BufferDays,
		"require_real_data": e.config.RequireRealData,
		"fail_on_leakage":   e.config.FailOnLeakage,
		"seed":              e.config.Seed,
		"trials":            e.config.Simulator.Trials,
		"edge_threshold":    e.config.Betting.EdgeThreshold,
		"edge_policy":       string(e.config.Betting.EdgePolicy),
	}
}
