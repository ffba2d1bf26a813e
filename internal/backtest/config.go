package backtest

import (
	"fmt"
	"strings"
	"time"

	"github.com/yourusername/baseline-edge/internal/betting"
	"github.com/yourusername/baseline-edge/internal/config"
	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/rating"
	"github.com/yourusername/baseline-edge/internal/scoring"
	"github.com/yourusername/baseline-edge/internal/simulator"
)

// Config extends core config with everything one replay run needs
type Config struct {
	// StartDate and EndDate bound the evaluation window. Matches before StartDate still
	// warm up ratings and statistics but are not predicted. Zero values are unbounded.
	StartDate time.Time
	EndDate   time.Time

	CutoffPolicy    CutoffPolicy
	Dates           DateResolverConfig
	Model           models.PredictionModel
	BlendWeight     float64
	Simulate        bool
	RequireRealData bool
	FailOnLeakage   bool
	Seed            int64
	CalibrationBins int
	FinalSet        scoring.SetFormat

	Rating    rating.StoreConfig
	KSchedule rating.KSchedule
	Outcome   rating.OutcomePolicy
	Simulator simulator.Config
	Corpus    simulator.CorpusConfig
	Betting   betting.Config

	WalkForward WalkForwardConfig
	OutputPath  string
}

// DefaultConfig returns a strict Elo-only replay
func DefaultConfig() Config {
	return Config{
		CutoffPolicy:    CutoffStrict,
		Dates:           DateResolverConfig{BufferDays: 14, RoundOffsets: DefaultRoundOffsets()},
		Model:           models.ModelElo,
		BlendWeight:     0.5,
		FailOnLeakage:   true,
		Seed:            20240101,
		CalibrationBins: 10,
		FinalSet:        scoring.StandardSet,
		Rating:          rating.StoreConfig{DefaultRating: rating.DefaultRating, MinSurfaceMatches: 10},
		KSchedule:       rating.DefaultKSchedule(),
		Outcome:         rating.OutcomeBinary,
		Simulator:       simulator.DefaultConfig(),
		Corpus:          simulator.DefaultCorpusConfig(),
		Betting:         betting.DefaultConfig(),
		WalkForward:     WalkForwardConfig{WindowDays: 90},
	}
}

// simulates reports whether the run needs the simulator at all
func (c Config) simulates() bool {
	return c.Simulate || c.Model == models.ModelSimulator || c.Model == models.ModelBlend
}

// inWindow reports whether a match is predicted rather than only used for warm-up
func (c Config) inWindow(day time.Time) bool {
	if !c.StartDate.IsZero() && day.Before(models.Day(c.StartDate)) {
		return false
	}
	if !c.EndDate.IsZero() && day.After(models.Day(c.EndDate)) {
		return false
	}
	return true
}

// Validate validates replay config parameters
func (c Config) Validate() error {
	if !c.StartDate.IsZero() && !c.EndDate.IsZero() && c.StartDate.After(c.EndDate) {
		return fmt.Errorf("start date must be before end date")
	}
	if _, err := ParseCutoffPolicy(string(c.CutoffPolicy)); err != nil {
		return err
	}
	if c.CutoffPolicy == CutoffConservative && c.Dates.BufferDays <= 0 {
		return fmt.Errorf("conservative cutoff policy requires a positive buffer")
	}
	if c.Dates.BufferDays < 0 {
		return fmt.Errorf("buffer days cannot be negative")
	}
	switch c.Model {
	case models.ModelElo, models.ModelSimulator, models.ModelBlend:
	default:
		return fmt.Errorf("unknown prediction model %q", c.Model)
	}
	if c.BlendWeight < 0 || c.BlendWeight > 1 {
		return fmt.Errorf("blend weight must be in [0,1], got %v", c.BlendWeight)
	}
	if c.CalibrationBins < 1 {
		return fmt.Errorf("calibration bins must be positive, got %d", c.CalibrationBins)
	}
	if err := c.KSchedule.Validate(); err != nil {
		return err
	}
	if c.simulates() && c.Simulator.Trials < 1 {
		return fmt.Errorf("simulation trials must be at least 1, got %d", c.Simulator.Trials)
	}
	return c.Betting.Validate()
}

// FromConfig converts app config to replay config
func FromConfig(cfg *config.Config) (Config, error) {
	if cfg == nil {
		return Config{}, fmt.Errorf("config is required")
	}
	bt := DefaultConfig()

	var err error
	if cfg.Replay.StartDate != "" {
		if bt.StartDate, err = time.Parse("2006-01-02", cfg.Replay.StartDate); err != nil {
			return Config{}, fmt.Errorf("invalid start date: %w", err)
		}
	}
	if cfg.Replay.EndDate != "" {
		if bt.EndDate, err = time.Parse("2006-01-02", cfg.Replay.EndDate); err != nil {
			return Config{}, fmt.Errorf("invalid end date: %w", err)
		}
	}
	if bt.CutoffPolicy, err = ParseCutoffPolicy(cfg.Replay.CutoffPolicy); err != nil {
		return Config{}, err
	}
	if bt.FinalSet, err = scoring.ParseFinalSet(cfg.Replay.FinalSet); err != nil {
		return Config{}, err
	}
	if bt.Betting.EdgePolicy, err = betting.ParseEdgePolicy(cfg.Betting.EdgePolicy); err != nil {
		return Config{}, err
	}

	bt.Dates.BufferDays = cfg.Replay.BufferDays
	if len(cfg.Replay.RoundOffsets) > 0 {
		bt.Dates.RoundOffsets = cfg.Replay.RoundOffsets
	}
	bt.Dates.Aliases = cfg.Replay.Aliases
	bt.Model = models.PredictionModel(strings.ToLower(cfg.Replay.Model))
	bt.BlendWeight = cfg.Replay.BlendWeight
	bt.Simulate = cfg.Replay.Simulate
	bt.RequireRealData = cfg.Replay.RequireRealData
	bt.FailOnLeakage = cfg.Replay.FailOnLeakage
	bt.Seed = cfg.Replay.Seed

	bt.Rating = rating.StoreConfig{
		DefaultRating:     cfg.Rating.DefaultRating,
		MinSurfaceMatches: cfg.Rating.MinSurfaceMatches,
	}
	steps := make([]rating.KStep, 0, len(cfg.Rating.KSteps))
	for _, s := range cfg.Rating.KSteps {
		steps = append(steps, rating.KStep{Below: s.Below, K: s.K})
	}
	bt.KSchedule = rating.KSchedule{Steps: steps, DefaultK: cfg.Rating.DefaultK}
	if cfg.Rating.Outcome != "" {
		bt.Outcome = rating.OutcomePolicy(cfg.Rating.Outcome)
	}

	sim := cfg.Simulator
	bt.Simulator = simulator.Config{
		Trials:          sim.Trials,
		ChunkSize:       sim.ChunkSize,
		Workers:         sim.Workers,
		Method:          simulator.Method(sim.Method),
		Z:               sim.Z,
		RequireRealData: cfg.Replay.RequireRealData,
		MinMatches:      sim.MinMatches,
		Model: simulator.PointModel{
			Adjust:       sim.OpponentAdjustment,
			FirstBounds:  simulator.Bounds{Min: sim.FirstServeMin, Max: sim.FirstServeMax},
			SecondBounds: simulator.Bounds{Min: sim.SecondServeMin, Max: sim.SecondServeMax},
		},
	}
	bt.Corpus = simulator.CorpusConfig{
		MinMatches:          sim.MinMatches,
		MinSurfaceMatches:   sim.MinSurfaceMatches,
		SimilarityNeighbors: sim.SimilarityNeighbors,
		AllowTourAverage:    sim.AllowTourAverage,
	}

	b := cfg.Betting
	bt.Betting.EdgeThreshold = b.EdgeThreshold
	bt.Betting.FlatStake = b.FlatStake
	bt.Betting.InitialBankroll = b.InitialBankroll
	bt.Betting.KellyFraction = b.KellyFraction
	bt.Betting.MaxFraction = b.MaxFraction
	bt.Betting.Bootstrap.Resamples = b.BootstrapResamples
	bt.Betting.Bootstrap.Level = b.BootstrapLevel
	bt.Betting.Bootstrap.Seed = cfg.Replay.Seed

	bt.CalibrationBins = cfg.Evaluation.CalibrationBins
	bt.WalkForward = WalkForwardConfig{
		WindowDays:     cfg.Evaluation.WalkForwardWindowDays,
		MinPredictions: cfg.Evaluation.MinPredictionsPerWindow,
	}
	bt.OutputPath = cfg.Evaluation.OutputPath

	return bt, bt.Validate()
}
