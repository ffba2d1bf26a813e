package simulator

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/baseline-edge/internal/metrics"
	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/scoring"
)

// Method selects how a win probability is computed
type Method string

const (
	MethodMonteCarlo Method = "monte-carlo"
	MethodClosedForm Method = "closed-form"
)

// Config configures the match simulator
type Config struct {
	Trials    int
	ChunkSize int
	Workers   int
	Method    Method
	Z         float64
	// RequireRealData rejects tour-average stand-ins as well as insufficient data
	RequireRealData bool
	// MinMatches is reported in InsufficientDataError
	MinMatches int
	Model      PointModel
}

// DefaultConfig returns the simulator defaults
func DefaultConfig() Config {
	return Config{
		Trials:     10000,
		ChunkSize:  1000,
		Method:     MethodMonteCarlo,
		Z:          scoring.DefaultZ,
		MinMatches: DefaultCorpusConfig().MinMatches,
		Model:      DefaultPointModel(),
	}
}

// Request is one match to estimate
type Request struct {
	A      StatResult
	B      StatResult
	Tour   TourAverages
	Format scoring.MatchFormat
	Seed   int64
}

// Estimate is a win probability for side A with its simulation error
type Estimate struct {
	ProbA    float64          `json:"prob_a"`
	Interval scoring.Interval `json:"interval"`
	Trials   int              `json:"trials"`
	Method   Method           `json:"method"`
	SourceA  StatSource       `json:"source_a"`
	SourceB  StatSource       `json:"source_b"`
	ProfileA ServeProfile     `json:"profile_a"`
	ProfileB ServeProfile     `json:"profile_b"`
}

// HalfWidth returns the half-width of the confidence interval
func (e Estimate) HalfWidth() float64 {
	return e.Interval.HalfWidth()
}

// Simulator estimates match win probabilities from serve and return statistics
type Simulator struct {
	cfg    Config
	cache  *ClosedFormCache
	logger *logrus.Logger
}

// NewSimulator creates a new simulator. cache may be nil.
func NewSimulator(cfg Config, cache *ClosedFormCache, logger *logrus.Logger) (*Simulator, error) {
	def := DefaultConfig()
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("simulation trials must be at least 1, got %d", cfg.Trials)
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = def.ChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Method == "" {
		cfg.Method = def.Method
	}
	if cfg.Method != MethodMonteCarlo && cfg.Method != MethodClosedForm {
		return nil, fmt.Errorf("unknown simulation method %q", cfg.Method)
	}
	if cfg.Z <= 0 {
		cfg.Z = def.Z
	}
	if cfg.Model == (PointModel{}) {
		cfg.Model = def.Model
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Simulator{cfg: cfg, cache: cache, logger: logger}, nil
}

// Config returns the simulator configuration
func (s *Simulator) Config() Config {
	return s.cfg
}

// Estimate computes the probability that A beats B. Players without usable statistics
// produce an *models.InsufficientDataError naming the player and the best source found.
func (s *Simulator) Estimate(ctx context.Context, req Request) (Estimate, error) {
	if err := req.Format.Validate(); err != nil {
		return Estimate{}, err
	}
	for _, side := range []StatResult{req.A, req.B} {
		if !side.Source.Usable() || (s.cfg.RequireRealData && !side.Source.Real()) {
			return Estimate{}, &models.InsufficientDataError{
				Player:  side.Player,
				Source:  side.Source.String(),
				Matches: side.Stats.Matches,
				Needed:  s.cfg.MinMatches,
			}
		}
	}

	profileA := s.cfg.Model.Profile(req.A.Stats, req.B.Stats, req.Tour)
	profileB := s.cfg.Model.Profile(req.B.Stats, req.A.Stats, req.Tour)
	for _, p := range []struct {
		player  string
		profile ServeProfile
	}{{req.A.Player, profileA}, {req.B.Player, profileB}} {
		if p.profile.Clamped {
			s.logger.WithFields(logrus.Fields{
				"player":     p.player,
				"first_in":   p.profile.FirstIn,
				"first_won":  p.profile.FirstWon,
				"second_won": p.profile.SecondWon,
			}).Debug("Serve probability clamped")
		}
	}

	est := Estimate{
		Method:   s.cfg.Method,
		SourceA:  req.A.Source,
		SourceB:  req.B.Source,
		ProfileA: profileA,
		ProfileB: profileB,
	}

	if s.cfg.Method == MethodClosedForm {
		p, err := s.closedForm(profileA.ServeProbability(), profileB.ServeProbability(), req.Format)
		if err != nil {
			return Estimate{}, err
		}
		est.ProbA = p
		est.Interval = scoring.Interval{Estimate: p, Lower: p, Upper: p}
		return est, nil
	}

	start := time.Now()
	wins, err := s.monteCarlo(ctx, Points(profileA, profileB), req.Format, req.Seed)
	if err != nil {
		return Estimate{}, err
	}
	metrics.RecordSimulation(s.cfg.Trials, time.Since(start).Seconds())

	est.Trials = s.cfg.Trials
	est.Interval = scoring.WilsonInterval(wins, s.cfg.Trials, s.cfg.Z)
	est.ProbA = est.Interval.Estimate
	return est, nil
}

func (s *Simulator) closedForm(pa, pb float64, format scoring.MatchFormat) (float64, error) {
	if s.cache != nil {
		return s.cache.MatchWinProbability(pa, pb, format)
	}
	return scoring.MatchWinProbability(pa, pb, format)
}

// monteCarlo splits trials into fixed chunks, each with its own derived seed, so the win
// count does not depend on the number of workers.
func (s *Simulator) monteCarlo(ctx context.Context, points scoring.PointFunc, format scoring.MatchFormat, seed int64) (int, error) {
	trials := s.cfg.Trials
	chunk := s.cfg.ChunkSize
	chunks := (trials + chunk - 1) / chunk
	wins := make([]int, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for i := 0; i < chunks; i++ {
		i := i
		size := min(chunk, trials-i*chunk)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(scoring.DeriveSeed(seed, uint64(i))))
			won := 0
			for t := 0; t < size; t++ {
				first := scoring.SideA
				if rng.Intn(2) == 1 {
					first = scoring.SideB
				}
				if scoring.SimulateMatch(rng, points, format, first).Winner == scoring.SideA {
					won++
				}
			}
			wins[i] = won
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	total := 0
	for _, w := range wins {
		total += w
	}
	return total, nil
}
