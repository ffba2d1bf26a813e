package betting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/yourusername/baseline-edge/internal/metrics"
	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/scoring"
)

// betNamespace scopes deterministic bet ids
var betNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("baseline-edge/bet"))

// Config configures bet admission, staking and uncertainty
type Config struct {
	EdgeThreshold   float64
	EdgePolicy      EdgePolicy
	FlatStake       float64
	InitialBankroll float64
	KellyFraction   float64
	MaxFraction     float64
	Bootstrap       BootstrapConfig
}

// DefaultConfig returns unit flat stakes and quarter Kelly capped at 5% of bankroll
func DefaultConfig() Config {
	return Config{
		EdgeThreshold:   0,
		EdgePolicy:      EdgePolicyRaw,
		FlatStake:       1,
		InitialBankroll: 1000,
		KellyFraction:   0.25,
		MaxFraction:     0.05,
		Bootstrap:       DefaultBootstrapConfig(),
	}
}

// Validate checks staking parameters
func (c Config) Validate() error {
	if _, err := ParseEdgePolicy(string(c.EdgePolicy)); err != nil {
		return err
	}
	if c.FlatStake <= 0 {
		return fmt.Errorf("flat stake must be positive")
	}
	if c.InitialBankroll <= 0 {
		return fmt.Errorf("initial bankroll must be positive")
	}
	if c.KellyFraction <= 0 || c.KellyFraction > 1 {
		return fmt.Errorf("kelly fraction must be in (0,1]")
	}
	if c.MaxFraction <= 0 || c.MaxFraction > 1 {
		return fmt.Errorf("max fraction must be in (0,1]")
	}
	if c.Bootstrap.Resamples < 1000 {
		return fmt.Errorf("bootstrap needs at least 1000 resamples, got %d", c.Bootstrap.Resamples)
	}
	return nil
}

// Selection is the side of a match the edge filter picked
type Selection struct {
	Player      string
	Designated  bool
	Probability float64
	Odds        float64
	Edge        float64
}

// StakingSummary aggregates one staking policy
type StakingSummary struct {
	Staking       models.Staking   `json:"staking"`
	Bets          int              `json:"bets"`
	Wins          int              `json:"wins"`
	Staked        float64          `json:"staked"`
	Profit        float64          `json:"profit"`
	ROI           float64          `json:"roi"`
	ROIInterval   scoring.Interval `json:"roi_interval"`
	FinalBankroll float64          `json:"final_bankroll,omitempty"`
	MaxDrawdown   float64          `json:"max_drawdown,omitempty"`
	Volatility    float64          `json:"volatility,omitempty"`
	Performance   Performance      `json:"performance"`
	EquityCurve   EquityCurve      `json:"-"`
}

// Summary is the betting evaluation of a prediction stream
type Summary struct {
	EdgePolicy    EdgePolicy                  `json:"edge_policy"`
	Threshold     float64                     `json:"threshold"`
	Considered    int                         `json:"considered"`
	WithOdds      int                         `json:"with_odds"`
	MissingOdds   int                         `json:"missing_odds"`
	AverageMargin float64                     `json:"average_margin"`
	Flat          StakingSummary              `json:"flat"`
	Kelly         StakingSummary              `json:"kelly"`
	Bets          []models.Bet                `json:"-"`
	Warnings      []models.MissingOddsWarning `json:"-"`
}

// Evaluator applies the edge filter and staking policies to predictions in replay order
type Evaluator struct {
	cfg Config
}

// NewEvaluator creates a betting evaluator
func NewEvaluator(cfg Config) (*Evaluator, error) {
	if cfg.EdgePolicy == "" {
		cfg.EdgePolicy = EdgePolicyRaw
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg}, nil
}

// Select returns the side with the larger admitted edge. Both sides are considered and
// at most one is chosen; ties go to the designated player.
func (e *Evaluator) Select(p *models.Prediction) (Selection, bool) {
	if !p.HasOdds() {
		return Selection{}, false
	}
	od, oo := *p.OddsDesignated, *p.OddsOpponent
	candidates := []Selection{
		{Player: p.DesignatedPlayer, Designated: true, Probability: p.PredictedProb, Odds: od,
			Edge: e.cfg.EdgePolicy.edge(p.PredictedProb, od, oo)},
		{Player: p.Opponent, Probability: 1 - p.PredictedProb, Odds: oo,
			Edge: e.cfg.EdgePolicy.edge(1-p.PredictedProb, oo, od)},
	}

	var best Selection
	found := false
	for _, c := range candidates {
		if c.Odds <= 1 || !Admit(c.Edge, e.cfg.EdgeThreshold) {
			continue
		}
		if !found || c.Edge > best.Edge {
			best = c
			found = true
		}
	}
	return best, found
}

// Evaluate walks the predictions in order. Excluded predictions are skipped and predictions
// without odds are counted as missing, never bet. Bet ids derive from the prediction id,
// which is scoped to the run.
func (e *Evaluator) Evaluate(ctx context.Context, preds []models.Prediction) (Summary, error) {
	sum := Summary{EdgePolicy: e.cfg.EdgePolicy, Threshold: e.cfg.EdgeThreshold}
	var flat, kelly Ledger
	var flatProfits, flatStakes, kellyProfits, kellyStakes []float64
	bankroll := decimal.NewFromFloat(e.cfg.InitialBankroll)
	margins := decimal.Zero

	// the opening bankroll anchors drawdown and the first return
	curve := EquityCurve{}
	if len(preds) > 0 {
		curve.Record(preds[0].ActualDate, "", e.cfg.InitialBankroll)
	}
	for i := range preds {
		p := &preds[i]
		if p.Excluded {
			continue
		}
		sum.Considered++
		if !p.HasOdds() {
			sum.MissingOdds++
			sum.Warnings = append(sum.Warnings, models.MissingOddsWarning{MatchID: p.MatchID})
			metrics.RecordMissingOdds()
			continue
		}
		sum.WithOdds++
		margins = margins.Add(decimal.NewFromFloat(Margin(*p.OddsDesignated, *p.OddsOpponent)))

		sel, ok := e.Select(p)
		if !ok {
			continue
		}
		won := (sel.Designated && p.ActualOutcome == 1) || (!sel.Designated && p.ActualOutcome == 0)

		flatStake := decimal.NewFromFloat(e.cfg.FlatStake)
		flatProfit := Settle(e.cfg.FlatStake, sel.Odds, won)
		flat.Add(flatStake, flatProfit, won)
		sum.Bets = append(sum.Bets, e.bet(p, sel, models.StakingFlat, flatStake, flatProfit, won))
		flatProfits = append(flatProfits, flatProfit.InexactFloat64())
		flatStakes = append(flatStakes, e.cfg.FlatStake)
		metrics.RecordBetAdmitted(string(models.StakingFlat))

		f := KellyFraction(sel.Probability, sel.Odds, e.cfg.KellyFraction, e.cfg.MaxFraction)
		if f <= 0 || !bankroll.IsPositive() {
			continue
		}
		kellyStake := bankroll.Mul(decimal.NewFromFloat(f)).Round(8)
		kellyProfit := Settle(kellyStake.InexactFloat64(), sel.Odds, won)
		kelly.Add(kellyStake, kellyProfit, won)
		bankroll = bankroll.Add(kellyProfit)
		sum.Bets = append(sum.Bets, e.bet(p, sel, models.StakingKelly, kellyStake, kellyProfit, won))
		kellyProfits = append(kellyProfits, kellyProfit.InexactFloat64())
		kellyStakes = append(kellyStakes, kellyStake.InexactFloat64())
		metrics.RecordBetAdmitted(string(models.StakingKelly))
		curve.Record(p.ActualDate, p.MatchID, bankroll.InexactFloat64())
	}

	if sum.WithOdds > 0 {
		sum.AverageMargin = margins.Div(decimal.NewFromInt(int64(sum.WithOdds))).InexactFloat64()
	}

	var err error
	sum.Flat = summarize(models.StakingFlat, &flat)
	sum.Flat.Performance = CalculatePerformance(flatProfits, flatStakes)
	sum.Flat.ROIInterval, err = BootstrapROI(ctx, flatProfits, flatStakes, e.bootstrap("flat"))
	if err != nil {
		return Summary{}, fmt.Errorf("flat bootstrap: %w", err)
	}

	sum.Kelly = summarize(models.StakingKelly, &kelly)
	sum.Kelly.Performance = CalculatePerformance(kellyProfits, kellyStakes)
	sum.Kelly.ROIInterval, err = BootstrapROI(ctx, kellyProfits, kellyStakes, e.bootstrap("kelly"))
	if err != nil {
		return Summary{}, fmt.Errorf("kelly bootstrap: %w", err)
	}
	sum.Kelly.FinalBankroll = bankroll.InexactFloat64()
	sum.Kelly.EquityCurve = curve
	sum.Kelly.MaxDrawdown = curve.MaxDrawdown()
	sum.Kelly.Volatility = curve.GetVolatility()

	metrics.UpdateRunROI(string(models.StakingFlat), sum.Flat.ROI)
	metrics.UpdateRunROI(string(models.StakingKelly), sum.Kelly.ROI)
	return sum, nil
}

func (e *Evaluator) bootstrap(label string) BootstrapConfig {
	cfg := e.cfg.Bootstrap
	cfg.Seed = scoring.LabelSeed(cfg.Seed, "bootstrap/"+label)
	return cfg
}

func (e *Evaluator) bet(p *models.Prediction, sel Selection, staking models.Staking, stake, profit decimal.Decimal, won bool) models.Bet {
	return models.Bet{
		ID:          uuid.NewSHA1(betNamespace, []byte(p.ID.String()+"|"+p.MatchID+"|"+string(staking))),
		MatchID:     p.MatchID,
		ActualDate:  p.ActualDate,
		Player:      sel.Player,
		Staking:     staking,
		Stake:       stake.InexactFloat64(),
		OddsTaken:   sel.Odds,
		Probability: sel.Probability,
		Edge:        sel.Edge,
		Won:         won,
		Profit:      profit.InexactFloat64(),
	}
}

func summarize(staking models.Staking, l *Ledger) StakingSummary {
	return StakingSummary{
		Staking: staking,
		Bets:    l.Bets(),
		Wins:    l.Wins(),
		Staked:  l.Staked(),
		Profit:  l.Profit(),
		ROI:     l.ROI(),
	}
}
