package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yourusername/baseline-edge/internal/betting"
	"github.com/yourusername/baseline-edge/internal/models"
)

// Report formats
const (
	FormatConsole = "console"
	FormatCSV     = "csv"
	FormatJSON    = "json"
)

// GenerateConsoleReport formats a run summary for terminal output
func GenerateConsoleReport(result *Result) string {
	var builder strings.Builder
	builder.WriteString("Replay Report\n")
	builder.WriteString("=============\n")
	builder.WriteString(fmt.Sprintf("Run: %s\n", result.RunID))
	builder.WriteString(fmt.Sprintf("Cutoff Policy: %s\n", result.PolicyLabel))
	builder.WriteString(fmt.Sprintf("Model: %s\n", result.Model))
	builder.WriteString(fmt.Sprintf("Matches: %d (applied %d)\n", result.Matches, result.Applied))
	builder.WriteString(fmt.Sprintf("Predictions: %d (excluded %d)\n", len(result.Predictions), result.Excluded()))
	builder.WriteString(fmt.Sprintf("Exact Dates: %.2f%%\n", result.Coverage.Exact()*100))

	if result.Leakage.Clean() {
		builder.WriteString(fmt.Sprintf("Leakage: none (%d checked, %d unverifiable)\n",
			result.Leakage.Checked, result.Leakage.Unverifiable))
	} else {
		builder.WriteString(fmt.Sprintf("Leakage: %d VIOLATIONS, results are invalid\n", len(result.Leakage.Violations)))
	}

	builder.WriteString("\nCalibration\n")
	for _, ev := range append([]Evaluation{result.Calibration}, result.ModelCalibration...) {
		builder.WriteString(fmt.Sprintf("  %-10s n=%-6d acc=%.4f brier=%.4f logloss=%.4f ece=%.4f\n",
			ev.Model, ev.Count, ev.Accuracy, ev.Brier, ev.LogLoss, ev.ECE))
	}

	b := result.Betting
	builder.WriteString(fmt.Sprintf("\nBetting (edge %s > %.4f, margin %.2f%%, missing odds %d)\n",
		b.EdgePolicy, b.Threshold, b.AverageMargin*100, b.MissingOdds))
	builder.WriteString(fmt.Sprintf("  flat   bets=%-5d profit=%.2f roi=%.2f%% ci=[%.2f%%, %.2f%%]\n",
		b.Flat.Bets, b.Flat.Profit, b.Flat.ROI*100, b.Flat.ROIInterval.Lower*100, b.Flat.ROIInterval.Upper*100))
	builder.WriteString(fmt.Sprintf("  kelly  bets=%-5d bankroll=%.2f roi=%.2f%% max drawdown=%.2f%% volatility=%.4f\n",
		b.Kelly.Bets, b.Kelly.FinalBankroll, b.Kelly.ROI*100, b.Kelly.MaxDrawdown*100, b.Kelly.Volatility))
	for _, s := range []betting.StakingSummary{b.Flat, b.Kelly} {
		perf := s.Performance
		builder.WriteString(fmt.Sprintf("  %-6s win rate=%.2f%% profit factor=%.2f expectancy=%.4f sharpe=%.3f sortino=%.3f var95=%.2f%%\n",
			s.Staking, perf.WinRate*100, perf.ProfitFactor, perf.Expectancy, perf.SharpeRatio, perf.SortinoRatio, perf.ValueAtRisk95*100))
	}

	builder.WriteString("\nReliability\n")
	for _, row := range result.Reliability.RatingSources {
		builder.WriteString(fmt.Sprintf("  rating %-18s %6d %6.2f%%\n", row.Label, row.Count, row.Share*100))
	}
	for _, row := range result.Reliability.DateSources {
		builder.WriteString(fmt.Sprintf("  date   %-18s %6d %6.2f%%\n", row.Label, row.Count, row.Share*100))
	}
	for _, row := range result.Reliability.ExclusionReasons {
		builder.WriteString(fmt.Sprintf("  excl   %-18s %6d\n", row.Label, row.Count))
	}

	if len(result.WalkForward.Windows) > 0 {
		builder.WriteString(fmt.Sprintf("\nWalk-forward: %d windows, consistency %.2f%%, brier spread %.4f\n",
			len(result.WalkForward.Windows), result.WalkForward.ConsistencyScore*100, result.WalkForward.BrierSpread))
	}
	return builder.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// WritePredictionsCSV writes one row per prediction
func WritePredictionsCSV(w io.Writer, preds []models.Prediction) error {
	cw := csv.NewWriter(w)
	header := []string{
		"id", "match_id", "actual_date", "surface", "designated_player", "opponent", "model",
		"predicted_prob", "elo_prob", "simulator_prob", "simulator_half_width", "rating_source",
		"stat_source_designated", "stat_source_opponent", "date_source", "market_implied_prob",
		"market_fair_prob", "odds_designated", "odds_opponent", "actual_outcome", "excluded", "exclusion_reason",
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, p := range preds {
		row := []string{
			p.ID.String(), p.MatchID, p.ActualDate.Format("2006-01-02"), string(p.Surface),
			p.DesignatedPlayer, p.Opponent, string(p.Model),
			formatFloat(p.PredictedProb), formatFloat(p.EloProb), optional(p.SimulatorProb),
			optional(p.SimulatorHalfWidth), string(p.RatingSource),
			p.StatSourceDesignated, p.StatSourceOpponent, string(p.DateSource), optional(p.MarketImpliedProb),
			optional(p.MarketFairProb), optional(p.OddsDesignated), optional(p.OddsOpponent), strconv.Itoa(p.ActualOutcome),
			strconv.FormatBool(p.Excluded), p.ExclusionReason,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBetsCSV writes one row per bet
func WriteBetsCSV(w io.Writer, bets []models.Bet) error {
	cw := csv.NewWriter(w)
	header := []string{"id", "match_id", "actual_date", "player", "staking", "stake", "odds", "probability", "edge", "won", "profit"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, b := range bets {
		row := []string{
			b.ID.String(), b.MatchID, b.ActualDate.Format("2006-01-02"), b.Player, string(b.Staking),
			formatFloat(b.Stake), formatFloat(b.OddsTaken), formatFloat(b.Probability), formatFloat(b.Edge),
			strconv.FormatBool(b.Won), formatFloat(b.Profit),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteJSON writes the full result as indented JSON
func WriteJSON(w io.Writer, result *Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}

// WriteReports writes the file formats into dir and returns the paths written.
// The console format has no file and is skipped.
func WriteReports(result *Result, dir string, formats []string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	write := func(name string, fn func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			_ = f.Close()
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	for _, format := range formats {
		var err error
		switch format {
		case FormatConsole:
		case FormatCSV:
			err = write("predictions.csv", func(w io.Writer) error { return WritePredictionsCSV(w, result.Predictions) })
			if err == nil {
				err = write("bets.csv", func(w io.Writer) error { return WriteBetsCSV(w, result.Bets) })
			}
			if err == nil {
				err = write("equity_curve.csv", func(w io.Writer) error {
					_, werr := io.WriteString(w, result.Betting.Kelly.EquityCurve.ToCSV())
					return werr
				})
			}
		case FormatJSON:
			err = write("result.json", func(w io.Writer) error { return WriteJSON(w, result) })
		default:
			err = fmt.Errorf("unknown report format %q", format)
		}
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
