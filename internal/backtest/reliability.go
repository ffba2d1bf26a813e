package backtest

import (
	"sort"

	"github.com/yourusername/baseline-edge/internal/models"
)

// Breakdown is the count and share of predictions carrying one label
type Breakdown struct {
	Label string  `json:"label"`
	Count int     `json:"count"`
	Share float64 `json:"share"`
}

// ReliabilityReport says how much of a run rested on real data
type ReliabilityReport struct {
	Predictions      int         `json:"predictions"`
	Excluded         int         `json:"excluded"`
	MissingOdds      int         `json:"missing_odds"`
	RatingSources    []Breakdown `json:"rating_sources"`
	StatSources      []Breakdown `json:"stat_sources,omitempty"`
	DateSources      []Breakdown `json:"date_sources"`
	ExclusionReasons []Breakdown `json:"exclusion_reasons,omitempty"`
}

// Share returns the share of predictions with the label in a breakdown, 0 when absent
func Share(rows []Breakdown, label string) float64 {
	for _, r := range rows {
		if r.Label == label {
			return r.Share
		}
	}
	return 0
}

type tally map[string]int

func (t tally) rows(total int) []Breakdown {
	labels := make([]string, 0, len(t))
	for l := range t {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	out := make([]Breakdown, 0, len(labels))
	for _, l := range labels {
		row := Breakdown{Label: l, Count: t[l]}
		if total > 0 {
			row.Share = float64(t[l]) / float64(total)
		}
		out = append(out, row)
	}
	return out
}

// BuildReliability tallies provenance over every prediction of a run, excluded ones included.
// Stat sources count both players of a match, so their shares are over twice the predictions.
func BuildReliability(preds []models.Prediction) ReliabilityReport {
	ratings, stats, dates, reasons := tally{}, tally{}, tally{}, tally{}
	report := ReliabilityReport{Predictions: len(preds)}
	statTotal := 0

	for i := range preds {
		p := &preds[i]
		ratings[string(p.RatingSource)]++
		dates[string(p.DateSource)]++
		for _, s := range []string{p.StatSourceDesignated, p.StatSourceOpponent} {
			if s != "" {
				stats[s]++
				statTotal++
			}
		}
		if p.Excluded {
			report.Excluded++
			reasons[p.ExclusionReason]++
		}
		if !p.HasOdds() {
			report.MissingOdds++
		}
	}

	report.RatingSources = ratings.rows(len(preds))
	report.StatSources = stats.rows(statTotal)
	report.DateSources = dates.rows(len(preds))
	report.ExclusionReasons = reasons.rows(report.Excluded)
	return report
}
