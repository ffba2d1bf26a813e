package backtest

import (
	"sort"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/yourusername/baseline-edge/internal/models"
)

// DefaultRoundOffsets maps a round to its day offset from the tournament start
func DefaultRoundOffsets() map[string]int {
	return map[string]int{
		"R128": 0,
		"R64":  1,
		"R32":  2,
		"R16":  3,
		"QF":   4,
		"SF":   5,
		"F":    6,
	}
}

// DateResolverConfig configures the per-match date join
type DateResolverConfig struct {
	// BufferDays is the width of the play window for matches with no resolvable date
	BufferDays   int
	RoundOffsets map[string]int
	// Aliases maps normalised alternative names to a normalised canonical name
	Aliases map[string]string
}

// ResolvedMatch is a match with its play window. Earliest equals Latest for exact dates.
type ResolvedMatch struct {
	Match    models.Match
	Earliest time.Time
	Latest   time.Time
}

// CoverageReport counts how many matches each resolution strategy dated
type CoverageReport struct {
	Total  int                       `json:"total"`
	Counts map[models.DateSource]int `json:"counts"`
}

// Exact returns the share of matches pinned to a single day
func (c CoverageReport) Exact() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Total-c.Counts[models.DateSourceBuffered]) / float64(c.Total)
}

// AsMap returns the counts keyed by label, for logging
func (c CoverageReport) AsMap() map[string]int {
	out := make(map[string]int, len(c.Counts))
	for k, v := range c.Counts {
		out[string(k)] = v
	}
	return out
}

// DateResolver gives every match an actual date or a conservative play window.
// Strategies are tried in order: recorded, joined-exact, joined-alias, inferred, buffered.
type DateResolver struct {
	cfg     DateResolverConfig
	exact   map[string]time.Time
	aliased map[string]time.Time
}

// NewDateResolver indexes a secondary per-match date source
func NewDateResolver(cfg DateResolverConfig, secondary []models.MatchDate) *DateResolver {
	if cfg.RoundOffsets == nil {
		cfg.RoundOffsets = DefaultRoundOffsets()
	}
	offsets := make(map[string]int, len(cfg.RoundOffsets))
	for k, v := range cfg.RoundOffsets {
		offsets[normalizeRound(k)] = v
	}
	cfg.RoundOffsets = offsets
	if cfg.BufferDays < 0 {
		cfg.BufferDays = 0
	}
	aliases := make(map[string]string, len(cfg.Aliases))
	for k, v := range cfg.Aliases {
		aliases[NormalizeName(k)] = NormalizeName(v)
	}
	cfg.Aliases = aliases

	r := &DateResolver{
		cfg:     cfg,
		exact:   make(map[string]time.Time, len(secondary)),
		aliased: make(map[string]time.Time, len(secondary)),
	}
	for _, d := range secondary {
		if d.Date.IsZero() {
			continue
		}
		day := models.Day(d.Date)
		r.exact[identityKey(d.TournamentID, d.Round, d.Winner, d.Loser)] = day
		r.aliased[identityKey(d.TournamentID, normalizeRound(d.Round), r.canonical(d.Winner), r.canonical(d.Loser))] = day
	}
	return r
}

// NormalizeName lower-cases a name, strips accents and collapses whitespace
func NormalizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, name)
	if err != nil {
		stripped = name
	}
	stripped = strings.Map(func(r rune) rune {
		if r == '-' || r == '.' || r == '\'' {
			return ' '
		}
		return r
	}, stripped)
	return strings.Join(strings.Fields(strings.ToLower(stripped)), " ")
}

func normalizeRound(round string) string {
	return strings.ToUpper(strings.TrimSpace(round))
}

func (r *DateResolver) canonical(name string) string {
	n := NormalizeName(name)
	if c, ok := r.cfg.Aliases[n]; ok {
		return c
	}
	return n
}

// identityKey orders the players so winner/loser orientation does not matter
func identityKey(tournament, round, a, b string) string {
	if b < a {
		a, b = b, a
	}
	return tournament + "|" + round + "|" + a + "|" + b
}

// Resolve dates every match and returns them sorted by (Earliest, ID)
func (r *DateResolver) Resolve(matches []models.Match) ([]ResolvedMatch, CoverageReport) {
	report := CoverageReport{Total: len(matches), Counts: make(map[models.DateSource]int)}
	out := make([]ResolvedMatch, 0, len(matches))
	for _, m := range matches {
		rm := r.resolve(m)
		report.Counts[rm.Match.DateSource]++
		out = append(out, rm)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Earliest.Equal(out[j].Earliest) {
			return out[i].Earliest.Before(out[j].Earliest)
		}
		return out[i].Match.ID < out[j].Match.ID
	})
	return out, report
}

func (r *DateResolver) resolve(m models.Match) ResolvedMatch {
	exact := func(day time.Time, src models.DateSource) ResolvedMatch {
		m.ActualDate = day
		m.DateSource = src
		return ResolvedMatch{Match: m, Earliest: day, Latest: day}
	}

	if m.HasActualDate() {
		return exact(models.Day(m.ActualDate), models.DateSourceRecorded)
	}
	if d, ok := r.exact[identityKey(m.TournamentID, m.Round, m.Winner, m.Loser)]; ok {
		return exact(d, models.DateSourceJoinedExact)
	}
	if d, ok := r.aliased[identityKey(m.TournamentID, normalizeRound(m.Round), r.canonical(m.Winner), r.canonical(m.Loser))]; ok {
		return exact(d, models.DateSourceJoinedAlias)
	}

	start := models.Day(m.TournamentDate)
	if offset, ok := r.cfg.RoundOffsets[normalizeRound(m.Round)]; ok {
		return exact(start.AddDate(0, 0, offset), models.DateSourceInferred)
	}

	m.ActualDate = time.Time{}
	m.DateSource = models.DateSourceBuffered
	return ResolvedMatch{Match: m, Earliest: start, Latest: start.AddDate(0, 0, r.cfg.BufferDays)}
}
