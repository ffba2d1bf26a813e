package models

import (
	"fmt"
	"strings"
	"time"
)

// Surface represents the court surface a match was played on
type Surface string

const (
	SurfaceHard  Surface = "Hard"
	SurfaceClay  Surface = "Clay"
	SurfaceGrass Surface = "Grass"
)

// Surfaces lists every rated surface in a stable order
var Surfaces = []Surface{SurfaceHard, SurfaceClay, SurfaceGrass}

// ParseSurface normalises a surface label. Carpet is rated as hard court.
func ParseSurface(s string) (Surface, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hard", "carpet":
		return SurfaceHard, nil
	case "clay":
		return SurfaceClay, nil
	case "grass":
		return SurfaceGrass, nil
	default:
		return "", fmt.Errorf("unknown surface %q", s)
	}
}

// DateSource records how a match's actual play date was established
type DateSource string

const (
	DateSourceRecorded    DateSource = "recorded"
	DateSourceJoinedExact DateSource = "joined-exact"
	DateSourceJoinedAlias DateSource = "joined-alias"
	DateSourceInferred    DateSource = "inferred"
	DateSourceBuffered    DateSource = "buffered"
)

// Exact reports whether the source pins the match to a single calendar day
func (d DateSource) Exact() bool {
	return d != DateSourceBuffered && d != ""
}

// SetScore is the games won by the winner and loser in one set
type SetScore struct {
	WinnerGames   int  `json:"winner_games"`
	LoserGames    int  `json:"loser_games"`
	TiebreakLoser *int `json:"tiebreak_loser,omitempty"`
}

// Scoreline is the ordered list of sets from the winner's perspective
type Scoreline []SetScore

// Games returns total games won by the winner and loser
func (s Scoreline) Games() (winner, loser int) {
	for _, set := range s {
		winner += set.WinnerGames
		loser += set.LoserGames
	}
	return winner, loser
}

// String formats the scoreline as "6-2 6-3"
func (s Scoreline) String() string {
	parts := make([]string, 0, len(s))
	for _, set := range s {
		part := fmt.Sprintf("%d-%d", set.WinnerGames, set.LoserGames)
		if set.TiebreakLoser != nil {
			part += fmt.Sprintf("(%d)", *set.TiebreakLoser)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, " ")
}

// ServeCounts are one player's raw service-point counts for a match
type ServeCounts struct {
	ServePoints  int `json:"svpt"`
	FirstIn      int `json:"first_in"`
	FirstWon     int `json:"first_won"`
	SecondWon    int `json:"second_won"`
	Aces         int `json:"aces,omitempty"`
	DoubleFaults int `json:"double_faults,omitempty"`
}

// Valid reports whether the counts are internally consistent and usable
func (c ServeCounts) Valid() bool {
	if c.ServePoints <= 0 || c.FirstIn <= 0 || c.FirstIn > c.ServePoints {
		return false
	}
	if c.FirstWon < 0 || c.FirstWon > c.FirstIn {
		return false
	}
	second := c.ServePoints - c.FirstIn
	return c.SecondWon >= 0 && c.SecondWon <= second
}

// MarketOdds holds decimal odds quoted for the winner and loser
type MarketOdds struct {
	Winner float64 `json:"winner"`
	Loser  float64 `json:"loser"`
	Source string  `json:"source,omitempty"`
}

// Valid reports whether both prices are usable decimal odds
func (o *MarketOdds) Valid() bool {
	return o != nil && o.Winner > 1 && o.Loser > 1
}

// Match is an immutable historical match record
type Match struct {
	ID             string       `db:"id" json:"id"`
	TournamentID   string       `db:"tournament_id" json:"tournament_id"`
	TournamentName string       `db:"tournament_name" json:"tournament_name"`
	TournamentDate time.Time    `db:"tournament_date" json:"tournament_date"`
	Round          string       `db:"round" json:"round"`
	ActualDate     time.Time    `db:"actual_date" json:"actual_date"`
	Surface        Surface      `db:"surface" json:"surface"`
	BestOf         int          `db:"best_of" json:"best_of"`
	Winner         string       `db:"winner" json:"winner"`
	Loser          string       `db:"loser" json:"loser"`
	Score          Scoreline    `db:"score" json:"score"`
	WinnerServe    *ServeCounts `db:"winner_serve" json:"winner_serve,omitempty"`
	LoserServe     *ServeCounts `db:"loser_serve" json:"loser_serve,omitempty"`
	Odds           *MarketOdds  `db:"odds" json:"odds,omitempty"`
	DateSource     DateSource   `db:"date_source" json:"date_source,omitempty"`
}

// HasActualDate reports whether the record carries a per-match play date
func (m *Match) HasActualDate() bool {
	return !m.ActualDate.IsZero()
}

// Involves reports whether the player took part in the match
func (m *Match) Involves(player string) bool {
	return m.Winner == player || m.Loser == player
}

// Opponent returns the other participant
func (m *Match) Opponent(player string) string {
	if m.Winner == player {
		return m.Loser
	}
	return m.Winner
}

// Validate checks structural requirements before a match enters the replay
func (m *Match) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("match id is required")
	}
	if m.Winner == "" || m.Loser == "" {
		return fmt.Errorf("match %s: both players are required", m.ID)
	}
	if m.Winner == m.Loser {
		return fmt.Errorf("match %s: winner and loser are the same player", m.ID)
	}
	if m.ActualDate.IsZero() && m.TournamentDate.IsZero() {
		return fmt.Errorf("match %s: no actual or tournament date", m.ID)
	}
	switch m.Surface {
	case SurfaceHard, SurfaceClay, SurfaceGrass:
	default:
		return fmt.Errorf("match %s: unsupported surface %q", m.ID, m.Surface)
	}
	return nil
}

// Day truncates a timestamp to its UTC calendar day
func Day(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// MatchDate is a per-match play date reported by a secondary source
type MatchDate struct {
	TournamentID string    `json:"tournament_id"`
	Round        string    `json:"round"`
	Winner       string    `json:"winner"`
	Loser        string    `json:"loser"`
	Date         time.Time `json:"date"`
}

// ParseScoreline parses "7-6(5) 6-3". Retirement and walkover markers are ignored.
func ParseScoreline(s string) (Scoreline, error) {
	var sets Scoreline
	for _, token := range strings.Fields(s) {
		switch strings.ToUpper(strings.Trim(token, ".")) {
		case "RET", "W/O", "WO", "DEF", "ABD", "ABN":
			continue
		}

		var set SetScore
		games, tiebreak, hasTiebreak := strings.Cut(token, "(")
		if _, err := fmt.Sscanf(games, "%d-%d", &set.WinnerGames, &set.LoserGames); err != nil {
			return nil, fmt.Errorf("invalid set %q in score %q", token, s)
		}
		if hasTiebreak {
			var tb int
			if _, err := fmt.Sscanf(strings.TrimSuffix(tiebreak, ")"), "%d", &tb); err != nil {
				return nil, fmt.Errorf("invalid tiebreak %q in score %q", token, s)
			}
			set.TiebreakLoser = &tb
		}
		sets = append(sets, set)
	}
	return sets, nil
}
