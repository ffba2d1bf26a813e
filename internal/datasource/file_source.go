package datasource

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/baseline-edge/internal/models"
)

const fileSourceName = "file"

// matchRecord is one line of a JSON lines match file. Odds may be numbers or strings.
type matchRecord struct {
	ID             string              `json:"id"`
	TournamentID   string              `json:"tournament_id"`
	TournamentName string              `json:"tournament_name"`
	TournamentDate string              `json:"tournament_date"`
	Round          string              `json:"round"`
	ActualDate     string              `json:"actual_date,omitempty"`
	Surface        string              `json:"surface"`
	BestOf         int                 `json:"best_of"`
	Winner         string              `json:"winner"`
	Loser          string              `json:"loser"`
	Score          string              `json:"score,omitempty"`
	WinnerServe    *models.ServeCounts `json:"winner_serve,omitempty"`
	LoserServe     *models.ServeCounts `json:"loser_serve,omitempty"`
	OddsWinner     *decimal.Decimal    `json:"odds_winner,omitempty"`
	OddsLoser      *decimal.Decimal    `json:"odds_loser,omitempty"`
	OddsSource     string              `json:"odds_source,omitempty"`
}

// FileSource reads normalised match records from a JSON lines file
type FileSource struct {
	path   string
	logger *logrus.Entry
}

// NewFileSource creates a file-backed match source
func NewFileSource(path string, logger *logrus.Logger) *FileSource {
	if logger == nil {
		logger = logrus.New()
	}
	return &FileSource{
		path:   path,
		logger: logger.WithFields(logrus.Fields{"component": fileSourceName, "path": path}),
	}
}

// Name returns the source name
func (s *FileSource) Name() string {
	return fileSourceName
}

// LoadMatches reads the file and keeps matches in the date range. Zero bounds are open.
func (s *FileSource) LoadMatches(ctx context.Context, start, end time.Time) ([]models.Match, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, NewDataSourceError(fileSourceName, ErrCodeNotFound, "failed to open match file", err)
	}
	defer f.Close()

	all, err := ReadMatches(ctx, f)
	if err != nil {
		return nil, err
	}

	matches := make([]models.Match, 0, len(all))
	for _, m := range all {
		if inRange(&m, start, end) {
			matches = append(matches, m)
		}
	}
	s.logger.WithFields(logrus.Fields{
		"read":   len(all),
		"loaded": len(matches),
	}).Info("Matches loaded")
	return matches, nil
}

func inRange(m *models.Match, start, end time.Time) bool {
	played := m.TournamentDate
	if m.HasActualDate() {
		played = m.ActualDate
	}
	if !start.IsZero() && played.Before(models.Day(start)) {
		return false
	}
	if !end.IsZero() && m.TournamentDate.After(models.Day(end)) {
		return false
	}
	return true
}

// ReadMatches decodes JSON lines. Blank lines and lines starting with # are skipped.
func ReadMatches(ctx context.Context, r io.Reader) ([]models.Match, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)

	var matches []models.Match
	line := 0
	for scanner.Scan() {
		line++
		if line%1000 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var rec matchRecord
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, NewDataSourceError(fileSourceName, ErrCodeInvalidData, fmt.Sprintf("line %d", line), err)
		}
		m, err := rec.toMatch()
		if err != nil {
			return nil, NewDataSourceError(fileSourceName, ErrCodeInvalidData, fmt.Sprintf("line %d", line), err)
		}
		matches = append(matches, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, NewDataSourceError(fileSourceName, ErrCodeInvalidData, "failed to read match file", err)
	}
	return matches, nil
}

func (rec *matchRecord) toMatch() (models.Match, error) {
	surface, err := models.ParseSurface(rec.Surface)
	if err != nil {
		return models.Match{}, fmt.Errorf("match %s: %w", rec.ID, err)
	}
	tournamentDate, err := parseDay(rec.TournamentDate)
	if err != nil {
		return models.Match{}, fmt.Errorf("match %s: tournament date: %w", rec.ID, err)
	}

	m := models.Match{
		ID:             rec.ID,
		TournamentID:   rec.TournamentID,
		TournamentName: rec.TournamentName,
		TournamentDate: tournamentDate,
		Round:          rec.Round,
		Surface:        surface,
		BestOf:         rec.BestOf,
		Winner:         rec.Winner,
		Loser:          rec.Loser,
		WinnerServe:    rec.WinnerServe,
		LoserServe:     rec.LoserServe,
	}
	if rec.ActualDate != "" {
		if m.ActualDate, err = parseDay(rec.ActualDate); err != nil {
			return models.Match{}, fmt.Errorf("match %s: actual date: %w", rec.ID, err)
		}
	}
	if rec.Score != "" {
		if m.Score, err = models.ParseScoreline(rec.Score); err != nil {
			return models.Match{}, fmt.Errorf("match %s: %w", rec.ID, err)
		}
	}

	one := decimal.NewFromInt(1)
	if rec.OddsWinner != nil && rec.OddsLoser != nil &&
		rec.OddsWinner.GreaterThan(one) && rec.OddsLoser.GreaterThan(one) {
		m.Odds = &models.MarketOdds{
			Winner: rec.OddsWinner.InexactFloat64(),
			Loser:  rec.OddsLoser.InexactFloat64(),
			Source: rec.OddsSource,
		}
	}

	if err := m.Validate(); err != nil {
		return models.Match{}, err
	}
	return m, nil
}

// WriteMatches encodes matches as JSON lines in the format ReadMatches accepts
func WriteMatches(w io.Writer, matches []models.Match) error {
	enc := json.NewEncoder(w)
	for i := range matches {
		m := &matches[i]
		rec := matchRecord{
			ID:             m.ID,
			TournamentID:   m.TournamentID,
			TournamentName: m.TournamentName,
			TournamentDate: m.TournamentDate.Format("2006-01-02"),
			Round:          m.Round,
			Surface:        string(m.Surface),
			BestOf:         m.BestOf,
			Winner:         m.Winner,
			Loser:          m.Loser,
			WinnerServe:    m.WinnerServe,
			LoserServe:     m.LoserServe,
		}
		if m.HasActualDate() {
			rec.ActualDate = m.ActualDate.Format("2006-01-02")
		}
		if len(m.Score) > 0 {
			rec.Score = m.Score.String()
		}
		if m.Odds != nil {
			winner := decimal.NewFromFloat(m.Odds.Winner)
			loser := decimal.NewFromFloat(m.Odds.Loser)
			rec.OddsWinner, rec.OddsLoser, rec.OddsSource = &winner, &loser, m.Odds.Source
		}
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("failed to encode match %s: %w", m.ID, err)
		}
	}
	return nil
}
