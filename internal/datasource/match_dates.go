package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/baseline-edge/internal/config"
	"github.com/yourusername/baseline-edge/internal/metrics"
	"github.com/yourusername/baseline-edge/internal/models"
)

const (
	matchDatesSourceName = "match_dates"
	defaultMatchDatesTTL = 24 * time.Hour
)

// MatchDateClient fetches per-match play dates from a secondary results API, one
// tournament at a time. Responses are cached per tournament.
type MatchDateClient struct {
	httpClient *RateLimitedHTTPClient
	baseURL    string
	apiKey     string
	cache      *cache.Cache
	logger     *logrus.Entry
}

// tournamentMatch is one entry of GET /tournaments/{id}/matches
type tournamentMatch struct {
	Round  string `json:"round"`
	Winner string `json:"winner"`
	Loser  string `json:"loser"`
	Date   string `json:"date"`
}

// NewMatchDateClient creates a client from configuration
func NewMatchDateClient(cfg config.MatchDatesConfig, logger *logrus.Logger) *MatchDateClient {
	httpCfg := DefaultHTTPClientConfig()
	if cfg.Timeout > 0 {
		httpCfg.Timeout = cfg.Timeout
	}
	httpCfg.MaxRetries = cfg.RetryAttempts
	httpCfg.RateLimit = cfg.RequestsPerSec
	httpCfg.Burst = cfg.Burst

	return NewMatchDateClientWithHTTP(NewRateLimitedHTTPClient(httpCfg, logger), cfg.BaseURL, cfg.APIKey, cfg.CacheTTL, logger)
}

// NewMatchDateClientWithHTTP creates a client on an existing HTTP client
func NewMatchDateClientWithHTTP(httpClient *RateLimitedHTTPClient, baseURL, apiKey string, ttl time.Duration, logger *logrus.Logger) *MatchDateClient {
	if logger == nil {
		logger = logrus.New()
	}
	if ttl <= 0 {
		ttl = defaultMatchDatesTTL
	}
	return &MatchDateClient{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		cache:      cache.New(ttl, ttl*2),
		logger:     logger.WithField("component", matchDatesSourceName),
	}
}

// Name returns the source name
func (c *MatchDateClient) Name() string {
	return matchDatesSourceName
}

// MatchDates returns the known play dates of every match in the tournaments. A tournament
// that cannot be fetched is skipped with a warning: its matches fall back to inferred or
// buffered dates. Authentication failures and cancellation abort the lookup.
func (c *MatchDateClient) MatchDates(ctx context.Context, tournamentIDs []string) ([]models.MatchDate, error) {
	var dates []models.MatchDate
	skipped := 0
	for _, id := range tournamentIDs {
		if cached, ok := c.cache.Get(id); ok {
			metrics.RecordSourceRequest(matchDatesSourceName, "hit")
			dates = append(dates, cached.([]models.MatchDate)...)
			continue
		}
		if c.httpClient.CircuitOpen() {
			skipped++
			continue
		}

		fetched, err := c.fetchTournament(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, ErrAuthenticationFailed) {
				return nil, err
			}
			metrics.RecordSourceRequest(matchDatesSourceName, "error")
			c.logger.WithError(err).WithField("tournament_id", id).Warn("Match dates unavailable, falling back")
			skipped++
			continue
		}
		c.cache.Set(id, fetched, cache.DefaultExpiration)
		dates = append(dates, fetched...)
	}

	if skipped > 0 {
		c.logger.WithFields(logrus.Fields{
			"skipped":     skipped,
			"tournaments": len(tournamentIDs),
		}).Warn("Some tournaments have no secondary match dates")
	}
	return dates, nil
}

func (c *MatchDateClient) fetchTournament(ctx context.Context, id string) ([]models.MatchDate, error) {
	endpoint := fmt.Sprintf("%s/tournaments/%s/matches", c.baseURL, url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewDataSourceError(matchDatesSourceName, ErrCodeNetworkError, "failed to create request", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.apiKey))
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, NewDataSourceError(matchDatesSourceName, ErrCodeNetworkError, "failed to fetch match dates", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		metrics.RecordSourceRequest(matchDatesSourceName, "not_found")
		return []models.MatchDate{}, nil
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, NewDataSourceError(matchDatesSourceName, ErrCodeAuthenticationFailed, "invalid API key", nil)
	case http.StatusTooManyRequests:
		return nil, NewDataSourceError(matchDatesSourceName, ErrCodeRateLimitExceeded, "rate limit exceeded", nil)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, NewDataSourceError(matchDatesSourceName, ErrCodeServerError,
			fmt.Sprintf("unexpected status %d: %s", resp.StatusCode, string(body)), nil)
	}

	var entries []tournamentMatch
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, NewDataSourceError(matchDatesSourceName, ErrCodeInvalidData, "failed to parse response", err)
	}

	dates := make([]models.MatchDate, 0, len(entries))
	for _, e := range entries {
		day, err := parseDay(e.Date)
		if err != nil || e.Winner == "" || e.Loser == "" {
			c.logger.WithFields(logrus.Fields{
				"tournament_id": id,
				"round":         e.Round,
				"date":          e.Date,
			}).Debug("Skipping malformed match date entry")
			continue
		}
		dates = append(dates, models.MatchDate{
			TournamentID: id,
			Round:        e.Round,
			Winner:       e.Winner,
			Loser:        e.Loser,
			Date:         day,
		})
	}
	metrics.RecordSourceRequest(matchDatesSourceName, "fetched")
	return dates, nil
}

// parseDay accepts a calendar date or an RFC 3339 timestamp
func parseDay(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q", s)
	}
	return models.Day(t), nil
}
