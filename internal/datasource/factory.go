package datasource

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/yourusername/baseline-edge/internal/backtest"
	"github.com/yourusername/baseline-edge/internal/config"
	"github.com/yourusername/baseline-edge/internal/repository"
)

// SourceType represents the type of match source
type SourceType string

const (
	FileSourceType     SourceType = "file"
	DatabaseSourceType SourceType = "database"
)

// Factory creates match and match-date sources based on configuration
type Factory struct {
	logger *logrus.Logger
	config *config.Config
}

// NewFactory creates a new data source factory
func NewFactory(cfg *config.Config, logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}
	return &Factory{
		logger: logger,
		config: cfg,
	}
}

// SourceType reports which match source the configuration selects. A matches file
// takes precedence over the database.
func (f *Factory) SourceType() (SourceType, error) {
	switch {
	case f.config.DataSources.MatchesFile != "":
		return FileSourceType, nil
	case f.config.HasDatabase():
		return DatabaseSourceType, nil
	default:
		return "", fmt.Errorf("no match source configured: set data_sources.matches_file or database.host")
	}
}

// MatchSource creates the configured match source. repo may be nil when no database is configured.
func (f *Factory) MatchSource(repo repository.MatchRepository) (backtest.MatchSource, error) {
	kind, err := f.SourceType()
	if err != nil {
		return nil, err
	}

	switch kind {
	case FileSourceType:
		f.logger.WithField("path", f.config.DataSources.MatchesFile).Info("Using match file source")
		return NewFileSource(f.config.DataSources.MatchesFile, f.logger), nil
	default:
		if repo == nil {
			return nil, fmt.Errorf("database match source requires a repository")
		}
		f.logger.Info("Using database match source")
		return repo, nil
	}
}

// MatchDateSource creates the secondary per-match date source, or nil when disabled
func (f *Factory) MatchDateSource() backtest.MatchDateSource {
	cfg := f.config.DataSources.MatchDates
	if !cfg.Enabled || cfg.BaseURL == "" {
		f.logger.Debug("Secondary match dates disabled")
		return nil
	}
	return NewMatchDateClient(cfg, f.logger)
}
