package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/baseline-edge/internal/backtest"
	"github.com/yourusername/baseline-edge/internal/config"
	"github.com/yourusername/baseline-edge/internal/database"
	"github.com/yourusername/baseline-edge/internal/datasource"
	"github.com/yourusername/baseline-edge/internal/health"
	applogger "github.com/yourusername/baseline-edge/internal/logger"
	"github.com/yourusername/baseline-edge/internal/models"
	"github.com/yourusername/baseline-edge/internal/repository"
	"github.com/yourusername/baseline-edge/internal/simulator"
)

var runOpts struct {
	startDate string
	endDate   string
	cutoff    string
	model     string
	output    string
	formats   []string
	noPersist bool
}

func init() {
	flags := runCmd.Flags()
	flags.StringVar(&runOpts.startDate, "start-date", "", "Override the first predicted day (YYYY-MM-DD)")
	flags.StringVar(&runOpts.endDate, "end-date", "", "Override the last predicted day (YYYY-MM-DD)")
	flags.StringVar(&runOpts.cutoff, "cutoff", "", "Override the cutoff policy: strict, conservative, tournament-inclusive")
	flags.StringVar(&runOpts.model, "model", "", "Override the headline model: elo, simulator, blend")
	flags.StringVarP(&runOpts.output, "output", "o", "", "Override the report directory")
	flags.StringSliceVar(&runOpts.formats, "format", nil, "Override the report formats: console, csv, json")
	flags.BoolVar(&runOpts.noPersist, "no-persist", false, "Skip the SQLite snapshot and database persistence")
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Replay matches and evaluate predictions and bets",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := applyRunOverrides(cfg); err != nil {
			return err
		}

		p, err := openPipeline(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer p.Close()

		result, err := p.Run(cmd.Context())
		if err != nil {
			return err
		}
		if hasFormat(cfg.Evaluation.Formats, backtest.FormatConsole) {
			fmt.Fprint(cmd.OutOrStdout(), backtest.GenerateConsoleReport(result))
		}
		return nil
	},
}

func applyRunOverrides(c *config.Config) error {
	if runOpts.startDate != "" {
		c.Replay.StartDate = runOpts.startDate
	}
	if runOpts.endDate != "" {
		c.Replay.EndDate = runOpts.endDate
	}
	if runOpts.cutoff != "" {
		c.Replay.CutoffPolicy = strings.ToLower(runOpts.cutoff)
	}
	if runOpts.model != "" {
		c.Replay.Model = strings.ToLower(runOpts.model)
	}
	if runOpts.output != "" {
		c.Evaluation.OutputPath = runOpts.output
	}
	if len(runOpts.formats) > 0 {
		c.Evaluation.Formats = runOpts.formats
	}
	if runOpts.noPersist {
		c.Snapshot = config.SnapshotConfig{}
	}
	// flags bypass the load-time validation
	if err := config.Validate(c); err != nil {
		return err
	}
	return config.ValidateEnvironment(c)
}

func hasFormat(formats []string, want string) bool {
	for _, f := range formats {
		if f == want {
			return true
		}
	}
	return false
}

// pipeline runs one replay end to end: load, replay, report, persist.
// It owns the database pool when one is configured.
type pipeline struct {
	cfg    *config.Config
	logger *logrus.Logger
	db     *database.DB
	repos  *repository.Repositories
	audit  *applogger.AuditLogger

	mu     sync.RWMutex
	latest *models.ReplayRun
}

func openPipeline(ctx context.Context, c *config.Config, log *logrus.Logger) (*pipeline, error) {
	p := &pipeline{
		cfg:    c,
		logger: log,
		audit:  applogger.NewAuditLogger(log),
	}
	if !c.HasDatabase() {
		return p, nil
	}

	db, err := database.Initialize(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	repos, err := repository.NewRepositories(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	p.db = db
	p.repos = repos
	return p, nil
}

// Close releases the database pool
func (p *pipeline) Close() {
	if p.db != nil {
		p.db.Close()
	}
}

// pinger returns the database for readiness checks, or nil without one
func (p *pipeline) pinger() health.DatabasePinger {
	if p.db == nil {
		return nil
	}
	return p.db
}

// Run executes one replay with the current configuration
func (p *pipeline) Run(ctx context.Context) (*backtest.Result, error) {
	btConfig, err := backtest.FromConfig(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("invalid replay config: %w", err)
	}
	cache := simulator.NewClosedFormCache(p.cfg.Simulator.CacheTTL, p.cfg.Simulator.CacheMaxSize)
	engine, err := backtest.NewEngine(btConfig, cache, p.logger)
	if err != nil {
		return nil, err
	}

	factory := datasource.NewFactory(p.cfg, p.logger)
	var matchRepo repository.MatchRepository
	if p.repos != nil {
		matchRepo = p.repos.Match
	}
	source, err := factory.MatchSource(matchRepo)
	if err != nil {
		return nil, err
	}

	result, err := engine.RunFromSource(ctx, source, factory.MatchDateSource())
	if err != nil {
		return nil, fmt.Errorf("replay failed: %w", err)
	}

	written, err := backtest.WriteReports(result, p.cfg.Evaluation.OutputPath, p.cfg.Evaluation.Formats)
	if err != nil {
		return result, fmt.Errorf("failed to write reports: %w", err)
	}
	for _, path := range written {
		p.logger.WithField("path", path).Info("Report written")
	}

	run, err := result.Run(time.Now().UTC())
	if err != nil {
		return result, err
	}
	p.mu.Lock()
	p.latest = run
	p.mu.Unlock()

	if err := p.persist(ctx, result, run); err != nil {
		return result, err
	}
	return result, nil
}

// LatestRun returns the headline of the last completed replay
func (p *pipeline) LatestRun() *models.ReplayRun {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest
}

// persist stores the run in the SQLite snapshot file and the database, as configured
func (p *pipeline) persist(ctx context.Context, result *backtest.Result, run *models.ReplayRun) error {
	snapshot := p.cfg.Snapshot
	if snapshot.SQLitePath != "" {
		if err := os.MkdirAll(filepath.Dir(snapshot.SQLitePath), 0o755); err != nil {
			return fmt.Errorf("failed to create snapshot directory: %w", err)
		}
		writer, err := repository.NewSQLiteSnapshotWriter(snapshot.SQLitePath, p.logger)
		if err != nil {
			return err
		}
		err = writer.WriteSnapshot(ctx, run, result.Ratings, result.Predictions)
		if cerr := writer.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("failed to write snapshot: %w", err)
		}
		p.audit.LogSnapshotWritten(result.RunID, snapshot.SQLitePath, len(result.Ratings))
	}

	if snapshot.PersistToDatabase {
		if p.repos == nil {
			return fmt.Errorf("persist_to_database requires a configured database")
		}
		if err := p.repos.SaveRun(ctx, run, result.Predictions, result.Bets, result.Ratings); err != nil {
			return err
		}
		p.audit.LogSnapshotWritten(result.RunID, "postgres", len(result.Ratings))
	}
	return nil
}
