// Package config provides configuration management for the baseline-edge replay engine.
package config

import (
	"fmt"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	App         AppConfig         `mapstructure:"app" validate:"required"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Replay      ReplayConfig      `mapstructure:"replay" validate:"required"`
	Rating      RatingConfig      `mapstructure:"rating" validate:"required"`
	Simulator   SimulatorConfig   `mapstructure:"simulator" validate:"required"`
	Betting     BettingConfig     `mapstructure:"betting" validate:"required"`
	Evaluation  EvaluationConfig  `mapstructure:"evaluation" validate:"required"`
	DataSources DataSourcesConfig `mapstructure:"data_sources"`
	Snapshot    SnapshotConfig    `mapstructure:"snapshot"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	LogFormat   string `mapstructure:"log_format" validate:"omitempty,oneof=json text"`
}

// DatabaseConfig represents database connection configuration. The database is optional:
// an empty host means matches come from a file and results are not persisted.
type DatabaseConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required_with=Host"`
	User               string `mapstructure:"user" validate:"required_with=Host"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"omitempty,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"omitempty,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"omitempty,gt=0"`
}

// ReplayConfig represents temporal replay configuration
type ReplayConfig struct {
	StartDate       string            `mapstructure:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate         string            `mapstructure:"end_date" validate:"omitempty,datetime=2006-01-02"`
	CutoffPolicy    string            `mapstructure:"cutoff_policy" validate:"required,cutoffpolicy"`
	BufferDays      int               `mapstructure:"buffer_days" validate:"gte=0,lte=60"`
	Model           string            `mapstructure:"model" validate:"required,model"`
	BlendWeight     float64           `mapstructure:"blend_weight" validate:"gte=0,lte=1"`
	Simulate        bool              `mapstructure:"simulate"`
	RequireRealData bool              `mapstructure:"require_real_data"`
	FailOnLeakage   bool              `mapstructure:"fail_on_leakage"`
	Seed            int64             `mapstructure:"seed"`
	FinalSet        string            `mapstructure:"final_set" validate:"omitempty,finalset"`
	RoundOffsets    map[string]int    `mapstructure:"round_offsets"`
	Aliases         map[string]string `mapstructure:"aliases"`
}

// KStepConfig is one step of the K-factor schedule
type KStepConfig struct {
	Below int     `mapstructure:"below" validate:"gt=0"`
	K     float64 `mapstructure:"k" validate:"gt=0"`
}

// RatingConfig represents Elo rating configuration
type RatingConfig struct {
	DefaultRating     float64       `mapstructure:"default_rating" validate:"required,gt=0"`
	MinSurfaceMatches int           `mapstructure:"min_surface_matches" validate:"required,gt=0"`
	DefaultK          float64       `mapstructure:"default_k" validate:"required,gt=0"`
	KSteps            []KStepConfig `mapstructure:"k_steps" validate:"dive"`
	Outcome           string        `mapstructure:"outcome" validate:"omitempty,oneof=binary margin"`
}

// SimulatorConfig represents match simulator configuration
type SimulatorConfig struct {
	Trials              int           `mapstructure:"trials" validate:"required,gte=1"`
	ChunkSize           int           `mapstructure:"chunk_size" validate:"omitempty,gt=0"`
	Workers             int           `mapstructure:"workers" validate:"gte=0"`
	Method              string        `mapstructure:"method" validate:"omitempty,oneof=monte-carlo closed-form"`
	Z                   float64       `mapstructure:"z" validate:"omitempty,gt=0"`
	MinMatches          int           `mapstructure:"min_matches" validate:"required,gt=0"`
	MinSurfaceMatches   int           `mapstructure:"min_surface_matches" validate:"required,gt=0"`
	SimilarityNeighbors int           `mapstructure:"similarity_neighbors" validate:"gte=0"`
	AllowTourAverage    bool          `mapstructure:"allow_tour_average"`
	OpponentAdjustment  bool          `mapstructure:"opponent_adjustment"`
	FirstServeMin       float64       `mapstructure:"first_serve_min" validate:"gte=0,lte=1"`
	FirstServeMax       float64       `mapstructure:"first_serve_max" validate:"gte=0,lte=1"`
	SecondServeMin      float64       `mapstructure:"second_serve_min" validate:"gte=0,lte=1"`
	SecondServeMax      float64       `mapstructure:"second_serve_max" validate:"gte=0,lte=1"`
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`
	CacheMaxSize        int           `mapstructure:"cache_max_size" validate:"gte=0"`
}

// BettingConfig represents betting evaluation configuration
type BettingConfig struct {
	EdgeThreshold      float64 `mapstructure:"edge_threshold" validate:"gte=0,lt=1"`
	EdgePolicy         string  `mapstructure:"edge_policy" validate:"required,edgepolicy"`
	FlatStake          float64 `mapstructure:"flat_stake" validate:"required,gt=0"`
	InitialBankroll    float64 `mapstructure:"initial_bankroll" validate:"required,gt=0"`
	KellyFraction      float64 `mapstructure:"kelly_fraction" validate:"required,gt=0,lte=1"`
	MaxFraction        float64 `mapstructure:"max_fraction" validate:"required,gt=0,lte=1"`
	BootstrapResamples int     `mapstructure:"bootstrap_resamples" validate:"required,gte=1000"`
	BootstrapLevel     float64 `mapstructure:"bootstrap_level" validate:"required,gt=0,lt=1"`
}

// EvaluationConfig represents calibration and reporting configuration
type EvaluationConfig struct {
	CalibrationBins         int      `mapstructure:"calibration_bins" validate:"required,gte=2,lte=100"`
	WalkForwardWindowDays   int      `mapstructure:"walk_forward_window_days" validate:"gte=0"`
	MinPredictionsPerWindow int      `mapstructure:"min_predictions_per_window" validate:"gte=0"`
	OutputPath              string   `mapstructure:"output_path"`
	Formats                 []string `mapstructure:"formats" validate:"dive,oneof=console csv json"`
}

// DataSourcesConfig represents match and per-match date source configuration
type DataSourcesConfig struct {
	MatchesFile string           `mapstructure:"matches_file"`
	MatchDates  MatchDatesConfig `mapstructure:"match_dates"`
}

// MatchDatesConfig represents the secondary per-match date API
type MatchDatesConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	APIKey         string        `mapstructure:"api_key"`
	RequestsPerSec float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst          int           `mapstructure:"burst" validate:"gte=0"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts" validate:"gte=0"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// SnapshotConfig represents where rating snapshots are written
type SnapshotConfig struct {
	SQLitePath        string `mapstructure:"sqlite_path"`
	PersistToDatabase bool   `mapstructure:"persist_to_database"`
}

// ScheduleConfig represents scheduled re-runs
type ScheduleConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Cron    string `mapstructure:"cron" validate:"required_if=Enabled true"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Path    string `mapstructure:"path"`
}

// IsDevelopment checks if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.App.Environment == "development"
}

// IsStaging checks if the application is running in staging mode
func (c *Config) IsStaging() bool {
	return c.App.Environment == "staging"
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// HasDatabase reports whether a database is configured
func (c *Config) HasDatabase() bool {
	return c.Database.Host != ""
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}
