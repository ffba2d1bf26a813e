package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	envPrefix         = "BASELINE_EDGE"
	defaultConfigPath = "config/config.yaml"
)

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	// BASELINE_EDGE_REPLAY_CUTOFF_POLICY overrides replay.cutoff_policy
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

func readExpanded(v *viper.Viper, data []byte) error {
	// Expand environment variables in the configuration (${VAR} syntax)
	expanded := os.ExpandEnv(string(data))
	if err := v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}
	return nil
}

// Load reads and parses the configuration from file and environment variables.
// It expands environment variable placeholders in the YAML file (${VAR_NAME}).
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := readExpanded(v, data); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// SetDefaults registers the defaults every optional field falls back to
func SetDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "baseline-edge")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")

	v.SetDefault("database.port", 5432)
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("replay.cutoff_policy", "strict")
	v.SetDefault("replay.buffer_days", 14)
	v.SetDefault("replay.model", "elo")
	v.SetDefault("replay.blend_weight", 0.5)
	v.SetDefault("replay.fail_on_leakage", true)
	v.SetDefault("replay.seed", 20240101)
	v.SetDefault("replay.final_set", "tiebreak")

	v.SetDefault("rating.default_rating", 1500.0)
	v.SetDefault("rating.min_surface_matches", 10)
	v.SetDefault("rating.default_k", 32.0)
	v.SetDefault("rating.outcome", "binary")

	v.SetDefault("simulator.trials", 10000)
	v.SetDefault("simulator.chunk_size", 1000)
	v.SetDefault("simulator.method", "monte-carlo")
	v.SetDefault("simulator.z", 1.96)
	v.SetDefault("simulator.min_matches", 10)
	v.SetDefault("simulator.min_surface_matches", 5)
	v.SetDefault("simulator.similarity_neighbors", 5)
	v.SetDefault("simulator.allow_tour_average", true)
	v.SetDefault("simulator.opponent_adjustment", true)
	v.SetDefault("simulator.first_serve_min", 0.30)
	v.SetDefault("simulator.first_serve_max", 0.95)
	v.SetDefault("simulator.second_serve_min", 0.20)
	v.SetDefault("simulator.second_serve_max", 0.85)
	v.SetDefault("simulator.cache_ttl", "1h")
	v.SetDefault("simulator.cache_max_size", 100000)

	v.SetDefault("betting.edge_threshold", 0.0)
	v.SetDefault("betting.edge_policy", "raw")
	v.SetDefault("betting.flat_stake", 1.0)
	v.SetDefault("betting.initial_bankroll", 1000.0)
	v.SetDefault("betting.kelly_fraction", 0.25)
	v.SetDefault("betting.max_fraction", 0.05)
	v.SetDefault("betting.bootstrap_resamples", 1000)
	v.SetDefault("betting.bootstrap_level", 0.95)

	v.SetDefault("evaluation.calibration_bins", 10)
	v.SetDefault("evaluation.walk_forward_window_days", 90)
	v.SetDefault("evaluation.formats", []string{"console"})

	v.SetDefault("data_sources.match_dates.requests_per_second", 2.0)
	v.SetDefault("data_sources.match_dates.burst", 1)
	v.SetDefault("data_sources.match_dates.timeout", "30s")
	v.SetDefault("data_sources.match_dates.retry_attempts", 3)
	v.SetDefault("data_sources.match_dates.cache_ttl", "24h")

	v.SetDefault("schedule.cron", "0 0 6 * * *")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing file is not an error: defaults and environment variables are used.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}

	v := newViper()
	SetDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := readExpanded(v, data); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// ReloadFromEnv reloads the configuration from BASELINE_EDGE_CONFIG_PATH when it is set
func ReloadFromEnv(cfg *Config) error {
	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		newCfg, err := LoadWithDefaults(envPath)
		if err != nil {
			return err
		}
		*cfg = *newCfg
	}

	return nil
}
