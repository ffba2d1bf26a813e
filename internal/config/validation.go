package config

import (
	"fmt"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
)

// CustomValidator wraps the validator with custom validation rules
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator creates a new validator with custom validation functions
func NewValidator() *CustomValidator {
	v := validator.New()

	// Register custom validation functions
	mustRegister(v, "environment", oneOf("development", "staging", "production"))
	mustRegister(v, "loglevel", oneOf("debug", "info", "warn", "error"))
	mustRegister(v, "cutoffpolicy", oneOf("strict", "conservative", "tournament-inclusive"))
	mustRegister(v, "model", oneOf("elo", "simulator", "blend"))
	mustRegister(v, "edgepolicy", oneOf("raw", "fair"))
	mustRegister(v, "finalset", oneOf("normal", "tiebreak", "super", "match-tiebreak", "advantage", "none"))

	return &CustomValidator{validator: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register %s validation: %v", tag, err))
	}
}

// oneOf builds a string-enum validation function
func oneOf(allowed ...string) validator.Func {
	set := make(map[string]bool, len(allowed))
	for _, a := range allowed {
		set[a] = true
	}
	return func(fl validator.FieldLevel) bool {
		return set[fl.Field().String()]
	}
}

// Validate validates the entire configuration
func Validate(cfg *Config) error {
	cv := NewValidator()
	return cv.Validate(cfg)
}

// Validate validates the configuration using registered validation rules
func (cv *CustomValidator) Validate(cfg *Config) error {
	err := cv.validator.Struct(cfg)
	if err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return formatValidationErrors(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	// Additional cross-field validations
	if err := validateCrossField(cfg); err != nil {
		return err
	}

	return nil
}

// validateCrossField performs cross-field validations
func validateCrossField(cfg *Config) error {
	if cfg.Replay.StartDate != "" && cfg.Replay.EndDate != "" {
		startDate, err := time.Parse("2006-01-02", cfg.Replay.StartDate)
		if err != nil {
			return fmt.Errorf("invalid replay start_date format: %w", err)
		}
		endDate, err := time.Parse("2006-01-02", cfg.Replay.EndDate)
		if err != nil {
			return fmt.Errorf("invalid replay end_date format: %w", err)
		}
		if endDate.Before(startDate) {
			return fmt.Errorf("replay start_date must not be after end_date")
		}
	}

	if cfg.Replay.CutoffPolicy == "conservative" && cfg.Replay.BufferDays == 0 {
		return fmt.Errorf("conservative cutoff policy requires buffer_days > 0")
	}

	// K must not grow with experience
	prevBelow, prevK := 0, 0.0
	for i, step := range cfg.Rating.KSteps {
		if step.Below <= prevBelow {
			return fmt.Errorf("rating k_steps must be ordered by increasing 'below', step %d is not", i)
		}
		if i > 0 && step.K > prevK {
			return fmt.Errorf("rating k_steps must not increase K, step %d does", i)
		}
		prevBelow, prevK = step.Below, step.K
	}
	if len(cfg.Rating.KSteps) > 0 && cfg.Rating.DefaultK > prevK {
		return fmt.Errorf("rating default_k cannot exceed the last k_steps value")
	}

	if cfg.Simulator.FirstServeMin > cfg.Simulator.FirstServeMax {
		return fmt.Errorf("simulator first_serve_min cannot exceed first_serve_max")
	}
	if cfg.Simulator.SecondServeMin > cfg.Simulator.SecondServeMax {
		return fmt.Errorf("simulator second_serve_min cannot exceed second_serve_max")
	}

	if cfg.DataSources.MatchDates.Enabled && cfg.DataSources.MatchDates.BaseURL == "" {
		return fmt.Errorf("data_sources.match_dates.base_url is required when match dates are enabled")
	}

	if cfg.Snapshot.PersistToDatabase && !cfg.HasDatabase() {
		return fmt.Errorf("snapshot persist_to_database requires a database host")
	}

	// Validate connection pool settings
	if cfg.Database.MaxIdleConnections > cfg.Database.MaxConnections {
		return fmt.Errorf("max_idle_connections cannot exceed max_connections")
	}

	return nil
}

// formatValidationErrors formats validation errors into a readable string
func formatValidationErrors(validationErrors validator.ValidationErrors) error {
	var errMsg string
	for _, fieldError := range validationErrors {
		field := fieldError.StructField()
		tag := fieldError.Tag()
		value := fieldError.Value()

		switch tag {
		case "required", "required_with", "required_if":
			errMsg += fmt.Sprintf("- Field '%s' is required\n", field)
		case "url":
			errMsg += fmt.Sprintf("- Field '%s' must be a valid URL, got '%v'\n", field, value)
		case "min", "max":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: %s constraint violated\n", field, tag)
		case "gt", "gte", "lt", "lte":
			errMsg += fmt.Sprintf("- Field '%s' validation failed: numeric constraint %s violated\n", field, tag)
		case "environment":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: development, staging, production\n", field)
		case "loglevel":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: debug, info, warn, error\n", field)
		case "cutoffpolicy":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: strict, conservative, tournament-inclusive, got '%v'\n", field, value)
		case "model":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: elo, simulator, blend, got '%v'\n", field, value)
		case "edgepolicy":
			errMsg += fmt.Sprintf("- Field '%s' must be one of: raw, fair, got '%v'\n", field, value)
		case "datetime":
			errMsg += fmt.Sprintf("- Field '%s' must be in format YYYY-MM-DD\n", field)
		default:
			errMsg += fmt.Sprintf("- Field '%s' failed validation: %s\n", field, tag)
		}
	}
	return fmt.Errorf("configuration validation failed:\n%s", errMsg)
}

// ValidateEnvironment validates environment-specific requirements
func ValidateEnvironment(cfg *Config) error {
	if cfg.IsProduction() {
		if cfg.HasDatabase() && cfg.Database.SSLMode == "disable" {
			return fmt.Errorf("production environment requires database SSL mode to be 'require' or 'verify-full'")
		}
		if isTestCredential(cfg.Database.User) {
			return fmt.Errorf("production environment should not use test database credentials")
		}
		if cfg.Replay.CutoffPolicy == "tournament-inclusive" {
			return fmt.Errorf("tournament-inclusive cutoff leaks results and is not allowed in production")
		}
	}

	return nil
}

// isTestCredential checks if a credential looks like a test credential
func isTestCredential(credential string) bool {
	testPatterns := []string{
		"test", "demo", "example", "placeholder", "YOUR_",
	}

	for _, pattern := range testPatterns {
		if match, _ := regexp.MatchString("(?i)"+pattern, credential); match {
			return true
		}
	}

	return false
}
