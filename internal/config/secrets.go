package config

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

const (
	errLoadAWSConfig     = "failed to load AWS config: %w"
	errGetSecret         = "failed to get secret %s from AWS Secrets Manager: %w"
	errParseSecretJSON   = "failed to parse secret JSON: %w"
	errParseSecretBinary = "failed to parse secret binary: %w"
)

// ErrNoSecretData is returned when a secret has neither a string nor a binary value
var ErrNoSecretData = errors.New("no secret data found in AWS Secrets Manager")

// SecretGetter is the part of the Secrets Manager client the overlay needs
type SecretGetter interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// SecretsOverlay is the JSON document stored in the secret. Empty fields leave
// the file configuration untouched.
type SecretsOverlay struct {
	DatabaseHost     string `json:"database_host"`
	DatabaseUser     string `json:"database_user"`
	DatabasePassword string `json:"database_password"`
	MatchDatesAPIKey string `json:"match_dates_api_key"`
}

// Apply overlays the non-empty secrets onto cfg and returns the overlaid keys.
func (s *SecretsOverlay) Apply(cfg *Config) []string {
	var applied []string
	set := func(key, value string, target *string) {
		if value != "" {
			*target = value
			applied = append(applied, key)
		}
	}
	set("database_host", s.DatabaseHost, &cfg.Database.Host)
	set("database_user", s.DatabaseUser, &cfg.Database.User)
	set("database_password", s.DatabasePassword, &cfg.Database.Password)
	set("match_dates_api_key", s.MatchDatesAPIKey, &cfg.DataSources.MatchDates.APIKey)
	return applied
}

func parseSecretData(result *secretsmanager.GetSecretValueOutput) (*SecretsOverlay, error) {
	var secrets SecretsOverlay
	switch {
	case result.SecretString != nil:
		if err := json.Unmarshal([]byte(*result.SecretString), &secrets); err != nil {
			return nil, fmt.Errorf(errParseSecretJSON, err)
		}
	case result.SecretBinary != nil:
		if err := json.Unmarshal(result.SecretBinary, &secrets); err != nil {
			return nil, fmt.Errorf(errParseSecretBinary, err)
		}
	default:
		return nil, ErrNoSecretData
	}
	return &secrets, nil
}

// ApplySecrets reads secretName through client and overlays it onto cfg
func ApplySecrets(ctx context.Context, cfg *Config, client SecretGetter, secretName string) ([]string, error) {
	result, err := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretName),
	})
	if err != nil {
		return nil, fmt.Errorf(errGetSecret, secretName, err)
	}

	secrets, err := parseSecretData(result)
	if err != nil {
		return nil, err
	}
	return secrets.Apply(cfg), nil
}

// LoadSecretsFromAWS retrieves secrets from AWS Secrets Manager and overlays them onto the configuration
func LoadSecretsFromAWS(ctx context.Context, cfg *Config, region string, secretName string) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return fmt.Errorf(errLoadAWSConfig, err)
	}

	_, err = ApplySecrets(ctx, cfg, secretsmanager.NewFromConfig(awsCfg), secretName)
	return err
}
