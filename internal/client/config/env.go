package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every key when looking up environment variables.
const EnvPrefix = "EMS"

// parseEnv overlays cfg with EMS_* environment variables. The current cfg
// values serve as viper defaults, so unset variables change nothing.
func parseEnv(cfg *Config) error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)

	defaults := map[string]any{
		"api_url":         cfg.APIBaseURL,
		"db":              cfg.DatabasePath,
		"request_timeout": cfg.RequestTimeout,
		"token_policy":    cfg.TokenPolicy,
		"token_leeway":    cfg.TokenLeeway,
		"artifact_sink":   cfg.ArtifactSink,
		"artifact_dir":    cfg.ArtifactDir,
		"s3_bucket":       cfg.S3Bucket,
		"s3_prefix":       cfg.S3Prefix,
		"s3_region":       cfg.S3Region,
		"s3_endpoint":     cfg.S3Endpoint,
		"s3_access_key":   cfg.S3AccessKey,
		"s3_secret_key":   cfg.S3SecretKey,
		"metrics_addr":    cfg.MetricsAddr,
		"log_level":       cfg.LogLevel,
		"log_format":      cfg.LogFormat,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("config: environment: %w", err)
	}
	return nil
}
