package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/entitykeeper/internal/flagx"
	"github.com/dmitrijs2005/entitykeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the config file. Empty fields leave
// the corresponding Config value untouched.
type JsonConfig struct {
	APIBaseURL     string         `json:"api_url"`
	DatabasePath   string         `json:"db"`
	RequestTimeout timex.Duration `json:"request_timeout"`
	TokenPolicy    string         `json:"token_policy"`
	TokenLeeway    timex.Duration `json:"token_leeway"`
	ArtifactSink   string         `json:"artifact_sink"`
	ArtifactDir    string         `json:"artifact_dir"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Prefix       string         `json:"s3_prefix"`
	S3Region       string         `json:"s3_region"`
	S3Endpoint     string         `json:"s3_endpoint"`
	S3AccessKey    string         `json:"s3_access_key"`
	S3SecretKey    string         `json:"s3_secret_key"`
	MetricsAddr    string         `json:"metrics_addr"`
	LogLevel       string         `json:"log_level"`
	LogFormat      string         `json:"log_format"`
}

// parseJson overlays cfg with the file named by -c/-config in args.
// Without the flag nothing happens.
func parseJson(cfg *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	setString(&cfg.APIBaseURL, jc.APIBaseURL)
	setString(&cfg.DatabasePath, jc.DatabasePath)
	setString(&cfg.TokenPolicy, jc.TokenPolicy)
	setString(&cfg.ArtifactSink, jc.ArtifactSink)
	setString(&cfg.ArtifactDir, jc.ArtifactDir)
	setString(&cfg.S3Bucket, jc.S3Bucket)
	setString(&cfg.S3Prefix, jc.S3Prefix)
	setString(&cfg.S3Region, jc.S3Region)
	setString(&cfg.S3Endpoint, jc.S3Endpoint)
	setString(&cfg.S3AccessKey, jc.S3AccessKey)
	setString(&cfg.S3SecretKey, jc.S3SecretKey)
	setString(&cfg.MetricsAddr, jc.MetricsAddr)
	setString(&cfg.LogLevel, jc.LogLevel)
	setString(&cfg.LogFormat, jc.LogFormat)

	if jc.RequestTimeout.Duration != 0 {
		cfg.RequestTimeout = jc.RequestTimeout.Duration
	}
	if jc.TokenLeeway.Duration != 0 {
		cfg.TokenLeeway = jc.TokenLeeway.Duration
	}
	return nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
