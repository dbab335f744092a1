package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config holds runtime settings for the entitykeeper CLI.
type Config struct {
	APIBaseURL     string        `mapstructure:"api_url"`
	DatabasePath   string        `mapstructure:"db"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// TokenPolicy is "expiry" or "presence", see session.ParsePolicy.
	TokenPolicy string        `mapstructure:"token_policy"`
	TokenLeeway time.Duration `mapstructure:"token_leeway"`

	ArtifactSink string `mapstructure:"artifact_sink"`
	ArtifactDir  string `mapstructure:"artifact_dir"`
	S3Bucket     string `mapstructure:"s3_bucket"`
	S3Prefix     string `mapstructure:"s3_prefix"`
	S3Region     string `mapstructure:"s3_region"`
	S3Endpoint   string `mapstructure:"s3_endpoint"`
	S3AccessKey  string `mapstructure:"s3_access_key"`
	S3SecretKey  string `mapstructure:"s3_secret_key"`

	// MetricsAddr enables the /metrics listener when non-empty.
	MetricsAddr string `mapstructure:"metrics_addr"`
	LogLevel    string `mapstructure:"log_level"`
	LogFormat   string `mapstructure:"log_format"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.APIBaseURL = "http://localhost:8080/api"
	c.DatabasePath = "entitykeeper.db"
	c.RequestTimeout = 30 * time.Second
	c.TokenPolicy = "expiry"
	c.TokenLeeway = 0
	c.ArtifactSink = "file"
	c.ArtifactDir = "artifacts"
	c.S3Region = "us-east-1"
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// LoadConfig applies defaults, then the JSON file, the environment and
// finally the flags found in args (usually os.Args[1:]). The result is
// validated before it is returned.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that would only fail later, deep inside a command.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("config: api url %q must be an absolute URL", c.APIBaseURL))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("config: database path must be set"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("config: request timeout must be positive"))
	}
	if c.TokenLeeway < 0 {
		errs = append(errs, errors.New("config: token leeway must not be negative"))
	}
	switch strings.ToLower(c.TokenPolicy) {
	case "", "expiry", "presence":
	default:
		errs = append(errs, fmt.Errorf("config: unknown token policy %q", c.TokenPolicy))
	}
	switch strings.ToLower(c.ArtifactSink) {
	case "", "file":
	case "s3":
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("config: s3 bucket must be set for the s3 artifact sink"))
		}
		if (c.S3AccessKey == "") != (c.S3SecretKey == "") {
			errs = append(errs, errors.New("config: s3 access key and secret key go together"))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown artifact sink %q", c.ArtifactSink))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("config: unknown log format %q", c.LogFormat))
	}

	return errors.Join(errs...)
}
