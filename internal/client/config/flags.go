package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/dmitrijs2005/entitykeeper/internal/flagx"
)

var knownFlags = []string{
	"-a", "-d", "-t", "-p", "-leeway",
	"-sink", "-dir", "-bucket", "-prefix", "-region", "-endpoint",
	"-metrics", "-log-level", "-log-format",
}

// parseFlags populates cfg from command-line flags.
//
//	-a string          base URL of the entity management API
//	-d string          session database path (":memory:" keeps nothing)
//	-t duration        per-request timeout
//	-p string          token policy: expiry or presence
//	-leeway duration   clock skew allowance for token expiry
//	-sink string       artifact sink: file or s3
//	-dir string        directory for the file sink
//	-bucket, -prefix, -region, -endpoint   S3 sink settings
//	-metrics string    listen address for /metrics
//	-log-level, -log-format                diagnostics
//
// S3 credentials come from the JSON file or the environment only.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, knownFlags)

	fs := flag.NewFlagSet("entitykeeper", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.APIBaseURL, "a", cfg.APIBaseURL, "base URL of the API")
	fs.StringVar(&cfg.DatabasePath, "d", cfg.DatabasePath, "session database path")
	fs.DurationVar(&cfg.RequestTimeout, "t", cfg.RequestTimeout, "request timeout")
	fs.StringVar(&cfg.TokenPolicy, "p", cfg.TokenPolicy, "token policy (expiry|presence)")
	fs.DurationVar(&cfg.TokenLeeway, "leeway", cfg.TokenLeeway, "token expiry leeway")
	fs.StringVar(&cfg.ArtifactSink, "sink", cfg.ArtifactSink, "artifact sink (file|s3)")
	fs.StringVar(&cfg.ArtifactDir, "dir", cfg.ArtifactDir, "artifact directory")
	fs.StringVar(&cfg.S3Bucket, "bucket", cfg.S3Bucket, "S3 bucket")
	fs.StringVar(&cfg.S3Prefix, "prefix", cfg.S3Prefix, "S3 key prefix")
	fs.StringVar(&cfg.S3Region, "region", cfg.S3Region, "S3 region")
	fs.StringVar(&cfg.S3Endpoint, "endpoint", cfg.S3Endpoint, "S3 endpoint override")
	fs.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format (text|json)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("config: flags: %w", err)
	}
	return nil
}
