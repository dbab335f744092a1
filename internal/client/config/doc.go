// Package config loads runtime configuration for the entitykeeper CLI.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Environment variables with the EMS_ prefix, read through viper.
//  4. Command-line flags, which override everything else.
//
// # JSON schema
//
// Durations accept strings like "30s" or integer nanoseconds:
//
//	{
//	  "api_url": "http://localhost:8080/api",
//	  "db": "entitykeeper.db",
//	  "request_timeout": "30s",
//	  "token_policy": "expiry",
//	  "artifact_sink": "s3",
//	  "s3_bucket": "reports"
//	}
//
// Every JSON key has an environment twin: api_url is EMS_API_URL,
// s3_secret_key is EMS_S3_SECRET_KEY and so on.
package config
