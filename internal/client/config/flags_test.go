package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected Config
		wantErr  bool
	}{
		{
			name: "core flags",
			args: []string{"-a", "http://127.0.0.1:9090/api", "-d", "s.db", "-t", "5s", "-p", "presence"},
			expected: Config{
				APIBaseURL:     "http://127.0.0.1:9090/api",
				DatabasePath:   "s.db",
				RequestTimeout: 5 * time.Second,
				TokenPolicy:    "presence",
			},
		},
		{
			name: "artifact flags and foreign flags ignored",
			args: []string{"-sink=s3", "-bucket", "b", "-c", "cfg.json", "-prefix", "exports/", "-x"},
			expected: Config{
				ArtifactSink: "s3",
				S3Bucket:     "b",
				S3Prefix:     "exports/",
			},
		},
		{
			name:    "incorrect timeout",
			args:    []string{"-t", "abc"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			err := parseFlags(&cfg, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, cfg))
		})
	}
}
