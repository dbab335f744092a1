package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_parseEnv(t *testing.T) {
	t.Setenv("EMS_API_URL", "https://env.example/api")
	t.Setenv("EMS_TOKEN_LEEWAY", "2s")
	t.Setenv("EMS_ARTIFACT_SINK", "s3")
	t.Setenv("EMS_S3_BUCKET", "exports")
	t.Setenv("EMS_S3_ACCESS_KEY", "AKIA")
	t.Setenv("EMS_S3_SECRET_KEY", "secret")

	cfg := defaults()
	require.NoError(t, parseEnv(&cfg))

	want := defaults()
	want.APIBaseURL = "https://env.example/api"
	want.TokenLeeway = 2 * time.Second
	want.ArtifactSink = "s3"
	want.S3Bucket = "exports"
	want.S3AccessKey = "AKIA"
	want.S3SecretKey = "secret"
	assert.Empty(t, cmp.Diff(want, cfg))
}

func Test_parseEnv_UnsetKeepsValues(t *testing.T) {
	cfg := Config{APIBaseURL: "http://keep", RequestTimeout: 7 * time.Second}
	require.NoError(t, parseEnv(&cfg))

	assert.Empty(t, cmp.Diff(Config{APIBaseURL: "http://keep", RequestTimeout: 7 * time.Second}, cfg))
}

func Test_parseEnv_BadDuration(t *testing.T) {
	t.Setenv("EMS_REQUEST_TIMEOUT", "later")

	cfg := defaults()
	require.Error(t, parseEnv(&cfg))
}
