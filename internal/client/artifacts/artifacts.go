// Package artifacts stores files downloaded from the API, such as exported
// spreadsheets and PDF reports.
package artifacts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/entitykeeper/internal/client/config"
)

// Sink saves a named artifact and returns where it ended up.
type Sink interface {
	Save(ctx context.Context, name, contentType string, data []byte) (string, error)
}

const (
	KindFile = "file"
	KindS3   = "s3"
)

// New builds the sink selected by cfg.ArtifactSink.
func New(ctx context.Context, cfg *config.Config) (Sink, error) {
	switch strings.ToLower(cfg.ArtifactSink) {
	case "", KindFile:
		return NewFileSink(cfg.ArtifactDir)
	case KindS3:
		return NewS3Sink(ctx, S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
	default:
		return nil, fmt.Errorf("unknown artifact sink %q", cfg.ArtifactSink)
	}
}

// ExportName is the file name for an export taken at t, e.g.
// entities_2024-05-01T10-00-00Z.csv.
func ExportName(t time.Time, ext string) string {
	stamp := strings.ReplaceAll(t.UTC().Format(time.RFC3339), ":", "-")
	return "entities_" + stamp + ext
}

// ReportName is the file name for a downloaded report.
func ReportName(kind string) string {
	return strings.ReplaceAll(kind, "/", "_") + "_report.pdf"
}
