package artifacts

import (
	"context"
	"path/filepath"

	"github.com/dmitrijs2005/entitykeeper/internal/filex"
)

// FileSink writes artifacts into a local directory.
type FileSink struct {
	dir string
}

// NewFileSink creates dir if needed.
func NewFileSink(dir string) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	abs, err := filex.EnsureDir(dir)
	if err != nil {
		return nil, err
	}
	return &FileSink{dir: abs}, nil
}

func (s *FileSink) Save(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := filex.WriteFile(path, data, 0o640); err != nil {
		return "", err
	}
	return path, nil
}
