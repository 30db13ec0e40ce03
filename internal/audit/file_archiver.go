package audit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// fileArchiver writes archives below a local directory.
type fileArchiver struct {
	dir    string
	logger zerolog.Logger
}

// NewFileArchiver creates an archiver rooted at dir.
func NewFileArchiver(dir string, logger zerolog.Logger) Archiver {
	return &fileArchiver{
		dir:    dir,
		logger: logger.With().Str("component", "file-archiver").Logger(),
	}
}

func (a *fileArchiver) path(key string) string {
	return filepath.Join(a.dir, filepath.FromSlash(key))
}

func (a *fileArchiver) Archive(ctx context.Context, rec Record) (string, error) {
	key := rec.Key()
	data, err := compress(rec.Payload)
	if err != nil {
		return "", err
	}

	p := a.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		a.logger.Error().Err(err).Str("file", p).Msg("failed to write archive file")
		return "", fmt.Errorf("failed to write archive file %s: %w", p, err)
	}

	a.logger.Debug().Str("file", p).Int("bytes", len(data)).Msg("payload archived")
	return key, nil
}

func (a *fileArchiver) Load(ctx context.Context, key string) ([]byte, error) {
	p := a.path(key)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive file %s: %w", p, err)
	}
	return decompress(bytes.NewReader(data))
}
