package audit

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// fallbackArchiver writes to S3 when enabled and falls back to the local
// directory when S3 is disabled or failing.
type fallbackArchiver struct {
	s3        Archiver
	file      Archiver
	s3Prefix  string
	s3Enabled bool
	logger    zerolog.Logger
}

// NewFallbackArchiver combines an S3 archiver and a file archiver. s3 may be
// nil, in which case only the file archiver is used.
func NewFallbackArchiver(s3, file Archiver, s3Prefix string, s3Enabled bool, logger zerolog.Logger) Archiver {
	return &fallbackArchiver{
		s3:        s3,
		file:      file,
		s3Prefix:  s3Prefix,
		s3Enabled: s3Enabled,
		logger:    logger.With().Str("component", "fallback-archiver").Logger(),
	}
}

func (a *fallbackArchiver) useS3() bool {
	return a.s3Enabled && a.s3 != nil
}

func (a *fallbackArchiver) Archive(ctx context.Context, rec Record) (string, error) {
	if a.useS3() {
		key, err := a.s3.Archive(ctx, rec)
		if err == nil {
			return key, nil
		}
		a.logger.Warn().
			Err(err).
			Str("event_id", rec.EventID.String()).
			Msg("failed to archive to S3, falling back to local file system")
	}

	return a.file.Archive(ctx, rec)
}

// Load reads S3 keys (those carrying the S3 prefix) from S3 first, then
// tries the local directory with the prefix stripped.
func (a *fallbackArchiver) Load(ctx context.Context, key string) ([]byte, error) {
	if a.useS3() {
		s3Key := key
		if !strings.HasPrefix(s3Key, a.s3Prefix) {
			s3Key = a.s3Prefix + key
		}
		data, err := a.s3.Load(ctx, s3Key)
		if err == nil {
			return data, nil
		}
		a.logger.Warn().Err(err).Str("s3_key", s3Key).Msg("failed to load from S3, falling back to local file system")
	}

	return a.file.Load(ctx, strings.TrimPrefix(key, a.s3Prefix))
}
